package mcp

import (
	"github.com/custodia-labs/mosaic/internal/core/domain"
	"github.com/custodia-labs/mosaic/internal/core/ports/driving"
)

// Ports aggregates the driving ports the MCP server calls.
type Ports struct {
	// Discovery runs discovery queries.
	Discovery driving.DiscoveryService

	// Items reads stored items.
	Items driving.ItemService

	// Defaults is the run configuration tool calls start from.
	Defaults domain.RunConfig
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Discovery == nil {
		return ErrMissingDiscoveryService
	}
	if p.Items == nil {
		return ErrMissingItemService
	}
	return nil
}
