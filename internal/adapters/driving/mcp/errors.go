// Package mcp provides an MCP (Model Context Protocol) server adapter for Mosaic.
// It lets AI assistants run discovery and read stored items.
package mcp

import "errors"

var (
	// ErrMissingDiscoveryService is returned when the discovery service is not provided.
	ErrMissingDiscoveryService = errors.New("mcp: discovery service is required")

	// ErrMissingItemService is returned when the item service is not provided.
	ErrMissingItemService = errors.New("mcp: item service is required")
)
