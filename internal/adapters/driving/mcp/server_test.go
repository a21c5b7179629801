package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	t.Run("nil discovery service returns error", func(t *testing.T) {
		ports := &Ports{Items: &mockItemService{}}
		server, err := NewServer(ports)
		require.Error(t, err)
		assert.Nil(t, server)
		assert.ErrorIs(t, err, ErrMissingDiscoveryService)
	})

	t.Run("valid ports creates server", func(t *testing.T) {
		server, err := newTestServer(&mockDiscoveryService{}, &mockItemService{})
		require.NoError(t, err)
		assert.NotNil(t, server)
	})
}

func TestPorts_Validate(t *testing.T) {
	t.Run("empty ports", func(t *testing.T) {
		ports := &Ports{}
		assert.ErrorIs(t, ports.Validate(), ErrMissingDiscoveryService)
	})

	t.Run("missing item service", func(t *testing.T) {
		ports := &Ports{Discovery: &mockDiscoveryService{}}
		assert.ErrorIs(t, ports.Validate(), ErrMissingItemService)
	})

	t.Run("all ports is valid", func(t *testing.T) {
		ports := &Ports{Discovery: &mockDiscoveryService{}, Items: &mockItemService{}}
		assert.NoError(t, ports.Validate())
	})
}
