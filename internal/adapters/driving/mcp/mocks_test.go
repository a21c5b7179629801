package mcp

import (
	"context"

	"github.com/custodia-labs/mosaic/internal/core/domain"
)

// mockDiscoveryService is a mock implementation of driving.DiscoveryService.
type mockDiscoveryService struct {
	result  *domain.RunResult
	err     error
	lastCfg domain.RunConfig
	query   string
}

func (m *mockDiscoveryService) Run(_ context.Context, query string, cfg domain.RunConfig) (*domain.RunResult, error) {
	m.query = query
	m.lastCfg = cfg
	return m.result, m.err
}

func (m *mockDiscoveryService) Status(context.Context, string) (*domain.RunProgress, error) {
	return nil, domain.ErrNotFound
}

func (m *mockDiscoveryService) Active() []domain.RunProgress { return nil }
func (m *mockDiscoveryService) Providers() []string          { return []string{"arxiv"} }

// mockItemService is a mock implementation of driving.ItemService.
type mockItemService struct {
	items    map[string]*domain.Item
	page     *domain.ItemPage
	scored   []domain.ScoredItem
	err      error
	lastType domain.ItemType
	lastN    int
}

func (m *mockItemService) Get(_ context.Context, id string) (*domain.Item, error) {
	if m.err != nil {
		return nil, m.err
	}
	item, ok := m.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return item, nil
}

func (m *mockItemService) List(_ context.Context, itemType domain.ItemType, _, pageSize int) (*domain.ItemPage, error) {
	m.lastType = itemType
	m.lastN = pageSize
	if m.err != nil {
		return nil, m.err
	}
	if m.page == nil {
		return &domain.ItemPage{Page: 1, PageSize: pageSize}, nil
	}
	return m.page, nil
}

func (m *mockItemService) Similar(_ context.Context, _ string, limit int) ([]domain.ScoredItem, error) {
	m.lastN = limit
	return m.scored, m.err
}

func testItem(id, title string) *domain.Item {
	item := &domain.Item{
		ID: id,
		Metadata: domain.Metadata{
			Title:         title,
			Type:          domain.ItemTypeTool,
			PublishedDate: domain.StringPtr("2024-05-01"),
		},
		Content: domain.Content{
			RepositoryLink: domain.StringPtr("https://github.com/example/" + id),
		},
		Source: domain.Source{
			URL:        "https://example.com/" + id,
			Platform:   domain.PlatformWeb,
			ScraperIDs: []string{"tavily"},
		},
		Tags: []string{"agents"},
	}
	item.EnsureCollections()
	return item
}

func newTestServer(discovery *mockDiscoveryService, items *mockItemService) (*Server, error) {
	return NewServer(&Ports{Discovery: discovery, Items: items, Defaults: domain.DefaultRunConfig()})
}
