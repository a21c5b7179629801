package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/mosaic/internal/core/domain"
	"github.com/custodia-labs/mosaic/internal/core/ports/driven"
)

// itemStore implements driven.ItemStore.
type itemStore struct {
	store *Store
}

var _ driven.ItemStore = (*itemStore)(nil)

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Get retrieves an item by id or alias.
func (s *itemStore) Get(ctx context.Context, id string) (*domain.Item, error) {
	return getItem(ctx, s.store.db, id)
}

// Upsert merges item into the stored item inside one write transaction.
func (s *itemStore) Upsert(ctx context.Context, item *domain.Item) (*domain.Item, error) {
	if item == nil || item.ID == "" {
		return nil, &domain.ValidationError{Field: "id", Reason: "item id is required"}
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	merged := item.Clone()
	existing, err := getItem(ctx, tx, item.ID)
	switch {
	case err == nil:
		merged = domain.MergeItems(existing, item)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}
	merged.Canonicalise()

	data, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("marshalling item: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO items (id, type, scraped_at, data)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			scraped_at = excluded.scraped_at,
			data = excluded.data
	`, merged.ID, string(merged.Metadata.Type), merged.Source.ScrapeTimestamp.UnixNano(), string(data))
	if err != nil {
		return nil, fmt.Errorf("saving item: %w", err)
	}

	for _, alias := range merged.Aliases {
		if alias == merged.ID {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO item_aliases (alias, item_id) VALUES (?, ?)
			ON CONFLICT(alias) DO UPDATE SET item_id = excluded.item_id
		`, alias, merged.ID)
		if err != nil {
			return nil, fmt.Errorf("saving alias %s: %w", alias, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing upsert: %w", err)
	}
	return merged, nil
}

// ListRecent returns up to limit items, most recently scraped first.
func (s *itemStore) ListRecent(ctx context.Context, limit int) ([]*domain.Item, error) {
	query := "SELECT data FROM items ORDER BY scraped_at DESC, id"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.queryItems(ctx, query, args...)
}

// List returns items matching the filter, ordered by id.
func (s *itemStore) List(ctx context.Context, filter driven.ItemFilter) ([]*domain.Item, error) {
	where, args := filterClause(filter)
	query := "SELECT data FROM items" + where + " ORDER BY id"

	// SQLite needs a LIMIT before OFFSET; -1 means unbounded.
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, max(filter.Offset, 0))
	}
	return s.queryItems(ctx, query, args...)
}

// Count returns the number of items matching the filter.
func (s *itemStore) Count(ctx context.Context, filter driven.ItemFilter) (int, error) {
	where, args := filterClause(filter)
	var n int
	if err := s.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting items: %w", err)
	}
	return n, nil
}

// Close closes the shared database connection.
func (s *itemStore) Close() error {
	return s.store.Close()
}

func (s *itemStore) queryItems(ctx context.Context, query string, args ...any) ([]*domain.Item, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()

	items := []*domain.Item{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		item, err := decodeItem(data)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating items: %w", err)
	}
	return items, nil
}

// getItem looks id up directly, then through the alias index.
func getItem(ctx context.Context, q queryer, id string) (*domain.Item, error) {
	var data string
	err := q.QueryRowContext(ctx, `
		SELECT data FROM items WHERE id = ?
		UNION ALL
		SELECT i.data FROM item_aliases a JOIN items i ON i.id = a.item_id WHERE a.alias = ?
		LIMIT 1
	`, id, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting item %s: %w", id, err)
	}
	return decodeItem(data)
}

func decodeItem(data string) (*domain.Item, error) {
	var item domain.Item
	if err := json.Unmarshal([]byte(data), &item); err != nil {
		return nil, fmt.Errorf("unmarshalling item: %w", err)
	}
	item.Canonicalise()
	return &item, nil
}

func filterClause(filter driven.ItemFilter) (string, []any) {
	var conds []string
	var args []any
	if filter.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, string(filter.Type))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
