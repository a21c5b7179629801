// Package redis provides an ItemStore on Redis, for several mosaic
// processes sharing one item set.
//
// Layout, under a configurable prefix:
//
//	<prefix>:item:<id>      item JSON
//	<prefix>:alias:<alias>  surviving item id
//	<prefix>:recent         zset of ids scored by scrape time (ms)
//	<prefix>:ids            zset of ids, all score 0 (lexical order)
//	<prefix>:type:<type>    same, per item type
//
// Upserts run as WATCH/MULTI optimistic transactions and retry when a
// concurrent writer touches the same item.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/custodia-labs/mosaic/internal/core/domain"
	"github.com/custodia-labs/mosaic/internal/core/ports/driven"
)

// Ensure ItemStore implements the interface.
var _ driven.ItemStore = (*ItemStore)(nil)

const (
	// DefaultPrefix namespaces keys when none is configured.
	DefaultPrefix = "mosaic"

	// maxTxRetries bounds optimistic retries of one upsert.
	maxTxRetries = 50

	connectionTimeout = 5 * time.Second
)

// ErrEmptyAddress is returned when the Redis address is not configured.
var ErrEmptyAddress = errors.New("redis address is required")

// Config holds Redis connection configuration.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// ItemStore implements driven.ItemStore on Redis.
type ItemStore struct {
	client *goredis.Client
	prefix string
}

// NewItemStore connects to Redis and verifies the connection.
func NewItemStore(cfg Config) (*ItemStore, error) {
	if cfg.Addr == "" {
		return nil, ErrEmptyAddress
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewItemStoreFromClient(client, cfg.Prefix), nil
}

// NewItemStoreFromClient wraps an existing client. The store owns it
// and closes it on Close.
func NewItemStoreFromClient(client *goredis.Client, prefix string) *ItemStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &ItemStore{client: client, prefix: prefix}
}

func (s *ItemStore) itemKey(id string) string { return s.prefix + ":item:" + id }
func (s *ItemStore) aliasKey(id string) string { return s.prefix + ":alias:" + id }
func (s *ItemStore) recentKey() string { return s.prefix + ":recent" }
func (s *ItemStore) idsKey() string { return s.prefix + ":ids" }
func (s *ItemStore) typeKey(t domain.ItemType) string { return s.prefix + ":type:" + string(t) }

// Get retrieves an item by id or alias.
func (s *ItemStore) Get(ctx context.Context, id string) (*domain.Item, error) {
	item, _, err := s.load(ctx, s.client, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	return item, nil
}

// getter is satisfied by *goredis.Client and *goredis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
}

// load resolves id through the alias index and returns the stored item
// and the key it lives at. A missing item is (nil, key, nil).
func (s *ItemStore) load(ctx context.Context, c getter, id string) (*domain.Item, string, error) {
	key := s.itemKey(id)
	data, err := c.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		target, aerr := c.Get(ctx, s.aliasKey(id)).Result()
		if errors.Is(aerr, goredis.Nil) {
			return nil, key, nil
		}
		if aerr != nil {
			return nil, key, fmt.Errorf("resolving alias %s: %w", id, aerr)
		}
		key = s.itemKey(target)
		data, err = c.Get(ctx, key).Result()
	}
	if errors.Is(err, goredis.Nil) {
		return nil, key, nil
	}
	if err != nil {
		return nil, key, fmt.Errorf("getting item %s: %w", id, err)
	}

	item, err := decodeItem(data)
	return item, key, err
}

// Upsert merges item into the stored item inside a WATCH/MULTI transaction.
func (s *ItemStore) Upsert(ctx context.Context, item *domain.Item) (*domain.Item, error) {
	if item == nil || item.ID == "" {
		return nil, &domain.ValidationError{Field: "id", Reason: "item id is required"}
	}

	var merged *domain.Item
	txf := func(tx *goredis.Tx) error {
		existing, key, err := s.load(ctx, tx, item.ID)
		if err != nil {
			return err
		}
		// The alias may have pointed elsewhere; watch where it led.
		if key != s.itemKey(item.ID) {
			if err := tx.Watch(ctx, key).Err(); err != nil {
				return err
			}
			if existing, _, err = s.load(ctx, tx, item.ID); err != nil {
				return err
			}
		}

		merged = item.Clone()
		if existing != nil {
			merged = domain.MergeItems(existing, item)
		}
		merged.Canonicalise()

		data, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("marshalling item: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, s.itemKey(merged.ID), data, 0)
			pipe.ZAdd(ctx, s.recentKey(), goredis.Z{Score: float64(merged.Source.ScrapeTimestamp.UnixMilli()), Member: merged.ID})
			pipe.ZAdd(ctx, s.idsKey(), goredis.Z{Member: merged.ID})
			if existing != nil && existing.Metadata.Type != merged.Metadata.Type {
				pipe.ZRem(ctx, s.typeKey(existing.Metadata.Type), merged.ID)
			}
			pipe.ZAdd(ctx, s.typeKey(merged.Metadata.Type), goredis.Z{Member: merged.ID})
			for _, alias := range merged.Aliases {
				pipe.Set(ctx, s.aliasKey(alias), merged.ID, 0)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, s.itemKey(item.ID), s.aliasKey(item.ID))
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("upserting item %s: %w", item.ID, err)
		}
		return merged, nil
	}
	return nil, fmt.Errorf("upserting item %s: too much contention after %d attempts", item.ID, maxTxRetries)
}

// ListRecent returns up to limit items, most recently scraped first.
// Items scraped in the same millisecond are ordered by id.
func (s *ItemStore) ListRecent(ctx context.Context, limit int) ([]*domain.Item, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	zs, err := s.client.ZRevRangeWithScores(ctx, s.recentKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("listing recent items: %w", err)
	}

	// Pull in every id tied with the last score so the cut is by id.
	if limit > 0 && len(zs) == limit {
		last := zs[len(zs)-1].Score
		ties, err := s.client.ZRangeByScoreWithScores(ctx, s.recentKey(), &goredis.ZRangeBy{
			Min: strconv.FormatFloat(last, 'f', -1, 64),
			Max: strconv.FormatFloat(last, 'f', -1, 64),
		}).Result()
		if err != nil {
			return nil, fmt.Errorf("listing recent items: %w", err)
		}
		zs = mergeTies(zs, ties)
	}

	sort.SliceStable(zs, func(i, j int) bool {
		if zs[i].Score != zs[j].Score {
			return zs[i].Score > zs[j].Score
		}
		return member(zs[i]) < member(zs[j])
	})
	if limit > 0 && len(zs) > limit {
		zs = zs[:limit]
	}

	ids := make([]string, len(zs))
	for i, z := range zs {
		ids[i] = member(z)
	}
	return s.fetch(ctx, ids)
}

// List returns items matching the filter, ordered by id.
func (s *ItemStore) List(ctx context.Context, filter driven.ItemFilter) ([]*domain.Item, error) {
	start := int64(max(filter.Offset, 0))
	stop := int64(-1)
	if filter.Limit > 0 {
		stop = start + int64(filter.Limit) - 1
	}
	ids, err := s.client.ZRange(ctx, s.filterKey(filter), start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	return s.fetch(ctx, ids)
}

// Count returns the number of items matching the filter.
func (s *ItemStore) Count(ctx context.Context, filter driven.ItemFilter) (int, error) {
	n, err := s.client.ZCard(ctx, s.filterKey(filter)).Result()
	if err != nil {
		return 0, fmt.Errorf("counting items: %w", err)
	}
	return int(n), nil
}

// Close closes the Redis client.
func (s *ItemStore) Close() error {
	return s.client.Close()
}

func (s *ItemStore) filterKey(filter driven.ItemFilter) string {
	if filter.Type != "" {
		return s.typeKey(filter.Type)
	}
	return s.idsKey()
}

// fetch loads items in the given order, skipping ids without a record.
func (s *ItemStore) fetch(ctx context.Context, ids []string) ([]*domain.Item, error) {
	items := make([]*domain.Item, 0, len(ids))
	if len(ids) == 0 {
		return items, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.itemKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("fetching items: %w", err)
	}
	for _, v := range values {
		data, ok := v.(string)
		if !ok {
			continue
		}
		item, err := decodeItem(data)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func decodeItem(data string) (*domain.Item, error) {
	var item domain.Item
	if err := json.Unmarshal([]byte(data), &item); err != nil {
		return nil, fmt.Errorf("unmarshalling item: %w", err)
	}
	item.Canonicalise()
	return &item, nil
}

func member(z goredis.Z) string {
	s, _ := z.Member.(string)
	return s
}

func mergeTies(zs, ties []goredis.Z) []goredis.Z {
	seen := make(map[string]bool, len(zs))
	for _, z := range zs {
		seen[member(z)] = true
	}
	for _, z := range ties {
		if !seen[member(z)] {
			zs = append(zs, z)
		}
	}
	return zs
}
