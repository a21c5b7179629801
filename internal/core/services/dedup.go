package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/custodia-labs/mosaic/internal/core/domain"
	"github.com/custodia-labs/mosaic/internal/core/ports/driven"
	"github.com/custodia-labs/mosaic/internal/logger"
)

// DedupConfig configures a Deduplicator.
type DedupConfig struct {
	// Threshold is τ: pairs scoring at or above it are near-duplicates.
	Threshold float64

	// RecentWindow is how many recently scraped stored items candidates
	// are compared against. Zero disables store comparison.
	RecentWindow int
}

// Deduplicator merges a candidate pool against itself and the store.
// It is not safe for concurrent use; a run deduplicates on one goroutine.
type Deduplicator struct {
	store      driven.ItemStore
	similarity driven.Similarity
	fallback   driven.Similarity
	cfg        DedupConfig
}

// NewDeduplicator creates a deduplicator. A nil similarity means
// fingerprint similarity.
func NewDeduplicator(store driven.ItemStore, similarity driven.Similarity, cfg DedupConfig) *Deduplicator {
	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		cfg.Threshold = domain.DefaultSimilarityThreshold
	}
	if cfg.RecentWindow < 0 {
		cfg.RecentWindow = 0
	}
	fallback := NewFingerprintSimilarity()
	if similarity == nil {
		similarity = fallback
	}
	return &Deduplicator{
		store:      store,
		similarity: similarity,
		fallback:   fallback,
		cfg:        cfg,
	}
}

// warmer is implemented by similarities that can precompute in batch.
type warmer interface {
	Warm(ctx context.Context, items []*domain.Item) error
}

// candidateGroup is every candidate sharing one id, folded together.
type candidateGroup struct {
	id      string
	members []*domain.Item
	pooled  *domain.Item
}

// Deduplicate folds the candidate pool into the items to persist.
//
// Candidates sharing an id are folded first. Each resulting group whose id
// (or alias) is already stored is merged into the stored item. Remaining
// groups are linked when their similarity reaches the threshold, either to
// each other or to a recently stored item. A linked set touching stored
// items merges into the stored item seen first; otherwise the candidate
// seen first survives and the rest become its aliases. Ties on first-seen
// time go to the smaller id.
//
//nolint:gocyclo // Sequential dedup stages share state
func (d *Deduplicator) Deduplicate(ctx context.Context, candidates []*domain.Item) (*domain.DedupResult, error) {
	result := &domain.DedupResult{
		Outcomes:     make(map[string]domain.Outcome),
		LookupErrors: make(map[string]string),
	}
	if len(candidates) == 0 {
		return result, nil
	}

	// 1. Fold candidates that share an id
	groups := groupByID(candidates)

	// 2. Exact match against the store
	type target struct {
		stored  *domain.Item
		members []*domain.Item
	}
	targets := make(map[string]*target)
	var unresolved []*candidateGroup

	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stored, err := d.store.Get(ctx, g.id)
		switch {
		case err == nil:
			t, ok := targets[stored.ID]
			if !ok {
				t = &target{stored: stored}
				targets[stored.ID] = t
			}
			t.members = append(t.members, g.members...)
			d.markMerged(result, g)
		case errors.Is(err, domain.ErrNotFound):
			unresolved = append(unresolved, g)
		default:
			logger.Warn("Dedup lookup failed for %s: %v", g.id, err)
			result.LookupErrors[g.id] = err.Error()
		}
	}

	// 3. Near-duplicate detection among the rest and the recent window
	recent := d.recentItems(ctx, result)

	if w, ok := d.similarity.(warmer); ok {
		pool := make([]*domain.Item, 0, len(unresolved)+len(recent))
		for _, g := range unresolved {
			pool = append(pool, g.pooled)
		}
		pool = append(pool, recent...)
		if err := w.Warm(ctx, pool); err != nil {
			logger.Warn("Similarity warm-up failed, scoring item by item: %v", err)
		}
	}

	uf := newUnionFind(len(unresolved))
	for i := 0; i < len(unresolved); i++ {
		for j := i + 1; j < len(unresolved); j++ {
			if d.similar(ctx, result, unresolved[i].pooled, unresolved[j].pooled) {
				uf.union(i, j)
			}
		}
	}

	components := make(map[int][]int)
	for i := range unresolved {
		root := uf.find(i)
		components[root] = append(components[root], i)
	}
	roots := make([]int, 0, len(components))
	for root := range components {
		roots = append(roots, root)
	}
	sort.Ints(roots)

	for _, root := range roots {
		members := components[root]

		// 3a. Linked to a stored item: merge into the one seen first
		var match *domain.Item
		for _, stored := range recent {
			for _, idx := range members {
				if d.similar(ctx, result, unresolved[idx].pooled, stored) {
					if match == nil || seenBefore(stored, match) {
						match = stored
					}
					break
				}
			}
		}
		if match != nil {
			if existing, ok := targets[match.ID]; ok {
				match = existing.stored
			}
			t, ok := targets[match.ID]
			if !ok {
				t = &target{stored: match}
				targets[match.ID] = t
			}
			for _, idx := range members {
				t.members = append(t.members, unresolved[idx].members...)
				d.markMerged(result, unresolved[idx])
			}
			continue
		}

		// 3b. New: the candidate seen first survives
		survivor := unresolved[members[0]]
		for _, idx := range members[1:] {
			if seenBefore(unresolved[idx].pooled, survivor.pooled) {
				survivor = unresolved[idx]
			}
		}
		var folded []*domain.Item
		for _, idx := range members {
			g := unresolved[idx]
			if g == survivor {
				folded = append(folded, g.members[1:]...)
				continue
			}
			folded = append(folded, g.members...)
			d.markMerged(result, g)
		}
		result.Items = append(result.Items, domain.MergeItems(survivor.members[0], folded...))
		result.Outcomes[survivor.id] = domain.OutcomeNew
		result.New++
		result.Merged += len(survivor.members) - 1
	}

	// 4. Fold every stored target with its candidates
	for _, t := range targets {
		result.Items = append(result.Items, domain.MergeItems(t.stored, t.members...))
	}

	sort.Slice(result.Items, func(i, j int) bool {
		return result.Items[i].ID < result.Items[j].ID
	})
	return result, nil
}

func (d *Deduplicator) markMerged(result *domain.DedupResult, g *candidateGroup) {
	result.Outcomes[g.id] = domain.OutcomeMerged
	result.Merged += len(g.members)
}

// recentItems loads the comparison window. A failed listing weakens
// deduplication but does not stop it.
func (d *Deduplicator) recentItems(ctx context.Context, result *domain.DedupResult) []*domain.Item {
	if d.cfg.RecentWindow == 0 {
		return nil
	}
	recent, err := d.store.ListRecent(ctx, d.cfg.RecentWindow)
	if err != nil {
		msg := fmt.Sprintf("list recent items: %v", err)
		logger.Warn("Dedup: %s", msg)
		result.Warnings = append(result.Warnings, msg)
		return nil
	}
	sort.Slice(recent, func(i, j int) bool {
		return recent[i].ID < recent[j].ID
	})
	return recent
}

// similar reports whether a and b reach the threshold. Scoring errors fall
// back to fingerprint similarity for that pair.
func (d *Deduplicator) similar(ctx context.Context, result *domain.DedupResult, a, b *domain.Item) bool {
	score, err := d.similarity.Score(ctx, a, b)
	if err != nil {
		if len(result.Warnings) == 0 || result.Warnings[len(result.Warnings)-1] != similarityFallbackWarning {
			logger.Warn("%s scoring failed, using fingerprint: %v", d.similarity.Name(), err)
			result.Warnings = append(result.Warnings, similarityFallbackWarning)
		}
		score, _ = d.fallback.Score(ctx, a, b)
	}
	return score >= d.cfg.Threshold
}

const similarityFallbackWarning = "similarity scoring failed for some pairs; fingerprint similarity used instead"

// seenBefore orders items by first sighting, then by id.
func seenBefore(a, b *domain.Item) bool {
	fa, fb := a.FirstSeen(), b.FirstSeen()
	if !fa.Equal(fb) {
		return fa.Before(fb)
	}
	return a.ID < b.ID
}

// groupByID folds candidates sharing an id. Groups are sorted by id.
func groupByID(candidates []*domain.Item) []*candidateGroup {
	byID := make(map[string]*candidateGroup)
	for _, c := range candidates {
		if c == nil {
			continue
		}
		g, ok := byID[c.ID]
		if !ok {
			g = &candidateGroup{id: c.ID}
			byID[c.ID] = g
		}
		g.members = append(g.members, c)
	}

	groups := make([]*candidateGroup, 0, len(byID))
	for _, g := range byID {
		sort.SliceStable(g.members, func(i, j int) bool {
			return seenBefore(g.members[i], g.members[j])
		})
		g.pooled = domain.MergeItems(g.members[0], g.members[1:]...)
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].id < groups[j].id
	})
	return groups
}

// unionFind is a disjoint-set forest over candidate indices.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

// union links two sets, keeping the smaller index as root so component
// roots do not depend on the order unions happen in.
func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	switch {
	case ra == rb:
		return
	case ra < rb:
		u.parent[rb] = ra
	default:
		u.parent[ra] = rb
	}
}
