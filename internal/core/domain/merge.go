package domain

import (
	"sort"
	"strings"
)

// MergeItems folds members into survivor and returns the merged item.
// Neither input is modified.
//
// Members (survivor included) are applied oldest first, ordered by
// scrape timestamp, then scraper, then id. A later non-empty scalar
// overwrites an earlier one; an empty value never overwrites, and a
// guessed title or type only fills an empty one. Set-valued fields are
// unioned and kept sorted, the scrape timestamp is the maximum, and the
// survivor keeps its id, URL and platform. The result is the same
// whatever order the members are given in, and merging an item that has
// already been merged changes nothing.
func MergeItems(survivor *Item, members ...*Item) *Item {
	all := make([]*Item, 0, len(members)+1)
	all = append(all, survivor)
	for _, m := range members {
		if m != nil {
			all = append(all, m)
		}
	}
	sort.SliceStable(all, func(a, b int) bool {
		return foldLess(all[a], all[b])
	})

	out := &Item{}
	out.EnsureCollections()
	for _, m := range all {
		foldInto(out, m)
	}

	out.ID = survivor.ID
	out.Source.URL = survivor.Source.URL
	out.Source.Platform = survivor.Source.Platform
	out.Aliases = removeString(out.Aliases, survivor.ID)
	return out
}

func foldLess(a, b *Item) bool {
	if !a.Source.ScrapeTimestamp.Equal(b.Source.ScrapeTimestamp) {
		return a.Source.ScrapeTimestamp.Before(b.Source.ScrapeTimestamp)
	}
	if sa, sb := firstScraper(a), firstScraper(b); sa != sb {
		return sa < sb
	}
	if a.ID != b.ID {
		return a.ID < b.ID
	}
	if a.Metadata.Title != b.Metadata.Title {
		return a.Metadata.Title < b.Metadata.Title
	}
	return a.Metadata.Description < b.Metadata.Description
}

func firstScraper(i *Item) string {
	if len(i.Source.ScraperIDs) == 0 {
		return ""
	}
	min := i.Source.ScraperIDs[0]
	for _, s := range i.Source.ScraperIDs[1:] {
		if s < min {
			min = s
		}
	}
	return min
}

func foldInto(dst, src *Item) {
	// metadata: latest non-empty wins, a guess never replaces a value
	if src.Metadata.Title != "" && (dst.Metadata.Title == "" || !src.Guessed.Has(GuessedTitle)) {
		dst.Metadata.Title = src.Metadata.Title
		dst.Guessed = dst.Guessed.set(GuessedTitle, src.Guessed.Has(GuessedTitle))
	}
	if src.Metadata.Type != "" && (dst.Metadata.Type == "" || !src.Guessed.Has(GuessedType)) {
		dst.Metadata.Type = src.Metadata.Type
		dst.Guessed = dst.Guessed.set(GuessedType, src.Guessed.Has(GuessedType))
	}
	if len(src.Metadata.Authors) > 0 {
		dst.Metadata.Authors = cloneStrings(src.Metadata.Authors)
	}
	if StringValue(src.Metadata.PublishedDate) != "" {
		dst.Metadata.PublishedDate = cloneStringPtr(src.Metadata.PublishedDate)
	}
	if src.Metadata.Description != "" {
		dst.Metadata.Description = src.Metadata.Description
	}

	dst.Content.Capabilities = unionSorted(dst.Content.Capabilities, src.Content.Capabilities)
	for k, v := range src.Content.TechnicalSpecs {
		if strings.TrimSpace(v) != "" {
			dst.Content.TechnicalSpecs[k] = v
		}
	}
	dst.Content.CodeSnippets = unionSnippets(dst.Content.CodeSnippets, src.Content.CodeSnippets)
	dst.Content.Images = unionSorted(dst.Content.Images, src.Content.Images)
	if StringValue(src.Content.RepositoryLink) != "" {
		dst.Content.RepositoryLink = cloneStringPtr(src.Content.RepositoryLink)
	}
	if StringValue(src.Content.PaperLink) != "" {
		dst.Content.PaperLink = cloneStringPtr(src.Content.PaperLink)
	}

	if src.Source.ScrapeTimestamp.After(dst.Source.ScrapeTimestamp) {
		dst.Source.ScrapeTimestamp = src.Source.ScrapeTimestamp
	}
	dst.Source.ScraperIDs = unionSorted(dst.Source.ScraperIDs, src.Source.ScraperIDs)
	dst.Source.Provenance = unionProvenance(dst.Source.Provenance, src.Source.Provenance)

	dst.Aliases = unionSorted(dst.Aliases, src.Aliases)
	if src.ID != "" {
		dst.Aliases = unionSorted(dst.Aliases, []string{src.ID})
	}
	dst.Tags = unionSorted(dst.Tags, src.Tags)
}

// Canonicalise fills nil collections and puts every set-valued field in
// its sorted, de-duplicated form.
func (i *Item) Canonicalise() {
	i.EnsureCollections()
	i.Content.Capabilities = unionSorted(nil, i.Content.Capabilities)
	i.Content.Images = unionSorted(nil, i.Content.Images)
	i.Content.CodeSnippets = unionSnippets(nil, i.Content.CodeSnippets)
	i.Source.ScraperIDs = unionSorted(nil, i.Source.ScraperIDs)
	i.Source.Provenance = unionProvenance(nil, i.Source.Provenance)
	i.Aliases = unionSorted(nil, i.Aliases)
	i.Tags = unionSorted(nil, i.Tags)
}

// UniqueSorted returns the distinct non-empty values of s in sorted order.
func UniqueSorted(s []string) []string {
	return unionSorted(nil, s)
}

func unionSorted(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, v := range list {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func unionSnippets(a, b []CodeSnippet) []CodeSnippet {
	seen := make(map[CodeSnippet]struct{}, len(a)+len(b))
	out := make([]CodeSnippet, 0, len(a)+len(b))
	for _, list := range [][]CodeSnippet{a, b} {
		for _, s := range list {
			if strings.TrimSpace(s.Code) == "" {
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Language != out[j].Language {
			return out[i].Language < out[j].Language
		}
		return out[i].Code < out[j].Code
	})
	return out
}

func unionProvenance(a, b []Provenance) []Provenance {
	type key struct {
		id string
		ts int64
	}
	seen := make(map[key]struct{}, len(a)+len(b))
	out := make([]Provenance, 0, len(a)+len(b))
	for _, list := range [][]Provenance{a, b} {
		for _, p := range list {
			k := key{p.ScraperID, p.Timestamp.UnixNano()}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ScraperID < out[j].ScraperID
	})
	return out
}

func removeString(s []string, v string) []string {
	out := s[:0:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}
