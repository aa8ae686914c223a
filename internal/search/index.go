// Package search provides a simple, deterministic, in-memory index over a
// user's saved-item titles, powering "search my plate". It is intentionally
// small and dependency-free:
//
//   - No logging in the library (callers decide how/what to log)
//   - Unicode-aware tokenization with optional stop-word removal
//   - Immutable, read-only index after construction (safe for concurrent use)
//   - Deterministic scoring and sorting (stable order for ties)
//
// Scoring uses Jaccard similarity between the query token set and each item's
// title token set: score = |Q ∩ T| / |Q ∪ T|.
package search

import (
	"regexp"
	"sort"
	"strings"

	"github.com/plateful/plate-backend/internal/domain"
)

// Result pairs a saved-item row id with its similarity score.
type Result struct {
	ItemID string
	Score  float64
}

// Option configures index construction.
type Option func(*config)

type config struct {
	stopwords map[string]struct{}
}

// WithStopwords removes the given words from both titles and queries before
// scoring. Matching is case-insensitive.
func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

// tokenRE extracts unicode word tokens.
var tokenRE = regexp.MustCompile(`[\p{L}\p{N}]+`)

type entry struct {
	itemID string
	tokens map[string]struct{}
}

// Index is an immutable title index over one user's plate.
type Index struct {
	entries   []entry
	stopwords map[string]struct{}
}

// New builds an index from saved items. Items without a usable title are
// skipped. Entries keep the input order, which makes tie-breaking stable.
func New(items []domain.SavedItem, opts ...Option) *Index {
	var cfg config
	for _, o := range opts {
		o(&cfg)
	}

	idx := &Index{stopwords: cfg.stopwords}
	for _, item := range items {
		meta, err := domain.DecodeMetadata(item.ItemType, item.Metadata)
		if err != nil {
			continue
		}
		title, ok := domain.Title(meta)
		if !ok {
			continue
		}
		toks := idx.tokenize(title)
		if len(toks) == 0 {
			continue
		}
		idx.entries = append(idx.entries, entry{itemID: item.ID, tokens: toks})
	}
	return idx
}

// Len reports how many items were indexed.
func (idx *Index) Len() int { return len(idx.entries) }

// TopK returns up to k items ranked by Jaccard similarity against the query.
// Zero-score entries are omitted; ties keep index order.
func (idx *Index) TopK(query string, k int) []Result {
	if k <= 0 {
		return nil
	}
	q := idx.tokenize(query)
	if len(q) == 0 {
		return nil
	}

	results := make([]Result, 0, len(idx.entries))
	for _, e := range idx.entries {
		if s := jaccard(q, e.tokens); s > 0 {
			results = append(results, Result{ItemID: e.itemID, Score: s})
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results
}

func (idx *Index) tokenize(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, t := range tokenRE.FindAllString(strings.ToLower(s), -1) {
		if _, stop := idx.stopwords[t]; stop {
			continue
		}
		out[t] = struct{}{}
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
