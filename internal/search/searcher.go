// Package search runs semantic queries against the component store and
// shapes the ranked results. Two entry points share one mechanism: Search
// for literal lookups and Suggest for fuzzy "what component fits this UI
// need" queries.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/uiscout/uiscout/internal/catalog"
	"github.com/uiscout/uiscout/internal/embedding"
	"github.com/uiscout/uiscout/internal/store"
)

// Options tunes result sizing and the suggestion cutoff.
type Options struct {
	DefaultLimit    int     // result count when the query has none
	MaxLimit        int     // hard cap on requested limits
	SuggestLimit    int     // default result count for Suggest
	SuggestMinScore float64 // Suggest drops results scoring below this
}

// DefaultOptions mirror the service defaults.
func DefaultOptions() Options {
	return Options{
		DefaultLimit:    10,
		MaxLimit:        50,
		SuggestLimit:    5,
		SuggestMinScore: 0.35,
	}
}

// Searcher is stateless per call; it only holds its collaborators.
type Searcher struct {
	provider embedding.Provider
	store    *store.Store
	opts     Options
}

// NewSearcher creates a Searcher over the given provider and store.
func NewSearcher(provider embedding.Provider, st *store.Store, opts Options) *Searcher {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 10
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = 50
	}
	if opts.SuggestLimit <= 0 {
		opts.SuggestLimit = 5
	}
	return &Searcher{provider: provider, store: st, opts: opts}
}

// Search embeds the query text and returns the top matches ordered by score
// descending, ties broken by most recently indexed. No minimum-score cutoff
// applies: absence of results is the "not found" signal.
func (s *Searcher) Search(ctx context.Context, q catalog.SearchQuery) ([]catalog.SearchResult, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, fmt.Errorf("%w: query text is empty", catalog.ErrInvalidArgument)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = s.opts.DefaultLimit
	}
	if limit > s.opts.MaxLimit {
		limit = s.opts.MaxLimit
	}

	vec, err := s.provider.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	scored, err := s.store.Query(ctx, vec, limit, q.Filters)
	if err != nil {
		return nil, err
	}

	return s.rank(q.Text, scored), nil
}

// Suggest runs the same mechanism as Search over a raw UI-need description.
// Suggestions tolerate lower-confidence matches than literal search would,
// but results below the configured minimum score are dropped.
func (s *Searcher) Suggest(ctx context.Context, uiDescription string, limit int) ([]catalog.SearchResult, error) {
	if limit <= 0 {
		limit = s.opts.SuggestLimit
	}

	results, err := s.Search(ctx, catalog.SearchQuery{Text: uiDescription, Limit: limit})
	if err != nil {
		return nil, err
	}

	kept := results[:0]
	for _, r := range results {
		if r.Score >= s.opts.SuggestMinScore {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

// rank converts raw similarities to [0,1] scores, annotates matched fields
// and applies the final ordering.
func (s *Searcher) rank(queryText string, scored []store.Scored) []catalog.SearchResult {
	tokens := tokenize(queryText)

	results := make([]catalog.SearchResult, len(scored))
	for i, sc := range scored {
		results[i] = catalog.SearchResult{
			Component:     sc.Component,
			Score:         normalizeScore(sc.Similarity),
			MatchedFields: matchedFields(tokens, sc.Component),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Component.UpdatedAt.After(results[j].Component.UpdatedAt)
	})

	return results
}

// normalizeScore maps cosine similarity in [-1,1] to [0,1]. The mapping is
// monotonic, so ordering by score matches ordering by raw similarity.
func normalizeScore(similarity float64) float64 {
	score := (similarity + 1) / 2
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// matchedFields reports which of name/description/tags contain any query
// token, case-insensitively. This is an explainability hint for the caller;
// it plays no part in ranking.
func matchedFields(tokens []string, c catalog.Component) []string {
	var fields []string
	if anyTokenIn(tokens, c.Name) {
		fields = append(fields, "name")
	}
	if anyTokenIn(tokens, c.Description) {
		fields = append(fields, "description")
	}
	if anyTokenIn(tokens, strings.Join(c.Tags, " ")) {
		fields = append(fields, "tags")
	}
	if fields == nil {
		fields = []string{}
	}
	return fields
}

func anyTokenIn(tokens []string, field string) bool {
	if field == "" {
		return false
	}
	lower := strings.ToLower(field)
	for _, tok := range tokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

func tokenize(text string) []string {
	raw := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	tokens := raw[:0]
	for _, t := range raw {
		if len(t) > 1 {
			tokens = append(tokens, t)
		}
	}
	return tokens
}
