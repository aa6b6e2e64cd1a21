package search

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// SearchParams configures a search query.
type SearchParams struct {
	Query string   // User's search query
	Kinds []string // Document kinds to include (empty = all)

	// Pagination
	Limit  int
	Offset int

	// Sorting: "relevance" (default), "title", "recent"
	SortBy string
}

// DefaultSearchParams returns sensible defaults.
func DefaultSearchParams() SearchParams {
	return SearchParams{
		Limit:  20,
		SortBy: "relevance",
	}
}

// SearchResult represents the search results.
type SearchResult struct {
	Query  string      `json:"query"`
	Total  uint64      `json:"total"`
	TookMs int64       `json:"took_ms"`
	Hits   []SearchHit `json:"hits"`
}

// SearchHit represents a single search result.
type SearchHit struct {
	ID     string  `json:"id"`
	Score  float64 `json:"score"`
	Title  string  `json:"title"`
	Author string  `json:"author,omitempty"`
	Kind   string  `json:"kind"`
}

// Search executes a search query.
func (s *SearchIndex) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	if params.Limit <= 0 {
		params.Limit = DefaultSearchParams().Limit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	searchRequest := bleve.NewSearchRequestOptions(buildSearchQuery(params), params.Limit, params.Offset, false)
	addSorting(searchRequest, params)
	searchRequest.Fields = []string{"display_title", "display_author", "kind"}

	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &SearchResult{
		Query:  params.Query,
		Total:  searchResult.Total,
		TookMs: searchResult.Took.Milliseconds(),
		Hits:   make([]SearchHit, 0, len(searchResult.Hits)),
	}

	for _, hit := range searchResult.Hits {
		searchHit := SearchHit{
			ID:    hit.ID,
			Score: hit.Score,
		}
		if t, ok := hit.Fields["display_title"].(string); ok {
			searchHit.Title = t
		}
		if a, ok := hit.Fields["display_author"].(string); ok {
			searchHit.Author = a
		}
		if k, ok := hit.Fields["kind"].(string); ok {
			searchHit.Kind = k
		}
		result.Hits = append(result.Hits, searchHit)
	}

	return result, nil
}

// buildSearchQuery constructs the Bleve query from params.
//
// Title matches rank above author matches, which rank above chapter
// titles. A fuzzy and a prefix clause on the title tolerate typos and
// serve type-ahead.
func buildSearchQuery(params SearchParams) query.Query {
	var queries []query.Query

	if q := Fold(params.Query); q != "" {
		titleMatch := bleve.NewMatchQuery(q)
		titleMatch.SetField("title")
		titleMatch.SetBoost(3.0)

		authorMatch := bleve.NewMatchQuery(q)
		authorMatch.SetField("author")
		authorMatch.SetBoost(2.0)

		chapterMatch := bleve.NewMatchQuery(q)
		chapterMatch.SetField("chapters")

		fuzzyQuery := bleve.NewFuzzyQuery(q)
		fuzzyQuery.SetFuzziness(1)
		fuzzyQuery.SetField("title")
		fuzzyQuery.SetBoost(0.8)

		textQueries := []query.Query{titleMatch, authorMatch, chapterMatch, fuzzyQuery}

		if utf8.RuneCountInString(q) >= 2 {
			prefixQuery := bleve.NewPrefixQuery(q)
			prefixQuery.SetField("title")
			prefixQuery.SetBoost(0.5)
			textQueries = append(textQueries, prefixQuery)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	if len(params.Kinds) > 0 {
		kindQueries := make([]query.Query, len(params.Kinds))
		for i, k := range params.Kinds {
			tq := bleve.NewTermQuery(k)
			tq.SetField("kind")
			kindQueries[i] = tq
		}
		queries = append(queries, bleve.NewDisjunctionQuery(kindQueries...))
	}

	switch len(queries) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return queries[0]
	default:
		return bleve.NewConjunctionQuery(queries...)
	}
}

// addSorting configures sort order.
func addSorting(req *bleve.SearchRequest, params SearchParams) {
	switch params.SortBy {
	case "title":
		req.SortBy([]string{"sort_title"})
	case "recent":
		req.SortBy([]string{"-created_at"})
	default:
		req.SortBy([]string{"-_score"})
	}
}
