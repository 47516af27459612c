package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Params configures a search.
type Params struct {
	Query string

	// Filters
	Providers []string // provider ids, OR'ed
	Genres    []string // all must match
	Status    string

	Limit  int
	Offset int

	// SortBy is "relevance" (default), "name" or "last_read".
	SortBy string
	Desc   bool

	IncludeFacets bool
}

// Result is the outcome of a search.
type Result struct {
	Query  string
	Total  uint64
	Hits   []Hit
	Genres []FacetCount
}

// Hit is a matching work.
type Hit struct {
	WorkID   int64
	Score    float64
	Name     string
	Provider string
}

// FacetCount is a facet value and its count.
type FacetCount struct {
	Value string
	Count int
}

// Search runs params against the index.
func (s *Index) Search(ctx context.Context, params Params) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}
	req := bleve.NewSearchRequestOptions(buildQuery(params), limit, params.Offset, false)
	req.Fields = []string{"name", "provider"}
	addSorting(req, params)
	if params.IncludeFacets {
		req.AddFacet("genres", bleve.NewFacetRequest("genres", 20))
	}

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &Result{
		Query: params.Query,
		Total: res.Total,
		Hits:  make([]Hit, 0, len(res.Hits)),
	}
	for _, h := range res.Hits {
		workID, err := strconv.ParseInt(h.ID, 10, 64)
		if err != nil {
			s.logger.Warn("skipping search hit with bad id", "id", h.ID)
			continue
		}
		hit := Hit{WorkID: workID, Score: h.Score}
		if n, ok := h.Fields["name"].(string); ok {
			hit.Name = n
		}
		if p, ok := h.Fields["provider"].(string); ok {
			hit.Provider = p
		}
		result.Hits = append(result.Hits, hit)
	}

	if f, ok := res.Facets["genres"]; ok && f.Terms != nil {
		for _, term := range f.Terms.Terms() {
			result.Genres = append(result.Genres, FacetCount{Value: term.Term, Count: term.Count})
		}
	}
	return result, nil
}

// buildQuery combines the free-text part with the filters.
func buildQuery(params Params) query.Query {
	var queries []query.Query

	if q := strings.TrimSpace(params.Query); q != "" {
		nameMatch := bleve.NewMatchQuery(q)
		nameMatch.SetField("name")
		nameMatch.SetBoost(3.0)

		authorMatch := bleve.NewMatchQuery(q)
		authorMatch.SetField("authors")
		authorMatch.SetBoost(1.5)

		synopsisMatch := bleve.NewMatchQuery(q)
		synopsisMatch.SetField("synopsis")
		synopsisMatch.SetBoost(0.3)

		// Typo tolerance on single-word names.
		fuzzy := bleve.NewFuzzyQuery(strings.ToLower(q))
		fuzzy.SetFuzziness(1)
		fuzzy.SetField("name")
		fuzzy.SetBoost(0.8)

		text := []query.Query{nameMatch, authorMatch, synopsisMatch, fuzzy}
		if len(q) >= 2 {
			prefix := bleve.NewPrefixQuery(strings.ToLower(q))
			prefix.SetField("name")
			prefix.SetBoost(0.5)
			text = append(text, prefix)
		}
		queries = append(queries, bleve.NewDisjunctionQuery(text...))
	}

	if len(params.Providers) > 0 {
		provs := make([]query.Query, len(params.Providers))
		for i, p := range params.Providers {
			tq := bleve.NewTermQuery(p)
			tq.SetField("provider")
			provs[i] = tq
		}
		queries = append(queries, bleve.NewDisjunctionQuery(provs...))
	}

	for _, g := range params.Genres {
		tq := bleve.NewTermQuery(normalizeGenre(g))
		tq.SetField("genres")
		queries = append(queries, tq)
	}

	if params.Status != "" {
		tq := bleve.NewTermQuery(params.Status)
		tq.SetField("status")
		queries = append(queries, tq)
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

// addSorting configures sort order. Relevance is bleve's default.
func addSorting(req *bleve.SearchRequest, params Params) {
	field := ""
	switch params.SortBy {
	case "name":
		field = "name"
	case "last_read":
		field = "last_read"
	default:
		return
	}
	if params.Desc {
		field = "-" + field
	}
	req.SortBy([]string{field, "_id"})
}
