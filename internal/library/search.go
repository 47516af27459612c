package library

import (
	"context"
	"strings"

	"github.com/mangashelf/mangashelf/internal/domain"
	"github.com/mangashelf/mangashelf/internal/errors"
	"github.com/mangashelf/mangashelf/internal/provider"
	"github.com/mangashelf/mangashelf/internal/search"
)

// SearchProvider searches a provider's catalog. An empty term lists the
// provider's most popular works and is refused by providers without them.
func (l *Library) SearchProvider(ctx context.Context, providerID, term string, filters provider.Values) ([]domain.SearchResult, error) {
	p, info, err := l.providerInfo(providerID)
	if err != nil {
		return nil, err
	}
	if term = strings.TrimSpace(term); term != "" {
		return p.Search(ctx, term, filters)
	}
	if !info.HasMostPopulars {
		return nil, errors.Validationf("%s needs a search term", info.ID)
	}
	return p.MostPopulars(ctx, filters)
}

// Search queries the library index and returns the matching works in
// result order.
func (l *Library) Search(ctx context.Context, params search.Params) ([]*domain.Work, error) {
	if l.index == nil {
		return nil, errors.Unsupported("library search index is not enabled")
	}
	res, err := l.index.Search(ctx, params)
	if err != nil {
		return nil, err
	}
	works := make([]*domain.Work, 0, len(res.Hits))
	for _, hit := range res.Hits {
		w, err := l.store.GetWork(ctx, hit.WorkID)
		if errors.Is(err, errors.ErrNotFound) {
			l.logger.Debug("search hit for missing work", "work_id", hit.WorkID)
			continue
		}
		if err != nil {
			return nil, err
		}
		works = append(works, w)
	}
	return works, nil
}

// Reindex rebuilds the search index from the database.
func (l *Library) Reindex(ctx context.Context) error {
	if l.index == nil {
		return nil
	}
	works, err := l.store.ListWorks(ctx)
	if err != nil {
		return err
	}
	return l.index.Rebuild(works)
}
