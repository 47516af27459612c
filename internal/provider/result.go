package provider

import (
	"github.com/mangashelf/mangashelf/internal/domain"
	"github.com/mangashelf/mangashelf/internal/errors"
)

// ResultKind discriminates a MangaResult.
type ResultKind int

// Result kinds.
const (
	ResultOK ResultKind = iota
	ResultNotFound
	ResultFailed
)

func (k ResultKind) String() string {
	switch k {
	case ResultOK:
		return "ok"
	case ResultNotFound:
		return "not_found"
	default:
		return "failed"
	}
}

// MangaResult is the outcome of GetMangaData: the work, a definitive
// not-found for the slug, or a failure with detail.
type MangaResult struct {
	Kind ResultKind
	Work *domain.WorkData
	Err  error
}

// OK wraps a successful lookup.
func OK(w *domain.WorkData) MangaResult {
	return MangaResult{Kind: ResultOK, Work: w}
}

// NotFound reports that the slug no longer resolves.
func NotFound(slug string) MangaResult {
	return MangaResult{Kind: ResultNotFound, Err: errors.NotFoundf("work %q not found", slug)}
}

// Failed wraps any other failure.
func Failed(err error) MangaResult {
	if err == nil {
		err = errors.Internalf("provider failed without detail")
	}
	return MangaResult{Kind: ResultFailed, Err: err}
}

// FromError classifies err: not-found errors become NotFound, everything
// else Failed.
func FromError(slug string, err error) MangaResult {
	if errors.Is(err, errors.ErrNotFound) {
		r := NotFound(slug)
		r.Err = err
		return r
	}
	return Failed(err)
}

// Unwrap converts the result back into Go's (value, error) form.
func (r MangaResult) Unwrap() (*domain.WorkData, error) {
	switch r.Kind {
	case ResultOK:
		if r.Work == nil {
			return nil, errors.Internalf("provider returned an empty result")
		}
		return r.Work, nil
	default:
		return nil, r.Err
	}
}
