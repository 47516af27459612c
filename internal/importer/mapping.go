package importer

import (
	"net/url"
	"path"
	"strings"

	"github.com/mangashelf/mangashelf/internal/errors"
)

// SlugFunc derives a provider slug from a backup reference.
type SlugFunc func(ref string) (string, error)

// Mapping binds a foreign provider code to a local provider.
type Mapping struct {
	ProviderID string
	Slug       SlugFunc
}

// Mappings is keyed by foreign provider code.
type Mappings map[string]Mapping

// DefaultMappings covers the providers bundled with mangashelf. Codes are
// the source ids of the foreign application.
var DefaultMappings = Mappings{
	"2499283573021220255": {ProviderID: "mangadex", Slug: LastPathSegment},
	"1998944621602463790": {ProviderID: "mangaplus", Slug: LastPathSegment},
	"2522335540328470744": {ProviderID: "webtoon", Slug: LastQueryParam},
	"5190569675461947007": {ProviderID: "toonily", Slug: LastPathSegment},
}

// LastPathSegment returns the last non-empty path segment of ref, or ref
// itself when it is already a bare slug.
func LastPathSegment(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeValidation, "parse reference")
	}
	p := u.Path
	if u.Fragment != "" {
		p = u.Fragment
	}
	slug := path.Base(strings.TrimRight(p, "/"))
	if slug == "." || slug == "/" || slug == "" {
		return "", errors.Validationf("no slug in %q", ref)
	}
	return slug, nil
}

// LastQueryParam returns the value of the last query parameter of ref.
func LastQueryParam(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeValidation, "parse reference")
	}
	pairs := strings.Split(u.RawQuery, "&")
	for i := len(pairs) - 1; i >= 0; i-- {
		_, v, _ := strings.Cut(pairs[i], "=")
		if v, err := url.QueryUnescape(v); err == nil && v != "" {
			return v, nil
		}
	}
	return "", errors.Validationf("no query parameter in %q", ref)
}
