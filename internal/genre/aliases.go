package genre

import "slices"

// Aliases maps spellings used by different providers to one slug.
var Aliases = map[string]string{
	"shounen":    "shonen",
	"shonen-ai":  "boys-love",
	"shounen-ai": "boys-love",
	"shoujo":     "shojo",
	"shoujo-ai":  "girls-love",
	"shojo-ai":   "girls-love",

	"yaoi": "boys-love",
	"bl":   "boys-love",
	"yuri": "girls-love",
	"gl":   "girls-love",

	"sci-fi":          "science-fiction",
	"scifi":           "science-fiction",
	"sf":              "science-fiction",
	"sliceoflife":     "slice-of-life",
	"rom-com":         "romantic-comedy",
	"romcom":          "romantic-comedy",
	"martial-art":     "martial-arts",
	"super-power":     "superpower",
	"super-powers":    "superpower",
	"full-colour":     "full-color",
	"fullcolor":       "full-color",
	"longstrip":       "long-strip",
	"vertical-scroll": "long-strip",
	"comedy-humor":    "comedy",
	"humor":           "comedy",
	"humour":          "comedy",
}

// Canonical returns the slug for a raw genre label.
func Canonical(raw string) string {
	slug := Slugify(raw)
	if canonical, ok := Aliases[slug]; ok {
		return canonical
	}
	return slug
}

// Match reports whether have and want share a genre once both sides are
// canonicalized.
func Match(have, want []string) bool {
	if len(have) == 0 || len(want) == 0 {
		return false
	}
	wanted := make([]string, 0, len(want))
	for _, w := range want {
		if c := Canonical(w); c != "" {
			wanted = append(wanted, c)
		}
	}
	for _, h := range have {
		if slices.Contains(wanted, Canonical(h)) {
			return true
		}
	}
	return false
}
