package provider

import (
	"context"
	"net/http"
	"strings"
)

// BrowserPage is what a headless browser saw after navigating.
type BrowserPage struct {
	URL     string
	HTML    string
	Cookies []*http.Cookie
}

// Browser is an external capability used to pass challenge pages. It is
// injected; no browser engine is bundled.
type Browser interface {
	Navigate(ctx context.Context, url string) (*BrowserPage, error)
}

// IsChallenge reports whether a response is an anti-bot challenge page.
func IsChallenge(status int, header http.Header, body []byte) bool {
	if status != http.StatusForbidden && status != http.StatusServiceUnavailable {
		return false
	}
	if strings.EqualFold(header.Get("Cf-Mitigated"), "challenge") {
		return true
	}
	if strings.HasPrefix(strings.ToLower(header.Get("Server")), "cloudflare") {
		s := string(body)
		return strings.Contains(s, "challenge-platform") || strings.Contains(s, "cf-chl")
	}
	return false
}

// PassChallenge hands url to the browser and copies the cookies it earned
// into the provider session. It returns false when no browser is available.
func (b *Base) PassChallenge(ctx context.Context, url string) (bool, error) {
	if b.browser == nil {
		return false, nil
	}
	page, err := b.browser.Navigate(ctx, url)
	if err != nil {
		return false, err
	}
	b.session.SetCookies(url, page.Cookies)
	b.logger.Info("challenge passed with browser", "url", url, "cookies", len(page.Cookies))
	return true, nil
}
