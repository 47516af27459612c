package fetcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

type savedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// cookieFile is keyed by origin ("https://host/").
type cookieFile map[string][]savedCookie

func (s *Session) cookiePath() string {
	dir := s.registry.opts.CookiesDir
	if dir == "" {
		return ""
	}
	name := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(s.id)
	return filepath.Join(dir, name+".json")
}

// SaveCookies writes the jar to CookiesDir/<session id>.json.
// The standard jar only exposes name and value, so expiry is not kept.
func (s *Session) SaveCookies() error {
	path := s.cookiePath()
	if path == "" {
		return nil
	}

	s.mu.Lock()
	origins := make([]*url.URL, 0, len(s.origins))
	for _, u := range s.origins {
		origins = append(origins, u)
	}
	s.mu.Unlock()

	out := make(cookieFile, len(origins))
	for _, u := range origins {
		cookies := s.jar.Cookies(u)
		if len(cookies) == 0 {
			continue
		}
		saved := make([]savedCookie, 0, len(cookies))
		for _, c := range cookies {
			saved = append(saved, savedCookie{Name: c.Name, Value: c.Value})
		}
		out[u.String()] = saved
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cookies: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create cookies dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write cookies: %w", err)
	}
	return os.Rename(tmp, path)
}

func (s *Session) loadCookies() error {
	path := s.cookiePath()
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path) //#nosec G304 -- path built from config dir and session id
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	var in cookieFile
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	for origin, saved := range in {
		u, err := url.Parse(origin)
		if err != nil {
			continue
		}
		cookies := make([]*http.Cookie, 0, len(saved))
		for _, c := range saved {
			cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
		}
		s.jar.SetCookies(u, cookies)
		s.origins[u.String()] = u
	}
	return nil
}
