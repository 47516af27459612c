package provider

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/mangashelf/mangashelf/internal/codec"
	"github.com/mangashelf/mangashelf/internal/domain"
	"github.com/mangashelf/mangashelf/internal/errors"
	"github.com/mangashelf/mangashelf/internal/fetcher"
)

// Deps are the process-wide services a provider is built with.
type Deps struct {
	Sessions *fetcher.Registry
	Logger   *slog.Logger
	// Browser is nil when no headless browser is available.
	Browser Browser
}

// Base carries the metadata and HTTP session of a provider and implements
// the optional methods with their default behavior.
type Base struct {
	info    Info
	session *fetcher.Session
	browser Browser
	logger  *slog.Logger
}

// NewBase creates the shared part of a provider. Language variants of one
// source share a session, keyed by MainID.
func NewBase(info Info, deps Deps, cfg fetcher.SessionConfig) *Base {
	info = info.normalized()
	if cfg.Referer == "" && info.BaseURL != "" {
		cfg.Referer = strings.TrimRight(info.BaseURL, "/") + "/"
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Base{
		info:    info,
		session: deps.Sessions.Session(info.MainID, cfg),
		browser: deps.Browser,
		logger:  logger.With("provider", info.ID),
	}
}

// Info returns the provider metadata.
func (b *Base) Info() Info {
	return b.info
}

// Session returns the provider's HTTP session.
func (b *Base) Session() *fetcher.Session {
	return b.session
}

// Logger returns a logger tagged with the provider id.
func (b *Base) Logger() *slog.Logger {
	return b.logger
}

// Browser returns the injected browser capability, or nil.
func (b *Base) Browser() Browser {
	return b.browser
}

// Search is unsupported unless overridden.
func (b *Base) Search(context.Context, string, Values) ([]domain.SearchResult, error) {
	return nil, errors.Unsupported(b.info.ID + " does not support search")
}

// MostPopulars is unsupported unless overridden.
func (b *Base) MostPopulars(context.Context, Values) ([]domain.SearchResult, error) {
	return nil, errors.Unsupported(b.info.ID + " does not list popular works")
}

// GetCoverImage fetches a cover with the provider's referer and converts
// WEBP to JPEG.
func (b *Base) GetCoverImage(ctx context.Context, rawURL string) (*PageImage, error) {
	if rawURL == "" {
		return nil, errors.Validation("cover url is empty")
	}
	img, err := b.session.FetchImage(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	data, mediaType, err := codec.Normalize(img.Data)
	if err != nil {
		return nil, err
	}
	return &PageImage{Data: data, MediaType: mediaType, Name: "cover." + codec.Extension(mediaType)}, nil
}

// GetMangaURL returns url when set, otherwise BaseURL/slug.
func (b *Base) GetMangaURL(slug, rawURL string) string {
	if rawURL != "" {
		return rawURL
	}
	return strings.TrimRight(b.info.BaseURL, "/") + "/" + url.PathEscape(slug)
}

// Login is unsupported unless overridden.
func (b *Base) Login(context.Context, string, string, string) (bool, error) {
	return false, errors.Unsupported(b.info.ID + " has no login")
}

// UpdateChapterReadProgress does nothing unless the provider syncs upstream.
func (b *Base) UpdateChapterReadProgress(context.Context, ReadProgress) error {
	return nil
}

// FetchPage GETs a page image, normalizes its format and names it name, or
// after the URL's last segment when name is empty. MRI pages are unwrapped
// to WEBP first.
func (b *Base) FetchPage(ctx context.Context, rawURL, name string, opts ...fetcher.RequestOption) (*PageImage, error) {
	img, err := b.fetchPageBytes(ctx, rawURL, opts)
	if err != nil {
		return nil, err
	}
	data, mediaType, err := codec.Normalize(img.Data)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = img.Name
	}
	return &PageImage{Data: data, MediaType: mediaType, Name: WithExtension(name, mediaType)}, nil
}

func (b *Base) fetchPageBytes(ctx context.Context, rawURL string, opts []fetcher.RequestOption) (*fetcher.Image, error) {
	if !isMRI(rawURL) {
		return b.session.FetchImage(ctx, rawURL, opts...)
	}
	resp, err := b.session.Get(ctx, rawURL, opts...)
	if err != nil {
		return nil, err
	}
	return &fetcher.Image{Data: codec.MRIToWebP(resp.Body), MediaType: "image/webp", Name: fetcher.FileName(resp.URL)}, nil
}

func isMRI(rawURL string) bool {
	u, err := url.Parse(rawURL)
	return err == nil && strings.EqualFold(path.Ext(u.Path), ".mri")
}

// htmlTagPattern matches common HTML tags to detect if a string contains HTML.
var htmlTagPattern = regexp.MustCompile(`<(p|br|div|span|b|i|strong|em|a|ul|ol|li|h[1-6]|blockquote)[\s>/]`)

// Synopsis converts an HTML description to Markdown. Plain text is returned
// trimmed.
func Synopsis(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !htmlTagPattern.MatchString(strings.ToLower(s)) {
		return s
	}
	markdown, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return s
	}
	return strings.TrimSpace(markdown)
}

// HashedName derives a stable page file name from a source identifier.
func HashedName(source, mediaType string) string {
	sum := blake2b.Sum256([]byte(source))
	return hex.EncodeToString(sum[:16]) + "." + codec.Extension(mediaType)
}

// IndexedName names a page after its 1-based position.
func IndexedName(index int, mediaType string) string {
	return fmt.Sprintf("%03d.%s", index+1, codec.Extension(mediaType))
}

// WithExtension replaces the extension of name with the one matching
// mediaType; names without extension get one appended.
func WithExtension(name, mediaType string) string {
	if name == "" {
		return ""
	}
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	return name + "." + codec.Extension(mediaType)
}
