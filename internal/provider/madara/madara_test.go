package madara

import (
	"context"
	"fmt"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mangashelf/mangashelf/internal/domain"
	"github.com/mangashelf/mangashelf/internal/fetcher"
	"github.com/mangashelf/mangashelf/internal/logger"
	"github.com/mangashelf/mangashelf/internal/provider"
	"github.com/mangashelf/mangashelf/internal/provider/providertest"
)

const workPage = `<html><body>
<div class="summary_image"><img data-src="%[1]s/cover.png"></div>
<div class="post-title"><h1> Solo Leveling </h1></div>
<div class="author-content"><a>Chugong</a></div>
<div class="genres-content"><a>Action</a><a>Webtoon</a></div>
<div class="post-content_item"><div class="summary-heading">Status</div><div class="summary-content"> OnGoing </div></div>
<div class="description-summary"><div class="summary__content"><p>E-rank hunter.</p></div></div>
<div id="manga-chapters-holder" data-id="42"></div>
</body></html>`

const chapterList = `<ul>
<li class="wp-manga-chapter"><a href="%[1]s/manga/solo-leveling/chapter-2/"> Chapter 2 </a><span class="chapter-release-date"><i>2 days ago</i></span></li>
<li class="wp-manga-chapter"><a href="%[1]s/manga/solo-leveling/chapter-1/">Chapter 1</a><span class="chapter-release-date"><i>March 4, 2018</i></span></li>
</ul>`

const readerPage = `<div class="reading-content">
<div class="page-break"><img data-src=" %[1]s/p/1.png "></div>
<div class="page-break"><img src="%[1]s/p/2.png"></div>
</div>`

func newTestMadara(t *testing.T, handler http.Handler, browser provider.Browser) (*Madara, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	opts := fetcher.DefaultOptions()
	opts.Deadline = 5 * time.Second
	opts.MaxAttempts = 1
	sessions := fetcher.NewRegistry(opts, logger.Discard())
	cfg := Config{Info: provider.Info{ID: "demo", Name: "Demo", Lang: "en", BaseURL: srv.URL}}
	return New(provider.Deps{Sessions: sessions, Logger: logger.Discard(), Browser: browser}, cfg), srv
}

func TestGetMangaData_AjaxChapters(t *testing.T) {
	var srvURL string
	var ajaxForm string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /manga/solo-leveling/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, workPage, srvURL)
	})
	mux.HandleFunc("POST /manga/solo-leveling/ajax/chapters/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("POST /wp-admin/admin-ajax.php", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		ajaxForm = r.PostForm.Encode()
		assert.Equal(t, "XMLHttpRequest", r.Header.Get("X-Requested-With"))
		fmt.Fprintf(w, chapterList, srvURL)
	})
	p, srv := newTestMadara(t, mux, nil)
	srvURL = srv.URL

	res := p.GetMangaData(context.Background(), domain.Seed{Slug: "solo-leveling"})
	require.Equal(t, provider.ResultOK, res.Kind, res.Err)
	w := res.Work

	assert.Equal(t, "Solo Leveling", w.Name)
	assert.Equal(t, []string{"Chugong"}, w.Authors)
	assert.Equal(t, []string{"Action", "Webtoon"}, w.Genres)
	assert.Equal(t, domain.StatusOngoing, w.Status)
	assert.Equal(t, "E-rank hunter.", w.Synopsis)
	assert.Equal(t, srv.URL+"/cover.png", w.Cover)
	assert.Equal(t, "action=manga_get_chapters&manga=42", ajaxForm)

	require.Len(t, w.Chapters, 2)
	assert.Equal(t, "chapter-1", w.Chapters[0].Slug)
	assert.Equal(t, "Chapter 1", w.Chapters[0].Title)
	require.NotNil(t, w.Chapters[0].Date)
	assert.Equal(t, time.Date(2018, 3, 4, 0, 0, 0, 0, time.UTC), *w.Chapters[0].Date)
	assert.Equal(t, "chapter-2", w.Chapters[1].Slug)
	assert.Equal(t, "Chapter 2", w.Chapters[1].Title)
}

func TestGetMangaData_NotFound(t *testing.T) {
	p, _ := newTestMadara(t, http.NotFoundHandler(), nil)
	res := p.GetMangaData(context.Background(), domain.Seed{Slug: "missing"})
	assert.Equal(t, provider.ResultNotFound, res.Kind)
}

func TestChapterPagesAndImage(t *testing.T) {
	var srvURL, referer string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /manga/solo-leveling/chapter-1/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "list", r.URL.Query().Get("style"))
		fmt.Fprintf(w, readerPage, srvURL)
	})
	mux.HandleFunc("GET /p/{file}", func(w http.ResponseWriter, r *http.Request) {
		referer = r.Header.Get("Referer")
		_, _ = w.Write(providertest.PNG(color.Black))
	})
	p, srv := newTestMadara(t, mux, nil)
	srvURL = srv.URL

	ctx := context.Background()
	manifest, err := p.GetChapterData(ctx, "solo-leveling", "Solo Leveling", "chapter-1", "")
	require.NoError(t, err)
	require.Len(t, manifest.Pages, 2)
	assert.Equal(t, srv.URL+"/p/1.png", manifest.Pages[0].Image)

	img, err := p.GetPageImage(ctx, "solo-leveling", "Solo Leveling", "chapter-1", manifest.Pages[1])
	require.NoError(t, err)
	assert.Equal(t, "2.png", img.Name)
	assert.Equal(t, srv.URL+"/manga/solo-leveling/chapter-1/", referer)
}

type cookieBrowser struct{ calls int }

func (b *cookieBrowser) Navigate(_ context.Context, url string) (*provider.BrowserPage, error) {
	b.calls++
	return &provider.BrowserPage{URL: url, Cookies: []*http.Cookie{{Name: "cf_clearance", Value: "ok", Path: "/"}}}, nil
}

func TestChallengePassedWithBrowser(t *testing.T) {
	var srvURL string
	p, srv := newTestMadara(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("cf_clearance"); err != nil {
			w.Header().Set("Cf-Mitigated", "challenge")
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprintf(w, `<div class="c-tabs-item__content"><div class="post-title"><h3><a href="%s/manga/found/">Found</a></h3></div></div>`, srvURL)
	}), nil)
	srvURL = srv.URL

	_, err := p.Search(context.Background(), "x", nil)
	require.Error(t, err, "without a browser the challenge is not passed")

	browser := &cookieBrowser{}
	p, _ = newTestMadara(t, nil, browser)
	p.cfg.BaseURL = srv.URL
	results, err := p.Search(context.Background(), "x", nil)
	require.NoError(t, err)
	assert.Equal(t, []domain.SearchResult{{Slug: "found", Name: "Found"}}, results)
	assert.Equal(t, 1, browser.calls)
}

func TestParseDate(t *testing.T) {
	m := &Madara{cfg: Config{DateLayout: "January 2, 2006"}}
	now := time.Date(2024, 6, 10, 15, 0, 0, 0, time.UTC)

	for in, want := range map[string]time.Time{
		"May 1, 2024": time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		"3 hours ago": time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		"1 day ago":   time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC),
		"2 weeks ago": time.Date(2024, 5, 27, 0, 0, 0, 0, time.UTC),
		"1 month ago": time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
	} {
		got, ok := m.parseDate(in, now)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := m.parseDate("sometime", now)
	assert.False(t, ok)
}
