package mangadex

import (
	"context"
	"encoding/json"
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

const mangaID = "a96676e5-8ae2-425e-b549-7f15dd34a6d8"

func newTestProvider(t *testing.T, handler http.Handler) *MangaDex {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	opts := fetcher.DefaultOptions()
	opts.Deadline = 5 * time.Second
	opts.MaxAttempts = 1
	sessions := fetcher.NewRegistry(opts, logger.Discard())
	t.Cleanup(func() { _ = sessions.Close() })

	return New(provider.Deps{Sessions: sessions, Logger: logger.Discard()}, newInfo("en"), WithEndpoints(srv.URL, srv.URL))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func mangaBody() map[string]any {
	return map[string]any{
		"result": "ok",
		"data": map[string]any{
			"id": mangaID,
			"attributes": map[string]any{
				"title":       map[string]string{"en": "Komi Can't Communicate"},
				"description": map[string]string{"en": "Shy girl.\n\nBig heart."},
				"status":      "completed",
				"tags": []map[string]any{
					{"attributes": map[string]any{"name": map[string]string{"en": "Comedy"}}},
					{"attributes": map[string]any{"name": map[string]string{"en": "Long Strip"}}},
				},
			},
			"relationships": []map[string]any{
				{"id": "a1", "type": "author", "attributes": map[string]string{"name": "Oda Tomohito"}},
				{"id": "a1", "type": "artist", "attributes": map[string]string{"name": "Oda Tomohito"}},
				{"id": "c1", "type": "cover_art", "attributes": map[string]string{"fileName": "cover.png"}},
			},
		},
	}
}

func feedChapter(id, vol, num, title string) map[string]any {
	return map[string]any{
		"id": id,
		"attributes": map[string]any{
			"volume": vol, "chapter": num, "title": title,
			"translatedLanguage": "en",
			"publishAt":          "2024-03-05T17:30:00+00:00",
		},
		"relationships": []map[string]any{
			{"id": "g1", "type": "scanlation_group", "attributes": map[string]string{"name": "Group A"}},
		},
	}
}

func TestGetMangaData(t *testing.T) {
	var offsets []string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /manga/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != mangaID {
			http.NotFound(w, r)
			return
		}
		assert.ElementsMatch(t, []string{"author", "artist", "cover_art"}, r.URL.Query()["includes[]"])
		writeJSON(w, mangaBody())
	})
	mux.HandleFunc("GET /manga/{id}/feed", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		offsets = append(offsets, q.Get("offset"))
		assert.Equal(t, []string{"en"}, q["translatedLanguage[]"])
		data := []map[string]any{feedChapter("ch-1", "1", "1", "Start")}
		if q.Get("offset") != "0" {
			external := feedChapter("ch-x", "", "2", "")
			external["attributes"].(map[string]any)["externalUrl"] = "https://elsewhere.test"
			data = []map[string]any{feedChapter("ch-2", "", "", ""), external}
		}
		writeJSON(w, map[string]any{"result": "ok", "data": data, "limit": 500, "offset": 0, "total": 501})
	})
	p := newTestProvider(t, mux)

	res := p.GetMangaData(context.Background(), domain.Seed{Slug: mangaID})
	require.Equal(t, provider.ResultOK, res.Kind, res.Err)
	w := res.Work

	assert.Equal(t, "Komi Can't Communicate", w.Name)
	assert.Equal(t, domain.StatusComplete, w.Status)
	assert.Equal(t, []string{"Oda Tomohito"}, w.Authors)
	assert.Equal(t, []string{"Comedy", "Long Strip"}, w.Genres)
	assert.Equal(t, []string{"Group A"}, w.Scanlators)
	assert.Equal(t, "mangadex", w.ServerID)
	assert.Contains(t, w.Cover, "/covers/"+mangaID+"/cover.png.512.jpg")
	assert.Equal(t, []string{"0", "500"}, offsets)

	require.Len(t, w.Chapters, 2)
	assert.Equal(t, "ch-1", w.Chapters[0].Slug)
	assert.Equal(t, "Vol. 1 Ch. 1 - Start", w.Chapters[0].Title)
	require.NotNil(t, w.Chapters[0].Date)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), *w.Chapters[0].Date)
	assert.Equal(t, "Oneshot", w.Chapters[1].Title)
}

func TestGetMangaData_NotFound(t *testing.T) {
	p := newTestProvider(t, http.NotFoundHandler())
	res := p.GetMangaData(context.Background(), domain.Seed{Slug: "gone"})
	assert.Equal(t, provider.ResultNotFound, res.Kind)
}

func TestGetMangaData_ServerError(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	res := p.GetMangaData(context.Background(), domain.Seed{Slug: mangaID})
	assert.Equal(t, provider.ResultFailed, res.Kind)
	assert.Error(t, res.Err)
}

func TestSearchFilters(t *testing.T) {
	var query map[string][]string
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		writeJSON(w, map[string]any{"result": "ok", "total": 1, "data": []any{mangaBody()["data"]}})
	}))

	results, err := p.Search(context.Background(), "komi", provider.Values{"statuses": []string{"completed"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, mangaID, results[0].Slug)
	assert.Equal(t, "Komi Can't Communicate", results[0].Name)

	assert.Equal(t, []string{"komi"}, query["title"])
	assert.Equal(t, []string{"safe", "suggestive"}, query["contentRating[]"])
	assert.Equal(t, []string{"completed"}, query["status[]"])
	assert.Equal(t, []string{"desc"}, query["order[relevance]"])
}

func TestMostPopulars(t *testing.T) {
	var order string
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = r.URL.Query().Get("order[followedCount]")
		writeJSON(w, map[string]any{"result": "ok", "data": []any{}})
	}))
	results, err := p.MostPopulars(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, "desc", order)
}

func TestChapterPages(t *testing.T) {
	atHomeCalls := 0
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /at-home/server/{id}", func(w http.ResponseWriter, r *http.Request) {
		atHomeCalls++
		writeJSON(w, map[string]any{
			"result":  "ok",
			"baseUrl": srvURL,
			"chapter": map[string]any{"hash": "h4sh", "data": []string{"1-a.png", "2-b.png"}},
		})
	})
	mux.HandleFunc("GET /data/h4sh/{file}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(providertest.PNG(color.White))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	srvURL = srv.URL

	opts := fetcher.DefaultOptions()
	opts.Deadline = 5 * time.Second
	sessions := fetcher.NewRegistry(opts, logger.Discard())
	p := New(provider.Deps{Sessions: sessions}, newInfo("fr"), WithEndpoints(srv.URL, srv.URL))
	assert.Equal(t, "mangadex_fr", p.Info().ID)
	assert.Equal(t, "mangadex", p.Info().MainID)

	ctx := context.Background()
	manifest, err := p.GetChapterData(ctx, mangaID, "Komi", "ch-1", "")
	require.NoError(t, err)
	assert.Equal(t, []domain.Page{{Slug: "h4sh/1-a.png"}, {Slug: "h4sh/2-b.png"}}, manifest.Pages)

	img, err := p.GetPageImage(ctx, mangaID, "Komi", "ch-1", manifest.Pages[1])
	require.NoError(t, err)
	assert.Equal(t, "2-b.png", img.Name)
	assert.Equal(t, "image/png", img.MediaType)
	assert.Equal(t, 1, atHomeCalls, "cached at-home base is reused")
}

func TestChapterTitle(t *testing.T) {
	c := chapter{}
	c.Attributes.Chapter = "12.5"
	assert.Equal(t, "Ch. 12.5", chapterTitle(c))
	c.Attributes.Title = "Bonus"
	assert.Equal(t, "Ch. 12.5 - Bonus", chapterTitle(c))
	c.Attributes.Chapter = ""
	assert.Equal(t, "Bonus", chapterTitle(c))
}

func TestGetMangaURL(t *testing.T) {
	p := New(provider.Deps{Sessions: fetcher.NewRegistry(fetcher.DefaultOptions(), logger.Discard())}, newInfo("en"))
	assert.Equal(t, "https://mangadex.org/title/abc", p.GetMangaURL("abc", ""))
}
