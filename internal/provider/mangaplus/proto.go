package mangaplus

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/mangashelf/mangashelf/internal/errors"
)

// Field numbers of the web API messages.
const (
	responseSuccess = 1
	responseError   = 2

	errorEnglishPopup = 2
	popupBody         = 2

	successAllTitles   = 5
	successRanking     = 6
	successTitleDetail = 8
	successMangaViewer = 10

	titleListTitles = 1

	titleID       = 1
	titleName     = 2
	titleAuthor   = 3
	titlePortrait = 4
	titleLanguage = 7

	detailTitle         = 1
	detailSynopsis      = 3
	detailNextTimestamp = 5
	detailNonAppearance = 8
	detailFirstChapters = 9
	detailLastChapters  = 10

	chapterID        = 2
	chapterName      = 3
	chapterSubTitle  = 4
	chapterStartTime = 6

	viewerPages = 1

	pageMangaPage = 1

	mangaPageImageURL      = 1
	mangaPageEncryptionKey = 5
)

type title struct {
	ID       uint64
	Name     string
	Author   string
	Portrait string
	Language uint64
}

type chapter struct {
	ID       uint64
	Name     string
	SubTitle string
	Start    int64
}

type titleDetail struct {
	Title         title
	Synopsis      string
	NextTimestamp int64
	NonAppearance bool
	Chapters      []chapter
}

type mangaPage struct {
	ImageURL      string
	EncryptionKey string
}

type successResult struct {
	Titles []title
	Detail *titleDetail
	Pages  []mangaPage
}

// apiError is the popup the API returns instead of a success result.
type apiError struct {
	Message string
}

func (e *apiError) Error() string {
	if e.Message == "" {
		return "mangaplus: request failed"
	}
	return "mangaplus: " + e.Message
}

// walk calls fn for every field of a message. Scalars arrive as v, length
// delimited fields as raw.
func walk(b []byte, fn func(num protowire.Number, raw []byte, v uint64)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			fn(num, nil, v)
			b = b[n:]
		case protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			fn(num, raw, 0)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return nil
}

// decodeResponse decodes a Response envelope.
func decodeResponse(b []byte) (*successResult, error) {
	var (
		success *successResult
		apiErr  *apiError
		inner   error
	)
	err := walk(b, func(num protowire.Number, raw []byte, _ uint64) {
		switch num {
		case responseSuccess:
			success, inner = decodeSuccess(raw)
		case responseError:
			apiErr = decodeError(raw)
		}
	})
	if err == nil {
		err = inner
	}
	if err != nil {
		return nil, errors.Decodef("decode mangaplus response: %v", err)
	}
	if apiErr != nil {
		return nil, apiErr
	}
	if success == nil {
		return nil, errors.Decodef("mangaplus response has neither result nor error")
	}
	return success, nil
}

func decodeError(b []byte) *apiError {
	e := &apiError{}
	_ = walk(b, func(num protowire.Number, raw []byte, _ uint64) {
		if num != errorEnglishPopup {
			return
		}
		_ = walk(raw, func(num protowire.Number, raw []byte, _ uint64) {
			if num == popupBody {
				e.Message = string(raw)
			}
		})
	})
	return e
}

func decodeSuccess(b []byte) (*successResult, error) {
	r := &successResult{}
	var inner error
	keep := func(err error) {
		if inner == nil {
			inner = err
		}
	}
	err := walk(b, func(num protowire.Number, raw []byte, _ uint64) {
		switch num {
		case successAllTitles, successRanking:
			keep(walk(raw, func(num protowire.Number, raw []byte, _ uint64) {
				if num == titleListTitles {
					t, err := decodeTitle(raw)
					keep(err)
					r.Titles = append(r.Titles, t)
				}
			}))
		case successTitleDetail:
			d, err := decodeTitleDetail(raw)
			keep(err)
			r.Detail = d
		case successMangaViewer:
			keep(walk(raw, func(num protowire.Number, raw []byte, _ uint64) {
				if num != viewerPages {
					return
				}
				keep(walk(raw, func(num protowire.Number, raw []byte, _ uint64) {
					if num == pageMangaPage {
						p, err := decodeMangaPage(raw)
						keep(err)
						r.Pages = append(r.Pages, p)
					}
				}))
			}))
		}
	})
	if err != nil {
		return nil, err
	}
	return r, inner
}

func decodeTitle(b []byte) (title, error) {
	var t title
	err := walk(b, func(num protowire.Number, raw []byte, v uint64) {
		switch num {
		case titleID:
			t.ID = v
		case titleName:
			t.Name = string(raw)
		case titleAuthor:
			t.Author = string(raw)
		case titlePortrait:
			t.Portrait = string(raw)
		case titleLanguage:
			t.Language = v
		}
	})
	return t, err
}

func decodeChapter(b []byte) (chapter, error) {
	var c chapter
	err := walk(b, func(num protowire.Number, raw []byte, v uint64) {
		switch num {
		case chapterID:
			c.ID = v
		case chapterName:
			c.Name = string(raw)
		case chapterSubTitle:
			c.SubTitle = string(raw)
		case chapterStartTime:
			c.Start = int64(v)
		}
	})
	return c, err
}

func decodeTitleDetail(b []byte) (*titleDetail, error) {
	d := &titleDetail{}
	var inner error
	err := walk(b, func(num protowire.Number, raw []byte, v uint64) {
		var err error
		switch num {
		case detailTitle:
			d.Title, err = decodeTitle(raw)
		case detailSynopsis:
			d.Synopsis = string(raw)
		case detailNextTimestamp:
			d.NextTimestamp = int64(v)
		case detailNonAppearance:
			d.NonAppearance = true
		case detailFirstChapters, detailLastChapters:
			var c chapter
			c, err = decodeChapter(raw)
			d.Chapters = append(d.Chapters, c)
		}
		if err != nil && inner == nil {
			inner = err
		}
	})
	if err != nil {
		return nil, err
	}
	return d, inner
}

func decodeMangaPage(b []byte) (mangaPage, error) {
	var p mangaPage
	err := walk(b, func(num protowire.Number, raw []byte, _ uint64) {
		switch num {
		case mangaPageImageURL:
			p.ImageURL = string(raw)
		case mangaPageEncryptionKey:
			p.EncryptionKey = string(raw)
		}
	})
	return p, err
}
