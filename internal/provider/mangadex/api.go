package mangadex

import "time"

type localized map[string]string

// pick returns the value for lang, then English, then any value.
func (l localized) pick(lang string) string {
	if v := l[lang]; v != "" {
		return v
	}
	if v := l["en"]; v != "" {
		return v
	}
	for _, v := range l {
		if v != "" {
			return v
		}
	}
	return ""
}

type relationship struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes struct {
		Name     string `json:"name"`
		FileName string `json:"fileName"`
	} `json:"attributes"`
}

type tag struct {
	Attributes struct {
		Name  localized `json:"name"`
		Group string    `json:"group"`
	} `json:"attributes"`
}

type manga struct {
	ID         string `json:"id"`
	Attributes struct {
		Title                  localized   `json:"title"`
		AltTitles              []localized `json:"altTitles"`
		Description            localized   `json:"description"`
		Status                 string      `json:"status"`
		PublicationDemographic string      `json:"publicationDemographic"`
		ContentRating          string      `json:"contentRating"`
		Tags                   []tag       `json:"tags"`
	} `json:"attributes"`
	Relationships []relationship `json:"relationships"`
}

type mangaResponse struct {
	Result string `json:"result"`
	Data   manga  `json:"data"`
}

type mangaListResponse struct {
	Result string  `json:"result"`
	Data   []manga `json:"data"`
	Total  int     `json:"total"`
}

type chapter struct {
	ID         string `json:"id"`
	Attributes struct {
		Title              string    `json:"title"`
		Volume             string    `json:"volume"`
		Chapter            string    `json:"chapter"`
		TranslatedLanguage string    `json:"translatedLanguage"`
		ExternalURL        string    `json:"externalUrl"`
		PublishAt          time.Time `json:"publishAt"`
		Pages              int       `json:"pages"`
	} `json:"attributes"`
	Relationships []relationship `json:"relationships"`
}

type feedResponse struct {
	Result string    `json:"result"`
	Data   []chapter `json:"data"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
	Total  int       `json:"total"`
}

type atHomeResponse struct {
	Result  string `json:"result"`
	BaseURL string `json:"baseUrl"`
	Chapter struct {
		Hash string   `json:"hash"`
		Data []string `json:"data"`
	} `json:"chapter"`
}
