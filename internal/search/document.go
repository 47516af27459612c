// Package search keeps a full-text index of the library's works using Bleve.
package search

import (
	"strconv"
	"strings"

	"github.com/mangashelf/mangashelf/internal/domain"
	"github.com/mangashelf/mangashelf/internal/genre"
)

// Document is the indexed form of a work.
type Document struct {
	ID       string
	Name     string
	Authors  string
	Synopsis string
	Provider string
	Status   string
	Genres   []string
	LastRead int64 // Unix seconds
}

// DocumentID is the index id of a work.
func DocumentID(workID int64) string {
	return strconv.FormatInt(workID, 10)
}

// FromWork builds the document for w.
func FromWork(w *domain.Work) *Document {
	genres := make([]string, 0, len(w.Genres))
	for _, g := range w.Genres {
		genres = append(genres, normalizeGenre(g))
	}
	return &Document{
		ID:       DocumentID(w.ID),
		Name:     w.Name,
		Authors:  strings.Join(w.Authors, ", "),
		Synopsis: w.Synopsis,
		Provider: w.ProviderID,
		Status:   string(w.Status),
		Genres:   genres,
		LastRead: w.LastRead.Unix(),
	}
}

// normalizeGenre maps a genre to its canonical slug so filters match
// regardless of how a provider spells it.
func normalizeGenre(g string) string {
	return genre.Canonical(g)
}

// toMap converts the document to the field names of the mapping.
func (d *Document) toMap() map[string]any {
	m := map[string]any{
		"id":        d.ID,
		"name":      d.Name,
		"provider":  d.Provider,
		"last_read": d.LastRead,
	}
	if d.Authors != "" {
		m["authors"] = d.Authors
	}
	if d.Synopsis != "" {
		m["synopsis"] = d.Synopsis
	}
	if d.Status != "" {
		m["status"] = d.Status
	}
	if len(d.Genres) > 0 {
		m["genres"] = d.Genres
	}
	return m
}
