package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the mapping for work documents. Names use the
// standard analyzer rather than an English stemmer since titles are often
// romanized Japanese or Korean.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = standard.Name

	docMapping := bleve.NewDocumentMapping()

	text := func(field string, store bool) {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = standard.Name
		fm.Store = store
		fm.IncludeTermVectors = store
		docMapping.AddFieldMappingsAt(field, fm)
	}
	text("name", true)
	text("authors", true)
	text("synopsis", false)

	kw := func(field string, store bool) {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = keyword.Name
		fm.Store = store
		docMapping.AddFieldMappingsAt(field, fm)
	}
	kw("id", false)
	kw("provider", true)
	kw("status", true)
	kw("genres", true)

	lastRead := bleve.NewNumericFieldMapping()
	lastRead.Store = true
	docMapping.AddFieldMappingsAt("last_read", lastRead)

	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping
}
