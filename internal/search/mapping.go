package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve index mapping for shelf documents.
//
// Title is the primary target with English stemming. Author uses the
// simple analyzer so names are not stemmed. Display fields are stored but
// not indexed.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	// --- Text fields (full-text searchable) ---

	titleFieldMapping := bleve.NewTextFieldMapping()
	titleFieldMapping.Analyzer = en.AnalyzerName
	titleFieldMapping.Store = false
	docMapping.AddFieldMappingsAt("title", titleFieldMapping)

	authorFieldMapping := bleve.NewTextFieldMapping()
	authorFieldMapping.Analyzer = simple.Name
	authorFieldMapping.Store = false
	docMapping.AddFieldMappingsAt("author", authorFieldMapping)

	chaptersFieldMapping := bleve.NewTextFieldMapping()
	chaptersFieldMapping.Analyzer = en.AnalyzerName
	chaptersFieldMapping.Store = false
	docMapping.AddFieldMappingsAt("chapters", chaptersFieldMapping)

	// --- Display fields (stored only) ---

	for _, field := range []string{"display_title", "display_author"} {
		fm := bleve.NewTextFieldMapping()
		fm.Index = false
		fm.Store = true
		docMapping.AddFieldMappingsAt(field, fm)
	}

	// --- Keyword fields (exact match) ---

	kindFieldMapping := bleve.NewTextFieldMapping()
	kindFieldMapping.Analyzer = keyword.Name
	kindFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("kind", kindFieldMapping)

	sortTitleFieldMapping := bleve.NewTextFieldMapping()
	sortTitleFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("sort_title", sortTitleFieldMapping)

	idFieldMapping := bleve.NewTextFieldMapping()
	idFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("id", idFieldMapping)

	// --- Numeric fields (sorting) ---

	createdAtFieldMapping := bleve.NewNumericFieldMapping()
	createdAtFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("created_at", createdAtFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}
