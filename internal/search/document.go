// Package search provides full-text search over the bookshelf using Bleve.
// Titles, authors and chapter titles are accent-folded before indexing so
// "Les Miserables" finds "Les Misérables".
package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/pagetune/pagetune-server/internal/chapters"
	"github.com/pagetune/pagetune-server/internal/domain"
)

// SearchDocument is the indexed form of a domain.Document.
type SearchDocument struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Author   string   `json:"author,omitempty"`
	Kind     string   `json:"kind"`
	Chapters []string `json:"chapters,omitempty"`

	CreatedAt int64 `json:"created_at"` // Unix millis
}

// FromDocument builds the search form of a document. Placeholder chapter
// titles like "Chapter 3" are left out of the index.
func FromDocument(doc *domain.Document) *SearchDocument {
	titles := make([]string, 0, len(doc.Chapters))
	for _, ch := range doc.Chapters {
		if !chapters.IsGenericName(ch.Title) {
			titles = append(titles, ch.Title)
		}
	}
	return &SearchDocument{
		ID:        doc.ID,
		Title:     doc.Title,
		Author:    doc.Author,
		Kind:      string(doc.Kind),
		Chapters:  titles,
		CreatedAt: doc.CreatedAt.UnixMilli(),
	}
}

// ToMap converts the document to the field names of the index mapping.
// Searchable fields are folded; display fields keep the original text.
func (d *SearchDocument) ToMap() map[string]any {
	m := map[string]any{
		"id":             d.ID,
		"kind":           d.Kind,
		"title":          Fold(d.Title),
		"sort_title":     Fold(d.Title),
		"display_title":  d.Title,
		"created_at":     d.CreatedAt,
		"display_author": d.Author,
	}
	if d.Author != "" {
		m["author"] = Fold(d.Author)
	}
	if len(d.Chapters) > 0 {
		folded := make([]string, len(d.Chapters))
		for i, ch := range d.Chapters {
			folded[i] = Fold(ch)
		}
		m["chapters"] = folded
	}
	return m
}

// Fold strips diacritics and lower-cases s.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}
