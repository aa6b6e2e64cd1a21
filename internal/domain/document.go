// Package domain contains the core entities of the PageTune reading service.
package domain

import (
	"cmp"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// DocumentKind is the file format of an uploaded document.
type DocumentKind string

// Supported document kinds.
const (
	KindPDF  DocumentKind = "pdf"
	KindTXT  DocumentKind = "txt"
	KindEPUB DocumentKind = "epub"
)

// Valid reports whether k is a supported kind.
func (k DocumentKind) Valid() bool {
	switch k {
	case KindPDF, KindTXT, KindEPUB:
		return true
	default:
		return false
	}
}

// PositionKind returns how reading position is expressed for this kind.
// PDFs are paginated; text and packaged e-books flow by chapter.
func (k DocumentKind) PositionKind() PositionKind {
	if k == KindPDF {
		return Paginated
	}
	return Sequential
}

// KindFromFilename sniffs the document kind from a file extension.
func KindFromFilename(name string) (DocumentKind, bool) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	kind := DocumentKind(ext)
	return kind, kind.Valid()
}

// Document is a book on the shelf together with its chapter markers.
type Document struct {
	ID         string       `json:"id"`
	Title      string       `json:"title"`
	Author     string       `json:"author,omitempty"`
	Kind       DocumentKind `json:"kind"`
	FileURL    string       `json:"file_url,omitempty"`
	TotalPages int          `json:"total_pages,omitempty"`
	Chapters   []Chapter    `json:"chapters"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// StartPosition returns the position a fresh read begins at.
func (d *Document) StartPosition() ReadingPosition {
	if d.Kind.PositionKind() == Paginated {
		return PagePosition(1, d.TotalPages)
	}
	return ChapterPosition(0, len(d.Chapters))
}

// Chapter is a music cue that starts at a given page.
type Chapter struct {
	Title    string `json:"title"`
	Page     int    `json:"page"`
	MusicURL string `json:"music_url,omitempty"`
}

// ChaptersSorted reports whether chapters are ascending by page.
func ChaptersSorted(chapters []Chapter) bool {
	return slices.IsSortedFunc(chapters, compareChapterPage)
}

// SortChapters orders chapters ascending by page. The sort is stable so
// chapters sharing a page keep their relative order.
func SortChapters(chapters []Chapter) {
	slices.SortStableFunc(chapters, compareChapterPage)
}

func compareChapterPage(a, b Chapter) int {
	return cmp.Compare(a.Page, b.Page)
}
