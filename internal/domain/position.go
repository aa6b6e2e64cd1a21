package domain

import "fmt"

// PositionKind discriminates ReadingPosition variants.
type PositionKind string

// Position kinds.
const (
	Paginated  PositionKind = "paginated"
	Sequential PositionKind = "sequential"
)

// ReadingPosition is where the reader currently is. Paginated documents use
// CurrentPage/TotalPages; sequential documents use
// CurrentChapterIndex/TotalChapters. The other pair stays zero.
type ReadingPosition struct {
	Kind                PositionKind `json:"kind"`
	CurrentPage         int          `json:"current_page,omitempty"`
	TotalPages          int          `json:"total_pages,omitempty"`
	CurrentChapterIndex int          `json:"current_chapter_index,omitempty"`
	TotalChapters       int          `json:"total_chapters,omitempty"`
}

// PagePosition builds a paginated position.
func PagePosition(page, total int) ReadingPosition {
	return ReadingPosition{Kind: Paginated, CurrentPage: page, TotalPages: total}
}

// ChapterPosition builds a sequential position.
func ChapterPosition(index, total int) ReadingPosition {
	return ReadingPosition{Kind: Sequential, CurrentChapterIndex: index, TotalChapters: total}
}

// Percentage returns progress through the document in [0, 100].
func (p ReadingPosition) Percentage() float64 {
	var current, total int
	switch p.Kind {
	case Paginated:
		current, total = p.CurrentPage, p.TotalPages
	case Sequential:
		current, total = p.CurrentChapterIndex, p.TotalChapters
	}
	if total <= 0 {
		return 0
	}
	pct := float64(current) / float64(total) * 100
	return min(max(pct, 0), 100)
}

// Next advances one page or chapter, clamped to the end of the document.
func (p ReadingPosition) Next() ReadingPosition {
	switch p.Kind {
	case Paginated:
		p.CurrentPage = clamp(p.CurrentPage+1, 1, p.TotalPages)
	case Sequential:
		p.CurrentChapterIndex = clamp(p.CurrentChapterIndex+1, 0, p.TotalChapters-1)
	}
	return p
}

// Prev steps back one page or chapter, clamped to the start of the document.
func (p ReadingPosition) Prev() ReadingPosition {
	switch p.Kind {
	case Paginated:
		p.CurrentPage = clamp(p.CurrentPage-1, 1, p.TotalPages)
	case Sequential:
		p.CurrentChapterIndex = clamp(p.CurrentChapterIndex-1, 0, p.TotalChapters-1)
	}
	return p
}

// Validate checks the position is well formed for its kind.
func (p ReadingPosition) Validate() error {
	switch p.Kind {
	case Paginated:
		if p.CurrentPage < 1 {
			return fmt.Errorf("current page must be at least 1, got %d", p.CurrentPage)
		}
		if p.TotalPages < 0 {
			return fmt.Errorf("total pages must not be negative, got %d", p.TotalPages)
		}
	case Sequential:
		if p.CurrentChapterIndex < 0 {
			return fmt.Errorf("chapter index must not be negative, got %d", p.CurrentChapterIndex)
		}
		if p.TotalChapters < 0 {
			return fmt.Errorf("total chapters must not be negative, got %d", p.TotalChapters)
		}
	default:
		return fmt.Errorf("unknown position kind %q", p.Kind)
	}
	return nil
}

// clamp bounds v to [lo, hi]. An empty range (hi < lo) yields lo.
func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return min(max(v, lo), hi)
}
