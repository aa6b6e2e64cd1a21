package chaptersync

import "github.com/pagetune/pagetune-server/internal/domain"

// NoChapter is returned when no chapter is active for a position.
const NoChapter = -1

// Resolve returns the index of the active chapter for pos, or NoChapter.
//
// Paginated positions scan from the end for the first chapter starting at or
// before the current page, so among chapters sharing a page the last one in
// list order wins. Sequential positions index the list directly.
func Resolve(chapters []domain.Chapter, pos domain.ReadingPosition) int {
	switch pos.Kind {
	case domain.Paginated:
		for i := len(chapters) - 1; i >= 0; i-- {
			if chapters[i].Page <= pos.CurrentPage {
				return i
			}
		}
	case domain.Sequential:
		if pos.CurrentChapterIndex >= 0 && pos.CurrentChapterIndex < len(chapters) {
			return pos.CurrentChapterIndex
		}
	}
	return NoChapter
}
