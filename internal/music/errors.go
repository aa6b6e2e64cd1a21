package music

import (
	"errors"
	"fmt"
)

// Sentinel errors for music service operations.
var (
	ErrRateLimited = errors.New("music: rate limited by server")
	ErrBadRequest  = errors.New("music: bad request")
	ErrServer      = errors.New("music: server error")
	ErrEmptyTrack  = errors.New("music: response carried no track url")
)

// Error wraps an underlying error with request context.
type Error struct {
	Op           string // "generate"
	DocumentID   string
	ChapterIndex int
	Err          error
}

func (e *Error) Error() string {
	return fmt.Sprintf("music %s [%s#%d]: %v", e.Op, e.DocumentID, e.ChapterIndex, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrapError(op, documentID string, chapterIndex int, err error) error {
	return &Error{
		Op:           op,
		DocumentID:   documentID,
		ChapterIndex: chapterIndex,
		Err:          err,
	}
}
