package pipeline

import (
	"errors"
	"fmt"

	"miro_ideation_relay/board"
)

// ValidationError means the request is missing required input. No outbound
// call has been made when it is returned.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(msg string) error { return &ValidationError{Msg: msg} }

// FetchError means the board could not be read at all, so the request was
// aborted before any generation.
type FetchError struct {
	BoardID string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch items of board %s: %v", e.BoardID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StatusCode is the board API status, or 0 when the board was unreachable.
func (e *FetchError) StatusCode() int {
	var se *board.StatusError
	if errors.As(e.Err, &se) {
		return se.StatusCode
	}
	return 0
}

// GenerationError is a failed model call for one unit of work.
type GenerationError struct {
	SourceID string
	Err      error
}

func (e *GenerationError) Error() string {
	if e.SourceID == "" {
		return fmt.Sprintf("generation failed: %v", e.Err)
	}
	return fmt.Sprintf("generation for %s failed: %v", e.SourceID, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
