// Package publisher delivers generated images to a board.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"miro_ideation_relay/board"
	"miro_ideation_relay/logging"
)

const (
	DefaultAttempts = 3
	DefaultDelay    = 2 * time.Second

	titleRunes  = 40
	titleSuffix = " – idea"
)

// Uploader creates one image on a board.
type Uploader interface {
	UploadImage(ctx context.Context, boardID string, up board.ImageUpload) (string, error)
}

// Error is returned once every attempt to publish an image has failed.
type Error struct {
	BoardID  string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("publish to board %s failed after %d attempts: %v", e.BoardID, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Publisher uploads images with a fixed delay between attempts.
type Publisher struct {
	uploader Uploader
	attempts int
	delay    time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *logging.Logger
}

// New creates a Publisher. Non-positive attempts or a negative delay fall
// back to the defaults.
func New(uploader Uploader, attempts int, delay time.Duration, logger *logging.Logger) (*Publisher, error) {
	if uploader == nil {
		return nil, errors.New("board uploader required")
	}
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if delay < 0 {
		delay = DefaultDelay
	}
	return &Publisher{
		uploader: uploader,
		attempts: attempts,
		delay:    delay,
		sleep:    sleepContext,
		logger:   logger,
	}, nil
}

// Publish places image on the board. Any transport error or non-2xx answer
// counts as a failed attempt; the first success ends the loop.
func (p *Publisher) Publish(ctx context.Context, boardID string, image []byte, placement board.Placement, title string) error {
	if len(image) == 0 {
		return errors.New("nothing to publish: empty image")
	}
	up := board.ImageUpload{
		Image:     image,
		FileName:  "image.png",
		Placement: placement,
		Title:     title,
	}

	var lastErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		id, err := p.uploader.UploadImage(ctx, boardID, up)
		if err == nil {
			p.logger.Infof("published %q to board %s as %s (attempt %d)", title, boardID, id, attempt)
			return nil
		}
		lastErr = err
		p.logger.Warnf("publish attempt %d/%d to board %s failed: %v", attempt, p.attempts, boardID, err)

		if attempt == p.attempts {
			break
		}
		if err := p.sleep(ctx, p.delay); err != nil {
			lastErr = err
			return &Error{BoardID: boardID, Attempts: attempt, Err: lastErr}
		}
	}
	return &Error{BoardID: boardID, Attempts: p.attempts, Err: lastErr}
}

// Title labels a published image with the start of its prompt.
func Title(prompt string) string {
	r := []rune(prompt)
	if len(r) > titleRunes {
		r = r[:titleRunes]
	}
	return string(r) + titleSuffix
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
