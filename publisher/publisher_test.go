package publisher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miro_ideation_relay/board"
	"miro_ideation_relay/logging"
)

type scriptedUploader struct {
	errs  []error
	calls int
	last  board.ImageUpload
}

func (u *scriptedUploader) UploadImage(_ context.Context, _ string, up board.ImageUpload) (string, error) {
	u.calls++
	u.last = up
	if u.calls <= len(u.errs) && u.errs[u.calls-1] != nil {
		return "", u.errs[u.calls-1]
	}
	return "item-1", nil
}

func newTestPublisher(t *testing.T, u Uploader) (*Publisher, *[]time.Duration) {
	t.Helper()
	p, err := New(u, 3, 2*time.Second, logging.Discard())
	require.NoError(t, err)
	var slept []time.Duration
	p.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return p, &slept
}

func TestPublishGivesUpAfterThreeAttempts(t *testing.T) {
	fail := &board.StatusError{Op: "upload image", StatusCode: 500}
	u := &scriptedUploader{errs: []error{fail, fail, fail, fail}}
	p, slept := newTestPublisher(t, u)

	err := p.Publish(context.Background(), "b1", []byte("png"), board.NewPlacement(nil, nil), "t")
	require.Error(t, err)

	var pubErr *Error
	require.True(t, errors.As(err, &pubErr))
	assert.Equal(t, 3, pubErr.Attempts)
	var statusErr *board.StatusError
	assert.True(t, errors.As(err, &statusErr), "last failure is wrapped")

	assert.Equal(t, 3, u.calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, *slept, "no wait after the last attempt")
}

func TestPublishStopsOnFirstSuccess(t *testing.T) {
	u := &scriptedUploader{errs: []error{errors.New("connection reset")}}
	p, slept := newTestPublisher(t, u)

	err := p.Publish(context.Background(), "b1", []byte("png"), board.NewPlacement(nil, nil), "My title")
	require.NoError(t, err)
	assert.Equal(t, 2, u.calls)
	assert.Len(t, *slept, 1)
	assert.Equal(t, "My title", u.last.Title)
	assert.Equal(t, "image.png", u.last.FileName)
	assert.Equal(t, []byte("png"), u.last.Image)
}

func TestPublishCancelledWhileWaiting(t *testing.T) {
	u := &scriptedUploader{errs: []error{errors.New("boom")}}
	p, err := New(u, 3, time.Hour, logging.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = p.Publish(ctx, "b1", []byte("png"), board.NewPlacement(nil, nil), "t")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, u.calls)
}

func TestPublishRejectsEmptyImage(t *testing.T) {
	u := &scriptedUploader{}
	p, _ := newTestPublisher(t, u)
	assert.Error(t, p.Publish(context.Background(), "b1", nil, board.NewPlacement(nil, nil), "t"))
	assert.Zero(t, u.calls)
}

func TestPublishAgainstBoardAPI(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/v2/boards/b1/images", r.URL.Path)
		if assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			f, _, err := r.FormFile("resource")
			if assert.NoError(t, err) {
				body, _ := io.ReadAll(f)
				assert.Equal(t, "png-bytes", string(body), "body is rebuilt for every attempt")
			}
		}
		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"img-9"}`)
	}))
	defer srv.Close()

	p, _ := newTestPublisher(t, board.NewClient(srv.URL, "tok", logging.Discard()))
	err := p.Publish(context.Background(), "b1", []byte("png-bytes"), board.NewPlacement(nil, nil), "t")
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "short – idea", Title("short"))
	long := "Users struggle to find settings in the mobile app menu"
	assert.Equal(t, "Users struggle to find settings in the m – idea", Title(long))
	assert.Equal(t, strings.Repeat("é", 40)+" – idea", Title(strings.Repeat("é", 50)), "cut on runes, not bytes")
}
