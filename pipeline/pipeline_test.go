package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miro_ideation_relay/board"
	"miro_ideation_relay/cache"
	"miro_ideation_relay/generator"
	"miro_ideation_relay/logging"
)

type fakeResolver struct {
	units   []board.ExtractedText
	err     error
	batch   int
	perItem int
	lastIDs []string
}

func (r *fakeResolver) Resolve(_ context.Context, _ string, ids []string) ([]board.ExtractedText, error) {
	r.batch++
	r.lastIDs = ids
	return r.units, r.err
}

func (r *fakeResolver) ResolveEach(_ context.Context, _ string, ids []string) []board.ExtractedText {
	r.perItem++
	r.lastIDs = ids
	return r.units
}

type fakeGenerator struct {
	suggestions generator.Suggestions
	ideateErr   error
	// sketchErrs[i] fails the i-th Sketch call
	sketchErrs map[int]error
	ideate     int
	sketches   int
	styles     []generator.Style
	themes     []string
}

func (g *fakeGenerator) Ideate(_ context.Context, _ string, _ string) (generator.Suggestions, error) {
	g.ideate++
	return g.suggestions, g.ideateErr
}

func (g *fakeGenerator) Sketch(_ context.Context, theme string, style generator.Style) (generator.Artifact, error) {
	i := g.sketches
	g.sketches++
	g.styles = append(g.styles, style)
	g.themes = append(g.themes, theme)
	if err := g.sketchErrs[i]; err != nil {
		return generator.Artifact{}, err
	}
	return generator.Artifact{Prompt: theme, Image: []byte("img:" + theme)}, nil
}

type published struct {
	boardID   string
	placement board.Placement
	title     string
}

type fakePublisher struct {
	err  error
	sent []published
}

func (p *fakePublisher) Publish(_ context.Context, boardID string, _ []byte, placement board.Placement, title string) error {
	p.sent = append(p.sent, published{boardID: boardID, placement: placement, title: title})
	return p.err
}

type harness struct {
	p   *Pipeline
	res *fakeResolver
	gen *fakeGenerator
	pub *fakePublisher
	mem *cache.Memory
}

func newHarness(t *testing.T, defaultBoard string) *harness {
	t.Helper()
	h := &harness{
		res: &fakeResolver{},
		gen: &fakeGenerator{},
		pub: &fakePublisher{},
		mem: cache.NewMemory(5 * time.Minute),
	}
	p, err := New(Deps{
		Resolver:       h.res,
		Generator:      h.gen,
		Publisher:      h.pub,
		Cache:          h.mem,
		DefaultBoardID: defaultBoard,
		Logger:         logging.Discard(),
	})
	require.NoError(t, err)
	h.p = p
	return h
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)
}

func TestIdeate(t *testing.T) {
	h := newHarness(t, "")
	h.gen.suggestions = generator.Suggestions{
		Raw:   "Idea 1: a\nIdea 2: b\nIdea 3: c",
		Ideas: []string{"a", "b", "c"},
	}

	res, err := h.p.Ideate(context.Background(), IdeateRequest{Content: "Users struggle to find settings"})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "Idea 1: a\nIdea 2: b\nIdea 3: c", res.Suggestions)
	assert.Equal(t, []string{"a", "b", "c"}, res.Ideas)

	again, err := h.p.Ideate(context.Background(), IdeateRequest{Content: "Users struggle to find settings"})
	require.NoError(t, err)
	assert.Equal(t, res.Suggestions, again.Suggestions)
	assert.Equal(t, 1, h.gen.ideate, "second call is served from the cache")

	_, err = h.p.Ideate(context.Background(), IdeateRequest{Content: "Users struggle to find settings", Prompt: "banking"})
	require.NoError(t, err)
	assert.Equal(t, 2, h.gen.ideate, "prompt is part of the cache key")
}

func TestIdeateValidation(t *testing.T) {
	h := newHarness(t, "")
	for _, content := range []string{"", "   ", "<p></p>"} {
		_, err := h.p.Ideate(context.Background(), IdeateRequest{Content: content})
		var ve *ValidationError
		assert.True(t, errors.As(err, &ve), "content %q", content)
	}
	assert.Zero(t, h.gen.ideate)
}

func TestIdeateGenerationError(t *testing.T) {
	h := newHarness(t, "")
	h.gen.ideateErr = errors.New("model timeout")

	_, err := h.p.Ideate(context.Background(), IdeateRequest{Content: "note"})
	var ge *GenerationError
	require.True(t, errors.As(err, &ge))
	assert.ErrorContains(t, err, "model timeout")
	assert.Zero(t, h.mem.Len(), "failures are not cached")
}

func TestImageRequestValidation(t *testing.T) {
	cases := []struct {
		name         string
		defaultBoard string
		req          ImageRequest
	}{
		{"nothing selected", "b1", ImageRequest{}},
		{"blank ids and content", "b1", ImageRequest{SelectedShapeIDs: []string{" ", ""}, Content: "  "}},
		{"no board", "", ImageRequest{Content: "x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, tc.defaultBoard)

			_, err := h.p.Sketches(context.Background(), tc.req)
			var ve *ValidationError
			assert.True(t, errors.As(err, &ve))

			_, err = h.p.ImageIdeas(context.Background(), tc.req)
			assert.True(t, errors.As(err, &ve))

			assert.Zero(t, h.res.batch+h.res.perItem, "no board calls")
			assert.Zero(t, h.gen.sketches, "no model calls")
			assert.Empty(t, h.pub.sent)
		})
	}
}

func TestSketchesContentWinsOverIDs(t *testing.T) {
	h := newHarness(t, "b1")

	res, err := h.p.Sketches(context.Background(), ImageRequest{
		Content:          " <b>remote</b> onboarding ",
		SelectedShapeIDs: []string{"s1"},
	})
	require.NoError(t, err)
	assert.Zero(t, h.res.batch)
	assert.Equal(t, StatusSuccess, res.Status)
	require.Equal(t, 1, res.Count)
	assert.Equal(t, DirectContentID, res.Images[0].ID)
	assert.Equal(t, "remote onboarding", res.Images[0].Prompt)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("img:remote onboarding")), res.Images[0].Base64Image)
	assert.Equal(t, []generator.Style{generator.StyleSketch}, h.gen.styles)
}

func TestSketchesFromBoard(t *testing.T) {
	h := newHarness(t, "")
	h.res.units = []board.ExtractedText{{SourceID: "s1", Text: "one"}, {SourceID: "s2", Text: "two"}}
	h.gen.sketchErrs = map[int]error{0: errors.New("content policy")}

	req := ImageRequest{BoardID: "b1", SelectedShapeIDs: []string{"s1", "s2"}}
	res, err := h.p.Sketches(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, "s2", res.Images[0].ID)
	assert.Equal(t, []string{"s1", "s2"}, h.res.lastIDs)

	_, err = h.p.Sketches(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, h.res.batch, "cached result skips the board")
	assert.Equal(t, 2, h.gen.sketches)
}

func TestSketchesNoValidShapes(t *testing.T) {
	h := newHarness(t, "b1")

	res, err := h.p.Sketches(context.Background(), ImageRequest{SelectedShapeIDs: []string{"missing"}})
	require.NoError(t, err)
	assert.Equal(t, StatusNoValidShapes, res.Status)
	assert.Zero(t, h.gen.sketches)
	assert.Zero(t, h.mem.Len())
}

func TestSketchesFetchError(t *testing.T) {
	h := newHarness(t, "b1")
	h.res.err = &board.StatusError{Op: "list items", StatusCode: 503}

	_, err := h.p.Sketches(context.Background(), ImageRequest{SelectedShapeIDs: []string{"s1"}})
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 503, fe.StatusCode())
	assert.Zero(t, h.gen.sketches)

	assert.Zero(t, (&FetchError{Err: errors.New("dial tcp")}).StatusCode())
}

func TestImageIdeasSkipsFailedGeneration(t *testing.T) {
	h := newHarness(t, "b1")
	h.res.units = []board.ExtractedText{{SourceID: "s1", Text: "first note"}}
	h.gen.sketchErrs = map[int]error{1: errors.New("rate limited")}

	req := ImageRequest{SelectedShapeIDs: []string{"s1"}, Content: "free text"}
	res, err := h.p.ImageIdeas(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 1, res.ImagesAdded)
	assert.Equal(t, 1, res.ImagesFailed)
	assert.Equal(t, []string{"first note", "free text"}, h.gen.themes, "free content comes last")
	assert.Equal(t, []generator.Style{generator.StyleBoard, generator.StyleBoard}, h.gen.styles)

	require.Len(t, h.pub.sent, 1)
	sent := h.pub.sent[0]
	assert.Equal(t, "b1", sent.boardID)
	assert.Equal(t, "first note – idea", sent.title)
	assert.Equal(t, board.NewPlacement(nil, nil), sent.placement)

	_, err = h.p.ImageIdeas(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, h.res.perItem, "board writes are never served from the cache")
	assert.Len(t, h.pub.sent, 2)
}

func TestImageIdeasPublishFailure(t *testing.T) {
	h := newHarness(t, "b1")
	h.pub.err = errors.New("upload failed")

	res, err := h.p.ImageIdeas(context.Background(), ImageRequest{
		Content:      "note",
		PositionData: &board.Position{X: 10, Y: 20},
		GeometryData: &board.Geometry{Width: 300},
	})
	require.NoError(t, err)
	assert.Zero(t, res.ImagesAdded)
	assert.Equal(t, 1, res.ImagesFailed)

	require.Len(t, h.pub.sent, 1)
	pl := h.pub.sent[0].placement
	assert.Equal(t, board.Position{X: 10, Y: 20, Origin: "center"}, pl.Position)
	assert.Equal(t, board.Geometry{Width: 300, Height: 300}, pl.Geometry)
}

func TestImageIdeasNoValidShapes(t *testing.T) {
	h := newHarness(t, "b1")

	res, err := h.p.ImageIdeas(context.Background(), ImageRequest{SelectedShapeIDs: []string{"s1"}})
	require.NoError(t, err)
	assert.Equal(t, StatusNoValidShapes, res.Status)
	assert.Zero(t, h.gen.sketches)
	assert.Empty(t, h.pub.sent)
}

func TestProcessingTimeIsRounded(t *testing.T) {
	h := newHarness(t, "b1")
	base := time.Unix(1700000000, 0)
	calls := 0
	h.p.now = func() time.Time {
		calls++
		if calls == 1 {
			return base
		}
		return base.Add(1234567 * time.Microsecond)
	}

	res, err := h.p.ImageIdeas(context.Background(), ImageRequest{Content: "note"})
	require.NoError(t, err)
	assert.Equal(t, 1.23, res.ProcessingTimeSeconds)
}
