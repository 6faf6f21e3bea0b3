// Package pipeline turns an inbound request into generated artifacts:
// validate, resolve text, consult the cache, generate per unit, publish,
// and assemble the response.
package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"miro_ideation_relay/board"
	"miro_ideation_relay/cache"
	"miro_ideation_relay/generator"
	"miro_ideation_relay/logging"
	"miro_ideation_relay/publisher"
)

const (
	OpIdeate   = "generate-ideas"
	OpSketches = "generate-text2image-sketches"
	OpImages   = "generate-image-ideas"

	StatusSuccess       = "success"
	StatusNoValidShapes = "no_valid_shapes_found"

	// DirectContentID names the unit built from free text instead of a board item.
	DirectContentID = "direct_content"
)

type Resolver interface {
	Resolve(ctx context.Context, boardID string, ids []string) ([]board.ExtractedText, error)
	ResolveEach(ctx context.Context, boardID string, ids []string) []board.ExtractedText
}

type Generator interface {
	Ideate(ctx context.Context, text, customContext string) (generator.Suggestions, error)
	Sketch(ctx context.Context, theme string, style generator.Style) (generator.Artifact, error)
}

type Publisher interface {
	Publish(ctx context.Context, boardID string, image []byte, placement board.Placement, title string) error
}

// Deps are the collaborators of a Pipeline. Cache may be nil to disable caching.
type Deps struct {
	Resolver       Resolver
	Generator      Generator
	Publisher      Publisher
	Cache          cache.Cache
	DefaultBoardID string
	Logger         *logging.Logger
}

type Pipeline struct {
	resolver       Resolver
	gen            Generator
	pub            Publisher
	cache          cache.Cache
	defaultBoardID string
	logger         *logging.Logger
	now            func() time.Time
}

func New(d Deps) (*Pipeline, error) {
	if d.Resolver == nil || d.Generator == nil || d.Publisher == nil {
		return nil, errors.New("pipeline requires a resolver, a generator and a publisher")
	}
	c := d.Cache
	if c == nil {
		c = noCache{}
	}
	return &Pipeline{
		resolver:       d.Resolver,
		gen:            d.Generator,
		pub:            d.Publisher,
		cache:          c,
		defaultBoardID: d.DefaultBoardID,
		logger:         d.Logger,
		now:            time.Now,
	}, nil
}

// IdeateRequest asks for ideas about one sticky note.
type IdeateRequest struct {
	Content string `json:"content"`
	Prompt  string `json:"prompt"`
	BoardID string `json:"boardId"`
}

// IdeasResult carries the raw completion plus the parsed ideas.
type IdeasResult struct {
	Status                string   `json:"status"`
	Suggestions           string   `json:"suggestions"`
	Ideas                 []string `json:"ideas"`
	ProcessingTimeSeconds float64  `json:"processing_time_seconds"`
}

// ImageRequest selects the text to illustrate: board items, free text or both.
type ImageRequest struct {
	SelectedShapeIDs []string        `json:"selectedShapeIds"`
	Content          string          `json:"content"`
	BoardID          string          `json:"boardId"`
	PositionData     *board.Position `json:"positionData,omitempty"`
	GeometryData     *board.Geometry `json:"geometryData,omitempty"`
}

type SketchImage struct {
	ID          string `json:"id"`
	Prompt      string `json:"prompt"`
	Base64Image string `json:"base64_image"`
}

type SketchResult struct {
	Status                string        `json:"status"`
	Count                 int           `json:"count"`
	Images                []SketchImage `json:"images,omitempty"`
	ProcessingTimeSeconds float64       `json:"processing_time_seconds"`
}

type PublishResult struct {
	Status                string  `json:"status"`
	ImagesAdded           int     `json:"images_added"`
	ImagesFailed          int     `json:"images_failed"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
}

// Ideate generates reframing ideas for req.Content. With a single unit of
// work, a model failure fails the request.
func (p *Pipeline) Ideate(ctx context.Context, req IdeateRequest) (*IdeasResult, error) {
	start := p.now()
	content := strings.TrimSpace(req.Content)
	customPrompt := strings.TrimSpace(req.Prompt)
	if content == "" {
		return nil, invalid("No sticky note content provided")
	}
	text := board.Sanitize(content)
	if text == "" {
		return nil, invalid("No sticky note content provided")
	}
	if boardID := p.boardID(req.BoardID); boardID != "" {
		p.logger.Infof("ideation for board %s", boardID)
	}

	params := cache.Params{"content": content, "prompt": customPrompt}
	if v, ok := p.cache.Get(OpIdeate, params); ok {
		if res, ok := v.(IdeasResult); ok {
			p.logger.Infof("%s: cache hit", OpIdeate)
			res.ProcessingTimeSeconds = p.elapsed(start)
			return &res, nil
		}
	}

	s, err := p.gen.Ideate(ctx, text, customPrompt)
	if err != nil {
		p.logger.Errorf("%s: %v", OpIdeate, err)
		return nil, &GenerationError{Err: err}
	}
	res := IdeasResult{Status: StatusSuccess, Suggestions: s.Raw, Ideas: s.Ideas}
	p.cache.Put(OpIdeate, params, res)

	res.ProcessingTimeSeconds = p.elapsed(start)
	p.logger.Infof("%s: %d ideas in %.2fs", OpIdeate, len(res.Ideas), res.ProcessingTimeSeconds)
	return &res, nil
}

// Sketches generates one brainstorming image per unit and returns them
// inline. Free content takes precedence over selected ids.
func (p *Pipeline) Sketches(ctx context.Context, req ImageRequest) (*SketchResult, error) {
	start := p.now()
	boardID, err := p.validateImageRequest(&req)
	if err != nil {
		return nil, err
	}

	params := cache.Params{"boardId": boardID, "content": req.Content, "ids": req.SelectedShapeIDs}
	if v, ok := p.cache.Get(OpSketches, params); ok {
		if res, ok := v.(SketchResult); ok {
			p.logger.Infof("%s: cache hit", OpSketches)
			res.ProcessingTimeSeconds = p.elapsed(start)
			return &res, nil
		}
	}

	var units []board.ExtractedText
	if req.Content != "" {
		if text := board.Sanitize(req.Content); text != "" {
			units = append(units, board.ExtractedText{SourceID: DirectContentID, Text: text})
		}
	} else {
		units, err = p.resolver.Resolve(ctx, boardID, req.SelectedShapeIDs)
		if err != nil {
			return nil, &FetchError{BoardID: boardID, Err: err}
		}
	}
	if len(units) == 0 {
		return &SketchResult{Status: StatusNoValidShapes, ProcessingTimeSeconds: p.elapsed(start)}, nil
	}

	var errs *multierror.Error
	res := SketchResult{Status: StatusSuccess, Images: []SketchImage{}}
	for _, u := range units {
		art, err := p.gen.Sketch(ctx, u.Text, generator.StyleSketch)
		if err != nil {
			errs = multierror.Append(errs, &GenerationError{SourceID: u.SourceID, Err: err})
			continue
		}
		res.Images = append(res.Images, SketchImage{
			ID:          u.SourceID,
			Prompt:      u.Text,
			Base64Image: base64.StdEncoding.EncodeToString(art.Image),
		})
		p.logger.Infof("%s: generated image for %s", OpSketches, u.SourceID)
	}
	res.Count = len(res.Images)
	p.reportUnitErrors(OpSketches, errs)

	if res.Count > 0 {
		p.cache.Put(OpSketches, params, res)
	}
	res.ProcessingTimeSeconds = p.elapsed(start)
	p.logger.Infof("%s: %d of %d images in %.2fs", OpSketches, res.Count, len(units), res.ProcessingTimeSeconds)
	return &res, nil
}

// ImageIdeas generates one image per unit and writes it to the board. Selected
// items are fetched one by one and free content is added as the last unit.
// The result is never cached because every call mutates the board.
func (p *Pipeline) ImageIdeas(ctx context.Context, req ImageRequest) (*PublishResult, error) {
	start := p.now()
	boardID, err := p.validateImageRequest(&req)
	if err != nil {
		return nil, err
	}

	units := p.resolver.ResolveEach(ctx, boardID, req.SelectedShapeIDs)
	if req.Content != "" {
		if text := board.Sanitize(req.Content); text != "" {
			units = append(units, board.ExtractedText{SourceID: DirectContentID, Text: text})
		}
	}
	if len(units) == 0 {
		return &PublishResult{Status: StatusNoValidShapes, ProcessingTimeSeconds: p.elapsed(start)}, nil
	}

	placement := board.NewPlacement(req.PositionData, req.GeometryData)
	var errs *multierror.Error
	res := PublishResult{Status: StatusSuccess}
	for _, u := range units {
		art, err := p.gen.Sketch(ctx, u.Text, generator.StyleBoard)
		if err != nil {
			errs = multierror.Append(errs, &GenerationError{SourceID: u.SourceID, Err: err})
			continue
		}
		if err := p.pub.Publish(ctx, boardID, art.Image, placement, publisher.Title(u.Text)); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", u.SourceID, err))
			continue
		}
		res.ImagesAdded++
	}
	if errs != nil {
		res.ImagesFailed = len(errs.Errors)
	}
	p.reportUnitErrors(OpImages, errs)

	res.ProcessingTimeSeconds = p.elapsed(start)
	p.logger.Infof("%s: added %d of %d images to board %s in %.2fs",
		OpImages, res.ImagesAdded, len(units), boardID, res.ProcessingTimeSeconds)
	return &res, nil
}

// validateImageRequest applies the default board and checks that there is
// something to illustrate.
func (p *Pipeline) validateImageRequest(req *ImageRequest) (string, error) {
	boardID := p.boardID(req.BoardID)
	if boardID == "" {
		return "", invalid("No board ID provided in request. Please specify 'boardId' parameter.")
	}
	req.Content = strings.TrimSpace(req.Content)
	ids := req.SelectedShapeIDs[:0:0]
	for _, id := range req.SelectedShapeIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	req.SelectedShapeIDs = ids
	if req.Content == "" && len(req.SelectedShapeIDs) == 0 {
		return "", invalid("No content or shape IDs provided")
	}
	return boardID, nil
}

func (p *Pipeline) boardID(requested string) string {
	if id := strings.TrimSpace(requested); id != "" {
		return id
	}
	return p.defaultBoardID
}

func (p *Pipeline) reportUnitErrors(op string, errs *multierror.Error) {
	if err := errs.ErrorOrNil(); err != nil {
		p.logger.Warnf("%s: %d unit(s) skipped: %v", op, len(errs.Errors), err)
	}
}

func (p *Pipeline) elapsed(start time.Time) float64 {
	return math.Round(p.now().Sub(start).Seconds()*100) / 100
}

type noCache struct{}

func (noCache) Get(string, cache.Params) (interface{}, bool) { return nil, false }
func (noCache) Put(string, cache.Params, interface{})        {}
