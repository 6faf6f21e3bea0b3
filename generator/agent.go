package generator

import (
	"context"
	"errors"
)

// Models holds the model choice and generation parameters used by the Agent.
type Models struct {
	TextModel    string
	ImageModel   string
	ImageSize    string
	ImageQuality string
	Temperature  float64
	MaxTokens    int64
}

// Agent builds prompts, calls the Client and post-processes the answers.
type Agent struct {
	client Client
	models Models
}

func NewAgent(client Client, models Models) (*Agent, error) {
	if client == nil {
		return nil, errors.New("llm client is required")
	}
	if models.TextModel == "" || models.ImageModel == "" {
		return nil, errors.New("text and image models are required")
	}
	return &Agent{client: client, models: models}, nil
}

// Ideate asks the text model for reframing ideas about text.
func (a *Agent) Ideate(ctx context.Context, text, customContext string) (Suggestions, error) {
	raw, err := a.client.GenerateText(ctx, TextRequest{
		Prompt:      BuildIdeationPrompt(text, customContext),
		Model:       a.models.TextModel,
		Temperature: a.models.Temperature,
		MaxTokens:   a.models.MaxTokens,
	})
	if err != nil {
		return Suggestions{}, err
	}
	return PostProcess(raw)
}

// Sketch asks the image model for one picture of theme.
func (a *Agent) Sketch(ctx context.Context, theme string, style Style) (Artifact, error) {
	prompt := BuildImagePrompt(theme)
	if style == StyleSketch {
		prompt = BuildSketchPrompt(theme)
	}
	img, err := a.client.GenerateImage(ctx, ImageRequest{
		Prompt:  prompt,
		Model:   a.models.ImageModel,
		Size:    a.models.ImageSize,
		Quality: a.models.ImageQuality,
	})
	if err != nil {
		return Artifact{}, err
	}
	if len(img) == 0 {
		return Artifact{}, errors.New("image model returned no bytes")
	}
	return Artifact{Prompt: theme, Image: img}, nil
}
