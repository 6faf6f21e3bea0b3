package generator

import (
	"context"
	"time"
)

// Client abstracts the generation provider so it can be swapped or mocked.
type Client interface {
	GenerateText(ctx context.Context, req TextRequest) (string, error)
	GenerateImage(ctx context.Context, req ImageRequest) ([]byte, error)
}

// TextRequest is one chat completion call.
type TextRequest struct {
	Prompt      Prompt
	Model       string
	Temperature float64
	MaxTokens   int64
}

// ImageRequest is one image generation call. Quality is dropped for models
// that do not accept the given value.
type ImageRequest struct {
	Prompt  string
	Model   string
	Size    string
	Quality string
}

// LLMSettings configures a concrete Client.
type LLMSettings struct {
	Provider        string
	APIKey          string
	BaseURL         string
	TextTimeout     time.Duration
	ImageTimeout    time.Duration
	DownloadTimeout time.Duration
}
