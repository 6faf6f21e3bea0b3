package generator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient implements Client using the official openai-go SDK (chat
// completions and image generation).
type OpenAIClient struct {
	api      openai.Client
	download *resty.Client

	TextTimeout     time.Duration
	ImageTimeout    time.Duration
	DownloadTimeout time.Duration
}

func NewOpenAIClientFromConfig(cfg *LLMSettings) (*OpenAIClient, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key missing; provide llm.api_key")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// failed units are skipped by the caller, not retried
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	c := &OpenAIClient{
		api:             openai.NewClient(opts...),
		download:        resty.New(),
		TextTimeout:     cfg.TextTimeout,
		ImageTimeout:    cfg.ImageTimeout,
		DownloadTimeout: cfg.DownloadTimeout,
	}
	if c.TextTimeout <= 0 {
		c.TextTimeout = 30 * time.Second
	}
	if c.ImageTimeout <= 0 {
		c.ImageTimeout = 90 * time.Second
	}
	if c.DownloadTimeout <= 0 {
		c.DownloadTimeout = 10 * time.Second
	}
	return c, nil
}

func (o *OpenAIClient) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.TextTimeout)
	defer cancel()

	var msgs []openai.ChatCompletionMessageParamUnion
	if req.Prompt.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.Prompt.System))
	}
	msgs = append(msgs, openai.UserMessage(req.Prompt.User))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: msgs,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(req.MaxTokens)
	}

	resp, err := o.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAIClient) GenerateImage(ctx context.Context, req ImageRequest) ([]byte, error) {
	params := openai.ImageGenerateParams{
		Prompt: req.Prompt,
		Model:  openai.ImageModel(req.Model),
		N:      openai.Int(1),
	}
	if req.Size != "" {
		params.Size = openai.ImageGenerateParamsSize(req.Size)
	}
	if QualitySupported(req.Model, req.Quality) {
		params.Quality = openai.ImageGenerateParamsQuality(req.Quality)
	}

	genCtx, cancel := context.WithTimeout(ctx, o.ImageTimeout)
	resp, err := o.api.Images.Generate(genCtx, params)
	cancel()
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("openai: no image returned")
	}
	img := resp.Data[0]
	return o.imageBytes(ctx, img.B64JSON, img.URL)
}

// imageBytes normalizes an inline base64 payload or a hosted URL into raw bytes.
func (o *OpenAIClient) imageBytes(ctx context.Context, b64, url string) ([]byte, error) {
	switch {
	case b64 != "":
		data, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, fmt.Errorf("decode image payload: %w", err)
		}
		return data, nil
	case url != "":
		return o.fetch(ctx, url)
	default:
		return nil, errors.New("openai: image has neither b64_json nor url")
	}
}

func (o *OpenAIClient) fetch(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, o.DownloadTimeout)
	defer cancel()

	resp, err := o.download.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("download image: status %d", resp.StatusCode())
	}
	if len(resp.Body()) == 0 {
		return nil, errors.New("download image: empty body")
	}
	return resp.Body(), nil
}

// QualitySupported reports whether model accepts the quality value. Each
// model family has its own vocabulary; dall-e-2 takes none.
func QualitySupported(model, quality string) bool {
	if quality == "" {
		return false
	}
	model = strings.ToLower(model)
	quality = strings.ToLower(quality)
	switch {
	case strings.HasPrefix(model, "gpt-image"):
		switch quality {
		case "low", "medium", "high", "auto":
			return true
		}
	case model == "dall-e-3":
		return quality == "standard" || quality == "hd"
	}
	return false
}
