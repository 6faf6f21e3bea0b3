package generator

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
)

// MockClient is an offline Client for local runs; it never calls a model.
type MockClient struct{}

func (MockClient) GenerateText(_ context.Context, req TextRequest) (string, error) {
	subject := "this note"
	if i := strings.Index(req.Prompt.User, "Sticky Note: "); i >= 0 {
		subject = strings.SplitN(req.Prompt.User[i+len("Sticky Note: "):], "\n", 2)[0]
	}
	var sb strings.Builder
	for i := 1; i <= IdeaCount; i++ {
		sb.WriteString(fmt.Sprintf("Idea %d: What if %s looked different from angle %d?\n", i, subject, i))
		if i < IdeaCount {
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

func (MockClient) GenerateImage(_ context.Context, req ImageRequest) ([]byte, error) {
	// a small solid tile whose shade depends on the prompt
	shade := uint8(len(req.Prompt) % 200)
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: shade, G: 128, B: 255 - shade, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
