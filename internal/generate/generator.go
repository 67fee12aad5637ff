// Package generate calls the upstream image-generation provider.
package generate

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Request describes one image to generate. Seed is recorded with the stored
// image but not forwarded; the image API exposes no seed parameter.
type Request struct {
	Prompt string
	Model  string
	Width  int
	Height int
	Seed   *int64
}

// Generator produces a base64-encoded image for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// OpenAIGenerator implements Generator against any OpenAI-compatible image
// endpoint.
type OpenAIGenerator struct {
	client       *openai.Client
	defaultModel string
}

// NewOpenAIGenerator creates a provider client. An empty baseURL targets the
// official API.
func NewOpenAIGenerator(apiKey, baseURL, defaultModel string) *OpenAIGenerator {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIGenerator{
		client:       openai.NewClientWithConfig(cfg),
		defaultModel: defaultModel,
	}
}

// Generate requests a single image and returns its base64 payload.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = g.defaultModel
	}

	resp, err := g.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         req.Prompt,
		Model:          model,
		N:              1,
		Size:           fmt.Sprintf("%dx%d", req.Width, req.Height),
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return "", fmt.Errorf("create image: %w", err)
	}
	if len(resp.Data) == 0 {
		return "", errors.New("provider returned no image data")
	}
	return resp.Data[0].B64JSON, nil
}
