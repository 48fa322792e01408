package design

import (
	"context"
	"errors"
	"net/http"
	"time"

	"google.golang.org/genai"

	"garment-studio/internal/domain"
	"garment-studio/internal/domain/ports/adapter"
	"garment-studio/internal/infra/metrics"
)

var _ adapter.DesignGenerationAdapter = (*GeminiAdapter)(nil)

// GeminiAdapter generates designs with an image-output Gemini model.
// The model is asked for two frames: the flat design and a rendered
// garment mock-up; when both come back the pipeline can advance
// straight to the garment-generated stage.
type GeminiAdapter struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

func NewGeminiAdapter(ctx context.Context, apiKey, baseURL, model string, timeout time.Duration) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	if model == "" {
		model = "gemini-2.5-flash-image"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
		HTTPClient: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiAdapter{client: c, model: model, timeout: timeout}, nil
}

func (g *GeminiAdapter) Name() string { return "gemini" }

func (g *GeminiAdapter) Preprocess(ctx context.Context, image []byte, filename string) (*adapter.PreprocessResult, error) {
	return checkImage(image)
}

func (g *GeminiAdapter) Generate(ctx context.Context, prompt string, sourceImage []byte) (*adapter.GenerationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{Text: "Apply this design request to the garment in the photo. " +
				"Return the flat design first, then a rendered mock-up of the garment wearing it. " +
				"Request: " + prompt},
			{InlineData: &genai.Blob{MIMEType: "image/png", Data: sourceImage}},
		},
	}}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	metrics.ObserveProviderCall(g.Name(), "generate", time.Since(start).Milliseconds(), err == nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.NewUpstreamError(g.Name(), err, true)
		}
		return nil, domain.NewUpstreamError(g.Name(), err, false)
	}

	var images [][]byte
	if resp != nil {
		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if part.InlineData != nil && len(part.InlineData.Data) > 0 {
					images = append(images, part.InlineData.Data)
				}
			}
		}
	}
	if len(images) == 0 {
		return nil, domain.NewUpstreamError(g.Name(), errors.New("no image in response"), false)
	}

	out := &adapter.GenerationResult{Design: images[0]}
	if len(images) > 1 {
		out.Preview = images[1]
	}
	return out, nil
}
