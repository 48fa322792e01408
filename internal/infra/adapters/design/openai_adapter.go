package design

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"garment-studio/internal/domain"
	"garment-studio/internal/domain/ports/adapter"
	"garment-studio/internal/infra/metrics"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.DesignGenerationAdapter = (*OpenAIAdapter)(nil)

// OpenAIAdapter generates flat garment designs via the Images API,
// editing the uploaded garment photo toward the prompt. It is
// design-only: no rendered preview, so jobs driven by it stop at the
// design-generated stage before try-on.
type OpenAIAdapter struct {
	client  openai.Client
	model   openai.ImageModel
	timeout time.Duration
}

func NewOpenAIAdapter(apiKey, model string, timeout time.Duration) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if model == "" {
		model = string(openai.ImageModelGPTImage1)
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OpenAIAdapter{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		model:   openai.ImageModel(model),
		timeout: timeout,
	}, nil
}

func (o *OpenAIAdapter) Name() string { return "openai" }

func (o *OpenAIAdapter) Preprocess(ctx context.Context, image []byte, filename string) (*adapter.PreprocessResult, error) {
	return checkImage(image)
}

func (o *OpenAIAdapter) Generate(ctx context.Context, prompt string, sourceImage []byte) (*adapter.GenerationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	var resp *openai.ImagesResponse
	var err error
	if len(sourceImage) > 0 {
		name, contentType := uploadName(sourceImage)
		resp, err = o.client.Images.Edit(ctx, openai.ImageEditParams{
			Image: openai.ImageEditParamsImageUnion{
				OfFile: openai.File(bytes.NewReader(sourceImage), name, contentType),
			},
			Prompt: prompt,
			Model:  o.model,
		})
	} else {
		resp, err = o.client.Images.Generate(ctx, openai.ImageGenerateParams{
			Prompt: prompt,
			Model:  o.model,
		})
	}
	metrics.ObserveProviderCall(o.Name(), "generate", time.Since(start).Milliseconds(), err == nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.NewUpstreamError(o.Name(), err, true)
		}
		return nil, domain.NewUpstreamError(o.Name(), err, false)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, domain.NewUpstreamError(o.Name(), errors.New("empty image payload"), false)
	}

	raw, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, domain.NewUpstreamError(o.Name(), err, false)
	}
	return &adapter.GenerationResult{Design: raw}, nil
}

func uploadName(data []byte) (filename, contentType string) {
	contentType = http.DetectContentType(data)
	switch contentType {
	case "image/jpeg":
		return "garment.jpg", contentType
	case "image/gif":
		return "garment.gif", contentType
	default:
		return "garment.png", contentType
	}
}
