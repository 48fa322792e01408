package design

import (
	"context"
	"time"

	"garment-studio/internal/domain/ports/adapter"
)

var _ adapter.DesignGenerationAdapter = (*NoOpAdapter)(nil)

// A valid 1x1 transparent PNG, enough for downstream code that only
// moves bytes around.
var tinyPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
	0x89, 0x00, 0x00, 0x00, 0x0d, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9c, 0x62, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae,
	0x42, 0x60, 0x82,
}

// NoOpAdapter is a stand-in for local development and tests. It accepts
// every image and returns a constant design after a short delay.
type NoOpAdapter struct {
	delay time.Duration
}

func NewNoOpAdapter(delay time.Duration) *NoOpAdapter {
	return &NoOpAdapter{delay: delay}
}

func (n *NoOpAdapter) Name() string { return "noop" }

func (n *NoOpAdapter) Preprocess(ctx context.Context, image []byte, filename string) (*adapter.PreprocessResult, error) {
	return &adapter.PreprocessResult{Usable: true, Reason: "accepted"}, nil
}

func (n *NoOpAdapter) Generate(ctx context.Context, prompt string, sourceImage []byte) (*adapter.GenerationResult, error) {
	if n.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(n.delay):
		}
	}
	return &adapter.GenerationResult{Design: tinyPNG}, nil
}
