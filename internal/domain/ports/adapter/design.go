package adapter

import "context"

// PreprocessResult describes whether a garment photo is usable as-is.
// Processed holds normalized bytes when the provider corrected the
// image; it is nil when the input needed no changes.
type PreprocessResult struct {
	Usable    bool
	Reason    string
	Processed []byte
}

// GenerationResult is the output of one design-generation call.
// Design is always set on success. Preview carries a rendered garment
// mock-up when the provider produced one; nil means design-only.
type GenerationResult struct {
	Design  []byte
	Preview []byte
}

// DesignGenerationAdapter is the port for the design/garment-generation
// provider. Implementations must apply a bounded timeout to every
// remote call and surface all failures as *domain.UpstreamError.
type DesignGenerationAdapter interface {
	Name() string
	Preprocess(ctx context.Context, image []byte, filename string) (*PreprocessResult, error)
	Generate(ctx context.Context, prompt string, sourceImage []byte) (*GenerationResult, error)
}
