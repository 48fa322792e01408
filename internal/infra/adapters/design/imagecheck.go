package design

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"garment-studio/internal/domain/ports/adapter"
)

const (
	minDimension = 256
	maxDimension = 4096
)

// checkImage is the shared local half of Preprocess: every adapter
// rejects undecodable or out-of-range images before spending a remote
// call on them.
func checkImage(data []byte) (*adapter.PreprocessResult, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return &adapter.PreprocessResult{
			Usable: false,
			Reason: "image could not be decoded; expected JPEG, PNG or GIF",
		}, nil
	}
	if cfg.Width < minDimension || cfg.Height < minDimension {
		return &adapter.PreprocessResult{
			Usable: false,
			Reason: fmt.Sprintf("image %dx%d is below the %dpx minimum", cfg.Width, cfg.Height, minDimension),
		}, nil
	}
	if cfg.Width > maxDimension || cfg.Height > maxDimension {
		return &adapter.PreprocessResult{
			Usable: false,
			Reason: fmt.Sprintf("image %dx%d exceeds the %dpx maximum", cfg.Width, cfg.Height, maxDimension),
		}, nil
	}
	return &adapter.PreprocessResult{Usable: true, Reason: format + " image accepted"}, nil
}
