package adapter

import (
	"context"

	"garment-studio/internal/domain/model"
)

// TryOnSubmission references already-persisted assets; the orchestrator
// uploads before submitting, never the other way around.
type TryOnSubmission struct {
	PersonImageURL  string
	GarmentImageURL string
}

// TryOnPoll is one normalized provider status response. Status is one
// of Processing, Completed, Failed. IntermediateImageURL may carry a
// composited frame while the provider is still processing.
type TryOnPoll struct {
	Status               model.TryOnStatus
	ResultImageURL       string
	IntermediateImageURL string
	FailureReason        string
}

// VirtualTryOnAdapter is the port for the virtual try-on provider.
// Submit returns the provider's opaque job handle. Poll translates the
// provider status vocabulary into the domain's three-valued one and
// returns domain.ErrNotFound for an unknown handle.
type VirtualTryOnAdapter interface {
	Name() string
	Submit(ctx context.Context, sub TryOnSubmission) (providerJobID string, err error)
	Poll(ctx context.Context, providerJobID string) (*TryOnPoll, error)
}
