package tryon

import (
	"context"
	"sync"

	"garment-studio/internal/domain"
	"garment-studio/internal/domain/model"
	"garment-studio/internal/domain/ports/adapter"

	"github.com/google/uuid"
)

var _ adapter.VirtualTryOnAdapter = (*NoOpAdapter)(nil)

// NoOpAdapter fakes a try-on provider for local development. Each
// submission completes after a fixed number of polls and echoes the
// garment image back as the result.
type NoOpAdapter struct {
	pollsToFinish int

	mu   sync.Mutex
	jobs map[string]*noopJob
}

type noopJob struct {
	garmentURL string
	polls      int
}

func NewNoOpAdapter(pollsToFinish int) *NoOpAdapter {
	if pollsToFinish < 1 {
		pollsToFinish = 2
	}
	return &NoOpAdapter{
		pollsToFinish: pollsToFinish,
		jobs:          make(map[string]*noopJob),
	}
}

func (n *NoOpAdapter) Name() string { return "noop" }

func (n *NoOpAdapter) Submit(ctx context.Context, sub adapter.TryOnSubmission) (string, error) {
	id := uuid.NewString()
	n.mu.Lock()
	n.jobs[id] = &noopJob{garmentURL: sub.GarmentImageURL}
	n.mu.Unlock()
	return id, nil
}

func (n *NoOpAdapter) Poll(ctx context.Context, providerJobID string) (*adapter.TryOnPoll, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	job, ok := n.jobs[providerJobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	job.polls++
	if job.polls >= n.pollsToFinish {
		return &adapter.TryOnPoll{
			Status:         model.TryOnStatusCompleted,
			ResultImageURL: job.garmentURL,
		}, nil
	}
	return &adapter.TryOnPoll{Status: model.TryOnStatusProcessing}, nil
}
