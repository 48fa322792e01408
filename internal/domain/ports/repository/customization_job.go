package repository

import (
	"context"

	"garment-studio/internal/domain/model"
)

// JobUpdate carries the fields written together with a status
// transition. Nil pointers leave the stored value untouched.
type JobUpdate struct {
	GeneratedDesignImageURL  *string
	GeneratedPreviewImageURL *string
	ProviderTryOnJobID       *string
	ResultImageURL           *string
	FailureReason            *string
}

type CustomizationJobRepository interface {
	Create(ctx context.Context, job *model.CustomizationJob) error
	FindByID(ctx context.Context, id int64, userID string) (*model.CustomizationJob, error)
	FindByTryOnJobID(ctx context.Context, providerJobID string) (*model.CustomizationJob, error)

	// UpdateStatus is a compare-and-set: the write only lands when the
	// stored status still equals expected. A mismatch means someone else
	// already advanced the job; it is not an error, the current row is
	// returned with applied=false and the caller reconciles from it.
	UpdateStatus(ctx context.Context, id int64, expected, next model.JobStatus, fields JobUpdate) (job *model.CustomizationJob, applied bool, err error)
}
