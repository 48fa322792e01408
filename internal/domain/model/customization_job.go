package model

import "time"

// JobStatus is the lifecycle state of a CustomizationJob. Progression is
// monotonic along the transition table below; Failed is reachable from
// any non-terminal state and, like Completed, is never overwritten.
type JobStatus string

const (
	JobStatusPendingGeneration     JobStatus = "pending_generation"
	JobStatusDesignGenerated       JobStatus = "design_generated"
	JobStatusGarmentGenerated      JobStatus = "garment_generated"
	JobStatusTryOnStarted          JobStatus = "try_on_started"
	JobStatusProductImageGenerated JobStatus = "product_image_generated"
	JobStatusCompleted             JobStatus = "completed"
	JobStatusFailed                JobStatus = "failed"
)

// transitions is the single source of truth for forward progression.
// A transition absent from this table is rejected rather than written.
var transitions = map[JobStatus][]JobStatus{
	JobStatusPendingGeneration:     {JobStatusDesignGenerated, JobStatusGarmentGenerated},
	JobStatusDesignGenerated:       {JobStatusGarmentGenerated, JobStatusTryOnStarted},
	JobStatusGarmentGenerated:      {JobStatusTryOnStarted},
	JobStatusTryOnStarted:          {JobStatusProductImageGenerated, JobStatusCompleted},
	JobStatusProductImageGenerated: {JobStatusCompleted},
}

func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPendingGeneration, JobStatusDesignGenerated, JobStatusGarmentGenerated,
		JobStatusTryOnStarted, JobStatusProductImageGenerated, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are permitted.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition reports whether s -> to is present in the transition
// table. Failed is allowed from every non-terminal state.
func (s JobStatus) CanTransition(to JobStatus) bool {
	if s.Terminal() {
		return false
	}
	if to == JobStatusFailed {
		return true
	}
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// EligibleForTryOn reports whether a try-on submission may start from s.
func (s JobStatus) EligibleForTryOn() bool {
	return s == JobStatusDesignGenerated || s == JobStatusGarmentGenerated
}

// TryOnStatus is the normalized, client-facing status vocabulary.
type TryOnStatus string

const (
	TryOnStatusPending    TryOnStatus = "pending"
	TryOnStatusProcessing TryOnStatus = "processing"
	TryOnStatusCompleted  TryOnStatus = "completed"
	TryOnStatusFailed     TryOnStatus = "failed"
)

// CustomizationJob tracks one user's design-generation-then-try-on
// workflow. It is mutated exclusively by the pipeline orchestrator via
// the repository's compare-and-set update.
type CustomizationJob struct {
	ID                       int64
	UserID                   string
	Status                   JobStatus
	Prompt                   string
	SourceGarmentImageURL    string
	GeneratedDesignImageURL  string
	GeneratedPreviewImageURL string
	ProviderTryOnJobID       string
	ResultImageURL           string
	FailureReason            string
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

func NewCustomizationJob(userID, prompt, sourceImageURL string) *CustomizationJob {
	now := time.Now()
	return &CustomizationJob{
		UserID:                userID,
		Status:                JobStatusPendingGeneration,
		Prompt:                prompt,
		SourceGarmentImageURL: sourceImageURL,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

// NormalizedStatus maps the internal state machine onto the four-valued
// polling vocabulary returned to clients.
func (j *CustomizationJob) NormalizedStatus() TryOnStatus {
	switch j.Status {
	case JobStatusCompleted:
		return TryOnStatusCompleted
	case JobStatusFailed:
		return TryOnStatusFailed
	case JobStatusTryOnStarted, JobStatusProductImageGenerated:
		return TryOnStatusProcessing
	default:
		return TryOnStatusPending
	}
}
