package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"garment-studio/internal/domain"
	"garment-studio/internal/domain/model"
	"garment-studio/internal/domain/ports/adapter"
	"garment-studio/internal/domain/ports/repository"
)

// Compile-time check
var _ CustomizationUseCase = (*customizationUC)(nil)

// Blob store folders, one per pipeline stage.
const (
	folderPreprocessed = "preprocessed"
	folderSources      = "sources"
	folderDesigns      = "designs"
	folderPreviews     = "previews"
	folderPersons      = "persons"
	folderGarments     = "garments"
)

type PreprocessOutcome struct {
	Usable            bool
	Reason            string
	ProcessedImageURL string
}

type GenerateOutcome struct {
	JobID           int64
	Status          model.JobStatus
	DesignImageURL  string
	PreviewImageURL string
}

// TryOnStartOutcome acknowledges a submitted try-on. JobID is zero for
// the direct flow, which has no persisted job.
type TryOnStartOutcome struct {
	JobID         int64
	ProviderJobID string
}

type StatusOutcome struct {
	JobID          int64
	Status         model.TryOnStatus
	ResultImageURL string
	FailureReason  string
}

// TryOnStatusCache remembers terminal poll results for raw provider
// handles so re-polling a finished direct try-on never hits the
// provider again. Get returns (nil, nil) on a miss.
type TryOnStatusCache interface {
	Get(ctx context.Context, providerJobID string) (*adapter.TryOnPoll, error)
	Put(ctx context.Context, providerJobID string, poll *adapter.TryOnPoll) error
}

// AsyncCleaner disposes of uploaded-but-unused blobs off the request
// path. Cleanup is best-effort; a lost deletion only costs storage.
type AsyncCleaner interface {
	ScheduleDelete(url string)
}

type CustomizationUseCase interface {
	PreprocessGarment(ctx context.Context, image io.Reader, filename, prompt string) (*PreprocessOutcome, error)
	GenerateGarmentFromPrompt(ctx context.Context, userID, prompt string, image io.Reader, filename string) (*GenerateOutcome, error)
	StartTryOnPipeline(ctx context.Context, userID string, jobID int64, personImage io.Reader, filename string) (*TryOnStartOutcome, error)
	StartTryOnDirect(ctx context.Context, personImage io.Reader, personFilename string, garmentImage io.Reader, garmentFilename string) (*TryOnStartOutcome, error)
	GetStatus(ctx context.Context, userID, jobIDOrHandle string) (*StatusOutcome, error)
	GetJob(ctx context.Context, userID string, jobID int64) (*model.CustomizationJob, error)
}

type customizationUC struct {
	jobs    repository.CustomizationJobRepository
	blob    adapter.BlobStore
	design  adapter.DesignGenerationAdapter
	tryOn   adapter.VirtualTryOnAdapter
	cache   TryOnStatusCache
	cleaner AsyncCleaner
	retries int
	backoff time.Duration
	log     *zerolog.Logger
}

func NewCustomizationUseCase(
	jobs repository.CustomizationJobRepository,
	blob adapter.BlobStore,
	design adapter.DesignGenerationAdapter,
	tryOn adapter.VirtualTryOnAdapter,
	cache TryOnStatusCache,
	cleaner AsyncCleaner,
	retries int,
	backoff time.Duration,
	logger *zerolog.Logger,
) *customizationUC {
	if retries < 0 {
		retries = 0
	}
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &customizationUC{
		jobs:    jobs,
		blob:    blob,
		design:  design,
		tryOn:   tryOn,
		cache:   cache,
		cleaner: cleaner,
		retries: retries,
		backoff: backoff,
		log:     logger,
	}
}

// PreprocessGarment validates/normalizes a garment photo without
// creating a job. A normalized copy, when produced, is persisted so the
// client can reuse it as the generation input.
func (c *customizationUC) PreprocessGarment(ctx context.Context, image io.Reader, filename, prompt string) (*PreprocessOutcome, error) {
	data, err := readImage(image, filename)
	if err != nil {
		return nil, err
	}

	res, err := c.design.Preprocess(ctx, data, filename)
	if err != nil {
		return nil, err
	}

	out := &PreprocessOutcome{Usable: res.Usable, Reason: res.Reason}
	if len(res.Processed) > 0 {
		url, err := c.blob.Upload(ctx, bytes.NewReader(res.Processed), filename, folderPreprocessed)
		if err != nil {
			return nil, err
		}
		out.ProcessedImageURL = url
	}
	return out, nil
}

// GenerateGarmentFromPrompt runs the first pipeline stage. Ordering is
// strict: the source image is persisted before the job row exists and
// before any provider call, so a failed generation never leaves a job
// pointing at a missing asset, and a failed upload never costs a
// provider call.
func (c *customizationUC) GenerateGarmentFromPrompt(ctx context.Context, userID, prompt string, image io.Reader, filename string) (*GenerateOutcome, error) {
	userID = strings.TrimSpace(userID)
	prompt = strings.TrimSpace(prompt)
	if userID == "" || prompt == "" {
		return nil, domain.ErrInvalidArgument
	}
	data, err := readImage(image, filename)
	if err != nil {
		return nil, err
	}

	sourceURL, err := c.blob.Upload(ctx, bytes.NewReader(data), filename, folderSources)
	if err != nil {
		return nil, err
	}

	job := model.NewCustomizationJob(userID, prompt, sourceURL)
	if err := c.jobs.Create(ctx, job); err != nil {
		c.scheduleCleanup(sourceURL)
		return nil, err
	}
	log := c.log.With().Int64("job_id", job.ID).Str("user_id", userID).Logger()

	var gen *adapter.GenerationResult
	err = c.withSubmitRetry(ctx, func(ctx context.Context) error {
		var gerr error
		gen, gerr = c.design.Generate(ctx, prompt, data)
		return gerr
	})
	if err != nil {
		if ctx.Err() != nil {
			// Caller cancelled: the job stays in its prior state.
			return nil, ctx.Err()
		}
		c.markFailed(ctx, job.ID, model.JobStatusPendingGeneration, fmt.Sprintf("design generation failed: %v", err))
		return nil, err
	}

	designURL, err := c.blob.Upload(ctx, bytes.NewReader(gen.Design), "design_"+filename, folderDesigns)
	if err != nil {
		c.markFailed(ctx, job.ID, model.JobStatusPendingGeneration, fmt.Sprintf("persisting generated design failed: %v", err))
		return nil, err
	}

	next := model.JobStatusDesignGenerated
	fields := repository.JobUpdate{GeneratedDesignImageURL: &designURL}
	var previewURL string
	if len(gen.Preview) > 0 {
		previewURL, err = c.blob.Upload(ctx, bytes.NewReader(gen.Preview), "preview_"+filename, folderPreviews)
		if err != nil {
			c.markFailed(ctx, job.ID, model.JobStatusPendingGeneration, fmt.Sprintf("persisting garment preview failed: %v", err))
			return nil, err
		}
		next = model.JobStatusGarmentGenerated
		fields.GeneratedPreviewImageURL = &previewURL
	}

	updated, applied, err := c.jobs.UpdateStatus(ctx, job.ID, model.JobStatusPendingGeneration, next, fields)
	if err != nil {
		return nil, err
	}
	if !applied {
		log.Warn().Str("status", string(updated.Status)).Msg("generation result lost status race")
	}

	return &GenerateOutcome{
		JobID:           job.ID,
		Status:          updated.Status,
		DesignImageURL:  designURL,
		PreviewImageURL: previewURL,
	}, nil
}

// StartTryOnPipeline submits the second stage for an existing job,
// using the job's generated garment as the try-on reference.
func (c *customizationUC) StartTryOnPipeline(ctx context.Context, userID string, jobID int64, personImage io.Reader, filename string) (*TryOnStartOutcome, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || jobID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	data, err := readImage(personImage, filename)
	if err != nil {
		return nil, err
	}

	job, err := c.jobs.FindByID(ctx, jobID, userID)
	if err != nil {
		return nil, err
	}
	if !job.Status.EligibleForTryOn() {
		return nil, domain.ErrInvalidState
	}
	garmentRef := job.GeneratedPreviewImageURL
	if garmentRef == "" {
		garmentRef = job.GeneratedDesignImageURL
	}
	if garmentRef == "" {
		return nil, domain.ErrInvalidState
	}

	personURL, err := c.blob.Upload(ctx, bytes.NewReader(data), filename, folderPersons)
	if err != nil {
		// Upload failed before the provider call; the job is untouched.
		return nil, err
	}

	var handle string
	err = c.withSubmitRetry(ctx, func(ctx context.Context) error {
		var serr error
		handle, serr = c.tryOn.Submit(ctx, adapter.TryOnSubmission{
			PersonImageURL:  personURL,
			GarmentImageURL: garmentRef,
		})
		return serr
	})
	if err != nil {
		if ctx.Err() != nil {
			c.scheduleCleanup(personURL)
			return nil, ctx.Err()
		}
		c.markFailed(ctx, job.ID, job.Status, fmt.Sprintf("try-on submit failed: %v", err))
		return nil, err
	}

	updated, applied, err := c.jobs.UpdateStatus(ctx, job.ID, job.Status, model.JobStatusTryOnStarted, repository.JobUpdate{
		ProviderTryOnJobID: &handle,
	})
	if err != nil {
		return nil, err
	}
	if !applied && updated.Status != model.JobStatusTryOnStarted {
		c.log.Warn().Int64("job_id", job.ID).Str("status", string(updated.Status)).Msg("try-on start lost status race")
	}

	return &TryOnStartOutcome{JobID: job.ID, ProviderJobID: handle}, nil
}

// StartTryOnDirect is the one-shot flow: person plus garment image, no
// job row. The returned provider handle is pollable via GetStatus.
func (c *customizationUC) StartTryOnDirect(ctx context.Context, personImage io.Reader, personFilename string, garmentImage io.Reader, garmentFilename string) (*TryOnStartOutcome, error) {
	personData, err := readImage(personImage, personFilename)
	if err != nil {
		return nil, err
	}
	garmentData, err := readImage(garmentImage, garmentFilename)
	if err != nil {
		return nil, err
	}

	personURL, err := c.blob.Upload(ctx, bytes.NewReader(personData), personFilename, folderPersons)
	if err != nil {
		return nil, err
	}
	garmentURL, err := c.blob.Upload(ctx, bytes.NewReader(garmentData), garmentFilename, folderGarments)
	if err != nil {
		c.scheduleCleanup(personURL)
		return nil, err
	}

	var handle string
	err = c.withSubmitRetry(ctx, func(ctx context.Context) error {
		var serr error
		handle, serr = c.tryOn.Submit(ctx, adapter.TryOnSubmission{
			PersonImageURL:  personURL,
			GarmentImageURL: garmentURL,
		})
		return serr
	})
	if err != nil {
		c.scheduleCleanup(personURL)
		c.scheduleCleanup(garmentURL)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	return &TryOnStartOutcome{ProviderJobID: handle}, nil
}

// GetStatus resolves either a job ID or a raw provider handle. Jobs
// already terminal are served from the store without touching the
// provider; terminal results for raw handles are served from the cache.
func (c *customizationUC) GetStatus(ctx context.Context, userID, jobIDOrHandle string) (*StatusOutcome, error) {
	jobIDOrHandle = strings.TrimSpace(jobIDOrHandle)
	if jobIDOrHandle == "" {
		return nil, domain.ErrInvalidArgument
	}

	if id, err := strconv.ParseInt(jobIDOrHandle, 10, 64); err == nil && id > 0 {
		job, err := c.jobs.FindByID(ctx, id, userID)
		if err == nil {
			return c.jobStatus(ctx, job)
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		// Providers are free to mint numeric handles; an ID matching no
		// job is retried as one.
	}
	return c.handleStatus(ctx, userID, jobIDOrHandle)
}

func (c *customizationUC) GetJob(ctx context.Context, userID string, jobID int64) (*model.CustomizationJob, error) {
	if strings.TrimSpace(userID) == "" || jobID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return c.jobs.FindByID(ctx, jobID, userID)
}

// jobStatus reconciles a persisted job with the provider. The CAS
// update protects against stale poll responses: once a terminal state
// landed, later writes lose and the stored row wins.
func (c *customizationUC) jobStatus(ctx context.Context, job *model.CustomizationJob) (*StatusOutcome, error) {
	if job.Status.Terminal() {
		return outcomeFromJob(job), nil
	}
	if job.ProviderTryOnJobID == "" {
		// Generation phase; nothing to poll yet.
		return outcomeFromJob(job), nil
	}

	poll, err := c.tryOn.Poll(ctx, job.ProviderTryOnJobID)
	if err != nil {
		return nil, err
	}

	switch poll.Status {
	case model.TryOnStatusCompleted:
		cur, _, err := c.jobs.UpdateStatus(ctx, job.ID, job.Status, model.JobStatusCompleted, repository.JobUpdate{
			ResultImageURL: &poll.ResultImageURL,
		})
		if err != nil {
			return nil, err
		}
		return outcomeFromJob(cur), nil
	case model.TryOnStatusFailed:
		cur, _, err := c.jobs.UpdateStatus(ctx, job.ID, job.Status, model.JobStatusFailed, repository.JobUpdate{
			FailureReason: &poll.FailureReason,
		})
		if err != nil {
			return nil, err
		}
		return outcomeFromJob(cur), nil
	default:
		if poll.IntermediateImageURL != "" && job.Status == model.JobStatusTryOnStarted {
			if cur, applied, err := c.jobs.UpdateStatus(ctx, job.ID, model.JobStatusTryOnStarted, model.JobStatusProductImageGenerated, repository.JobUpdate{}); err == nil && !applied && cur.Status.Terminal() {
				// The job finished while this stale poll was in flight.
				return outcomeFromJob(cur), nil
			}
		}
		return &StatusOutcome{JobID: job.ID, Status: model.TryOnStatusProcessing}, nil
	}
}

// handleStatus polls a raw provider handle from the direct flow. When
// the handle unexpectedly maps to a persisted job (a client polling by
// handle instead of job ID), the job path is used so the transition is
// persisted; a job owned by a different user stays invisible.
func (c *customizationUC) handleStatus(ctx context.Context, userID, handle string) (*StatusOutcome, error) {
	if job, err := c.jobs.FindByTryOnJobID(ctx, handle); err == nil {
		if job.UserID != userID {
			return nil, domain.ErrNotFound
		}
		return c.jobStatus(ctx, job)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if c.cache != nil {
		if cached, err := c.cache.Get(ctx, handle); err == nil && cached != nil {
			return outcomeFromPoll(cached), nil
		}
	}

	poll, err := c.tryOn.Poll(ctx, handle)
	if err != nil {
		return nil, err
	}
	if c.cache != nil && (poll.Status == model.TryOnStatusCompleted || poll.Status == model.TryOnStatusFailed) {
		if err := c.cache.Put(ctx, handle, poll); err != nil {
			c.log.Warn().Err(err).Str("handle", handle).Msg("caching terminal try-on status failed")
		}
	}
	return outcomeFromPoll(poll), nil
}

// withSubmitRetry retries transient upstream failures a bounded number
// of times with exponential backoff. Polls are never routed through
// here; the client's own re-polling is the retry loop for those.
func (c *customizationUC) withSubmitRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn(ctx)
		if err == nil || ctx.Err() != nil || attempt >= c.retries || !domain.IsTransientUpstream(err) {
			return err
		}
		delay := c.backoff << attempt
		c.log.Debug().Err(err).Dur("backoff", delay).Int("attempt", attempt+1).Msg("retrying submit after transient upstream failure")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// markFailed transitions a job to Failed, keeping partial outputs so
// operators can see which stage broke. Persisted via a context immune
// to the caller's cancellation.
func (c *customizationUC) markFailed(ctx context.Context, id int64, expected model.JobStatus, reason string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	cur, applied, err := c.jobs.UpdateStatus(ctx, id, expected, model.JobStatusFailed, repository.JobUpdate{
		FailureReason: &reason,
	})
	if err != nil {
		c.log.Error().Err(err).Int64("job_id", id).Msg("recording job failure failed")
		return
	}
	if !applied {
		c.log.Debug().Int64("job_id", id).Str("status", string(cur.Status)).Msg("job advanced before failure could be recorded")
	}
}

func (c *customizationUC) scheduleCleanup(url string) {
	if c.cleaner == nil || url == "" {
		return
	}
	c.cleaner.ScheduleDelete(url)
}

func outcomeFromJob(job *model.CustomizationJob) *StatusOutcome {
	out := &StatusOutcome{JobID: job.ID, Status: job.NormalizedStatus()}
	if job.Status == model.JobStatusCompleted {
		out.ResultImageURL = job.ResultImageURL
	}
	if job.Status == model.JobStatusFailed {
		out.FailureReason = job.FailureReason
	}
	return out
}

func outcomeFromPoll(poll *adapter.TryOnPoll) *StatusOutcome {
	out := &StatusOutcome{Status: poll.Status}
	if poll.Status == model.TryOnStatusCompleted {
		out.ResultImageURL = poll.ResultImageURL
	}
	if poll.Status == model.TryOnStatusFailed {
		out.FailureReason = poll.FailureReason
	}
	return out
}

func readImage(r io.Reader, filename string) ([]byte, error) {
	if r == nil || strings.TrimSpace(filename) == "" {
		return nil, domain.ErrInvalidArgument
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return nil, domain.ErrInvalidArgument
	}
	return data, nil
}
