package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"garment-studio/internal/domain"
	"garment-studio/internal/domain/model"
	"garment-studio/internal/domain/ports/repository"
	"garment-studio/internal/infra/metrics"
)

var _ repository.CustomizationJobRepository = (*customizationJobRepo)(nil)

const jobColumns = `id, user_id, status, prompt, source_garment_image_url,
generated_design_image_url, generated_preview_image_url, provider_try_on_job_id,
result_image_url, failure_reason, created_at, updated_at`

type customizationJobRepo struct {
	pool *pgxpool.Pool
}

func NewCustomizationJobRepo(pool *pgxpool.Pool) *customizationJobRepo {
	return &customizationJobRepo{pool: pool}
}

func (r *customizationJobRepo) Create(ctx context.Context, job *model.CustomizationJob) error {
	const q = `
INSERT INTO customization_jobs (user_id, status, prompt, source_garment_image_url, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id;`

	job.UpdatedAt = time.Now()
	row := r.pool.QueryRow(ctx, q,
		job.UserID, job.Status, job.Prompt, job.SourceGarmentImageURL, job.CreatedAt, job.UpdatedAt)
	if err := row.Scan(&job.ID); err != nil {
		return domain.ErrOperationFailed
	}
	metrics.IncJobStatus(string(job.Status))
	return nil
}

func (r *customizationJobRepo) FindByID(ctx context.Context, id int64, userID string) (*model.CustomizationJob, error) {
	const q = `SELECT ` + jobColumns + ` FROM customization_jobs WHERE id=$1 AND user_id=$2;`
	return r.scanOne(r.pool.QueryRow(ctx, q, id, userID))
}

func (r *customizationJobRepo) FindByTryOnJobID(ctx context.Context, providerJobID string) (*model.CustomizationJob, error) {
	const q = `SELECT ` + jobColumns + ` FROM customization_jobs WHERE provider_try_on_job_id=$1;`
	return r.scanOne(r.pool.QueryRow(ctx, q, providerJobID))
}

// UpdateStatus is the compare-and-set write. The WHERE clause pins the
// expected status; when it no longer matches, the current row is
// fetched and returned with applied=false so a stale poll response can
// never clobber a more advanced state.
func (r *customizationJobRepo) UpdateStatus(ctx context.Context, id int64, expected, next model.JobStatus, fields repository.JobUpdate) (*model.CustomizationJob, bool, error) {
	if !expected.CanTransition(next) {
		return nil, false, domain.ErrInvalidState
	}

	const q = `
UPDATE customization_jobs SET
  status                      = $3,
  generated_design_image_url  = COALESCE($4, generated_design_image_url),
  generated_preview_image_url = COALESCE($5, generated_preview_image_url),
  provider_try_on_job_id      = COALESCE($6, provider_try_on_job_id),
  result_image_url            = COALESCE($7, result_image_url),
  failure_reason              = COALESCE($8, failure_reason),
  updated_at                  = NOW()
WHERE id=$1 AND status=$2
RETURNING ` + jobColumns + `;`

	job, err := r.scanOne(r.pool.QueryRow(ctx, q, id, expected, next,
		fields.GeneratedDesignImageURL, fields.GeneratedPreviewImageURL,
		fields.ProviderTryOnJobID, fields.ResultImageURL, fields.FailureReason))
	if err == nil {
		metrics.IncJobStatus(string(next))
		return job, true, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}

	// CAS miss: someone else advanced the job, or it does not exist.
	const cur = `SELECT ` + jobColumns + ` FROM customization_jobs WHERE id=$1;`
	job, err = r.scanOne(r.pool.QueryRow(ctx, cur, id))
	if err != nil {
		return nil, false, err
	}
	return job, false, nil
}

func (r *customizationJobRepo) scanOne(row pgx.Row) (*model.CustomizationJob, error) {
	j := &model.CustomizationJob{}
	var status string
	err := row.Scan(&j.ID, &j.UserID, &status, &j.Prompt, &j.SourceGarmentImageURL,
		&j.GeneratedDesignImageURL, &j.GeneratedPreviewImageURL, &j.ProviderTryOnJobID,
		&j.ResultImageURL, &j.FailureReason, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	j.Status = model.JobStatus(status)
	return j, nil
}
