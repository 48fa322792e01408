package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS customization_jobs (
  id                           BIGSERIAL PRIMARY KEY,
  user_id                      TEXT        NOT NULL,
  status                       TEXT        NOT NULL,
  prompt                       TEXT        NOT NULL DEFAULT '',
  source_garment_image_url     TEXT        NOT NULL DEFAULT '',
  generated_design_image_url   TEXT        NOT NULL DEFAULT '',
  generated_preview_image_url  TEXT        NOT NULL DEFAULT '',
  provider_try_on_job_id       TEXT        NOT NULL DEFAULT '',
  result_image_url             TEXT        NOT NULL DEFAULT '',
  failure_reason               TEXT        NOT NULL DEFAULT '',
  created_at                   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at                   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_customization_jobs_user
  ON customization_jobs (user_id, created_at DESC);

CREATE UNIQUE INDEX IF NOT EXISTS idx_customization_jobs_tryon_handle
  ON customization_jobs (provider_try_on_job_id)
  WHERE provider_try_on_job_id <> '';
`

// Migrate applies the schema. Statements are idempotent so running at
// every startup is safe.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
