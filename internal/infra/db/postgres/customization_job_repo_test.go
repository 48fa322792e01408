//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"

	"garment-studio/internal/domain"
	"garment-studio/internal/domain/model"
	"garment-studio/internal/domain/ports/repository"
)

func strptr(s string) *string { return &s }

func seedJob(t *testing.T, userID string) *model.CustomizationJob {
	t.Helper()
	repo := NewCustomizationJobRepo(testPool)
	job := model.NewCustomizationJob(userID, "add dragons", "https://cdn/sources/a.png")
	if err := repo.Create(context.Background(), job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if job.ID == 0 {
		t.Fatal("Create did not assign an id")
	}
	return job
}

func TestCreateAndFindByID(t *testing.T) {
	cleanup(t)
	repo := NewCustomizationJobRepo(testPool)
	job := seedJob(t, "user-1")

	got, err := repo.FindByID(context.Background(), job.ID, "user-1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Status != model.JobStatusPendingGeneration {
		t.Errorf("status %s", got.Status)
	}
	if got.Prompt != "add dragons" || got.SourceGarmentImageURL != "https://cdn/sources/a.png" {
		t.Errorf("row mismatch: %+v", got)
	}

	// Owner scoping: another user's lookup misses.
	if _, err := repo.FindByID(context.Background(), job.ID, "user-2"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("foreign lookup: want ErrNotFound, got %v", err)
	}
}

func TestUpdateStatus_AppliesFieldsOnMatch(t *testing.T) {
	cleanup(t)
	repo := NewCustomizationJobRepo(testPool)
	job := seedJob(t, "user-1")

	got, applied, err := repo.UpdateStatus(context.Background(), job.ID,
		model.JobStatusPendingGeneration, model.JobStatusDesignGenerated,
		repository.JobUpdate{GeneratedDesignImageURL: strptr("https://cdn/designs/d.png")})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if !applied {
		t.Fatal("expected applied")
	}
	if got.Status != model.JobStatusDesignGenerated || got.GeneratedDesignImageURL != "https://cdn/designs/d.png" {
		t.Errorf("row after update: %+v", got)
	}
	if !got.UpdatedAt.After(job.CreatedAt) {
		t.Error("updated_at not bumped")
	}
}

func TestUpdateStatus_MissReturnsCurrentRow(t *testing.T) {
	cleanup(t)
	repo := NewCustomizationJobRepo(testPool)
	job := seedJob(t, "user-1")

	// First writer wins.
	if _, applied, err := repo.UpdateStatus(context.Background(), job.ID,
		model.JobStatusPendingGeneration, model.JobStatusDesignGenerated, repository.JobUpdate{}); err != nil || !applied {
		t.Fatalf("first update: applied=%v err=%v", applied, err)
	}

	// Second writer expected the old status; it must observe, not clobber.
	got, applied, err := repo.UpdateStatus(context.Background(), job.ID,
		model.JobStatusPendingGeneration, model.JobStatusGarmentGenerated,
		repository.JobUpdate{GeneratedPreviewImageURL: strptr("https://cdn/previews/p.png")})
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if applied {
		t.Fatal("stale expectation must not apply")
	}
	if got.Status != model.JobStatusDesignGenerated {
		t.Errorf("current row status %s", got.Status)
	}
	if got.GeneratedPreviewImageURL != "" {
		t.Error("fields from the losing write leaked into the row")
	}
}

func TestUpdateStatus_RejectsIllegalTransition(t *testing.T) {
	cleanup(t)
	repo := NewCustomizationJobRepo(testPool)
	job := seedJob(t, "user-1")

	_, _, err := repo.UpdateStatus(context.Background(), job.ID,
		model.JobStatusPendingGeneration, model.JobStatusCompleted, repository.JobUpdate{})
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("want ErrInvalidState, got %v", err)
	}
}

func TestUpdateStatus_NilFieldsPreserveValues(t *testing.T) {
	cleanup(t)
	repo := NewCustomizationJobRepo(testPool)
	job := seedJob(t, "user-1")

	if _, _, err := repo.UpdateStatus(context.Background(), job.ID,
		model.JobStatusPendingGeneration, model.JobStatusDesignGenerated,
		repository.JobUpdate{GeneratedDesignImageURL: strptr("https://cdn/designs/d.png")}); err != nil {
		t.Fatal(err)
	}
	got, _, err := repo.UpdateStatus(context.Background(), job.ID,
		model.JobStatusDesignGenerated, model.JobStatusTryOnStarted,
		repository.JobUpdate{ProviderTryOnJobID: strptr("pred-1")})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if got.GeneratedDesignImageURL != "https://cdn/designs/d.png" {
		t.Error("nil field overwrote an earlier value")
	}
	if got.ProviderTryOnJobID != "pred-1" {
		t.Error("handle not written")
	}
}

func TestFindByTryOnJobID(t *testing.T) {
	cleanup(t)
	repo := NewCustomizationJobRepo(testPool)
	job := seedJob(t, "user-1")

	if _, _, err := repo.UpdateStatus(context.Background(), job.ID,
		model.JobStatusPendingGeneration, model.JobStatusDesignGenerated, repository.JobUpdate{}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := repo.UpdateStatus(context.Background(), job.ID,
		model.JobStatusDesignGenerated, model.JobStatusTryOnStarted,
		repository.JobUpdate{ProviderTryOnJobID: strptr("pred-42")}); err != nil {
		t.Fatal(err)
	}

	got, err := repo.FindByTryOnJobID(context.Background(), "pred-42")
	if err != nil {
		t.Fatalf("FindByTryOnJobID: %v", err)
	}
	if got.ID != job.ID {
		t.Errorf("resolved job %d, want %d", got.ID, job.ID)
	}

	if _, err := repo.FindByTryOnJobID(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}
