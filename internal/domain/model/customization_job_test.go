package model

import "testing"

func TestCanTransition_ForwardPath(t *testing.T) {
	path := []JobStatus{
		JobStatusPendingGeneration,
		JobStatusDesignGenerated,
		JobStatusGarmentGenerated,
		JobStatusTryOnStarted,
		JobStatusProductImageGenerated,
		JobStatusCompleted,
	}
	for i := 0; i < len(path)-1; i++ {
		if !path[i].CanTransition(path[i+1]) {
			t.Errorf("%s -> %s should be allowed", path[i], path[i+1])
		}
	}
}

func TestCanTransition_SkipsAllowedOnly(t *testing.T) {
	// Design-only providers skip the preview stage.
	if !JobStatusPendingGeneration.CanTransition(JobStatusGarmentGenerated) {
		t.Error("pending -> garment_generated should be allowed")
	}
	if !JobStatusDesignGenerated.CanTransition(JobStatusTryOnStarted) {
		t.Error("design_generated -> try_on_started should be allowed")
	}
	if !JobStatusTryOnStarted.CanTransition(JobStatusCompleted) {
		t.Error("try_on_started -> completed should be allowed")
	}

	// Backwards and jump-ahead moves are rejected.
	if JobStatusGarmentGenerated.CanTransition(JobStatusDesignGenerated) {
		t.Error("backwards transition allowed")
	}
	if JobStatusPendingGeneration.CanTransition(JobStatusCompleted) {
		t.Error("pending -> completed allowed")
	}
	if JobStatusDesignGenerated.CanTransition(JobStatusProductImageGenerated) {
		t.Error("design_generated -> product_image_generated allowed")
	}
}

func TestCanTransition_FailedFromAnyNonTerminal(t *testing.T) {
	nonTerminal := []JobStatus{
		JobStatusPendingGeneration,
		JobStatusDesignGenerated,
		JobStatusGarmentGenerated,
		JobStatusTryOnStarted,
		JobStatusProductImageGenerated,
	}
	for _, s := range nonTerminal {
		if !s.CanTransition(JobStatusFailed) {
			t.Errorf("%s -> failed should be allowed", s)
		}
	}
}

func TestTerminalStatesAreImmutable(t *testing.T) {
	all := []JobStatus{
		JobStatusPendingGeneration, JobStatusDesignGenerated, JobStatusGarmentGenerated,
		JobStatusTryOnStarted, JobStatusProductImageGenerated, JobStatusCompleted, JobStatusFailed,
	}
	for _, terminal := range []JobStatus{JobStatusCompleted, JobStatusFailed} {
		if !terminal.Terminal() {
			t.Errorf("%s should be terminal", terminal)
		}
		for _, to := range all {
			if terminal.CanTransition(to) {
				t.Errorf("%s -> %s allowed out of a terminal state", terminal, to)
			}
		}
	}
}

func TestEligibleForTryOn(t *testing.T) {
	want := map[JobStatus]bool{
		JobStatusPendingGeneration:     false,
		JobStatusDesignGenerated:       true,
		JobStatusGarmentGenerated:      true,
		JobStatusTryOnStarted:          false,
		JobStatusProductImageGenerated: false,
		JobStatusCompleted:             false,
		JobStatusFailed:                false,
	}
	for s, ok := range want {
		if s.EligibleForTryOn() != ok {
			t.Errorf("EligibleForTryOn(%s) = %v, want %v", s, !ok, ok)
		}
	}
}

func TestNormalizedStatus(t *testing.T) {
	cases := map[JobStatus]TryOnStatus{
		JobStatusPendingGeneration:     TryOnStatusPending,
		JobStatusDesignGenerated:       TryOnStatusPending,
		JobStatusGarmentGenerated:      TryOnStatusPending,
		JobStatusTryOnStarted:          TryOnStatusProcessing,
		JobStatusProductImageGenerated: TryOnStatusProcessing,
		JobStatusCompleted:             TryOnStatusCompleted,
		JobStatusFailed:                TryOnStatusFailed,
	}
	for s, want := range cases {
		j := &CustomizationJob{Status: s}
		if got := j.NormalizedStatus(); got != want {
			t.Errorf("NormalizedStatus(%s) = %s, want %s", s, got, want)
		}
	}
}

func TestNewCustomizationJob(t *testing.T) {
	j := NewCustomizationJob("user-1", "add dragons", "https://cdn/sources/a.png")
	if j.Status != JobStatusPendingGeneration {
		t.Errorf("new job status %s", j.Status)
	}
	if j.UserID != "user-1" || j.Prompt != "add dragons" || j.SourceGarmentImageURL != "https://cdn/sources/a.png" {
		t.Errorf("fields not carried: %+v", j)
	}
	if j.CreatedAt.IsZero() || j.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}
}
