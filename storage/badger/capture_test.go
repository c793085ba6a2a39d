package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/noctua-systems/noctua/core"
	"github.com/noctua-systems/noctua/storage"
)

func TestCaptureBasics(t *testing.T) {
	repos, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { repos.Close(); backend.Close() }()

	ctx := context.Background()

	capture := &core.Capture{
		OwnerId: core.ID(7),
		Kind:    core.KindText,
		Title:   "A note",
		Status:  core.StatusQueued,
	}

	added, err := repos.Captures.AddCaptures(ctx, capture)
	if err != nil {
		t.Fatalf("Failed to add capture: %v", err)
	}

	if len(added) != 1 {
		t.Fatalf("Expected 1 capture, got %d", len(added))
	}
	if added[0].Id == 0 {
		t.Fatal("Expected non-zero ID")
	}
	if added[0].CreatedAt.IsZero() {
		t.Fatal("Expected CreatedAt to be set")
	}

	retrieved, err := repos.Captures.GetCapture(ctx, added[0].Id)
	if err != nil {
		t.Fatalf("Failed to get capture: %v", err)
	}
	if retrieved.Title != "A note" {
		t.Fatalf("Expected 'A note', got '%s'", retrieved.Title)
	}
	if retrieved.Status != core.StatusQueued {
		t.Fatalf("Expected queued status, got %s", retrieved.Status)
	}
}

func TestCaptureNotFound(t *testing.T) {
	repos, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { repos.Close(); backend.Close() }()

	ctx := context.Background()

	_, err = repos.Captures.GetCapture(ctx, core.ID(12345))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	err = repos.Captures.MarkFailed(ctx, core.ID(12345), "nope")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestCaptureStatusTransitions(t *testing.T) {
	repos, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { repos.Close(); backend.Close() }()

	ctx := context.Background()

	added, err := repos.Captures.AddCaptures(ctx, &core.Capture{
		OwnerId: core.ID(7),
		Kind:    core.KindText,
		Status:  core.StatusQueued,
	})
	if err != nil {
		t.Fatalf("Failed to add capture: %v", err)
	}
	id := added[0].Id

	if err := repos.Captures.TransitionStatus(ctx, id, core.StatusQueued, core.StatusProcessingDownload); err != nil {
		t.Fatalf("Failed to transition queued -> processing_download: %v", err)
	}

	// A stale transition must not clobber the current status
	err = repos.Captures.TransitionStatus(ctx, id, core.StatusQueued, core.StatusProcessed)
	if !errors.Is(err, storage.ErrStatusConflict) {
		t.Fatalf("Expected ErrStatusConflict, got %v", err)
	}

	retrieved, err := repos.Captures.GetCapture(ctx, id)
	if err != nil {
		t.Fatalf("Failed to get capture: %v", err)
	}
	if retrieved.Status != core.StatusProcessingDownload {
		t.Fatalf("Expected processing_download, got %s", retrieved.Status)
	}
}

func TestCaptureMarkFailed(t *testing.T) {
	repos, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { repos.Close(); backend.Close() }()

	ctx := context.Background()

	added, err := repos.Captures.AddCaptures(ctx, &core.Capture{
		OwnerId: core.ID(7),
		Kind:    core.KindURL,
		Source:  "https://example.com",
		Status:  core.StatusQueued,
	})
	if err != nil {
		t.Fatalf("Failed to add capture: %v", err)
	}

	if err := repos.Captures.MarkFailed(ctx, added[0].Id, "extraction produced no text"); err != nil {
		t.Fatalf("Failed to mark capture failed: %v", err)
	}

	retrieved, err := repos.Captures.GetCapture(ctx, added[0].Id)
	if err != nil {
		t.Fatalf("Failed to get capture: %v", err)
	}
	if retrieved.Status != core.StatusFailed {
		t.Fatalf("Expected failed status, got %s", retrieved.Status)
	}
	if retrieved.ErrorReason != "extraction produced no text" {
		t.Fatalf("Unexpected error reason: %s", retrieved.ErrorReason)
	}
}

func TestGetRecentCaptures(t *testing.T) {
	repos, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { repos.Close(); backend.Close() }()

	ctx := context.Background()

	owner := core.ID(7)
	other := core.ID(8)
	for i := 0; i < 5; i++ {
		if _, err := repos.Captures.AddCaptures(ctx, &core.Capture{
			OwnerId: owner,
			Kind:    core.KindText,
			Status:  core.StatusQueued,
		}); err != nil {
			t.Fatalf("Failed to add capture: %v", err)
		}
	}
	if _, err := repos.Captures.AddCaptures(ctx, &core.Capture{
		OwnerId: other,
		Kind:    core.KindText,
		Status:  core.StatusQueued,
	}); err != nil {
		t.Fatalf("Failed to add capture: %v", err)
	}

	results, err := repos.Captures.GetRecentCaptures(ctx, owner, 3)
	if err != nil {
		t.Fatalf("Failed to get recent captures: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 captures, got %d", len(results))
	}
	for _, c := range results {
		if c.OwnerId != owner {
			t.Fatalf("Expected owner %d, got %d", owner, c.OwnerId)
		}
	}
}
