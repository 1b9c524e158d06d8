package database

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

func TestRunJournal(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.DiscardHandler)
	dbPath := filepath.Join(t.TempDir(), "runs.sqlite")

	db, err := New(ctx, dbPath, log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, status := range []RunStatus{RunStatusSucceeded, RunStatusFailed} {
		_, err = db.AddRun(ctx, &Run{
			Pipeline:   "prs",
			StartedAt:  start.Add(time.Duration(i) * time.Hour),
			FinishedAt: start.Add(time.Duration(i)*time.Hour + time.Minute),
			ItemCount:  3 - i,
			Status:     status,
		})
		if err != nil {
			t.Fatalf("AddRun: %v", err)
		}
	}

	if _, err = db.AddRun(ctx, &Run{Pipeline: " "}); err == nil {
		t.Fatal("expected error for empty pipeline")
	}

	runs, err := db.GetRecentRuns(ctx, "prs", 10)
	if err != nil {
		t.Fatalf("GetRecentRuns: %v", err)
	}

	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Status != RunStatusFailed || runs[0].ItemCount != 2 {
		t.Fatalf("expected most recent run first, got %+v", runs[0])
	}
	if !runs[1].StartedAt.Equal(start) {
		t.Fatalf("unexpected start time: %v", runs[1].StartedAt)
	}

	// Reopening applies no new migrations.
	reopened, err := New(ctx, dbPath, log)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = reopened.Close()
}
