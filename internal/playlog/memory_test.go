package playlog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hammamikhairi/gatecaller/internal/domain"
	"github.com/hammamikhairi/gatecaller/internal/logger"
)

func TestMemoryLogRecordAndGet(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	store := NewMemoryLog(log)
	ctx := context.Background()

	rec := domain.PlaybackRecord{
		JobID:     "job-1",
		Flights:   []string{"AF456"},
		CallType:  domain.CallBoarding,
		Gate:      "12",
		AssetFile: "456_JFK_boarding_G12_bil.mp3",
		StartedAt: time.Now(),
		EndedAt:   time.Now(),
	}

	// Record.
	if err := store.Record(ctx, rec); err != nil {
		t.Fatalf("record: %v", err)
	}

	// Get.
	got, err := store.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AssetFile != rec.AssetFile {
		t.Fatalf("expected asset %s, got %s", rec.AssetFile, got.AssetFile)
	}

	// Get nonexistent.
	if _, err := store.Get(ctx, "nonexistent"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Second record for the same job.
	if err := store.Record(ctx, rec); !errors.Is(err, ErrAlreadyRecorded) {
		t.Fatalf("expected ErrAlreadyRecorded, got %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", store.Len())
	}
}

func TestMemoryLogListKeepsOrder(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	store := NewMemoryLog(log)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := store.Record(ctx, domain.PlaybackRecord{JobID: id, Flights: []string{domain.SecuritySentinel}}); err != nil {
			t.Fatalf("record %s: %v", id, err)
		}
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].JobID != "a" || list[2].JobID != "c" {
		t.Fatalf("unexpected order: %+v", list)
	}

	// Mutating the returned slice must not touch the log.
	list[0].JobID = "mutated"
	again, _ := store.List(ctx)
	if again[0].JobID != "a" {
		t.Fatal("List leaked internal storage")
	}
}
