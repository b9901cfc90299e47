// Package playlog provides playback record persistence implementations.
package playlog

import (
	"context"
	"sync"

	"github.com/hammamikhairi/gatecaller/internal/domain"
	"github.com/hammamikhairi/gatecaller/internal/logger"
)

// Compile-time interface check.
var _ domain.PlaybackLogger = (*MemoryLog)(nil)

// MemoryLog is an in-memory playback log. Safe for concurrent access.
// Records are kept in insertion order and never modified.
type MemoryLog struct {
	mu      sync.RWMutex
	records []domain.PlaybackRecord
	byJob   map[string]int // job ID -> index in records
	log     *logger.Logger
}

// NewMemoryLog creates an empty in-memory playback log.
func NewMemoryLog(log *logger.Logger) *MemoryLog {
	return &MemoryLog{
		byJob: make(map[string]int),
		log:   log,
	}
}

// Record appends a record. A second record for the same job ID is
// rejected with ErrAlreadyRecorded.
func (s *MemoryLog) Record(ctx context.Context, rec domain.PlaybackRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byJob[rec.JobID]; ok {
		return ErrAlreadyRecorded
	}
	s.log.Debug("recording playback %s (call=%s, flights=%v, failure=%q)", rec.JobID, rec.CallType, rec.Flights, rec.Failure)
	s.byJob[rec.JobID] = len(s.records)
	s.records = append(s.records, rec)
	return nil
}

// Get retrieves the record of a job.
func (s *MemoryLog) Get(ctx context.Context, jobID string) (domain.PlaybackRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byJob[jobID]
	if !ok {
		s.log.Debug("playback record not found: %s", jobID)
		return domain.PlaybackRecord{}, domain.ErrNotFound
	}
	return s.records[i], nil
}

// List returns all records in the order they were written.
func (s *MemoryLog) List(ctx context.Context) ([]domain.PlaybackRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.PlaybackRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

// Len returns the number of records.
func (s *MemoryLog) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
