package domain

import "context"

// Enqueuer accepts announcement jobs. The playback queue is the only
// production implementation; it returns ErrDuplicateJob when a job with the
// same dedup key is already pending or playing.
type Enqueuer interface {
	Enqueue(job AnnouncementJob) error
}

// AudioDevice plays one encoded clip at a time. Play blocks until the clip
// finishes. Errors wrapping ErrDeviceUnavailable mean the device is gone for
// good; anything else is a per-clip failure.
type AudioDevice interface {
	Play(ctx context.Context, audio []byte) error
}

// AssetStore reads prerecorded announcements. Paths are relative to the
// store root. Implementations never write.
type AssetStore interface {
	Read(ctx context.Context, path string) ([]byte, error)
}

// PlaybackLogger persists one record per playback attempt. Implementations
// can be in-memory or database-backed.
type PlaybackLogger interface {
	Record(ctx context.Context, rec PlaybackRecord) error
}

// Synthesizer turns free text into a playable asset. Used only for
// dynamically generated announcements.
type Synthesizer interface {
	Synthesize(ctx context.Context, rawText string, flight FlightContext) (*AudioAsset, error)
}
