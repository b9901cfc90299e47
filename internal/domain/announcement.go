package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CallType is the category of a spoken announcement.
type CallType int

const (
	CallFirst CallType = iota
	CallSecond
	CallBoarding
	CallLast
	CallArrival
	CallBaggage
	CallSecurity
	CallCustom // synthesized on demand
)

// String returns the call type as used in asset paths and logs.
func (c CallType) String() string {
	switch c {
	case CallFirst:
		return "first_call"
	case CallSecond:
		return "second_call"
	case CallBoarding:
		return "boarding"
	case CallLast:
		return "last_call"
	case CallArrival:
		return "arrival"
	case CallBaggage:
		return "baggage"
	case CallSecurity:
		return "security"
	case CallCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// ParseCallType reverses String. Case and surrounding space are ignored;
// any other name, "unknown" included, is ErrUnknownCallType.
func ParseCallType(name string) (CallType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for c := CallFirst; c <= CallCustom; c++ {
		if c.String() == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownCallType, name)
}

// Departure reports whether the call belongs to the boarding process.
func (c CallType) Departure() bool {
	return c == CallFirst || c == CallSecond || c == CallBoarding || c == CallLast
}

// FlightBound reports whether jobs of this type target a specific flight.
func (c CallType) FlightBound() bool {
	return c.Departure() || c == CallArrival
}

// SecuritySentinel stands in for flight identifiers in playback records of
// non-flight announcements.
const SecuritySentinel = "SEC"

// AssetReference points at playable audio. Either Path is set (relative to
// the asset store root) or Audio carries synthesized bytes inline.
type AssetReference struct {
	Path  string
	Audio []byte
}

// Name returns the file name recorded in playback logs.
func (a AssetReference) Name() string {
	if a.Path != "" {
		return filepath.Base(a.Path)
	}
	if len(a.Audio) > 0 {
		return "synthesized.wav"
	}
	return ""
}

// Inline reports whether the audio is carried in memory.
func (a AssetReference) Inline() bool {
	return a.Path == "" && len(a.Audio) > 0
}

// AudioAsset is the output of the synthesis pipeline.
type AudioAsset struct {
	Script string
	Audio  []byte
}

// AnnouncementJob is one announcement waiting to be played.
type AnnouncementJob struct {
	ID          string
	CallType    CallType
	FlightIdent string // empty for non-flight calls
	Gate        string
	Priority    int
	Asset       AssetReference
	NotBefore   time.Time
	Key         string // dedup key, see DedupKey
}

// NewJob creates a job with a fresh ID and its dedup key filled in.
func NewJob(call CallType, ident string, priority int, asset AssetReference) AnnouncementJob {
	return AnnouncementJob{
		ID:          uuid.NewString(),
		CallType:    call,
		FlightIdent: ident,
		Priority:    priority,
		Asset:       asset,
		Key:         DedupKey(call, ident),
	}
}

// DedupKey is (ident, call type) for flight jobs and the call class for
// everything else.
func DedupKey(call CallType, ident string) string {
	if ident == "" {
		return call.String()
	}
	return ident + ":" + call.String()
}

// PlaybackRecord is the logged outcome of one playback attempt.
type PlaybackRecord struct {
	JobID     string
	Flights   []string
	CallType  CallType
	Gate      string
	AssetFile string
	StartedAt time.Time
	EndedAt   time.Time
	Failure   string // empty on success
}

// Succeeded reports whether the attempt played to completion.
func (r PlaybackRecord) Succeeded() bool { return r.Failure == "" }

// RecordFor builds the skeleton record for a job about to be played.
func RecordFor(job AnnouncementJob, started time.Time) PlaybackRecord {
	flights := []string{SecuritySentinel}
	if job.FlightIdent != "" {
		flights = []string{job.FlightIdent}
	}
	return PlaybackRecord{
		JobID:     job.ID,
		Flights:   flights,
		CallType:  job.CallType,
		Gate:      job.Gate,
		AssetFile: job.Asset.Name(),
		StartedAt: started,
	}
}
