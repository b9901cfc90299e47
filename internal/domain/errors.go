package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used across layers.
var (
	ErrNotFound           = errors.New("not found")
	ErrMalformedSnapshot  = errors.New("malformed flight snapshot")
	ErrUnresolvableAsset  = errors.New("unresolvable audio asset")
	ErrDuplicateJob       = errors.New("duplicate announcement job")
	ErrPlaybackFailure    = errors.New("playback failed")
	ErrDeviceUnavailable  = errors.New("audio device unavailable")
	ErrMissingCredentials = errors.New("missing credentials")
	ErrQueueClosed        = errors.New("playback queue is closed")
	ErrUnknownCallType    = errors.New("unknown call type")
)

// SynthesisStage names the step of the TTS pipeline that failed.
type SynthesisStage string

const (
	StageTextGeneration  SynthesisStage = "text-generation"
	StageSpeechSynthesis SynthesisStage = "speech-synthesis"
)

// SynthesisError reports which pipeline stage failed and why.
type SynthesisError struct {
	Stage SynthesisStage
	Err   error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesis failed at %s: %v", e.Stage, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }
