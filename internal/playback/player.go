package playback

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ebitengine/oto/v3"

	"github.com/hammamikhairi/gatecaller/internal/domain"
	"github.com/hammamikhairi/gatecaller/internal/logger"
)

// Output format of the audio device. Every clip is converted to it before
// playback.
const (
	SampleRate   = 24000
	ChannelCount = 1
)

// Compile-time interface check.
var _ domain.AudioDevice = (*Player)(nil)

// Player plays encoded announcements (MP3 or WAV) through oto.
type Player struct {
	ctx    *oto.Context
	log    *logger.Logger
	mu     sync.Mutex
	active *oto.Player // currently playing, nil when idle
	closed bool
}

// NewPlayer creates an audio player. Initializes the system audio context.
// Returns an error wrapping ErrDeviceUnavailable if there is no device.
func NewPlayer(log *logger.Logger) (*Player, error) {
	op := &oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: ChannelCount,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDeviceUnavailable, err)
	}
	<-readyChan

	log.Debug("audio player initialized (rate=%d, channels=%d)", SampleRate, ChannelCount)
	return &Player{ctx: ctx, log: log}, nil
}

// Play decodes and plays one clip. Blocks until playback finishes, Stop is
// called, or ctx is cancelled.
func (p *Player) Play(ctx context.Context, audio []byte) error {
	clip, err := Decode(audio)
	if err != nil {
		return err
	}
	pcm, err := clip.Convert(SampleRate, ChannelCount)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("%w: player closed", domain.ErrDeviceUnavailable)
	}
	player := p.ctx.NewPlayer(bytes.NewReader(pcm))
	p.active = player
	p.mu.Unlock()

	player.Play()
	p.log.Debug("audio player: playing %s of PCM", humanize.Bytes(uint64(len(pcm))))

	// Wait for playback to complete or be interrupted.
	var interrupted error
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			interrupted = ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
		if interrupted != nil {
			break
		}
	}

	p.mu.Lock()
	p.active = nil
	p.mu.Unlock()

	if err := player.Err(); err != nil {
		player.Close()
		return err
	}
	if err := player.Close(); err != nil {
		return err
	}
	return interrupted
}

// Stop interrupts the currently playing audio, if any. Safe to call
// concurrently and when nothing is playing.
func (p *Player) Stop() {
	p.mu.Lock()
	active := p.active
	p.mu.Unlock()

	if active != nil {
		active.Pause()
		p.log.Debug("audio player: interrupted")
	}
}

// Close stops playback and refuses further clips. The oto context itself
// lives for the rest of the process.
func (p *Player) Close() {
	p.Stop()
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}
