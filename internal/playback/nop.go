package playback

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hammamikhairi/gatecaller/internal/domain"
	"github.com/hammamikhairi/gatecaller/internal/logger"
)

// Compile-time interface check.
var _ domain.AudioDevice = (*NopDevice)(nil)

// NopDevice is an audio device that plays nothing. Used for dry runs on
// hosts without a sound card.
type NopDevice struct {
	log  *logger.Logger
	hold time.Duration
}

// NewNopDevice creates a silent device. Each clip holds the device for hold.
func NewNopDevice(hold time.Duration, log *logger.Logger) *NopDevice {
	return &NopDevice{log: log, hold: hold}
}

// Play logs the clip size and waits hold or until ctx is done.
func (n *NopDevice) Play(ctx context.Context, audio []byte) error {
	n.log.Debug("nop device: would play %s", humanize.Bytes(uint64(len(audio))))
	if n.hold <= 0 {
		return nil
	}
	t := time.NewTimer(n.hold)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
