package playback

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/tosone/minimp3"
)

// Clip is decoded 16-bit little-endian PCM.
type Clip struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

// Decode sniffs the container and returns PCM. WAV (RIFF, 16-bit PCM) and
// MP3 are supported.
func Decode(data []byte) (*Clip, error) {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return decodeWAV(data)
	case isMP3(data):
		dec, pcm, err := minimp3.DecodeFull(data)
		if err != nil {
			return nil, fmt.Errorf("decoding mp3: %w", err)
		}
		if dec.Channels < 1 || dec.SampleRate <= 0 {
			return nil, errors.New("mp3 has no audio frames")
		}
		return &Clip{PCM: pcm, SampleRate: dec.SampleRate, Channels: dec.Channels}, nil
	default:
		return nil, errors.New("unrecognized audio format")
	}
}

func isMP3(data []byte) bool {
	if len(data) < 3 {
		return false
	}
	if bytes.HasPrefix(data, []byte("ID3")) {
		return true
	}
	// MPEG frame sync: 11 set bits.
	return data[0] == 0xFF && data[1]&0xE0 == 0xE0
}

// decodeWAV walks the RIFF chunks for "fmt " and "data".
func decodeWAV(wav []byte) (*Clip, error) {
	if len(wav) < 44 {
		return nil, errors.New("wav data too short")
	}

	clip := &Clip{}
	var gotFmt bool

	pos := 12
	for pos < len(wav)-8 {
		chunkID := string(wav[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[pos+4 : pos+8]))
		body := pos + 8

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 || body+16 > len(wav) {
				return nil, fmt.Errorf("truncated fmt chunk (%d bytes)", chunkSize)
			}
			format := binary.LittleEndian.Uint16(wav[body : body+2])
			bits := binary.LittleEndian.Uint16(wav[body+14 : body+16])
			if format != 1 || bits != 16 {
				return nil, fmt.Errorf("unsupported wav encoding (format=%d, bits=%d)", format, bits)
			}
			clip.Channels = int(binary.LittleEndian.Uint16(wav[body+2 : body+4]))
			clip.SampleRate = int(binary.LittleEndian.Uint32(wav[body+4 : body+8]))
			if clip.Channels < 1 || clip.SampleRate <= 0 {
				return nil, fmt.Errorf("invalid wav format (channels=%d, rate=%d)", clip.Channels, clip.SampleRate)
			}
			gotFmt = true
		case "data":
			if !gotFmt {
				return nil, errors.New("data chunk before fmt chunk")
			}
			end := body + chunkSize
			if end > len(wav) {
				end = len(wav)
			}
			clip.PCM = wav[body:end]
			return clip, nil
		}

		pos = body + chunkSize
		// Chunks are word-aligned.
		if chunkSize%2 != 0 {
			pos++
		}
	}

	return nil, errors.New("data chunk not found in WAV")
}

// Convert returns the clip's PCM remixed to channels and linearly resampled
// to rate. The clip itself is left untouched.
func (c *Clip) Convert(rate, channels int) ([]byte, error) {
	if c.Channels < 1 || c.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid clip format (channels=%d, rate=%d)", c.Channels, c.SampleRate)
	}
	if channels < 1 || rate <= 0 {
		return nil, fmt.Errorf("invalid output format (channels=%d, rate=%d)", channels, rate)
	}
	if c.SampleRate == rate && c.Channels == channels {
		return c.PCM, nil
	}

	in := samples(c.PCM)
	frames := len(in) / c.Channels
	if frames == 0 {
		return nil, nil
	}

	// Mix each frame down to mono first; every target layout is built from it.
	mono := make([]float64, frames)
	for f := 0; f < frames; f++ {
		var sum float64
		for ch := 0; ch < c.Channels; ch++ {
			sum += float64(in[f*c.Channels+ch])
		}
		mono[f] = sum / float64(c.Channels)
	}

	outFrames := int(int64(frames) * int64(rate) / int64(c.SampleRate))
	out := make([]byte, outFrames*channels*2)
	step := float64(c.SampleRate) / float64(rate)
	for f := 0; f < outFrames; f++ {
		src := float64(f) * step
		i := int(src)
		frac := src - float64(i)
		v := mono[i]
		if i+1 < frames {
			v += (mono[i+1] - v) * frac
		}
		s := uint16(int16(clamp16(v)))
		for ch := 0; ch < channels; ch++ {
			binary.LittleEndian.PutUint16(out[(f*channels+ch)*2:], s)
		}
	}
	return out, nil
}

func samples(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}

func clamp16(v float64) float64 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return v
}
