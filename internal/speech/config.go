package speech

import "time"

// Default voice for TTS. Change this constant to switch voices.
// Full list: https://learn.microsoft.com/en-us/azure/ai-services/speech-service/language-support
const DefaultVoice = "en-GB-SoniaNeural"

// Audio format returned by Azure. The playback device resamples anything
// else, but this one needs no conversion.
const DefaultAudioFormat = "riff-24khz-16bit-mono-pcm"

// Pipeline defaults.
const (
	DefaultRequestsPerMinute = 30
	DefaultCacheSize         = 64
	DefaultCacheTTL          = 6 * time.Hour
)
