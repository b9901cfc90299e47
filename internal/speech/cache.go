package speech

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/hammamikhairi/gatecaller/internal/logger"
)

// AudioCache is a two-tier cache (in-memory + filesystem) for synthesized
// audio. The cache key is sha256(voice + ":" + script) so a voice change
// causes misses until the voice is switched back.
//
// The memory tier is a bounded LRU whose entries expire after ttl. The disk
// tier is optional and never expires; entries read from disk are promoted
// to memory.
type AudioCache struct {
	entries  *expirable.LRU[string, []byte] // hash -> WAV bytes
	log      *logger.Logger
	voice    string // included in every cache key
	cacheDir string // filesystem cache directory (empty = no disk layer)
	hits     atomic.Int64
	misses   atomic.Int64
}

// NewAudioCache creates an audio cache.
//
//   - voice:    the TTS voice name baked into every cache key.
//   - cacheDir: path to the on-disk cache directory. If empty, the disk
//     layer is disabled entirely.
//   - size, ttl: bounds of the memory tier.
func NewAudioCache(voice, cacheDir string, size int, ttl time.Duration, log *logger.Logger) *AudioCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c := &AudioCache{
		entries:  expirable.NewLRU[string, []byte](size, nil, ttl),
		log:      log,
		voice:    voice,
		cacheDir: cacheDir,
	}

	if cacheDir != "" {
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			log.Error("cache: failed to create cache dir %s: %v", cacheDir, err)
			c.cacheDir = ""
		}
	}

	return c
}

// Get returns cached audio for the script and true, or nil and false.
func (c *AudioCache) Get(script string) ([]byte, bool) {
	key := c.hashKey(script)

	if data, ok := c.entries.Get(key); ok {
		c.hits.Add(1)
		c.log.Debug("cache hit (mem): %s (%s)", truncateForLog(script, 40), humanize.Bytes(uint64(len(data))))
		return data, true
	}

	if c.cacheDir != "" {
		if data, err := os.ReadFile(c.diskPath(key)); err == nil {
			c.entries.Add(key, data)
			c.hits.Add(1)
			c.log.Debug("cache hit (disk): %s (%s)", truncateForLog(script, 40), humanize.Bytes(uint64(len(data))))
			return data, true
		}
	}

	c.misses.Add(1)
	return nil, false
}

// Put stores audio for the script in memory and, when enabled, on disk.
func (c *AudioCache) Put(script string, audio []byte) {
	key := c.hashKey(script)
	c.entries.Add(key, audio)
	c.log.Debug("cache store (mem): %s (%s, %d entries)", truncateForLog(script, 40), humanize.Bytes(uint64(len(audio))), c.entries.Len())

	if c.cacheDir == "" {
		return
	}
	path := c.diskPath(key)
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		c.log.Error("cache: disk write failed for %s: %v", path, err)
	}
}

// Len returns the number of in-memory entries.
func (c *AudioCache) Len() int {
	return c.entries.Len()
}

// Stats returns hit and miss counts.
func (c *AudioCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// hashKey returns a hex-encoded SHA-256 of voice + ":" + script.
func (c *AudioCache) hashKey(script string) string {
	h := sha256.Sum256([]byte(c.voice + ":" + script))
	return hex.EncodeToString(h[:])
}

func (c *AudioCache) diskPath(key string) string {
	return filepath.Join(c.cacheDir, key+".wav")
}

func truncateForLog(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
