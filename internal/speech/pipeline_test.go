package speech

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hammamikhairi/gatecaller/internal/domain"
	"github.com/hammamikhairi/gatecaller/internal/gpt"
	"github.com/hammamikhairi/gatecaller/internal/logger"
)

// mockWriter returns a fixed script or error.
type mockWriter struct {
	script string
	err    error
	calls  int
}

func (w *mockWriter) GenerateAnnouncement(ctx context.Context, instruction string, fc domain.FlightContext) (string, error) {
	w.calls++
	return w.script, w.err
}

// mockVoice records every script it is asked to voice.
type mockVoice struct {
	mu      sync.Mutex
	scripts []string
	err     error
}

func (v *mockVoice) Synthesize(ctx context.Context, script string) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.scripts = append(v.scripts, script)
	if v.err != nil {
		return nil, v.err
	}
	return []byte("RIFF" + script), nil
}

func (v *mockVoice) count() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.scripts)
}

func TestPipelineSynthesize(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	w := &mockWriter{script: "Flight AF 456 now boarding at gate 12."}
	v := &mockVoice{}
	p := NewPipeline(w, v, log, WithRequestsPerMinute(0))

	asset, err := p.Synthesize(context.Background(), "boarding now", domain.FlightContext{Ident: "AF456"})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if asset.Script != w.script || string(asset.Audio) != "RIFF"+w.script {
		t.Fatalf("unexpected asset %+v", asset)
	}
}

func TestPipelineStages(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	tests := []struct {
		name   string
		writer *mockWriter
		voice  *mockVoice
		stage  domain.SynthesisStage
		voiced int
	}{
		{
			name:   "text generation fails",
			writer: &mockWriter{err: errors.New("gpt: API 500")},
			voice:  &mockVoice{},
			stage:  domain.StageTextGeneration,
			voiced: 0,
		},
		{
			name:   "empty script",
			writer: &mockWriter{script: ""},
			voice:  &mockVoice{},
			stage:  domain.StageTextGeneration,
			voiced: 0,
		},
		{
			name:   "speech synthesis fails",
			writer: &mockWriter{script: "hello"},
			voice:  &mockVoice{err: errors.New("azure tts error 401")},
			stage:  domain.StageSpeechSynthesis,
			voiced: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPipeline(tt.writer, tt.voice, log, WithRequestsPerMinute(0))
			_, err := p.Synthesize(context.Background(), "x", domain.FlightContext{})

			var se *domain.SynthesisError
			if !errors.As(err, &se) {
				t.Fatalf("expected *SynthesisError, got %v", err)
			}
			if se.Stage != tt.stage {
				t.Fatalf("stage = %s, want %s", se.Stage, tt.stage)
			}
			if n := tt.voice.count(); n != tt.voiced {
				t.Fatalf("voice called %d times, want %d", n, tt.voiced)
			}
		})
	}
}

func TestMissingCredentialsFailBeforeSpeech(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)

	var speechHits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		speechHits++
		w.Write([]byte("RIFF"))
	}))
	defer srv.Close()

	tests := []struct {
		name   string
		writer *gpt.Writer
		voice  *AzureClient
	}{
		{
			name:   "no chat key",
			writer: gpt.NewWriter(gpt.NewClient("http://127.0.0.1:1", "", log), log),
			voice:  NewAzureClient("key", "", log, WithEndpoint(srv.URL)),
		},
		{
			name:   "no speech key",
			writer: gpt.NewWriter(gpt.NewClient("http://127.0.0.1:1", "k", log), log),
			voice:  NewAzureClient("", "westeurope", log),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPipeline(tt.writer, tt.voice, log)
			_, err := p.Synthesize(context.Background(), "gate change", domain.FlightContext{Ident: "AF456"})

			var se *domain.SynthesisError
			if !errors.As(err, &se) || se.Stage != domain.StageTextGeneration {
				t.Fatalf("expected text-generation failure, got %v", err)
			}
			if !errors.Is(err, domain.ErrMissingCredentials) {
				t.Fatalf("expected ErrMissingCredentials, got %v", err)
			}
		})
	}
	if speechHits != 0 {
		t.Fatalf("speech service was called %d times", speechHits)
	}
}

func TestPipelineCachesByScript(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	w := &mockWriter{script: "Please do not leave baggage unattended."}
	v := &mockVoice{}
	cache := NewAudioCache(DefaultVoice, t.TempDir(), 8, time.Hour, log)
	p := NewPipeline(w, v, log, WithCache(cache), WithRequestsPerMinute(0))

	for i := 0; i < 3; i++ {
		if _, err := p.Synthesize(context.Background(), "bags", domain.FlightContext{}); err != nil {
			t.Fatalf("synthesize %d: %v", i, err)
		}
	}
	if v.count() != 1 {
		t.Fatalf("expected one speech request, got %d", v.count())
	}
	if w.calls != 3 {
		t.Fatalf("expected the writer to run every time, got %d", w.calls)
	}
	hits, misses := cache.Stats()
	if hits != 2 || misses != 1 {
		t.Fatalf("hits=%d misses=%d", hits, misses)
	}
}

func TestAudioCacheDiskTier(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	dir := t.TempDir()

	first := NewAudioCache("voice-a", dir, 4, time.Hour, log)
	first.Put("hello", []byte("wav"))

	// A fresh cache over the same directory starts warm.
	second := NewAudioCache("voice-a", dir, 4, time.Hour, log)
	data, ok := second.Get("hello")
	if !ok || string(data) != "wav" {
		t.Fatalf("expected disk hit, got %q %v", data, ok)
	}
	if second.Len() != 1 {
		t.Fatal("expected disk hit to be promoted to memory")
	}

	// Another voice never shares entries.
	other := NewAudioCache("voice-b", dir, 4, time.Hour, log)
	if _, ok := other.Get("hello"); ok {
		t.Fatal("expected miss for a different voice")
	}
}

func TestAzureSynthesize(t *testing.T) {
	var body string
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		headers = r.Header.Clone()
		w.Write([]byte("RIFFdata"))
	}))
	defer srv.Close()

	log := logger.New(logger.LevelOff, nil)
	c := NewAzureClient("key", "", log, WithEndpoint(srv.URL), WithVoice("en-US-JennyNeural"))

	audio, err := c.Synthesize(context.Background(), "Gates 1 & 2 <closed>")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if string(audio) != "RIFFdata" {
		t.Fatalf("unexpected audio %q", audio)
	}
	if !strings.Contains(body, "Gates 1 &amp; 2 &lt;closed&gt;") {
		t.Fatalf("script not escaped: %s", body)
	}
	if !strings.Contains(body, "<voice name='en-US-JennyNeural'>") {
		t.Fatalf("voice not applied: %s", body)
	}
	if headers.Get("Ocp-Apim-Subscription-Key") != "key" || headers.Get("X-Microsoft-OutputFormat") != DefaultAudioFormat {
		t.Fatalf("unexpected headers %v", headers)
	}
}

func TestAzureNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	log := logger.New(logger.LevelOff, nil)
	c := NewAzureClient("key", "", log, WithEndpoint(srv.URL))
	if _, err := c.Synthesize(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for 401")
	}
}
