package gpt

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hammamikhairi/gatecaller/internal/domain"
	"github.com/hammamikhairi/gatecaller/internal/logger"
)

func TestGenerateAnnouncement(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-key") != "secret" {
			t.Errorf("missing api-key header")
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"\"Flight AF 456 to JFK now boards at gate 14.\""}}]}`))
	}))
	defer srv.Close()

	log := logger.New(logger.LevelOff, nil)
	w := NewWriter(NewClient(srv.URL, "secret", log), log)

	fc := domain.FlightContext{
		Ident:       "AF456",
		Airline:     "AF",
		Destination: "JFK",
		Gate:        "14",
		Scheduled:   time.Date(2025, 7, 1, 14, 35, 0, 0, time.UTC),
	}
	script, err := w.GenerateAnnouncement(context.Background(), "gate change to 14", fc)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if script != "Flight AF 456 to JFK now boards at gate 14." {
		t.Fatalf("unexpected script %q", script)
	}

	// system, context, ack, instruction
	if len(got.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(got.Messages))
	}
	ctxText := got.Messages[1].Content
	for _, want := range []string{"Flight: AF456", "Gate: 14", "Scheduled: 14:35"} {
		if !strings.Contains(ctxText, want) {
			t.Errorf("context missing %q:\n%s", want, ctxText)
		}
	}
	if got.Messages[0].Role != "system" || got.Messages[2].Role != "assistant" {
		t.Errorf("unexpected roles %s/%s", got.Messages[0].Role, got.Messages[2].Role)
	}
	if got.Temperature != scriptTemperature || got.MaxTokens != scriptMaxTokens {
		t.Errorf("sampling = %v/%d", got.Temperature, got.MaxTokens)
	}
	if got.Messages[3].Content != "gate change to 14" {
		t.Errorf("unexpected instruction %q", got.Messages[3].Content)
	}
}

func TestGenerateWithoutFlightContext(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"choices":[{"message":{"content":"Please keep your belongings with you."}}]}`))
	}))
	defer srv.Close()

	log := logger.New(logger.LevelOff, nil)
	w := NewWriter(NewClient(srv.URL, "k", log), log)

	if _, err := w.GenerateAnnouncement(context.Background(), "unattended bags reminder", domain.FlightContext{}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("expected system + instruction only, got %d messages", len(got.Messages))
	}
}

func TestMissingCredentials(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	tests := []struct {
		name, endpoint, key string
	}{
		{"no key", "http://localhost:1", ""},
		{"no endpoint", "", "k"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWriter(NewClient(tt.endpoint, tt.key, log), log)
			_, err := w.GenerateAnnouncement(context.Background(), "hello", domain.FlightContext{})
			if !errors.Is(err, domain.ErrMissingCredentials) {
				t.Fatalf("expected ErrMissingCredentials, got %v", err)
			}
		})
	}
}

func TestNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	log := logger.New(logger.LevelOff, nil)
	w := NewWriter(NewClient(srv.URL, "k", log), log)
	if _, err := w.GenerateAnnouncement(context.Background(), "hello", domain.FlightContext{}); err == nil {
		t.Fatal("expected an error for 429")
	}
}

func TestCleanScript(t *testing.T) {
	tests := []struct{ in, want string }{
		{"plain", "plain"},
		{"  \"quoted\"  ", "quoted"},
		{"```\nfenced text\n```", "fenced text"},
	}
	for _, tt := range tests {
		if got := cleanScript(tt.in); got != tt.want {
			t.Errorf("cleanScript(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
