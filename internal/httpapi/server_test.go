package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hammamikhairi/gatecaller/internal/domain"
	"github.com/hammamikhairi/gatecaller/internal/logger"
	"github.com/hammamikhairi/gatecaller/internal/metrics"
	"github.com/hammamikhairi/gatecaller/internal/playback"
	"github.com/hammamikhairi/gatecaller/internal/playlog"
)

// mockSynth echoes the instruction and captures the flight context.
type mockSynth struct {
	err error
	fc  domain.FlightContext
}

func (m *mockSynth) Synthesize(_ context.Context, raw string, fc domain.FlightContext) (*domain.AudioAsset, error) {
	m.fc = fc
	if m.err != nil {
		return nil, m.err
	}
	return &domain.AudioAsset{Script: raw, Audio: []byte("RIFF")}, nil
}

type mockFlights map[string]domain.FlightSnapshot

func (m mockFlights) Snapshot(ident string) (domain.FlightSnapshot, bool) {
	s, ok := m[ident]
	return s, ok
}

func setup(t *testing.T, opts ...Option) (*httptest.Server, *playback.Queue) {
	t.Helper()
	log := logger.New(logger.LevelOff, nil)
	reg := prometheus.NewRegistry()
	q := playback.NewQueue(nil, nil, playlog.NewMemoryLog(log), log, playback.WithMetrics(metrics.New("test", reg)))
	opts = append(opts, WithGatherer(reg))
	srv := httptest.NewServer(New(q, log, opts...).Handler())
	t.Cleanup(srv.Close)
	return srv, q
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := setup(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("health: %v %v", resp, err)
	}
	resp.Body.Close()

	post(t, srv.URL+"/announcements/security", "")

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	buf := new(strings.Builder)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(buf.String(), `test_jobs_enqueued_total{call="security"} 1`) {
		t.Fatalf("enqueue counter missing from metrics:\n%s", buf.String())
	}
}

func TestSecurityAnnouncementDedup(t *testing.T) {
	srv, q := setup(t)

	if resp := post(t, srv.URL+"/announcements/security", ""); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("first: status %d", resp.StatusCode)
	}
	if resp := post(t, srv.URL+"/announcements/security", ""); resp.StatusCode != http.StatusConflict {
		t.Fatalf("second: status %d, want 409", resp.StatusCode)
	}
	if q.Len() != 1 {
		t.Fatalf("expected one pending job, got %d", q.Len())
	}
}

func TestQueueView(t *testing.T) {
	srv, q := setup(t)
	q.Enqueue(domain.NewJob(domain.CallBoarding, "AF456", 5, domain.AssetReference{Path: "departure/AF/456_JFK_boarding_G12_bil.mp3"}))
	q.Enqueue(domain.NewJob(domain.CallLast, "AF789", 6, domain.AssetReference{Path: "departure/AF/789_CDG_last_call_G3_bil.mp3"}))

	resp, err := http.Get(srv.URL + "/queue")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var view queueView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.InFlight != nil {
		t.Fatal("nothing should be in flight")
	}
	if len(view.Pending) != 2 || view.Pending[0].Flight != "AF789" || view.Pending[1].Asset != "456_JFK_boarding_G12_bil.mp3" {
		t.Fatalf("unexpected pending view %+v", view.Pending)
	}
}

func TestCustomAnnouncement(t *testing.T) {
	synth := &mockSynth{}
	flights := mockFlights{"AF456": {Ident: "AF456", AirlineIATA: "AF", Destination: "JFK", Gate: "12"}}
	srv, q := setup(t, WithSynthesizer(synth), WithFlights(flights))

	resp := post(t, srv.URL+"/announcements/custom", `{"text":"gate change","ident":"af456","gate":"14"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if synth.fc.Destination != "JFK" || synth.fc.Gate != "14" {
		t.Fatalf("flight context not built from snapshot: %+v", synth.fc)
	}

	pending := q.Pending()
	if len(pending) != 1 {
		t.Fatalf("expected one job, got %d", len(pending))
	}
	job := pending[0]
	if job.CallType != domain.CallCustom || job.Key != "custom:AF456" || !job.Asset.Inline() || job.Gate != "14" {
		t.Fatalf("unexpected job %+v", job)
	}

	// Same flight again while pending.
	if resp := post(t, srv.URL+"/announcements/custom", `{"text":"another","ident":"AF456"}`); resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestCustomAnnouncementErrors(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		srv, _ := setup(t)
		if resp := post(t, srv.URL+"/announcements/custom", `{"text":"x"}`); resp.StatusCode != http.StatusServiceUnavailable {
			t.Fatalf("status %d", resp.StatusCode)
		}
	})

	t.Run("empty text", func(t *testing.T) {
		srv, _ := setup(t, WithSynthesizer(&mockSynth{}))
		if resp := post(t, srv.URL+"/announcements/custom", `{"text":"  "}`); resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status %d", resp.StatusCode)
		}
	})

	t.Run("synthesis failure", func(t *testing.T) {
		synth := &mockSynth{err: &domain.SynthesisError{Stage: domain.StageTextGeneration, Err: domain.ErrMissingCredentials}}
		srv, q := setup(t, WithSynthesizer(synth))

		resp := post(t, srv.URL+"/announcements/custom", `{"text":"hello"}`)
		if resp.StatusCode != http.StatusBadGateway {
			t.Fatalf("status %d", resp.StatusCode)
		}
		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		if body["stage"] != string(domain.StageTextGeneration) {
			t.Fatalf("unexpected body %v", body)
		}
		if q.Len() != 0 {
			t.Fatal("failed synthesis must not enqueue raw text")
		}
	})
}

func TestCustomKey(t *testing.T) {
	if CustomKey("AF456", "x") != "custom:AF456" {
		t.Fatal("flight key")
	}
	a, b := CustomKey("", "mind the gap"), CustomKey("", "mind the step")
	if a == b || !strings.HasPrefix(a, "custom:") {
		t.Fatalf("text keys %q %q", a, b)
	}
}
