// Package httpapi exposes the operator control surface: health, metrics,
// a view of the playback queue and manual announcement triggers.
package httpapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hammamikhairi/gatecaller/internal/domain"
	"github.com/hammamikhairi/gatecaller/internal/logger"
	"github.com/hammamikhairi/gatecaller/internal/resolver"
)

// Queue is the part of the playback queue the server needs.
type Queue interface {
	domain.Enqueuer
	Pending() []domain.AnnouncementJob
	InFlight() (domain.AnnouncementJob, bool)
}

// Flights looks up the last known snapshot of a flight.
type Flights interface {
	Snapshot(ident string) (domain.FlightSnapshot, bool)
}

// Option configures the Server.
type Option func(*Server)

// WithSynthesizer enables custom announcements.
func WithSynthesizer(s domain.Synthesizer) Option {
	return func(srv *Server) {
		srv.synth = s
	}
}

// WithFlights lets custom announcements pick up flight context.
func WithFlights(f Flights) Option {
	return func(srv *Server) {
		srv.flights = f
	}
}

// WithGatherer serves metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(srv *Server) {
		srv.gatherer = g
	}
}

// Server is the control HTTP server.
type Server struct {
	queue    Queue
	synth    domain.Synthesizer
	flights  Flights
	gatherer prometheus.Gatherer
	log      *logger.Logger
}

// New creates a control server in front of queue.
func New(queue Queue, log *logger.Logger, opts ...Option) *Server {
	s := &Server{
		queue:    queue,
		gatherer: prometheus.DefaultGatherer,
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Healthy"))
	})
	mux.HandleFunc("GET /queue", s.handleQueue)
	mux.HandleFunc("POST /announcements/security", s.handleSecurity)
	mux.HandleFunc("POST /announcements/custom", s.handleCustom)
	return mux
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second, // custom announcements wait on TTS
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("control server listening on %s", addr)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("control server stopped")
	return nil
}

// jobView is the JSON form of a job.
type jobView struct {
	ID        string     `json:"id"`
	Call      string     `json:"call"`
	Flight    string     `json:"flight,omitempty"`
	Gate      string     `json:"gate,omitempty"`
	Priority  int        `json:"priority"`
	Asset     string     `json:"asset"`
	NotBefore *time.Time `json:"not_before,omitempty"`
}

func viewOf(job domain.AnnouncementJob) jobView {
	v := jobView{
		ID:       job.ID,
		Call:     job.CallType.String(),
		Flight:   job.FlightIdent,
		Gate:     job.Gate,
		Priority: job.Priority,
		Asset:    job.Asset.Name(),
	}
	if !job.NotBefore.IsZero() {
		nb := job.NotBefore
		v.NotBefore = &nb
	}
	return v
}

type queueView struct {
	InFlight *jobView  `json:"in_flight"`
	Pending  []jobView `json:"pending"`
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	out := queueView{Pending: []jobView{}}
	if job, ok := s.queue.InFlight(); ok {
		v := viewOf(job)
		out.InFlight = &v
	}
	for _, job := range s.queue.Pending() {
		out.Pending = append(out.Pending, viewOf(job))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSecurity(w http.ResponseWriter, r *http.Request) {
	job, err := resolver.ClassJob(domain.CallSecurity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.enqueue(w, job)
}

type customRequest struct {
	Text  string `json:"text"`
	Ident string `json:"ident"`
	Gate  string `json:"gate"`
}

func (s *Server) handleCustom(w http.ResponseWriter, r *http.Request) {
	if s.synth == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("speech synthesis is not configured"))
		return
	}

	var req customRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	req.Ident = strings.ToUpper(strings.TrimSpace(req.Ident))
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, errors.New("text is required"))
		return
	}

	fc := domain.FlightContext{Ident: req.Ident}
	if s.flights != nil && req.Ident != "" {
		if snap, ok := s.flights.Snapshot(req.Ident); ok {
			fc = domain.ContextOf(snap)
		}
	}
	if req.Gate != "" {
		fc.Gate = req.Gate
	}

	asset, err := s.synth.Synthesize(r.Context(), req.Text, fc)
	if err != nil {
		var se *domain.SynthesisError
		if errors.As(err, &se) {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": se.Err.Error(), "stage": string(se.Stage)})
			return
		}
		writeError(w, http.StatusBadGateway, err)
		return
	}

	job := domain.NewJob(domain.CallCustom, req.Ident, resolver.PriorityOf(domain.CallCustom), domain.AssetReference{Audio: asset.Audio})
	job.Gate = fc.Gate
	job.Key = CustomKey(req.Ident, req.Text)
	s.log.Info("custom announcement %s: %q", job.Key, asset.Script)
	s.enqueue(w, job)
}

// CustomKey dedups custom announcements per flight, or per text when no
// flight is named.
func CustomKey(ident, text string) string {
	if ident != "" {
		return "custom:" + ident
	}
	h := sha256.Sum256([]byte(text))
	return "custom:" + hex.EncodeToString(h[:6])
}

func (s *Server) enqueue(w http.ResponseWriter, job domain.AnnouncementJob) {
	err := s.queue.Enqueue(job)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, viewOf(job))
	case errors.Is(err, domain.ErrDuplicateJob):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, domain.ErrQueueClosed):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
