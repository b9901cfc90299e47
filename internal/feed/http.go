package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hammamikhairi/gatecaller/internal/domain"
	"github.com/hammamikhairi/gatecaller/internal/logger"
)

// PollerOption configures the HTTPPoller.
type PollerOption func(*HTTPPoller)

// WithPollInterval sets the time between polls.
func WithPollInterval(d time.Duration) PollerOption {
	return func(p *HTTPPoller) {
		p.interval = d
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) PollerOption {
	return func(p *HTTPPoller) {
		p.http = c
	}
}

// HTTPPoller fetches the full flight board from a URL on a fixed interval.
// The endpoint returns a JSON array of records.
type HTTPPoller struct {
	url      string
	sink     Ingester
	log      *logger.Logger
	http     *http.Client
	interval time.Duration
}

// NewHTTPPoller creates a poller feeding sink.
func NewHTTPPoller(url string, sink Ingester, log *logger.Logger, opts ...PollerOption) *HTTPPoller {
	p := &HTTPPoller{
		url:      url,
		sink:     sink,
		log:      log,
		http:     &http.Client{Timeout: 10 * time.Second},
		interval: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls immediately and then every interval until ctx is cancelled.
// Poll errors are logged and the next poll goes ahead.
func (p *HTTPPoller) Run(ctx context.Context) error {
	p.log.Info("feed poller started (%s every %s)", p.url, p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
			p.log.Error("feed: poll failed: %v", err)
		}
		select {
		case <-ctx.Done():
			p.log.Info("feed poller stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Poll fetches the board once and ingests every record. It returns how
// many jobs were accepted. Malformed records are skipped.
func (p *HTTPPoller) Poll(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetching %s: %w", p.url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("reading board: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("board endpoint returned %s", resp.Status)
	}

	recs, err := DecodeRecords(body)
	if err != nil {
		return 0, err
	}

	observed := time.Now()
	accepted := 0
	for _, rec := range recs {
		snap, err := rec.Snapshot(observed)
		if err == nil {
			var jobs []domain.AnnouncementJob
			jobs, err = p.sink.Ingest(ctx, snap)
			accepted += len(jobs)
		}
		if err != nil {
			if !errors.Is(err, domain.ErrMalformedSnapshot) {
				return accepted, err
			}
			p.log.Warn("feed: skipping record %q: %v", rec.Ident, err)
		}
	}

	p.log.Debug("feed: polled %d records, %d jobs accepted", len(recs), accepted)
	return accepted, nil
}
