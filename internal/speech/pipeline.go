// Package speech turns free-form announcement instructions into playable
// audio: a text generator writes the script, Azure TTS voices it.
package speech

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/hammamikhairi/gatecaller/internal/domain"
	"github.com/hammamikhairi/gatecaller/internal/logger"
	"github.com/hammamikhairi/gatecaller/internal/metrics"
)

// Compile-time interface check.
var _ domain.Synthesizer = (*Pipeline)(nil)

// TextGenerator writes an announcement script.
type TextGenerator interface {
	GenerateAnnouncement(ctx context.Context, instruction string, fc domain.FlightContext) (string, error)
}

// Voice converts a script to audio bytes.
type Voice interface {
	Synthesize(ctx context.Context, script string) ([]byte, error)
}

// configured is implemented by collaborators that know whether their
// credentials are present.
type configured interface {
	Configured() bool
}

// PipelineOption configures the Pipeline.
type PipelineOption func(*Pipeline)

// WithCache enables the synthesized audio cache.
func WithCache(c *AudioCache) PipelineOption {
	return func(p *Pipeline) {
		p.cache = c
	}
}

// WithRequestsPerMinute throttles calls to the speech service.
// Zero disables the limit.
func WithRequestsPerMinute(n int) PipelineOption {
	return func(p *Pipeline) {
		if n <= 0 {
			p.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		p.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
	}
}

// WithPipelineMetrics instruments the pipeline.
func WithPipelineMetrics(m *metrics.Metrics) PipelineOption {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// Pipeline runs text generation then speech synthesis. It never retries;
// a failure is returned as *domain.SynthesisError naming the stage.
type Pipeline struct {
	writer  TextGenerator
	voice   Voice
	cache   *AudioCache
	limiter *rate.Limiter
	metrics *metrics.Metrics
	log     *logger.Logger
}

// NewPipeline creates a synthesis pipeline.
func NewPipeline(writer TextGenerator, voice Voice, log *logger.Logger, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		writer:  writer,
		voice:   voice,
		limiter: rate.NewLimiter(rate.Every(time.Minute/DefaultRequestsPerMinute), 1),
		log:     log,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = metrics.Nop()
	}
	return p
}

// Synthesize produces audio for a dynamic announcement. Missing credentials
// on either collaborator fail the text-generation stage before any request
// is made.
func (p *Pipeline) Synthesize(ctx context.Context, rawText string, fc domain.FlightContext) (*domain.AudioAsset, error) {
	if err := p.checkCredentials(); err != nil {
		return nil, p.fail(domain.StageTextGeneration, err)
	}

	start := time.Now()
	script, err := p.writer.GenerateAnnouncement(ctx, rawText, fc)
	if err != nil {
		return nil, p.fail(domain.StageTextGeneration, err)
	}
	if script == "" {
		return nil, p.fail(domain.StageTextGeneration, errors.New("generator returned an empty script"))
	}

	if p.cache != nil {
		if audio, ok := p.cache.Get(script); ok {
			p.metrics.Syntheses.WithLabelValues("cached").Inc()
			return &domain.AudioAsset{Script: script, Audio: audio}, nil
		}
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, p.fail(domain.StageSpeechSynthesis, fmt.Errorf("rate limit wait cancelled: %w", err))
	}

	audio, err := p.voice.Synthesize(ctx, script)
	if err != nil {
		return nil, p.fail(domain.StageSpeechSynthesis, err)
	}
	if len(audio) == 0 {
		return nil, p.fail(domain.StageSpeechSynthesis, errors.New("no audio in response"))
	}

	if p.cache != nil {
		p.cache.Put(script, audio)
	}
	p.metrics.Syntheses.WithLabelValues("ok").Inc()
	p.log.Info("synthesized announcement for %q in %s", fc.Ident, time.Since(start).Round(time.Millisecond))
	return &domain.AudioAsset{Script: script, Audio: audio}, nil
}

func (p *Pipeline) checkCredentials() error {
	for _, c := range []any{p.writer, p.voice} {
		if cc, ok := c.(configured); ok && !cc.Configured() {
			return fmt.Errorf("%w: %T", domain.ErrMissingCredentials, c)
		}
	}
	return nil
}

func (p *Pipeline) fail(stage domain.SynthesisStage, err error) error {
	p.metrics.Syntheses.WithLabelValues("failed").Inc()
	p.log.Warn("synthesis failed at %s: %v", stage, err)
	return &domain.SynthesisError{Stage: stage, Err: err}
}
