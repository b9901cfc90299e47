package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hammamikhairi/gatecaller/internal/config"
	"github.com/hammamikhairi/gatecaller/internal/domain"
	"github.com/hammamikhairi/gatecaller/internal/feed"
	"github.com/hammamikhairi/gatecaller/internal/gpt"
	"github.com/hammamikhairi/gatecaller/internal/httpapi"
	"github.com/hammamikhairi/gatecaller/internal/logger"
	"github.com/hammamikhairi/gatecaller/internal/metrics"
	"github.com/hammamikhairi/gatecaller/internal/monitor"
	"github.com/hammamikhairi/gatecaller/internal/playback"
	"github.com/hammamikhairi/gatecaller/internal/playlog"
	"github.com/hammamikhairi/gatecaller/internal/resolver"
	"github.com/hammamikhairi/gatecaller/internal/speech"
	"github.com/hammamikhairi/gatecaller/internal/timer"
)

// dryRunHold is how long the dry-run device pretends each clip lasts.
const dryRunHold = 2 * time.Second

func newRunCmd() *cobra.Command {
	var verbose, quiet bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Watch the flight feed and play announcements",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			level := logger.ParseLevel(cfg.LogLevel)
			if verbose {
				level = logger.LevelVerbose
			}
			if quiet {
				level = logger.LevelOff
			}
			log := logger.New(level, os.Stderr)
			if cfg.LogFile != "" {
				if log, err = logger.NewFile(level, cfg.LogFile); err != nil {
					return fmt.Errorf("opening log file: %w", err)
				}
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, log)
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "disable all logging")
	return cmd
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New("gatecaller", reg)

	assets, err := playback.NewFileStore(cfg.AssetDir, log)
	if err != nil {
		return err
	}
	defer assets.Close()
	checkGeneralAssets(assets, log)

	var device domain.AudioDevice
	if cfg.DryRun {
		device = playback.NewNopDevice(dryRunHold, log)
		log.Info("dry run: announcements are logged, not played")
	} else {
		player, err := playback.NewPlayer(log)
		if err != nil {
			return err
		}
		defer player.Close()
		device = player
	}

	plays, closePlays, err := openPlaybackLog(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closePlays()

	queue := playback.NewQueue(device, assets, plays, log, playback.WithMetrics(m))

	mon := monitor.New(queue, log,
		monitor.WithSecondCallDelay(cfg.SecondCallDelay),
		monitor.WithRetention(cfg.Retention),
		monitor.WithMetrics(m),
	)
	defer mon.Stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := queue.Run(gctx); err != nil {
			return fmt.Errorf("playback queue: %w", err)
		}
		return nil
	})

	supervisor := timer.New(queue, queue, log,
		timer.WithSecurityInterval(cfg.SecurityInterval),
		timer.WithWatcher(mon),
	)
	supervisor.Start(gctx)
	defer supervisor.Stop()

	if cfg.FeedURL != "" {
		poller := feed.NewHTTPPoller(cfg.FeedURL, mon, log, feed.WithPollInterval(cfg.PollInterval))
		g.Go(func() error { return poller.Run(gctx) })
	}
	if cfg.AMQPURL != "" {
		consumer, err := feed.NewAMQPConsumer(cfg.AMQPURL, cfg.AMQPQueue, mon, log)
		if err != nil {
			return err
		}
		defer consumer.Close()
		g.Go(func() error { return consumer.Run(gctx) })
	}
	if cfg.FeedURL == "" && cfg.AMQPURL == "" {
		log.Warn("no flight feed configured; only scheduled announcements will play")
	}

	apiOpts := []httpapi.Option{httpapi.WithFlights(mon), httpapi.WithGatherer(reg)}
	if synth := buildSynthesizer(cfg, m, log); synth != nil {
		apiOpts = append(apiOpts, httpapi.WithSynthesizer(synth))
	}
	api := httpapi.New(queue, log, apiOpts...)
	g.Go(func() error { return api.Run(gctx, cfg.ListenAddr) })

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	log.Info("shutting down")
	return err
}

// checkGeneralAssets warns about missing non-flight clips at startup rather
// than at the first failed playback.
func checkGeneralAssets(assets *playback.FileStore, log *logger.Logger) {
	for _, call := range []domain.CallType{domain.CallBaggage, domain.CallSecurity} {
		ref, err := resolver.ResolveClass(call)
		if err != nil {
			continue
		}
		if !assets.Exists(ref.Path) {
			log.Warn("asset %s missing under %s", ref.Path, assets.Dir())
		}
	}
}

// openPlaybackLog picks Postgres when a database is configured and the
// in-memory log otherwise.
func openPlaybackLog(ctx context.Context, cfg *config.Config, log *logger.Logger) (domain.PlaybackLogger, func(), error) {
	if cfg.DatabaseURL == "" {
		return playlog.NewMemoryLog(log), func() {}, nil
	}
	pg, err := playlog.NewPostgresLog(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, nil, err
	}
	return pg, pg.Close, nil
}

// buildSynthesizer returns nil when TTS credentials are incomplete.
func buildSynthesizer(cfg *config.Config, m *metrics.Metrics, log *logger.Logger) *speech.Pipeline {
	if !cfg.SynthesisEnabled() {
		log.Info("TTS disabled: set GPT_CHAT_ENDPOINT, GPT_CHAT_KEY, AZURE_SPEECH_KEY and AZURE_SPEECH_REGION to enable")
		return nil
	}

	writer := gpt.NewWriter(gpt.NewClient(cfg.ChatEndpoint, cfg.ChatKey, log), log)

	voice := speech.DefaultVoice
	if cfg.SpeechVoice != "" {
		voice = cfg.SpeechVoice
	}
	azure := speech.NewAzureClient(cfg.SpeechKey, cfg.SpeechRegion, log, speech.WithVoice(voice))
	cache := speech.NewAudioCache(voice, cfg.TTSCacheDir, speech.DefaultCacheSize, speech.DefaultCacheTTL, log)

	log.Info("TTS enabled (voice=%s, region=%s)", voice, cfg.SpeechRegion)
	return speech.NewPipeline(writer, azure, log,
		speech.WithCache(cache),
		speech.WithRequestsPerMinute(cfg.TTSRequestsPerMin),
		speech.WithPipelineMetrics(m),
	)
}
