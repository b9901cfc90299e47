// Package config loads service settings from the environment. A .env file
// in the working directory is read first when present.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every setting of the service.
type Config struct {
	AssetDir   string `env:"GATECALLER_ASSET_DIR"   envDefault:"./assets"`
	ListenAddr string `env:"GATECALLER_LISTEN_ADDR" envDefault:":8080"`
	LogLevel   string `env:"GATECALLER_LOG_LEVEL"   envDefault:"normal"`
	LogFile    string `env:"GATECALLER_LOG_FILE"`
	DryRun     bool   `env:"GATECALLER_DRY_RUN"     envDefault:"false"`

	FeedURL      string        `env:"GATECALLER_FEED_URL"`
	PollInterval time.Duration `env:"GATECALLER_POLL_INTERVAL" envDefault:"30s"`
	AMQPURL      string        `env:"GATECALLER_AMQP_URL"`
	AMQPQueue    string        `env:"GATECALLER_AMQP_QUEUE" envDefault:"flights.snapshots"`

	DatabaseURL string `env:"GATECALLER_DATABASE_URL"`

	SecondCallDelay  time.Duration `env:"GATECALLER_SECOND_CALL_DELAY" envDefault:"5m"`
	Retention        time.Duration `env:"GATECALLER_RETENTION"         envDefault:"30m"`
	SecurityInterval time.Duration `env:"GATECALLER_SECURITY_INTERVAL" envDefault:"0s"`

	ChatEndpoint      string `env:"GPT_CHAT_ENDPOINT"`
	ChatKey           string `env:"GPT_CHAT_KEY"`
	SpeechKey         string `env:"AZURE_SPEECH_KEY"`
	SpeechRegion      string `env:"AZURE_SPEECH_REGION"`
	SpeechVoice       string `env:"GATECALLER_TTS_VOICE"`
	TTSCacheDir       string `env:"GATECALLER_TTS_CACHE_DIR"`
	TTSRequestsPerMin int    `env:"GATECALLER_TTS_RPM" envDefault:"30"`
}

// Load reads .env (if any) and parses the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.AssetDir == "" {
		errs = append(errs, errors.New("GATECALLER_ASSET_DIR is empty"))
	}
	if c.FeedURL != "" && c.PollInterval <= 0 {
		errs = append(errs, errors.New("GATECALLER_POLL_INTERVAL must be positive"))
	}
	if c.SecondCallDelay <= 0 {
		errs = append(errs, errors.New("GATECALLER_SECOND_CALL_DELAY must be positive"))
	}
	if c.Retention < 0 {
		errs = append(errs, errors.New("GATECALLER_RETENTION must not be negative"))
	}
	if c.SecurityInterval < 0 {
		errs = append(errs, errors.New("GATECALLER_SECURITY_INTERVAL must not be negative"))
	}
	return errors.Join(errs...)
}

// SynthesisEnabled reports whether both TTS collaborators have credentials.
func (c *Config) SynthesisEnabled() bool {
	return c.ChatEndpoint != "" && c.ChatKey != "" && c.SpeechKey != "" && c.SpeechRegion != ""
}
