package speech

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hammamikhairi/gatecaller/internal/domain"
	"github.com/hammamikhairi/gatecaller/internal/logger"
)

// AzureOption configures an AzureClient.
type AzureOption func(*AzureClient)

// WithVoice selects the neural voice announcements are read in.
func WithVoice(voice string) AzureOption {
	return func(c *AzureClient) { c.voice = voice }
}

// WithEndpoint replaces the regional endpoint.
func WithEndpoint(url string) AzureOption {
	return func(c *AzureClient) { c.endpoint = url }
}

// AzureClient renders announcement scripts with the Azure speech REST API.
// Audio comes back as DefaultAudioFormat WAV.
type AzureClient struct {
	key      string
	endpoint string
	voice    string
	http     *http.Client
	log      *logger.Logger
}

// NewAzureClient creates a client for the given subscription key and region.
func NewAzureClient(key, region string, log *logger.Logger, opts ...AzureOption) *AzureClient {
	c := &AzureClient{
		key:   key,
		voice: DefaultVoice,
		http:  &http.Client{Timeout: 30 * time.Second},
		log:   log,
	}
	if region != "" {
		c.endpoint = fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", region)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether a key and an endpoint are available.
func (c *AzureClient) Configured() bool {
	return c.key != "" && c.endpoint != ""
}

// Synthesize returns WAV audio of the script read in the client's voice.
func (c *AzureClient) Synthesize(ctx context.Context, script string) ([]byte, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("azure tts: %w: speech key or region not set", domain.ErrMissingCredentials)
	}

	doc, err := ssml(c.voice, script)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("azure tts: build request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", DefaultAudioFormat)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("azure tts: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("azure tts: %s: %s", resp.Status, msg)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("azure tts: read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("azure tts: empty audio")
	}

	c.log.Debug("azure tts: %d chars -> %s (%s)", len(script), humanize.Bytes(uint64(len(audio))), c.voice)
	return audio, nil
}

// ssml wraps an escaped script in a single-voice speak document. Generated
// scripts may contain '&' or '<'.
func ssml(voice, script string) (string, error) {
	var b strings.Builder
	b.WriteString(`<speak version='1.0' xml:lang='en-US'><voice name='`)
	if err := xml.EscapeText(&b, []byte(voice)); err != nil {
		return "", fmt.Errorf("azure tts: escape voice: %w", err)
	}
	b.WriteString(`'>`)
	if err := xml.EscapeText(&b, []byte(strings.TrimSpace(script))); err != nil {
		return "", fmt.Errorf("azure tts: escape script: %w", err)
	}
	b.WriteString(`</voice></speak>`)
	return b.String(), nil
}
