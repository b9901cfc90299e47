package gpt

import (
	"context"
	"fmt"
	"strings"

	"github.com/hammamikhairi/gatecaller/internal/domain"
	"github.com/hammamikhairi/gatecaller/internal/logger"
)

// Writer wraps the chat Client with flight-context building. It produces
// the words of dynamic announcements; prerecorded ones never reach it.
type Writer struct {
	client *Client
	log    *logger.Logger
}

// NewWriter creates an announcement writer backed by the given Client.
func NewWriter(client *Client, log *logger.Logger) *Writer {
	return &Writer{client: client, log: log}
}

// Configured reports whether the underlying client has credentials.
func (w *Writer) Configured() bool { return w.client.Configured() }

// GenerateAnnouncement turns an operator instruction into a short script
// ready for speech synthesis.
func (w *Writer) GenerateAnnouncement(ctx context.Context, instruction string, fc domain.FlightContext) (string, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return "", fmt.Errorf("gpt: empty announcement instruction")
	}

	messages := buildMessages(PromptAnnouncement, instruction, fc)
	raw, err := w.client.complete(ctx, messages)
	if err != nil {
		return "", err
	}

	script := cleanScript(raw)
	w.log.Debug("gpt: script for %q: %s", fc.Ident, truncate(script, 80))
	return script, nil
}

// cleanScript strips markdown fences and surrounding quotes that models add
// even when told not to.
func cleanScript(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"`)
	return strings.TrimSpace(s)
}

// ── Context building ─────────────────────────────────────────────

// buildMessages assembles the system prompt, an optional flight-context
// user message, and the operator instruction.
func buildMessages(systemPrompt, instruction string, fc domain.FlightContext) []message {
	msgs := []message{{Role: "system", Content: systemPrompt}}

	if ctxBlock := buildContext(fc); ctxBlock != "" {
		msgs = append(msgs,
			message{Role: "user", Content: ctxBlock},
			message{Role: "assistant", Content: "Understood, I have the flight details."},
		)
	}

	return append(msgs, message{Role: "user", Content: instruction})
}

// buildContext serializes the flight fields that are set. An empty context
// (general announcements) yields an empty string.
func buildContext(fc domain.FlightContext) string {
	var b strings.Builder
	field := func(name, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\n", name, value)
		}
	}

	field("Flight", fc.Ident)
	field("Airline", fc.Airline)
	field("Destination", fc.Destination)
	field("Origin", fc.Origin)
	field("Gate", fc.Gate)
	if !fc.Scheduled.IsZero() {
		field("Scheduled", fc.Scheduled.Format("15:04"))
	}

	if b.Len() == 0 {
		return ""
	}
	return "[Flight Context]\n" + b.String()
}
