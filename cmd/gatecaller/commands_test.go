package main

import (
	"bytes"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var root = newResolveCmd()
	if args[0] == "gate" {
		root = newGateCmd()
	}
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args[1:])
	err := root.Execute()
	return out.String(), err
}

func TestResolveCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"boarding", []string{"resolve", "--ident", "af456", "--airline", "AF", "--dest", "JFK", "--gate", "12"}, "departure/AF/456_JFK_boarding_G12_bil.mp3\tpriority=5\tkey=AF456:boarding"},
		{"arrival", []string{"resolve", "--call", "arrival", "--direction", "arrival", "--ident", "BA117", "--airline", "BA", "--origin", "LHR"}, "arrival/BA/117_LHR_arrival_bil.mp3\tpriority=3"},
		{"security", []string{"resolve", "--call", "security"}, "general/security_bil.mp3\tpriority=2\tkey=security"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			if err != nil {
				t.Fatalf("execute: %v", err)
			}
			if !strings.HasPrefix(out, tt.want) {
				t.Fatalf("got %q, want prefix %q", out, tt.want)
			}
		})
	}
}

func TestResolveCommandErrors(t *testing.T) {
	if _, err := execute(t, "resolve", "--call", "lunch"); err == nil {
		t.Fatal("expected unknown call type error")
	}
	if _, err := execute(t, "resolve", "--ident", "AF456", "--airline", "AF", "--dest", "JFK"); err == nil {
		t.Fatal("expected missing gate error")
	}
}

func TestGateCommand(t *testing.T) {
	out, err := execute(t, "gate", "--at", "2025-01-15T07:30:00Z")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	for _, want := range []string{"season:   winter", "window:   07:00-16:30", "tick:     true", "baggage:  true"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	out, _ = execute(t, "gate", "--at", "2025-07-01T21:00:00Z")
	if !strings.Contains(out, "season:   summer") || !strings.Contains(out, "baggage:  false") {
		t.Errorf("unexpected summer evening output:\n%s", out)
	}
}
