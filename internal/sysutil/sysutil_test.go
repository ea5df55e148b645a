package sysutil

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestSetLogLevel(t *testing.T) {
	orig := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(orig) })

	levels := map[string]zerolog.Level{
		"debug":     zerolog.DebugLevel,
		"  DeBuG  ": zerolog.DebugLevel,
		"info":      zerolog.InfoLevel,
		"":          zerolog.InfoLevel,
		"warn":      zerolog.WarnLevel,
		"WARNING":   zerolog.WarnLevel,
		"error":     zerolog.ErrorLevel,
		"fatal":     zerolog.FatalLevel,
		"panic":     zerolog.PanicLevel,
		"trace":     zerolog.InfoLevel,
	}
	for in, want := range levels {
		SetLogLevel(in)
		if got := zerolog.GlobalLevel(); got != want {
			t.Errorf("SetLogLevel(%q): level %v, want %v", in, got, want)
		}
	}
}

func TestEnvPredicates(t *testing.T) {
	for v, want := range map[string]bool{
		"1": true, "TRUE": true, " yes ": true, "Y": true, "On": true,
		"": false, "0": false, "off": false, "n": false, "  ": false, "enabled": false,
	} {
		if got := IsTruthy(v); got != want {
			t.Errorf("IsTruthy(%q) = %v, want %v", v, got, want)
		}
	}

	tests := []struct {
		vals []string
		want string
	}{
		{nil, ""},
		{[]string{" ", "\t", "\n"}, ""},
		{[]string{"   ", "  redis:6379  ", "localhost"}, "  redis:6379  "},
		{[]string{"primary", "fallback"}, "primary"},
	}
	for _, tc := range tests {
		if got := FirstNonEmpty(tc.vals...); got != tc.want {
			t.Errorf("FirstNonEmpty(%q) = %q, want %q", tc.vals, got, tc.want)
		}
	}
}

type tagHook struct{}

func (tagHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) { e.Str("tag", "hooked") }

func TestConfigureLogger_JSONWithHooksAndContextFallback(t *testing.T) {
	origLevel := zerolog.GlobalLevel()
	origLogger := log.Logger
	origCtx := zerolog.DefaultContextLogger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(origLevel)
		log.Logger = origLogger
		zerolog.DefaultContextLogger = origCtx
	})

	var buf bytes.Buffer
	ConfigureLogger("debug", false, &buf, tagHook{})

	// A context without a request logger falls back to the global one.
	log.Ctx(context.Background()).Debug().Str("conversation_id", "c1").Msg("summarized")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if line["message"] != "summarized" || line["conversation_id"] != "c1" || line["tag"] != "hooked" {
		t.Fatalf("unexpected log line: %v", line)
	}
	if _, ok := line["time"]; !ok {
		t.Fatalf("expected timestamp field: %v", line)
	}
}

func TestConfigureLogger_PrettyAndLevel(t *testing.T) {
	origLevel := zerolog.GlobalLevel()
	origLogger := log.Logger
	origCtx := zerolog.DefaultContextLogger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(origLevel)
		log.Logger = origLogger
		zerolog.DefaultContextLogger = origCtx
	})

	var buf bytes.Buffer
	l := ConfigureLogger("warn", true, &buf)

	l.Info().Msg("hidden")
	l.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("unexpected output: %q", out)
	}
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Fatalf("expected console output, got JSON: %q", out)
	}
}
