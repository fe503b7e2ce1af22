package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Expected default level to be Info, got %s", cfg.Level)
	}

	if cfg.Pretty {
		t.Error("Expected default pretty to be false")
	}

	if cfg.Output == nil {
		t.Error("Expected default output to be set")
	}
}

func TestSetup_WritesToOutput(t *testing.T) {
	tests := []struct {
		name    string
		level   LogLevel
		emit    func(zerolog.Logger)
		want    string
		visible bool
	}{
		{
			name:    "info at info",
			level:   LevelInfo,
			emit:    func(l zerolog.Logger) { l.Info().Msg("cache ready") },
			want:    "cache ready",
			visible: true,
		},
		{
			name:    "debug at info is dropped",
			level:   LevelInfo,
			emit:    func(l zerolog.Logger) { l.Debug().Msg("cache hit") },
			want:    "cache hit",
			visible: false,
		},
		{
			name:    "debug at debug",
			level:   LevelDebug,
			emit:    func(l zerolog.Logger) { l.Debug().Msg("cache hit") },
			want:    "cache hit",
			visible: true,
		},
		{
			name:    "warn at error is dropped",
			level:   LevelError,
			emit:    func(l zerolog.Logger) { l.Warn().Msg("redis down") },
			want:    "redis down",
			visible: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := Setup(Config{Level: tt.level, Output: buf})

			tt.emit(logger)

			if got := strings.Contains(buf.String(), tt.want); got != tt.visible {
				t.Errorf("output %q contains %q = %v, want %v", buf.String(), tt.want, got, tt.visible)
			}
		})
	}

	// Restore the default for other tests in the package.
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
}

func TestSetup_Pretty(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelInfo, Pretty: true, Output: buf})

	logger.Info().Msg("pretty output")

	out := buf.String()
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("Expected console output, got JSON: %s", out)
	}
	if !strings.Contains(out, "pretty output") {
		t.Errorf("Expected message in output, got: %s", out)
	}

	zerolog.SetGlobalLevel(zerolog.TraceLevel)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   LogLevel
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewLogger_Component(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	logger := NewLogger("apicache")
	logger.Info().Msg("hello")

	if !strings.Contains(buf.String(), `"component":"apicache"`) {
		t.Errorf("Expected component field, got: %s", buf.String())
	}

	zerolog.SetGlobalLevel(zerolog.TraceLevel)
}
