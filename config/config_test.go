package config

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/freekieb7/ember/http"
	"github.com/freekieb7/ember/test"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]string{"8080"}, io.Discard)
	test.NoError(t, err)

	test.Equal(t, 8080, cfg.Server.Port)
	test.Equal(t, 10000, cfg.Server.MaxConnections)
	test.Equal(t, 512, cfg.Server.MaxWorkers)
	test.Equal(t, 4096, cfg.Server.InitialBufferSize)
	test.Equal(t, http.MaxRequestSize, cfg.Server.MaxRequestSize)
	test.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	test.Equal(t, 0, cfg.Server.MaxPending)
	test.Equal(t, "./image", cfg.ImageDir)
	test.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestParsePositionalAndFlags(t *testing.T) {
	cfg, err := Parse([]string{"-host", "127.0.0.1", "-max-pending", "64", "-log-level", "debug", "9000", "100", "8"}, io.Discard)
	test.NoError(t, err)

	test.Equal(t, "127.0.0.1", cfg.Server.Host)
	test.Equal(t, 9000, cfg.Server.Port)
	test.Equal(t, 100, cfg.Server.MaxConnections)
	test.Equal(t, 8, cfg.Server.MaxWorkers)
	test.Equal(t, 64, cfg.Server.MaxPending)
	test.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no port", []string{}},
		{"too many", []string{"1", "2", "3", "4"}},
		{"not a number", []string{"http"}},
		{"zero workers", []string{"8080", "10", "0"}},
		{"negative connections", []string{"8080", "-1"}},
		{"port out of range", []string{"70000"}},
		{"buffer larger than max", []string{"-buffer-size", "4096", "-max-request-size", "1024", "8080"}},
		{"unknown flag", []string{"-nope", "8080"}},
		{"bad level", []string{"-log-level", "loud", "8080"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.args, io.Discard)
			test.ErrorIs(t, err, ErrUsage)
		})
	}
}
