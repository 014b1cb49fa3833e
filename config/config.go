// Package config parses the command line of the gallery server.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/freekieb7/ember/http"
	"github.com/freekieb7/ember/telemetry"
)

var ErrUsage = errors.New("config: usage")

const usage = "usage: ember [flags] <port> [max-connections] [max-workers]"

type Config struct {
	Server http.Config

	ImageDir        string
	TemplateDir     string // empty for the built-in templates
	Rescan          time.Duration
	StatsInterval   time.Duration
	DownloadTimeout time.Duration
	MaxImageSize    int64

	ServiceName string
	LogLevel    slog.Level
}

// Parse reads flags followed by the positional port, connection cap and
// worker count. Output receives usage text on error.
func Parse(args []string, output io.Writer) (Config, error) {
	var cfg Config
	var logLevel string

	fs := flag.NewFlagSet("ember", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), usage)
		fs.PrintDefaults()
	}

	fs.StringVar(&cfg.Server.Host, "host", "", "IPv4 address to bind, all interfaces when empty")
	fs.IntVar(&cfg.Server.InitialBufferSize, "buffer-size", http.DefaultReadBufferSize, "initial receive buffer per connection, in bytes")
	fs.IntVar(&cfg.Server.MaxRequestSize, "max-request-size", http.MaxRequestSize, "largest accepted request, in bytes")
	fs.DurationVar(&cfg.Server.ReadTimeout, "read-timeout", http.DefaultReadTimeout, "how long a worker waits for the rest of a request")
	fs.DurationVar(&cfg.Server.WriteTimeout, "write-timeout", http.DefaultWriteTimeout, "how long a worker waits for the socket to drain")
	fs.IntVar(&cfg.Server.MaxPending, "max-pending", 0, "accepted connections allowed to wait for admission, 0 for no limit")
	fs.IntVar(&cfg.Server.Backlog, "backlog", http.DefaultBacklog, "listen backlog")
	fs.StringVar(&cfg.ImageDir, "images", "./image", "directory holding the gallery images")
	fs.StringVar(&cfg.TemplateDir, "templates", "", "directory with gallery.html and image.html overriding the built-in templates")
	fs.DurationVar(&cfg.Rescan, "rescan", 30*time.Second, "how often the image directory is rescanned")
	fs.DurationVar(&cfg.StatsInterval, "stats-interval", time.Minute, "how often server statistics are logged")
	fs.DurationVar(&cfg.DownloadTimeout, "download-timeout", 10*time.Second, "timeout for fetching a posted image link")
	fs.Int64Var(&cfg.MaxImageSize, "max-image-size", 16<<20, "largest image accepted from a posted link, in bytes")
	fs.StringVar(&cfg.ServiceName, "service-name", "ember", "service name reported to OpenTelemetry")
	fs.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return cfg, fmt.Errorf("%w: %w", ErrUsage, err)
	}

	level, err := telemetry.ParseLevel(logLevel)
	if err != nil {
		return cfg, fmt.Errorf("%w: -log-level: %w", ErrUsage, err)
	}
	cfg.LogLevel = level

	positional := fs.Args()
	if len(positional) < 1 || len(positional) > 3 {
		fs.Usage()
		return cfg, fmt.Errorf("%w: expected 1 to 3 positional arguments, got %d", ErrUsage, len(positional))
	}

	cfg.Server.MaxConnections = http.DefaultMaxConnections
	cfg.Server.MaxWorkers = http.DefaultMaxWorkers
	targets := []struct {
		name string
		dst  *int
	}{
		{"port", &cfg.Server.Port},
		{"max-connections", &cfg.Server.MaxConnections},
		{"max-workers", &cfg.Server.MaxWorkers},
	}
	for i, arg := range positional {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return cfg, fmt.Errorf("%w: %s: %q is not a number", ErrUsage, targets[i].name, arg)
		}
		*targets[i].dst = n
	}

	return cfg, cfg.Validate()
}

func (cfg Config) Validate() error {
	var errs []error
	if err := cfg.Server.Validate(); err != nil {
		errs = append(errs, err)
	}
	if cfg.ImageDir == "" {
		errs = append(errs, errors.New("image directory must not be empty"))
	}
	if cfg.Rescan <= 0 || cfg.StatsInterval <= 0 {
		errs = append(errs, errors.New("intervals must be positive"))
	}
	if cfg.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if cfg.MaxImageSize <= 0 {
		errs = append(errs, errors.New("max image size must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrUsage, errors.Join(errs...))
	}
	return nil
}
