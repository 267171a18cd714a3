package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config configures the hec-probe demo binary: a small HTTP front door
// that decodes JSON event/metric requests and forwards them into a
// hec.Client, plus an admin endpoint exposing the client's stats.
type Config struct {
	Port     string `env:"HECPROBE_PORT,default=8090"`
	LogLevel string `env:"HECPROBE_LOG_LEVEL,default=info"`

	CollectorURL   string `env:"HECPROBE_COLLECTOR_URL,required"`
	CollectorToken string `env:"HECPROBE_COLLECTOR_TOKEN,required"`

	Gzip                    bool          `env:"HECPROBE_GZIP,default=false"`
	MultipleMetricFormat    bool          `env:"HECPROBE_MULTIPLE_METRIC_FORMAT,default=false"`
	RequestTimeout          time.Duration `env:"HECPROBE_REQUEST_TIMEOUT,default=30s"`
	MaxQueueSize            int           `env:"HECPROBE_MAX_QUEUE_SIZE_BYTES,default=1048576"`
	FlushInterval           time.Duration `env:"HECPROBE_FLUSH_INTERVAL,default=2s"`
	MaxRetries              int           `env:"HECPROBE_MAX_RETRIES,default=3"`
	ShutdownDrainTimeout    time.Duration `env:"HECPROBE_SHUTDOWN_DRAIN_TIMEOUT,default=10s"`
	StatsLogInterval        time.Duration `env:"HECPROBE_STATS_LOG_INTERVAL,default=30s"`
	WaitForCollectorTimeout time.Duration `env:"HECPROBE_WAIT_FOR_COLLECTOR_TIMEOUT,default=0s"`
}

func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("load env config: %w", err)
	}
	return &cfg, nil
}

func WriteHelp(w io.Writer, version string) {
	fmt.Fprintf(w, "hec-probe %s\n\n", version)
	fmt.Fprintln(w, "Environment variables:")
	fmt.Fprintln(w, "  HECPROBE_PORT=8090")
	fmt.Fprintln(w, "  HECPROBE_LOG_LEVEL=info")
	fmt.Fprintln(w, "  HECPROBE_COLLECTOR_URL=          (required)")
	fmt.Fprintln(w, "  HECPROBE_COLLECTOR_TOKEN=        (required)")
	fmt.Fprintln(w, "  HECPROBE_GZIP=false")
	fmt.Fprintln(w, "  HECPROBE_MULTIPLE_METRIC_FORMAT=false")
	fmt.Fprintln(w, "  HECPROBE_REQUEST_TIMEOUT=30s")
	fmt.Fprintln(w, "  HECPROBE_MAX_QUEUE_SIZE_BYTES=1048576")
	fmt.Fprintln(w, "  HECPROBE_FLUSH_INTERVAL=2s")
	fmt.Fprintln(w, "  HECPROBE_MAX_RETRIES=3")
	fmt.Fprintln(w, "  HECPROBE_SHUTDOWN_DRAIN_TIMEOUT=10s")
	fmt.Fprintln(w, "  HECPROBE_STATS_LOG_INTERVAL=30s")
	fmt.Fprintln(w, "  HECPROBE_WAIT_FOR_COLLECTOR_TIMEOUT=0s   (0 skips the startup wait)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  --help")
	fmt.Fprintln(w, "  --version")
}
