package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kon-rad/hec-ingest/internal/logging"
)

var version = "dev"

func main() {
	help := flag.Bool("help", false, "print environment variable help and exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *help {
		WriteHelp(os.Stdout, version)
		return
	}
	if *showVersion {
		fmt.Println(version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := Load(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	runtime := NewRuntime(cfg, logger, version)
	if err := runtime.Run(ctx); err != nil {
		logger.Error("hec-probe exited with error", "error", err)
		os.Exit(1)
	}
}
