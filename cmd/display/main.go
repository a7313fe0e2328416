// Command display is a headless display client: it polls one channel and
// keeps the current media materialized on disk for a kiosk viewer. It
// tolerates the server being down by simply skipping ticks.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lalith-99/castboard/internal/config"
	"github.com/lalith-99/castboard/internal/observ"
	"github.com/lalith-99/castboard/internal/syncclient"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		serverURL = flag.String("server", config.GetEnv("CASTBOARD_URL", "http://localhost:8081"), "castboard server base URL")
		channel   = flag.String("channel", config.GetEnv("CASTBOARD_CHANNEL", ""), "channel name to display")
		out       = flag.String("out", config.GetEnv("CASTBOARD_OUT", "current-media"), "path where the current media is written")
		interval  = flag.Duration("interval", syncclient.DefaultPollInterval, "poll interval")
		fade      = flag.Duration("fade", syncclient.DefaultFadeDuration, "cross-fade leg duration")
	)
	flag.Parse()

	if *channel == "" {
		return fmt.Errorf("a channel name is required (-channel or CASTBOARD_CHANNEL)")
	}

	logger, err := observ.NewLogger(config.GetEnv("ENV", "development"), config.GetEnv("LOG_LEVEL", "info"))
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	renderer := syncclient.NewFileRenderer(*out, *fade, logger)
	client := syncclient.NewClient(*serverURL, *channel, renderer, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("display client starting",
		zap.String("server", *serverURL),
		zap.String("channel", *channel),
		zap.Duration("interval", *interval),
	)

	// Runs until signalled; ticks that fail (server down, mid-deploy)
	// are logged and skipped inside Run.
	if err := client.Run(ctx, *interval); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	// Give an in-flight fade a moment before the process exits.
	time.Sleep(50 * time.Millisecond)
	return nil
}
