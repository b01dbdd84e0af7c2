package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v3"
	"go.uber.org/zap"

	"github.com/marminbh/appstore-notify/internal/config"
	"github.com/marminbh/appstore-notify/internal/lark"
	"github.com/marminbh/appstore-notify/internal/logger"
)

// larkcli sends a one-off card to the configured Lark webhook, useful
// for verifying the webhook URL and signing secret before wiring up
// the relay.
func main() {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("larkcli", flag.ExitOnError)
	var (
		title         = fs.String("title", "", "card title (required)")
		content       = fs.String("content", "", "card body in Lark markdown (required)")
		webhookURL    = fs.String("webhook-url", "", "Lark webhook URL (env LARK_WEBHOOK_URL)")
		signingSecret = fs.String("signing-secret", "", "Lark signing secret, optional (env LARK_SIGNING_SECRET)")
		logLevel      = fs.String("log-level", "info", "log level")
	)

	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("LARK")); err != nil {
		fmt.Fprintln(os.Stderr, "failed to parse flags:", err)
		os.Exit(1)
	}

	if *title == "" || *content == "" {
		fmt.Fprintln(os.Stderr, "both -title and -content are required")
		fs.Usage()
		os.Exit(1)
	}
	if *webhookURL == "" {
		fmt.Fprintln(os.Stderr, "a webhook URL is required (-webhook-url or LARK_WEBHOOK_URL)")
		os.Exit(1)
	}

	log, err := logger.Init(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	dispatcher := lark.NewDispatcher(&config.LarkConfig{
		WebhookURL:    *webhookURL,
		SigningSecret: *signingSecret,
	}, log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result := dispatcher.Deliver(ctx, lark.NewTextCard(*title, *content))
	if !result.Success {
		log.Error("Card delivery failed",
			zap.Int("attempts", result.Attempts),
			zap.Error(result.LastError),
		)
		os.Exit(1)
	}

	log.Info("Card delivered",
		zap.Int("attempts", result.Attempts),
	)
}
