// Package main is the entry point for the conditional-order engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ducnguyen96/swap-sentinel/internal/alerting"
	"github.com/ducnguyen96/swap-sentinel/internal/book"
	"github.com/ducnguyen96/swap-sentinel/internal/chain"
	"github.com/ducnguyen96/swap-sentinel/internal/config"
	"github.com/ducnguyen96/swap-sentinel/internal/events"
	"github.com/ducnguyen96/swap-sentinel/internal/executor"
	"github.com/ducnguyen96/swap-sentinel/internal/metrics"
	"github.com/ducnguyen96/swap-sentinel/internal/pricefeed"
	"github.com/ducnguyen96/swap-sentinel/internal/store"
)

// Version information (set by build flags).
var (
	Version   = "0.3.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Config files reference env vars; a local .env is optional.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version", "-v", "--version":
		cmdVersion()
	case "help", "-h", "--help":
		printUsage()
	case "run":
		cmdRun(os.Args[2:])
	case "validate":
		cmdValidate(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Swap Sentinel - Conditional Order Engine for Spot Swaps

Usage:
  sentinel <command> [options]

Commands:
  run        Start the order engine
  validate   Validate configuration file
  version    Show version information
  help       Show this help message

Examples:
  sentinel run --config config.yaml
  sentinel validate --config config.yaml

Use "sentinel <command> --help" for more information about a command.`)
}

func cmdVersion() {
	fmt.Printf("sentinel version %s\n", Version)
	fmt.Printf("  Build time: %s\n", BuildTime)
	fmt.Printf("  Git commit: %s\n", GitCommit)
}

func cmdValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Configuration is valid!")
	fmt.Printf("  Price API: %s\n", cfg.Feed.PriceAPIURL)
	fmt.Printf("  Swap API: %s\n", cfg.Swap.APIURL)
	fmt.Printf("  Poll interval: %s\n", cfg.PollInterval())
	fmt.Printf("  Reconcile interval: %s\n", cfg.ReconcileInterval())
	fmt.Printf("  Store: %s\n", cfg.Store.Path)
	if cfg.Swap.FeeBps > 0 {
		fmt.Printf("  Platform fee: %d bps -> %s\n", cfg.Swap.FeeBps, cfg.Swap.FeeRecipient)
	} else {
		fmt.Println("  Platform fee: disabled")
	}
}

func cmdRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	verbose := fs.Bool("verbose", false, "Debug logging")
	fs.Parse(args)

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("sentinel starting",
		"version", Version,
		"price_api", cfg.Feed.PriceAPIURL,
		"poll_interval", cfg.PollInterval(),
		"push_enabled", cfg.Feed.Push.Enabled,
	)

	// Persistence
	st, err := store.NewSQLiteStore(cfg.Store.Path, logger)
	if err != nil {
		slog.Error("failed to open order store", "path", cfg.Store.Path, "err", err)
		os.Exit(1)
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		slog.Error("store migration failed", "err", err)
		os.Exit(1)
	}

	// Price feed
	fetcher := pricefeed.NewClient(pricefeed.ClientConfig{
		BaseURL:            cfg.Feed.PriceAPIURL,
		RequestTimeout:     cfg.FeedRequestTimeout(),
		RateLimitPerSecond: cfg.Feed.RateLimitPerSecond,
	})
	feed := pricefeed.New(pricefeed.Config{
		PollInterval:   cfg.PollInterval(),
		BatchSize:      cfg.Feed.BatchSize,
		RequestTimeout: cfg.FeedRequestTimeout(),
	}, fetcher, logger)

	var push *pricefeed.PushSource
	if cfg.Feed.Push.Enabled {
		push = pricefeed.NewPushSource(pricefeed.PushConfig{
			URL:              cfg.Feed.Push.URL,
			ReconnectFloor:   cfg.ReconnectFloor(),
			ReconnectCeiling: cfg.ReconnectCeiling(),
		}, feed, logger)
	}

	// Execution
	swapClient := executor.NewClient(executor.ClientConfig{
		BaseURL:            cfg.Swap.APIURL,
		RequestTimeout:     cfg.SwapRequestTimeout(),
		RateLimitPerSecond: cfg.Swap.RateLimitPerSecond,
	})
	rpc := chain.NewClient(chain.ClientConfig{
		RPCURL:         cfg.Chain.RPCURL,
		RequestTimeout: cfg.ChainRequestTimeout(),
	})
	builder := executor.NewAdapter(executor.Config{
		NativeMint:     cfg.Chain.NativeMint,
		NativeDecimals: cfg.Chain.NativeDecimals,
		FeeBps:         cfg.Swap.FeeBps,
		FeeRecipient:   cfg.Swap.FeeRecipient,
	}, swapClient, rpc, logger)

	// Matching pipeline
	hub := events.NewHub(cfg.Events.BufferSize)
	orderBook := book.NewBook(feed)
	updates := feed.Subscribe(cfg.Events.BufferSize)
	dispatcher := book.NewDispatcher(book.Config{
		MaxAttempts:       cfg.Dispatcher.MaxAttempts,
		RetryUnit:         cfg.RetryUnit(),
		ReconcileInterval: cfg.ReconcileInterval(),
		ExecutionTimeout:  cfg.ExecutionTimeout(),
	}, orderBook, st, builder, hub, updates, logger)

	// Alerting
	alerter := buildAlerter(cfg, logger)
	digest := alerting.NewDigest(alerter, logger)
	go digest.Run(ctx, time.Hour)
	eventsCh, cancelSub := hub.Subscribe("")
	go relayAlerts(ctx, eventsCh, alerter, digest)
	defer cancelSub()

	feed.SetDegradedHandler(func(failures int) {
		digest.RecordFeedError()
		if alertErr := alerter.Alert(ctx, alerting.EventSeverity(alerting.EventFeedDegraded),
			"Price feed degraded", "consecutive_failures", failures); alertErr != nil {
			slog.Warn("feed degradation alert failed", "err", alertErr)
		}
	})

	// Metrics and health
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(metrics.ServerConfig{
			Port:        cfg.Metrics.Port,
			MetricsPath: cfg.Metrics.Path,
		}, logger)
		metricsServer.RegisterHealthCheck("store", func() metrics.Check {
			checkCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if _, err := st.CountActive(checkCtx, ""); err != nil {
				return metrics.Unhealthy(err.Error())
			}
			return metrics.Healthy()
		})
		metricsServer.RegisterHealthCheck("feed", func() metrics.Check {
			if len(feed.Watched()) == 0 {
				return metrics.Check{Status: "healthy", Message: "no instruments watched"}
			}
			return metrics.Healthy()
		})
		metricsServer.Start()
	}

	// Start the pipeline: initial reconcile loads the active set, then
	// ticks begin to flow.
	dispatcher.Start(ctx)
	feed.Start(ctx)
	if push != nil {
		push.Start(ctx)
	}

	if alertErr := alerter.Alert(ctx, alerting.EventSeverity(alerting.EventEngineStarted),
		"Order engine started", "version", Version); alertErr != nil {
		slog.Warn("startup alert failed", "err", alertErr)
	}

	<-ctx.Done()
	slog.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if push != nil {
		push.Close()
	}
	feed.Close()
	dispatcher.Wait()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("metrics server shutdown failed", "err", err)
		}
	}

	if alertErr := alerter.Alert(shutdownCtx, alerting.EventSeverity(alerting.EventEngineStopped),
		"Order engine stopped"); alertErr != nil {
		slog.Warn("shutdown alert failed", "err", alertErr)
	}

	slog.Info("sentinel shutdown complete")
}

// buildAlerter assembles the configured alert channels. With alerting
// disabled everything still flows to the log.
func buildAlerter(cfg *config.Config, logger *slog.Logger) alerting.Alerter {
	if !cfg.Alerting.Enabled {
		return alerting.NewConsoleAlerter(logger)
	}

	var channels []alerting.Alerter
	for _, ch := range cfg.Alerting.Channels {
		switch ch.Type {
		case "telegram":
			channels = append(channels, alerting.NewTelegramAlerter(ch.BotToken, ch.ChatID, logger))
		case "console":
			channels = append(channels, alerting.NewConsoleAlerter(logger))
		}
	}
	if len(channels) == 0 {
		return alerting.NewConsoleAlerter(logger)
	}
	return alerting.NewMultiAlerter(logger, channels...)
}

// relayAlerts turns order lifecycle events into operator alerts and digest
// counts.
func relayAlerts(ctx context.Context, ch <-chan events.Event, alerter alerting.Alerter, digest *alerting.Digest) {
	for ev := range ch {
		switch ev.Type {
		case events.TypeTriggered:
			digest.RecordTriggered(ev.Kind)
			digest.RecordFilled()
			fields := []any{"order_id", ev.OrderID, "owner", ev.Owner, "mint", ev.Mint, "kind", ev.Kind}
			if ev.Swap != nil {
				fields = append(fields,
					"price", ev.Swap.Price,
					"proceeds", ev.Swap.OutAmount,
					"fee", ev.Swap.PlatformFee,
				)
			}
			if err := alerter.Alert(ctx, alerting.EventSeverity(alerting.EventOrderTriggered),
				"Order triggered and handed off for signature", fields...); err != nil {
				slog.Warn("trigger alert failed", "order_id", ev.OrderID, "err", err)
			}
		case events.TypeFailed:
			digest.RecordFailed()
			if err := alerter.Alert(ctx, alerting.EventSeverity(alerting.EventOrderFailed),
				"Order failed",
				"order_id", ev.OrderID,
				"owner", ev.Owner,
				"reason", ev.Reason,
			); err != nil {
				slog.Warn("failure alert failed", "order_id", ev.OrderID, "err", err)
			}
		case events.TypeCancelled:
			digest.RecordCancelled()
		}
	}
}
