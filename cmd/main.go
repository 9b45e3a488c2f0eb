package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/okian/groupwatch/internal/adapters/repository"
	"github.com/okian/groupwatch/internal/adapters/source"
	"github.com/okian/groupwatch/internal/adapters/webhook"
	"github.com/okian/groupwatch/internal/app"
	"github.com/okian/groupwatch/internal/config"
	"github.com/okian/groupwatch/internal/domain/diff"
	"github.com/okian/groupwatch/internal/domain/format"
	"github.com/okian/groupwatch/pkg/logger"
	"github.com/okian/groupwatch/pkg/metrics"
)

// Exit codes.
const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one job and returns the process exit code.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	flags := pflag.NewFlagSet("groupwatch", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	job := flags.StringP("job", "j", "", "job to run: members, levels or gains (overrides GROUPWATCH_JOB)")
	configPath := flags.StringP("config", "c", "", "YAML config file (overrides GROUPWATCH_CONFIG)")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	// Load configuration (defaults -> optional file -> env -> flags)
	cfg, err := config.Load(ctx, *configPath, map[string]string{"job": *job})
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "failed to load config:", err)
		return exitFatal
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithWriter(stderr)); err != nil {
		_, _ = fmt.Fprintln(stderr, "failed to initialize logging:", err)
		return exitFatal
	}
	log := logger.Get()
	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	log.Debug(ctx, "configuration loaded", logger.Any("config", cfg.Redacted()))

	store, err := repository.Open(ctx, repository.Config{
		Driver:     cfg.StorageDriver,
		Dir:        cfg.StateDir,
		SQLitePath: cfg.SQLitePath,
	}, repository.WithLogger(log.Named("repository")))
	if err != nil {
		log.Error(ctx, "failed to open snapshot store", logger.Error(err))
		return exitFatal
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn(ctx, "closing snapshot store", logger.Error(err))
		}
	}()

	client := source.New(
		source.WithBaseURL(cfg.APIBaseURL),
		source.WithTimeout(cfg.HTTPTimeout),
		source.WithRequestDelay(cfg.RequestDelay),
		source.WithUserAgent(cfg.UserAgent),
		source.WithLogger(log.Named("source")),
	)
	sink, err := webhook.New(cfg.WebhookURL,
		webhook.WithTimeout(cfg.HTTPTimeout),
		webhook.WithUserAgent(cfg.UserAgent),
		webhook.WithJob(cfg.Job),
		webhook.WithLogger(log.Named("webhook")),
	)
	if err != nil {
		log.Error(ctx, "failed to create webhook sink", logger.Error(err))
		return exitFatal
	}

	runner := app.New(client, store, sink,
		app.WithGroupID(cfg.GroupID),
		app.WithMetricFilter(diff.ParseFilter(cfg.MetricsFilter)),
		app.WithLeaderboard(cfg.GainsMetric, cfg.GainsPeriod, cfg.TopN),
		app.WithRefreshCode(cfg.VerificationCode),
		app.WithFormatter(format.New(
			format.WithMaxLines(cfg.MaxLinesPerMessage),
			format.WithMaxChars(cfg.MaxMessageChars),
		)),
		app.WithLogger(log.Named("runner")),
	)

	_, runErr := runner.Run(ctx, cfg.Job)

	// Metrics are best effort; a push failure never changes the exit code.
	if err := metrics.Push(ctx, cfg.PushgatewayURL, "groupwatch_"+cfg.Job); err != nil {
		log.Warn(ctx, "metrics push failed", logger.Error(err))
	}

	if runErr != nil {
		_, _ = fmt.Fprintln(stderr, "groupwatch:", runErr)
		return exitFatal
	}
	return exitOK
}
