package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"summarist/internal/app"
	"summarist/internal/config"
	"summarist/internal/database"
	"summarist/internal/notify"
	"summarist/internal/pipeline"
	"summarist/internal/report"
	"summarist/internal/scheduler"

	"github.com/spf13/cobra"
)

const (
	scheduledRunTimeout = 30 * time.Minute
	defaultRunsLimit    = 10
)

type flags struct {
	configPath     string
	daysAgo        int
	maxItems       int
	model          string
	label          string
	query          string
	feeds          []string
	concurrency    int
	failurePolicy  string
	outputFormat   string
	schedule       string
	telegramChatID int64
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:           "summarist",
		Short:         "Summarize pull requests, emails and feed entries with a language model",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&f.configPath, "config", "", "path to a YAML options file")
	root.PersistentFlags().IntVar(&f.daysAgo, "days-ago", 0, "only items created or received within this many days")
	root.PersistentFlags().StringVar(&f.model, "model", "", "summarizer model identifier")
	root.PersistentFlags().StringVar(&f.label, "label", "", "source-specific label or category filter")
	root.PersistentFlags().StringVar(&f.query, "query", "", "source-specific free-text query")
	root.PersistentFlags().IntVar(&f.concurrency, "concurrency", 0, "items processed in parallel (1 = sequential)")
	root.PersistentFlags().StringVar(&f.failurePolicy, "failure-policy", "", `"abort" on the first failed item or "collect" failures into the report`)
	root.PersistentFlags().StringVarP(&f.outputFormat, "output", "o", "", `report format: "json" or "yaml"`)
	root.PersistentFlags().StringVar(&f.schedule, "schedule", "", "cron spec (UTC); keeps running and summarizes on every tick")
	root.PersistentFlags().Int64Var(&f.telegramChatID, "telegram-chat-id", 0, "also deliver the report to this Telegram chat")

	prs := newPipelineCmd(pipeline.PullRequests, "Summarize recent pull requests", f)
	prs.Flags().IntVar(&f.maxItems, "max-prs", 0, "maximum number of pull requests")

	emails := newPipelineCmd(pipeline.Emails, "Summarize recent emails", f)
	emails.Flags().IntVar(&f.maxItems, "max-emails", 0, "maximum number of emails")

	feeds := newPipelineCmd(pipeline.Feeds, "Summarize recent RSS/Atom feed entries", f)
	feeds.Flags().IntVar(&f.maxItems, "max-items", 0, "maximum number of entries")
	feeds.Flags().StringSliceVar(&f.feeds, "feed", nil, "feed URL (repeatable)")

	root.AddCommand(prs, emails, feeds, newRunsCmd(f))

	return root
}

func newPipelineCmd(kind pipeline.Kind, short string, f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   kind.Name,
		Short: short,
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, kind, f, args)
		},
	}
}

func newRunsCmd(f *flags) *cobra.Command {
	limit := defaultRunsLimit

	cmd := &cobra.Command{
		Use:   "runs <pipeline>",
		Short: "Show recent runs recorded in the journal (requires DB_PATH)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showRuns(cmd, f, args[0], limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", defaultRunsLimit, "number of runs to show")

	return cmd
}

func showRuns(cmd *cobra.Command, f *flags, name string, limit int) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}

	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(log)

	kind, err := app.KindByName(name)
	if err != nil {
		log.ErrorContext(ctx, "Failed to resolve pipeline",
			"error", err,
			"pipeline", name)

		return err
	}

	format, err := report.ParseFormat(f.outputFormat)
	if err != nil {
		log.ErrorContext(ctx, "Failed to resolve output format",
			"error", err,
			"output", f.outputFormat)

		return err
	}

	var appOpts []app.Option
	if db := initDatabase(ctx, cfg, log); db != nil {
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				log.ErrorContext(ctx, "Failed to close db",
					"error", closeErr,
					"dbPath", cfg.DBPath)
			}
		}()
		appOpts = append(appOpts, app.WithDatabase(db))
	}

	a := app.New(cfg, os.Stdout, os.Stderr, log, appOpts...)

	runs, err := a.RecentRuns(ctx, kind, limit)
	if err != nil {
		log.ErrorContext(ctx, "Failed to read run journal",
			"error", err,
			"pipeline", kind.Name)

		return err
	}

	return report.Encode(os.Stdout, runs, format)
}

func run(cmd *cobra.Command, kind pipeline.Kind, f *flags, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}

	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(log)

	opts, err := resolveOptions(cmd, kind, cfg, f, args)
	if err != nil {
		log.ErrorContext(ctx, "Failed to resolve options",
			"error", err,
			"pipeline", kind.Name)

		return err
	}

	var appOpts []app.Option

	if db := initDatabase(ctx, cfg, log); db != nil {
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				log.ErrorContext(ctx, "Failed to close db",
					"error", closeErr,
					"dbPath", cfg.DBPath)
			}
		}()
		appOpts = append(appOpts, app.WithDatabase(db))
	}

	if tg := initTelegram(ctx, cfg, opts, log); tg != nil {
		appOpts = append(appOpts, app.WithTelegram(tg))
	}

	a := app.New(cfg, os.Stdout, os.Stderr, log, appOpts...)

	if opts.Schedule == "" {
		if err = a.Run(ctx, kind, opts); err != nil {
			log.ErrorContext(ctx, "Run failed",
				"error", err,
				"pipeline", kind.Name)

			return err
		}

		return nil
	}

	return runScheduled(ctx, a, kind, opts, log)
}

func runScheduled(ctx context.Context, a *app.App, kind pipeline.Kind, opts config.RunOptions, log *slog.Logger) error {
	start := time.Now()

	sched := scheduler.New(ctx, opts.Schedule, func(ctx context.Context) error {
		return a.Run(ctx, kind, opts)
	}, scheduledRunTimeout, log)

	if err := sched.Start(); err != nil {
		log.ErrorContext(ctx, "Failed to start scheduler",
			"error", err,
			"spec", opts.Schedule,
			"timezone", scheduler.Timezone)

		return err
	}
	log.InfoContext(ctx, "Scheduler is started",
		"spec", opts.Schedule,
		"pipeline", kind.Name,
		"timezone", scheduler.Timezone)

	<-ctx.Done()
	log.InfoContext(ctx, "Shutdown signal is received",
		"error", ctx.Err())

	sched.Stop()
	log.InfoContext(ctx, "Scheduler is stopped",
		"uptimeSeconds", time.Since(start).Seconds())

	return nil
}

// resolveOptions layers built-in defaults, the options file, OPENAI_MODEL and
// explicitly set flags, in that order.
func resolveOptions(
	cmd *cobra.Command,
	kind pipeline.Kind,
	cfg config.Config,
	f *flags,
	args []string,
) (config.RunOptions, error) {
	file, err := config.LoadFile(f.configPath)
	if err != nil {
		return config.RunOptions{}, err
	}

	opts := app.Defaults(kind).Merge(file.For(kind.Name))
	opts = opts.Merge(config.RunOptions{Model: cfg.OpenAIModel})

	changed := func(name string) bool {
		return cmd.Flags().Changed(name)
	}

	var override config.RunOptions
	if changed("days-ago") {
		override.DaysAgo = f.daysAgo
		if f.daysAgo <= 0 {
			return config.RunOptions{}, fmt.Errorf("days_ago must be positive (got %d)", f.daysAgo)
		}
	}
	if changed("max-prs") || changed("max-emails") || changed("max-items") {
		override.MaxItems = f.maxItems
		if f.maxItems <= 0 {
			return config.RunOptions{}, fmt.Errorf("max_items must be positive (got %d)", f.maxItems)
		}
	}
	if changed("model") {
		override.Model = f.model
	}
	if changed("label") {
		override.Label = f.label
	}
	if changed("query") {
		override.Query = f.query
	}
	if changed("concurrency") {
		override.Concurrency = f.concurrency
	}
	if changed("failure-policy") {
		override.FailurePolicy = f.failurePolicy
	}
	if changed("output") {
		override.OutputFormat = f.outputFormat
	}
	if changed("schedule") {
		override.Schedule = f.schedule
	}
	if changed("telegram-chat-id") {
		override.TelegramChatID = f.telegramChatID
	}

	feeds := append([]string(nil), f.feeds...)
	feeds = append(feeds, args...)
	if len(feeds) > 0 {
		override.Feeds = feeds
	}

	opts = opts.Merge(override)

	if kind.Name == pipeline.Feeds.Name && strings.TrimSpace(strings.Join(opts.Feeds, "")) == "" {
		return config.RunOptions{}, errors.New("at least one feed URL is required")
	}

	return opts, opts.Validate()
}

func initDatabase(ctx context.Context, cfg config.Config, log *slog.Logger) *database.Database {
	dbPath := strings.TrimSpace(cfg.DBPath)
	if dbPath == "" {
		return nil
	}

	db, err := database.New(ctx, dbPath, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize db so runs will not be recorded",
			"error", err,
			"dbPath", dbPath)

		return nil
	}
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", dbPath)

	return db
}

func initTelegram(ctx context.Context, cfg config.Config, opts config.RunOptions, log *slog.Logger) *notify.Telegram {
	if opts.TelegramChatID == 0 {
		return nil
	}

	if cfg.TelegramToken == "" {
		log.WarnContext(ctx, "TELEGRAM_TOKEN is missing so the report will not be delivered",
			"envVar", "TELEGRAM_TOKEN",
			"chatID", opts.TelegramChatID)

		return nil
	}

	tg, err := notify.NewTelegram(cfg.TelegramToken, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to create Telegram notifier so the report will not be delivered",
			"error", err,
			"chatID", opts.TelegramChatID)

		return nil
	}

	log.InfoContext(ctx, "Telegram notifier is initialized",
		"chatID", opts.TelegramChatID)

	return tg
}
