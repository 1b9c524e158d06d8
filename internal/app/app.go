// Package app wires configuration, sources, the summarizer and the optional
// sinks into pipeline runs.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"summarist/internal/config"
	"summarist/internal/database"
	"summarist/internal/domain"
	"summarist/internal/notify"
	"summarist/internal/pipeline"
	"summarist/internal/report"
	"summarist/internal/source"
	"summarist/internal/summarizer"
)

const (
	defaultDaysAgoPRs    = 7
	defaultDaysAgoEmails = 1
	defaultDaysAgoFeeds  = 1
	sourceClientTimeout  = 60 * time.Second
)

// SourceFactory builds the source for one pipeline run.
type SourceFactory func(ctx context.Context, kind pipeline.Kind, opts config.RunOptions) (source.Source, error)

// SummarizerFactory builds the summarizer for one pipeline run.
type SummarizerFactory func(model string) (summarizer.Summarizer, error)

type App struct {
	cfg           config.Config
	newSource     SourceFactory
	newSummarizer SummarizerFactory
	db            *database.Database
	telegram      *notify.Telegram
	stdout        io.Writer
	stderr        io.Writer
	now           func() time.Time
	log           *slog.Logger
}

type Option func(*App)

func WithDatabase(db *database.Database) Option {
	return func(a *App) { a.db = db }
}

func WithTelegram(t *notify.Telegram) Option {
	return func(a *App) { a.telegram = t }
}

func WithSourceFactory(f SourceFactory) Option {
	return func(a *App) { a.newSource = f }
}

func WithSummarizerFactory(f SummarizerFactory) Option {
	return func(a *App) { a.newSummarizer = f }
}

func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

func New(cfg config.Config, stdout io.Writer, stderr io.Writer, log *slog.Logger, opts ...Option) *App {
	a := &App{
		cfg:    cfg,
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
		log:    log,
	}
	a.newSource = a.defaultSource
	a.newSummarizer = a.defaultSummarizer

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// KindByName resolves a pipeline name to its kind.
func KindByName(name string) (pipeline.Kind, error) {
	switch strings.TrimSpace(name) {
	case pipeline.PullRequests.Name:
		return pipeline.PullRequests, nil
	case pipeline.Emails.Name:
		return pipeline.Emails, nil
	case pipeline.Feeds.Name:
		return pipeline.Feeds, nil
	default:
		return pipeline.Kind{}, fmt.Errorf("unknown pipeline %q", name)
	}
}

// Defaults returns the built-in options for a pipeline.
func Defaults(kind pipeline.Kind) config.RunOptions {
	daysAgo := defaultDaysAgoPRs
	switch kind.Name {
	case pipeline.Emails.Name:
		daysAgo = defaultDaysAgoEmails
	case pipeline.Feeds.Name:
		daysAgo = defaultDaysAgoFeeds
	}

	return config.RunOptions{
		DaysAgo:       daysAgo,
		MaxItems:      kind.DefaultMaxItems,
		Model:         summarizer.DefaultModel,
		Concurrency:   1,
		FailurePolicy: string(pipeline.FailurePolicyAbort),
		OutputFormat:  string(report.FormatJSON),
	}
}

// Run executes one pipeline run and writes its report to stdout. The journal
// and Telegram delivery are best effort and never change the outcome.
func (a *App) Run(ctx context.Context, kind pipeline.Kind, opts config.RunOptions) error {
	if err := opts.Validate(); err != nil {
		return fmt.Errorf("validate options: %w", err)
	}

	policy, err := pipeline.ParseFailurePolicy(opts.FailurePolicy)
	if err != nil {
		return err
	}

	format, err := report.ParseFormat(opts.OutputFormat)
	if err != nil {
		return err
	}

	startedAt := a.now()

	r, err := a.run(ctx, kind, opts, policy)

	a.recordRun(ctx, kind, startedAt, r, err)

	if err != nil {
		return err
	}

	if err = report.Write(a.stdout, r, format); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	a.deliver(ctx, kind, opts, r)

	return nil
}

// RecentRuns returns the latest journal entries for a pipeline, newest first.
func (a *App) RecentRuns(ctx context.Context, kind pipeline.Kind, limit int) ([]database.Run, error) {
	if a.db == nil {
		return nil, errors.New("run journal is not configured (DB_PATH is empty)")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive (got %d)", limit)
	}

	runs, err := a.db.GetRecentRuns(ctx, kind.Name, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent runs: %w", err)
	}
	if runs == nil {
		runs = []database.Run{}
	}

	return runs, nil
}

func (a *App) run(
	ctx context.Context,
	kind pipeline.Kind,
	opts config.RunOptions,
	policy pipeline.FailurePolicy,
) (domain.Report, error) {
	src, err := a.newSource(ctx, kind, opts)
	if err != nil {
		return nil, err
	}

	s, err := a.newSummarizer(opts.Model)
	if err != nil {
		return nil, err
	}

	p := pipeline.New(kind, src, s, pipeline.Options{
		Concurrency:   opts.Concurrency,
		FailurePolicy: policy,
		Console:       a.stderr,
	}, a.log)

	filter := source.FilterFromDays(opts.DaysAgo, opts.Label, opts.Query, opts.MaxItems, a.now())

	return p.Run(ctx, filter)
}

func (a *App) recordRun(
	ctx context.Context,
	kind pipeline.Kind,
	startedAt time.Time,
	r domain.Report,
	runErr error,
) {
	if a.db == nil {
		return
	}

	run := &database.Run{
		Pipeline:    kind.Name,
		StartedAt:   startedAt,
		FinishedAt:  a.now(),
		ItemCount:   len(r),
		FailedCount: r.Failed(),
		Status:      database.RunStatusSucceeded,
	}
	if runErr != nil {
		run.Status = database.RunStatusFailed
		run.Error = runErr.Error()
	}

	// The run's own context may already be cancelled.
	ctx = context.WithoutCancel(ctx)

	if _, err := a.db.AddRun(ctx, run); err != nil {
		a.log.ErrorContext(ctx, "Failed to record run",
			"error", err,
			"pipeline", kind.Name,
			"status", run.Status)
	}
}

func (a *App) deliver(ctx context.Context, kind pipeline.Kind, opts config.RunOptions, r domain.Report) {
	if a.telegram == nil || opts.TelegramChatID == 0 {
		return
	}

	title := fmt.Sprintf("%s digest", kind.Name)
	if err := a.telegram.SendReport(ctx, opts.TelegramChatID, title, r); err != nil {
		a.log.ErrorContext(ctx, "Failed to deliver report to Telegram",
			"error", err,
			"pipeline", kind.Name,
			"chatID", opts.TelegramChatID)
	}
}

func (a *App) defaultSource(ctx context.Context, kind pipeline.Kind, opts config.RunOptions) (source.Source, error) {
	switch kind.Name {
	case pipeline.PullRequests.Name:
		return source.NewGitHub(a.cfg.GitHubToken, a.cfg.GitHubBaseURL, a.log)
	case pipeline.Emails.Name:
		return source.NewGmail(ctx, a.cfg.GmailToken, "", nil, a.log)
	case pipeline.Feeds.Name:
		client := &http.Client{Timeout: sourceClientTimeout}
		return source.NewFeeds(strings.Join(opts.Feeds, " "), client, a.log)
	default:
		return nil, fmt.Errorf("unknown pipeline %q", kind.Name)
	}
}

func (a *App) defaultSummarizer(model string) (summarizer.Summarizer, error) {
	if a.cfg.OpenAIAPIKey == "" {
		return nil, domain.NewError(domain.KindAuthentication, domain.PhaseSummarize, nil,
			errors.New("OPENAI_API_KEY is required"))
	}

	s, err := summarizer.NewOpenAISummarizer(a.cfg.OpenAIAPIKey, model, a.cfg.OpenAIBaseURL)
	if err != nil {
		return nil, fmt.Errorf("create OpenAI summarizer: %w", err)
	}

	return s, nil
}
