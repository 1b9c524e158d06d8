package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"summarist/internal/domain"
	"summarist/internal/prompt"
	"summarist/internal/source"
	"summarist/internal/summarizer"

	"golang.org/x/sync/errgroup"
)

// FailurePolicy decides what a failed item does to the rest of the run.
type FailurePolicy string

const (
	// FailurePolicyAbort terminates the run on the first failed item.
	FailurePolicyAbort FailurePolicy = "abort"
	// FailurePolicyCollect records failed items in the report and keeps going.
	FailurePolicyCollect FailurePolicy = "collect"
)

func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch p := FailurePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return FailurePolicyAbort, nil
	case FailurePolicyAbort, FailurePolicyCollect:
		return p, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q (want %q or %q)", s, FailurePolicyAbort, FailurePolicyCollect)
	}
}

// Kind describes one pipeline flavour: how prompts are built and how large a
// summary may get.
type Kind struct {
	Name            string
	BuildPrompt     prompt.Builder
	Instructions    string
	MaxOutputTokens int64
	DefaultMaxItems int
}

var (
	PullRequests = Kind{
		Name:            "prs",
		BuildPrompt:     prompt.PullRequest,
		Instructions:    prompt.PullRequestInstructions,
		MaxOutputTokens: 500,
		DefaultMaxItems: 100,
	}
	Emails = Kind{
		Name:            "emails",
		BuildPrompt:     prompt.Email,
		Instructions:    prompt.EmailInstructions,
		MaxOutputTokens: 1000,
		DefaultMaxItems: 30,
	}
	Feeds = Kind{
		Name:            "feeds",
		BuildPrompt:     prompt.Feed,
		Instructions:    prompt.FeedInstructions,
		MaxOutputTokens: 500,
		DefaultMaxItems: 30,
	}
)

type Options struct {
	// Concurrency bounds parallel detail+summarize work; values below 2 run sequentially.
	Concurrency   int
	FailurePolicy FailurePolicy
	// Console receives a human-readable rendering of every result as it is ready.
	Console io.Writer
}

type Pipeline struct {
	kind       Kind
	source     source.Source
	summarizer summarizer.Summarizer
	opts       Options
	log        *slog.Logger
}

func New(
	kind Kind,
	src source.Source,
	s summarizer.Summarizer,
	opts Options,
	log *slog.Logger,
) *Pipeline {
	if opts.FailurePolicy == "" {
		opts.FailurePolicy = FailurePolicyAbort
	}
	if opts.Console == nil {
		opts.Console = io.Discard
	}

	return &Pipeline{
		kind:       kind,
		source:     src,
		summarizer: s,
		opts:       opts,
		log:        log,
	}
}

// Run lists candidates and summarizes each of them. The returned report keeps
// the source's order. Under FailurePolicyAbort the first failure is returned
// and no report is produced; results rendered to the console before it stay.
// A cancelled ctx ends the run without a report under either policy.
func (p *Pipeline) Run(ctx context.Context, filter source.Filter) (domain.Report, error) {
	start := time.Now()

	items, err := p.source.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	if len(items) > filter.MaxItems {
		p.log.WarnContext(ctx, "Source returned more items than requested",
			"pipeline", p.kind.Name,
			"maxItems", filter.MaxItems,
			"count", len(items))

		items = items[:max(filter.MaxItems, 0)]
	}

	p.log.InfoContext(ctx, "Candidates are listed",
		"pipeline", p.kind.Name,
		"count", len(items),
		"since", filter.Since,
		"label", filter.Label,
		"query", filter.Query)

	if len(items) == 0 {
		return domain.Report{}, nil
	}

	var report domain.Report
	if p.opts.Concurrency > 1 {
		report, err = p.runParallel(ctx, items)
	} else {
		report, err = p.runSequential(ctx, items)
	}
	if err != nil {
		return nil, err
	}

	p.log.InfoContext(ctx, "Run is finished",
		"pipeline", p.kind.Name,
		"count", len(report),
		"failed", report.Failed(),
		"durationSeconds", time.Since(start).Seconds())

	return report, nil
}

func (p *Pipeline) runSequential(ctx context.Context, items []domain.Item) (domain.Report, error) {
	report := make(domain.Report, 0, len(items))

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := p.process(ctx, item)
		if err != nil {
			if p.opts.FailurePolicy == FailurePolicyAbort {
				return nil, err
			}
			// A cancelled run never degrades into failed results.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			res = p.failedResult(ctx, item, err)
		}

		p.render(ctx, res)
		report = append(report, res)
	}

	return report, nil
}

// runParallel writes every result into the slot of its original position and
// releases console output in that same order.
func (p *Pipeline) runParallel(ctx context.Context, items []domain.Item) (domain.Report, error) {
	slots := make(domain.Report, len(items))
	ready := make([]bool, len(items))
	completed := make(chan int, len(items))
	waitCh := make(chan error, 1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)

	go func() {
		for i, item := range items {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}

				res, err := p.process(gctx, item)
				if err != nil {
					if p.opts.FailurePolicy == FailurePolicyAbort {
						return err
					}
					if ctxErr := gctx.Err(); ctxErr != nil {
						return ctxErr
					}
					res = p.failedResult(gctx, item, err)
				}

				slots[i] = res
				completed <- i

				return nil
			})
		}

		waitCh <- g.Wait()
		close(completed)
	}()

	next := 0
	for i := range completed {
		ready[i] = true
		for next < len(items) && ready[next] {
			p.render(ctx, slots[next])
			next++
		}
	}

	if err := <-waitCh; err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return slots, nil
}

func (p *Pipeline) process(ctx context.Context, item domain.Item) (domain.Result, error) {
	payload, err := p.source.Detail(ctx, item)
	if err != nil {
		return domain.Result{}, attribute(err, domain.KindFetch, domain.PhaseDetail, item)
	}

	text := p.kind.BuildPrompt(item, payload)

	summary, err := p.summarizer.Summarize(ctx, summarizer.Input{
		Prompt:          text,
		Instructions:    p.kind.Instructions,
		MaxOutputTokens: p.kind.MaxOutputTokens,
	})
	if err != nil {
		return domain.Result{}, attribute(err, domain.KindSummarization, domain.PhaseSummarize, item)
	}

	p.log.DebugContext(ctx, "Item is summarized",
		"pipeline", p.kind.Name,
		"itemID", item.ID,
		"payloadLen", len(payload),
		"promptLen", len(text))

	return domain.NewResult(item, summary), nil
}

func (p *Pipeline) failedResult(ctx context.Context, item domain.Item, err error) domain.Result {
	p.log.ErrorContext(ctx, "Failed to summarize item",
		"error", err,
		"pipeline", p.kind.Name,
		"itemID", item.ID,
		"origin", item.Origin)

	res := domain.NewResult(item, "")
	res.Error = domain.AsFailure(err)

	return res
}

// attribute makes sure err carries the item it happened on, classifying
// unknown errors with the given fallback kind.
func attribute(err error, fallback domain.Kind, phase domain.Phase, item domain.Item) error {
	var de *domain.Error
	if !errors.As(err, &de) {
		return domain.NewError(fallback, phase, &item, err)
	}

	if de.ItemID != "" {
		return err
	}

	return &domain.Error{
		Kind:   de.Kind,
		Phase:  phase,
		ItemID: item.ID,
		Origin: item.Origin,
		Err:    de.Err,
	}
}
