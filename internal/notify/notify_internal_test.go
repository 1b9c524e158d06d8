package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"summarist/internal/domain"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type fakeSender struct {
	mu     sync.Mutex
	params []*bot.SendMessageParams
	err    error
}

func (f *fakeSender) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Message{ID: len(f.params)}, nil
}

func TestEscapeMarkdownV2(t *testing.T) {
	got := escapeMarkdownV2("fix(api): v1.2 [beta]!")
	want := `fix\(api\): v1\.2 \[beta\]\!`

	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	if got = escapeMarkdownV2LinkURL("https://x.dev/a_(b)"); got != `https://x.dev/a_(b\)` {
		t.Fatalf("unexpected link escaping: %q", got)
	}
}

func TestFormatReportAsMessagesEmpty(t *testing.T) {
	if messages := FormatReportAsMessages("PR digest", nil); messages != nil {
		t.Fatalf("expected no messages, got %v", messages)
	}
}

func TestFormatReportAsMessagesSplitsAndKeepsOrder(t *testing.T) {
	var report domain.Report
	for i := range 40 {
		report = append(report, domain.Result{
			Identifier: fmt.Sprintf("acme/api#%d", i),
			Title:      fmt.Sprintf("PR %d", i),
			Origin:     "acme/api",
			Locator:    fmt.Sprintf("https://github.com/acme/api/pull/%d", i),
			Summary:    strings.Repeat("word ", 60),
		})
	}

	messages := FormatReportAsMessages("PR digest", report)
	if len(messages) < 2 {
		t.Fatalf("expected the report to be split, got %d messages", len(messages))
	}

	next := 0
	for i, message := range messages {
		if len(message) > telegramMessageMaxLength {
			t.Fatalf("message %d is too long: %d", i, len(message))
		}
		if i > 0 && !strings.HasPrefix(message, "📰 *PR digest \\(continue\\)*") {
			t.Fatalf("message %d lacks continuation header", i)
		}

		for strings.Contains(message, fmt.Sprintf("[PR %d](", next)) {
			next++
		}
	}

	if next != len(report) {
		t.Fatalf("expected all %d results in order, saw %d", len(report), next)
	}
}

func TestFormatEntryTruncatesOversizedSummary(t *testing.T) {
	res := domain.Result{Title: "Huge", Summary: strings.Repeat("a", 10_000)}

	entry := formatEntry(res, 500)
	if len(entry) > 500 {
		t.Fatalf("entry too long: %d", len(entry))
	}
	if !strings.Contains(entry, truncationSuffix) {
		t.Fatal("expected truncation marker")
	}
}

func TestFormatEntryShowsFailure(t *testing.T) {
	res := domain.Result{
		Title: "Broken",
		Error: &domain.Failure{Kind: "FetchError", Message: "FetchError: boom"},
	}

	if entry := formatEntry(res, telegramMessageMaxLength); !strings.Contains(entry, "FetchError: boom") {
		t.Fatalf("expected failure message in %q", entry)
	}
}

func TestSendReport(t *testing.T) {
	sender := &fakeSender{}
	tg := newTelegram(sender, slog.New(slog.DiscardHandler))

	report := domain.Report{{Identifier: "m1", Title: "Hello", Summary: "World."}}

	if err := tg.SendReport(context.Background(), 42, "Email digest", report); err != nil {
		t.Fatalf("SendReport: %v", err)
	}

	if len(sender.params) != 1 {
		t.Fatalf("expected one message, got %d", len(sender.params))
	}
	if sender.params[0].ChatID != int64(42) || sender.params[0].ParseMode != models.ParseModeMarkdown {
		t.Fatalf("unexpected params: %+v", sender.params[0])
	}
}

func TestSendReportJoinsErrors(t *testing.T) {
	sender := &fakeSender{err: errors.New("chat not found")}
	tg := newTelegram(sender, slog.New(slog.DiscardHandler))

	err := tg.SendReport(context.Background(), 42, "digest", domain.Report{{Title: "x", Summary: "y"}})
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected joined send error, got %v", err)
	}
}

func TestSendReportEmptyDoesNothing(t *testing.T) {
	sender := &fakeSender{}
	tg := newTelegram(sender, slog.New(slog.DiscardHandler))

	if err := tg.SendReport(context.Background(), 42, "digest", domain.Report{}); err != nil {
		t.Fatalf("SendReport: %v", err)
	}
	if len(sender.params) != 0 {
		t.Fatalf("expected no messages, got %d", len(sender.params))
	}
}
