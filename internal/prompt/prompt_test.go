package prompt_test

import (
	"strings"
	"testing"
	"time"

	"summarist/internal/domain"
	"summarist/internal/prompt"
)

func pullRequestItem() domain.Item {
	return domain.Item{
		ID:          "acme/api#42",
		Title:       "Add retry to uploader",
		Origin:      "acme/api",
		URL:         "https://github.com/acme/api/pull/42",
		Description: "Retries transient S3 failures.",
		CreatedAt:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestBuildersAreDeterministic(t *testing.T) {
	builders := map[string]prompt.Builder{
		"pull request": prompt.PullRequest,
		"email":        prompt.Email,
		"feed":         prompt.Feed,
	}

	for name, build := range builders {
		t.Run(name, func(t *testing.T) {
			first := build(pullRequestItem(), "payload")
			second := build(pullRequestItem(), "payload")

			if first != second {
				t.Fatalf("expected identical prompts, got %q and %q", first, second)
			}
		})
	}
}

func TestPullRequestSectionOrder(t *testing.T) {
	got := prompt.PullRequest(pullRequestItem(), "diff --git a/x b/x")

	labels := []string{
		"PR Title: Add retry to uploader",
		"Repository: acme/api",
		"Description: Retries transient S3 failures.",
		"Diff:\ndiff --git a/x b/x",
	}

	assertInOrder(t, got, labels)
}

func TestEmailSectionOrder(t *testing.T) {
	item := domain.Item{
		ID:        "18c2",
		Title:     "Quarterly numbers",
		Origin:    "Alice <alice@example.com>",
		CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	got := prompt.Email(item, "Revenue is up.")

	assertInOrder(t, got, []string{
		"From: Alice <alice@example.com>",
		"Subject: Quarterly numbers",
		"Date: Sat, 01 Mar 2025 12:00:00 +0000",
		"Revenue is up.",
	})
}

func TestEmailPrefersRawDateHeader(t *testing.T) {
	item := domain.Item{
		CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Meta:      map[string]string{"date": "Sat, 1 Mar 2025 13:00:00 +0100"},
	}

	if got := prompt.Email(item, ""); !strings.Contains(got, "Date: Sat, 1 Mar 2025 13:00:00 +0100\n") {
		t.Fatalf("expected raw date header, got %q", got)
	}
}

func TestPromptIsNotTruncated(t *testing.T) {
	diff := strings.Repeat("+line\n", 50_000)

	if got := prompt.PullRequest(pullRequestItem(), diff); !strings.HasSuffix(got, diff) {
		t.Fatal("expected full diff at the end of the prompt")
	}
}

func assertInOrder(t *testing.T, s string, parts []string) {
	t.Helper()

	offset := 0
	for _, part := range parts {
		idx := strings.Index(s[offset:], part)
		if idx < 0 {
			t.Fatalf("expected %q after offset %d in %q", part, offset, s)
		}
		offset += idx + len(part)
	}
}
