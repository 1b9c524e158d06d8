// Package prompt renders the per-item prompts sent to the summarizer.
//
// Every builder is a pure function of its inputs. Nothing is truncated here;
// the summarizer's output budget is the only size control.
package prompt

import (
	"strings"
	"time"

	"summarist/internal/domain"
)

// Builder renders a prompt from item metadata and its detail payload.
type Builder func(item domain.Item, payload string) string

const (
	PullRequestInstructions = "You are a helpful code reviewer. " +
		"Summarize pull requests for busy engineers: what changed, why, and anything risky."
	EmailInstructions = "You are a helpful assistant that summarizes emails. " +
		"Be concise and keep names, dates, numbers and requested actions."
	FeedInstructions = "You are a helpful assistant that summarizes articles " +
		"in a few neutral sentences in the same language as the input."

	dateLayout = time.RFC1123Z
)

func PullRequest(item domain.Item, diff string) string {
	var b strings.Builder

	b.WriteString("Please summarize the following pull request. ")
	b.WriteString("Explain the purpose of the change and its main effects.\n\n")

	b.WriteString("PR Title: ")
	b.WriteString(item.Title)
	b.WriteString("\n")

	b.WriteString("Repository: ")
	b.WriteString(item.Origin)
	b.WriteString("\n")

	b.WriteString("Description: ")
	b.WriteString(item.Description)
	b.WriteString("\n\n")

	b.WriteString("Diff:\n")
	b.WriteString(diff)

	return b.String()
}

func Email(item domain.Item, body string) string {
	var b strings.Builder

	b.WriteString("Please summarize the following email.\n\n")

	b.WriteString("From: ")
	b.WriteString(item.Origin)
	b.WriteString("\n")

	b.WriteString("Subject: ")
	b.WriteString(item.Title)
	b.WriteString("\n")

	b.WriteString("Date: ")
	b.WriteString(formatDate(item))
	b.WriteString("\n\n")

	b.WriteString(body)

	return b.String()
}

func Feed(item domain.Item, content string) string {
	var b strings.Builder

	b.WriteString("Please summarize the following article.\n\n")

	b.WriteString("Title: ")
	b.WriteString(item.Title)
	b.WriteString("\n")

	b.WriteString("Feed: ")
	b.WriteString(item.Origin)
	b.WriteString("\n")

	b.WriteString("Published: ")
	b.WriteString(formatDate(item))
	b.WriteString("\n\n")

	b.WriteString("Content:\n")
	b.WriteString(content)

	return b.String()
}

// formatDate prefers the date header the source reported verbatim.
func formatDate(item domain.Item) string {
	if raw := strings.TrimSpace(item.Meta["date"]); raw != "" {
		return raw
	}
	if item.CreatedAt.IsZero() {
		return ""
	}
	return item.CreatedAt.UTC().Format(dateLayout)
}
