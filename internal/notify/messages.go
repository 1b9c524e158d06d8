package notify

import (
	"fmt"
	"strings"

	"summarist/internal/domain"
)

const (
	telegramMessageMaxLength = 4096
	truncationSuffix         = "…"
)

// FormatReportAsMessages renders a report as MarkdownV2 messages that each fit
// into one Telegram message. Results are never split across messages.
func FormatReportAsMessages(title string, report domain.Report) []string {
	if len(report) == 0 {
		return nil
	}

	header := fmt.Sprintf("📰 *%s*\n\n", escapeMarkdownV2(title))
	continuationHeader := fmt.Sprintf("📰 *%s \\(continue\\)*\n\n", escapeMarkdownV2(title))

	var messages []string
	var current strings.Builder

	current.WriteString(header)
	headerLength := current.Len()

	for _, res := range report {
		entry := formatEntry(res, telegramMessageMaxLength-len(continuationHeader))

		if current.Len()+len(entry) > telegramMessageMaxLength {
			messages = append(messages, current.String())
			current.Reset()
			current.WriteString(continuationHeader)
			headerLength = current.Len()
		}

		current.WriteString(entry)
	}

	if current.Len() > headerLength {
		messages = append(messages, current.String())
	}

	return messages
}

// formatEntry renders one result in at most limit bytes by shortening its body.
func formatEntry(res domain.Result, limit int) string {
	title := strings.TrimSpace(res.Title)
	if title == "" {
		title = res.Identifier
	}

	var head string
	if url := strings.TrimSpace(res.Locator); url != "" {
		head = fmt.Sprintf("📌 *[%s](%s)*\n", escapeMarkdownV2(title), escapeMarkdownV2LinkURL(url))
	} else {
		head = fmt.Sprintf("📌 *%s*\n", escapeMarkdownV2(title))
	}

	if origin := strings.TrimSpace(res.Origin); origin != "" {
		head += fmt.Sprintf("_%s_\n", escapeMarkdownV2(origin))
	}

	body := strings.TrimSpace(res.Summary)
	if res.Error != nil {
		body = "⚠️ " + res.Error.Message
	}

	entry := head + escapeMarkdownV2(body) + "\n\n"
	if len(entry) <= limit {
		return entry
	}

	runes := []rune(body)
	for len(runes) > 0 {
		runes = runes[:len(runes)*9/10]
		entry = head + escapeMarkdownV2(strings.TrimSpace(string(runes))+truncationSuffix) + "\n\n"
		if len(entry) <= limit {
			return entry
		}
	}

	return head + "\n"
}
