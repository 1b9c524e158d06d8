package pipeline

import (
	"context"
	"fmt"
	"strings"

	"summarist/internal/domain"
)

const separator = "--------------------------------------------------------------------------------"

func (p *Pipeline) render(ctx context.Context, res domain.Result) {
	if _, err := fmt.Fprint(p.opts.Console, FormatResult(res)); err != nil {
		p.log.WarnContext(ctx, "Failed to write console output",
			"error", err,
			"itemID", res.Identifier)
	}
}

// FormatResult renders one result for a human reader.
func FormatResult(res domain.Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Title: %s\n", res.Title)
	fmt.Fprintf(&b, "Origin: %s\n", res.Origin)
	fmt.Fprintf(&b, "URL: %s\n", res.Locator)

	if res.Error != nil {
		fmt.Fprintf(&b, "Error: %s\n", res.Error.Message)
	} else {
		b.WriteString("Summary:\n")
		b.WriteString(strings.TrimSpace(res.Summary))
		b.WriteString("\n")
	}

	b.WriteString(separator)
	b.WriteString("\n")

	return b.String()
}
