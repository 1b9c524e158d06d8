package notify

import "strings"

// Taken from https://core.telegram.org/bots/api#markdownv2-style.
const mdV2SpecialChars = `\_*[]()~` + "`" + `>#+-=|{}.!`

// Inside (...) of an inline link only ')' and '\' must be escaped.
const mdV2LinkURLSpecialChars = `)\`

var (
	mdV2Replacer        = newEscaper(mdV2SpecialChars)
	mdV2LinkURLReplacer = newEscaper(mdV2LinkURLSpecialChars)
)

func newEscaper(chars string) *strings.Replacer {
	pairs := make([]string, 0, 2*len(chars))
	for _, c := range chars {
		pairs = append(pairs, string(c), `\`+string(c))
	}
	return strings.NewReplacer(pairs...)
}

func escapeMarkdownV2(s string) string {
	return mdV2Replacer.Replace(s)
}

func escapeMarkdownV2LinkURL(s string) string {
	return mdV2LinkURLReplacer.Replace(s)
}
