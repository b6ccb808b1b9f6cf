package format

import (
	"fmt"
	"html"
	"regexp"

	tele "gopkg.in/telebot.v4"
)

const (
	// MarkdownV1 denotes Telegram markdown version 1.
	MarkdownV1 = 1
	// MarkdownV2 denotes Telegram markdown version 2.
	MarkdownV2 = 2
)

const mdV2Specials = "_*[]()~`>#+-=|{}.!\\"

var (
	mdV1Re = regexp.MustCompile(`([_*\[` + "`" + `])`)
	mdV2Re = regexp.MustCompile("([" + regexp.QuoteMeta(mdV2Specials) + "])")
)

// EscapeMarkdown escapes special characters for MarkdownV1 or V2.
func EscapeMarkdown(text string, version int) (string, error) {
	switch version {
	case MarkdownV1:
		return mdV1Re.ReplaceAllString(text, `\$1`), nil
	case MarkdownV2:
		return mdV2Re.ReplaceAllString(text, `\$1`), nil
	}
	return "", fmt.Errorf("unsupported markdown version: %d", version)
}

// Escape makes text safe to embed in a message sent with mode. Unknown
// modes return text unchanged.
func Escape(text string, mode tele.ParseMode) string {
	switch mode {
	case tele.ModeHTML:
		return html.EscapeString(text)
	case tele.ModeMarkdown:
		out, _ := EscapeMarkdown(text, MarkdownV1)
		return out
	case tele.ModeMarkdownV2:
		out, _ := EscapeMarkdown(text, MarkdownV2)
		return out
	}
	return text
}
