package utils

import "strings"

// markdownV2Replacer escapes every character that Telegram's MarkdownV2 mode
// treats as markup.
var markdownV2Replacer = strings.NewReplacer(
	"_", "\\_",
	"*", "\\*",
	"[", "\\[",
	"]", "\\]",
	"(", "\\(",
	")", "\\)",
	"~", "\\~",
	"`", "\\`",
	">", "\\>",
	"#", "\\#",
	"+", "\\+",
	"-", "\\-",
	"=", "\\=",
	"|", "\\|",
	"{", "\\{",
	"}", "\\}",
	".", "\\.",
	"!", "\\!",
)

// EscapeMarkdownV2 escapes text for safe inclusion in a MarkdownV2 message.
// User-controlled fragments (channel names, watermark text, captions) must go
// through this before being embedded in formatted output.
func EscapeMarkdownV2(text string) string {
	return markdownV2Replacer.Replace(text)
}
