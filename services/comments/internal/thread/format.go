package thread

import "fmt"

// quotePreviewLimit caps how much of the parent is shown above a reply.
const quotePreviewLimit = 150

// FormatQuote renders a reply with its parent quoted above it, styled after
// the chat frontend's native reply look. The parent preview is truncated to
// quotePreviewLimit runes with a trailing ellipsis. Content is passed through
// as-is; the frontend renders it with its HTML parse mode.
func FormatQuote(parentContent, replyContent string) string {
	preview := []rune(parentContent)
	if len(preview) > quotePreviewLimit {
		parentContent = string(preview[:quotePreviewLimit]) + "..."
	}
	return fmt.Sprintf("<blockquote expandable>%s</blockquote>\n\n%s", parentContent, replyContent)
}
