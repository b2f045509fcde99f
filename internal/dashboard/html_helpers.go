package dashboard

import (
	"fmt"
	"strings"
)

// htmlHead returns the page head. A positive refreshSeconds adds a meta refresh so
// the page keeps polling without JavaScript.
func htmlHead(title string, refreshSeconds int) string {
	refresh := ""
	if refreshSeconds > 0 {
		refresh = fmt.Sprintf(`<meta http-equiv="refresh" content="%d">`, refreshSeconds)
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
	%s
	<title>%s</title>
	%s
</head>`, refresh, escapeHTML(title), commonCSS())
}

func commonCSS() string {
	return `<style>
		body { font-family: system-ui, -apple-system, sans-serif; margin: 0; padding: 20px; background: #f5f5f5; color: #333; }
		.container { max-width: 900px; margin: 0 auto; }
		header { display: flex; align-items: center; justify-content: space-between; flex-wrap: wrap; gap: 12px; }
		.status { font-weight: 600; }
		.status.live { color: #28a745; }
		.status.offline { color: #dc3545; }
		.meta { color: #666; font-size: 0.9em; }
		button { padding: 6px 14px; border: 1px solid #ccc; border-radius: 4px; background: white; cursor: pointer; }
		.error { background: #fdecea; color: #a94442; padding: 10px 14px; border-radius: 4px; margin: 16px 0; }
		.empty { color: #666; font-style: italic; }
		ul.events { list-style: none; padding: 0; }
		ul.events li { background: white; border-left: 4px solid #0066cc; border-radius: 4px; padding: 12px 16px; margin: 8px 0; box-shadow: 0 1px 3px rgba(0,0,0,0.1); }
		ul.events li.merge { border-left-color: #6f42c1; }
		ul.events li.pull_request { border-left-color: #28a745; }
		.author { font-weight: 600; }
		.branch { font-family: ui-monospace, monospace; background: #eef; padding: 1px 4px; border-radius: 3px; }
		.when { color: #666; }
	</style>`
}

// escapeHTML escapes special HTML characters to prevent XSS.
func escapeHTML(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#39;",
	)
	return replacer.Replace(s)
}

func span(class, text string) string {
	return fmt.Sprintf(`<span class="%s">%s</span>`, class, escapeHTML(text))
}
