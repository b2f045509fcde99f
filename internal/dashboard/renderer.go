package dashboard

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/webhook-events/internal/store"
)

// Fixed page texts.
const (
	PageTitle    = "GitHub Webhook Live Tracker"
	OfflineError = "Could not fetch events. Backend may be offline."
	EmptyState   = "No events found."
)

// TrackerPage is everything the tracker page shows.
type TrackerPage struct {
	Events         []store.StoredEvent
	Live           bool
	LastUpdated    time.Time
	RefreshSeconds int
}

// Renderer handles rendering responses to HTTP clients.
type Renderer interface {
	RenderTracker(w io.Writer, page TrackerPage) error
}

// HTMLRenderer implements Renderer for HTML responses.
type HTMLRenderer struct{}

// NewHTMLRenderer creates a new HTML renderer.
func NewHTMLRenderer() *HTMLRenderer {
	return &HTMLRenderer{}
}

// RenderTracker writes the full tracker page.
func (r *HTMLRenderer) RenderTracker(w io.Writer, page TrackerPage) error {
	var b strings.Builder
	b.WriteString(htmlHead(PageTitle, page.RefreshSeconds))
	b.WriteString("\n<body>\n<div class=\"container\">\n<header>\n")
	fmt.Fprintf(&b, "\t<h1>%s</h1>\n", escapeHTML(PageTitle))
	if page.Live {
		b.WriteString("\t<span class=\"status live\">&#9679; Live</span>\n")
	} else {
		b.WriteString("\t<span class=\"status offline\">&#9679; Offline</span>\n")
	}
	b.WriteString("\t<button type=\"button\" onclick=\"window.location.reload()\">Refresh</button>\n</header>\n")
	fmt.Fprintf(&b, "<p class=\"meta\">Last updated: %s</p>\n", escapeHTML(FormatTime(page.LastUpdated)))

	switch {
	case !page.Live:
		fmt.Fprintf(&b, "<div class=\"error\">%s</div>\n", escapeHTML(OfflineError))
	case len(page.Events) == 0:
		fmt.Fprintf(&b, "<p class=\"empty\">%s</p>\n", escapeHTML(EmptyState))
	default:
		b.WriteString("<ul class=\"events\">\n")
		for _, ev := range page.Events {
			fmt.Fprintf(&b, "\t<li class=\"%s\">%s</li>\n", escapeHTML(ev.Action), eventHTML(EventMessage(ev)))
		}
		b.WriteString("</ul>\n")
	}
	b.WriteString("</div>\n</body>\n</html>\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// eventHTML is Message.String with the author, branches and time wrapped in spans.
func eventHTML(m Message) string {
	if !m.Known {
		return escapeHTML(m.String())
	}
	if m.Verb == verbPush {
		return fmt.Sprintf("%s %s %s on %s",
			span("author", m.Author), escapeHTML(m.Verb), span("branch", m.ToBranch), span("when", m.When))
	}
	return fmt.Sprintf("%s %s %s to %s on %s",
		span("author", m.Author), escapeHTML(m.Verb), span("branch", m.FromBranch), span("branch", m.ToBranch), span("when", m.When))
}
