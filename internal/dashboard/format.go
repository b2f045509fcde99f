package dashboard

import (
	"fmt"
	"time"

	"github.com/webhook-events/internal/github"
	"github.com/webhook-events/internal/store"
)

// FormatTime renders t in UTC as "1st January 2024 - 9:05 AM UTC".
func FormatTime(t time.Time) string {
	t = t.UTC()
	hour := t.Hour() % 12
	if hour == 0 {
		hour = 12
	}
	meridiem := "AM"
	if t.Hour() >= 12 {
		meridiem = "PM"
	}
	return fmt.Sprintf("%d%s %s %d - %d:%02d %s UTC",
		t.Day(), daySuffix(t.Day()), t.Month(), t.Year(), hour, t.Minute(), meridiem)
}

// FormatTimestamp formats a stored RFC 3339 timestamp. Anything else, including "",
// comes back unchanged.
func FormatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return FormatTime(t)
}

func daySuffix(day int) string {
	if day >= 4 && day <= 20 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}

// Message is the one-line description of a stored event.
type Message struct {
	Author     string
	Verb       string // "pushed to", "submitted a pull request from", "merged branch"
	FromBranch string
	ToBranch   string
	When       string
	Known      bool
}

// String renders the message as plain text.
func (m Message) String() string {
	if !m.Known {
		return "Unknown event"
	}
	if m.Verb == verbPush {
		return fmt.Sprintf("%s %s %s on %s", m.Author, m.Verb, m.ToBranch, m.When)
	}
	return fmt.Sprintf("%s %s %s to %s on %s", m.Author, m.Verb, m.FromBranch, m.ToBranch, m.When)
}

const (
	verbPush        = "pushed to"
	verbPullRequest = "submitted a pull request from"
	verbMerge       = "merged branch"
)

// EventMessage describes ev the way the tracker page lists it.
func EventMessage(ev store.StoredEvent) Message {
	m := Message{
		Author:   ev.Author,
		ToBranch: ev.ToBranch,
		When:     FormatTimestamp(ev.Timestamp),
		Known:    true,
	}
	if ev.FromBranch != nil {
		m.FromBranch = *ev.FromBranch
	}
	switch ev.Action {
	case github.ActionPush:
		m.Verb = verbPush
		m.FromBranch = ""
	case github.ActionPullRequest:
		m.Verb = verbPullRequest
	case github.ActionMerge:
		m.Verb = verbMerge
	default:
		m.Known = false
	}
	return m
}
