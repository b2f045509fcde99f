package github

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Record actions.
const (
	ActionPush        = "push"
	ActionMerge       = "merge"
	ActionPullRequest = "pull_request"
)

// UnknownAuthor is used when the payload carries no actor.
const UnknownAuthor = "Unknown"

// ErrMalformedPayload is returned when the body is not a JSON object of the expected shape.
var ErrMalformedPayload = errors.New("malformed payload")

// Kind classifies the outcome of Normalize.
type Kind int

const (
	// KindRecord means Result.Record should be persisted.
	KindRecord Kind = iota
	// KindAcknowledged is a ping: answer success, store nothing.
	KindAcknowledged
	// KindUnsupported is any event type we do not handle.
	KindUnsupported
)

// Record is the flat shape of a push, merge or pull request event.
// FromBranch is nil for pushes.
type Record struct {
	Action     string
	Author     string
	ToBranch   string
	FromBranch *string
	Timestamp  string
}

// Result is what Normalize returns.
type Result struct {
	Kind   Kind
	Event  string
	Record *Record
}

// Normalize maps a webhook event type and raw body to a Result.
// ping is checked before anything else and the body is only decoded for push and pull_request.
func Normalize(eventType string, body []byte) (Result, error) {
	switch eventType {
	case EventPing:
		return Result{Kind: KindAcknowledged, Event: eventType}, nil
	case EventPush:
		var p PushPayload
		if err := decode(body, &p); err != nil {
			return Result{Event: eventType}, err
		}
		return Result{Kind: KindRecord, Event: eventType, Record: normalizePush(&p)}, nil
	case EventPullRequest:
		var p PullRequestPayload
		if err := decode(body, &p); err != nil {
			return Result{Event: eventType}, err
		}
		return Result{Kind: KindRecord, Event: eventType, Record: normalizePullRequest(&p)}, nil
	default:
		return Result{Kind: KindUnsupported, Event: eventType}, nil
	}
}

// decode requires a JSON object: null, arrays and scalars are rejected.
func decode(body []byte, v any) error {
	if trimmed := bytes.TrimSpace(body); len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("%w: body is not a JSON object", ErrMalformedPayload)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

func normalizePush(p *PushPayload) *Record {
	return &Record{
		Action:    ActionPush,
		Author:    p.Pusher.name().Or(UnknownAuthor),
		ToBranch:  lastSegment(p.Ref.Or("")),
		Timestamp: p.HeadCommit.timestamp().Or(""),
	}
}

func normalizePullRequest(p *PullRequestPayload) *Record {
	pr := p.PullRequest
	if pr == nil {
		pr = &PullRequest{}
	}
	from := pr.Head.ref().Or("")
	rec := &Record{
		Action:     ActionPullRequest,
		Author:     pr.User.login().Or(UnknownAuthor),
		FromBranch: &from,
		ToBranch:   pr.Base.ref().Or(""),
		Timestamp:  pr.CreatedAt.Or(""),
	}
	if p.Action.Or("") == "closed" && bool(pr.Merged) {
		rec.Action = ActionMerge
		rec.Timestamp = pr.MergedAt.Or("")
	}
	return rec
}

// lastSegment returns what follows the last "/" (refs/heads/main -> main).
func lastSegment(ref string) string {
	return ref[strings.LastIndex(ref, "/")+1:]
}

// NeedsPayload reports whether Normalize reads the body for eventType.
func NeedsPayload(eventType string) bool {
	return eventType == EventPush || eventType == EventPullRequest
}
