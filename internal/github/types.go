package github

import (
	"bytes"
	"encoding/json"
)

// Event types carried in the X-GitHub-Event header.
const (
	EventPing        = "ping"
	EventPush        = "push"
	EventPullRequest = "pull_request"
)

// Text is a JSON string leaf. Absent, null, or non-string values leave it unset.
type Text struct {
	Value string
	Set   bool
}

// UnmarshalJSON never fails: anything other than a JSON string is ignored.
func (t *Text) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		t.Value, t.Set = s, true
	}
	return nil
}

// Or returns the value, or def when unset.
func (t Text) Or(def string) string {
	if !t.Set {
		return def
	}
	return t.Value
}

// Flag is a JSON boolean leaf that is true only for a literal true.
type Flag bool

// UnmarshalJSON never fails.
func (f *Flag) UnmarshalJSON(b []byte) error {
	*f = Flag(bytes.Equal(b, []byte("true")))
	return nil
}

// PushPayload is the subset of the push webhook we read.
type PushPayload struct {
	Ref        Text        `json:"ref"`
	Pusher     *Pusher     `json:"pusher"`
	HeadCommit *HeadCommit `json:"head_commit"`
}

// Pusher holds the pusher name.
type Pusher struct {
	Name Text `json:"name"`
}

// HeadCommit holds the tip commit timestamp.
type HeadCommit struct {
	Timestamp Text `json:"timestamp"`
}

// PullRequestPayload is the subset of the pull_request webhook we read.
type PullRequestPayload struct {
	Action      Text         `json:"action"`
	PullRequest *PullRequest `json:"pull_request"`
}

// PullRequest holds the fields of payload.pull_request.
type PullRequest struct {
	Merged    Flag    `json:"merged"`
	User      *User   `json:"user"`
	Head      *Branch `json:"head"`
	Base      *Branch `json:"base"`
	MergedAt  Text    `json:"merged_at"`
	CreatedAt Text    `json:"created_at"`
}

// User holds a login.
type User struct {
	Login Text `json:"login"`
}

// Branch is a head or base ref.
type Branch struct {
	Ref Text `json:"ref"`
}

func (p *Pusher) name() Text {
	if p == nil {
		return Text{}
	}
	return p.Name
}

func (c *HeadCommit) timestamp() Text {
	if c == nil {
		return Text{}
	}
	return c.Timestamp
}

func (u *User) login() Text {
	if u == nil {
		return Text{}
	}
	return u.Login
}

func (b *Branch) ref() Text {
	if b == nil {
		return Text{}
	}
	return b.Ref
}
