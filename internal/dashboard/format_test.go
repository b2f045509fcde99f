package dashboard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/webhook-events/internal/store"
)

func TestDaySuffix(t *testing.T) {
	tests := []struct {
		day  int
		want string
	}{
		{1, "st"}, {2, "nd"}, {3, "rd"}, {4, "th"},
		{11, "th"}, {12, "th"}, {13, "th"}, {20, "th"},
		{21, "st"}, {22, "nd"}, {23, "rd"}, {24, "th"},
		{30, "th"}, {31, "st"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, daySuffix(tt.day), "day %d", tt.day)
	}
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"midnight", "2024-01-01T00:00:00Z", "1st January 2024 - 12:00 AM UTC"},
		{"noon", "2024-03-02T12:00:00Z", "2nd March 2024 - 12:00 PM UTC"},
		{"afternoon padded minutes", "2024-03-03T13:05:00Z", "3rd March 2024 - 1:05 PM UTC"},
		{"eleventh", "2024-07-11T09:30:00Z", "11th July 2024 - 9:30 AM UTC"},
		{"twelfth", "2024-07-12T23:59:59Z", "12th July 2024 - 11:59 PM UTC"},
		{"thirteenth", "2024-07-13T10:00:00Z", "13th July 2024 - 10:00 AM UTC"},
		{"twenty second", "2024-07-22T10:00:00Z", "22nd July 2024 - 10:00 AM UTC"},
		{"offset converted to UTC", "2024-05-31T23:30:00-02:00", "1st June 2024 - 1:30 AM UTC"},
		{"empty", "", ""},
		{"not a date", "yesterday", "yesterday"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatTimestamp(tt.in))
		})
	}
}

func TestEventMessage(t *testing.T) {
	feature := "feature"
	const ts = "2024-02-02T15:04:00Z"
	const when = "2nd February 2024 - 3:04 PM UTC"

	tests := []struct {
		name string
		ev   store.EventRecord
		want string
	}{
		{"push", store.EventRecord{Action: "push", Author: "alice", ToBranch: "main", Timestamp: ts},
			"alice pushed to main on " + when},
		{"push ignores from", store.EventRecord{Action: "push", Author: "alice", ToBranch: "main", FromBranch: &feature, Timestamp: ts},
			"alice pushed to main on " + when},
		{"pull request", store.EventRecord{Action: "pull_request", Author: "bob", FromBranch: &feature, ToBranch: "main", Timestamp: ts},
			"bob submitted a pull request from feature to main on " + when},
		{"merge", store.EventRecord{Action: "merge", Author: "carol", FromBranch: &feature, ToBranch: "main", Timestamp: ts},
			"carol merged branch feature to main on " + when},
		{"unknown action", store.EventRecord{Action: "release", Author: "dave"}, "Unknown event"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EventMessage(store.StoredEvent{ID: "1", EventRecord: tt.ev}).String())
		})
	}
}
