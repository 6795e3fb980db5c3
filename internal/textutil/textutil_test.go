package textutil_test

import (
	"testing"

	"scribe/internal/textutil"
)

func TestTitleize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"/inbox/meeting_notes-2024.mp3", "Meeting Notes 2024"},
		{"https://example.com/media/team.standup.ogg", "Team Standup"},
		{"plain", "Plain"},
		{"", "Untitled"},
		{"---.mp3", "Untitled"},
	}
	for _, tc := range cases {
		if got := textutil.Titleize(tc.in); got != tc.want {
			t.Errorf("Titleize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
