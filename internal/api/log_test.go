package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatLogLine(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "SortsAndDropsLongParams",
			input: `time=2026-03-18T06:50:46.074+01:00 level=INFO msg="Session: map ready" session=ab12 countries=176 took=412ms source=/src/wandermap/pkg/session/session.go:153`,
			want:  "06:50:46 Session: map ready (countries=176, session=ab12, took=412ms)",
		},
		{
			name:  "NoMessage",
			input: "plain text line",
			want:  "plain text line",
		},
		{
			name:  "Empty",
			input: "",
			want:  "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatLogLine(tt.input))
		})
	}
}
