package probe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	probes := []Probe{
		{Name: "Database", Check: func(ctx context.Context) error { return nil }, Critical: true},
		{Name: "Geometry", Check: func(ctx context.Context) error { return errors.New("offline") }},
		{
			Name:    "Slow",
			Timeout: 10 * time.Millisecond,
			Check: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		},
	}

	results := Run(context.Background(), probes)
	require.Len(t, results, 3)
	assert.True(t, results[0].Passed())
	assert.EqualError(t, results[1].Error, "offline")
	assert.ErrorIs(t, results[2].Error, context.DeadlineExceeded)
}

func TestAnalyzeResults(t *testing.T) {
	tests := []struct {
		name    string
		results []Result
		wantErr bool
	}{
		{
			name:    "AllPass",
			results: []Result{{Probe: Probe{Name: "Database", Critical: true}}},
		},
		{
			name:    "NonCriticalFailure",
			results: []Result{{Probe: Probe{Name: "Geometry"}, Error: errors.New("offline")}},
		},
		{
			name: "CriticalFailure",
			results: []Result{
				{Probe: Probe{Name: "Database", Critical: true}, Error: errors.New("locked")},
				{Probe: Probe{Name: "Geometry"}},
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := AnalyzeResults(tt.results)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "Database: locked")
				return
			}
			assert.NoError(t, err)
		})
	}
}
