// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package schedule_test

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genos-dev/genos/internal/schedule"
	genoserr "github.com/genos-dev/genos/pkg/errors"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func shOptimizer(t *testing.T, script string, timeout time.Duration, maxOut int) *schedule.SubprocessOptimizer {
	t.Helper()
	requireShell(t)
	s, err := schedule.NewSubprocessOptimizer([]string{"sh", "-c", script}, timeout, maxOut)
	require.NoError(t, err)
	return s
}

var sampleCandidates = []schedule.Candidate{{Day: 1, Hour: 9, Platform: "instagram", Engagement: 0.5}}

func TestSubprocessOptimizer_Success(t *testing.T) {
	s := shOptimizer(t, `cat >/dev/null; printf '%s' '{"selected_slots":[{"day":1,"hour":9,"platform":"instagram","score":0.5}],"method":"qaoa","iterations":100,"energy":-1.5}'`, 5*time.Second, 0)

	out, err := s.TryOptimize(context.Background(), sampleCandidates, schedule.Constraints{MaxPostsPerDay: 3, MaxPostsPerPlatformDay: 1})
	require.NoError(t, err)
	assert.Equal(t, "qaoa", out.Method)
	assert.Equal(t, 100, out.Iterations)
	assert.InDelta(t, -1.5, out.Energy, 1e-9)
	require.Len(t, out.SelectedSlots, 1)
	assert.Equal(t, "instagram", out.SelectedSlots[0].Platform)
}

func TestSubprocessOptimizer_ReceivesInputOnStdin(t *testing.T) {
	// The script exits non-zero unless stdin carries the caps.
	s := shOptimizer(t, `grep -q '"max_posts_per_day":3' && printf '%s' '{"selected_slots":[],"method":"empty"}'`, 5*time.Second, 0)

	out, err := s.TryOptimize(context.Background(), sampleCandidates, schedule.Constraints{MaxPostsPerDay: 3, MaxPostsPerPlatformDay: 1})
	require.NoError(t, err)
	assert.Equal(t, "empty", out.Method)
	assert.Empty(t, out.SelectedSlots)
}

func TestSubprocessOptimizer_Failures(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		timeout time.Duration
		maxOut  int
	}{
		{name: "non-zero exit", script: `cat >/dev/null; echo boom >&2; exit 3`, timeout: 5 * time.Second},
		{name: "invalid json", script: `cat >/dev/null; echo not-json`, timeout: 5 * time.Second},
		{name: "timeout", script: `sleep 5`, timeout: 50 * time.Millisecond},
		{name: "output too large", script: `cat >/dev/null; printf '%s' '{"selected_slots":[],"method":"qaoa"}'`, timeout: 5 * time.Second, maxOut: 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := shOptimizer(t, tt.script, tt.timeout, tt.maxOut)
			_, err := s.TryOptimize(context.Background(), sampleCandidates, schedule.Constraints{})
			require.Error(t, err)
			assert.True(t, genoserr.HasCode(err, genoserr.CodeScheduleOptimizerUnavailable))
		})
	}
}

func TestSubprocessOptimizer_MissingExecutable(t *testing.T) {
	s, err := schedule.NewSubprocessOptimizer([]string{"/nonexistent/genos-qaoa"}, time.Second, 0)
	require.NoError(t, err)

	_, err = s.TryOptimize(context.Background(), sampleCandidates, schedule.Constraints{})
	require.Error(t, err)
	assert.True(t, genoserr.HasCode(err, genoserr.CodeScheduleOptimizerUnavailable))
}

func TestNewSubprocessOptimizer_RequiresCommand(t *testing.T) {
	_, err := schedule.NewSubprocessOptimizer(nil, 0, 0)
	require.Error(t, err)
	assert.True(t, genoserr.IsInvalidInput(err))
}

func TestOptimize_SubprocessFailureEndToEnd(t *testing.T) {
	q := shOptimizer(t, `exit 1`, 5*time.Second, 0)
	o := newOptimizer(t, &fakeAnalytics{rows: historyRows()}, q)

	res, err := o.Optimize(context.Background(), "brand-1", "org-a", nil)
	require.NoError(t, err)
	assert.Equal(t, schedule.MethodHeuristic, res.Method)
	assert.Len(t, res.OptimizedSlots, schedule.MaxSlots)
}
