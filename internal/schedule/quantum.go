// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package schedule

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"time"

	genoserr "github.com/genos-dev/genos/pkg/errors"
)

// Subprocess defaults.
const (
	DefaultTimeout        = 60 * time.Second
	DefaultMaxOutputBytes = 1 << 20
	maxStderrBytes        = 4 << 10
	waitDelay             = 2 * time.Second
)

// Candidate is one heatmap cell offered to the optimizer.
type Candidate struct {
	Day        int     `json:"day"`
	Hour       int     `json:"hour"`
	Platform   string  `json:"platform"`
	Engagement float64 `json:"engagement"`
}

// Constraints caps how many slots the optimizer may select.
type Constraints struct {
	MaxPostsPerDay         int `json:"max_posts_per_day"`
	MaxPostsPerPlatformDay int `json:"max_posts_per_platform_day"`
}

// OutputSlot is a slot selected by the optimizer.
type OutputSlot struct {
	Day      int     `json:"day"`
	Hour     int     `json:"hour"`
	Platform string  `json:"platform"`
	Score    float64 `json:"score"`
}

// Output is the optimizer's answer, adopted verbatim when it selects at
// least one slot.
type Output struct {
	SelectedSlots []OutputSlot `json:"selected_slots"`
	Method        string       `json:"method"`
	Iterations    int          `json:"iterations"`
	Energy        float64      `json:"energy"`
}

func (o *Output) slots() []Slot {
	out := make([]Slot, len(o.SelectedSlots))
	for i, s := range o.SelectedSlots {
		out[i] = Slot{DayOfWeek: s.Day, Hour: s.Hour, Platform: s.Platform, Score: s.Score}
	}
	return out
}

// QuantumOptimizer selects slots from candidates. Any error means the
// optimizer is unavailable for this call.
type QuantumOptimizer interface {
	TryOptimize(ctx context.Context, candidates []Candidate, cons Constraints) (*Output, error)
}

type optimizerInput struct {
	Slots []Candidate `json:"slots"`
	Constraints
}

// SubprocessOptimizer runs an external executable that reads the candidate
// document on stdin and writes an Output document on stdout.
type SubprocessOptimizer struct {
	argv           []string
	timeout        time.Duration
	maxOutputBytes int
}

// NewSubprocessOptimizer returns an optimizer running argv. Zero timeout or
// output cap select the defaults.
func NewSubprocessOptimizer(argv []string, timeout time.Duration, maxOutputBytes int) (*SubprocessOptimizer, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return nil, genoserr.New(genoserr.CodeConfigValidateInvalidValue, "schedule.command must name an executable")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxOutputBytes <= 0 {
		maxOutputBytes = DefaultMaxOutputBytes
	}
	return &SubprocessOptimizer{
		argv:           append([]string(nil), argv...),
		timeout:        timeout,
		maxOutputBytes: maxOutputBytes,
	}, nil
}

// Command returns the configured argv.
func (s *SubprocessOptimizer) Command() []string { return append([]string(nil), s.argv...) }

func (s *SubprocessOptimizer) TryOptimize(ctx context.Context, candidates []Candidate, cons Constraints) (*Output, error) {
	input, err := json.Marshal(optimizerInput{Slots: candidates, Constraints: cons})
	if err != nil {
		return nil, unavailable(err, "encoding optimizer input")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	stdout := &cappedBuffer{max: s.maxOutputBytes}
	stderr := &cappedBuffer{max: maxStderrBytes}

	cmd := exec.CommandContext(ctx, s.argv[0], s.argv[1:]...)
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, unavailable(ctx.Err(), "optimizer timed out after %s", s.timeout)
		}
		return nil, unavailable(err, "running optimizer: %s", strings.TrimSpace(stderr.String()))
	}
	if stdout.truncated {
		return nil, unavailable(nil, "optimizer output exceeds %d bytes", s.maxOutputBytes)
	}

	var out Output
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, unavailable(err, "decoding optimizer output")
	}
	return &out, nil
}

func unavailable(err error, format string, args ...any) error {
	if err == nil {
		return genoserr.Errorf(genoserr.CodeScheduleOptimizerUnavailable, format, args...)
	}
	return genoserr.Wrapf(err, genoserr.CodeScheduleOptimizerUnavailable, format, args...)
}

// cappedBuffer keeps the first max bytes and discards the rest, so a
// chatty child never blocks on a full pipe.
type cappedBuffer struct {
	bytes.Buffer
	max       int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.max - b.Len()
	if room <= 0 {
		b.truncated = b.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > room {
		b.truncated = true
		b.Buffer.Write(p[:room])
		return len(p), nil
	}
	return b.Buffer.Write(p)
}
