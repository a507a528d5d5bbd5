// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

// Package schedule recommends posting slots from historical engagement.
// A quantum optimizer is tried first when configured; the classical
// ranking always stands behind it.
package schedule

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/genos-dev/genos/internal/store"
	genoserr "github.com/genos-dev/genos/pkg/errors"
	"github.com/genos-dev/genos/pkg/types"
)

// Methods reported in a Result.
const (
	MethodHeuristic = "heuristic"
	MethodQAOA      = "qaoa"
)

// MaxSlots is the size of a classical schedule: two posts a day for a week.
const MaxSlots = 14

// PeakHours are the candidate posting hours scored for every history row.
var PeakHours = []int{9, 10, 12, 14, 17, 19, 21}

// Default slot caps handed to the quantum optimizer.
const (
	DefaultMaxPostsPerDay         = 3
	DefaultMaxPostsPerPlatformDay = 1
)

var (
	defaultPlatforms = []types.Platform{types.PlatformInstagram, types.PlatformLinkedIn}
	defaultHours     = [2]int{10, 18}
)

// Slot is one recommended posting slot. DayOfWeek counts from Sunday = 0.
type Slot struct {
	DayOfWeek int     `json:"dayOfWeek"`
	Hour      int     `json:"hour"`
	Platform  string  `json:"platform"`
	Score     float64 `json:"score"`
}

// Result is a schedule recommendation. Energy is set only when the quantum
// optimizer produced the slots.
type Result struct {
	BrandID        string    `json:"brandId"`
	OptimizedSlots []Slot    `json:"optimizedSlots"`
	GeneratedAt    time.Time `json:"generatedAt"`
	Method         string    `json:"method"`
	Energy         *float64  `json:"energy,omitempty"`
}

// DateRange bounds the history read. Both ends are inclusive dates.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Config tunes an Optimizer.
type Config struct {
	Analytics store.AnalyticsStore
	// Quantum is optional; nil always uses the classical ranking.
	Quantum     QuantumOptimizer
	Constraints Constraints
	// HistoryLimit caps the rows read; zero selects store.DefaultAnalyticsLimit.
	HistoryLimit int
}

// Optimizer builds schedules. It is safe for concurrent use.
type Optimizer struct {
	analytics    store.AnalyticsStore
	quantum      QuantumOptimizer
	constraints  Constraints
	historyLimit int
	nowFunc      func() time.Time
}

// New returns an Optimizer.
func New(cfg Config) (*Optimizer, error) {
	if cfg.Analytics == nil {
		return nil, genoserr.New(genoserr.CodeServerConfigInvalid, "schedule optimizer requires an analytics store")
	}
	cons := cfg.Constraints
	if cons.MaxPostsPerDay <= 0 {
		cons.MaxPostsPerDay = DefaultMaxPostsPerDay
	}
	if cons.MaxPostsPerPlatformDay <= 0 {
		cons.MaxPostsPerPlatformDay = DefaultMaxPostsPerPlatformDay
	}
	return &Optimizer{
		analytics:    cfg.Analytics,
		quantum:      cfg.Quantum,
		constraints:  cons,
		historyLimit: cfg.HistoryLimit,
		nowFunc:      time.Now,
	}, nil
}

// SetNowFunc overrides the time source (for testing).
func (o *Optimizer) SetNowFunc(fn func() time.Time) { o.nowFunc = fn }

// Optimize recommends slots for brandID from orgID's history. It always
// produces a schedule: an unreadable history yields the default slots and
// optimizer problems fall back to the classical ranking.
func (o *Optimizer) Optimize(ctx context.Context, brandID, orgID string, dr *DateRange) (*Result, error) {
	res := &Result{BrandID: brandID, GeneratedAt: o.nowFunc().UTC()}

	q := store.AnalyticsQuery{Limit: o.historyLimit}
	if dr != nil {
		q.From, q.To = dr.From, dr.To
	}
	rows, err := o.analytics.DailyAnalytics(ctx, orgID, q)
	if err != nil {
		slog.Warn("engagement history unavailable, using default slots",
			"organization_id", orgID, "brand_id", brandID, "error", err)
		res.OptimizedSlots = DefaultSlots()
		res.Method = MethodHeuristic
		return res, nil
	}

	candidates := BuildHeatmap(rows)
	if len(candidates) == 0 {
		res.OptimizedSlots = DefaultSlots()
		res.Method = MethodHeuristic
		return res, nil
	}

	if out := o.tryQuantum(ctx, candidates); out != nil {
		res.OptimizedSlots = out.slots()
		res.Method = out.Method
		energy := out.Energy
		res.Energy = &energy
		return res, nil
	}

	res.OptimizedSlots = RankClassical(candidates)
	res.Method = MethodHeuristic
	return res, nil
}

func (o *Optimizer) tryQuantum(ctx context.Context, candidates []Candidate) *Output {
	if o.quantum == nil {
		return nil
	}
	out, err := o.quantum.TryOptimize(ctx, candidates, o.constraints)
	if err != nil {
		slog.Warn("quantum optimizer unavailable, using heuristic", "candidates", len(candidates), "error", err)
		return nil
	}
	if out == nil || len(out.SelectedSlots) == 0 {
		slog.Debug("quantum optimizer selected no slots, using heuristic")
		return nil
	}
	return out
}

// BuildHeatmap averages engagement per (platform, weekday, peak hour).
// Candidates come back in first-seen key order.
func BuildHeatmap(rows []*store.AnalyticsDaily) []Candidate {
	type key struct {
		platform string
		day      int
		hour     int
	}
	type accum struct {
		total float64
		count int
	}

	var order []key
	heat := make(map[key]*accum)
	for _, row := range rows {
		day := int(row.Date.UTC().Weekday())
		for _, hour := range PeakHours {
			k := key{platform: row.Platform, day: day, hour: hour}
			a, ok := heat[k]
			if !ok {
				a = &accum{}
				heat[k] = a
				order = append(order, k)
			}
			a.total += row.EngagementRate
			a.count++
		}
	}

	out := make([]Candidate, 0, len(order))
	for _, k := range order {
		a := heat[k]
		out = append(out, Candidate{
			Day:        k.day,
			Hour:       k.hour,
			Platform:   k.platform,
			Engagement: a.total / float64(a.count),
		})
	}
	return out
}

// RankClassical sorts candidates by rounded engagement, highest first,
// and keeps the top MaxSlots. Ties keep heatmap order.
func RankClassical(candidates []Candidate) []Slot {
	slots := make([]Slot, len(candidates))
	for i, c := range candidates {
		slots[i] = Slot{
			DayOfWeek: c.Day,
			Hour:      c.Hour,
			Platform:  c.Platform,
			Score:     roundScore(c.Engagement),
		}
	}
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].Score > slots[j].Score })
	if len(slots) > MaxSlots {
		slots = slots[:MaxSlots]
	}
	return slots
}

// DefaultSlots is the schedule for an organization with no history: every
// weekday on each default platform, alternating 10h and 18h.
func DefaultSlots() []Slot {
	slots := make([]Slot, 0, 7*len(defaultPlatforms))
	for day := range 7 {
		for _, p := range defaultPlatforms {
			slots = append(slots, Slot{DayOfWeek: day, Hour: defaultHours[day%2], Platform: string(p)})
		}
	}
	return slots
}

func roundScore(v float64) float64 {
	return math.Round(v*1000) / 1000
}
