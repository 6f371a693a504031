// Package report accumulates per-tick scheduler decisions into
// cumulative run statistics. It is a pure observability layer: it
// consumes sched.Decision values already produced by the tick engine
// and never influences a scheduling decision.
package report

import (
	"github.com/Navidtor/vsched/pkg/sched"
	"github.com/Navidtor/vsched/pkg/system/util"
)

// CgroupPressure is one cgroup's quota utilization for the tick just
// applied: UsedUs/QuotaUs, or 0 for an unlimited cgroup (there is
// nothing to smooth).
type CgroupPressure struct {
	ID       string
	Fraction float64
}

// Result is the instantaneous snapshot produced by one Apply call.
type Result struct {
	Utilization float64 // fraction of CPU-tick slots non-idle this tick
	Preemptions int
	Migrations  int
}

// Accumulator folds a run of decision records into running totals and
// averages, the same shape as the teacher's power/energy accumulator
// but over scheduling metrics: utilization instead of watts,
// preemptions/migrations instead of joules.
type Accumulator struct {
	cpuCount int

	ticks           int
	sumUtilization  float64
	totalPreemption int
	totalMigration  int

	pressureEMA map[string]*util.EMA
	emaAlpha    float64
}

// New creates an accumulator for a scheduler configured with cpuCount
// CPUs. emaAlpha smooths the per-cgroup quota-pressure signal reported
// alongside each tick (1 disables smoothing: each value replaces the
// last; 0 keeps the first value reported).
func New(cpuCount int, emaAlpha float64) *Accumulator {
	return &Accumulator{
		cpuCount:    cpuCount,
		pressureEMA: make(map[string]*util.EMA),
		emaAlpha:    emaAlpha,
	}
}

// Apply folds one tick's decision (and, optionally, the quota
// pressure of every quota-bearing cgroup observed that tick) into the
// running totals, and returns the instantaneous snapshot for display.
func (a *Accumulator) Apply(dec sched.Decision, pressures []CgroupPressure) Result {
	nonIdle := 0
	for _, id := range dec.Schedule {
		if id != "idle" {
			nonIdle++
		}
	}
	u := util.SafeDiv(float64(nonIdle), float64(a.cpuCount))

	a.ticks++
	a.sumUtilization += u
	a.totalPreemption += dec.Preemptions
	a.totalMigration += dec.Migrations

	for _, p := range pressures {
		ema, ok := a.pressureEMA[p.ID]
		if !ok {
			ema = util.NewEMA(a.emaAlpha)
			a.pressureEMA[p.ID] = ema
		}
		ema.Next(p.Fraction)
	}

	return Result{Utilization: u, Preemptions: dec.Preemptions, Migrations: dec.Migrations}
}

// Totals is the cumulative view over every tick folded in so far.
type Totals struct {
	Ticks              int
	AverageUtilization float64
	TotalPreemptions   int
	TotalMigrations    int
}

// Averages returns the cumulative totals and average utilization over
// every tick applied so far.
func (a *Accumulator) Averages() Totals {
	return Totals{
		Ticks:              a.ticks,
		AverageUtilization: util.SafeDiv(a.sumUtilization, float64(a.ticks)),
		TotalPreemptions:   a.totalPreemption,
		TotalMigrations:    a.totalMigration,
	}
}

// CgroupPressure returns the smoothed quota-pressure value for a
// cgroup, or 0 if it has never been reported to Apply.
func (a *Accumulator) CgroupPressure(cgroupID string) float64 {
	ema, ok := a.pressureEMA[cgroupID]
	if !ok {
		return 0
	}
	return ema.Value()
}
