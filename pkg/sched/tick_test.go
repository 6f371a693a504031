package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Navidtor/vsched/pkg/system/cgroup"
)

func intPtr(v int) *int                  { return &v }
func int64Ptr(v int64) *int64            { return &v }
func maskPtr(m cgroup.Mask) *cgroup.Mask { return &m }

func mustMask(t *testing.T, s string) cgroup.Mask {
	t.Helper()
	m, err := cgroup.ParseMask(s)
	require.NoError(t, err)
	return m
}

func create(id string) Event { return Event{Action: ActionTaskCreate, TaskID: id} }

// S1 — Basic fairness (N=2, q=1).
func TestScenario_S1_BasicFairness(t *testing.T) {
	s, err := New(2, 1)
	require.NoError(t, err)

	dec, errs := s.Tick(0, []Event{create("T1"), create("T2")})
	for _, e := range errs {
		require.NoError(t, e)
	}
	assert.ElementsMatch(t, []string{"T1", "T2"}, dec.Schedule)
	assert.NotContains(t, dec.Schedule, idleSlot)
}

// S2 — Block/unblock (N=1, q=1).
func TestScenario_S2_BlockUnblock(t *testing.T) {
	s, err := New(1, 1)
	require.NoError(t, err)

	dec, errs := s.Tick(0, []Event{
		create("T1"),
		{Action: ActionTaskBlock, TaskID: "T1"},
	})
	for _, e := range errs {
		require.NoError(t, e)
	}
	assert.Equal(t, []string{idleSlot}, dec.Schedule)
	assert.Equal(t, []string{"T1"}, dec.BlockedTasks)

	dec, errs = s.Tick(1, []Event{{Action: ActionTaskUnblock, TaskID: "T1"}})
	for _, e := range errs {
		require.NoError(t, e)
	}
	assert.Equal(t, []string{"T1"}, dec.Schedule)
	assert.Empty(t, dec.BlockedTasks)
}

// S3 — Affinity restriction (N=2, q=1).
func TestScenario_S3_AffinityRestriction(t *testing.T) {
	s, err := New(2, 1)
	require.NoError(t, err)

	cpu0 := mustMask(t, "0")
	dec, errs := s.Tick(0, []Event{
		create("T1"),
		{Action: ActionTaskSetAffin, TaskID: "T1", Mask: maskPtr(cpu0)},
		create("T2"),
	})
	for _, e := range errs {
		require.NoError(t, e)
	}
	assert.Equal(t, "T1", dec.Schedule[0])
	assert.Equal(t, "T2", dec.Schedule[1])
}

// S4 — Quota throttling (N=1, q=50).
func TestScenario_S4_QuotaThrottling(t *testing.T) {
	s, err := New(1, 50)
	require.NoError(t, err)

	cpu0 := mustMask(t, "0")
	dec, errs := s.Tick(0, []Event{
		{Action: ActionCgroupCreate, CgroupID: "L", Shares: int64Ptr(1024), QuotaUs: NewQuota(50000), PeriodUs: int64Ptr(100000), Mask: maskPtr(cpu0)},
		{Action: ActionTaskCreate, TaskID: "T", CgroupID: "L"},
	})
	for _, e := range errs {
		require.NoError(t, e)
	}
	assert.Equal(t, "T", dec.Schedule[0])

	dec, _ = s.tickNoEvents(t, 1)
	assert.Equal(t, idleSlot, dec.Schedule[0])

	dec, _ = s.tickNoEvents(t, 2)
	assert.Equal(t, "T", dec.Schedule[0])
}

// S5 — Multi-CPU quota atomicity (N=2, q=50).
func TestScenario_S5_MultiCPUQuotaAtomicity(t *testing.T) {
	s, err := New(2, 50)
	require.NoError(t, err)

	mask01 := mustMask(t, "0,1")
	dec, errs := s.Tick(0, []Event{
		{Action: ActionCgroupCreate, CgroupID: "M", QuotaUs: NewQuota(50000), PeriodUs: int64Ptr(100000), Mask: maskPtr(mask01)},
		{Action: ActionTaskCreate, TaskID: "A", CgroupID: "M"},
		{Action: ActionTaskCreate, TaskID: "B", CgroupID: "M"},
	})
	for _, e := range errs {
		require.NoError(t, e)
	}

	idleCount, memberCount := 0, 0
	for _, id := range dec.Schedule {
		if id == idleSlot {
			idleCount++
		} else {
			memberCount++
		}
	}
	assert.Equal(t, 1, idleCount)
	assert.Equal(t, 1, memberCount)
}

// S6 — Yield (N=1).
func TestScenario_S6_Yield(t *testing.T) {
	s, err := New(1, 1)
	require.NoError(t, err)

	dec, errs := s.Tick(0, []Event{create("T1"), create("T2")})
	for _, e := range errs {
		require.NoError(t, e)
	}
	firstWinner := dec.Schedule[0]
	require.Contains(t, []string{"T1", "T2"}, firstWinner)

	dec, errs = s.Tick(1, []Event{{Action: ActionTaskYield, TaskID: firstWinner}})
	for _, e := range errs {
		require.NoError(t, e)
	}
	assert.NotEqual(t, firstWinner, dec.Schedule[0])
}

// S7 — Shares proportionality (N=1, >= 40 ticks).
func TestScenario_S7_SharesProportionality(t *testing.T) {
	s, err := New(1, 1)
	require.NoError(t, err)

	_, errs := s.Tick(0, []Event{
		{Action: ActionCgroupCreate, CgroupID: "H", Shares: int64Ptr(4096)},
		{Action: ActionCgroupCreate, CgroupID: "L", Shares: int64Ptr(128)},
		{Action: ActionTaskCreate, TaskID: "hi", CgroupID: "H"},
		{Action: ActionTaskCreate, TaskID: "lo", CgroupID: "L"},
	})
	for _, e := range errs {
		require.NoError(t, e)
	}

	hiCount, loCount := 0, 0
	for vt := uint64(1); vt <= 40; vt++ {
		dec, _ := s.Tick(vt, nil)
		switch dec.Schedule[0] {
		case "hi":
			hiCount++
		case "lo":
			loCount++
		}
	}
	assert.Greater(t, hiCount, loCount)
}

// S8 — Burst vruntime freeze (N=1).
func TestScenario_S8_BurstVruntimeFreeze(t *testing.T) {
	s, err := New(1, 1)
	require.NoError(t, err)

	_, errs := s.Tick(0, []Event{create("B1")})
	for _, e := range errs {
		require.NoError(t, e)
	}
	s.Tick(1, nil)
	task, ok := s.Task("B1")
	require.True(t, ok)
	v := task.Vruntime

	_, errs = s.Tick(2, []Event{{Action: ActionCpuBurst, TaskID: "B1", Duration: 2}})
	for _, e := range errs {
		require.NoError(t, e)
	}
	s.Tick(3, nil)
	assert.Equal(t, v, task.Vruntime)

	s.Tick(4, nil)
	assert.Greater(t, task.Vruntime, v)
}

// S9 — Cgroup deletion reparents (N=2).
func TestScenario_S9_CgroupDeletionReparents(t *testing.T) {
	s, err := New(2, 1)
	require.NoError(t, err)

	_, errs := s.Tick(0, []Event{
		{Action: ActionCgroupCreate, CgroupID: "G"},
		{Action: ActionTaskCreate, TaskID: "T", CgroupID: "G"},
		{Action: ActionCgroupDelete, CgroupID: "G"},
	})
	for _, e := range errs {
		require.NoError(t, e)
	}

	task, ok := s.Task("T")
	require.True(t, ok)
	assert.Equal(t, cgroup.DefaultID, task.CgroupID)

	dec, _ := s.Tick(1, nil)
	assert.Contains(t, dec.Schedule, "T")
}

// RunnableTasks must report Runnable and Running tasks alike (the
// wire protocol's runnableTasks field covers both states).
func TestDecision_RunnableTasksIncludesRunningTasks(t *testing.T) {
	s, err := New(1, 1)
	require.NoError(t, err)

	dec, errs := s.Tick(0, []Event{create("T1"), create("T2")})
	for _, e := range errs {
		require.NoError(t, e)
	}
	assert.ElementsMatch(t, []string{"T1", "T2"}, dec.RunnableTasks)
}

// Invariant 2 — exclusive assignment: no two CPUs share a non-idle id.
func TestInvariant_ExclusiveAssignment(t *testing.T) {
	s, err := New(3, 1)
	require.NoError(t, err)

	events := []Event{create("a"), create("b"), create("c"), create("d")}
	dec, _ := s.Tick(0, events)

	seen := make(map[string]bool)
	for _, id := range dec.Schedule {
		if id == idleSlot {
			continue
		}
		assert.False(t, seen[id], "task %s assigned to more than one cpu", id)
		seen[id] = true
	}
}

// Invariant 5 — monotonic vruntime while running, non-burst.
func TestInvariant_MonotonicVruntimeWhileRunning(t *testing.T) {
	s, err := New(1, 1)
	require.NoError(t, err)

	s.Tick(0, []Event{create("T1")})
	task, _ := s.Task("T1")
	prev := task.Vruntime
	for vt := uint64(1); vt <= 5; vt++ {
		s.Tick(vt, nil)
		assert.GreaterOrEqual(t, task.Vruntime, prev)
		prev = task.Vruntime
	}
}

// Invariant 7 — fairness bias: two equal-priority tasks on one CPU
// over >=100 ticks differ in tick-count by at most 1.
func TestInvariant_FairnessBias(t *testing.T) {
	s, err := New(1, 1)
	require.NoError(t, err)

	dec0, _ := s.Tick(0, []Event{create("T1"), create("T2")})
	counts := map[string]int{}
	if dec0.Schedule[0] != idleSlot {
		counts[dec0.Schedule[0]]++
	}

	for vt := uint64(1); vt < 100; vt++ {
		dec, _ := s.Tick(vt, nil)
		if dec.Schedule[0] != idleSlot {
			counts[dec.Schedule[0]]++
		}
	}
	diff := counts["T1"] - counts["T2"]
	if diff < 0 {
		diff = -diff
	}
	assert.LessOrEqual(t, diff, 1)
}

func (s *Scheduler) tickNoEvents(t *testing.T, vt uint64) (Decision, []error) {
	t.Helper()
	dec, errs := s.Tick(vt, nil)
	for _, e := range errs {
		require.NoError(t, e)
	}
	return dec, errs
}
