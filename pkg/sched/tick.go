package sched

import (
	"github.com/Navidtor/vsched/pkg/system/cgroup"
	"github.com/Navidtor/vsched/pkg/types"
)

// Decision is the outcome of a single tick: the per-CPU schedule plus
// the bookkeeping counters accumulated during selection.
type Decision struct {
	VTime         uint64
	Schedule      []string // per CPU index, task id or "idle"
	Preemptions   int
	Migrations    int
	RunnableTasks []string
	BlockedTasks  []string
}

const idleSlot = "idle"

// Tick applies events for virtual time vtime, then runs the five-step
// selection algorithm: refresh cgroup periods, advance accounting for
// currently-running tasks, rebuild the run queue from scratch, select
// one task per CPU (respecting affinity, cgroup mask, and cgroup
// quota atomically across CPUs within this tick), and finally emit
// the decision. Event-level errors are returned alongside the
// decision; the tick always completes.
func (s *Scheduler) Tick(vtime uint64, events []Event) (Decision, []error) {
	errs := s.Dispatch(events)

	s.prologue(vtime)
	prevOccupants := s.advanceAccounting()
	s.rebuildQueue()
	s.selectPerCPU(prevOccupants)
	return s.epilogue(), errs
}

func (s *Scheduler) prologue(vtime uint64) {
	s.vtime = vtime
	s.preemptions = 0
	s.migrations = 0

	quantumUs := s.quantumUs()
	t := int64(vtime)
	for _, c := range s.cgroups {
		if t < int64(c.PeriodStartTick) {
			c.ResetPeriod(vtime)
			continue
		}
		elapsed := (t - int64(c.PeriodStartTick)) * quantumUs
		if elapsed >= int64(c.PeriodUs) {
			c.ResetPeriod(vtime)
		}
	}
}

func (s *Scheduler) quantumUs() int64 { return s.quantum * 1000 }

// advanceAccounting charges every currently-Running task for the
// quantum just elapsed, then transitions it back to Runnable and
// frees its CPU slot. It returns the occupant recorded on each CPU
// before this pass, used later to detect preemption.
func (s *Scheduler) advanceAccounting() []string {
	prev := make([]string, s.cpuCount)
	quantumUs := types.Micros(s.quantumUs())

	for cpu, slot := range s.slots {
		if slot.Idle || slot.TaskID == "" {
			continue
		}
		prev[cpu] = slot.TaskID
		t, ok := s.tasks[slot.TaskID]
		if !ok {
			continue
		}

		cg, ok := s.cgroups[t.CgroupID]
		if !ok {
			cg = s.cgroups[cgroup.DefaultID]
		}

		if !t.Burst {
			ew := EffectiveWeight(t.Weight, cg.Shares)
			t.Vruntime += VruntimeDelta(s.quantum, ew)
		}
		cg.Account(quantumUs)

		if t.Burst {
			t.BurstRemaining--
			if t.BurstRemaining <= 0 {
				t.Burst = false
			}
		}

		t.State = Runnable
		s.slots[cpu] = CPUSlot{Idle: true}
	}
	return prev
}

// rebuildQueue empties the run queue and re-inserts every Runnable
// task, resetting every other task's queue position. This is a
// deliberate O(n) full rebuild each tick, trading throughput for a
// simple, easily-audited invariant: the queue always exactly mirrors
// the Runnable set.
func (s *Scheduler) rebuildQueue() {
	s.queue = NewRunQueue()
	for _, t := range s.tasks {
		if t.State == Runnable {
			t.queueIndex = notEnqueued
			s.queue.Insert(t)
		} else {
			t.queueIndex = notEnqueued
		}
	}
}

// selectPerCPU runs the per-CPU selection pass in ascending CPU
// order. Candidates rejected by affinity, cgroup mask, or exhausted
// cgroup quota are set aside and reinserted once that CPU's decision
// is final, so they remain eligible for the next CPU. plannedUs
// tracks quota already committed to earlier CPUs this tick so tasks
// in the same quota-limited cgroup can't together be admitted past
// its remaining quota within one tick.
func (s *Scheduler) selectPerCPU(prevOccupants []string) {
	plannedUs := make(map[string]types.Micros)
	quantumUs := types.Micros(s.quantumUs())

	for cpu := 0; cpu < s.cpuCount; cpu++ {
		var setAside []*Task
		var selected *Task

		for {
			cand := s.queue.ExtractMin()
			if cand == nil {
				break
			}
			cg, ok := s.cgroups[cand.CgroupID]
			if !ok {
				cg = s.cgroups[cgroup.DefaultID]
			}
			switch {
			case !cand.Affinity.Allows(cpu):
				setAside = append(setAside, cand)
			case !cg.AllowsCPU(cpu):
				setAside = append(setAside, cand)
			case !cg.QuotaUs.IsUnlimited() && cg.UsedUs+plannedUs[cg.ID] >= cg.QuotaUs:
				setAside = append(setAside, cand)
			default:
				selected = cand
			}
			if selected != nil {
				break
			}
		}

		for _, t := range setAside {
			s.queue.Insert(t)
		}

		if selected == nil {
			s.slots[cpu] = CPUSlot{Idle: true}
			continue
		}

		cg, ok := s.cgroups[selected.CgroupID]
		if !ok {
			cg = s.cgroups[cgroup.DefaultID]
		}
		if !cg.QuotaUs.IsUnlimited() {
			plannedUs[cg.ID] += quantumUs
		}

		if prevOccupants[cpu] != "" && prevOccupants[cpu] != selected.ID {
			s.preemptions++
		}
		if selected.CurrentCPU != NoCPU && selected.CurrentCPU != cpu {
			s.migrations++
		}

		selected.State = Running
		selected.CurrentCPU = cpu
		s.slots[cpu] = CPUSlot{TaskID: selected.ID}
	}
}

func (s *Scheduler) epilogue() Decision {
	schedule := make([]string, s.cpuCount)
	for cpu, slot := range s.slots {
		if slot.Idle || slot.TaskID == "" {
			schedule[cpu] = idleSlot
		} else {
			schedule[cpu] = slot.TaskID
		}
	}

	var runnable, blocked []string
	for _, t := range s.tasks {
		switch t.State {
		case Runnable:
			t.CurrentCPU = NoCPU
			runnable = append(runnable, t.ID)
		case Running:
			runnable = append(runnable, t.ID)
		case Blocked:
			blocked = append(blocked, t.ID)
		}
	}

	return Decision{
		VTime:         s.vtime,
		Schedule:      schedule,
		Preemptions:   s.preemptions,
		Migrations:    s.migrations,
		RunnableTasks: runnable,
		BlockedTasks:  blocked,
	}
}
