package sched

import (
	"github.com/Navidtor/vsched/pkg/system/cgroup"
	"github.com/Navidtor/vsched/pkg/types"
)

// Dispatch applies each event in order, collecting one error per
// event that failed (nil for events that succeeded). A failing event
// never aborts the batch: every remaining event is still attempted,
// and the tick that follows always runs.
func (s *Scheduler) Dispatch(events []Event) []error {
	errs := make([]error, len(events))
	for i, e := range events {
		errs[i] = s.dispatchOne(e)
	}
	return errs
}

func (s *Scheduler) dispatchOne(e Event) error {
	switch e.Action {
	case ActionTaskCreate:
		return s.taskCreate(e)
	case ActionTaskExit:
		return s.taskExit(e)
	case ActionTaskBlock:
		return s.taskBlock(e)
	case ActionTaskUnblock:
		return s.taskUnblock(e)
	case ActionTaskYield:
		return s.taskYield(e)
	case ActionTaskSetNice:
		return s.taskSetNice(e)
	case ActionTaskSetAffin:
		return s.taskSetAffinity(e)
	case ActionCgroupCreate:
		return s.cgroupCreate(e)
	case ActionCgroupModify:
		return s.cgroupModify(e)
	case ActionCgroupDelete:
		return s.cgroupDelete(e)
	case ActionTaskMoveCgroup:
		return s.taskMoveCgroup(e)
	case ActionCpuBurst:
		return s.cpuBurst(e)
	default:
		return ErrUnknownAction
	}
}

func (s *Scheduler) taskCreate(e Event) error {
	if e.TaskID == "" {
		return ErrMissingField
	}
	if _, exists := s.tasks[e.TaskID]; exists {
		return ErrTaskExists
	}
	cgID := e.CgroupID
	if cgID == "" {
		cgID = cgroup.DefaultID
	}
	if _, ok := s.cgroups[cgID]; !ok {
		return ErrUnknownCgroup
	}
	nice := 0
	if e.Nice != nil {
		nice = *e.Nice
	}
	mask := cgroup.Any()
	if e.Mask != nil {
		mask = *e.Mask
	}
	t := newTask(e.TaskID, nice, cgID, mask, s.maxRunnableOrRunningVruntime())
	s.tasks[e.TaskID] = t
	s.queue.Insert(t)
	return nil
}

func (s *Scheduler) taskExit(e Event) error {
	t, ok := s.tasks[e.TaskID]
	if !ok {
		return ErrUnknownTask
	}
	s.queue.Remove(t)
	s.freeSlot(t)
	delete(s.tasks, e.TaskID)
	return nil
}

func (s *Scheduler) taskBlock(e Event) error {
	t, ok := s.tasks[e.TaskID]
	if !ok {
		return ErrUnknownTask
	}
	s.queue.Remove(t)
	s.freeSlot(t)
	t.State = Blocked
	t.CurrentCPU = NoCPU
	return nil
}

// freeSlot clears t's CPU slot, if it currently occupies one, so a
// task that exits or blocks mid-tick isn't charged vruntime for the
// quantum by advanceAccounting on the next tick.
func (s *Scheduler) freeSlot(t *Task) {
	if t.CurrentCPU != NoCPU {
		s.slots[t.CurrentCPU] = CPUSlot{Idle: true}
	}
}

func (s *Scheduler) taskUnblock(e Event) error {
	t, ok := s.tasks[e.TaskID]
	if !ok {
		return ErrUnknownTask
	}
	if t.State != Blocked {
		return ErrNotBlocked
	}
	bonus := s.minRunnableVruntime() - unblockLatencyBonus
	if bonus > t.Vruntime {
		t.Vruntime = bonus
	}
	t.State = Runnable
	s.queue.Insert(t)
	return nil
}

func (s *Scheduler) taskYield(e Event) error {
	t, ok := s.tasks[e.TaskID]
	if !ok {
		return ErrUnknownTask
	}
	t.Vruntime = s.maxRunnableOrRunningVruntime()
	s.queue.Update(t)
	return nil
}

func (s *Scheduler) taskSetNice(e Event) error {
	t, ok := s.tasks[e.TaskID]
	if !ok {
		return ErrUnknownTask
	}
	if e.Nice == nil {
		return ErrMissingField
	}
	t.Nice = ClampNice(*e.Nice)
	t.Weight = Weight(t.Nice)
	return nil
}

func (s *Scheduler) taskSetAffinity(e Event) error {
	t, ok := s.tasks[e.TaskID]
	if !ok {
		return ErrUnknownTask
	}
	if e.Mask == nil {
		return ErrMissingField
	}
	t.Affinity = *e.Mask
	return nil
}

func (s *Scheduler) cgroupCreate(e Event) error {
	if e.CgroupID == "" {
		return ErrMissingField
	}
	if _, exists := s.cgroups[e.CgroupID]; exists {
		return ErrCgroupExists
	}
	c := cgroup.New(e.CgroupID)
	applyCgroupOverrides(c, e, s.vtime)
	s.cgroups[e.CgroupID] = c
	return nil
}

func (s *Scheduler) cgroupModify(e Event) error {
	c, ok := s.cgroups[e.CgroupID]
	if !ok {
		return ErrUnknownCgroup
	}
	applyCgroupOverrides(c, e, s.vtime)
	return nil
}

// applyCgroupOverrides replaces only the fields e provides, clamping
// boundary values. A provided period resets the cgroup's accounting
// period starting at tick.
func applyCgroupOverrides(c *cgroup.Record, e Event, tick uint64) {
	if e.Shares != nil {
		c.Shares = cgroup.ClampShares(*e.Shares)
	}
	if e.QuotaUs != nil {
		if e.QuotaUs.Unlimited {
			c.QuotaUs = types.Unlimited
		} else {
			c.QuotaUs = types.Micros(e.QuotaUs.Micros)
		}
	}
	if e.Mask != nil {
		c.Mask = *e.Mask
	}
	if e.PeriodUs != nil {
		c.PeriodUs = cgroup.ClampPeriod(types.Micros(*e.PeriodUs))
		c.ResetPeriod(tick)
	}
}

func (s *Scheduler) cgroupDelete(e Event) error {
	if e.CgroupID == cgroup.DefaultID {
		return ErrDeleteDefault
	}
	if _, ok := s.cgroups[e.CgroupID]; !ok {
		return ErrUnknownCgroup
	}
	for _, t := range s.tasks {
		if t.CgroupID == e.CgroupID {
			t.CgroupID = cgroup.DefaultID
		}
	}
	delete(s.cgroups, e.CgroupID)
	return nil
}

func (s *Scheduler) taskMoveCgroup(e Event) error {
	t, ok := s.tasks[e.TaskID]
	if !ok {
		return ErrUnknownTask
	}
	if _, ok := s.cgroups[e.NewCgroupID]; !ok {
		return ErrUnknownCgroup
	}
	t.CgroupID = e.NewCgroupID
	return nil
}

func (s *Scheduler) cpuBurst(e Event) error {
	t, ok := s.tasks[e.TaskID]
	if !ok {
		return ErrUnknownTask
	}
	t.Burst = true
	t.BurstRemaining = e.Duration
	return nil
}
