package sched

import "github.com/Navidtor/vsched/pkg/system/cgroup"

// unblockLatencyBonus is the (arbitrary, parameterizable) vruntime
// discount applied to a task waking from Blocked: it wakes at
// min(runnable vruntime) minus this bonus, never below its own prior
// vruntime, so it gets a small head start without starving the queue.
const unblockLatencyBonus = 1

// CPUSlot is one CPU's decision for a tick: the id of the task
// assigned to it, or "" for idle.
type CPUSlot struct {
	TaskID string
	Idle   bool
}

// Scheduler holds all mutable scheduling state: tasks, cgroups, the
// run queue, per-CPU slots, and the current tick counter. It is not
// safe for concurrent use; callers serialize ticks themselves.
type Scheduler struct {
	cpuCount int
	quantum  int64

	tasks   map[string]*Task
	cgroups map[string]*cgroup.Record
	queue   *RunQueue

	vtime uint64
	slots []CPUSlot

	preemptions int
	migrations  int
}

// Config is the scheduler's configuration surface, built once from
// the CLI flags at process startup and validated by New/NewFromConfig.
type Config struct {
	CPUs     int
	Quantum  int64
	Metadata bool
}

// NewFromConfig is New, taking the configuration surface's shape
// directly. Metadata is not consulted by the core itself (it only
// gates what pkg/wire renders); it rides along so callers can carry
// one Config value end to end.
func NewFromConfig(cfg Config) (*Scheduler, error) {
	return New(cfg.CPUs, cfg.Quantum)
}

// New creates a scheduler for cpuCount CPUs (1..128) with the given
// tick quantum (> 0, in abstract time units). The default cgroup "0"
// always exists.
func New(cpuCount int, quantum int64) (*Scheduler, error) {
	if cpuCount < 1 || cpuCount > 128 {
		return nil, ErrInvalidCPUCount
	}
	if quantum <= 0 {
		return nil, ErrInvalidQuantum
	}
	s := &Scheduler{
		cpuCount: cpuCount,
		quantum:  quantum,
		tasks:    make(map[string]*Task),
		cgroups:  make(map[string]*cgroup.Record),
		queue:    NewRunQueue(),
		slots:    make([]CPUSlot, cpuCount),
	}
	s.cgroups[cgroup.DefaultID] = cgroup.New(cgroup.DefaultID)
	return s, nil
}

// CPUCount returns the number of CPUs the scheduler was configured with.
func (s *Scheduler) CPUCount() int { return s.cpuCount }

// Quantum returns the configured tick quantum.
func (s *Scheduler) Quantum() int64 { return s.quantum }

// VTime returns the current virtual time (the tick counter).
func (s *Scheduler) VTime() uint64 { return s.vtime }

// Task looks up a task by id.
func (s *Scheduler) Task(id string) (*Task, bool) {
	t, ok := s.tasks[id]
	return t, ok
}

// Cgroup looks up a cgroup by id.
func (s *Scheduler) Cgroup(id string) (*cgroup.Record, bool) {
	c, ok := s.cgroups[id]
	return c, ok
}

// Cgroups returns every registered cgroup record, in no particular
// order. Used by reporting/observability code that walks quota state
// after a tick; the tick engine itself never calls this.
func (s *Scheduler) Cgroups() []*cgroup.Record {
	out := make([]*cgroup.Record, 0, len(s.cgroups))
	for _, c := range s.cgroups {
		out = append(out, c)
	}
	return out
}

// maxRunnableOrRunningVruntime returns the maximum vruntime across all
// Runnable or Running tasks, or 0 if there are none. TaskCreate and
// TaskYield both seed/update a task's vruntime to this value so a new
// or yielding task doesn't jump the whole queue.
func (s *Scheduler) maxRunnableOrRunningVruntime() float64 {
	max := 0.0
	first := true
	for _, t := range s.tasks {
		if t.State != Runnable && t.State != Running {
			continue
		}
		if first || t.Vruntime > max {
			max = t.Vruntime
			first = false
		}
	}
	return max
}

// minRunnableVruntime returns the minimum vruntime across Runnable
// tasks, or 0 if there are none.
func (s *Scheduler) minRunnableVruntime() float64 {
	min := 0.0
	first := true
	for _, t := range s.tasks {
		if t.State != Runnable {
			continue
		}
		if first || t.Vruntime < min {
			min = t.Vruntime
			first = false
		}
	}
	return min
}
