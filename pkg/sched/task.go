package sched

import "github.com/Navidtor/vsched/pkg/system/cgroup"

// State is a task's life-cycle state.
type State int

const (
	Runnable State = iota
	Running
	Blocked
	Exited
)

func (s State) String() string {
	switch s {
	case Runnable:
		return "runnable"
	case Running:
		return "running"
	case Blocked:
		return "blocked"
	case Exited:
		return "exited"
	default:
		return "unknown"
	}
}

// NoCPU is the CurrentCPU sentinel meaning "not assigned to any CPU".
const NoCPU = -1

// notEnqueued is the queueIndex sentinel meaning "not in the run queue".
const notEnqueued = -1

// Task is a single schedulable unit.
type Task struct {
	ID       string
	Nice     int
	Weight   int64
	Vruntime float64
	State    State
	CgroupID string
	Affinity cgroup.Mask

	CurrentCPU int

	Burst          bool
	BurstRemaining int64

	// queueIndex is the task's current position in the run queue's
	// backing slice, or notEnqueued when the task isn't queued. It is
	// maintained by RunQueue so ExtractMin/Update/Remove run in
	// O(log n) instead of requiring a linear scan.
	queueIndex int
}

// newTask constructs a task in the Runnable state with the given
// initial vruntime, ready to be enqueued.
func newTask(id string, nice int, cgroupID string, affinity cgroup.Mask, vruntime float64) *Task {
	n := ClampNice(nice)
	return &Task{
		ID:         id,
		Nice:       n,
		Weight:     Weight(n),
		Vruntime:   vruntime,
		State:      Runnable,
		CgroupID:   cgroupID,
		Affinity:   affinity,
		CurrentCPU: NoCPU,
		queueIndex: notEnqueued,
	}
}
