package sched

import "errors"

// Event-level errors: the dispatcher returns one of these for a single
// malformed or unresolvable event, but the tick still proceeds.
var (
	ErrUnknownAction = errors.New("sched: unknown event action")
	ErrMissingField  = errors.New("sched: missing required field")
	ErrUnknownTask   = errors.New("sched: unknown task id")
	ErrUnknownCgroup = errors.New("sched: unknown cgroup id")
	ErrTaskExists    = errors.New("sched: task id already exists")
	ErrCgroupExists  = errors.New("sched: cgroup id already exists")
	ErrNotBlocked    = errors.New("sched: task is not blocked")
	ErrDeleteDefault = errors.New("sched: cannot delete the default cgroup")
	ErrInvalidMask   = errors.New("sched: invalid cpu mask")
)

// Structural/fatal errors: returned only from New, before any tick has
// run.
var (
	ErrInvalidCPUCount = errors.New("sched: cpu count out of range [1,128]")
	ErrInvalidQuantum  = errors.New("sched: quantum must be positive")
)
