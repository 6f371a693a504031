// Package sched implements the fair-share scheduling core: niceness
// weights, the run queue shared by all CPUs, cgroup-aware event
// dispatch, and the discrete tick engine that turns a batch of events
// into a schedule decision.
//
// The engine is single-threaded and non-suspending: a tick is an
// atomic unit of work. Callers drive it by passing a virtual time and
// its events to Scheduler.Tick and reading back a Decision; there is
// no background goroutine and no blocking.
package sched
