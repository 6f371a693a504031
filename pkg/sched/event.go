package sched

import "github.com/Navidtor/vsched/pkg/system/cgroup"

// Action identifies the kind of event carried by an Event.
type Action string

// The full set of event actions the dispatcher understands.
const (
	ActionTaskCreate     Action = "TaskCreate"
	ActionTaskExit       Action = "TaskExit"
	ActionTaskBlock      Action = "TaskBlock"
	ActionTaskUnblock    Action = "TaskUnblock"
	ActionTaskYield      Action = "TaskYield"
	ActionTaskSetNice    Action = "TaskSetNice"
	ActionTaskSetAffin   Action = "TaskSetAffinity"
	ActionCgroupCreate   Action = "CgroupCreate"
	ActionCgroupModify   Action = "CgroupModify"
	ActionCgroupDelete   Action = "CgroupDelete"
	ActionTaskMoveCgroup Action = "TaskMoveCgroup"
	ActionCpuBurst       Action = "CpuBurst"
)

// Event is a single scheduling event. Only the fields relevant to
// Action are meaningful; pointer fields distinguish "not provided"
// (nil) from an explicit value, which matters for cgroup quota's
// null-means-unlimited semantics.
type Event struct {
	Action Action

	TaskID      string
	CgroupID    string
	NewCgroupID string

	Nice     *int
	Mask     *cgroup.Mask
	Shares   *int64
	QuotaUs  *CgroupQuota
	PeriodUs *int64
	Duration int64
}

// CgroupQuota wraps an optional quota value so callers (the wire
// decoder in particular) can represent "explicit null" (unlimited) as
// a non-nil *CgroupQuota with Unlimited=true, separately from "field
// absent" (nil *CgroupQuota on the Event itself).
type CgroupQuota struct {
	Unlimited bool
	Micros    int64
}

// NewQuota returns a finite quota value in microseconds.
func NewQuota(us int64) *CgroupQuota { return &CgroupQuota{Micros: us} }

// UnlimitedQuota returns the explicit "no bound" quota value.
func UnlimitedQuota() *CgroupQuota { return &CgroupQuota{Unlimited: true} }
