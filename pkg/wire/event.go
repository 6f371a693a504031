// Package wire decodes and encodes the newline-delimited JSON protocol
// the scheduler speaks over its transport: event batches in, decision
// records out. It is deliberately the only place that knows about the
// wire's field names; pkg/sched never imports encoding/json.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/Navidtor/vsched/pkg/system/cgroup"
	"github.com/Navidtor/vsched/pkg/sched"
)

// rawEvent mirrors the wire shape of a single event. Pointer fields
// distinguish "absent" (nil) from present; cpuQuotaUs and cpuMask
// additionally distinguish present-and-null via json.RawMessage (null
// means unlimited quota / any CPU), since a plain pointer field can't
// represent "explicit null" once decoded.
type rawEvent struct {
	Action      string          `json:"action"`
	TaskID      string          `json:"taskId"`
	CgroupID    string          `json:"cgroupId"`
	NewCgroupID string          `json:"newCgroupId"`
	Nice        *int            `json:"nice"`
	NewNice     *int            `json:"newNice"`
	CPUMask     json.RawMessage `json:"cpuMask"`
	CPUShares   *int64          `json:"cpuShares"`
	CPUQuotaUs  json.RawMessage `json:"cpuQuotaUs"`
	CPUPeriodUs *int64          `json:"cpuPeriodUs"`
	Duration    int64           `json:"duration"`
}

// DecodeEvent parses one wire event into the scheduler's internal
// Event representation.
func DecodeEvent(raw json.RawMessage) (sched.Event, error) {
	var re rawEvent
	if err := json.Unmarshal(raw, &re); err != nil {
		return sched.Event{}, fmt.Errorf("wire: decode event: %w", err)
	}

	e := sched.Event{
		Action:      sched.Action(re.Action),
		TaskID:      re.TaskID,
		CgroupID:    re.CgroupID,
		NewCgroupID: re.NewCgroupID,
		Duration:    re.Duration,
	}

	if re.Nice != nil {
		e.Nice = re.Nice
	} else if re.NewNice != nil {
		e.Nice = re.NewNice
	}

	if len(re.CPUMask) > 0 {
		m, err := decodeMask(re.CPUMask)
		if err != nil {
			return sched.Event{}, err
		}
		e.Mask = m
	}

	if re.CPUShares != nil {
		e.Shares = re.CPUShares
	}

	if len(re.CPUQuotaUs) > 0 {
		q, err := decodeQuota(re.CPUQuotaUs)
		if err != nil {
			return sched.Event{}, err
		}
		e.QuotaUs = q
	}

	if re.CPUPeriodUs != nil {
		e.PeriodUs = re.CPUPeriodUs
	}

	return e, nil
}

// decodeMask parses the wire mask shape: an explicit JSON array of CPU
// indices ("[0,2,4]"), or null meaning "any CPU".
func decodeMask(raw json.RawMessage) (*cgroup.Mask, error) {
	if string(raw) == "null" {
		m := cgroup.Any()
		return &m, nil
	}
	var cpus []int
	if err := json.Unmarshal(raw, &cpus); err != nil {
		return nil, fmt.Errorf("wire: decode cpuMask: %w", err)
	}
	m := cgroup.NewMask(cpus)
	return &m, nil
}

func decodeQuota(raw json.RawMessage) (*sched.CgroupQuota, error) {
	if string(raw) == "null" {
		return sched.UnlimitedQuota(), nil
	}
	var v int64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("wire: decode cpuQuotaUs: %w", err)
	}
	return sched.NewQuota(v), nil
}

// EncodeEvent renders a scheduler Event back to its wire shape, used
// by tooling that replays or records event batches.
func EncodeEvent(e sched.Event) (json.RawMessage, error) {
	re := rawEvent{
		Action:      string(e.Action),
		TaskID:      e.TaskID,
		CgroupID:    e.CgroupID,
		NewCgroupID: e.NewCgroupID,
		Nice:        e.Nice,
		CPUShares:   e.Shares,
		CPUPeriodUs: e.PeriodUs,
		Duration:    e.Duration,
	}
	if e.Mask != nil {
		if e.Mask.IsAny() {
			re.CPUMask = json.RawMessage("null")
		} else {
			b, err := json.Marshal(e.Mask.CPUs())
			if err != nil {
				return nil, err
			}
			re.CPUMask = b
		}
	}
	if e.QuotaUs != nil {
		if e.QuotaUs.Unlimited {
			re.CPUQuotaUs = json.RawMessage("null")
		} else {
			b, err := json.Marshal(e.QuotaUs.Micros)
			if err != nil {
				return nil, err
			}
			re.CPUQuotaUs = b
		}
	}
	return json.Marshal(re)
}
