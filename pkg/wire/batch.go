package wire

import (
	"encoding/json"
	"fmt"

	"github.com/Navidtor/vsched/pkg/sched"
)

// EventBatch is the wire shape of one tick's input: a virtual time
// plus an ordered list of not-yet-decoded events. Decoding individual
// events is deferred to Decode so a single malformed event can be
// reported without discarding the rest of the batch.
type EventBatch struct {
	VTime  uint64            `json:"vtime"`
	Events []json.RawMessage `json:"events"`
}

// Decode decodes every event in the batch, returning one error per
// malformed entry alongside the zero Event in its slot. Callers
// typically log the errors and feed the rest to Scheduler.Dispatch.
func (b EventBatch) Decode() ([]sched.Event, []error) {
	out := make([]sched.Event, len(b.Events))
	errs := make([]error, len(b.Events))
	for i, raw := range b.Events {
		e, err := DecodeEvent(raw)
		if err != nil {
			errs[i] = err
			continue
		}
		out[i] = e
	}
	return out, errs
}

// DecodeBatch parses one newline-delimited JSON line as an EventBatch
// envelope. Individual events inside it are left as raw JSON until
// Decode is called, so a malformed envelope (bad vtime, bad JSON) is
// distinguished from a malformed individual event.
func DecodeBatch(line []byte) (EventBatch, error) {
	var b EventBatch
	if err := json.Unmarshal(line, &b); err != nil {
		return EventBatch{}, errMalformedBatch(err)
	}
	return b, nil
}

// Meta carries the optional per-tick metadata requested via the
// configuration surface.
type Meta struct {
	Preemptions   int      `json:"preemptions"`
	Migrations    int      `json:"migrations"`
	RunnableTasks []string `json:"runnableTasks"`
	BlockedTasks  []string `json:"blockedTasks"`
}

// DecisionRecord is the wire shape of one tick's output.
type DecisionRecord struct {
	VTime    uint64   `json:"vtime"`
	Schedule []string `json:"schedule"`
	Meta     *Meta    `json:"meta,omitempty"`
}

// ToWire renders a scheduler Decision as its wire record. Metadata is
// included only when withMeta is set, matching the configuration
// surface's "whether metadata is emitted" switch.
func ToWire(d sched.Decision, withMeta bool) DecisionRecord {
	rec := DecisionRecord{VTime: d.VTime, Schedule: d.Schedule}
	if withMeta {
		rec.Meta = &Meta{
			Preemptions:   d.Preemptions,
			Migrations:    d.Migrations,
			RunnableTasks: orEmpty(d.RunnableTasks),
			BlockedTasks:  orEmpty(d.BlockedTasks),
		}
	}
	return rec
}

func orEmpty(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

// errMalformedBatch wraps a batch-level decode failure (invalid JSON
// for the envelope itself, as opposed to a single bad event).
func errMalformedBatch(err error) error {
	return fmt.Errorf("wire: decode event batch: %w", err)
}
