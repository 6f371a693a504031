// Package cgroup models the resource-control groups of the scheduler:
// CPU masks (shared between a task's affinity and a cgroup's allowed
// CPU set) and cgroup records (shares, quota, period, mask, and the
// accounting bookkeeping described in the scheduler's quota/period
// design).
package cgroup

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Navidtor/vsched/pkg/types"
)

// Default values applied when a cgroup is created without explicit
// overrides, or when a boundary-clamp replaces an invalid value.
const (
	DefaultShares   int64        = 1024
	DefaultPeriodUs types.Micros = 100000
	// DefaultID is the cgroup every task belongs to unless it is
	// explicitly assigned to another one; it always exists.
	DefaultID = "0"
)

// Mask represents a CPU set: either "any CPU" or an explicit,
// normalized set of CPU indices. The zero value is "any CPU".
type Mask struct {
	any  bool
	cpus map[int]struct{}
}

// Any returns the "any CPU" mask.
func Any() Mask { return Mask{any: true} }

// NewMask builds an explicit mask from a list of CPU indices.
// A nil or empty list means "any CPU", matching the spec's rule that
// an empty affinity/mask list means any.
func NewMask(cpus []int) Mask {
	if len(cpus) == 0 {
		return Any()
	}
	set := make(map[int]struct{}, len(cpus))
	for _, c := range cpus {
		set[c] = struct{}{}
	}
	return Mask{cpus: set}
}

// IsAny reports whether the mask allows every CPU.
func (m Mask) IsAny() bool { return m.any || len(m.cpus) == 0 }

// Allows reports whether cpu is permitted by the mask.
func (m Mask) Allows(cpu int) bool {
	if m.IsAny() {
		return true
	}
	_, ok := m.cpus[cpu]
	return ok
}

// CPUs returns the sorted explicit CPU list, or nil for "any CPU".
func (m Mask) CPUs() []int {
	if m.IsAny() {
		return nil
	}
	out := make([]int, 0, len(m.cpus))
	for c := range m.cpus {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}

// String renders the mask the way it is accepted back by ParseMask.
func (m Mask) String() string {
	if m.IsAny() {
		return "all"
	}
	cpus := m.CPUs()
	parts := make([]string, len(cpus))
	for i, c := range cpus {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, ",")
}

// ParseMask parses a human-typed CPU mask string, as accepted from a
// config file or command-line flag: "" or "all" means any CPU;
// otherwise a comma-separated list of CPU indices and/or inclusive
// ranges ("0,2,4-6"). The wire protocol uses a JSON array of ints
// instead; see pkg/wire's decodeMask.
func ParseMask(s string) (Mask, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return Any(), nil
	}

	var cpus []int
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if i := strings.Index(tok, "-"); i > 0 {
			lo, err := strconv.Atoi(tok[:i])
			if err != nil {
				return Mask{}, fmt.Errorf("cgroup: bad mask range %q", tok)
			}
			hi, err := strconv.Atoi(tok[i+1:])
			if err != nil {
				return Mask{}, fmt.Errorf("cgroup: bad mask range %q", tok)
			}
			if hi < lo {
				return Mask{}, fmt.Errorf("cgroup: bad mask range %q", tok)
			}
			for c := lo; c <= hi; c++ {
				cpus = append(cpus, c)
			}
			continue
		}
		c, err := strconv.Atoi(tok)
		if err != nil {
			return Mask{}, fmt.Errorf("cgroup: bad mask entry %q", tok)
		}
		cpus = append(cpus, c)
	}
	if len(cpus) == 0 {
		return Any(), nil
	}
	return NewMask(cpus), nil
}

// Record is a cgroup's accounting state: shares, quota/period, mask,
// and the used-microseconds tally within the current period.
type Record struct {
	ID              string
	Shares          int64
	QuotaUs         types.Micros // types.Unlimited for no bound
	PeriodUs        types.Micros
	Mask            Mask
	UsedUs          types.Micros
	PeriodStartTick uint64
}

// New creates a cgroup record with the default shares/quota/period/mask.
func New(id string) *Record {
	return &Record{
		ID:       id,
		Shares:   DefaultShares,
		QuotaUs:  types.Unlimited,
		PeriodUs: DefaultPeriodUs,
		Mask:     Any(),
	}
}

// HasQuota reports whether the cgroup may still admit work this
// period: true when the quota is unlimited, or when used is strictly
// below quota.
func (r *Record) HasQuota() bool {
	return r.QuotaUs.IsUnlimited() || r.UsedUs < r.QuotaUs
}

// Account adds deltaUs to the used counter when the cgroup has a
// finite quota and deltaUs is positive. A no-op otherwise.
func (r *Record) Account(deltaUs types.Micros) {
	if r.QuotaUs.IsUnlimited() || deltaUs <= 0 {
		return
	}
	r.UsedUs += deltaUs
}

// ResetPeriod zeroes the used counter and records the new period start
// tick.
func (r *Record) ResetPeriod(tick uint64) {
	r.UsedUs = 0
	r.PeriodStartTick = tick
}

// AllowsCPU reports whether cpu is in the cgroup's mask.
func (r *Record) AllowsCPU(cpu int) bool { return r.Mask.Allows(cpu) }

// ClampShares replaces a non-positive share value with the default,
// per the boundary-clamp error handling rule.
func ClampShares(shares int64) int64 {
	if shares <= 0 {
		return DefaultShares
	}
	return shares
}

// ClampPeriod replaces a non-positive period with the default.
func ClampPeriod(period types.Micros) types.Micros {
	if period <= 0 {
		return DefaultPeriodUs
	}
	return period
}
