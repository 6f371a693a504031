// Package types holds small value types shared across the scheduler
// packages that deserve unit-aware presentation rather than a bare
// integer.
package types

import "fmt"

// Micros is a signed microsecond duration. Cgroup quota/period/used
// accounting is expressed in Micros throughout pkg/system/cgroup and
// pkg/sched.
type Micros int64

// Unlimited is the sentinel Micros value meaning "no quota bound".
const Unlimited Micros = -1

// Humanized returns a human-readable string with automatic unit
// (µs, ms, s).
func (m Micros) Humanized() string {
	if m == Unlimited {
		return "unlimited"
	}
	v := float64(m)
	switch {
	case m < 0:
		return fmt.Sprintf("%dµs", int64(m))
	case m >= 1_000_000:
		return fmt.Sprintf("%.2fs", v/1_000_000)
	case m >= 1_000:
		return fmt.Sprintf("%.2fms", v/1_000)
	default:
		return fmt.Sprintf("%dµs", int64(m))
	}
}

// Millis returns the duration in milliseconds.
func (m Micros) Millis() float64 { return float64(m) / 1_000 }

// Seconds returns the duration in seconds.
func (m Micros) Seconds() float64 { return float64(m) / 1_000_000 }

// IsUnlimited reports whether m represents the unlimited sentinel.
func (m Micros) IsUnlimited() bool { return m == Unlimited }
