// Package models defines the data structures shared by the defect tally daemon.
package models

import "fmt"

// Counter is one named defect tally. Its identity is its position in the set.
type Counter struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Snapshot is a positional copy of every count taken at one instant.
// Producers always hand out a fresh slice; holders must not mutate it.
type Snapshot []int

// Clone returns an independent copy of the snapshot. A nil snapshot stays nil.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	cp := make(Snapshot, len(s))
	copy(cp, s)
	return cp
}

// Equal reports whether both snapshots hold the same counts in the same order.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Policy selects when counts are written to disk.
type Policy string

const (
	// PolicyImmediate saves synchronously after every mutation.
	PolicyImmediate Policy = "immediate"
	// PolicyPeriodic saves from a background ticker, independent of mutation rate.
	PolicyPeriodic Policy = "periodic"
)

// ParsePolicy converts a config or flag value into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyImmediate, PolicyPeriodic:
		return Policy(s), nil
	case "":
		return PolicyPeriodic, nil
	}
	return "", fmt.Errorf("unknown save policy %q (want %q or %q)", s, PolicyImmediate, PolicyPeriodic)
}
