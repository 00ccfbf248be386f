package sync

import (
	"time"

	"github.com/schaermu/stickupdate/internal/config"
	"github.com/schaermu/stickupdate/internal/manifest"
)

// State is the freshness of a working copy relative to its manifest source
type State int

const (
	// StateMissing means the working directory has no entry with that name
	StateMissing State = iota
	// StateStale means the working copy is older than the source
	StateStale
	// StateCurrent means both timestamps are equal
	StateCurrent
	// StateAhead means the working copy is newer than the source
	StateAhead
)

func (s State) String() string {
	switch s {
	case StateMissing:
		return "missing"
	case StateStale:
		return "stale"
	case StateCurrent:
		return "current"
	case StateAhead:
		return "ahead"
	default:
		return "unknown"
	}
}

// Comparator classifies a present working copy by modification time
type Comparator struct {
	Precision config.Precision
	// Tolerance is the largest difference still treated as equal
	Tolerance time.Duration
}

// NewComparator builds the comparator described by cfg
func NewComparator(cfg *config.Config) Comparator {
	return Comparator{
		Precision: cfg.Sync.MtimePrecision,
		Tolerance: cfg.Sync.MtimeTolerance,
	}
}

// Compare returns StateStale, StateCurrent or StateAhead for a working copy
// modified at working whose source was modified at source
func (c Comparator) Compare(source, working time.Time) State {
	if c.Tolerance > 0 {
		diff := working.Sub(source)
		if diff < 0 {
			diff = -diff
		}
		if diff <= c.Tolerance {
			return StateCurrent
		}
	}

	switch c.Precision {
	case config.PrecisionSecond:
		s, w := source.Unix(), working.Unix()
		switch {
		case w < s:
			return StateStale
		case w > s:
			return StateAhead
		default:
			return StateCurrent
		}

	case config.PrecisionLegacy:
		if working.Unix() < source.Unix() {
			return StateStale
		}
		if working.After(source) {
			return StateAhead
		}
		return StateCurrent

	default:
		switch {
		case working.Before(source):
			return StateStale
		case working.After(source):
			return StateAhead
		default:
			return StateCurrent
		}
	}
}

// Result summarizes one reconciliation run
type Result struct {
	Entries []manifest.Entry

	Missing []string
	Stale   []string
	Current []string
	Ahead   []string

	Quarantined []string
	// QuarantineCreated is set when the quarantine directory was (or, in
	// dry-run, would have been) created
	QuarantineCreated bool
}

func (r *Result) record(name string, state State) {
	switch state {
	case StateMissing:
		r.Missing = append(r.Missing, name)
	case StateStale:
		r.Stale = append(r.Stale, name)
	case StateCurrent:
		r.Current = append(r.Current, name)
	case StateAhead:
		r.Ahead = append(r.Ahead, name)
	}
}

// Changed reports whether the run copied, replaced or moved anything
func (r *Result) Changed() bool {
	return len(r.Missing) > 0 || len(r.Stale) > 0 || len(r.Quarantined) > 0
}
