package report

import (
	"fmt"
	"io"
	"sync"
)

// Action identifies a decision the tool reports to the operator
type Action string

const (
	ActionWorkDir           Action = "workdir"
	ActionValidated         Action = "validated"
	ActionValidationSummary Action = "validation-summary"
	ActionMissing           Action = "missing"
	ActionCopied            Action = "copied"
	ActionStale             Action = "needs-update"
	ActionUpdated           Action = "updated"
	ActionNewer             Action = "newer"
	ActionUpToDate          Action = "up-to-date"
	ActionQuarantineCreated Action = "quarantine-created"
	ActionQuarantined       Action = "quarantined"
)

// Event is one status line
type Event struct {
	Action Action
	// Name is the entry basename, or the full path for workdir and validated events
	Name string
	// Dir is the quarantine directory name, or the manifest name for the summary
	Dir    string
	Count  int
	DryRun bool
}

// String renders the event as the console line shown to the operator
func (e Event) String() string {
	switch e.Action {
	case ActionWorkDir:
		return fmt.Sprintf("Using working directory: %s", e.Name)
	case ActionValidated:
		return fmt.Sprintf("Validated: %s", e.Name)
	case ActionValidationSummary:
		return fmt.Sprintf("All %d files in %s validated successfully", e.Count, e.Dir)
	case ActionMissing:
		return fmt.Sprintf("%s: missing", e.Name)
	case ActionCopied:
		if e.DryRun {
			return fmt.Sprintf("Would copy %s to working directory", e.Name)
		}
		return fmt.Sprintf("Copied %s to working directory", e.Name)
	case ActionStale:
		return fmt.Sprintf("%s: needs update", e.Name)
	case ActionUpdated:
		if e.DryRun {
			return fmt.Sprintf("Would update %s in working directory", e.Name)
		}
		return fmt.Sprintf("Updated %s in working directory", e.Name)
	case ActionNewer:
		return fmt.Sprintf("%s: newer", e.Name)
	case ActionUpToDate:
		return fmt.Sprintf("%s: up-to-date", e.Name)
	case ActionQuarantineCreated:
		if e.DryRun {
			return fmt.Sprintf("Would create '%s' directory", e.Dir)
		}
		return fmt.Sprintf("Created '%s' directory", e.Dir)
	case ActionQuarantined:
		if e.DryRun {
			return fmt.Sprintf("%s: not in manifest - would move to %s/", e.Name, e.Dir)
		}
		return fmt.Sprintf("%s: not in manifest - moved to %s/", e.Name, e.Dir)
	default:
		return fmt.Sprintf("%s: %s", e.Name, e.Action)
	}
}

// Reporter receives status events
type Reporter interface {
	Report(Event)
}

// TextReporter writes one line per event
type TextReporter struct {
	w io.Writer
}

// NewTextReporter creates a reporter writing to w
func NewTextReporter(w io.Writer) *TextReporter {
	return &TextReporter{w: w}
}

// Report writes the event line. Write errors are dropped; status output is best effort.
func (r *TextReporter) Report(e Event) {
	_, _ = fmt.Fprintln(r.w, e.String())
}

// Recorder keeps every event it receives
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Report appends the event
func (r *Recorder) Report(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Lines returns the recorded events rendered as console lines
func (r *Recorder) Lines() []string {
	events := r.Events()
	lines := make([]string, 0, len(events))
	for _, e := range events {
		lines = append(lines, e.String())
	}
	return lines
}
