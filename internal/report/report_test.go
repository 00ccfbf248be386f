package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventString(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{"workdir", Event{Action: ActionWorkDir, Name: "/mnt/stick"}, "Using working directory: /mnt/stick"},
		{"validated", Event{Action: ActionValidated, Name: "/src/a.txt"}, "Validated: /src/a.txt"},
		{"summary", Event{Action: ActionValidationSummary, Count: 3, Dir: "manifest.txt"}, "All 3 files in manifest.txt validated successfully"},
		{"missing", Event{Action: ActionMissing, Name: "a.txt"}, "a.txt: missing"},
		{"copied", Event{Action: ActionCopied, Name: "a.txt"}, "Copied a.txt to working directory"},
		{"copied dry-run", Event{Action: ActionCopied, Name: "a.txt", DryRun: true}, "Would copy a.txt to working directory"},
		{"stale", Event{Action: ActionStale, Name: "a.txt"}, "a.txt: needs update"},
		{"updated", Event{Action: ActionUpdated, Name: "a.txt"}, "Updated a.txt in working directory"},
		{"updated dry-run", Event{Action: ActionUpdated, Name: "a.txt", DryRun: true}, "Would update a.txt in working directory"},
		{"newer", Event{Action: ActionNewer, Name: "a.txt"}, "a.txt: newer"},
		{"up-to-date", Event{Action: ActionUpToDate, Name: "a.txt"}, "a.txt: up-to-date"},
		{"created", Event{Action: ActionQuarantineCreated, Dir: "extra"}, "Created 'extra' directory"},
		{"created dry-run", Event{Action: ActionQuarantineCreated, Dir: "extra", DryRun: true}, "Would create 'extra' directory"},
		{"quarantined", Event{Action: ActionQuarantined, Name: "old.log", Dir: "extra"}, "old.log: not in manifest - moved to extra/"},
		{"quarantined dry-run", Event{Action: ActionQuarantined, Name: "old.log", Dir: "extra", DryRun: true}, "old.log: not in manifest - would move to extra/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.event.String())
		})
	}
}

func TestTextReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewTextReporter(&buf)

	r.Report(Event{Action: ActionMissing, Name: "a.txt"})
	r.Report(Event{Action: ActionCopied, Name: "a.txt"})

	assert.Equal(t, "a.txt: missing\nCopied a.txt to working directory\n", buf.String())
}

func TestRecorder(t *testing.T) {
	var rec Recorder

	rec.Report(Event{Action: ActionNewer, Name: "b"})
	rec.Report(Event{Action: ActionUpToDate, Name: "c"})

	assert.Equal(t, []string{"b: newer", "c: up-to-date"}, rec.Lines())

	// Events hands out a copy
	events := rec.Events()
	events[0].Name = "changed"
	assert.Equal(t, "b", rec.Events()[0].Name)
}
