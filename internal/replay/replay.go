// Package replay renders recorded runs for audit: what the model said,
// what was parsed and validated, and what actually executed.
package replay

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/openclaw/phonepilot/internal/session"
)

// Replayer reads and formats run records.
type Replayer struct {
	output  io.Writer
	verbose bool
}

// New creates a new Replayer.
func New(output io.Writer, verbose bool) *Replayer {
	return &Replayer{output: output, verbose: verbose}
}

// ReplayFile loads and replays a run from a JSON file.
func (r *Replayer) ReplayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read run file: %w", err)
	}
	var run session.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return fmt.Errorf("failed to parse run: %w", err)
	}
	return r.Replay(&run)
}

// Replay writes a formatted timeline of the run's steps.
func (r *Replayer) Replay(run *session.Run) error {
	fmt.Fprintf(r.output, "RUN %s\n", run.ID)
	fmt.Fprintf(r.output, "  Goal:    %s\n", run.Goal)
	if run.DeviceID != "" {
		fmt.Fprintf(r.output, "  Device:  %s\n", run.DeviceID)
	}
	fmt.Fprintf(r.output, "  Status:  %s\n", run.Status)
	fmt.Fprintf(r.output, "  Started: %s\n", run.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(r.output, "\nTIMELINE (%d steps)\n", len(run.Steps))
	fmt.Fprintln(r.output, strings.Repeat("─", 72))

	for i := range run.Steps {
		r.formatStep(&run.Steps[i])
	}

	fmt.Fprintln(r.output, strings.Repeat("─", 72))
	switch run.Status {
	case session.StatusCompleted:
		fmt.Fprintf(r.output, "✓ COMPLETED: %s\n", run.Summary)
	case session.StatusTakenOver:
		fmt.Fprintf(r.output, "✋ TAKEN OVER: %s\n", run.Summary)
	case session.StatusMaxStepsExceeded:
		fmt.Fprintf(r.output, "⏱ STEP BUDGET EXHAUSTED\n")
	case session.StatusAborted:
		fmt.Fprintf(r.output, "✗ ABORTED: %s\n", run.Error)
	default:
		fmt.Fprintf(r.output, "⋯ RUNNING\n")
	}
	return nil
}

// formatStep writes one step as a timeline row with detail lines.
func (r *Replayer) formatStep(step *session.StepRecord) {
	ts := step.Timestamp.Format("15:04:05.000")

	switch {
	case !step.Parsed:
		fmt.Fprintf(r.output, "%4d │ %s │ ✗ UNPARSABLE REPLY\n", step.Index, ts)
		r.printIndented(truncate(step.RawReply, 200))
	case step.ValidationReason != "":
		fmt.Fprintf(r.output, "%4d │ %s │ ✗ REJECTED: %s\n", step.Index, ts, step.ValidationReason)
		r.printIndented(truncate(step.RawReply, 200))
	default:
		marker := "✓"
		detail := ""
		if !step.ExecutedOK {
			marker = "✗"
			detail = fmt.Sprintf(" (%s)", step.FailureKind)
		}
		fmt.Fprintf(r.output, "%4d │ %s │ %s %s%s (%dms",
			step.Index, ts, marker, strings.ToUpper(step.Action), detail,
			step.Duration.Milliseconds())
		if step.Attempts > 1 {
			fmt.Fprintf(r.output, ", %d attempts", step.Attempts)
		}
		fmt.Fprintln(r.output, ")")

		if step.Confirmed != nil {
			if *step.Confirmed {
				r.printIndented("confirmed by operator")
			} else {
				r.printIndented("DENIED by operator")
			}
		}
		if r.verbose {
			if step.CommandJSON != "" {
				r.printIndented(step.CommandJSON)
			}
			r.printIndented(truncate(step.RawReply, 200))
		}
	}
}

func (r *Replayer) printIndented(text string) {
	for _, line := range strings.Split(text, "\n") {
		if line != "" {
			fmt.Fprintf(r.output, "     │     %s\n", line)
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
