package main

import (
	"fmt"
	"io"
	"time"

	"github.com/sable-dev/sable/pkg/models"
)

const msRound = time.Millisecond

// printEvents renders the merged event stream as console lines until the
// channel closes. Thinking text arrives only on verbose runs; the plan is
// always shown from the execution boundary.
func printEvents(w io.Writer, merged <-chan models.Event, verbose bool) {
	for e := range merged {
		switch e.Type {
		case models.EventTaskStarted:
			fmt.Fprintf(w, "task: %s\n", e.Run.Task)
		case models.EventIterationStarted:
			fmt.Fprintf(w, "--- iteration %d ---\n", e.Iter.Index)
		case models.EventThinking:
			if verbose {
				fmt.Fprintf(w, "thinking: %s\n", e.Text.Text)
			}
		case models.EventExecutionStarted:
			fmt.Fprintf(w, "plan: %s\n", e.Exec.Plan)
		case models.EventExecutionCompleted:
			if e.Exec.Result != nil {
				if e.Exec.Result.Success {
					fmt.Fprintf(w, "exec: ok (%s)\n", e.Exec.Result.Elapsed.Round(msRound))
				} else {
					fmt.Fprintf(w, "exec: failed: %s\n", e.Exec.Result.Error)
				}
			}
		case models.EventEvaluationCompleted:
			verdict := "not yet"
			if e.Eval.Success {
				verdict = "success"
			}
			fmt.Fprintf(w, "eval: %s (confidence %.2f)\n", verdict, e.Eval.Confidence)
			if !e.Eval.Success && e.Eval.Feedback != "" {
				fmt.Fprintf(w, "feedback: %s\n", e.Eval.Feedback)
			}
		case models.EventTaskSucceeded:
			fmt.Fprintln(w, "done")
		case models.EventTaskMaxIterations:
			fmt.Fprintln(w, "stopped: iteration budget exhausted")
		case models.EventTaskFailed:
			if e.Error != nil {
				fmt.Fprintf(w, "failed: %s\n", e.Error.Message)
			} else {
				fmt.Fprintln(w, "failed")
			}
		case models.EventTaskCancelled:
			fmt.Fprintln(w, "cancelled")
		}
	}
}
