package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"protosched/internal/schedule"
	"protosched/internal/services/scheduling"
)

func writeTasks(w io.Writer, tasks []schedule.Task) error {
	if !textOutput() {
		return writeJSON(w, tasks)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tTIME\tNAME\tWINDOW\tDONE")
	for _, t := range tasks {
		done := ""
		if t.Completed {
			done = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", t.Index, t.Timestamp.Format(time.RFC3339), t.Name, t.CompletionWindow, done)
	}
	return tw.Flush()
}

func writeTask(w io.Writer, t schedule.Task) error {
	if !textOutput() {
		return writeJSON(w, t)
	}
	return writeTasks(w, []schedule.Task{t})
}

func writeReport(w io.Writer, r scheduling.Report) error {
	if !textOutput() {
		return writeJSON(w, r)
	}
	_, err := fmt.Fprintf(w, "version %s (%s): %d tasks, %d completed, reference %s, took %dms\n",
		r.Version, r.Reason, r.Tasks, r.Completed, r.Reference.Format(time.RFC3339), r.TookMS)
	return err
}
