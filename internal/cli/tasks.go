package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"protosched/internal/schedule"
	"protosched/internal/services/scheduling"
)

func init() {
	tasks := &cobra.Command{
		Use:   "tasks",
		Short: "List stored tasks",
		Args:  cobra.NoArgs,
		RunE:  runTasks,
	}
	tasks.Flags().String("day", "", "Only calendar tasks on this local date (YYYY-MM-DD, or \"today\")")

	next := &cobra.Command{
		Use:   "next",
		Short: "Show the task to do now, or the next one due",
		Args:  cobra.NoArgs,
		RunE:  runNext,
	}
	next.Flags().String("at", "", "Evaluate at this instant instead of now (RFC 3339 or Unix ms)")

	complete := &cobra.Command{
		Use:   "complete <name> <timestamp>",
		Short: "Mark a task completed",
		Args:  cobra.ExactArgs(2),
		RunE:  runComplete,
	}
	complete.Flags().Bool("reported", true, "Whether the completion was reported upstream")

	clinical := &cobra.Command{
		Use:   "clinical <name>",
		Short: "Generate the tasks of an on-demand clinical assessment",
		Args:  cobra.ExactArgs(1),
		RunE:  runClinical,
	}

	RootCmd.AddCommand(tasks, next, complete, clinical)
}

func runTasks(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer a.Close()

	svc := a.Scheduling()
	day, _ := cmd.Flags().GetString("day")
	var list []schedule.Task
	switch day {
	case "":
		list, err = svc.Tasks(cmd.Context())
	case "today":
		list, err = svc.TasksForDay(cmd.Context(), svc.Now())
	default:
		d, perr := time.ParseInLocation(time.DateOnly, day, svc.Location())
		if perr != nil {
			return fmt.Errorf("invalid --day %q (want YYYY-MM-DD)", day)
		}
		list, err = svc.TasksForDay(cmd.Context(), d)
	}
	if err != nil {
		return err
	}
	return writeTasks(cmd.OutOrStdout(), list)
}

func runNext(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer a.Close()

	svc := a.Scheduling()
	at := svc.Now()
	if raw, _ := cmd.Flags().GetString("at"); raw != "" {
		if at, err = parseInstant(raw, svc.Location()); err != nil {
			return err
		}
	}
	t, err := svc.NextTask(cmd.Context(), at)
	if errors.Is(err, scheduling.ErrNoTask) {
		return fmt.Errorf("nothing left to do after %s", at.Format(time.RFC3339))
	}
	if err != nil {
		return err
	}
	return writeTask(cmd.OutOrStdout(), t)
}

func runComplete(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer a.Close()

	svc := a.Scheduling()
	ts, err := parseInstant(args[1], svc.Location())
	if err != nil {
		return err
	}
	reported, _ := cmd.Flags().GetBool("reported")
	t, err := svc.RecordCompletion(cmd.Context(), schedule.CompletedTaskRecord{
		Name:               args[0],
		Timestamp:          ts,
		ReportedCompletion: &reported,
	})
	if err != nil {
		return err
	}
	return writeTask(cmd.OutOrStdout(), t)
}

func runClinical(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer a.Close()

	list, err := a.Scheduling().GenerateClinical(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return writeTasks(cmd.OutOrStdout(), list)
}
