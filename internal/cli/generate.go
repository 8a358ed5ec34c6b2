package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"protosched/internal/services/scheduling"
)

func init() {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Regenerate the schedule from the stored protocol",
		RunE:  runGenerate,
	}
	cmd.Flags().String("reference", "", "Reset the reference date first (RFC 3339 or Unix ms)")
	RootCmd.AddCommand(cmd)

	RootCmd.AddCommand(&cobra.Command{
		Use:   "report",
		Short: "Show the summary of the last generation",
		Args:  cobra.NoArgs,
		RunE:  runReport,
	})
}

func runGenerate(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer a.Close()

	ctx := cmd.Context()
	svc := a.Scheduling()
	if raw, _ := cmd.Flags().GetString("reference"); raw != "" {
		ref, err := parseInstant(raw, svc.Location())
		if err != nil {
			return err
		}
		if err := svc.SetReference(ctx, ref); err != nil {
			return fmt.Errorf("set reference: %w", err)
		}
	}
	if _, err := svc.NoteTimezone(ctx, time.Now()); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	rep, err := svc.Generate(ctx, scheduling.ReasonManual)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	return writeReport(cmd.OutOrStdout(), *rep)
}

func runReport(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer a.Close()

	rep, ok, err := a.Scheduling().Report(cmd.Context())
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no schedule generated yet")
	}
	return writeReport(cmd.OutOrStdout(), rep)
}
