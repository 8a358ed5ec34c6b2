package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import <protocol.yaml|protocol.json>",
		Short: "Store a protocol and regenerate when it changed",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}
	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer a.Close()

	res, rep, err := a.ImportProtocol(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	out := map[string]any{
		"version":   res.Version,
		"scheduled": res.Scheduled,
		"onDemand":  res.OnDemand,
		"changed":   res.Changed,
	}
	if rep != nil {
		out["report"] = rep
	}
	if textOutput() {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "protocol %s: %d scheduled, %d on demand, changed=%t\n",
			res.Version, res.Scheduled, res.OnDemand, res.Changed)
		return err
	}
	return writeJSON(cmd.OutOrStdout(), out)
}
