// Package cli implements the protosched commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"protosched/internal/app"
)

var (
	cfgPath    string
	formatFlag string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:           "protosched",
	Short:         "Deterministic questionnaire schedule generator",
	Long:          "Generates, stores and reconciles questionnaire schedules from a study protocol. Runs once per command or as a daemon with `serve`.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Config file (default: $PROTOSCHED_CONFIG, or built-in defaults with in-memory storage)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
}

func getConfigPath() string {
	if cfgPath != "" {
		return cfgPath
	}
	return os.Getenv("PROTOSCHED_CONFIG")
}

func openApp() (*app.App, error) {
	return app.New(getConfigPath())
}

func textOutput() bool { return strings.EqualFold(formatFlag, "text") }

func writeJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// parseInstant accepts RFC 3339 or Unix milliseconds.
func parseInstant(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).In(loc), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q (use RFC 3339 or Unix milliseconds)", raw)
	}
	return t.In(loc), nil
}
