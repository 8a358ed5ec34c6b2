package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	logx "protosched/pkg/logx"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run as a daemon: refresh on schedule, follow timezone and protocol changes",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().Duration("shutdown-timeout", 15*time.Second, "How long to wait for loops to stop")
	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := openApp()
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	if err := a.Start(ctx); err != nil {
		_ = a.Close()
		return fmt.Errorf("start: %w", err)
	}
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.Log().Warn("sd_notify ready failed", logx.Err(err))
	} else if ok {
		a.Log().Debug("notified systemd")
	}

	select {
	case <-ctx.Done():
	case <-a.Done():
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	timeout, _ := cmd.Flags().GetDuration("shutdown-timeout")
	stopCtx, stopCancel := context.WithTimeout(context.Background(), timeout)
	defer stopCancel()
	for _, st := range a.Supervisor().Snapshot() {
		a.Log().Debug("loop stats",
			logx.String("name", st.Name),
			logx.Int("restarts", st.Restarts),
			logx.Int("panics", st.Panics),
		)
	}
	return a.Stop(stopCtx)
}
