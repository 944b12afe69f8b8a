package main

import (
	"context"

	"github.com/agentuity/session-reaper/reaper"
	"github.com/agentuity/session-reaper/sys"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Invalidate idle sessions until none are left to wait for",
		Long: `Invalidate idle sessions until none are left to wait for.

Sessions used for less than the used time cutoff expire after the short inactive
threshold, all others after the long one. Between rounds the reaper sleeps until the
session with the longest remaining wait is due. Send SIGUSR1 to re-check early.`,
		Args: cobra.NoArgs,
		RunE: runReaper,
	}
}

func runReaper(cmd *cobra.Command, args []string) error {
	st, err := prepare(cmd)
	if err != nil {
		return err
	}
	defer st.close()

	ctx, cancel := sys.ShutdownContext(cmd.Context())
	defer cancel()

	apps, ok := st.discover(ctx)
	if !ok {
		return nil
	}

	wake, stop := sys.WakeChannel()
	defer stop()

	r := reaper.New(st.logger, st.provider, apps, reaper.WithPolicy(st.cfg.Policy()), reaper.WithWake(wake))
	rounds, err := r.Run(ctx)
	if errors.Is(err, context.Canceled) {
		st.logger.Info("shutting down after %d rounds", rounds)
		return nil
	}
	return err
}
