package main

import (
	"time"

	"github.com/agentuity/session-reaper/reaper"
	"github.com/agentuity/session-reaper/tui"
	"github.com/spf13/cobra"
)

var listHeaders = []string{"APPLICATION", "SESSION", "CREATED", "LAST ACCESSED", "USED", "INACTIVE", "POLICY", "DECISION"}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show every session and what the next round would do with it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := prepare(cmd)
			if err != nil {
				return err
			}
			defer st.close()

			apps, ok := st.discover(cmd.Context())
			if !ok {
				return nil
			}
			out := cmd.OutOrStdout()
			if len(apps) == 0 {
				tui.ShowWarning(out, "no applications match %s", st.cfg.Pattern)
				return nil
			}

			now := time.Now()
			r := reaper.New(st.logger, st.provider, apps, reaper.WithPolicy(st.cfg.Policy()), reaper.WithClock(func() time.Time { return now }, nil))
			reports, res := r.Inspect(cmd.Context())
			rows := make([][]string, 0, len(reports))
			var expiring int
			for _, rep := range reports {
				decision := tui.Muted(rep.Decision.String())
				if rep.Decision.Invalidate {
					decision = tui.Warning(rep.Decision.String())
					expiring++
				}
				rows = append(rows, []string{
					rep.Session.App.String(),
					tui.MaxWidth(rep.Session.ID, 40),
					rep.Session.Created().Format(time.DateTime),
					rep.Session.LastAccessed().Format(time.DateTime),
					reaper.FormatDuration(rep.Session.UsedTime()),
					reaper.FormatDuration(rep.Decision.Inactive),
					rep.Decision.Class.String() + " " + reaper.FormatDuration(rep.Decision.Threshold),
					decision,
				})
			}
			tui.Report(out, "Sessions of applications matching "+st.cfg.Pattern, listHeaders, rows)
			tui.ShowSuccess(out, "%d sessions in %d applications, %d would expire, %d could not be read",
				res.Sessions, res.Applications, expiring, res.Skipped)
			return nil
		},
	}
}
