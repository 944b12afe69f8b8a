package main

import (
	"github.com/agentuity/session-reaper/tui"
	"github.com/spf13/cobra"
)

func newAppsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "apps",
		Short: "Show the applications the reaper would process",
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
			rows := make([][]string, 0, len(apps))
			for _, app := range apps {
				rows = append(rows, []string{app.String(), app.Handle})
			}
			tui.Report(out, "Applications matching "+st.cfg.Pattern, []string{"APPLICATION", "HANDLE"}, rows)
			return nil
		},
	}
}
