package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"newspenguin/app"
	"newspenguin/cli/control"
)

func newTriggerCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "trigger",
		Short: "Ask the running instance to sync now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := control.NewClient(e.cfg.ControlAddr).Trigger(cmd.Context())
			if err != nil {
				return fmt.Errorf("could not trigger run: %w", err)
			}
			out, err := json.MarshalIndent(r, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func newSetScheduleCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "set-schedule EXPR",
		Short: `Change the schedule of the running instance, e.g. "@every 5m" or "*/10 * * * *"`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := strings.Join(args, " ")
			if err := app.ValidateSchedule(spec); err != nil {
				return err
			}
			old, err := control.NewClient(e.cfg.ControlAddr).SetSchedule(cmd.Context(), spec)
			if err != nil {
				return fmt.Errorf("could not set schedule: %w", err)
			}
			if old == spec {
				fmt.Fprintf(cmd.OutOrStdout(), "Schedule is already %s (no change)\n", spec)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schedule changed from %s to %s\n", old, spec)
			return nil
		},
	}
}
