package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"newspenguin/cli/control"
)

func newOnceCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run the synchronizer once and print the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := e.cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			store, err := e.store(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			res, runErr := e.synchronizer(store, nil).Run(cmd.Context())
			out, err := json.MarshalIndent(control.NewRunReport(res, runErr), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return runErr
		},
	}
}
