package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"newspenguin/app"
	"newspenguin/domain"
)

func newStatusCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored watermark and lease",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := e.store(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			now := e.now()
			st, err := app.ReadState(cmd.Context(), store, e.cfg.AppKey, e.cfg.LeaseStaleAfter, now)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "App key:   %s\n", st.AppKey)
			if st.Watermark == nil {
				fmt.Fprintln(out, "Watermark: none (next run bootstraps)")
			} else {
				fmt.Fprintf(out, "Watermark: %s\n", domain.FormatTimestamp(*st.Watermark))
			}
			switch {
			case st.Lease == nil:
				fmt.Fprintln(out, "Lease:     free")
			case st.LeaseLive:
				fmt.Fprintf(out, "Lease:     held by %s for %s\n", st.Lease.Holder, st.Lease.Age(now).Round(time.Second))
			default:
				fmt.Fprintf(out, "Lease:     stale, held by %s for %s (next run reclaims it)\n", st.Lease.Holder, st.Lease.Age(now).Round(time.Second))
			}
			return nil
		},
	}
}

func newReleaseCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "release",
		Short: "Delete the lease regardless of its holder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := e.store(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			if err := app.NewLeaseManager(store, e.cfg.LeaseStaleAfter, e.logger).Release(cmd.Context(), app.LeaseKey(e.cfg.AppKey)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Lease %s released\n", app.LeaseKey(e.cfg.AppKey))
			return nil
		},
	}
}

func newWatermarkCmd(e *env) *cobra.Command {
	wm := &cobra.Command{
		Use:   "watermark",
		Short: "Inspect or override the watermark",
	}
	wm.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the stored watermark",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := e.store(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			st, err := app.ReadState(cmd.Context(), store, e.cfg.AppKey, e.cfg.LeaseStaleAfter, e.now())
			if err != nil {
				return err
			}
			if st.Watermark == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "none")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), domain.FormatTimestamp(*st.Watermark))
			return nil
		},
	})
	wm.AddCommand(&cobra.Command{
		Use:   "set TIMESTAMP",
		Short: `Overwrite the watermark, e.g. "2024-05-01 12:00:00"`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := domain.ParseTimestamp(strings.Join(args, " "))
			if err != nil {
				return err
			}
			store, err := e.store(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			if err := app.OverrideWatermark(cmd.Context(), store, e.cfg.AppKey, ts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Watermark set to %s\n", domain.FormatTimestamp(ts))
			return nil
		},
	})
	return wm
}
