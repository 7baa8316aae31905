package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sabuj-CSE11/NearbyWeather/internal/maintenance"
)

func newMaintainCommand(deps commandDeps) *cobra.Command {
	var (
		interval  time.Duration
		retention time.Duration
		once      bool
	)

	cmd := &cobra.Command{
		Use:   "maintain",
		Short: "Prune stale readings and checkpoint the store",
		Long: "maintain runs the retention sweep: weather readings older than the " +
			"retention window are pruned and the write-ahead log is checkpointed. " +
			"Without --once it keeps running on the sweep interval until interrupted.",
		Example: "  nearbyweather maintain --once\n" +
			"  nearbyweather maintain --interval 1h --retention 72h",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("maintain does not accept positional arguments")
			}

			return withServices(cmd.Context(), deps, func(ctx context.Context, svc services) error {
				sweepInterval := svc.cfg.Maintenance.SweepInterval
				if cmd.Flags().Changed("interval") {
					sweepInterval = interval
				}
				sweepRetention := svc.cfg.Maintenance.Retention
				if cmd.Flags().Changed("retention") {
					sweepRetention = retention
				}

				sweeper, err := maintenance.NewSweeper(svc.worker, sweepInterval, sweepRetention, svc.logger)
				if err != nil {
					return usageErrorf("maintain: %v", err)
				}

				if once {
					if err := sweeper.RunOnce(ctx); err != nil {
						return err
					}
					fmt.Fprintln(deps.out, "sweep complete")
					return nil
				}

				if err := sweeper.Start(); err != nil {
					return err
				}
				defer sweeper.Stop()

				waitCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				fmt.Fprintf(deps.out, "maintaining every %s (retention %s); press Ctrl-C to stop\n", sweepInterval, sweepRetention)
				<-waitCtx.Done()
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "Sweep interval (defaults to configuration)")
	cmd.Flags().DurationVar(&retention, "retention", 0, "Keep readings newer than this (defaults to configuration)")
	cmd.Flags().BoolVar(&once, "once", false, "Run a single sweep and exit")
	return cmd
}
