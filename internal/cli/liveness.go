package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/c64u/internal/device"
	"github.com/roach88/c64u/internal/trace"
)

// NewLivenessCommand creates the liveness command.
func NewLivenessCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "liveness",
		Short: "Probe whether the machine is actually running",
		Long: `Samples the jiffy clock twice across a short window and, if it is
frozen, polls the raster counter:

  healthy      the jiffy clock advanced (interrupts are being serviced)
  irq-stalled  jiffies frozen but the raster moves (video alive, IRQs not)
  wedged       neither moves (machine is not executing)

Exit code 0 for healthy, 1 otherwise.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			logger := newLogger(rootOpts, cmd.ErrOrStderr())
			rec := trace.NewRecorder(trace.WithLogger(logger))
			client := device.NewClient(cfg.Device, rec, logger)
			checker := device.NewChecker(client, rec, cfg.Device, logger)
			formatter := formatterFor(rootOpts, cmd)

			sample, err := checker.Check(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "liveness check failed", err)
			}

			if rootOpts.Format == "json" {
				if err := formatter.Success(sample); err != nil {
					return err
				}
			} else {
				if err := formatter.Success(fmt.Sprintf("machine is %s", sample.Decision)); err != nil {
					return err
				}
			}
			if sample.Decision != device.DecisionHealthy {
				return NewExitError(ExitFailure, fmt.Sprintf("machine is %s", sample.Decision))
			}
			return nil
		},
	}
	return cmd
}
