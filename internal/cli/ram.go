package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/c64u/internal/config"
	"github.com/roach88/c64u/internal/device"
	"github.com/roach88/c64u/internal/trace"
)

// RAMOptions holds flags for the ram subcommands.
type RAMOptions struct {
	*RootOptions
	File string
}

// deviceStack bundles the traced device components a command needs.
type deviceStack struct {
	rec   *trace.Recorder
	guard *device.Guard
}

func newDeviceStack(opts *RootOptions, cfg config.Config, cmd *cobra.Command) *deviceStack {
	logger := newLogger(opts, cmd.ErrOrStderr())
	rec := trace.NewRecorder(trace.WithLogger(logger))
	client := device.NewClient(cfg.Device, rec, logger)
	checker := device.NewChecker(client, rec, cfg.Device, logger)
	return &deviceStack{
		rec:   rec,
		guard: device.NewGuard(client, checker, rec, cfg.Device, logger),
	}
}

// NewRAMCommand creates the ram command group.
func NewRAMCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ram",
		Short: "Guarded full-RAM operations (pause, transfer, resume)",
		Long: `Bulk RAM operations against the paused machine. Every operation
runs a liveness pre-check, pauses the machine, performs the chunked
transfer, and always attempts to resume - escalating through reset and
reboot if the machine stops responding.`,
	}

	cmd.AddCommand(newRAMDumpCommand(rootOpts))
	cmd.AddCommand(newRAMLoadCommand(rootOpts))
	cmd.AddCommand(newRAMClearCommand(rootOpts))
	cmd.AddCommand(newRAMVerifyCommand(rootOpts))
	return cmd
}

func newRAMDumpCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RAMOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Dump the full RAM image to a file",
		Example: `  c64u ram dump --out snapshot.bin
  c64u ram dump --out snapshot.bin --config c64u.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.RootOptions)
			if err != nil {
				return err
			}
			stack := newDeviceStack(opts.RootOptions, cfg, cmd)
			formatter := formatterFor(opts.RootOptions, cmd)

			image, err := stack.guard.DumpFullRAM(cmd.Context())
			if err != nil {
				return deviceExitError("RAM dump failed", err)
			}
			if err := os.WriteFile(opts.File, image, 0o644); err != nil {
				return WrapExitError(ExitCommandError, "failed to write image", err)
			}
			return formatter.Success(fmt.Sprintf("dumped %d bytes to %s", len(image), opts.File))
		},
	}

	cmd.Flags().StringVar(&opts.File, "out", "", "output file for the RAM image (required)")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func newRAMLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RAMOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "load",
		Short:         "Load a full RAM image from a file",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.RootOptions)
			if err != nil {
				return err
			}
			image, err := os.ReadFile(opts.File)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read image", err)
			}
			stack := newDeviceStack(opts.RootOptions, cfg, cmd)
			formatter := formatterFor(opts.RootOptions, cmd)

			if err := stack.guard.LoadFullRAM(cmd.Context(), image); err != nil {
				return deviceExitError("RAM load failed", err)
			}
			return formatter.Success(fmt.Sprintf("loaded %d bytes from %s", len(image), opts.File))
		},
	}

	cmd.Flags().StringVar(&opts.File, "in", "", "input file holding the RAM image (required)")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

func newRAMClearCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RAMOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "clear",
		Short:         "Zero the full RAM",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.RootOptions)
			if err != nil {
				return err
			}
			stack := newDeviceStack(opts.RootOptions, cfg, cmd)
			formatter := formatterFor(opts.RootOptions, cmd)

			if err := stack.guard.ClearFullRAM(cmd.Context()); err != nil {
				return deviceExitError("RAM clear failed", err)
			}
			return formatter.Success("RAM cleared")
		},
	}
	return cmd
}

func newRAMVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RAMOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Write a test pattern, read it back, and compare",
		Long: `Round-trip verification of the RAM transfer path: writes a
deterministic pattern image, reads it back, and compares outside the
I/O register window. Exit code 1 on mismatch.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.RootOptions)
			if err != nil {
				return err
			}
			stack := newDeviceStack(opts.RootOptions, cfg, cmd)
			formatter := formatterFor(opts.RootOptions, cmd)

			result, err := stack.guard.VerifyRoundTrip(cmd.Context())
			if err != nil {
				return deviceExitError("RAM verify failed", err)
			}
			if result.Mismatches > 0 {
				_ = formatter.Error(ErrCodeRAMMismatch,
					fmt.Sprintf("%d mismatched byte(s), first at $%04X", result.Mismatches, result.FirstMismatch),
					result)
				return NewExitError(ExitFailure, "RAM round-trip mismatch")
			}
			return formatter.Success(fmt.Sprintf("verified %d bytes, no mismatches", result.BytesCompared))
		},
	}
	return cmd
}

// deviceExitError maps device failures to exit codes: a wedged device is
// an operational failure, everything else a command error.
func deviceExitError(message string, err error) error {
	if errors.Is(err, device.ErrWedged) {
		return WrapExitError(ExitFailure, message, err)
	}
	return WrapExitError(ExitCommandError, message, err)
}
