package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/c64u/internal/compare"
)

// CompareOptions holds flags for the compare and promote commands.
type CompareOptions struct {
	*RootOptions
	GoldenDir   string
	EvidenceDir string
	Context     string
}

// NewCompareCommand creates the compare command.
func NewCompareCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompareOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare an evidence trace against a golden trace",
		Long: `Compare trace.json from the evidence directory against trace.json
from the golden directory.

The comparison is structural and order-tolerant: volatile fields (hosts,
ports, timestamps, volatile ids) are normalized away, known-noisy polling
actions collapse to one representative per signature, and matching is
unordered. Causal ordering inside each action is checked separately.

Exit code 1 means the traces differ; 2 means the comparison could not run.

Examples:
  c64u compare --golden testdata/golden/reset --evidence /tmp/run-42
  c64u compare --golden testdata/golden/reset --evidence /tmp/run-42 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.GoldenDir, "golden", "", "directory holding the golden trace.json (required)")
	_ = cmd.MarkFlagRequired("golden")
	cmd.Flags().StringVar(&opts.EvidenceDir, "evidence", "", "directory holding the recorded trace.json (required)")
	_ = cmd.MarkFlagRequired("evidence")
	cmd.Flags().StringVar(&opts.Context, "context", "trace comparison", "scenario name used in the failure report")

	return cmd
}

func runCompare(opts *CompareOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	formatter := formatterFor(opts.RootOptions, cmd)

	golden := compare.GoldenDirs{
		Override: opts.GoldenDir,
		Default:  cfg.Compare.GoldenDir,
	}.Resolve()

	res, err := compare.CompareTraceFilesWith(golden, opts.EvidenceDir, compareOptions(cfg.Compare.NoisePrefixes))
	if err != nil {
		_ = formatter.Error(ErrCodeTraceInvalid, err.Error(), nil)
		return WrapExitError(ExitCommandError, "comparison could not run", err)
	}

	if !res.Ok() {
		report := compare.FormatTraceErrors(res.Errors, opts.Context, res.Diff)
		if opts.Format == "json" {
			_ = formatter.Error(ErrCodeCompareFailed, "traces differ", res)
		} else {
			_ = formatter.Success(report)
		}
		return NewExitError(ExitFailure, "traces differ")
	}

	if opts.Format == "json" {
		return formatter.Success(res)
	}
	return formatter.Success(compare.FormatTraceErrors(nil, opts.Context, res.Diff))
}

// NewPromoteCommand creates the promote command.
func NewPromoteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompareOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Compare against the golden trace, or promote the evidence if none exists",
		Long: `If the golden directory has no trace.json yet, copy the evidence
trace there verbatim ("promotion"). Otherwise behave exactly like
compare.

Intended for golden-trace workflows: the first run of a new scenario
records the baseline, subsequent runs regress against it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPromote(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.GoldenDir, "golden", "", "directory holding (or receiving) the golden trace.json (required)")
	_ = cmd.MarkFlagRequired("golden")
	cmd.Flags().StringVar(&opts.EvidenceDir, "evidence", "", "directory holding the recorded trace.json (required)")
	_ = cmd.MarkFlagRequired("evidence")
	cmd.Flags().StringVar(&opts.Context, "context", "trace comparison", "scenario name used in the failure report")

	return cmd
}

func runPromote(opts *CompareOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	formatter := formatterFor(opts.RootOptions, cmd)

	golden := compare.GoldenDirs{
		Override:       opts.GoldenDir,
		OutputOverride: cfg.Compare.GoldenOutputDir,
	}.Resolve()

	res, promoted, err := compare.CompareOrPromoteTraceFilesWith(golden, opts.EvidenceDir, compareOptions(cfg.Compare.NoisePrefixes))
	if err != nil {
		_ = formatter.Error(ErrCodeTraceInvalid, err.Error(), nil)
		return WrapExitError(ExitCommandError, "promotion could not run", err)
	}

	if promoted {
		if opts.Format == "json" {
			return formatter.Success(map[string]any{"promoted": true, "goldenDir": golden})
		}
		return formatter.Success("promoted evidence trace to " + golden)
	}

	if !res.Ok() {
		report := compare.FormatTraceErrors(res.Errors, opts.Context, res.Diff)
		if opts.Format == "json" {
			_ = formatter.Error(ErrCodeCompareFailed, "traces differ", res)
		} else {
			_ = formatter.Success(report)
		}
		return NewExitError(ExitFailure, "traces differ")
	}

	if opts.Format == "json" {
		return formatter.Success(map[string]any{"promoted": false, "errors": res.Errors})
	}
	return formatter.Success(compare.FormatTraceErrors(nil, opts.Context, res.Diff))
}

func compareOptions(noisePrefixes []string) compare.Options {
	if len(noisePrefixes) == 0 {
		return compare.Options{}
	}
	return compare.Options{Noise: compare.NoisyByPrefixes(noisePrefixes)}
}
