package cli

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(newConfigDumpCommand(rootOpts))
	return cmd
}

func newConfigDumpCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the resolved configuration (defaults overlaid with the config file)",
		Example: `  c64u config dump
  c64u config dump --config c64u.yaml --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			formatter := formatterFor(rootOpts, cmd)

			if rootOpts.Format == "json" {
				return formatter.Success(cfg)
			}
			raw, err := yaml.Marshal(cfg)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to render config", err)
			}
			return formatter.Success(string(raw))
		},
	}
	return cmd
}
