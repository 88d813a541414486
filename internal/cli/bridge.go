package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/c64u/internal/bridge"
	"github.com/roach88/c64u/internal/store"
	"github.com/roach88/c64u/internal/trace"
)

// BridgeOptions holds flags for the bridge command.
type BridgeOptions struct {
	*RootOptions
	Listen   string
	Database string
}

// NewBridgeCommand creates the bridge command.
func NewBridgeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BridgeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Serve the debug bridge for host automation",
		Long: `Runs the local debug bridge: trace retrieval and export, id and
session resets, and a websocket stream of live events. Browser
automation uses it to get deterministic traces out of a running client.

The bridge has no authentication; bind it to loopback only.

Examples:
  c64u bridge
  c64u bridge --listen 127.0.0.1:4664 --db ./traces.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.RootOptions)
			if err != nil {
				return err
			}
			listen := opts.Listen
			if listen == "" {
				listen = cfg.Bridge.Listen
			}

			logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
			rec := trace.NewRecorder(trace.WithLogger(logger))

			var st *store.Store
			if opts.Database != "" {
				st, err = store.Open(opts.Database)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to open trace database", err)
				}
				defer st.Close()
			}

			b := bridge.New(rec, st, logger)
			if err := b.Serve(cmd.Context(), listen); err != nil {
				return WrapExitError(ExitCommandError, "bridge failed", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (defaults to bridge.listen from config)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "persist events to this SQLite database")
	return cmd
}
