package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/c64u/internal/store"
	"github.com/roach88/c64u/internal/trace"
)

// SessionsOptions holds flags for the sessions subcommands.
type SessionsOptions struct {
	*RootOptions
	Database string
	Session  string
	Out      string
}

// NewSessionsCommand creates the sessions command group over the trace
// session database.
func NewSessionsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect persisted trace sessions",
		Long: `Work with the SQLite trace session log the debug bridge writes:
list recorded sessions, show a session's events, or export a session as
a trace.json usable with compare and promote.`,
	}

	cmd.AddCommand(newSessionsListCommand(rootOpts))
	cmd.AddCommand(newSessionsShowCommand(rootOpts))
	cmd.AddCommand(newSessionsExportCommand(rootOpts))
	return cmd
}

func openSessionStore(opts *SessionsOptions) (*store.Store, error) {
	if _, err := os.Stat(opts.Database); err != nil {
		return nil, WrapExitError(ExitCommandError, "trace database not found", err)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open trace database", err)
	}
	return st, nil
}

func newSessionsListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List recorded sessions, newest first",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openSessionStore(opts)
			if err != nil {
				return err
			}
			defer st.Close()
			formatter := formatterFor(opts.RootOptions, cmd)

			sessions, err := st.Sessions(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list sessions", err)
			}

			if opts.Format == "json" {
				return formatter.Success(sessions)
			}
			var b strings.Builder
			fmt.Fprintf(&b, "%d session(s)", len(sessions))
			for _, s := range sessions {
				fmt.Fprintf(&b, "\n%s  %s  %4d event(s)  %s",
					s.ID, s.StartedAt.Format("2006-01-02 15:04:05"), s.EventCount, s.Label)
			}
			return formatter.Success(b.String())
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the trace session database (required)")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}

func newSessionsShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "show",
		Short:         "Print a session's events in canonical trace order",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openSessionStore(opts)
			if err != nil {
				return err
			}
			defer st.Close()
			formatter := formatterFor(opts.RootOptions, cmd)

			events, err := st.SessionEvents(cmd.Context(), opts.Session)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load session", err)
			}

			if opts.Format == "json" {
				return formatter.Success(events)
			}
			var b strings.Builder
			fmt.Fprintf(&b, "%d event(s)", len(events))
			for _, ev := range events {
				fmt.Fprintf(&b, "\n%s  %6dms  %-14s  %s", ev.ID, ev.RelativeMs, ev.Type, ev.CorrelationID)
			}
			return formatter.Success(b.String())
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the trace session database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session id (required)")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func newSessionsExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "export",
		Short:         "Write a session as trace.json",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openSessionStore(opts)
			if err != nil {
				return err
			}
			defer st.Close()
			formatter := formatterFor(opts.RootOptions, cmd)

			events, err := st.SessionEvents(cmd.Context(), opts.Session)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load session", err)
			}
			raw, err := trace.MarshalEvents(events)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to serialize session", err)
			}
			if err := os.WriteFile(opts.Out, raw, 0o644); err != nil {
				return WrapExitError(ExitCommandError, "failed to write trace file", err)
			}
			return formatter.Success(fmt.Sprintf("wrote %d event(s) to %s", len(events), opts.Out))
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the trace session database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session id (required)")
	_ = cmd.MarkFlagRequired("session")
	cmd.Flags().StringVar(&opts.Out, "out", "trace.json", "output file")
	return cmd
}
