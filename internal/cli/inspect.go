package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/arcplan/internal/store"
)

// withStore opens the run store for the duration of fn.
func withStore(opts *RootOptions, fn func(st *store.RunStore) error) error {
	st, err := openStore(opts)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

// lookupError maps a store read failure to an exit error.
func lookupError(id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return WrapExitError(ExitCommandError, fmt.Sprintf("run %s not found", id), err)
	}
	return WrapExitError(ExitCommandError, "failed to read run store", err)
}

// NewStatusCommand creates the status command.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <run-id>",
		Short: "Show the status of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withStore(opts, func(st *store.RunStore) error {
				doc, err := st.Status(cmdContext(cmd), id)
				if err != nil {
					return lookupError(id, err)
				}
				out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
				data := store.Summary{ID: id, StatusDoc: doc}
				if err := out.Success(data, func(w io.Writer) { renderStatus(w, id, doc) }); err != nil {
					return err
				}
				if doc.Status == store.StatusFailed {
					return NewExitError(ExitFailure, fmt.Sprintf("run %s failed", id))
				}
				return nil
			})
		},
	}
}

// NewLogsCommand creates the logs command.
func NewLogsCommand(opts *RootOptions) *cobra.Command {
	var tail int
	cmd := &cobra.Command{
		Use:   "logs <run-id>",
		Short: "Print captured solver output of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withStore(opts, func(st *store.RunStore) error {
				ctx := cmdContext(cmd)
				if _, err := st.Status(ctx, id); err != nil {
					return lookupError(id, err)
				}
				lines, err := st.Logs(ctx, id, tail)
				if err != nil {
					return lookupError(id, err)
				}
				out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
				return out.Success(lines, func(w io.Writer) {
					for _, l := range lines {
						fmt.Fprintln(w, l)
					}
				})
			})
		},
	}
	cmd.Flags().IntVarP(&tail, "tail", "n", store.DefaultMaxTail, "number of lines (0 for all)")
	return cmd
}

// NewShowCommand creates the show command.
func NewShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the stored record of a run: trace, plan, metrics, clinical criteria",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withStore(opts, func(st *store.RunStore) error {
				rec, err := st.Load(cmdContext(cmd), id)
				if err != nil {
					return lookupError(id, err)
				}
				out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
				return out.Success(rec, func(w io.Writer) { renderRecord(w, rec) })
			})
		},
	}
}

// NewListCommand creates the list command.
func NewListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List runs in the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, func(st *store.RunStore) error {
				runs, err := st.List(cmdContext(cmd))
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to list runs", err)
				}
				out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
				return out.Success(runs, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
					fmt.Fprintln(tw, "RUN ID\tSTATUS\tUPDATED")
					for _, r := range runs {
						fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ID, statusText(r.Status), r.Timestamp)
					}
					tw.Flush()
				})
			})
		},
	}
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
