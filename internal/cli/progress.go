package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/roach88/arcplan/internal/notify"
	"github.com/roach88/arcplan/internal/store"
)

// ProgressOptions holds flags for the progress command.
type ProgressOptions struct {
	*RootOptions
	Tail     int
	Follow   bool
	RedisURL string
}

// NewProgressCommand creates the progress command.
func NewProgressCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProgressOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "progress <run-id>",
		Short: "Print solver progress samples of a run",
		Long: `Print the stored progress samples of a run.

With --follow, keep printing samples published to Redis by the running
process until the run reaches a terminal status.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showProgress(opts, cmd, args[0])
		},
	}
	cmd.Flags().IntVarP(&opts.Tail, "tail", "n", store.DefaultMaxTail, "number of stored samples (0 for all)")
	cmd.Flags().BoolVarP(&opts.Follow, "follow", "f", false, "follow live samples over Redis")
	cmd.Flags().StringVar(&opts.RedisURL, "redis-url", os.Getenv("ARCPLAN_REDIS_URL"), "Redis URL for --follow")
	return cmd
}

func showProgress(opts *ProgressOptions, cmd *cobra.Command, id string) error {
	ctx := cmdContext(cmd)
	st, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	doc, err := st.Status(ctx, id)
	if err != nil {
		return lookupError(id, err)
	}
	samples, err := st.Progress(ctx, id, opts.Tail)
	if err != nil {
		return lookupError(id, err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if !opts.Follow || doc.Status.Terminal() {
		return out.Success(samples, func(w io.Writer) { renderSamples(w, samples) })
	}
	if opts.RedisURL == "" {
		return NewExitError(ExitCommandError, "--follow requires --redis-url or ARCPLAN_REDIS_URL")
	}
	return follow(ctx, opts, cmd.OutOrStdout(), st, id)
}

// follow streams events until a terminal status arrives. JSON output is one
// event per line.
func follow(ctx context.Context, opts *ProgressOptions, w io.Writer, st *store.RunStore, id string) error {
	ropts, err := redis.ParseURL(opts.RedisURL)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid redis url", err)
	}
	client := redis.NewClient(ropts)
	defer client.Close()

	events, err := notify.Subscribe(ctx, client, id)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to subscribe", err)
	}
	// The run may have finished before the subscription was live.
	if doc, err := st.Status(ctx, id); err == nil && doc.Status.Terminal() {
		fmt.Fprintf(w, "status: %s\n", statusText(doc.Status))
		return nil
	}

	enc := json.NewEncoder(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()
	for ev := range events {
		if opts.Format == "json" {
			if err := enc.Encode(ev); err != nil {
				return err
			}
		} else if ev.Sample != nil {
			renderSample(tw, *ev.Sample)
			tw.Flush()
		}
		if ev.Kind != notify.KindStatus {
			continue
		}
		status := store.Status(ev.Status)
		if opts.Format != "json" {
			fmt.Fprintf(w, "status: %s\n", statusText(status))
		}
		if status.Terminal() {
			if status == store.StatusFailed {
				return NewExitError(ExitFailure, fmt.Sprintf("run %s failed: %s", id, ev.Error))
			}
			return nil
		}
	}
	return ctx.Err()
}
