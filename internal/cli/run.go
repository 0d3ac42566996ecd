package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/arcplan/internal/notify"
	"github.com/roach88/arcplan/internal/pipeline"
	"github.com/roach88/arcplan/internal/solver"
	"github.com/roach88/arcplan/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ConfigFlags

	PTY         bool
	ScratchDir  string
	KeepScratch bool
	MOSEKBin    string
	HiGHSBin    string
	RedisURL    string

	// Solvers overrides the solver registry (for testing).
	Solvers solver.Registry
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Optimize a plan and wait for the result",
		Long: `Resolve the run configuration, record a queued run, and execute it.

Solver output is captured into the run log and parsed into progress samples
while the solve runs. Other processes can poll the run with "status",
"logs" and "progress", or follow it live when --redis-url is set.

Example:
  arcplan run --config lung6.yaml
  arcplan run --set patient_id=Lung_Patient_7 --set beam_ids=[0,24,48]
  arcplan run --backend sqlite --store /var/lib/arcplan --redis-url redis://localhost:6379/0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "config", "c", "", "YAML or JSON config override file")
	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "config override key=value (repeatable)")
	cmd.Flags().BoolVar(&opts.PTY, "pty", false, "attach the solver to a pseudo-terminal")
	cmd.Flags().StringVar(&opts.ScratchDir, "scratch-dir", "", "parent directory for solver scratch files")
	cmd.Flags().BoolVar(&opts.KeepScratch, "keep-scratch", false, "keep solver scratch directories")
	cmd.Flags().StringVar(&opts.MOSEKBin, "mosek-bin", "", "MOSEK command-line binary (default: mosek on PATH)")
	cmd.Flags().StringVar(&opts.HiGHSBin, "highs-bin", "", "HiGHS command-line binary (default: highs on PATH)")
	cmd.Flags().StringVar(&opts.RedisURL, "redis-url", os.Getenv("ARCPLAN_REDIS_URL"), "publish progress to Redis")

	return cmd
}

func runPlan(opts *RunOptions, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	override, err := opts.overrides()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}

	st, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing run store", "error", closeErr)
		}
	}()

	reg := opts.Solvers
	if reg == nil {
		reg = solver.Registry{}
		reg.Register(solver.NewMOSEK(opts.MOSEKBin))
		reg.Register(solver.NewHiGHS(opts.HiGHSBin))
	}
	orch := solver.NewOrchestrator(reg, opts.ScratchDir)
	orch.KeepScratch = opts.KeepScratch

	p := pipeline.New(st, orch)
	p.PTY = opts.PTY
	if opts.RedisURL != "" {
		pub, err := notify.NewPublisher(notify.Config{RedisURL: opts.RedisURL})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to connect to redis", err)
		}
		defer pub.Close()
		p.Publisher = pub
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	d := pipeline.NewDispatcher(p)
	id, err := d.Submit(ctx, override)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to submit run", err)
	}
	slog.Info("run submitted", "run_id", id)
	d.Close()

	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "dispatcher error", err)
	}

	rec, err := st.Load(context.Background(), id)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load run", err)
	}
	if err := out.Success(rec, func(w io.Writer) { renderRecord(w, rec) }); err != nil {
		return err
	}
	switch rec.Status.Status {
	case store.StatusCompleted:
		return nil
	case store.StatusFailed:
		return NewExitError(ExitFailure, fmt.Sprintf("run %s failed: %s", id, rec.Status.Error))
	default:
		return NewExitError(ExitFailure, fmt.Sprintf("run %s interrupted in status %s", id, rec.Status.Status))
	}
}
