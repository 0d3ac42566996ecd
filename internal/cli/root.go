package cli

import (
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	NoColor bool

	// Store is the run store root directory.
	Store string
	// Backend selects the store backend: "fs" or "sqlite".
	Backend string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// ValidBackends defines the allowed store backends.
var ValidBackends = []string{BackendFS, BackendSQLite}

// NewRootCommand creates the root command for the arcplan CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "arcplan",
		Short: "arcplan - deliverable VMAT plan optimization",
		Long: `Optimize beamlet intensities and MLC leaf positions for a VMAT plan,
then evaluate the resulting dose against the clinical protocol.

Runs are recorded in a run store and can be inspected while they solve.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if !slices.Contains(ValidBackends, opts.Backend) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid backend %q: must be one of %v", opts.Backend, ValidBackends))
			}
			if opts.NoColor {
				color.NoColor = true
			}
			configureLogging(opts.Verbose)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVar(&opts.NoColor, "no-color", false, "disable colored output")
	cmd.PersistentFlags().StringVar(&opts.Store, "store", "runs", "run store directory")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", BackendFS, "run store backend (fs|sqlite)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewLogsCommand(opts))
	cmd.AddCommand(NewProgressCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))
	cmd.AddCommand(NewObjectivesCommand(opts))

	return cmd
}

func configureLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
