package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/arcplan/internal/config"
	"github.com/roach88/arcplan/internal/protocol"
)

// NewConfigCommand creates the config command.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	var flags ConfigFlags
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the resolved run configuration",
		Long: `Merge overrides onto the defaults, validate the result, and print it
together with the run id prefix it hashes to.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			override, err := flags.overrides()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid config", err)
			}
			cfg, err := config.Resolve(override)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid config", err)
			}
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return out.Success(cfg, func(w io.Writer) {
				data, _ := json.MarshalIndent(cfg, "", "  ")
				fmt.Fprintln(w, string(data))
			})
		},
	}
	cmd.Flags().StringVarP(&flags.File, "config", "c", "", "YAML or JSON config override file")
	cmd.Flags().StringArrayVar(&flags.Set, "set", nil, "config override key=value (repeatable)")
	return cmd
}

// NewObjectivesCommand creates the objectives command.
func NewObjectivesCommand(rootOpts *RootOptions) *cobra.Command {
	var flags ConfigFlags
	cmd := &cobra.Command{
		Use:   "objectives",
		Short: "Print the default objective schema of the configured protocol",
		Long: `Print the objective functions of the configured VMAT protocol as
editable entries: structure, type, weight, role, and target dose.
Overrides in objective_overrides can then be written against it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			override, err := flags.overrides()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid config", err)
			}
			cfg, err := config.Resolve(override)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid config", err)
			}
			src := protocol.NewDirSource(cfg.ProtocolDir)
			params, err := src.OptimizationParams(cfg.OptimizationProtocol())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load protocol", err)
			}
			schema := protocol.DefaultSchema(protocol.DisableSmoothness(params.Objectives))

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return out.Success(schema, func(w io.Writer) { renderSchema(w, schema) })
		},
	}
	cmd.Flags().StringVarP(&flags.File, "config", "c", "", "YAML or JSON config override file")
	cmd.Flags().StringArrayVar(&flags.Set, "set", nil, "config override key=value (repeatable)")
	return cmd
}
