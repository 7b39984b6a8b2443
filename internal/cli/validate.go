package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cascade-build/cascade/internal/config"
	"github.com/cascade-build/cascade/internal/transform"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Packages []string `json:"packages,omitempty"`
	Order    []string `json:"order,omitempty"`
}

// String renders the result as stable text.
func (r *ValidationResult) String() string {
	if !r.Valid {
		return "manifest invalid"
	}
	s := fmt.Sprintf("manifest ok: %d package(s)", len(r.Packages))
	if len(r.Order) > 0 {
		s += "\nbuild order:"
		for _, name := range r.Order {
			s += "\n  " + name
		}
	}
	return s
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <manifest>",
		Short: "Validate a manifest without building",
		Long: `Validate a build manifest without running any transforms.

Checks YAML structure, the embedded schema, referential consistency
(dependency targets, duplicate names), transformer parameters, and that
the dependency graph is acyclic.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, manifestPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	m, err := config.Load(manifestPath)
	if err != nil {
		formatter.Error(ErrCodeManifest, err.Error(), nil)
		return WrapExitError(ExitFailure, "validate", err)
	}

	order, err := m.TopoOrder()
	if err != nil {
		formatter.Error(ErrCodeManifest, err.Error(), nil)
		return WrapExitError(ExitFailure, "validate", err)
	}

	// Transformer parameters are checked by construction, without
	// touching any cascade.
	for _, p := range m.Packages {
		if _, err := transform.BuildPipeline(p.Phases); err != nil {
			err = fmt.Errorf("package %q: %w", p.Name, err)
			formatter.Error(ErrCodeManifest, err.Error(), nil)
			return WrapExitError(ExitFailure, "validate", err)
		}
	}

	result := &ValidationResult{Valid: true, Order: order}
	for _, p := range m.Packages {
		result.Packages = append(result.Packages, p.Name)
	}
	return formatter.Success(result)
}
