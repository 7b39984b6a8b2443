package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cascade-build/cascade/internal/asset"
	"github.com/cascade-build/cascade/internal/config"
	"github.com/cascade-build/cascade/internal/engine"
	"github.com/cascade-build/cascade/internal/graph"
	"github.com/cascade-build/cascade/internal/journal"
	"github.com/cascade-build/cascade/internal/transform"
)

// BuildOptions holds flags for the build command.
type BuildOptions struct {
	OutDir  string
	Journal string
}

// BuildReport summarizes one build across all packages.
type BuildReport struct {
	Packages []PackageReport `json:"packages"`
}

// PackageReport is one package's build outcome.
type PackageReport struct {
	Name   string        `json:"name"`
	Assets []AssetReport `json:"assets,omitempty"`
	Errors []string      `json:"errors,omitempty"`
}

// AssetReport is one output asset.
type AssetReport struct {
	Path string `json:"path"`
	Size int    `json:"size"`
}

// Failed reports whether any package had errors.
func (r *BuildReport) Failed() bool {
	for _, p := range r.Packages {
		if len(p.Errors) > 0 {
			return true
		}
	}
	return false
}

// String renders the report as stable, line-oriented text.
func (r *BuildReport) String() string {
	var sb strings.Builder
	for _, p := range r.Packages {
		fmt.Fprintf(&sb, "package %s\n", p.Name)
		for _, a := range p.Assets {
			fmt.Fprintf(&sb, "  %s (%d bytes)\n", a.Path, a.Size)
		}
		for _, e := range p.Errors {
			fmt.Fprintf(&sb, "  error: %s\n", e)
		}
	}
	if r.Failed() {
		sb.WriteString("build failed\n")
	} else {
		sb.WriteString("build ok\n")
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildOptions{}

	cmd := &cobra.Command{
		Use:   "build <manifest>",
		Short: "Run a full build of every package in the manifest",
		Long: `Run all packages in the manifest to settlement, in dependency order.

Each package's sources are loaded from its root directory, pushed
through its transform phases, and the settled outputs are reported
(and written to --out, if given). A package's settled outputs feed the
packages that depend on it.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.OutDir, "out", "", "directory to write settled outputs to")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to the pass journal database (overrides manifest)")

	return cmd
}

func runBuild(rootOpts *RootOptions, opts *BuildOptions, manifestPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}

	m, err := config.Load(manifestPath)
	if err != nil {
		formatter.Error(ErrCodeManifest, err.Error(), nil)
		return WrapExitError(ExitCommandError, "manifest", err)
	}

	order, err := m.TopoOrder()
	if err != nil {
		formatter.Error(ErrCodeManifest, err.Error(), nil)
		return WrapExitError(ExitCommandError, "manifest", err)
	}

	journalPath := opts.Journal
	if journalPath == "" {
		journalPath = m.Journal
	}
	var rec *journal.Journal
	if journalPath != "" {
		rec, err = journal.Open(journalPath)
		if err != nil {
			formatter.Error(ErrCodeJournal, err.Error(), nil)
			return WrapExitError(ExitCommandError, "journal", err)
		}
		defer rec.Close()
	}

	report, settled, err := executeBuild(cmd.Context(), m, order, rec, formatter)
	if err != nil {
		formatter.Error(ErrCodeBuild, err.Error(), nil)
		return WrapExitError(ExitCommandError, "build", err)
	}

	if opts.OutDir != "" {
		for pkg, assets := range settled {
			if err := writeAssets(filepath.Join(opts.OutDir, pkg), assets); err != nil {
				formatter.Error(ErrCodeIO, err.Error(), nil)
				return WrapExitError(ExitCommandError, "write outputs", err)
			}
		}
	}

	if err := formatter.Success(report); err != nil {
		return err
	}
	if report.Failed() {
		return NewExitError(ExitFailure, "build failed")
	}
	return nil
}

// executeBuild runs every package to settlement in dependency order and
// snapshots the results. Dependency outputs are pushed explicitly after
// the upstream package settles, so the report is deterministic.
func executeBuild(ctx context.Context, m *config.Manifest, order []string, rec *journal.Journal, formatter *OutputFormatter) (*BuildReport, map[string][]*asset.Asset, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g := graph.New()
	pkgs := make(map[string]config.PackageConfig, len(m.Packages))

	for _, pc := range m.Packages {
		pkgs[pc.Name] = pc

		var provider engine.ContentProvider
		var dir *DirProvider
		if pc.Root != "" {
			dir = NewDirProvider(pc.Name, pc.Root)
			provider = dir
		} else {
			provider = emptyProvider{}
		}

		var cascadeOpts []engine.Option
		if rec != nil {
			cascadeOpts = append(cascadeOpts, engine.WithRecorder(rec))
		}
		c := engine.New(pc.Name, provider, cascadeOpts...)

		pipeline, err := transform.BuildPipeline(pc.Phases)
		if err != nil {
			return nil, nil, fmt.Errorf("package %q: %w", pc.Name, err)
		}
		if err := c.UpdateTransformers(pipeline); err != nil {
			return nil, nil, fmt.Errorf("package %q: %w", pc.Name, err)
		}

		if dir != nil {
			ids, err := dir.ScanSources()
			if err != nil {
				return nil, nil, fmt.Errorf("package %q: scan sources: %w", pc.Name, err)
			}
			formatter.VerboseLog("package %s: %d source(s)", pc.Name, len(ids))
			if err := c.UpdateSources(ids...); err != nil {
				return nil, nil, fmt.Errorf("package %q: %w", pc.Name, err)
			}
		}

		if err := g.AddPackage(c, pc.DependsOn...); err != nil {
			return nil, nil, err
		}
	}

	runDone := make(chan error, 1)
	go func() {
		runDone <- g.Run(ctx)
	}()

	report := &BuildReport{}
	settled := make(map[string][]*asset.Asset, len(order))

	for _, name := range order {
		c := g.Cascade(name)

		// Feed settled dependency outputs before awaiting this package,
		// so its first settlement already reflects them.
		for _, dep := range pkgs[name].DependsOn {
			if push := settled[dep]; len(push) > 0 {
				if err := c.UpdateExternalAssets(push...); err != nil {
					return nil, nil, fmt.Errorf("package %q: %w", name, err)
				}
			}
		}

		pr := PackageReport{Name: name}
		assets, err := c.GetAllAssets(ctx)
		if err != nil {
			pr.Errors = flattenErrors(err)
		} else {
			settled[name] = assets
			for _, a := range assets {
				pr.Assets = append(pr.Assets, AssetReport{Path: a.ID().Path, Size: len(a.Bytes())})
			}
		}
		report.Packages = append(report.Packages, pr)
	}

	g.Stop()
	cancel()
	<-runDone

	return report, settled, nil
}

// flattenErrors expands a bundled settlement error into one message per
// underlying failure.
func flattenErrors(err error) []string {
	var agg *engine.AggregateError
	if errors.As(err, &agg) {
		msgs := make([]string, len(agg.Errors))
		for i, e := range agg.Errors {
			msgs[i] = e.Error()
		}
		return msgs
	}
	return []string{err.Error()}
}

// writeAssets writes one package's settled assets under dir.
func writeAssets(dir string, assets []*asset.Asset) error {
	for _, a := range assets {
		path := filepath.Join(dir, filepath.FromSlash(a.ID().Path))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, a.Bytes(), 0o644); err != nil {
			return err
		}
	}
	return nil
}
