package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cascade-build/cascade/internal/journal"
)

// PassesResult holds recorded passes for one package.
type PassesResult struct {
	Package string         `json:"package"`
	Passes  []PassSummary  `json:"passes"`
	Events  []journal.Event `json:"events,omitempty"`
}

// PassSummary is one pass, flattened for output.
type PassSummary struct {
	Token      string `json:"token"`
	BeginSeq   int64  `json:"begin_seq"`
	FinishSeq  int64  `json:"finish_seq,omitempty"`
	Settled    bool   `json:"settled"`
	ErrorCount int    `json:"error_count"`
}

// String renders the result as stable text.
func (r *PassesResult) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "package %s: %d pass(es)", r.Package, len(r.Passes))
	for _, p := range r.Passes {
		status := "running"
		if p.Settled {
			status = fmt.Sprintf("settled, %d error(s)", p.ErrorCount)
		}
		fmt.Fprintf(&sb, "\n  %s seq=%d %s", p.Token, p.BeginSeq, status)
	}
	for _, e := range r.Events {
		switch e.Kind {
		case "error":
			fmt.Fprintf(&sb, "\n    seq=%d error: %s", e.Seq, e.Message)
		default:
			fmt.Fprintf(&sb, "\n    seq=%d %s %s", e.Seq, e.Kind, e.AssetID)
		}
	}
	return sb.String()
}

// NewPassesCommand creates the passes command.
func NewPassesCommand(rootOpts *RootOptions) *cobra.Command {
	var withEvents bool

	cmd := &cobra.Command{
		Use:   "passes <journal> <package>",
		Short: "List recorded build passes for a package",
		Long: `Read the pass journal and list every recorded build pass for a
package, in logical-clock order. With --events, also list the asset and
error events of each pass.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPasses(rootOpts, args[0], args[1], withEvents, cmd)
		},
	}

	cmd.Flags().BoolVar(&withEvents, "events", false, "include per-pass events")

	return cmd
}

func runPasses(opts *RootOptions, journalPath, pkg string, withEvents bool, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	j, err := journal.Open(journalPath)
	if err != nil {
		formatter.Error(ErrCodeJournal, err.Error(), nil)
		return WrapExitError(ExitCommandError, "journal", err)
	}
	defer j.Close()

	passes, err := j.ListPasses(cmd.Context(), pkg)
	if err != nil {
		formatter.Error(ErrCodeJournal, err.Error(), nil)
		return WrapExitError(ExitCommandError, "journal", err)
	}

	result := &PassesResult{Package: pkg, Passes: []PassSummary{}}
	for _, p := range passes {
		s := PassSummary{
			Token:      p.Token,
			BeginSeq:   p.BeginSeq,
			ErrorCount: p.ErrorCount,
		}
		if p.FinishSeq.Valid {
			s.FinishSeq = p.FinishSeq.Int64
			s.Settled = true
		}
		result.Passes = append(result.Passes, s)

		if withEvents {
			events, err := j.ReadPass(cmd.Context(), p.Token)
			if err != nil {
				formatter.Error(ErrCodeJournal, err.Error(), nil)
				return WrapExitError(ExitCommandError, "journal", err)
			}
			result.Events = append(result.Events, events...)
		}
	}

	return formatter.Success(result)
}
