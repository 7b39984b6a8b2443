package transform

import (
	"context"
	"fmt"
	"strings"

	"github.com/cascade-build/cascade/internal/asset"
	"github.com/cascade-build/cascade/internal/engine"
)

// RenameExt re-emits each asset with extension From under the same path
// with extension To. The original asset still passes through; the
// pipeline's output contains both.
//
// RenameExt declares its output up front, so downstream consumers see
// the target ID as a dirty node before the content exists. With Lazy
// set, the content is only computed when something forces the output.
type RenameExt struct {
	From string
	To   string
	Lazy bool
}

// NewRenameExt builds a RenameExt for the given extensions, which must
// include the leading dot and differ from each other.
func NewRenameExt(from, to string, lazy bool) (*RenameExt, error) {
	if !strings.HasPrefix(from, ".") || !strings.HasPrefix(to, ".") {
		return nil, fmt.Errorf("rename_ext: extensions must start with a dot: %q -> %q", from, to)
	}
	if from == to {
		return nil, fmt.Errorf("rename_ext: from and to must differ: %q", from)
	}
	return &RenameExt{From: from, To: to, Lazy: lazy}, nil
}

func (t *RenameExt) Name() string {
	return fmt.Sprintf("rename_ext(%s->%s)", t.From, t.To)
}

func (t *RenameExt) CanTransform(id asset.ID) bool {
	return id.Extension() == t.From
}

func (t *RenameExt) DeclareOutputs(primary asset.ID) []asset.ID {
	return []asset.ID{primary.ChangeExtension(t.To)}
}

func (t *RenameExt) Deferred() bool {
	return t.Lazy
}

func (t *RenameExt) Apply(ctx context.Context, tc *engine.TransformContext) error {
	p := tc.Primary()
	tc.EmitBytes(p.ID().ChangeExtension(t.To), p.Bytes())
	return nil
}

// caseTransform overwrites matching assets in place: the output carries
// the primary's own ID, taking over its pass-through slot.
type caseTransform struct {
	match string
	upper bool
}

// NewUppercase builds a transformer that uppercases the content of
// every asset with the given extension.
func NewUppercase(match string) (engine.Transformer, error) {
	return newCaseTransform(match, true)
}

// NewLowercase builds a transformer that lowercases the content of
// every asset with the given extension.
func NewLowercase(match string) (engine.Transformer, error) {
	return newCaseTransform(match, false)
}

func newCaseTransform(match string, upper bool) (engine.Transformer, error) {
	if !strings.HasPrefix(match, ".") {
		return nil, fmt.Errorf("case transform: extension must start with a dot: %q", match)
	}
	return &caseTransform{match: match, upper: upper}, nil
}

func (t *caseTransform) Name() string {
	if t.upper {
		return fmt.Sprintf("uppercase(%s)", t.match)
	}
	return fmt.Sprintf("lowercase(%s)", t.match)
}

func (t *caseTransform) CanTransform(id asset.ID) bool {
	return id.Extension() == t.match
}

func (t *caseTransform) Apply(ctx context.Context, tc *engine.TransformContext) error {
	p := tc.Primary()
	text := p.Text()
	if t.upper {
		text = strings.ToUpper(text)
	} else {
		text = strings.ToLower(text)
	}
	tc.EmitAsset(asset.FromString(p.ID(), text))
	return nil
}

// ConcatDir aggregates every asset in one directory into a single
// output, concatenated in ID order with a trailing newline per member.
type ConcatDir struct {
	Dir    string
	Output string
}

// NewConcatDir builds a ConcatDir for the given source directory and
// output path.
func NewConcatDir(dir, output string) (*ConcatDir, error) {
	if dir == "" || output == "" {
		return nil, fmt.Errorf("concat_dir: dir and output are required")
	}
	return &ConcatDir{Dir: dir, Output: output}, nil
}

func (t *ConcatDir) Name() string {
	return fmt.Sprintf("concat_dir(%s)", t.Dir)
}

func (t *ConcatDir) CanTransform(id asset.ID) bool {
	_, ok := t.ClassifyPrimary(id)
	return ok
}

func (t *ConcatDir) ClassifyPrimary(id asset.ID) (string, bool) {
	if id.Dir() != t.Dir {
		return "", false
	}
	return t.Dir, true
}

func (t *ConcatDir) Apply(ctx context.Context, tc *engine.TransformContext) error {
	var sb strings.Builder
	for _, a := range tc.Group() {
		sb.Write(a.Bytes())
		if n := len(a.Bytes()); n == 0 || a.Bytes()[n-1] != '\n' {
			sb.WriteByte('\n')
		}
	}
	out := asset.NewID(tc.Primary().ID().Package, t.Output)
	tc.EmitBytes(out, []byte(sb.String()))
	return nil
}
