package transform

import (
	"fmt"

	"github.com/cascade-build/cascade/internal/config"
	"github.com/cascade-build/cascade/internal/engine"
)

// Build constructs the transformer a manifest spec describes.
func Build(spec config.TransformSpec) (engine.Transformer, error) {
	switch spec.Kind {
	case config.KindRenameExt:
		return NewRenameExt(spec.From, spec.To, spec.Lazy)
	case config.KindUppercase:
		return NewUppercase(spec.Match)
	case config.KindLowercase:
		return NewLowercase(spec.Match)
	case config.KindConcatDir:
		return NewConcatDir(spec.Dir, spec.Output)
	default:
		return nil, fmt.Errorf("unknown transformer kind %q", spec.Kind)
	}
}

// BuildPipeline constructs the ordered phase groups for a package's
// manifest phases, ready for Cascade.UpdateTransformers.
func BuildPipeline(phases []config.PhaseConfig) ([][]engine.Transformer, error) {
	groups := make([][]engine.Transformer, 0, len(phases))
	for i, ph := range phases {
		group := make([]engine.Transformer, 0, len(ph.Transforms))
		for j, spec := range ph.Transforms {
			t, err := Build(spec)
			if err != nil {
				return nil, fmt.Errorf("phases[%d].transforms[%d]: %w", i, j, err)
			}
			group = append(group, t)
		}
		groups = append(groups, group)
	}
	return groups, nil
}
