package config

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// validateSchema checks the manifest against the embedded CUE schema.
// The manifest is round-tripped through YAML into plain maps so the
// encoded value matches the wire shape the schema describes.
func validateSchema(m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	var plain map[string]any
	if err := yaml.Unmarshal(data, &plain); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	val := ctx.Encode(plain)
	if err := val.Err(); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	unified := schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	return nil
}
