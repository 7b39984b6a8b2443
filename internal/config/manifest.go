package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest is the top-level build configuration: the package graph and
// the per-package transform pipelines.
type Manifest struct {
	// Journal is an optional path to the SQLite pass journal.
	Journal string `yaml:"journal,omitempty"`

	// Packages lists every package in the build graph.
	Packages []PackageConfig `yaml:"packages"`
}

// PackageConfig describes one package: where its sources live, which
// packages feed it, and the ordered transform phases applied to it.
type PackageConfig struct {
	// Name uniquely identifies the package within the graph.
	Name string `yaml:"name"`

	// Root is the directory the package's sources are loaded from.
	// Optional for packages fed entirely by their dependencies.
	Root string `yaml:"root,omitempty"`

	// DependsOn names the packages whose settled outputs feed this one.
	DependsOn []string `yaml:"depends_on,omitempty"`

	// Phases is the ordered stage list. Transforms within one phase run
	// in parallel over the same input set; each phase consumes the
	// previous phase's outputs.
	Phases []PhaseConfig `yaml:"phases,omitempty"`
}

// PhaseConfig is one pipeline stage.
type PhaseConfig struct {
	Transforms []TransformSpec `yaml:"transforms"`
}

// TransformSpec selects and parameterizes one built-in transformer.
type TransformSpec struct {
	// Kind is the transformer type: rename_ext, uppercase, lowercase,
	// or concat_dir.
	Kind string `yaml:"kind"`

	// rename_ext: source and target extensions, with a leading dot.
	From string `yaml:"from,omitempty"`
	To   string `yaml:"to,omitempty"`

	// Lazy defers rename_ext computation until an output is demanded.
	Lazy bool `yaml:"lazy,omitempty"`

	// uppercase / lowercase: the extension to match, with a leading dot.
	Match string `yaml:"match,omitempty"`

	// concat_dir: source directory and the output path for the
	// concatenation.
	Dir    string `yaml:"dir,omitempty"`
	Output string `yaml:"output,omitempty"`
}

// Transformer kinds.
const (
	KindRenameExt = "rename_ext"
	KindUppercase = "uppercase"
	KindLowercase = "lowercase"
	KindConcatDir = "concat_dir"
)

// Load reads and parses a manifest YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), fails schema validation, or is inconsistent.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return Parse(data)
}

// Parse parses manifest YAML with strict field validation.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateSchema(&m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	if err := validateManifest(&m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	return &m, nil
}

// validateManifest checks referential consistency: unique package
// names, dependency targets that exist, per-kind transform parameters.
func validateManifest(m *Manifest) error {
	if len(m.Packages) == 0 {
		return fmt.Errorf("packages list is required and must be non-empty")
	}

	names := make(map[string]struct{}, len(m.Packages))
	for i, p := range m.Packages {
		if p.Name == "" {
			return fmt.Errorf("packages[%d]: name is required", i)
		}
		if _, dup := names[p.Name]; dup {
			return fmt.Errorf("packages[%d]: duplicate package name %q", i, p.Name)
		}
		names[p.Name] = struct{}{}
	}

	for i, p := range m.Packages {
		for _, dep := range p.DependsOn {
			if dep == p.Name {
				return fmt.Errorf("packages[%d]: package %q depends on itself", i, p.Name)
			}
			if _, ok := names[dep]; !ok {
				return fmt.Errorf("packages[%d]: unknown dependency %q", i, dep)
			}
		}
		for j, ph := range p.Phases {
			for k, t := range ph.Transforms {
				if err := validateTransform(&t); err != nil {
					return fmt.Errorf("packages[%d].phases[%d].transforms[%d]: %w", i, j, k, err)
				}
			}
		}
	}

	return nil
}

func validateTransform(t *TransformSpec) error {
	switch t.Kind {
	case KindRenameExt:
		if t.From == "" || t.To == "" {
			return fmt.Errorf("rename_ext requires from and to")
		}
		if t.From == t.To {
			return fmt.Errorf("rename_ext: from and to must differ")
		}
	case KindUppercase, KindLowercase:
		if t.Match == "" {
			return fmt.Errorf("%s requires match", t.Kind)
		}
	case KindConcatDir:
		if t.Dir == "" || t.Output == "" {
			return fmt.Errorf("concat_dir requires dir and output")
		}
	case "":
		return fmt.Errorf("kind is required")
	default:
		return fmt.Errorf("unknown transformer kind %q", t.Kind)
	}
	return nil
}
