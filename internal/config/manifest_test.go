package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascade-build/cascade/internal/config"
)

const validManifest = `
journal: build.db
packages:
  - name: lib
    root: ./lib
    phases:
      - transforms:
          - kind: rename_ext
            from: .md
            to: .html
  - name: app
    root: ./app
    depends_on: [lib]
    phases:
      - transforms:
          - kind: uppercase
            match: .html
          - kind: concat_dir
            dir: css
            output: all.css
`

func TestParse_Valid(t *testing.T) {
	m, err := config.Parse([]byte(validManifest))
	require.NoError(t, err)

	assert.Equal(t, "build.db", m.Journal)
	require.Len(t, m.Packages, 2)

	lib := m.Packages[0]
	assert.Equal(t, "lib", lib.Name)
	assert.Equal(t, "./lib", lib.Root)
	require.Len(t, lib.Phases, 1)
	require.Len(t, lib.Phases[0].Transforms, 1)
	assert.Equal(t, config.KindRenameExt, lib.Phases[0].Transforms[0].Kind)
	assert.Equal(t, ".md", lib.Phases[0].Transforms[0].From)

	app := m.Packages[1]
	assert.Equal(t, []string{"lib"}, app.DependsOn)
	require.Len(t, app.Phases[0].Transforms, 2)
	assert.Equal(t, "all.css", app.Phases[0].Transforms[1].Output)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cascade.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validManifest), 0o644))

	m, err := config.Load(path)
	require.NoError(t, err)
	assert.Len(t, m.Packages, 2)

	_, err = config.Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read manifest")
}

func TestParse_UnknownField(t *testing.T) {
	_, err := config.Parse([]byte(`
packages:
  - name: app
    rooot: ./app
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "bad kind",
			yaml: `
packages:
  - name: app
    phases:
      - transforms:
          - kind: minify
`,
		},
		{
			name: "extension without dot",
			yaml: `
packages:
  - name: app
    phases:
      - transforms:
          - kind: rename_ext
            from: md
            to: .html
`,
		},
		{
			name: "bad package name",
			yaml: `
packages:
  - name: "My App"
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid manifest")
		})
	}
}

func TestParse_ConsistencyErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "no packages",
			yaml: `journal: build.db`,
			want: "packages list is required",
		},
		{
			name: "duplicate names",
			yaml: `
packages:
  - name: app
  - name: app
`,
			want: "duplicate package name",
		},
		{
			name: "self dependency",
			yaml: `
packages:
  - name: app
    depends_on: [app]
`,
			want: "depends on itself",
		},
		{
			name: "unknown dependency",
			yaml: `
packages:
  - name: app
    depends_on: [lib]
`,
			want: `unknown dependency "lib"`,
		},
		{
			name: "rename missing to",
			yaml: `
packages:
  - name: app
    phases:
      - transforms:
          - kind: rename_ext
            from: .md
`,
			want: "rename_ext requires from and to",
		},
		{
			name: "rename same extension",
			yaml: `
packages:
  - name: app
    phases:
      - transforms:
          - kind: rename_ext
            from: .md
            to: .md
`,
			want: "from and to must differ",
		},
		{
			name: "uppercase missing match",
			yaml: `
packages:
  - name: app
    phases:
      - transforms:
          - kind: uppercase
`,
			want: "uppercase requires match",
		},
		{
			name: "concat missing output",
			yaml: `
packages:
  - name: app
    phases:
      - transforms:
          - kind: concat_dir
            dir: css
`,
			want: "concat_dir requires dir and output",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTopoOrder(t *testing.T) {
	m, err := config.Parse([]byte(`
packages:
  - name: app
    depends_on: [lib, vendor]
  - name: lib
    depends_on: [vendor]
  - name: vendor
`))
	require.NoError(t, err)

	order, err := m.TopoOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"vendor", "lib", "app"}, order)
}

func TestTopoOrder_IndependentPackagesSorted(t *testing.T) {
	m, err := config.Parse([]byte(`
packages:
  - name: zeta
  - name: alpha
  - name: mid
`))
	require.NoError(t, err)

	order, err := m.TopoOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, order)
}

func TestTopoOrder_Cycle(t *testing.T) {
	m := &config.Manifest{
		Packages: []config.PackageConfig{
			{Name: "a", DependsOn: []string{"b"}},
			{Name: "b", DependsOn: []string{"a"}},
		},
	}
	_, err := m.TopoOrder()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependency cycle: a -> b -> a")
}
