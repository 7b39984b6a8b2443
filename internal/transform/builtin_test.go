package transform_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascade-build/cascade/internal/asset"
	"github.com/cascade-build/cascade/internal/config"
	"github.com/cascade-build/cascade/internal/engine"
	"github.com/cascade-build/cascade/internal/transform"
)

func TestRenameExt_Apply(t *testing.T) {
	tr, err := transform.NewRenameExt(".md", ".html", false)
	require.NoError(t, err)

	assert.Equal(t, "rename_ext(.md->.html)", tr.Name())
	assert.True(t, tr.CanTransform(asset.NewID("app", "web/doc.md")))
	assert.False(t, tr.CanTransform(asset.NewID("app", "web/doc.css")))
	assert.False(t, tr.Deferred())

	out := tr.DeclareOutputs(asset.NewID("app", "web/doc.md"))
	require.Len(t, out, 1)
	assert.Equal(t, asset.NewID("app", "web/doc.html"), out[0])

	tc := engine.NewTestTransformContext(tr.Name(),
		asset.FromString(asset.NewID("app", "web/doc.md"), "body"))
	require.NoError(t, tr.Apply(context.Background(), tc))

	outputs := tc.Outputs()
	require.Len(t, outputs, 1)
	assert.Equal(t, asset.NewID("app", "web/doc.html"), outputs[0].ID())
	assert.Equal(t, "body", outputs[0].Text())
}

func TestRenameExt_Validation(t *testing.T) {
	_, err := transform.NewRenameExt("md", ".html", false)
	assert.Error(t, err)

	_, err = transform.NewRenameExt(".md", "html", false)
	assert.Error(t, err)

	_, err = transform.NewRenameExt(".md", ".md", false)
	assert.Error(t, err)
}

func TestRenameExt_Lazy(t *testing.T) {
	tr, err := transform.NewRenameExt(".md", ".html", true)
	require.NoError(t, err)
	assert.True(t, tr.Deferred())
}

func TestCaseTransforms(t *testing.T) {
	up, err := transform.NewUppercase(".txt")
	require.NoError(t, err)
	down, err := transform.NewLowercase(".txt")
	require.NoError(t, err)

	assert.Equal(t, "uppercase(.txt)", up.Name())
	assert.Equal(t, "lowercase(.txt)", down.Name())

	id := asset.NewID("app", "a.txt")
	tc := engine.NewTestTransformContext(up.Name(), asset.FromString(id, "Hello"))
	require.NoError(t, up.Apply(context.Background(), tc))
	outputs := tc.Outputs()
	require.Len(t, outputs, 1)
	// Output carries the primary's own ID so it overwrites the
	// pass-through copy.
	assert.Equal(t, id, outputs[0].ID())
	assert.Equal(t, "HELLO", outputs[0].Text())

	tc = engine.NewTestTransformContext(down.Name(), asset.FromString(id, "Hello"))
	require.NoError(t, down.Apply(context.Background(), tc))
	outputs = tc.Outputs()
	require.Len(t, outputs, 1)
	assert.Equal(t, "hello", outputs[0].Text())
}

func TestCaseTransform_Validation(t *testing.T) {
	_, err := transform.NewUppercase("txt")
	assert.Error(t, err)
	_, err = transform.NewLowercase("")
	assert.Error(t, err)
}

func TestConcatDir_Apply(t *testing.T) {
	tr, err := transform.NewConcatDir("parts", "bundle.txt")
	require.NoError(t, err)

	assert.Equal(t, "concat_dir(parts)", tr.Name())

	group, ok := tr.ClassifyPrimary(asset.NewID("app", "parts/a.txt"))
	require.True(t, ok)
	assert.Equal(t, "parts", group)
	_, ok = tr.ClassifyPrimary(asset.NewID("app", "other/a.txt"))
	assert.False(t, ok)
	_, ok = tr.ClassifyPrimary(asset.NewID("app", "parts/deep/a.txt"))
	assert.False(t, ok)

	tc := engine.NewTestTransformContext(tr.Name(),
		asset.FromString(asset.NewID("app", "parts/a.txt"), "alpha"),
		asset.FromString(asset.NewID("app", "parts/b.txt"), "beta\n"))
	require.NoError(t, tr.Apply(context.Background(), tc))

	outputs := tc.Outputs()
	require.Len(t, outputs, 1)
	assert.Equal(t, asset.NewID("app", "bundle.txt"), outputs[0].ID())
	assert.Equal(t, "alpha\nbeta\n", outputs[0].Text())
}

func TestConcatDir_Validation(t *testing.T) {
	_, err := transform.NewConcatDir("", "out.txt")
	assert.Error(t, err)
	_, err = transform.NewConcatDir("parts", "")
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name string
		spec config.TransformSpec
		want string
	}{
		{
			name: "rename",
			spec: config.TransformSpec{Kind: config.KindRenameExt, From: ".md", To: ".html"},
			want: "rename_ext(.md->.html)",
		},
		{
			name: "uppercase",
			spec: config.TransformSpec{Kind: config.KindUppercase, Match: ".txt"},
			want: "uppercase(.txt)",
		},
		{
			name: "lowercase",
			spec: config.TransformSpec{Kind: config.KindLowercase, Match: ".txt"},
			want: "lowercase(.txt)",
		},
		{
			name: "concat",
			spec: config.TransformSpec{Kind: config.KindConcatDir, Dir: "css", Output: "all.css"},
			want: "concat_dir(css)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := transform.Build(tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tr.Name())
		})
	}

	_, err := transform.Build(config.TransformSpec{Kind: "minify"})
	assert.Error(t, err)
}

func TestBuildPipeline(t *testing.T) {
	phases := []config.PhaseConfig{
		{Transforms: []config.TransformSpec{
			{Kind: config.KindRenameExt, From: ".md", To: ".html"},
		}},
		{Transforms: []config.TransformSpec{
			{Kind: config.KindUppercase, Match: ".html"},
			{Kind: config.KindConcatDir, Dir: "css", Output: "all.css"},
		}},
	}
	groups, err := transform.BuildPipeline(phases)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Len(t, groups[0], 1)
	assert.Len(t, groups[1], 2)

	_, err = transform.BuildPipeline([]config.PhaseConfig{
		{Transforms: []config.TransformSpec{{Kind: config.KindRenameExt, From: "md", To: ".html"}}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "phases[0].transforms[0]")
}
