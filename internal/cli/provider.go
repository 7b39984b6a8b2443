package cli

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cascade-build/cascade/internal/asset"
)

// DirProvider serves a package's assets from a directory tree: the
// asset path is the file path relative to the root, slash-separated.
type DirProvider struct {
	pkg  string
	root string
}

// NewDirProvider creates a provider for one package rooted at dir.
func NewDirProvider(pkg, root string) *DirProvider {
	return &DirProvider{pkg: pkg, root: root}
}

// Fetch implements engine.ContentProvider.
func (p *DirProvider) Fetch(ctx context.Context, id asset.ID) (*asset.Asset, error) {
	if id.Package != p.pkg {
		return nil, fmt.Errorf("provider for %q asked for %s", p.pkg, id)
	}
	data, err := os.ReadFile(filepath.Join(p.root, filepath.FromSlash(id.Path)))
	if err != nil {
		return nil, err
	}
	return asset.New(id, data), nil
}

// ScanSources walks the root and returns an ID for every regular file.
func (p *DirProvider) ScanSources() ([]asset.ID, error) {
	var ids []asset.ID
	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(p.root, path)
		if err != nil {
			return err
		}
		ids = append(ids, asset.NewID(p.pkg, filepath.ToSlash(rel)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// emptyProvider serves packages with no source root: every fetch fails.
// Such packages are fed entirely by their dependencies.
type emptyProvider struct{}

func (emptyProvider) Fetch(ctx context.Context, id asset.ID) (*asset.Asset, error) {
	return nil, fmt.Errorf("package has no source root: %s", id)
}
