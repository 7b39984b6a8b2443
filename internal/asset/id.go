package asset

import (
	"fmt"
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ID identifies an asset by (package, path), independent of its content
// or producer. IDs are immutable values: equality and map-key hashing
// work by value.
//
// Paths are slash-separated and relative to the package root. NewID
// canonicalizes both components so that two spellings of the same
// logical asset compare equal.
type ID struct {
	// Package is the name of the package the asset belongs to.
	Package string

	// Path is the slash-separated path of the asset within the package.
	Path string
}

// NewID builds a canonical ID from a package name and path.
//
// The path is cleaned with path.Clean and both components are
// normalized to Unicode NFC, so IDs constructed from user input,
// manifest files, and transformer output all land on the same key.
func NewID(pkg, p string) ID {
	return ID{
		Package: norm.NFC.String(pkg),
		Path:    path.Clean(norm.NFC.String(p)),
	}
}

// ParseID parses the "package|path" form produced by String.
func ParseID(s string) (ID, error) {
	pkg, p, ok := strings.Cut(s, "|")
	if !ok || pkg == "" || p == "" {
		return ID{}, fmt.Errorf("malformed asset id %q: want \"package|path\"", s)
	}
	return NewID(pkg, p), nil
}

// String returns the canonical "package|path" form.
func (id ID) String() string {
	return id.Package + "|" + id.Path
}

// Extension returns the path's extension, including the leading dot.
func (id ID) Extension() string {
	return path.Ext(id.Path)
}

// ChangeExtension returns a new ID with the path's extension replaced.
// The new extension should include the leading dot.
func (id ID) ChangeExtension(ext string) ID {
	p := strings.TrimSuffix(id.Path, path.Ext(id.Path))
	return ID{Package: id.Package, Path: p + ext}
}

// Dir returns the directory portion of the path ("." for top-level
// assets).
func (id ID) Dir() string {
	return path.Dir(id.Path)
}
