// Package config loads and validates build manifests.
//
// A manifest is a YAML file describing the package graph: each package
// names its source root, the packages it depends on, and an ordered
// list of transform phases. Manifests are decoded strictly (unknown
// fields are rejected, catching typos) and then validated against an
// embedded CUE schema before any Go-level checks run.
package config
