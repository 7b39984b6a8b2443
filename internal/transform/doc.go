// Package transform provides the built-in transformers and constructs
// engine pipelines from manifest specifications.
//
// Built-ins:
//   - RenameExt: re-emits a matching asset under a new extension,
//     optionally deferred until the output is demanded
//   - Uppercase / Lowercase: overwrite a matching asset's content in
//     place (same ID), demonstrating pass-through takeover
//   - ConcatDir: aggregates every asset in one directory into a single
//     concatenated output
package transform
