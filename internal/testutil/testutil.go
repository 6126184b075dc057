// Package testutil provides test helpers shared across packages.
//
//   - assert.go: assertion helpers (MustNoErr, AssertStrings, etc.)
//   - builders.go: record builders and canned datasets
//   - fs_helpers.go: file reads and existence checks
package testutil
