//go:build !unix && !windows

package fileutil

const noFollow = 0

func restrict(path string) error { return nil }
