//go:build linux

package rusage

const darwinMaxrssIsBytes = false
