//go:build darwin

package rusage

const darwinMaxrssIsBytes = true
