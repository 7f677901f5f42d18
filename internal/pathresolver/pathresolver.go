// Package pathresolver normalizes path arguments presented to guarded
// primitives to an absolute realpath and confines them to a bundle root,
// with an optional host-root remap for paths the parent has re-rooted.
package pathresolver

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PermissionError reports that a candidate path falls outside every
// permitted root.
type PermissionError struct {
	Candidate string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("path %q escapes the permitted roots", e.Candidate)
}

// Resolver confines paths to a bundle root, optionally remapping paths that
// fall outside it onto a host root.
type Resolver struct {
	bundleRoot string
	hostRoot   string // "" when unconfigured
}

// New builds a Resolver. bundleRoot is required; hostRoot may be empty.
// Both are realpath-resolved eagerly, matching spec §4.1 step 1.
func New(bundleRoot, hostRoot string) (*Resolver, error) {
	root, err := realpathBestEffort(bundleRoot)
	if err != nil {
		return nil, fmt.Errorf("pathresolver: resolving bundle root: %w", err)
	}
	r := &Resolver{bundleRoot: root}

	if hostRoot != "" {
		host, err := realpathBestEffort(hostRoot)
		if err != nil {
			return nil, fmt.Errorf("pathresolver: resolving host root: %w", err)
		}
		r.hostRoot = host
	}

	return r, nil
}

// BundleRoot returns the realpath-resolved bundle root.
func (r *Resolver) BundleRoot() string { return r.bundleRoot }

// Resolve implements spec §4.1: realpath the candidate (joining it to the
// current working directory first if relative), accept it if it is the
// bundle root or a descendant, otherwise try the host-root remap, otherwise
// fail closed.
func (r *Resolver) Resolve(candidate string) (string, error) {
	abs := candidate
	if !filepath.IsAbs(abs) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("pathresolver: getwd: %w", err)
		}
		abs = filepath.Join(cwd, abs)
	}

	real, err := realpathBestEffort(abs)
	if err != nil {
		return "", fmt.Errorf("pathresolver: resolving %q: %w", candidate, err)
	}

	if within(real, r.bundleRoot) {
		return real, nil
	}

	if r.hostRoot != "" {
		if within(real, r.hostRoot) {
			return real, nil
		}

		rel, err := filepath.Rel(string(filepath.Separator), real)
		if err == nil {
			remapped := filepath.Join(r.hostRoot, rel)
			real2, err := realpathBestEffort(remapped)
			if err == nil && within(real2, r.hostRoot) {
				return real2, nil
			}
		}
	}

	return "", &PermissionError{Candidate: candidate}
}

func within(path, root string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}

// realpathBestEffort mirrors the behavior of os.path.realpath for paths
// whose final components may not exist yet (e.g. a file about to be
// created): it resolves symlinks on the longest existing ancestor and joins
// the remaining literal components.
func realpathBestEffort(p string) (string, error) {
	clean := filepath.Clean(p)
	if resolved, err := filepath.EvalSymlinks(clean); err == nil {
		return resolved, nil
	}

	dir := filepath.Dir(clean)
	if dir == clean {
		return clean, nil
	}

	resolvedDir, err := realpathBestEffort(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedDir, filepath.Base(clean)), nil
}
