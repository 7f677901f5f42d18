package guard

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
)

var commonExecutableDirs = []string{
	"/usr/bin",
	"/bin",
	"/usr/local/bin",
	"/opt/homebrew/bin",
	"/opt/local/bin",
}

// Exec is the optional process-hardening layer (SPEC_FULL.md §4). It sits
// outside the closed {fs, network} capability vocabulary: it never denies
// anything on its own when unconfigured, and its absence never implies
// "deny everything" the way fs/network capability absence does.
type Exec struct {
	deniedPaths map[string]bool
}

// NewExec resolves a list of denied command tokens ("git", "curl", ...) to
// absolute executable paths at guard-install time.
//
// Enforcement is intentionally conservative: only entries that are a single
// executable token are resolved. Prefix rules with arguments (e.g.
// "git push") are not supported here — this layer inspects the resolved
// binary of an exec.Cmd, not its argv.
func NewExec(denyRules []string) *Exec {
	paths := make(map[string]bool)
	for _, rule := range denyRules {
		token, ok := runtimeExecutableToken(rule)
		if !ok {
			continue
		}
		for _, resolved := range resolveExecutablePaths(token) {
			paths[resolved] = true
		}
	}
	return &Exec{deniedPaths: paths}
}

// DeniedPaths returns the resolved, sorted set of absolute paths this guard
// will refuse to run.
func (e *Exec) DeniedPaths() []string {
	paths := make([]string, 0, len(e.deniedPaths))
	for p := range e.deniedPaths {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// Check resolves cmd's Path to an absolute, symlink-resolved location and
// rejects it if that location is on the deny list. Call before Start/Run.
func (e *Exec) Check(cmd *exec.Cmd) error {
	if e == nil || len(e.deniedPaths) == 0 {
		return nil
	}

	path := cmd.Path
	if path == "" && len(cmd.Args) > 0 {
		path = cmd.Args[0]
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		resolved = path
	}
	if e.deniedPaths[resolved] {
		return fmt.Errorf("process hardening: execution of %q is denied", resolved)
	}
	if real, err := filepath.EvalSymlinks(resolved); err == nil && e.deniedPaths[real] {
		return fmt.Errorf("process hardening: execution of %q is denied", resolved)
	}
	return nil
}

func runtimeExecutableToken(rule string) (string, bool) {
	rule = strings.TrimSpace(rule)
	if rule == "" {
		return "", false
	}

	tokens := strings.Fields(rule)
	if len(tokens) != 1 {
		return "", false
	}

	token := tokens[0]
	if strings.ContainsAny(token, "*?[]|&;()<>$`=") {
		return "", false
	}

	return token, true
}

func resolveExecutablePaths(token string) []string {
	var paths []string
	seen := make(map[string]bool)
	add := func(p string) {
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		paths = append(paths, p)
	}

	addCanonicalPath := func(p string) {
		if p == "" {
			return
		}
		add(p)
		if resolved, err := filepath.EvalSymlinks(p); err == nil {
			add(resolved)
		}
	}

	if strings.ContainsRune(token, filepath.Separator) {
		abs := token
		if !filepath.IsAbs(abs) {
			if cwd, err := os.Getwd(); err == nil {
				abs = filepath.Join(cwd, abs)
			}
		}
		if executablePathExists(abs) {
			addCanonicalPath(abs)
		}
		return paths
	}

	if resolved, err := exec.LookPath(token); err == nil {
		addCanonicalPath(resolved)
	}

	for _, dir := range commonExecutableDirs {
		candidate := filepath.Join(dir, token)
		if executablePathExists(candidate) {
			addCanonicalPath(candidate)
		}
	}

	return paths
}

func executablePathExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
