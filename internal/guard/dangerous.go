package guard

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DangerousFiles lists files that stay write-protected inside a bundle even
// when the fs capability is granted. These files can be used for code
// execution or data exfiltration if a handler is allowed to rewrite them.
var DangerousFiles = []string{
	".gitconfig",
	".gitmodules",
	".bashrc",
	".bash_profile",
	".zshrc",
	".zprofile",
	".profile",
	".mcp.json",
}

// DangerousDirectories lists directories that stay write-protected.
// Excludes .git itself since bundle code may need it writable for git
// operations; only .git/hooks and (conditionally) .git/config are blocked.
var DangerousDirectories = []string{
	".vscode",
	".idea",
}

// DefaultMaxDangerousFileDepth is the default depth limit for FindDangerousFiles.
const DefaultMaxDangerousFileDepth = 3

// MandatoryDeny protects a fixed set of paths under a bundle root from writes,
// independent of the capability set. Capability absence already denies
// everything; MandatoryDeny narrows what's allowed even when fs is granted.
type MandatoryDeny struct {
	patterns []string
}

// NewMandatoryDeny compiles the mandatory write-deny glob patterns for a
// bundle root. allowGitConfig mirrors the teacher's config knob: when false,
// .git/config is protected in addition to .git/hooks (which is always
// protected).
func NewMandatoryDeny(bundleRoot string, allowGitConfig bool) *MandatoryDeny {
	return &MandatoryDeny{patterns: mandatoryDenyPatterns(bundleRoot, allowGitConfig)}
}

func mandatoryDenyPatterns(root string, allowGitConfig bool) []string {
	var patterns []string

	for _, f := range DangerousFiles {
		patterns = append(patterns, filepath.Join(root, f))
		patterns = append(patterns, filepath.Join(root, "**", f))
	}
	for _, d := range DangerousDirectories {
		patterns = append(patterns, filepath.Join(root, d))
		patterns = append(patterns, filepath.Join(root, "**", d, "**"))
	}

	patterns = append(patterns, filepath.Join(root, ".git", "hooks"))
	patterns = append(patterns, filepath.Join(root, "**", ".git", "hooks", "**"))

	if !allowGitConfig {
		patterns = append(patterns, filepath.Join(root, ".git", "config"))
		patterns = append(patterns, filepath.Join(root, "**", ".git", "config"))
	}

	return patterns
}

// Protected reports whether a realpath-resolved, absolute path is protected
// from mutation by the mandatory deny list.
func (m *MandatoryDeny) Protected(realPath string) bool {
	if m == nil {
		return false
	}
	for _, pattern := range m.patterns {
		if ok, err := doublestar.Match(filepath.ToSlash(pattern), filepath.ToSlash(realPath)); err == nil && ok {
			return true
		}
	}
	return false
}

// FindDangerousFiles walks the bundle tree under root up to maxDepth levels
// of subdirectories and returns absolute paths to dangerous files and
// directories found below the root (items directly in root are covered by
// the glob patterns in NewMandatoryDeny and are not repeated here).
//
// node_modules directories are skipped for performance. .git internals
// (hooks/, config) are handled specially: when a .git dir is found within
// the depth range, hooks/ and config are reported without counting .git's
// internal structure against the depth limit.
func FindDangerousFiles(root string, maxDepth int) []string {
	if maxDepth <= 0 {
		return nil
	}

	dangerousFileSet := make(map[string]bool, len(DangerousFiles))
	for _, f := range DangerousFiles {
		dangerousFileSet[f] = true
	}
	dangerousDirSet := make(map[string]bool, len(DangerousDirectories))
	for _, d := range DangerousDirectories {
		dangerousDirSet[d] = true
	}

	rootClean := filepath.Clean(root)
	rootPrefix := rootClean + string(filepath.Separator)

	var results []string

	_ = filepath.WalkDir(rootClean, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return filepath.SkipDir
		}
		if path == rootClean {
			return nil
		}

		rel := strings.TrimPrefix(path, rootPrefix)
		nComp := len(strings.Split(rel, string(filepath.Separator)))
		name := d.Name()

		if d.IsDir() && name == "node_modules" {
			return filepath.SkipDir
		}

		subdirLevel := nComp - 1

		if d.IsDir() && name == ".git" {
			if subdirLevel >= 1 && subdirLevel <= maxDepth {
				hooksPath := filepath.Join(path, "hooks")
				if info, e := os.Stat(hooksPath); e == nil && info.IsDir() {
					results = append(results, hooksPath)
				}
				configPath := filepath.Join(path, "config")
				if info, e := os.Stat(configPath); e == nil && !info.IsDir() {
					results = append(results, configPath)
				}
			}
			return filepath.SkipDir
		}

		if nComp == 1 {
			return nil
		}

		if d.IsDir() && subdirLevel > maxDepth {
			return filepath.SkipDir
		}

		if !d.IsDir() && dangerousFileSet[name] && subdirLevel <= maxDepth {
			results = append(results, path)
			return nil
		}

		if d.IsDir() && dangerousDirSet[name] && subdirLevel <= maxDepth {
			results = append(results, path)
			return filepath.SkipDir
		}

		return nil
	})

	return results
}
