package guard

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/benediktbwimmer/sandboxrunner/internal/config"
	"github.com/benediktbwimmer/sandboxrunner/internal/pathresolver"
)

// ErrCapabilityDenied is returned by every guarded primitive when the
// enclosing bundle did not declare the corresponding capability (spec §4.2,
// §4.3). It is returned before the filesystem or network is touched.
var ErrCapabilityDenied = errors.New("capability denied")

// ErrProtectedPath is returned by a mutating FS primitive whose target
// matches the mandatory-deny list, independent of capability grants.
var ErrProtectedPath = errors.New("path is protected")

// FS is the filesystem façade exposed to a handler invocation (spec §4.2).
// Every method normalizes its path argument(s) through the Path Resolver
// before touching the filesystem; mutating methods are additionally checked
// against MandatoryDeny.
type FS struct {
	enabled bool
	resolve *pathresolver.Resolver
	deny    *MandatoryDeny
}

// NewFS builds an FS guard. caps is the bundle's declared capability set;
// when it lacks "fs", every method fails closed without touching disk.
func NewFS(caps config.CapabilitySet, resolver *pathresolver.Resolver, deny *MandatoryDeny) *FS {
	return &FS{enabled: caps.Has("fs"), resolve: resolver, deny: deny}
}

func (g *FS) check() error {
	if !g.enabled {
		return ErrCapabilityDenied
	}
	return nil
}

func (g *FS) resolvePath(p string) (string, error) {
	if err := g.check(); err != nil {
		return "", err
	}
	return g.resolve.Resolve(p)
}

func (g *FS) resolveForMutation(p string) (string, error) {
	real, err := g.resolvePath(p)
	if err != nil {
		return "", err
	}
	if g.deny != nil && g.deny.Protected(real) {
		return "", fmt.Errorf("%w: %s", ErrProtectedPath, real)
	}
	return real, nil
}

// Open opens a file for reading or writing depending on flag/perm, matching
// os.OpenFile's signature since this is the lowest-level primitive.
func (g *FS) Open(name string, flag int, perm os.FileMode) (*os.File, error) {
	var real string
	var err error
	if flag&(os.O_CREATE|os.O_WRONLY|os.O_RDWR) != 0 {
		real, err = g.resolveForMutation(name)
	} else {
		real, err = g.resolvePath(name)
	}
	if err != nil {
		return nil, err
	}
	return os.OpenFile(real, flag, perm)
}

// Listdir returns the names of a directory's entries (opendir + readdir).
func (g *FS) Listdir(path string) ([]string, error) {
	real, err := g.resolvePath(path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(real)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// Scandir returns a directory's entries with their cached file-type.
func (g *FS) Scandir(path string) ([]os.DirEntry, error) {
	real, err := g.resolvePath(path)
	if err != nil {
		return nil, err
	}
	return os.ReadDir(real)
}

// Walk recurses a directory tree, invoking fn for every visited path.
func (g *FS) Walk(root string, fn filepath.WalkFunc) error {
	real, err := g.resolvePath(root)
	if err != nil {
		return err
	}
	return filepath.Walk(real, fn)
}

// Stat returns file metadata, following symlinks.
func (g *FS) Stat(path string) (os.FileInfo, error) {
	real, err := g.resolvePath(path)
	if err != nil {
		return nil, err
	}
	return os.Stat(real)
}

// Lstat returns file metadata without following a terminal symlink.
func (g *FS) Lstat(path string) (os.FileInfo, error) {
	real, err := g.resolvePath(path)
	if err != nil {
		return nil, err
	}
	return os.Lstat(real)
}

// Readlink returns the target of a symbolic link.
func (g *FS) Readlink(path string) (string, error) {
	real, err := g.resolvePath(path)
	if err != nil {
		return "", err
	}
	return os.Readlink(real)
}

// Access reports whether path exists and is reachable (a permission-style
// probe, not a capability check beyond the guard's own).
func (g *FS) Access(path string) error {
	real, err := g.resolvePath(path)
	if err != nil {
		return err
	}
	_, err = os.Stat(real)
	return err
}

// Remove deletes a file.
func (g *FS) Remove(path string) error {
	real, err := g.resolveForMutation(path)
	if err != nil {
		return err
	}
	return os.Remove(real)
}

// Unlink is an alias for Remove, matching the vocabulary's separate name for
// the same operation on a file.
func (g *FS) Unlink(path string) error { return g.Remove(path) }

// Rmdir removes an empty directory.
func (g *FS) Rmdir(path string) error {
	real, err := g.resolveForMutation(path)
	if err != nil {
		return err
	}
	return os.Remove(real)
}

// Mkdir creates a single directory level.
func (g *FS) Mkdir(path string, perm os.FileMode) error {
	real, err := g.resolveForMutation(path)
	if err != nil {
		return err
	}
	return os.Mkdir(real, perm)
}

// Makedirs creates a directory and any missing parents.
func (g *FS) Makedirs(path string, perm os.FileMode) error {
	real, err := g.resolveForMutation(path)
	if err != nil {
		return err
	}
	return os.MkdirAll(real, perm)
}

// Chdir changes the process working directory. Treated as a mutating
// primitive since it changes what relative paths resolve against.
func (g *FS) Chdir(path string) error {
	real, err := g.resolveForMutation(path)
	if err != nil {
		return err
	}
	return os.Chdir(real)
}

// Replace atomically replaces dst with src. Both paths are validated
// independently.
func (g *FS) Replace(src, dst string) error {
	realSrc, err := g.resolveForMutation(src)
	if err != nil {
		return err
	}
	realDst, err := g.resolveForMutation(dst)
	if err != nil {
		return err
	}
	return os.Rename(realSrc, realDst)
}

// Rename renames or moves a file, matching filesystem rename semantics.
func (g *FS) Rename(src, dst string) error { return g.Replace(src, dst) }

// Symlink creates a symbolic link at linkPath pointing to target. target is
// not resolved through the Path Resolver since it need not exist or even be
// within any permitted root; only the location the link is created at is
// guarded.
func (g *FS) Symlink(target, linkPath string) error {
	real, err := g.resolveForMutation(linkPath)
	if err != nil {
		return err
	}
	return os.Symlink(target, real)
}

// Utime updates a file's access and modification times.
func (g *FS) Utime(path string, atime, mtime time.Time) error {
	real, err := g.resolveForMutation(path)
	if err != nil {
		return err
	}
	return os.Chtimes(real, atime, mtime)
}

// Chmod changes a file's mode bits.
func (g *FS) Chmod(path string, mode os.FileMode) error {
	real, err := g.resolveForMutation(path)
	if err != nil {
		return err
	}
	return os.Chmod(real, mode)
}

// Chown changes a file's owning uid/gid.
func (g *FS) Chown(path string, uid, gid int) error {
	real, err := g.resolveForMutation(path)
	if err != nil {
		return err
	}
	return os.Chown(real, uid, gid)
}

// Copy copies src's contents to dst, matching shutil.copy's "data only"
// semantics (mode bits are not preserved).
func (g *FS) Copy(src, dst string) error {
	return g.copyFile(src, dst, false)
}

// Copy2 copies src's contents and mode bits to dst. Access and
// modification times are not copied.
func (g *FS) Copy2(src, dst string) error {
	return g.copyFile(src, dst, true)
}

// Copyfile copies only file data, with no metadata and no path-resolver
// convenience for directory destinations, matching shutil.copyfile.
func (g *FS) Copyfile(src, dst string) error {
	return g.copyFile(src, dst, false)
}

func (g *FS) copyFile(src, dst string, preserveMode bool) error {
	realSrc, err := g.resolvePath(src)
	if err != nil {
		return err
	}
	realDst, err := g.resolveForMutation(dst)
	if err != nil {
		return err
	}

	in, err := os.Open(realSrc)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(realDst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}

	if preserveMode {
		info, err := os.Stat(realSrc)
		if err != nil {
			return err
		}
		return os.Chmod(realDst, info.Mode())
	}
	return nil
}

// Move relocates src to dst, falling back to copy+remove across devices.
func (g *FS) Move(src, dst string) error {
	realSrc, err := g.resolveForMutation(src)
	if err != nil {
		return err
	}
	realDst, err := g.resolveForMutation(dst)
	if err != nil {
		return err
	}

	if err := os.Rename(realSrc, realDst); err == nil {
		return nil
	}

	if err := g.copyFile(src, dst, true); err != nil {
		return err
	}
	return os.Remove(realSrc)
}

// Copytree recursively copies a directory tree.
func (g *FS) Copytree(src, dst string) error {
	realSrc, err := g.resolvePath(src)
	if err != nil {
		return err
	}
	realDst, err := g.resolveForMutation(dst)
	if err != nil {
		return err
	}

	return filepath.Walk(realSrc, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(realSrc, path)
		if err != nil {
			return err
		}
		target := filepath.Join(realDst, rel)

		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		return g.copyFile(path, target, true)
	})
}

// Rmtree recursively removes a directory tree.
func (g *FS) Rmtree(path string) error {
	real, err := g.resolveForMutation(path)
	if err != nil {
		return err
	}
	return os.RemoveAll(real)
}

// MakeArchive creates a .tar.gz or .zip archive of root at dst, selected by
// dst's extension.
func (g *FS) MakeArchive(dst, root string) error {
	realRoot, err := g.resolvePath(root)
	if err != nil {
		return err
	}
	realDst, err := g.resolveForMutation(dst)
	if err != nil {
		return err
	}

	switch filepath.Ext(realDst) {
	case ".zip":
		return makeZipArchive(realDst, realRoot)
	default:
		return makeTarGzArchive(realDst, realRoot)
	}
}

func makeZipArchive(dst, root string) error {
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	defer zw.Close()

	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(rel)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
}

func makeTarGzArchive(dst, root string) error {
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	defer gz.Close()

	tw := tar.NewWriter(gz)
	defer tw.Close()

	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = rel
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
}
