package guard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/benediktbwimmer/sandboxrunner/internal/config"
	"github.com/benediktbwimmer/sandboxrunner/internal/pathresolver"
)

func newTestFS(t *testing.T, caps config.CapabilitySet) (*FS, string) {
	t.Helper()
	root := t.TempDir()
	resolver, err := pathresolver.New(root, "")
	require.NoError(t, err)
	deny := NewMandatoryDeny(root, false)
	return NewFS(caps, resolver, deny), root
}

func TestFSDeniesWithoutCapability(t *testing.T) {
	g, root := newTestFS(t, nil)
	_, err := g.Listdir(root)
	require.ErrorIs(t, err, ErrCapabilityDenied)
}

func TestFSMakedirsAndWriteWithinRoot(t *testing.T) {
	g, root := newTestFS(t, config.CapabilitySet{"fs"})

	nested := filepath.Join(root, "a", "b")
	require.NoError(t, g.Makedirs(nested, 0o755))

	f, err := g.Open(filepath.Join(nested, "file.txt"), os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("hello")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	names, err := g.Listdir(nested)
	require.NoError(t, err)
	require.Equal(t, []string{"file.txt"}, names)
}

func TestFSRejectsEscapingPath(t *testing.T) {
	g, _ := newTestFS(t, config.CapabilitySet{"fs"})
	_, err := g.Stat("/etc/passwd")
	require.Error(t, err)
}

func TestFSProtectsMandatoryDenyEvenWithCapability(t *testing.T) {
	g, root := newTestFS(t, config.CapabilitySet{"fs"})

	bashrc := filepath.Join(root, ".bashrc")
	require.NoError(t, os.WriteFile(bashrc, []byte("# original"), 0o644))

	err := g.Remove(bashrc)
	require.ErrorIs(t, err, ErrProtectedPath)
}

func TestFSCopyAndMove(t *testing.T) {
	g, root := newTestFS(t, config.CapabilitySet{"fs"})

	src := filepath.Join(root, "src.txt")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0o644))

	dst := filepath.Join(root, "dst.txt")
	require.NoError(t, g.Copy(src, dst))

	contents, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "data", string(contents))

	moved := filepath.Join(root, "moved.txt")
	require.NoError(t, g.Move(dst, moved))
	_, err = os.Stat(dst)
	require.True(t, os.IsNotExist(err))
}

func TestFSRmtree(t *testing.T) {
	g, root := newTestFS(t, config.CapabilitySet{"fs"})

	dir := filepath.Join(root, "tree")
	require.NoError(t, g.Makedirs(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "f.txt"), []byte("x"), 0o644))

	require.NoError(t, g.Rmtree(dir))
	_, err := os.Stat(dir)
	require.True(t, os.IsNotExist(err))
}
