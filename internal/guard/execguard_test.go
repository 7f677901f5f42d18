package guard

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExecGuardDeniesResolvedPath(t *testing.T) {
	lsPath, err := exec.LookPath("ls")
	if err != nil {
		t.Skip("ls not found on PATH")
	}

	e := NewExec([]string{"ls"})
	require.Contains(t, e.DeniedPaths(), lsPath)

	cmd := exec.Command("ls")
	require.Error(t, e.Check(cmd))
}

func TestExecGuardAllowsUnlistedCommand(t *testing.T) {
	e := NewExec([]string{"rm"})
	cmd := exec.Command("echo", "hi")
	require.NoError(t, e.Check(cmd))
}

func TestExecGuardIgnoresMultiTokenRules(t *testing.T) {
	e := NewExec([]string{"git push"})
	require.Empty(t, e.DeniedPaths())
}
