package guard

import "testing"

func TestResolveExecutionShellDefault(t *testing.T) {
	path, flag, err := ResolveExecutionShell(ShellModeDefault, false)
	if err != nil {
		t.Skipf("bash not available: %v", err)
	}
	if flag != "-c" {
		t.Errorf("expected -c, got %q", flag)
	}
	if path == "" {
		t.Error("expected non-empty shell path")
	}
}

func TestResolveExecutionShellDefaultLogin(t *testing.T) {
	_, flag, err := ResolveExecutionShell(ShellModeDefault, true)
	if err != nil {
		t.Skipf("bash not available: %v", err)
	}
	if flag != "-lc" {
		t.Errorf("expected -lc, got %q", flag)
	}
}

func TestResolveExecutionShellInvalidMode(t *testing.T) {
	_, _, err := ResolveExecutionShell("bogus", false)
	if err == nil {
		t.Error("expected error for invalid shell mode")
	}
}
