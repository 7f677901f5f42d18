package guard

import (
	"os"
	"os/exec"
)

// ProcessGuard combines the deny-list check (Exec) and deterministic shell
// selection (ResolveExecutionShell) into the single façade handed to
// handler code that needs to shell out — the process-hardening enrichment
// described in SPEC_FULL.md §4. Unlike FS/Net, it is never capability-gated:
// its absence of configuration means "allow everything," matching its role
// as an enrichment rather than part of the closed {fs, network} vocabulary.
type ProcessGuard struct {
	exec     *Exec
	proxyEnv []string
}

// NewProcessGuard builds a ProcessGuard from a list of denied command
// tokens (resolved once, at guard-install time).
func NewProcessGuard(denyRules []string) *ProcessGuard {
	return &ProcessGuard{exec: NewExec(denyRules)}
}

// SetProxyEnv records the SOCKS5 proxy environment variables (SocksProxy's
// EnvVars) that Command/Shell should inject into every child process, so a
// bundle's subprocesses are routed through the DomainPolicy-enforcing proxy
// without the handler having to build its own environment.
func (p *ProcessGuard) SetProxyEnv(env []string) {
	p.proxyEnv = env
}

// Command builds an *exec.Cmd for name/args, rejecting it up front if name
// resolves to a denied executable.
func (p *ProcessGuard) Command(name string, args ...string) (*exec.Cmd, error) {
	cmd := exec.Command(name, args...)
	if err := p.exec.Check(cmd); err != nil {
		return nil, err
	}
	if len(p.proxyEnv) > 0 {
		cmd.Env = append(os.Environ(), p.proxyEnv...)
	}
	return cmd, nil
}

// Shell builds an *exec.Cmd that runs script through a deterministically
// selected shell (spec SPEC_FULL.md §4's process-hardening enrichment).
func (p *ProcessGuard) Shell(mode, script string, login bool) (*exec.Cmd, error) {
	shellPath, flag, err := ResolveExecutionShell(mode, login)
	if err != nil {
		return nil, err
	}
	return p.Command(shellPath, flag, script)
}

// DeniedPaths exposes the resolved deny list for diagnostics/logging.
func (p *ProcessGuard) DeniedPaths() []string {
	return p.exec.DeniedPaths()
}
