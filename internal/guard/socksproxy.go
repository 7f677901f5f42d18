package guard

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/things-go/go-socks5"
)

// SocksProxy is an optional SOCKS5 proxy enforcing DomainPolicy, started by
// the Handler Runtime when a manifest restricts allowed/denied domains. It
// is the only place DomainPolicy is enforced — Net installs no interception
// once the network capability is granted (spec §4.3) — so it exists for
// subprocesses that shell out to tools like git/curl rather than dialing
// through Net directly; ProcessGuard wires its environment variables into
// every command it builds. It listens on loopback only and is torn down
// with the handler task.
type SocksProxy struct {
	server   *socks5.Server
	listener net.Listener
	port     int
}

// domainPolicyRule rejects SOCKS5 requests whose destination host isn't
// allowed under policy. The check applies to every SOCKS5 command, not only
// CONNECT.
type domainPolicyRule struct {
	policy DomainPolicy
}

func (r domainPolicyRule) Allow(ctx context.Context, req *socks5.Request) (context.Context, bool) {
	host := req.DestAddr.FQDN
	if host == "" {
		host = req.DestAddr.IP.String()
	}
	return ctx, r.policy.Allowed(host)
}

// NewSocksProxy starts a loopback SOCKS5 listener enforcing policy. Callers
// should check caps.Has("network") before starting one at all; the proxy
// itself does not re-check the capability since it exists only as an
// enrichment for bundles that were already granted network access.
func NewSocksProxy(policy DomainPolicy) (*SocksProxy, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("socksproxy: listen: %w", err)
	}

	server := socks5.NewServer(
		socks5.WithRule(domainPolicyRule{policy: policy}),
	)

	_, portStr, err := net.SplitHostPort(listener.Addr().String())
	if err != nil {
		listener.Close()
		return nil, fmt.Errorf("socksproxy: parse listener address: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		listener.Close()
		return nil, fmt.Errorf("socksproxy: parse listener port: %w", err)
	}

	p := &SocksProxy{server: server, listener: listener, port: port}
	go p.serve()
	return p, nil
}

func (p *SocksProxy) serve() {
	_ = p.server.Serve(p.listener)
}

// Port is the loopback TCP port the proxy is listening on.
func (p *SocksProxy) Port() int { return p.port }

// Close stops accepting new connections.
func (p *SocksProxy) Close() error {
	return p.listener.Close()
}

// EnvVars builds the proxy environment variables a handler's child
// processes should inherit, mirroring the teacher's approach to steering
// HTTP/SOCKS-aware tools (curl, git, pip) through a loopback proxy rather
// than letting them dial out directly.
func EnvVars(socksPort int) []string {
	vars := []string{
		"SANDBOXRUNNER=1",
	}
	if socksPort == 0 {
		return vars
	}

	noProxy := strings.Join([]string{
		"localhost",
		"127.0.0.1",
		"::1",
		"*.local",
		".local",
		"169.254.0.0/16",
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
	}, ",")
	vars = append(vars, "NO_PROXY="+noProxy, "no_proxy="+noProxy)

	socksURL := "socks5h://127.0.0.1:" + strconv.Itoa(socksPort)
	vars = append(vars,
		"ALL_PROXY="+socksURL,
		"all_proxy="+socksURL,
		"FTP_PROXY="+socksURL,
		"ftp_proxy="+socksURL,
		"GIT_SSH_COMMAND=ssh -o ProxyCommand='nc -X 5 -x 127.0.0.1:"+strconv.Itoa(socksPort)+" %h %p'",
	)
	return vars
}
