package guard

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/benediktbwimmer/sandboxrunner/internal/config"
)

// Net is the networking façade exposed to a handler invocation (spec §4.3).
// When the network capability is absent, every primitive constructor it
// offers (socket dialing, HTTP clients, listeners) fails closed instead of
// reaching the network; when granted, this guard installs no interception
// at all, per spec §4.3. The process-hardening DomainPolicy is a separate
// enrichment layered on through SocksProxy, not through this guard — a
// bundle that dials directly via Net is never subject to it.
type Net struct {
	enabled bool
	dialer  net.Dialer
}

// NewNet builds a Net guard from the bundle's declared capability set.
func NewNet(caps config.CapabilitySet) *Net {
	return &Net{enabled: caps.Has("network")}
}

func (g *Net) checkHost(address string) error {
	if !g.enabled {
		return ErrCapabilityDenied
	}
	return nil
}

// DialContext opens an outbound TCP connection, gated on the network
// capability alone.
func (g *Net) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if err := g.checkHost(address); err != nil {
		return nil, err
	}
	return g.dialer.DialContext(ctx, network, address)
}

// Dial is the non-context convenience form of DialContext.
func (g *Net) Dial(network, address string) (net.Conn, error) {
	return g.DialContext(context.Background(), network, address)
}

// HTTPClient returns an *http.Client whose transport routes every dial
// through DialContext, so the capability check applies to every outbound
// request regardless of how the handler constructs its requests.
func (g *Net) HTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext: g.DialContext,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	}
}

// Listen creates a listening socket, gated on the network capability.
func (g *Net) Listen(network, address string) (net.Listener, error) {
	if !g.enabled {
		return nil, ErrCapabilityDenied
	}
	return net.Listen(network, address)
}

// URLHost extracts the host portion of a URL-ish address for diagnostics;
// helper used by callers that want to log a deny without parsing the URL
// themselves.
func URLHost(rawurl string) string {
	s := rawurl
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		return host
	}
	return s
}
