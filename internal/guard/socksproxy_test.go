package guard

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSocksProxyListensOnLoopback(t *testing.T) {
	p, err := NewSocksProxy(DomainPolicy{})
	require.NoError(t, err)
	defer p.Close()

	require.Greater(t, p.Port(), 0)

	conn, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(p.Port())), 2*time.Second)
	require.NoError(t, err)
	conn.Close()
}

func TestEnvVarsWithoutProxy(t *testing.T) {
	vars := EnvVars(0)
	require.Contains(t, vars, "SANDBOXRUNNER=1")
	for _, v := range vars {
		require.NotContains(t, v, "ALL_PROXY")
	}
}

func TestEnvVarsWithProxy(t *testing.T) {
	vars := EnvVars(1080)
	found := false
	for _, v := range vars {
		if v == "ALL_PROXY=socks5h://127.0.0.1:1080" {
			found = true
		}
	}
	require.True(t, found)
}
