package testutils

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

// FreePorts returns n distinct loopback ports that were free at the time of the call.
// All listeners are held until every port is picked, so the ports never repeat.
func FreePorts(t testing.TB, n int) []uint16 {
	t.Helper()

	ports := make([]uint16, 0, n)
	listeners := make([]net.Listener, 0, n)

	defer func() {
		for _, l := range listeners {
			_ = l.Close()
		}
	}()

	for range n {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)

		listeners = append(listeners, l)
		ports = append(ports, uint16(l.Addr().(*net.TCPAddr).Port)) //nolint:gosec // TCP ports fit into uint16
	}

	return ports
}
