package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMACCache_ObserveNewPeer(t *testing.T) {
	c := newMACCache()
	require.True(t, c.Observe(peerA, "eth0", time.Unix(0, 0)))
	ifName, ok := c.IfName(peerA)
	require.True(t, ok)
	require.Equal(t, "eth0", ifName)
}

func TestMACCache_SameInterfaceRefreshesTimestamp(t *testing.T) {
	c := newMACCache()
	require.True(t, c.Observe(peerA, "eth0", time.Unix(0, 0)))
	require.True(t, c.Observe(peerA, "eth0", time.Unix(10, 0)))
}

func TestMACCache_InterfaceMoveRejected(t *testing.T) {
	c := newMACCache()
	require.True(t, c.Observe(peerA, "eth0", time.Unix(0, 0)))
	require.False(t, c.Observe(peerA, "eth1", time.Unix(1, 0)))
	ifName, _ := c.IfName(peerA)
	require.Equal(t, "eth0", ifName, "rejected move must not update cached interface")
}

func TestMACCache_GCEvictsStaleEntries(t *testing.T) {
	c := newMACCache()
	start := time.Unix(100, 0)
	c.Observe(peerA, "eth0", start)

	c.GC(start.Add(time.Minute), 10*time.Second)
	_, ok := c.IfName(peerA)
	require.False(t, ok)
}

func TestMACCache_GCKeepsFreshEntries(t *testing.T) {
	c := newMACCache()
	start := time.Unix(200, 0)
	c.Observe(peerA, "eth0", start)

	c.GC(start.Add(time.Second), 10*time.Second)
	_, ok := c.IfName(peerA)
	require.True(t, ok)
}
