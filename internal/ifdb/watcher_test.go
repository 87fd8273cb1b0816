package ifdb

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	nl "github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

type fakeLink struct {
	attrs nl.LinkAttrs
}

func (l *fakeLink) Attrs() *nl.LinkAttrs { return &l.attrs }
func (l *fakeLink) Type() string         { return "fake" }

type fakeSource struct {
	links    []nl.Link
	addrs    map[int][]nl.Addr
	linkCh   chan<- nl.LinkUpdate
	addrCh   chan<- nl.AddrUpdate
}

func (f *fakeSource) LinkList() ([]nl.Link, error) { return f.links, nil }
func (f *fakeSource) AddrList(link nl.Link, family int) ([]nl.Addr, error) {
	var out []nl.Addr
	for _, a := range f.addrs[link.Attrs().Index] {
		if family == nl.FAMILY_V4 && a.IPNet.IP.To4() != nil {
			out = append(out, a)
		}
		if family == nl.FAMILY_V6 && a.IPNet.IP.To4() == nil {
			out = append(out, a)
		}
	}
	return out, nil
}
func (f *fakeSource) LinkSubscribe(ch chan<- nl.LinkUpdate, done <-chan struct{}) error {
	f.linkCh = ch
	return nil
}
func (f *fakeSource) AddrSubscribe(ch chan<- nl.AddrUpdate, done <-chan struct{}) error {
	f.addrCh = ch
	return nil
}

func mustCIDR(t *testing.T, s string) *net.IPNet {
	t.Helper()
	ip, n, err := net.ParseCIDR(s)
	require.NoError(t, err)
	n.IP = ip
	return n
}

func TestWatcher_InitialSnapshot(t *testing.T) {
	src := &fakeSource{
		links: []nl.Link{
			&fakeLink{attrs: nl.LinkAttrs{Index: 1, Name: "eth0", HardwareAddr: net.HardwareAddr{2, 0, 0, 0, 0, 1}, Flags: net.FlagUp}},
		},
		addrs: map[int][]nl.Addr{
			1: {{IPNet: mustCIDR(t, "10.0.0.1/24")}},
		},
	}
	w := newWatcher(src, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case <-w.Changes:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for initial snapshot notification")
	}

	snap := w.DB().Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, "eth0", snap[0].Name)
	require.True(t, snap[0].Up)

	v4, v6, mplsv4, mplsv6 := w.DB().Encapsulations()
	require.Len(t, v4.Entries, 1)
	require.Empty(t, v6.Entries)
	require.Empty(t, mplsv4.Entries)
	require.Empty(t, mplsv6.Entries)

	cancel()
	require.NoError(t, <-done)
}

func TestWatcher_LinkDeleteRemovesInterface(t *testing.T) {
	src := &fakeSource{
		links: []nl.Link{
			&fakeLink{attrs: nl.LinkAttrs{Index: 1, Name: "eth0", Flags: net.FlagUp}},
		},
		addrs: map[int][]nl.Addr{},
	}
	w := newWatcher(src, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	<-w.Changes // initial snapshot

	src.linkCh <- nl.LinkUpdate{
		Header: unix.NlMsghdr{Type: unix.RTM_DELLINK},
		Link:   &fakeLink{attrs: nl.LinkAttrs{Index: 1, Name: "eth0"}},
	}
	<-w.Changes

	require.Empty(t, w.DB().Snapshot())
}

func TestWatcher_AddrAddAndDelete(t *testing.T) {
	src := &fakeSource{
		links: []nl.Link{
			&fakeLink{attrs: nl.LinkAttrs{Index: 1, Name: "eth0", Flags: net.FlagUp}},
		},
		addrs: map[int][]nl.Addr{},
	}
	w := newWatcher(src, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)
	<-w.Changes

	cidr := mustCIDR(t, "192.168.1.1/32")
	src.addrCh <- nl.AddrUpdate{LinkIndex: 1, LinkAddress: *cidr, NewAddr: true}
	<-w.Changes

	v4, _, _, _ := w.DB().Encapsulations()
	require.Len(t, v4.Entries, 1)
	require.Equal(t, uint8(32), v4.Entries[0].PrefixLen)

	src.addrCh <- nl.AddrUpdate{LinkIndex: 1, LinkAddress: *cidr, NewAddr: false}
	<-w.Changes

	v4, _, _, _ = w.DB().Encapsulations()
	require.Empty(t, v4.Entries)
}
