package transport

import (
	"fmt"
	"net"
	"sync"

	"golang.org/x/sys/unix"
)

// rawSocket is the Socket implementation for Linux: a single PF_PACKET
// SOCK_DGRAM socket bound to EtherType LSOE across all interfaces, with
// promiscuous mode requested per interface so link-local frames reach us
// even when the destination MAC belongs to a peer we haven't learned yet.
type rawSocket struct {
	fd int

	mu     sync.Mutex
	closed bool
}

// NewRawSocket opens and binds the PF_PACKET socket used by the daemon.
// ifNames lists the interfaces to join in promiscuous mode; pass none to
// rely on the kernel delivering only frames actually addressed to us.
func NewRawSocket(ifNames []string) (Socket, error) {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_DGRAM, int(htons(EtherType)))
	if err != nil {
		return nil, fmt.Errorf("transport: open PF_PACKET socket: %w (requires CAP_NET_RAW)", err)
	}
	addr := &unix.SockaddrLinklayer{Protocol: htons(EtherType)}
	if err := unix.Bind(fd, addr); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("transport: bind PF_PACKET socket: %w", err)
	}
	for _, name := range ifNames {
		ifi, err := net.InterfaceByName(name)
		if err != nil {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("transport: resolve interface %s: %w", name, err)
		}
		mreq := &unix.PacketMreq{Ifindex: int32(ifi.Index), Type: unix.PACKET_MR_PROMISC}
		if err := unix.SetsockoptPacketMreq(fd, unix.SOL_PACKET, unix.PACKET_ADD_MEMBERSHIP, mreq); err != nil {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("transport: join promiscuous mode on %s: %w", name, err)
		}
	}
	return &rawSocket{fd: fd}, nil
}

func (s *rawSocket) RecvFrame() (Frame, error) {
	buf := make([]byte, ethDataLen+headerSize)
	for {
		n, from, err := unix.Recvfrom(s.fd, buf, 0)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return Frame{}, ErrSocketClosed
			}
			return Frame{}, fmt.Errorf("transport: recvfrom: %w", err)
		}
		ll, ok := from.(*unix.SockaddrLinklayer)
		if !ok {
			continue
		}
		var mac [6]byte
		copy(mac[:], ll.Addr[:6])
		ifi, err := net.InterfaceByIndex(ll.Ifindex)
		ifName := ""
		if err == nil {
			ifName = ifi.Name
		}
		return Frame{
			Payload:  append([]byte(nil), buf[:n]...),
			PeerMAC:  mac,
			IfName:   ifName,
			IfIndex:  ll.Ifindex,
			Outgoing: ll.Pkttype == unix.PACKET_OUTGOING,
		}, nil
	}
}

func (s *rawSocket) SendFrame(b []byte, peerMAC [6]byte, ifName string) error {
	ifi, err := net.InterfaceByName(ifName)
	if err != nil {
		return fmt.Errorf("transport: resolve interface %s: %w", ifName, err)
	}
	addr := &unix.SockaddrLinklayer{
		Protocol: htons(EtherType),
		Ifindex:  ifi.Index,
		Halen:    6,
	}
	copy(addr.Addr[:6], peerMAC[:])
	return unix.Sendto(s.fd, b, 0, addr)
}

func (s *rawSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_ = unix.Shutdown(s.fd, unix.SHUT_RD)
	return unix.Close(s.fd)
}

func htons(v uint16) uint16 { return (v << 8) | (v >> 8) }
