// Package ifdb tracks local network interface status and addressing,
// feeding encapsulation PDUs to the session layer whenever link state
// changes.
package ifdb

import (
	"sync"

	"github.com/arrcus-clone/lsoe/internal/codec"
	"github.com/arrcus-clone/lsoe/internal/ipaddr"
	"github.com/arrcus-clone/lsoe/internal/macaddr"
)

// ipEntry is one addressed prefix recorded against an interface.
type ipEntry struct {
	addr      ipaddr.Addr
	prefixLen uint8
}

// Interface mirrors the kernel's view of one network interface: its
// identity, up/down and loopback status, and the addresses bound to it.
type Interface struct {
	Index    int
	Name     string
	MACAddr  macaddr.Addr
	Up       bool
	Loopback bool

	addrs map[ipaddr.Family][]ipEntry
}

func newInterface(index int, name string, mac macaddr.Addr, up, loopback bool) *Interface {
	return &Interface{
		Index:    index,
		Name:     name,
		MACAddr:  mac,
		Up:       up,
		Loopback: loopback,
		addrs:    make(map[ipaddr.Family][]ipEntry),
	}
}

func (i *Interface) addAddr(fam ipaddr.Family, a ipaddr.Addr, prefixLen uint8) {
	i.addrs[fam] = append(i.addrs[fam], ipEntry{addr: a, prefixLen: prefixLen})
}

func (i *Interface) delAddr(fam ipaddr.Family, a ipaddr.Addr, prefixLen uint8) {
	entries := i.addrs[fam]
	for idx, e := range entries {
		if e.prefixLen == prefixLen && addrEqual(e.addr, a) {
			i.addrs[fam] = append(entries[:idx], entries[idx+1:]...)
			return
		}
	}
}

func addrEqual(a, b ipaddr.Addr) bool {
	ab, bb := a.Bytes(), b.Bytes()
	if len(ab) != len(bb) {
		return false
	}
	for i := range ab {
		if ab[i] != bb[i] {
			return false
		}
	}
	return true
}

// DB is the live interface database: a snapshot kept current by link/addr
// notifications, exposing the four encapsulation PDUs that summarize it.
type DB struct {
	mu   sync.RWMutex
	byIdx map[int]*Interface
}

func newDB() *DB {
	return &DB{byIdx: make(map[int]*Interface)}
}

func (db *DB) upsertLink(index int, name string, mac macaddr.Addr, up, loopback bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if ifc, ok := db.byIdx[index]; ok {
		ifc.Name = name
		ifc.MACAddr = mac
		ifc.Up = up
		ifc.Loopback = loopback
		return
	}
	db.byIdx[index] = newInterface(index, name, mac, up, loopback)
}

func (db *DB) removeLink(index int) {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.byIdx, index)
}

func (db *DB) addAddr(index int, fam ipaddr.Family, a ipaddr.Addr, prefixLen uint8) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if ifc, ok := db.byIdx[index]; ok {
		ifc.addAddr(fam, a, prefixLen)
	}
}

func (db *DB) delAddr(index int, fam ipaddr.Family, a ipaddr.Addr, prefixLen uint8) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if ifc, ok := db.byIdx[index]; ok {
		ifc.delAddr(fam, a, prefixLen)
	}
}

// Snapshot returns a copy of every known interface, safe to read without
// holding db's lock.
func (db *DB) Snapshot() []*Interface {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]*Interface, 0, len(db.byIdx))
	for _, ifc := range db.byIdx {
		cp := *ifc
		cp.addrs = make(map[ipaddr.Family][]ipEntry, len(ifc.addrs))
		for fam, entries := range ifc.addrs {
			cp.addrs[fam] = append([]ipEntry(nil), entries...)
		}
		out = append(out, &cp)
	}
	return out
}

// Encapsulations returns the four encapsulation PDUs (IPv4, IPv6, MPLS-IPv4,
// MPLS-IPv6) summarizing the current database, for sending on session open
// or whenever link state changes. MPLS bodies are always empty: MPLS label
// set construction is out of scope for this implementation.
func (db *DB) Encapsulations() (*codec.IPv4Encap, *codec.IPv6Encap, *codec.MPLSv4Encap, *codec.MPLSv6Encap) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	v4 := &codec.IPv4Encap{}
	v6 := &codec.IPv6Encap{}
	for _, ifc := range db.byIdx {
		for _, e := range ifc.addrs[ipaddr.FamilyV4] {
			v4.Entries = append(v4.Entries, codec.IPEncapEntry{
				Primary: false, Loopback: ifc.Loopback, Addr: e.addr.Bytes(), PrefixLen: e.prefixLen,
			})
		}
		for _, e := range ifc.addrs[ipaddr.FamilyV6] {
			v6.Entries = append(v6.Entries, codec.IPEncapEntry{
				Primary: false, Loopback: ifc.Loopback, Addr: e.addr.Bytes(), PrefixLen: e.prefixLen,
			})
		}
	}
	return v4, v6, &codec.MPLSv4Encap{}, &codec.MPLSv6Encap{}
}
