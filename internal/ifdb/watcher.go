package ifdb

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/arrcus-clone/lsoe/internal/ipaddr"
	"github.com/arrcus-clone/lsoe/internal/macaddr"
	nl "github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// source abstracts the netlink calls Watcher needs, so tests can drive it
// without a real kernel link/addr table.
type source interface {
	LinkList() ([]nl.Link, error)
	AddrList(link nl.Link, family int) ([]nl.Addr, error)
	LinkSubscribe(ch chan<- nl.LinkUpdate, done <-chan struct{}) error
	AddrSubscribe(ch chan<- nl.AddrUpdate, done <-chan struct{}) error
}

type realSource struct{}

func (realSource) LinkList() ([]nl.Link, error) { return nl.LinkList() }
func (realSource) AddrList(link nl.Link, family int) ([]nl.Addr, error) {
	return nl.AddrList(link, family)
}
func (realSource) LinkSubscribe(ch chan<- nl.LinkUpdate, done <-chan struct{}) error {
	return nl.LinkSubscribe(ch, done)
}
func (realSource) AddrSubscribe(ch chan<- nl.AddrUpdate, done <-chan struct{}) error {
	return nl.AddrSubscribe(ch, done)
}

// Changed reports which address families a database update touched, so
// consumers can re-emit only the encapsulation PDUs affected instead of all
// four on every change.
type Changed struct {
	V4 bool
	V6 bool
}

// Watcher keeps a DB current from netlink link/address notifications.
type Watcher struct {
	src source
	log *slog.Logger
	db  *DB

	// Changes emits a signal (coalesced, capacity 1) whenever the database
	// changes in a way that could affect the encapsulation PDUs. Pending
	// signals merge by OR-ing their family flags, so a consumer that is
	// slow to drain still sees every family that changed since its last
	// receive.
	Changes chan Changed
}

// NewWatcher constructs a Watcher backed by the real kernel netlink API.
func NewWatcher(log *slog.Logger) *Watcher {
	return newWatcher(realSource{}, log)
}

func newWatcher(src source, log *slog.Logger) *Watcher {
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{
		src:     src,
		log:     log,
		db:      newDB(),
		Changes: make(chan Changed, 1),
	}
}

// DB returns the live interface database this watcher maintains.
func (w *Watcher) DB() *DB { return w.db }

// notify signals c, merging it into any already-pending, undrained signal
// rather than overwriting it, so a burst of V4-only and V6-only updates
// still reaches the consumer as the union of both.
func (w *Watcher) notify(c Changed) {
	select {
	case prev := <-w.Changes:
		c.V4 = c.V4 || prev.V4
		c.V6 = c.V6 || prev.V6
	default:
	}
	w.Changes <- c
}

// Run subscribes to link and address notifications, takes the initial
// snapshot, and then applies updates until ctx is canceled. Subscribing
// before snapshotting avoids missing changes that land in the gap between
// the two (the same race the original implementation guards against by
// opening its netlink monitor socket before its initial RTM_GETLINK/GETADDR
// dump).
func (w *Watcher) Run(ctx context.Context) error {
	linkCh := make(chan nl.LinkUpdate, 64)
	addrCh := make(chan nl.AddrUpdate, 64)
	done := make(chan struct{})
	defer close(done)

	if err := w.src.LinkSubscribe(linkCh, done); err != nil {
		return fmt.Errorf("ifdb: subscribe to link updates: %w", err)
	}
	if err := w.src.AddrSubscribe(addrCh, done); err != nil {
		return fmt.Errorf("ifdb: subscribe to addr updates: %w", err)
	}

	if err := w.snapshot(); err != nil {
		return fmt.Errorf("ifdb: initial snapshot: %w", err)
	}
	w.notify(Changed{V4: true, V6: true})

	for {
		select {
		case <-ctx.Done():
			return nil
		case u := <-linkCh:
			w.applyLinkUpdate(u)
		case u := <-addrCh:
			w.applyAddrUpdate(u)
		}
	}
}

func (w *Watcher) snapshot() error {
	links, err := w.src.LinkList()
	if err != nil {
		return err
	}
	for _, link := range links {
		w.applyLink(link)
	}
	for _, link := range links {
		for _, fam := range []int{nl.FAMILY_V4, nl.FAMILY_V6} {
			addrs, err := w.src.AddrList(link, fam)
			if err != nil {
				w.log.Warn("ifdb: addr list failed", "interface", link.Attrs().Name, "error", err)
				continue
			}
			for _, a := range addrs {
				w.applyAddr(link.Attrs().Index, a, true)
			}
		}
	}
	return nil
}

func (w *Watcher) applyLink(link nl.Link) {
	attrs := link.Attrs()
	mac, err := macaddr.FromBytes(attrs.HardwareAddr)
	if err != nil {
		// Non-Ethernet interfaces (e.g. loopback) report no MAC; that's fine.
		mac = macaddr.Addr{}
	}
	up := attrs.Flags&net.FlagUp != 0
	loopback := attrs.Flags&net.FlagLoopback != 0
	w.db.upsertLink(attrs.Index, attrs.Name, mac, up, loopback)
}

// applyLinkUpdate handles a post-snapshot link notification. Flag-only
// changes (no address delta) still force emission of both encapsulation
// families, because the per-entry Loopback bit that Encapsulations derives
// from link flags appears in every family's address set.
func (w *Watcher) applyLinkUpdate(u nl.LinkUpdate) {
	if u.Header.Type == unix.RTM_DELLINK {
		w.db.removeLink(u.Link.Attrs().Index)
		w.notify(Changed{V4: true, V6: true})
		return
	}
	w.applyLink(u.Link)
	w.notify(Changed{V4: true, V6: true})
}

func (w *Watcher) applyAddr(ifIndex int, a nl.Addr, add bool) ipaddr.Family {
	ip := a.IPNet.IP
	fam := ipaddr.FamilyV4
	if ip.To4() == nil {
		fam = ipaddr.FamilyV6
	}
	addr, err := ipaddr.FromNetIP(ip)
	if err != nil {
		w.log.Warn("ifdb: invalid address from netlink", "error", err)
		return fam
	}
	ones, _ := a.IPNet.Mask.Size()
	if add {
		w.db.addAddr(ifIndex, fam, addr, uint8(ones))
	} else {
		w.db.delAddr(ifIndex, fam, addr, uint8(ones))
	}
	return fam
}

// applyAddrUpdate handles a post-snapshot address notification, which
// always belongs to exactly one family, so only that family's encapsulation
// PDUs need re-emitting (spec §4.3).
func (w *Watcher) applyAddrUpdate(u nl.AddrUpdate) {
	fam := w.applyAddr(u.LinkIndex, nl.Addr{IPNet: &u.LinkAddress, Label: u.LinkAddress.String()}, u.NewAddr)
	w.notify(Changed{V4: fam == ipaddr.FamilyV4, V6: fam == ipaddr.FamilyV6})
}
