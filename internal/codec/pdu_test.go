package codec

import (
	"testing"

	"github.com/arrcus-clone/lsoe/internal/macaddr"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, p PDU) PDU {
	t.Helper()
	b := Serialize(p)
	got, err := Parse(b)
	require.NoError(t, err)
	require.Equal(t, b, Serialize(got))
	return got
}

func TestRoundTrip_Hello(t *testing.T) {
	mac, err := macaddr.Parse("02:00:00:00:00:01")
	require.NoError(t, err)
	roundTrip(t, &Hello{MyMACAddr: mac})
}

func TestRoundTrip_Open(t *testing.T) {
	o := &Open{Attributes: []byte{0xaa, 0xbb, 0xcc}}
	copy(o.Nonce[:], []byte{1, 2, 3, 4})
	copy(o.LocalID[:], []byte("0123456789"))
	got := roundTrip(t, o).(*Open)
	require.Equal(t, o.Nonce, got.Nonce)
	require.Equal(t, o.LocalID, got.LocalID)
	require.Equal(t, o.Attributes, got.Attributes)
}

func TestRoundTrip_OpenEmptyAttributes(t *testing.T) {
	o := &Open{}
	got := roundTrip(t, o).(*Open)
	require.Empty(t, got.Attributes)
}

func TestOpen_NonZeroAuthLenRejected(t *testing.T) {
	o := &Open{}
	b := Serialize(o)
	// auth_len occupies the last two bytes; force it non-zero.
	b[len(b)-1] = 1
	_, err := Parse(b)
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, ReasonNonZeroAuth, pe.Reason)
}

func TestRoundTrip_Keepalive(t *testing.T) {
	roundTrip(t, &Keepalive{})
}

func TestKeepalive_NonEmptyBodyRejected(t *testing.T) {
	b := Serialize(&Keepalive{})
	b = append(b, 0x00)
	putU16(b[1:3], uint16(len(b)))
	_, err := Parse(b)
	require.Error(t, err)
}

func TestRoundTrip_ACK(t *testing.T) {
	roundTrip(t, &ACK{AckType: PDUTypeOpen, ErrorType: ErrorTypeNoError})
	roundTrip(t, &ACK{AckType: PDUTypeIPv4Encap, ErrorType: ErrorTypeWarning, ErrorCode: ErrorCodeLinkAddressingConflict, Hint: 7})
}

func TestACK_UnknownAckTypeRejected(t *testing.T) {
	a := &ACK{AckType: 200, ErrorType: ErrorTypeNoError}
	b := Serialize(a)
	_, err := Parse(b)
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, ReasonUnknownACKType, pe.Reason)
}

func TestACK_AckOfUnackedTypeRejected(t *testing.T) {
	a := &ACK{AckType: PDUTypeHello, ErrorType: ErrorTypeNoError}
	b := Serialize(a)
	_, err := Parse(b)
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, ReasonACKOfUnackedType, pe.Reason)
}

func TestACK_NoErrorWithNonZeroCodeRejected(t *testing.T) {
	a := &ACK{AckType: PDUTypeOpen, ErrorType: ErrorTypeNoError, ErrorCode: ErrorCodeLinkAddressingConflict}
	b := Serialize(a)
	_, err := Parse(b)
	require.Error(t, err)
}

func TestACK_NonNoErrorWithUnknownCodeRejected(t *testing.T) {
	a := &ACK{AckType: PDUTypeOpen, ErrorType: ErrorTypeWarning, ErrorCode: 99}
	b := Serialize(a)
	_, err := Parse(b)
	require.Error(t, err)
}

func TestRoundTrip_IPv4Encap(t *testing.T) {
	p := &IPv4Encap{Entries: []IPEncapEntry{
		{Primary: false, Loopback: true, Addr: []byte{10, 0, 0, 1}, PrefixLen: 24},
		{Addr: []byte{192, 168, 1, 1}, PrefixLen: 32},
	}}
	got := roundTrip(t, p).(*IPv4Encap)
	require.Len(t, got.Entries, 2)
	require.True(t, got.Entries[0].Loopback)
}

func TestRoundTrip_IPv6Encap_Empty(t *testing.T) {
	got := roundTrip(t, &IPv6Encap{}).(*IPv6Encap)
	require.Empty(t, got.Entries)
}

func TestRoundTrip_IPv6Encap_ManyEntries(t *testing.T) {
	entries := make([]IPEncapEntry, 200)
	for i := range entries {
		addr := make([]byte, 16)
		addr[15] = byte(i)
		entries[i] = IPEncapEntry{Addr: addr, PrefixLen: 64}
	}
	p := &IPv6Encap{Entries: entries}
	got := roundTrip(t, p).(*IPv6Encap)
	require.Len(t, got.Entries, 200)
}

func TestRoundTrip_MPLSv4Encap(t *testing.T) {
	p := &MPLSv4Encap{Entries: []MPLSEncapEntry{
		{Labels: []Label{{0, 0, 16}, {0, 0, 17}}, Addr: []byte{10, 0, 0, 2}, PrefixLen: 32},
	}}
	got := roundTrip(t, p).(*MPLSv4Encap)
	require.Len(t, got.Entries, 1)
	require.Len(t, got.Entries[0].Labels, 2)
}

func TestRoundTrip_MPLSv6Encap_Empty(t *testing.T) {
	got := roundTrip(t, &MPLSv6Encap{}).(*MPLSv6Encap)
	require.Empty(t, got.Entries)
}

func TestRoundTrip_Vendor(t *testing.T) {
	p := &Vendor{EnterpriseNumber: 4242, Opaque: []byte("hello")}
	got := roundTrip(t, p).(*Vendor)
	require.Equal(t, uint32(4242), got.EnterpriseNumber)
	require.Equal(t, []byte("hello"), got.Opaque)
}

func TestParse_LengthMismatchRejected(t *testing.T) {
	b := Serialize(&Keepalive{})
	b = append(b, 0xff) // extra byte not reflected in header length
	_, err := Parse(b)
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, ReasonLengthMismatch, pe.Reason)
}

func TestParse_UnknownTypeRejected(t *testing.T) {
	b := []byte{42, 0, 3}
	_, err := Parse(b)
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, ReasonUnknownType, pe.Reason)
}

func TestParse_ShortRejected(t *testing.T) {
	_, err := Parse([]byte{1, 2})
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, ReasonShort, pe.Reason)
}

func TestIsAcked(t *testing.T) {
	require.True(t, IsAcked(PDUTypeOpen))
	require.True(t, IsAcked(PDUTypeIPv4Encap))
	require.True(t, IsAcked(PDUTypeVendor))
	require.False(t, IsAcked(PDUTypeHello))
	require.False(t, IsAcked(PDUTypeKeepalive))
	require.False(t, IsAcked(PDUTypeACK))
}
