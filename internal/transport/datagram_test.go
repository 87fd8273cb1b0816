package transport

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitMessage_SingleFragment(t *testing.T) {
	pdu := []byte("a short pdu")
	dgrams := SplitMessage(pdu)
	require.Len(t, dgrams, 1)
	require.True(t, dgrams[0].IsFinal())
	require.Equal(t, uint8(0), dgrams[0].FragNumber())
	require.Equal(t, pdu, dgrams[0].Payload)
}

func TestSplitMessage_EmptyPDU(t *testing.T) {
	dgrams := SplitMessage(nil)
	require.Len(t, dgrams, 1)
	require.True(t, dgrams[0].IsFinal())
	require.Empty(t, dgrams[0].Payload)
}

func TestSplitMessage_MultiFragment(t *testing.T) {
	pdu := bytes.Repeat([]byte{0x5a}, maxFragmentPayload*2+17)
	dgrams := SplitMessage(pdu)
	require.Len(t, dgrams, 3)
	for i, d := range dgrams {
		require.Equal(t, uint8(i), d.FragNumber())
		require.Equal(t, i == len(dgrams)-1, d.IsFinal())
	}

	var reassembled []byte
	for _, d := range dgrams {
		reassembled = append(reassembled, d.Payload...)
	}
	require.Equal(t, pdu, reassembled)
}

func TestDatagramMarshalParseRoundTrip(t *testing.T) {
	d := newOutgoing([]byte("hello world"), 0, true)
	wire := d.Marshal()

	got, err := parseDatagram(wire)
	require.NoError(t, err)
	require.Equal(t, d.Version, got.Version)
	require.Equal(t, d.Frag, got.Frag)
	require.Equal(t, d.Length, got.Length)
	require.Equal(t, d.Checksum, got.Checksum)
	require.Equal(t, d.Payload, got.Payload)
}

func TestParseDatagram_BadChecksumRejected(t *testing.T) {
	d := newOutgoing([]byte("hello"), 0, true)
	wire := d.Marshal()
	wire[len(wire)-1] ^= 0xff // corrupt a payload byte without fixing length
	_, err := parseDatagram(wire)
	require.Error(t, err)
}

func TestParseDatagram_BadVersionRejected(t *testing.T) {
	d := newOutgoing([]byte("hello"), 0, true)
	wire := d.Marshal()
	wire[0] = Version + 1
	_, err := parseDatagram(wire)
	require.Error(t, err)
}

func TestParseDatagram_TooShortRejected(t *testing.T) {
	_, err := parseDatagram([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestParseDatagram_TrailingBytesIgnored(t *testing.T) {
	d := newOutgoing([]byte("hello"), 0, true)
	wire := append(d.Marshal(), 0xde, 0xad)
	got, err := parseDatagram(wire)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got.Payload)
}
