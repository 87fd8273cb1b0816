package transport

import (
	"fmt"
	"strings"
)

// hexDumpWidth is the line width log_raw_pdu wraps at in the original
// implementation (Python's textwrap.wrap default width), applied here to
// words of the form "xx" (one hex octet) joined by single spaces.
const hexDumpWidth = 70

// hexDumpLines renders b as space-separated lowercase hex octets, greedily
// wrapped at hexDumpWidth characters per line the way textwrap.wrap packs
// whitespace-separated words without breaking one mid-word.
func hexDumpLines(b []byte) []string {
	if len(b) == 0 {
		return nil
	}
	var lines []string
	var cur strings.Builder
	for _, c := range b {
		word := fmt.Sprintf("%02x", c)
		switch {
		case cur.Len() == 0:
			cur.WriteString(word)
		case cur.Len()+1+len(word) > hexDumpWidth:
			lines = append(lines, cur.String())
			cur.Reset()
			cur.WriteString(word)
		default:
			cur.WriteByte(' ')
			cur.WriteString(word)
		}
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}

// logRawPDU emits b's hex dump at Debug level, one log line per wrapped
// line, each prefixed "[%3d] %s" with its zero-based line number — the
// direct translation of the original's log_raw_pdu/textwrap.wrap pairing,
// gated by "-dd" (Config.DumpRawPDUs).
func (t *Transport) logRawPDU(action string, b []byte, peer [6]byte, ifName string) {
	for i, line := range hexDumpLines(b) {
		t.log.Debug(fmt.Sprintf("[%3d] %s", i, line),
			"action", action, "peer", peer, "interface", ifName)
	}
}
