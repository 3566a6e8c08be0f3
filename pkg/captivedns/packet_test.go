package captivedns

import (
	"bytes"
	"encoding/binary"
	"net/netip"
	"strings"
	"testing"
)

var testGateway = netip.AddrFrom4([4]byte{192, 168, 4, 1})

// buildQuery crafts a raw DNS request with a single question.
func buildQuery(id uint16, rd bool, name string, qtype uint16) []byte {
	var out []byte

	var hdr [headerLen]byte
	binary.BigEndian.PutUint16(hdr[0:2], id)
	if rd {
		binary.BigEndian.PutUint16(hdr[2:4], flagRD)
	}
	binary.BigEndian.PutUint16(hdr[4:6], 1)
	out = append(out, hdr[:]...)

	for _, label := range strings.Split(name, ".") {
		out = append(out, byte(len(label)))
		out = append(out, label...)
	}
	out = append(out, 0)

	var tail [4]byte
	binary.BigEndian.PutUint16(tail[0:2], qtype)
	binary.BigEndian.PutUint16(tail[2:4], classIN)
	return append(out, tail[:]...)
}

func TestTypeAQuery(t *testing.T) {
	req := buildQuery(0xBEEF, true, "connectivitycheck.gstatic.com", TypeA)

	q, err := parseQuery(req)
	if err != nil {
		t.Fatalf("parseQuery: %v", err)
	}
	reply := buildReply(q, testGateway)

	if got := binary.BigEndian.Uint16(reply[0:2]); got != 0xBEEF {
		t.Errorf("transaction ID = %#x, want 0xBEEF", got)
	}

	flags := binary.BigEndian.Uint16(reply[2:4])
	if flags&flagQR == 0 || flags&flagAA == 0 {
		t.Errorf("flags = %#x, want QR and AA set", flags)
	}
	if flags&flagRD == 0 {
		t.Errorf("flags = %#x, want RD copied from request", flags)
	}
	if rcode := flags & 0x000F; rcode != 0 {
		t.Errorf("rcode = %d, want NOERROR", rcode)
	}

	if got := binary.BigEndian.Uint16(reply[4:6]); got != 1 {
		t.Errorf("QDCOUNT = %d, want 1", got)
	}
	if got := binary.BigEndian.Uint16(reply[6:8]); got != 1 {
		t.Errorf("ANCOUNT = %d, want 1", got)
	}

	// Question section must be echoed verbatim.
	qlen := len(req) - headerLen
	if !bytes.Equal(reply[headerLen:headerLen+qlen], req[headerLen:]) {
		t.Error("question section not copied unchanged")
	}

	// The single answer resolves to the gateway with TTL 30.
	ans := reply[headerLen+qlen:]
	if len(ans) != 16 {
		t.Fatalf("answer length = %d, want 16", len(ans))
	}
	if ans[0] != 0xC0 || ans[1] != 0x0C {
		t.Errorf("answer name = %#x %#x, want pointer to offset 12", ans[0], ans[1])
	}
	if got := binary.BigEndian.Uint16(ans[2:4]); got != TypeA {
		t.Errorf("answer type = %d, want A", got)
	}
	if got := binary.BigEndian.Uint32(ans[6:10]); got != answerTTLSeconds {
		t.Errorf("answer TTL = %d, want %d", got, answerTTLSeconds)
	}
	if got := binary.BigEndian.Uint16(ans[10:12]); got != 4 {
		t.Errorf("RDLENGTH = %d, want 4", got)
	}
	want := testGateway.As4()
	if !bytes.Equal(ans[12:16], want[:]) {
		t.Errorf("RDATA = %v, want %v", ans[12:16], want)
	}
}

func TestNonAQueryGetsNoData(t *testing.T) {
	req := buildQuery(7, false, "example.com", TypeAAAA)

	q, err := parseQuery(req)
	if err != nil {
		t.Fatalf("parseQuery: %v", err)
	}
	reply := buildReply(q, testGateway)

	flags := binary.BigEndian.Uint16(reply[2:4])
	if rcode := flags & 0x000F; rcode != 0 {
		t.Errorf("rcode = %d, want NOERROR for NODATA", rcode)
	}
	if flags&flagRD != 0 {
		t.Errorf("flags = %#x, RD set but request did not ask for recursion", flags)
	}
	if got := binary.BigEndian.Uint16(reply[6:8]); got != 0 {
		t.Errorf("ANCOUNT = %d, want 0", got)
	}
	if got := len(reply); got != len(req) {
		t.Errorf("reply length = %d, want %d (header + question only)", got, len(req))
	}
}

func TestCompressedNamePointer(t *testing.T) {
	// A (rare) request whose QNAME is a bare compression pointer.
	req := make([]byte, 0, headerLen+6)
	var hdr [headerLen]byte
	binary.BigEndian.PutUint16(hdr[0:2], 42)
	binary.BigEndian.PutUint16(hdr[4:6], 1)
	req = append(req, hdr[:]...)
	req = append(req, 0xC0, 0x0C) // pointer terminates the name
	req = append(req, 0x00, 0x01, 0x00, 0x01)

	q, err := parseQuery(req)
	if err != nil {
		t.Fatalf("parseQuery: %v", err)
	}
	if q.qtype != TypeA {
		t.Fatalf("qtype = %d, want A", q.qtype)
	}
}

func TestMalformedQueriesRejected(t *testing.T) {
	valid := buildQuery(1, false, "example.com", TypeA)

	tests := []struct {
		name string
		msg  []byte
	}{
		{"empty", nil},
		{"short header", valid[:8]},
		{"zero questions", func() []byte {
			m := append([]byte(nil), valid...)
			binary.BigEndian.PutUint16(m[4:6], 0)
			return m
		}()},
		{"truncated question", valid[:len(valid)-3]},
		{"unterminated name", valid[:headerLen+4]},
		{"oversized label", func() []byte {
			m := append([]byte(nil), valid...)
			m[headerLen] = 64 // labels cap at 63
			return m
		}()},
		{"dangling pointer", func() []byte {
			m := append([]byte(nil), valid[:headerLen]...)
			return append(m, 0xC0) // pointer missing its second byte
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseQuery(tt.msg); err == nil {
				t.Error("parseQuery accepted a malformed packet")
			}
		})
	}
}
