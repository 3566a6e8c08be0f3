package captivedns

import (
	"encoding/binary"
	"errors"
	"net/netip"
)

// Wire constants.
const (
	headerLen = 12

	// TypeA and TypeAAAA are the qtypes the responder distinguishes;
	// everything that is not A gets a NODATA answer.
	TypeA    uint16 = 1
	TypeAAAA uint16 = 28

	classIN uint16 = 1

	// answerTTLSeconds keeps clients re-asking quickly once real
	// connectivity exists.
	answerTTLSeconds = 30

	flagQR uint16 = 0x8000
	flagAA uint16 = 0x0400
	flagRD uint16 = 0x0100
)

// Errors for malformed queries. The responder treats all of them the same
// way: drop the datagram silently.
var (
	errShortPacket   = errors.New("captivedns: packet too short")
	errNoQuestion    = errors.New("captivedns: no question")
	errBadLabel      = errors.New("captivedns: bad label")
	errTruncatedName = errors.New("captivedns: truncated name")
)

// query is the parsed first question of a request.
type query struct {
	id       uint16
	rd       bool
	qtype    uint16
	question []byte // QNAME + QTYPE + QCLASS, verbatim from the request
}

// parseQuery extracts the header and first question from a raw datagram.
// Additional questions are ignored.
func parseQuery(msg []byte) (query, error) {
	if len(msg) < headerLen {
		return query{}, errShortPacket
	}
	qdcount := binary.BigEndian.Uint16(msg[4:6])
	if qdcount < 1 {
		return query{}, errNoQuestion
	}

	// Walk the first QNAME. Labels are length-prefixed; a compression
	// pointer (top two bits set) ends the name in two bytes.
	pos := headerLen
	for {
		if pos >= len(msg) {
			return query{}, errTruncatedName
		}
		l := msg[pos]
		if l == 0 {
			pos++
			break
		}
		if l&0xC0 == 0xC0 {
			if pos+1 >= len(msg) {
				return query{}, errTruncatedName
			}
			pos += 2
			break
		}
		if l > 63 {
			return query{}, errBadLabel
		}
		pos += 1 + int(l)
	}
	if pos+4 > len(msg) {
		return query{}, errTruncatedName
	}

	flags := binary.BigEndian.Uint16(msg[2:4])
	return query{
		id:       binary.BigEndian.Uint16(msg[0:2]),
		rd:       flags&flagRD != 0,
		qtype:    binary.BigEndian.Uint16(msg[pos : pos+2]),
		question: msg[headerLen : pos+4],
	}, nil
}

// buildReply serializes the response for a parsed query. Type-A questions
// get exactly one answer pointing at the gateway; everything else gets
// NOERROR with zero answers so clients do not negative-cache other record
// types.
func buildReply(q query, gateway netip.Addr) []byte {
	answered := q.qtype == TypeA

	size := headerLen + len(q.question)
	if answered {
		size += 16 // compressed name (2) + type/class/ttl/rdlength (10) + IPv4 (4)
	}
	out := make([]byte, 0, size)

	flags := flagQR | flagAA
	if q.rd {
		flags |= flagRD
	}

	var hdr [headerLen]byte
	binary.BigEndian.PutUint16(hdr[0:2], q.id)
	binary.BigEndian.PutUint16(hdr[2:4], flags)
	binary.BigEndian.PutUint16(hdr[4:6], 1) // one question echoed back
	if answered {
		binary.BigEndian.PutUint16(hdr[6:8], 1)
	}
	out = append(out, hdr[:]...)
	out = append(out, q.question...)

	if answered {
		out = append(out,
			0xC0, 0x0C, // name: pointer to QNAME at offset 12
			0x00, byte(TypeA),
			0x00, byte(classIN),
			0x00, 0x00, 0x00, answerTTLSeconds,
			0x00, 0x04,
		)
		ip := gateway.As4()
		out = append(out, ip[:]...)
	}
	return out
}
