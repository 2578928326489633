// Package streaming implements the encoded-frame wire protocol (§3) and the
// desktop-streaming service (server, C9) and request (client, C10) built on
// top of it.
package streaming

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	// Magic is the fixed first header byte identifying an encoded frame.
	Magic byte = 0xFE
	// HeaderLen is the fixed size of the frame envelope preceding payload.
	HeaderLen = 15
	// YUVHeaderLen is the size of the per-frame user header stamped into
	// the YUV ring (seqNo + timestamp, §3 "YUV frame").
	YUVHeaderLen = 8
)

// Header is the parsed form of the 15-byte frame envelope.
type Header struct {
	SeqNo     uint32
	Timestamp uint32
	CRC16     uint16
	FrameSize uint32
}

// EncodeHeaderInto writes the 15-byte header for seqNo/timestamp/payload
// into dst[0:15]. dst must have length >= HeaderLen. The CRC covers only
// payload, never the header itself (§3 invariant).
func EncodeHeaderInto(dst []byte, seqNo, timestamp uint32, payload []byte) {
	dst[0] = Magic
	binary.BigEndian.PutUint32(dst[1:5], seqNo)
	binary.BigEndian.PutUint32(dst[5:9], timestamp)
	binary.BigEndian.PutUint16(dst[9:11], CRC16(payload))
	binary.BigEndian.PutUint32(dst[11:15], uint32(len(payload)))
}

// DecodeHeader parses exactly HeaderLen bytes of src into a Header, or
// returns an error if the magic byte doesn't match (protocol-malformed,
// §7).
func DecodeHeader(src []byte) (Header, error) {
	if len(src) != HeaderLen {
		return Header{}, errors.Errorf("streaming: header must be %d bytes, got %d", HeaderLen, len(src))
	}
	if src[0] != Magic {
		return Header{}, errors.Errorf("streaming: bad magic byte 0x%02x", src[0])
	}
	return Header{
		SeqNo:     binary.BigEndian.Uint32(src[1:5]),
		Timestamp: binary.BigEndian.Uint32(src[5:9]),
		CRC16:     binary.BigEndian.Uint16(src[9:11]),
		FrameSize: binary.BigEndian.Uint32(src[11:15]),
	}, nil
}

// EncodeYUVHeaderInto writes the 8-byte user header (seqNo, timestamp)
// stamped at the front of every YUV ring slot.
func EncodeYUVHeaderInto(dst []byte, seqNo, timestamp uint32) {
	binary.BigEndian.PutUint32(dst[0:4], seqNo)
	binary.BigEndian.PutUint32(dst[4:8], timestamp)
}
