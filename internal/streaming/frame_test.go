package streaming

import (
	"encoding/binary"
	"testing"
)

func TestFrameHeaderRoundTrip(t *testing.T) {
	payload := make([]byte, 4096)
	for i := range payload {
		payload[i] = byte(i * 7)
	}

	hdr := make([]byte, HeaderLen)
	EncodeHeaderInto(hdr, 0xCAFEBABE, 0x11223344, payload)

	got, err := DecodeHeader(hdr)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.SeqNo != 0xCAFEBABE {
		t.Fatalf("seqNo mismatch: got 0x%08x", got.SeqNo)
	}
	if got.Timestamp != 0x11223344 {
		t.Fatalf("timestamp mismatch: got 0x%08x", got.Timestamp)
	}
	if got.CRC16 != CRC16(payload) {
		t.Fatalf("crc16 mismatch: got 0x%04x want 0x%04x", got.CRC16, CRC16(payload))
	}
	if got.FrameSize != uint32(len(payload)) {
		t.Fatalf("frameSize mismatch: got %d want %d", got.FrameSize, len(payload))
	}
}

func TestFrameHeaderRoundTripSmallAndLarge(t *testing.T) {
	for _, n := range []int{1, 2, 255, 65536, 1 << 20} {
		payload := make([]byte, n)
		for i := range payload {
			payload[i] = byte(i)
		}
		hdr := make([]byte, HeaderLen)
		EncodeHeaderInto(hdr, uint32(n), uint32(n*2), payload)
		got, err := DecodeHeader(hdr)
		if err != nil {
			t.Fatalf("n=%d decode: %v", n, err)
		}
		if got.SeqNo != uint32(n) || got.Timestamp != uint32(n*2) || got.FrameSize != uint32(n) || got.CRC16 != CRC16(payload) {
			t.Fatalf("n=%d round trip mismatch: %+v", n, got)
		}
	}
}

func TestFrameHeaderBigEndianLayout(t *testing.T) {
	payload := []byte("abc")
	hdr := make([]byte, HeaderLen)
	EncodeHeaderInto(hdr, 0x01020304, 0x05060708, payload)

	if hdr[0] != Magic {
		t.Fatalf("expected magic byte 0x%02x at offset 0, got 0x%02x", Magic, hdr[0])
	}
	if got := binary.BigEndian.Uint32(hdr[1:5]); got != 0x01020304 {
		t.Fatalf("seqNo bytes not big-endian: got 0x%08x", got)
	}
	if !(hdr[1] == 0x01 && hdr[2] == 0x02 && hdr[3] == 0x03 && hdr[4] == 0x04) {
		t.Fatalf("seqNo byte order wrong: % x", hdr[1:5])
	}
	if got := binary.BigEndian.Uint32(hdr[5:9]); got != 0x05060708 {
		t.Fatalf("timestamp bytes not big-endian: got 0x%08x", got)
	}
	wantCRC := CRC16(payload)
	if got := binary.BigEndian.Uint16(hdr[9:11]); got != wantCRC {
		t.Fatalf("crc16 bytes not big-endian: got 0x%04x want 0x%04x", got, wantCRC)
	}
	if got := binary.BigEndian.Uint32(hdr[11:15]); got != uint32(len(payload)) {
		t.Fatalf("frameSize bytes not big-endian: got %d", got)
	}
}

func TestDecodeHeaderRejectsBadMagic(t *testing.T) {
	hdr := make([]byte, HeaderLen)
	EncodeHeaderInto(hdr, 1, 1, []byte("x"))
	hdr[0] = 0x00
	if _, err := DecodeHeader(hdr); err == nil {
		t.Fatalf("expected error for bad magic byte")
	}
}

func TestDecodeHeaderRejectsWrongLength(t *testing.T) {
	if _, err := DecodeHeader(make([]byte, HeaderLen-1)); err == nil {
		t.Fatalf("expected error for short header")
	}
	if _, err := DecodeHeader(make([]byte, HeaderLen+1)); err == nil {
		t.Fatalf("expected error for long header")
	}
}

func TestCRC16KnownVector(t *testing.T) {
	// "123456789" is the standard CRC-16/ARC check-value vector: 0xBB3D.
	if got := CRC16([]byte("123456789")); got != 0xBB3D {
		t.Fatalf("CRC-16/ARC check value mismatch: got 0x%04x want 0xbb3d", got)
	}
}
