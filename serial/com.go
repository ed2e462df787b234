package serial

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// Frame bytes used by FrameFlasher.
const (
	frameData = 'F'
	frameEnd  = 'E'
	ackByte   = 'K'
	nackByte  = 'N'
)

// encodeFrame builds `kind seq(2) len(1) payload crc16(2) '\r'`.
func encodeFrame(kind byte, seq uint16, payload []byte) []byte {
	if len(payload) > 255 {
		panic("serial: frame payload larger than 255 bytes")
	}
	out := make([]byte, 0, len(payload)+7)
	out = append(out, kind, byte(seq>>8), byte(seq), byte(len(payload)))
	out = append(out, payload...)
	out = append(out, crc16(out)...)
	out = append(out, '\r')
	return out
}

func crc16(data []byte) []byte {
	cs := uint16(0)
	for _, b := range data {
		cs ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			carry := cs & 0x8000
			if carry != 0 {
				cs ^= 0x8810
			}
			cs = (cs << 1) + (carry >> 15)
		}
	}
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, cs)
	return buf
}

// readAck waits for an ACK or NACK byte until timeout. Other bytes (boot
// banners, echoes) are skipped.
func readAck(p Port, timeout time.Duration) (byte, error) {
	deadline := time.Now().Add(timeout)
	tmp := make([]byte, 16)
	for time.Now().Before(deadline) {
		n, err := p.Read(tmp)
		for _, b := range tmp[:n] {
			if b == ackByte || b == nackByte {
				return b, nil
			}
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}
		if n == 0 {
			time.Sleep(10 * time.Millisecond)
		}
	}
	return 0, fmt.Errorf("ack timeout after %s", timeout)
}
