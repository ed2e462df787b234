package serial

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopPort answers every write with the next byte from replies.
type loopPort struct {
	mu      sync.Mutex
	replies []byte
	pending []byte
	written [][]byte
}

func (p *loopPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) == 0 {
		return 0, io.EOF
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *loopPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.written = append(p.written, append([]byte(nil), b...))
	if len(p.replies) > 0 {
		p.pending = append(p.pending, p.replies[0])
		p.replies = p.replies[1:]
	}
	return len(b), nil
}

func (p *loopPort) Close() error { return nil }

func openerFor(p Port) Opener {
	return func(string, int, time.Duration) (Port, error) { return p, nil }
}

func TestEncodeFrame(t *testing.T) {
	f := encodeFrame(frameData, 0x0102, []byte("ab"))
	require.Len(t, f, 4+2+2+1)
	assert.Equal(t, []byte{'F', 0x01, 0x02, 2, 'a', 'b'}, f[:6])
	assert.Equal(t, crc16(f[:6]), f[6:8])
	assert.Equal(t, byte('\r'), f[8])
}

func TestFrameFlasher_AllAcked(t *testing.T) {
	p := &loopPort{replies: []byte("KKKK")}
	f := &FrameFlasher{Open: openerFor(p), FrameSize: 4, AckTimeout: 200 * time.Millisecond}

	code, err := f.Flash(context.Background(), "/dev/ttyUSB0", 38400, []byte("0123456789"))
	require.NoError(t, err)
	assert.Equal(t, CodeOK, code)
	// three data frames and one end frame
	require.Len(t, p.written, 4)
	assert.Equal(t, byte(frameEnd), p.written[3][0])

	var payload bytes.Buffer
	for _, fr := range p.written[:3] {
		payload.Write(fr[4 : 4+int(fr[3])])
	}
	assert.Equal(t, "0123456789", payload.String())
}

func TestFrameFlasher_Nack(t *testing.T) {
	p := &loopPort{replies: []byte("KN")}
	f := &FrameFlasher{Open: openerFor(p), FrameSize: 4, AckTimeout: 200 * time.Millisecond}

	code, err := f.Flash(context.Background(), "/dev/ttyUSB0", 38400, []byte("0123456789"))
	require.Error(t, err)
	assert.Equal(t, CodeNack, code)
	assert.Len(t, p.written, 2)
}

func TestFrameFlasher_Timeout(t *testing.T) {
	p := &loopPort{}
	f := &FrameFlasher{Open: openerFor(p), FrameSize: 4, AckTimeout: 30 * time.Millisecond}

	code, err := f.Flash(context.Background(), "/dev/ttyUSB0", 38400, []byte("01"))
	require.Error(t, err)
	assert.Equal(t, CodeTimeout, code)
}

func TestCommandFlasher_ExitCode(t *testing.T) {
	f := &CommandFlasher{Argv: []string{"sh", "-c", "test -s {image} && exit 7"}, TempDir: t.TempDir()}
	code, err := f.Flash(context.Background(), "/dev/ttyUSB0", 38400, []byte("image"))
	require.Error(t, err)
	assert.Equal(t, ResultCode(7), code)

	f.Argv = []string{"sh", "-c", "test {port} = /dev/ttyUSB0 && test {baud} = 38400"}
	code, err = f.Flash(context.Background(), "/dev/ttyUSB0", 38400, []byte("image"))
	require.NoError(t, err)
	assert.Equal(t, CodeOK, code)
}

func TestCommandFlasher_NotConfigured(t *testing.T) {
	code, err := (&CommandFlasher{}).Flash(context.Background(), "p", 1, []byte("x"))
	require.Error(t, err)
	assert.Equal(t, CodeIOError, code)
}
