// Package testutil provides in-memory serial fakes shared by package tests.
package testutil

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/CK6170/motebridge/serial"
)

// FakePort is a scripted serial.Port. Reads return queued chunks in order
// and io.EOF (the timeout result of a real port) when nothing is queued.
type FakePort struct {
	mu      sync.Mutex
	queue   [][]byte
	written []byte
	closed  bool
	reads   int

	// OnWrite, when set, returns bytes to queue in reply to each write.
	OnWrite func(p []byte) []byte
}

// Feed queues chunks to be returned by later reads.
func (p *FakePort) Feed(chunks ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range chunks {
		p.queue = append(p.queue, []byte(c))
	}
}

func (p *FakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reads++
	if p.closed {
		return 0, os.ErrClosed
	}
	if len(p.queue) == 0 {
		return 0, io.EOF
	}
	n := copy(b, p.queue[0])
	if n < len(p.queue[0]) {
		p.queue[0] = p.queue[0][n:]
	} else {
		p.queue = p.queue[1:]
	}
	return n, nil
}

func (p *FakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, os.ErrClosed
	}
	p.written = append(p.written, b...)
	if p.OnWrite != nil {
		if reply := p.OnWrite(b); len(reply) > 0 {
			p.queue = append(p.queue, reply)
		}
	}
	return len(b), nil
}

func (p *FakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Written returns a copy of every byte written so far.
func (p *FakePort) Written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.written...)
}

// Reads returns how many Read calls the port has served.
func (p *FakePort) Reads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reads
}

// Closed reports whether the last handle on the port was closed.
func (p *FakePort) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// FakeBus hands out FakePorts by name and can simulate unavailable devices.
type FakeBus struct {
	mu    sync.Mutex
	ports map[string]*FakePort
	fail  map[string]error
	opens map[string]int
}

func NewFakeBus() *FakeBus {
	return &FakeBus{
		ports: make(map[string]*FakePort),
		fail:  make(map[string]error),
		opens: make(map[string]int),
	}
}

// Port returns the fake behind name, creating it on first use.
func (b *FakeBus) Port(name string) *FakePort {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.portLocked(name)
}

func (b *FakeBus) portLocked(name string) *FakePort {
	p, ok := b.ports[name]
	if !ok {
		p = &FakePort{}
		b.ports[name] = p
	}
	return p
}

// Fail makes future opens of name return err. A nil err clears it.
func (b *FakeBus) Fail(name string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.fail, name)
		return
	}
	b.fail[name] = err
}

// Opens returns how many times name was opened successfully.
func (b *FakeBus) Opens(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opens[name]
}

// Open satisfies serial.Opener.
func (b *FakeBus) Open(name string, baud int, readTimeout time.Duration) (serial.Port, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fail[name]; err != nil {
		return nil, err
	}
	p := b.portLocked(name)
	p.mu.Lock()
	p.closed = false
	p.mu.Unlock()
	b.opens[name]++
	return p, nil
}

// FakeFlasher records flash calls and answers with a per-port code.
type FakeFlasher struct {
	mu     sync.Mutex
	codes  map[string]serial.ResultCode
	calls  []string
	images map[string][]byte
}

func NewFakeFlasher() *FakeFlasher {
	return &FakeFlasher{
		codes:  make(map[string]serial.ResultCode),
		images: make(map[string][]byte),
	}
}

// SetCode makes flashes to port return code.
func (f *FakeFlasher) SetCode(port string, code serial.ResultCode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[port] = code
}

func (f *FakeFlasher) Flash(ctx context.Context, port string, baud int, image []byte) (serial.ResultCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, port)
	f.images[port] = append([]byte(nil), image...)
	if code := f.codes[port]; code != serial.CodeOK {
		return code, errors.New("fake flash failure")
	}
	return serial.CodeOK, nil
}

// Calls returns the ports flashed, in call order.
func (f *FakeFlasher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Image returns the last image flashed to port.
func (f *FakeFlasher) Image(port string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.images[port]
}
