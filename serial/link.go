package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// LinkConfig describes one attached mote.
type LinkConfig struct {
	Name        string
	Baud        int
	ReadTimeout time.Duration
}

// Link owns the serial handle of one mote.
//
// A link is either open for reading (collector running) or available for a
// flash, never both: Open refuses while a WriteImage is in flight and
// WriteImage refuses while the link is open.
type Link struct {
	cfg     LinkConfig
	open    Opener
	flasher Flasher

	mu       sync.Mutex
	port     Port
	flashing bool
	scratch  []byte
}

// NewLink builds a closed link. flasher may be nil when uploads are not
// configured; WriteImage then fails with CodeIOError.
func NewLink(cfg LinkConfig, open Opener, flasher Flasher) *Link {
	if open == nil {
		open = TarmOpener
	}
	return &Link{
		cfg:     cfg,
		open:    open,
		flasher: flasher,
		scratch: make([]byte, 256),
	}
}

// Name returns the port name, which is also the device identity.
func (l *Link) Name() string { return l.cfg.Name }

// IsOpen reports whether the link currently holds a handle.
func (l *Link) IsOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.port != nil
}

// Open acquires the device handle. It is a no-op when already open.
func (l *Link) Open() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.port != nil {
		return nil
	}
	if l.flashing {
		return fmt.Errorf("open %s: %w", l.cfg.Name, ErrLinkBusy)
	}
	p, err := l.open(l.cfg.Name, l.cfg.Baud, l.cfg.ReadTimeout)
	if err != nil {
		return fmt.Errorf("open %s: %w: %v", l.cfg.Name, ErrDeviceUnavailable, err)
	}
	l.port = p
	return nil
}

// Close releases the handle. Closing a closed link is fine.
func (l *Link) Close() error {
	l.mu.Lock()
	p := l.port
	l.port = nil
	l.mu.Unlock()
	if p == nil {
		return nil
	}
	return p.Close()
}

// PollAvailable does one bounded read and returns whatever arrived.
// A read timeout with no data yields an empty slice and a nil error.
func (l *Link) PollAvailable() ([]byte, error) {
	l.mu.Lock()
	p := l.port
	l.mu.Unlock()
	if p == nil {
		return nil, fmt.Errorf("read %s: %w: link closed", l.cfg.Name, ErrDeviceUnavailable)
	}
	// scratch is only touched by the single poller.
	n, err := p.Read(l.scratch)
	var out []byte
	if n > 0 {
		out = make([]byte, n)
		copy(out, l.scratch[:n])
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return out, fmt.Errorf("read %s: %w: %v", l.cfg.Name, ErrDeviceUnavailable, err)
	}
	return out, nil
}

// WriteImage flashes a full program image. The link must be closed; the
// caller stops the collector first.
func (l *Link) WriteImage(ctx context.Context, image []byte) (ResultCode, error) {
	l.mu.Lock()
	if l.port != nil || l.flashing {
		l.mu.Unlock()
		return CodeBusy, &UploadError{Port: l.cfg.Name, Code: CodeBusy, Err: ErrLinkBusy}
	}
	l.flashing = true
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.flashing = false
		l.mu.Unlock()
	}()

	if len(image) == 0 {
		return CodeIOError, &UploadError{Port: l.cfg.Name, Code: CodeIOError, Err: errors.New("empty image")}
	}
	if l.flasher == nil {
		return CodeIOError, &UploadError{Port: l.cfg.Name, Code: CodeIOError, Err: errors.New("no flasher configured")}
	}
	code, err := l.flasher.Flash(ctx, l.cfg.Name, l.cfg.Baud, image)
	if err == nil && code == CodeOK {
		return CodeOK, nil
	}
	if code == CodeOK {
		code = CodeIOError
	}
	return code, &UploadError{Port: l.cfg.Name, Code: code, Err: err}
}
