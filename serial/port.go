package serial

import (
	"io"
	"time"

	goserial "github.com/tarm/serial"
)

// Port is the minimal view of an open serial device. *tarm/serial.Port
// satisfies it; tests use in-memory fakes.
type Port interface {
	io.ReadWriteCloser
}

// Opener opens a named port. readTimeout bounds every Read call.
type Opener func(name string, baud int, readTimeout time.Duration) (Port, error)

// TarmOpener opens a real device with 8N1 framing.
//
// On POSIX systems tarm/serial rounds readTimeout up to 100 ms (VTIME has
// decisecond resolution), so polls never block longer than that.
func TarmOpener(name string, baud int, readTimeout time.Duration) (Port, error) {
	cfg := &goserial.Config{
		Name:        name,
		Baud:        baud,
		Parity:      goserial.ParityNone,
		Size:        8,
		StopBits:    goserial.Stop1,
		ReadTimeout: readTimeout,
	}
	sp, err := goserial.OpenPort(cfg)
	if err != nil {
		return nil, err
	}
	return sp, nil
}
