package serial

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Flasher writes a program image to the mote on port.
type Flasher interface {
	Flash(ctx context.Context, port string, baud int, image []byte) (ResultCode, error)
}

// CommandFlasher runs an external bootstrap loader. Argv may contain the
// placeholders {port}, {baud} and {image}; the image is written to a
// temporary file first. The tool's exit status becomes the result code.
type CommandFlasher struct {
	Argv    []string
	TempDir string
	Logger  *zap.Logger
}

func (f *CommandFlasher) Flash(ctx context.Context, port string, baud int, image []byte) (ResultCode, error) {
	if len(f.Argv) == 0 {
		return CodeIOError, errors.New("flash command not configured")
	}
	tmp, err := os.CreateTemp(f.TempDir, "image-*.ihex")
	if err != nil {
		return CodeIOError, fmt.Errorf("create image file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(image); err != nil {
		_ = tmp.Close()
		return CodeIOError, fmt.Errorf("write image file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return CodeIOError, fmt.Errorf("close image file: %w", err)
	}

	r := strings.NewReplacer("{port}", port, "{baud}", fmt.Sprint(baud), "{image}", tmp.Name())
	argv := make([]string, len(f.Argv))
	for i, a := range f.Argv {
		argv[i] = r.Replace(a)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	out, err := cmd.CombinedOutput()
	if f.Logger != nil {
		f.Logger.Debug("Flash command finished",
			zap.String("port", port),
			zap.Strings("argv", argv),
			zap.ByteString("output", out))
	}
	if err == nil {
		return CodeOK, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		return ResultCode(exitErr.ExitCode()), fmt.Errorf("flash command: %w", err)
	}
	return CodeIOError, fmt.Errorf("flash command: %w", err)
}

// FrameFlasher streams the image over the serial link itself, one CRC16
// framed block at a time, waiting for the bootloader to acknowledge each.
type FrameFlasher struct {
	Open       Opener
	FrameSize  int
	AckTimeout time.Duration
}

func (f *FrameFlasher) Flash(ctx context.Context, port string, baud int, image []byte) (ResultCode, error) {
	open := f.Open
	if open == nil {
		open = TarmOpener
	}
	size := f.FrameSize
	if size <= 0 || size > 255 {
		size = 128
	}
	ackTimeout := f.AckTimeout
	if ackTimeout <= 0 {
		ackTimeout = time.Second
	}

	p, err := open(port, baud, 100*time.Millisecond)
	if err != nil {
		return CodeIOError, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	defer func() { _ = p.Close() }()

	send := func(frame []byte) (ResultCode, error) {
		if _, err := p.Write(frame); err != nil {
			return CodeIOError, err
		}
		b, err := readAck(p, ackTimeout)
		if err != nil {
			return CodeTimeout, err
		}
		if b == nackByte {
			return CodeNack, errors.New("device rejected frame")
		}
		return CodeOK, nil
	}

	var seq uint16
	for off := 0; off < len(image); off += size {
		select {
		case <-ctx.Done():
			return CodeIOError, ctx.Err()
		default:
		}
		end := off + size
		if end > len(image) {
			end = len(image)
		}
		if code, err := send(encodeFrame(frameData, seq, image[off:end])); err != nil {
			return code, fmt.Errorf("frame %d: %w", seq, err)
		}
		seq++
	}
	if code, err := send(encodeFrame(frameEnd, seq, nil)); err != nil {
		return code, fmt.Errorf("end frame: %w", err)
	}
	return CodeOK, nil
}
