package upload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CK6170/motebridge/serial"
)

// Files written into a build workspace.
const (
	SourceFile   = "main.c"
	ConfigFile   = "config"
	MakefileFile = "Makefile"
)

// ErrNoBuilder is returned when source uploads are not configured.
var ErrNoBuilder = errors.New("no builder configured")

// Source is an application submitted as code rather than as an image.
type Source struct {
	Code   string
	Config string
}

// Builder compiles the application in dir and uploads it to one port.
type Builder interface {
	CompileAndUpload(ctx context.Context, dir, port string) (serial.ResultCode, error)
}

// MakeBuilder runs `make <platform> upload BSLPORT=<port>` in the workspace.
type MakeBuilder struct {
	Make     string
	Platform string
	Logger   *zap.Logger
}

func (b *MakeBuilder) CompileAndUpload(ctx context.Context, dir, port string) (serial.ResultCode, error) {
	mk := b.Make
	if mk == "" {
		mk = "make"
	}
	platform := b.Platform
	if platform == "" {
		platform = "telosb"
	}
	cmd := exec.CommandContext(ctx, mk, platform, "upload", "BSLPORT="+port)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if b.Logger != nil {
		b.Logger.Debug("Build finished",
			zap.String("dir", dir),
			zap.String("port", port),
			zap.ByteString("output", out))
	}
	if err == nil {
		return serial.CodeOK, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		return serial.ResultCode(exitErr.ExitCode()), fmt.Errorf("build for %s: %w", port, err)
	}
	return serial.CodeIOError, fmt.Errorf("build for %s: %w", port, err)
}

// Workspace is a per-upload build directory.
type Workspace struct {
	ID  string
	Dir string
}

// NewWorkspace creates a fresh directory under root (the system temp dir
// when root is empty).
func NewWorkspace(root string) (*Workspace, error) {
	if root == "" {
		root = os.TempDir()
	}
	id := uuid.NewString()
	dir := filepath.Join(root, "upload-"+id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{ID: id, Dir: dir}, nil
}

// Write stores the source, its config and a Makefile naming the target
// motes.
func (w *Workspace) Write(src Source, mosRoot string, motes []string) error {
	files := map[string]string{
		SourceFile:   src.Code,
		ConfigFile:   src.Config,
		MakefileFile: Makefile(mosRoot, motes),
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(w.Dir, name), []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

// Remove deletes the workspace.
func (w *Workspace) Remove() error {
	return os.RemoveAll(w.Dir)
}

// Makefile renders the build descriptor for a single-source application.
func Makefile(mosRoot string, motes []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SOURCES = %s\n", SourceFile)
	b.WriteString("APPMOD = App\n")
	b.WriteString("PROJDIR = $(CURDIR)\n")
	fmt.Fprintf(&b, "MOTES = %s\n", strings.Join(motes, " "))
	b.WriteString("ifndef MOSROOT\n")
	fmt.Fprintf(&b, "  MOSROOT = %s\n", mosRoot)
	b.WriteString("endif\n")
	b.WriteString("include ${MOSROOT}/mos/make/Makefile\n")
	return b.String()
}

// Build stops the collector, writes a workspace for src and runs the
// builder once per selected device. Aggregation follows Upload.
func (c *Coordinator) Build(ctx context.Context, src Source, devices []string) (serial.ResultCode, []DeviceResult, error) {
	if c.builder == nil {
		return serial.CodeIOError, nil, ErrNoBuilder
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.collector.Stop()

	targets := c.ordered(devices)
	ws, err := NewWorkspace(c.workRoot)
	if err != nil {
		return serial.CodeIOError, nil, err
	}
	defer func() {
		if err := ws.Remove(); err != nil {
			c.logger.Warn("Failed to remove build workspace", zap.String("dir", ws.Dir), zap.Error(err))
		}
	}()
	if err := ws.Write(src, c.mosRoot, targets); err != nil {
		return serial.CodeIOError, nil, err
	}
	c.logger.Info("Building application",
		zap.String("workspace", ws.ID),
		zap.Strings("devices", targets))

	code, results := c.each(targets, func(name string, _ ImageWriter) (serial.ResultCode, error) {
		return c.builder.CompileAndUpload(ctx, ws.Dir, name)
	})
	return code, results, nil
}
