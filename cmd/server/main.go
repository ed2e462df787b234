// Command `motebridge` bridges serial-attached motes to a local web UI.
//
// It polls every configured mote, keeps a rolling log and a numeric series
// of what they print, serves both as streaming pages and accepts firmware
// uploads that take the serial links over.
//
// Flags:
//
//	--config:  path to a YAML config file (optional)
//	--addr:    TCP address to listen on (overrides server.listen_address)
//	--web:     directory with page templates and assets (default: built in)
//	--open:    open the UI URL in your default browser at startup
//	--console: read single-key commands from the terminal
//
// Env:
//
//	MOTEBRIDGE_* overrides any config key, e.g. MOTEBRIDGE_SERIAL_BAUDRATE.
//	MOTEBRIDGE_NO_OPEN=1 disables browser auto-open even when --open is set.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/CK6170/motebridge/internal/config"
	"github.com/CK6170/motebridge/internal/render"
	"github.com/CK6170/motebridge/internal/server"
	"github.com/CK6170/motebridge/internal/telemetry"
	"github.com/CK6170/motebridge/internal/upload"
	"github.com/CK6170/motebridge/internal/web"
	"github.com/CK6170/motebridge/serial"
	"github.com/CK6170/motebridge/ui"
)

func main() {
	var (
		configPath = pflag.String("config", "", "path to configuration file")
		addr       = pflag.String("addr", "", "http listen address (overrides config)")
		webRoot    = pflag.String("web", "", "directory with page templates and assets/")
		open       = pflag.Bool("open", false, "open the web UI in your default browser on startup")
		console    = pflag.Bool("console", false, "enable single-key console commands")
	)
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.ListenAddress = *addr
	}
	if *webRoot != "" {
		cfg.Web.Dir = *webRoot
	}

	logger, err := initLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	webFS, err := openWebRoot(cfg.Web.Dir)
	if err != nil {
		logger.Fatal("Invalid web directory", zap.String("dir", cfg.Web.Dir), zap.Error(err))
	}

	motes := serial.ResolveMotes(cfg.Serial.Motes)
	if len(motes) == 0 {
		logger.Warn("No motes attached; serving without serial devices")
	}
	logger.Info("Starting motebridge",
		zap.String("listen", cfg.Server.ListenAddress),
		zap.Strings("motes", motes),
		zap.Int("baudrate", cfg.Serial.Baudrate))

	flasher := newFlasher(cfg, logger)
	var (
		pollLinks  = make([]telemetry.Link, 0, len(motes))
		writeLinks = make([]upload.ImageWriter, 0, len(motes))
	)
	for _, name := range motes {
		l := serial.NewLink(serial.LinkConfig{
			Name:        name,
			Baud:        cfg.Serial.Baudrate,
			ReadTimeout: cfg.Serial.ReadTimeout,
		}, serial.TarmOpener, flasher)
		pollLinks = append(pollLinks, l)
		writeLinks = append(writeLinks, l)
	}

	state := telemetry.NewState(cfg.Collector.LogLines, cfg.Collector.SeriesSamples)
	// srv is assigned before the collector can start, so the hooks see it.
	var srv *server.Server
	collector := telemetry.NewCollector(state, telemetry.NewAggregator(state), pollLinks, telemetry.CollectorConfig{
		PollInterval:  cfg.Collector.PollInterval,
		OnLines:       func(lines []string) { srv.PublishLines(lines) },
		OnDeviceError: func(device string, err error) { srv.DeviceError(device, err) },
	}, logger)

	coordinator := upload.NewCoordinator(collector, writeLinks, upload.Config{
		Builder: &upload.MakeBuilder{
			Platform: cfg.Upload.Platform,
			Logger:   logger,
		},
		WorkRoot: cfg.Upload.WorkDir,
		MosRoot:  cfg.Upload.MansosPath,
	}, logger)

	srv = server.New(server.Options{
		State:     state,
		Collector: collector,
		Uploader:  coordinator,
		Devices:   motes,
		Renderer:  render.NewFS(webFS),
		Web:       webFS,
		Metrics:   server.NewMetrics(collector.Running),
		Logger:    logger,

		UploadTimeout: cfg.Upload.Timeout,
	})

	// Bind the listen address early so we fail fast if the port is in use.
	ln, err := net.Listen("tcp", cfg.Server.ListenAddress)
	if err != nil {
		logger.Fatal("Failed to listen", zap.String("addr", cfg.Server.ListenAddress), zap.Error(err))
	}

	httpServer := &http.Server{
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Serve(ln)
	}()

	uiURL := makeUIURL(ln.Addr().String())
	logger.Info("HTTP server started", zap.String("addr", ln.Addr().String()), zap.String("ui", uiURL))

	// Open browser unless disabled by flag or env var.
	if *open && os.Getenv("MOTEBRIDGE_NO_OPEN") == "" {
		if err := openBrowser(uiURL); err != nil {
			logger.Warn("Failed to open browser", zap.Error(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *console {
		startConsole(ctx, stop, collector, state, logger)
	}

	select {
	case err := <-serverErrors:
		collector.Stop()
		logger.Fatal("Server error", zap.Error(err))
	case <-ctx.Done():
		logger.Info("Shutting down")
	}
	ui.StopKeyEvents()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	srv.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server shutdown error", zap.Error(err))
		_ = httpServer.Close()
	}
	collector.Stop()
	logger.Info("Server stopped gracefully")
}

// initLogger creates a configured zap logger
func initLogger(level string, format string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var loggerConfig zap.Config
	if format == "json" {
		loggerConfig = zap.NewProductionConfig()
	} else {
		loggerConfig = zap.NewDevelopmentConfig()
	}

	loggerConfig.Level = zap.NewAtomicLevelAt(zapLevel)

	return loggerConfig.Build()
}

// openWebRoot returns the built-in pages, or dir when one is configured.
func openWebRoot(dir string) (fs.FS, error) {
	if dir == "" {
		return web.FS(), nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if st, err := os.Stat(abs); err != nil || !st.IsDir() {
		return nil, fmt.Errorf("web directory does not exist: %s", abs)
	}
	return os.DirFS(abs), nil
}

func newFlasher(cfg *config.Config, logger *zap.Logger) serial.Flasher {
	if cfg.Upload.Flasher == config.FlasherFrame {
		return &serial.FrameFlasher{
			FrameSize:  cfg.Upload.FrameSize,
			AckTimeout: cfg.Upload.AckTimeout,
		}
	}
	return &serial.CommandFlasher{
		Argv:    cfg.Upload.FlashCommand,
		TempDir: cfg.Upload.WorkDir,
		Logger:  logger,
	}
}

// startConsole binds the hotkeys and reads them in the background. quit
// triggers the same shutdown as SIGINT.
func startConsole(ctx context.Context, quit func(), collector *telemetry.Collector, state *telemetry.State, logger *zap.Logger) {
	keys, err := ui.KeyEvents()
	if err != nil {
		logger.Warn("Console mode unavailable", zap.Error(err))
		return
	}
	c := ui.NewConsole(os.Stdout)
	c.Bind("Start collector", func() {
		if !collector.Start() {
			ui.Warningf(os.Stdout, "collector already running\n")
		}
	}, 's')
	c.Bind("Stop collector", func() {
		if !collector.Stop() {
			ui.Warningf(os.Stdout, "collector not running\n")
		}
	}, 'x')
	c.Bind("Print rolling log", func() {
		for _, line := range state.Log() {
			fmt.Println("    " + line)
		}
	}, 'l')
	c.Bind("Clear screen", func() { ui.ClearScreen(os.Stdout) }, 'c')
	c.Bind("Help", c.Help, '?', 'h')
	c.Bind("Quit", quit, 'q', ui.KeyEsc, ui.KeyCtrlC)

	ui.DrainKeys(keys)
	ui.Greenf(os.Stdout, "Console commands:\n")
	c.Help()
	go c.Run(ctx, keys)
}

// makeUIURL turns a listen address (host:port) into a browser-friendly URL.
//
// If the server is bound to 0.0.0.0 / ::, the returned URL uses 127.0.0.1
// because wildcard addresses are not reachable targets in browsers.
func makeUIURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Sprintf("http://%s/", strings.TrimSpace(addr))
	}
	if host == "" || host == "0.0.0.0" || host == "::" || host == "[::]" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s/", net.JoinHostPort(host, port))
}

// openBrowser tries to open the given URL in the OS default browser without
// waiting for it.
func openBrowser(url string) error {
	switch runtime.GOOS {
	case "windows":
		// `start` is a cmd.exe built-in. The empty title argument prevents quoting issues.
		return exec.Command("cmd", "/c", "start", "", url).Start()
	case "darwin":
		return exec.Command("open", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
