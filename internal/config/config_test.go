package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":30000", cfg.Server.ListenAddress)
	assert.Zero(t, cfg.Server.WriteTimeout)
	assert.Equal(t, []string{"auto"}, cfg.Serial.Motes)
	assert.Equal(t, 38400, cfg.Serial.Baudrate)
	assert.Equal(t, 50*time.Millisecond, cfg.Serial.ReadTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Collector.PollInterval)
	assert.Equal(t, 28, cfg.Collector.LogLines)
	assert.Equal(t, 40, cfg.Collector.SeriesSamples)
	assert.Equal(t, FlasherCommand, cfg.Upload.Flasher)
	assert.Equal(t, "telosb", cfg.Upload.Platform)
	assert.Zero(t, cfg.Upload.Timeout)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "motebridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  listen_address: "127.0.0.1:8080"
serial:
  motes: ["/dev/ttyUSB0", "/dev/ttyUSB1"]
  baudrate: 115200
collector:
  poll_interval: 20ms
upload:
  flasher: frame
log_level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.ListenAddress)
	assert.Equal(t, []string{"/dev/ttyUSB0", "/dev/ttyUSB1"}, cfg.Serial.Motes)
	assert.Equal(t, 115200, cfg.Serial.Baudrate)
	assert.Equal(t, 20*time.Millisecond, cfg.Collector.PollInterval)
	assert.Equal(t, FlasherFrame, cfg.Upload.Flasher)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("MOTEBRIDGE_SERIAL_BAUDRATE", "9600")
	t.Setenv("MOTEBRIDGE_SERVER_LISTEN_ADDRESS", ":9999")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9600, cfg.Serial.Baudrate)
	assert.Equal(t, ":9999", cfg.Server.ListenAddress)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Upload.Flasher = "magic"
	assert.ErrorContains(t, cfg.Validate(), "upload.flasher")

	cfg = base()
	cfg.Serial.Baudrate = 0
	assert.ErrorContains(t, cfg.Validate(), "baudrate")

	cfg = base()
	cfg.Collector.LogLines = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Upload.FlashCommand = nil
	assert.ErrorContains(t, cfg.Validate(), "flash_command")

	cfg = base()
	cfg.Upload.Timeout = -time.Second
	assert.ErrorContains(t, cfg.Validate(), "upload.timeout")
}
