package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// MOTEBRIDGE_SERIAL_BAUDRATE.
const EnvPrefix = "MOTEBRIDGE"

// Flasher kinds.
const (
	FlasherCommand = "command"
	FlasherFrame   = "frame"
)

// HTTPServerConfig holds HTTP server settings
type HTTPServerConfig struct {
	ListenAddress   string        `mapstructure:"listen_address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SerialConfig lists the attached motes. A single "auto" entry enumerates
// the USB serial ports at startup.
type SerialConfig struct {
	Motes       []string      `mapstructure:"motes"`
	Baudrate    int           `mapstructure:"baudrate"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

// CollectorConfig sizes the rolling buffers and the poll cadence.
type CollectorConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	LogLines      int           `mapstructure:"log_lines"`
	SeriesSamples int           `mapstructure:"series_samples"`
}

// UploadConfig selects how images and sources reach the motes.
type UploadConfig struct {
	Flasher string `mapstructure:"flasher"`
	// FlashCommand is the argv of the flashing tool; {port}, {baud} and
	// {image} are substituted.
	FlashCommand []string      `mapstructure:"flash_command"`
	FrameSize    int           `mapstructure:"frame_size"`
	AckTimeout   time.Duration `mapstructure:"ack_timeout"`
	MansosPath   string        `mapstructure:"mansos_path"`
	Platform     string        `mapstructure:"platform"`
	WorkDir      string        `mapstructure:"work_dir"`
	// Timeout bounds one whole upload request; 0 means no limit.
	Timeout time.Duration `mapstructure:"timeout"`
}

// WebConfig points at an optional template directory replacing the
// built-in pages.
type WebConfig struct {
	Dir string `mapstructure:"dir"`
}

// Config represents the complete bridge configuration
type Config struct {
	Server    HTTPServerConfig `mapstructure:"server"`
	Serial    SerialConfig     `mapstructure:"serial"`
	Collector CollectorConfig  `mapstructure:"collector"`
	Upload    UploadConfig     `mapstructure:"upload"`
	Web       WebConfig        `mapstructure:"web"`
	LogLevel  string           `mapstructure:"log_level"`
	LogFormat string           `mapstructure:"log_format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_address", ":30000")
	v.SetDefault("server.read_timeout", "30s")
	// Streaming responses stay open while the client reads; no write deadline.
	v.SetDefault("server.write_timeout", "0s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("serial.motes", []string{"auto"})
	v.SetDefault("serial.baudrate", 38400)
	v.SetDefault("serial.read_timeout", "50ms")
	v.SetDefault("collector.poll_interval", "100ms")
	v.SetDefault("collector.log_lines", 28)
	v.SetDefault("collector.series_samples", 40)
	v.SetDefault("upload.flasher", FlasherCommand)
	v.SetDefault("upload.flash_command", []string{"ubsl", "--port={port}", "--baud={baud}", "{image}"})
	v.SetDefault("upload.frame_size", 128)
	v.SetDefault("upload.ack_timeout", "1s")
	v.SetDefault("upload.mansos_path", "../..")
	v.SetDefault("upload.platform", "telosb")
	v.SetDefault("upload.work_dir", "")
	v.SetDefault("upload.timeout", "0s")
	v.SetDefault("web.dir", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
}

// Load reads configPath (optional: an empty path uses defaults and the
// environment only) and validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges and the flasher selection.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.ListenAddress) == "" {
		return fmt.Errorf("server.listen_address is required")
	}
	if c.Serial.Baudrate <= 0 {
		return fmt.Errorf("serial.baudrate must be positive, got %d", c.Serial.Baudrate)
	}
	if c.Collector.PollInterval <= 0 {
		return fmt.Errorf("collector.poll_interval must be positive")
	}
	if c.Collector.LogLines < 1 || c.Collector.SeriesSamples < 1 {
		return fmt.Errorf("collector buffers must hold at least one entry")
	}
	switch c.Upload.Flasher {
	case FlasherCommand:
		if len(c.Upload.FlashCommand) == 0 {
			return fmt.Errorf("upload.flash_command is required for the command flasher")
		}
	case FlasherFrame:
	default:
		return fmt.Errorf("upload.flasher must be %q or %q, got %q", FlasherCommand, FlasherFrame, c.Upload.Flasher)
	}
	if c.Upload.Timeout < 0 {
		return fmt.Errorf("upload.timeout must not be negative")
	}
	return nil
}
