// Package config loads the gestic-update configuration file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang/glog"
	"gopkg.in/yaml.v3"

	"github.com/moffa90/go-gestic/protocol"
	"github.com/moffa90/go-gestic/updater"
)

// Hardware drivers.
const (
	DriverPeriph   = "periph"
	DriverSerial   = "serial"
	DriverSimulate = "simulate"
)

// Config holds all updater configuration.
type Config struct {
	Hardware HardwareConfig `yaml:"hardware"`
	Device   DeviceConfig   `yaml:"device"`
	Timing   TimingConfig   `yaml:"timing"`
	Images   ImagesConfig   `yaml:"images"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type HardwareConfig struct {
	Driver       string        `yaml:"driver"`        // "periph", "serial" or "simulate"
	I2CBus       string        `yaml:"i2c_bus"`       // periph bus name, empty for the first bus
	I2CSpeedKHz  int           `yaml:"i2c_speed_khz"` // 0 keeps the driver default
	ResetPin     string        `yaml:"reset_pin"`     // e.g. GPIO17
	ReadyPin     string        `yaml:"ready_pin"`     // e.g. GPIO27
	SerialPort   string        `yaml:"serial_port"`   // e.g. /dev/ttyUSB0, for the serial driver
	PollInterval time.Duration `yaml:"poll_interval"` // ready line sampling period
}

type DeviceConfig struct {
	Address            uint16        `yaml:"address"`
	SessionID          uint32        `yaml:"session_id"` // 0 draws a random ID per session
	ReadyTimeout       time.Duration `yaml:"ready_timeout"`
	VerifyAfterProgram bool          `yaml:"verify_after_program"`
	BootMessage        bool          `yaml:"boot_message"`
}

type TimingConfig struct {
	ResetPulse      time.Duration `yaml:"reset_pulse"`
	Reboot          time.Duration `yaml:"reboot"`
	BeginSettle     time.Duration `yaml:"begin_settle"`
	FrameSettle     time.Duration `yaml:"frame_settle"`
	CompleteToReset time.Duration `yaml:"complete_to_reset"`
	LoaderRestart   time.Duration `yaml:"loader_restart"`
}

type ImagesConfig struct {
	Loader      string `yaml:"loader"`
	Application string `yaml:"application"`
}

type LoggingConfig struct {
	Verbosity int `yaml:"verbosity"` // glog -v level
}

// DefaultConfig returns a config for a Raspberry Pi wired like the GestIC
// reference design.
func DefaultConfig() *Config {
	t := updater.DefaultTiming()
	return &Config{
		Hardware: HardwareConfig{
			Driver:       DriverPeriph,
			ResetPin:     "GPIO17",
			ReadyPin:     "GPIO27",
			SerialPort:   "/dev/ttyUSB0",
			PollInterval: time.Millisecond,
		},
		Device: DeviceConfig{
			Address:            protocol.DefaultAddress,
			ReadyTimeout:       5 * time.Second,
			VerifyAfterProgram: true,
			BootMessage:        true,
		},
		Timing: TimingConfig{
			ResetPulse:      t.ResetPulse,
			Reboot:          t.Reboot,
			BeginSettle:     t.BeginSettle,
			FrameSettle:     t.FrameSettle,
			CompleteToReset: t.CompleteToReset,
			LoaderRestart:   t.LoaderRestart,
		},
	}
}

// Load reads config from a YAML file and then applies GESTIC_* environment
// overrides. An empty path starts from the defaults. The result is not
// validated; callers apply their own overrides and then call Validate.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		glog.V(1).Infof("[config] loaded from %s", path)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks values that would otherwise fail deep inside an update.
func (c *Config) Validate() error {
	switch c.Hardware.Driver {
	case DriverPeriph:
		if c.Hardware.ReadyPin == "" {
			return fmt.Errorf("hardware.ready_pin is required for the %s driver", DriverPeriph)
		}
	case DriverSerial:
		if c.Hardware.SerialPort == "" {
			return fmt.Errorf("hardware.serial_port is required for the %s driver", DriverSerial)
		}
	case DriverSimulate:
	default:
		return fmt.Errorf("unknown hardware driver %q", c.Hardware.Driver)
	}
	if c.Device.Address > 0x7F {
		return fmt.Errorf("device.address 0x%X is not a 7-bit I2C address", c.Device.Address)
	}
	if c.Device.ReadyTimeout < 0 {
		return fmt.Errorf("device.ready_timeout must not be negative")
	}
	return nil
}

// Timings returns the configured delays.
func (c *Config) Timings() updater.Timing {
	return updater.Timing{
		ResetPulse:      c.Timing.ResetPulse,
		Reboot:          c.Timing.Reboot,
		BeginSettle:     c.Timing.BeginSettle,
		FrameSettle:     c.Timing.FrameSettle,
		CompleteToReset: c.Timing.CompleteToReset,
		LoaderRestart:   c.Timing.LoaderRestart,
	}
}

// UpdaterOptions converts the device and timing sections to updater options.
func (c *Config) UpdaterOptions() []updater.Option {
	opts := []updater.Option{
		updater.WithAddress(c.Device.Address),
		updater.WithReadyTimeout(c.Device.ReadyTimeout),
		updater.WithTiming(c.Timings()),
		updater.WithVerifyAfterProgram(c.Device.VerifyAfterProgram),
		updater.WithBootMessage(c.Device.BootMessage),
	}
	if c.Device.SessionID != 0 {
		opts = append(opts, updater.WithSessionID(c.Device.SessionID))
	}
	return opts
}

// applyEnvOverrides reads environment variables and overrides config values.
// Supported: GESTIC_DRIVER, GESTIC_I2C_BUS, GESTIC_RESET_PIN,
// GESTIC_READY_PIN, GESTIC_SERIAL_PORT, GESTIC_ADDRESS, GESTIC_READY_TIMEOUT,
// GESTIC_LOADER_IMAGE, GESTIC_APP_IMAGE, GESTIC_VERBOSITY
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("GESTIC_DRIVER"); v != "" {
		c.Hardware.Driver = v
	}
	if v := os.Getenv("GESTIC_I2C_BUS"); v != "" {
		c.Hardware.I2CBus = v
	}
	if v := os.Getenv("GESTIC_RESET_PIN"); v != "" {
		c.Hardware.ResetPin = v
	}
	if v := os.Getenv("GESTIC_READY_PIN"); v != "" {
		c.Hardware.ReadyPin = v
	}
	if v := os.Getenv("GESTIC_SERIAL_PORT"); v != "" {
		c.Hardware.SerialPort = v
	}
	if v := os.Getenv("GESTIC_ADDRESS"); v != "" {
		n, err := strconv.ParseUint(v, 0, 16)
		if err != nil {
			return fmt.Errorf("GESTIC_ADDRESS: %w", err)
		}
		c.Device.Address = uint16(n)
	}
	if v := os.Getenv("GESTIC_READY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("GESTIC_READY_TIMEOUT: %w", err)
		}
		c.Device.ReadyTimeout = d
	}
	if v := os.Getenv("GESTIC_LOADER_IMAGE"); v != "" {
		c.Images.Loader = v
	}
	if v := os.Getenv("GESTIC_APP_IMAGE"); v != "" {
		c.Images.Application = v
	}
	if v := os.Getenv("GESTIC_VERBOSITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GESTIC_VERBOSITY: %w", err)
		}
		c.Logging.Verbosity = n
	}
	return nil
}
