package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/moffa90/go-gestic/updater"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gestic.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.Hardware.Driver != DriverPeriph {
		t.Errorf("Driver = %q, want %q", cfg.Hardware.Driver, DriverPeriph)
	}
	if cfg.Device.Address != 0x42 {
		t.Errorf("Address = 0x%02X, want 0x42", cfg.Device.Address)
	}
	if cfg.Timings() != updater.DefaultTiming() {
		t.Errorf("Timings() = %+v, want defaults", cfg.Timings())
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
hardware:
  driver: serial
  serial_port: /dev/ttyACM0
device:
  address: 0x43
  session_id: 7
  ready_timeout: 2s
  boot_message: false
timing:
  loader_restart: 25s
images:
  loader: loader.img
  application: app.img
logging:
  verbosity: 2
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Hardware.Driver != DriverSerial || cfg.Hardware.SerialPort != "/dev/ttyACM0" {
		t.Errorf("Hardware = %+v", cfg.Hardware)
	}
	if cfg.Device.Address != 0x43 || cfg.Device.SessionID != 7 {
		t.Errorf("Device = %+v", cfg.Device)
	}
	if cfg.Device.ReadyTimeout != 2*time.Second {
		t.Errorf("ReadyTimeout = %v, want 2s", cfg.Device.ReadyTimeout)
	}
	if cfg.Device.BootMessage {
		t.Error("BootMessage should be false")
	}
	if !cfg.Device.VerifyAfterProgram {
		t.Error("unset keys should keep their defaults")
	}
	if cfg.Timing.LoaderRestart != 25*time.Second || cfg.Timing.FrameSettle != updater.DefaultFrameSettle {
		t.Errorf("Timing = %+v", cfg.Timing)
	}
	if cfg.Images.Loader != "loader.img" || cfg.Images.Application != "app.img" {
		t.Errorf("Images = %+v", cfg.Images)
	}
	if cfg.Logging.Verbosity != 2 {
		t.Errorf("Verbosity = %d, want 2", cfg.Logging.Verbosity)
	}
	if got := len(cfg.UpdaterOptions()); got != 6 {
		t.Errorf("UpdaterOptions() returned %d options, want 6", got)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(writeConfig(t, "hardware: [")); err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Errorf("Load() error = %v, want parse error", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of missing file should fail")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"defaults", "", ""},
		{"simulate", "hardware:\n  driver: simulate\n  ready_pin: \"\"\n", ""},
		{"unknown driver", "hardware:\n  driver: usb\n", "unknown hardware driver"},
		{"wide address", "device:\n  address: 0x142\n", "7-bit"},
		{"missing ready pin", "hardware:\n  ready_pin: \"\"\n", "ready_pin is required"},
		{"missing serial port", "hardware:\n  driver: serial\n  serial_port: \"\"\n", "serial_port is required"},
		{"negative timeout", "device:\n  ready_timeout: -1s\n", "must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.content))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			err = cfg.Validate()
			if tt.errMsg == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() error = %v, want error containing %q", err, tt.errMsg)
			}
		})
	}
}

func TestLoadLeavesInvalidFileToOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, "hardware:\n  driver: serial\n  serial_port: \"\"\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Validate() == nil {
		t.Fatal("file alone should not validate")
	}

	cfg.Hardware.Driver = DriverSimulate
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() after driver override error = %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GESTIC_DRIVER", "simulate")
	t.Setenv("GESTIC_ADDRESS", "0x10")
	t.Setenv("GESTIC_READY_TIMEOUT", "750ms")
	t.Setenv("GESTIC_APP_IMAGE", "/tmp/app.img")
	t.Setenv("GESTIC_VERBOSITY", "3")

	cfg, err := Load(writeConfig(t, "hardware:\n  driver: periph\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Hardware.Driver != DriverSimulate {
		t.Errorf("Driver = %q, want env override", cfg.Hardware.Driver)
	}
	if cfg.Device.Address != 0x10 {
		t.Errorf("Address = 0x%02X, want 0x10", cfg.Device.Address)
	}
	if cfg.Device.ReadyTimeout != 750*time.Millisecond {
		t.Errorf("ReadyTimeout = %v", cfg.Device.ReadyTimeout)
	}
	if cfg.Images.Application != "/tmp/app.img" || cfg.Logging.Verbosity != 3 {
		t.Errorf("Images = %+v, Logging = %+v", cfg.Images, cfg.Logging)
	}
}

func TestEnvOverrideErrors(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"GESTIC_ADDRESS", "forty-two"},
		{"GESTIC_READY_TIMEOUT", "soon"},
		{"GESTIC_VERBOSITY", "loud"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(""); err == nil || !strings.Contains(err.Error(), tt.key) {
				t.Errorf("Load() error = %v, want %s error", err, tt.key)
			}
		})
	}
}

func TestSave(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Hardware.Driver = DriverSimulate
	cfg.Device.ReadyTimeout = 3 * time.Second

	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "ready_timeout: 3s") {
		t.Errorf("saved config missing duration text:\n%s", data)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() of saved config error = %v", err)
	}
	if loaded.Hardware.Driver != DriverSimulate {
		t.Errorf("Driver = %q after reload", loaded.Hardware.Driver)
	}
}
