package main

import (
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/physic"

	"github.com/moffa90/go-gestic/gestictest"
	"github.com/moffa90/go-gestic/hw/periph"
	"github.com/moffa90/go-gestic/hw/serialctl"
	"github.com/moffa90/go-gestic/internal/config"
	"github.com/moffa90/go-gestic/updater"
)

// openDevice wires the configured hardware driver. The returned close
// function releases everything that was opened.
func openDevice(cfg *config.Config) (updater.Device, func(), error) {
	switch cfg.Hardware.Driver {
	case config.DriverSimulate:
		sim := gestictest.NewDevice()
		sim.SetAddress(cfg.Device.Address)
		glog.Info("using simulated controller")
		return updater.Device{Bus: sim, Ready: sim, Reset: sim}, func() {}, nil

	case config.DriverPeriph:
		bus, err := openBus(cfg)
		if err != nil {
			return updater.Device{}, nil, err
		}
		ready, err := periph.OpenReadyPin(cfg.Hardware.ReadyPin, cfg.Hardware.PollInterval)
		if err != nil {
			bus.Close()
			return updater.Device{}, nil, err
		}
		dev := updater.Device{Bus: bus, Ready: ready}
		if cfg.Hardware.ResetPin != "" {
			reset, err := periph.OpenResetPin(cfg.Hardware.ResetPin)
			if err != nil {
				bus.Close()
				return updater.Device{}, nil, err
			}
			dev.Reset = reset
		}
		glog.Infof("using %s, ready=%s reset=%s", bus, cfg.Hardware.ReadyPin, cfg.Hardware.ResetPin)
		return dev, func() { bus.Close() }, nil

	case config.DriverSerial:
		bus, err := openBus(cfg)
		if err != nil {
			return updater.Device{}, nil, err
		}
		lines, err := serialctl.Open(cfg.Hardware.SerialPort, cfg.Hardware.PollInterval)
		if err != nil {
			bus.Close()
			return updater.Device{}, nil, err
		}
		glog.Infof("using %s, control lines on %s", bus, cfg.Hardware.SerialPort)
		closeAll := func() {
			lines.Close()
			bus.Close()
		}
		return updater.Device{Bus: bus, Ready: lines, Reset: lines}, closeAll, nil
	}
	return updater.Device{}, nil, errors.Errorf("unknown hardware driver %q", cfg.Hardware.Driver)
}

func openBus(cfg *config.Config) (*periph.Bus, error) {
	bus, err := periph.OpenBus(cfg.Hardware.I2CBus)
	if err != nil {
		return nil, err
	}
	if cfg.Hardware.I2CSpeedKHz > 0 {
		if err := bus.SetSpeed(physic.Frequency(cfg.Hardware.I2CSpeedKHz) * physic.KiloHertz); err != nil {
			bus.Close()
			return nil, err
		}
	}
	return bus, nil
}
