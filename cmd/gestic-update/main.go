// Command gestic-update flashes library-loader and application images into a
// GestIC controller.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/akamensky/argparse"
	"github.com/golang/glog"

	"github.com/moffa90/go-gestic/hw/serialctl"
	"github.com/moffa90/go-gestic/image"
	"github.com/moffa90/go-gestic/internal/config"
	"github.com/moffa90/go-gestic/updater"
)

const title = "GestIC firmware updater"

// Exit codes.
const (
	exitOK           = 0
	exitFailure      = 1
	exitVerifyFailed = 2
)

func main() {
	args := argparse.NewParser("gestic-update", title)

	cfgPath := args.String("c", "config", &argparse.Options{Required: false, Help: "YAML configuration file"})
	loader := args.String("l", "loader", &argparse.Options{Required: false, Help: "Library loader image"})
	app := args.String("a", "app", &argparse.Options{Required: false, Help: "Application image"})
	verifyOnly := args.Flag("V", "verify-only", &argparse.Options{Help: "Compare the images against flash without programming"})
	simulate := args.Flag("s", "simulate", &argparse.Options{Help: "Run against a simulated controller"})
	addr := args.String("d", "address", &argparse.Options{Required: false, Help: "I2C address of the controller (e.g. 0x42)"})
	bus := args.String("b", "bus", &argparse.Options{Required: false, Help: "I2C bus name"})
	port := args.String("p", "port", &argparse.Options{Required: false, Help: "Serial adapter driving the reset and transfer lines"})
	listPorts := args.Flag("L", "list-ports", &argparse.Options{Help: "List serial ports and exit"})
	writeCfg := args.String("w", "write-config", &argparse.Options{Required: false, Help: "Write the effective configuration to a file and exit"})
	verbose := args.Int("v", "verbose", &argparse.Options{Required: false, Help: "Log verbosity", Default: -1})

	if err := args.Parse(os.Args); err != nil {
		fmt.Print(args.Usage(err))
		os.Exit(exitFailure)
	}

	if *listPorts {
		ports, err := serialctl.Ports()
		if err != nil {
			fmt.Println(err.Error())
			os.Exit(exitFailure)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		os.Exit(exitOK)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(exitFailure)
	}

	// Command line beats file and environment.
	if *loader != "" {
		cfg.Images.Loader = *loader
	}
	if *app != "" {
		cfg.Images.Application = *app
	}
	if *bus != "" {
		cfg.Hardware.I2CBus = *bus
	}
	if *port != "" {
		cfg.Hardware.Driver = config.DriverSerial
		cfg.Hardware.SerialPort = *port
	}
	if *simulate {
		cfg.Hardware.Driver = config.DriverSimulate
	}
	if *addr != "" {
		n, err := strconv.ParseUint(*addr, 0, 16)
		if err != nil {
			fmt.Printf("invalid address %q\n", *addr)
			os.Exit(exitFailure)
		}
		cfg.Device.Address = uint16(n)
	}
	if *verbose >= 0 {
		cfg.Logging.Verbosity = *verbose
	}
	if err := cfg.Validate(); err != nil {
		fmt.Println(err.Error())
		os.Exit(exitFailure)
	}

	if *writeCfg != "" {
		if err := cfg.Save(*writeCfg); err != nil {
			fmt.Println(err.Error())
			os.Exit(exitFailure)
		}
		fmt.Println("Configuration written to", *writeCfg)
		os.Exit(exitOK)
	}

	if err := setupLogging(cfg.Logging.Verbosity); err != nil {
		fmt.Println(err.Error())
		os.Exit(exitFailure)
	}

	code := run(cfg, *verifyOnly)
	glog.Flush()
	os.Exit(code)
}

// setupLogging sends glog output to stderr at the given verbosity.
func setupLogging(verbosity int) error {
	if err := flag.Set("logtostderr", "true"); err != nil {
		return fmt.Errorf("glog logtostderr: %w", err)
	}
	if err := flag.Set("v", strconv.Itoa(verbosity)); err != nil {
		return fmt.Errorf("glog verbosity: %w", err)
	}
	return nil
}

func run(cfg *config.Config, verifyOnly bool) int {
	if cfg.Images.Loader == "" && cfg.Images.Application == "" {
		fmt.Println("Nothing to do: give a loader and/or an application image")
		return exitFailure
	}

	loaderImg, err := loadImage(cfg.Images.Loader)
	if err != nil {
		glog.Error(err)
		return exitFailure
	}
	appImg, err := loadImage(cfg.Images.Application)
	if err != nil {
		glog.Error(err)
		return exitFailure
	}

	if cfg.Hardware.Driver == config.DriverSimulate {
		cfg.Timing = config.TimingConfig{}
	}

	dev, closeDev, err := openDevice(cfg)
	if err != nil {
		glog.Error(err)
		return exitFailure
	}
	defer closeDev()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := append(cfg.UpdaterOptions(),
		updater.WithLogger(newGlogLogger()),
		updater.WithProgressCallback(printProgress),
	)
	prog := updater.New(dev, opts...)

	if verifyOnly {
		return verify(ctx, prog, loaderImg, appImg)
	}

	err = prog.UpdateAll(ctx, loaderImg, appImg)
	fmt.Println()
	if err != nil {
		glog.Errorf("update failed: %v", err)
		var verr *updater.VerificationError
		if errors.As(err, &verr) {
			return exitVerifyFailed
		}
		return exitFailure
	}
	fmt.Println("Update complete")
	return exitOK
}

func verify(ctx context.Context, prog *updater.Programmer, imgs ...*image.Image) int {
	if err := prog.Reset(ctx); err != nil {
		glog.Errorf("reset: %v", err)
		return exitFailure
	}

	code := exitOK
	for _, img := range imgs {
		if img == nil {
			continue
		}
		report, err := prog.Verify(ctx, img)
		fmt.Println()
		var verr *updater.VerificationError
		switch {
		case errors.As(err, &verr):
			fmt.Printf("%s: %d of %d blocks differ\n", img.Version, len(report.Mismatches), report.Checked)
			for _, m := range report.Mismatches {
				fmt.Printf("  block %d at 0x%04X\n", m.Block, m.Address)
			}
			code = exitVerifyFailed
		case err != nil:
			glog.Errorf("verify %s: %v", img.Version, err)
			return exitFailure
		default:
			fmt.Printf("%s: %d blocks match\n", img.Version, report.Checked)
		}
	}
	return code
}

func loadImage(path string) (*image.Image, error) {
	if path == "" {
		return nil, nil
	}
	img, err := image.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	glog.Infof("loaded %s: version %q, %d blocks, %d bytes", path, img.Version, len(img.Blocks), img.Size())
	return img, nil
}

func printProgress(p updater.Progress) {
	fmt.Printf("\r%-12s %5.1f%%  block %d/%d", p.Phase, p.Percentage, p.CurrentBlock, p.TotalBlocks)
}
