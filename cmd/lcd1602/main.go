/*
Copyright 2024 Tim St. Pierre
Command line front end for the lcd1602 driver
*/

// lcd1602 initializes a 1602 display on an I²C backpack and prints to it.
//
//	lcd1602 [flags] [line0 [line1]]
//
// Without -bus or -devfs the display is simulated and drawn on the terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	lcd1602 "github.com/tstpierre-tc/lcd1602/v2"
	"github.com/tstpierre-tc/lcd1602/v2/internal/devfs"
	"github.com/tstpierre-tc/lcd1602/v2/internal/lcdsim"
)

type config struct {
	bus      string
	devfs    string
	addr     uint
	timeout  time.Duration
	speed    physic.Frequency
	number   string
	scroll   bool
	snapshot string
	verbose  bool
}

func main() {
	var cfg config
	flag.StringVar(&cfg.bus, "bus", "", "periph I²C bus name, e.g. \"1\" or \"I2C1\"")
	flag.StringVar(&cfg.devfs, "devfs", "", "i2c-dev node to use instead of periph, e.g. "+devfs.DefaultDevice)
	flag.UintVar(&cfg.addr, "addr", lcd1602.DefaultAddress, "7-bit I²C address of the backpack")
	flag.DurationVar(&cfg.timeout, "timeout", lcd1602.DefaultOpts.Timeout, "bound for a single bus transfer")
	flag.Var(&cfg.speed, "speed", "I²C bus clock, e.g. 100kHz; empty keeps the current speed")
	flag.StringVar(&cfg.number, "int", "", "integer to print after the text")
	flag.BoolVar(&cfg.scroll, "scroll", false, "scroll the display left for 30s, Ctrl-C stops")
	flag.StringVar(&cfg.snapshot, "snapshot", "", "save the simulated display to this PNG file")
	flag.BoolVar(&cfg.verbose, "v", false, "log every frame")
	flag.Parse()

	setupLogging(cfg.verbose)
	if err := run(&cfg, flag.Args()); err != nil {
		log.Fatal(err)
	}
}

func setupLogging(verbose bool) {
	fd := os.Stderr.Fd()
	log.SetOutput(colorable.NewColorableStderr())
	log.SetFormatter(&log.TextFormatter{
		ForceColors:   isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd),
		FullTimestamp: true,
	})
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
}

func run(cfg *config, lines []string) error {
	if len(lines) > lcd1602.Rows {
		return fmt.Errorf("at most %d lines, got %d", lcd1602.Rows, len(lines))
	}
	var n int
	if cfg.number != "" {
		v, err := strconv.Atoi(cfg.number)
		if err != nil {
			return fmt.Errorf("-int: %w", err)
		}
		n = v
	}
	if cfg.addr > 0x7F {
		return fmt.Errorf("-addr %#x: %w", cfg.addr, lcd1602.ErrUnsupportedAddress)
	}
	if cfg.snapshot != "" && (cfg.bus != "" || cfg.devfs != "") {
		return errors.New("-snapshot only works with the simulator")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	bus, sim, err := openBus(cfg)
	if err != nil {
		return err
	}
	defer bus.Close()

	opts := lcd1602.DefaultOpts
	opts.I2CAddr = uint16(cfg.addr)
	opts.Timeout = cfg.timeout
	opts.BusSpeed = cfg.speed
	dev, err := lcd1602.NewI2C(ctx, bus, &opts)
	if err != nil {
		return err
	}
	log.Infof("Opened %s", dev)

	for row, text := range lines {
		if err := dev.Print(ctx, row, 0, text); err != nil {
			return err
		}
	}
	if cfg.number != "" {
		if err := dev.SendInt(ctx, n); err != nil {
			return err
		}
	}
	if cfg.scroll {
		err := dev.ScrollDisplayLeft(ctx)
		if errors.Is(err, context.Canceled) {
			log.Info("Scroll interrupted")
		} else if err != nil {
			return err
		}
	}

	if sim == nil {
		return nil
	}
	if err := sim.Render(colorable.NewColorableStdout(), ansi256.Default); err != nil {
		return err
	}
	if cfg.snapshot != "" {
		if err := sim.Snapshot(cfg.snapshot, 32); err != nil {
			return err
		}
		log.Infof("Saved %s", cfg.snapshot)
	}
	return nil
}

// openBus picks the transport. sim is set when the display is simulated.
func openBus(cfg *config) (bus i2c.BusCloser, sim *lcdsim.Bus, err error) {
	switch {
	case cfg.bus != "" && cfg.devfs != "":
		return nil, nil, errors.New("use either -bus or -devfs")
	case cfg.devfs != "":
		return devfs.Open(cfg.devfs), nil, nil
	case cfg.bus != "":
		if _, err := host.Init(); err != nil {
			return nil, nil, err
		}
		b, err := i2creg.Open(cfg.bus)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open I²C: %w", err)
		}
		return b, nil, nil
	default:
		sim = lcdsim.New(uint16(cfg.addr))
		return sim, sim, nil
	}
}
