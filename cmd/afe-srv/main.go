// Copyright 2021 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command afe-srv starts a TDAQ server driving an AFE440x device.
//
// Example:
//
//	$> afe-srv -dev=afe4410 -i2c-bus=1 -irq=GPIO24
//	$> afe-srv -dev=afe4420 -spi=/dev/spidev0.0 -irq=GPIO24 -reset=GPIO23 -mask=0xf
//	$> afe-srv -dev=sim4420 -mask=0x7
package main // import "github.com/go-daq/afe440x/cmd/afe-srv"

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-daq/afe440x/afe4410"
	"github.com/go-daq/afe440x/afe4420"
	"github.com/go-daq/afe440x/bus"
	"github.com/go-daq/afe440x/daqsrv"
	"github.com/go-daq/afe440x/internal/sim"
	"github.com/go-daq/smbus"
	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
)

func main() {
	var (
		devName = flag.String("dev", "afe4410", "device to drive (afe4410, afe4420, sim4410, sim4420)")
		i2cBus  = flag.Int("i2c-bus", 1, "I2C bus number (afe4410)")
		i2cAddr = flag.Uint("i2c-addr", uint(bus.DefaultI2CAddr), "I2C device address (afe4410)")
		spiDev  = flag.String("spi", "/dev/spidev0.0", "SPI device (afe4420)")
		spiHz   = flag.Uint("spi-hz", 1000000, "SPI clock speed (afe4420)")
		irqPin  = flag.String("irq", "GPIO24", "data-ready interrupt pin")
		rstPin  = flag.String("reset", "", "reset pin (afe4420)")
		mask    = flag.Uint("mask", 0xf, "active channel mask (afe4420)")
	)

	log.SetPrefix("afe-srv: ")
	log.SetFlags(0)

	cmd := flags.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dev, events, err := newDevice(ctx, *devName, cfg{
		i2cBus:  *i2cBus,
		i2cAddr: uint8(*i2cAddr),
		spiDev:  *spiDev,
		spiHz:   uint32(*spiHz),
		irqPin:  *irqPin,
		rstPin:  *rstPin,
		mask:    uint16(*mask),
	})
	if err != nil {
		log.Fatalf("could not create device: %+v", err)
	}

	daq := daqsrv.New(dev, events)

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", daq.OnConfig)
	srv.CmdHandle("/init", daq.OnInit)
	srv.CmdHandle("/reset", daq.OnReset)
	srv.CmdHandle("/start", daq.OnStart)
	srv.CmdHandle("/stop", daq.OnStop)
	srv.CmdHandle("/quit", daq.OnQuit)

	srv.OutputHandle("/samples", daq.Samples)

	srv.RunHandle(daq.Run)

	err = srv.Run(ctx)
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}

type cfg struct {
	i2cBus  int
	i2cAddr uint8
	spiDev  string
	spiHz   uint32
	irqPin  string
	rstPin  string
	mask    uint16
}

func newDevice(ctx context.Context, name string, cfg cfg) (daqsrv.Acquirer, <-chan struct{}, error) {
	switch name {
	case "afe4410":
		conn, err := smbus.Open(cfg.i2cBus, cfg.i2cAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("could not open I2C bus %d: %w", cfg.i2cBus, err)
		}
		i2c, err := bus.NewI2C(conn, cfg.i2cAddr)
		if err != nil {
			return nil, nil, err
		}
		dev, err := afe4410.New(i2c, i2c)
		if err != nil {
			return nil, nil, err
		}
		events, err := watchIRQ(ctx, cfg.irqPin)
		if err != nil {
			return nil, nil, err
		}
		return dev, events, nil

	case "afe4420":
		spi, err := bus.OpenSPI(cfg.spiDev, cfg.spiHz)
		if err != nil {
			return nil, nil, err
		}
		opts := []afe4420.Option{}
		if cfg.rstPin != "" {
			rst, err := bus.NewResetLine(cfg.rstPin)
			if err != nil {
				return nil, nil, err
			}
			opts = append(opts, afe4420.WithResetPin(rst))
		}
		dev, err := afe4420.New(spi, spi, opts...)
		if err != nil {
			return nil, nil, err
		}
		if err := dev.SetActiveChannels(cfg.mask); err != nil {
			return nil, nil, err
		}
		events, err := watchIRQ(ctx, cfg.irqPin)
		if err != nil {
			return nil, nil, err
		}
		return dev, events, nil

	case "sim4410":
		afe := sim.New(sim.BigEndianPad)
		dev, err := afe4410.New(afe, afe)
		if err != nil {
			return nil, nil, err
		}
		return dev, simEvents(ctx, afe, 4), nil

	case "sim4420":
		afe := sim.New(sim.LittleEndianWord)
		dev, err := afe4420.New(afe, afe)
		if err != nil {
			return nil, nil, err
		}
		if err := dev.SetActiveChannels(cfg.mask); err != nil {
			return nil, nil, err
		}
		return dev, simEvents(ctx, afe, dev.ActivePhases()), nil
	}
	return nil, nil, fmt.Errorf("unknown device %q", name)
}

func watchIRQ(ctx context.Context, pin string) (<-chan struct{}, error) {
	irq, err := bus.NewIRQ(pin)
	if err != nil {
		return nil, err
	}
	events := make(chan struct{}, 1)
	go func() {
		if err := irq.Run(ctx, events); err != nil && ctx.Err() == nil {
			log.Printf("irq watcher stopped: %+v", err)
		}
	}()
	return events, nil
}

// simEvents refills the simulated FIFO and raises an event every
// 400 ms, the cadence of a real device at the default rate.
func simEvents(ctx context.Context, afe *sim.AFE, phases int) <-chan struct{} {
	events := make(chan struct{}, 1)
	go func() {
		defer close(events)
		tick := time.NewTicker(400 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				afe.Pleth(10, phases)
				select {
				case events <- struct{}{}:
				default:
				}
			}
		}
	}()
	return events
}
