// Copyright 2021 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-daq/afe440x"
	"github.com/go-daq/afe440x/afe4410"
	"github.com/go-daq/afe440x/afe4420"
	"github.com/go-daq/afe440x/bus"
	"github.com/go-daq/afe440x/daqsrv"
	"github.com/go-daq/afe440x/internal/sim"
	"github.com/go-daq/smbus"
	"golang.org/x/sync/errgroup"
)

func run(ctx context.Context, cfg Config, output string) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	dev, events, err := newDevice(ctx, cfg)
	if err != nil {
		return 0, err
	}
	defer dev.Close()

	f, err := os.Create(output)
	if err != nil {
		return 0, fmt.Errorf("could not create output file: %w", err)
	}
	defer f.Close()

	var (
		out   = csv.NewWriter(f)
		start = time.Now()
		n     int
	)
	sink := afe440x.SinkFunc(func(cycle []int32) error {
		row := make([]string, 0, len(cycle)+2)
		row = append(row,
			strconv.FormatInt(time.Since(start).Microseconds(), 10),
			strconv.Itoa(n),
		)
		for _, v := range cycle {
			row = append(row, strconv.FormatInt(int64(v), 10))
		}
		n++
		return out.Write(row)
	})

	if err := dev.Start(); err != nil {
		return 0, err
	}

	grp, runCtx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		err := dev.Run(runCtx, events, sink)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	})

	err = grp.Wait()

	if errStop := dev.Stop(); errStop != nil && err == nil {
		err = errStop
	}

	out.Flush()
	if errFlush := out.Error(); errFlush != nil && err == nil {
		err = fmt.Errorf("could not flush output file: %w", errFlush)
	}
	if errClose := f.Close(); errClose != nil && err == nil {
		err = fmt.Errorf("could not close output file: %w", errClose)
	}

	return n, err
}

func newDevice(ctx context.Context, cfg Config) (daqsrv.Acquirer, <-chan struct{}, error) {
	switch cfg.Device {
	case "afe4410":
		conn, err := smbus.Open(cfg.I2C.Bus, cfg.I2C.Addr)
		if err != nil {
			return nil, nil, fmt.Errorf("could not open I2C bus %d: %w", cfg.I2C.Bus, err)
		}
		i2c, err := bus.NewI2C(conn, cfg.I2C.Addr)
		if err != nil {
			return nil, nil, err
		}
		dev, err := afe4410.New(i2c, i2c)
		if err != nil {
			return nil, nil, err
		}
		for tx, code := range cfg.LEDs {
			if tx >= 4 {
				break
			}
			if err := dev.SetLEDCurrent(afe4410.Chan(tx), code); err != nil {
				return nil, nil, err
			}
		}
		events, err := watchIRQ(ctx, cfg.IRQ)
		if err != nil {
			return nil, nil, err
		}
		return dev, events, nil

	case "afe4420":
		spi, err := bus.OpenSPI(cfg.SPI.Device, cfg.SPI.Speed)
		if err != nil {
			return nil, nil, err
		}
		opts := []afe4420.Option{}
		if cfg.Reset != "" {
			rst, err := bus.NewResetLine(cfg.Reset)
			if err != nil {
				return nil, nil, err
			}
			opts = append(opts, afe4420.WithResetPin(rst))
		}
		dev, err := afe4420.New(spi, spi, opts...)
		if err != nil {
			return nil, nil, err
		}
		if err := dev.SetActiveChannels(cfg.Mask); err != nil {
			return nil, nil, err
		}
		for tx, code := range cfg.LEDs {
			if err := dev.SetLEDCurrent(tx, code); err != nil {
				return nil, nil, err
			}
		}
		events, err := watchIRQ(ctx, cfg.IRQ)
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
		if err := dev.SetActiveChannels(cfg.Mask); err != nil {
			return nil, nil, err
		}
		return dev, simEvents(ctx, afe, dev.ActivePhases()), nil
	}
	return nil, nil, fmt.Errorf("unknown device %q", cfg.Device)
}

func watchIRQ(ctx context.Context, pin string) (<-chan struct{}, error) {
	irq, err := bus.NewIRQ(pin)
	if err != nil {
		return nil, err
	}
	events := make(chan struct{}, 1)
	go func() { _ = irq.Run(ctx, events) }()
	return events, nil
}

// simEvents refills the simulated FIFO and raises an event every
// 400 ms.
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
