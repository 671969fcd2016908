// Copyright 2021 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bus

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"
)

// hostInit initializes the periph host drivers once.
var hostInit = func() error {
	_, err := host.Init()
	return err
}

// IRQ watches the interrupt line of an AFE440x and turns rising edges
// into events.
type IRQ struct {
	pin gpio.PinIn
}

// NewIRQ opens the named GPIO pin (e.g. "GPIO24") and arms it for
// rising edges.
func NewIRQ(name string) (*IRQ, error) {
	if err := hostInit(); err != nil {
		return nil, fmt.Errorf("bus: could not initialize host: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("bus: could not find GPIO pin %q", name)
	}
	if err := pin.In(gpio.PullDown, gpio.RisingEdge); err != nil {
		return nil, fmt.Errorf("bus: could not configure GPIO pin %q: %w", name, err)
	}
	return &IRQ{pin: pin}, nil
}

// Run forwards interrupt edges to events until ctx is cancelled.
// Edges arriving while the consumer is busy are coalesced.
func (irq *IRQ) Run(ctx context.Context, events chan<- struct{}) error {
	defer close(events)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// the timeout bounds the latency of a ctx cancellation.
		if !irq.pin.WaitForEdge(time.Second) {
			continue
		}
		select {
		case events <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// ResetLine drives the active-low reset pin of an AFE4420.
type ResetLine struct {
	pin gpio.PinOut
}

// NewResetLine opens the named GPIO pin and asserts the reset.
func NewResetLine(name string) (*ResetLine, error) {
	if err := hostInit(); err != nil {
		return nil, fmt.Errorf("bus: could not initialize host: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("bus: could not find GPIO pin %q", name)
	}
	line := &ResetLine{pin: pin}
	if err := line.Assert(); err != nil {
		return nil, err
	}
	return line, nil
}

// Assert holds the device in reset.
func (line *ResetLine) Assert() error {
	if err := line.pin.Out(gpio.Low); err != nil {
		return fmt.Errorf("bus: could not assert reset: %w", err)
	}
	return nil
}

// Release brings the device out of reset.
func (line *ResetLine) Release() error {
	if err := line.pin.Out(gpio.High); err != nil {
		return fmt.Errorf("bus: could not release reset: %w", err)
	}
	return nil
}

// Supply drives a GPIO-controlled load switch feeding the AFE supply
// (tx_sup). It implements the afe440x.Regulator interface.
type Supply struct {
	pin gpio.PinOut
}

// NewSupply opens the named GPIO pin controlling the supply switch.
func NewSupply(name string) (*Supply, error) {
	if err := hostInit(); err != nil {
		return nil, fmt.Errorf("bus: could not initialize host: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("bus: could not find GPIO pin %q", name)
	}
	return &Supply{pin: pin}, nil
}

// Enable switches the supply on.
func (sup *Supply) Enable() error {
	if err := sup.pin.Out(gpio.High); err != nil {
		return fmt.Errorf("bus: could not enable supply: %w", err)
	}
	return nil
}

// Disable switches the supply off.
func (sup *Supply) Disable() error {
	if err := sup.pin.Out(gpio.Low); err != nil {
		return fmt.Errorf("bus: could not disable supply: %w", err)
	}
	return nil
}
