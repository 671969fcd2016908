// Copyright 2021 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sim provides an in-memory AFE440x for tests and for running
// the acquisition chain without hardware.
package sim // import "github.com/go-daq/afe440x/internal/sim"

import (
	"fmt"
	"math"
	"sync"
)

// Layout selects the FIFO record layout of the simulated transport.
type Layout int

const (
	// BigEndianPad delivers 3 big-endian data bytes and a pad byte per
	// record, like an AFE4410 behind I2C.
	BigEndianPad Layout = iota
	// LittleEndianWord delivers word-aligned little-endian records,
	// like an AFE4420 behind SPI.
	LittleEndianWord
)

const pointerDiffAddr = 0x6d

// AFE simulates the register file and sample FIFO of an AFE440x.
//
// The zero register file reads back as zero. Writing the FIFO pointer
// register of a real device has no effect; here reads of address 0x6d
// return the number of buffered samples minus one, like the AFE4420
// POINTER_DIFF register.
type AFE struct {
	mu     sync.Mutex
	layout Layout
	regs   map[uint8]uint32
	fifo   []int32
}

// New returns a simulated AFE delivering FIFO records in the given
// layout.
func New(layout Layout) *AFE {
	return &AFE{
		layout: layout,
		regs:   make(map[uint8]uint32),
	}
}

// ReadRegister implements regmap.Conn.
func (sim *AFE) ReadRegister(addr uint8) (uint32, error) {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	if addr == pointerDiffAddr {
		return uint32(len(sim.fifo)-1) & 0x1ff, nil
	}
	return sim.regs[addr], nil
}

// WriteRegister implements regmap.Conn.
func (sim *AFE) WriteRegister(addr uint8, v uint32) error {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	sim.regs[addr] = v
	return nil
}

// Register returns the current value of a register, for assertions.
func (sim *AFE) Register(addr uint8) uint32 {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	return sim.regs[addr]
}

// Push queues samples in the FIFO.
func (sim *AFE) Push(samples ...int32) {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	sim.fifo = append(sim.fifo, samples...)
}

// Pending returns the number of samples buffered in the FIFO.
func (sim *AFE) Pending() int {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	return len(sim.fifo)
}

// Pleth queues cycles acquisition cycles of phases channels each,
// carrying a synthetic photoplethysmogram.
func (sim *AFE) Pleth(cycles, phases int) {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	for i := 0; i < cycles; i++ {
		ac := math.Sin(2 * math.Pi * float64(i) / 25)
		for ph := 0; ph < phases; ph++ {
			dc := float64(1+ph) * 100000
			sim.fifo = append(sim.fifo, int32(dc+ac*20000))
		}
	}
}

// ReadFIFO implements afe440x.FIFOReader. It pops len(p)/4 samples
// from the FIFO.
func (sim *AFE) ReadFIFO(p []byte) error {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	n := len(p) / 4
	if n > len(sim.fifo) {
		return fmt.Errorf("sim: FIFO underrun: want %d samples, have %d", n, len(sim.fifo))
	}

	for i := 0; i < n; i++ {
		v := uint32(sim.fifo[i]) & 0xffffff
		rec := p[i*4:]
		switch sim.layout {
		case BigEndianPad:
			rec[0] = byte(v >> 16)
			rec[1] = byte(v >> 8)
			rec[2] = byte(v)
			rec[3] = 0
		case LittleEndianWord:
			rec[0] = byte(v)
			rec[1] = byte(v >> 8)
			rec[2] = byte(v >> 16)
			rec[3] = 0
		}
	}
	sim.fifo = sim.fifo[:copy(sim.fifo, sim.fifo[n:])]
	return nil
}
