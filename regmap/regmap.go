// Copyright 2021 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package regmap provides a cached register map for devices exposing a flat
// 8-bit-addressed, 24-bit-valued register space.
package regmap // import "github.com/go-daq/afe440x/regmap"

import (
	"fmt"
	"sync"
)

// Conn is the register transport of a device.
//
// Implementations perform one bus transaction per call and do not retry.
type Conn interface {
	ReadRegister(addr uint8) (uint32, error)
	WriteRegister(addr uint8, v uint32) error
}

// Config describes the register space of a device.
type Config struct {
	RegBits int // address width, in bits
	ValBits int // value width, in bits

	MaxRegister uint8

	// Volatile reports whether the register at addr may change outside of
	// writes through this register map. Volatile registers are never cached.
	Volatile func(addr uint8) bool

	// NoCache disables the register cache entirely.
	NoCache bool
}

func (cfg Config) volatile(addr uint8) bool {
	return cfg.Volatile != nil && cfg.Volatile(addr)
}

// RegVal is one element of a register write sequence.
type RegVal struct {
	Addr uint8
	Val  uint32
}

// RegMap gives cached access to the register space of a device.
//
// Non-volatile registers are read from the cache once their value is known:
// the device is only ever queried again for volatile registers.
type RegMap struct {
	conn Conn
	cfg  Config
	mask uint32

	mu    sync.Mutex
	cache map[uint8]uint32
}

// New creates a register map on top of conn.
func New(conn Conn, cfg Config) (*RegMap, error) {
	if cfg.RegBits <= 0 || cfg.RegBits > 8 {
		return nil, fmt.Errorf("regmap: invalid register address width %d", cfg.RegBits)
	}
	if cfg.ValBits <= 0 || cfg.ValBits > 32 {
		return nil, fmt.Errorf("regmap: invalid register value width %d", cfg.ValBits)
	}
	rm := &RegMap{
		conn: conn,
		cfg:  cfg,
		mask: uint32(1)<<cfg.ValBits - 1,
	}
	if !cfg.NoCache {
		rm.cache = make(map[uint8]uint32)
	}
	return rm, nil
}

// ValBits returns the register value width, in bits.
func (rm *RegMap) ValBits() int { return rm.cfg.ValBits }

// Read returns the value of the register at addr.
func (rm *RegMap) Read(addr uint8) (uint32, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.read(addr)
}

func (rm *RegMap) read(addr uint8) (uint32, error) {
	if addr > rm.cfg.MaxRegister {
		return 0, fmt.Errorf("regmap: register 0x%02x out of range", addr)
	}
	if rm.cache != nil && !rm.cfg.volatile(addr) {
		if v, ok := rm.cache[addr]; ok {
			return v, nil
		}
	}
	v, err := rm.conn.ReadRegister(addr)
	if err != nil {
		return 0, fmt.Errorf("regmap: could not read register 0x%02x: %w", addr, err)
	}
	v &= rm.mask
	if rm.cache != nil && !rm.cfg.volatile(addr) {
		rm.cache[addr] = v
	}
	return v, nil
}

// Write sets the register at addr to v.
func (rm *RegMap) Write(addr uint8, v uint32) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.write(addr, v)
}

func (rm *RegMap) write(addr uint8, v uint32) error {
	if addr > rm.cfg.MaxRegister {
		return fmt.Errorf("regmap: register 0x%02x out of range", addr)
	}
	v &= rm.mask
	err := rm.conn.WriteRegister(addr, v)
	if err != nil {
		return fmt.Errorf("regmap: could not write register 0x%02x: %w", addr, err)
	}
	if rm.cache != nil && !rm.cfg.volatile(addr) {
		rm.cache[addr] = v
	}
	return nil
}

// Update performs a read-modify-write of the bits selected by mask.
// The write is skipped when the register already holds the wanted bits.
func (rm *RegMap) Update(addr uint8, mask, v uint32) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.update(addr, mask, v)
}

func (rm *RegMap) update(addr uint8, mask, v uint32) error {
	cur, err := rm.read(addr)
	if err != nil {
		return err
	}
	next := (cur &^ mask) | (v & mask)
	if next == cur && rm.cache != nil && !rm.cfg.volatile(addr) {
		return nil
	}
	return rm.write(addr, next)
}

// MultiWrite applies seq in order, aborting on the first failed write.
func (rm *RegMap) MultiWrite(seq []RegVal) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	for _, rv := range seq {
		err := rm.write(rv.Addr, rv.Val)
		if err != nil {
			return err
		}
	}
	return nil
}
