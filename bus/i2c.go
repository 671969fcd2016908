// Copyright 2021 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bus provides the I2C, SPI and GPIO transports the AFE440x
// devices sit behind.
package bus // import "github.com/go-daq/afe440x/bus"

import (
	"fmt"

	"github.com/go-daq/smbus"
)

const (
	// DefaultI2CAddr is the I2C address of an AFE440x with the ADDR pin
	// low.
	DefaultI2CAddr uint8 = 0x5b

	// regFIFOData is the burst-read address of the on-chip FIFO.
	regFIFOData uint8 = 0xff

	// smbus block transfers carry at most 32 bytes: 10 packed 24-bit
	// samples per transfer.
	i2cChunk = 10
)

// I2C is an AFE440x register and FIFO connection over I2C.
//
// FIFO records are delivered as 3 big-endian data bytes and a pad
// byte, the layout the AFE4410 expects.
type I2C struct {
	conn *smbus.Conn
	addr uint8

	raw [3 * i2cChunk]byte
}

// NewI2C wraps an smbus connection to the device at addr.
func NewI2C(conn *smbus.Conn, addr uint8) (*I2C, error) {
	err := conn.SetAddr(addr)
	if err != nil {
		return nil, fmt.Errorf("bus: could not set I2C address 0x%02x: %w", addr, err)
	}
	return &I2C{conn: conn, addr: addr}, nil
}

// ReadRegister reads the 24-bit register at reg.
func (c *I2C) ReadRegister(reg uint8) (uint32, error) {
	var buf [3]byte
	err := c.conn.ReadBlockData(c.addr, reg, buf[:])
	if err != nil {
		return 0, fmt.Errorf("bus: could not read register 0x%02x: %w", reg, err)
	}
	return uint32(buf[0])<<16 | uint32(buf[1])<<8 | uint32(buf[2]), nil
}

// WriteRegister writes the 24-bit register at reg.
func (c *I2C) WriteRegister(reg uint8, v uint32) error {
	buf := [3]byte{byte(v >> 16), byte(v >> 8), byte(v)}
	err := c.conn.WriteBlockData(c.addr, reg, buf[:])
	if err != nil {
		return fmt.Errorf("bus: could not write register 0x%02x: %w", reg, err)
	}
	return nil
}

// ReadFIFO burst-reads len(p)/4 samples from the FIFO. The device
// sends packed 3-byte samples: they are padded out to 4-byte records
// in p.
func (c *I2C) ReadFIFO(p []byte) error {
	samples := len(p) / 4
	for i := 0; i < samples; i += i2cChunk {
		n := samples - i
		if n > i2cChunk {
			n = i2cChunk
		}
		err := c.conn.ReadBlockData(c.addr, regFIFOData, c.raw[:3*n])
		if err != nil {
			return fmt.Errorf("bus: could not read FIFO: %w", err)
		}
		for j := 0; j < n; j++ {
			rec := p[(i+j)*4:]
			rec[0] = c.raw[3*j]
			rec[1] = c.raw[3*j+1]
			rec[2] = c.raw[3*j+2]
			rec[3] = 0
		}
	}
	return nil
}
