// Copyright 2021 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bus

import (
	"encoding/binary"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// spidev ioctl requests.
const (
	spiIOCWrMode       = 0x40016b01
	spiIOCWrBitsPerWrd = 0x40016b03
	spiIOCWrMaxSpeedHz = 0x40046b04
)

// spiIOCMessage returns the SPI_IOC_MESSAGE(n) ioctl request.
func spiIOCMessage(n int) uintptr {
	return uintptr(0x40006b00 | uint32(n)*32<<16)
}

// spiTransfer mirrors struct spi_ioc_transfer.
type spiTransfer struct {
	txBuf       uint64
	rxBuf       uint64
	len         uint32
	speedHz     uint32
	delayUsecs  uint16
	bitsPerWord uint8
	csChange    uint8
	txNbits     uint8
	rxNbits     uint8
	pad         uint16
}

// SPI is an AFE440x register and FIFO connection over a spidev device.
//
// FIFO records are delivered as word-aligned little-endian words with
// the sample in the low 24 bits, the layout the AFE4420 expects.
type SPI struct {
	f     *os.File
	speed uint32

	raw [3 * 128]byte
}

// OpenSPI opens the spidev device at path (e.g. /dev/spidev0.0) in
// mode 0 at the given clock speed.
func OpenSPI(path string, speed uint32) (*SPI, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("bus: could not open SPI device: %w", err)
	}

	dev := &SPI{f: f, speed: speed}
	var (
		mode uint8 = 0
		bits uint8 = 8
	)
	for _, v := range []struct {
		req uintptr
		ptr unsafe.Pointer
	}{
		{spiIOCWrMode, unsafe.Pointer(&mode)},
		{spiIOCWrBitsPerWrd, unsafe.Pointer(&bits)},
		{spiIOCWrMaxSpeedHz, unsafe.Pointer(&dev.speed)},
	} {
		if err := dev.ioctl(v.req, v.ptr); err != nil {
			f.Close()
			return nil, fmt.Errorf("bus: could not configure SPI device: %w", err)
		}
	}
	return dev, nil
}

func (c *SPI) ioctl(req uintptr, ptr unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, c.f.Fd(), req, uintptr(ptr))
	if errno != 0 {
		return errno
	}
	return nil
}

func (c *SPI) xfer(msgs []spiTransfer) error {
	return c.ioctl(spiIOCMessage(len(msgs)), unsafe.Pointer(&msgs[0]))
}

// Close closes the spidev device.
func (c *SPI) Close() error {
	return c.f.Close()
}

// ReadRegister reads the 24-bit register at reg.
func (c *SPI) ReadRegister(reg uint8) (uint32, error) {
	tx := [1]byte{reg}
	var rx [3]byte
	msgs := []spiTransfer{
		{
			txBuf:       uint64(uintptr(unsafe.Pointer(&tx[0]))),
			len:         1,
			speedHz:     c.speed,
			bitsPerWord: 8,
		},
		{
			rxBuf:       uint64(uintptr(unsafe.Pointer(&rx[0]))),
			len:         3,
			speedHz:     c.speed,
			bitsPerWord: 8,
		},
	}
	if err := c.xfer(msgs); err != nil {
		return 0, fmt.Errorf("bus: could not read register 0x%02x: %w", reg, err)
	}
	return uint32(rx[0])<<16 | uint32(rx[1])<<8 | uint32(rx[2]), nil
}

// WriteRegister writes the 24-bit register at reg.
func (c *SPI) WriteRegister(reg uint8, v uint32) error {
	tx := [4]byte{reg, byte(v >> 16), byte(v >> 8), byte(v)}
	msgs := []spiTransfer{
		{
			txBuf:       uint64(uintptr(unsafe.Pointer(&tx[0]))),
			len:         4,
			speedHz:     c.speed,
			bitsPerWord: 8,
		},
	}
	if err := c.xfer(msgs); err != nil {
		return fmt.Errorf("bus: could not write register 0x%02x: %w", reg, err)
	}
	return nil
}

// ReadFIFO burst-reads len(p)/4 samples from the FIFO. The device
// sends packed 3-byte big-endian samples: they are repacked as
// little-endian words in p.
func (c *SPI) ReadFIFO(p []byte) error {
	samples := len(p) / 4
	if 3*samples > len(c.raw) {
		return fmt.Errorf("bus: FIFO read of %d samples exceeds FIFO depth", samples)
	}

	tx := [1]byte{regFIFOData}
	msgs := []spiTransfer{
		{
			txBuf:       uint64(uintptr(unsafe.Pointer(&tx[0]))),
			len:         1,
			speedHz:     c.speed,
			bitsPerWord: 8,
		},
		{
			rxBuf:       uint64(uintptr(unsafe.Pointer(&c.raw[0]))),
			len:         uint32(3 * samples),
			speedHz:     c.speed,
			bitsPerWord: 8,
		},
	}
	if err := c.xfer(msgs); err != nil {
		return fmt.Errorf("bus: could not read FIFO: %w", err)
	}

	for i := 0; i < samples; i++ {
		v := uint32(c.raw[3*i])<<16 | uint32(c.raw[3*i+1])<<8 | uint32(c.raw[3*i+2])
		binary.LittleEndian.PutUint32(p[i*4:], v)
	}
	return nil
}
