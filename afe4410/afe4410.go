// Copyright 2021 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package afe4410 controls the TI AFE4410 heart rate monitor and
// pulse oximeter analog front-end.
//
// The AFE4410 samples four optical channels (LED2, ALED2, LED1, ALED1)
// per acquisition cycle and buffers complete cycles in an on-chip FIFO.
// A data-ready event signals that fifoLen cycles are available for a
// bulk read.
package afe4410 // import "github.com/go-daq/afe440x/afe4410"

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/go-daq/afe440x"
	"github.com/go-daq/afe440x/regmap"
)

// Chan names one of the four optical channels of the AFE4410, in the
// order samples appear in an acquisition cycle.
type Chan int

const (
	LED2 Chan = iota
	ALED2
	LED1
	ALED1

	numChans
)

func (ch Chan) String() string {
	switch ch {
	case LED2:
		return "led2"
	case ALED2:
		return "aled2"
	case LED1:
		return "led1"
	case ALED1:
		return "aled1"
	}
	return fmt.Sprintf("Chan(%d)", int(ch))
}

var chanValues = [numChans]uint8{
	LED2:  regLED2Val,
	ALED2: regALED2Val,
	LED1:  regLED1Val,
	ALED1: regALED1Val,
}

var chanLEDs = [numChans]groupID{
	LED2:  gILED2,
	ALED2: gILED3,
	LED1:  gILED1,
	ALED1: gILED4,
}

var chanOffdacs = [numChans]groupID{
	LED2:  gOffdacLED2,
	ALED2: gOffdacALED2,
	LED1:  gOffdacLED1,
	ALED1: gOffdacALED1,
}

var chanGains = [numChans]groupID{
	LED2:  gTIAGainSep,
	ALED2: gTIAGainSep2,
	LED1:  gTIAGain,
	ALED1: gTIAGainSep3,
}

var chanCaps = [numChans]groupID{
	LED2:  gTIACfSep,
	ALED2: gTIACfSep2,
	LED1:  gTIACf,
	ALED1: gTIACfSep3,
}

// ResTable maps TIA gain codes to feedback resistances, in ohms.
var ResTable = afe440x.ValTable{
	{Integer: 500000, Fract: 0},
	{Integer: 250000, Fract: 0},
	{Integer: 100000, Fract: 0},
	{Integer: 50000, Fract: 0},
	{Integer: 25000, Fract: 0},
	{Integer: 10000, Fract: 0},
	{Integer: 1000000, Fract: 0},
	{Integer: 2000000, Fract: 0},
	{Integer: 1500000, Fract: 0},
}

// CapTable maps TIA bandwidth codes to feedback capacitances, in
// picofarads.
var CapTable = afe440x.ValTable{
	{Integer: 0, Fract: 5000},
	{Integer: 0, Fract: 2500},
	{Integer: 0, Fract: 10000},
	{Integer: 0, Fract: 7500},
	{Integer: 0, Fract: 20000},
	{Integer: 0, Fract: 17500},
	{Integer: 0, Fract: 25000},
	{Integer: 0, Fract: 22500},
}

// Default timings from the data sheet.
var initSeq = []regmap.RegVal{
	{Addr: regControl0, Val: ctrl0RWCont | ctrl0EnableULP},
	{Addr: regLED2STC, Val: 10 * 0x01},
	{Addr: regLED2ENDC, Val: 10 * 0x03},
	{Addr: regLED1LEDSTC, Val: 10 * 0x0a},
	{Addr: regLED1LEDENDC, Val: 10 * 0x0d},
	{Addr: regALED2STC, Val: 10 * 0x06},
	{Addr: regALED2ENDC, Val: 10 * 0x08},
	{Addr: regLED1STC, Val: 10 * 0x0b},
	{Addr: regLED1ENDC, Val: 10 * 0x0d},
	{Addr: regLED2LEDSTC, Val: 10 * 0x00},
	{Addr: regLED2LEDENDC, Val: 10 * 0x03},
	{Addr: regALED1STC, Val: 10 * 0x10},
	{Addr: regALED1ENDC, Val: 10 * 0x12},
	{Addr: regLED2ConvST, Val: 10 * 0x05},
	{Addr: regLED2ConvEND, Val: 10 * 0x08},
	{Addr: regALED2ConvST, Val: 10 * 0x0a},
	{Addr: regALED2ConvEND, Val: 10 * 0x0d},
	{Addr: regLED1ConvST, Val: 10 * 0x0f},
	{Addr: regLED1ConvEND, Val: 10 * 0x12},
	{Addr: regALED1ConvST, Val: 10 * 0x14},
	{Addr: regALED1ConvEND, Val: 10 * 0x17},
	{Addr: regPRPCount, Val: 10 * 0x1f},
	{Addr: regLED3LEDSTC, Val: 10 * 0x05},
	{Addr: regLED3LEDENDC, Val: 10 * 0x08},
	{Addr: regLED4LEDSTC, Val: 10 * 0x0f},
	{Addr: regLED4LEDENDC, Val: 10 * 0x12},
	{Addr: regDataRdySTC, Val: 10 * 0x1d},
	{Addr: regDataRdyENDC, Val: 10 * 0x1d},
	{Addr: regDynTIASTC, Val: 10 * 0x00},
	{Addr: regDynTIAENDC, Val: 10 * 0x20},
	{Addr: regDynADCSTC, Val: 10 * 0x00},
	{Addr: regDynADCENDC, Val: 10 * 0x20},
	{Addr: regDynClkSTC, Val: 10 * 0x00},
	{Addr: regDynClkENDC, Val: 10 * 0x20},
	{Addr: regDeepSleepSTC, Val: 10 * 0x21},
	{Addr: regDeepSleepENDC, Val: 10 * 0x18},
	{Addr: regTIAGainSep, Val: tiaEnSepGain},
	{Addr: regControl2, Val: ctrl2DynADC | ctrl2DynTIA |
		ctrl2OscEnable | ctrl2DynBias |
		ctrl2EnSepGain4 | ctrl2DynTx0},
	{Addr: regFIFO, Val: 0x260},
}

// Config returns the register map configuration of the AFE4410: flat
// 8-bit addresses, 24-bit values, with the ADC value registers marked
// volatile.
func Config() regmap.Config {
	return regmap.Config{
		RegBits:     8,
		ValBits:     24,
		MaxRegister: regDeepSleepENDC,
		Volatile: func(addr uint8) bool {
			switch {
			case addr >= regLED2Val && addr <= regLED1ALED1Val:
				return true
			case addr >= regAvgLED2ALED2 && addr <= regAvgLED1ALED1:
				return true
			}
			return false
		},
	}
}

type config struct {
	msg *log.Logger
	reg afe440x.Regulator
}

func newConfig() *config {
	return &config{
		msg: log.New(os.Stdout, "afe4410: ", 0),
	}
}

// Option configures an AFE4410 device.
type Option func(*config)

// WithLogger sets the logger used by the device.
func WithLogger(msg *log.Logger) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}

// WithRegulator sets the external supply regulator of the device.
// The regulator is enabled before the device is brought up and
// disabled when the device is closed or suspended.
func WithRegulator(reg afe440x.Regulator) Option {
	return func(cfg *config) {
		cfg.reg = reg
	}
}

// Device controls an AFE4410.
//
// Methods of Device are safe for concurrent use.
type Device struct {
	msg *log.Logger

	rm   *regmap.RegMap
	fifo afe440x.FIFOReader
	reg  afe440x.Regulator

	mu     sync.Mutex
	closed bool

	buf   [4 * numChans * fifoLen]byte
	cycle [numChans]int32
}

// New brings up an AFE4410 behind the given register connection and
// FIFO transport: software reset, data-sheet default timings, and
// negative offset DAC polarity on all channels.
func New(conn regmap.Conn, fifo afe440x.FIFOReader, opts ...Option) (*Device, error) {
	cfg := newConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	rm, err := regmap.New(conn, Config())
	if err != nil {
		return nil, fmt.Errorf("afe4410: could not create register map: %w", err)
	}
	if err := regmap.CheckFields(Config(), fields[:]); err != nil {
		return nil, fmt.Errorf("afe4410: invalid field table: %w", err)
	}

	dev := &Device{
		msg:  cfg.msg,
		rm:   rm,
		fifo: fifo,
		reg:  cfg.reg,
	}

	if dev.reg != nil {
		if err := dev.reg.Enable(); err != nil {
			return nil, fmt.Errorf("afe4410: could not enable regulator: %w", err)
		}
	}

	if err := dev.setup(); err != nil {
		if dev.reg != nil {
			if errDis := dev.reg.Disable(); errDis != nil {
				dev.msg.Printf("could not disable regulator: %+v", errDis)
			}
		}
		return nil, err
	}

	return dev, nil
}

func (dev *Device) setup() error {
	if err := dev.rm.Write(regControl0, ctrl0SWReset); err != nil {
		return fmt.Errorf("afe4410: could not reset device: %w", err)
	}

	if err := dev.rm.MultiWrite(initSeq); err != nil {
		return fmt.Errorf("afe4410: could not set register defaults: %w", err)
	}

	// TODO: allow positive offset DAC values.
	for _, fid := range []fieldID{
		fPolOffdacLED3,
		fPolOffdacLED1,
		fPolOffdacAMB1,
		fPolOffdacLED2,
	} {
		if err := dev.rm.WriteField(fields[fid], 1); err != nil {
			return fmt.Errorf("afe4410: could not set offset DAC polarity: %w", err)
		}
	}

	return nil
}

// Start enables the on-chip FIFO and then the sequence timer,
// beginning the acquisition.
func (dev *Device) Start() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if err := dev.rm.Update(regControl0, ctrl0FIFOEn, ctrl0FIFOEn); err != nil {
		return fmt.Errorf("afe4410: could not enable FIFO: %w", err)
	}
	if err := dev.rm.Update(regControl1, ctrl1Timeren, ctrl1Timeren); err != nil {
		return fmt.Errorf("afe4410: could not start sequence timer: %w", err)
	}
	return nil
}

// Stop halts the sequence timer and then disables the on-chip FIFO,
// the reverse of Start.
func (dev *Device) Stop() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if err := dev.rm.Update(regControl1, ctrl1Timeren, 0); err != nil {
		return fmt.Errorf("afe4410: could not stop sequence timer: %w", err)
	}
	if err := dev.rm.Update(regControl0, ctrl0FIFOEn, 0); err != nil {
		return fmt.Errorf("afe4410: could not disable FIFO: %w", err)
	}
	return nil
}

// Run services data-ready events until ctx is cancelled, pushing each
// acquired cycle to sink. A failing bulk read or sink drops that
// event's data and is logged, not returned: acquisition continues with
// the next event.
func (dev *Device) Run(ctx context.Context, events <-chan struct{}, sink afe440x.Sink) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-events:
			if !ok {
				return nil
			}
			if err := dev.onDataReady(sink); err != nil {
				dev.msg.Printf("could not handle data-ready event: %+v", err)
			}
		}
	}
}

// onDataReady drains the on-chip FIFO and pushes the fifoLen buffered
// cycles, oldest first.
func (dev *Device) onDataReady(sink afe440x.Sink) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if err := dev.fifo.ReadFIFO(dev.buf[:]); err != nil {
		return fmt.Errorf("could not read FIFO: %w", err)
	}

	for i := 0; i < fifoLen; i++ {
		rec := dev.buf[i*4*int(numChans):]
		for ch := 0; ch < int(numChans); ch++ {
			dev.cycle[ch] = decode(rec[ch*4:])
		}
		if err := sink.Push(dev.cycle[:]); err != nil {
			return fmt.Errorf("could not push cycle %d: %w", i, err)
		}
	}
	return nil
}

// decode converts one 4-byte FIFO record (3 big-endian data bytes and
// a pad byte) to a sign-extended 24-bit sample.
func decode(p []byte) int32 {
	v := uint32(p[0])<<16 | uint32(p[1])<<8 | uint32(p[2])
	return int32(v<<8) >> 8
}

// Suspend powers down the analog front-end and disables the supply
// regulator.
func (dev *Device) Suspend() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if err := dev.rm.Update(regControl2, ctrl2PDNAFE, ctrl2PDNAFE); err != nil {
		return fmt.Errorf("afe4410: could not power down AFE: %w", err)
	}
	if dev.reg != nil {
		if err := dev.reg.Disable(); err != nil {
			return fmt.Errorf("afe4410: could not disable regulator: %w", err)
		}
	}
	return nil
}

// Resume re-enables the supply regulator and powers the analog
// front-end back up. Register state survives the power-down.
func (dev *Device) Resume() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.reg != nil {
		if err := dev.reg.Enable(); err != nil {
			return fmt.Errorf("afe4410: could not enable regulator: %w", err)
		}
	}
	if err := dev.rm.Update(regControl2, ctrl2PDNAFE, 0); err != nil {
		return fmt.Errorf("afe4410: could not power up AFE: %w", err)
	}
	return nil
}

// Close releases the device. Close is idempotent.
func (dev *Device) Close() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.closed {
		return nil
	}
	dev.closed = true

	if dev.reg != nil {
		if err := dev.reg.Disable(); err != nil {
			return fmt.Errorf("afe4410: could not disable regulator: %w", err)
		}
	}
	return nil
}

// Intensity returns the last converted ADC value of the given channel,
// sign-extended from 24 bits.
func (dev *Device) Intensity(ch Chan) (int32, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	v, err := dev.rm.Read(chanValues[ch])
	if err != nil {
		return 0, fmt.Errorf("afe4410: could not read %v value: %w", ch, err)
	}
	return int32(v<<8) >> 8, nil
}

// Offset returns the offset cancellation DAC code of the given channel.
func (dev *Device) Offset(ch Chan) (uint32, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	v, err := dev.rm.ReadGroup(group(chanOffdacs[ch]))
	if err != nil {
		return 0, fmt.Errorf("afe4410: could not read %v offset: %w", ch, err)
	}
	return v, nil
}

// SetOffset sets the offset cancellation DAC code of the given channel.
func (dev *Device) SetOffset(ch Chan, code uint32) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if err := dev.rm.WriteGroup(group(chanOffdacs[ch]), code); err != nil {
		return fmt.Errorf("afe4410: could not write %v offset: %w", ch, err)
	}
	return nil
}

// LEDCurrent returns the drive current code of the LED lighting the
// given channel.
func (dev *Device) LEDCurrent(ch Chan) (uint32, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	v, err := dev.rm.ReadGroup(group(chanLEDs[ch]))
	if err != nil {
		return 0, fmt.Errorf("afe4410: could not read %v LED current: %w", ch, err)
	}
	return v, nil
}

// SetLEDCurrent sets the drive current code of the LED lighting the
// given channel. The LSB is 200 uA.
func (dev *Device) SetLEDCurrent(ch Chan, code uint32) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if err := dev.rm.WriteGroup(group(chanLEDs[ch]), code); err != nil {
		return fmt.Errorf("afe4410: could not write %v LED current: %w", ch, err)
	}
	return nil
}

// Resistance returns the TIA feedback resistance of the given channel,
// in ohms.
func (dev *Device) Resistance(ch Chan) (afe440x.Val, error) {
	return dev.tableRead(chanGains[ch], ResTable)
}

// SetResistance sets the TIA feedback resistance of the given channel.
// v must be a value of ResTable.
func (dev *Device) SetResistance(ch Chan, v afe440x.Val) error {
	return dev.tableWrite(chanGains[ch], ResTable, v)
}

// Capacitance returns the TIA feedback capacitance of the given
// channel, in picofarads.
func (dev *Device) Capacitance(ch Chan) (afe440x.Val, error) {
	return dev.tableRead(chanCaps[ch], CapTable)
}

// SetCapacitance sets the TIA feedback capacitance of the given
// channel. v must be a value of CapTable.
func (dev *Device) SetCapacitance(ch Chan, v afe440x.Val) error {
	return dev.tableWrite(chanCaps[ch], CapTable, v)
}

func (dev *Device) tableRead(id groupID, tbl afe440x.ValTable) (afe440x.Val, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	code, err := dev.rm.ReadGroup(group(id))
	if err != nil {
		return afe440x.Val{}, fmt.Errorf("afe4410: could not read group: %w", err)
	}
	if code >= uint32(len(tbl)) {
		return afe440x.Val{}, fmt.Errorf("afe4410: code 0x%x: %w", code, afe440x.ErrValue)
	}
	return tbl[code], nil
}

func (dev *Device) tableWrite(id groupID, tbl afe440x.ValTable, v afe440x.Val) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	code, ok := tbl.Code(v)
	if !ok {
		return fmt.Errorf("afe4410: value %d.%06d: %w", v.Integer, v.Fract, afe440x.ErrValue)
	}
	if err := dev.rm.WriteGroup(group(id), code); err != nil {
		return fmt.Errorf("afe4410: could not write group: %w", err)
	}
	return nil
}
