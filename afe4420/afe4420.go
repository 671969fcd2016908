// Copyright 2021 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package afe4420 controls the TI AFE4420 optical heart-rate monitor
// and bio-sensor analog front-end.
//
// Unlike the fixed four-channel AFE4410, the AFE4420 sequences up to
// sixteen time-multiplexed phases per acquisition cycle. Phases are
// enabled contiguously from phase 0: the active channel mask must be a
// prefix mask. The on-chip FIFO buffers whole cycles and raises a
// ready event at a watermark scaled to the number of active phases.
package afe4420 // import "github.com/go-daq/afe440x/afe4420"

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"math/bits"
	"os"
	"sync"

	"github.com/go-daq/afe440x"
	"github.com/go-daq/afe440x/regmap"
)

// ResetPin models the reset line of the device. Assert holds the
// device in reset, Release brings it out of reset.
type ResetPin interface {
	Assert() error
	Release() error
}

// ResTable maps TIA gain codes to feedback resistances, in ohms.
var ResTable = afe440x.ValTable{
	{Integer: 10000, Fract: 0},
	{Integer: 25000, Fract: 0},
	{Integer: 50000, Fract: 0},
	{Integer: 100000, Fract: 0},
	{Integer: 166000, Fract: 0},
	{Integer: 200000, Fract: 0},
	{Integer: 250000, Fract: 0},
	{Integer: 500000, Fract: 0},
	{Integer: 1000000, Fract: 0},
	{Integer: 1500000, Fract: 0},
	{Integer: 2000000, Fract: 0},
}

// CapTable maps TIA bandwidth codes to feedback capacitances, in
// picofarads.
var CapTable = afe440x.ValTable{
	{Integer: 0, Fract: 2500},
	{Integer: 0, Fract: 5000},
	{Integer: 0, Fract: 7500},
	{Integer: 0, Fract: 10000},
	{Integer: 0, Fract: 17500},
	{Integer: 0, Fract: 20000},
	{Integer: 0, Fract: 22500},
	{Integer: 0, Fract: 25000},
}

// Default timings.
var initSeq = []regmap.RegVal{
	{Addr: regControl0, Val: ctrl0TmCountRst},
	{Addr: regPRPCount, Val: prpTimeren | defaultPRPCnt},
	{Addr: regControl1, Val: ctrl1IFSOffdac | ctrl1EnAACMGbl | ctrl1ILED2X},
	{Addr: regFIFO, Val: fifoIntMuxFIFORdy},
	{Addr: regPhase, Val: phaseFilt1ResetEnz | phaseFilt2ResetEnz |
		phaseFilt3ResetEnz | phaseFilt4ResetEnz},
	{Addr: regAACM, Val: aacmImmRefresh | aacmQuickConv},
	{Addr: phaseCntrl2(1), Val: phStaggerLED},
	{Addr: phaseCntrl0(3), Val: phLEDDrv1Tx1 | phLEDDrv2Tx1},
	{Addr: phaseCntrl0(4), Val: phLEDDrv1Tx2 | phLEDDrv2Tx2},
	{Addr: phaseCntrl0(5), Val: phLEDDrv1Tx3 | phLEDDrv2Tx3},
	{Addr: phaseCntrl0(6), Val: phLEDDrv1Tx4 | phLEDDrv2Tx4},
}

// Config returns the register map configuration of the AFE4420: flat
// 8-bit addresses, 24-bit values, uncached, with the FIFO pointer and
// the AACM read-back registers marked volatile.
func Config() regmap.Config {
	return regmap.Config{
		RegBits:     8,
		ValBits:     24,
		MaxRegister: phaseCntrl2(TotalPhases - 1),
		NoCache:     true,
		Volatile: func(addr uint8) bool {
			if addr == regPointerDiff {
				return true
			}
			for pd := 0; pd < numPDs; pd++ {
				if addr == pdCntrl2(pd) {
					return true
				}
			}
			return false
		},
	}
}

type config struct {
	msg   *log.Logger
	reg   afe440x.Regulator
	reset ResetPin
}

func newConfig() *config {
	return &config{
		msg: log.New(os.Stdout, "afe4420: ", 0),
	}
}

// Option configures an AFE4420 device.
type Option func(*config)

// WithLogger sets the logger used by the device.
func WithLogger(msg *log.Logger) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}

// WithRegulator sets the external supply regulator of the device.
func WithRegulator(reg afe440x.Regulator) Option {
	return func(cfg *config) {
		cfg.reg = reg
	}
}

// WithResetPin sets the reset line of the device. The line is released
// before the device is brought up and asserted on suspend.
func WithResetPin(pin ResetPin) Option {
	return func(cfg *config) {
		cfg.reset = pin
	}
}

// Device controls an AFE4420.
//
// Methods of Device are safe for concurrent use.
type Device struct {
	msg *log.Logger

	rm    *regmap.RegMap
	fifo  afe440x.FIFOReader
	reg   afe440x.Regulator
	reset ResetPin

	mu         sync.Mutex
	usedPhases int
	closed     bool

	buf   [4 * maxFIFOSamples]byte
	cycle [TotalPhases]int32
}

// New brings up an AFE4420 behind the given register connection and
// FIFO transport: release from reset, software reset, and default
// timings with the ready event muxed to the FIFO watermark.
func New(conn regmap.Conn, fifo afe440x.FIFOReader, opts ...Option) (*Device, error) {
	cfg := newConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	rm, err := regmap.New(conn, Config())
	if err != nil {
		return nil, fmt.Errorf("afe4420: could not create register map: %w", err)
	}

	dev := &Device{
		msg:   cfg.msg,
		rm:    rm,
		fifo:  fifo,
		reg:   cfg.reg,
		reset: cfg.reset,
	}

	if dev.reg != nil {
		if err := dev.reg.Enable(); err != nil {
			return nil, fmt.Errorf("afe4420: could not enable regulator: %w", err)
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
	if dev.reset != nil {
		if err := dev.reset.Release(); err != nil {
			return fmt.Errorf("afe4420: could not release reset pin: %w", err)
		}
	}

	if err := dev.rm.Write(regControl0, ctrl0SWReset); err != nil {
		return fmt.Errorf("afe4420: could not reset device: %w", err)
	}

	if err := dev.rm.MultiWrite(initSeq); err != nil {
		return fmt.Errorf("afe4420: could not set register defaults: %w", err)
	}

	return nil
}

// SetActiveChannels reconfigures the device for the phases enabled in
// mask. Bit i of mask enables phase i, and phases must be enabled
// contiguously from phase 0: a non-prefix mask is rejected with
// afe440x.ErrScanMask.
//
// Each enabled phase gets its first photodiode switched in and the
// default LED sample time. The FIFO watermark is scaled so that a
// ready event signals fifoLen buffered cycles. On error the previous
// configuration stays in effect.
func (dev *Device) SetActiveChannels(mask uint16) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	phases := bits.OnesCount16(mask)
	if phases == 0 || mask != 1<<phases-1 {
		return fmt.Errorf("afe4420: mask 0b%b: %w", mask, afe440x.ErrScanMask)
	}

	// Enable PD for each enabled phase.
	for i := 0; i < phases; i++ {
		if err := dev.rm.Update(phaseCntrl0(i), phPDOn1, phPDOn1); err != nil {
			return fmt.Errorf("afe4420: could not enable PD on phase %d: %w", i, err)
		}
	}

	// Set sample time for each enabled phase.
	for i := 0; i < phases; i++ {
		if err := dev.rm.Update(phaseCntrl2(i), phTWLEDMask, defaultTWLED); err != nil {
			return fmt.Errorf("afe4420: could not set sample time on phase %d: %w", i, err)
		}
	}

	// Set watermark for the FIFO_RDY signal.
	if err := dev.rm.WriteField(fWMFIFO, uint32(phases*fifoLen-1)); err != nil {
		return fmt.Errorf("afe4420: could not set watermark level: %w", err)
	}

	// Set number of active signal phases.
	if err := dev.rm.WriteField(fNumPhase, uint32(phases-1)); err != nil {
		return fmt.Errorf("afe4420: could not set number of active phases: %w", err)
	}

	dev.usedPhases = phases

	return nil
}

// ActivePhases returns the number of phases enabled by the last
// successful SetActiveChannels, or 0.
func (dev *Device) ActivePhases() int {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.usedPhases
}

// Start releases the sequence timer from reset and enables the FIFO in
// a single write.
func (dev *Device) Start() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.usedPhases == 0 {
		return fmt.Errorf("afe4420: no active phases")
	}
	if err := dev.rm.Write(regControl0, ctrl0FIFOEn); err != nil {
		return fmt.Errorf("afe4420: could not start acquisition: %w", err)
	}
	return nil
}

// Stop disables the FIFO and puts the sequence timer in reset in a
// single write.
func (dev *Device) Stop() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if err := dev.rm.Write(regControl0, ctrl0TmCountRst); err != nil {
		return fmt.Errorf("afe4420: could not stop acquisition: %w", err)
	}
	return nil
}

// Run services FIFO ready events until ctx is cancelled, pushing each
// acquired cycle to sink. A failing event is logged, not returned:
// acquisition continues with the next event.
func (dev *Device) Run(ctx context.Context, events <-chan struct{}, sink afe440x.Sink) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-events:
			if !ok {
				return nil
			}
			if err := dev.onFIFOReady(sink); err != nil {
				dev.msg.Printf("could not handle FIFO ready event: %+v", err)
			}
		}
	}
}

// onFIFOReady drains the whole acquisition cycles buffered in the
// FIFO, oldest first. Samples of a trailing partial cycle stay in the
// FIFO for the next event.
func (dev *Device) onFIFOReady(sink afe440x.Sink) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.usedPhases == 0 {
		return fmt.Errorf("no active phases")
	}

	v, err := dev.rm.Read(regPointerDiff)
	if err != nil {
		return fmt.Errorf("could not read FIFO pointer: %w", err)
	}
	samples := int(int32(v<<23)>>23) + 1
	if samples <= 0 {
		return fmt.Errorf("empty FIFO (pointer diff 0x%x)", v)
	}
	if samples > maxFIFOSamples {
		samples = maxFIFOSamples
	}

	if samples%dev.usedPhases != 0 {
		dev.msg.Printf("samples in FIFO not a multiple of used phases: %d %% %d",
			samples, dev.usedPhases)
	}
	cycles := samples / dev.usedPhases
	if cycles == 0 {
		return nil
	}

	switch {
	case cycles < fifoLen:
		dev.msg.Printf("early FIFO event (%d cycles)", cycles)
	case cycles > fifoLen:
		dev.msg.Printf("late FIFO event (%d cycles)", cycles)
	}

	n := dev.usedPhases * cycles * 4
	if err := dev.fifo.ReadFIFO(dev.buf[:n]); err != nil {
		return fmt.Errorf("could not read FIFO: %w", err)
	}

	for i := 0; i < cycles; i++ {
		rec := dev.buf[i*dev.usedPhases*4:]
		for ph := 0; ph < dev.usedPhases; ph++ {
			dev.cycle[ph] = decode(rec[ph*4:])
		}
		if err := sink.Push(dev.cycle[:dev.usedPhases]); err != nil {
			return fmt.Errorf("could not push cycle %d: %w", i, err)
		}
	}
	return nil
}

// decode converts one word-aligned FIFO record to a sign-extended
// 24-bit sample.
func decode(p []byte) int32 {
	v := binary.LittleEndian.Uint32(p) & 0xffffff
	return int32(v<<8) >> 8
}

// Suspend holds the device in reset and disables the supply regulator.
func (dev *Device) Suspend() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.reset != nil {
		if err := dev.reset.Assert(); err != nil {
			return fmt.Errorf("afe4420: could not assert reset pin: %w", err)
		}
	}
	if dev.reg != nil {
		if err := dev.reg.Disable(); err != nil {
			return fmt.Errorf("afe4420: could not disable regulator: %w", err)
		}
	}
	return nil
}

// Resume re-enables the supply regulator and releases the device from
// reset. Register state is lost across the reset: the device must be
// reconfigured before the next acquisition.
func (dev *Device) Resume() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.reg != nil {
		if err := dev.reg.Enable(); err != nil {
			return fmt.Errorf("afe4420: could not enable regulator: %w", err)
		}
	}
	if dev.reset != nil {
		if err := dev.reset.Release(); err != nil {
			return fmt.Errorf("afe4420: could not release reset pin: %w", err)
		}
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
			return fmt.Errorf("afe4420: could not disable regulator: %w", err)
		}
	}
	return nil
}

func checkPhase(phase int) error {
	if phase < 0 || phase >= TotalPhases {
		return fmt.Errorf("afe4420: invalid phase %d", phase)
	}
	return nil
}

func checkPD(pd int) error {
	if pd < 0 || pd >= numPDs {
		return fmt.Errorf("afe4420: invalid photodiode %d", pd)
	}
	return nil
}

// Averages returns the number of ADC averages of the given phase,
// in 1..16.
func (dev *Device) Averages(phase int) (int, error) {
	if err := checkPhase(phase); err != nil {
		return 0, err
	}
	dev.mu.Lock()
	defer dev.mu.Unlock()

	v, err := dev.rm.ReadField(fNumAv(phase))
	if err != nil {
		return 0, fmt.Errorf("afe4420: could not read averages of phase %d: %w", phase, err)
	}
	return int(v) + 1, nil
}

// SetAverages sets the number of ADC averages of the given phase.
// n must be in 1..16.
func (dev *Device) SetAverages(phase, n int) error {
	if err := checkPhase(phase); err != nil {
		return err
	}
	if n < 1 || n > 16 {
		return fmt.Errorf("afe4420: averages %d: %w", n, afe440x.ErrValue)
	}
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if err := dev.rm.WriteField(fNumAv(phase), uint32(n-1)); err != nil {
		return fmt.Errorf("afe4420: could not set averages of phase %d: %w", phase, err)
	}
	return nil
}

// Resistance returns the TIA feedback resistance of the given phase,
// in ohms.
func (dev *Device) Resistance(phase int) (afe440x.Val, error) {
	if err := checkPhase(phase); err != nil {
		return afe440x.Val{}, err
	}
	return dev.tableRead(fTIAGainRf(phase), ResTable)
}

// SetResistance sets the TIA feedback resistance of the given phase.
// v must be a value of ResTable.
func (dev *Device) SetResistance(phase int, v afe440x.Val) error {
	if err := checkPhase(phase); err != nil {
		return err
	}
	return dev.tableWrite(fTIAGainRf(phase), ResTable, v)
}

// Capacitance returns the TIA feedback capacitance of the given phase,
// in picofarads.
func (dev *Device) Capacitance(phase int) (afe440x.Val, error) {
	if err := checkPhase(phase); err != nil {
		return afe440x.Val{}, err
	}
	return dev.tableRead(fTIAGainCf(phase), CapTable)
}

// SetCapacitance sets the TIA feedback capacitance of the given phase.
// v must be a value of CapTable.
func (dev *Device) SetCapacitance(phase int, v afe440x.Val) error {
	if err := checkPhase(phase); err != nil {
		return err
	}
	return dev.tableWrite(fTIAGainCf(phase), CapTable, v)
}

// OffsetDAC returns the offset cancellation DAC code of the given
// phase and whether its polarity is negative.
func (dev *Device) OffsetDAC(phase int) (code uint32, neg bool, err error) {
	if err := checkPhase(phase); err != nil {
		return 0, false, err
	}
	dev.mu.Lock()
	defer dev.mu.Unlock()

	code, err = dev.rm.ReadField(fIOffdac(phase))
	if err != nil {
		return 0, false, fmt.Errorf("afe4420: could not read offset DAC of phase %d: %w", phase, err)
	}
	pol, err := dev.rm.ReadField(fPolOffdac(phase))
	if err != nil {
		return 0, false, fmt.Errorf("afe4420: could not read offset DAC polarity of phase %d: %w", phase, err)
	}
	return code, pol != 0, nil
}

// SetOffsetDAC sets the offset cancellation DAC code and polarity of
// the given phase.
func (dev *Device) SetOffsetDAC(phase int, code uint32, neg bool) error {
	if err := checkPhase(phase); err != nil {
		return err
	}
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if err := dev.rm.WriteField(fIOffdac(phase), code); err != nil {
		return fmt.Errorf("afe4420: could not set offset DAC of phase %d: %w", phase, err)
	}
	var pol uint32
	if neg {
		pol = 1
	}
	if err := dev.rm.WriteField(fPolOffdac(phase), pol); err != nil {
		return fmt.Errorf("afe4420: could not set offset DAC polarity of phase %d: %w", phase, err)
	}
	return nil
}

// LEDCurrent returns the drive current code of the given transmitter,
// in 0..3.
func (dev *Device) LEDCurrent(tx int) (uint32, error) {
	if tx < 0 || tx >= len(fILEDTx) {
		return 0, fmt.Errorf("afe4420: invalid transmitter %d", tx)
	}
	dev.mu.Lock()
	defer dev.mu.Unlock()

	v, err := dev.rm.ReadField(fILEDTx[tx])
	if err != nil {
		return 0, fmt.Errorf("afe4420: could not read LED current of TX%d: %w", tx+1, err)
	}
	return v, nil
}

// SetLEDCurrent sets the drive current code of the given transmitter.
// The LSB is 200 uA.
func (dev *Device) SetLEDCurrent(tx int, code uint32) error {
	if tx < 0 || tx >= len(fILEDTx) {
		return fmt.Errorf("afe4420: invalid transmitter %d", tx)
	}
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if err := dev.rm.WriteField(fILEDTx[tx], code); err != nil {
		return fmt.Errorf("afe4420: could not set LED current of TX%d: %w", tx+1, err)
	}
	return nil
}

// SetAACM enables or disables ambient cancellation on the given
// photodiode, spread over nphases phases.
func (dev *Device) SetAACM(pd int, enabled bool, nphases int) error {
	if err := checkPD(pd); err != nil {
		return err
	}
	if nphases < 1 || nphases > TotalPhases {
		return fmt.Errorf("afe4420: AACM phases %d: %w", nphases, afe440x.ErrValue)
	}
	dev.mu.Lock()
	defer dev.mu.Unlock()

	var en uint32
	if enabled {
		en = 1
	}
	if err := dev.rm.WriteField(fEnAACM(pd), en); err != nil {
		return fmt.Errorf("afe4420: could not set AACM enable of PD%d: %w", pd+1, err)
	}
	if err := dev.rm.WriteField(fNumPhaseAACM(pd), uint32(nphases-1)); err != nil {
		return fmt.Errorf("afe4420: could not set AACM phases of PD%d: %w", pd+1, err)
	}
	return nil
}

// SetFreezeAACM freezes or resumes the ambient cancellation loop of
// the given photodiode.
func (dev *Device) SetFreezeAACM(pd int, frozen bool) error {
	if err := checkPD(pd); err != nil {
		return err
	}
	dev.mu.Lock()
	defer dev.mu.Unlock()

	var v uint32
	if frozen {
		v = 1
	}
	if err := dev.rm.WriteField(fFreezeAACM(pd), v); err != nil {
		return fmt.Errorf("afe4420: could not freeze AACM of PD%d: %w", pd+1, err)
	}
	return nil
}

// SetOffsetBase sets the base offset cancellation DAC code and
// polarity of the given photodiode.
func (dev *Device) SetOffsetBase(pd int, code uint32, neg bool) error {
	if err := checkPD(pd); err != nil {
		return err
	}
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if err := dev.rm.WriteField(fIOffdacBase(pd), code); err != nil {
		return fmt.Errorf("afe4420: could not set base offset of PD%d: %w", pd+1, err)
	}
	var pol uint32
	if neg {
		pol = 1
	}
	if err := dev.rm.WriteField(fPolOffdacBase(pd), pol); err != nil {
		return fmt.Errorf("afe4420: could not set base offset polarity of PD%d: %w", pd+1, err)
	}
	return nil
}

// SetCalibAACM sets the ambient cancellation calibration code of the
// given photodiode.
func (dev *Device) SetCalibAACM(pd int, code uint32) error {
	if err := checkPD(pd); err != nil {
		return err
	}
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if err := dev.rm.WriteField(fCalibAACM(pd), code); err != nil {
		return fmt.Errorf("afe4420: could not set AACM calibration of PD%d: %w", pd+1, err)
	}
	return nil
}

// AACMOffset returns the offset cancellation DAC code converged on by
// the ambient cancellation loop of the given photodiode, and whether
// its polarity is negative.
func (dev *Device) AACMOffset(pd int) (code uint32, neg bool, err error) {
	if err := checkPD(pd); err != nil {
		return 0, false, err
	}
	dev.mu.Lock()
	defer dev.mu.Unlock()

	code, err = dev.rm.ReadField(fIOffdacAACMRead(pd))
	if err != nil {
		return 0, false, fmt.Errorf("afe4420: could not read AACM offset of PD%d: %w", pd+1, err)
	}
	pol, err := dev.rm.ReadField(fPolOffdacAACMRead(pd))
	if err != nil {
		return 0, false, fmt.Errorf("afe4420: could not read AACM offset polarity of PD%d: %w", pd+1, err)
	}
	return code, pol != 0, nil
}

// SetPDDisconnect connects or disconnects the photodiode inputs.
func (dev *Device) SetPDDisconnect(disconnected bool) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	var v uint32
	if disconnected {
		v = 1
	}
	if err := dev.rm.WriteField(fPDDisconnect, v); err != nil {
		return fmt.Errorf("afe4420: could not set PD disconnect: %w", err)
	}
	return nil
}

// SetChannelOffsetAACM sets the channel offset target of the ambient
// cancellation loop.
func (dev *Device) SetChannelOffsetAACM(code uint32) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if err := dev.rm.WriteField(fChannelOffsetAACM, code); err != nil {
		return fmt.Errorf("afe4420: could not set AACM channel offset: %w", err)
	}
	return nil
}

func (dev *Device) tableRead(field regmap.Field, tbl afe440x.ValTable) (afe440x.Val, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	code, err := dev.rm.ReadField(field)
	if err != nil {
		return afe440x.Val{}, fmt.Errorf("afe4420: could not read field: %w", err)
	}
	if code >= uint32(len(tbl)) {
		return afe440x.Val{}, fmt.Errorf("afe4420: code 0x%x: %w", code, afe440x.ErrValue)
	}
	return tbl[code], nil
}

func (dev *Device) tableWrite(field regmap.Field, tbl afe440x.ValTable, v afe440x.Val) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	code, ok := tbl.Code(v)
	if !ok {
		return fmt.Errorf("afe4420: value %d.%06d: %w", v.Integer, v.Fract, afe440x.ErrValue)
	}
	if err := dev.rm.WriteField(field, code); err != nil {
		return fmt.Errorf("afe4420: could not write field: %w", err)
	}
	return nil
}
