// Copyright 2021 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package afe4410

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"reflect"
	"testing"
	"time"

	"github.com/go-daq/afe440x"
	"github.com/go-daq/afe440x/regmap"
)

type fakeConn struct {
	regs   map[uint8]uint32
	writes []regmap.RegVal
}

func newFakeConn() *fakeConn {
	return &fakeConn{regs: make(map[uint8]uint32)}
}

func (c *fakeConn) ReadRegister(addr uint8) (uint32, error) {
	return c.regs[addr], nil
}

func (c *fakeConn) WriteRegister(addr uint8, v uint32) error {
	c.writes = append(c.writes, regmap.RegVal{Addr: addr, Val: v})
	c.regs[addr] = v
	return nil
}

type fakeFIFO struct {
	data []byte
	err  error
}

func (f *fakeFIFO) ReadFIFO(p []byte) error {
	if f.err != nil {
		return f.err
	}
	copy(p, f.data)
	return nil
}

type fakeRegulator struct {
	enabled  int
	disabled int
	errOn    error
}

func (r *fakeRegulator) Enable() error {
	if r.errOn != nil {
		return r.errOn
	}
	r.enabled++
	return nil
}

func (r *fakeRegulator) Disable() error {
	r.disabled++
	return nil
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "afe4410: ", 0)
}

func newTestDevice(t *testing.T, conn *fakeConn, fifo afe440x.FIFOReader, opts ...Option) *Device {
	t.Helper()
	opts = append([]Option{WithLogger(testLogger())}, opts...)
	dev, err := New(conn, fifo, opts...)
	if err != nil {
		t.Fatalf("could not create device: %+v", err)
	}
	return dev
}

func TestNewSetupSequence(t *testing.T) {
	conn := newFakeConn()
	newTestDevice(t, conn, &fakeFIFO{})

	if len(conn.writes) == 0 {
		t.Fatalf("no register writes during setup")
	}

	// software reset comes first, then the register defaults.
	if got, want := conn.writes[0], (regmap.RegVal{Addr: regControl0, Val: ctrl0SWReset}); got != want {
		t.Fatalf("invalid first write: got=%v, want=%v", got, want)
	}
	if !reflect.DeepEqual(conn.writes[1:1+len(initSeq)], initSeq) {
		t.Fatalf("register defaults not written in order")
	}

	// negative offset DAC polarity on all four channels.
	if got, want := conn.regs[regOffDAC], uint32(1<<4|1<<9|1<<14|1<<19); got != want {
		t.Fatalf("invalid offset DAC polarity: got=0x%x, want=0x%x", got, want)
	}
}

func TestNewRegulator(t *testing.T) {
	reg := new(fakeRegulator)
	conn := newFakeConn()
	newTestDevice(t, conn, &fakeFIFO{}, WithRegulator(reg))

	if got, want := reg.enabled, 1; got != want {
		t.Fatalf("regulator enabled %d times, want %d", got, want)
	}
	if got, want := reg.disabled, 0; got != want {
		t.Fatalf("regulator disabled %d times, want %d", got, want)
	}
}

func TestNewRegulatorError(t *testing.T) {
	reg := &fakeRegulator{errOn: fmt.Errorf("boom")}
	_, err := New(newFakeConn(), &fakeFIFO{},
		WithLogger(testLogger()), WithRegulator(reg))
	if err == nil {
		t.Fatalf("expected an error")
	}
}

func TestStartStop(t *testing.T) {
	conn := newFakeConn()
	dev := newTestDevice(t, conn, &fakeFIFO{})

	conn.writes = nil
	if err := dev.Start(); err != nil {
		t.Fatalf("could not start: %+v", err)
	}

	// FIFO on before the sequence timer.
	var order []uint8
	for _, w := range conn.writes {
		order = append(order, w.Addr)
	}
	if !reflect.DeepEqual(order, []uint8{regControl0, regControl1}) {
		t.Fatalf("invalid start order: %v", order)
	}
	if conn.regs[regControl0]&ctrl0FIFOEn == 0 {
		t.Fatalf("FIFO not enabled")
	}
	if conn.regs[regControl1]&ctrl1Timeren == 0 {
		t.Fatalf("sequence timer not enabled")
	}

	conn.writes = nil
	if err := dev.Stop(); err != nil {
		t.Fatalf("could not stop: %+v", err)
	}

	// timer off before the FIFO.
	order = nil
	for _, w := range conn.writes {
		order = append(order, w.Addr)
	}
	if !reflect.DeepEqual(order, []uint8{regControl1, regControl0}) {
		t.Fatalf("invalid stop order: %v", order)
	}
	if conn.regs[regControl0]&ctrl0FIFOEn != 0 {
		t.Fatalf("FIFO still enabled")
	}
	if conn.regs[regControl1]&ctrl1Timeren != 0 {
		t.Fatalf("sequence timer still enabled")
	}
}

func TestDecode(t *testing.T) {
	for _, tc := range []struct {
		rec  []byte
		want int32
	}{
		{[]byte{0x00, 0x00, 0x00, 0x00}, 0},
		{[]byte{0x00, 0x00, 0x01, 0x00}, 1},
		{[]byte{0x7f, 0xff, 0xff, 0x00}, 1<<23 - 1},
		{[]byte{0xff, 0xff, 0xff, 0x00}, -1},
		{[]byte{0x80, 0x00, 0x00, 0x00}, -(1 << 23)},
		{[]byte{0x12, 0x34, 0x56, 0xee}, 0x123456}, // pad byte ignored
	} {
		if got := decode(tc.rec); got != tc.want {
			t.Errorf("decode(% x): got=%d, want=%d", tc.rec, got, tc.want)
		}
	}
}

func TestRunDataReady(t *testing.T) {
	fifo := &fakeFIFO{data: make([]byte, 4*4*fifoLen)}
	// cycle i carries samples i*4+ch.
	for i := 0; i < fifoLen; i++ {
		for ch := 0; ch < 4; ch++ {
			v := uint32(i*4 + ch)
			rec := fifo.data[(i*4+ch)*4:]
			rec[0] = byte(v >> 16)
			rec[1] = byte(v >> 8)
			rec[2] = byte(v)
		}
	}

	dev := newTestDevice(t, newFakeConn(), fifo)

	var cycles [][]int32
	sink := afe440x.SinkFunc(func(cycle []int32) error {
		cp := make([]int32, len(cycle))
		copy(cp, cycle)
		cycles = append(cycles, cp)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events := make(chan struct{}, 1)
	events <- struct{}{}
	close(events)

	if err := dev.Run(ctx, events, sink); err != nil {
		t.Fatalf("run: %+v", err)
	}

	if got, want := len(cycles), fifoLen; got != want {
		t.Fatalf("invalid number of cycles: got=%d, want=%d", got, want)
	}
	for i, cycle := range cycles {
		want := []int32{int32(i * 4), int32(i*4 + 1), int32(i*4 + 2), int32(i*4 + 3)}
		if !reflect.DeepEqual(cycle, want) {
			t.Fatalf("cycle %d: got=%v, want=%v", i, cycle, want)
		}
	}
}

func TestRunSwallowsEventErrors(t *testing.T) {
	fifo := &fakeFIFO{err: fmt.Errorf("boom")}
	dev := newTestDevice(t, newFakeConn(), fifo)

	events := make(chan struct{}, 2)
	events <- struct{}{}
	events <- struct{}{}
	close(events)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sink := afe440x.SinkFunc(func([]int32) error {
		t.Fatalf("sink must not be reached")
		return nil
	})
	if err := dev.Run(ctx, events, sink); err != nil {
		t.Fatalf("run: %+v", err)
	}
}

func TestSuspendResume(t *testing.T) {
	reg := new(fakeRegulator)
	conn := newFakeConn()
	dev := newTestDevice(t, conn, &fakeFIFO{}, WithRegulator(reg))

	if err := dev.Suspend(); err != nil {
		t.Fatalf("could not suspend: %+v", err)
	}
	if conn.regs[regControl2]&ctrl2PDNAFE == 0 {
		t.Fatalf("AFE not powered down")
	}
	if got, want := reg.disabled, 1; got != want {
		t.Fatalf("regulator disabled %d times, want %d", got, want)
	}

	if err := dev.Resume(); err != nil {
		t.Fatalf("could not resume: %+v", err)
	}
	if conn.regs[regControl2]&ctrl2PDNAFE != 0 {
		t.Fatalf("AFE still powered down")
	}
	if got, want := reg.enabled, 2; got != want {
		t.Fatalf("regulator enabled %d times, want %d", got, want)
	}
}

func TestCloseIdempotent(t *testing.T) {
	reg := new(fakeRegulator)
	dev := newTestDevice(t, newFakeConn(), &fakeFIFO{}, WithRegulator(reg))

	for i := 0; i < 3; i++ {
		if err := dev.Close(); err != nil {
			t.Fatalf("close %d: %+v", i, err)
		}
	}
	if got, want := reg.disabled, 1; got != want {
		t.Fatalf("regulator disabled %d times, want %d", got, want)
	}
}

func TestLEDCurrent(t *testing.T) {
	conn := newFakeConn()
	dev := newTestDevice(t, conn, &fakeFIFO{})

	// ILED2 is split across LEDCNTRL: LSB in [20, 21], MSB in [6, 11].
	if err := dev.SetLEDCurrent(LED2, 0xa5); err != nil {
		t.Fatalf("could not set LED current: %+v", err)
	}
	v, err := dev.LEDCurrent(LED2)
	if err != nil {
		t.Fatalf("could not read LED current: %+v", err)
	}
	if got, want := v, uint32(0xa5); got != want {
		t.Fatalf("got=0x%x, want=0x%x", got, want)
	}
	if got, want := conn.regs[regLEDCntrl]&(0x3<<20), uint32(0x1)<<20; got != want {
		t.Fatalf("LSB chunk: got=0x%x, want=0x%x", got, want)
	}
	if got, want := conn.regs[regLEDCntrl]&(0x3f<<6), uint32(0x29)<<6; got != want {
		t.Fatalf("MSB chunk: got=0x%x, want=0x%x", got, want)
	}
}

func TestOffsetDAC(t *testing.T) {
	conn := newFakeConn()
	dev := newTestDevice(t, conn, &fakeFIFO{})

	for _, ch := range []Chan{LED2, ALED2, LED1, ALED1} {
		for _, code := range []uint32{0, 1, 0x3f, 0x2a} {
			if err := dev.SetOffset(ch, code); err != nil {
				t.Fatalf("%v: could not set offset: %+v", ch, err)
			}
			v, err := dev.Offset(ch)
			if err != nil {
				t.Fatalf("%v: could not read offset: %+v", ch, err)
			}
			if v != code {
				t.Fatalf("%v: got=0x%x, want=0x%x", ch, v, code)
			}
		}
	}

	// channels must not clobber each other.
	for _, ch := range []Chan{LED2, ALED2, LED1, ALED1} {
		if err := dev.SetOffset(ch, uint32(ch)+1); err != nil {
			t.Fatalf("%v: could not set offset: %+v", ch, err)
		}
	}
	for _, ch := range []Chan{LED2, ALED2, LED1, ALED1} {
		v, err := dev.Offset(ch)
		if err != nil {
			t.Fatalf("%v: could not read offset: %+v", ch, err)
		}
		if got, want := v, uint32(ch)+1; got != want {
			t.Fatalf("%v: got=0x%x, want=0x%x", ch, got, want)
		}
	}
}

func TestResistance(t *testing.T) {
	conn := newFakeConn()
	dev := newTestDevice(t, conn, &fakeFIFO{})

	want := afe440x.Val{Integer: 100000}
	if err := dev.SetResistance(LED1, want); err != nil {
		t.Fatalf("could not set resistance: %+v", err)
	}
	got, err := dev.Resistance(LED1)
	if err != nil {
		t.Fatalf("could not read resistance: %+v", err)
	}
	if got != want {
		t.Fatalf("got=%v, want=%v", got, want)
	}

	err = dev.SetResistance(LED1, afe440x.Val{Integer: 123})
	if !errors.Is(err, afe440x.ErrValue) {
		t.Fatalf("got err=%v, want %v", err, afe440x.ErrValue)
	}
}

func TestIntensity(t *testing.T) {
	conn := newFakeConn()
	conn.regs[regALED1Val] = 0xffffff // -1 sign extended
	dev := newTestDevice(t, conn, &fakeFIFO{})

	v, err := dev.Intensity(ALED1)
	if err != nil {
		t.Fatalf("could not read intensity: %+v", err)
	}
	if got, want := v, int32(-1); got != want {
		t.Fatalf("got=%d, want=%d", got, want)
	}
}
