// Copyright 2021 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package regmap

import (
	"fmt"
	"reflect"
	"testing"
)

type fakeConn struct {
	regs map[uint8]uint32

	reads  []uint8
	writes []RegVal

	failRd map[uint8]error
	failWr map[uint8]error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		regs:   make(map[uint8]uint32),
		failRd: make(map[uint8]error),
		failWr: make(map[uint8]error),
	}
}

func (c *fakeConn) ReadRegister(addr uint8) (uint32, error) {
	if err, ok := c.failRd[addr]; ok {
		return 0, err
	}
	c.reads = append(c.reads, addr)
	return c.regs[addr], nil
}

func (c *fakeConn) WriteRegister(addr uint8, v uint32) error {
	if err, ok := c.failWr[addr]; ok {
		return err
	}
	c.writes = append(c.writes, RegVal{addr, v})
	c.regs[addr] = v
	return nil
}

func testConfig() Config {
	return Config{
		RegBits:     8,
		ValBits:     24,
		MaxRegister: 0xf0,
		Volatile: func(addr uint8) bool {
			return addr == 0x6d
		},
	}
}

func TestReadCached(t *testing.T) {
	conn := newFakeConn()
	conn.regs[0x20] = 0x123456

	rm, err := New(conn, testConfig())
	if err != nil {
		t.Fatalf("could not create regmap: %+v", err)
	}

	for i := 0; i < 3; i++ {
		v, err := rm.Read(0x20)
		if err != nil {
			t.Fatalf("read %d: %+v", i, err)
		}
		if got, want := v, uint32(0x123456); got != want {
			t.Fatalf("read %d: got=0x%x, want=0x%x", i, got, want)
		}
	}

	if got, want := len(conn.reads), 1; got != want {
		t.Fatalf("invalid number of bus reads: got=%d, want=%d", got, want)
	}
}

func TestReadVolatile(t *testing.T) {
	conn := newFakeConn()
	conn.regs[0x6d] = 0x13

	rm, err := New(conn, testConfig())
	if err != nil {
		t.Fatalf("could not create regmap: %+v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := rm.Read(0x6d); err != nil {
			t.Fatalf("read %d: %+v", i, err)
		}
	}

	if got, want := len(conn.reads), 3; got != want {
		t.Fatalf("invalid number of bus reads: got=%d, want=%d", got, want)
	}
}

func TestWriteUpdatesCache(t *testing.T) {
	conn := newFakeConn()

	rm, err := New(conn, testConfig())
	if err != nil {
		t.Fatalf("could not create regmap: %+v", err)
	}

	if err := rm.Write(0x22, 0xabcdef); err != nil {
		t.Fatalf("write: %+v", err)
	}
	v, err := rm.Read(0x22)
	if err != nil {
		t.Fatalf("read: %+v", err)
	}
	if got, want := v, uint32(0xabcdef); got != want {
		t.Fatalf("got=0x%x, want=0x%x", got, want)
	}
	if got, want := len(conn.reads), 0; got != want {
		t.Fatalf("cached write re-read the bus: reads=%d, want=%d", got, want)
	}
}

func TestWriteMasksValue(t *testing.T) {
	conn := newFakeConn()

	rm, err := New(conn, testConfig())
	if err != nil {
		t.Fatalf("could not create regmap: %+v", err)
	}

	if err := rm.Write(0x22, 0xffabcdef); err != nil {
		t.Fatalf("write: %+v", err)
	}
	if got, want := conn.regs[0x22], uint32(0xabcdef); got != want {
		t.Fatalf("got=0x%x, want=0x%x", got, want)
	}
}

func TestUpdate(t *testing.T) {
	for _, tc := range []struct {
		name   string
		init   uint32
		mask   uint32
		val    uint32
		want   uint32
		writes int
	}{
		{
			name:   "set-bits",
			init:   0x000001,
			mask:   0x000f00,
			val:    0x000300,
			want:   0x000301,
			writes: 1,
		},
		{
			name:   "clear-bits",
			init:   0x000f01,
			mask:   0x000f00,
			val:    0x000000,
			want:   0x000001,
			writes: 1,
		},
		{
			name:   "no-change",
			init:   0x000301,
			mask:   0x000f00,
			val:    0x000300,
			want:   0x000301,
			writes: 0,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			conn := newFakeConn()
			conn.regs[0x23] = tc.init

			rm, err := New(conn, testConfig())
			if err != nil {
				t.Fatalf("could not create regmap: %+v", err)
			}

			if err := rm.Update(0x23, tc.mask, tc.val); err != nil {
				t.Fatalf("update: %+v", err)
			}
			if got, want := conn.regs[0x23], tc.want; got != want {
				t.Fatalf("got=0x%x, want=0x%x", got, want)
			}
			if got, want := len(conn.writes), tc.writes; got != want {
				t.Fatalf("invalid number of bus writes: got=%d, want=%d", got, want)
			}
		})
	}
}

func TestMultiWrite(t *testing.T) {
	conn := newFakeConn()

	rm, err := New(conn, testConfig())
	if err != nil {
		t.Fatalf("could not create regmap: %+v", err)
	}

	seq := []RegVal{
		{0x00, 0x000030},
		{0x01, 0x00000a},
		{0x02, 0x00001e},
	}
	if err := rm.MultiWrite(seq); err != nil {
		t.Fatalf("multi-write: %+v", err)
	}
	if !reflect.DeepEqual(conn.writes, seq) {
		t.Fatalf("invalid write sequence:\ngot= %v\nwant=%v", conn.writes, seq)
	}
}

func TestMultiWriteFailFast(t *testing.T) {
	conn := newFakeConn()
	conn.failWr[0x01] = fmt.Errorf("boom")

	rm, err := New(conn, testConfig())
	if err != nil {
		t.Fatalf("could not create regmap: %+v", err)
	}

	seq := []RegVal{
		{0x00, 0x000030},
		{0x01, 0x00000a},
		{0x02, 0x00001e},
	}
	err = rm.MultiWrite(seq)
	if err == nil {
		t.Fatalf("expected an error")
	}
	if !reflect.DeepEqual(conn.writes, seq[:1]) {
		t.Fatalf("writes after failure:\ngot= %v\nwant=%v", conn.writes, seq[:1])
	}
}

func TestOutOfRange(t *testing.T) {
	conn := newFakeConn()

	rm, err := New(conn, testConfig())
	if err != nil {
		t.Fatalf("could not create regmap: %+v", err)
	}

	if _, err := rm.Read(0xf1); err == nil {
		t.Fatalf("expected an error reading register 0xf1")
	}
	if err := rm.Write(0xf1, 1); err == nil {
		t.Fatalf("expected an error writing register 0xf1")
	}
}
