// Copyright 2021 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package regmap

import (
	"fmt"
	"testing"
)

func TestCheckFields(t *testing.T) {
	cfg := testConfig()

	for _, tc := range []struct {
		name   string
		fields []Field
		ok     bool
	}{
		{
			name: "valid",
			fields: []Field{
				{}, // reserved
				RegField(0x21, 0, 2),
				RegField(0x21, 3, 5),
				RegField(0x21, 6, 6),
				RegField(0x22, 18, 23),
			},
			ok: true,
		},
		{
			name: "exceeds-register",
			fields: []Field{
				{},
				RegField(0x21, 20, 24),
			},
			ok: false,
		},
		{
			name: "inverted-range",
			fields: []Field{
				{},
				RegField(0x21, 5, 3),
			},
			ok: false,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckFields(cfg, tc.fields)
			if (err == nil) != tc.ok {
				t.Fatalf("got err=%v, want ok=%v", err, tc.ok)
			}
		})
	}
}

func TestReadFieldIsolation(t *testing.T) {
	// A known full-register pattern must be observed through a field as
	// exactly the masked, shifted slice.
	conn := newFakeConn()
	conn.regs[0x22] = 0xa5c3f0

	rm, err := New(conn, testConfig())
	if err != nil {
		t.Fatalf("could not create regmap: %+v", err)
	}

	for _, tc := range []struct {
		field Field
		want  uint32
	}{
		{RegField(0x22, 0, 5), 0x30},
		{RegField(0x22, 6, 11), 0x0f},
		{RegField(0x22, 12, 17), 0x1c},
		{RegField(0x22, 18, 19), 0x01},
		{RegField(0x22, 20, 23), 0x0a},
	} {
		v, err := rm.ReadField(tc.field)
		if err != nil {
			t.Fatalf("read field [%d, %d]: %+v", tc.field.LSB, tc.field.MSB, err)
		}
		if v != tc.want {
			t.Fatalf("field [%d, %d]: got=0x%x, want=0x%x", tc.field.LSB, tc.field.MSB, v, tc.want)
		}
	}
}

func TestWriteFieldLeavesNeighbors(t *testing.T) {
	conn := newFakeConn()
	conn.regs[0x3a] = 0xffffff

	rm, err := New(conn, testConfig())
	if err != nil {
		t.Fatalf("could not create regmap: %+v", err)
	}

	// write 0 into bits [5, 8], everything else must survive.
	if err := rm.WriteField(RegField(0x3a, 5, 8), 0); err != nil {
		t.Fatalf("write field: %+v", err)
	}
	if got, want := conn.regs[0x3a], uint32(0xfffe1f); got != want {
		t.Fatalf("got=0x%x, want=0x%x", got, want)
	}

	// values wider than the field are silently truncated.
	if err := rm.WriteField(RegField(0x3a, 5, 8), 0xff); err != nil {
		t.Fatalf("write field: %+v", err)
	}
	if got, want := conn.regs[0x3a], uint32(0xffffff); got != want {
		t.Fatalf("got=0x%x, want=0x%x", got, want)
	}
}

func TestGroupRoundTrip(t *testing.T) {
	// ILED2-like group: 2-bit LSB chunk + 6-bit MSB chunk, plus a group
	// spanning two registers.
	for _, tc := range []struct {
		name  string
		group []Field
	}{
		{
			name: "single-field",
			group: []Field{
				RegField(0x21, 3, 5),
			},
		},
		{
			name: "split-same-register",
			group: []Field{
				RegField(0x22, 20, 21),
				RegField(0x22, 6, 11),
			},
		},
		{
			name: "cross-register",
			group: []Field{
				RegField(0x3e, 9, 9),
				RegField(0x3e, 2, 2),
				RegField(0x3a, 5, 8),
				RegField(0x3e, 3, 3),
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var width uint
			for _, f := range tc.group {
				width += f.Width()
			}
			conn := newFakeConn()
			rm, err := New(conn, testConfig())
			if err != nil {
				t.Fatalf("could not create regmap: %+v", err)
			}

			for _, v := range []uint32{0, 1, 1<<width - 1, 0x5a5a5a & (1<<width - 1)} {
				if err := rm.WriteGroup(tc.group, v); err != nil {
					t.Fatalf("write group (v=0x%x): %+v", v, err)
				}
				got, err := rm.ReadGroup(tc.group)
				if err != nil {
					t.Fatalf("read group (v=0x%x): %+v", v, err)
				}
				if got != v {
					t.Fatalf("round trip: got=0x%x, want=0x%x", got, v)
				}
			}
		})
	}
}

func TestWriteGroupNotAtomic(t *testing.T) {
	// A failing field write aborts the group but does not roll back the
	// fields already written. This is part of the contract.
	conn := newFakeConn()
	conn.failWr[0x3e] = fmt.Errorf("boom")

	rm, err := New(conn, testConfig())
	if err != nil {
		t.Fatalf("could not create regmap: %+v", err)
	}

	group := []Field{
		RegField(0x3a, 5, 8), // ok
		RegField(0x3e, 2, 2), // fails
		RegField(0x3e, 3, 3), // never reached
	}
	err = rm.WriteGroup(group, 0x3f)
	if err == nil {
		t.Fatalf("expected an error")
	}
	if got, want := conn.regs[0x3a], uint32(0xf)<<5; got != want {
		t.Fatalf("first field not written: got=0x%x, want=0x%x", got, want)
	}
}

func TestReadGroupFailFast(t *testing.T) {
	conn := newFakeConn()
	conn.failRd[0x3e] = fmt.Errorf("boom")

	rm, err := New(conn, testConfig())
	if err != nil {
		t.Fatalf("could not create regmap: %+v", err)
	}

	group := []Field{
		RegField(0x3a, 5, 8),
		RegField(0x3e, 2, 2),
	}
	if _, err := rm.ReadGroup(group); err == nil {
		t.Fatalf("expected an error")
	}
}
