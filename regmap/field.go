// Copyright 2021 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package regmap

import "fmt"

// Field describes one logical bitfield inside a register, as the closed
// bit range [LSB, MSB] of the register at Reg.
//
// Several fields may share one register address with disjoint bit ranges.
type Field struct {
	Reg uint8
	LSB uint8
	MSB uint8
}

// RegField returns the field spanning bits [lsb, msb] of the register
// at addr.
func RegField(addr uint8, lsb, msb uint8) Field {
	return Field{Reg: addr, LSB: lsb, MSB: msb}
}

// Width returns the width of the field, in bits.
func (f Field) Width() uint { return uint(f.MSB-f.LSB) + 1 }

// Mask returns the in-register mask of the field.
func (f Field) Mask() uint32 {
	return (uint32(1)<<f.Width() - 1) << f.LSB
}

// CheckFields verifies that every field in fields fits within a register of
// cfg's value width. The field at index 0 is reserved and not checked.
func CheckFields(cfg Config, fields []Field) error {
	for i, f := range fields[1:] {
		if f.LSB > f.MSB {
			return fmt.Errorf("regmap: field %d: bit range [%d, %d] is inverted", i+1, f.LSB, f.MSB)
		}
		if int(f.MSB) >= cfg.ValBits {
			return fmt.Errorf("regmap: field %d: bit range [%d, %d] exceeds %d-bit register 0x%02x",
				i+1, f.LSB, f.MSB, cfg.ValBits, f.Reg,
			)
		}
	}
	return nil
}

// ReadField returns the value of field f, right-aligned.
func (rm *RegMap) ReadField(f Field) (uint32, error) {
	v, err := rm.Read(f.Reg)
	if err != nil {
		return 0, err
	}
	return (v & f.Mask()) >> f.LSB, nil
}

// WriteField sets field f to v, leaving the other bits of the backing
// register untouched. v is silently truncated to the field width.
func (rm *RegMap) WriteField(f Field, v uint32) error {
	return rm.Update(f.Reg, f.Mask(), v<<f.LSB)
}

// ReadGroup reads the logical value spread over the ordered field group,
// concatenating each field's bits least-significant field first.
func (rm *RegMap) ReadGroup(group []Field) (uint32, error) {
	var (
		val   uint32
		shift uint
	)
	for _, f := range group {
		v, err := rm.ReadField(f)
		if err != nil {
			return 0, err
		}
		val |= v << shift
		shift += f.Width()
	}
	return val, nil
}

// WriteGroup decomposes v over the ordered field group, least-significant
// field first.
//
// The sequence is best effort, not atomic: the first failed field write
// aborts, and fields already written are not rolled back.
func (rm *RegMap) WriteGroup(group []Field, v uint32) error {
	for _, f := range group {
		err := rm.WriteField(f, v)
		if err != nil {
			return err
		}
		v >>= f.Width()
	}
	return nil
}
