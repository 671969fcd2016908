// Copyright 2021 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package afe440x

import "errors"

var (
	// ErrScanMask is returned when a requested channel mask does not enable
	// phases contiguously from phase 1.
	ErrScanMask = errors.New("afe440x: channel mask is not a prefix mask")

	// ErrValue is returned when a requested physical value has no code in
	// the corresponding lookup table.
	ErrValue = errors.New("afe440x: value not in lookup table")
)

// FIFOReader is the bulk FIFO transport of a device.
//
// ReadFIFO fills p with len(p)/4 sample records of 4 bytes each. The record
// layout is variant specific: the AFE4410 packs 3 big-endian data bytes and
// one pad byte per sample, the AFE4420 transport delivers word-aligned
// records with the sample in the low 24 bits.
type FIFOReader interface {
	ReadFIFO(p []byte) error
}

// Sink receives one acquisition cycle worth of samples, one sign-extended
// 24-bit value per active channel, in ascending channel order.
//
// Cycles produced by a single data-ready event are pushed in arrival order,
// oldest first. The cycle slice is reused between calls: implementations
// must copy it when retaining it.
type Sink interface {
	Push(cycle []int32) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(cycle []int32) error

func (f SinkFunc) Push(cycle []int32) error { return f(cycle) }

// Regulator models the external power supply (tx_sup) feeding the AFE.
type Regulator interface {
	Enable() error
	Disable() error
}

// Val is a fixed-point physical value, split into integer and fractional
// (micro) parts.
type Val struct {
	Integer int
	Fract   int
}

// ValTable maps a register code (the index) to a physical value.
type ValTable []Val

// Code returns the register code for v, or ok=false when v is not in the
// table.
func (tbl ValTable) Code(v Val) (uint32, bool) {
	for i, tv := range tbl {
		if tv == v {
			return uint32(i), true
		}
	}
	return 0, false
}
