// Copyright 2021 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package afe4420

// AFE4420 registers.
const (
	regControl0    = 0x00
	regPRPCount    = 0x1d
	regControl1    = 0x23
	regFIFO        = 0x42
	regPointerDiff = 0x6d
	regPhase       = 0x88
	regAACM        = 0x93
	regPDCntrl     = 0x98 // PDCNTRL0(0), 4 registers per PD
	regLEDCntrl1   = 0xac
	regLEDCntrl2   = 0xae
	regPhaseCntrl  = 0xb8 // PHASECNTRL0(0), 3 registers per phase
)

// pdCntrl0 returns the address of the PDCNTRLn(pd) register.
func pdCntrl0(pd int) uint8 { return regPDCntrl + uint8(4*pd) }
func pdCntrl1(pd int) uint8 { return pdCntrl0(pd) + 1 }
func pdCntrl2(pd int) uint8 { return pdCntrl0(pd) + 2 }

// phaseCntrl0 returns the address of the PHASECNTRLn(phase) register.
func phaseCntrl0(phase int) uint8 { return regPhaseCntrl + uint8(3*phase) }
func phaseCntrl1(phase int) uint8 { return phaseCntrl0(phase) + 1 }
func phaseCntrl2(phase int) uint8 { return phaseCntrl0(phase) + 2 }

// CONTROL0 register bits.
const (
	ctrl0RegRead    = 1 << 0
	ctrl0TmCountRst = 1 << 1
	ctrl0SWReset    = 1 << 3
	ctrl0RWCont     = 1 << 4
	ctrl0FIFOEn     = 1 << 6
)

// PRPCOUNT register bits.
const (
	prpCountMask = 0xffff
	prpTimeren   = 1 << 23
)

// CONTROL1 register bits.
const (
	ctrl1OscDisable   = 1 << 9
	ctrl1IFSOffdac    = 0x7 << 10
	ctrl1EnAACMGbl    = 1 << 15
	ctrl1ILED2X       = 1 << 17
	ctrl1PDDisconnect = 1 << 23
)

// FIFO register bits.
const (
	fifoIntMuxDataRdy   = 0x00
	fifoIntMuxThrDetRdy = 0x10
	fifoIntMuxFIFORdy   = 0x20
)

// AACM register bits.
const (
	aacmImmRefresh = 1 << 0
	aacmQuickConv  = 1 << 1
)

// PHASE register bits.
const (
	phaseFilt1ResetEnz = 1 << 16
	phaseFilt2ResetEnz = 1 << 17
	phaseFilt3ResetEnz = 1 << 18
	phaseFilt4ResetEnz = 1 << 19
)

// PHASECNTRL0 register bits.
const (
	phLEDDrv1Tx1 = 1 << 0
	phLEDDrv1Tx2 = 1 << 1
	phLEDDrv1Tx3 = 1 << 2
	phLEDDrv1Tx4 = 1 << 3
	phLEDDrv2Tx1 = 1 << 8
	phLEDDrv2Tx2 = 1 << 9
	phLEDDrv2Tx3 = 1 << 10
	phLEDDrv2Tx4 = 1 << 11
	phPDOn1      = 1 << 16
	phPDOn2      = 1 << 17
	phPDOn3      = 1 << 18
	phPDOn4      = 1 << 19
)

// PHASECNTRL2 register bits.
const (
	phTWLEDMask   = 0xff
	phStaggerLED  = 1 << 12
	defaultTWLED  = 0x6
	defaultPRPCnt = 0x13ff
)

const (
	// TotalPhases is the number of time-multiplexed phases the device
	// can sequence.
	TotalPhases = 16

	// numPDs is the number of photodiode inputs.
	numPDs = 4

	// fifoLen is the number of full acquisition cycles expected in the
	// FIFO between two ready events.
	fifoLen = 10

	// maxFIFOSamples is the FIFO depth, in samples.
	maxFIFOSamples = 128
)
