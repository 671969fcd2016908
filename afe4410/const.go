// Copyright 2021 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package afe4410

// AFE440X common registers.
const (
	regControl0     = 0x00
	regLED2STC      = 0x01
	regLED2ENDC     = 0x02
	regLED1LEDSTC   = 0x03
	regLED1LEDENDC  = 0x04
	regALED2STC     = 0x05
	regALED2ENDC    = 0x06
	regLED1STC      = 0x07
	regLED1ENDC     = 0x08
	regLED2LEDSTC   = 0x09
	regLED2LEDENDC  = 0x0a
	regALED1STC     = 0x0b
	regALED1ENDC    = 0x0c
	regLED2ConvST   = 0x0d
	regLED2ConvEND  = 0x0e
	regALED2ConvST  = 0x0f
	regALED2ConvEND = 0x10
	regLED1ConvST   = 0x11
	regLED1ConvEND  = 0x12
	regALED1ConvST  = 0x13
	regALED1ConvEND = 0x14
	regPRPCount     = 0x1d
	regControl1     = 0x1e
	regLEDCntrl     = 0x22
	regControl2     = 0x23
	regLED2Val      = 0x2a
	regALED2Val     = 0x2b
	regLED1Val      = 0x2c
	regALED1Val     = 0x2d
	regLED2ALED2Val = 0x2e
	regLED1ALED1Val = 0x2f
)

// AFE4410 registers.
const (
	regTIAGainSep23  = 0x1f
	regTIAGainSep    = 0x20
	regTIAGain       = 0x21
	regLEDCntrl2     = 0x24
	regDesignID      = 0x28
	regProgInt2STC   = 0x34
	regProgInt2ENDC  = 0x35
	regLED3LEDSTC    = 0x36
	regLED3LEDENDC   = 0x37
	regClkDivPRF     = 0x39
	regOffDAC        = 0x3a
	regThrDetLow     = 0x3b
	regThrDetHigh    = 0x3c
	regDec           = 0x3d
	regOffDACLMSB    = 0x3e
	regAvgLED2ALED2  = 0x3f
	regAvgLED1ALED1  = 0x40
	regFIFO          = 0x42
	regLED4LEDSTC    = 0x43
	regLED4LEDENDC   = 0x44
	regTGPD1STC      = 0x45
	regTGPD1ENDC     = 0x46
	regTGPD2STC      = 0x47
	regTGPD2ENDC     = 0x48
	regDataRdySTC    = 0x52
	regDataRdyENDC   = 0x53
	regProgInt1STC   = 0x57
	regProgInt1ENDC  = 0x58
	regDynTIASTC     = 0x64
	regDynTIAENDC    = 0x65
	regDynADCSTC     = 0x66
	regDynADCENDC    = 0x67
	regDynClkSTC     = 0x68
	regDynClkENDC    = 0x69
	regDeepSleepSTC  = 0x6a
	regDeepSleepENDC = 0x6b
)

// CONTROL0 register bits.
const (
	ctrl0SWReset   = 1 << 3
	ctrl0RWCont    = 1 << 4
	ctrl0EnableULP = 1 << 5
	ctrl0FIFOEn    = 1 << 6
)

// CONTROL1 register bits.
const (
	ctrl1Timeren = 1 << 8
)

// TIA_GAIN_SEP register bits.
const (
	tiaEnSepGain = 1 << 15
)

// CONTROL2 register bits.
const (
	ctrl2PDNAFE     = 1 << 0
	ctrl2DynADC     = 1 << 3
	ctrl2DynTIA     = 1 << 4
	ctrl2OscEnable  = 1 << 9
	ctrl2DynBias    = 1 << 14
	ctrl2EnSepGain4 = 1 << 15
	ctrl2DynTx0     = 1 << 20
)

const (
	// fifoLen is the number of full sample cycles buffered in the FIFO
	// between two data-ready events.
	fifoLen = 10
)
