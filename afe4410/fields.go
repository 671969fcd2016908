// Copyright 2021 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package afe4410

import "github.com/go-daq/afe440x/regmap"

// fieldID names one logical bitfield of the AFE4410 register space.
// The zero id is reserved.
type fieldID int

const (
	_ fieldID = iota

	// Gains
	fTIAGainSep2LSB
	fTIACfSep2
	fTIAGainSep2MSB
	fTIAGainSep3LSB
	fTIACfSep3
	fTIAGainSep3MSB
	fTIAGainSepLSB
	fTIACfSep
	fTIAGainSepMSB
	fTIAGainLSB
	fTIACf
	fTIAGainMSB

	// LED current
	fILED1MSB
	fILED2MSB
	fILED3MSB
	fILED4MSB
	fILED1LSB
	fILED2LSB
	fILED3LSB
	fILED4LSB

	// Offset DAC
	fIOffdacLED3Mid
	fPolOffdacLED3
	fIOffdacLED1Mid
	fPolOffdacLED1
	fIOffdacAMB1Mid
	fPolOffdacAMB1
	fIOffdacLED2Mid
	fPolOffdacLED2
	fIOffdacLED3LSB
	fIOffdacLED3MSB
	fIOffdacLED1LSB
	fIOffdacLED1MSB
	fIOffdacAMB1LSB
	fIOffdacAMB1MSB
	fIOffdacLED2LSB
	fIOffdacLED2MSB
	fIOffdacLED3LSBExt
	fIOffdacLED1LSBExt
	fIOffdacAMB1LSBExt
	fIOffdacLED2LSBExt

	// FIFO and INT mux
	fFIFOPartition
	fIntMux1
	fRegFIFOPeriod
	fFIFOEarly
	fIntMux2
	fIntMux3

	fMaxFields
)

var fields = [fMaxFields]regmap.Field{
	// Gains
	fTIAGainSep2LSB: regmap.RegField(regTIAGainSep23, 0, 2),
	fTIACfSep2:      regmap.RegField(regTIAGainSep23, 3, 5),
	fTIAGainSep2MSB: regmap.RegField(regTIAGainSep23, 6, 6),
	fTIAGainSep3LSB: regmap.RegField(regTIAGainSep23, 8, 10),
	fTIACfSep3:      regmap.RegField(regTIAGainSep23, 11, 13),
	fTIAGainSep3MSB: regmap.RegField(regTIAGainSep23, 14, 14),
	fTIAGainSepLSB:  regmap.RegField(regTIAGainSep, 0, 2),
	fTIACfSep:       regmap.RegField(regTIAGainSep, 3, 5),
	fTIAGainSepMSB:  regmap.RegField(regTIAGainSep, 6, 6),
	fTIAGainLSB:     regmap.RegField(regTIAGain, 0, 2),
	fTIACf:          regmap.RegField(regTIAGain, 3, 5),
	fTIAGainMSB:     regmap.RegField(regTIAGain, 6, 6),
	// LED current
	fILED1MSB: regmap.RegField(regLEDCntrl, 0, 5),
	fILED2MSB: regmap.RegField(regLEDCntrl, 6, 11),
	fILED3MSB: regmap.RegField(regLEDCntrl, 12, 17),
	fILED4MSB: regmap.RegField(regLEDCntrl2, 11, 16),
	fILED1LSB: regmap.RegField(regLEDCntrl, 18, 19),
	fILED2LSB: regmap.RegField(regLEDCntrl, 20, 21),
	fILED3LSB: regmap.RegField(regLEDCntrl, 22, 23),
	fILED4LSB: regmap.RegField(regLEDCntrl2, 9, 10),
	// Offset DAC
	fIOffdacLED3Mid:    regmap.RegField(regOffDAC, 0, 3),
	fPolOffdacLED3:     regmap.RegField(regOffDAC, 4, 4),
	fIOffdacLED1Mid:    regmap.RegField(regOffDAC, 5, 8),
	fPolOffdacLED1:     regmap.RegField(regOffDAC, 9, 9),
	fIOffdacAMB1Mid:    regmap.RegField(regOffDAC, 10, 13),
	fPolOffdacAMB1:     regmap.RegField(regOffDAC, 14, 14),
	fIOffdacLED2Mid:    regmap.RegField(regOffDAC, 15, 18),
	fPolOffdacLED2:     regmap.RegField(regOffDAC, 19, 19),
	fIOffdacLED3LSB:    regmap.RegField(regOffDACLMSB, 0, 0),
	fIOffdacLED3MSB:    regmap.RegField(regOffDACLMSB, 1, 1),
	fIOffdacLED1LSB:    regmap.RegField(regOffDACLMSB, 2, 2),
	fIOffdacLED1MSB:    regmap.RegField(regOffDACLMSB, 3, 3),
	fIOffdacAMB1LSB:    regmap.RegField(regOffDACLMSB, 4, 4),
	fIOffdacAMB1MSB:    regmap.RegField(regOffDACLMSB, 5, 5),
	fIOffdacLED2LSB:    regmap.RegField(regOffDACLMSB, 6, 6),
	fIOffdacLED2MSB:    regmap.RegField(regOffDACLMSB, 7, 7),
	fIOffdacLED3LSBExt: regmap.RegField(regOffDACLMSB, 8, 8),
	fIOffdacLED1LSBExt: regmap.RegField(regOffDACLMSB, 9, 9),
	fIOffdacAMB1LSBExt: regmap.RegField(regOffDACLMSB, 10, 10),
	fIOffdacLED2LSBExt: regmap.RegField(regOffDACLMSB, 11, 11),
	// FIFO and INT mux
	fFIFOPartition: regmap.RegField(regFIFO, 0, 3),
	fIntMux1:       regmap.RegField(regFIFO, 4, 5),
	fRegFIFOPeriod: regmap.RegField(regFIFO, 6, 13),
	fFIFOEarly:     regmap.RegField(regFIFO, 14, 18),
	fIntMux2:       regmap.RegField(regFIFO, 20, 21),
	fIntMux3:       regmap.RegField(regFIFO, 22, 23),
}

// groupID names one logical multi-field value of the AFE4410.
type groupID int

const (
	// Gains
	gTIAGainSep2 groupID = iota
	gTIACfSep2
	gTIAGainSep3
	gTIACfSep3
	gTIAGainSep
	gTIACfSep
	gTIAGain
	gTIACf

	// LED current
	gILED1
	gILED2
	gILED3
	gILED4

	// Offset DAC
	gOffdacLED2
	gOffdacALED2
	gOffdacLED1
	gOffdacALED1

	gMaxGroups
)

// groups lists, least-significant field first, the fields making up each
// logical value. The order matches the bit layout of the device: it can not
// be derived from the field table and must not be reordered.
var groups = [gMaxGroups][]fieldID{
	// Gains
	gTIAGainSep2: {fTIAGainSep2LSB, fTIAGainSep2MSB},
	gTIACfSep2:   {fTIACfSep2},
	gTIAGainSep3: {fTIAGainSep3LSB, fTIAGainSep3MSB},
	gTIACfSep3:   {fTIACfSep3},
	gTIAGainSep:  {fTIAGainSepLSB, fTIAGainSepMSB},
	gTIACfSep:    {fTIACfSep},
	gTIAGain:     {fTIAGainLSB, fTIAGainMSB},
	gTIACf:       {fTIACf},
	// LED current
	gILED1: {fILED1LSB, fILED1MSB},
	gILED2: {fILED2LSB, fILED2MSB},
	gILED3: {fILED3LSB, fILED3MSB},
	gILED4: {fILED4LSB, fILED4MSB},
	// Offset DAC
	gOffdacLED2: {
		fIOffdacLED2LSBExt,
		fIOffdacLED2LSB,
		fIOffdacLED2Mid,
		fIOffdacLED2MSB,
	},
	gOffdacALED2: {
		fIOffdacLED3LSBExt,
		fIOffdacLED3LSB,
		fIOffdacLED3Mid,
		fIOffdacLED3MSB,
	},
	gOffdacLED1: {
		fIOffdacLED1LSBExt,
		fIOffdacLED1LSB,
		fIOffdacLED1Mid,
		fIOffdacLED1MSB,
	},
	gOffdacALED1: {
		fIOffdacAMB1LSBExt,
		fIOffdacAMB1LSB,
		fIOffdacAMB1Mid,
		fIOffdacAMB1MSB,
	},
}

// group resolves a group id to its field descriptors.
func group(id groupID) []regmap.Field {
	ids := groups[id]
	fs := make([]regmap.Field, len(ids))
	for i, fid := range ids {
		fs[i] = fields[fid]
	}
	return fs
}
