// Copyright 2021 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package afe4420

import "github.com/go-daq/afe440x/regmap"

// Global fields.
var (
	fIFSOffdac         = regmap.RegField(regControl1, 10, 12)
	fPDDisconnect      = regmap.RegField(regControl1, 23, 23)
	fWMFIFO            = regmap.RegField(regFIFO, 6, 13)
	fNumPhase          = regmap.RegField(regPhase, 0, 3)
	fChannelOffsetAACM = regmap.RegField(regAACM, 8, 20)
)

// LED drive current fields, one per transmitter.
var fILEDTx = [4]regmap.Field{
	regmap.RegField(regLEDCntrl1, 0, 7),
	regmap.RegField(regLEDCntrl1, 12, 19),
	regmap.RegField(regLEDCntrl2, 0, 7),
	regmap.RegField(regLEDCntrl2, 12, 19),
}

// Per-phase fields, in PHASECNTRL1(phase).
func fNumAv(phase int) regmap.Field     { return regmap.RegField(phaseCntrl1(phase), 0, 3) }
func fTIAGainRf(phase int) regmap.Field { return regmap.RegField(phaseCntrl1(phase), 4, 7) }
func fTIAGainCf(phase int) regmap.Field { return regmap.RegField(phaseCntrl1(phase), 10, 12) }
func fIOffdac(phase int) regmap.Field   { return regmap.RegField(phaseCntrl1(phase), 16, 22) }
func fPolOffdac(phase int) regmap.Field { return regmap.RegField(phaseCntrl1(phase), 23, 23) }

// Per-photodiode fields.
func fEnAACM(pd int) regmap.Field            { return regmap.RegField(pdCntrl0(pd), 0, 0) }
func fNumPhaseAACM(pd int) regmap.Field      { return regmap.RegField(pdCntrl0(pd), 4, 7) }
func fFreezeAACM(pd int) regmap.Field        { return regmap.RegField(pdCntrl0(pd), 10, 10) }
func fIOffdacBase(pd int) regmap.Field       { return regmap.RegField(pdCntrl0(pd), 16, 22) }
func fPolOffdacBase(pd int) regmap.Field     { return regmap.RegField(pdCntrl0(pd), 23, 23) }
func fCalibAACM(pd int) regmap.Field         { return regmap.RegField(pdCntrl1(pd), 0, 11) }
func fIOffdacAACMRead(pd int) regmap.Field   { return regmap.RegField(pdCntrl2(pd), 1, 7) }
func fPolOffdacAACMRead(pd int) regmap.Field { return regmap.RegField(pdCntrl2(pd), 8, 8) }
