// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package siggen

import (
	"fmt"
	"math"

	"github.com/go-lpc/ctlab/fpga"
)

const (
	// MaxFrequency is the DDS clock frequency, in Hz.
	MaxFrequency = 50e6

	// MaxAmplitude is the highest DDS amplitude.
	MaxAmplitude = math.MaxInt16

	// MaxFMRange is the highest frequency modulation range.
	MaxFMRange = 5

	phaseScale = 1 << 31
)

// Waveform is a DDS signal shape.
type Waveform uint8

const (
	Rectangle Waveform = iota
	Sawtooth
	Sine
)

func (w Waveform) String() string {
	switch w {
	case Rectangle:
		return "rectangle"
	case Sawtooth:
		return "sawtooth"
	case Sine:
		return "sine"
	default:
		return fmt.Sprintf("Waveform(%d)", uint8(w))
	}
}

// Modulator selects the DDS generator used as modulation or
// synchronization source.
type Modulator uint8

const (
	ModulatorDDS0 Modulator = iota
	ModulatorDDS1
	ModulatorDDS2
	ModulatorDDS3
)

// DDS is a direct digital synthesis generator.
//
// Each setting change updates the matching register value; values are
// sent with the next flush of the modified setters.
type DDS struct {
	waveform fpga.ValueSetter
	inc      fpga.ValueSetter
	ampPhase fpga.ValueSetter

	wave    Waveform
	fmRange uint8
	sync    Modulator
	pm      Modulator
	fm      Modulator
	am      Modulator

	phaseInc uint32
	amp      int16
	phase    int16
}

// NewDDS creates a DDS generator from its waveform, phase increment and
// amplitude/phase registers.
func NewDDS(waveform, inc, ampPhase fpga.ValueSetter) *DDS {
	return &DDS{
		waveform: waveform,
		inc:      inc,
		ampPhase: ampPhase,
	}
}

func (dds *DDS) Waveform() Waveform     { return dds.wave }
func (dds *DDS) MaxFMRange() uint8      { return dds.fmRange }
func (dds *DDS) SyncSource() Modulator  { return dds.sync }
func (dds *DDS) PMSource() Modulator    { return dds.pm }
func (dds *DDS) FMSource() Modulator    { return dds.fm }
func (dds *DDS) AMSource() Modulator    { return dds.am }
func (dds *DDS) PhaseIncrement() uint32 { return dds.phaseInc }
func (dds *DDS) Amplitude() int16       { return dds.amp }
func (dds *DDS) Phase() int16           { return dds.phase }

func (dds *DDS) SetWaveform(w Waveform) {
	dds.wave = w
	dds.writeWaveform()
}

// SetMaxFMRange sets the frequency modulation range, from 0 to MaxFMRange.
func (dds *DDS) SetMaxFMRange(r uint8) error {
	if r > MaxFMRange {
		return &RangeError{Field: "frequency modulation range", Value: float64(r)}
	}
	dds.fmRange = r
	dds.writeWaveform()
	return nil
}

// SetSyncSource sets the synchronization source. A generator
// synchronized to itself runs free.
func (dds *DDS) SetSyncSource(src Modulator) {
	dds.sync = src
	dds.writeWaveform()
}

// SetPMSource sets the phase modulation source. A generator modulated
// by itself is unmodulated. Likewise for SetFMSource and SetAMSource.
func (dds *DDS) SetPMSource(src Modulator) {
	dds.pm = src
	dds.writeWaveform()
}

func (dds *DDS) SetFMSource(src Modulator) {
	dds.fm = src
	dds.writeWaveform()
}

func (dds *DDS) SetAMSource(src Modulator) {
	dds.am = src
	dds.writeWaveform()
}

func (dds *DDS) writeWaveform() {
	dds.waveform.SetUint32(uint32(dds.wave)<<16 |
		uint32(dds.fmRange)<<8 |
		uint32(dds.sync&0x3)<<6 |
		uint32(dds.pm&0x3)<<4 |
		uint32(dds.fm&0x3)<<2 |
		uint32(dds.am&0x3),
	)
}

func (dds *DDS) SetPhaseIncrement(v uint32) {
	dds.phaseInc = v
	dds.inc.SetUint32(v)
}

// Frequency returns the output frequency, in Hz.
func (dds *DDS) Frequency() float64 {
	return float64(dds.phaseInc) / phaseScale * MaxFrequency
}

// SetFrequency sets the output frequency, in Hz.
func (dds *DDS) SetFrequency(hz float64) error {
	inc := hz / MaxFrequency * phaseScale
	if inc < 0 || inc > math.MaxUint32 || math.IsNaN(inc) {
		return &RangeError{Field: "frequency", Value: hz}
	}
	dds.SetPhaseIncrement(uint32(inc))
	return nil
}

// MaxFMDepth returns the largest frequency deviation of the current
// modulation range, in Hz.
func (dds *DDS) MaxFMDepth() float64 {
	return MaxFrequency / 2 / math.Pow(8, float64(MaxFMRange-dds.fmRange))
}

func (dds *DDS) SetAmplitude(v int16) {
	dds.amp = v
	dds.writeAmplitudePhase()
}

func (dds *DDS) SetPhase(v int16) {
	dds.phase = v
	dds.writeAmplitudePhase()
}

// writeAmplitudePhase packs amplitude and phase as two 16-bit two's
// complement halves.
func (dds *DDS) writeAmplitudePhase() {
	dds.ampPhase.SetUint32(uint32(uint16(dds.amp))<<16 | uint32(uint16(dds.phase)))
}
