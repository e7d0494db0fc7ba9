// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package siggen

import (
	"fmt"

	"github.com/go-lpc/ctlab/fpga"
)

// Source is a signal source of an output or of the universal counter.
type Source uint8

const (
	SourceDDS0 Source = iota
	SourceDDS1
	SourceDDS2
	SourceDDS3
	SourcePulse
	SourceExternal // universal counter only
)

func (src Source) String() string {
	switch src {
	case SourceDDS0, SourceDDS1, SourceDDS2, SourceDDS3:
		return fmt.Sprintf("dds%d", uint8(src))
	case SourcePulse:
		return "pulse"
	case SourceExternal:
		return "external"
	default:
		return fmt.Sprintf("Source(%d)", uint8(src))
	}
}

// OutputSelector routes signal sources to the two outputs.
type OutputSelector struct {
	set  fpga.ValueSetter
	srcs [2]Source
}

func NewOutputSelector(set fpga.ValueSetter) *OutputSelector {
	return &OutputSelector{set: set}
}

// Sources returns the sources of output 0 and output 1.
func (sel *OutputSelector) Sources() (src0, src1 Source) {
	return sel.srcs[0], sel.srcs[1]
}

// SetSources routes src0 to output 0 and src1 to output 1.
func (sel *OutputSelector) SetSources(src0, src1 Source) error {
	for _, src := range []Source{src0, src1} {
		if src > SourcePulse {
			return &RangeError{Field: "output source", Value: float64(src)}
		}
	}
	sel.srcs = [2]Source{src0, src1}
	sel.set.SetUint32(uint32(src1)<<4 | uint32(src0))
	return nil
}

// PulseGenerator generates rectangular pulses. Durations are in FPGA
// clock periods.
type PulseGenerator struct {
	pulse fpga.ValueSetter
	pause fpga.ValueSetter

	npulse uint32
	npause uint32
}

func NewPulseGenerator(pulse, pause fpga.ValueSetter) *PulseGenerator {
	return &PulseGenerator{pulse: pulse, pause: pause}
}

func (pg *PulseGenerator) Pulse() uint32 { return pg.npulse }
func (pg *PulseGenerator) Pause() uint32 { return pg.npause }

func (pg *PulseGenerator) SetPulse(v uint32) {
	pg.npulse = v
	pg.pulse.SetUint32(v)
}

func (pg *PulseGenerator) SetPause(v uint32) {
	pg.npause = v
	pg.pause.SetUint32(v)
}
