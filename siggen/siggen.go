// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package siggen drives the signal generator of the c't Lab FPGA lab:
// four DDS generators, an output source selector, a pulse generator and
// a universal counter.
package siggen // import "github.com/go-lpc/ctlab/siggen"

import (
	"errors"
	"fmt"

	"github.com/go-lpc/ctlab/comm"
	"github.com/go-lpc/ctlab/fpga"
)

// FPGA registers of the signal generator.
const (
	outputSourceRegister  uint16 = 3
	counterStatusRegister uint16 = 4
	counterValueRegister  uint16 = 5
	counterConfigRegister uint16 = 12
	pauseRegister         uint16 = 14
	pulseRegister         uint16 = 15
)

// NumDDS is the number of DDS generators.
const NumDDS = 4

var ddsRegisters = [NumDDS]uint16{16, 20, 24, 28}

// ErrOutOfRange is returned for settings the hardware cannot represent.
var ErrOutOfRange = errors.New("siggen: value out of range")

// RangeError describes a rejected setting.
type RangeError struct {
	Field string
	Value float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("siggen: %s out of range (%g)", e.Field, e.Value)
}

func (e *RangeError) Is(target error) bool { return target == ErrOutOfRange }

// Generator is the signal generator of an FPGA board.
type Generator struct {
	dds     [NumDDS]*DDS
	outputs *OutputSelector
	pulse   *PulseGenerator
	counter *Counter
}

// New creates the signal generator setters and getters on conn.
// Counter readings are refreshed with the periodic query commands.
func New(conn *fpga.Conn) (*Generator, error) {
	var (
		gen Generator
		err error
	)

	setter := func(reg uint16) (fpga.ValueSetter, error) {
		set, err := conn.ValueSetter(reg, comm.Periodic)
		if err != nil {
			return nil, fmt.Errorf("siggen: could not create setter for register %d: %w", reg, err)
		}
		return set, nil
	}

	for i, base := range ddsRegisters {
		var regs [3]fpga.ValueSetter
		for j := range regs {
			regs[j], err = setter(base + uint16(j))
			if err != nil {
				return nil, err
			}
		}
		gen.dds[i] = NewDDS(regs[0], regs[1], regs[2])
	}

	out, err := setter(outputSourceRegister)
	if err != nil {
		return nil, err
	}
	gen.outputs = NewOutputSelector(out)

	pulse, err := setter(pulseRegister)
	if err != nil {
		return nil, err
	}
	pause, err := setter(pauseRegister)
	if err != nil {
		return nil, err
	}
	gen.pulse = NewPulseGenerator(pulse, pause)

	cfg, err := setter(counterConfigRegister)
	if err != nil {
		return nil, err
	}
	value, err := conn.ValueGetter(counterValueRegister, comm.Periodic)
	if err != nil {
		return nil, fmt.Errorf("siggen: could not create counter value getter: %w", err)
	}
	status, err := conn.ValueGetter(counterStatusRegister, comm.Periodic)
	if err != nil {
		return nil, fmt.Errorf("siggen: could not create counter status getter: %w", err)
	}
	gen.counter = NewCounter(cfg, value, status)

	return &gen, nil
}

// DDS returns the i-th DDS generator.
func (gen *Generator) DDS(i int) *DDS { return gen.dds[i] }

// Outputs returns the output source selector.
func (gen *Generator) Outputs() *OutputSelector { return gen.outputs }

// Pulse returns the pulse generator.
func (gen *Generator) Pulse() *PulseGenerator { return gen.pulse }

// Counter returns the universal counter.
func (gen *Generator) Counter() *Counter { return gen.counter }

// Reset applies the power-on configuration: silent sine waves without
// modulation, DDS 0 and 1 on the outputs and the counter measuring the
// frequency of DDS 0 with a 1s gate.
func (gen *Generator) Reset() error {
	err := gen.outputs.SetSources(SourceDDS0, SourceDDS1)
	if err != nil {
		return err
	}
	gen.pulse.SetPulse(0)
	gen.pulse.SetPause(0)

	for i, dds := range gen.dds {
		err := dds.SetFrequency(0)
		if err != nil {
			return err
		}
		dds.SetAmplitude(0)
		dds.SetPhase(0)
		dds.SetWaveform(Sine)
		src := Modulator(i)
		dds.SetAMSource(src)
		dds.SetFMSource(src)
		dds.SetPMSource(src)
		dds.SetSyncSource(src)
		err = dds.SetMaxFMRange(0)
		if err != nil {
			return err
		}
	}

	err = gen.counter.SetInput(SourceDDS0)
	if err != nil {
		return err
	}
	return gen.counter.SetPrescaler(GatePeriod1s)
}

// AMInfo returns the amplitude modulation figures of every DDS generator.
func (gen *Generator) AMInfo() [NumDDS]AMInfo {
	var infos [NumDDS]AMInfo
	for i, carrier := range gen.dds {
		infos[i] = amInfo(carrier, gen.modulator(i, carrier.AMSource()))
	}
	return infos
}

// FMInfo returns the frequency modulation figures of every DDS generator.
func (gen *Generator) FMInfo() [NumDDS]FMInfo {
	var infos [NumDDS]FMInfo
	for i, carrier := range gen.dds {
		infos[i] = fmInfo(carrier, gen.modulator(i, carrier.FMSource()))
	}
	return infos
}

// modulator returns the generator modulating carrier i, if any.
// A generator modulated by itself is unmodulated.
func (gen *Generator) modulator(i int, src Modulator) *DDS {
	if int(src) == i || int(src) >= NumDDS {
		return nil
	}
	return gen.dds[src]
}
