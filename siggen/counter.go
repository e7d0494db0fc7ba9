// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package siggen

import (
	"fmt"
	"math"

	"github.com/go-lpc/ctlab/fpga"
)

// Measurement is the universal counter measurement mode.
type Measurement uint8

const (
	Frequency Measurement = iota
	Period
)

func (m Measurement) String() string {
	switch m {
	case Frequency:
		return "frequency"
	case Period:
		return "period"
	default:
		return fmt.Sprintf("Measurement(%d)", uint8(m))
	}
}

// Prescaler selects the gate period of frequency measurements or the
// counter clock of period measurements.
type Prescaler uint8

const (
	GatePeriod1s Prescaler = iota
	GatePeriod10s
	GatePeriod100ms
	CounterClock10MHz
	CounterClock1MHz
	CounterClock100kHz
	CounterClock10kHz
)

var prescalers = [...]struct {
	name string
	exp  int // exponent of the least significant digit
	mode Measurement
}{
	GatePeriod1s:       {"gate-1s", 0, Frequency},
	GatePeriod10s:      {"gate-10s", -1, Frequency},
	GatePeriod100ms:    {"gate-100ms", 1, Frequency},
	CounterClock10MHz:  {"clock-10MHz", -7, Period},
	CounterClock1MHz:   {"clock-1MHz", -6, Period},
	CounterClock100kHz: {"clock-100kHz", -5, Period},
	CounterClock10kHz:  {"clock-10kHz", -4, Period},
}

func (p Prescaler) valid() bool { return int(p) < len(prescalers) }

func (p Prescaler) String() string {
	if !p.valid() {
		return fmt.Sprintf("Prescaler(%d)", uint8(p))
	}
	return prescalers[p].name
}

// Measurement returns the measurement mode implied by p.
func (p Prescaler) Measurement() Measurement {
	if !p.valid() {
		return Period
	}
	return prescalers[p].mode
}

// Exponent returns the decimal exponent of one raw counter unit: Hz for
// frequency measurements, s for period measurements.
func (p Prescaler) Exponent() (int, error) {
	if !p.valid() {
		return 0, &RangeError{Field: "prescaler", Value: float64(p)}
	}
	return prescalers[p].exp, nil
}

// Counter is the universal counter.
type Counter struct {
	cfg    fpga.ValueSetter
	value  fpga.ValueGetter
	status fpga.ValueGetter

	input     Source
	prescaler Prescaler
}

// NewCounter creates a universal counter from its configuration setter
// and its value and status getters.
func NewCounter(cfg fpga.ValueSetter, value, status fpga.ValueGetter) *Counter {
	return &Counter{cfg: cfg, value: value, status: status}
}

func (c *Counter) Input() Source            { return c.input }
func (c *Counter) Prescaler() Prescaler     { return c.prescaler }
func (c *Counter) Measurement() Measurement { return c.prescaler.Measurement() }

func (c *Counter) SetInput(src Source) error {
	if src > SourceExternal {
		return &RangeError{Field: "counter input", Value: float64(src)}
	}
	c.input = src
	c.write()
	return nil
}

// SetPrescaler sets the prescaler and the matching measurement mode.
func (c *Counter) SetPrescaler(p Prescaler) error {
	if !p.valid() {
		return &RangeError{Field: "prescaler", Value: float64(p)}
	}
	c.prescaler = p
	c.write()
	return nil
}

func (c *Counter) write() {
	c.cfg.SetUint32(uint32(c.input)<<8 |
		uint32(c.prescaler.Measurement())<<4 |
		uint32(c.prescaler),
	)
}

// Value returns the last measured frequency (Hz) or period (s).
func (c *Counter) Value() (float64, error) {
	raw, err := c.value.Uint32()
	if err != nil {
		return 0, fmt.Errorf("siggen: could not read counter value: %w", err)
	}
	return c.scale(raw)
}

func (c *Counter) scale(raw uint32) (float64, error) {
	exp, err := c.prescaler.Exponent()
	if err != nil {
		return 0, err
	}
	return float64(raw) * math.Pow10(exp), nil
}

// Overflow reports whether the last measurement overflowed.
func (c *Counter) Overflow() (bool, error) {
	st, err := c.status.Uint32()
	if err != nil {
		return false, fmt.Errorf("siggen: could not read counter status: %w", err)
	}
	return st&0x2 != 0, nil
}

// InputActive reports whether a signal is present on the counter input.
func (c *Counter) InputActive() (bool, error) {
	st, err := c.status.Uint32()
	if err != nil {
		return false, fmt.Errorf("siggen: could not read counter status: %w", err)
	}
	return st&0x1 != 0, nil
}

// OnValue calls fn with every new measurement.
func (c *Counter) OnValue(fn func(v float64)) (cancel func()) {
	return c.value.Subscribe(func(raw uint32) {
		v, err := c.scale(raw)
		if err != nil {
			return
		}
		fn(v)
	})
}

// OnInputActive calls fn whenever the counter status changes.
func (c *Counter) OnInputActive(fn func(active bool)) (cancel func()) {
	return c.status.Subscribe(func(st uint32) {
		fn(st&0x1 != 0)
	})
}
