// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package siggen

import (
	"errors"
	"io"
	"math"
	"reflect"
	"sort"
	"testing"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/ctlab/comm"
	"github.com/go-lpc/ctlab/device"
	"github.com/go-lpc/ctlab/proto"
	"github.com/go-lpc/ctlab/transport"
)

type fakeSetter struct {
	v uint32
	n int
}

func (s *fakeSetter) SetUint32(v uint32) {
	s.v = v
	s.n++
}

type fakeGetter struct {
	v    uint32
	err  error
	subs []func(uint32)
}

func (g *fakeGetter) Uint32() (uint32, error) { return g.v, g.err }

func (g *fakeGetter) Subscribe(fn func(uint32)) func() {
	g.subs = append(g.subs, fn)
	return func() {}
}

func (g *fakeGetter) update(v uint32) {
	g.v = v
	for _, fn := range g.subs {
		fn(v)
	}
}

func TestDDSWaveform(t *testing.T) {
	for _, tc := range []struct {
		name  string
		apply func(dds *DDS) error
		want  uint32
	}{
		{
			name:  "sine",
			apply: func(dds *DDS) error { dds.SetWaveform(Sine); return nil },
			want:  0x00020000,
		},
		{
			name:  "fm-range",
			apply: func(dds *DDS) error { return dds.SetMaxFMRange(5) },
			want:  0x00000500,
		},
		{
			name: "sources",
			apply: func(dds *DDS) error {
				dds.SetSyncSource(ModulatorDDS3)
				dds.SetPMSource(ModulatorDDS2)
				dds.SetFMSource(ModulatorDDS1)
				dds.SetAMSource(ModulatorDDS0)
				return nil
			},
			want: 3<<6 | 2<<4 | 1<<2,
		},
		{
			name: "all",
			apply: func(dds *DDS) error {
				dds.SetWaveform(Sawtooth)
				dds.SetAMSource(ModulatorDDS3)
				return dds.SetMaxFMRange(2)
			},
			want: 1<<16 | 2<<8 | 3,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var wave, inc, amp fakeSetter
			dds := NewDDS(&wave, &inc, &amp)
			if err := tc.apply(dds); err != nil {
				t.Fatalf("could not configure generator: %+v", err)
			}
			if got, want := wave.v, tc.want; got != want {
				t.Fatalf("invalid waveform register: got=0x%08x, want=0x%08x", got, want)
			}
			if inc.n != 0 || amp.n != 0 {
				t.Fatalf("unexpected writes: inc=%d, amp=%d", inc.n, amp.n)
			}
		})
	}
}

func TestDDSFMRange(t *testing.T) {
	var wave, inc, amp fakeSetter
	dds := NewDDS(&wave, &inc, &amp)

	err := dds.SetMaxFMRange(6)
	if !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("invalid error: got=%v, want=%v", err, ErrOutOfRange)
	}
	if got, want := err.Error(), "siggen: frequency modulation range out of range (6)"; got != want {
		t.Fatalf("invalid error message: got=%q, want=%q", got, want)
	}
	if wave.n != 0 {
		t.Fatalf("rejected range was written")
	}

	for _, tc := range []struct {
		r    uint8
		want float64
	}{
		{5, 25e6},
		{4, 25e6 / 8},
		{0, 25e6 / 32768},
	} {
		if err := dds.SetMaxFMRange(tc.r); err != nil {
			t.Fatalf("could not set range %d: %+v", tc.r, err)
		}
		if got := dds.MaxFMDepth(); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("invalid FM depth for range %d: got=%v, want=%v", tc.r, got, tc.want)
		}
	}
}

func TestDDSFrequency(t *testing.T) {
	var wave, inc, amp fakeSetter
	dds := NewDDS(&wave, &inc, &amp)

	if err := dds.SetFrequency(1e6); err != nil {
		t.Fatalf("could not set frequency: %+v", err)
	}
	if got, want := inc.v, uint32(42949672); got != want {
		t.Fatalf("invalid phase increment: got=%d, want=%d", got, want)
	}
	if got := dds.Frequency(); math.Abs(got-1e6) > 0.1 {
		t.Fatalf("invalid frequency: got=%v", got)
	}

	dds.SetPhaseIncrement(1 << 31)
	if got, want := dds.Frequency(), MaxFrequency; got != want {
		t.Fatalf("invalid frequency: got=%v, want=%v", got, want)
	}

	for _, hz := range []float64{-1, 200e6, math.NaN()} {
		err := dds.SetFrequency(hz)
		if !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("invalid error for %v: got=%v, want=%v", hz, err, ErrOutOfRange)
		}
	}
	if got, want := inc.v, uint32(1<<31); got != want {
		t.Fatalf("rejected frequency was written: got=%d, want=%d", got, want)
	}
}

func TestDDSAmplitudePhase(t *testing.T) {
	var wave, inc, amp fakeSetter
	dds := NewDDS(&wave, &inc, &amp)

	dds.SetAmplitude(-1)
	dds.SetPhase(2)
	if got, want := amp.v, uint32(0xffff0002); got != want {
		t.Fatalf("invalid amplitude/phase: got=0x%08x, want=0x%08x", got, want)
	}

	dds.SetAmplitude(0x1234)
	dds.SetPhase(-0x8000)
	if got, want := amp.v, uint32(0x12348000); got != want {
		t.Fatalf("invalid amplitude/phase: got=0x%08x, want=0x%08x", got, want)
	}
}

func TestOutputs(t *testing.T) {
	var set fakeSetter
	sel := NewOutputSelector(&set)

	if err := sel.SetSources(SourcePulse, SourceDDS2); err != nil {
		t.Fatalf("could not set sources: %+v", err)
	}
	if got, want := set.v, uint32(0x24); got != want {
		t.Fatalf("invalid output register: got=0x%x, want=0x%x", got, want)
	}
	if src0, src1 := sel.Sources(); src0 != SourcePulse || src1 != SourceDDS2 {
		t.Fatalf("invalid sources: %v, %v", src0, src1)
	}

	err := sel.SetSources(SourceDDS0, SourceExternal)
	if !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("invalid error: got=%v, want=%v", err, ErrOutOfRange)
	}

	var pulse, pause fakeSetter
	pg := NewPulseGenerator(&pulse, &pause)
	pg.SetPulse(10)
	pg.SetPause(20)
	if pulse.v != 10 || pause.v != 20 || pg.Pulse() != 10 || pg.Pause() != 20 {
		t.Fatalf("invalid pulse/pause: %d/%d", pulse.v, pause.v)
	}
}

func TestCounter(t *testing.T) {
	var (
		cfg    fakeSetter
		value  fakeGetter
		status fakeGetter
	)
	c := NewCounter(&cfg, &value, &status)

	if err := c.SetInput(SourceExternal); err != nil {
		t.Fatalf("could not set input: %+v", err)
	}
	if err := c.SetPrescaler(CounterClock1MHz); err != nil {
		t.Fatalf("could not set prescaler: %+v", err)
	}
	if got, want := cfg.v, uint32(0x514); got != want {
		t.Fatalf("invalid config register: got=0x%x, want=0x%x", got, want)
	}
	if got, want := c.Measurement(), Period; got != want {
		t.Fatalf("invalid measurement: got=%v, want=%v", got, want)
	}

	if err := c.SetPrescaler(Prescaler(7)); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("invalid error: got=%v, want=%v", err, ErrOutOfRange)
	}
	if err := c.SetInput(Source(6)); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("invalid error: got=%v, want=%v", err, ErrOutOfRange)
	}

	var got []float64
	c.OnValue(func(v float64) { got = append(got, v) })
	value.update(1234)

	v, err := c.Value()
	if err != nil {
		t.Fatalf("could not read value: %+v", err)
	}
	if want := 1234e-6; math.Abs(v-want) > 1e-12 {
		t.Fatalf("invalid value: got=%v, want=%v", v, want)
	}
	if len(got) != 1 || got[0] != v {
		t.Fatalf("invalid notified values: %v", got)
	}

	var active []bool
	c.OnInputActive(func(v bool) { active = append(active, v) })
	status.update(0x3)
	if ok, err := c.InputActive(); err != nil || !ok {
		t.Fatalf("invalid input status: %v, %v", ok, err)
	}
	if ok, err := c.Overflow(); err != nil || !ok {
		t.Fatalf("invalid overflow status: %v, %v", ok, err)
	}
	status.update(0x0)
	if len(active) != 2 || !active[0] || active[1] {
		t.Fatalf("invalid notified status: %v", active)
	}

	value.err = io.ErrUnexpectedEOF
	if _, err := c.Value(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("invalid error: got=%v, want=%v", err, io.ErrUnexpectedEOF)
	}
}

func TestPrescaler(t *testing.T) {
	for _, tc := range []struct {
		p    Prescaler
		exp  int
		mode Measurement
	}{
		{GatePeriod100ms, 1, Frequency},
		{GatePeriod1s, 0, Frequency},
		{GatePeriod10s, -1, Frequency},
		{CounterClock10kHz, -4, Period},
		{CounterClock100kHz, -5, Period},
		{CounterClock1MHz, -6, Period},
		{CounterClock10MHz, -7, Period},
	} {
		t.Run(tc.p.String(), func(t *testing.T) {
			exp, err := tc.p.Exponent()
			if err != nil {
				t.Fatalf("could not get exponent: %+v", err)
			}
			if exp != tc.exp {
				t.Fatalf("invalid exponent: got=%d, want=%d", exp, tc.exp)
			}
			if got, want := tc.p.Measurement(), tc.mode; got != want {
				t.Fatalf("invalid measurement: got=%v, want=%v", got, want)
			}
		})
	}

	if _, err := Prescaler(42).Exponent(); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("invalid error: got=%v, want=%v", err, ErrOutOfRange)
	}
}

func TestModulationInfo(t *testing.T) {
	var (
		gen Generator
		s   [NumDDS][3]fakeSetter
	)
	for i := range gen.dds {
		gen.dds[i] = NewDDS(&s[i][0], &s[i][1], &s[i][2])
		src := Modulator(i)
		gen.dds[i].SetAMSource(src)
		gen.dds[i].SetFMSource(src)
	}

	// unmodulated carriers.
	for i, info := range gen.AMInfo() {
		if info != (AMInfo{}) {
			t.Fatalf("dds%d: unexpected AM info: %+v", i, info)
		}
	}

	carrier, mod := gen.dds[0], gen.dds[1]
	carrier.SetAmplitude(10000)
	mod.SetAmplitude(5000)
	carrier.SetAMSource(ModulatorDDS1)

	am := gen.AMInfo()[0]
	if got, want := am.RelativeDepth, 0.5; got != want {
		t.Fatalf("invalid AM depth: got=%v, want=%v", got, want)
	}
	if am.Overmodulated() {
		t.Fatalf("unexpected overmodulation")
	}

	carrier.SetAmplitude(30000)
	am = gen.AMInfo()[0]
	if got, want := am.RelativeDepth, 5000.0/float64(MaxAmplitude-30000); got != want {
		t.Fatalf("invalid AM depth: got=%v, want=%v", got, want)
	}
	if !am.Overmodulated() {
		t.Fatalf("expected overmodulation")
	}

	if err := carrier.SetFrequency(1e6); err != nil {
		t.Fatal(err)
	}
	if err := carrier.SetMaxFMRange(5); err != nil {
		t.Fatal(err)
	}
	mod.SetAmplitude(MaxAmplitude)
	carrier.SetFMSource(ModulatorDDS1)

	fm := gen.FMInfo()[0]
	if got, want := fm.Depth, 25e6; got != want {
		t.Fatalf("invalid FM depth: got=%v, want=%v", got, want)
	}
	if want := 25e6 / carrier.Frequency(); math.Abs(fm.RelativeDepth-want) > 1e-9 {
		t.Fatalf("invalid relative FM depth: got=%v, want=%v", fm.RelativeDepth, want)
	}
	if !fm.Overmodulated() {
		t.Fatalf("expected overmodulation")
	}
	if got := gen.FMInfo()[1]; got != (FMInfo{}) {
		t.Fatalf("unexpected FM info: %+v", got)
	}
}

func TestGenerator(t *testing.T) {
	msg := log.NewMsgStream("siggen", log.LvlError, io.Discard)
	link := transport.NewDummy(msg)
	app := device.NewCtLab(link, device.WithMsgStream(msg), device.WithBuilder(proto.NewBuilder()))
	defer app.Close()

	conn, err := app.Fpga(7)
	if err != nil {
		t.Fatalf("could not open board: %+v", err)
	}

	gen, err := New(conn)
	if err != nil {
		t.Fatalf("could not create signal generator: %+v", err)
	}

	err = gen.Reset()
	if err != nil {
		t.Fatalf("could not reset signal generator: %+v", err)
	}

	err = app.SendSetCommandsForModifiedValues()
	if err != nil {
		t.Fatalf("could not send set commands: %+v", err)
	}

	sent := link.Sent()
	sort.Strings(sent)
	for _, want := range []string{
		"7:3=16",
		"7:12=0",
		"7:14=0",
		"7:15=0",
		"7:16=131072",
		"7:17=0",
		"7:18=0",
		"7:20=131157",
		"7:24=131242",
		"7:28=131327",
	} {
		i := sort.SearchStrings(sent, want)
		if i >= len(sent) || sent[i] != want {
			t.Fatalf("missing command %q in %q", want, sent)
		}
	}
	if got, want := len(sent), 3*NumDDS+4; got != want {
		t.Fatalf("invalid number of commands: got=%d, want=%d", got, want)
	}

	err = app.SendQueryCommands(comm.AnyMode)
	if err != nil {
		t.Fatalf("could not send queries: %+v", err)
	}
	if got, want := link.Sent(), []string{"7:5?", "7:4?"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid queries: got=%q, want=%q", got, want)
	}

	link.Inject("#7:5=50000\r\n#7:4=1\r\n")
	v, err := gen.Counter().Value()
	if err != nil {
		t.Fatalf("could not read counter: %+v", err)
	}
	if v != 50000 {
		t.Fatalf("invalid counter value: got=%v, want=%v", v, 50000)
	}
	if ok, _ := gen.Counter().InputActive(); !ok {
		t.Fatalf("counter input should be active")
	}
}
