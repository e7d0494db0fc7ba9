// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scope

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/ctlab/comm"
	"github.com/go-lpc/ctlab/fpga"
)

var (
	// ErrTimeout is returned when the storage does not reach an awaited
	// state within the configured poll budget.
	ErrTimeout = errors.New("scope: timeout")

	// ErrAddressRange is returned for addresses beyond MaxAddress.
	ErrAddressRange = errors.New("scope: address out of range")
)

// TimeoutError describes a state the storage never reached.
type TimeoutError struct {
	Want    string        // awaited condition
	Last    State         // last observed state
	Polls   int           // number of queries issued
	Elapsed time.Duration // time spent polling
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("scope: timeout waiting for %s (last state: %v, polls: %d, elapsed: %v)",
		e.Want, e.Last, e.Polls, e.Elapsed,
	)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// Option configures a StorageController.
type Option func(*config)

type config struct {
	msg       log.MsgStream
	handshake bool
	delay     time.Duration
	optimize  bool
	timeout   time.Duration
	maxPolls  int
	refresh   func(comm.SendMode) bool
}

func newConfig(opts []Option) config {
	cfg := config{
		msg:       log.NewMsgStream("scope", log.LvlInfo, os.Stdout),
		handshake: true,
		refresh:   comm.Only(comm.OnDemand),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithMsgStream sets the message stream of the controller.
func WithMsgStream(msg log.MsgStream) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}

// WithHandshake enables or disables waiting for the storage to confirm
// every mode change. Handshaking is enabled by default.
func WithHandshake(v bool) Option {
	return func(cfg *config) {
		cfg.handshake = v
	}
}

// WithPollDelay sets the delay between two state queries.
func WithPollDelay(d time.Duration) Option {
	return func(cfg *config) {
		cfg.delay = d
	}
}

// WithOptimizedReading enables pipelined reads: without handshake, the
// value of an address is shifted out while the next address is set.
func WithOptimizedReading(v bool) Option {
	return func(cfg *config) {
		cfg.optimize = v
	}
}

// WithTimeout bounds the time spent waiting for a state.
// A zero duration waits forever.
func WithTimeout(d time.Duration) Option {
	return func(cfg *config) {
		cfg.timeout = d
	}
}

// WithMaxPolls bounds the number of state queries issued while waiting
// for a state. Zero polls forever.
func WithMaxPolls(n int) Option {
	return func(cfg *config) {
		cfg.maxPolls = n
	}
}

// WithRefresh selects the getters queried when polling the storage.
// The default queries all on-demand getters.
func WithRefresh(pred func(comm.SendMode) bool) Option {
	return func(cfg *config) {
		cfg.refresh = pred
	}
}

// StorageController drives the sample storage through one packed
// register: the setter word carries address, data and mode, the getter
// word carries data and state.
//
// A controller owns its storage session and is not safe for concurrent use.
type StorageController struct {
	msg log.MsgStream
	cfg config

	setter fpga.ValueSetter
	getter fpga.ValueGetter
	acc    fpga.Accessor

	word register // last setter word
	mode Mode     // last commanded mode
}

// NewStorageController creates a storage controller writing its
// register through setter, reading it back through getter and
// flushing/refreshing them through acc.
func NewStorageController(setter fpga.ValueSetter, getter fpga.ValueGetter, acc fpga.Accessor, opts ...Option) *StorageController {
	cfg := newConfig(opts)
	return &StorageController{
		msg:    cfg.msg,
		cfg:    cfg,
		setter: setter,
		getter: getter,
		acc:    acc,
		mode:   Idle,
	}
}

// Mode returns the last commanded mode.
func (sc *StorageController) Mode() Mode { return sc.mode }

// Value returns the data of the last read back register word.
func (sc *StorageController) Value() (uint8, error) {
	v, err := sc.getter.Uint32()
	if err != nil {
		return 0, fmt.Errorf("scope: could not read storage value: %w", err)
	}
	return register(v).data(), nil
}

// State returns the state of the last read back register word.
func (sc *StorageController) State() (State, error) {
	v, err := sc.getter.Uint32()
	if err != nil {
		return 0, fmt.Errorf("scope: could not read storage state: %w", err)
	}
	return register(v).state(), nil
}

// SetMode commands mode m.
func (sc *StorageController) SetMode(m Mode) error {
	err := sc.write(sc.word.withMode(m))
	if err != nil {
		return fmt.Errorf("scope: could not set storage mode %v: %w", m, err)
	}
	sc.mode = m
	return nil
}

// SetAddress sets the address, keeping data and mode.
func (sc *StorageController) SetAddress(addr uint32) error {
	if addr > MaxAddress {
		return fmt.Errorf("scope: could not set address 0x%x: %w", addr, ErrAddressRange)
	}
	err := sc.write(sc.word.withAddress(addr))
	if err != nil {
		return fmt.Errorf("scope: could not set address 0x%x: %w", addr, err)
	}
	return nil
}

// SetAddressAndValue sets address and data, keeping the mode.
func (sc *StorageController) SetAddressAndValue(addr uint32, v uint8) error {
	if addr > MaxAddress {
		return fmt.Errorf("scope: could not set address 0x%x: %w", addr, ErrAddressRange)
	}
	err := sc.write(sc.word.withAddress(addr).withData(v))
	if err != nil {
		return fmt.Errorf("scope: could not set address 0x%x and value 0x%x: %w", addr, v, err)
	}
	return nil
}

// write stores w as the setter word and flushes it right away: the
// storage may react to every field change.
func (sc *StorageController) write(w register) error {
	sc.word = w
	sc.setter.SetUint32(uint32(w))
	return sc.acc.FlushSetters()
}

func (sc *StorageController) refresh() error {
	return sc.acc.RefreshGetters(sc.cfg.refresh)
}

// await polls the storage until its state satisfies ok.
// Every check follows a fresh query: the cached word may predate the
// last mode change.
func (sc *StorageController) await(want string, ok func(State) bool) error {
	var (
		start = time.Now()
		last  State
	)
	for n := 1; ; n++ {
		err := sc.refresh()
		if err != nil {
			return fmt.Errorf("scope: could not query storage state: %w", err)
		}

		st, err := sc.State()
		if err != nil {
			return err
		}
		last = st
		if ok(st) {
			if n > 1 {
				sc.msg.Debugf("=> reached %s after polling %d times", want, n)
			}
			return nil
		}
		if n == 1 {
			sc.msg.Debugf("=> waiting for %s...", want)
		}

		if (sc.cfg.maxPolls > 0 && n >= sc.cfg.maxPolls) ||
			(sc.cfg.timeout > 0 && time.Since(start) >= sc.cfg.timeout) {
			return &TimeoutError{Want: want, Last: last, Polls: n, Elapsed: time.Since(start)}
		}

		if sc.cfg.delay > 0 {
			time.Sleep(sc.cfg.delay)
		}
	}
}

func (sc *StorageController) awaitState(want State) error {
	return sc.await(want.String(), func(st State) bool { return st == want })
}

func (sc *StorageController) awaitNotWriting() error {
	return sc.await("non-writing state", func(st State) bool { return !st.IsWriting() })
}

// handshake waits for want if handshaking is enabled.
func (sc *StorageController) handshake(want State) error {
	if !sc.cfg.handshake {
		return nil
	}
	return sc.awaitState(want)
}

// modeAndWait commands m and, if handshaking, waits for want.
func (sc *StorageController) modeAndWait(m Mode, want State) error {
	err := sc.SetMode(m)
	if err != nil {
		return err
	}
	return sc.handshake(want)
}

// finishWrite leaves a writing mode through mode next.
func (sc *StorageController) finishWrite(next Mode) error {
	if !sc.mode.IsWriting() {
		return nil
	}
	err := sc.SetMode(next)
	if err != nil {
		return err
	}
	if !sc.cfg.handshake {
		return nil
	}
	return sc.awaitNotWriting()
}

// Write writes values to the sample memory, starting at address start,
// then releases the storage.
func (sc *StorageController) Write(start uint32, values []uint8) error {
	err := checkRange(start, len(values))
	if err != nil {
		return err
	}

	err = sc.finishWrite(Idle)
	if err != nil {
		return err
	}

	for i, v := range values {
		err = sc.SetAddressAndValue(start+uint32(i), v)
		if err != nil {
			return err
		}
		err = sc.modeAndWait(Write, Writing)
		if err != nil {
			return err
		}
		err = sc.modeAndWait(Idle, Ready)
		if err != nil {
			return err
		}
	}

	return sc.SetMode(Release)
}

// Read returns a reader over n values of the sample memory, starting at
// address start. Nothing is sent before the first call to Next.
func (sc *StorageController) Read(start uint32, n int) *Reader {
	r := &Reader{sc: sc, start: start, n: n}
	if n < 0 {
		r.err = fmt.Errorf("scope: invalid number of values to read (n=%d)", n)
		return r
	}
	r.err = checkRange(start, n)
	return r
}

// readAt reads the value at addr.
func (sc *StorageController) readAt(addr uint32) (uint8, error) {
	err := sc.SetAddress(addr)
	if err != nil {
		return 0, err
	}

	err = sc.SetMode(Read)
	if err != nil {
		return 0, err
	}

	switch {
	case sc.cfg.handshake:
		err = sc.awaitState(Reading)
		if err != nil {
			return 0, err
		}
		err = sc.modeAndWait(Idle, Ready)
		if err != nil {
			return 0, err
		}
	default:
		err = sc.refresh()
		if err != nil {
			return 0, fmt.Errorf("scope: could not query value at 0x%x: %w", addr, err)
		}
	}

	return sc.Value()
}

// Capture records samples from address start to address end, waiting
// for the capture to finish, then releases the storage.
func (sc *StorageController) Capture(start, end uint32) error {
	for _, addr := range []uint32{start, end} {
		if addr > MaxAddress {
			return fmt.Errorf("scope: could not capture at 0x%x: %w", addr, ErrAddressRange)
		}
	}

	err := sc.finishWrite(Idle)
	if err != nil {
		return err
	}

	const filler = 0

	err = sc.SetAddressAndValue(end, filler)
	if err != nil {
		return err
	}
	err = sc.modeAndWait(Set2ndAddress, Setting2ndAddress)
	if err != nil {
		return err
	}
	err = sc.modeAndWait(Idle, Ready)
	if err != nil {
		return err
	}

	err = sc.SetAddressAndValue(start, filler)
	if err != nil {
		return err
	}
	err = sc.modeAndWait(Write, Writing)
	if err != nil {
		return err
	}

	err = sc.SetMode(Capture)
	if err != nil {
		return err
	}
	// capture duration depends on the sweep, not on the link.
	err = sc.awaitState(CapturingFinished)
	if err != nil {
		return err
	}

	err = sc.modeAndWait(Idle, Ready)
	if err != nil {
		return err
	}

	return sc.SetMode(Release)
}

func checkRange(start uint32, n int) error {
	last := uint64(start)
	if n > 0 {
		last += uint64(n) - 1
	}
	if last > MaxAddress {
		return fmt.Errorf("scope: could not access [0x%x, 0x%x]: %w", start, last, ErrAddressRange)
	}
	return nil
}
