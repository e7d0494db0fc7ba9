// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scope

import (
	"io"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/ctlab/comm"
)

// hardware simulates the storage side of the FPGA.
type hardware struct {
	mem   map[uint32]uint8
	word  register // last received setter word
	init  bool
	end   uint32 // capture end address
	modes []Mode // received mode changes

	state   State
	target  State
	lag     int // refreshes before the state follows a mode change
	pending int
	stuck   bool // state never changes

	captures int // completed captures

	pipelined bool // a value is shifted out on the query after it was latched
	latched   uint8
}

func newHardware() *hardware {
	return &hardware{mem: make(map[uint32]uint8)}
}

func stateOf(m Mode) State {
	switch m {
	case Read:
		return Reading
	case Write:
		return Writing
	case Capture:
		return CapturingFinished
	case Set2ndAddress:
		return Setting2ndAddress
	default:
		return Ready
	}
}

func (hw *hardware) apply(w register) {
	prev := hw.word
	hw.word = w
	if !hw.init || prev.mode() != w.mode() {
		hw.modes = append(hw.modes, w.mode())
	}
	hw.init = true

	switch w.mode() {
	case Write:
		hw.mem[w.address()] = w.data()
	case Set2ndAddress:
		hw.end = w.address()
	case Capture:
		for addr := w.address(); addr <= hw.end; addr++ {
			hw.mem[addr] = uint8(0xa0 + addr)
		}
	}

	if hw.stuck {
		return
	}
	hw.target = stateOf(w.mode())
	if w.mode() == Capture && prev.mode() != Capture {
		hw.state = Writing // sweep in progress
	}
	hw.pending = hw.lag
	if hw.pending == 0 {
		hw.settle()
	}
}

func (hw *hardware) settle() {
	if hw.target == CapturingFinished && hw.state != CapturingFinished {
		hw.captures++
	}
	hw.state = hw.target
}

// query returns the getter word and advances the state machine.
func (hw *hardware) query() uint32 {
	if hw.pending > 0 {
		hw.pending--
		if hw.pending == 0 {
			hw.settle()
		}
	}
	data := hw.mem[hw.word.address()]
	if hw.pipelined {
		data, hw.latched = hw.latched, data
	}
	return uint32(register(0).withMode(Mode(hw.state)).withData(data))
}

// fakeStorage plugs the simulated hardware into the fpga value
// setter, getter and accessor interfaces.
type fakeStorage struct {
	hw *hardware

	pending uint32
	dirty   bool
	out     uint32

	flushes   int
	refreshes int
}

func newFakeStorage(hw *hardware) *fakeStorage {
	return &fakeStorage{hw: hw}
}

func (fs *fakeStorage) SetUint32(v uint32) {
	if v != fs.pending || !fs.hw.init {
		fs.dirty = true
	}
	fs.pending = v
}

func (fs *fakeStorage) Uint32() (uint32, error) { return fs.out, nil }

func (fs *fakeStorage) Subscribe(fn func(v uint32)) func() { return func() {} }

func (fs *fakeStorage) FlushSetters() error {
	if !fs.dirty {
		return nil
	}
	fs.dirty = false
	fs.flushes++
	fs.hw.apply(register(fs.pending))
	return nil
}

func (fs *fakeStorage) RefreshGetters(pred func(comm.SendMode) bool) error {
	if !pred(comm.OnDemand) {
		return nil
	}
	fs.refreshes++
	fs.out = fs.hw.query()
	return nil
}

func (fs *fakeStorage) controller(opts ...Option) *StorageController {
	opts = append([]Option{WithMsgStream(log.NewMsgStream("scope", log.LvlError, io.Discard))}, opts...)
	return NewStorageController(fs, fs, fs, opts...)
}
