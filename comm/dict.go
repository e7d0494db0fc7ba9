// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package comm

import (
	"fmt"
	"sync"
)

// Sender sends commands over a link.
type Sender[C Command] interface {
	Send(cmd C) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc[C Command] func(cmd C) error

func (f SenderFunc[C]) Send(cmd C) error { return f(cmd) }

type entry[C Command] struct {
	cmd  C
	mode SendMode
}

// Dict is a collection of commands keyed by channel.
// Commands are sent in insertion order.
type Dict[C Command] struct {
	snd Sender[C]

	mu   sync.Mutex
	keys []Channel
	ents map[Channel]entry[C]
}

// NewDict creates a new command dictionary sending through snd.
func NewDict[C Command](snd Sender[C]) *Dict[C] {
	return &Dict[C]{
		snd:  snd,
		ents: make(map[Channel]entry[C]),
	}
}

// Add adds a command with its send mode.
// Add fails if a command is already registered for the same channel.
func (d *Dict[C]) Add(cmd C, mode SendMode) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ch := cmd.Chan()
	if _, dup := d.ents[ch]; dup {
		return fmt.Errorf("comm: could not add command for channel %v: %w", ch, ErrDuplicateKey)
	}
	d.ents[ch] = entry[C]{cmd: cmd, mode: mode}
	d.keys = append(d.keys, ch)
	return nil
}

// AddMany adds all commands with the same send mode.
// Every command is attempted; the first error is returned.
func (d *Dict[C]) AddMany(mode SendMode, cmds ...C) error {
	var err error
	for _, cmd := range cmds {
		e := d.Add(cmd, mode)
		if e != nil && err == nil {
			err = e
		}
	}
	return err
}

// RemoveWhere removes all commands whose channel satisfies pred and
// returns the number of removed commands.
func (d *Dict[C]) RemoveWhere(pred func(Channel) bool) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	keys := d.keys[:0]
	n := 0
	for _, ch := range d.keys {
		if pred(ch) {
			delete(d.ents, ch)
			n++
			continue
		}
		keys = append(keys, ch)
	}
	for i := len(keys); i < len(d.keys); i++ {
		d.keys[i] = Channel{}
	}
	d.keys = keys
	return n
}

// Get returns the command registered for ch.
func (d *Dict[C]) Get(ch Channel) (C, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.ents[ch]
	return e.cmd, ok
}

// Len returns the number of commands.
func (d *Dict[C]) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.keys)
}

// SendAll sends all commands whose send mode satisfies pred.
// Sending stops at the first error.
func (d *Dict[C]) SendAll(pred func(SendMode) bool) error {
	return d.send(pred, func(C) bool { return true })
}

func (d *Dict[C]) snapshot(pred func(SendMode) bool, sel func(C) bool) []C {
	d.mu.Lock()
	defer d.mu.Unlock()

	cmds := make([]C, 0, len(d.keys))
	for _, ch := range d.keys {
		e := d.ents[ch]
		if !pred(e.mode) || !sel(e.cmd) {
			continue
		}
		cmds = append(cmds, e.cmd)
	}
	return cmds
}

func (d *Dict[C]) send(pred func(SendMode) bool, sel func(C) bool) error {
	// the lock is not held while sending: receiving a reply may trigger
	// callbacks registering new commands.
	for _, cmd := range d.snapshot(pred, sel) {
		err := d.snd.Send(cmd)
		if err != nil {
			return fmt.Errorf("comm: could not send command for channel %v: %w", cmd.Chan(), err)
		}
	}
	return nil
}

// SetDict is a dictionary of set commands.
type SetDict struct {
	*Dict[*SetCommand]
}

// NewSetDict creates a new set command dictionary.
func NewSetDict(snd Sender[*SetCommand]) *SetDict {
	return &SetDict{NewDict[*SetCommand](snd)}
}

// SendAll sends all set commands whose send mode satisfies pred and
// clears their modified flag.
func (d *SetDict) SendAll(pred func(SendMode) bool) error {
	return d.sendSet(pred, func(*SetCommand) bool { return true })
}

// SendModified sends the modified set commands and clears their
// modified flag.
func (d *SetDict) SendModified() error {
	return d.sendSet(AnyMode, (*SetCommand).Modified)
}

// SendModifiedWhere sends the modified set commands whose send mode
// satisfies pred and clears their modified flag.
func (d *SetDict) SendModifiedWhere(pred func(SendMode) bool) error {
	return d.sendSet(pred, (*SetCommand).Modified)
}

func (d *SetDict) sendSet(pred func(SendMode) bool, sel func(*SetCommand) bool) error {
	for _, cmd := range d.snapshot(pred, sel) {
		raw, _ := cmd.RawValue()
		err := d.snd.Send(cmd)
		if err != nil {
			return fmt.Errorf("comm: could not send command for channel %v: %w", cmd.ch, err)
		}
		cmd.resetIfUnchanged(raw)
	}
	return nil
}

// QueryDict is a dictionary of query commands.
type QueryDict struct {
	*Dict[*QueryCommand]
}

// NewQueryDict creates a new query command dictionary.
func NewQueryDict(snd Sender[*QueryCommand]) *QueryDict {
	return &QueryDict{NewDict[*QueryCommand](snd)}
}
