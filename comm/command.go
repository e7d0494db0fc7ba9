// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package comm

import (
	"strconv"
	"sync"
)

// Command is a set or query command bound to a channel.
type Command interface {
	Chan() Channel
}

// SetCommand writes a value to a channel.
//
// The raw value is kept in its wire representation. The command is
// marked as modified whenever a new, different, raw value is assigned
// and stays so until ResetModified is called.
type SetCommand struct {
	ch Channel

	mu       sync.Mutex
	raw      string
	set      bool
	modified bool
}

// NewSetCommand creates a new set command for the provided channel.
func NewSetCommand(ch Channel) *SetCommand {
	return &SetCommand{ch: ch}
}

func (cmd *SetCommand) Chan() Channel { return cmd.ch }

// RawValue returns the current raw value, and whether a value has
// been assigned at all.
func (cmd *SetCommand) RawValue() (string, bool) {
	cmd.mu.Lock()
	defer cmd.mu.Unlock()
	return cmd.raw, cmd.set
}

// SetRaw assigns the raw value of the command.
func (cmd *SetCommand) SetRaw(v string) {
	cmd.mu.Lock()
	defer cmd.mu.Unlock()
	if !cmd.set || cmd.raw != v {
		cmd.modified = true
	}
	cmd.raw = v
	cmd.set = true
}

func (cmd *SetCommand) SetUint32(v uint32) { cmd.SetRaw(strconv.FormatUint(uint64(v), 10)) }
func (cmd *SetCommand) SetInt32(v int32)   { cmd.SetRaw(strconv.FormatInt(int64(v), 10)) }

func (cmd *SetCommand) SetFloat64(v float64) {
	cmd.SetRaw(strconv.FormatFloat(v, 'g', -1, 64))
}

func (cmd *SetCommand) SetBool(v bool) {
	if v {
		cmd.SetRaw("1")
		return
	}
	cmd.SetRaw("0")
}

// Modified reports whether the value changed since the last reset.
func (cmd *SetCommand) Modified() bool {
	cmd.mu.Lock()
	defer cmd.mu.Unlock()
	return cmd.modified
}

// ResetModified clears the modified flag.
func (cmd *SetCommand) ResetModified() {
	cmd.mu.Lock()
	cmd.modified = false
	cmd.mu.Unlock()
}

// QueryCommand requests the current value of a channel.
type QueryCommand struct {
	ch Channel
}

// NewQueryCommand creates a new query command for the provided channel.
func NewQueryCommand(ch Channel) *QueryCommand {
	return &QueryCommand{ch: ch}
}

func (cmd *QueryCommand) Chan() Channel { return cmd.ch }

var (
	_ Command = (*SetCommand)(nil)
	_ Command = (*QueryCommand)(nil)
)

// resetIfUnchanged clears the modified flag unless the value was
// changed to something other than raw in the meantime.
func (cmd *SetCommand) resetIfUnchanged(raw string) {
	cmd.mu.Lock()
	if cmd.raw == raw {
		cmd.modified = false
	}
	cmd.mu.Unlock()
}
