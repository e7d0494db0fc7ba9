// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fpga exposes the 32-bit registers of a c't Lab FPGA board as
// value setters and getters.
package fpga // import "github.com/go-lpc/ctlab/fpga"

import (
	"fmt"

	"github.com/go-lpc/ctlab/comm"
)

// ValueSetter writes a register.
// Values are sent on the next flush.
type ValueSetter interface {
	SetUint32(v uint32)
}

// ValueGetter reads a register.
// Values are updated on the next refresh.
type ValueGetter interface {
	Uint32() (uint32, error)
	Subscribe(fn func(v uint32)) (cancel func())
}

// Accessor flushes setters and refreshes getters.
type Accessor interface {
	// FlushSetters sends all modified setter values.
	FlushSetters() error
	// RefreshGetters queries all getters whose send mode satisfies pred.
	RefreshGetters(pred func(comm.SendMode) bool) error
}

// Registrar builds the commands and message containers of the registers
// of one board.
type Registrar interface {
	NewSetCommand(reg uint16, mode comm.SendMode) (*comm.SetCommand, error)
	NewQueryCommand(reg uint16, mode comm.SendMode) (*comm.QueryCommand, error)
	RegisterMessage(reg uint16) (*comm.Container, error)
	Close() error
}

// Conn is a connection to an FPGA board.
type Conn struct {
	reg Registrar
}

// NewConn creates a connection building its registers through r.
func NewConn(r Registrar) *Conn {
	return &Conn{reg: r}
}

// ValueSetter creates the setter of register reg.
func (c *Conn) ValueSetter(reg uint16, mode comm.SendMode) (*Setter, error) {
	cmd, err := c.reg.NewSetCommand(reg, mode)
	if err != nil {
		return nil, fmt.Errorf("fpga: could not create setter for register %d: %w", reg, err)
	}
	return &Setter{cmd: cmd}, nil
}

// ValueGetter creates the getter of register reg.
func (c *Conn) ValueGetter(reg uint16, mode comm.SendMode) (*Getter, error) {
	_, err := c.reg.NewQueryCommand(reg, mode)
	if err != nil {
		return nil, fmt.Errorf("fpga: could not create getter query for register %d: %w", reg, err)
	}
	ctr, err := c.reg.RegisterMessage(reg)
	if err != nil {
		return nil, fmt.Errorf("fpga: could not create getter for register %d: %w", reg, err)
	}
	return &Getter{ctr: ctr}, nil
}

// Close detaches all the registers of the board.
func (c *Conn) Close() error {
	return c.reg.Close()
}

// Setter writes a register.
type Setter struct {
	cmd *comm.SetCommand
}

func (s *Setter) SetUint32(v uint32) { s.cmd.SetUint32(v) }
func (s *Setter) SetInt32(v int32)   { s.cmd.SetInt32(v) }

// Getter reads a register.
type Getter struct {
	ctr *comm.Container
}

// Uint32 returns the last value received for the register, or 0.
func (g *Getter) Uint32() (uint32, error) { return g.ctr.Message().Uint32() }

// Int32 returns the last value received for the register, or 0.
func (g *Getter) Int32() (int32, error) { return g.ctr.Message().Int32() }

// Subscribe calls fn each time a new value is received.
// Values that cannot be decoded are not forwarded.
func (g *Getter) Subscribe(fn func(v uint32)) (cancel func()) {
	return g.ctr.Subscribe(func(msg comm.Message) {
		v, err := msg.Uint32()
		if err != nil {
			return
		}
		fn(v)
	})
}

// ValuesAccessor flushes setters through a set command dictionary and
// refreshes getters through a query scheduler.
type ValuesAccessor struct {
	set *comm.SetDict
	sch *comm.Scheduler
}

// NewAccessor creates a values accessor.
func NewAccessor(set *comm.SetDict, sch *comm.Scheduler) *ValuesAccessor {
	return &ValuesAccessor{set: set, sch: sch}
}

func (acc *ValuesAccessor) FlushSetters() error {
	return acc.set.SendModified()
}

func (acc *ValuesAccessor) RefreshGetters(pred func(comm.SendMode) bool) error {
	return acc.sch.SendImmediately(pred)
}

var (
	_ ValueSetter = (*Setter)(nil)
	_ ValueGetter = (*Getter)(nil)
	_ Accessor    = (*ValuesAccessor)(nil)
)
