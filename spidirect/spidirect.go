// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package spidirect carries set and query commands over a direct SPI
// link to a single FPGA board.
//
// Each register is an SPI address. A set command transfers its value to
// the register; a query transfers the last value set for that register
// again. Every transfer yields the value shifted out by the board, which
// is delivered as a message for the register.
package spidirect // import "github.com/go-lpc/ctlab/spidirect"

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/go-lpc/ctlab/comm"
)

// MainChannel is the main channel of the board on an SPI link.
const MainChannel uint8 = 0

// Bus transfers register values.
type Bus interface {
	Transfer(addr uint8, v uint32) (uint32, error)
}

// Channel returns the channel addressing register reg.
func Channel(reg uint16) (comm.Channel, error) {
	if reg > 0xff {
		return comm.Channel{}, fmt.Errorf("spidirect: register %d is not an SPI address", reg)
	}
	return comm.Channel{Main: MainChannel, Sub: reg}, nil
}

// Link sends commands over a Bus and forwards the received values.
type Link struct {
	bus  Bus
	recv func(comm.Message)

	mu   sync.Mutex
	last map[uint8]uint32
}

// NewLink creates a link over bus delivering received values to recv.
func NewLink(bus Bus, recv func(comm.Message)) *Link {
	return &Link{
		bus:  bus,
		recv: recv,
		last: make(map[uint8]uint32),
	}
}

// SendSet transfers the value of cmd. Commands without a value are skipped.
func (l *Link) SendSet(cmd *comm.SetCommand) error {
	raw, ok := cmd.RawValue()
	if !ok {
		return nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return fmt.Errorf("spidirect: invalid value %q for %v: %w", raw, cmd.Chan(), err)
	}
	addr, err := address(cmd.Chan())
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.last[addr] = uint32(v)
	msg, err := l.transfer(addr, uint32(v))
	l.mu.Unlock()
	return l.deliver(msg, err)
}

// SendQuery transfers the last value set for the register of cmd, or 0.
func (l *Link) SendQuery(cmd *comm.QueryCommand) error {
	addr, err := address(cmd.Chan())
	if err != nil {
		return err
	}

	l.mu.Lock()
	msg, err := l.transfer(addr, l.last[addr])
	l.mu.Unlock()
	return l.deliver(msg, err)
}

func (l *Link) transfer(addr uint8, v uint32) (comm.Message, error) {
	rx, err := l.bus.Transfer(addr, v)
	if err != nil {
		return comm.Message{}, fmt.Errorf("spidirect: could not transfer 0x%x to register %d: %w", v, addr, err)
	}
	return comm.Message{
		Channel: comm.Channel{Main: MainChannel, Sub: uint16(addr)},
		Raw:     strconv.FormatUint(uint64(rx), 10),
	}, nil
}

// deliver forwards msg outside of the link lock: subscribers may send
// commands in turn.
func (l *Link) deliver(msg comm.Message, err error) error {
	if err != nil {
		return err
	}
	if l.recv != nil {
		l.recv(msg)
	}
	return nil
}

// SetSender returns the link as a set command sender.
func (l *Link) SetSender() comm.Sender[*comm.SetCommand] {
	return comm.SenderFunc[*comm.SetCommand](l.SendSet)
}

// QuerySender returns the link as a query command sender.
func (l *Link) QuerySender() comm.Sender[*comm.QueryCommand] {
	return comm.SenderFunc[*comm.QueryCommand](l.SendQuery)
}

func address(ch comm.Channel) (uint8, error) {
	if ch.Main != MainChannel || ch.Sub > 0xff {
		return 0, fmt.Errorf("spidirect: channel %v is not an SPI address", ch)
	}
	return uint8(ch.Sub), nil
}
