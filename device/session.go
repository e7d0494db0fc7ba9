// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package device

import (
	"fmt"
	"sync"

	"github.com/go-lpc/ctlab/comm"
)

// Session registers the commands and messages of one board.
// Closing the session detaches all of them.
type Session struct {
	app    *Appliance
	main   uint8
	detach func(comm.Channel) bool
	once   sync.Once
}

// Main returns the main channel of the board.
func (s *Session) Main() uint8 { return s.main }

// NewSetCommand creates and registers the set command of register reg.
func (s *Session) NewSetCommand(reg uint16, mode comm.SendMode) (*comm.SetCommand, error) {
	ch, err := s.app.channel(s.main, reg)
	if err != nil {
		return nil, err
	}
	cmd := comm.NewSetCommand(ch)
	err = s.app.set.Add(cmd, mode)
	if err != nil {
		return nil, fmt.Errorf("device: could not register set command: %w", err)
	}
	return cmd, nil
}

// NewQueryCommand creates and registers the query command of register reg.
func (s *Session) NewQueryCommand(reg uint16, mode comm.SendMode) (*comm.QueryCommand, error) {
	ch, err := s.app.channel(s.main, reg)
	if err != nil {
		return nil, err
	}
	cmd := comm.NewQueryCommand(ch)
	err = s.app.qry.Add(cmd, mode)
	if err != nil {
		return nil, fmt.Errorf("device: could not register query command: %w", err)
	}
	return cmd, nil
}

// RegisterMessage creates the message container of register reg.
func (s *Session) RegisterMessage(reg uint16) (*comm.Container, error) {
	ch, err := s.app.channel(s.main, reg)
	if err != nil {
		return nil, err
	}
	ctr, err := s.app.cache.Register(ch)
	if err != nil {
		return nil, fmt.Errorf("device: could not register message: %w", err)
	}
	return ctr, nil
}

// Close detaches all the commands and messages of the board.
func (s *Session) Close() error {
	s.once.Do(func() {
		var (
			nset = s.app.set.RemoveWhere(s.detach)
			nqry = s.app.qry.RemoveWhere(s.detach)
			nmsg = s.app.cache.UnregisterWhere(s.detach)
		)
		s.app.msg.Debugf("board %d detached (set=%d, query=%d, messages=%d)", s.main, nset, nqry, nmsg)
		s.app.release(s.main)
	})
	return nil
}
