// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scope drives the sample storage of the c't Lab FPGA scope:
// writing, reading back and capturing samples through the storage
// controller mode/state protocol.
package scope // import "github.com/go-lpc/ctlab/scope"

import (
	"fmt"

	"github.com/go-lpc/ctlab/comm"
	"github.com/go-lpc/ctlab/fpga"
)

// StorageRegister is the FPGA register shared by the storage setter
// and getter.
const StorageRegister uint16 = 1

// Scope is the sample storage of an FPGA board.
type Scope struct {
	sc *StorageController
}

// Open creates the storage setter and getter on conn and the storage
// controller driving them. The registers live as long as conn.
func Open(conn *fpga.Conn, acc fpga.Accessor, opts ...Option) (*Scope, error) {
	set, err := conn.ValueSetter(StorageRegister, comm.OnDemand)
	if err != nil {
		return nil, fmt.Errorf("scope: could not create storage setter: %w", err)
	}
	get, err := conn.ValueGetter(StorageRegister, comm.OnDemand)
	if err != nil {
		return nil, fmt.Errorf("scope: could not create storage getter: %w", err)
	}
	return &Scope{
		sc: NewStorageController(set, get, acc, opts...),
	}, nil
}

// Storage returns the storage controller.
func (s *Scope) Storage() *StorageController { return s.sc }

// Write writes values starting at address start.
func (s *Scope) Write(start uint32, values []uint8) error {
	return s.sc.Write(start, values)
}

// Read returns a reader over n values starting at address start.
func (s *Scope) Read(start uint32, n int) *Reader {
	return s.sc.Read(start, n)
}

// ReadAll reads n values starting at address start.
func (s *Scope) ReadAll(start uint32, n int) ([]uint8, error) {
	r := s.sc.Read(start, n)
	defer r.Close()

	var vs []uint8
	if n > 0 {
		vs = make([]uint8, 0, n)
	}
	for r.Next() {
		vs = append(vs, r.Value())
	}
	if err := r.Err(); err != nil {
		return vs, err
	}
	return vs, nil
}

// Capture records samples from address start to address end.
func (s *Scope) Capture(start, end uint32) error {
	return s.sc.Capture(start, end)
}
