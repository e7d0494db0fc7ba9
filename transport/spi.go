// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/go-lpc/ctlab/internal/spidev"
)

const (
	// DefaultSPIAddressDevice selects the register address.
	DefaultSPIAddressDevice = "/dev/spidev0.0"
	// DefaultSPIDataDevice carries the register value.
	DefaultSPIDataDevice = "/dev/spidev0.1"
	// DefaultSPISpeed is the SPI clock frequency in Hz.
	DefaultSPISpeed = 500000
)

type duplexer interface {
	Transfer(tx []byte) ([]byte, error)
	Close() error
}

var (
	spiOpen = spiOpenImpl
)

func spiOpenImpl(name string, speed uint32) (duplexer, error) {
	return spidev.Open(name, spidev.Config{
		Mode:  spidev.Mode3,
		Bits:  8,
		Speed: speed,
	})
}

// SPI is a direct SPI link to an FPGA board.
//
// A transfer first writes the register address on the address device,
// then exchanges the 32-bit register value, big-endian, on the data device.
type SPI struct {
	mu   sync.Mutex
	addr duplexer
	data duplexer
}

// OpenSPI opens the address and data SPI devices.
// A zero speed selects DefaultSPISpeed.
func OpenSPI(addrDev, dataDev string, speed uint32) (*SPI, error) {
	if speed == 0 {
		speed = DefaultSPISpeed
	}
	addr, err := spiOpen(addrDev, speed)
	if err != nil {
		return nil, fmt.Errorf("transport: could not open SPI address device %q: %w", addrDev, err)
	}
	data, err := spiOpen(dataDev, speed)
	if err != nil {
		_ = addr.Close()
		return nil, fmt.Errorf("transport: could not open SPI data device %q: %w", dataDev, err)
	}
	return &SPI{addr: addr, data: data}, nil
}

// Transfer sends v to register addr and returns the value received
// during the same exchange.
func (s *SPI) Transfer(addr uint8, v uint32) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.addr.Transfer([]byte{addr})
	if err != nil {
		return 0, fmt.Errorf("transport: could not select SPI address 0x%02x: %w", addr, err)
	}

	var tx [4]byte
	binary.BigEndian.PutUint32(tx[:], v)
	rx, err := s.data.Transfer(tx[:])
	if err != nil {
		return 0, fmt.Errorf("transport: could not transfer SPI data to 0x%02x: %w", addr, err)
	}
	if len(rx) != len(tx) {
		return 0, fmt.Errorf("transport: short SPI transfer to 0x%02x (n=%d)", addr, len(rx))
	}
	return binary.BigEndian.Uint32(rx), nil
}

// Close closes both SPI devices.
func (s *SPI) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.data.Close()
	if e := s.addr.Close(); e != nil && err == nil {
		err = e
	}
	if err != nil {
		return fmt.Errorf("transport: could not close SPI devices: %w", err)
	}
	return nil
}
