// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scope

import "fmt"

// Storage register layout.
//
//	bits  0-7:  data
//	bits  8-26: address
//	bits 27-31: mode (written) or state (read back)
const (
	dataMask  = 0x000000ff
	addrShift = 8
	addrBits  = 19
	addrMask  = (1<<addrBits - 1) << addrShift
	modeShift = 27
	modeMask  = 0x1f << modeShift

	// MaxAddress is the highest sample memory address.
	MaxAddress = 1<<addrBits - 1
)

// register is a storage register word.
type register uint32

func (r register) withData(v uint8) register {
	return r&^dataMask | register(v)
}

func (r register) withAddress(addr uint32) register {
	return r&^addrMask | register(addr<<addrShift)&addrMask
}

func (r register) withMode(m Mode) register {
	return r&^modeMask | register(m)<<modeShift&modeMask
}

func (r register) data() uint8     { return uint8(r & dataMask) }
func (r register) address() uint32 { return uint32(r&addrMask) >> addrShift }
func (r register) mode() Mode      { return Mode(uint32(r&modeMask) >> modeShift) }
func (r register) state() State    { return State(uint32(r&modeMask) >> modeShift) }

// Mode is the access mode commanded to the storage.
type Mode uint8

const (
	Idle Mode = iota
	Read
	Write
	Capture
	Set2ndAddress
	Release
)

// IsWriting reports whether m writes to the sample memory.
func (m Mode) IsWriting() bool { return m == Write || m == Capture }

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Read:
		return "read"
	case Write:
		return "write"
	case Capture:
		return "capture"
	case Set2ndAddress:
		return "set-2nd-address"
	case Release:
		return "release"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// State is the access state reported by the storage.
// Each state shares its code with the mode leading to it.
type State uint8

const (
	Ready State = iota
	Reading
	Writing
	CapturingFinished
	Setting2ndAddress
)

// IsWriting reports whether the storage is writing to the sample memory.
func (s State) IsWriting() bool { return s == Writing || s == CapturingFinished }

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Reading:
		return "reading"
	case Writing:
		return "writing"
	case CapturingFinished:
		return "capturing-finished"
	case Setting2ndAddress:
		return "setting-2nd-address"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}
