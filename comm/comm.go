// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package comm holds the command and message substrate shared by all
// c't Lab protocols: set and query commands keyed by channel, their
// dictionaries, the query scheduler and the received-message cache.
package comm // import "github.com/go-lpc/ctlab/comm"

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateKey is returned when a command or a message container
	// is registered twice for the same channel.
	ErrDuplicateKey = errors.New("comm: duplicate channel")

	// ErrNotFound is returned when looking up a channel that was never
	// registered.
	ErrNotFound = errors.New("comm: channel not registered")
)

const (
	// DefaultChannel is the pseudo main channel addressing the device
	// directly attached to the link. Commands to it omit the channel prefix.
	DefaultChannel uint8 = 254

	// BroadcastChannel is the pseudo main channel addressing all devices.
	BroadcastChannel uint8 = 255
)

// Channel identifies a register (sub-channel) of a device (main channel).
// Channels are comparable and may be used as map keys.
type Channel struct {
	Main uint8
	Sub  uint16
}

func (ch Channel) String() string {
	switch ch.Main {
	case DefaultChannel:
		return fmt.Sprintf("%d", ch.Sub)
	case BroadcastChannel:
		return fmt.Sprintf("*:%d", ch.Sub)
	default:
		return fmt.Sprintf("%d:%d", ch.Main, ch.Sub)
	}
}

// SameMain returns a channel predicate selecting all sub-channels of
// the given main channel.
func SameMain(main uint8) func(Channel) bool {
	return func(ch Channel) bool { return ch.Main == main }
}

// SendMode classifies when a command is sent.
type SendMode uint8

const (
	// Periodic commands are sent on every scheduled round.
	Periodic SendMode = iota
	// OnDemand commands are only sent when explicitly requested,
	// e.g. storage access.
	OnDemand
)

func (m SendMode) String() string {
	switch m {
	case Periodic:
		return "periodic"
	case OnDemand:
		return "on-demand"
	default:
		return fmt.Sprintf("SendMode(%d)", uint8(m))
	}
}

// AnyMode selects commands regardless of their send mode.
func AnyMode(SendMode) bool { return true }

// Only returns a predicate selecting commands of the given send mode.
func Only(mode SendMode) func(SendMode) bool {
	return func(m SendMode) bool { return m == mode }
}
