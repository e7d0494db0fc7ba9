// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package proto

import (
	"fmt"

	"github.com/go-lpc/ctlab/comm"
)

// StringSender sends command strings over a link.
type StringSender interface {
	Send(s string) error
}

// StringReceiver delivers the strings received from a link.
type StringReceiver interface {
	Subscribe(fn func(s string)) (cancel func())
}

// DefaultBuilder returns the builder used by c't Lab devices:
// XOR checksum, no acknowledge.
func DefaultBuilder() *Builder {
	return NewBuilder(WithChecksum(XOR))
}

// SetSender sends set commands as strings.
type SetSender struct {
	w StringSender
	b *Builder
}

// NewSetSender creates a set command sender. A nil builder uses
// DefaultBuilder.
func NewSetSender(w StringSender, b *Builder) *SetSender {
	if b == nil {
		b = DefaultBuilder()
	}
	return &SetSender{w: w, b: b}
}

// Send sends cmd. Commands without a value are skipped.
func (s *SetSender) Send(cmd *comm.SetCommand) error {
	raw, ok := cmd.RawValue()
	if !ok {
		return nil
	}
	err := s.w.Send(s.b.Set(cmd.Chan(), raw))
	if err != nil {
		return fmt.Errorf("proto: could not send set command for %v: %w", cmd.Chan(), err)
	}
	return nil
}

// QuerySender sends query commands as strings.
type QuerySender struct {
	w StringSender
	b *Builder
}

// NewQuerySender creates a query command sender. A nil builder uses
// DefaultBuilder.
func NewQuerySender(w StringSender, b *Builder) *QuerySender {
	if b == nil {
		b = DefaultBuilder()
	}
	return &QuerySender{w: w, b: b}
}

// Send sends cmd.
func (s *QuerySender) Send(cmd *comm.QueryCommand) error {
	err := s.w.Send(s.b.Query(cmd.Chan()))
	if err != nil {
		return fmt.Errorf("proto: could not send query command for %v: %w", cmd.Chan(), err)
	}
	return nil
}

// Receiver feeds the messages received from a link into a cache.
type Receiver struct {
	cancel func()
}

// NewReceiver starts forwarding the messages received by r to cache.
func NewReceiver(r StringReceiver, cache *comm.Cache) *Receiver {
	return &Receiver{
		cancel: r.Subscribe(func(s string) {
			cache.Update(Parse(s)...)
		}),
	}
}

// Close stops forwarding messages.
func (r *Receiver) Close() error {
	r.cancel()
	return nil
}

var (
	_ comm.Sender[*comm.SetCommand]   = (*SetSender)(nil)
	_ comm.Sender[*comm.QueryCommand] = (*QuerySender)(nil)
)
