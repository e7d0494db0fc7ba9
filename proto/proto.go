// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package proto implements the c't Lab text protocol: command strings
// sent to the devices and message lines received from them.
//
// A set command reads "{main}:{sub}={value}", a query "{main}:{sub}?".
// The main channel prefix is omitted for the default channel (254) and
// rendered as "*" for the broadcast channel (255). An optional "!"
// requests an acknowledge and an optional "$XX" suffix carries the
// checksum of everything before it.
//
// Received messages read "#{main}:{sub}={value} [{description}]", one
// per line.
package proto // import "github.com/go-lpc/ctlab/proto"

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-lpc/ctlab/comm"
)

// XOR returns the XOR of all the bytes of s.
func XOR(s string) byte {
	var cs byte
	for i := 0; i < len(s); i++ {
		cs ^= s[i]
	}
	return cs
}

// TrimChecksum removes the checksum suffix, if any, from s.
func TrimChecksum(s string) string {
	i := strings.LastIndexByte(s, '$')
	if i < 0 {
		return s
	}
	return s[:i]
}

// Builder builds command strings.
type Builder struct {
	checksum func(string) byte
	ack      bool
}

// BuildOption configures a Builder.
type BuildOption func(*Builder)

// WithChecksum appends the checksum computed by f to every command.
func WithChecksum(f func(string) byte) BuildOption {
	return func(b *Builder) {
		b.checksum = f
	}
}

// WithAcknowledge requests an acknowledge for every command.
func WithAcknowledge() BuildOption {
	return func(b *Builder) {
		b.ack = true
	}
}

// NewBuilder creates a new command string builder.
func NewBuilder(opts ...BuildOption) *Builder {
	b := new(Builder)
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Set returns the command string setting ch to raw.
func (b *Builder) Set(ch comm.Channel, raw string) string {
	o := new(strings.Builder)
	b.channel(o, ch)
	o.WriteByte('=')
	o.WriteString(raw)
	return b.finish(o)
}

// Query returns the command string querying ch.
func (b *Builder) Query(ch comm.Channel) string {
	o := new(strings.Builder)
	b.channel(o, ch)
	o.WriteByte('?')
	return b.finish(o)
}

func (b *Builder) channel(o *strings.Builder, ch comm.Channel) {
	switch ch.Main {
	case comm.DefaultChannel:
	case comm.BroadcastChannel:
		o.WriteString("*:")
	default:
		o.WriteString(strconv.Itoa(int(ch.Main)))
		o.WriteByte(':')
	}
	o.WriteString(strconv.Itoa(int(ch.Sub)))
}

func (b *Builder) finish(o *strings.Builder) string {
	if b.ack {
		o.WriteByte('!')
	}
	if b.checksum != nil {
		fmt.Fprintf(o, "$%02X", b.checksum(o.String()))
	}
	return o.String()
}
