// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import (
	"sync"

	"github.com/go-daq/tdaq/log"
)

// Dummy is a link without hardware: sent strings are logged and kept,
// received strings are injected by the caller.
type Dummy struct {
	fanout

	msg log.MsgStream

	mu   sync.Mutex
	sent []string
}

// NewDummy creates a dummy link. A nil msg stream logs to stdout.
func NewDummy(msg log.MsgStream) *Dummy {
	if msg == nil {
		msg = defaultMsg("dummy")
	}
	return &Dummy{msg: msg}
}

// Send records s.
func (d *Dummy) Send(s string) error {
	d.msg.Infof("sent: %s", s)
	d.mu.Lock()
	d.sent = append(d.sent, s)
	d.mu.Unlock()
	return nil
}

// Sent returns and forgets the strings sent so far.
func (d *Dummy) Sent() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	sent := d.sent
	d.sent = nil
	return sent
}

// Inject delivers s to the subscribers as if it was received.
func (d *Dummy) Inject(s string) {
	d.dispatch(s)
}

// Close implements io.Closer.
func (d *Dummy) Close() error { return nil }
