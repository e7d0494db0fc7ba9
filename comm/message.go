// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package comm

import (
	"fmt"
	"strconv"
	"sync"
)

// Message is a value received from a channel.
// The zero Message (empty raw value) is the empty message.
type Message struct {
	Channel     Channel
	Raw         string
	Description string
}

// IsEmpty reports whether no value was ever received.
func (m Message) IsEmpty() bool { return m.Raw == "" }

// Uint32 decodes the raw value. The empty message decodes to 0.
func (m Message) Uint32() (uint32, error) {
	if m.IsEmpty() {
		return 0, nil
	}
	v, err := strconv.ParseUint(m.Raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("comm: could not decode message %q from channel %v: %w", m.Raw, m.Channel, err)
	}
	return uint32(v), nil
}

// Int32 decodes the raw value. The empty message decodes to 0.
// Values above the int32 range are reinterpreted from their 32-bit pattern.
func (m Message) Int32() (int32, error) {
	v, err := m.Uint32()
	if err == nil {
		return int32(v), nil
	}
	i, err := strconv.ParseInt(m.Raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("comm: could not decode message %q from channel %v: %w", m.Raw, m.Channel, err)
	}
	return int32(i), nil
}

// Float64 decodes the raw value. The empty message decodes to 0.
func (m Message) Float64() (float64, error) {
	if m.IsEmpty() {
		return 0, nil
	}
	v, err := strconv.ParseFloat(m.Raw, 64)
	if err != nil {
		return 0, fmt.Errorf("comm: could not decode message %q from channel %v: %w", m.Raw, m.Channel, err)
	}
	return v, nil
}

// Bool decodes the raw value: any non-zero integer is true.
func (m Message) Bool() (bool, error) {
	v, err := m.Uint32()
	return v != 0, err
}

// Container holds the latest message received for a channel.
type Container struct {
	ch Channel

	mu   sync.RWMutex
	msg  Message
	subs map[int]func(Message)
	next int
}

func newContainer(ch Channel) *Container {
	return &Container{
		ch:   ch,
		msg:  Message{Channel: ch},
		subs: make(map[int]func(Message)),
	}
}

// Chan returns the channel of the container.
func (c *Container) Chan() Channel { return c.ch }

// Message returns the latest message. It is empty until the first
// message was received.
func (c *Container) Message() Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.msg
}

// Subscribe registers fn to be called with every message whose raw
// value differs from the previous one. The returned function cancels
// the subscription.
func (c *Container) Subscribe(fn func(Message)) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.next
	c.next++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// update replaces the latest message and notifies subscribers if the
// raw value changed.
func (c *Container) update(msg Message) bool {
	c.mu.Lock()
	if !c.msg.IsEmpty() && c.msg.Raw == msg.Raw {
		c.msg = msg
		c.mu.Unlock()
		return false
	}
	c.msg = msg
	subs := make([]func(Message), 0, len(c.subs))
	for i := 0; i < c.next; i++ {
		if fn, ok := c.subs[i]; ok {
			subs = append(subs, fn)
		}
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(msg)
	}
	return true
}
