// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package comm

import (
	"fmt"
	"sync"
)

// Cache holds the latest received message of every registered channel.
type Cache struct {
	mu   sync.RWMutex
	ctrs map[Channel]*Container
}

// NewCache creates a new, empty, message cache.
func NewCache() *Cache {
	return &Cache{ctrs: make(map[Channel]*Container)}
}

// Register creates the message container for ch.
func (c *Cache) Register(ch Channel) (*Container, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, dup := c.ctrs[ch]; dup {
		return nil, fmt.Errorf("comm: could not register message channel %v: %w", ch, ErrDuplicateKey)
	}
	ctr := newContainer(ch)
	c.ctrs[ch] = ctr
	return ctr, nil
}

// UnregisterWhere removes all containers whose channel satisfies pred
// and returns the number of removed containers.
func (c *Cache) UnregisterWhere(pred func(Channel) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for ch := range c.ctrs {
		if pred(ch) {
			delete(c.ctrs, ch)
			n++
		}
	}
	return n
}

// Container returns the message container registered for ch.
func (c *Cache) Container(ch Channel) (*Container, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ctr, ok := c.ctrs[ch]
	if !ok {
		return nil, fmt.Errorf("comm: could not find message channel %v: %w", ch, ErrNotFound)
	}
	return ctr, nil
}

// Len returns the number of registered channels.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ctrs)
}

// Update stores a batch of received messages.
// Messages for unregistered channels are dropped.
func (c *Cache) Update(msgs ...Message) {
	for _, msg := range msgs {
		c.mu.RLock()
		ctr, ok := c.ctrs[msg.Channel]
		c.mu.RUnlock()
		if !ok {
			continue
		}
		ctr.update(msg)
	}
}
