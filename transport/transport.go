// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package transport provides the links carrying c't Lab commands:
// a serial line, a direct SPI bus and a dummy link for tests and demos.
package transport // import "github.com/go-lpc/ctlab/transport"

import (
	"os"
	"sync"

	"github.com/go-daq/tdaq/log"
)

func defaultMsg(name string) log.MsgStream {
	return log.NewMsgStream(name, log.LvlInfo, os.Stdout)
}

// fanout dispatches received strings to subscribers, in subscription order.
type fanout struct {
	mu   sync.RWMutex
	subs map[int]func(string)
	ids  []int
	next int
}

func (f *fanout) Subscribe(fn func(s string)) (cancel func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs == nil {
		f.subs = make(map[int]func(string))
	}
	id := f.next
	f.next++
	f.subs[id] = fn
	f.ids = append(f.ids, id)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

func (f *fanout) dispatch(s string) {
	f.mu.RLock()
	fns := make([]func(string), 0, len(f.subs))
	for _, id := range f.ids {
		if fn, ok := f.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	f.mu.RUnlock()

	for _, fn := range fns {
		fn(s)
	}
}
