// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package comm

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-daq/tdaq/log"
)

// Scheduler sends query commands, either on demand or periodically
// from a background goroutine.
//
// All sends go through the scheduler's sync root so that a device never
// receives interleaved query rounds.
type Scheduler struct {
	dict *QueryDict
	msg  log.MsgStream

	root sync.Mutex

	mu   sync.Mutex // protects stop and done
	stop chan struct{}
	done chan struct{}
}

// NewScheduler creates a scheduler sending the commands of dict.
// A nil msg stream logs to stdout.
func NewScheduler(dict *QueryDict, msg log.MsgStream) *Scheduler {
	if msg == nil {
		msg = log.NewMsgStream("comm", log.LvlInfo, os.Stdout)
	}
	return &Scheduler{dict: dict, msg: msg}
}

// Dict returns the query commands dictionary.
func (s *Scheduler) Dict() *QueryDict { return s.dict }

// SyncRoot returns the lock serializing all query rounds.
func (s *Scheduler) SyncRoot() sync.Locker { return &s.root }

// SendImmediately sends all query commands whose send mode satisfies pred.
func (s *Scheduler) SendImmediately(pred func(SendMode) bool) error {
	s.root.Lock()
	defer s.root.Unlock()
	return s.dict.SendAll(pred)
}

// StartSending stops any running periodic sending, then sends the query
// commands selected by pred once immediately and then every period.
// Errors during periodic rounds are logged and otherwise ignored.
func (s *Scheduler) StartSending(pred func(SendMode) bool, period time.Duration) error {
	if period <= 0 {
		return fmt.Errorf("comm: invalid scheduler period %v", period)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	var (
		stop = make(chan struct{})
		done = make(chan struct{})
	)
	s.stop = stop
	s.done = done
	go s.loop(pred, period, stop, done)
	return nil
}

// StopSending stops periodic sending. It is a no-op if periodic sending
// is not running. When StopSending returns, no periodic round is in
// flight anymore; it must thus not be called from a message callback
// triggered by a periodic round.
func (s *Scheduler) StopSending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	<-s.done
	s.stop = nil
	s.done = nil
}

// Close stops periodic sending.
func (s *Scheduler) Close() error {
	s.StopSending()
	return nil
}

func (s *Scheduler) loop(pred func(SendMode) bool, period time.Duration, stop, done chan struct{}) {
	defer close(done)

	tick := time.NewTicker(period)
	defer tick.Stop()

	for {
		select {
		case <-stop:
			return
		default:
		}

		err := s.SendImmediately(pred)
		if err != nil {
			s.msg.Warnf("could not send periodic query commands: %+v", err)
		}

		select {
		case <-stop:
			return
		case <-tick.C:
		}
	}
}
