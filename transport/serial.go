// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-daq/tdaq/log"
	"go.bug.st/serial"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultBaudRate is the baud rate of the c't Lab serial interface.
	DefaultBaudRate = 38400

	newLine     = "\r\n"
	readTimeout = 1 * time.Second
)

var (
	serialOpen = serialOpenImpl
)

func serialOpenImpl(name string, baud int) (io.ReadWriteCloser, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}

	err = port.SetReadTimeout(readTimeout)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("could not set read timeout: %w", err)
	}
	return port, nil
}

// Serial is a line-oriented serial link.
// Strings are sent and received as CRLF-terminated ASCII lines.
type Serial struct {
	fanout

	msg  log.MsgStream
	port io.ReadWriteCloser

	wmu  sync.Mutex // serializes writes
	quit chan struct{}
	once sync.Once
	grp  errgroup.Group
}

// OpenSerial opens the named serial port (8N1) at the provided baud rate.
// A non-positive baud rate selects DefaultBaudRate. A nil msg stream
// logs to stdout.
func OpenSerial(name string, baud int, msg log.MsgStream) (*Serial, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	port, err := serialOpen(name, baud)
	if err != nil {
		return nil, fmt.Errorf("transport: could not open serial port %q: %w", name, err)
	}
	return NewSerial(port, msg), nil
}

// NewSerial creates a line-oriented link over an already opened port
// and starts reading from it.
func NewSerial(port io.ReadWriteCloser, msg log.MsgStream) *Serial {
	if msg == nil {
		msg = defaultMsg("serial")
	}
	s := &Serial{
		msg:  msg,
		port: port,
		quit: make(chan struct{}),
	}
	s.grp.Go(s.loop)
	return s
}

// Send writes s followed by CRLF.
func (s *Serial) Send(line string) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	_, err := io.WriteString(s.port, line+newLine)
	if err != nil {
		return fmt.Errorf("transport: could not write %q to serial port: %w", line, err)
	}
	return nil
}

// Close stops the read loop and closes the port.
func (s *Serial) Close() error {
	var err error
	s.once.Do(func() {
		close(s.quit)
		err = s.port.Close()
		if e := s.grp.Wait(); e != nil && err == nil {
			err = e
		}
	})
	if err != nil {
		return fmt.Errorf("transport: could not close serial port: %w", err)
	}
	return nil
}

func (s *Serial) loop() error {
	var (
		buf  = make([]byte, 256)
		line []byte
		sep  = []byte(newLine)
	)
	for {
		n, err := s.port.Read(buf)
		line = append(line, buf[:n]...)
		for {
			i := bytes.Index(line, sep)
			if i < 0 {
				break
			}
			s.dispatch(string(line[:i]))
			line = append(line[:0], line[i+len(sep):]...)
		}

		select {
		case <-s.quit:
			return nil
		default:
		}

		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			return nil
		default:
			s.msg.Errorf("could not read from serial port: %+v", err)
			return fmt.Errorf("transport: could not read from serial port: %w", err)
		}
	}
}
