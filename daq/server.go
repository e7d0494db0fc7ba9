// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package daq exposes a c't Lab appliance as a tdaq run-control process:
// the scope sample memory is captured and read out during a run, and
// universal counter readings are published as they change.
package daq // import "github.com/go-lpc/ctlab/daq"

import (
	"bytes"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/ctlab/comm"
	"github.com/go-lpc/ctlab/device"
	"github.com/go-lpc/ctlab/internal/config"
	"github.com/go-lpc/ctlab/scope"
	"github.com/go-lpc/ctlab/siggen"
)

const (
	queueSize     = 64
	defaultWindow = 1024
)

// Server drives one appliance on behalf of a tdaq run-control.
type Server struct {
	name string

	open func(cfg device.Config, opts ...device.Option) (*device.Appliance, error)

	mu     sync.Mutex
	cfg    config.Config
	window struct {
		start uint32
		n     uint32
	}
	app     *device.Appliance
	scope   *scope.Scope
	gen     *siggen.Generator
	cancel  func()
	blocks  int
	samples chan []byte
	counter chan []byte
}

// New creates a server named name.
func New(name string) *Server {
	srv := &Server{
		name: name,
		open: device.Open,
		cfg:  config.Default(),
	}
	srv.window.n = defaultWindow
	return srv
}

// OnConfig loads the appliance configuration.
//
// The request body holds the configuration file path (an empty path
// selects the defaults), the first captured address and the number of
// captured samples.
func (srv *Server) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")

	dec := tdaq.NewDecoder(bytes.NewReader(req.Body))
	fname := dec.ReadStr()
	start := dec.ReadU32()
	n := dec.ReadU32()
	if err := dec.Err(); err != nil {
		ctx.Msg.Errorf("could not decode /config request: %+v", err)
		return fmt.Errorf("could not decode /config request: %w", err)
	}

	cfg := config.Default()
	if fname != "" {
		var err error
		cfg, err = config.Load(fname)
		if err != nil {
			ctx.Msg.Errorf("could not load configuration: %+v", err)
			return fmt.Errorf("could not load configuration: %w", err)
		}
	}

	if n == 0 || uint64(start)+uint64(n)-1 > scope.MaxAddress {
		return fmt.Errorf("invalid capture window [0x%x, +%d)", start, n)
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()

	srv.cfg = cfg
	srv.window.start = start
	srv.window.n = n
	return nil
}

// OnInit opens the appliance and creates the scope and the signal generator.
func (srv *Server) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")

	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.app != nil {
		return fmt.Errorf("appliance already initialized")
	}

	app, err := srv.open(srv.cfg.Device(), device.WithMsgStream(ctx.Msg))
	if err != nil {
		ctx.Msg.Errorf("could not open appliance: %+v", err)
		return fmt.Errorf("could not open appliance: %w", err)
	}

	err = srv.init(ctx.Msg, app)
	if err != nil {
		_ = app.Close()
		ctx.Msg.Errorf("could not initialize appliance: %+v", err)
		return fmt.Errorf("could not initialize appliance: %w", err)
	}
	return nil
}

func (srv *Server) init(msg log.MsgStream, app *device.Appliance) error {
	conn, err := app.Fpga(srv.cfg.MainChannel())
	if err != nil {
		return fmt.Errorf("could not connect to FPGA board: %w", err)
	}

	opts := append(srv.cfg.StorageOptions(), scope.WithMsgStream(msg))
	sc, err := scope.Open(conn, app.Accessor(), opts...)
	if err != nil {
		return fmt.Errorf("could not open scope: %w", err)
	}

	gen, err := siggen.New(conn)
	if err != nil {
		return fmt.Errorf("could not create signal generator: %w", err)
	}

	srv.app = app
	srv.scope = sc
	srv.gen = gen
	srv.samples = make(chan []byte, queueSize)
	srv.counter = make(chan []byte, queueSize)
	srv.blocks = 0

	srv.cancel = gen.Counter().OnValue(func(v float64) {
		select {
		case srv.counter <- encodeCounter(time.Now(), v):
		default:
			msg.Warnf("counter queue full: dropping reading %g", v)
		}
	})
	return nil
}

// OnReset applies the signal generator defaults.
func (srv *Server) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")

	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.app == nil {
		return fmt.Errorf("appliance not initialized")
	}

	err := srv.gen.Reset()
	if err != nil {
		return fmt.Errorf("could not reset signal generator: %w", err)
	}
	err = srv.app.SendSetCommandsForModifiedValues()
	if err != nil {
		return fmt.Errorf("could not send signal generator settings: %w", err)
	}
	srv.blocks = 0
	return nil
}

// OnStart starts the periodic counter queries.
func (srv *Server) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")

	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.app == nil {
		return fmt.Errorf("appliance not initialized")
	}

	err := srv.app.StartSendingQueryCommands(comm.Only(comm.Periodic), srv.cfg.Appliance.QueryPeriod.Duration)
	if err != nil {
		return fmt.Errorf("could not start periodic queries: %w", err)
	}
	return nil
}

// OnStop stops the periodic counter queries.
func (srv *Server) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	ctx.Msg.Debugf("received /stop command... -> blocks=%d", srv.blocks)
	if srv.app == nil {
		return nil
	}
	srv.app.StopSendingQueryCommands()
	return nil
}

// OnQuit closes the appliance.
func (srv *Server) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")

	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.app == nil {
		return nil
	}
	srv.cancel()
	err := srv.app.Close()
	srv.app = nil
	if err != nil {
		return fmt.Errorf("could not close appliance: %w", err)
	}
	return nil
}

// Samples outputs captured sample blocks.
func (srv *Server) Samples(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
	case blk := <-srv.samples:
		dst.Body = blk
	}
	return nil
}

// Counter outputs universal counter readings.
func (srv *Server) Counter(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
	case v := <-srv.counter:
		dst.Body = v
	}
	return nil
}

// Run captures and reads out the sample window until the run stops.
func (srv *Server) Run(ctx tdaq.Context) error {
	for {
		select {
		case <-ctx.Ctx.Done():
			return nil
		default:
		}

		blk, err := srv.acquire()
		if err != nil {
			ctx.Msg.Errorf("could not acquire samples: %+v", err)
			return fmt.Errorf("could not acquire samples: %w", err)
		}

		select {
		case srv.samples <- blk:
		case <-ctx.Ctx.Done():
			return nil
		}
	}
}

func (srv *Server) acquire() ([]byte, error) {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.app == nil {
		return nil, fmt.Errorf("appliance not initialized")
	}

	var (
		start = srv.window.start
		n     = srv.window.n
		end   = start + n - 1
	)
	err := srv.scope.Capture(start, end)
	if err != nil {
		return nil, fmt.Errorf("could not capture [0x%x, 0x%x]: %w", start, end, err)
	}

	vs, err := srv.scope.ReadAll(start, int(n))
	if err != nil {
		return nil, fmt.Errorf("could not read [0x%x, 0x%x]: %w", start, end, err)
	}

	blk := encodeSamples(uint32(srv.blocks), start, vs)
	srv.blocks++
	return blk, nil
}

// encodeSamples encodes a sample block: block number, first address,
// number of samples then the samples.
func encodeSamples(id, start uint32, vs []uint8) []byte {
	buf := new(bytes.Buffer)
	enc := tdaq.NewEncoder(buf)
	enc.WriteU32(id)
	enc.WriteU32(start)
	enc.WriteU32(uint32(len(vs)))
	buf.Write(vs)
	return buf.Bytes()
}

// encodeCounter encodes a counter reading: unix time in nanoseconds then
// the IEEE-754 measured value.
func encodeCounter(t time.Time, v float64) []byte {
	buf := new(bytes.Buffer)
	enc := tdaq.NewEncoder(buf)
	enc.WriteU64(uint64(t.UnixNano()))
	enc.WriteU64(math.Float64bits(v))
	return buf.Bytes()
}
