// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package device wires a c't Lab link (text protocol or direct SPI) to
// the command dictionaries, the query scheduler and the message cache,
// and hands out per-board sessions.
package device // import "github.com/go-lpc/ctlab/device"

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/ctlab/comm"
	"github.com/go-lpc/ctlab/fpga"
	"github.com/go-lpc/ctlab/proto"
	"github.com/go-lpc/ctlab/spidirect"
	"github.com/go-lpc/ctlab/transport"
)

// TextLink carries text protocol strings.
type TextLink interface {
	proto.StringSender
	proto.StringReceiver
	io.Closer
}

// SPIBus carries register values over SPI.
type SPIBus interface {
	spidirect.Bus
	io.Closer
}

// Option configures an Appliance.
type Option func(*config)

type config struct {
	msg     log.MsgStream
	builder *proto.Builder
}

func newConfig(opts []Option) config {
	cfg := config{
		msg: log.NewMsgStream("ctlab", log.LvlInfo, os.Stdout),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithMsgStream sets the message stream of the appliance.
func WithMsgStream(msg log.MsgStream) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}

// WithBuilder sets the command string builder of a text protocol link.
func WithBuilder(b *proto.Builder) Option {
	return func(cfg *config) {
		cfg.builder = b
	}
}

// Appliance is a set of c't Lab boards reachable through one link.
type Appliance struct {
	msg   log.MsgStream
	set   *comm.SetDict
	qry   *comm.QueryDict
	sch   *comm.Scheduler
	cache *comm.Cache
	acc   *fpga.ValuesAccessor

	closers []io.Closer

	// channel returns the channel of register reg of board main.
	channel func(main uint8, reg uint16) (comm.Channel, error)
	// detach returns the predicate selecting the channels of board main.
	detach func(main uint8) func(comm.Channel) bool

	mu       sync.Mutex
	sessions map[uint8]*Session
}

func newAppliance(cfg config, set comm.Sender[*comm.SetCommand], qry comm.Sender[*comm.QueryCommand]) *Appliance {
	app := &Appliance{
		msg:      cfg.msg,
		set:      comm.NewSetDict(set),
		qry:      comm.NewQueryDict(qry),
		cache:    comm.NewCache(),
		sessions: make(map[uint8]*Session),
	}
	app.sch = comm.NewScheduler(app.qry, cfg.msg)
	app.acc = fpga.NewAccessor(app.set, app.sch)
	return app
}

// NewCtLab creates an appliance speaking the c't Lab text protocol
// over link.
func NewCtLab(link TextLink, opts ...Option) *Appliance {
	cfg := newConfig(opts)
	app := newAppliance(cfg,
		proto.NewSetSender(link, cfg.builder),
		proto.NewQuerySender(link, cfg.builder),
	)
	app.channel = func(main uint8, reg uint16) (comm.Channel, error) {
		return comm.Channel{Main: main, Sub: reg}, nil
	}
	app.detach = comm.SameMain
	rcv := proto.NewReceiver(link, app.cache)
	app.closers = []io.Closer{rcv, link}
	return app
}

// NewSPI creates an appliance driving a single board over a direct SPI bus.
func NewSPI(bus SPIBus, opts ...Option) *Appliance {
	var (
		cfg  = newConfig(opts)
		app  *Appliance
		link = spidirect.NewLink(bus, func(msg comm.Message) { app.cache.Update(msg) })
	)
	app = newAppliance(cfg, link.SetSender(), link.QuerySender())
	app.channel = func(main uint8, reg uint16) (comm.Channel, error) {
		if main != spidirect.MainChannel {
			return comm.Channel{}, fmt.Errorf("device: SPI link has no board %d", main)
		}
		return spidirect.Channel(reg)
	}
	app.detach = func(uint8) func(comm.Channel) bool {
		return func(comm.Channel) bool { return true }
	}
	app.closers = []io.Closer{bus}
	return app
}

// NewDummy creates an appliance over a dummy link, logging every sent
// command.
func NewDummy(opts ...Option) *Appliance {
	cfg := newConfig(opts)
	return NewCtLab(transport.NewDummy(cfg.msg), opts...)
}

// Config describes how to reach an appliance.
type Config struct {
	Protocol string // "ctlab", "spi" or "dummy"

	Port string // serial port of a "ctlab" appliance
	Baud int

	SPIAddressDevice string
	SPIDataDevice    string
	SPISpeed         uint32
}

// Open opens the link described by cfg and creates the appliance.
func Open(cfg Config, opts ...Option) (*Appliance, error) {
	msg := newConfig(opts).msg
	switch cfg.Protocol {
	case "ctlab", "":
		link, err := transport.OpenSerial(cfg.Port, cfg.Baud, msg)
		if err != nil {
			return nil, fmt.Errorf("device: could not open c't Lab link: %w", err)
		}
		return NewCtLab(link, opts...), nil
	case "spi":
		var (
			addr = cfg.SPIAddressDevice
			data = cfg.SPIDataDevice
		)
		if addr == "" {
			addr = transport.DefaultSPIAddressDevice
		}
		if data == "" {
			data = transport.DefaultSPIDataDevice
		}
		bus, err := transport.OpenSPI(addr, data, cfg.SPISpeed)
		if err != nil {
			return nil, fmt.Errorf("device: could not open SPI link: %w", err)
		}
		return NewSPI(bus, opts...), nil
	case "dummy":
		return NewDummy(opts...), nil
	default:
		return nil, fmt.Errorf("device: unknown protocol %q", cfg.Protocol)
	}
}

// Session opens the session of board main.
// A board may only have one open session at a time.
func (app *Appliance) Session(main uint8) (*Session, error) {
	app.mu.Lock()
	defer app.mu.Unlock()

	if _, dup := app.sessions[main]; dup {
		return nil, fmt.Errorf("device: could not open session for board %d: %w", main, comm.ErrDuplicateKey)
	}
	sess := &Session{app: app, main: main, detach: app.detach(main)}
	app.sessions[main] = sess
	return sess, nil
}

// Fpga opens a connection to the FPGA board main.
func (app *Appliance) Fpga(main uint8) (*fpga.Conn, error) {
	sess, err := app.Session(main)
	if err != nil {
		return nil, err
	}
	return fpga.NewConn(sess), nil
}

// Accessor returns the values accessor of the appliance.
func (app *Appliance) Accessor() *fpga.ValuesAccessor { return app.acc }

// Scheduler returns the query command scheduler of the appliance.
func (app *Appliance) Scheduler() *comm.Scheduler { return app.sch }

// Cache returns the received messages cache of the appliance.
func (app *Appliance) Cache() *comm.Cache { return app.cache }

// SendSetCommandsForModifiedValues sends all modified set commands.
func (app *Appliance) SendSetCommandsForModifiedValues() error {
	return app.set.SendModified()
}

// SendQueryCommands sends the query commands whose send mode satisfies pred.
func (app *Appliance) SendQueryCommands(pred func(comm.SendMode) bool) error {
	return app.sch.SendImmediately(pred)
}

// StartSendingQueryCommands starts sending the query commands whose
// send mode satisfies pred every period.
func (app *Appliance) StartSendingQueryCommands(pred func(comm.SendMode) bool, period time.Duration) error {
	app.msg.Debugf("starting periodic queries (period=%v)...", period)
	return app.sch.StartSending(pred, period)
}

// StopSendingQueryCommands stops sending query commands periodically.
func (app *Appliance) StopSendingQueryCommands() {
	app.sch.StopSending()
}

// Close stops the scheduler and closes the link.
func (app *Appliance) Close() error {
	err := app.sch.Close()
	for _, c := range app.closers {
		if e := c.Close(); e != nil && err == nil {
			err = e
		}
	}
	if err != nil {
		return fmt.Errorf("device: could not close appliance: %w", err)
	}
	return nil
}

func (app *Appliance) release(main uint8) {
	app.mu.Lock()
	delete(app.sessions, main)
	app.mu.Unlock()
}
