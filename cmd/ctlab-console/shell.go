// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/ctlab/comm"
	"github.com/go-lpc/ctlab/device"
	"github.com/go-lpc/ctlab/fpga"
	"github.com/go-lpc/ctlab/internal/config"
	"github.com/go-lpc/ctlab/scope"
	"github.com/go-lpc/ctlab/siggen"
)

type command struct {
	usage string
	help  string
	run   func(sh *shell, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"set":     {"set <reg> <value>", "set a raw FPGA register (sent by flush)", (*shell).set},
		"get":     {"get <reg>", "query a raw FPGA register and print its last value", (*shell).get},
		"flush":   {"flush", "send the set commands of all modified registers", (*shell).flush},
		"poll":    {"poll <period>|stop", "start or stop periodic queries", (*shell).poll},
		"write":   {"write <addr> <v1> [v2...]", "write values to the sample memory", (*shell).write},
		"read":    {"read <addr> <n>", "read n values from the sample memory", (*shell).read},
		"capture": {"capture <start> <end>", "capture samples into the sample memory", (*shell).capture},
		"freq":    {"freq <dds> <hz>", "set the frequency of a DDS generator", (*shell).freq},
		"counter": {"counter", "print the last universal counter reading", (*shell).counter},
	}
}

type shell struct {
	w   io.Writer
	msg log.MsgStream

	app  *device.Appliance
	conn *fpga.Conn
	sc   *scope.Scope
	gen  *siggen.Generator

	sets map[uint16]*fpga.Setter
	gets map[uint16]*fpga.Getter
}

func newShell(w io.Writer, app *device.Appliance, cfg config.Config, msg log.MsgStream) (*shell, error) {
	conn, err := app.Fpga(cfg.MainChannel())
	if err != nil {
		return nil, fmt.Errorf("could not connect to FPGA board: %w", err)
	}

	opts := append(cfg.StorageOptions(), scope.WithMsgStream(msg))
	sc, err := scope.Open(conn, app.Accessor(), opts...)
	if err != nil {
		return nil, fmt.Errorf("could not open scope: %w", err)
	}

	gen, err := siggen.New(conn)
	if err != nil {
		return nil, fmt.Errorf("could not create signal generator: %w", err)
	}

	return &shell{
		w:    w,
		msg:  msg,
		app:  app,
		conn: conn,
		sc:   sc,
		gen:  gen,
		sets: make(map[uint16]*fpga.Setter),
		gets: make(map[uint16]*fpga.Getter),
	}, nil
}

// exec runs a single command line.
// exec reports whether the shell should quit.
func (sh *shell) exec(line string) (bool, error) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return false, nil
	}

	name := strings.ToLower(args[0])
	switch name {
	case "quit", "exit":
		return true, nil
	case "help":
		sh.help()
		return false, nil
	}

	cmd, ok := commands[name]
	if !ok {
		return false, fmt.Errorf("unknown command %q", args[0])
	}

	err := cmd.run(sh, args[1:])
	if err != nil {
		return false, fmt.Errorf("%s: %w", name, err)
	}
	return false, nil
}

func (sh *shell) complete(line string) []string {
	var out []string
	for _, name := range sh.names() {
		if strings.HasPrefix(name, strings.ToLower(line)) {
			out = append(out, name)
		}
	}
	return out
}

func (sh *shell) names() []string {
	names := make([]string, 0, len(commands)+3)
	for name := range commands {
		names = append(names, name)
	}
	names = append(names, "help", "quit", "exit")
	sort.Strings(names)
	return names
}

func (sh *shell) help() {
	fmt.Fprintf(sh.w, "commands:\n")
	for _, name := range sh.names() {
		cmd, ok := commands[name]
		if !ok {
			continue
		}
		fmt.Fprintf(sh.w, "  %-28s %s\n", cmd.usage, cmd.help)
	}
	fmt.Fprintf(sh.w, "  %-28s %s\n", "help", "print this help")
	fmt.Fprintf(sh.w, "  %-28s %s\n", "quit", "leave the console")
}

func (sh *shell) set(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: %s", commands["set"].usage)
	}
	reg, err := parseRegister(args[0])
	if err != nil {
		return err
	}
	v, err := strconv.ParseUint(args[1], 0, 32)
	if err != nil {
		return fmt.Errorf("could not parse value %q: %w", args[1], err)
	}

	set, ok := sh.sets[reg]
	if !ok {
		set, err = sh.conn.ValueSetter(reg, comm.OnDemand)
		if err != nil {
			return err
		}
		sh.sets[reg] = set
	}
	set.SetUint32(uint32(v))
	return nil
}

func (sh *shell) get(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", commands["get"].usage)
	}
	reg, err := parseRegister(args[0])
	if err != nil {
		return err
	}

	get, ok := sh.gets[reg]
	if !ok {
		get, err = sh.conn.ValueGetter(reg, comm.OnDemand)
		if err != nil {
			return err
		}
		sh.gets[reg] = get
	}

	err = sh.app.SendQueryCommands(comm.Only(comm.OnDemand))
	if err != nil {
		return err
	}

	v, err := get.Uint32()
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.w, "%d: %d (0x%x)\n", reg, v, v)
	return nil
}

func (sh *shell) flush(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: %s", commands["flush"].usage)
	}
	return sh.app.SendSetCommandsForModifiedValues()
}

func (sh *shell) poll(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", commands["poll"].usage)
	}
	if args[0] == "stop" {
		sh.app.StopSendingQueryCommands()
		return nil
	}
	period, err := time.ParseDuration(args[0])
	if err != nil {
		return fmt.Errorf("could not parse period %q: %w", args[0], err)
	}
	if period <= 0 {
		return fmt.Errorf("invalid period %v", period)
	}
	return sh.app.StartSendingQueryCommands(comm.Only(comm.Periodic), period)
}

func (sh *shell) write(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: %s", commands["write"].usage)
	}
	addr, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	vs := make([]uint8, len(args)-1)
	for i, arg := range args[1:] {
		v, err := strconv.ParseUint(arg, 0, 8)
		if err != nil {
			return fmt.Errorf("could not parse value %q: %w", arg, err)
		}
		vs[i] = uint8(v)
	}
	return sh.sc.Write(addr, vs)
}

func (sh *shell) read(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: %s", commands["read"].usage)
	}
	addr, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(args[1])
	if err != nil || n < 0 {
		return fmt.Errorf("invalid number of values %q", args[1])
	}

	vs, err := sh.sc.ReadAll(addr, n)
	if err != nil {
		return err
	}

	const width = 16
	for i := 0; i < len(vs); i += width {
		j := i + width
		if j > len(vs) {
			j = len(vs)
		}
		fmt.Fprintf(sh.w, "0x%05x:", addr+uint32(i))
		for _, v := range vs[i:j] {
			fmt.Fprintf(sh.w, " %02x", v)
		}
		fmt.Fprintf(sh.w, "\n")
	}
	return nil
}

func (sh *shell) capture(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: %s", commands["capture"].usage)
	}
	start, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	end, err := parseAddress(args[1])
	if err != nil {
		return err
	}
	if end < start {
		return fmt.Errorf("end address 0x%x before start address 0x%x", end, start)
	}
	return sh.sc.Capture(start, end)
}

func (sh *shell) freq(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: %s", commands["freq"].usage)
	}
	i, err := strconv.Atoi(args[0])
	if err != nil || i < 0 || i >= siggen.NumDDS {
		return fmt.Errorf("invalid DDS generator %q", args[0])
	}
	hz, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("could not parse frequency %q: %w", args[1], err)
	}

	dds := sh.gen.DDS(i)
	err = dds.SetFrequency(hz)
	if err != nil {
		return err
	}
	err = sh.app.SendSetCommandsForModifiedValues()
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.w, "dds%d: %g Hz\n", i, dds.Frequency())
	return nil
}

func (sh *shell) counter(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: %s", commands["counter"].usage)
	}
	ctr := sh.gen.Counter()
	v, err := ctr.Value()
	if err != nil {
		return err
	}
	active, err := ctr.InputActive()
	if err != nil {
		return err
	}
	overflow, err := ctr.Overflow()
	if err != nil {
		return err
	}

	unit := "Hz"
	if ctr.Measurement() == siggen.Period {
		unit = "s"
	}
	fmt.Fprintf(sh.w,
		"counter: %g %s (input=%v, prescaler=%v, active=%v, overflow=%v)\n",
		v, unit, ctr.Input(), ctr.Prescaler(), active, overflow,
	)
	return nil
}

func parseRegister(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("could not parse register %q: %w", s, err)
	}
	return uint16(v), nil
}

func parseAddress(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("could not parse address %q: %w", s, err)
	}
	return uint32(v), nil
}
