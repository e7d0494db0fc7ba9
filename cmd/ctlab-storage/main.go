// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// ctlab-storage writes, reads back and captures the sample memory of a
// c't Lab FPGA scope.
//
// Usage: ctlab-storage [OPTIONS] [VALUE1 [VALUE2 ...]|FILE]
//
// Example:
//
//  $> ctlab-storage -cfg ./ctlab.toml -op write -addr 0x100 1 2 3 0xff
//  $> ctlab-storage -cfg ./ctlab.toml -op read -addr 0x100 -n 4
//  0x00100: 01 02 03 ff
//  $> ctlab-storage -cfg ./ctlab.toml -op capture -addr 0 -end 0x3ff
//  $> ctlab-storage -cfg ./ctlab.toml -op load -addr 0 ./sine.bin
package main // import "github.com/go-lpc/ctlab/cmd/ctlab-storage"

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	tdaqlog "github.com/go-daq/tdaq/log"
	"github.com/go-lpc/ctlab/device"
	"github.com/go-lpc/ctlab/internal/config"
	"github.com/go-lpc/ctlab/internal/mmap"
	"github.com/go-lpc/ctlab/scope"
)

func main() {
	log.SetPrefix("ctlab-storage: ")
	log.SetFlags(0)

	var (
		fname = flag.String("cfg", "", "path to TOML configuration file")
		op    = flag.String("op", "read", "operation to perform (write|read|capture|load)")
		addr  = flag.String("addr", "0", "first sample memory address")
		n     = flag.Int("n", 16, "number of values to read")
		end   = flag.String("end", "0", "last sample memory address to capture")
	)

	flag.Usage = func() {
		fmt.Printf(`ctlab-storage writes, reads back and captures the sample memory of a c't Lab FPGA scope.

Usage: ctlab-storage [OPTIONS] [VALUE1 [VALUE2 ...]|FILE]

Example:

 $> ctlab-storage -cfg ./ctlab.toml -op write -addr 0x100 1 2 3 0xff
 $> ctlab-storage -cfg ./ctlab.toml -op read -addr 0x100 -n 4
 0x00100: 01 02 03 ff
 $> ctlab-storage -cfg ./ctlab.toml -op capture -addr 0 -end 0x3ff
 $> ctlab-storage -cfg ./ctlab.toml -op load -addr 0 ./sine.bin

Options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	cfg := config.Default()
	if *fname != "" {
		var err error
		cfg, err = config.Load(*fname)
		if err != nil {
			log.Fatalf("could not load configuration: %+v", err)
		}
	}

	req, err := newRequest(*op, *addr, *end, *n, flag.Args())
	if err != nil {
		flag.Usage()
		log.Fatalf("invalid request: %+v", err)
	}

	msg := tdaqlog.NewMsgStream("ctlab-storage", cfg.Log.MsgLevel(), os.Stderr)
	app, err := device.Open(cfg.Device(), device.WithMsgStream(msg))
	if err != nil {
		log.Fatalf("could not open appliance: %+v", err)
	}
	defer app.Close()

	conn, err := app.Fpga(cfg.MainChannel())
	if err != nil {
		log.Fatalf("could not connect to FPGA board: %+v", err)
	}

	opts := append(cfg.StorageOptions(), scope.WithMsgStream(msg))
	sc, err := scope.Open(conn, app.Accessor(), opts...)
	if err != nil {
		log.Fatalf("could not open scope: %+v", err)
	}

	err = process(os.Stdout, sc, req)
	if err != nil {
		_ = app.Close()
		log.Fatalf("could not %s sample memory: %+v", req.op, err)
	}
}

type request struct {
	op     string
	addr   uint32
	end    uint32
	n      int
	values []uint8
	file   string
}

func newRequest(op, addr, end string, n int, args []string) (request, error) {
	req := request{op: strings.ToLower(op), n: n}

	v, err := strconv.ParseUint(addr, 0, 32)
	if err != nil {
		return req, fmt.Errorf("could not parse address %q: %w", addr, err)
	}
	req.addr = uint32(v)

	switch req.op {
	case "read":
		if n < 0 {
			return req, fmt.Errorf("invalid number of values %d", n)
		}
	case "write":
		if len(args) == 0 {
			return req, fmt.Errorf("missing values to write")
		}
		req.values = make([]uint8, len(args))
		for i, arg := range args {
			v, err := strconv.ParseUint(arg, 0, 8)
			if err != nil {
				return req, fmt.Errorf("could not parse value %q: %w", arg, err)
			}
			req.values[i] = uint8(v)
		}
	case "load":
		if len(args) != 1 {
			return req, fmt.Errorf("missing sample file to load")
		}
		req.file = args[0]
	case "capture":
		v, err := strconv.ParseUint(end, 0, 32)
		if err != nil {
			return req, fmt.Errorf("could not parse end address %q: %w", end, err)
		}
		req.end = uint32(v)
		if req.end < req.addr {
			return req, fmt.Errorf("end address 0x%x before start address 0x%x", req.end, req.addr)
		}
	default:
		return req, fmt.Errorf("unknown operation %q", op)
	}
	return req, nil
}

func process(w io.Writer, sc *scope.Scope, req request) error {
	switch req.op {
	case "write":
		return sc.Write(req.addr, req.values)
	case "capture":
		return sc.Capture(req.addr, req.end)
	case "load":
		f, err := mmap.Open(req.file)
		if err != nil {
			return err
		}
		defer f.Close()
		return sc.Write(req.addr, f.Bytes())
	case "read":
		vs, err := sc.ReadAll(req.addr, req.n)
		if err != nil {
			return err
		}
		dump(w, req.addr, vs)
		return nil
	default:
		return fmt.Errorf("unknown operation %q", req.op)
	}
}

// dump writes vs as hexadecimal, 16 values per line.
func dump(w io.Writer, start uint32, vs []uint8) {
	const width = 16
	for i := 0; i < len(vs); i += width {
		j := i + width
		if j > len(vs) {
			j = len(vs)
		}
		fmt.Fprintf(w, "0x%05x:", start+uint32(i))
		for _, v := range vs[i:j] {
			fmt.Fprintf(w, " %02x", v)
		}
		fmt.Fprintf(w, "\n")
	}
}
