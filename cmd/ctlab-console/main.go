// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// ctlab-console is an interactive shell driving a c't Lab appliance.
//
// Usage: ctlab-console [OPTIONS] [COMMAND [ARGS...]]
//
// Example:
//
//  $> ctlab-console -cfg ./ctlab.toml
//  ctlab> set 3 0x10
//  ctlab> flush
//  ctlab> freq 0 1000
//  ctlab> poll 500ms
//  ctlab> counter
//  counter: 1000 Hz (input=dds0, prescaler=gate-1s, active=true, overflow=false)
//  ctlab> quit
package main // import "github.com/go-lpc/ctlab/cmd/ctlab-console"

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	tdaqlog "github.com/go-daq/tdaq/log"
	"github.com/go-lpc/ctlab/device"
	"github.com/go-lpc/ctlab/internal/config"
	"github.com/peterh/liner"
)

func main() {
	log.SetPrefix("ctlab-console: ")
	log.SetFlags(0)

	var (
		fname = flag.String("cfg", "", "path to TOML configuration file")
		hist  = flag.String("history", defaultHistory(), "path to the shell history file")
	)

	flag.Parse()

	cfg := config.Default()
	if *fname != "" {
		var err error
		cfg, err = config.Load(*fname)
		if err != nil {
			log.Fatalf("could not load configuration: %+v", err)
		}
	}

	msg := tdaqlog.NewMsgStream("ctlab", cfg.Log.MsgLevel(), os.Stderr)
	app, err := device.Open(cfg.Device(), device.WithMsgStream(msg))
	if err != nil {
		log.Fatalf("could not open appliance: %+v", err)
	}
	defer app.Close()

	sh, err := newShell(os.Stdout, app, cfg, msg)
	if err != nil {
		_ = app.Close()
		log.Fatalf("could not create shell: %+v", err)
	}

	if flag.NArg() > 0 {
		_, err := sh.exec(strings.Join(flag.Args(), " "))
		if err != nil {
			_ = app.Close()
			log.Fatalf("%+v", err)
		}
		return
	}

	interactive(sh, *hist)
}

func interactive(sh *shell, hist string) {
	term := liner.NewLiner()
	defer term.Close()

	term.SetCtrlCAborts(true)
	term.SetCompleter(sh.complete)

	if f, err := os.Open(hist); err == nil {
		_, _ = term.ReadHistory(f)
		f.Close()
	}

	fmt.Println(`c't Lab console: type "help" for commands, Ctrl-D to quit.`)
	for {
		line, err := term.Prompt("ctlab> ")
		if err == liner.ErrPromptAborted || err == io.EOF {
			fmt.Println()
			break
		}
		if err != nil {
			log.Printf("could not read command: %+v", err)
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		term.AppendHistory(line)

		quit, err := sh.exec(line)
		if err != nil {
			fmt.Printf("error: %+v\n", err)
		}
		if quit {
			break
		}
	}

	if f, err := os.Create(hist); err == nil {
		_, _ = term.WriteHistory(f)
		f.Close()
	}
}

func defaultHistory() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return ".ctlab_history"
	}
	return filepath.Join(dir, ".ctlab_history")
}
