// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// ctlab-mqtt publishes the universal counter readings of a c't Lab FPGA
// board to an MQTT broker.
//
// Usage: ctlab-mqtt [OPTIONS]
//
// Example:
//
//  $> ctlab-mqtt -cfg ./ctlab.toml
//  INFO[2026-10-18 10:00:00.0000] connected to tcp://localhost:1883   module=mqtt
package main // import "github.com/go-lpc/ctlab/cmd/ctlab-mqtt"

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tdaqlog "github.com/go-daq/tdaq/log"
	"github.com/go-lpc/ctlab/comm"
	"github.com/go-lpc/ctlab/device"
	"github.com/go-lpc/ctlab/internal/config"
	"github.com/go-lpc/ctlab/internal/mqttpub"
	"github.com/go-lpc/ctlab/siggen"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	fname := flag.String("cfg", "", "path to TOML configuration file")
	flag.Parse()

	cfg := config.Default()
	if *fname != "" {
		var err error
		cfg, err = config.Load(*fname)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ctlab-mqtt: could not load configuration: %+v\n", err)
			os.Exit(1)
		}
	}

	log, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ctlab-mqtt: could not create logger: %+v\n", err)
		os.Exit(1)
	}

	msg := tdaqlog.NewMsgStream("ctlab", cfg.Log.MsgLevel(), os.Stderr)
	app, err := device.Open(cfg.Device(), device.WithMsgStream(msg))
	if err != nil {
		log.Errorf("could not open appliance: %+v", err)
		os.Exit(1)
	}
	defer app.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	pub := mqttpub.New(log, cfg.MQTT.Publisher())
	err = pub.Connect(ctx)
	if err != nil {
		log.Errorf("could not connect to broker: %+v", err)
		_ = app.Close()
		os.Exit(1)
	}
	defer pub.Close()

	err = run(ctx, log, app, cfg, pub)
	if err != nil {
		log.Errorf("could not publish counter readings: %+v", err)
		_ = pub.Close()
		_ = app.Close()
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

func newLogger(cfg config.LogConf) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.Formatter = &logrus.TextFormatter{
		TimestampFormat:  "2006-01-02 15:04:05.0000",
		FullTimestamp:    true,
		QuoteEmptyFields: true,
	}

	lvl, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	log.SetLevel(lvl)
	return log, nil
}

type publisher interface {
	Publish(ctx context.Context, topic string, v interface{}) error
}

// reading is the JSON payload of a counter measurement.
type reading struct {
	Time     time.Time `json:"time"`
	Value    float64   `json:"value"`
	Unit     string    `json:"unit"`
	Input    string    `json:"input"`
	Active   bool      `json:"active"`
	Overflow bool      `json:"overflow"`
}

// run resets the signal generator, polls the counter and publishes every
// new reading until ctx is done.
func run(ctx context.Context, log logrus.FieldLogger, app *device.Appliance, cfg config.Config, pub publisher) error {
	log = log.WithField("module", "counter")

	conn, err := app.Fpga(cfg.MainChannel())
	if err != nil {
		return fmt.Errorf("could not connect to FPGA board: %w", err)
	}
	defer conn.Close()

	gen, err := siggen.New(conn)
	if err != nil {
		return fmt.Errorf("could not create signal generator: %w", err)
	}
	err = gen.Reset()
	if err != nil {
		return fmt.Errorf("could not reset signal generator: %w", err)
	}
	err = app.SendSetCommandsForModifiedValues()
	if err != nil {
		return fmt.Errorf("could not configure signal generator: %w", err)
	}

	var (
		ctr      = gen.Counter()
		readings = make(chan reading, 16)
	)

	cancelActive := ctr.OnInputActive(func(active bool) {
		log.Infof("counter input active: %v", active)
	})
	defer cancelActive()

	cancelValue := ctr.OnValue(func(v float64) {
		r := newReading(ctr, v)
		select {
		case readings <- r:
		default:
			log.Warnf("dropped counter reading %g %s", r.Value, r.Unit)
		}
	})
	defer cancelValue()

	err = app.StartSendingQueryCommands(comm.Only(comm.Periodic), cfg.Appliance.QueryPeriod.Duration)
	if err != nil {
		return fmt.Errorf("could not start polling counter: %w", err)
	}

	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		<-ctx.Done()
		app.StopSendingQueryCommands()
		return nil
	})
	grp.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case r := <-readings:
				err := pub.Publish(ctx, cfg.MQTT.Topic, r)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					log.Errorf("could not publish reading: %+v", err)
				}
			}
		}
	})

	return grp.Wait()
}

func newReading(ctr *siggen.Counter, v float64) reading {
	r := reading{
		Time:  time.Now().UTC(),
		Value: v,
		Unit:  "Hz",
		Input: ctr.Input().String(),
	}
	if ctr.Measurement() == siggen.Period {
		r.Unit = "s"
	}
	r.Active, _ = ctr.InputActive()
	r.Overflow, _ = ctr.Overflow()
	return r
}
