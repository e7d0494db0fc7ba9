// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/ctlab/device"
	"github.com/go-lpc/ctlab/internal/mqttpub"
)

func TestDecode(t *testing.T) {
	const doc = `
[log]
level = "debug"

[appliance]
protocol = "ctlab"
port     = "/dev/ttyACM0"
channel  = 3
query-period = "250ms"

[storage]
handshake = false
poll-delay = "10ms"
optimize-reading = true
timeout = "5s"

[mqtt]
topic = "lab/counter"
qos = 1
`
	cfg, err := Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("could not decode configuration: %+v", err)
	}

	want := Default()
	want.Log.Level = "debug"
	want.Appliance.Port = "/dev/ttyACM0"
	want.Appliance.Channel = 3
	want.Appliance.QueryPeriod = Duration{250 * time.Millisecond}
	want.Storage = StorageConf{
		Handshake:       false,
		PollDelay:       Duration{10 * time.Millisecond},
		OptimizeReading: true,
		Timeout:         Duration{5 * time.Second},
	}
	want.MQTT.Topic = "lab/counter"
	want.MQTT.QoS = 1

	if !reflect.DeepEqual(cfg, want) {
		t.Fatalf("invalid configuration:\ngot= %+v\nwant=%+v", cfg, want)
	}

	if got, want := cfg.Log.MsgLevel(), log.LvlDebug; got != want {
		t.Fatalf("invalid level: got=%v, want=%v", got, want)
	}
	if got, want := cfg.MainChannel(), uint8(3); got != want {
		t.Fatalf("invalid main channel: got=%d, want=%d", got, want)
	}
	if got, want := len(cfg.StorageOptions()), 4; got != want {
		t.Fatalf("invalid number of storage options: got=%d, want=%d", got, want)
	}
	if got, want := cfg.Device(), (device.Config{
		Protocol:         "ctlab",
		Port:             "/dev/ttyACM0",
		Baud:             38400,
		SPIAddressDevice: "/dev/spidev0.0",
		SPIDataDevice:    "/dev/spidev0.1",
		SPISpeed:         500000,
	}); got != want {
		t.Fatalf("invalid device config:\ngot= %+v\nwant=%+v", got, want)
	}
	if got, want := cfg.MQTT.Publisher(), (mqttpub.Config{
		Broker:   "tcp://localhost:1883",
		ClientID: "ctlab",
		QoS:      1,
	}); got != want {
		t.Fatalf("invalid publisher config:\ngot= %+v\nwant=%+v", got, want)
	}
}

func TestDecodeErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "syntax",
			doc:  "[appliance\n",
			want: "config: could not decode configuration: ",
		},
		{
			name: "duration",
			doc:  "[appliance]\nquery-period = \"fast\"\n",
			want: "config: could not decode configuration: ",
		},
		{
			name: "protocol",
			doc:  "[appliance]\nprotocol = \"usb\"\n",
			want: `config: invalid configuration: unknown protocol "usb"`,
		},
		{
			name: "unknown-key",
			doc:  "[appliance]\nbaudrate = 9600\n",
			want: "config: invalid configuration: unknown keys [appliance.baudrate]",
		},
		{
			name: "period",
			doc:  "[appliance]\nquery-period = \"0s\"\n",
			want: "config: invalid configuration: invalid query period 0s",
		},
		{
			name: "qos",
			doc:  "[mqtt]\nqos = 3\n",
			want: "config: invalid configuration: invalid MQTT QoS 3",
		},
		{
			name: "level",
			doc:  "[log]\nlevel = \"trace\"\n",
			want: `config: invalid configuration: unknown log level "trace"`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tc.doc))
			if err == nil {
				t.Fatalf("expected an error")
			}
			if got := err.Error(); !strings.HasPrefix(got, tc.want) {
				t.Fatalf("invalid error:\ngot= %q\nwant=%q", got, tc.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	tmp, err := os.MkdirTemp("", "ctlab-config-")
	if err != nil {
		t.Fatalf("could not create tmp dir: %+v", err)
	}
	defer os.RemoveAll(tmp)

	fname := filepath.Join(tmp, "spi.toml")
	err = os.WriteFile(fname, []byte("[appliance]\nprotocol = \"spi\"\n[spi]\nspeed = 1000000\n"), 0644)
	if err != nil {
		t.Fatalf("could not write config file: %+v", err)
	}

	cfg, err := Load(fname)
	if err != nil {
		t.Fatalf("could not load config: %+v", err)
	}
	if got, want := cfg.MainChannel(), uint8(0); got != want {
		t.Fatalf("invalid main channel: got=%d, want=%d", got, want)
	}
	if got, want := cfg.Device().SPISpeed, uint32(1000000); got != want {
		t.Fatalf("invalid SPI speed: got=%d, want=%d", got, want)
	}

	_, err = Load(filepath.Join(tmp, "missing.toml"))
	if err == nil {
		t.Fatalf("expected an error")
	}
}

func TestDuration(t *testing.T) {
	d := Duration{1500 * time.Millisecond}
	txt, err := d.MarshalText()
	if err != nil {
		t.Fatalf("could not marshal duration: %+v", err)
	}
	if got, want := string(txt), "1.5s"; got != want {
		t.Fatalf("invalid duration text: got=%q, want=%q", got, want)
	}
}
