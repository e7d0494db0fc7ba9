// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads the TOML configuration of a c't Lab appliance.
package config // import "github.com/go-lpc/ctlab/internal/config"

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/ctlab/device"
	"github.com/go-lpc/ctlab/internal/mqttpub"
	"github.com/go-lpc/ctlab/scope"
	"github.com/go-lpc/ctlab/spidirect"
	"github.com/go-lpc/ctlab/transport"
)

// Duration is a time.Duration decoded from a string such as "500ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("config: could not parse duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the configuration of an appliance and its clients.
type Config struct {
	Log       LogConf       `toml:"log"`
	Appliance ApplianceConf `toml:"appliance"`
	SPI       SPIConf       `toml:"spi"`
	Storage   StorageConf   `toml:"storage"`
	MQTT      MQTTConf      `toml:"mqtt"`
}

type LogConf struct {
	Level string `toml:"level"` // debug, info, warning or error
}

type ApplianceConf struct {
	Protocol    string   `toml:"protocol"` // ctlab, spi or dummy
	Port        string   `toml:"port"`
	Baud        int      `toml:"baud"`
	Channel     uint8    `toml:"channel"` // main channel of the FPGA board
	QueryPeriod Duration `toml:"query-period"`
}

type SPIConf struct {
	AddressDevice string `toml:"address-device"`
	DataDevice    string `toml:"data-device"`
	Speed         uint32 `toml:"speed"`
}

type StorageConf struct {
	Handshake       bool     `toml:"handshake"`
	PollDelay       Duration `toml:"poll-delay"`
	OptimizeReading bool     `toml:"optimize-reading"`
	Timeout         Duration `toml:"timeout"`
}

type MQTTConf struct {
	Broker   string `toml:"broker"`
	ClientID string `toml:"client-id"`
	Topic    string `toml:"topic"`
	QoS      byte   `toml:"qos"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

// Default returns the configuration used for missing keys.
func Default() Config {
	return Config{
		Log: LogConf{Level: "info"},
		Appliance: ApplianceConf{
			Protocol:    "ctlab",
			Port:        "/dev/ttyUSB0",
			Baud:        transport.DefaultBaudRate,
			Channel:     7,
			QueryPeriod: Duration{500 * time.Millisecond},
		},
		SPI: SPIConf{
			AddressDevice: transport.DefaultSPIAddressDevice,
			DataDevice:    transport.DefaultSPIDataDevice,
			Speed:         transport.DefaultSPISpeed,
		},
		Storage: StorageConf{
			Handshake: true,
			Timeout:   Duration{5 * time.Second},
		},
		MQTT: MQTTConf{
			Broker:   "tcp://localhost:1883",
			ClientID: "ctlab",
			Topic:    "ctlab/counter",
		},
	}
}

// Load reads the configuration file at path.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("config: could not decode %q: %w", path, err)
	}
	err = check(meta, cfg)
	if err != nil {
		return cfg, fmt.Errorf("config: invalid configuration %q: %w", path, err)
	}
	return cfg, nil
}

// Decode reads a configuration document from r.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeReader(r, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("config: could not decode configuration: %w", err)
	}
	err = check(meta, cfg)
	if err != nil {
		return cfg, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return cfg, nil
}

func check(meta toml.MetaData, cfg Config) error {
	if keys := meta.Undecoded(); len(keys) > 0 {
		names := make([]string, len(keys))
		for i, k := range keys {
			names[i] = k.String()
		}
		return fmt.Errorf("unknown keys [%s]", strings.Join(names, ", "))
	}
	return cfg.Validate()
}

// Validate checks the consistency of the configuration.
func (cfg Config) Validate() error {
	switch cfg.Appliance.Protocol {
	case "ctlab", "spi", "dummy":
	default:
		return fmt.Errorf("unknown protocol %q", cfg.Appliance.Protocol)
	}
	if cfg.Appliance.Baud <= 0 {
		return fmt.Errorf("invalid baud rate %d", cfg.Appliance.Baud)
	}
	if cfg.Appliance.QueryPeriod.Duration <= 0 {
		return fmt.Errorf("invalid query period %v", cfg.Appliance.QueryPeriod)
	}
	if cfg.Storage.PollDelay.Duration < 0 || cfg.Storage.Timeout.Duration < 0 {
		return fmt.Errorf("invalid storage timing (poll-delay=%v, timeout=%v)",
			cfg.Storage.PollDelay, cfg.Storage.Timeout,
		)
	}
	if cfg.MQTT.QoS > 2 {
		return fmt.Errorf("invalid MQTT QoS %d", cfg.MQTT.QoS)
	}
	switch cfg.Log.Level {
	case "debug", "info", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %q", cfg.Log.Level)
	}
	return nil
}

// MainChannel returns the main channel of the FPGA board.
// Boards behind an SPI link are always on spidirect.MainChannel.
func (cfg Config) MainChannel() uint8 {
	if cfg.Appliance.Protocol == "spi" {
		return spidirect.MainChannel
	}
	return cfg.Appliance.Channel
}

// MsgLevel returns the message stream level.
func (cfg LogConf) MsgLevel() log.Level {
	switch cfg.Level {
	case "debug":
		return log.LvlDebug
	case "warning":
		return log.LvlWarning
	case "error":
		return log.LvlError
	default:
		return log.LvlInfo
	}
}

// Device returns the appliance connection settings.
func (cfg Config) Device() device.Config {
	return device.Config{
		Protocol:         cfg.Appliance.Protocol,
		Port:             cfg.Appliance.Port,
		Baud:             cfg.Appliance.Baud,
		SPIAddressDevice: cfg.SPI.AddressDevice,
		SPIDataDevice:    cfg.SPI.DataDevice,
		SPISpeed:         cfg.SPI.Speed,
	}
}

// StorageOptions returns the storage controller options.
func (cfg Config) StorageOptions() []scope.Option {
	return []scope.Option{
		scope.WithHandshake(cfg.Storage.Handshake),
		scope.WithPollDelay(cfg.Storage.PollDelay.Duration),
		scope.WithOptimizedReading(cfg.Storage.OptimizeReading),
		scope.WithTimeout(cfg.Storage.Timeout.Duration),
	}
}

// Publisher returns the broker connection settings.
func (cfg MQTTConf) Publisher() mqttpub.Config {
	return mqttpub.Config{
		Broker:   cfg.Broker,
		ClientID: cfg.ClientID,
		User:     cfg.User,
		Password: cfg.Password,
		QoS:      cfg.QoS,
	}
}
