// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mqttpub publishes instrument readings to an MQTT broker.
package mqttpub // import "github.com/go-lpc/ctlab/internal/mqttpub"

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

var newClient = mqtt.NewClient

// Config configures the broker connection.
type Config struct {
	Broker   string // e.g. tcp://localhost:1883
	ClientID string
	User     string
	Password string
	QoS      byte
	Retain   bool
}

// Publisher publishes JSON payloads.
type Publisher struct {
	log    logrus.FieldLogger
	cfg    Config
	client mqtt.Client
}

func New(log logrus.FieldLogger, cfg Config) *Publisher {
	return &Publisher{
		log: log.WithField("module", "mqtt"),
		cfg: cfg,
	}
}

// Connect connects to the broker. Lost connections are re-established
// in the background.
func (p *Publisher) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(p.cfg.Broker).
		SetClientID(p.cfg.ClientID).
		SetUsername(p.cfg.User).
		SetPassword(p.cfg.Password).
		SetOnConnectHandler(p.connectHandler).
		SetConnectionLostHandler(p.connectLostHandler).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(30 * time.Second).
		SetKeepAlive(30 * time.Second)

	p.client = newClient(opts)

	err := wait(ctx, p.client.Connect())
	if err != nil {
		return fmt.Errorf("mqttpub: could not connect to %q: %w", p.cfg.Broker, err)
	}
	return nil
}

// Publish publishes v, encoded as JSON, on topic.
func (p *Publisher) Publish(ctx context.Context, topic string, v interface{}) error {
	if p.client == nil {
		return fmt.Errorf("mqttpub: could not publish on %q: not connected", topic)
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("mqttpub: could not encode payload for %q: %w", topic, err)
	}

	err = wait(ctx, p.client.Publish(topic, p.cfg.QoS, p.cfg.Retain, payload))
	if err != nil {
		return fmt.Errorf("mqttpub: could not publish on %q: %w", topic, err)
	}
	p.log.Debugf("published %s on %q", payload, topic)
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() error {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(500)
	}
	return nil
}

func (p *Publisher) connectHandler(mqtt.Client) {
	p.log.Infof("connected to %s", p.cfg.Broker)
}

func (p *Publisher) connectLostHandler(_ mqtt.Client, err error) {
	p.log.Errorf("connection to %s lost: %v", p.cfg.Broker, err)
}

func wait(ctx context.Context, tok mqtt.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
