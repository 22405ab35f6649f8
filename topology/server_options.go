// Copyright (C) ArkDB, Inc. 2018-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package topology

import (
	"io/ioutil"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/arkdb/ark-go-driver/event"
	"github.com/arkdb/ark-go-driver/wire"
)

func newServerConfig(opts ...ServerOption) *serverConfig {
	logger := logrus.New()
	logger.SetOutput(ioutil.Discard)

	cfg := &serverConfig{
		heartbeatInterval:    10 * time.Second,
		minHeartbeatInterval: 500 * time.Millisecond,
		connectTimeout:       10 * time.Second,
		logger:               logger,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

// ServerOption configures a server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	heartbeatInterval    time.Duration
	minHeartbeatInterval time.Duration
	connectTimeout       time.Duration
	transport            wire.Transport
	logger               logrus.FieldLogger
	monitor              *event.ServerMonitor
}

// WithHeartbeatInterval configures the time between server checks.
func WithHeartbeatInterval(interval time.Duration) ServerOption {
	return func(cfg *serverConfig) {
		cfg.heartbeatInterval = interval
	}
}

// WithMinHeartbeatInterval configures the time the monitor must wait after a
// check before it may check the same server again.
func WithMinHeartbeatInterval(interval time.Duration) ServerOption {
	return func(cfg *serverConfig) {
		cfg.minHeartbeatInterval = interval
	}
}

// WithConnectTimeout configures the deadline applied to each handshake
// exchange.
func WithConnectTimeout(timeout time.Duration) ServerOption {
	return func(cfg *serverConfig) {
		cfg.connectTimeout = timeout
	}
}

// WithServerTransport configures the transport used to reach the server.
func WithServerTransport(t wire.Transport) ServerOption {
	return func(cfg *serverConfig) {
		cfg.transport = t
	}
}

// WithServerLogger configures the logger heartbeat failures are reported to.
func WithServerLogger(logger logrus.FieldLogger) ServerOption {
	return func(cfg *serverConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithServerEventMonitor configures the monitor that receives heartbeat and
// server lifecycle events.
func WithServerEventMonitor(m *event.ServerMonitor) ServerOption {
	return func(cfg *serverConfig) {
		cfg.monitor = m
	}
}
