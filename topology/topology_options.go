// Copyright (C) ArkDB, Inc. 2018-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package topology

import (
	"io/ioutil"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/arkdb/ark-go-driver/address"
	"github.com/arkdb/ark-go-driver/event"
	"github.com/arkdb/ark-go-driver/wire"
)

// MonitorMode indicates the discovery mode of a topology.
type MonitorMode uint8

// MonitorMode constants.
const (
	// AutomaticMode discovers the deployment's shape from the seed list.
	AutomaticMode MonitorMode = iota
	// SingleMode pins the topology to the first seed regardless of what it
	// reports.
	SingleMode
)

func newConfig(opts ...Option) (*config, error) {
	logger := logrus.New()
	logger.SetOutput(ioutil.Discard)

	cfg := &config{
		seedList:               []address.Address{address.Address("localhost:11811")},
		serverSelectionTimeout: 30 * time.Second,
		localThreshold:         15 * time.Millisecond,
		logger:                 logger,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.transport == nil {
		return nil, errors.New("a topology cannot be created without a transport")
	}
	if len(cfg.seedList) == 0 {
		return nil, errors.New("a topology cannot be created without at least one seed")
	}

	return cfg, nil
}

// Option configures a topology.
type Option func(*config)

type config struct {
	mode                   MonitorMode
	replicaSetName         string
	seedList               []address.Address
	serverOpts             []ServerOption
	serverSelectionTimeout time.Duration
	localThreshold         time.Duration
	transport              wire.Transport
	logger                 logrus.FieldLogger
	monitor                *event.ServerMonitor
}

// WithMode configures the topology's discovery mode.
func WithMode(mode MonitorMode) Option {
	return func(cfg *config) {
		cfg.mode = mode
	}
}

// WithReplicaSetName configures the topology's expected replica set name.
// Servers reporting a different set name are disowned.
func WithReplicaSetName(name string) Option {
	return func(cfg *config) {
		cfg.replicaSetName = name
	}
}

// WithSeedList configures the topology's seed list.
func WithSeedList(seedList ...address.Address) Option {
	return func(cfg *config) {
		cfg.seedList = seedList
	}
}

// WithServerSelectionTimeout configures how long a selection waits for a
// suitable server to appear before failing.
func WithServerSelectionTimeout(timeout time.Duration) Option {
	return func(cfg *config) {
		cfg.serverSelectionTimeout = timeout
	}
}

// WithLocalThreshold configures the latency window: among suitable servers,
// only those within this window of the fastest are picked from.
func WithLocalThreshold(threshold time.Duration) Option {
	return func(cfg *config) {
		cfg.localThreshold = threshold
	}
}

// WithTransport configures the transport used to reach servers. A transport
// is required.
func WithTransport(t wire.Transport) Option {
	return func(cfg *config) {
		cfg.transport = t
	}
}

// WithLogger configures the logger for the topology and its servers.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithEventMonitor configures the monitor that receives SDAM events.
func WithEventMonitor(m *event.ServerMonitor) Option {
	return func(cfg *config) {
		cfg.monitor = m
	}
}

// WithServerOptions configures the options used for the topology's servers.
// The options provided are appended to any current options and may override
// previously configured ones.
func WithServerOptions(opts ...ServerOption) Option {
	return func(cfg *config) {
		cfg.serverOpts = append(cfg.serverOpts, opts...)
	}
}
