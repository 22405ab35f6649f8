// Copyright (C) ArkDB, Inc. 2018-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package event carries the monitoring events raised by the discovery,
// monitoring, and command paths. Events hold immutable before/after
// snapshots and are delivered outside any topology-internal critical
// section.
package event

import (
	"context"
	"time"

	"gopkg.in/mgo.v2/bson"

	"github.com/arkdb/ark-go-driver/address"
	"github.com/arkdb/ark-go-driver/description"
	"github.com/arkdb/ark-go-driver/wire"
)

// CommandStartedEvent represents an event generated when a command is sent
// to a server.
type CommandStartedEvent struct {
	Command     bson.D
	CommandName string
	Address     address.Address
}

// CommandFinishedEvent represents a generic command finishing.
type CommandFinishedEvent struct {
	Duration    time.Duration
	CommandName string
	Address     address.Address
}

// CommandSucceededEvent represents an event generated when a command's
// execution succeeds. Reply holds the server's reply verbatim, including any
// write concern error and its errInfo payload.
type CommandSucceededEvent struct {
	CommandFinishedEvent
	Reply bson.Raw
}

// CommandFailedEvent represents an event generated when a command's
// execution fails.
type CommandFailedEvent struct {
	CommandFinishedEvent
	Failure error
}

// CommandMonitor represents a monitor that is triggered for different
// command events.
type CommandMonitor struct {
	Started   func(context.Context, *CommandStartedEvent)
	Succeeded func(context.Context, *CommandSucceededEvent)
	Failed    func(context.Context, *CommandFailedEvent)
}

// ServerDescriptionChangedEvent represents a server description change.
type ServerDescriptionChangedEvent struct {
	Address             address.Address
	PreviousDescription description.Server
	NewDescription      description.Server
}

// ServerOpeningEvent is an event generated when the server is initialized.
type ServerOpeningEvent struct {
	Address address.Address
}

// ServerClosedEvent is an event generated when the server is closed.
type ServerClosedEvent struct {
	Address address.Address
}

// ServerHeartbeatStartedEvent is an event generated when the heartbeat is
// started.
type ServerHeartbeatStartedEvent struct {
	Address address.Address
}

// ServerHeartbeatSucceededEvent is an event generated when the heartbeat
// succeeds.
type ServerHeartbeatSucceededEvent struct {
	Address  address.Address
	Duration time.Duration
	Reply    *wire.Hello
}

// ServerHeartbeatFailedEvent is an event generated when the heartbeat fails.
type ServerHeartbeatFailedEvent struct {
	Address  address.Address
	Duration time.Duration
	Failure  error
}

// TopologyDescriptionChangedEvent represents a topology description change.
type TopologyDescriptionChangedEvent struct {
	PreviousDescription description.Topology
	NewDescription      description.Topology
}

// TopologyOpeningEvent is an event generated when the topology is
// initialized.
type TopologyOpeningEvent struct{}

// TopologyClosedEvent is an event generated when the topology is closed.
type TopologyClosedEvent struct{}

// ServerMonitor represents a monitor that is triggered for different SDAM
// events.
type ServerMonitor struct {
	ServerDescriptionChanged   func(*ServerDescriptionChangedEvent)
	ServerOpening              func(*ServerOpeningEvent)
	ServerClosed               func(*ServerClosedEvent)
	ServerHeartbeatStarted     func(*ServerHeartbeatStartedEvent)
	ServerHeartbeatSucceeded   func(*ServerHeartbeatSucceededEvent)
	ServerHeartbeatFailed      func(*ServerHeartbeatFailedEvent)
	TopologyDescriptionChanged func(*TopologyDescriptionChangedEvent)
	TopologyOpening            func(*TopologyOpeningEvent)
	TopologyClosed             func(*TopologyClosedEvent)
}
