// Copyright (C) ArkDB, Inc. 2018-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package driver contains the command execution path and the error
// classification that feeds command outcomes back into the topology.
package driver

import (
	"context"

	"gopkg.in/mgo.v2/bson"

	"github.com/arkdb/ark-go-driver/address"
	"github.com/arkdb/ark-go-driver/description"
)

// Deployment provides access to a deployment of servers. The topology
// package provides the production implementation.
type Deployment interface {
	SelectServer(ctx context.Context, selector description.ServerSelector) (Server, error)
	Kind() description.TopologyKind
}

// Server represents a selected server that commands can be sent to. Errors
// routed through ProcessError feed back into the deployment's view of the
// server; ProcessError never surfaces anything to the caller.
type Server interface {
	Address() address.Address
	SendCommand(ctx context.Context, cmd bson.D) (bson.Raw, error)
	ProcessError(err error)
}
