// Copyright (C) ArkDB, Inc. 2018-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package driver

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/mgo.v2/bson"

	"github.com/arkdb/ark-go-driver/description"
	"github.com/arkdb/ark-go-driver/event"
)

// Operation executes a single command attempt against a deployment: select a
// server, send the command, classify the outcome, and feed any topology
// consequence back into the deployment before surfacing the outcome to the
// caller. Retrying is the caller's concern.
type Operation struct {
	// Deployment is the set of servers to select from.
	Deployment Deployment

	// Selector chooses the eligible servers for this operation.
	Selector description.ServerSelector

	// Command is the document to send. The first element names the command.
	Command bson.D

	// Monitor, when set, receives command started/succeeded/failed events.
	Monitor *event.CommandMonitor
}

// Execute runs the operation. On a reply carrying a write concern error the
// reply is returned together with the WriteConcernError so callers can reach
// both the data and the durability failure.
func (op Operation) Execute(ctx context.Context) (bson.Raw, error) {
	if op.Deployment == nil {
		return bson.Raw{}, errors.New("the Operation's Deployment must be set before Execute can be called")
	}
	if len(op.Command) == 0 {
		return bson.Raw{}, errors.New("the Operation's Command must be set before Execute can be called")
	}

	srv, err := op.Deployment.SelectServer(ctx, op.Selector)
	if err != nil {
		return bson.Raw{}, err
	}

	name := op.Command[0].Name
	op.publishStarted(ctx, srv, name)

	start := time.Now()
	raw, err := srv.SendCommand(ctx, op.Command)
	duration := time.Since(start)

	if err != nil {
		terr := TransportError{Addr: srv.Address(), Wrapped: err}
		srv.ProcessError(terr)
		op.publishFailed(ctx, srv, name, duration, terr)
		return bson.Raw{}, terr
	}

	switch cmdErr := ExtractError(srv.Address(), raw).(type) {
	case nil:
		op.publishSucceeded(ctx, srv, name, duration, raw)
		return raw, nil
	case WriteConcernError:
		// The reply itself succeeded; the durability failure rides along.
		// It never affects the topology.
		op.publishSucceeded(ctx, srv, name, duration, raw)
		return raw, cmdErr
	default:
		srv.ProcessError(cmdErr)
		op.publishFailed(ctx, srv, name, duration, cmdErr)
		return bson.Raw{}, cmdErr
	}
}

func (op Operation) publishStarted(ctx context.Context, srv Server, name string) {
	if op.Monitor == nil || op.Monitor.Started == nil {
		return
	}
	op.Monitor.Started(ctx, &event.CommandStartedEvent{
		Command:     op.Command,
		CommandName: name,
		Address:     srv.Address(),
	})
}

func (op Operation) publishSucceeded(ctx context.Context, srv Server, name string, duration time.Duration, reply bson.Raw) {
	if op.Monitor == nil || op.Monitor.Succeeded == nil {
		return
	}
	op.Monitor.Succeeded(ctx, &event.CommandSucceededEvent{
		CommandFinishedEvent: event.CommandFinishedEvent{
			Duration:    duration,
			CommandName: name,
			Address:     srv.Address(),
		},
		Reply: reply,
	})
}

func (op Operation) publishFailed(ctx context.Context, srv Server, name string, duration time.Duration, failure error) {
	if op.Monitor == nil || op.Monitor.Failed == nil {
		return
	}
	op.Monitor.Failed(ctx, &event.CommandFailedEvent{
		CommandFinishedEvent: event.CommandFinishedEvent{
			Duration:    duration,
			CommandName: name,
			Address:     srv.Address(),
		},
		Failure: failure,
	})
}
