// Copyright (C) ArkDB, Inc. 2018-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package drivertest provides fakes for testing the driver's discovery,
// monitoring, and command paths without a live deployment.
package drivertest

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/mgo.v2/bson"

	"github.com/arkdb/ark-go-driver/address"
)

// CommandHandler produces a reply for a single command sent to an address.
type CommandHandler func(ctx context.Context, cmd bson.D) (bson.Raw, error)

// Transport is an in-memory wire.Transport. Each address is served by the
// handler registered for it; addresses without a handler refuse commands with
// an error, which the monitoring path treats as a network failure. Handlers
// can be swapped at any time to simulate elections, restarts and partitions.
type Transport struct {
	mu       sync.Mutex
	handlers map[address.Address]CommandHandler
}

// NewTransport returns a Transport with no reachable addresses.
func NewTransport() *Transport {
	return &Transport{handlers: make(map[address.Address]CommandHandler)}
}

// Handle registers the handler for addr, replacing any previous one. A nil
// handler makes addr unreachable again.
func (t *Transport) Handle(addr address.Address, h CommandHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if h == nil {
		delete(t.handlers, addr)
		return
	}
	t.handlers[addr] = h
}

// Reply registers a handler for addr that returns the same document for
// every command.
func (t *Transport) Reply(addr address.Address, doc bson.D) {
	t.Handle(addr, func(context.Context, bson.D) (bson.Raw, error) {
		return MarshalReply(doc), nil
	})
}

// SendCommand implements wire.Transport.
func (t *Transport) SendCommand(ctx context.Context, addr address.Address, cmd bson.D) (bson.Raw, error) {
	if err := ctx.Err(); err != nil {
		return bson.Raw{}, err
	}

	t.mu.Lock()
	h := t.handlers[addr]
	t.mu.Unlock()

	if h == nil {
		return bson.Raw{}, errors.Errorf("connection refused: %s", addr)
	}
	return h(ctx, cmd)
}

// MarshalReply encodes doc as a raw reply document. It panics on a marshal
// failure, which in a test fixture can only be a programming error.
func MarshalReply(doc bson.D) bson.Raw {
	data, err := bson.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return bson.Raw{Kind: 0x03, Data: data}
}
