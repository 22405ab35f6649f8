// Copyright (C) ArkDB, Inc. 2018-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package wire contains the decoded reply records exchanged with ArkDB
// servers and the transport contract used to reach them. Message framing,
// encoding, and connection management live below this boundary and are
// supplied by the caller.
package wire

import (
	"context"

	"github.com/arkdb/ark-go-driver/address"
	"gopkg.in/mgo.v2/bson"
)

// Transport issues a single command to the server at the given address and
// returns its reply document. Implementations own connection establishment,
// framing, and encoding. The context carries the deadline for the whole
// exchange; implementations must abort and return the context's error when
// it is cancelled or expires.
type Transport interface {
	SendCommand(ctx context.Context, addr address.Address, cmd bson.D) (bson.Raw, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, addr address.Address, cmd bson.D) (bson.Raw, error)

// SendCommand implements Transport.
func (f TransportFunc) SendCommand(ctx context.Context, addr address.Address, cmd bson.D) (bson.Raw, error) {
	return f(ctx, addr, cmd)
}
