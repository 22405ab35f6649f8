// Copyright (C) ArkDB, Inc. 2018-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package driver

import (
	"context"
	"fmt"
	"net"

	"gopkg.in/mgo.v2/bson"

	"github.com/arkdb/ark-go-driver/address"
	"github.com/arkdb/ark-go-driver/wire"
)

// Server error codes that indicate the server can no longer service writes.
const (
	codeNotWritablePrimary      = 10107
	codeNotPrimaryNoSecondaryOK = 13435
)

// Server error codes that indicate the server is transitioning state.
const (
	codeInterruptedAtShutdown        = 11600
	codeInterruptedDueToStateChange  = 11602
	codeNotPrimaryOrSecondary        = 13436
	codePrimarySteppedDown           = 189
	codeShutdownInProgress           = 91
)

// TransportError wraps an error returned by the transport while reaching a
// server: a dial failure, a broken connection, or a timeout.
type TransportError struct {
	Addr    address.Address
	Wrapped error
}

// Error implements the error interface.
func (e TransportError) Error() string {
	return fmt.Sprintf("connection(%s): %v", e.Addr, e.Wrapped)
}

// Unwrap returns the underlying error.
func (e TransportError) Unwrap() error { return e.Wrapped }

// Timeout reports whether the transport failure was a timeout.
func (e TransportError) Timeout() bool {
	if ne, ok := e.Wrapped.(net.Error); ok {
		return ne.Timeout()
	}
	if te, ok := e.Wrapped.(interface{ Timeout() bool }); ok {
		return te.Timeout()
	}
	return e.Wrapped == context.DeadlineExceeded
}

// ProtocolError indicates the server sent a reply this driver could not
// decode.
type ProtocolError struct {
	Addr    address.Address
	Wrapped error
}

// Error implements the error interface.
func (e ProtocolError) Error() string {
	return fmt.Sprintf("malformed reply from %s: %v", e.Addr, e.Wrapped)
}

// Unwrap returns the underlying error.
func (e ProtocolError) Unwrap() error { return e.Wrapped }

// Error is a command execution error reported by the server (ok: 0).
type Error struct {
	Code    int32
	Name    string
	Message string
}

// Error implements the error interface.
func (e Error) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("(%s) %s", e.Name, e.Message)
	}
	return e.Message
}

// NotWritablePrimary reports whether the server said it can no longer accept
// writes.
func (e Error) NotWritablePrimary() bool {
	switch e.Code {
	case codeNotWritablePrimary, codeNotPrimaryNoSecondaryOK:
		return true
	}
	return false
}

// NodeIsRecovering reports whether the server said it is transitioning
// between replica set states and cannot serve commands.
func (e Error) NodeIsRecovering() bool {
	switch e.Code {
	case codeInterruptedAtShutdown, codeInterruptedDueToStateChange,
		codeNotPrimaryOrSecondary, codePrimarySteppedDown, codeShutdownInProgress:
		return true
	}
	return false
}

// ShutdownInProgress reports whether the server said it is shutting down.
func (e Error) ShutdownInProgress() bool {
	switch e.Code {
	case codeInterruptedAtShutdown, codeShutdownInProgress:
		return true
	}
	return false
}

// WriteConcernError is surfaced when a reply is otherwise successful but the
// requested durability guarantee was not met. Details carries the server's
// errInfo payload byte for byte.
type WriteConcernError struct {
	Code    int32
	Name    string
	Message string
	Details bson.Raw
}

// Error implements the error interface.
func (e WriteConcernError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("write concern error (%s): %s", e.Name, e.Message)
	}
	return fmt.Sprintf("write concern error: %s", e.Message)
}

// ExtractError classifies the outcome carried in a command reply. It returns
// nil for a clean success, a WriteConcernError for an ok reply with a nested
// write concern failure, and an Error for an ok: 0 reply.
func ExtractError(addr address.Address, raw bson.Raw) error {
	res, err := wire.DecodeResponse(raw)
	if err != nil {
		return ProtocolError{Addr: addr, Wrapped: err}
	}

	if res.OK == 1 {
		if wce := res.WriteConcernError; wce != nil {
			return WriteConcernError{
				Code:    wce.Code,
				Name:    wce.CodeName,
				Message: wce.ErrMsg,
				Details: wce.ErrInfo,
			}
		}
		return nil
	}

	return Error{
		Code:    res.Code,
		Name:    res.CodeName,
		Message: res.ErrMsg,
	}
}

// MustInvalidate reports whether the classified error means the server's
// description can no longer be trusted and must be reset to Unknown. Write
// concern errors and ordinary command errors never invalidate a server.
func MustInvalidate(err error) bool {
	switch e := err.(type) {
	case TransportError:
		return true
	case ProtocolError:
		return true
	case Error:
		return e.NotWritablePrimary() || e.NodeIsRecovering() || e.ShutdownInProgress()
	}
	return false
}
