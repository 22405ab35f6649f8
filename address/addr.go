// Copyright (C) ArkDB, Inc. 2018-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package address provides the Address type, the canonical identity of an
// ArkDB server within a topology.
package address

import (
	"net"
	"strings"
)

const defaultPort = "11811"

// Address is a network address. It can be either an IP address or a DNS name,
// with an optional port.
type Address string

// Network is the network protocol for this address. In most cases this will
// be "tcp" or "unix".
func (a Address) Network() string {
	if strings.HasSuffix(string(a), "sock") {
		return "unix"
	}
	return "tcp"
}

// String is the canonical version of this address, e.g. most addresses will
// have the port appended if one is not specified.
func (a Address) String() string {
	s := string(a)
	if len(s) == 0 {
		return ""
	}
	if a.Network() != "unix" {
		_, _, err := net.SplitHostPort(s)
		if err != nil && strings.LastIndex(s, ":") <= strings.LastIndex(s, "]") {
			s += ":" + defaultPort
		}
	}
	return s
}

// Canonicalize creates a canonicalized address: lowercased and with the
// default port made explicit.
func (a Address) Canonicalize() Address {
	return Address(strings.ToLower(a.String()))
}
