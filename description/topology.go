// Copyright (C) ArkDB, Inc. 2018-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package description

import (
	"bytes"
	"fmt"

	"gopkg.in/mgo.v2/bson"

	"github.com/arkdb/ark-go-driver/address"
)

// Topology is an immutable snapshot of the whole cluster's view. It is
// replaced wholesale, never mutated in place.
type Topology struct {
	Servers []Server
	SetName string
	Kind    TopologyKind

	// MaxSetVersion and MaxElectionID are the highest election pair ever
	// observed from an accepted primary. Reported primaries whose pair does
	// not exceed them are treated as stale.
	MaxSetVersion uint32
	MaxElectionID bson.ObjectId

	// CompatibilityErr is non-nil when a known server's wire version range
	// does not overlap the range this driver supports. The topology is
	// unusable until the offending server reports a compatible range.
	CompatibilityErr error

	SessionTimeoutMinutes uint32
	SessionTimeoutSet     bool
}

// Server returns the description of the server at the given address, if it
// is tracked.
func (t Topology) Server(addr address.Address) (Server, bool) {
	for _, s := range t.Servers {
		if s.Addr == addr {
			return s, true
		}
	}
	return Server{}, false
}

// HasServer reports whether the given address is tracked.
func (t Topology) HasServer(addr address.Address) bool {
	_, ok := t.Server(addr)
	return ok
}

// String implements the fmt.Stringer interface.
func (t Topology) String() string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "Type: %s", t.Kind)
	if t.SetName != "" {
		fmt.Fprintf(&b, ", Set: %s", t.SetName)
	}
	for _, s := range t.Servers {
		fmt.Fprintf(&b, ", Server: { Addr: %s, Kind: %s", s.Addr, s.Kind)
		if s.LastError != nil {
			fmt.Fprintf(&b, ", Error: %v", s.LastError)
		}
		b.WriteString(" }")
	}
	return b.String()
}
