// Copyright (C) ArkDB, Inc. 2018-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package description holds the immutable data model for server discovery
// and monitoring: snapshots of individual servers and of the topology as a
// whole. Values of these types are never mutated after construction; state
// changes produce fresh values.
package description

import (
	"time"

	"gopkg.in/mgo.v2/bson"

	"github.com/arkdb/ark-go-driver/address"
	"github.com/arkdb/ark-go-driver/wire"
)

// UnsetRTT is the unset value for a round trip time.
const UnsetRTT = -1 * time.Millisecond

// Server is an immutable snapshot of the last known state of one server.
//
// Kind and LastError are kept mutually consistent: a snapshot of kind
// Unknown either carries the error that produced it or is the default
// snapshot a server starts with, and a snapshot of any other kind never
// carries an error.
type Server struct {
	Addr address.Address

	Arbiters              []address.Address
	AverageRTT            time.Duration
	AverageRTTSet         bool
	CanonicalAddr         address.Address
	ElectionID            bson.ObjectId
	HeartbeatInterval     time.Duration
	Hosts                 []address.Address
	Kind                  ServerKind
	LastError             error
	LastUpdateTime        time.Time
	LastWriteTime         time.Time
	MinRTT                time.Duration
	Passives              []address.Address
	Primary               address.Address
	SessionTimeoutMinutes uint32
	SessionTimeoutSet     bool
	SetName               string
	SetVersion            uint32
	Tags                  TagSet
	WireVersion           Range
}

// NewServer builds a server description from a decoded handshake reply.
func NewServer(addr address.Address, reply *wire.Hello) Server {
	s := Server{
		Addr: addr,

		CanonicalAddr:  address.Address(reply.Me).Canonicalize(),
		ElectionID:     reply.ElectionID,
		LastUpdateTime: time.Now().UTC(),
		LastWriteTime:  reply.LastWrite.LastWriteDate.UTC(),
		Primary:        address.Address(reply.Primary).Canonicalize(),
		SetName:        reply.SetName,
		SetVersion:     reply.SetVersion,
		Tags:           NewTagSetFromMap(reply.Tags),
		WireVersion: Range{
			Min: reply.MinWireVersion,
			Max: reply.MaxWireVersion,
		},
	}

	if s.CanonicalAddr == "" {
		s.CanonicalAddr = addr
	}
	if reply.Primary == "" {
		s.Primary = ""
	}

	if reply.SessionTimeoutMinutes != nil {
		s.SessionTimeoutMinutes = *reply.SessionTimeoutMinutes
		s.SessionTimeoutSet = true
	}

	for _, host := range reply.Hosts {
		s.Hosts = append(s.Hosts, address.Address(host).Canonicalize())
	}
	for _, passive := range reply.Passives {
		s.Passives = append(s.Passives, address.Address(passive).Canonicalize())
	}
	for _, arbiter := range reply.Arbiters {
		s.Arbiters = append(s.Arbiters, address.Address(arbiter).Canonicalize())
	}

	s.Kind = Standalone

	if reply.IsReplicaSet {
		s.Kind = RSGhost
	} else if reply.SetName != "" {
		if reply.IsWritablePrimary {
			s.Kind = RSPrimary
		} else if reply.Hidden {
			s.Kind = RSMember
		} else if reply.Secondary {
			s.Kind = RSSecondary
		} else if reply.ArbiterOnly {
			s.Kind = RSArbiter
		} else {
			s.Kind = RSMember
		}
	} else if reply.Msg == "isdbgrid" {
		s.Kind = Router
	}

	return s
}

// NewServerFromError builds an Unknown server description carrying the error
// that produced it.
func NewServerFromError(addr address.Address, err error) Server {
	return Server{
		Addr:           addr,
		CanonicalAddr:  addr,
		LastError:      err,
		LastUpdateTime: time.Now().UTC(),
		Kind:           Unknown,
	}
}

// NewDefaultServer builds the description a server starts with before its
// first check.
func NewDefaultServer(addr address.Address) Server {
	return Server{
		Addr:          addr,
		CanonicalAddr: addr,
		Kind:          Unknown,
	}
}

// Members returns the union of the hosts, passives, and arbiters this server
// believes are members of its replica set.
func (s Server) Members() []address.Address {
	members := make([]address.Address, 0, len(s.Hosts)+len(s.Passives)+len(s.Arbiters))
	members = append(members, s.Hosts...)
	members = append(members, s.Passives...)
	members = append(members, s.Arbiters...)
	return members
}

// SetAverageRTT returns a copy of the description with the average round
// trip time set.
func (s Server) SetAverageRTT(rtt time.Duration) Server {
	s.AverageRTT = rtt
	s.AverageRTTSet = rtt != UnsetRTT
	return s
}
