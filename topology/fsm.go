// Copyright (C) ArkDB, Inc. 2018-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package topology

import (
	"fmt"
	"strings"

	"gopkg.in/mgo.v2/bson"

	"github.com/arkdb/ark-go-driver/address"
	"github.com/arkdb/ark-go-driver/description"
)

var supportedWireVersions = description.NewRange(2, 9)
var minSupportedServerVersion = "1.4"

func newFSM() *fsm {
	return &fsm{}
}

// fsm is a finite state machine for transitioning topology states. It is
// driven exclusively by the topology's serialized apply path; it has no
// locking of its own.
type fsm struct {
	description.Topology
}

// apply transitions the topology based on the incoming server description
// and returns the resulting snapshot. The embedded description is rebuilt on
// every call so previously published snapshots are never mutated.
func (f *fsm) apply(s description.Server) description.Topology {
	newServers := make([]description.Server, len(f.Servers))
	copy(newServers, f.Servers)

	f.Topology = description.Topology{
		Kind:                  f.Kind,
		SetName:               f.SetName,
		MaxSetVersion:         f.MaxSetVersion,
		MaxElectionID:         f.MaxElectionID,
		SessionTimeoutMinutes: f.SessionTimeoutMinutes,
		SessionTimeoutSet:     f.SessionTimeoutSet,
		Servers:               newServers,
	}

	// A description from an address we no longer track is a stale monitor
	// report from a removed member.
	if _, ok := f.findServer(s.Addr); !ok {
		f.checkCompatibility()
		return f.Topology
	}

	switch f.Kind {
	case description.Unknown:
		f.applyToUnknown(s)
	case description.Sharded:
		f.applyToSharded(s)
	case description.ReplicaSetNoPrimary:
		f.applyToReplicaSetNoPrimary(s)
	case description.ReplicaSetWithPrimary:
		f.applyToReplicaSetWithPrimary(s)
	case description.Single:
		f.applyToSingle(s)
	}

	f.checkCompatibility()
	f.updateSessionTimeout()
	return f.Topology
}

func (f *fsm) applyToUnknown(s description.Server) {
	switch s.Kind {
	case description.Router:
		f.setKind(description.Sharded)
		f.replaceServer(s)
	case description.RSPrimary:
		f.updateRSFromPrimary(s)
	case description.RSSecondary, description.RSArbiter, description.RSMember:
		f.setKind(description.ReplicaSetNoPrimary)
		f.updateRSWithoutPrimary(s)
	case description.Standalone:
		f.updateUnknownWithStandalone(s)
	case description.Unknown, description.RSGhost:
		f.replaceServer(s)
	}
}

func (f *fsm) applyToSharded(s description.Server) {
	switch s.Kind {
	case description.Router, description.Unknown:
		f.replaceServer(s)
	case description.Standalone, description.RSPrimary, description.RSSecondary,
		description.RSArbiter, description.RSMember, description.RSGhost:
		// A non-router cannot join a sharded topology.
		f.disownServer(s.Addr, "server is not a router")
	}
}

func (f *fsm) applyToReplicaSetNoPrimary(s description.Server) {
	switch s.Kind {
	case description.Standalone, description.Router:
		f.removeServerByAddr(s.Addr)
	case description.RSPrimary:
		f.updateRSFromPrimary(s)
	case description.RSSecondary, description.RSArbiter, description.RSMember:
		f.updateRSWithoutPrimary(s)
	case description.RSGhost:
		f.disownServer(s.Addr, "server is a replica set ghost")
	case description.Unknown:
		f.replaceServer(s)
	}
}

func (f *fsm) applyToReplicaSetWithPrimary(s description.Server) {
	switch s.Kind {
	case description.Standalone, description.Router:
		f.removeServerByAddr(s.Addr)
		f.checkIfHasPrimary()
	case description.RSPrimary:
		f.updateRSFromPrimary(s)
	case description.RSSecondary, description.RSArbiter, description.RSMember:
		f.updateRSWithPrimaryFromMember(s)
	case description.RSGhost:
		f.disownServer(s.Addr, "server is a replica set ghost")
		f.checkIfHasPrimary()
	case description.Unknown:
		f.replaceServer(s)
		f.checkIfHasPrimary()
	}
}

func (f *fsm) applyToSingle(s description.Server) {
	// The topology type and the single tracked entry never change; only the
	// entry's description is replaced.
	switch s.Kind {
	case description.Unknown:
		f.replaceServer(s)
	default:
		if f.SetName != "" && f.SetName != s.SetName {
			f.disownServer(s.Addr, fmt.Sprintf("server reports set name %q, expected %q", s.SetName, f.SetName))
			return
		}
		f.replaceServer(s)
	}
}

func (f *fsm) updateRSFromPrimary(s description.Server) {
	if f.SetName == "" {
		f.SetName = s.SetName
	} else if f.SetName != s.SetName {
		f.disownServer(s.Addr, fmt.Sprintf("server reports set name %q, expected %q", s.SetName, f.SetName))
		f.checkIfHasPrimary()
		return
	}

	cmp := compareElectionPairs(s.SetVersion, s.ElectionID, f.MaxSetVersion, f.MaxElectionID)
	stale := cmp < 0
	if cmp == 0 {
		// An equal pair is a refresh only when it comes from the reigning
		// primary; from anyone else it is a competing stale election.
		if j, ok := f.findPrimary(); ok && f.Servers[j].Addr != s.Addr {
			stale = true
		}
	}
	if stale {
		f.disownServer(s.Addr, "was a primary, but its set version or election id is stale")
		f.checkIfHasPrimary()
		return
	}
	if cmp > 0 {
		f.MaxSetVersion = s.SetVersion
		f.MaxElectionID = s.ElectionID
	}

	if j, ok := f.findPrimary(); ok && f.Servers[j].Addr != s.Addr {
		f.setServer(j, description.NewServerFromError(
			f.Servers[j].Addr,
			fmt.Errorf("was a primary, but a new primary was discovered"),
		))
	}

	f.replaceServer(s)

	// Resync membership from the accepted primary's host lists.
	members := s.Members()
	for j := len(f.Servers) - 1; j >= 0; j-- {
		found := false
		for _, member := range members {
			if member == f.Servers[j].Addr {
				found = true
				break
			}
		}
		if !found {
			f.removeServer(j)
		}
	}

	for _, member := range members {
		if _, ok := f.findServer(member); !ok {
			f.addServer(member)
		}
	}

	f.checkIfHasPrimary()
}

func (f *fsm) updateRSWithPrimaryFromMember(s description.Server) {
	if f.SetName != s.SetName {
		f.disownServer(s.Addr, fmt.Sprintf("server reports set name %q, expected %q", s.SetName, f.SetName))
		f.checkIfHasPrimary()
		return
	}

	if s.Addr != s.CanonicalAddr {
		f.removeServerByAddr(s.Addr)
		f.checkIfHasPrimary()
		return
	}

	// A member that has sighted a newer primary than ours demotes it; the
	// sighted address will be confirmed by its own monitor.
	if s.Primary != "" {
		if j, ok := f.findPrimary(); ok && f.Servers[j].Addr != s.Primary &&
			compareElectionPairs(s.SetVersion, s.ElectionID, f.MaxSetVersion, f.MaxElectionID) > 0 {
			f.setServer(j, description.NewServerFromError(
				f.Servers[j].Addr,
				fmt.Errorf("was a primary, but a newer primary was reported by a member"),
			))
			f.markPossiblePrimary(s.Primary)
		}
	}

	f.replaceServer(s)

	f.checkIfHasPrimary()
}

func (f *fsm) updateRSWithoutPrimary(s description.Server) {
	if f.SetName == "" {
		f.SetName = s.SetName
	} else if f.SetName != s.SetName {
		f.disownServer(s.Addr, fmt.Sprintf("server reports set name %q, expected %q", s.SetName, f.SetName))
		return
	}

	for _, member := range s.Members() {
		if _, ok := f.findServer(member); !ok {
			f.addServer(member)
		}
	}

	if s.Primary != "" {
		f.markPossiblePrimary(s.Primary)
	}

	if s.Addr != s.CanonicalAddr {
		f.removeServerByAddr(s.Addr)
		return
	}

	f.replaceServer(s)
}

func (f *fsm) updateUnknownWithStandalone(s description.Server) {
	if len(f.Servers) > 1 {
		f.removeServerByAddr(s.Addr)
		return
	}

	f.setKind(description.Single)
	f.replaceServer(s)
}

func (f *fsm) checkIfHasPrimary() {
	if _, ok := f.findPrimary(); ok {
		f.setKind(description.ReplicaSetWithPrimary)
	} else {
		f.setKind(description.ReplicaSetNoPrimary)
	}
}

func (f *fsm) checkCompatibility() {
	for _, s := range f.Servers {
		if s.Kind == description.Unknown || s.Kind == description.PossiblePrimary {
			continue
		}

		if s.WireVersion.Max < supportedWireVersions.Min {
			f.CompatibilityErr = fmt.Errorf(
				"server at %s reports wire version %d, but this version of the ArkDB Go driver requires "+
					"at least %d (ArkDB %s)",
				s.Addr, s.WireVersion.Max, supportedWireVersions.Min, minSupportedServerVersion,
			)
			return
		}

		if s.WireVersion.Min > supportedWireVersions.Max {
			f.CompatibilityErr = fmt.Errorf(
				"server at %s requires wire version %d, but this version of the ArkDB Go driver only "+
					"supports up to %d",
				s.Addr, s.WireVersion.Min, supportedWireVersions.Max,
			)
			return
		}
	}

	f.CompatibilityErr = nil
}

func (f *fsm) updateSessionTimeout() {
	var timeout uint32
	set := false
	for _, s := range f.Servers {
		if !s.Kind.DataBearing() {
			continue
		}
		if !s.SessionTimeoutSet {
			f.SessionTimeoutMinutes, f.SessionTimeoutSet = 0, false
			return
		}
		if !set || s.SessionTimeoutMinutes < timeout {
			timeout = s.SessionTimeoutMinutes
			set = true
		}
	}
	f.SessionTimeoutMinutes, f.SessionTimeoutSet = timeout, set
}

// compareElectionPairs orders two (setVersion, electionId) pairs
// lexicographically: set version first, election id second. An absent field
// is lower than any present value.
func compareElectionPairs(v1 uint32, e1 bson.ObjectId, v2 uint32, e2 bson.ObjectId) int {
	if v1 != v2 {
		if v1 < v2 {
			return -1
		}
		return 1
	}
	return strings.Compare(string(e1), string(e2))
}

func (f *fsm) markPossiblePrimary(addr address.Address) {
	j, ok := f.findServer(addr)
	if !ok {
		return
	}
	srv := f.Servers[j]
	if srv.Kind == description.Unknown && srv.LastError == nil {
		srv.Kind = description.PossiblePrimary
		f.setServer(j, srv)
	}
}

func (f *fsm) addServer(addr address.Address) {
	f.Servers = append(f.Servers, description.NewDefaultServer(addr.Canonicalize()))
}

// disownServer resets the server's entry to Unknown with the given reason,
// keeping the address tracked so its monitor keeps checking it.
func (f *fsm) disownServer(addr address.Address, reason string) {
	f.replaceServer(description.NewServerFromError(addr, fmt.Errorf("%s", reason)))
}

func (f *fsm) findPrimary() (int, bool) {
	for i, s := range f.Servers {
		if s.Kind == description.RSPrimary {
			return i, true
		}
	}
	return 0, false
}

func (f *fsm) findServer(addr address.Address) (int, bool) {
	canon := addr.Canonicalize()
	for i, s := range f.Servers {
		if canon == s.Addr {
			return i, true
		}
	}
	return 0, false
}

func (f *fsm) removeServer(i int) {
	f.Servers = append(f.Servers[:i], f.Servers[i+1:]...)
}

func (f *fsm) removeServerByAddr(addr address.Address) {
	if i, ok := f.findServer(addr); ok {
		f.removeServer(i)
	}
}

func (f *fsm) replaceServer(s description.Server) bool {
	if i, ok := f.findServer(s.Addr); ok {
		f.setServer(i, s)
		return true
	}
	return false
}

func (f *fsm) setServer(i int, s description.Server) {
	f.Servers[i] = s
}

func (f *fsm) setKind(k description.TopologyKind) {
	f.Kind = k
}
