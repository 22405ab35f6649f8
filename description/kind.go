// Copyright (C) ArkDB, Inc. 2018-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package description

// Unknown is an unknown server or topology kind.
const Unknown = 0

// TopologyKind represents a specific topology configuration.
type TopologyKind uint32

// TopologyKind constants.
const (
	Single                TopologyKind = 1
	ReplicaSet            TopologyKind = 2
	ReplicaSetNoPrimary   TopologyKind = 4 + ReplicaSet
	ReplicaSetWithPrimary TopologyKind = 8 + ReplicaSet
	Sharded               TopologyKind = 256
)

// String implements the fmt.Stringer interface.
func (kind TopologyKind) String() string {
	switch kind {
	case Single:
		return "Single"
	case ReplicaSet:
		return "ReplicaSet"
	case ReplicaSetNoPrimary:
		return "ReplicaSetNoPrimary"
	case ReplicaSetWithPrimary:
		return "ReplicaSetWithPrimary"
	case Sharded:
		return "Sharded"
	}

	return "Unknown"
}

// ServerKind represents the role a server plays in a topology.
type ServerKind uint32

// ServerKind constants.
const (
	Standalone      ServerKind = 1
	RSMember        ServerKind = 2
	RSPrimary       ServerKind = 4 + RSMember
	RSSecondary     ServerKind = 8 + RSMember
	RSArbiter       ServerKind = 16 + RSMember
	RSGhost         ServerKind = 32 + RSMember
	PossiblePrimary ServerKind = 64 + RSMember
	Router          ServerKind = 256
)

// String implements the fmt.Stringer interface.
func (kind ServerKind) String() string {
	switch kind {
	case Standalone:
		return "Standalone"
	case RSMember:
		return "RSOther"
	case RSPrimary:
		return "RSPrimary"
	case RSSecondary:
		return "RSSecondary"
	case RSArbiter:
		return "RSArbiter"
	case RSGhost:
		return "RSGhost"
	case PossiblePrimary:
		return "PossiblePrimary"
	case Router:
		return "Router"
	}

	return "Unknown"
}

// DataBearing reports whether a server of this kind can serve reads or
// writes. Arbiters, ghosts, and unknown servers hold no data.
func (kind ServerKind) DataBearing() bool {
	switch kind {
	case RSPrimary, RSSecondary, Standalone, Router:
		return true
	}
	return false
}
