// Copyright (C) ArkDB, Inc. 2018-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package topology

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"gopkg.in/mgo.v2/bson"

	"github.com/arkdb/ark-go-driver/address"
	"github.com/arkdb/ark-go-driver/description"
	"github.com/arkdb/ark-go-driver/wire"
)

const (
	addrA = address.Address("a:27017")
	addrB = address.Address("b:27017")
	addrC = address.Address("c:27017")
	addrD = address.Address("d:27017")
)

func oid(b byte) bson.ObjectId {
	return bson.ObjectId(bytes.Repeat([]byte{b}, 12))
}

func seededFSM(seeds ...address.Address) *fsm {
	f := newFSM()
	for _, seed := range seeds {
		f.addServer(seed)
	}
	return f
}

func primaryDesc(addr address.Address, setVersion uint32, electionID bson.ObjectId, hosts ...string) description.Server {
	return description.NewServer(addr, &wire.Hello{
		OK:                1,
		IsWritablePrimary: true,
		SetName:           "rs",
		SetVersion:        setVersion,
		ElectionID:        electionID,
		Hosts:             hosts,
		MinWireVersion:    2,
		MaxWireVersion:    6,
	})
}

func secondaryDesc(addr address.Address, setName string, hosts ...string) description.Server {
	return description.NewServer(addr, &wire.Hello{
		OK:             1,
		Secondary:      true,
		SetName:        setName,
		Hosts:          hosts,
		MinWireVersion: 2,
		MaxWireVersion: 6,
	})
}

func standaloneDesc(addr address.Address, minWire, maxWire int32) description.Server {
	return description.NewServer(addr, &wire.Hello{
		OK:                1,
		IsWritablePrimary: true,
		MinWireVersion:    minWire,
		MaxWireVersion:    maxWire,
	})
}

func routerDesc(addr address.Address) description.Server {
	return description.NewServer(addr, &wire.Hello{
		OK:             1,
		Msg:            "isdbgrid",
		MinWireVersion: 2,
		MaxWireVersion: 6,
	})
}

func serverIn(t *testing.T, topo description.Topology, addr address.Address) description.Server {
	t.Helper()
	s, ok := topo.Server(addr)
	require.True(t, ok, "expected %s to be tracked", addr)
	return s
}

func TestFSMDiscoverReplicaSetFromPrimary(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	f := seededFSM(addrA)
	topo := f.apply(primaryDesc(addrA, 1, oid(1), "a:27017", "b:27017", "c:27017"))

	require.Equal(description.ReplicaSetWithPrimary, topo.Kind)
	require.Equal("rs", topo.SetName)
	require.Len(topo.Servers, 3)
	require.Equal(description.RSPrimary, serverIn(t, topo, addrA).Kind)
	require.Equal(description.ServerKind(description.Unknown), serverIn(t, topo, addrB).Kind)
	require.Equal(uint32(1), topo.MaxSetVersion)
	require.Equal(oid(1), topo.MaxElectionID)
	require.NoError(topo.CompatibilityErr)
}

func TestFSMStaleElectionIgnored(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	f := seededFSM(addrA, addrB)
	f.apply(primaryDesc(addrA, 1, oid(2), "a:27017", "b:27017"))

	// b claims to have won an older election.
	topo := f.apply(primaryDesc(addrB, 1, oid(1), "a:27017", "b:27017"))

	require.Equal(description.ReplicaSetWithPrimary, topo.Kind)
	require.Equal(description.RSPrimary, serverIn(t, topo, addrA).Kind)

	b := serverIn(t, topo, addrB)
	require.Equal(description.ServerKind(description.Unknown), b.Kind)
	require.Error(b.LastError)

	require.Equal(uint32(1), topo.MaxSetVersion)
	require.Equal(oid(2), topo.MaxElectionID)
}

func TestFSMNewerElectionDemotesOldPrimary(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	f := seededFSM(addrA, addrB)
	f.apply(primaryDesc(addrA, 1, oid(1), "a:27017", "b:27017"))
	topo := f.apply(primaryDesc(addrB, 2, oid(1), "a:27017", "b:27017"))

	require.Equal(description.ReplicaSetWithPrimary, topo.Kind)
	require.Equal(description.RSPrimary, serverIn(t, topo, addrB).Kind)

	a := serverIn(t, topo, addrA)
	require.Equal(description.ServerKind(description.Unknown), a.Kind)
	require.Error(a.LastError)

	require.Equal(uint32(2), topo.MaxSetVersion)
}

func TestFSMEqualElectionFromOtherAddressIsStale(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	f := seededFSM(addrA, addrB)
	f.apply(primaryDesc(addrA, 1, oid(1), "a:27017", "b:27017"))
	topo := f.apply(primaryDesc(addrB, 1, oid(1), "a:27017", "b:27017"))

	require.Equal(description.RSPrimary, serverIn(t, topo, addrA).Kind)
	require.Error(serverIn(t, topo, addrB).LastError)
}

func TestFSMReplayIsIdempotent(t *testing.T) {
	t.Parallel()

	desc := primaryDesc(addrA, 1, oid(1), "a:27017", "b:27017")

	f := seededFSM(addrA)
	first := f.apply(desc)
	second := f.apply(desc)

	require.Empty(t, cmp.Diff(first, second))
	require.Equal(t, description.ReplicaSetWithPrimary, second.Kind)
}

func TestFSMMembershipResync(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	f := seededFSM(addrA, addrB, addrC)
	topo := f.apply(primaryDesc(addrA, 1, oid(1), "a:27017", "b:27017"))

	require.Len(topo.Servers, 2)
	require.False(topo.HasServer(addrC))

	topo = f.apply(primaryDesc(addrA, 1, oid(1), "a:27017", "b:27017", "d:27017"))
	require.Len(topo.Servers, 3)
	require.True(topo.HasServer(addrD))
	require.Equal(description.ServerKind(description.Unknown), serverIn(t, topo, addrD).Kind)
}

func TestFSMStaleReportFromRemovedMemberIgnored(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	f := seededFSM(addrA, addrC)
	f.apply(primaryDesc(addrA, 1, oid(1), "a:27017", "b:27017"))

	// c was resynced away; a late report from its monitor changes nothing.
	topo := f.apply(secondaryDesc(addrC, "rs", "a:27017", "b:27017"))

	require.False(topo.HasServer(addrC))
	require.Equal(description.ReplicaSetWithPrimary, topo.Kind)
	require.Len(topo.Servers, 2)
}

func TestFSMSetNameMismatchDisowns(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	f := seededFSM(addrA, addrB)
	f.apply(primaryDesc(addrA, 1, oid(1), "a:27017", "b:27017"))
	topo := f.apply(secondaryDesc(addrB, "other", "b:27017"))

	// The entry stays tracked so the monitor keeps checking it.
	b := serverIn(t, topo, addrB)
	require.Equal(description.ServerKind(description.Unknown), b.Kind)
	require.Error(b.LastError)
	require.Equal(description.ReplicaSetWithPrimary, topo.Kind)
}

func TestFSMStandaloneRemovedFromMultiSeedList(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	f := seededFSM(addrA, addrB)
	topo := f.apply(standaloneDesc(addrA, 2, 6))

	require.False(topo.HasServer(addrA))
	require.Equal(description.TopologyKind(description.Unknown), topo.Kind)
}

func TestFSMSingleSeedStandalone(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	f := seededFSM(addrA)
	topo := f.apply(standaloneDesc(addrA, 2, 6))

	require.Equal(description.Single, topo.Kind)
	require.Equal(description.Standalone, serverIn(t, topo, addrA).Kind)
}

func TestFSMSingleNeverRemovesItsServer(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	f := seededFSM(addrA)
	f.SetName = "rs"
	f.setKind(description.Single)

	// Even a set name mismatch only resets the entry; it is never dropped.
	topo := f.apply(secondaryDesc(addrA, "other", "a:27017"))

	require.Equal(description.Single, topo.Kind)
	a := serverIn(t, topo, addrA)
	require.Equal(description.ServerKind(description.Unknown), a.Kind)
	require.Error(a.LastError)
}

func TestFSMShardedDisownsNonRouter(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	f := seededFSM(addrA, addrB)
	topo := f.apply(routerDesc(addrA))
	require.Equal(description.Sharded, topo.Kind)

	topo = f.apply(secondaryDesc(addrB, "rs", "b:27017"))
	require.Equal(description.Sharded, topo.Kind)

	b := serverIn(t, topo, addrB)
	require.Equal(description.ServerKind(description.Unknown), b.Kind)
	require.Error(b.LastError)
}

func TestFSMGhostDisowned(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	f := seededFSM(addrA, addrB)
	f.apply(secondaryDesc(addrA, "rs", "a:27017", "b:27017"))

	ghost := description.NewServer(addrB, &wire.Hello{OK: 1, IsReplicaSet: true, MinWireVersion: 2, MaxWireVersion: 6})
	topo := f.apply(ghost)

	b := serverIn(t, topo, addrB)
	require.Equal(description.ServerKind(description.Unknown), b.Kind)
	require.Error(b.LastError)
}

func TestFSMPossiblePrimary(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	f := seededFSM(addrA, addrB)
	desc := description.NewServer(addrA, &wire.Hello{
		OK:             1,
		Secondary:      true,
		SetName:        "rs",
		Hosts:          []string{"a:27017", "b:27017"},
		Primary:        "b:27017",
		MinWireVersion: 2,
		MaxWireVersion: 6,
	})
	topo := f.apply(desc)

	require.Equal(description.ReplicaSetNoPrimary, topo.Kind)
	require.Equal(description.PossiblePrimary, serverIn(t, topo, addrB).Kind)
}

func TestFSMMemberSightsNewerPrimary(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	f := seededFSM(addrA, addrB)
	f.apply(primaryDesc(addrA, 1, oid(1), "a:27017", "b:27017"))

	member := description.NewServer(addrB, &wire.Hello{
		OK:             1,
		Secondary:      true,
		SetName:        "rs",
		SetVersion:     2,
		ElectionID:     oid(1),
		Hosts:          []string{"a:27017", "b:27017"},
		Primary:        "b:27017",
		MinWireVersion: 2,
		MaxWireVersion: 6,
	})
	topo := f.apply(member)

	// The old primary is demoted on the member's word; the sighted primary
	// still has to confirm through its own monitor.
	require.Equal(description.ReplicaSetNoPrimary, topo.Kind)
	a := serverIn(t, topo, addrA)
	require.Equal(description.ServerKind(description.Unknown), a.Kind)
	require.Error(a.LastError)
	require.Equal(description.RSSecondary, serverIn(t, topo, addrB).Kind)
}

func TestFSMCompatibility(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	f := seededFSM(addrA)
	topo := f.apply(standaloneDesc(addrA, 0, 1))
	require.Error(topo.CompatibilityErr)

	// A server demanding more than we speak is just as incompatible.
	topo = f.apply(standaloneDesc(addrA, 10, 12))
	require.Error(topo.CompatibilityErr)

	// The error clears once the server reports a compatible range.
	topo = f.apply(standaloneDesc(addrA, 2, 6))
	require.NoError(topo.CompatibilityErr)
}

func TestFSMSessionTimeoutAggregation(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	mins := func(m uint32) *uint32 { return &m }

	f := seededFSM(addrA, addrB)
	f.apply(description.NewServer(addrA, &wire.Hello{
		OK: 1, IsWritablePrimary: true, SetName: "rs", SetVersion: 1, ElectionID: oid(1),
		Hosts: []string{"a:27017", "b:27017"},
		MinWireVersion: 2, MaxWireVersion: 6,
		SessionTimeoutMinutes: mins(30),
	}))
	topo := f.apply(description.NewServer(addrB, &wire.Hello{
		OK: 1, Secondary: true, SetName: "rs",
		Hosts: []string{"a:27017", "b:27017"},
		MinWireVersion: 2, MaxWireVersion: 6,
		SessionTimeoutMinutes: mins(20),
	}))

	// The topology advertises the smallest timeout of its data-bearing
	// members.
	require.True(topo.SessionTimeoutSet)
	require.Equal(uint32(20), topo.SessionTimeoutMinutes)

	// A member without session support takes the feature away entirely.
	topo = f.apply(description.NewServer(addrB, &wire.Hello{
		OK: 1, Secondary: true, SetName: "rs",
		Hosts: []string{"a:27017", "b:27017"},
		MinWireVersion: 2, MaxWireVersion: 6,
	}))
	require.False(topo.SessionTimeoutSet)
}

func TestFSMSnapshotsAreImmutable(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	f := seededFSM(addrA)
	first := f.apply(primaryDesc(addrA, 1, oid(1), "a:27017", "b:27017"))
	require.Len(first.Servers, 2)

	// Later transitions must not reach back into published snapshots.
	f.apply(primaryDesc(addrA, 1, oid(1), "a:27017"))

	require.Len(first.Servers, 2)
	require.Equal(description.RSPrimary, serverIn(t, first, addrA).Kind)
	require.True(first.HasServer(addrB))
}

func TestCompareElectionPairs(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	require.Equal(0, compareElectionPairs(1, oid(1), 1, oid(1)))
	require.Equal(-1, compareElectionPairs(1, oid(2), 2, oid(1)))
	require.Equal(1, compareElectionPairs(2, oid(1), 1, oid(2)))
	require.Equal(-1, compareElectionPairs(1, oid(1), 1, oid(2)))
	require.Equal(1, compareElectionPairs(1, oid(2), 1, oid(1)))

	// An absent value is lower than any present one.
	require.Equal(-1, compareElectionPairs(0, "", 1, oid(1)))
	require.Equal(-1, compareElectionPairs(1, "", 1, oid(1)))
}
