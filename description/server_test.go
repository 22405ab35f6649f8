// Copyright (C) ArkDB, Inc. 2018-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package description

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arkdb/ark-go-driver/address"
	"github.com/arkdb/ark-go-driver/wire"
)

func TestNewServerKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		reply    wire.Hello
		expected ServerKind
	}{
		{
			name:     "standalone",
			reply:    wire.Hello{OK: 1, IsWritablePrimary: true},
			expected: Standalone,
		},
		{
			name:     "router",
			reply:    wire.Hello{OK: 1, Msg: "isdbgrid"},
			expected: Router,
		},
		{
			name:     "primary",
			reply:    wire.Hello{OK: 1, SetName: "rs", IsWritablePrimary: true},
			expected: RSPrimary,
		},
		{
			name:     "secondary",
			reply:    wire.Hello{OK: 1, SetName: "rs", Secondary: true},
			expected: RSSecondary,
		},
		{
			name:     "arbiter",
			reply:    wire.Hello{OK: 1, SetName: "rs", ArbiterOnly: true},
			expected: RSArbiter,
		},
		{
			name:     "hidden secondary",
			reply:    wire.Hello{OK: 1, SetName: "rs", Secondary: true, Hidden: true},
			expected: RSMember,
		},
		{
			name:     "member in recovery",
			reply:    wire.Hello{OK: 1, SetName: "rs"},
			expected: RSMember,
		},
		{
			name:     "ghost",
			reply:    wire.Hello{OK: 1, IsReplicaSet: true},
			expected: RSGhost,
		},
		{
			// isreplicaset wins even when a set name is present.
			name:     "ghost with set name",
			reply:    wire.Hello{OK: 1, IsReplicaSet: true, SetName: "rs", Secondary: true},
			expected: RSGhost,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := NewServer(address.Address("localhost:27017"), &tc.reply)
			require.Equal(t, tc.expected, s.Kind)
		})
	}
}

func TestNewServerFields(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	timeout := uint32(30)
	reply := &wire.Hello{
		OK:                    1,
		IsWritablePrimary:     true,
		SetName:               "rs",
		SetVersion:            2,
		Me:                    "A:27017",
		Hosts:                 []string{"A:27017", "b:27017"},
		Passives:              []string{"c:27017"},
		Arbiters:              []string{"d:27017"},
		Tags:                  map[string]string{"dc": "east"},
		MinWireVersion:        2,
		MaxWireVersion:        6,
		SessionTimeoutMinutes: &timeout,
	}

	s := NewServer(address.Address("a:27017"), reply)

	require.Equal(address.Address("a:27017"), s.Addr)
	require.Equal(address.Address("a:27017"), s.CanonicalAddr)
	require.Equal("rs", s.SetName)
	require.Equal(uint32(2), s.SetVersion)
	require.Equal([]address.Address{"a:27017", "b:27017"}, s.Hosts)
	require.Equal([]address.Address{"c:27017"}, s.Passives)
	require.Equal([]address.Address{"d:27017"}, s.Arbiters)
	require.True(s.Tags.Contains("dc", "east"))
	require.Equal(Range{Min: 2, Max: 6}, s.WireVersion)
	require.True(s.SessionTimeoutSet)
	require.Equal(uint32(30), s.SessionTimeoutMinutes)
	require.False(s.LastUpdateTime.IsZero())

	members := s.Members()
	require.Len(members, 4)
	require.Contains(members, address.Address("d:27017"))
}

func TestNewServerFromError(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	err := errTest("no route to host")
	s := NewServerFromError(address.Address("a:27017"), err)

	require.Equal(ServerKind(Unknown), s.Kind)
	require.Equal(err, s.LastError)
	require.Equal(address.Address("a:27017"), s.CanonicalAddr)
}

func TestSetAverageRTT(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	s := NewDefaultServer(address.Address("a:27017"))
	require.False(s.AverageRTTSet)

	with := s.SetAverageRTT(5 * time.Millisecond)
	require.True(with.AverageRTTSet)
	require.Equal(5*time.Millisecond, with.AverageRTT)
	// the original is untouched
	require.False(s.AverageRTTSet)

	unset := with.SetAverageRTT(UnsetRTT)
	require.False(unset.AverageRTTSet)
}

type errTest string

func (e errTest) Error() string { return string(e) }
