// Copyright (C) ArkDB, Inc. 2018-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package description

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTagSetContains(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	ts := NewTagSet("dc", "east", "rack", "1")

	require.True(ts.Contains("dc", "east"))
	require.True(ts.Contains("rack", "1"))
	require.False(ts.Contains("dc", "west"))
	require.False(ts.Contains("zone", "a"))

	require.True(ts.ContainsAll(NewTagSet("dc", "east")))
	require.True(ts.ContainsAll(NewTagSet("rack", "1", "dc", "east")))
	require.False(ts.ContainsAll(NewTagSet("dc", "east", "zone", "a")))
}

func TestNewTagSetOddPanics(t *testing.T) {
	t.Parallel()
	require.Panics(t, func() { NewTagSet("dc") })
}

func TestRange(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	r := NewRange(2, 6)
	require.True(r.Includes(2))
	require.True(r.Includes(6))
	require.False(r.Includes(7))

	require.True(r.Overlaps(NewRange(6, 9)))
	require.True(r.Overlaps(NewRange(0, 2)))
	require.False(r.Overlaps(NewRange(7, 9)))
}
