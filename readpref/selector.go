// Copyright (C) ArkDB, Inc. 2018-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package readpref

import (
	"fmt"
	"time"

	"github.com/arkdb/ark-go-driver/description"
)

// idleWritePeriod is the assumed interval between no-op writes on an idle
// primary, used when estimating secondary staleness.
const idleWritePeriod = 10 * time.Second

// Selector creates a ServerSelector that matches servers against the read
// preference.
func Selector(rp *ReadPref) description.ServerSelector {
	return func(t description.Topology, candidates []description.Server) ([]description.Server, error) {
		return selectServer(rp, t, candidates)
	}
}

func selectServer(rp *ReadPref, t description.Topology, candidates []description.Server) ([]description.Server, error) {
	switch t.Kind {
	case description.Single:
		return candidates, nil
	case description.ReplicaSetNoPrimary, description.ReplicaSetWithPrimary:
		return selectForReplicaSet(rp, t, candidates)
	case description.Sharded:
		return selectByKind(candidates, description.Router), nil
	}

	return nil, nil
}

func selectForReplicaSet(rp *ReadPref, t description.Topology, candidates []description.Server) ([]description.Server, error) {
	if err := verifyMaxStaleness(rp, t); err != nil {
		return nil, err
	}

	switch rp.Mode() {
	case PrimaryMode:
		return selectByKind(candidates, description.RSPrimary), nil
	case PrimaryPreferredMode:
		selected := selectByKind(candidates, description.RSPrimary)

		if len(selected) == 0 {
			selected = selectSecondaries(rp, candidates)
			return selectByTagSet(selected, rp.TagSets()), nil
		}

		return selected, nil
	case SecondaryPreferredMode:
		selected := selectSecondaries(rp, candidates)
		selected = selectByTagSet(selected, rp.TagSets())
		if len(selected) > 0 {
			return selected, nil
		}
		return selectByKind(candidates, description.RSPrimary), nil
	case SecondaryMode:
		selected := selectSecondaries(rp, candidates)
		return selectByTagSet(selected, rp.TagSets()), nil
	case NearestMode:
		selected := selectByKind(candidates, description.RSPrimary)
		selected = append(selected, selectSecondaries(rp, candidates)...)
		return selectByTagSet(selected, rp.TagSets()), nil
	}

	return nil, fmt.Errorf("unsupported mode: %d", rp.Mode())
}

func selectSecondaries(rp *ReadPref, candidates []description.Server) []description.Server {
	secondaries := selectByKind(candidates, description.RSSecondary)
	if len(secondaries) == 0 {
		return secondaries
	}

	maxStaleness, set := rp.MaxStaleness()
	if !set {
		return secondaries
	}

	primaries := selectByKind(candidates, description.RSPrimary)
	if len(primaries) == 0 {
		baseTime := secondaries[0].LastWriteTime
		for i := 1; i < len(secondaries); i++ {
			if secondaries[i].LastWriteTime.After(baseTime) {
				baseTime = secondaries[i].LastWriteTime
			}
		}

		var selected []description.Server
		for _, secondary := range secondaries {
			estimatedStaleness := baseTime.Sub(secondary.LastWriteTime) + secondary.HeartbeatInterval
			if estimatedStaleness <= maxStaleness {
				selected = append(selected, secondary)
			}
		}
		return selected
	}

	primary := primaries[0]

	var selected []description.Server
	for _, secondary := range secondaries {
		estimatedStaleness := secondary.LastUpdateTime.Sub(secondary.LastWriteTime) -
			primary.LastUpdateTime.Sub(primary.LastWriteTime) + secondary.HeartbeatInterval
		if estimatedStaleness <= maxStaleness {
			selected = append(selected, secondary)
		}
	}
	return selected
}

func selectByTagSet(candidates []description.Server, tagSets []description.TagSet) []description.Server {
	if len(tagSets) == 0 {
		return candidates
	}

	for _, ts := range tagSets {
		var results []description.Server
		for _, s := range candidates {
			if len(s.Tags) > 0 && s.Tags.ContainsAll(ts) {
				results = append(results, s)
			}
		}

		if len(results) > 0 {
			return results
		}
	}

	return []description.Server{}
}

func selectByKind(candidates []description.Server, kind description.ServerKind) []description.Server {
	var result []description.Server
	for _, s := range candidates {
		if s.Kind == kind {
			result = append(result, s)
		}
	}

	return result
}

func verifyMaxStaleness(rp *ReadPref, t description.Topology) error {
	maxStaleness, set := rp.MaxStaleness()
	if !set {
		return nil
	}

	if maxStaleness < 90*time.Second {
		return fmt.Errorf(
			"max staleness (%s) must be greater than or equal to 90s",
			maxStaleness,
		)
	}

	if len(t.Servers) < 1 {
		// Maybe we should return an error here instead?
		return nil
	}

	// we'll assume all candidates have the same heartbeat interval.
	s := t.Servers[0]

	if maxStaleness < s.HeartbeatInterval+idleWritePeriod {
		return fmt.Errorf(
			"max staleness (%s) must be greater than or equal to the heartbeat interval (%s) plus idle write period (%s)",
			maxStaleness,
			s.HeartbeatInterval,
			idleWritePeriod,
		)
	}

	return nil
}
