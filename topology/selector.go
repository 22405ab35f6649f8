// Copyright (C) ArkDB, Inc. 2018-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package topology

import (
	"time"

	"github.com/arkdb/ark-go-driver/description"
)

// CompositeSelector combines multiple selectors into a single selector,
// applying them in order.
func CompositeSelector(selectors []description.ServerSelector) description.ServerSelector {
	return func(t description.Topology, candidates []description.Server) ([]description.Server, error) {
		var err error
		for _, sel := range selectors {
			candidates, err = sel(t, candidates)
			if err != nil {
				return nil, err
			}
		}
		return candidates, nil
	}
}

// LatencySelector creates a ServerSelector which selects servers based on
// their latency: only servers within the given window of the fastest
// candidate survive.
func LatencySelector(window time.Duration) description.ServerSelector {
	return func(t description.Topology, candidates []description.Server) ([]description.Server, error) {
		return selectByLatency(window, candidates), nil
	}
}

func selectByLatency(window time.Duration, candidates []description.Server) []description.Server {
	if len(candidates) <= 1 {
		return candidates
	}

	min := time.Duration(-1)
	for _, c := range candidates {
		if !c.AverageRTTSet {
			continue
		}
		if min < 0 || c.AverageRTT < min {
			min = c.AverageRTT
		}
	}
	if min < 0 {
		return candidates
	}

	max := min + window
	var survivors []description.Server
	for _, c := range candidates {
		if c.AverageRTTSet && c.AverageRTT <= max {
			survivors = append(survivors, c)
		}
	}
	return survivors
}

// WriteSelector selects all servers writes can be sent to: the replica set
// primary, a standalone server, or any router.
func WriteSelector() description.ServerSelector {
	return func(t description.Topology, candidates []description.Server) ([]description.Server, error) {
		switch t.Kind {
		case description.Single:
			return candidates, nil
		default:
			var result []description.Server
			for _, c := range candidates {
				switch c.Kind {
				case description.RSPrimary, description.Standalone, description.Router:
					result = append(result, c)
				}
			}
			return result, nil
		}
	}
}
