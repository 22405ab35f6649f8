// Copyright (C) ArkDB, Inc. 2018-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package description

import "sort"

// TopologyDiff is the difference between two topology descriptions.
type TopologyDiff struct {
	Added   []Server
	Removed []Server
}

// DiffTopology compares the two topology descriptions and returns the
// servers that were added and removed.
func DiffTopology(old, new Topology) TopologyDiff {
	var diff TopologyDiff

	oldServers := make([]Server, len(old.Servers))
	copy(oldServers, old.Servers)
	newServers := make([]Server, len(new.Servers))
	copy(newServers, new.Servers)

	byAddr := func(ss []Server) func(i, j int) bool {
		return func(i, j int) bool { return ss[i].Addr < ss[j].Addr }
	}
	sort.Slice(oldServers, byAddr(oldServers))
	sort.Slice(newServers, byAddr(newServers))

	i := 0
	j := 0
	for i < len(oldServers) || j < len(newServers) {
		switch {
		case i >= len(oldServers):
			diff.Added = append(diff.Added, newServers[j])
			j++
		case j >= len(newServers):
			diff.Removed = append(diff.Removed, oldServers[i])
			i++
		case oldServers[i].Addr < newServers[j].Addr:
			diff.Removed = append(diff.Removed, oldServers[i])
			i++
		case oldServers[i].Addr > newServers[j].Addr:
			diff.Added = append(diff.Added, newServers[j])
			j++
		default:
			i++
			j++
		}
	}

	return diff
}
