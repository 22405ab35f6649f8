// Copyright (C) ArkDB, Inc. 2018-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package description

// ServerSelector is a function that selects the subset of candidate servers
// suitable for an operation, given a topology snapshot. Returning an empty
// slice means no suitable server exists right now; returning an error means
// no suitable server can ever exist for this topology and selection should
// fail without waiting.
type ServerSelector func(Topology, []Server) ([]Server, error)
