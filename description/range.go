// Copyright (C) ArkDB, Inc. 2018-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package description

import "fmt"

// NewRange creates a new Range given a min and a max.
func NewRange(min, max int32) Range {
	return Range{Min: min, Max: max}
}

// Range is an inclusive range of wire protocol versions.
type Range struct {
	Min int32
	Max int32
}

// Includes returns a bool indicating whether the supplied integer is included
// in the range.
func (r Range) Includes(i int32) bool {
	return i >= r.Min && i <= r.Max
}

// Overlaps returns a bool indicating whether the two ranges share at least
// one version.
func (r Range) Overlaps(other Range) bool {
	return r.Min <= other.Max && r.Max >= other.Min
}

// String implements the fmt.Stringer interface.
func (r Range) String() string {
	return fmt.Sprintf("[%d, %d]", r.Min, r.Max)
}
