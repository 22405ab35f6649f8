// Copyright (C) ArkDB, Inc. 2018-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package topology

import (
	"errors"
	"fmt"

	"github.com/arkdb/ark-go-driver/description"
)

// ErrTopologyClosed is returned from an operation on a closed topology.
var ErrTopologyClosed = errors.New("topology is closed")

// ErrSubscribeAfterClosed is returned when a subscription is requested on a
// closed topology.
var ErrSubscribeAfterClosed = errors.New("cannot subscribe after close")

// ServerSelectionError represents a failure to find a suitable server. Desc
// holds the last topology snapshot observed before giving up, for diagnosis.
type ServerSelectionError struct {
	Desc    description.Topology
	Wrapped error
}

// Error implements the error interface.
func (e ServerSelectionError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("server selection error: %s, current topology: { %s }", e.Wrapped, e.Desc)
	}
	return fmt.Sprintf("server selection error: current topology: { %s }", e.Desc)
}

// Unwrap returns the underlying error.
func (e ServerSelectionError) Unwrap() error { return e.Wrapped }
