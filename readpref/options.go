// Copyright (C) ArkDB, Inc. 2018-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package readpref

import (
	"time"

	"github.com/arkdb/ark-go-driver/description"
)

// Option configures a read preference.
type Option func(*ReadPref) error

// WithMaxStaleness sets the maximum staleness a server is allowed.
func WithMaxStaleness(ms time.Duration) Option {
	return func(r *ReadPref) error {
		r.maxStaleness = ms
		r.maxStalenessSet = true
		return nil
	}
}

// WithTags specifies a single tag set used to match a server. The tags are
// taken in pairs: name then value.
func WithTags(tags ...string) Option {
	return func(r *ReadPref) error {
		r.tagSets = []description.TagSet{description.NewTagSet(tags...)}
		return nil
	}
}

// WithTagSets specifies the tag sets used to match a server. Sets are tried
// in order; the first set with any match wins.
func WithTagSets(tagSets ...description.TagSet) Option {
	return func(r *ReadPref) error {
		r.tagSets = tagSets
		return nil
	}
}
