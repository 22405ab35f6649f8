// Copyright (C) ArkDB, Inc. 2018-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package topology

import (
	"sync"
	"time"

	"github.com/montanaflynn/stats"
)

const (
	rttAlphaValue = 0.2
	rttSampleSize = 10
)

// rttTracker keeps the exponentially weighted moving average of heartbeat
// round trip times for one server, plus a small window of raw samples for
// the minimum and 90th percentile.
type rttTracker struct {
	mu sync.Mutex

	samples       []time.Duration
	offset        int
	count         int
	averageRTT    time.Duration
	averageRTTSet bool
	minRTT        time.Duration
	rtt90         time.Duration
}

func newRTTTracker() *rttTracker {
	return &rttTracker{
		samples: make([]time.Duration, rttSampleSize),
	}
}

// add records a sample and returns the updated average and minimum. The
// first sample sets the average directly.
func (r *rttTracker) add(rtt time.Duration) (avg, min time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.averageRTTSet {
		r.averageRTT = rtt
		r.averageRTTSet = true
	} else {
		r.averageRTT = time.Duration(rttAlphaValue*float64(rtt) + (1-rttAlphaValue)*float64(r.averageRTT))
	}

	r.samples[r.offset] = rtt
	r.offset = (r.offset + 1) % len(r.samples)
	if r.count < len(r.samples) {
		r.count++
	}

	window := make([]float64, 0, r.count)
	for i := 0; i < r.count; i++ {
		window = append(window, float64(r.samples[i]))
	}
	if m, err := stats.Min(window); err == nil {
		r.minRTT = time.Duration(m)
	}
	if p, err := stats.Percentile(window, 90); err == nil {
		r.rtt90 = time.Duration(p)
	}

	return r.averageRTT, r.minRTT
}

// reset clears all samples. Called when a heartbeat fails; stale latencies
// must not survive a reconnect.
func (r *rttTracker) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.samples {
		r.samples[i] = 0
	}
	r.offset = 0
	r.count = 0
	r.averageRTT = 0
	r.averageRTTSet = false
	r.minRTT = 0
	r.rtt90 = 0
}

func (r *rttTracker) stats() (avg time.Duration, set bool, min, p90 time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.averageRTT, r.averageRTTSet, r.minRTT, r.rtt90
}
