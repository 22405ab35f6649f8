// Copyright (C) ArkDB, Inc. 2018-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package topology contains types that handle the discovery, monitoring and
// selection of servers. This package is designed to expose enough inner
// workings of service discovery and monitoring to allow low level
// applications to have fine grained control, while hiding the details from
// normal use.
package topology

import (
	"context"
	"math/rand"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/arkdb/ark-go-driver/address"
	"github.com/arkdb/ark-go-driver/description"
	"github.com/arkdb/ark-go-driver/driver"
	"github.com/arkdb/ark-go-driver/event"
)

// Topology represents a deployment of servers. It monitors the deployment's
// servers, maintains a description of the topology based on their reports,
// and selects servers for operations.
//
// All state transitions funnel through a single goroutine reading from the
// changes channel, so server reports are applied one at a time. The current
// description is an immutable snapshot readable without coordination.
type Topology struct {
	cfg *config

	desc atomic.Value // holds a description.Topology
	fsm  *fsm

	changes   chan description.Server
	changesWG sync.WaitGroup
	done      chan struct{}

	serversLock   sync.Mutex
	serversClosed bool
	started       bool
	servers       map[address.Address]*Server
	retireWG      sync.WaitGroup

	subLock             sync.Mutex
	subscribers         map[uint64]chan description.Topology
	currentSubscriberID uint64
	subscriptionsClosed bool

	randLock sync.Mutex
	rand     *rand.Rand

	startOnce sync.Once
	closeOnce sync.Once
}

var _ driver.Deployment = (*Topology)(nil)

// New creates a new topology from the given options. The topology does not
// begin monitoring until Start is called.
func New(opts ...Option) (*Topology, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	t := &Topology{
		cfg:         cfg,
		fsm:         newFSM(),
		changes:     make(chan description.Server),
		done:        make(chan struct{}),
		servers:     make(map[address.Address]*Server),
		subscribers: make(map[uint64]chan description.Topology),
		rand:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	seeds := make([]address.Address, 0, len(cfg.seedList))
	for _, seed := range cfg.seedList {
		seeds = append(seeds, seed.Canonicalize())
	}

	if cfg.replicaSetName != "" {
		t.fsm.SetName = cfg.replicaSetName
	}
	switch {
	case cfg.mode == SingleMode:
		// A single topology is pinned to its first seed.
		seeds = seeds[:1]
		t.fsm.setKind(description.Single)
	case cfg.replicaSetName != "":
		t.fsm.setKind(description.ReplicaSetNoPrimary)
	}

	for _, seed := range seeds {
		t.fsm.addServer(seed)
	}
	t.desc.Store(t.fsm.Topology)

	return t, nil
}

// Start begins monitoring the topology's seed servers.
func (t *Topology) Start() {
	t.startOnce.Do(func() {
		if t.cfg.monitor != nil && t.cfg.monitor.TopologyOpening != nil {
			t.cfg.monitor.TopologyOpening(&event.TopologyOpeningEvent{})
		}

		t.serversLock.Lock()
		t.started = true
		t.serversLock.Unlock()

		go t.run()

		for _, s := range t.Description().Servers {
			t.addServer(s.Addr)
		}

		t.cfg.logger.WithField("seeds", t.cfg.seedList).Debug("topology started")
	})
}

// Description returns the current description of the topology.
func (t *Topology) Description() description.Topology {
	td, _ := t.desc.Load().(description.Topology)
	return td
}

// Kind returns the current kind of the topology.
func (t *Topology) Kind() description.TopologyKind {
	return t.Description().Kind
}

// Subscribe returns a channel on which topology descriptions are delivered,
// along with a function to unsubscribe. The channel starts with the current
// description and always carries the latest one: intermediate descriptions
// not yet consumed are replaced rather than queued.
func (t *Topology) Subscribe() (<-chan description.Topology, func(), error) {
	t.subLock.Lock()
	defer t.subLock.Unlock()
	if t.subscriptionsClosed {
		return nil, nil, ErrSubscribeAfterClosed
	}

	ch := make(chan description.Topology, 1)
	ch <- t.Description()

	id := t.currentSubscriberID
	t.currentSubscriberID++
	t.subscribers[id] = ch

	unsubscribe := func() {
		t.subLock.Lock()
		defer t.subLock.Unlock()
		if t.subscriptionsClosed {
			return
		}
		if _, ok := t.subscribers[id]; ok {
			delete(t.subscribers, id)
			close(ch)
		}
	}

	return ch, unsubscribe, nil
}

// RequestImmediateCheck asks all of the topology's servers to check their
// state as soon as their rate limit allows, rather than waiting for the next
// scheduled heartbeat.
func (t *Topology) RequestImmediateCheck() {
	t.serversLock.Lock()
	defer t.serversLock.Unlock()
	for _, s := range t.servers {
		s.RequestImmediateCheck()
	}
}

// SelectServer selects a server from the topology with the given selector.
// It blocks until a suitable server is available, the selection timeout
// elapses, or ctx expires. A nil selector selects writable servers.
func (t *Topology) SelectServer(ctx context.Context, selector description.ServerSelector) (driver.Server, error) {
	if selector == nil {
		selector = WriteSelector()
	}

	sub, unsubscribe, err := t.Subscribe()
	if err != nil {
		return nil, err
	}
	defer unsubscribe()

	var timeoutCh <-chan time.Time
	if t.cfg.serverSelectionTimeout > 0 {
		timer := time.NewTimer(t.cfg.serverSelectionTimeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	current := t.Description()
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if current.CompatibilityErr != nil {
			return nil, current.CompatibilityErr
		}
		if current.Kind == description.Single && len(current.Servers) == 0 {
			return nil, ServerSelectionError{Desc: current, Wrapped: errors.New("topology has no servers")}
		}

		suitable, err := selector(current, current.Servers)
		if err != nil {
			return nil, ServerSelectionError{Desc: current, Wrapped: err}
		}

		if len(suitable) > 0 {
			picked := t.pick(selectByLatency(t.cfg.localThreshold, suitable))
			if srv, ok := t.liveServer(picked.Addr); ok {
				return &SelectedServer{Server: srv, Kind: current.Kind}, nil
			}
			// The server was retired between the snapshot and the lookup.
			// The snapshot that removed it is already on its way.
		} else {
			t.RequestImmediateCheck()
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeoutCh:
			return nil, ServerSelectionError{Desc: current, Wrapped: errors.New("server selection timeout")}
		case updated, ok := <-sub:
			if !ok {
				return nil, ErrTopologyClosed
			}
			current = updated
		}
	}
}

// Close stops the topology's monitors and releases its resources. Subscribers
// are closed and any in-flight selections fail with ErrTopologyClosed.
func (t *Topology) Close(ctx context.Context) error {
	var err error
	t.closeOnce.Do(func() {
		err = t.close(ctx)
	})
	return err
}

func (t *Topology) close(ctx context.Context) error {
	t.serversLock.Lock()
	t.serversClosed = true
	started := t.started
	servers := make([]*Server, 0, len(t.servers))
	for _, s := range t.servers {
		servers = append(servers, s)
	}
	t.servers = make(map[address.Address]*Server)
	t.serversLock.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range servers {
		s := s
		g.Go(func() error {
			return s.Disconnect(gctx)
		})
	}
	err := g.Wait()
	if t.cfg.monitor != nil && t.cfg.monitor.ServerClosed != nil {
		for _, s := range servers {
			t.cfg.monitor.ServerClosed(&event.ServerClosedEvent{Address: s.Address()})
		}
	}
	t.retireWG.Wait()

	// Every monitor is down, so the forwarders drain and exit. Only then can
	// the changes channel be closed under the apply goroutine.
	t.changesWG.Wait()
	close(t.changes)
	if started {
		<-t.done
	}

	t.subLock.Lock()
	t.subscriptionsClosed = true
	for id, ch := range t.subscribers {
		delete(t.subscribers, id)
		close(ch)
	}
	t.subLock.Unlock()

	if t.cfg.monitor != nil && t.cfg.monitor.TopologyClosed != nil {
		t.cfg.monitor.TopologyClosed(&event.TopologyClosedEvent{})
	}
	t.cfg.logger.Debug("topology closed")

	return err
}

// run serializes the application of server reports to the state machine.
func (t *Topology) run() {
	defer close(t.done)
	for change := range t.changes {
		t.apply(change)
	}
}

func (t *Topology) apply(change description.Server) {
	prev := t.fsm.Topology
	current := t.fsm.apply(change)
	if reflect.DeepEqual(prev, current) {
		return
	}

	diff := description.DiffTopology(prev, current)
	for _, removed := range diff.Removed {
		t.retireServer(removed.Addr)
	}
	for _, added := range diff.Added {
		t.addServer(added.Addr)
	}

	t.desc.Store(current)
	t.notifySubscribers(current)

	if t.cfg.monitor != nil {
		if t.cfg.monitor.ServerDescriptionChanged != nil {
			prevServer, _ := prev.Server(change.Addr)
			newServer, ok := current.Server(change.Addr)
			if ok && !reflect.DeepEqual(prevServer, newServer) {
				t.cfg.monitor.ServerDescriptionChanged(&event.ServerDescriptionChangedEvent{
					Address:             change.Addr,
					PreviousDescription: prevServer,
					NewDescription:      newServer,
				})
			}
		}
		if t.cfg.monitor.TopologyDescriptionChanged != nil {
			t.cfg.monitor.TopologyDescriptionChanged(&event.TopologyDescriptionChangedEvent{
				PreviousDescription: prev,
				NewDescription:      current,
			})
		}
	}

	t.cfg.logger.WithFields(map[string]interface{}{
		"kind":    current.Kind.String(),
		"servers": len(current.Servers),
	}).Debug("topology description changed")
}

func (t *Topology) notifySubscribers(current description.Topology) {
	t.subLock.Lock()
	defer t.subLock.Unlock()
	for _, ch := range t.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- current
	}
}

// addServer starts monitoring addr and forwards its reports into the apply
// path. It is a no-op for an already monitored address or a closed topology.
func (t *Topology) addServer(addr address.Address) {
	t.serversLock.Lock()
	defer t.serversLock.Unlock()
	if t.serversClosed {
		return
	}
	if _, ok := t.servers[addr]; ok {
		return
	}

	opts := []ServerOption{
		WithServerTransport(t.cfg.transport),
		WithServerLogger(t.cfg.logger),
		WithServerEventMonitor(t.cfg.monitor),
	}
	opts = append(opts, t.cfg.serverOpts...)

	srv := NewServer(addr, opts...)
	t.servers[addr] = srv

	if t.cfg.monitor != nil && t.cfg.monitor.ServerOpening != nil {
		t.cfg.monitor.ServerOpening(&event.ServerOpeningEvent{Address: addr})
	}

	updates, _, _ := srv.Subscribe()
	t.changesWG.Add(1)
	go func() {
		defer t.changesWG.Done()
		for desc := range updates {
			t.changes <- desc
		}
	}()

	srv.Start()
}

// retireServer stops monitoring addr. The monitor is shut down off the apply
// goroutine so a slow in-flight check cannot stall state transitions.
func (t *Topology) retireServer(addr address.Address) {
	t.serversLock.Lock()
	srv, ok := t.servers[addr]
	if ok {
		delete(t.servers, addr)
	}
	t.serversLock.Unlock()
	if !ok {
		return
	}

	t.retireWG.Add(1)
	go func() {
		defer t.retireWG.Done()
		_ = srv.Disconnect(context.Background())
		if t.cfg.monitor != nil && t.cfg.monitor.ServerClosed != nil {
			t.cfg.monitor.ServerClosed(&event.ServerClosedEvent{Address: addr})
		}
	}()
}

func (t *Topology) liveServer(addr address.Address) (*Server, bool) {
	t.serversLock.Lock()
	defer t.serversLock.Unlock()
	srv, ok := t.servers[addr]
	return srv, ok
}

func (t *Topology) pick(candidates []description.Server) description.Server {
	if len(candidates) == 1 {
		return candidates[0]
	}
	t.randLock.Lock()
	i := t.rand.Intn(len(candidates))
	t.randLock.Unlock()
	return candidates[i]
}

// SelectedServer represents a server selected from a topology. Kind is the
// topology kind observed at selection time.
type SelectedServer struct {
	*Server
	Kind description.TopologyKind
}

var _ driver.Server = (*SelectedServer)(nil)
