// Copyright (C) ArkDB, Inc. 2018-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package topology

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/mgo.v2/bson"

	"github.com/arkdb/ark-go-driver/address"
	"github.com/arkdb/ark-go-driver/description"
	"github.com/arkdb/ark-go-driver/driver"
	"github.com/arkdb/ark-go-driver/event"
	"github.com/arkdb/ark-go-driver/wire"
)

// Server monitors one address: it runs the periodic handshake loop, keeps the
// server's current description, and lets foreground command failures reset
// that description out of band from the heartbeat cadence.
type Server struct {
	addr address.Address
	cfg  *serverConfig

	ctx       context.Context
	cancelFn  context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once

	descLock sync.Mutex
	desc     description.Server

	checkNow chan struct{}

	subLock             sync.Mutex
	subscribers         map[uint64]chan description.Server
	lastSubscriberID    uint64
	subscriptionsClosed bool

	rtt *rttTracker
}

// NewServer creates a server in its unchecked state. Monitoring does not
// begin until Start is called.
func NewServer(addr address.Address, opts ...ServerOption) *Server {
	cfg := newServerConfig(opts...)
	canon := addr.Canonicalize()
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:        canon,
		cfg:         cfg,
		ctx:         ctx,
		cancelFn:    cancel,
		desc:        description.NewDefaultServer(canon),
		checkNow:    make(chan struct{}, 1),
		subscribers: make(map[uint64]chan description.Server),
		rtt:         newRTTTracker(),
	}
}

// Start begins the monitoring loop.
func (s *Server) Start() {
	s.wg.Add(1)
	go s.run()
}

// Address returns the address the server is monitoring.
func (s *Server) Address() address.Address {
	return s.addr
}

// Description returns the current description of the server.
func (s *Server) Description() description.Server {
	s.descLock.Lock()
	defer s.descLock.Unlock()
	return s.desc
}

// Subscribe returns a channel on which all updated server descriptions will
// be sent. The channel has a buffer size of one and is pre-populated with
// the current description. Subscribe also returns a function that, when
// called, closes the channel and removes it from the subscription list.
func (s *Server) Subscribe() (<-chan description.Server, func(), error) {
	ch := make(chan description.Server, 1)
	ch <- s.Description()

	s.subLock.Lock()
	defer s.subLock.Unlock()
	if s.subscriptionsClosed {
		return nil, nil, errors.New("cannot subscribe to a server after it has been closed")
	}
	s.lastSubscriberID++
	id := s.lastSubscriberID
	s.subscribers[id] = ch

	unsubscribe := func() {
		s.subLock.Lock()
		defer s.subLock.Unlock()
		if !s.subscriptionsClosed {
			close(ch)
			delete(s.subscribers, id)
		}
	}

	return ch, unsubscribe, nil
}

// RequestImmediateCheck will cause the server to be checked as soon as the
// minimum heartbeat interval allows, instead of waiting for the next
// heartbeat.
func (s *Server) RequestImmediateCheck() {
	select {
	case s.checkNow <- struct{}{}:
	default:
	}
}

// SendCommand issues a command to this server through the configured
// transport. Classification of the outcome is the caller's responsibility;
// see ProcessError.
func (s *Server) SendCommand(ctx context.Context, cmd bson.D) (bson.Raw, error) {
	return s.cfg.transport.SendCommand(ctx, s.addr, cmd)
}

// ProcessError inspects a classified command error and, when it means this
// server can no longer be trusted, resets the description to Unknown and
// requests an immediate re-check. Errors that carry no topology consequence
// are ignored.
func (s *Server) ProcessError(err error) {
	if !driver.MustInvalidate(err) {
		return
	}
	if s.ctx.Err() != nil {
		return
	}
	s.rtt.reset()
	s.publish(description.NewServerFromError(s.addr, err))
	s.RequestImmediateCheck()
}

// Disconnect stops the monitoring loop and waits for it to exit. No further
// descriptions are published once Disconnect returns. The context bounds the
// wait for an in-flight check to abort.
func (s *Server) Disconnect(ctx context.Context) error {
	s.closeOnce.Do(func() { s.cancelFn() })

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) run() {
	defer s.wg.Done()
	defer s.closeSubscribers()

	heartbeatTimer := time.NewTimer(0)
	defer heartbeatTimer.Stop()
	rateLimitTimer := time.NewTimer(0)
	defer rateLimitTimer.Stop()

	for {
		select {
		case <-heartbeatTimer.C:
		case <-s.checkNow:
		case <-s.ctx.Done():
			return
		}

		// Never check faster than the rate limit, even when preempted by
		// checkNow.
		select {
		case <-rateLimitTimer.C:
		case <-s.ctx.Done():
			return
		}

		desc := s.check()
		if s.ctx.Err() != nil {
			// Cancelled mid-check; the result must not be published.
			return
		}
		s.publish(desc)

		resetTimer(rateLimitTimer, s.cfg.minHeartbeatInterval)

		// A failed check retries at the rate limit rather than waiting out
		// the full heartbeat interval.
		next := s.cfg.heartbeatInterval
		if desc.LastError != nil {
			next = s.cfg.minHeartbeatInterval
		}
		resetTimer(heartbeatTimer, next)
	}
}

func (s *Server) check() description.Server {
	if s.cfg.monitor != nil && s.cfg.monitor.ServerHeartbeatStarted != nil {
		s.cfg.monitor.ServerHeartbeatStarted(&event.ServerHeartbeatStartedEvent{Address: s.addr})
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.connectTimeout)
	defer cancel()

	start := time.Now()
	raw, err := s.cfg.transport.SendCommand(ctx, s.addr, bson.D{{Name: "hello", Value: 1}})
	duration := time.Since(start)

	if err != nil {
		return s.checkFailed(driver.TransportError{Addr: s.addr, Wrapped: err}, duration)
	}

	reply, err := wire.DecodeHello(raw)
	if err != nil {
		return s.checkFailed(driver.ProtocolError{Addr: s.addr, Wrapped: err}, duration)
	}
	if reply.OK != 1 {
		return s.checkFailed(driver.ProtocolError{Addr: s.addr, Wrapped: errors.New("handshake reply was not ok")}, duration)
	}

	avg, min := s.rtt.add(duration)

	desc := description.NewServer(s.addr, reply)
	desc.HeartbeatInterval = s.cfg.heartbeatInterval
	desc = desc.SetAverageRTT(avg)
	desc.MinRTT = min

	if s.cfg.monitor != nil && s.cfg.monitor.ServerHeartbeatSucceeded != nil {
		s.cfg.monitor.ServerHeartbeatSucceeded(&event.ServerHeartbeatSucceededEvent{
			Address:  s.addr,
			Duration: duration,
			Reply:    reply,
		})
	}

	return desc
}

func (s *Server) checkFailed(err error, duration time.Duration) description.Server {
	s.rtt.reset()

	if s.cfg.monitor != nil && s.cfg.monitor.ServerHeartbeatFailed != nil {
		s.cfg.monitor.ServerHeartbeatFailed(&event.ServerHeartbeatFailedEvent{
			Address:  s.addr,
			Duration: duration,
			Failure:  err,
		})
	}
	s.cfg.logger.WithField("address", s.addr.String()).WithError(err).Debug("server check failed")

	return description.NewServerFromError(s.addr, err)
}

func (s *Server) publish(desc description.Server) {
	s.descLock.Lock()
	s.desc = desc
	s.descLock.Unlock()

	s.subLock.Lock()
	defer s.subLock.Unlock()
	if s.subscriptionsClosed {
		return
	}
	for _, ch := range s.subscribers {
		select {
		case <-ch:
			// drain the channel if a previous description was never read
		default:
		}
		ch <- desc
	}
}

func (s *Server) closeSubscribers() {
	s.subLock.Lock()
	defer s.subLock.Unlock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.subscriptionsClosed = true
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
