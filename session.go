// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gmebridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// Session is one connection to an engine together with its singleton cache
// and the roots it has loaded. A session is not shared between engines and
// its handles mean nothing to other sessions.
type Session struct {
	id         string
	endpoint   string
	dispatcher *Dispatcher
	cache      *Cache
	log        *slog.Logger

	core    *Core
	project *Project
	util    *Util
	plugin  *Plugin

	rootsMu sync.Mutex
	roots   map[string]int
	order   []string

	closed atomic.Bool
}

// NewSession creates a session over an already connected channel.
func NewSession(ch Channel, opts ...Option) *Session {
	return newSession(NewHalfDuplex(ch), "", newOptions(opts))
}

func newSession(ch Channel, endpoint string, o *options) *Session {
	id := uuid.NewString()
	o.logger = o.logger.With("session", id)
	s := &Session{
		id:         id,
		endpoint:   endpoint,
		dispatcher: newDispatcher(ch, o),
		cache:      NewCache(),
		log:        o.logger,
		roots:      make(map[string]int),
	}
	s.core = &Core{s: s}
	s.project = &Project{s: s}
	s.util = &Util{s: s}
	s.plugin = &Plugin{s: s}
	return s
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// Endpoint returns the address the session was dialed with.
func (s *Session) Endpoint() string { return s.endpoint }

// Core returns the graph facade.
func (s *Session) Core() *Core { return s.core }

// Project returns the repository facade.
func (s *Session) Project() *Project { return s.project }

// Util returns the utility facade.
func (s *Session) Util() *Util { return s.util }

// Plugin returns the plugin runtime facade.
func (s *Session) Plugin() *Plugin { return s.plugin }

// Cache returns the session's singleton cache.
func (s *Session) Cache() *Cache { return s.cache }

// Logger returns the session logger.
func (s *Session) Logger() *slog.Logger { return s.log }

// RoundTrips returns the number of completed round trips.
func (s *Session) RoundTrips() uint64 { return s.dispatcher.RoundTrips() }

// Call dispatches any engine operation. The facades cover the common
// ones; Call reaches the rest.
func (s *Session) Call(ctx context.Context, tag Tag, name string, args ...Value) (Value, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	return s.dispatcher.Dispatch(ctx, tag, name, args...)
}

// cached is GetOrFetch for a no-argument engine operation.
func (s *Session) cached(ctx context.Context, key string, tag Tag, name string) (Value, error) {
	return s.cache.GetOrFetch(ctx, key, func(ctx context.Context) (Value, error) {
		return s.Call(ctx, tag, name)
	})
}

func (s *Session) retainRoot(rootID string) {
	s.rootsMu.Lock()
	defer s.rootsMu.Unlock()
	if s.roots[rootID] == 0 {
		s.order = append(s.order, rootID)
	}
	s.roots[rootID]++
}

// releaseRoot drops one reference and reports whether it was the last.
func (s *Session) releaseRoot(rootID string) bool {
	s.rootsMu.Lock()
	defer s.rootsMu.Unlock()
	n, ok := s.roots[rootID]
	if !ok {
		return false
	}
	if n > 1 {
		s.roots[rootID] = n - 1
		return false
	}
	s.forgetLocked(rootID)
	return true
}

func (s *Session) forgetRoot(rootID string) {
	s.rootsMu.Lock()
	defer s.rootsMu.Unlock()
	s.forgetLocked(rootID)
}

func (s *Session) forgetLocked(rootID string) {
	delete(s.roots, rootID)
	for i, id := range s.order {
		if id == rootID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// LoadedRoots returns the ids of the roots loaded and not yet released, in
// load order.
func (s *Session) LoadedRoots() []string {
	s.rootsMu.Lock()
	defer s.rootsMu.Unlock()
	return append([]string(nil), s.order...)
}

// Close releases every root still loaded, then closes the channel. It is
// safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	if s.closed.Load() {
		return nil
	}
	var err error
	for _, id := range s.LoadedRoots() {
		s.forgetRoot(id)
		if _, uerr := s.Call(ctx, Utility, "unloadRoot", Handle{RootID: id}); uerr != nil {
			err = multierr.Append(err, uerr)
			if errors.Is(uerr, ErrTransport) || errors.Is(uerr, ErrClosed) {
				break
			}
		}
	}
	if !s.closed.Swap(true) {
		err = multierr.Append(err, s.dispatcher.Close())
		s.log.Info("disconnected", "endpoint", s.endpoint)
	}
	return err
}

// Root is a loaded subtree. The engine keeps it in memory until Release is
// called (or the session is closed); the garbage collector never releases
// it.
type Root struct {
	// Node is the handle of the subtree root.
	Node Handle
	// Hash is the root hash the subtree was loaded from.
	Hash string

	s        *Session
	released atomic.Bool
}

// Release unloads the subtree in the engine. Further calls do nothing.
// When the same hash was loaded more than once, only the last Release
// reaches the engine.
func (r *Root) Release(ctx context.Context) error {
	if r.released.Swap(true) {
		return nil
	}
	if !r.s.releaseRoot(r.Node.RootID) {
		return nil
	}
	_, err := r.s.Call(ctx, Utility, "unloadRoot", r.Node)
	return err
}

// Released reports whether Release has been called.
func (r *Root) Released() bool {
	return r.released.Load()
}
