// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package enginetest

import (
	"context"
	"errors"
	"sync"

	"github.com/luxfi/gmebridge"
)

// Start listens on endpoint and serves e in the background until ctx is
// done or the returned server is closed.
func (e *Engine) Start(ctx context.Context, endpoint string) (gmebridge.Server, error) {
	srv, err := gmebridge.Listen(endpoint, e)
	if err != nil {
		return nil, err
	}
	go func() {
		if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
			e.log.Error("serve failed", "endpoint", srv.Endpoint(), "error", err)
		}
	}()
	return srv, nil
}

// Channel returns an in-process channel to e. Send hands the request to
// the engine; Recv returns its reply.
func (e *Engine) Channel() gmebridge.Channel {
	return &loopback{h: e}
}

type loopback struct {
	mu     sync.Mutex
	h      gmebridge.Handler
	reply  []byte
	closed bool
}

func (l *loopback) Send(ctx context.Context, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return gmebridge.ErrClosed
	}
	l.reply = l.h.HandleEnvelope(ctx, data)
	return nil
}

func (l *loopback) Recv(_ context.Context) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, gmebridge.ErrClosed
	}
	r := l.reply
	l.reply = nil
	return r, nil
}

func (l *loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}
