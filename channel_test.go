// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gmebridge

import (
	"context"
	"errors"
	"sync"
)

// scriptedChannel records requests and plays back canned replies in order.
type scriptedChannel struct {
	mu      sync.Mutex
	sent    [][]byte
	replies [][]byte
	sendErr error
	recvErr error
	closed  bool
}

func newScripted(replies ...string) *scriptedChannel {
	c := &scriptedChannel{}
	for _, r := range replies {
		c.replies = append(c.replies, []byte(r))
	}
	return c
}

func (c *scriptedChannel) Send(_ context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, append([]byte(nil), data...))
	return nil
}

func (c *scriptedChannel) Recv(_ context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.recvErr != nil {
		return nil, c.recvErr
	}
	if len(c.replies) == 0 {
		return nil, errors.New("no reply scripted")
	}
	r := c.replies[0]
	c.replies = c.replies[1:]
	return r, nil
}

func (c *scriptedChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *scriptedChannel) requests() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	for i, s := range c.sent {
		out[i] = string(s)
	}
	return out
}

// handlerChannel answers each request with a Handler, in process.
type handlerChannel struct {
	h     Handler
	reply []byte
}

func (c *handlerChannel) Send(ctx context.Context, data []byte) error {
	c.reply = c.h.HandleEnvelope(ctx, data)
	return nil
}

func (c *handlerChannel) Recv(context.Context) ([]byte, error) {
	r := c.reply
	c.reply = nil
	return r, nil
}

func (c *handlerChannel) Close() error { return nil }
