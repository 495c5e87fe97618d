// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gmebridge

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
)

var (
	// ErrOutOfTurn is returned when a channel is used out of its
	// send/receive alternation.
	ErrOutOfTurn = errors.New("channel used out of turn")
	// ErrClosed is returned by a closed channel or session.
	ErrClosed = errors.New("closed")
)

// Transport schemes
const (
	TransportZMQ       = "tcp"   // ZeroMQ REQ socket, what the engine listens with by default
	TransportZMQIPC    = "ipc"   // ZeroMQ over a unix socket
	TransportFrame     = "frame" // length-prefixed frames over plain TCP
	TransportWebSocket = "ws"
	TransportWSS       = "wss"
	TransportHTTP      = "http" // JSON-RPC over HTTP
	TransportHTTPS     = "https"
	TransportGRPC      = "grpc"
)

// DefaultPort is the port the engine binds when none is configured.
const DefaultPort = 5555

type dialFunc func(ctx context.Context, u *url.URL) (Channel, error)
type listenFunc func(u *url.URL, h Handler) (Server, error)

type transportEntry struct {
	dial   dialFunc
	listen listenFunc
}

var (
	transportsMu sync.RWMutex
	transports   = map[string]transportEntry{}
)

// registerTransport registers a transport under one or more schemes
func registerTransport(dial dialFunc, listen listenFunc, schemes ...string) {
	transportsMu.Lock()
	defer transportsMu.Unlock()
	for _, s := range schemes {
		transports[s] = transportEntry{dial: dial, listen: listen}
	}
}

func lookupTransport(scheme string) (transportEntry, bool) {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	t, ok := transports[scheme]
	return t, ok
}

// AvailableTransports returns the registered endpoint schemes.
func AvailableTransports() []string {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	result := make([]string, 0, len(transports))
	for name := range transports {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// HasTransport checks if a transport is available
func HasTransport(scheme string) bool {
	_, ok := lookupTransport(scheme)
	return ok
}

// ParseEndpoint normalizes an endpoint. A bare port means the local engine
// on that port and a bare host:port means ZeroMQ over TCP.
func ParseEndpoint(endpoint string) (*url.URL, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = "tcp://127.0.0.1:" + strconv.Itoa(DefaultPort)
	}
	if port, err := strconv.Atoi(endpoint); err == nil {
		endpoint = "tcp://127.0.0.1:" + strconv.Itoa(port)
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "tcp://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if !HasTransport(u.Scheme) {
		return nil, fmt.Errorf("unknown transport: %s", u.Scheme)
	}
	return u, nil
}

// halfDuplex enforces the send/receive alternation of a channel and
// latches the first transport failure.
type halfDuplex struct {
	mu      sync.Mutex
	inner   Channel
	pending bool
	failed  error
	closed  bool
}

// NewHalfDuplex guards ch. Channels from Dial and DialChannel are already
// guarded.
func NewHalfDuplex(ch Channel) Channel {
	if hd, ok := ch.(*halfDuplex); ok {
		return hd
	}
	return &halfDuplex{inner: ch}
}

func (c *halfDuplex) check(wantPending bool) error {
	if c.closed {
		return ErrClosed
	}
	if c.failed != nil {
		return c.failed
	}
	if c.pending != wantPending {
		return ErrOutOfTurn
	}
	return nil
}

func (c *halfDuplex) fail(op string, err error) error {
	var te *TransportError
	if !errors.As(err, &te) {
		te = &TransportError{Op: op, Err: err}
	}
	c.failed = te
	return te
}

func (c *halfDuplex) Send(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(false); err != nil {
		return err
	}
	if err := c.inner.Send(ctx, data); err != nil {
		return c.fail("send", err)
	}
	c.pending = true
	return nil
}

func (c *halfDuplex) Recv(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(true); err != nil {
		return nil, err
	}
	data, err := c.inner.Recv(ctx)
	if err != nil {
		// The reply may still arrive later and would be matched with the
		// next request, so the channel cannot be reused.
		return nil, c.fail("recv", err)
	}
	c.pending = false
	return data, nil
}

func (c *halfDuplex) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.inner.Close()
}
