// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gmebridge

import (
	"context"
	"io"
	"log/slog"

	"github.com/luxfi/gmebridge/internal/logging"
)

// Channel is one ordered, message oriented connection to an engine.
//
// Usage is strictly half-duplex: every Send must be followed by exactly one
// Recv before the next Send. Channels returned by Dial enforce this and
// fail with ErrOutOfTurn otherwise.
type Channel interface {
	io.Closer
	Send(ctx context.Context, data []byte) error
	Recv(ctx context.Context) ([]byte, error)
}

// Handler is the engine side of the bridge: it answers one request
// envelope with one response envelope.
type Handler interface {
	HandleEnvelope(ctx context.Context, req []byte) []byte
}

// HandlerFunc is a function adapter for Handler
type HandlerFunc func(ctx context.Context, req []byte) []byte

func (f HandlerFunc) HandleEnvelope(ctx context.Context, req []byte) []byte {
	return f(ctx, req)
}

// Server is an engine endpoint accepting bridge connections.
type Server interface {
	// Serve accepts connections until the server is closed.
	Serve(ctx context.Context) error

	// Close stops the server
	Close() error

	// Endpoint returns the address clients dial, scheme included.
	Endpoint() string
}

// Option configures a Session
type Option func(*options)

type options struct {
	codec   Codec
	logger  *slog.Logger
	metrics *Metrics
}

func newOptions(opts []Option) *options {
	o := &options{
		codec:  defaultCodec,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithCodec sets a custom codec
func WithCodec(c Codec) Option {
	return func(o *options) { o.codec = c }
}

// WithLogger sets the logger dispatches are traced to.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records every dispatch into m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}
