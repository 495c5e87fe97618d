// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gmebridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// OutcomeMalformed is recorded when the engine's reply cannot be decoded.
const OutcomeMalformed = "malformed"

// Dispatcher is the single path every facade call takes to the engine. It
// owns the channel and allows one request in flight at a time, so replies
// are matched to requests by order alone.
type Dispatcher struct {
	mu      sync.Mutex
	ch      Channel
	codec   Codec
	log     *slog.Logger
	metrics *Metrics
	trips   atomic.Uint64
}

// NewDispatcher creates a dispatcher over ch. ch is wrapped in a
// half-duplex guard unless it already is one.
func NewDispatcher(ch Channel, opts ...Option) *Dispatcher {
	o := newOptions(opts)
	return newDispatcher(NewHalfDuplex(ch), o)
}

func newDispatcher(ch Channel, o *options) *Dispatcher {
	return &Dispatcher{
		ch:      ch,
		codec:   o.codec,
		log:     o.logger,
		metrics: o.metrics,
	}
}

// Dispatch sends one command and blocks until its reply arrives.
//
// On success the result is returned; a command without a return value
// yields Null. A failure reported by the engine is returned as a
// *RemoteError, a channel failure as a *TransportError. Arguments outside
// the Value union fail before anything is sent.
func (d *Dispatcher) Dispatch(ctx context.Context, tag Tag, name string, args ...Value) (Value, error) {
	cmd := Command{Tag: tag, Name: name, Args: args}
	if cmd.Args == nil {
		cmd.Args = []Value{}
	}
	payload, err := d.codec.EncodeCommand(cmd)
	if err != nil {
		d.metrics.observe(cmd, OutcomeEncode, 0)
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	d.log.Debug("send_request", "type", cmd.Tag.String(), "name", cmd.Name, "args", len(cmd.Args))
	if err := d.ch.Send(ctx, payload); err != nil {
		return nil, d.transportFailure(cmd, start, err)
	}
	raw, err := d.ch.Recv(ctx)
	if err != nil {
		return nil, d.transportFailure(cmd, start, err)
	}
	d.trips.Add(1)

	resp, err := d.codec.DecodeResponse(raw)
	if err != nil {
		d.metrics.observe(cmd, OutcomeMalformed, time.Since(start))
		d.log.Error("handle_response", "type", cmd.Tag.String(), "name", cmd.Name, "error", err)
		return nil, fmt.Errorf("%s: %w", cmd, err)
	}
	if resp.Err != nil {
		rerr := Classify(*resp.Err, cmd)
		d.metrics.observe(cmd, rerr.Kind.String(), time.Since(start))
		d.log.Debug("handle_response", "type", cmd.Tag.String(), "name", cmd.Name,
			"kind", rerr.Kind.String(), "error", rerr.Message)
		return nil, rerr
	}
	d.metrics.observe(cmd, OutcomeOK, time.Since(start))
	d.log.Debug("handle_response", "type", cmd.Tag.String(), "name", cmd.Name)
	if resp.Result == nil {
		return Null{}, nil
	}
	return resp.Result, nil
}

func (d *Dispatcher) transportFailure(cmd Command, start time.Time, err error) error {
	d.metrics.observe(cmd, OutcomeTransport, time.Since(start))
	if errors.Is(err, ErrOutOfTurn) || errors.Is(err, ErrClosed) {
		return fmt.Errorf("%s: %w", cmd, err)
	}
	d.log.Error("transport failure", "type", cmd.Tag.String(), "name", cmd.Name, "error", err)
	return err
}

// RoundTrips returns the number of replies received so far.
func (d *Dispatcher) RoundTrips() uint64 {
	return d.trips.Load()
}

// Close closes the channel. Calls waiting for the dispatcher finish first.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ch.Close()
}
