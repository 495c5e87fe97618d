// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gmebridge

import (
	"context"
	"fmt"
)

// Dial connects to the engine at endpoint. See ParseEndpoint for the
// accepted forms.
func Dial(ctx context.Context, endpoint string, opts ...Option) (*Session, error) {
	ch, err := DialChannel(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	s := newSession(ch, endpoint, newOptions(opts))
	s.log.Info("connected", "endpoint", endpoint)
	return s, nil
}

// DialChannel opens a half-duplex channel to endpoint.
func DialChannel(ctx context.Context, endpoint string) (Channel, error) {
	u, err := ParseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	t, _ := lookupTransport(u.Scheme)
	ch, err := t.dial(ctx, u)
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}
	return NewHalfDuplex(ch), nil
}

// Listen starts an engine endpoint serving h.
func Listen(endpoint string, h Handler) (Server, error) {
	u, err := ParseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	t, _ := lookupTransport(u.Scheme)
	if t.listen == nil {
		return nil, fmt.Errorf("transport %s cannot listen", u.Scheme)
	}
	return t.listen(u, h)
}
