// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gmebridge

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailableTransports(t *testing.T) {
	assert.Equal(t,
		[]string{"frame", "grpc", "http", "https", "ipc", "tcp", "ws", "wss"},
		AvailableTransports())
	assert.True(t, HasTransport(TransportZMQ))
	assert.False(t, HasTransport("udp"))
}

func TestParseEndpoint(t *testing.T) {
	tests := map[string]string{
		"":                      "tcp://127.0.0.1:5555",
		"5556":                  "tcp://127.0.0.1:5556",
		"localhost:7000":        "tcp://localhost:7000",
		"tcp://10.0.0.1:5555":   "tcp://10.0.0.1:5555",
		"ipc:///tmp/engine":     "ipc:///tmp/engine",
		"frame://127.0.0.1:900": "frame://127.0.0.1:900",
		"ws://h:1/bridge":       "ws://h:1/bridge",
		"http://h:2/rpc":        "http://h:2/rpc",
		"grpc://h:3":            "grpc://h:3",
	}
	for in, want := range tests {
		u, err := ParseEndpoint(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, u.String(), in)
	}

	_, err := ParseEndpoint("udp://h:1")
	assert.Error(t, err)
}

func TestHalfDuplex_Alternation(t *testing.T) {
	ch := NewHalfDuplex(newScripted(`a`, `b`))
	ctx := context.Background()

	_, err := ch.Recv(ctx)
	assert.ErrorIs(t, err, ErrOutOfTurn)

	require.NoError(t, ch.Send(ctx, []byte("1")))
	assert.ErrorIs(t, ch.Send(ctx, []byte("2")), ErrOutOfTurn)

	got, err := ch.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", string(got))

	require.NoError(t, ch.Send(ctx, []byte("2")))
	got, err = ch.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", string(got))
}

func TestHalfDuplex_LatchesFailure(t *testing.T) {
	inner := newScripted()
	inner.sendErr = io.ErrClosedPipe
	ch := NewHalfDuplex(inner)
	ctx := context.Background()

	err := ch.Send(ctx, []byte("x"))
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "send", te.Op)

	inner.sendErr = nil
	assert.Same(t, te, ch.Send(ctx, []byte("x")))
	_, rerr := ch.Recv(ctx)
	assert.Same(t, te, rerr)
}

func TestHalfDuplex_Close(t *testing.T) {
	inner := newScripted()
	ch := NewHalfDuplex(inner)
	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())
	assert.True(t, inner.closed)
	assert.ErrorIs(t, ch.Send(context.Background(), nil), ErrClosed)
}

func TestNewHalfDuplex_Idempotent(t *testing.T) {
	ch := NewHalfDuplex(newScripted())
	assert.Same(t, ch, NewHalfDuplex(ch))
}
