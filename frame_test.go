// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gmebridge

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler() Handler {
	return HandlerFunc(func(_ context.Context, req []byte) []byte {
		return append([]byte("echo:"), req...)
	})
}

func TestFrameRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	server, err := Listen("frame://127.0.0.1:0", echoHandler())
	require.NoError(t, err)
	defer server.Close()
	go server.Serve(ctx)

	ch, err := DialChannel(ctx, server.Endpoint())
	require.NoError(t, err)
	defer ch.Close()

	for _, msg := range []string{"hello world", "", "again"} {
		require.NoError(t, ch.Send(ctx, []byte(msg)))
		got, err := ch.Recv(ctx)
		require.NoError(t, err)
		assert.Equal(t, "echo:"+msg, string(got))
	}
}

func TestFrameRecvHonoursContext(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	go func() {
		// Accept and never answer.
		conn, err := listener.Accept()
		if err == nil {
			defer conn.Close()
			time.Sleep(2 * time.Second)
		}
	}()

	conn, err := FrameDial(context.Background(), listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Send(context.Background(), []byte("x")))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = conn.Recv(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFrameEncoding(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, MsgResponse, []byte("abc")))
	assert.Equal(t, []byte{0, 0, 0, 4, byte(MsgResponse), 'a', 'b', 'c'}, buf.Bytes())

	typ, payload, err := readFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, MsgResponse, typ)
	assert.Equal(t, "abc", string(payload))
}

func TestFrameTooLarge(t *testing.T) {
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, MaxFrameSize+1)
	_, _, err := readFrame(bytes.NewReader(header))
	assert.ErrorIs(t, err, ErrFrameTooLarge)

	binary.BigEndian.PutUint32(header, 0)
	_, _, err = readFrame(bytes.NewReader(header))
	assert.ErrorIs(t, err, ErrFrameType)
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "accept timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// flakyListener fails the first accepts with errs.
type flakyListener struct {
	net.Listener
	errs  []error
	calls int
}

func (l *flakyListener) Accept() (net.Conn, error) {
	if l.calls < len(l.errs) {
		err := l.errs[l.calls]
		l.calls++
		return nil, err
	}
	return l.Listener.Accept()
}

func TestFrameServe_AcceptErrors(t *testing.T) {
	inner, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer inner.Close()

	boom := errors.New("boom")
	l := &flakyListener{Listener: inner, errs: []error{timeoutError{}, timeoutError{}, boom}}
	server := NewFrameServer(l, echoHandler())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = server.Serve(ctx)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, l.calls, "timeouts retried, other errors returned")
}

func TestFrameServe_ListenerClosedElsewhere(t *testing.T) {
	inner, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	server := NewFrameServer(inner, echoHandler())
	require.NoError(t, inner.Close())

	done := make(chan error, 1)
	go func() { done <- server.Serve(context.Background()) }()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, net.ErrClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve kept looping on a closed listener")
	}
}
