// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gmebridge

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/go-zeromq/zmq4"
)

func init() {
	registerTransport(dialZMQ, listenZMQ, TransportZMQ, TransportZMQIPC)
}

// ZMQConn is a bridge channel over a ZeroMQ REQ socket, the socket type the
// engine's REP server expects.
type ZMQConn struct {
	sock   zmq4.Socket
	cancel context.CancelFunc
	closed atomic.Bool
}

func dialZMQ(ctx context.Context, u *url.URL) (Channel, error) {
	return ZMQDial(ctx, u.String())
}

// ZMQDial connects a REQ socket to addr (tcp://host:port or ipc://path).
func ZMQDial(ctx context.Context, addr string) (*ZMQConn, error) {
	// The socket outlives the dial context.
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sock := zmq4.NewReq(sctx)
	if err := sock.Dial(addr); err != nil {
		cancel()
		sock.Close()
		return nil, fmt.Errorf("zmq dial: %w", err)
	}
	return &ZMQConn{sock: sock, cancel: cancel}, nil
}

func (z *ZMQConn) Send(ctx context.Context, data []byte) error {
	if z.closed.Load() {
		return ErrClosed
	}
	return z.sock.Send(zmq4.NewMsg(data))
}

// Recv blocks until the reply arrives. A done ctx abandons the wait; the
// socket is then unusable because a REQ socket cannot send again before
// it has received.
func (z *ZMQConn) Recv(ctx context.Context) ([]byte, error) {
	if z.closed.Load() {
		return nil, ErrClosed
	}
	type result struct {
		msg zmq4.Msg
		err error
	}
	ch := make(chan result, 1)
	go func() {
		msg, err := z.sock.Recv()
		ch <- result{msg, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("zmq recv: %w", r.err)
		}
		return r.msg.Bytes(), nil
	}
}

// Close closes the connection
func (z *ZMQConn) Close() error {
	if z.closed.Swap(true) {
		return nil
	}
	err := z.sock.Close()
	z.cancel()
	return err
}

// ZMQServer answers bridge requests on a REP socket.
type ZMQServer struct {
	sock    zmq4.Socket
	cancel  context.CancelFunc
	handler Handler
	addr    string
	once    sync.Once
	closed  atomic.Bool
}

func listenZMQ(u *url.URL, h Handler) (Server, error) {
	ctx, cancel := context.WithCancel(context.Background())
	sock := zmq4.NewRep(ctx)
	if err := sock.Listen(u.String()); err != nil {
		cancel()
		sock.Close()
		return nil, fmt.Errorf("zmq listen: %w", err)
	}
	addr := u.String()
	if u.Scheme == TransportZMQ && sock.Addr() != nil {
		addr = TransportZMQ + "://" + sock.Addr().String()
	}
	return &ZMQServer{sock: sock, cancel: cancel, handler: h, addr: addr}, nil
}

// Serve answers requests until the server is closed.
func (s *ZMQServer) Serve(ctx context.Context) error {
	for {
		msg, err := s.sock.Recv()
		if err != nil {
			if s.closed.Load() {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("zmq recv: %w", err)
		}
		resp := s.handler.HandleEnvelope(ctx, msg.Bytes())
		if err := s.sock.Send(zmq4.NewMsg(resp)); err != nil {
			if s.closed.Load() {
				return nil
			}
			return fmt.Errorf("zmq send: %w", err)
		}
	}
}

// Close closes the server
func (s *ZMQServer) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		err = s.sock.Close()
		s.cancel()
	})
	return err
}

// Endpoint returns the address the socket is bound to.
func (s *ZMQServer) Endpoint() string {
	return s.addr
}
