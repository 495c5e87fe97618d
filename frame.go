// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gmebridge

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrFrameTooLarge = errors.New("frame: message too large")
	ErrFrameType     = errors.New("frame: unexpected message type")
)

// MessageType identifies frame message types
type MessageType uint8

const (
	MsgRequest  MessageType = 0x01
	MsgResponse MessageType = 0x02
)

// MaxFrameSize bounds a single envelope on the frame transport.
const MaxFrameSize = 64 * 1024 * 1024

func init() {
	registerTransport(dialFrame, listenFrame, TransportFrame)
}

// FrameConn is a bridge channel over plain TCP. Each message is
// [4 len][1 type][payload]; no request ids are needed because only one
// request is ever outstanding.
type FrameConn struct {
	conn   net.Conn
	closed atomic.Bool
}

func dialFrame(ctx context.Context, u *url.URL) (Channel, error) {
	return FrameDial(ctx, u.Host)
}

// FrameDial connects to a frame server
func FrameDial(ctx context.Context, addr string) (*FrameConn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("frame dial: %w", err)
	}
	return &FrameConn{conn: conn}, nil
}

func (f *FrameConn) Send(ctx context.Context, data []byte) error {
	if f.closed.Load() {
		return ErrClosed
	}
	stop := watchDeadline(ctx, f.conn.SetWriteDeadline)
	defer stop()
	return deadlineError(ctx, writeFrame(f.conn, MsgRequest, data))
}

func (f *FrameConn) Recv(ctx context.Context) ([]byte, error) {
	if f.closed.Load() {
		return nil, ErrClosed
	}
	stop := watchDeadline(ctx, f.conn.SetReadDeadline)
	defer stop()
	typ, payload, err := readFrame(f.conn)
	if err != nil {
		return nil, deadlineError(ctx, err)
	}
	if typ != MsgResponse {
		return nil, fmt.Errorf("%w: %#x", ErrFrameType, typ)
	}
	return payload, nil
}

// Close closes the connection
func (f *FrameConn) Close() error {
	if f.closed.Swap(true) {
		return nil
	}
	return f.conn.Close()
}

// watchDeadline makes a blocking conn call return when ctx is done.
func watchDeadline(ctx context.Context, set func(time.Time) error) func() {
	if dl, ok := ctx.Deadline(); ok {
		_ = set(dl)
	}
	if ctx.Done() == nil {
		return func() {}
	}
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-ctx.Done():
			_ = set(time.Unix(1, 0))
		case <-done:
		}
	}()
	return func() {
		close(done)
		<-exited
		_ = set(time.Time{})
	}
}

// deadlineError reports a conn timeout caused by ctx as the ctx error.
func deadlineError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if _, ok := ctx.Deadline(); ok && errors.Is(err, os.ErrDeadlineExceeded) {
		return context.DeadlineExceeded
	}
	return err
}

func writeFrame(w io.Writer, typ MessageType, payload []byte) error {
	if len(payload)+1 > MaxFrameSize {
		return ErrFrameTooLarge
	}
	buf := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(1+len(payload)))
	buf[4] = byte(typ)
	copy(buf[5:], payload)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("frame write: %w", err)
	}
	return nil
}

func readFrame(r io.Reader) (MessageType, []byte, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}
	msgLen := binary.BigEndian.Uint32(header)
	if msgLen == 0 {
		return 0, nil, fmt.Errorf("%w: empty frame", ErrFrameType)
	}
	if msgLen > MaxFrameSize {
		return 0, nil, ErrFrameTooLarge
	}
	msg := make([]byte, msgLen)
	if _, err := io.ReadFull(r, msg); err != nil {
		return 0, nil, err
	}
	return MessageType(msg[0]), msg[1:], nil
}

// FrameServer serves bridge requests over the frame transport. Requests on
// one connection are answered in order, one at a time.
type FrameServer struct {
	listener net.Listener
	handler  Handler
	conns    sync.Map
	closed   atomic.Bool
}

func listenFrame(u *url.URL, h Handler) (Server, error) {
	listener, err := net.Listen("tcp", u.Host)
	if err != nil {
		return nil, err
	}
	return NewFrameServer(listener, h), nil
}

// NewFrameServer creates a new frame server
func NewFrameServer(listener net.Listener, handler Handler) *FrameServer {
	return &FrameServer{
		listener: listener,
		handler:  handler,
	}
}

// Maximum pause between failed accepts.
const maxAcceptDelay = time.Second

// Serve starts serving requests. Timeouts from Accept are retried with a
// growing delay; any other accept error is returned.
func (s *FrameServer) Serve(ctx context.Context) error {
	var delay time.Duration
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closed.Load() {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var ne net.Error
			if !errors.As(err, &ne) || !ne.Timeout() {
				return fmt.Errorf("frame accept: %w", err)
			}
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else if delay *= 2; delay > maxAcceptDelay {
				delay = maxAcceptDelay
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		delay = 0
		go s.handleConn(ctx, conn)
	}
}

func (s *FrameServer) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	s.conns.Store(conn, struct{}{})
	defer s.conns.Delete(conn)

	for {
		typ, payload, err := readFrame(conn)
		if err != nil {
			return
		}
		if typ != MsgRequest {
			return
		}
		resp := s.handler.HandleEnvelope(ctx, payload)
		if err := writeFrame(conn, MsgResponse, resp); err != nil {
			return
		}
	}
}

// Close closes the server
func (s *FrameServer) Close() error {
	s.closed.Store(true)
	s.conns.Range(func(key, _ any) bool {
		key.(net.Conn).Close()
		return true
	})
	return s.listener.Close()
}

// Endpoint returns the frame:// address of the listener
func (s *FrameServer) Endpoint() string {
	return TransportFrame + "://" + s.listener.Addr().String()
}
