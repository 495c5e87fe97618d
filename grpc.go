// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gmebridge

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// grpcDispatchMethod is the unary method carrying bridge envelopes.
const grpcDispatchMethod = "/gmebridge.Engine/Dispatch"

func init() {
	registerTransport(dialGRPC, listenGRPC, TransportGRPC)
}

// rawFrame is an envelope passed through gRPC untouched.
type rawFrame struct {
	data []byte
}

// rawCodec hands envelopes to gRPC as opaque bytes.
type rawCodec struct{}

func (rawCodec) Marshal(v any) ([]byte, error) {
	f, ok := v.(*rawFrame)
	if !ok {
		return nil, fmt.Errorf("grpc raw codec: cannot marshal %T", v)
	}
	return f.data, nil
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	f, ok := v.(*rawFrame)
	if !ok {
		return fmt.Errorf("grpc raw codec: cannot unmarshal into %T", v)
	}
	f.data = append([]byte(nil), data...)
	return nil
}

func (rawCodec) Name() string { return "gmebridge-raw" }

// GRPCConn is a bridge channel over unary gRPC calls. Like HTTPConn, Send
// only records the request and Recv performs the call.
type GRPCConn struct {
	conn    *grpc.ClientConn
	pending []byte
	closed  atomic.Bool
}

func dialGRPC(_ context.Context, u *url.URL) (Channel, error) {
	conn, err := grpc.NewClient(u.Host,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(rawCodec{})),
	)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &GRPCConn{conn: conn}, nil
}

func (g *GRPCConn) Send(_ context.Context, data []byte) error {
	if g.closed.Load() {
		return ErrClosed
	}
	g.pending = data
	return nil
}

func (g *GRPCConn) Recv(ctx context.Context) ([]byte, error) {
	if g.closed.Load() {
		return nil, ErrClosed
	}
	req := &rawFrame{data: g.pending}
	g.pending = nil
	var reply rawFrame
	if err := g.conn.Invoke(ctx, grpcDispatchMethod, req, &reply); err != nil {
		return nil, fmt.Errorf("grpc invoke: %w", err)
	}
	return reply.data, nil
}

func (g *GRPCConn) Close() error {
	if g.closed.Swap(true) {
		return nil
	}
	return g.conn.Close()
}

type envelopeDispatcher interface {
	dispatchEnvelope(ctx context.Context, req []byte) []byte
}

type grpcEngine struct {
	handler Handler
}

func (e *grpcEngine) dispatchEnvelope(ctx context.Context, req []byte) []byte {
	return e.handler.HandleEnvelope(ctx, req)
}

func grpcDispatchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(rawFrame)
	if err := dec(in); err != nil {
		return nil, err
	}
	e := srv.(envelopeDispatcher)
	if interceptor == nil {
		return &rawFrame{data: e.dispatchEnvelope(ctx, in.data)}, nil
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: grpcDispatchMethod,
	}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return &rawFrame{data: e.dispatchEnvelope(ctx, req.(*rawFrame).data)}, nil
	})
}

var engineServiceDesc = grpc.ServiceDesc{
	ServiceName: "gmebridge.Engine",
	HandlerType: (*envelopeDispatcher)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Dispatch", Handler: grpcDispatchHandler},
	},
	Streams: []grpc.StreamDesc{},
}

// GRPCServer serves bridge requests over gRPC.
type GRPCServer struct {
	listener net.Listener
	server   *grpc.Server
	stopped  chan struct{}
	closed   atomic.Bool
}

func listenGRPC(u *url.URL, h Handler) (Server, error) {
	listener, err := net.Listen("tcp", u.Host)
	if err != nil {
		return nil, err
	}
	server := grpc.NewServer(grpc.ForceServerCodec(rawCodec{}))
	server.RegisterService(&engineServiceDesc, &grpcEngine{handler: h})
	return &GRPCServer{listener: listener, server: server, stopped: make(chan struct{})}, nil
}

// Serve starts serving requests
func (s *GRPCServer) Serve(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.stopped:
		}
	}()
	err := s.server.Serve(s.listener)
	if s.closed.Load() {
		return nil
	}
	// Stops the watcher above.
	_ = s.Close()
	return err
}

// Close closes the server
func (s *GRPCServer) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.stopped)
	s.server.Stop()
	_ = s.listener.Close()
	return nil
}

// Endpoint returns the grpc:// address of the listener
func (s *GRPCServer) Endpoint() string {
	return TransportGRPC + "://" + s.listener.Addr().String()
}
