// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gmebridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	rpc "github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
)

// DispatchMethod is the JSON-RPC method carrying bridge envelopes.
const DispatchMethod = "Engine.Dispatch"

// DefaultHTTPPath is used when an http endpoint names no path.
const DefaultHTTPPath = "/rpc"

func init() {
	registerTransport(dialHTTP, listenHTTP, TransportHTTP, TransportHTTPS)
}

// EnvelopeArgs is the JSON-RPC params object; Payload is the request
// envelope.
type EnvelopeArgs struct {
	Payload string `json:"payload"`
}

// EnvelopeReply is the JSON-RPC result object; Payload is the response
// envelope.
type EnvelopeReply struct {
	Payload string `json:"payload"`
}

// newHTTPClient creates a client without a timeout: a dispatch blocks until
// the engine answers.
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DisableKeepAlives: true,
		},
	}
}

// CleanlyCloseBody drains and closes an HTTP response body to prevent
// HTTP/2 GOAWAY errors caused by closing bodies with unread data.
// See: https://github.com/golang/go/issues/46071
func CleanlyCloseBody(body io.ReadCloser) error {
	if body == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, body)
	return body.Close()
}

// HTTPConn is a bridge channel over JSON-RPC 2.0. Send only encodes; the
// POST happens in Recv, so each request/reply pair is one HTTP exchange.
// Requests are never retried since a retried mutation could be applied
// twice.
type HTTPConn struct {
	uri     string
	client  *http.Client
	pending []byte
	closed  atomic.Bool
}

func dialHTTP(_ context.Context, u *url.URL) (Channel, error) {
	target := *u
	if target.Path == "" {
		target.Path = DefaultHTTPPath
	}
	return &HTTPConn{uri: target.String(), client: newHTTPClient()}, nil
}

func (h *HTTPConn) Send(_ context.Context, data []byte) error {
	if h.closed.Load() {
		return ErrClosed
	}
	body, err := json2.EncodeClientRequest(DispatchMethod, &EnvelopeArgs{Payload: string(data)})
	if err != nil {
		return fmt.Errorf("failed to encode client params: %w", err)
	}
	h.pending = body
	return nil
}

func (h *HTTPConn) Recv(ctx context.Context) ([]byte, error) {
	if h.closed.Load() {
		return nil, ErrClosed
	}
	body := h.pending
	h.pending = nil

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, h.uri, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("failed to issue request: %w", err)
	}
	defer CleanlyCloseBody(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("received status code: %d", resp.StatusCode)
	}

	var reply EnvelopeReply
	if err := json2.DecodeClientResponse(resp.Body, &reply); err != nil {
		return nil, fmt.Errorf("failed to decode client response: %w", err)
	}
	return []byte(reply.Payload), nil
}

// Close releases idle connections.
func (h *HTTPConn) Close() error {
	if h.closed.Swap(true) {
		return nil
	}
	h.client.CloseIdleConnections()
	return nil
}

// EngineService exposes a Handler as the JSON-RPC service "Engine".
type EngineService struct {
	handler Handler
}

// Dispatch answers one envelope.
func (s *EngineService) Dispatch(r *http.Request, args *EnvelopeArgs, reply *EnvelopeReply) error {
	reply.Payload = string(s.handler.HandleEnvelope(r.Context(), []byte(args.Payload)))
	return nil
}

// NewHTTPHandler mounts a Handler as a JSON-RPC 2.0 endpoint at path.
func NewHTTPHandler(path string, h Handler) (http.Handler, error) {
	server := rpc.NewServer()
	server.RegisterCodec(json2.NewCodec(), "application/json")
	if err := server.RegisterService(&EngineService{handler: h}, "Engine"); err != nil {
		return nil, fmt.Errorf("register engine service: %w", err)
	}
	r := chi.NewRouter()
	r.Post(path, server.ServeHTTP)
	return r, nil
}

// HTTPServer serves bridge requests as JSON-RPC over HTTP.
type HTTPServer struct {
	listener net.Listener
	server   *http.Server
	path     string
	closed   atomic.Bool
}

func listenHTTP(u *url.URL, h Handler) (Server, error) {
	path := u.Path
	if path == "" {
		path = DefaultHTTPPath
	}
	handler, err := NewHTTPHandler(path, h)
	if err != nil {
		return nil, err
	}
	listener, err := net.Listen("tcp", u.Host)
	if err != nil {
		return nil, err
	}
	return &HTTPServer{
		listener: listener,
		server:   &http.Server{Handler: handler},
		path:     path,
	}, nil
}

// Serve starts serving requests
func (s *HTTPServer) Serve(ctx context.Context) error {
	s.server.BaseContext = func(net.Listener) context.Context { return ctx }
	err := s.server.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close closes the server
func (s *HTTPServer) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	err := s.server.Close()
	_ = s.listener.Close()
	return err
}

// Endpoint returns the http:// address of the listener
func (s *HTTPServer) Endpoint() string {
	return TransportHTTP + "://" + s.listener.Addr().String() + s.path
}
