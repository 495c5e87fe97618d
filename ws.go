// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gmebridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

func init() {
	registerTransport(dialWS, listenWS, TransportWebSocket, TransportWSS)
}

// WSConn is a bridge channel carrying one envelope per websocket text
// message.
type WSConn struct {
	conn   *websocket.Conn
	closed atomic.Bool
}

func dialWS(ctx context.Context, u *url.URL) (Channel, error) {
	return WSDial(ctx, u.String())
}

// WSDial connects to a websocket engine endpoint.
func WSDial(ctx context.Context, addr string) (*WSConn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, addr, nil)
	if resp != nil && resp.Body != nil {
		CleanlyCloseBody(resp.Body)
	}
	if err != nil {
		return nil, fmt.Errorf("ws dial: %w", err)
	}
	return &WSConn{conn: conn}, nil
}

func (w *WSConn) Send(ctx context.Context, data []byte) error {
	if w.closed.Load() {
		return ErrClosed
	}
	stop := watchDeadline(ctx, w.conn.SetWriteDeadline)
	defer stop()
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *WSConn) Recv(ctx context.Context) ([]byte, error) {
	if w.closed.Load() {
		return nil, ErrClosed
	}
	stop := watchDeadline(ctx, w.conn.SetReadDeadline)
	defer stop()
	_, data, err := w.conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return data, nil
}

// Close sends a close frame and closes the connection.
func (w *WSConn) Close() error {
	if w.closed.Swap(true) {
		return nil
	}
	_ = w.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return w.conn.Close()
}

// WSServer serves bridge requests over websockets.
type WSServer struct {
	listener net.Listener
	server   *http.Server
	handler  Handler
	path     string
	upgrader websocket.Upgrader
	closed   atomic.Bool
}

func listenWS(u *url.URL, h Handler) (Server, error) {
	listener, err := net.Listen("tcp", u.Host)
	if err != nil {
		return nil, err
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	s := &WSServer{listener: listener, handler: h, path: path}
	mux := http.NewServeMux()
	mux.HandleFunc(path, s.serveWS)
	s.server = &http.Server{Handler: mux}
	return s, nil
}

func (s *WSServer) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if typ != websocket.TextMessage && typ != websocket.BinaryMessage {
			continue
		}
		resp := s.handler.HandleEnvelope(r.Context(), data)
		if err := conn.WriteMessage(websocket.TextMessage, resp); err != nil {
			return
		}
	}
}

// Serve starts serving requests
func (s *WSServer) Serve(ctx context.Context) error {
	s.server.BaseContext = func(net.Listener) context.Context { return ctx }
	err := s.server.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close closes the server
func (s *WSServer) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	err := s.server.Close()
	_ = s.listener.Close()
	return err
}

// Endpoint returns the ws:// address of the listener
func (s *WSServer) Endpoint() string {
	return TransportWebSocket + "://" + s.listener.Addr().String() + s.path
}
