// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package gmebridge is a client for a remote graph modeling engine. Every
// operation is a JSON envelope sent over a strictly half-duplex channel:
// one request, then exactly one reply, then the next request.
//
// # Transport Selection
//
// The endpoint scheme selects the transport:
//
//	tcp://127.0.0.1:5555   ZeroMQ REQ socket (default, what the engine serves)
//	ipc:///tmp/engine      ZeroMQ over a unix socket
//	frame://host:port      length-prefixed frames over TCP
//	ws://host:port/path    one websocket text message per envelope
//	http://host:port/rpc   JSON-RPC 2.0 Engine.Dispatch
//	grpc://host:port       unary gRPC with a raw codec
//
// A bare port or host:port means ZeroMQ over tcp.
//
// # Usage
//
//	sess, err := gmebridge.Dial(ctx, "5555")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sess.Close(ctx)
//
//	hash, err := sess.Project().GetRootHash(ctx, "master")
//	root, err := sess.Core().LoadRoot(ctx, hash)
//	defer root.Release(ctx)
//	name, err := sess.Core().GetAttribute(ctx, root.Node, "name")
//
// A plugin started by the engine bootstraps its context from the runner
// arguments:
//
//	params, err := gmebridge.ParsePluginArgs(os.Args[1:])
//	sess, err := gmebridge.Dial(ctx, params.Endpoint)
//	pc, err := gmebridge.NewPluginContext(ctx, sess, params)
//
// # Errors
//
// Failures reported by the engine are *RemoteError values; match the kind
// with errors.Is(err, ErrIllegalArgument) and friends, or ErrRemote for
// any of them. Channel failures are *TransportError and poison the
// session: every later call fails with the same error.
//
// # Architecture
//
//   - value.go, handle.go: the value union exchanged with the engine
//   - codec.go: envelope encoding
//   - errors.go: error classification
//   - transport.go: transport registry and half-duplex guard
//   - dispatch.go: the single funnel all facades call through
//   - session.go, cache.go: session state and the singleton cache
//   - core.go, project.go, util.go, plugin.go: the facades
package gmebridge
