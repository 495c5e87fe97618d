// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package enginetest provides an in-memory graph engine speaking the
// bridge envelope protocol. It keeps one project with a small seeded
// model, branches, tags and commits, and records what a plugin reports.
package enginetest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/luxfi/gmebridge"
	"github.com/luxfi/gmebridge/internal/logging"
)

// Master is the branch the seeded project starts with.
const Master = "master"

// Message is a plugin message recorded by createMessage.
type Message struct {
	Node     gmebridge.Handle
	Message  string
	Severity string
}

// PluginResult is what a plugin reported through the plugin facade.
type PluginResult struct {
	Success       bool
	SuccessSet    bool
	Error         string
	Messages      []Message
	Notifications []string
	Files         map[string]string
	Artifacts     map[string]string
}

type commit struct {
	ID      string
	Root    string
	Parents []string
	Updater []string
	Time    int64
	Message string
}

func (c *commit) value() gmebridge.Map {
	parents := make(gmebridge.List, len(c.Parents))
	for i, p := range c.Parents {
		parents[i] = gmebridge.String(p)
	}
	updater := make(gmebridge.List, len(c.Updater))
	for i, u := range c.Updater {
		updater[i] = gmebridge.String(u)
	}
	return gmebridge.Map{
		"_id":     gmebridge.String(c.ID),
		"root":    gmebridge.String(c.Root),
		"parents": parents,
		"updater": updater,
		"time":    gmebridge.Int(c.Time),
		"message": gmebridge.String(c.Message),
		"type":    gmebridge.String("commit"),
	}
}

type failure struct {
	typ string
	msg string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger traces requests to l.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithPlugin enables the plugin facade with the given current config, as
// when the engine runs the bridge on behalf of a plugin.
func WithPlugin(config gmebridge.Map) Option {
	return func(e *Engine) {
		e.plugin = true
		e.pluginConfig = config
	}
}

// WithNamespace sets the namespace META uses when none is requested.
func WithNamespace(ns string) Option {
	return func(e *Engine) { e.namespace = ns }
}

// Engine is the fake engine. It implements gmebridge.Handler.
type Engine struct {
	mu    sync.Mutex
	codec gmebridge.Codec
	log   *slog.Logger

	objects  map[string]*node // persisted trees by root hash
	commits  map[string]*commit
	branches map[string]string
	tags     map[string]string
	roots    map[string]*node // loaded trees by root id
	clock    int64

	namespace    string
	plugin       bool
	pluginConfig gmebridge.Map
	result       PluginResult
	blobs        map[string]string
	artifacts    map[string]map[string]string

	requests []gmebridge.Command
	failures map[string][]failure
}

// New creates an engine holding the seeded project on branch Master.
func New(opts ...Option) *Engine {
	e := &Engine{
		codec:     gmebridge.JSONCodec{},
		log:       logging.NewNop(),
		objects:   map[string]*node{},
		commits:   map[string]*commit{},
		branches:  map[string]string{},
		tags:      map[string]string{},
		roots:     map[string]*node{},
		clock:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli(),
		blobs:     map[string]string{},
		artifacts: map[string]map[string]string{},
		failures:  map[string][]failure{},
		result: PluginResult{
			Files:     map[string]string{},
			Artifacts: map[string]string{},
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	tree := seedTree()
	rootHash := tree.hash()
	e.objects[rootHash] = tree
	c := e.addCommit(rootHash, nil, "initial commit")
	e.branches[Master] = c.ID
	return e
}

func (e *Engine) addCommit(rootHash string, parents []string, msg string) *commit {
	e.clock += 1000
	c := &commit{
		Root:    rootHash,
		Parents: append([]string{}, parents...),
		Updater: []string{"guest"},
		Time:    e.clock,
		Message: msg,
	}
	c.ID = "#" + shortHash(fmt.Sprintf("%s|%v|%d|%s", rootHash, parents, c.Time, msg))
	e.commits[c.ID] = c
	return c
}

// HandleEnvelope answers one request envelope.
func (e *Engine) HandleEnvelope(_ context.Context, req []byte) []byte {
	cmd, err := e.codec.DecodeCommand(req)
	if err != nil {
		return e.respondError(&engineError{
			typ: gmebridge.TypeGeneric,
			msg: fmt.Sprintf("Failed to parse request to json: %s", req),
		}, gmebridge.String("Unable to parse request."))
	}

	e.mu.Lock()
	e.requests = append(e.requests, cmd)
	res, herr := e.handle(cmd)
	e.mu.Unlock()

	if herr != nil {
		e.log.Debug("request failed", "type", cmd.Tag.String(), "name", cmd.Name, "error", herr)
		return e.respondError(herr, requestValue(cmd))
	}
	e.log.Debug("request handled", "type", cmd.Tag.String(), "name", cmd.Name)
	if res == nil {
		res = gmebridge.Null{}
	}
	out, err := e.codec.EncodeResponse(gmebridge.Response{Result: res})
	if err != nil {
		return e.respondError(internal("failed to encode result: %v", err), requestValue(cmd))
	}
	return out
}

func (e *Engine) respondError(err *engineError, req gmebridge.Value) []byte {
	out, encErr := e.codec.EncodeResponse(gmebridge.Response{
		Result: gmebridge.Null{},
		Err: &gmebridge.ErrorDescriptor{
			Kind:    err.typ,
			Message: err.msg,
			Stack:   err.typ + ": " + err.msg + "\n    at enginetest",
			Request: req,
		},
	})
	if encErr != nil {
		// Only reachable with a request holding values the codec itself
		// produced, so drop the echo.
		out, _ = e.codec.EncodeResponse(gmebridge.Response{Err: &gmebridge.ErrorDescriptor{
			Kind: err.typ, Message: err.msg,
		}})
	}
	return out
}

func requestValue(cmd gmebridge.Command) gmebridge.Value {
	args := make(gmebridge.List, len(cmd.Args))
	copy(args, cmd.Args)
	return gmebridge.Map{
		"type": gmebridge.String(cmd.Tag.String()),
		"name": gmebridge.String(cmd.Name),
		"args": args,
	}
}

func (e *Engine) handle(cmd gmebridge.Command) (gmebridge.Value, *engineError) {
	key := cmd.String()
	if fs := e.failures[key]; len(fs) > 0 {
		e.failures[key] = fs[1:]
		return nil, &engineError{typ: fs[0].typ, msg: fs[0].msg}
	}
	a := args(cmd.Args)
	switch cmd.Tag {
	case gmebridge.Graph:
		return e.handleCore(cmd.Name, a)
	case gmebridge.Repository:
		return e.handleProject(cmd.Name, a)
	case gmebridge.Utility:
		return e.handleUtil(cmd.Name, a)
	case gmebridge.PluginRuntime:
		if !e.plugin {
			return nil, generic("engine was not started from a plugin")
		}
		return e.handlePlugin(cmd.Name, a)
	}
	return nil, generic("Unexpected request type [%s]", cmd.Tag)
}

// FailNext makes the next request for tag.name fail with the given engine
// error type.
func (e *Engine) FailNext(tag gmebridge.Tag, name, typ, msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := gmebridge.Command{Tag: tag, Name: name}.String()
	e.failures[key] = append(e.failures[key], failure{typ: typ, msg: msg})
}

// Requests returns the commands handled so far, in order.
func (e *Engine) Requests() []gmebridge.Command {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]gmebridge.Command(nil), e.requests...)
}

// Count returns how many requests for tag.name were handled.
func (e *Engine) Count(tag gmebridge.Tag, name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.requests {
		if c.Tag == tag && c.Name == name {
			n++
		}
	}
	return n
}

// BranchHash returns the head of branch, or "" when it does not exist.
func (e *Engine) BranchHash(branch string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.branches[branch]
}

// LoadedRoots returns the ids of the roots currently loaded.
func (e *Engine) LoadedRoots() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.roots))
	for id := range e.roots {
		out = append(out, id)
	}
	return out
}

// Result returns a copy of what the plugin reported.
func (e *Engine) Result() PluginResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := e.result
	r.Messages = append([]Message(nil), r.Messages...)
	r.Notifications = append([]string(nil), r.Notifications...)
	r.Files = copyStrings(r.Files)
	r.Artifacts = copyStrings(r.Artifacts)
	return r
}

func copyStrings(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
