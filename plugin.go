// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gmebridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	// ErrNodeNotFound is returned when a path does not resolve to a node.
	ErrNodeNotFound = errors.New("node not found")
	// ErrPluginArgs is returned by ParsePluginArgs on a malformed invocation.
	ErrPluginArgs = errors.New("invalid plugin arguments")
)

// Message severities accepted by Plugin.CreateMessage.
const (
	SeverityDebug   = "debug"
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Plugin is the plugin runtime facade. Its operations only succeed while
// the engine is running a plugin on behalf of this process.
type Plugin struct {
	s *Session
}

func (p *Plugin) call(ctx context.Context, name string, args ...Value) (Value, error) {
	return p.s.Call(ctx, PluginRuntime, name, args...)
}

// GetCurrentConfig returns the configuration the plugin was started with.
func (p *Plugin) GetCurrentConfig(ctx context.Context) (Map, error) {
	return mapResult(p.call(ctx, "getCurrentConfig"))
}

// SendNotification pushes a message to the user that started the plugin.
func (p *Plugin) SendNotification(ctx context.Context, msg string) error {
	return noResult(p.call(ctx, "sendNotification", String(msg)))
}

// CreateMessage adds a message about node to the plugin result. An empty
// severity means SeverityInfo.
func (p *Plugin) CreateMessage(ctx context.Context, node Handle, msg, severity string) error {
	if severity == "" {
		severity = SeverityInfo
	}
	return noResult(p.call(ctx, "createMessage", node, String(msg), String(severity)))
}

// AddFile uploads a file and attaches it to the result. Returns the
// metadata hash.
func (p *Plugin) AddFile(ctx context.Context, name, content string) (string, error) {
	return stringResult(p.call(ctx, "addFile", String(name), String(content)))
}

// AddArtifact uploads files bundled as one artifact and attaches it to the
// result. Returns the metadata hash.
func (p *Plugin) AddArtifact(ctx context.Context, name string, files map[string]string) (string, error) {
	m := make(Map, len(files))
	for k, v := range files {
		m[k] = Map{"content": String(v), "binary": Bool(false)}
	}
	return stringResult(p.call(ctx, "addArtifact", String(name), m))
}

func (p *Plugin) GetFile(ctx context.Context, metadataHash string) (string, error) {
	return stringResult(p.call(ctx, "getFile", String(metadataHash)))
}

// GetArtifact returns the files of an artifact keyed by name.
func (p *Plugin) GetArtifact(ctx context.Context, metadataHash string) (map[string]string, error) {
	return decodeResult[map[string]string](p.call(ctx, "getArtifact", String(metadataHash)))
}

func (p *Plugin) ResultSetSuccess(ctx context.Context, success bool) error {
	return noResult(p.call(ctx, "resultSetSuccess", Bool(success)))
}

func (p *Plugin) ResultSetError(ctx context.Context, msg string) error {
	return noResult(p.call(ctx, "resultSetError", String(msg)))
}

// State is the bootstrap state of a PluginContext.
type State int

const (
	Uninitialized State = iota
	RootLoaded
	Ready
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case RootLoaded:
		return "root-loaded"
	case Ready:
		return "ready"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// PluginParams is what the engine hands to a plugin invocation.
type PluginParams struct {
	// Port or endpoint of the engine; used by ParsePluginArgs callers to
	// dial, ignored by NewPluginContext.
	Endpoint        string
	CommitHash      string
	BranchName      string
	ActiveNode      string
	ActiveSelection []string
	Namespace       string
}

// PluginContext is a session bootstrapped for one plugin invocation: the
// tree of the invoked commit is loaded and the active node and selection
// are resolved.
type PluginContext struct {
	Session *Session
	Params  PluginParams

	Root            *Root
	ActiveNode      Handle
	ActiveSelection []Handle

	mu    sync.Mutex
	state State
	meta  map[string]Handle
}

// NewPluginContext loads the tree of params.CommitHash and resolves the
// active node and selection against it. On failure the root is released
// again and the error of the failing step is returned as is.
func NewPluginContext(ctx context.Context, sess *Session, params PluginParams) (*PluginContext, error) {
	pc := &PluginContext{Session: sess, Params: params}
	if err := pc.bootstrap(ctx); err != nil {
		if pc.Root != nil {
			if rerr := pc.Root.Release(ctx); rerr != nil {
				sess.Logger().Warn("failed to release root after bootstrap failure",
					"root", pc.Root.Node.RootID, "error", rerr)
			}
		}
		return nil, err
	}
	sess.Logger().Debug("plugin context ready",
		"commit", params.CommitHash,
		"activeNode", pc.ActiveNode.NodePath,
		"selection", len(pc.ActiveSelection),
	)
	return pc, nil
}

func (pc *PluginContext) bootstrap(ctx context.Context) error {
	s := pc.Session
	hash, err := s.Project().GetRootHash(ctx, pc.Params.CommitHash)
	if err != nil {
		return err
	}
	root, err := s.Core().LoadRoot(ctx, hash)
	if err != nil {
		return err
	}
	pc.Root = root
	pc.state = RootLoaded

	if pc.ActiveNode, err = pc.resolve(ctx, pc.Params.ActiveNode); err != nil {
		return err
	}
	selection := make([]Handle, 0, len(pc.Params.ActiveSelection))
	for _, path := range pc.Params.ActiveSelection {
		h, err := pc.resolve(ctx, path)
		if err != nil {
			return err
		}
		selection = append(selection, h)
	}
	pc.ActiveSelection = selection
	pc.state = Ready
	return nil
}

func (pc *PluginContext) resolve(ctx context.Context, path string) (Handle, error) {
	h, found, err := pc.Session.Core().LoadByPath(ctx, pc.Root.Node, path)
	if err != nil {
		return Handle{}, err
	}
	if !found {
		return Handle{}, fmt.Errorf("%w: %q", ErrNodeNotFound, path)
	}
	return h, nil
}

// State returns the bootstrap state.
func (pc *PluginContext) State() State {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.state
}

// RootNode returns the handle of the loaded tree root.
func (pc *PluginContext) RootNode() Handle {
	return pc.Root.Node
}

// META returns the meta nodes of the invoked tree keyed by name, relative
// to the plugin namespace. Fetched on first use.
func (pc *PluginContext) META(ctx context.Context) (map[string]Handle, error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.state == Closed {
		return nil, ErrClosed
	}
	if pc.meta != nil {
		return pc.meta, nil
	}
	meta, err := pc.Session.Util().META(ctx, pc.Root.Node, pc.Params.Namespace)
	if err != nil {
		return nil, err
	}
	pc.meta = meta
	return meta, nil
}

// GMEConfig returns the engine configuration from the session cache.
func (pc *PluginContext) GMEConfig(ctx context.Context) (Map, error) {
	return pc.Session.Util().GMEConfig(ctx)
}

// Close releases the invoked tree. The session stays open.
func (pc *PluginContext) Close(ctx context.Context) error {
	pc.mu.Lock()
	if pc.state == Closed {
		pc.mu.Unlock()
		return nil
	}
	pc.state = Closed
	pc.meta = nil
	pc.mu.Unlock()
	return pc.Root.Release(ctx)
}

// ParsePluginArgs parses the positional arguments the engine's plugin
// runner passes: port, commit hash, branch name, active node path, comma
// separated selection paths and namespace. Values may be wrapped in double
// quotes; `""` stands for empty. A leading empty selection element is
// dropped. The namespace may be omitted.
func ParsePluginArgs(args []string) (PluginParams, error) {
	if len(args) < 5 || len(args) > 6 {
		return PluginParams{}, fmt.Errorf("%w: want 5 or 6, got %d", ErrPluginArgs, len(args))
	}
	p := PluginParams{
		Endpoint:   unquote(args[0]),
		CommitHash: unquote(args[1]),
		BranchName: unquote(args[2]),
		ActiveNode: unquote(args[3]),
	}
	if p.Endpoint == "" {
		return PluginParams{}, fmt.Errorf("%w: empty port", ErrPluginArgs)
	}
	if p.CommitHash == "" {
		return PluginParams{}, fmt.Errorf("%w: empty commit hash", ErrPluginArgs)
	}
	if sel := unquote(args[4]); sel != "" {
		paths := strings.Split(sel, ",")
		// The runner may emit a leading separator; that element is not
		// the root.
		if paths[0] == "" {
			paths = paths[1:]
		}
		if len(paths) > 0 {
			p.ActiveSelection = paths
		}
	}
	if len(args) == 6 {
		p.Namespace = unquote(args[5])
	}
	return p, nil
}

func unquote(s string) string {
	return strings.Trim(s, `"`)
}
