// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gmebridge

import (
	"context"
	"fmt"
)

// Core is the graph facade. Every method is one dispatch tagged Graph.
type Core struct {
	s *Session
}

func (c *Core) call(ctx context.Context, name string, args ...Value) (Value, error) {
	return c.s.Call(ctx, Graph, name, args...)
}

// Constants returns the engine's core constants. Fetched once per session.
func (c *Core) Constants(ctx context.Context) (Map, error) {
	return mapResult(c.s.cached(ctx, KeyCoreConstants, Graph, "CONSTANTS"))
}

// LoadRoot loads the subtree stored under hash. The returned Root must be
// released when no longer needed.
func (c *Core) LoadRoot(ctx context.Context, hash string) (*Root, error) {
	h, err := handleResult(c.call(ctx, "loadRoot", String(hash)))
	if err != nil {
		return nil, err
	}
	c.s.retainRoot(h.RootID)
	return &Root{Node: h, Hash: hash, s: c.s}, nil
}

// LoadByPath resolves path relative to node. found is false when nothing
// lives at path.
func (c *Core) LoadByPath(ctx context.Context, node Handle, path string) (h Handle, found bool, err error) {
	return optionalHandleResult(c.call(ctx, "loadByPath", node, String(path)))
}

// LoadChild loads the child of parent with the given relative id.
func (c *Core) LoadChild(ctx context.Context, parent Handle, relid string) (Handle, bool, error) {
	return optionalHandleResult(c.call(ctx, "loadChild", parent, String(relid)))
}

// LoadChildren loads all children of node.
func (c *Core) LoadChildren(ctx context.Context, node Handle) ([]Handle, error) {
	return handlesResult(c.call(ctx, "loadChildren", node))
}

func (c *Core) GetPath(ctx context.Context, node Handle) (string, error) {
	return stringResult(c.call(ctx, "getPath", node))
}

// GetRelid returns the last segment of the node path; the root has none.
func (c *Core) GetRelid(ctx context.Context, node Handle) (string, bool, error) {
	return optionalStringResult(c.call(ctx, "getRelid", node))
}

func (c *Core) GetParent(ctx context.Context, node Handle) (Handle, bool, error) {
	return optionalHandleResult(c.call(ctx, "getParent", node))
}

// GetAttribute returns the attribute value, or Null when the attribute is
// not defined.
func (c *Core) GetAttribute(ctx context.Context, node Handle, name string) (Value, error) {
	return c.call(ctx, "getAttribute", node, String(name))
}

func (c *Core) SetAttribute(ctx context.Context, node Handle, name string, value Value) error {
	return noResult(c.call(ctx, "setAttribute", node, String(name), value))
}

func (c *Core) DelAttribute(ctx context.Context, node Handle, name string) error {
	return noResult(c.call(ctx, "delAttribute", node, String(name)))
}

func (c *Core) GetAttributeNames(ctx context.Context, node Handle) ([]string, error) {
	return stringsResult(c.call(ctx, "getAttributeNames", node))
}

func (c *Core) GetRegistry(ctx context.Context, node Handle, name string) (Value, error) {
	return c.call(ctx, "getRegistry", node, String(name))
}

func (c *Core) SetRegistry(ctx context.Context, node Handle, name string, value Value) error {
	return noResult(c.call(ctx, "setRegistry", node, String(name), value))
}

// GetPointerPath returns the path of the pointer target. ok is false when
// the pointer is not defined or has no target.
func (c *Core) GetPointerPath(ctx context.Context, node Handle, name string) (path string, ok bool, err error) {
	return optionalStringResult(c.call(ctx, "getPointerPath", node, String(name)))
}

// SetPointer points name at target.
func (c *Core) SetPointer(ctx context.Context, node Handle, name string, target Handle) error {
	return noResult(c.call(ctx, "setPointer", node, String(name), target))
}

// ClearPointer defines name with no target.
func (c *Core) ClearPointer(ctx context.Context, node Handle, name string) error {
	return noResult(c.call(ctx, "setPointer", node, String(name), Null{}))
}

func (c *Core) DelPointer(ctx context.Context, node Handle, name string) error {
	return noResult(c.call(ctx, "delPointer", node, String(name)))
}

func (c *Core) GetPointerNames(ctx context.Context, node Handle) ([]string, error) {
	return stringsResult(c.call(ctx, "getPointerNames", node))
}

// CreateChild creates a new child of parent, an instance of base.
func (c *Core) CreateChild(ctx context.Context, parent, base Handle) (Handle, error) {
	return handleResult(c.call(ctx, "createChild", parent, base))
}

// NodeParams describes a node for CreateNode. Unset fields are left to the
// engine.
type NodeParams struct {
	Parent *Handle
	Base   *Handle
	Relid  string
	GUID   string
}

func (p NodeParams) value() Map {
	m := Map{}
	if p.Parent != nil {
		m["parent"] = *p.Parent
	}
	if p.Base != nil {
		m["base"] = *p.Base
	}
	if p.Relid != "" {
		m["relid"] = String(p.Relid)
	}
	if p.GUID != "" {
		m["guid"] = String(p.GUID)
	}
	return m
}

func (c *Core) CreateNode(ctx context.Context, params NodeParams) (Handle, error) {
	if params.Parent == nil && params.Base == nil {
		return Handle{}, fmt.Errorf("create node: %w: parent or base required", ErrIllegalArgument)
	}
	return handleResult(c.call(ctx, "createNode", params.value()))
}

func (c *Core) CopyNode(ctx context.Context, node, parent Handle) (Handle, error) {
	return handleResult(c.call(ctx, "copyNode", node, parent))
}

func (c *Core) MoveNode(ctx context.Context, node, parent Handle) (Handle, error) {
	return handleResult(c.call(ctx, "moveNode", node, parent))
}

func (c *Core) DeleteNode(ctx context.Context, node Handle) error {
	return noResult(c.call(ctx, "deleteNode", node))
}

func (c *Core) GetBase(ctx context.Context, node Handle) (Handle, bool, error) {
	return optionalHandleResult(c.call(ctx, "getBase", node))
}

// GetBaseType returns the closest meta node node derives from.
func (c *Core) GetBaseType(ctx context.Context, node Handle) (Handle, bool, error) {
	return optionalHandleResult(c.call(ctx, "getBaseType", node))
}

// GetFCO returns the first class object of the tree node lives in.
func (c *Core) GetFCO(ctx context.Context, node Handle) (Handle, error) {
	return handleResult(c.call(ctx, "getFCO", node))
}

func (c *Core) GetChildrenPaths(ctx context.Context, node Handle) ([]string, error) {
	return stringsResult(c.call(ctx, "getChildrenPaths", node))
}

func (c *Core) IsMetaNode(ctx context.Context, node Handle) (bool, error) {
	return boolResult(c.call(ctx, "isMetaNode", node))
}

func (c *Core) GetGUID(ctx context.Context, node Handle) (string, error) {
	return stringResult(c.call(ctx, "getGuid", node))
}

func (c *Core) GetHash(ctx context.Context, node Handle) (string, error) {
	return stringResult(c.call(ctx, "getHash", node))
}

// GetAllMetaNodes returns the meta nodes of node's tree keyed by path.
func (c *Core) GetAllMetaNodes(ctx context.Context, node Handle) (map[string]Handle, error) {
	return handleMapResult(c.call(ctx, "getAllMetaNodes", node))
}

// Persisted is the outcome of persisting a tree; hand it to
// Project.MakeCommit.
type Persisted struct {
	RootHash string
	// Objects is passed back to the engine untouched.
	Objects Value
}

// Persist collects the changes made under node's root.
func (c *Core) Persist(ctx context.Context, node Handle) (Persisted, error) {
	m, err := mapResult(c.call(ctx, "persist", node))
	if err != nil {
		return Persisted{}, err
	}
	hash, ok := m["rootHash"].(String)
	if !ok {
		return Persisted{}, unexpected("rootHash string", m["rootHash"])
	}
	objects := m["objects"]
	if objects == nil {
		objects = Map{}
	}
	return Persisted{RootHash: string(hash), Objects: objects}, nil
}

// Check is the answer of a validation operation. A negative answer is a
// result, not an error.
type Check struct {
	OK     bool   `json:"isOk"`
	Reason string `json:"reason"`
}

// CanSetAsMixin reports whether the node at path may become a mixin of
// node.
func (c *Core) CanSetAsMixin(ctx context.Context, node Handle, path string) (Check, error) {
	v, err := c.call(ctx, "canSetAsMixin", node, String(path))
	if err != nil {
		return Check{}, err
	}
	var check Check
	if err := Decode(v, &check); err != nil {
		return Check{}, err
	}
	return check, nil
}
