// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gmebridge

import (
	"context"
	"errors"
)

// SkipChildren may be returned by a Visitor to skip the children of the
// visited node.
var SkipChildren = errors.New("skip children")

// Visitor is called for each node of a traversal.
type Visitor func(ctx context.Context, node Handle) error

// Util is the utility facade.
type Util struct {
	s *Session
}

func (u *Util) call(ctx context.Context, name string, args ...Value) (Value, error) {
	return u.s.Call(ctx, Utility, name, args...)
}

// GMEConfig returns the engine configuration. Fetched once per session.
func (u *Util) GMEConfig(ctx context.Context) (Map, error) {
	return mapResult(u.s.cached(ctx, KeyGMEConfig, Utility, "gmeConfig"))
}

// Save persists the tree of root and commits it on top of commitHash. With
// an empty branch the commit is only inserted.
func (u *Util) Save(ctx context.Context, root Handle, commitHash, branch, msg string) (CommitResult, error) {
	if msg == "" {
		msg = "Save initiated from go bridge."
	}
	return decodeResult[CommitResult](u.call(ctx, "save",
		root, String(commitHash), optionalString(branch), String(msg)))
}

// UnloadRoot drops the subtree node belongs to, whatever node in it is
// passed. Roots obtained from Core.LoadRoot should rather be released with
// Root.Release.
func (u *Util) UnloadRoot(ctx context.Context, node Handle) error {
	if _, err := u.call(ctx, "unloadRoot", node); err != nil {
		return err
	}
	u.s.forgetRoot(node.RootID)
	return nil
}

// META returns the meta nodes of node's tree keyed by name. Names are
// qualified relative to namespace; an empty namespace uses the engine's.
func (u *Util) META(ctx context.Context, node Handle, namespace string) (map[string]Handle, error) {
	return handleMapResult(u.call(ctx, "META", node, optionalString(namespace)))
}

// Equal reports whether two handles denote the same node. No round trip.
func (u *Util) Equal(a, b Handle) bool {
	return a.Equal(b)
}

// Traverse visits node and its descendants depth first, parents before
// children, one dispatch at a time. An error from visit stops the walk
// and is returned, except SkipChildren.
func (u *Util) Traverse(ctx context.Context, node Handle, visit Visitor) error {
	if err := visit(ctx, node); err != nil {
		if errors.Is(err, SkipChildren) {
			return nil
		}
		return err
	}
	children, err := u.s.core.LoadChildren(ctx, node)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := u.Traverse(ctx, child, visit); err != nil {
			return err
		}
	}
	return nil
}
