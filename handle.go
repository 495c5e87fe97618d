// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gmebridge

import "fmt"

// Handle is a by-value reference to a node inside a loaded subtree of the
// engine. RootID identifies the subtree instance and NodePath the node
// within it. A Handle is only meaningful to the session that produced it.
//
// Handles carry no identity: two handles denote the same node iff both
// fields are equal. Compare with Equal (or ==), never by address.
type Handle struct {
	NodePath string `json:"nodePath"`
	RootID   string `json:"rootId"`
}

// Equal reports whether h and o refer to the same node.
func (h Handle) Equal(o Handle) bool {
	return h.NodePath == o.NodePath && h.RootID == o.RootID
}

// IsRoot reports whether h refers to the top of its subtree.
func (h Handle) IsRoot() bool {
	return h.NodePath == ""
}

// Root returns the handle of the subtree root h lives in.
func (h Handle) Root() Handle {
	return Handle{RootID: h.RootID}
}

func (h Handle) String() string {
	return fmt.Sprintf("%s@%s", h.NodePath, h.RootID)
}

// HandleSet holds distinct handles under structural equality.
type HandleSet map[Handle]struct{}

// NewHandleSet returns a set containing hs.
func NewHandleSet(hs ...Handle) HandleSet {
	s := make(HandleSet, len(hs))
	for _, h := range hs {
		s[h] = struct{}{}
	}
	return s
}

// Add inserts h and reports whether it was not already present.
func (s HandleSet) Add(h Handle) bool {
	if _, ok := s[h]; ok {
		return false
	}
	s[h] = struct{}{}
	return true
}

// Has reports whether a handle equal to h is in the set.
func (s HandleSet) Has(h Handle) bool {
	_, ok := s[h]
	return ok
}

func handleFromMap(m map[string]any) (Handle, bool) {
	if len(m) != 2 {
		return Handle{}, false
	}
	p, ok := m["nodePath"].(string)
	if !ok {
		return Handle{}, false
	}
	r, ok := m["rootId"].(string)
	if !ok {
		return Handle{}, false
	}
	return Handle{NodePath: p, RootID: r}, true
}
