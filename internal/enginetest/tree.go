// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package enginetest

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/luxfi/gmebridge"
)

// node is one object of a stored or loaded tree. Bases and pointer targets
// are kept as paths so a tree can be cloned without remapping.
type node struct {
	relid    string
	guid     string
	meta     bool
	base     string
	hasBase  bool
	attrs    map[string]gmebridge.Value
	registry map[string]gmebridge.Value
	// pointers maps a name to the target path, or Null when the pointer
	// is defined without a target.
	pointers map[string]gmebridge.Value
	parent   *node
	children []*node
}

func newNode(relid string) *node {
	return &node{
		relid:    relid,
		guid:     uuid.NewString(),
		attrs:    map[string]gmebridge.Value{},
		registry: map[string]gmebridge.Value{},
		pointers: map[string]gmebridge.Value{},
	}
}

func (n *node) path() string {
	if n.parent == nil {
		return ""
	}
	return n.parent.path() + "/" + n.relid
}

func (n *node) root() *node {
	for n.parent != nil {
		n = n.parent
	}
	return n
}

func (n *node) child(relid string) *node {
	for _, c := range n.children {
		if c.relid == relid {
			return c
		}
	}
	return nil
}

func (n *node) addChild(c *node) {
	c.parent = n
	n.children = append(n.children, c)
}

func (n *node) removeChild(c *node) {
	for i, x := range n.children {
		if x == c {
			n.children = append(n.children[:i], n.children[i+1:]...)
			c.parent = nil
			return
		}
	}
}

// freeRelid returns the smallest numeric relid not used by a child.
func (n *node) freeRelid() string {
	for i := 1; ; i++ {
		id := strconv.Itoa(i)
		if n.child(id) == nil {
			return id
		}
	}
}

// lookup resolves path relative to n. Nil when nothing lives there.
func (n *node) lookup(path string) *node {
	cur := n
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		if cur = cur.child(seg); cur == nil {
			return nil
		}
	}
	return cur
}

func (n *node) baseNode() *node {
	if !n.hasBase {
		return nil
	}
	return n.root().lookup(n.base)
}

// inherited walks n and its bases until get finds a value.
func (n *node) inherited(get func(*node) (gmebridge.Value, bool)) (gmebridge.Value, bool) {
	for cur, depth := n, 0; cur != nil && depth < 64; cur, depth = cur.baseNode(), depth+1 {
		if v, ok := get(cur); ok {
			return v, true
		}
	}
	return nil, false
}

func (n *node) inheritedNames(names func(*node) map[string]gmebridge.Value) []string {
	seen := map[string]bool{}
	for cur, depth := n, 0; cur != nil && depth < 64; cur, depth = cur.baseNode(), depth+1 {
		for k := range names(cur) {
			seen[k] = true
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// clone deep copies the subtree. Guids are kept unless fresh is set.
func (n *node) clone(fresh bool) *node {
	c := &node{
		relid:    n.relid,
		guid:     n.guid,
		meta:     n.meta,
		base:     n.base,
		hasBase:  n.hasBase,
		attrs:    copyValues(n.attrs),
		registry: copyValues(n.registry),
		pointers: copyValues(n.pointers),
	}
	if fresh {
		c.guid = uuid.NewString()
	}
	for _, ch := range n.children {
		c.addChild(ch.clone(fresh))
	}
	return c
}

func copyValues(m map[string]gmebridge.Value) map[string]gmebridge.Value {
	out := make(map[string]gmebridge.Value, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (n *node) walk(fn func(*node)) {
	fn(n)
	for _, c := range n.children {
		c.walk(fn)
	}
}

// hash is a content hash of the subtree.
func (n *node) hash() string {
	h := sha1.New()
	n.walk(func(x *node) {
		fmt.Fprintf(h, "%s|%s|%t|%s|%t\n", x.path(), x.guid, x.meta, x.base, x.hasBase)
		for _, m := range []map[string]gmebridge.Value{x.attrs, x.registry, x.pointers} {
			keys := make([]string, 0, len(m))
			for k := range m {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(h, "%s=%v;", k, gmebridge.Native(m[k]))
			}
			fmt.Fprintln(h)
		}
	})
	return "#" + hex.EncodeToString(h.Sum(nil))
}

// seedTree builds the model every fake project starts with:
//
//	""        ROOT
//	/1        FCO        meta
//	/2        Component  meta, base /1
//	/3        Port       meta, base /1
//	/4        lib.Signal meta, base /1
//	/5        Motor      base /2
//	/5/1      Shaft      base /3
//	/6        Sensor     base /2
func seedTree() *node {
	root := newNode("")
	root.attrs["name"] = gmebridge.String("ROOT")

	add := func(parent *node, relid, name string, meta bool, base string) *node {
		n := newNode(relid)
		n.meta = meta
		n.attrs["name"] = gmebridge.String(name)
		if base != "" {
			n.base, n.hasBase = base, true
		}
		parent.addChild(n)
		return n
	}
	add(root, "1", "FCO", true, "")
	comp := add(root, "2", "Component", true, "/1")
	comp.attrs["speed"] = gmebridge.Int(0)
	add(root, "3", "Port", true, "/1")
	add(root, "4", "lib.Signal", true, "/1")
	motor := add(root, "5", "Motor", false, "/2")
	motor.attrs["speed"] = gmebridge.Int(1500)
	motor.registry["position"] = gmebridge.Map{"x": gmebridge.Int(100), "y": gmebridge.Int(40)}
	add(motor, "1", "Shaft", false, "/3")
	sensor := add(root, "6", "Sensor", false, "/2")
	sensor.pointers["target"] = gmebridge.String("/5")
	return root
}
