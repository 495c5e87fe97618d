// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package enginetest

import (
	"strings"

	"github.com/luxfi/gmebridge"
)

var coreConstants = gmebridge.Map{
	"NULLPTR_NAME":      gmebridge.String("_null_pointer"),
	"NULLPTR_RELID":     gmebridge.String("_nullptr"),
	"ATTRIBUTES":        gmebridge.String("atr"),
	"REGISTRY":          gmebridge.String("reg"),
	"POINTER_BASE":      gmebridge.String("base"),
	"PATH_SEP":          gmebridge.String("/"),
	"MAXIMUM_NUMBER":    gmebridge.Int(9007199254740991),
	"ALL_SETS_PROPERTY": gmebridge.String("_sets"),
}

// lookup resolves a handle against the loaded trees.
func (e *Engine) lookup(h gmebridge.Handle) (*node, *engineError) {
	root, ok := e.roots[h.RootID]
	if !ok {
		return nil, generic("No root loaded at rootId: [%s]!", h.RootID)
	}
	n := root.lookup(h.NodePath)
	if n == nil {
		return nil, illegalArgument("Parameter 'node' is not a node.")
	}
	return n, nil
}

func (e *Engine) nodeArg(a args, i int, name string) (*node, gmebridge.Handle, *engineError) {
	h, err := a.handle(i, name)
	if err != nil {
		return nil, h, err
	}
	n, err := e.lookup(h)
	return n, h, err
}

func wrap(n *node, like gmebridge.Handle) gmebridge.Handle {
	return gmebridge.Handle{NodePath: n.path(), RootID: like.RootID}
}

func optionalWrap(n *node, like gmebridge.Handle) gmebridge.Value {
	if n == nil {
		return gmebridge.Null{}
	}
	return wrap(n, like)
}

func stringList(ss []string) gmebridge.List {
	out := make(gmebridge.List, len(ss))
	for i, s := range ss {
		out[i] = gmebridge.String(s)
	}
	return out
}

func (e *Engine) handleCore(name string, a args) (gmebridge.Value, *engineError) {
	switch name {
	case "CONSTANTS":
		return coreConstants, nil
	case "loadRoot":
		hash, err := a.str(0, "hash")
		if err != nil {
			return nil, err
		}
		if _, ok := e.roots[hash]; !ok {
			stored, ok := e.objects[hash]
			if !ok {
				return nil, generic("object does not exist %s", hash)
			}
			e.roots[hash] = stored.clone(false)
		}
		return gmebridge.Handle{RootID: hash}, nil
	case "loadByPath":
		n, h, err := e.nodeArg(a, 0, "node")
		if err != nil {
			return nil, err
		}
		path, err := a.str(1, "relativePath")
		if err != nil {
			return nil, err
		}
		return optionalWrap(n.lookup(path), h), nil
	case "loadChild":
		n, h, err := e.nodeArg(a, 0, "parent")
		if err != nil {
			return nil, err
		}
		relid, err := a.str(1, "relativeId")
		if err != nil {
			return nil, err
		}
		return optionalWrap(n.child(relid), h), nil
	case "loadChildren":
		n, h, err := e.nodeArg(a, 0, "node")
		if err != nil {
			return nil, err
		}
		out := make(gmebridge.List, len(n.children))
		for i, c := range n.children {
			out[i] = wrap(c, h)
		}
		return out, nil
	case "getPath":
		n, _, err := e.nodeArg(a, 0, "node")
		if err != nil {
			return nil, err
		}
		return gmebridge.String(n.path()), nil
	case "getRelid":
		n, _, err := e.nodeArg(a, 0, "node")
		if err != nil {
			return nil, err
		}
		if n.parent == nil {
			return gmebridge.Null{}, nil
		}
		return gmebridge.String(n.relid), nil
	case "getParent":
		n, h, err := e.nodeArg(a, 0, "node")
		if err != nil {
			return nil, err
		}
		return optionalWrap(n.parent, h), nil
	case "getAttribute", "getRegistry":
		n, _, err := e.nodeArg(a, 0, "node")
		if err != nil {
			return nil, err
		}
		key, err := a.str(1, "name")
		if err != nil {
			return nil, err
		}
		v, ok := n.inherited(func(x *node) (gmebridge.Value, bool) {
			if name == "getAttribute" {
				v, ok := x.attrs[key]
				return v, ok
			}
			v, ok := x.registry[key]
			return v, ok
		})
		if !ok {
			return gmebridge.Null{}, nil
		}
		return v, nil
	case "setAttribute", "setRegistry":
		n, _, err := e.nodeArg(a, 0, "node")
		if err != nil {
			return nil, err
		}
		key, err := a.str(1, "name")
		if err != nil {
			return nil, err
		}
		if name == "setAttribute" {
			n.attrs[key] = a.value(2)
		} else {
			n.registry[key] = a.value(2)
		}
		return nil, nil
	case "delAttribute", "delRegistry":
		n, _, err := e.nodeArg(a, 0, "node")
		if err != nil {
			return nil, err
		}
		key, err := a.str(1, "name")
		if err != nil {
			return nil, err
		}
		if name == "delAttribute" {
			delete(n.attrs, key)
		} else {
			delete(n.registry, key)
		}
		return nil, nil
	case "getAttributeNames":
		n, _, err := e.nodeArg(a, 0, "node")
		if err != nil {
			return nil, err
		}
		return stringList(n.inheritedNames(func(x *node) map[string]gmebridge.Value { return x.attrs })), nil
	case "getPointerNames":
		n, _, err := e.nodeArg(a, 0, "node")
		if err != nil {
			return nil, err
		}
		return stringList(n.inheritedNames(func(x *node) map[string]gmebridge.Value { return x.pointers })), nil
	case "getPointerPath":
		n, _, err := e.nodeArg(a, 0, "node")
		if err != nil {
			return nil, err
		}
		key, err := a.str(1, "name")
		if err != nil {
			return nil, err
		}
		v, ok := n.inherited(func(x *node) (gmebridge.Value, bool) {
			v, ok := x.pointers[key]
			return v, ok
		})
		if !ok {
			return gmebridge.Null{}, nil
		}
		return v, nil
	case "setPointer":
		n, _, err := e.nodeArg(a, 0, "node")
		if err != nil {
			return nil, err
		}
		key, err := a.str(1, "name")
		if err != nil {
			return nil, err
		}
		if gmebridge.IsNull(a.value(2)) {
			n.pointers[key] = gmebridge.Null{}
			return nil, nil
		}
		target, _, err := e.nodeArg(a, 2, "target")
		if err != nil {
			return nil, err
		}
		if target.root() != n.root() {
			return nil, illegalOperation("Pointer target must be in the same tree.")
		}
		n.pointers[key] = gmebridge.String(target.path())
		return nil, nil
	case "delPointer":
		n, _, err := e.nodeArg(a, 0, "node")
		if err != nil {
			return nil, err
		}
		key, err := a.str(1, "name")
		if err != nil {
			return nil, err
		}
		if _, ok := n.pointers[key]; !ok {
			return nil, illegalOperation("Node does not have own pointer '%s'.", key)
		}
		delete(n.pointers, key)
		return nil, nil
	case "createChild":
		parent, h, err := e.nodeArg(a, 0, "parent")
		if err != nil {
			return nil, err
		}
		base, _, err := e.nodeArg(a, 1, "base")
		if err != nil {
			return nil, err
		}
		return wrap(createNode(parent, base, "", ""), h), nil
	case "createNode":
		return e.createNode(a)
	case "copyNode", "moveNode":
		n, _, err := e.nodeArg(a, 0, "node")
		if err != nil {
			return nil, err
		}
		parent, h, err := e.nodeArg(a, 1, "parent")
		if err != nil {
			return nil, err
		}
		if n.parent == nil {
			return nil, illegalOperation("Root node cannot be copied or moved.")
		}
		for p := parent; p != nil; p = p.parent {
			if p == n {
				return nil, illegalOperation("Node cannot be placed under itself.")
			}
		}
		if name == "copyNode" {
			c := n.clone(true)
			c.relid = parent.freeRelid()
			parent.addChild(c)
			return wrap(c, h), nil
		}
		n.parent.removeChild(n)
		if parent.child(n.relid) != nil {
			n.relid = parent.freeRelid()
		}
		parent.addChild(n)
		return wrap(n, h), nil
	case "deleteNode":
		n, _, err := e.nodeArg(a, 0, "node")
		if err != nil {
			return nil, err
		}
		if n.parent == nil {
			return nil, illegalOperation("Not allowed to delete root node.")
		}
		n.parent.removeChild(n)
		return nil, nil
	case "getBase":
		n, h, err := e.nodeArg(a, 0, "node")
		if err != nil {
			return nil, err
		}
		return optionalWrap(n.baseNode(), h), nil
	case "getBaseType":
		n, h, err := e.nodeArg(a, 0, "node")
		if err != nil {
			return nil, err
		}
		for cur, depth := n, 0; cur != nil && depth < 64; cur, depth = cur.baseNode(), depth+1 {
			if cur.meta {
				return wrap(cur, h), nil
			}
		}
		return gmebridge.Null{}, nil
	case "getFCO":
		n, h, err := e.nodeArg(a, 0, "node")
		if err != nil {
			return nil, err
		}
		var fco *node
		n.root().walk(func(x *node) {
			if fco == nil && x.meta && !x.hasBase {
				fco = x
			}
		})
		if fco == nil {
			return nil, illegalOperation("Project has no FCO.")
		}
		return wrap(fco, h), nil
	case "getChildrenPaths":
		n, _, err := e.nodeArg(a, 0, "node")
		if err != nil {
			return nil, err
		}
		paths := make([]string, len(n.children))
		for i, c := range n.children {
			paths[i] = c.path()
		}
		return stringList(paths), nil
	case "isMetaNode":
		n, _, err := e.nodeArg(a, 0, "node")
		if err != nil {
			return nil, err
		}
		return gmebridge.Bool(n.meta), nil
	case "getGuid":
		n, _, err := e.nodeArg(a, 0, "node")
		if err != nil {
			return nil, err
		}
		return gmebridge.String(n.guid), nil
	case "getHash":
		n, _, err := e.nodeArg(a, 0, "node")
		if err != nil {
			return nil, err
		}
		return gmebridge.String(n.hash()), nil
	case "getAllMetaNodes":
		n, h, err := e.nodeArg(a, 0, "node")
		if err != nil {
			return nil, err
		}
		out := gmebridge.Map{}
		n.root().walk(func(x *node) {
			if x.meta {
				out[x.path()] = wrap(x, h)
			}
		})
		return out, nil
	case "persist":
		n, _, err := e.nodeArg(a, 0, "node")
		if err != nil {
			return nil, err
		}
		hash := e.persist(n.root())
		return gmebridge.Map{
			"rootHash": gmebridge.String(hash),
			"objects":  gmebridge.Map{hash: gmebridge.Map{"_id": gmebridge.String(hash)}},
		}, nil
	case "canSetAsMixin":
		n, _, err := e.nodeArg(a, 0, "node")
		if err != nil {
			return nil, err
		}
		path, err := a.str(1, "mixinPath")
		if err != nil {
			return nil, err
		}
		ok, reason := canSetAsMixin(n, path)
		return gmebridge.Map{"isOk": gmebridge.Bool(ok), "reason": gmebridge.String(reason)}, nil
	}
	return nil, generic("Unexpected request name %s of type [core]", name)
}

func createNode(parent, base *node, relid, guid string) *node {
	if relid == "" {
		relid = parent.freeRelid()
	}
	c := newNode(relid)
	if guid != "" {
		c.guid = guid
	}
	if base != nil {
		c.base, c.hasBase = base.path(), true
	}
	parent.addChild(c)
	return c
}

func (e *Engine) createNode(a args) (gmebridge.Value, *engineError) {
	params, ok := a.value(0).(gmebridge.Map)
	if !ok {
		return nil, illegalArgument("Parameter 'parameters' is not of type object.")
	}
	ph, ok := params["parent"].(gmebridge.Handle)
	if !ok {
		return nil, illegalOperation("Creating detached nodes is not supported.")
	}
	parent, err := e.lookup(ph)
	if err != nil {
		return nil, err
	}
	var base *node
	if bh, ok := params["base"].(gmebridge.Handle); ok {
		if base, err = e.lookup(bh); err != nil {
			return nil, err
		}
	}
	var relid, guid string
	if s, ok := params["relid"].(gmebridge.String); ok {
		relid = string(s)
		if parent.child(relid) != nil {
			return nil, illegalOperation("Given relid already used in parent.")
		}
	}
	if s, ok := params["guid"].(gmebridge.String); ok {
		guid = string(s)
	}
	return wrap(createNode(parent, base, relid, guid), ph), nil
}

func canSetAsMixin(n *node, path string) (bool, string) {
	if n.path() == path {
		return false, "Node cannot be mixin of itself!"
	}
	target := n.root().lookup(path)
	if target == nil || !target.meta {
		return false, "Given path is not a META node!"
	}
	if n.hasBase && n.base == path {
		return false, "Base of node cannot be its mixin as well!"
	}
	return true, ""
}

// persist stores a snapshot of root and returns its hash.
func (e *Engine) persist(root *node) string {
	hash := root.hash()
	if _, ok := e.objects[hash]; !ok {
		e.objects[hash] = root.clone(false)
	}
	return hash
}

// metaByName returns the meta nodes keyed by name relative to namespace.
func metaByName(root *node, namespace string) map[string]*node {
	out := map[string]*node{}
	root.walk(func(x *node) {
		if !x.meta {
			return
		}
		name, _ := x.attrs["name"].(gmebridge.String)
		full := string(name)
		if namespace != "" {
			prefix := namespace + "."
			if !strings.HasPrefix(full, prefix) {
				return
			}
			full = strings.TrimPrefix(full, prefix)
		}
		out[full] = x
	})
	return out
}
