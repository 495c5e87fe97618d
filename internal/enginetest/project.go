// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package enginetest

import (
	"sort"

	"github.com/luxfi/gmebridge"
)

// Branch update statuses.
const (
	StatusSynced = "SYNCED"
	StatusForked = "FORKED"
)

var projectConstants = gmebridge.Map{
	"MASTER_BRANCH": gmebridge.String(Master),
	"SYNCED":        gmebridge.String(StatusSynced),
	"FORKED":        gmebridge.String(StatusForked),
	"COMMIT_TYPE":   gmebridge.String("commit"),
}

func commitResult(status, hash string) gmebridge.Map {
	return gmebridge.Map{"status": gmebridge.String(status), "hash": gmebridge.String(hash)}
}

// resolveCommit accepts a branch name or a commit hash.
func (e *Engine) resolveCommit(ref string) (*commit, *engineError) {
	if h, ok := e.branches[ref]; ok {
		ref = h
	}
	c, ok := e.commits[ref]
	if !ok {
		return nil, generic("Commit or branch [%s] does not exist", ref)
	}
	return c, nil
}

func (e *Engine) sortedCommits() []*commit {
	all := make([]*commit, 0, len(e.commits))
	for _, c := range e.commits {
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Time > all[j].Time })
	return all
}

// history walks parents breadth first, newest first.
func (e *Engine) history(starts []*commit, limit int) gmebridge.List {
	seen := map[string]bool{}
	queue := append([]*commit{}, starts...)
	out := gmebridge.List{}
	for len(queue) > 0 && len(out) < limit {
		sort.Slice(queue, func(i, j int) bool { return queue[i].Time > queue[j].Time })
		c := queue[0]
		queue = queue[1:]
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, c.value())
		for _, p := range c.Parents {
			if pc, ok := e.commits[p]; ok && !seen[p] {
				queue = append(queue, pc)
			}
		}
	}
	return out
}

// setBranch moves branch from old to new; new == "" deletes it.
func (e *Engine) setBranch(branch, newHash, oldHash string) gmebridge.Value {
	if cur := e.branches[branch]; cur != oldHash {
		return commitResult(StatusForked, cur)
	}
	if newHash == "" {
		delete(e.branches, branch)
	} else {
		e.branches[branch] = newHash
	}
	return commitResult(StatusSynced, newHash)
}

func (e *Engine) handleProject(name string, a args) (gmebridge.Value, *engineError) {
	switch name {
	case "CONSTANTS":
		return projectConstants, nil
	case "getBranchHash":
		branch, err := a.str(0, "branchName")
		if err != nil {
			return nil, err
		}
		return gmebridge.String(e.branches[branch]), nil
	case "setBranchHash":
		branch, err := a.str(0, "branchName")
		if err != nil {
			return nil, err
		}
		newHash, err := a.str(1, "newHash")
		if err != nil {
			return nil, err
		}
		oldHash, err := a.str(2, "oldHash")
		if err != nil {
			return nil, err
		}
		if newHash != "" {
			if _, ok := e.commits[newHash]; !ok {
				return nil, illegalArgument("Commit [%s] does not exist.", newHash)
			}
		}
		return e.setBranch(branch, newHash, oldHash), nil
	case "getBranches":
		out := gmebridge.Map{}
		for b, h := range e.branches {
			out[b] = gmebridge.String(h)
		}
		return out, nil
	case "createBranch":
		branch, err := a.str(0, "branchName")
		if err != nil {
			return nil, err
		}
		hash, err := a.str(1, "newHash")
		if err != nil {
			return nil, err
		}
		if _, ok := e.branches[branch]; ok {
			return nil, illegalOperation("Branch [%s] already exists.", branch)
		}
		if _, ok := e.commits[hash]; !ok {
			return nil, illegalArgument("Commit [%s] does not exist.", hash)
		}
		return e.setBranch(branch, hash, ""), nil
	case "deleteBranch":
		branch, err := a.str(0, "branchName")
		if err != nil {
			return nil, err
		}
		oldHash, err := a.str(1, "oldHash")
		if err != nil {
			return nil, err
		}
		if _, ok := e.branches[branch]; !ok {
			return nil, illegalOperation("Branch [%s] does not exist.", branch)
		}
		return e.setBranch(branch, "", oldHash), nil
	case "getTags":
		out := gmebridge.Map{}
		for t, h := range e.tags {
			out[t] = gmebridge.String(h)
		}
		return out, nil
	case "createTag":
		tag, err := a.str(0, "tagName")
		if err != nil {
			return nil, err
		}
		hash, err := a.str(1, "commitHash")
		if err != nil {
			return nil, err
		}
		if _, ok := e.tags[tag]; ok {
			return nil, illegalOperation("Tag [%s] already exists.", tag)
		}
		if _, ok := e.commits[hash]; !ok {
			return nil, illegalArgument("Commit [%s] does not exist.", hash)
		}
		e.tags[tag] = hash
		return nil, nil
	case "deleteTag":
		tag, err := a.str(0, "tagName")
		if err != nil {
			return nil, err
		}
		delete(e.tags, tag)
		return nil, nil
	case "getCommitObject":
		ref, err := a.str(0, "branchNameOrCommitHash")
		if err != nil {
			return nil, err
		}
		c, cerr := e.resolveCommit(ref)
		if cerr != nil {
			return nil, cerr
		}
		return c.value(), nil
	case "getRootHash":
		ref, err := a.str(0, "branchNameOrCommitHash")
		if err != nil {
			return nil, err
		}
		c, cerr := e.resolveCommit(ref)
		if cerr != nil {
			return nil, cerr
		}
		return gmebridge.String(c.Root), nil
	case "getCommits":
		limit, err := a.integer(1, "number")
		if err != nil {
			return nil, err
		}
		var before func(*commit) bool
		switch v := a.value(0).(type) {
		case gmebridge.String:
			from, cerr := e.resolveCommit(string(v))
			if cerr != nil {
				return nil, cerr
			}
			before = func(c *commit) bool { return c.Time <= from.Time }
		case gmebridge.Int:
			before = func(c *commit) bool { return c.Time < int64(v) }
		case gmebridge.Float:
			before = func(c *commit) bool { return float64(c.Time) < float64(v) }
		default:
			return nil, illegalArgument("Parameter 'before' is not of type number or string.")
		}
		out := gmebridge.List{}
		for _, c := range e.sortedCommits() {
			if len(out) == limit {
				break
			}
			if before(c) {
				out = append(out, c.value())
			}
		}
		return out, nil
	case "getHistory":
		limit, err := a.integer(1, "number")
		if err != nil {
			return nil, err
		}
		var refs []string
		switch v := a.value(0).(type) {
		case gmebridge.String:
			refs = []string{string(v)}
		case gmebridge.List:
			ss, ok := gmebridge.AsStrings(v)
			if !ok {
				return nil, illegalArgument("Parameter 'start' is not an array of strings.")
			}
			refs = ss
		default:
			return nil, illegalArgument("Parameter 'start' is not of type string or array.")
		}
		starts := make([]*commit, 0, len(refs))
		for _, r := range refs {
			c, cerr := e.resolveCommit(r)
			if cerr != nil {
				return nil, cerr
			}
			starts = append(starts, c)
		}
		return e.history(starts, limit), nil
	case "getCommonAncestorCommit":
		ha, err := a.str(0, "commitA")
		if err != nil {
			return nil, err
		}
		hb, err := a.str(1, "commitB")
		if err != nil {
			return nil, err
		}
		ca, cerr := e.resolveCommit(ha)
		if cerr != nil {
			return nil, cerr
		}
		cb, cerr := e.resolveCommit(hb)
		if cerr != nil {
			return nil, cerr
		}
		ancestors := map[string]bool{}
		for _, v := range e.history([]*commit{ca}, len(e.commits)) {
			id, _ := v.(gmebridge.Map)["_id"].(gmebridge.String)
			ancestors[string(id)] = true
		}
		for _, v := range e.history([]*commit{cb}, len(e.commits)) {
			id, _ := v.(gmebridge.Map)["_id"].(gmebridge.String)
			if ancestors[string(id)] {
				return id, nil
			}
		}
		return nil, generic("Commits [%s] and [%s] have no common ancestor", ha, hb)
	case "getProjectInfo":
		return gmebridge.Map{
			"_id":   gmebridge.String("guest+test"),
			"name":  gmebridge.String("test"),
			"owner": gmebridge.String("guest"),
			"info": gmebridge.Map{
				"kind": gmebridge.String("test"),
			},
		}, nil
	case "getUserId":
		return gmebridge.String("guest"), nil
	case "makeCommit":
		branch, hasBranch, err := a.optStr(0, "branchName")
		if err != nil {
			return nil, err
		}
		parents, err := a.strs(1, "parents")
		if err != nil {
			return nil, err
		}
		rootHash, err := a.str(2, "rootHash")
		if err != nil {
			return nil, err
		}
		if _, ok := a.value(3).(gmebridge.Map); !ok {
			return nil, illegalArgument("Parameter 'coreObjects' is not of type object.")
		}
		msg, err := a.str(4, "msg")
		if err != nil {
			return nil, err
		}
		return e.makeCommit(branch, hasBranch, parents, rootHash, msg)
	}
	return nil, generic("Unexpected request name %s of type [project]", name)
}

func (e *Engine) makeCommit(branch string, hasBranch bool, parents []string, rootHash, msg string) (gmebridge.Value, *engineError) {
	if _, ok := e.objects[rootHash]; !ok {
		return nil, illegalArgument("Root [%s] was not persisted.", rootHash)
	}
	for _, p := range parents {
		if _, ok := e.commits[p]; !ok {
			return nil, illegalArgument("Parent commit [%s] does not exist.", p)
		}
	}
	c := e.addCommit(rootHash, parents, msg)
	if !hasBranch {
		return commitResult("", c.ID), nil
	}
	old := ""
	if len(parents) > 0 {
		old = parents[0]
	}
	res := e.setBranch(branch, c.ID, old)
	if m := res.(gmebridge.Map); m["status"] == gmebridge.String(StatusForked) {
		// The commit exists but the branch stayed where it was.
		return commitResult(StatusForked, c.ID), nil
	}
	return res, nil
}
