// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gmebridge

import (
	"context"
)

// Project is the repository facade: branches, tags and commits of the
// project the engine serves.
type Project struct {
	s *Session
}

// CommitObject is a commit as stored by the engine.
type CommitObject struct {
	ID      string   `json:"_id"`
	Root    string   `json:"root"`
	Parents []string `json:"parents"`
	Updater []string `json:"updater"`
	Time    float64  `json:"time"`
	Message string   `json:"message"`
	Type    string   `json:"type"`
}

// CommitResult reports the outcome of a commit or a branch update.
type CommitResult struct {
	Status string `json:"status"`
	Hash   string `json:"hash"`
}

func (p *Project) call(ctx context.Context, name string, args ...Value) (Value, error) {
	return p.s.Call(ctx, Repository, name, args...)
}

func optionalString(s string) Value {
	if s == "" {
		return Null{}
	}
	return String(s)
}

func decodeResult[T any](v Value, err error) (T, error) {
	var out T
	if err != nil {
		return out, err
	}
	if err := Decode(v, &out); err != nil {
		return out, err
	}
	return out, nil
}

// Constants returns the storage constants. Fetched once per session.
func (p *Project) Constants(ctx context.Context) (Map, error) {
	return mapResult(p.s.cached(ctx, KeyProjectConstants, Repository, "CONSTANTS"))
}

// GetBranchHash returns the commit hash at the head of branch.
func (p *Project) GetBranchHash(ctx context.Context, branch string) (string, error) {
	return stringResult(p.call(ctx, "getBranchHash", String(branch)))
}

// SetBranchHash moves branch from oldHash to newHash.
func (p *Project) SetBranchHash(ctx context.Context, branch, newHash, oldHash string) (CommitResult, error) {
	return decodeResult[CommitResult](p.call(ctx, "setBranchHash", String(branch), String(newHash), String(oldHash)))
}

// GetBranches returns branch names mapped to their head commits.
func (p *Project) GetBranches(ctx context.Context) (map[string]string, error) {
	return decodeResult[map[string]string](p.call(ctx, "getBranches"))
}

func (p *Project) CreateBranch(ctx context.Context, branch, hash string) (CommitResult, error) {
	return decodeResult[CommitResult](p.call(ctx, "createBranch", String(branch), String(hash)))
}

func (p *Project) DeleteBranch(ctx context.Context, branch, oldHash string) (CommitResult, error) {
	return decodeResult[CommitResult](p.call(ctx, "deleteBranch", String(branch), String(oldHash)))
}

// GetTags returns tag names mapped to commits.
func (p *Project) GetTags(ctx context.Context) (map[string]string, error) {
	return decodeResult[map[string]string](p.call(ctx, "getTags"))
}

func (p *Project) CreateTag(ctx context.Context, tag, commitHash string) error {
	return noResult(p.call(ctx, "createTag", String(tag), String(commitHash)))
}

func (p *Project) DeleteTag(ctx context.Context, tag string) error {
	return noResult(p.call(ctx, "deleteTag", String(tag)))
}

// GetCommitObject returns the commit at a branch head or commit hash.
func (p *Project) GetCommitObject(ctx context.Context, branchOrCommit string) (CommitObject, error) {
	return decodeResult[CommitObject](p.call(ctx, "getCommitObject", String(branchOrCommit)))
}

// GetCommits returns up to number commits before a timestamp (Int or
// Float) or a commit hash (String), newest first.
func (p *Project) GetCommits(ctx context.Context, before Value, number int) ([]CommitObject, error) {
	return decodeResult[[]CommitObject](p.call(ctx, "getCommits", before, Int(number)))
}

// GetHistory walks the ancestry of a branch, commit hash or list of those.
func (p *Project) GetHistory(ctx context.Context, start Value, number int) ([]CommitObject, error) {
	return decodeResult[[]CommitObject](p.call(ctx, "getHistory", start, Int(number)))
}

func (p *Project) GetCommonAncestorCommit(ctx context.Context, commitA, commitB string) (string, error) {
	return stringResult(p.call(ctx, "getCommonAncestorCommit", String(commitA), String(commitB)))
}

// GetRootHash returns the root hash a branch head or commit points to.
func (p *Project) GetRootHash(ctx context.Context, branchOrCommit string) (string, error) {
	return stringResult(p.call(ctx, "getRootHash", String(branchOrCommit)))
}

func (p *Project) GetProjectInfo(ctx context.Context) (Map, error) {
	return mapResult(p.call(ctx, "getProjectInfo"))
}

func (p *Project) GetUserID(ctx context.Context) (string, error) {
	return stringResult(p.call(ctx, "getUserId"))
}

// MakeCommit stores a commit of rootHash with the persisted objects. An
// empty branch only inserts the commit.
func (p *Project) MakeCommit(ctx context.Context, branch string, parents []string, rootHash string, objects Value, msg string) (CommitResult, error) {
	ps := make(List, len(parents))
	for i, h := range parents {
		ps[i] = String(h)
	}
	if objects == nil {
		objects = Map{}
	}
	return decodeResult[CommitResult](p.call(ctx, "makeCommit",
		optionalString(branch), ps, String(rootHash), objects, String(msg)))
}
