// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gmebridge_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/gmebridge"
	"github.com/luxfi/gmebridge/internal/enginetest"
)

func newSession(t *testing.T, opts ...enginetest.Option) (*gmebridge.Session, *enginetest.Engine) {
	t.Helper()
	engine := enginetest.New(opts...)
	sess := gmebridge.NewSession(engine.Channel())
	t.Cleanup(func() { _ = sess.Close(context.Background()) })
	return sess, engine
}

// loadMaster loads the tree at the head of master.
func loadMaster(t *testing.T, sess *gmebridge.Session) *gmebridge.Root {
	t.Helper()
	ctx := context.Background()
	hash, err := sess.Project().GetRootHash(ctx, enginetest.Master)
	require.NoError(t, err)
	root, err := sess.Core().LoadRoot(ctx, hash)
	require.NoError(t, err)
	return root
}

func TestGetBranchHash(t *testing.T) {
	sess, engine := newSession(t)
	hash, err := sess.Project().GetBranchHash(context.Background(), "master")
	require.NoError(t, err)
	assert.Equal(t, engine.BranchHash(enginetest.Master), hash)
	assert.NotEmpty(t, hash)
}

func TestGetAttribute_Undefined(t *testing.T) {
	sess, _ := newSession(t)
	ctx := context.Background()
	root := loadMaster(t, sess)

	v, err := sess.Core().GetAttribute(ctx, root.Node, "does_not_exist")
	require.NoError(t, err)
	assert.Equal(t, gmebridge.Null{}, v)

	v, err = sess.Core().GetAttribute(ctx, root.Node, "name")
	require.NoError(t, err)
	assert.Equal(t, gmebridge.String("ROOT"), v)
}

func TestSetBranchHash_WrongTypes(t *testing.T) {
	sess, _ := newSession(t)
	_, err := sess.Call(context.Background(), gmebridge.Repository, "setBranchHash",
		gmebridge.Int(1), gmebridge.Int(1), gmebridge.Int(1))
	require.ErrorIs(t, err, gmebridge.ErrIllegalArgument)

	var rerr *gmebridge.RemoteError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, gmebridge.KindIllegalArgument, rerr.Kind)
	assert.Equal(t, "setBranchHash", rerr.Command.Name)
	req, ok := rerr.Request.(gmebridge.Map)
	require.True(t, ok)
	assert.Equal(t, gmebridge.String("setBranchHash"), req["name"])
}

func TestHandlesToSameNodeAreEqual(t *testing.T) {
	sess, _ := newSession(t)
	ctx := context.Background()
	root := loadMaster(t, sess)

	a, err := sess.Core().GetFCO(ctx, root.Node)
	require.NoError(t, err)
	b, found, err := sess.Core().LoadByPath(ctx, root.Node, "/1")
	require.NoError(t, err)
	require.True(t, found)

	assert.True(t, sess.Util().Equal(a, b))
	assert.True(t, gmebridge.NewHandleSet(a).Has(b))

	c, _, err := sess.Core().LoadByPath(ctx, root.Node, "/2")
	require.NoError(t, err)
	assert.False(t, sess.Util().Equal(a, c))
}

func TestSingletonsFetchedOnce(t *testing.T) {
	sess, engine := newSession(t)
	ctx := context.Background()

	first, err := sess.Core().Constants(ctx)
	require.NoError(t, err)
	second, err := sess.Core().Constants(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, engine.Count(gmebridge.Graph, "CONSTANTS"))

	_, err = sess.Project().Constants(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, engine.Count(gmebridge.Repository, "CONSTANTS"))

	for i := 0; i < 3; i++ {
		cfg, err := sess.Util().GMEConfig(ctx)
		require.NoError(t, err)
		assert.Contains(t, cfg, "server")
	}
	assert.Equal(t, 1, engine.Count(gmebridge.Utility, "gmeConfig"))
}

func TestRootRelease(t *testing.T) {
	sess, engine := newSession(t)
	ctx := context.Background()

	a := loadMaster(t, sess)
	b := loadMaster(t, sess)
	assert.Equal(t, a.Node, b.Node)
	assert.Equal(t, []string{a.Node.RootID}, sess.LoadedRoots())

	require.NoError(t, a.Release(ctx))
	assert.True(t, a.Released())
	assert.Len(t, engine.LoadedRoots(), 1, "still referenced by b")
	require.NoError(t, a.Release(ctx))

	require.NoError(t, b.Release(ctx))
	assert.Empty(t, engine.LoadedRoots())
	assert.Empty(t, sess.LoadedRoots())
	assert.Equal(t, 1, engine.Count(gmebridge.Utility, "unloadRoot"))
}

func TestCloseReleasesRoots(t *testing.T) {
	engine := enginetest.New()
	sess := gmebridge.NewSession(engine.Channel())
	ctx := context.Background()

	root := loadMaster(t, sess)
	_, err := sess.Core().CreateChild(ctx, root.Node, gmebridge.Handle{NodePath: "/2", RootID: root.Node.RootID})
	require.NoError(t, err)
	saved, err := sess.Util().Save(ctx, root.Node, mustCommit(t, sess), "", "tmp")
	require.NoError(t, err)
	_, err = sess.Core().LoadRoot(ctx, mustRootOf(t, sess, saved.Hash))
	require.NoError(t, err)
	require.Len(t, engine.LoadedRoots(), 2)

	require.NoError(t, sess.Close(ctx))
	assert.Empty(t, engine.LoadedRoots())
	require.NoError(t, sess.Close(ctx))

	_, err = sess.Project().GetBranchHash(ctx, "master")
	assert.ErrorIs(t, err, gmebridge.ErrClosed)
}

func mustCommit(t *testing.T, sess *gmebridge.Session) string {
	t.Helper()
	h, err := sess.Project().GetBranchHash(context.Background(), enginetest.Master)
	require.NoError(t, err)
	return h
}

func mustRootOf(t *testing.T, sess *gmebridge.Session, commit string) string {
	t.Helper()
	h, err := sess.Project().GetRootHash(context.Background(), commit)
	require.NoError(t, err)
	return h
}

func TestEditAndCommit(t *testing.T) {
	sess, engine := newSession(t)
	ctx := context.Background()
	core := sess.Core()

	before := engine.BranchHash(enginetest.Master)
	root := loadMaster(t, sess)
	component := gmebridge.Handle{NodePath: "/2", RootID: root.Node.RootID}

	pump, err := core.CreateChild(ctx, root.Node, component)
	require.NoError(t, err)
	require.NoError(t, core.SetAttribute(ctx, pump, "name", gmebridge.String("Pump")))

	speed, err := core.GetAttribute(ctx, pump, "speed")
	require.NoError(t, err)
	assert.Equal(t, gmebridge.Int(0), speed, "inherited from Component")

	base, found, err := core.GetBase(ctx, pump)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, component, base)

	persisted, err := core.Persist(ctx, root.Node)
	require.NoError(t, err)
	res, err := sess.Project().MakeCommit(ctx, enginetest.Master, []string{before},
		persisted.RootHash, persisted.Objects, "add pump")
	require.NoError(t, err)
	assert.Equal(t, enginetest.StatusSynced, res.Status)
	assert.Equal(t, res.Hash, engine.BranchHash(enginetest.Master))

	commit, err := sess.Project().GetCommitObject(ctx, enginetest.Master)
	require.NoError(t, err)
	assert.Equal(t, res.Hash, commit.ID)
	assert.Equal(t, []string{before}, commit.Parents)
	assert.Equal(t, persisted.RootHash, commit.Root)
	assert.Equal(t, "add pump", commit.Message)

	// Committing again on the old parent forks.
	res, err = sess.Util().Save(ctx, root.Node, before, enginetest.Master, "")
	require.NoError(t, err)
	assert.Equal(t, enginetest.StatusForked, res.Status)
}

func TestTraverse(t *testing.T) {
	sess, _ := newSession(t)
	ctx := context.Background()
	root := loadMaster(t, sess)

	var paths []string
	err := sess.Util().Traverse(ctx, root.Node, func(_ context.Context, h gmebridge.Handle) error {
		paths = append(paths, h.NodePath)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"", "/1", "/2", "/3", "/4", "/5", "/5/1", "/6"}, paths)

	paths = nil
	err = sess.Util().Traverse(ctx, root.Node, func(_ context.Context, h gmebridge.Handle) error {
		paths = append(paths, h.NodePath)
		if h.NodePath == "/5" {
			return gmebridge.SkipChildren
		}
		return nil
	})
	require.NoError(t, err)
	assert.NotContains(t, paths, "/5/1")

	stop := errors.New("stop")
	err = sess.Util().Traverse(ctx, root.Node, func(_ context.Context, h gmebridge.Handle) error {
		if h.NodePath == "/3" {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
}

func TestPointers(t *testing.T) {
	sess, _ := newSession(t)
	ctx := context.Background()
	core := sess.Core()
	root := loadMaster(t, sess)
	sensor := gmebridge.Handle{NodePath: "/6", RootID: root.Node.RootID}

	path, ok, err := core.GetPointerPath(ctx, sensor, "target")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/5", path)

	names, err := core.GetPointerNames(ctx, sensor)
	require.NoError(t, err)
	assert.Equal(t, []string{"target"}, names)

	require.NoError(t, core.ClearPointer(ctx, sensor, "target"))
	_, ok, err = core.GetPointerPath(ctx, sensor, "target")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, core.DelPointer(ctx, sensor, "target"))
	err = core.DelPointer(ctx, sensor, "target")
	assert.ErrorIs(t, err, gmebridge.ErrIllegalOperation)
}

func TestCanSetAsMixin(t *testing.T) {
	sess, _ := newSession(t)
	ctx := context.Background()
	root := loadMaster(t, sess)
	motor := gmebridge.Handle{NodePath: "/5", RootID: root.Node.RootID}

	check, err := sess.Core().CanSetAsMixin(ctx, motor, "/3")
	require.NoError(t, err)
	assert.True(t, check.OK)

	check, err = sess.Core().CanSetAsMixin(ctx, motor, "/2")
	require.NoError(t, err, "a negative answer is not an error")
	assert.False(t, check.OK)
	assert.NotEmpty(t, check.Reason)
}

func TestCreateNode(t *testing.T) {
	sess, engine := newSession(t)
	ctx := context.Background()
	root := loadMaster(t, sess)

	n := engine.Count(gmebridge.Graph, "createNode")
	_, err := sess.Core().CreateNode(ctx, gmebridge.NodeParams{})
	require.ErrorIs(t, err, gmebridge.ErrIllegalArgument)
	assert.Equal(t, n, engine.Count(gmebridge.Graph, "createNode"), "rejected before sending")

	port := gmebridge.Handle{NodePath: "/3", RootID: root.Node.RootID}
	h, err := sess.Core().CreateNode(ctx, gmebridge.NodeParams{Parent: &root.Node, Base: &port, Relid: "p", GUID: "g-1"})
	require.NoError(t, err)
	assert.Equal(t, "/p", h.NodePath)

	guid, err := sess.Core().GetGUID(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, "g-1", guid)

	relid, ok, err := sess.Core().GetRelid(ctx, h)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "p", relid)

	_, ok, err = sess.Core().GetRelid(ctx, root.Node)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMetaNodes(t *testing.T) {
	sess, _ := newSession(t)
	ctx := context.Background()
	root := loadMaster(t, sess)

	all, err := sess.Core().GetAllMetaNodes(ctx, root.Node)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	meta, err := sess.Util().META(ctx, root.Node, "")
	require.NoError(t, err)
	assert.Equal(t, "/2", meta["Component"].NodePath)
	assert.Contains(t, meta, "lib.Signal")

	lib, err := sess.Util().META(ctx, root.Node, "lib")
	require.NoError(t, err)
	assert.Equal(t, map[string]gmebridge.Handle{"Signal": {NodePath: "/4", RootID: root.Node.RootID}}, lib)

	shaft := gmebridge.Handle{NodePath: "/5/1", RootID: root.Node.RootID}
	bt, found, err := sess.Core().GetBaseType(ctx, shaft)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "/3", bt.NodePath)
}

func TestBranchesAndTags(t *testing.T) {
	sess, _ := newSession(t)
	ctx := context.Background()
	p := sess.Project()

	head := mustCommit(t, sess)
	res, err := p.CreateBranch(ctx, "dev", head)
	require.NoError(t, err)
	assert.Equal(t, enginetest.StatusSynced, res.Status)

	_, err = p.CreateBranch(ctx, "dev", head)
	assert.ErrorIs(t, err, gmebridge.ErrIllegalOperation)

	branches, err := p.GetBranches(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"master": head, "dev": head}, branches)

	require.NoError(t, p.CreateTag(ctx, "v1", head))
	tags, err := p.GetTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"v1": head}, tags)
	require.NoError(t, p.DeleteTag(ctx, "v1"))

	res, err = p.DeleteBranch(ctx, "dev", head)
	require.NoError(t, err)
	assert.Equal(t, enginetest.StatusSynced, res.Status)
	branches, err = p.GetBranches(ctx)
	require.NoError(t, err)
	assert.NotContains(t, branches, "dev")
}

func TestHistory(t *testing.T) {
	sess, _ := newSession(t)
	ctx := context.Background()
	first := mustCommit(t, sess)
	root := loadMaster(t, sess)

	require.NoError(t, sess.Core().SetAttribute(ctx, root.Node, "name", gmebridge.String("v2")))
	second, err := sess.Util().Save(ctx, root.Node, first, enginetest.Master, "second")
	require.NoError(t, err)
	assert.Equal(t, enginetest.StatusSynced, second.Status)

	history, err := sess.Project().GetHistory(ctx, gmebridge.String(enginetest.Master), 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.Hash, history[0].ID)
	assert.Equal(t, first, history[1].ID)
	assert.Greater(t, history[0].Time, history[1].Time)

	commits, err := sess.Project().GetCommits(ctx, gmebridge.String(second.Hash), 1)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, second.Hash, commits[0].ID)

	ancestor, err := sess.Project().GetCommonAncestorCommit(ctx, first, second.Hash)
	require.NoError(t, err)
	assert.Equal(t, first, ancestor)
}

func TestRemoteErrorKinds(t *testing.T) {
	sess, engine := newSession(t)
	ctx := context.Background()

	engine.FailNext(gmebridge.Graph, "CONSTANTS", gmebridge.TypeInternal, "assertion failed")
	_, err := sess.Core().Constants(ctx)
	require.ErrorIs(t, err, gmebridge.ErrInternal)

	// The failed fetch was not cached.
	_, err = sess.Core().Constants(ctx)
	require.NoError(t, err)

	_, err = sess.Call(ctx, gmebridge.Graph, "noSuchOperation")
	require.ErrorIs(t, err, gmebridge.ErrRemote)
	assert.True(t, gmebridge.IsKind(err, gmebridge.KindGeneric))

	_, err = sess.Plugin().GetCurrentConfig(ctx)
	assert.ErrorIs(t, err, gmebridge.ErrRemote, "plugin facade needs a plugin run")
}

func TestProjectInfo(t *testing.T) {
	sess, _ := newSession(t)
	ctx := context.Background()

	info, err := sess.Project().GetProjectInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, gmebridge.String("guest+test"), info["_id"])

	user, err := sess.Project().GetUserID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "guest", user)
}
