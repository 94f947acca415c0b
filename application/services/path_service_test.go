package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"loom-backend/domain/core/aggregates"
	"loom-backend/domain/core/valueobjects"
	"loom-backend/infrastructure/persistence/memory"
	pkgerrors "loom-backend/pkg/errors"
)

func newPathFixture(t *testing.T) (*graphFixture, *PathService, *memory.PathStateRepository) {
	t.Helper()
	g := newGraphFixture(t)
	pathRepo := memory.NewPathRepository()
	states := memory.NewPathStateRepository()
	svc := NewPathService(pathRepo, states, g.nodes, zap.NewNop())
	return g, svc, states
}

func TestCreatePathSeedsRootAndCursor(t *testing.T) {
	g, svc, _ := newPathFixture(t)
	treeID := valueobjects.NewTreeID()
	root := g.createHumanNode(t, treeID, "root", nil)
	agentID := valueobjects.NewAgentID()

	path, err := svc.CreatePath(context.Background(), treeID, agentID, root.ID(), aggregates.ModeDialogue)
	require.NoError(t, err)

	assert.Equal(t, 1, path.Length())
	assert.True(t, path.RootNodeID().Equals(root.ID()))

	state, err := svc.GetState(context.Background(), path.ID())
	require.NoError(t, err)
	assert.True(t, state.ActiveNodeID.Equals(root.ID()))
	assert.True(t, state.PerMode[aggregates.ModeDialogue].Equals(root.ID()))
}

func TestAppendNodeRejectsForeignTree(t *testing.T) {
	g, svc, _ := newPathFixture(t)
	treeID := valueobjects.NewTreeID()
	root := g.createHumanNode(t, treeID, "root", nil)
	foreign := g.createHumanNode(t, valueobjects.NewTreeID(), "elsewhere", nil)

	path, err := svc.CreatePath(context.Background(), treeID, valueobjects.NewAgentID(), root.ID(), aggregates.ModeDialogue)
	require.NoError(t, err)

	err = svc.AppendNode(context.Background(), path.ID(), foreign.ID())
	assert.True(t, pkgerrors.IsValidation(err))

	reloaded, err := svc.GetPath(context.Background(), path.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Length())
}

func TestAppendThenTruncateRoundTrip(t *testing.T) {
	g, svc, _ := newPathFixture(t)
	treeID := valueobjects.NewTreeID()
	root := g.createHumanNode(t, treeID, "root", nil)
	a := g.createHumanNode(t, treeID, "a", nil)
	b := g.createHumanNode(t, treeID, "b", nil)

	path, err := svc.CreatePath(context.Background(), treeID, valueobjects.NewAgentID(), root.ID(), aggregates.ModeDialogue)
	require.NoError(t, err)

	require.NoError(t, svc.AppendNode(context.Background(), path.ID(), a.ID()))
	require.NoError(t, svc.AppendNode(context.Background(), path.ID(), b.ID()))
	require.NoError(t, svc.Truncate(context.Background(), path.ID(), 2))

	reloaded, err := svc.GetPath(context.Background(), path.ID())
	require.NoError(t, err)
	require.Equal(t, 2, reloaded.Length())
	assert.True(t, reloaded.LastNodeID().Equals(a.ID()))

	err = svc.Truncate(context.Background(), path.ID(), 0)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestReplaceSuffixSwitchesBranch(t *testing.T) {
	g, svc, _ := newPathFixture(t)
	treeID := valueobjects.NewTreeID()
	root := g.createHumanNode(t, treeID, "root", nil)
	old := g.createHumanNode(t, treeID, "old branch", nil)
	newA := g.createHumanNode(t, treeID, "new branch head", nil)
	newB := g.createHumanNode(t, treeID, "new branch tail", nil)

	path, err := svc.CreatePath(context.Background(), treeID, valueobjects.NewAgentID(), root.ID(), aggregates.ModeDialogue)
	require.NoError(t, err)
	require.NoError(t, svc.AppendNode(context.Background(), path.ID(), old.ID()))

	require.NoError(t, svc.ReplaceSuffix(context.Background(), path.ID(), 1,
		[]valueobjects.NodeID{newA.ID(), newB.ID()}))

	reloaded, err := svc.GetPath(context.Background(), path.ID())
	require.NoError(t, err)
	entries := reloaded.Entries()
	require.Len(t, entries, 3)
	for i, entry := range entries {
		assert.Equal(t, i, entry.Position)
	}
	assert.True(t, entries[1].NodeID.Equals(newA.ID()))
	assert.True(t, entries[2].NodeID.Equals(newB.ID()))
}

func TestReplaceSuffixValidatesEveryNodeBeforeWriting(t *testing.T) {
	g, svc, _ := newPathFixture(t)
	treeID := valueobjects.NewTreeID()
	root := g.createHumanNode(t, treeID, "root", nil)
	old := g.createHumanNode(t, treeID, "old", nil)
	foreign := g.createHumanNode(t, valueobjects.NewTreeID(), "elsewhere", nil)

	path, err := svc.CreatePath(context.Background(), treeID, valueobjects.NewAgentID(), root.ID(), aggregates.ModeDialogue)
	require.NoError(t, err)
	require.NoError(t, svc.AppendNode(context.Background(), path.ID(), old.ID()))

	err = svc.ReplaceSuffix(context.Background(), path.ID(), 1,
		[]valueobjects.NodeID{foreign.ID()})
	assert.True(t, pkgerrors.IsValidation(err))

	reloaded, err := svc.GetPath(context.Background(), path.ID())
	require.NoError(t, err)
	require.Equal(t, 2, reloaded.Length())
	assert.True(t, reloaded.LastNodeID().Equals(old.ID()))
}

func TestSelectionsPersistAcrossReload(t *testing.T) {
	g, svc, _ := newPathFixture(t)
	treeID := valueobjects.NewTreeID()
	root := g.createHumanNode(t, treeID, "root", nil)
	target := g.createHumanNode(t, treeID, "target", nil)
	source := g.createHumanNode(t, treeID, "alternate", nil)

	path, err := svc.CreatePath(context.Background(), treeID, valueobjects.NewAgentID(), root.ID(), aggregates.ModeDialogue)
	require.NoError(t, err)

	sourceID := source.ID()
	require.NoError(t, svc.UpsertSelection(context.Background(), path.ID(), aggregates.PathSelection{
		TargetNodeID:         target.ID(),
		SelectedSourceNodeID: &sourceID,
	}))

	reloaded, err := svc.GetPath(context.Background(), path.ID())
	require.NoError(t, err)
	sel, ok := reloaded.SelectionFor(target.ID())
	require.True(t, ok)
	require.NotNil(t, sel.SelectedSourceNodeID)
	assert.True(t, sel.SelectedSourceNodeID.Equals(source.ID()))

	require.NoError(t, svc.DeleteSelection(context.Background(), path.ID(), target.ID()))
	reloaded, err = svc.GetPath(context.Background(), path.ID())
	require.NoError(t, err)
	_, ok = reloaded.SelectionFor(target.ID())
	assert.False(t, ok)
}

func TestSetActiveNodeLastWriterWinsPerMode(t *testing.T) {
	g, svc, _ := newPathFixture(t)
	treeID := valueobjects.NewTreeID()
	root := g.createHumanNode(t, treeID, "root", nil)
	next := g.createHumanNode(t, treeID, "next", nil)

	path, err := svc.CreatePath(context.Background(), treeID, valueobjects.NewAgentID(), root.ID(), aggregates.ModeDialogue)
	require.NoError(t, err)

	require.NoError(t, svc.SetActiveNode(context.Background(), path.ID(), next.ID(), aggregates.ModeBuffer))

	state, err := svc.GetState(context.Background(), path.ID())
	require.NoError(t, err)
	assert.True(t, state.ActiveNodeID.Equals(next.ID()))
	assert.True(t, state.PerMode[aggregates.ModeDialogue].Equals(root.ID()))
	assert.True(t, state.PerMode[aggregates.ModeBuffer].Equals(next.ID()))
}
