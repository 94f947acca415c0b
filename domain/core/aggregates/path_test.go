package aggregates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom-backend/domain/core/valueobjects"
	pkgerrors "loom-backend/pkg/errors"
)

func newTestPath(t *testing.T) (*Path, valueobjects.NodeID) {
	t.Helper()
	root := valueobjects.NewNodeID()
	path, err := NewPath(valueobjects.NewTreeID(), valueobjects.NewAgentID(), root)
	require.NoError(t, err)
	return path, root
}

func TestNewPathSeedsRootEntry(t *testing.T) {
	path, root := newTestPath(t)

	assert.Equal(t, 1, path.Length())
	assert.True(t, path.RootNodeID().Equals(root))
	assert.True(t, path.LastNodeID().Equals(root))

	entries := path.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, 0, entries[0].Position)
}

func TestNewPathRejectsZeroIDs(t *testing.T) {
	_, err := NewPath(valueobjects.TreeID{}, valueobjects.NewAgentID(), valueobjects.NewNodeID())
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = NewPath(valueobjects.NewTreeID(), valueobjects.AgentID{}, valueobjects.NewNodeID())
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = NewPath(valueobjects.NewTreeID(), valueobjects.NewAgentID(), valueobjects.NodeID{})
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestAppendNodeKeepsPositionsContiguous(t *testing.T) {
	path, _ := newTestPath(t)

	a := valueobjects.NewNodeID()
	b := valueobjects.NewNodeID()
	require.NoError(t, path.AppendNode(a))
	require.NoError(t, path.AppendNode(b))

	entries := path.Entries()
	require.Len(t, entries, 3)
	for i, entry := range entries {
		assert.Equal(t, i, entry.Position)
	}
	assert.True(t, path.LastNodeID().Equals(b))
}

func TestAppendNodeRejectsZeroID(t *testing.T) {
	path, _ := newTestPath(t)
	err := path.AppendNode(valueobjects.NodeID{})
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Equal(t, 1, path.Length())
}

func TestTruncateNeverDropsRoot(t *testing.T) {
	path, _ := newTestPath(t)
	require.NoError(t, path.AppendNode(valueobjects.NewNodeID()))

	err := path.Truncate(0)
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Equal(t, 2, path.Length())
}

func TestTruncateRejectsLengthBeyondPath(t *testing.T) {
	path, _ := newTestPath(t)
	err := path.Truncate(5)
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Equal(t, 1, path.Length())
}

func TestTruncateDiscardsTail(t *testing.T) {
	path, root := newTestPath(t)
	keep := valueobjects.NewNodeID()
	require.NoError(t, path.AppendNode(keep))
	require.NoError(t, path.AppendNode(valueobjects.NewNodeID()))
	require.NoError(t, path.AppendNode(valueobjects.NewNodeID()))

	require.NoError(t, path.Truncate(2))

	assert.Equal(t, 2, path.Length())
	assert.True(t, path.RootNodeID().Equals(root))
	assert.True(t, path.LastNodeID().Equals(keep))
}

func TestTruncateToFullLengthIsNoop(t *testing.T) {
	path, _ := newTestPath(t)
	require.NoError(t, path.AppendNode(valueobjects.NewNodeID()))

	require.NoError(t, path.Truncate(2))
	assert.Equal(t, 2, path.Length())
}

func TestReplaceSuffixRenumbersContiguously(t *testing.T) {
	path, _ := newTestPath(t)
	require.NoError(t, path.AppendNode(valueobjects.NewNodeID()))
	require.NoError(t, path.AppendNode(valueobjects.NewNodeID()))

	branchA := valueobjects.NewNodeID()
	branchB := valueobjects.NewNodeID()
	require.NoError(t, path.ReplaceSuffix(1, []valueobjects.NodeID{branchA, branchB}))

	entries := path.Entries()
	require.Len(t, entries, 3)
	for i, entry := range entries {
		assert.Equal(t, i, entry.Position)
	}
	assert.True(t, entries[1].NodeID.Equals(branchA))
	assert.True(t, entries[2].NodeID.Equals(branchB))
}

func TestReplaceSuffixAtTailAppends(t *testing.T) {
	path, _ := newTestPath(t)
	next := valueobjects.NewNodeID()

	require.NoError(t, path.ReplaceSuffix(1, []valueobjects.NodeID{next}))

	assert.Equal(t, 2, path.Length())
	assert.True(t, path.LastNodeID().Equals(next))
}

func TestReplaceSuffixCannotStartAtRoot(t *testing.T) {
	path, _ := newTestPath(t)
	err := path.ReplaceSuffix(0, []valueobjects.NodeID{valueobjects.NewNodeID()})
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Equal(t, 1, path.Length())
}

func TestReplaceSuffixLeavesPathUntouchedOnBadInput(t *testing.T) {
	path, _ := newTestPath(t)
	mid := valueobjects.NewNodeID()
	require.NoError(t, path.AppendNode(mid))

	err := path.ReplaceSuffix(1, []valueobjects.NodeID{valueobjects.NewNodeID(), {}})
	assert.True(t, pkgerrors.IsValidation(err))

	entries := path.Entries()
	require.Len(t, entries, 2)
	assert.True(t, entries[1].NodeID.Equals(mid))
}

func TestReplaceSuffixRejectsStartBeyondLength(t *testing.T) {
	path, _ := newTestPath(t)
	err := path.ReplaceSuffix(3, []valueobjects.NodeID{valueobjects.NewNodeID()})
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestUpsertSelectionRequiresEdgeOrSource(t *testing.T) {
	path, _ := newTestPath(t)

	err := path.UpsertSelection(PathSelection{TargetNodeID: valueobjects.NewNodeID()})
	assert.True(t, pkgerrors.IsValidation(err))

	err = path.UpsertSelection(PathSelection{
		SelectedEdgeID: ptrEdgeID(valueobjects.NewEdgeID()),
	})
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestUpsertSelectionOverwritesPerTarget(t *testing.T) {
	path, _ := newTestPath(t)
	target := valueobjects.NewNodeID()
	first := valueobjects.NewEdgeID()
	second := valueobjects.NewEdgeID()

	require.NoError(t, path.UpsertSelection(PathSelection{
		TargetNodeID:   target,
		SelectedEdgeID: ptrEdgeID(first),
	}))
	require.NoError(t, path.UpsertSelection(PathSelection{
		TargetNodeID:   target,
		SelectedEdgeID: ptrEdgeID(second),
	}))

	sel, ok := path.SelectionFor(target)
	require.True(t, ok)
	require.NotNil(t, sel.SelectedEdgeID)
	assert.True(t, sel.SelectedEdgeID.Equals(second))
	assert.Len(t, path.Selections(), 1)
}

func TestDeleteSelectionFallsBackToDefault(t *testing.T) {
	path, _ := newTestPath(t)
	target := valueobjects.NewNodeID()

	require.NoError(t, path.UpsertSelection(PathSelection{
		TargetNodeID:   target,
		SelectedEdgeID: ptrEdgeID(valueobjects.NewEdgeID()),
	}))
	require.NoError(t, path.DeleteSelection(target))

	_, ok := path.SelectionFor(target)
	assert.False(t, ok)

	err := path.DeleteSelection(target)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestReconstructPathRejectsGappedPositions(t *testing.T) {
	id := valueobjects.NewPathID()
	treeID := valueobjects.NewTreeID()
	agentID := valueobjects.NewAgentID()

	_, err := ReconstructPath(id, treeID, agentID, []PathNode{
		{Position: 0, NodeID: valueobjects.NewNodeID()},
		{Position: 2, NodeID: valueobjects.NewNodeID()},
	}, nil, time.Now().UTC())
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = ReconstructPath(id, treeID, agentID, nil, nil, time.Now().UTC())
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestEntriesReturnsCopy(t *testing.T) {
	path, root := newTestPath(t)
	entries := path.Entries()
	entries[0].NodeID = valueobjects.NewNodeID()

	assert.True(t, path.RootNodeID().Equals(root))
}

func ptrEdgeID(id valueobjects.EdgeID) *valueobjects.EdgeID { return &id }
