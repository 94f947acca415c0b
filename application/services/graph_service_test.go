package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"loom-backend/domain/core/aggregates"
	"loom-backend/domain/core/entities"
	"loom-backend/domain/core/valueobjects"
	"loom-backend/infrastructure/persistence/memory"
	pkgerrors "loom-backend/pkg/errors"
)

type graphFixture struct {
	nodes *memory.NodeRepository
	edges *memory.EdgeRepository
	trees *memory.TreeRepository
	graph *GraphService
}

func newGraphFixture(t *testing.T) *graphFixture {
	t.Helper()
	nodes := memory.NewNodeRepository()
	edges := memory.NewEdgeRepository()
	trees := memory.NewTreeRepository()
	return &graphFixture{
		nodes: nodes,
		edges: edges,
		trees: trees,
		graph: NewGraphService(nodes, edges, trees, zap.NewNop()),
	}
}

func (f *graphFixture) createHumanNode(t *testing.T, treeID valueobjects.TreeID, text string, parentHashes []string) *entities.Node {
	t.Helper()
	content, err := valueobjects.NewTextContent(text)
	require.NoError(t, err)
	node, err := f.graph.CreateNode(context.Background(), CreateNodeParams{
		TreeID:        treeID,
		Content:       content,
		AuthorAgentID: valueobjects.NewAgentID(),
		AuthorType:    entities.AuthorHuman,
		ParentHashes:  parentHashes,
	})
	require.NoError(t, err)
	return node
}

func (f *graphFixture) linkContinuation(t *testing.T, parent, child *entities.Node) *entities.Edge {
	t.Helper()
	edge, err := f.graph.CreateEdge(context.Background(),
		[]entities.SourceRef{{NodeID: parent.ID(), Role: entities.RolePrimary}},
		child.ID(), entities.EdgeTypeContinuation)
	require.NoError(t, err)
	return edge
}

func TestCreateNodeRejectsRawResponseHashOnHumanNodes(t *testing.T) {
	f := newGraphFixture(t)
	content, err := valueobjects.NewTextContent("hello")
	require.NoError(t, err)

	_, err = f.graph.CreateNode(context.Background(), CreateNodeParams{
		TreeID:          valueobjects.NewTreeID(),
		Content:         content,
		AuthorAgentID:   valueobjects.NewAgentID(),
		AuthorType:      entities.AuthorHuman,
		RawResponseHash: "deadbeef",
	})
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestCreateNodeRequiresRawResponseHashOnModelNodes(t *testing.T) {
	f := newGraphFixture(t)
	content, err := valueobjects.NewTextContent("hello")
	require.NoError(t, err)

	_, err = f.graph.CreateNode(context.Background(), CreateNodeParams{
		TreeID:        valueobjects.NewTreeID(),
		Content:       content,
		AuthorAgentID: valueobjects.NewAgentID(),
		AuthorType:    entities.AuthorModel,
	})
	assert.Error(t, err)
}

func TestCreateNodeRejectsUnknownAuthorType(t *testing.T) {
	f := newGraphFixture(t)
	content, err := valueobjects.NewTextContent("hello")
	require.NoError(t, err)

	_, err = f.graph.CreateNode(context.Background(), CreateNodeParams{
		TreeID:        valueobjects.NewTreeID(),
		Content:       content,
		AuthorAgentID: valueobjects.NewAgentID(),
		AuthorType:    entities.AuthorType("alien"),
	})
	assert.True(t, pkgerrors.IsValidation(err))
}

func mustNodeID(t *testing.T, id string) valueobjects.NodeID {
	t.Helper()
	nodeID, err := valueobjects.NewNodeIDFromString(id)
	require.NoError(t, err)
	return nodeID
}

func TestDeriveLocalIDExtendsPrefixOnCollision(t *testing.T) {
	f := newGraphFixture(t)
	treeID := valueobjects.NewTreeID()

	// Both identifiers share their first six characters, so the second
	// node must take a seven character localID.
	scripted := []valueobjects.NodeID{
		mustNodeID(t, "abcdef11-1111-4111-8111-111111111111"),
		mustNodeID(t, "abcdef22-2222-4222-8222-222222222222"),
	}
	next := 0
	f.graph.WithIDGenerator(func() valueobjects.NodeID {
		id := scripted[next]
		next++
		return id
	})

	first := f.createHumanNode(t, treeID, "first", nil)
	second := f.createHumanNode(t, treeID, "second", nil)

	assert.Equal(t, "abcdef", first.LocalID())
	assert.Equal(t, "abcdef2", second.LocalID())
}

func TestDeriveLocalIDIsScopedPerTree(t *testing.T) {
	f := newGraphFixture(t)

	scripted := []valueobjects.NodeID{
		mustNodeID(t, "abcdef11-1111-4111-8111-111111111111"),
		mustNodeID(t, "abcdef22-2222-4222-8222-222222222222"),
	}
	next := 0
	f.graph.WithIDGenerator(func() valueobjects.NodeID {
		id := scripted[next]
		next++
		return id
	})

	first := f.createHumanNode(t, valueobjects.NewTreeID(), "first", nil)
	second := f.createHumanNode(t, valueobjects.NewTreeID(), "second", nil)

	assert.Equal(t, "abcdef", first.LocalID())
	assert.Equal(t, "abcdef", second.LocalID())
}

func TestCreateNodeHashIsOrderInsensitiveOverParents(t *testing.T) {
	f := newGraphFixture(t)
	treeID := valueobjects.NewTreeID()
	agentID := valueobjects.NewAgentID()
	createdAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	create := func(parents []string) *entities.Node {
		node, err := f.graph.CreateNode(context.Background(), CreateNodeParams{
			TreeID:        treeID,
			Content:       mustText(t, "same"),
			AuthorAgentID: agentID,
			AuthorType:    entities.AuthorHuman,
			ParentHashes:  parents,
			CreatedAt:     createdAt,
		})
		require.NoError(t, err)
		return node
	}

	first := create([]string{"a1", "b2"})
	second := create([]string{"b2", "a1"})

	assert.True(t, first.ContentHash().Equals(second.ContentHash()))
	assert.Len(t, first.ContentHash().String(), 64)
}

func TestCreateEdgeValidatesSourcesExistAndShareTree(t *testing.T) {
	f := newGraphFixture(t)
	treeID := valueobjects.NewTreeID()
	parent := f.createHumanNode(t, treeID, "parent", nil)
	child := f.createHumanNode(t, treeID, "child", nil)
	foreign := f.createHumanNode(t, valueobjects.NewTreeID(), "elsewhere", nil)

	_, err := f.graph.CreateEdge(context.Background(), nil, child.ID(), entities.EdgeTypeContinuation)
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = f.graph.CreateEdge(context.Background(),
		[]entities.SourceRef{{NodeID: valueobjects.NewNodeID(), Role: entities.RolePrimary}},
		child.ID(), entities.EdgeTypeContinuation)
	assert.True(t, pkgerrors.IsNotFound(err))

	_, err = f.graph.CreateEdge(context.Background(),
		[]entities.SourceRef{{NodeID: foreign.ID(), Role: entities.RolePrimary}},
		child.ID(), entities.EdgeTypeContinuation)
	assert.True(t, pkgerrors.IsValidation(err))

	edge := f.linkContinuation(t, parent, child)
	assert.True(t, edge.TargetID().Equals(child.ID()))
}

func TestRemoveSourceDeletesEdgeWhenEmpty(t *testing.T) {
	f := newGraphFixture(t)
	treeID := valueobjects.NewTreeID()
	parent := f.createHumanNode(t, treeID, "parent", nil)
	child := f.createHumanNode(t, treeID, "child", nil)
	edge := f.linkContinuation(t, parent, child)

	remaining, err := f.graph.RemoveSourceFromEdge(context.Background(), edge.ID(), parent.ID())
	require.NoError(t, err)
	assert.Nil(t, remaining)

	_, err = f.edges.GetByID(context.Background(), edge.ID())
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestEditNodeCreatesVersionAndJoinsDownstreamEdges(t *testing.T) {
	f := newGraphFixture(t)
	treeID := valueobjects.NewTreeID()
	root := f.createHumanNode(t, treeID, "root", nil)
	middle := f.createHumanNode(t, treeID, "middle", []string{root.ContentHash().String()})
	leaf := f.createHumanNode(t, treeID, "leaf", []string{middle.ContentHash().String()})

	f.linkContinuation(t, root, middle)
	downstream := f.linkContinuation(t, middle, leaf)

	revised, err := valueobjects.NewTextContent("middle, revised")
	require.NoError(t, err)
	editor := valueobjects.NewAgentID()
	version, err := f.graph.EditNode(context.Background(), middle.ID(), revised, editor)
	require.NoError(t, err)

	// The original is untouched and the version points back at it.
	original, err := f.nodes.GetByID(context.Background(), middle.ID())
	require.NoError(t, err)
	assert.Equal(t, "middle", original.Content().Text())
	require.NotNil(t, version.EditedFrom())
	assert.True(t, version.EditedFrom().Equals(middle.ID()))

	// The version joined the downstream edge with the original's role.
	updated, err := f.edges.GetByID(context.Background(), downstream.ID())
	require.NoError(t, err)
	role, ok := updated.RoleOf(version.ID())
	require.True(t, ok)
	assert.Equal(t, entities.RolePrimary, role)
	_, ok = updated.RoleOf(middle.ID())
	assert.True(t, ok)
}

func TestAncestorPathFollowsPrimarySources(t *testing.T) {
	f := newGraphFixture(t)
	treeID := valueobjects.NewTreeID()
	root := f.createHumanNode(t, treeID, "root", nil)
	middle := f.createHumanNode(t, treeID, "middle", nil)
	leaf := f.createHumanNode(t, treeID, "leaf", nil)
	f.linkContinuation(t, root, middle)
	f.linkContinuation(t, middle, leaf)

	route, err := f.graph.AncestorPath(context.Background(), leaf.ID(), nil)
	require.NoError(t, err)
	require.Len(t, route, 3)
	assert.True(t, route[0].Equals(root.ID()))
	assert.True(t, route[1].Equals(middle.ID()))
	assert.True(t, route[2].Equals(leaf.ID()))
}

func TestAncestorPathHonorsSourceSelection(t *testing.T) {
	f := newGraphFixture(t)
	treeID := valueobjects.NewTreeID()
	root := f.createHumanNode(t, treeID, "root", nil)
	middle := f.createHumanNode(t, treeID, "middle", nil)
	leaf := f.createHumanNode(t, treeID, "leaf", nil)
	f.linkContinuation(t, root, middle)
	edge := f.linkContinuation(t, middle, leaf)

	version, err := f.graph.EditNode(context.Background(), middle.ID(), mustText(t, "middle v2"), valueobjects.NewAgentID())
	require.NoError(t, err)

	// Without a selection the primary source wins.
	route, err := f.graph.AncestorPath(context.Background(), leaf.ID(), nil)
	require.NoError(t, err)
	require.Len(t, route, 3)
	assert.True(t, route[1].Equals(middle.ID()))

	// A per-path selection reroutes through the edited version.
	versionID := version.ID()
	edgeID := edge.ID()
	selections := map[string]aggregates.PathSelection{
		leaf.ID().String(): {
			TargetNodeID:         leaf.ID(),
			SelectedEdgeID:       &edgeID,
			SelectedSourceNodeID: &versionID,
		},
	}
	route, err = f.graph.AncestorPath(context.Background(), leaf.ID(), selections)
	require.NoError(t, err)
	require.Len(t, route, 3)
	assert.True(t, route[1].Equals(version.ID()))
	assert.True(t, route[0].Equals(root.ID()))
}

func TestAncestorPathDetectsCycles(t *testing.T) {
	f := newGraphFixture(t)
	treeID := valueobjects.NewTreeID()
	a := f.createHumanNode(t, treeID, "a", nil)
	b := f.createHumanNode(t, treeID, "b", nil)
	f.linkContinuation(t, a, b)
	f.linkContinuation(t, b, a)

	_, err := f.graph.AncestorPath(context.Background(), a.ID(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestVerifyRootInvariant(t *testing.T) {
	f := newGraphFixture(t)
	treeID := valueobjects.NewTreeID()
	root := f.createHumanNode(t, treeID, "root", nil)
	child := f.createHumanNode(t, treeID, "child", nil)
	f.linkContinuation(t, root, child)

	tree, err := aggregates.NewLoomTree(treeID, root.ID(), aggregates.ModeDialogue, "t", "", "")
	require.NoError(t, err)
	require.NoError(t, f.trees.Save(context.Background(), tree))

	assert.NoError(t, f.graph.VerifyRootInvariant(context.Background(), treeID))

	// A second parentless node breaks the invariant.
	f.createHumanNode(t, treeID, "stray", nil)
	err = f.graph.VerifyRootInvariant(context.Background(), treeID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "root nodes")
}

func TestUpdateNodeMetadataTouchesOnlyMutableFields(t *testing.T) {
	f := newGraphFixture(t)
	node := f.createHumanNode(t, valueobjects.NewTreeID(), "note", nil)
	hashBefore := node.ContentHash().String()

	bookmarked := true
	label := "important"
	pruned := true
	updated, err := f.graph.UpdateNodeMetadata(context.Background(), node.ID(), NodeMetadataChanges{
		Bookmarked:    &bookmarked,
		BookmarkLabel: &label,
		Pruned:        &pruned,
	})
	require.NoError(t, err)

	assert.True(t, updated.Metadata().Bookmarked)
	assert.Equal(t, "important", updated.Metadata().BookmarkLabel)
	assert.True(t, updated.Metadata().Pruned)
	assert.Equal(t, hashBefore, updated.ContentHash().String())
	assert.Equal(t, "note", updated.Content().Text())
}

func mustText(t *testing.T, text string) valueobjects.NodeContent {
	t.Helper()
	content, err := valueobjects.NewTextContent(text)
	require.NoError(t, err)
	return content
}
