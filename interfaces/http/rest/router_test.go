package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"loom-backend/application/services"
	"loom-backend/domain/core/aggregates"
	"loom-backend/domain/core/entities"
	"loom-backend/domain/core/valueobjects"
	"loom-backend/infrastructure/persistence/memory"
	"loom-backend/interfaces/http/rest/handlers"
)

type routerFixture struct {
	graph  *services.GraphService
	paths  *services.PathService
	trees  *memory.TreeRepository
	router http.Handler
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	logger := zap.NewNop()

	nodes := memory.NewNodeRepository()
	edges := memory.NewEdgeRepository()
	trees := memory.NewTreeRepository()
	pathRepo := memory.NewPathRepository()
	states := memory.NewPathStateRepository()

	graph := services.NewGraphService(nodes, edges, trees, logger)
	paths := services.NewPathService(pathRepo, states, nodes, logger)

	router := NewRouter(Handlers{
		Trees: handlers.NewTreeHandler(nil, nil, nil, graph, logger),
		Paths: handlers.NewPathHandler(paths, graph, nil, nil, logger),
	}, false, logger)

	return &routerFixture{
		graph:  graph,
		paths:  paths,
		trees:  trees,
		router: router.Setup(),
	}
}

func (f *routerFixture) createNode(t *testing.T, treeID valueobjects.TreeID, text string) *entities.Node {
	t.Helper()
	content, err := valueobjects.NewTextContent(text)
	require.NoError(t, err)
	node, err := f.graph.CreateNode(context.Background(), services.CreateNodeParams{
		TreeID:        treeID,
		Content:       content,
		AuthorAgentID: valueobjects.NewAgentID(),
		AuthorType:    entities.AuthorHuman,
	})
	require.NoError(t, err)
	return node
}

func (f *routerFixture) link(t *testing.T, parent, child *entities.Node) *entities.Edge {
	t.Helper()
	edge, err := f.graph.CreateEdge(context.Background(),
		[]entities.SourceRef{{NodeID: parent.ID(), Role: entities.RolePrimary}},
		child.ID(), entities.EdgeTypeContinuation)
	require.NoError(t, err)
	return edge
}

func (f *routerFixture) get(t *testing.T, url string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestAncestryEndpointFollowsPathSelections(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()

	treeID := valueobjects.NewTreeID()
	root := f.createNode(t, treeID, "root")
	branchA := f.createNode(t, treeID, "branch a")
	branchB := f.createNode(t, treeID, "branch b")
	leaf := f.createNode(t, treeID, "leaf")

	f.link(t, root, branchA)
	f.link(t, root, branchB)
	f.link(t, branchA, leaf)
	viaB := f.link(t, branchB, leaf)

	path, err := f.paths.CreatePath(ctx, treeID, valueobjects.NewAgentID(), root.ID(), aggregates.ModeDialogue)
	require.NoError(t, err)

	edgeID := viaB.ID()
	require.NoError(t, f.paths.UpsertSelection(ctx, path.ID(), aggregates.PathSelection{
		TargetNodeID:   leaf.ID(),
		SelectedEdgeID: &edgeID,
	}))

	rec := f.get(t, "/api/v1/paths/"+path.ID().String()+"/ancestry/"+leaf.ID().String())
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.AncestryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{root.ID().String(), branchB.ID().String(), leaf.ID().String()}, resp.NodeIDs)
}

func TestAncestryEndpointRejectsUnknownPath(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.get(t, "/api/v1/paths/"+valueobjects.NewPathID().String()+"/ancestry/"+valueobjects.NewNodeID().String())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIntegrityEndpointReportsSingleRoot(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()

	treeID := valueobjects.NewTreeID()
	root := f.createNode(t, treeID, "root")
	child := f.createNode(t, treeID, "child")
	f.link(t, root, child)

	tree, err := aggregates.NewLoomTree(treeID, root.ID(), aggregates.ModeDialogue, "story", "", "")
	require.NoError(t, err)
	require.NoError(t, f.trees.Save(ctx, tree))

	rec := f.get(t, "/api/v1/trees/"+treeID.String()+"/integrity")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.IntegrityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Empty(t, resp.Detail)
}

func TestIntegrityEndpointFlagsDetachedNode(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()

	treeID := valueobjects.NewTreeID()
	root := f.createNode(t, treeID, "root")
	f.createNode(t, treeID, "stray")

	tree, err := aggregates.NewLoomTree(treeID, root.ID(), aggregates.ModeDialogue, "story", "", "")
	require.NoError(t, err)
	require.NoError(t, f.trees.Save(ctx, tree))

	rec := f.get(t, "/api/v1/trees/"+treeID.String()+"/integrity")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.IntegrityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "violated", resp.Status)
	assert.Contains(t, resp.Detail, "root nodes")
}
