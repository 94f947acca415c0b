package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"loom-backend/application/commands"
	"loom-backend/application/ports"
	"loom-backend/application/services"
	"loom-backend/domain/core/aggregates"
	"loom-backend/domain/core/entities"
	"loom-backend/domain/core/valueobjects"
	"loom-backend/infrastructure/persistence/memory"
	pkgerrors "loom-backend/pkg/errors"
)

// failingStateRepo refuses cursor writes; everything else delegates.
type failingStateRepo struct {
	ports.PathStateRepository
}

func (r *failingStateRepo) SetActiveNode(context.Context, valueobjects.PathID, valueobjects.NodeID, aggregates.TreeMode) error {
	return errors.New("state store unavailable")
}

// recordingPathRepo remembers every saved path so tests can inspect
// entities created inside a failed saga.
type recordingPathRepo struct {
	ports.PathRepository
	saved []*aggregates.Path
}

func (r *recordingPathRepo) Save(ctx context.Context, path *aggregates.Path) error {
	r.saved = append(r.saved, path)
	return r.PathRepository.Save(ctx, path)
}

type createTreeFixture struct {
	nodes    *memory.NodeRepository
	trees    *memory.TreeRepository
	pathRepo *recordingPathRepo
	agent    *entities.Agent
}

func newCreateTreeHandler(t *testing.T, states ports.PathStateRepository) (*CreateTreeHandler, *createTreeFixture) {
	t.Helper()
	logger := zap.NewNop()

	f := &createTreeFixture{
		nodes:    memory.NewNodeRepository(),
		trees:    memory.NewTreeRepository(),
		pathRepo: &recordingPathRepo{PathRepository: memory.NewPathRepository()},
	}
	edges := memory.NewEdgeRepository()
	agents := memory.NewAgentRepository()
	bus := memory.NewEventBus(logger)
	graph := services.NewGraphService(f.nodes, edges, f.trees, logger)

	agent, err := entities.NewAgent("alice", entities.AgentKindHuman, entities.GenerationConfig{})
	require.NoError(t, err)
	require.NoError(t, agents.Save(context.Background(), agent))
	f.agent = agent

	handler := NewCreateTreeHandler(graph, f.trees, f.nodes, f.pathRepo, states, agents, bus, logger)
	return handler, f
}

func (f *createTreeFixture) command() commands.CreateTreeCommand {
	return commands.CreateTreeCommand{
		Title:          "story",
		Mode:           "dialogue",
		AgentID:        f.agent.ID().String(),
		InitialContent: "Once upon a time",
	}
}

func TestCreateTreeCommitsAllFourEntities(t *testing.T) {
	handler, f := newCreateTreeHandler(t, memory.NewPathStateRepository())

	result, err := handler.Handle(context.Background(), f.command())
	require.NoError(t, err)

	assert.True(t, result.Tree.RootNodeID().Equals(result.RootNode.ID()))
	assert.True(t, result.Path.RootNodeID().Equals(result.RootNode.ID()))

	paths, err := f.pathRepo.GetByTreeID(context.Background(), result.Tree.ID())
	require.NoError(t, err)
	assert.Len(t, paths, 1)
}

func TestCreateTreeStateFailureRollsBackPathTreeAndNode(t *testing.T) {
	handler, f := newCreateTreeHandler(t, &failingStateRepo{memory.NewPathStateRepository()})

	_, err := handler.Handle(context.Background(), f.command())
	require.Error(t, err)

	// Nothing survives: no tree, no node, and in particular no path
	// whose tree reference would dangle.
	trees, err := f.trees.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, trees)

	require.Len(t, f.pathRepo.saved, 1)
	orphan := f.pathRepo.saved[0]

	_, err = f.pathRepo.GetByID(context.Background(), orphan.ID())
	assert.True(t, pkgerrors.IsNotFound(err))

	_, err = f.nodes.GetByID(context.Background(), orphan.RootNodeID())
	assert.True(t, pkgerrors.IsNotFound(err))

	nodes, err := f.nodes.GetByTreeID(context.Background(), orphan.TreeID())
	require.NoError(t, err)
	assert.Empty(t, nodes)
}
