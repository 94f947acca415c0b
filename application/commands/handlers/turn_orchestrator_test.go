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
	"loom-backend/domain/events"
	"loom-backend/infrastructure/persistence/memory"
	"loom-backend/infrastructure/provider/stub"
	pkgerrors "loom-backend/pkg/errors"
)

type turnFixture struct {
	nodes    *memory.NodeRepository
	edges    *memory.EdgeRepository
	trees    *memory.TreeRepository
	pathRepo *memory.PathRepository
	states   ports.PathStateRepository
	agents   *memory.AgentRepository
	evidence *memory.EvidenceRepository
	bus      *memory.EventBus
	provider *stub.Provider

	graph *services.GraphService
	paths *services.PathService

	orchestrator *TurnOrchestrator

	tree       *aggregates.LoomTree
	path       *aggregates.Path
	rootNode   *entities.Node
	humanAgent *entities.Agent
	modelAgent *entities.Agent
}

func newTurnFixture(t *testing.T) *turnFixture {
	t.Helper()
	return newTurnFixtureWithStates(t, memory.NewPathStateRepository())
}

func newTurnFixtureWithStates(t *testing.T, states ports.PathStateRepository) *turnFixture {
	t.Helper()
	logger := zap.NewNop()

	f := &turnFixture{
		nodes:    memory.NewNodeRepository(),
		edges:    memory.NewEdgeRepository(),
		trees:    memory.NewTreeRepository(),
		pathRepo: memory.NewPathRepository(),
		states:   states,
		agents:   memory.NewAgentRepository(),
		evidence: memory.NewEvidenceRepository(),
		bus:      memory.NewEventBus(logger),
		provider: stub.NewProvider(),
	}

	f.graph = services.NewGraphService(f.nodes, f.edges, f.trees, logger)
	f.paths = services.NewPathService(f.pathRepo, f.states, f.nodes, logger)
	provenance := services.NewProvenanceService(f.nodes, f.edges, f.evidence, logger)

	f.orchestrator = NewTurnOrchestrator(
		f.graph, f.paths, provenance,
		f.trees, f.nodes, f.edges, f.agents, f.evidence,
		f.provider, f.bus, logger,
	)

	ctx := context.Background()

	human, err := entities.NewAgent("alice", entities.AgentKindHuman, entities.GenerationConfig{})
	require.NoError(t, err)
	require.NoError(t, f.agents.Save(ctx, human))
	f.humanAgent = human

	model, err := entities.NewAgent("narrator", entities.AgentKindModel, entities.GenerationConfig{
		Model:     "gpt-4o",
		MaxTokens: 256,
	})
	require.NoError(t, err)
	require.NoError(t, f.agents.Save(ctx, model))
	f.modelAgent = model

	treeID := valueobjects.NewTreeID()
	rootContent, err := valueobjects.NewTextContent("Once upon a time")
	require.NoError(t, err)
	root, err := f.graph.CreateNode(ctx, services.CreateNodeParams{
		TreeID:        treeID,
		Content:       rootContent,
		AuthorAgentID: human.ID(),
		AuthorType:    entities.AuthorHuman,
	})
	require.NoError(t, err)
	f.rootNode = root

	tree, err := aggregates.NewLoomTree(treeID, root.ID(), aggregates.ModeDialogue, "story", "", "You are a storyteller.")
	require.NoError(t, err)
	require.NoError(t, f.trees.Save(ctx, tree))
	f.tree = tree

	path, err := f.paths.CreatePath(ctx, treeID, human.ID(), root.ID(), tree.Mode())
	require.NoError(t, err)
	f.path = path

	return f
}

func (f *turnFixture) sendTurn(prompt string) (*TurnResult, error) {
	return f.orchestrator.Handle(context.Background(), commands.SendTurnCommand{
		PathID:       f.path.ID().String(),
		HumanAgentID: f.humanAgent.ID().String(),
		ModelAgentID: f.modelAgent.ID().String(),
		Prompt:       prompt,
	})
}

func (f *turnFixture) treeNodes(t *testing.T) []*entities.Node {
	t.Helper()
	nodes, err := f.nodes.GetByTreeID(context.Background(), f.tree.ID())
	require.NoError(t, err)
	return nodes
}

func TestTurnHappyPathCommitsBothHalves(t *testing.T) {
	f := newTurnFixture(t)
	f.provider.EnqueueResponse("there lived a fox.")

	result, err := f.sendTurn("Continue the story.")
	require.NoError(t, err)

	require.NotNil(t, result.HumanNode)
	require.NotNil(t, result.ModelNode)
	assert.Equal(t, "Continue the story.", result.HumanNode.Content().Text())
	assert.Equal(t, "there lived a fox.", result.ModelNode.Content().Text())
	assert.True(t, result.ModelNode.IsModelAuthored())

	// Evidence is bound to the model node and passes verification.
	require.NotNil(t, result.Evidence)
	assert.True(t, result.Evidence.NodeID().Equals(result.ModelNode.ID()))
	require.NotNil(t, result.Provenance)
	assert.True(t, result.Provenance.IsValid)
	assert.Equal(t, services.ProvenanceValid, result.Provenance.Status)

	// The path advanced root → human → model.
	path, err := f.paths.GetPath(context.Background(), f.path.ID())
	require.NoError(t, err)
	require.Equal(t, 3, path.Length())
	assert.True(t, path.LastNodeID().Equals(result.ModelNode.ID()))

	state, err := f.paths.GetState(context.Background(), f.path.ID())
	require.NoError(t, err)
	assert.True(t, state.ActiveNodeID.Equals(result.ModelNode.ID()))

	// A completion event went out.
	published := f.bus.Published()
	require.Len(t, published, 1)
	assert.Equal(t, events.EventTypeTurnCompleted, published[0].EventType())
}

func TestTurnProviderFailureLeavesHumanHalfDurable(t *testing.T) {
	f := newTurnFixture(t)
	f.provider.FailWith(errors.New("upstream unavailable"))

	_, err := f.sendTurn("Continue the story.")
	require.Error(t, err)

	// The human node committed and the path sits on it.
	path, err := f.paths.GetPath(context.Background(), f.path.ID())
	require.NoError(t, err)
	require.Equal(t, 2, path.Length())

	tail, err := f.nodes.GetByID(context.Background(), path.LastNodeID())
	require.NoError(t, err)
	assert.Equal(t, "Continue the story.", tail.Content().Text())
	assert.False(t, tail.IsModelAuthored())

	state, err := f.paths.GetState(context.Background(), f.path.ID())
	require.NoError(t, err)
	assert.True(t, state.ActiveNodeID.Equals(tail.ID()))

	// No model node, no evidence, no completion event.
	for _, node := range f.treeNodes(t) {
		assert.False(t, node.IsModelAuthored())
	}
	assert.Empty(t, f.bus.Published())
}

func TestTurnEmptyCompletionIsRejected(t *testing.T) {
	f := newTurnFixture(t)
	f.provider.EnqueueResponse("   ")

	_, err := f.sendTurn("Continue the story.")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))

	// Same durability contract as any other model-half failure.
	path, err := f.paths.GetPath(context.Background(), f.path.ID())
	require.NoError(t, err)
	assert.Equal(t, 2, path.Length())
	for _, node := range f.treeNodes(t) {
		assert.False(t, node.IsModelAuthored())
	}
}

func TestTurnRejectsArchivedTree(t *testing.T) {
	f := newTurnFixture(t)
	require.NoError(t, f.tree.Archive())
	require.NoError(t, f.trees.Save(context.Background(), f.tree))

	_, err := f.sendTurn("Continue the story.")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsInvalidState(err))
	assert.Equal(t, 0, f.provider.Calls())
}

func TestTurnRejectsHumanAgentOnModelSide(t *testing.T) {
	f := newTurnFixture(t)

	_, err := f.orchestrator.Handle(context.Background(), commands.SendTurnCommand{
		PathID:       f.path.ID().String(),
		HumanAgentID: f.humanAgent.ID().String(),
		ModelAgentID: f.humanAgent.ID().String(),
		Prompt:       "Continue.",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestTurnValidatesCommandFields(t *testing.T) {
	f := newTurnFixture(t)

	_, err := f.orchestrator.Handle(context.Background(), commands.SendTurnCommand{
		PathID:       "not-a-uuid",
		HumanAgentID: f.humanAgent.ID().String(),
		ModelAgentID: f.modelAgent.ID().String(),
		Prompt:       "Continue.",
	})
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = f.orchestrator.Handle(context.Background(), commands.SendTurnCommand{
		PathID:       f.path.ID().String(),
		HumanAgentID: f.humanAgent.ID().String(),
		ModelAgentID: f.modelAgent.ID().String(),
	})
	assert.True(t, pkgerrors.IsValidation(err))
}

// flakyStateRepo fails cursor writes from the nth call on.
type flakyStateRepo struct {
	ports.PathStateRepository
	calls    int
	failFrom int
}

func (r *flakyStateRepo) SetActiveNode(ctx context.Context, pathID valueobjects.PathID, nodeID valueobjects.NodeID, mode aggregates.TreeMode) error {
	r.calls++
	if r.calls >= r.failFrom {
		return errors.New("state store unavailable")
	}
	return r.PathStateRepository.SetActiveNode(ctx, pathID, nodeID, mode)
}

func TestTurnCursorFailureRollsBackModelHalf(t *testing.T) {
	// Cursor writes: path creation, then the human half, then the model
	// half. Failing the third exercises rollback after the model node
	// already joined the path.
	states := &flakyStateRepo{
		PathStateRepository: memory.NewPathStateRepository(),
		failFrom:            3,
	}
	f := newTurnFixtureWithStates(t, states)
	f.provider.EnqueueResponse("there lived a fox.")

	_, err := f.sendTurn("Continue the story.")
	require.Error(t, err)

	// The path was truncated back to the human node.
	path, err := f.paths.GetPath(context.Background(), f.path.ID())
	require.NoError(t, err)
	require.Equal(t, 2, path.Length())

	tail, err := f.nodes.GetByID(context.Background(), path.LastNodeID())
	require.NoError(t, err)
	assert.False(t, tail.IsModelAuthored())

	// Model node, evidence and edge were all compensated away.
	for _, node := range f.treeNodes(t) {
		assert.False(t, node.IsModelAuthored())
	}
	assert.Empty(t, f.bus.Published())
}

func TestTurnExcludedNodesAreOmittedFromContext(t *testing.T) {
	f := newTurnFixture(t)

	excluded := true
	_, err := f.graph.UpdateNodeMetadata(context.Background(), f.rootNode.ID(), services.NodeMetadataChanges{
		Excluded: &excluded,
	})
	require.NoError(t, err)

	// With the root excluded the stub echoes the only remaining user
	// message, the new prompt.
	result, err := f.sendTurn("Just this.")
	require.NoError(t, err)
	assert.Equal(t, "echo: Just this.", result.ModelNode.Content().Text())
}

func TestTurnContextWindowKeepsSystemAndNewestMessages(t *testing.T) {
	f := newTurnFixture(t)
	ctx := context.Background()

	f.provider.EnqueueResponse("a fox appeared.")
	_, err := f.sendTurn("What happened next?")
	require.NoError(t, err)
	f.provider.EnqueueResponse("it ran away.")
	_, err = f.sendTurn("And then?")
	require.NoError(t, err)

	// Five messages on the path: root, prompt, reply, prompt, reply.
	messages, err := f.orchestrator.buildContext(ctx, f.path.ID(), f.tree.SystemContext())
	require.NoError(t, err)
	require.Len(t, messages, 6)

	f.orchestrator.WithContextLimit(func() int { return 2 })
	capped, err := f.orchestrator.buildContext(ctx, f.path.ID(), f.tree.SystemContext())
	require.NoError(t, err)
	require.Len(t, capped, 3)
	assert.Equal(t, ports.RoleSystem, capped[0].Role)
	assert.Equal(t, ports.RoleUser, capped[1].Role)
	assert.Equal(t, "And then?", capped[1].Content)
	assert.Equal(t, ports.RoleAssistant, capped[2].Role)
	assert.Equal(t, "it ran away.", capped[2].Content)

	// A zero limit disables the cap rather than emptying the window.
	f.orchestrator.WithContextLimit(func() int { return 0 })
	uncapped, err := f.orchestrator.buildContext(ctx, f.path.ID(), f.tree.SystemContext())
	require.NoError(t, err)
	assert.Len(t, uncapped, 6)
}
