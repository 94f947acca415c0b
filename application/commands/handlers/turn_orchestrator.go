package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"loom-backend/application/commands"
	"loom-backend/application/ports"
	"loom-backend/application/sagas"
	"loom-backend/application/services"
	"loom-backend/domain/core/aggregates"
	"loom-backend/domain/core/entities"
	"loom-backend/domain/core/valueobjects"
	"loom-backend/domain/events"
	"loom-backend/domain/hashing"
	pkgerrors "loom-backend/pkg/errors"
)

// TurnResult carries everything a completed exchange produced
type TurnResult struct {
	HumanNode  *entities.Node
	ModelNode  *entities.Node
	Evidence   *entities.RawAPIResponse
	Provenance *services.ProvenanceReport
}

// TurnOrchestrator drives one human→model exchange as a strict sequence:
// the human node and its path advance commit immediately and are never
// rolled back; the model half runs under a compensation saga so that a
// failed invocation, persistence or verification leaves no model node
// reachable from the path. The path cursor never advances onto a model
// node that failed provenance verification.
//
// One in-flight invocation per path: the orchestrator does not lock, per
// the engine's single-writer assumption.
type TurnOrchestrator struct {
	graph        *services.GraphService
	paths        *services.PathService
	provenance   *services.ProvenanceService
	trees        ports.TreeRepository
	nodes        ports.NodeRepository
	edges        ports.EdgeRepository
	agents       ports.AgentRepository
	evidence     ports.EvidenceRepository
	provider     ports.ModelProvider
	publisher    ports.EventPublisher
	contextLimit func() int
	logger       *zap.Logger
}

// NewTurnOrchestrator creates a turn orchestrator
func NewTurnOrchestrator(
	graph *services.GraphService,
	paths *services.PathService,
	provenance *services.ProvenanceService,
	trees ports.TreeRepository,
	nodes ports.NodeRepository,
	edges ports.EdgeRepository,
	agents ports.AgentRepository,
	evidence ports.EvidenceRepository,
	provider ports.ModelProvider,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *TurnOrchestrator {
	return &TurnOrchestrator{
		graph:      graph,
		paths:      paths,
		provenance: provenance,
		trees:      trees,
		nodes:      nodes,
		edges:      edges,
		agents:     agents,
		evidence:   evidence,
		provider:   provider,
		publisher:  publisher,
		logger:     logger,
	}
}

// WithContextLimit bounds how many messages the model context window may
// carry; zero or negative means unbounded
func (o *TurnOrchestrator) WithContextLimit(limit func() int) *TurnOrchestrator {
	o.contextLimit = limit
	return o
}

// Handle executes one exchange
func (o *TurnOrchestrator) Handle(ctx context.Context, cmd commands.SendTurnCommand) (*TurnResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	pathID, err := valueobjects.NewPathIDFromString(cmd.PathID)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}
	humanAgentID, err := valueobjects.NewAgentIDFromString(cmd.HumanAgentID)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}
	modelAgentID, err := valueobjects.NewAgentIDFromString(cmd.ModelAgentID)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}

	path, err := o.paths.GetPath(ctx, pathID)
	if err != nil {
		return nil, err
	}
	tree, err := o.trees.GetByID(ctx, path.TreeID())
	if err != nil {
		return nil, err
	}
	if tree.IsArchived() {
		return nil, pkgerrors.NewInvalidStateError("cannot send a turn on an archived tree")
	}

	if _, err := o.agents.GetByID(ctx, humanAgentID); err != nil {
		return nil, err
	}
	modelAgent, err := o.agents.GetByID(ctx, modelAgentID)
	if err != nil {
		return nil, err
	}
	if modelAgent.Kind() != entities.AgentKindModel {
		return nil, pkgerrors.NewValidationError("model side of a turn must be a model agent")
	}

	prompt, err := valueobjects.NewTextContent(cmd.Prompt)
	if err != nil {
		return nil, err
	}

	// Human half: committed immediately, durable regardless of what the
	// model half does.
	humanNode, err := o.commitHumanNode(ctx, path, humanAgentID, prompt, tree.Mode())
	if err != nil {
		return nil, err
	}

	messages, err := o.buildContext(ctx, pathID, tree.SystemContext())
	if err != nil {
		return nil, err
	}

	result, err := o.runModelHalf(ctx, tree, path, humanNode, modelAgent, messages, cmd.Stream)
	if err != nil {
		// The human node and its path entry stay; the path remains
		// positioned at the human node.
		return nil, err
	}
	result.HumanNode = humanNode

	event := events.NewTurnCompleted(
		tree.ID().String(),
		pathID.String(),
		humanNode.ID().String(),
		result.ModelNode.ID().String(),
		result.Evidence.ID().String(),
		time.Now().UTC(),
	)
	if err := o.publisher.Publish(ctx, event); err != nil {
		// Events are advisory; the turn has already committed.
		o.logger.Error("failed to publish turn event", zap.Error(err))
	}

	return result, nil
}

// commitHumanNode creates the human node, links it under the path's tail
// and advances the path onto it
func (o *TurnOrchestrator) commitHumanNode(
	ctx context.Context,
	path *aggregates.Path,
	agentID valueobjects.AgentID,
	content valueobjects.NodeContent,
	mode aggregates.TreeMode,
) (*entities.Node, error) {
	parent, err := o.nodes.GetByID(ctx, path.LastNodeID())
	if err != nil {
		return nil, err
	}

	humanNode, err := o.graph.CreateNode(ctx, services.CreateNodeParams{
		TreeID:        path.TreeID(),
		Content:       content,
		AuthorAgentID: agentID,
		AuthorType:    entities.AuthorHuman,
		ParentHashes:  []string{parent.ContentHash().String()},
	})
	if err != nil {
		return nil, err
	}

	if _, err := o.graph.CreateEdge(ctx,
		[]entities.SourceRef{{NodeID: parent.ID(), Role: entities.RolePrimary}},
		humanNode.ID(),
		entities.EdgeTypeContinuation,
	); err != nil {
		return nil, err
	}

	if err := o.paths.AppendNode(ctx, path.ID(), humanNode.ID()); err != nil {
		return nil, err
	}
	if err := o.paths.SetActiveNode(ctx, path.ID(), humanNode.ID(), mode); err != nil {
		return nil, err
	}
	return humanNode, nil
}

// runModelHalf invokes the model and commits its node, evidence and edge
// under a compensation saga
func (o *TurnOrchestrator) runModelHalf(
	ctx context.Context,
	tree *aggregates.LoomTree,
	path *aggregates.Path,
	humanNode *entities.Node,
	modelAgent *entities.Agent,
	messages []ports.ChatMessage,
	stream bool,
) (*TurnResult, error) {
	cfg := modelAgent.Config()
	request := ports.CompletionRequest{
		Model:        cfg.Model,
		SystemPrompt: cfg.SystemPrompt,
		Messages:     messages,
		Temperature:  cfg.Temperature,
		TopP:         cfg.TopP,
		MaxTokens:    cfg.MaxTokens,
	}

	var (
		completion *ports.CompletionResult
		modelNode  *entities.Node
		record     *entities.RawAPIResponse
		edge       *entities.Edge
		report     *services.ProvenanceReport
	)

	saga := sagas.NewSaga("send-turn", o.logger)

	saga.AddStep(sagas.Step{
		Name: "InvokeModel",
		Execute: func(ctx context.Context) error {
			var err error
			if stream {
				completion, err = o.provider.GenerateStreamingCompletion(ctx, request)
			} else {
				completion, err = o.provider.GenerateCompletion(ctx, request)
			}
			if err != nil {
				return err
			}
			if strings.TrimSpace(completion.Content) == "" {
				return pkgerrors.NewValidationError("model returned an empty completion")
			}
			return nil
		},
	})

	saga.AddStep(sagas.Step{
		Name: "CreateModelNode",
		Execute: func(ctx context.Context) error {
			content, err := valueobjects.NewTextContent(completion.Content)
			if err != nil {
				return err
			}
			rawHash := hashing.HashRawResponse(completion.Raw.Headers, completion.Raw.Body)
			modelNode, err = o.graph.CreateNode(ctx, services.CreateNodeParams{
				TreeID:          tree.ID(),
				Content:         content,
				AuthorAgentID:   modelAgent.ID(),
				AuthorType:      entities.AuthorModel,
				ParentHashes:    []string{humanNode.ContentHash().String()},
				RawResponseHash: rawHash,
			})
			return err
		},
		Compensate: func(ctx context.Context) error {
			return o.nodes.Delete(ctx, modelNode.ID())
		},
	})

	saga.AddStep(sagas.Step{
		Name: "PersistEvidence",
		Execute: func(ctx context.Context) error {
			var err error
			record, err = entities.NewRawAPIResponse(entities.NewRawAPIResponseParams{
				NodeID:      modelNode.ID(),
				Provider:    o.provider.Name(),
				RawHeaders:  completion.Raw.Headers,
				RawBody:     completion.Raw.Body,
				RequestAt:   completion.Raw.RequestAt,
				RespondedAt: completion.Raw.RespondedAt,
				Latency:     completion.Raw.Latency,
				Usage: entities.TokenUsage{
					PromptTokens:     completion.Usage.PromptTokens,
					CompletionTokens: completion.Usage.CompletionTokens,
					TotalTokens:      completion.Usage.TotalTokens,
				},
			})
			if err != nil {
				return err
			}
			return o.evidence.Save(ctx, record)
		},
		Compensate: func(ctx context.Context) error {
			return o.evidence.Delete(ctx, record.ID())
		},
	})

	saga.AddStep(sagas.Step{
		Name: "LinkContinuationEdge",
		Execute: func(ctx context.Context) error {
			var err error
			edge, err = o.graph.CreateEdge(ctx,
				[]entities.SourceRef{{NodeID: humanNode.ID(), Role: entities.RolePrimary}},
				modelNode.ID(),
				entities.EdgeTypeContinuation,
			)
			return err
		},
		Compensate: func(ctx context.Context) error {
			return o.edges.Delete(ctx, edge.ID())
		},
	})

	saga.AddStep(sagas.Step{
		Name: "VerifyProvenance",
		Execute: func(ctx context.Context) error {
			var err error
			report, err = o.provenance.VerifyModelNodeProvenance(ctx, modelNode.ID())
			if err != nil {
				return err
			}
			if !report.IsValid {
				return pkgerrors.NewHashVerificationError(
					fmt.Sprintf("model node failed provenance verification: %s", report.Status))
			}
			return nil
		},
	})

	saga.AddStep(sagas.Step{
		Name: "AdvancePath",
		Execute: func(ctx context.Context) error {
			return o.paths.AppendNode(ctx, path.ID(), modelNode.ID())
		},
		Compensate: func(ctx context.Context) error {
			current, err := o.paths.GetPath(ctx, path.ID())
			if err != nil {
				return err
			}
			if !current.LastNodeID().Equals(modelNode.ID()) {
				return nil
			}
			return o.paths.Truncate(ctx, path.ID(), current.Length()-1)
		},
	})

	saga.AddStep(sagas.Step{
		Name: "SetCursor",
		Execute: func(ctx context.Context) error {
			return o.paths.SetActiveNode(ctx, path.ID(), modelNode.ID(), tree.Mode())
		},
	})

	if err := saga.Execute(ctx); err != nil {
		return nil, err
	}

	return &TurnResult{
		ModelNode:  modelNode,
		Evidence:   record,
		Provenance: report,
	}, nil
}

// buildContext materializes the path into provider messages, skipping
// nodes excluded from model context
func (o *TurnOrchestrator) buildContext(ctx context.Context, pathID valueobjects.PathID, systemContext string) ([]ports.ChatMessage, error) {
	path, err := o.paths.GetPath(ctx, pathID)
	if err != nil {
		return nil, err
	}

	var messages []ports.ChatMessage
	if systemContext != "" {
		messages = append(messages, ports.ChatMessage{Role: ports.RoleSystem, Content: systemContext})
	}

	for _, entry := range path.Entries() {
		node, err := o.nodes.GetByID(ctx, entry.NodeID)
		if err != nil {
			return nil, err
		}
		if node.Metadata().Excluded {
			continue
		}
		role := ports.RoleUser
		if node.IsModelAuthored() {
			role = ports.RoleAssistant
		}
		messages = append(messages, ports.ChatMessage{Role: role, Content: node.Content().Text()})
	}
	return o.capContext(messages, systemContext != ""), nil
}

// capContext drops the oldest conversational messages once the window
// exceeds the configured limit. The system message never counts against
// the limit and is never dropped.
func (o *TurnOrchestrator) capContext(messages []ports.ChatMessage, hasSystem bool) []ports.ChatMessage {
	if o.contextLimit == nil {
		return messages
	}
	limit := o.contextLimit()
	if limit <= 0 {
		return messages
	}

	var system []ports.ChatMessage
	conversation := messages
	if hasSystem {
		system = messages[:1]
		conversation = messages[1:]
	}
	if len(conversation) <= limit {
		return messages
	}

	dropped := len(conversation) - limit
	o.logger.Debug("context window capped",
		zap.Int("limit", limit),
		zap.Int("dropped", dropped),
	)
	return append(system, conversation[dropped:]...)
}
