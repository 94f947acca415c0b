// Package rest exposes the engine over HTTP.
package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"loom-backend/interfaces/http/rest/handlers"
	"loom-backend/interfaces/http/rest/middleware"
	"loom-backend/pkg/common"
)

// Handlers collects everything the router mounts
type Handlers struct {
	Trees  *handlers.TreeHandler
	Nodes  *handlers.NodeHandler
	Paths  *handlers.PathHandler
	Turns  *handlers.TurnHandler
	Edges  *handlers.EdgeHandler
	Agents *handlers.AgentHandler
}

// Router creates and configures the HTTP router
type Router struct {
	handlers   Handlers
	enableCORS bool
	logger     *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(h Handlers, enableCORS bool, logger *zap.Logger) *Router {
	return &Router{handlers: h, enableCORS: enableCORS, logger: logger}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))

	if rt.enableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.healthCheck)

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/trees", func(r chi.Router) {
			r.Post("/", rt.handlers.Trees.CreateTree)
			r.Get("/", rt.handlers.Trees.ListTrees)
			r.Get("/{treeID}", rt.handlers.Trees.GetTree)
			r.Post("/{treeID}/archive", rt.handlers.Trees.ArchiveTree)
			r.Get("/{treeID}/integrity", rt.handlers.Trees.CheckIntegrity)
			r.Get("/{treeID}/nodes/{localID}", rt.handlers.Nodes.GetNodeByLocalID)
		})

		r.Route("/nodes", func(r chi.Router) {
			r.Get("/{nodeID}", rt.handlers.Nodes.GetNode)
			r.Get("/{nodeID}/children", rt.handlers.Nodes.ListChildren)
			r.Post("/{nodeID}/edit", rt.handlers.Nodes.EditNode)
			r.Patch("/{nodeID}/metadata", rt.handlers.Nodes.UpdateMetadata)
			r.Get("/{nodeID}/provenance", rt.handlers.Nodes.VerifyProvenance)
		})

		r.Route("/edges", func(r chi.Router) {
			r.Post("/", rt.handlers.Edges.CreateEdge)
			r.Post("/{edgeID}/sources", rt.handlers.Edges.AddSource)
			r.Delete("/{edgeID}/sources/{nodeID}", rt.handlers.Edges.RemoveSource)
		})

		r.Route("/paths", func(r chi.Router) {
			r.Get("/{pathID}", rt.handlers.Paths.GetPath)
			r.Get("/{pathID}/state", rt.handlers.Paths.GetState)
			r.Get("/{pathID}/ancestry/{nodeID}", rt.handlers.Paths.GetAncestry)
			r.Post("/{pathID}/truncate", rt.handlers.Paths.Truncate)
			r.Post("/{pathID}/switch", rt.handlers.Paths.SwitchBranch)
			r.Put("/{pathID}/selections", rt.handlers.Paths.UpsertSelection)
			r.Delete("/{pathID}/selections/{targetNodeID}", rt.handlers.Paths.DeleteSelection)
			r.Put("/{pathID}/active-node", rt.handlers.Paths.SetActiveNode)
			r.Post("/{pathID}/turns", rt.handlers.Turns.SendTurn)
		})

		r.Route("/agents", func(r chi.Router) {
			r.Post("/", rt.handlers.Agents.CreateAgent)
			r.Get("/", rt.handlers.Agents.ListAgents)
			r.Get("/{agentID}", rt.handlers.Agents.GetAgent)
		})
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, _ *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
