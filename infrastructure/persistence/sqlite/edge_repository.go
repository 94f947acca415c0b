package sqlite

import (
	"context"
	"database/sql"

	"loom-backend/domain/core/entities"
	"loom-backend/domain/core/valueobjects"
	pkgerrors "loom-backend/pkg/errors"
)

// EdgeRepository is a SQLite-backed ports.EdgeRepository. An edge spans
// two tables, the edge row and its source set, so every write runs in a
// transaction.
type EdgeRepository struct {
	db *sql.DB
}

// NewEdgeRepository creates an edge repository over db
func NewEdgeRepository(db *sql.DB) *EdgeRepository {
	return &EdgeRepository{db: db}
}

// Save replaces the edge row and its full source set
func (r *EdgeRepository) Save(ctx context.Context, edge *entities.Edge) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return pkgerrors.NewDatabaseError("begin save edge", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO edges (id, tree_id, target_id, edge_type)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			target_id = excluded.target_id,
			edge_type = excluded.edge_type`,
		edge.ID().String(), edge.TreeID().String(),
		edge.TargetID().String(), string(edge.Type()))
	if err != nil {
		return pkgerrors.NewDatabaseError("save edge", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM edge_sources WHERE edge_id = ?`, edge.ID().String()); err != nil {
		return pkgerrors.NewDatabaseError("clear edge sources", err)
	}
	for i, src := range edge.Sources() {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO edge_sources (edge_id, node_id, role, ordinal)
			VALUES (?, ?, ?, ?)`,
			edge.ID().String(), src.NodeID.String(), string(src.Role), i)
		if err != nil {
			return pkgerrors.NewDatabaseError("save edge source", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return pkgerrors.NewDatabaseError("commit save edge", err)
	}
	return nil
}

func (r *EdgeRepository) loadSources(ctx context.Context, edgeID string) ([]entities.SourceRef, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT node_id, role FROM edge_sources
		WHERE edge_id = ? ORDER BY ordinal`, edgeID)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("load edge sources", err)
	}
	defer rows.Close()

	var sources []entities.SourceRef
	for rows.Next() {
		var nodeID, role string
		if err := rows.Scan(&nodeID, &role); err != nil {
			return nil, pkgerrors.NewDatabaseError("scan edge source", err)
		}
		id, err := valueobjects.NewNodeIDFromString(nodeID)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("decode source node id", err)
		}
		sources = append(sources, entities.SourceRef{NodeID: id, Role: entities.SourceRole(role)})
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewDatabaseError("load edge sources", err)
	}
	return sources, nil
}

func (r *EdgeRepository) scanEdges(ctx context.Context, rows *sql.Rows) ([]*entities.Edge, error) {
	type edgeRow struct {
		id, treeID, targetID, edgeType string
	}
	var raw []edgeRow
	for rows.Next() {
		var er edgeRow
		if err := rows.Scan(&er.id, &er.treeID, &er.targetID, &er.edgeType); err != nil {
			return nil, pkgerrors.NewDatabaseError("scan edge", err)
		}
		raw = append(raw, er)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewDatabaseError("list edges", err)
	}

	out := make([]*entities.Edge, 0, len(raw))
	for _, er := range raw {
		edge, err := r.buildEdge(ctx, er.id, er.treeID, er.targetID, er.edgeType)
		if err != nil {
			return nil, err
		}
		out = append(out, edge)
	}
	return out, nil
}

func (r *EdgeRepository) buildEdge(ctx context.Context, id, treeID, targetID, edgeType string) (*entities.Edge, error) {
	edgeID, err := valueobjects.NewEdgeIDFromString(id)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("decode edge id", err)
	}
	tID, err := valueobjects.NewTreeIDFromString(treeID)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("decode tree id", err)
	}
	target, err := valueobjects.NewNodeIDFromString(targetID)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("decode target id", err)
	}
	sources, err := r.loadSources(ctx, id)
	if err != nil {
		return nil, err
	}
	return entities.ReconstructEdge(edgeID, tID, sources, target, entities.EdgeType(edgeType)), nil
}

// GetByID retrieves an edge by its ID
func (r *EdgeRepository) GetByID(ctx context.Context, id valueobjects.EdgeID) (*entities.Edge, error) {
	var treeID, targetID, edgeType string
	err := r.db.QueryRowContext(ctx,
		`SELECT tree_id, target_id, edge_type FROM edges WHERE id = ?`,
		id.String()).Scan(&treeID, &targetID, &edgeType)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.NewNotFoundError("edge")
	}
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("get edge", err)
	}
	return r.buildEdge(ctx, id.String(), treeID, targetID, edgeType)
}

// GetByTargetID retrieves the edges converging on a node
func (r *EdgeRepository) GetByTargetID(ctx context.Context, nodeID valueobjects.NodeID) ([]*entities.Edge, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tree_id, target_id, edge_type FROM edges WHERE target_id = ? ORDER BY id`,
		nodeID.String())
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("list edges by target", err)
	}
	defer rows.Close()
	return r.scanEdges(ctx, rows)
}

// GetBySourceID retrieves the edges that list a node among their sources
func (r *EdgeRepository) GetBySourceID(ctx context.Context, nodeID valueobjects.NodeID) ([]*entities.Edge, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT e.id, e.tree_id, e.target_id, e.edge_type
		FROM edges e JOIN edge_sources s ON s.edge_id = e.id
		WHERE s.node_id = ? ORDER BY e.id`,
		nodeID.String())
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("list edges by source", err)
	}
	defer rows.Close()
	return r.scanEdges(ctx, rows)
}

// GetByTreeID retrieves all edges of a tree
func (r *EdgeRepository) GetByTreeID(ctx context.Context, treeID valueobjects.TreeID) ([]*entities.Edge, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tree_id, target_id, edge_type FROM edges WHERE tree_id = ? ORDER BY id`,
		treeID.String())
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("list edges by tree", err)
	}
	defer rows.Close()
	return r.scanEdges(ctx, rows)
}

// Delete removes an edge and its sources
func (r *EdgeRepository) Delete(ctx context.Context, id valueobjects.EdgeID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM edges WHERE id = ?`, id.String())
	if err != nil {
		return pkgerrors.NewDatabaseError("delete edge", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pkgerrors.NewNotFoundError("edge")
	}
	return nil
}
