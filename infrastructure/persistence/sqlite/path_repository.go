package sqlite

import (
	"context"
	"database/sql"

	"loom-backend/domain/core/aggregates"
	"loom-backend/domain/core/valueobjects"
	pkgerrors "loom-backend/pkg/errors"
)

// PathRepository is a SQLite-backed ports.PathRepository. Sequence
// mutations run in a transaction so a reader sees either the old suffix
// or the new one, never a gap.
type PathRepository struct {
	db *sql.DB
}

// NewPathRepository creates a path repository over db
func NewPathRepository(db *sql.DB) *PathRepository {
	return &PathRepository{db: db}
}

// Save stores a new path with its entries and selections
func (r *PathRepository) Save(ctx context.Context, path *aggregates.Path) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return pkgerrors.NewDatabaseError("begin save path", err)
	}
	defer tx.Rollback()

	var existing int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM paths WHERE id = ?`, path.ID().String()).Scan(&existing); err != nil {
		return pkgerrors.NewDatabaseError("check path", err)
	}
	if existing > 0 {
		return pkgerrors.NewConflictError("path already exists")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO paths (id, tree_id, agent_id, created_at)
		VALUES (?, ?, ?, ?)`,
		path.ID().String(), path.TreeID().String(),
		path.AgentID().String(), encodeTime(path.CreatedAt()))
	if err != nil {
		return pkgerrors.NewDatabaseError("save path", err)
	}

	for _, entry := range path.Entries() {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO path_entries (path_id, position, node_id)
			VALUES (?, ?, ?)`,
			path.ID().String(), entry.Position, entry.NodeID.String())
		if err != nil {
			return pkgerrors.NewDatabaseError("save path entry", err)
		}
	}
	for _, sel := range path.Selections() {
		if err := upsertSelectionTx(ctx, tx, path.ID(), sel); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return pkgerrors.NewDatabaseError("commit save path", err)
	}
	return nil
}

func upsertSelectionTx(ctx context.Context, tx *sql.Tx, pathID valueobjects.PathID, sel aggregates.PathSelection) error {
	var edgeID, sourceID sql.NullString
	if sel.SelectedEdgeID != nil {
		edgeID = sql.NullString{String: sel.SelectedEdgeID.String(), Valid: true}
	}
	if sel.SelectedSourceNodeID != nil {
		sourceID = sql.NullString{String: sel.SelectedSourceNodeID.String(), Valid: true}
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO path_selections (path_id, target_node_id, selected_edge_id, selected_source_node_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (path_id, target_node_id) DO UPDATE SET
			selected_edge_id = excluded.selected_edge_id,
			selected_source_node_id = excluded.selected_source_node_id`,
		pathID.String(), sel.TargetNodeID.String(), edgeID, sourceID)
	if err != nil {
		return pkgerrors.NewDatabaseError("save path selection", err)
	}
	return nil
}

func (r *PathRepository) loadPath(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
}, id valueobjects.PathID) (*aggregates.Path, error) {
	var treeID, agentID, createdAt string
	err := q.QueryRowContext(ctx,
		`SELECT tree_id, agent_id, created_at FROM paths WHERE id = ?`,
		id.String()).Scan(&treeID, &agentID, &createdAt)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.NewNotFoundError("path")
	}
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("get path", err)
	}

	tID, err := valueobjects.NewTreeIDFromString(treeID)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("decode tree id", err)
	}
	aID, err := valueobjects.NewAgentIDFromString(agentID)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("decode agent id", err)
	}
	created, err := decodeTime(createdAt)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("decode created_at", err)
	}

	entryRows, err := q.QueryContext(ctx, `
		SELECT position, node_id FROM path_entries
		WHERE path_id = ? ORDER BY position`, id.String())
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("load path entries", err)
	}
	defer entryRows.Close()

	var entries []aggregates.PathNode
	for entryRows.Next() {
		var position int
		var nodeID string
		if err := entryRows.Scan(&position, &nodeID); err != nil {
			return nil, pkgerrors.NewDatabaseError("scan path entry", err)
		}
		nID, err := valueobjects.NewNodeIDFromString(nodeID)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("decode entry node id", err)
		}
		entries = append(entries, aggregates.PathNode{Position: position, NodeID: nID})
	}
	if err := entryRows.Err(); err != nil {
		return nil, pkgerrors.NewDatabaseError("load path entries", err)
	}

	selRows, err := q.QueryContext(ctx, `
		SELECT target_node_id, selected_edge_id, selected_source_node_id
		FROM path_selections WHERE path_id = ?`, id.String())
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("load path selections", err)
	}
	defer selRows.Close()

	var selections []aggregates.PathSelection
	for selRows.Next() {
		var target string
		var edgeID, sourceID sql.NullString
		if err := selRows.Scan(&target, &edgeID, &sourceID); err != nil {
			return nil, pkgerrors.NewDatabaseError("scan path selection", err)
		}
		sel := aggregates.PathSelection{}
		sel.TargetNodeID, err = valueobjects.NewNodeIDFromString(target)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("decode selection target", err)
		}
		if edgeID.Valid {
			v, err := valueobjects.NewEdgeIDFromString(edgeID.String)
			if err != nil {
				return nil, pkgerrors.NewDatabaseError("decode selection edge", err)
			}
			sel.SelectedEdgeID = &v
		}
		if sourceID.Valid {
			v, err := valueobjects.NewNodeIDFromString(sourceID.String)
			if err != nil {
				return nil, pkgerrors.NewDatabaseError("decode selection source", err)
			}
			sel.SelectedSourceNodeID = &v
		}
		selections = append(selections, sel)
	}
	if err := selRows.Err(); err != nil {
		return nil, pkgerrors.NewDatabaseError("load path selections", err)
	}

	return aggregates.ReconstructPath(id, tID, aID, entries, selections, created)
}

// GetByID retrieves a path by its ID
func (r *PathRepository) GetByID(ctx context.Context, id valueobjects.PathID) (*aggregates.Path, error) {
	return r.loadPath(ctx, r.db, id)
}

// GetByTreeID retrieves all paths over a tree
func (r *PathRepository) GetByTreeID(ctx context.Context, treeID valueobjects.TreeID) ([]*aggregates.Path, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM paths WHERE tree_id = ? ORDER BY id`, treeID.String())
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("list paths", err)
	}
	defer rows.Close()

	var ids []valueobjects.PathID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, pkgerrors.NewDatabaseError("scan path id", err)
		}
		pID, err := valueobjects.NewPathIDFromString(id)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("decode path id", err)
		}
		ids = append(ids, pID)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewDatabaseError("list paths", err)
	}

	out := make([]*aggregates.Path, 0, len(ids))
	for _, id := range ids {
		path, err := r.loadPath(ctx, r.db, id)
		if err != nil {
			return nil, err
		}
		out = append(out, path)
	}
	return out, nil
}

// mutate loads the aggregate inside a transaction, applies the domain
// operation and rewrites the entry rows it changed.
func (r *PathRepository) mutate(ctx context.Context, id valueobjects.PathID, fn func(*aggregates.Path) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return pkgerrors.NewDatabaseError("begin path mutation", err)
	}
	defer tx.Rollback()

	path, err := r.loadPath(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := fn(path); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM path_entries WHERE path_id = ?`, id.String()); err != nil {
		return pkgerrors.NewDatabaseError("rewrite path entries", err)
	}
	for _, entry := range path.Entries() {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO path_entries (path_id, position, node_id)
			VALUES (?, ?, ?)`,
			id.String(), entry.Position, entry.NodeID.String())
		if err != nil {
			return pkgerrors.NewDatabaseError("rewrite path entry", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM path_selections WHERE path_id = ?`, id.String()); err != nil {
		return pkgerrors.NewDatabaseError("rewrite path selections", err)
	}
	for _, sel := range path.Selections() {
		if err := upsertSelectionTx(ctx, tx, id, sel); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return pkgerrors.NewDatabaseError("commit path mutation", err)
	}
	return nil
}

// AppendNode adds one entry at position = current length
func (r *PathRepository) AppendNode(ctx context.Context, id valueobjects.PathID, nodeID valueobjects.NodeID) error {
	return r.mutate(ctx, id, func(p *aggregates.Path) error {
		return p.AppendNode(nodeID)
	})
}

// Truncate discards entries at positions >= newLength
func (r *PathRepository) Truncate(ctx context.Context, id valueobjects.PathID, newLength int) error {
	return r.mutate(ctx, id, func(p *aggregates.Path) error {
		return p.Truncate(newLength)
	})
}

// ReplaceSuffix atomically swaps the suffix starting at startPosition
func (r *PathRepository) ReplaceSuffix(ctx context.Context, id valueobjects.PathID, startPosition int, nodeIDs []valueobjects.NodeID) error {
	return r.mutate(ctx, id, func(p *aggregates.Path) error {
		return p.ReplaceSuffix(startPosition, nodeIDs)
	})
}

// UpsertSelection records a decision-point choice for the path
func (r *PathRepository) UpsertSelection(ctx context.Context, id valueobjects.PathID, sel aggregates.PathSelection) error {
	return r.mutate(ctx, id, func(p *aggregates.Path) error {
		return p.UpsertSelection(sel)
	})
}

// DeleteSelection clears a decision-point choice
func (r *PathRepository) DeleteSelection(ctx context.Context, id valueobjects.PathID, targetNodeID valueobjects.NodeID) error {
	return r.mutate(ctx, id, func(p *aggregates.Path) error {
		return p.DeleteSelection(targetNodeID)
	})
}

// Delete removes a path with its entries and selections
func (r *PathRepository) Delete(ctx context.Context, id valueobjects.PathID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM paths WHERE id = ?`, id.String())
	if err != nil {
		return pkgerrors.NewDatabaseError("delete path", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pkgerrors.NewNotFoundError("path")
	}
	return nil
}
