package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"loom-backend/domain/core/aggregates"
	"loom-backend/domain/core/valueobjects"
	pkgerrors "loom-backend/pkg/errors"
)

// PathStateRepository is a SQLite-backed ports.PathStateRepository. The
// per-mode cursor map is small and read whole, so it lives in one JSON
// column instead of a child table.
type PathStateRepository struct {
	db *sql.DB
}

// NewPathStateRepository creates a path state repository over db
func NewPathStateRepository(db *sql.DB) *PathStateRepository {
	return &PathStateRepository{db: db}
}

// SetActiveNode updates the cursor, last writer wins
func (r *PathStateRepository) SetActiveNode(ctx context.Context, pathID valueobjects.PathID, nodeID valueobjects.NodeID, mode aggregates.TreeMode) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return pkgerrors.NewDatabaseError("begin set active node", err)
	}
	defer tx.Rollback()

	perMode := make(map[string]string)
	var raw string
	err = tx.QueryRowContext(ctx,
		`SELECT per_mode FROM path_states WHERE path_id = ?`,
		pathID.String()).Scan(&raw)
	if err != nil && err != sql.ErrNoRows {
		return pkgerrors.NewDatabaseError("get path state", err)
	}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &perMode); err != nil {
			return pkgerrors.NewDatabaseError("decode per_mode", err)
		}
	}
	if mode != "" {
		perMode[string(mode)] = nodeID.String()
	}
	encoded, err := json.Marshal(perMode)
	if err != nil {
		return pkgerrors.NewDatabaseError("encode per_mode", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO path_states (path_id, active_node_id, per_mode, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (path_id) DO UPDATE SET
			active_node_id = excluded.active_node_id,
			per_mode = excluded.per_mode,
			updated_at = excluded.updated_at`,
		pathID.String(), nodeID.String(), string(encoded), encodeTime(time.Now()))
	if err != nil {
		return pkgerrors.NewDatabaseError("set active node", err)
	}

	if err := tx.Commit(); err != nil {
		return pkgerrors.NewDatabaseError("commit set active node", err)
	}
	return nil
}

// Get retrieves the cursor for a path
func (r *PathStateRepository) Get(ctx context.Context, pathID valueobjects.PathID) (*aggregates.PathState, error) {
	var activeNodeID, raw, updatedAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT active_node_id, per_mode, updated_at FROM path_states WHERE path_id = ?`,
		pathID.String()).Scan(&activeNodeID, &raw, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.NewNotFoundError("path state")
	}
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("get path state", err)
	}

	active, err := valueobjects.NewNodeIDFromString(activeNodeID)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("decode active node id", err)
	}
	updated, err := decodeTime(updatedAt)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("decode updated_at", err)
	}

	state := &aggregates.PathState{ActiveNodeID: active, UpdatedAt: updated}
	if raw != "" && raw != "{}" {
		decoded := make(map[string]string)
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			return nil, pkgerrors.NewDatabaseError("decode per_mode", err)
		}
		state.PerMode = make(map[aggregates.TreeMode]valueobjects.NodeID, len(decoded))
		for k, v := range decoded {
			nID, err := valueobjects.NewNodeIDFromString(v)
			if err != nil {
				return nil, pkgerrors.NewDatabaseError("decode per_mode node id", err)
			}
			state.PerMode[aggregates.TreeMode(k)] = nID
		}
	}
	return state, nil
}

// Delete removes the cursor for a path
func (r *PathStateRepository) Delete(ctx context.Context, pathID valueobjects.PathID) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM path_states WHERE path_id = ?`, pathID.String()); err != nil {
		return pkgerrors.NewDatabaseError("delete path state", err)
	}
	return nil
}
