package sqlite

import (
	"context"
	"database/sql"

	"loom-backend/domain/core/aggregates"
	"loom-backend/domain/core/valueobjects"
	pkgerrors "loom-backend/pkg/errors"
)

// TreeRepository is a SQLite-backed ports.TreeRepository
type TreeRepository struct {
	db *sql.DB
}

// NewTreeRepository creates a tree repository over db
func NewTreeRepository(db *sql.DB) *TreeRepository {
	return &TreeRepository{db: db}
}

// Save upserts a tree row
func (r *TreeRepository) Save(ctx context.Context, tree *aggregates.LoomTree) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO trees (id, root_node_id, mode, title, description, system_context, archived, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			system_context = excluded.system_context,
			archived = excluded.archived,
			updated_at = excluded.updated_at`,
		tree.ID().String(), tree.RootNodeID().String(), string(tree.Mode()),
		tree.Title(), tree.Description(), tree.SystemContext(),
		tree.IsArchived(), encodeTime(tree.CreatedAt()), encodeTime(tree.UpdatedAt()))
	if err != nil {
		return pkgerrors.NewDatabaseError("save tree", err)
	}
	return nil
}

func scanTree(row interface{ Scan(...interface{}) error }) (*aggregates.LoomTree, error) {
	var (
		id, rootNodeID, mode, title, description, systemContext string
		archived                                                bool
		createdAt, updatedAt                                    string
	)
	err := row.Scan(&id, &rootNodeID, &mode, &title, &description,
		&systemContext, &archived, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.NewNotFoundError("tree")
	}
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("scan tree", err)
	}

	treeID, err := valueobjects.NewTreeIDFromString(id)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("decode tree id", err)
	}
	rootID, err := valueobjects.NewNodeIDFromString(rootNodeID)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("decode root node id", err)
	}
	created, err := decodeTime(createdAt)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("decode created_at", err)
	}
	updated, err := decodeTime(updatedAt)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("decode updated_at", err)
	}

	return aggregates.ReconstructLoomTree(treeID, rootID, aggregates.TreeMode(mode),
		title, description, systemContext, archived, created, updated), nil
}

// GetByID retrieves a tree by its ID
func (r *TreeRepository) GetByID(ctx context.Context, id valueobjects.TreeID) (*aggregates.LoomTree, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, root_node_id, mode, title, description, system_context, archived, created_at, updated_at
		FROM trees WHERE id = ?`, id.String())
	return scanTree(row)
}

// List retrieves all trees ordered by creation time
func (r *TreeRepository) List(ctx context.Context) ([]*aggregates.LoomTree, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, root_node_id, mode, title, description, system_context, archived, created_at, updated_at
		FROM trees ORDER BY created_at, id`)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("list trees", err)
	}
	defer rows.Close()

	var out []*aggregates.LoomTree
	for rows.Next() {
		tree, err := scanTree(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tree)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewDatabaseError("list trees", err)
	}
	return out, nil
}

// Delete removes a tree record
func (r *TreeRepository) Delete(ctx context.Context, id valueobjects.TreeID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM trees WHERE id = ?`, id.String())
	if err != nil {
		return pkgerrors.NewDatabaseError("delete tree", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pkgerrors.NewNotFoundError("tree")
	}
	return nil
}
