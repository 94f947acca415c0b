package sqlite

import (
	"context"
	"database/sql"

	"loom-backend/domain/core/entities"
	"loom-backend/domain/core/valueobjects"
	pkgerrors "loom-backend/pkg/errors"
)

// NodeRepository is a SQLite-backed ports.NodeRepository
type NodeRepository struct {
	db *sql.DB
}

// NewNodeRepository creates a node repository over db
func NewNodeRepository(db *sql.DB) *NodeRepository {
	return &NodeRepository{db: db}
}

const nodeColumns = `id, tree_id, local_id, content_kind, content_text,
	author_agent_id, author_type, content_hash, created_at, edited_from,
	bookmarked, bookmark_label, pruned, excluded, summary`

// Save upserts a node row. The immutable core never changes in place;
// updates only ever touch the metadata columns.
func (r *NodeRepository) Save(ctx context.Context, node *entities.Node) error {
	var editedFrom sql.NullString
	if f := node.EditedFrom(); f != nil {
		editedFrom = sql.NullString{String: f.String(), Valid: true}
	}
	meta := node.Metadata()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO nodes (`+nodeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			bookmarked = excluded.bookmarked,
			bookmark_label = excluded.bookmark_label,
			pruned = excluded.pruned,
			excluded = excluded.excluded,
			summary = excluded.summary`,
		node.ID().String(), node.TreeID().String(), node.LocalID(),
		string(node.Content().Kind()), node.Content().Text(),
		node.AuthorAgentID().String(), string(node.AuthorType()),
		node.ContentHash().String(), encodeTime(node.CreatedAt()), editedFrom,
		meta.Bookmarked, meta.BookmarkLabel, meta.Pruned, meta.Excluded,
		node.Summary(),
	)
	if err != nil {
		return pkgerrors.NewDatabaseError("save node", err)
	}
	return nil
}

func scanNode(row interface{ Scan(...interface{}) error }) (*entities.Node, error) {
	var (
		id, treeID, localID, contentKind, contentText string
		authorAgentID, authorType, contentHash        string
		createdAt                                     string
		editedFrom                                    sql.NullString
		meta                                          entities.NodeMetadata
		summary                                       string
	)
	err := row.Scan(&id, &treeID, &localID, &contentKind, &contentText,
		&authorAgentID, &authorType, &contentHash, &createdAt, &editedFrom,
		&meta.Bookmarked, &meta.BookmarkLabel, &meta.Pruned, &meta.Excluded,
		&summary)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.NewNotFoundError("node")
	}
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("scan node", err)
	}

	nodeID, err := valueobjects.NewNodeIDFromString(id)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("decode node id", err)
	}
	tID, err := valueobjects.NewTreeIDFromString(treeID)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("decode tree id", err)
	}
	agentID, err := valueobjects.NewAgentIDFromString(authorAgentID)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("decode agent id", err)
	}
	hash, err := valueobjects.NewContentHashFromString(contentHash)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("decode content hash", err)
	}
	created, err := decodeTime(createdAt)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("decode created_at", err)
	}
	var editedFromID *valueobjects.NodeID
	if editedFrom.Valid {
		v, err := valueobjects.NewNodeIDFromString(editedFrom.String)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("decode edited_from", err)
		}
		editedFromID = &v
	}

	content := valueobjects.ReconstructContent(valueobjects.ContentKind(contentKind), contentText)
	return entities.ReconstructNode(nodeID, tID, localID, content, agentID,
		entities.AuthorType(authorType), hash, created, editedFromID, meta, summary), nil
}

// GetByID retrieves a node by its ID
func (r *NodeRepository) GetByID(ctx context.Context, id valueobjects.NodeID) (*entities.Node, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE id = ?`, id.String())
	return scanNode(row)
}

// GetByTreeID retrieves all nodes of a tree ordered by creation time
func (r *NodeRepository) GetByTreeID(ctx context.Context, treeID valueobjects.TreeID) ([]*entities.Node, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE tree_id = ? ORDER BY created_at, id`,
		treeID.String())
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("list nodes", err)
	}
	defer rows.Close()

	var out []*entities.Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, node)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewDatabaseError("list nodes", err)
	}
	return out, nil
}

// GetByLocalID resolves a short tree-unique identifier
func (r *NodeRepository) GetByLocalID(ctx context.Context, treeID valueobjects.TreeID, localID string) (*entities.Node, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE tree_id = ? AND local_id = ?`,
		treeID.String(), localID)
	return scanNode(row)
}

// ExistsLocalID reports whether a localID is taken within a tree
func (r *NodeRepository) ExistsLocalID(ctx context.Context, treeID valueobjects.TreeID, localID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM nodes WHERE tree_id = ? AND local_id = ?`,
		treeID.String(), localID).Scan(&n)
	if err != nil {
		return false, pkgerrors.NewDatabaseError("check local id", err)
	}
	return n > 0, nil
}

// Delete removes a node
func (r *NodeRepository) Delete(ctx context.Context, id valueobjects.NodeID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id.String())
	if err != nil {
		return pkgerrors.NewDatabaseError("delete node", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pkgerrors.NewNotFoundError("node")
	}
	return nil
}
