package handlers

import (
	"loom-backend/application/queries"
	"loom-backend/domain/core/aggregates"
	"loom-backend/domain/core/entities"
)

func nodeView(node *entities.Node) queries.NodeView {
	view := queries.NodeView{
		ID:            node.ID().String(),
		TreeID:        node.TreeID().String(),
		LocalID:       node.LocalID(),
		Content:       node.Content().Text(),
		ContentKind:   string(node.Content().Kind()),
		AuthorAgentID: node.AuthorAgentID().String(),
		AuthorType:    string(node.AuthorType()),
		ContentHash:   node.ContentHash().String(),
		CreatedAt:     node.CreatedAt(),
		Bookmarked:    node.Metadata().Bookmarked,
		BookmarkLabel: node.Metadata().BookmarkLabel,
		Pruned:        node.Metadata().Pruned,
		Excluded:      node.Metadata().Excluded,
		Summary:       node.Summary(),
	}
	if from := node.EditedFrom(); from != nil {
		view.EditedFrom = from.String()
	}
	return view
}

func treeView(tree *aggregates.LoomTree, nodeCount, edgeCount int) queries.TreeView {
	return queries.TreeView{
		ID:            tree.ID().String(),
		RootNodeID:    tree.RootNodeID().String(),
		Mode:          string(tree.Mode()),
		Title:         tree.Title(),
		Description:   tree.Description(),
		SystemContext: tree.SystemContext(),
		Archived:      tree.IsArchived(),
		NodeCount:     nodeCount,
		EdgeCount:     edgeCount,
		CreatedAt:     tree.CreatedAt(),
	}
}
