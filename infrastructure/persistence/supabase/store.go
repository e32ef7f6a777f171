// Package supabase stores the literature map in the hosted Postgres database
// through its PostgREST endpoint.
package supabase

import (
	"context"
	"fmt"

	"literature-flow/application/ports"
	"literature-flow/domain/core/entities"
	"literature-flow/domain/core/valueobjects"
	"literature-flow/infrastructure/persistence"
	pkgerrors "literature-flow/pkg/errors"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"
)

const (
	NodesTable    = "knowledge_nodes"
	EdgesTable    = "knowledge_edges"
	ProjectsTable = "projects"
)

var (
	_ ports.GraphStore   = (*Store)(nil)
	_ ports.ProjectStore = (*Store)(nil)
)

var createdAscending = &postgrest.OrderOpts{Ascending: true}

// Store implements the graph and project stores on Supabase
type Store struct {
	client *supabase.Client
	logger *zap.Logger
}

// NewClient creates a Supabase client for the service role
func NewClient(url, serviceKey string) (*supabase.Client, error) {
	client, err := supabase.NewClient(url, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return client, nil
}

// NewStore creates a store on an existing client
func NewStore(client *supabase.Client, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{client: client, logger: logger.Named("supabase")}
}

// GetProject reads the project row
func (s *Store) GetProject(ctx context.Context, projectID string) (*entities.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []persistence.ProjectRecord
	_, err := s.client.From(ProjectsTable).
		Select("id,title,hypothesis,paper_type,theme", "", false).
		Eq("id", projectID).
		ExecuteTo(&rows)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("get project", err)
	}
	if len(rows) == 0 {
		return nil, pkgerrors.NewNotFoundError("project " + projectID)
	}
	return rows[0].ToProject(), nil
}

// ListNodes reads every node of the project, oldest first. Rows that no longer
// parse are logged and skipped.
func (s *Store) ListNodes(ctx context.Context, projectID string) ([]*entities.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []persistence.NodeRecord
	_, err := s.client.From(NodesTable).
		Select("*", "", false).
		Eq("project_id", projectID).
		Order("created_at", createdAscending).
		ExecuteTo(&rows)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("list nodes", err)
	}

	nodes := make([]*entities.Node, 0, len(rows))
	for _, row := range rows {
		node, err := row.ToNode()
		if err != nil {
			s.logger.Warn("Skipping unreadable node row", zap.String("nodeID", row.ID), zap.Error(err))
			continue
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// ListEdges reads every edge of the project, oldest first
func (s *Store) ListEdges(ctx context.Context, projectID string) ([]*entities.Edge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []persistence.EdgeRecord
	_, err := s.client.From(EdgesTable).
		Select("*", "", false).
		Eq("project_id", projectID).
		Order("created_at", createdAscending).
		ExecuteTo(&rows)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("list edges", err)
	}

	edges := make([]*entities.Edge, 0, len(rows))
	for _, row := range rows {
		edge, err := row.ToEdge()
		if err != nil {
			s.logger.Warn("Skipping unreadable edge row", zap.String("edgeID", row.ID), zap.Error(err))
			continue
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

// InsertNode writes a node row and returns the stored representation
func (s *Store) InsertNode(ctx context.Context, projectID string, node *entities.Node) (*entities.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []persistence.NodeRecord
	_, err := s.client.From(NodesTable).
		Insert(persistence.NodeRecordFrom(projectID, node), false, "", "representation", "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("insert node", err)
	}
	if len(rows) == 0 {
		return node, nil
	}
	return rows[0].ToNode()
}

// InsertEdge writes an edge row and returns the stored representation
func (s *Store) InsertEdge(ctx context.Context, projectID string, edge *entities.Edge) (*entities.Edge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []persistence.EdgeRecord
	_, err := s.client.From(EdgesTable).
		Insert(persistence.EdgeRecordFrom(projectID, edge), false, "", "representation", "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("insert edge", err)
	}
	if len(rows) == 0 {
		return edge, nil
	}
	return rows[0].ToEdge()
}

// UpdateNodePosition patches the mode column and the legacy column
func (s *Store) UpdateNodePosition(ctx context.Context, nodeID string, pos valueobjects.Position, mode valueobjects.LayoutMode) error {
	patch, err := persistence.PositionUpdate(pos, mode)
	if err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var rows []persistence.NodeRecord
	_, err = s.client.From(NodesTable).
		Update(patch, "representation", "").
		Eq("id", nodeID).
		ExecuteTo(&rows)
	if err != nil {
		return pkgerrors.NewDatabaseError("update node position", err)
	}
	if len(rows) == 0 {
		return pkgerrors.NewNotFoundError("node " + nodeID)
	}

	s.logger.Debug("Node position updated",
		zap.String("nodeID", nodeID),
		zap.String("mode", string(mode)),
	)
	return nil
}
