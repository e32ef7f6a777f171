package memory

import (
	"context"
	"sync"

	"literature-flow/application/ports"
	"literature-flow/domain/core/entities"
	"literature-flow/domain/core/valueobjects"
	"literature-flow/infrastructure/persistence"
	pkgerrors "literature-flow/pkg/errors"

	"go.uber.org/zap"
)

var (
	_ ports.GraphStore   = (*GraphStore)(nil)
	_ ports.ProjectStore = (*GraphStore)(nil)
)

// GraphStore is an in-process authoritative store used for local runs and tests.
// Rows are kept as records so callers never share node pointers with it.
type GraphStore struct {
	mu       sync.RWMutex
	projects map[string]persistence.ProjectRecord
	nodes    map[string][]persistence.NodeRecord
	edges    map[string][]persistence.EdgeRecord
	owner    map[string]string // node id -> project id
	logger   *zap.Logger
}

// NewGraphStore creates an empty store
func NewGraphStore(logger *zap.Logger) *GraphStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphStore{
		projects: make(map[string]persistence.ProjectRecord),
		nodes:    make(map[string][]persistence.NodeRecord),
		edges:    make(map[string][]persistence.EdgeRecord),
		owner:    make(map[string]string),
		logger:   logger.Named("memory_store"),
	}
}

// PutProject registers project metadata
func (s *GraphStore) PutProject(project entities.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[project.ID] = persistence.ProjectRecord{
		ID:         project.ID,
		Title:      project.Title,
		Hypothesis: project.Hypothesis,
		PaperType:  project.PaperType,
		Theme:      project.Theme,
	}
}

// GetProject returns project metadata
func (s *GraphStore) GetProject(ctx context.Context, projectID string) (*entities.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.projects[projectID]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("project " + projectID)
	}
	return rec.ToProject(), nil
}

// ListNodes returns the project's nodes in insertion order. Rows that no
// longer parse are skipped.
func (s *GraphStore) ListNodes(ctx context.Context, projectID string) ([]*entities.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.nodes[projectID]
	out := make([]*entities.Node, 0, len(rows))
	for _, row := range rows {
		node, err := row.ToNode()
		if err != nil {
			s.logger.Warn("Skipping unreadable node row", zap.String("nodeID", row.ID), zap.Error(err))
			continue
		}
		out = append(out, node)
	}
	return out, nil
}

// ListEdges returns the project's edges in insertion order
func (s *GraphStore) ListEdges(ctx context.Context, projectID string) ([]*entities.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.edges[projectID]
	out := make([]*entities.Edge, 0, len(rows))
	for _, row := range rows {
		edge, err := row.ToEdge()
		if err != nil {
			s.logger.Warn("Skipping unreadable edge row", zap.String("edgeID", row.ID), zap.Error(err))
			continue
		}
		out = append(out, edge)
	}
	return out, nil
}

// InsertNode stores a node. Ids are unique across projects.
func (s *GraphStore) InsertNode(ctx context.Context, projectID string, node *entities.Node) (*entities.Node, error) {
	if node == nil {
		return nil, pkgerrors.NewValidationError("node required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.owner[node.ID]; exists {
		return nil, pkgerrors.NewConflictError("node already exists: " + node.ID)
	}
	s.nodes[projectID] = append(s.nodes[projectID], persistence.NodeRecordFrom(projectID, node))
	s.owner[node.ID] = projectID
	return node, nil
}

// InsertEdge stores an edge. Endpoints are not checked, matching the hosted store.
func (s *GraphStore) InsertEdge(ctx context.Context, projectID string, edge *entities.Edge) (*entities.Edge, error) {
	if edge == nil {
		return nil, pkgerrors.NewValidationError("edge required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.edges[projectID] {
		if row.ID == edge.ID {
			return nil, pkgerrors.NewConflictError("edge already exists: " + edge.ID)
		}
	}
	s.edges[projectID] = append(s.edges[projectID], persistence.EdgeRecordFrom(projectID, edge))
	return edge, nil
}

// UpdateNodePosition writes the mode column and the legacy column
func (s *GraphStore) UpdateNodePosition(ctx context.Context, nodeID string, pos valueobjects.Position, mode valueobjects.LayoutMode) error {
	if _, err := persistence.PositionColumn(mode); err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	projectID, ok := s.owner[nodeID]
	if !ok {
		return pkgerrors.NewNotFoundError("node " + nodeID)
	}
	rows := s.nodes[projectID]
	for i := range rows {
		if rows[i].ID != nodeID {
			continue
		}
		rec := persistence.PositionRecord{X: pos.X(), Y: pos.Y()}
		legacy := rec
		if mode == valueobjects.LayoutHierarchical {
			rows[i].HierarchicalPosition = &rec
		} else {
			rows[i].SpatialPosition = &rec
		}
		rows[i].Position = &legacy
		return nil
	}
	return pkgerrors.NewNotFoundError("node " + nodeID)
}
