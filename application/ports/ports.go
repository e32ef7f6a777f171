package ports

import (
	"context"

	"literature-flow/domain/core/entities"
	"literature-flow/domain/core/valueobjects"
	"literature-flow/domain/events"
)

// GraphStore is the authoritative store for map nodes and edges
type GraphStore interface {
	ListNodes(ctx context.Context, projectID string) ([]*entities.Node, error)
	ListEdges(ctx context.Context, projectID string) ([]*entities.Edge, error)
	InsertNode(ctx context.Context, projectID string, node *entities.Node) (*entities.Node, error)
	InsertEdge(ctx context.Context, projectID string, edge *entities.Edge) (*entities.Edge, error)

	// UpdateNodePosition writes the mode-specific column and the legacy column
	UpdateNodePosition(ctx context.Context, nodeID string, pos valueobjects.Position, mode valueobjects.LayoutMode) error
}

// ProjectStore supplies project metadata
type ProjectStore interface {
	GetProject(ctx context.Context, projectID string) (*entities.Project, error)
}

// KeyValueCache is the client-side key to JSON string map
type KeyValueCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// EventPublisher publishes domain events
type EventPublisher interface {
	Publish(ctx context.Context, events []events.DomainEvent) error
}

// Notifier receives non-blocking failure notices for the user
type Notifier interface {
	Notify(notice Notice)
}

// Notice is a user-facing message about a failed background operation
type Notice struct {
	Operation string `json:"operation"`
	Message   string `json:"message"`
}
