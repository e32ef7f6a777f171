package aggregates

import (
	"fmt"
	"time"

	"literature-flow/domain/core/entities"
	"literature-flow/domain/core/valueobjects"
	"literature-flow/domain/events"
	pkgerrors "literature-flow/pkg/errors"
)

// Graph is the in-memory graph store for one project. It is owned by a single
// map session and is the only place nodes and edges are mutated.
type Graph struct {
	projectID string
	nodes     []*entities.Node
	index     map[string]*entities.Node
	edges     []*entities.Edge
	rootID    string
	events    []events.DomainEvent
}

// NewGraph creates an empty graph for a project
func NewGraph(projectID string) (*Graph, error) {
	if projectID == "" {
		return nil, pkgerrors.NewValidationError("project id required")
	}
	return &Graph{
		projectID: projectID,
		index:     make(map[string]*entities.Node),
	}, nil
}

// ProjectID returns the owning project
func (g *Graph) ProjectID() string {
	return g.projectID
}

// Load replaces the contents of the graph. Rows that cannot be accepted are
// skipped and reported; the rest of the graph still loads. Edges are kept even
// when an endpoint is missing so a later node load can resolve them.
func (g *Graph) Load(nodes []*entities.Node, edges []*entities.Edge) []error {
	g.nodes = nil
	g.index = make(map[string]*entities.Node, len(nodes))
	g.edges = nil
	g.rootID = ""

	var skipped []error
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if err := g.AddNode(n); err != nil {
			skipped = append(skipped, fmt.Errorf("node %s skipped: %w", n.ID, err))
		}
	}
	for _, e := range edges {
		if e == nil || e.ID == "" {
			skipped = append(skipped, pkgerrors.NewValidationError("edge without id skipped"))
			continue
		}
		g.edges = append(g.edges, e)
	}
	return skipped
}

// EnsureProjectRoot manufactures a synthetic root when no node claims to be the root
func (g *Graph) EnsureProjectRoot(project entities.Project) *entities.Node {
	if root, ok := g.Root(); ok {
		return root
	}
	root := entities.NewSyntheticRoot(project)
	if existing, ok := g.index[root.ID]; ok {
		// a stored project node already uses the synthetic id; promote it
		g.rootID = existing.ID
		return existing
	}
	g.nodes = append([]*entities.Node{root}, g.nodes...)
	g.index[root.ID] = root
	g.rootID = root.ID
	return root
}

// AddNode appends a node. Duplicate ids and a second project root are rejected.
func (g *Graph) AddNode(node *entities.Node) error {
	if node == nil {
		return pkgerrors.NewValidationError("node required")
	}
	if _, exists := g.index[node.ID]; exists {
		return pkgerrors.NewConflictError("node already exists: " + node.ID)
	}
	if node.IsProjectRoot() {
		if g.rootID != "" {
			return pkgerrors.NewConflictError("project already has a root: " + g.rootID)
		}
		g.rootID = node.ID
	}
	g.nodes = append(g.nodes, node)
	g.index[node.ID] = node
	return nil
}

// AddEdge appends a user-authored edge. Both endpoints must be loaded.
func (g *Graph) AddEdge(edge *entities.Edge) error {
	if edge == nil {
		return pkgerrors.NewValidationError("edge required")
	}
	if edge.Structural {
		return pkgerrors.NewValidationError("structural edges cannot be stored")
	}
	if _, ok := g.index[edge.SourceID]; !ok {
		return pkgerrors.NewNotFoundError("node " + edge.SourceID)
	}
	if _, ok := g.index[edge.TargetID]; !ok {
		return pkgerrors.NewNotFoundError("node " + edge.TargetID)
	}
	g.edges = append(g.edges, edge)
	return nil
}

// Node returns a node by id
func (g *Graph) Node(id string) (*entities.Node, bool) {
	n, ok := g.index[id]
	return n, ok
}

// Nodes returns the nodes in load order
func (g *Graph) Nodes() []*entities.Node {
	out := make([]*entities.Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Edges returns every stored edge, including ones whose endpoints are not loaded
func (g *Graph) Edges() []*entities.Edge {
	out := make([]*entities.Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// VisibleEdges returns the stored edges whose endpoints are both loaded
func (g *Graph) VisibleEdges() []*entities.Edge {
	return ResolvableEdges(g.index, g.edges)
}

// Root returns the project root
func (g *Graph) Root() (*entities.Node, bool) {
	if g.rootID == "" {
		return nil, false
	}
	n, ok := g.index[g.rootID]
	return n, ok
}

// MoveNode records a new position for a node in one layout mode
func (g *Graph) MoveNode(id string, mode valueobjects.LayoutMode, pos valueobjects.Position) error {
	n, ok := g.index[id]
	if !ok {
		return pkgerrors.NewNotFoundError("node " + id)
	}
	if err := n.SetPosition(mode, pos); err != nil {
		return err
	}
	g.RecordEvent(events.NewNodeMoved(g.projectID, id, mode, pos, time.Now().UTC()))
	return nil
}

// Len returns the number of loaded nodes
func (g *Graph) Len() int {
	return len(g.nodes)
}

// RecordEvent queues a domain event for publication
func (g *Graph) RecordEvent(event events.DomainEvent) {
	g.events = append(g.events, event)
}

// PullEvents returns the queued events and clears the queue
func (g *Graph) PullEvents() []events.DomainEvent {
	out := g.events
	g.events = nil
	return out
}

// ResolvableEdges filters out edges that reference nodes absent from the index
func ResolvableEdges(index map[string]*entities.Node, edges []*entities.Edge) []*entities.Edge {
	out := make([]*entities.Edge, 0, len(edges))
	for _, e := range edges {
		if _, ok := index[e.SourceID]; !ok {
			continue
		}
		if _, ok := index[e.TargetID]; !ok {
			continue
		}
		out = append(out, e)
	}
	return out
}
