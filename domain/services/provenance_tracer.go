package services

import (
	"literature-flow/domain/core/entities"
	"literature-flow/domain/core/valueobjects"
)

// DefaultMaxPaths bounds the number of paths a single trace collects
const DefaultMaxPaths = 512

// Path is one provenance chain, ordered from the query node to its terminal node.
// Edges[i] connects Nodes[i+1] to Nodes[i].
type Path struct {
	Nodes  []string
	Edges  []string
	Orphan bool
}

// Terminal returns the last node of the path
func (p Path) Terminal() string {
	if len(p.Nodes) == 0 {
		return ""
	}
	return p.Nodes[len(p.Nodes)-1]
}

// ProvenanceTracer walks parent edges from a node up to the project root.
// An edge is a parent edge of N when N is its target.
type ProvenanceTracer struct {
	index    map[string]*entities.Node
	parents  map[string][]*entities.Edge
	maxPaths int
}

// NewProvenanceTracer indexes nodes and edges. Edges referencing unknown nodes are ignored.
func NewProvenanceTracer(nodes []*entities.Node, edges []*entities.Edge) *ProvenanceTracer {
	index := make(map[string]*entities.Node, len(nodes))
	for _, n := range nodes {
		index[n.ID] = n
	}
	parents := make(map[string][]*entities.Edge)
	for _, e := range edges {
		if _, ok := index[e.SourceID]; !ok {
			continue
		}
		if _, ok := index[e.TargetID]; !ok {
			continue
		}
		parents[e.TargetID] = append(parents[e.TargetID], e)
	}
	return &ProvenanceTracer{index: index, parents: parents, maxPaths: DefaultMaxPaths}
}

// WithMaxPaths overrides the per-trace path limit
func (t *ProvenanceTracer) WithMaxPaths(n int) *ProvenanceTracer {
	if n > 0 {
		t.maxPaths = n
	}
	return t
}

// FindPathsToRoot returns every terminated node-id sequence starting at nodeID
func (t *ProvenanceTracer) FindPathsToRoot(nodeID string) [][]string {
	paths := t.Trace(nodeID)
	if len(paths) == 0 {
		return nil
	}
	out := make([][]string, len(paths))
	for i, p := range paths {
		out[i] = p.Nodes
	}
	return out
}

// Trace runs a depth-first search over parent edges. A path completes at a
// project node; a node with no parents ends an orphan path which is recorded
// as well. A branch that can only continue into a node already on the path
// records nothing.
func (t *ProvenanceTracer) Trace(nodeID string) []Path {
	if _, ok := t.index[nodeID]; !ok {
		return nil
	}

	var paths []Path
	visited := map[string]bool{nodeID: true}
	nodes := []string{nodeID}
	var edges []string

	var walk func(current string)
	walk = func(current string) {
		if len(paths) >= t.maxPaths {
			return
		}
		if t.index[current].Type == valueobjects.NodeTypeProject {
			paths = append(paths, snapshot(nodes, edges, false))
			return
		}
		parents := t.parents[current]
		if len(parents) == 0 {
			paths = append(paths, snapshot(nodes, edges, true))
			return
		}
		for _, e := range parents {
			if visited[e.SourceID] {
				continue
			}
			visited[e.SourceID] = true
			nodes = append(nodes, e.SourceID)
			edges = append(edges, e.ID)

			walk(e.SourceID)

			nodes = nodes[:len(nodes)-1]
			edges = edges[:len(edges)-1]
			delete(visited, e.SourceID)
		}
	}
	walk(nodeID)
	return paths
}

// Label returns the display label of a traced node
func (t *ProvenanceTracer) Label(nodeID string) string {
	if n, ok := t.index[nodeID]; ok {
		return n.Label()
	}
	return nodeID
}

func snapshot(nodes, edges []string, orphan bool) Path {
	return Path{
		Nodes:  append([]string(nil), nodes...),
		Edges:  append([]string(nil), edges...),
		Orphan: orphan,
	}
}

// HighlightSet is the union of node and edge ids on traced paths
type HighlightSet struct {
	NodeIDs map[string]struct{}
	EdgeIDs map[string]struct{}
}

// NewHighlightSet returns an empty highlight set
func NewHighlightSet() HighlightSet {
	return HighlightSet{
		NodeIDs: make(map[string]struct{}),
		EdgeIDs: make(map[string]struct{}),
	}
}

// Add merges a path into the set
func (h HighlightSet) Add(p Path) {
	for _, id := range p.Nodes {
		h.NodeIDs[id] = struct{}{}
	}
	for _, id := range p.Edges {
		h.EdgeIDs[id] = struct{}{}
	}
}

// HasNode reports whether a node is highlighted
func (h HighlightSet) HasNode(id string) bool {
	_, ok := h.NodeIDs[id]
	return ok
}

// HasEdge reports whether an edge is highlighted
func (h HighlightSet) HasEdge(id string) bool {
	_, ok := h.EdgeIDs[id]
	return ok
}

// Empty reports whether nothing is highlighted
func (h HighlightSet) Empty() bool {
	return len(h.NodeIDs) == 0 && len(h.EdgeIDs) == 0
}
