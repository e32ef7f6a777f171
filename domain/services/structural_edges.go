package services

import (
	"literature-flow/domain/core/entities"
	"literature-flow/domain/core/valueobjects"
)

// StructuralEdgeSynthesizer derives the containment edges implied by node
// attributes. It never mutates its input and its edges are never stored.
type StructuralEdgeSynthesizer struct{}

// NewStructuralEdgeSynthesizer creates a new synthesizer
func NewStructuralEdgeSynthesizer() *StructuralEdgeSynthesizer {
	return &StructuralEdgeSynthesizer{}
}

// Synthesize returns root→notebook includes edges, notebook→source contains
// edges and source→concept cites edges. A nil root produces no includes edges.
func (s *StructuralEdgeSynthesizer) Synthesize(nodes []*entities.Node, root *entities.Node) []*entities.Edge {
	var (
		notebooks []*entities.Node
		sources   []*entities.Node
		citing    []*entities.Node
	)
	for _, n := range nodes {
		switch {
		case n.Type == valueobjects.NodeTypeNotebook:
			notebooks = append(notebooks, n)
		case n.Type == valueobjects.NodeTypeSource:
			sources = append(sources, n)
		case n.Type.CitesSources():
			citing = append(citing, n)
		}
	}

	var edges []*entities.Edge
	if root != nil {
		for _, nb := range notebooks {
			edges = append(edges, entities.NewStructuralEdge(root.ID, nb.ID, valueobjects.EdgeTypeIncludes))
		}
	}

	for _, src := range sources {
		if owner := OwningNotebook(src, notebooks); owner != nil {
			edges = append(edges, entities.NewStructuralEdge(owner.ID, src.ID, valueobjects.EdgeTypeContains))
		}
	}

	for _, c := range citing {
		nbID := c.NotebookID()
		if nbID == "" {
			continue
		}
		for _, src := range sources {
			if src.NotebookID() == nbID {
				edges = append(edges, entities.NewStructuralEdge(src.ID, c.ID, valueobjects.EdgeTypeCites))
			}
		}
	}
	return edges
}

// NotebookIdentity returns the identity sources refer to. Notebook nodes
// without an explicit identity are referred to by their node id.
func NotebookIdentity(nb *entities.Node) string {
	if id := nb.NotebookID(); id != "" {
		return id
	}
	return nb.ID
}

// OwningNotebook returns the first notebook whose identity matches the
// source's notebook back-reference, or nil
func OwningNotebook(src *entities.Node, notebooks []*entities.Node) *entities.Node {
	nbID := src.NotebookID()
	if nbID == "" {
		return nil
	}
	for _, nb := range notebooks {
		if NotebookIdentity(nb) == nbID {
			return nb
		}
	}
	return nil
}

// MergeEdges concatenates explicit and structural edges for rendering
func MergeEdges(explicit, structural []*entities.Edge) []*entities.Edge {
	out := make([]*entities.Edge, 0, len(explicit)+len(structural))
	out = append(out, explicit...)
	return append(out, structural...)
}
