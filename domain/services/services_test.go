package services

import (
	"testing"

	"literature-flow/domain/core/entities"
	"literature-flow/domain/core/valueobjects"
)

type nodeSpec struct {
	id       string
	nodeType valueobjects.NodeType
	notebook string
	root     bool
}

func buildNodes(t *testing.T, specs ...nodeSpec) []*entities.Node {
	t.Helper()
	nodes := make([]*entities.Node, 0, len(specs))
	for _, s := range specs {
		var payload entities.NodePayload
		switch {
		case s.nodeType == valueobjects.NodeTypeProject:
			payload = entities.ProjectPayload{IsProjectRoot: s.root}
		case s.nodeType == valueobjects.NodeTypeSource:
			payload = entities.SourcePayload{NotebookID: s.notebook}
		case s.nodeType.IsConceptLike():
			payload = entities.ConceptPayload{NotebookID: s.notebook}
		case s.nodeType == valueobjects.NodeTypeNotebook && s.notebook != "":
			payload = entities.NotebookPayload{NotebookID: s.notebook}
		}
		n, err := entities.NewNode(s.id, s.nodeType, s.id, payload)
		if err != nil {
			t.Fatalf("building node %s: %v", s.id, err)
		}
		nodes = append(nodes, n)
	}
	return nodes
}

func scenarioNodes(t *testing.T) []*entities.Node {
	return buildNodes(t,
		nodeSpec{id: "P", nodeType: valueobjects.NodeTypeProject, root: true},
		nodeSpec{id: "NB1", nodeType: valueobjects.NodeTypeNotebook},
		nodeSpec{id: "S1", nodeType: valueobjects.NodeTypeSource, notebook: "NB1"},
		nodeSpec{id: "C1", nodeType: valueobjects.NodeTypeConcept, notebook: "NB1"},
	)
}

func edge(id, source, target string, edgeType valueobjects.EdgeType) *entities.Edge {
	return &entities.Edge{ID: id, SourceID: source, TargetID: target, Type: edgeType, Strength: 1}
}
