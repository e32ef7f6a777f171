package services

import (
	"strings"

	"literature-flow/domain/core/entities"
	"literature-flow/domain/core/valueobjects"
	pkgerrors "literature-flow/pkg/errors"
)

// InsightDraft holds the user's pending aggregation of concepts
type InsightDraft struct {
	Title            string   `json:"title"`
	Details          string   `json:"details,omitempty"`
	SourceConceptIDs []string `json:"sourceConceptIds"`
}

// NodeLookup finds a node by id
type NodeLookup func(id string) (*entities.Node, bool)

// BuildInsight creates the insight node and one supports edge from each
// selected concept to it. Nothing is stored.
func BuildInsight(draft InsightDraft, lookup NodeLookup) (*entities.Node, []*entities.Edge, error) {
	if len(draft.SourceConceptIDs) == 0 {
		return nil, nil, pkgerrors.NewValidationError("an insight needs at least one selected concept")
	}
	title := strings.TrimSpace(draft.Title)
	if title == "" {
		return nil, nil, pkgerrors.NewValidationError("insight title is required")
	}

	seen := make(map[string]bool, len(draft.SourceConceptIDs))
	conceptIDs := make([]string, 0, len(draft.SourceConceptIDs))
	for _, id := range draft.SourceConceptIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		concept, ok := lookup(id)
		if !ok {
			return nil, nil, pkgerrors.NewNotFoundError("concept " + id)
		}
		if !concept.Type.IsConceptLike() {
			return nil, nil, pkgerrors.NewValidationError("node " + id + " is not a concept-like node")
		}
		conceptIDs = append(conceptIDs, id)
	}

	insight, err := entities.NewNode(valueobjects.NewID(), valueobjects.NodeTypeInsight, title, entities.InsightPayload{
		SourceConceptIDs: conceptIDs,
	})
	if err != nil {
		return nil, nil, err
	}
	insight.Details = strings.TrimSpace(draft.Details)

	edges := make([]*entities.Edge, 0, len(conceptIDs))
	for _, id := range conceptIDs {
		edge, err := entities.NewEdge(id, insight.ID, valueobjects.EdgeTypeSupports, "")
		if err != nil {
			return nil, nil, err
		}
		edges = append(edges, edge)
	}
	return insight, edges, nil
}
