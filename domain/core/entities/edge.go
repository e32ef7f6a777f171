package entities

import (
	"strings"
	"time"

	"literature-flow/domain/core/valueobjects"
	pkgerrors "literature-flow/pkg/errors"
)

// DefaultEdgeStrength is the weight given to edges created without one
const DefaultEdgeStrength = 1.0

// Edge is a typed, directed relationship between two nodes
type Edge struct {
	ID         string
	SourceID   string
	TargetID   string
	Type       valueobjects.EdgeType
	Annotation string
	Strength   float64
	CreatedAt  time.Time

	// Structural edges are derived from containment and never persisted
	Structural bool
}

// NewEdge creates a user-authored edge. The edge type must come from the
// relationship vocabulary.
func NewEdge(sourceID, targetID string, edgeType valueobjects.EdgeType, annotation string) (*Edge, error) {
	if sourceID == "" || targetID == "" {
		return nil, pkgerrors.NewValidationError("edge endpoints cannot be empty")
	}
	if !edgeType.IsValid() {
		return nil, pkgerrors.NewValidationError("unknown relationship type: " + string(edgeType))
	}

	return &Edge{
		ID:         valueobjects.NewID(),
		SourceID:   sourceID,
		TargetID:   targetID,
		Type:       edgeType,
		Annotation: strings.TrimSpace(annotation),
		Strength:   DefaultEdgeStrength,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// NewStructuralEdge creates a derived containment edge with a deterministic id
func NewStructuralEdge(sourceID, targetID string, edgeType valueobjects.EdgeType) *Edge {
	return &Edge{
		ID:         "structural-" + string(edgeType) + "-" + sourceID + "-" + targetID,
		SourceID:   sourceID,
		TargetID:   targetID,
		Type:       edgeType,
		Strength:   DefaultEdgeStrength,
		Structural: true,
	}
}
