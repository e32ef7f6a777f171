package services

import (
	"time"

	"literature-flow/domain/core/entities"
	"literature-flow/domain/core/valueobjects"
	domainservices "literature-flow/domain/services"
	pkgerrors "literature-flow/pkg/errors"
)

// ConnectionDraft is a drag-connect waiting for the user to pick a relationship
type ConnectionDraft struct {
	ID        string    `json:"id"`
	SourceID  string    `json:"sourceId"`
	TargetID  string    `json:"targetId"`
	CreatedAt time.Time `json:"createdAt"`
}

// ConnectionEditor holds at most one pending connection draft
type ConnectionEditor struct {
	lookup  domainservices.NodeLookup
	pending *ConnectionDraft
}

// NewConnectionEditor creates an editor with no pending draft
func NewConnectionEditor(lookup domainservices.NodeLookup) *ConnectionEditor {
	return &ConnectionEditor{lookup: lookup}
}

// Propose opens a draft between two loaded nodes, replacing any earlier draft
func (e *ConnectionEditor) Propose(sourceID, targetID string) (*ConnectionDraft, error) {
	if sourceID == targetID {
		return nil, pkgerrors.NewValidationError("a node cannot be connected to itself")
	}
	if _, ok := e.lookup(sourceID); !ok {
		return nil, pkgerrors.NewNotFoundError("node " + sourceID)
	}
	if _, ok := e.lookup(targetID); !ok {
		return nil, pkgerrors.NewNotFoundError("node " + targetID)
	}

	e.pending = &ConnectionDraft{
		ID:        valueobjects.NewID(),
		SourceID:  sourceID,
		TargetID:  targetID,
		CreatedAt: time.Now().UTC(),
	}
	d := *e.pending
	return &d, nil
}

// Pending returns the open draft
func (e *ConnectionEditor) Pending() (*ConnectionDraft, bool) {
	if e.pending == nil {
		return nil, false
	}
	d := *e.pending
	return &d, true
}

// Commit turns the pending draft into an edge and hands it to add. The draft
// is cleared only once add accepts the edge, so a rejected relationship or a
// vanished endpoint leaves it open for another try.
func (e *ConnectionEditor) Commit(
	draftID string,
	edgeType valueobjects.EdgeType,
	annotation string,
	add func(*entities.Edge) error,
) (*entities.Edge, error) {
	if e.pending == nil || (draftID != "" && draftID != e.pending.ID) {
		return nil, pkgerrors.NewNotFoundError("connection draft " + draftID)
	}
	edge, err := entities.NewEdge(e.pending.SourceID, e.pending.TargetID, edgeType, annotation)
	if err != nil {
		return nil, err
	}
	if add != nil {
		if err := add(edge); err != nil {
			return nil, err
		}
	}
	e.pending = nil
	return edge, nil
}

// Cancel discards the pending draft. It reports whether there was one.
func (e *ConnectionEditor) Cancel() bool {
	had := e.pending != nil
	e.pending = nil
	return had
}
