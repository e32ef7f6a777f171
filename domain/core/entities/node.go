package entities

import (
	"strings"

	"literature-flow/domain/core/valueobjects"
	pkgerrors "literature-flow/pkg/errors"
)

// Node is a typed vertex of a project's knowledge graph. Attributes that only
// some node types carry live in Payload, whose concrete type is keyed by Type.
type Node struct {
	ID      string
	Type    valueobjects.NodeType
	Title   string
	Details string
	Payload NodePayload

	// Synthetic nodes exist only for the current session and have no database row
	Synthetic bool

	hierarchical *valueobjects.Position
	spatial      *valueobjects.Position

	// legacy mirrors whichever mode last wrote, for readers expecting a single position
	legacy *valueobjects.Position
}

// NodePayload is the per-type variant carried by a node
type NodePayload interface {
	nodePayload()
}

// ProjectPayload belongs to project nodes
type ProjectPayload struct {
	IsProjectRoot bool
	Hypothesis    string
	PaperType     string
	Theme         string
}

// NotebookPayload belongs to notebook nodes; NotebookID is the notebook's own record identity
type NotebookPayload struct {
	NotebookID string
}

// SourcePayload belongs to source nodes
type SourcePayload struct {
	NotebookID string
	URL        string
}

// ConceptPayload belongs to concept, hypothesis, gap and discrepancy nodes
type ConceptPayload struct {
	NotebookID      string
	ConceptSource   string
	ConfidenceScore *float64
}

// InsightPayload belongs to insight nodes
type InsightPayload struct {
	SourceConceptIDs []string
}

func (ProjectPayload) nodePayload()  {}
func (NotebookPayload) nodePayload() {}
func (SourcePayload) nodePayload()   {}
func (ConceptPayload) nodePayload()  {}
func (InsightPayload) nodePayload()  {}

// NewNode creates a node after checking that the payload matches the type
func NewNode(id string, nodeType valueobjects.NodeType, title string, payload NodePayload) (*Node, error) {
	if strings.TrimSpace(id) == "" {
		return nil, pkgerrors.NewValidationError("node id cannot be empty")
	}
	if !nodeType.IsValid() {
		return nil, pkgerrors.NewValidationError("unknown node type: " + string(nodeType))
	}
	if err := checkPayload(nodeType, payload); err != nil {
		return nil, err
	}
	if c, ok := payload.(ConceptPayload); ok && c.ConfidenceScore != nil {
		if score := *c.ConfidenceScore; score < 0 || score > 1 {
			return nil, pkgerrors.NewValidationError("confidence score must be within [0,1]")
		}
	}

	return &Node{
		ID:      id,
		Type:    nodeType,
		Title:   title,
		Payload: payload,
	}, nil
}

func checkPayload(nodeType valueobjects.NodeType, payload NodePayload) error {
	if payload == nil {
		return nil
	}
	var ok bool
	switch nodeType {
	case valueobjects.NodeTypeProject:
		_, ok = payload.(ProjectPayload)
	case valueobjects.NodeTypeNotebook:
		_, ok = payload.(NotebookPayload)
	case valueobjects.NodeTypeSource:
		_, ok = payload.(SourcePayload)
	case valueobjects.NodeTypeInsight:
		_, ok = payload.(InsightPayload)
	case valueobjects.NodeTypePublication:
		ok = false
	default:
		_, ok = payload.(ConceptPayload)
	}
	if !ok {
		return pkgerrors.NewValidationError("payload does not match node type " + string(nodeType))
	}
	return nil
}

// IsProjectRoot reports whether this node is the project's root
func (n *Node) IsProjectRoot() bool {
	p, ok := n.Payload.(ProjectPayload)
	return ok && p.IsProjectRoot
}

// NotebookID returns the notebook this node belongs to. For notebook nodes it
// is the notebook's own identity.
func (n *Node) NotebookID() string {
	switch p := n.Payload.(type) {
	case NotebookPayload:
		return p.NotebookID
	case SourcePayload:
		return p.NotebookID
	case ConceptPayload:
		return p.NotebookID
	default:
		return ""
	}
}

// ConfidenceScore returns the confidence of concept-like nodes
func (n *Node) ConfidenceScore() (float64, bool) {
	if p, ok := n.Payload.(ConceptPayload); ok && p.ConfidenceScore != nil {
		return *p.ConfidenceScore, true
	}
	return 0, false
}

// ConceptSource returns the free-text provenance of concept-like nodes
func (n *Node) ConceptSource() string {
	if p, ok := n.Payload.(ConceptPayload); ok {
		return p.ConceptSource
	}
	return ""
}

// PositionFor returns the stored position for a layout mode
func (n *Node) PositionFor(mode valueobjects.LayoutMode) (valueobjects.Position, bool) {
	var p *valueobjects.Position
	switch mode {
	case valueobjects.LayoutHierarchical:
		p = n.hierarchical
	case valueobjects.LayoutSpatial:
		p = n.spatial
	}
	if p == nil {
		return valueobjects.Position{}, false
	}
	return *p, true
}

// LegacyPosition returns the single mirrored position, if any mode has written one
func (n *Node) LegacyPosition() (valueobjects.Position, bool) {
	if n.legacy == nil {
		return valueobjects.Position{}, false
	}
	return *n.legacy, true
}

// SetPosition stores a position for one mode and mirrors it into the legacy slot.
// The other mode's position is left untouched.
func (n *Node) SetPosition(mode valueobjects.LayoutMode, pos valueobjects.Position) error {
	p := pos
	switch mode {
	case valueobjects.LayoutHierarchical:
		n.hierarchical = &p
	case valueobjects.LayoutSpatial:
		n.spatial = &p
	default:
		return pkgerrors.NewValidationError("unknown layout mode: " + string(mode))
	}
	legacy := pos
	n.legacy = &legacy
	return nil
}

// RestorePositions sets all position slots from persisted data without mirroring
func (n *Node) RestorePositions(hierarchical, spatial, legacy *valueobjects.Position) {
	n.hierarchical = copyPosition(hierarchical)
	n.spatial = copyPosition(spatial)
	n.legacy = copyPosition(legacy)
}

// Positions returns copies of all position slots
func (n *Node) Positions() (hierarchical, spatial, legacy *valueobjects.Position) {
	return copyPosition(n.hierarchical), copyPosition(n.spatial), copyPosition(n.legacy)
}

// Label returns a human-readable label for path listings
func (n *Node) Label() string {
	if strings.TrimSpace(n.Title) != "" {
		return n.Title
	}
	return string(n.Type) + " " + n.ID
}

// Clone returns a deep copy of the node
func (n *Node) Clone() *Node {
	c := *n
	c.hierarchical, c.spatial, c.legacy = n.Positions()
	switch p := n.Payload.(type) {
	case ConceptPayload:
		if p.ConfidenceScore != nil {
			score := *p.ConfidenceScore
			p.ConfidenceScore = &score
		}
		c.Payload = p
	case InsightPayload:
		p.SourceConceptIDs = append([]string(nil), p.SourceConceptIDs...)
		c.Payload = p
	}
	return &c
}

func copyPosition(p *valueobjects.Position) *valueobjects.Position {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
