// Package persistence holds the row shapes shared by the store adapters and
// the decorators that wrap them.
package persistence

import (
	"fmt"
	"time"

	"literature-flow/domain/core/entities"
	"literature-flow/domain/core/valueobjects"
)

// PositionRecord is a stored {x,y} pair
type PositionRecord struct {
	X float64 `json:"x" dynamodbav:"x"`
	Y float64 `json:"y" dynamodbav:"y"`
}

// NodeRecord is one row of the knowledge_nodes table
type NodeRecord struct {
	ID                   string          `json:"id" dynamodbav:"NodeID"`
	ProjectID            string          `json:"project_id" dynamodbav:"ProjectID"`
	NodeType             string          `json:"node_type" dynamodbav:"NodeType"`
	Title                string          `json:"title" dynamodbav:"Title"`
	Content              string          `json:"content,omitempty" dynamodbav:"Content,omitempty"`
	ConfidenceScore      *float64        `json:"confidence_score,omitempty" dynamodbav:"ConfidenceScore,omitempty"`
	NotebookID           string          `json:"notebook_id,omitempty" dynamodbav:"NotebookID,omitempty"`
	ConceptSource        string          `json:"concept_source,omitempty" dynamodbav:"ConceptSource,omitempty"`
	IsProjectRoot        bool            `json:"is_project_root" dynamodbav:"IsProjectRoot"`
	URL                  string          `json:"url,omitempty" dynamodbav:"URL,omitempty"`
	SourceConceptIDs     []string        `json:"source_concept_ids,omitempty" dynamodbav:"SourceConceptIDs,omitempty"`
	Position             *PositionRecord `json:"position,omitempty" dynamodbav:"Position,omitempty"`
	HierarchicalPosition *PositionRecord `json:"hierarchical_position,omitempty" dynamodbav:"HierarchicalPosition,omitempty"`
	SpatialPosition      *PositionRecord `json:"spatial_position,omitempty" dynamodbav:"SpatialPosition,omitempty"`
	CreatedAt            *time.Time      `json:"created_at,omitempty" dynamodbav:"CreatedAt,omitempty"`
}

// EdgeRecord is one row of the knowledge_edges table
type EdgeRecord struct {
	ID           string     `json:"id" dynamodbav:"EdgeID"`
	ProjectID    string     `json:"project_id" dynamodbav:"ProjectID"`
	SourceNodeID string     `json:"source_node_id" dynamodbav:"SourceNodeID"`
	TargetNodeID string     `json:"target_node_id" dynamodbav:"TargetNodeID"`
	EdgeType     string     `json:"edge_type" dynamodbav:"EdgeType"`
	Annotation   string     `json:"annotation,omitempty" dynamodbav:"Annotation,omitempty"`
	Strength     *float64   `json:"strength,omitempty" dynamodbav:"Strength,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty" dynamodbav:"CreatedAt,omitempty"`
}

// ProjectRecord is the slice of the projects table the map needs
type ProjectRecord struct {
	ID         string `json:"id" dynamodbav:"ProjectID"`
	Title      string `json:"title" dynamodbav:"Title"`
	Hypothesis string `json:"hypothesis,omitempty" dynamodbav:"Hypothesis,omitempty"`
	PaperType  string `json:"paper_type,omitempty" dynamodbav:"PaperType,omitempty"`
	Theme      string `json:"theme,omitempty" dynamodbav:"Theme,omitempty"`
}

// PositionUpdate is the column patch written when a node is dragged. The
// legacy column always follows the mode that wrote last.
func PositionUpdate(pos valueobjects.Position, mode valueobjects.LayoutMode) (map[string]PositionRecord, error) {
	column, err := PositionColumn(mode)
	if err != nil {
		return nil, err
	}
	rec := toPositionRecord(pos)
	return map[string]PositionRecord{column: rec, "position": rec}, nil
}

// PositionColumn maps a layout mode to its position column
func PositionColumn(mode valueobjects.LayoutMode) (string, error) {
	switch mode {
	case valueobjects.LayoutHierarchical:
		return "hierarchical_position", nil
	case valueobjects.LayoutSpatial:
		return "spatial_position", nil
	}
	return "", fmt.Errorf("no position column for layout mode %q", mode)
}

// ToNode converts a stored row into a node with its type-specific payload
func (r NodeRecord) ToNode() (*entities.Node, error) {
	nodeType := valueobjects.NodeType(r.NodeType)

	var payload entities.NodePayload
	switch {
	case nodeType == valueobjects.NodeTypeProject:
		payload = entities.ProjectPayload{IsProjectRoot: r.IsProjectRoot}
	case nodeType == valueobjects.NodeTypeNotebook:
		payload = entities.NotebookPayload{NotebookID: r.NotebookID}
	case nodeType == valueobjects.NodeTypeSource:
		payload = entities.SourcePayload{NotebookID: r.NotebookID, URL: r.URL}
	case nodeType == valueobjects.NodeTypeInsight:
		payload = entities.InsightPayload{SourceConceptIDs: r.SourceConceptIDs}
	case nodeType.IsConceptLike():
		payload = entities.ConceptPayload{
			NotebookID:      r.NotebookID,
			ConceptSource:   r.ConceptSource,
			ConfidenceScore: r.ConfidenceScore,
		}
	}

	node, err := entities.NewNode(r.ID, nodeType, r.Title, payload)
	if err != nil {
		return nil, fmt.Errorf("node row %s: %w", r.ID, err)
	}
	node.Details = r.Content
	node.RestorePositions(
		r.HierarchicalPosition.toPosition(),
		r.SpatialPosition.toPosition(),
		r.Position.toPosition(),
	)
	return node, nil
}

// NodeRecordFrom converts a node into its row for the given project
func NodeRecordFrom(projectID string, node *entities.Node) NodeRecord {
	r := NodeRecord{
		ID:        node.ID,
		ProjectID: projectID,
		NodeType:  string(node.Type),
		Title:     node.Title,
		Content:   node.Details,
	}
	switch p := node.Payload.(type) {
	case entities.ProjectPayload:
		r.IsProjectRoot = p.IsProjectRoot
	case entities.NotebookPayload:
		r.NotebookID = p.NotebookID
	case entities.SourcePayload:
		r.NotebookID = p.NotebookID
		r.URL = p.URL
	case entities.ConceptPayload:
		r.NotebookID = p.NotebookID
		r.ConceptSource = p.ConceptSource
		r.ConfidenceScore = p.ConfidenceScore
	case entities.InsightPayload:
		r.SourceConceptIDs = p.SourceConceptIDs
	}

	h, s, l := node.Positions()
	r.HierarchicalPosition = fromPosition(h)
	r.SpatialPosition = fromPosition(s)
	r.Position = fromPosition(l)
	return r
}

// ToEdge converts a stored row. Edge types outside the current vocabulary are
// kept so newer relationship kinds still render.
func (r EdgeRecord) ToEdge() (*entities.Edge, error) {
	if r.ID == "" || r.SourceNodeID == "" || r.TargetNodeID == "" {
		return nil, fmt.Errorf("edge row %q is missing an id or endpoint", r.ID)
	}
	e := &entities.Edge{
		ID:         r.ID,
		SourceID:   r.SourceNodeID,
		TargetID:   r.TargetNodeID,
		Type:       valueobjects.EdgeType(r.EdgeType),
		Annotation: r.Annotation,
		Strength:   entities.DefaultEdgeStrength,
	}
	if r.Strength != nil {
		e.Strength = *r.Strength
	}
	if r.CreatedAt != nil {
		e.CreatedAt = *r.CreatedAt
	}
	return e, nil
}

// EdgeRecordFrom converts an edge into its row for the given project
func EdgeRecordFrom(projectID string, edge *entities.Edge) EdgeRecord {
	strength := edge.Strength
	r := EdgeRecord{
		ID:           edge.ID,
		ProjectID:    projectID,
		SourceNodeID: edge.SourceID,
		TargetNodeID: edge.TargetID,
		EdgeType:     string(edge.Type),
		Annotation:   edge.Annotation,
		Strength:     &strength,
	}
	if !edge.CreatedAt.IsZero() {
		created := edge.CreatedAt
		r.CreatedAt = &created
	}
	return r
}

// ToProject converts a projects row
func (r ProjectRecord) ToProject() *entities.Project {
	return &entities.Project{
		ID:         r.ID,
		Title:      r.Title,
		Hypothesis: r.Hypothesis,
		PaperType:  r.PaperType,
		Theme:      r.Theme,
	}
}

func toPositionRecord(p valueobjects.Position) PositionRecord {
	return PositionRecord{X: p.X(), Y: p.Y()}
}

func fromPosition(p *valueobjects.Position) *PositionRecord {
	if p == nil {
		return nil
	}
	rec := toPositionRecord(*p)
	return &rec
}

func (r *PositionRecord) toPosition() *valueobjects.Position {
	if r == nil {
		return nil
	}
	pos, err := valueobjects.NewPosition(r.X, r.Y)
	if err != nil {
		return nil
	}
	return &pos
}
