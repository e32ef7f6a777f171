package events

import (
	"time"

	"literature-flow/domain/core/valueobjects"
)

// Event types published by the map
const (
	TypeInsightCreated    = "insight.created"
	TypeNodesConnected    = "nodes.connected"
	TypeNodeMoved         = "node.moved"
	TypeLayoutModeChanged = "layout.mode_changed"
)

// DomainEvent is the base interface for all domain events
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

func newBase(projectID, eventType string, ts time.Time) BaseEvent {
	return BaseEvent{
		AggregateID: projectID,
		EventType:   eventType,
		Timestamp:   ts,
		Version:     1,
	}
}

// InsightCreated is raised when concepts are aggregated into a new insight
type InsightCreated struct {
	BaseEvent
	InsightID        string   `json:"insight_id"`
	Title            string   `json:"title"`
	SourceConceptIDs []string `json:"source_concept_ids"`
}

// NewInsightCreated creates an InsightCreated event
func NewInsightCreated(projectID, insightID, title string, conceptIDs []string, ts time.Time) InsightCreated {
	return InsightCreated{
		BaseEvent:        newBase(projectID, TypeInsightCreated, ts),
		InsightID:        insightID,
		Title:            title,
		SourceConceptIDs: append([]string(nil), conceptIDs...),
	}
}

// NodesConnected is raised when a user commits a connection draft
type NodesConnected struct {
	BaseEvent
	EdgeID   string                `json:"edge_id"`
	SourceID string                `json:"source_id"`
	TargetID string                `json:"target_id"`
	EdgeType valueobjects.EdgeType `json:"edge_type"`
}

// NewNodesConnected creates a NodesConnected event
func NewNodesConnected(projectID, edgeID, sourceID, targetID string, edgeType valueobjects.EdgeType, ts time.Time) NodesConnected {
	return NodesConnected{
		BaseEvent: newBase(projectID, TypeNodesConnected, ts),
		EdgeID:    edgeID,
		SourceID:  sourceID,
		TargetID:  targetID,
		EdgeType:  edgeType,
	}
}

// NodeMoved is raised when a node is dragged to a new position
type NodeMoved struct {
	BaseEvent
	NodeID      string                  `json:"node_id"`
	Mode        valueobjects.LayoutMode `json:"mode"`
	NewPosition valueobjects.Position   `json:"new_position"`
}

// NewNodeMoved creates a NodeMoved event
func NewNodeMoved(projectID, nodeID string, mode valueobjects.LayoutMode, pos valueobjects.Position, ts time.Time) NodeMoved {
	return NodeMoved{
		BaseEvent:   newBase(projectID, TypeNodeMoved, ts),
		NodeID:      nodeID,
		Mode:        mode,
		NewPosition: pos,
	}
}

// LayoutModeChanged is raised when the project's sticky layout mode changes
type LayoutModeChanged struct {
	BaseEvent
	From valueobjects.LayoutMode `json:"from"`
	To   valueobjects.LayoutMode `json:"to"`
}

// NewLayoutModeChanged creates a LayoutModeChanged event
func NewLayoutModeChanged(projectID string, from, to valueobjects.LayoutMode, ts time.Time) LayoutModeChanged {
	return LayoutModeChanged{
		BaseEvent: newBase(projectID, TypeLayoutModeChanged, ts),
		From:      from,
		To:        to,
	}
}
