package persistence

import (
	"testing"

	"literature-flow/domain/core/entities"
	"literature-flow/domain/core/valueobjects"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeRecord_ToNode(t *testing.T) {
	score := 0.7
	tests := []struct {
		name    string
		record  NodeRecord
		check   func(t *testing.T, n *entities.Node)
		wantErr bool
	}{
		{
			name:   "project root",
			record: NodeRecord{ID: "p1", NodeType: "project", Title: "Sleep", IsProjectRoot: true},
			check: func(t *testing.T, n *entities.Node) {
				assert.True(t, n.IsProjectRoot())
			},
		},
		{
			name:   "source keeps its notebook",
			record: NodeRecord{ID: "s1", NodeType: "source", NotebookID: "nb-1", URL: "https://doi.org/x"},
			check: func(t *testing.T, n *entities.Node) {
				assert.Equal(t, "nb-1", n.NotebookID())
				assert.Equal(t, "https://doi.org/x", n.Payload.(entities.SourcePayload).URL)
			},
		},
		{
			name:   "gap is concept-like",
			record: NodeRecord{ID: "g1", NodeType: "gap", NotebookID: "nb-1", ConfidenceScore: &score, ConceptSource: "ai"},
			check: func(t *testing.T, n *entities.Node) {
				got, ok := n.ConfidenceScore()
				require.True(t, ok)
				assert.Equal(t, 0.7, got)
				assert.Equal(t, "ai", n.ConceptSource())
			},
		},
		{
			name: "positions per mode",
			record: NodeRecord{
				ID: "c1", NodeType: "concept",
				HierarchicalPosition: &PositionRecord{X: 1, Y: 2},
				Position:             &PositionRecord{X: 1, Y: 2},
			},
			check: func(t *testing.T, n *entities.Node) {
				pos, ok := n.PositionFor(valueobjects.LayoutHierarchical)
				require.True(t, ok)
				assert.True(t, pos.Equals(valueobjects.MustPosition(1, 2)))
				_, ok = n.PositionFor(valueobjects.LayoutSpatial)
				assert.False(t, ok)
			},
		},
		{
			name:   "publication has no payload",
			record: NodeRecord{ID: "pub", NodeType: "publication", NotebookID: "ignored"},
			check: func(t *testing.T, n *entities.Node) {
				assert.Nil(t, n.Payload)
			},
		},
		{name: "unknown type", record: NodeRecord{ID: "x", NodeType: "figure"}, wantErr: true},
		{name: "missing id", record: NodeRecord{NodeType: "concept"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := tt.record.ToNode()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, n)
		})
	}
}

func TestNodeRecordFrom_KeepsPayloadAndPositions(t *testing.T) {
	n, err := entities.NewNode("i1", valueobjects.NodeTypeInsight, "Insight-A", entities.InsightPayload{SourceConceptIDs: []string{"c1", "c2"}})
	require.NoError(t, err)
	require.NoError(t, n.SetPosition(valueobjects.LayoutSpatial, valueobjects.MustPosition(5, 6)))

	rec := NodeRecordFrom("p1", n)
	assert.Equal(t, "p1", rec.ProjectID)
	assert.Equal(t, []string{"c1", "c2"}, rec.SourceConceptIDs)
	assert.Nil(t, rec.HierarchicalPosition)
	assert.Equal(t, &PositionRecord{X: 5, Y: 6}, rec.SpatialPosition)
	assert.Equal(t, &PositionRecord{X: 5, Y: 6}, rec.Position)
}

func TestEdgeRecord_ToEdge(t *testing.T) {
	e, err := EdgeRecord{ID: "e1", SourceNodeID: "a", TargetNodeID: "b", EdgeType: "extends"}.ToEdge()
	require.NoError(t, err)
	assert.Equal(t, valueobjects.EdgeType("extends"), e.Type, "types outside the vocabulary are kept")
	assert.Equal(t, entities.DefaultEdgeStrength, e.Strength)

	_, err = EdgeRecord{ID: "e2", SourceNodeID: "a"}.ToEdge()
	assert.Error(t, err)
}

func TestPositionUpdate(t *testing.T) {
	patch, err := PositionUpdate(valueobjects.MustPosition(3, 4), valueobjects.LayoutSpatial)
	require.NoError(t, err)
	assert.Equal(t, map[string]PositionRecord{
		"spatial_position": {X: 3, Y: 4},
		"position":         {X: 3, Y: 4},
	}, patch)

	_, err = PositionUpdate(valueobjects.MustPosition(3, 4), "radial")
	assert.Error(t, err)
}
