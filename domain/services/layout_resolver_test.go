package services

import (
	"math"
	"testing"

	"literature-flow/domain/config"
	"literature-flow/domain/core/entities"
	"literature-flow/domain/core/valueobjects"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func layoutFixture(t *testing.T) ([]*entities.Node, []*entities.Edge) {
	nodes := buildNodes(t,
		nodeSpec{id: "P", nodeType: valueobjects.NodeTypeProject, root: true},
		nodeSpec{id: "NB1", nodeType: valueobjects.NodeTypeNotebook},
		nodeSpec{id: "NB2", nodeType: valueobjects.NodeTypeNotebook},
		nodeSpec{id: "S1", nodeType: valueobjects.NodeTypeSource, notebook: "NB1"},
		nodeSpec{id: "S2", nodeType: valueobjects.NodeTypeSource, notebook: "NB1"},
		nodeSpec{id: "S3", nodeType: valueobjects.NodeTypeSource, notebook: "NB2"},
		nodeSpec{id: "S4", nodeType: valueobjects.NodeTypeSource, notebook: "elsewhere"},
		nodeSpec{id: "C1", nodeType: valueobjects.NodeTypeConcept, notebook: "NB1"},
		nodeSpec{id: "H1", nodeType: valueobjects.NodeTypeHypothesis, notebook: "NB2"},
		nodeSpec{id: "G1", nodeType: valueobjects.NodeTypeGap},
		nodeSpec{id: "I1", nodeType: valueobjects.NodeTypeInsight},
		nodeSpec{id: "PUB", nodeType: valueobjects.NodeTypePublication},
	)
	return nodes, NewStructuralEdgeSynthesizer().Synthesize(nodes, nodes[0])
}

func byID(positioned []PositionedNode) map[string]PositionedNode {
	out := make(map[string]PositionedNode, len(positioned))
	for _, p := range positioned {
		out[p.Node.ID] = p
	}
	return out
}

func TestResolve_EveryNodePositioned(t *testing.T) {
	nodes, edges := layoutFixture(t)
	resolver := NewLayoutResolver(nil)

	tests := []struct {
		name  string
		nodes []*entities.Node
		mode  valueobjects.LayoutMode
	}{
		{name: "empty hierarchical", nodes: nil, mode: valueobjects.LayoutHierarchical},
		{name: "full hierarchical", nodes: nodes, mode: valueobjects.LayoutHierarchical},
		{name: "full spatial", nodes: nodes, mode: valueobjects.LayoutSpatial},
		{name: "no root", nodes: nodes[1:], mode: valueobjects.LayoutHierarchical},
		{name: "concepts only", nodes: nodes[7:], mode: valueobjects.LayoutSpatial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			positioned := resolver.Resolve(tt.nodes, edges, tt.mode, nil)
			require.Len(t, positioned, len(tt.nodes))
			seen := make(map[valueobjects.Position]string)
			for i, p := range positioned {
				require.NotNil(t, p.Node, "node %d left without a position", i)
				assert.Equal(t, tt.nodes[i].ID, p.Node.ID)
				assert.NotEmpty(t, p.Source)
				if other, dup := seen[p.Position]; dup {
					t.Errorf("%s and %s share position %v", other, p.Node.ID, p.Position)
				}
				seen[p.Position] = p.Node.ID
			}
		})
	}
}

func TestResolve_HierarchicalBands(t *testing.T) {
	nodes, edges := layoutFixture(t)
	cfg := config.DefaultLayoutConfig()
	got := byID(NewLayoutResolver(cfg).Resolve(nodes, edges, valueobjects.LayoutHierarchical, nil))

	assert.Equal(t, valueobjects.MustPosition(cfg.RootX, cfg.RootY), got["P"].Position)

	nb1, nb2 := got["NB1"].Position, got["NB2"].Position
	assert.Equal(t, cfg.NotebookBandY, nb1.Y())
	assert.Less(t, nb1.X(), nb2.X())
	assert.InDelta(t, cfg.RootX, (nb1.X()+nb2.X())/2, 1e-9, "notebooks centred under the root")

	for _, id := range []string{"S1", "S2", "S3", "S4"} {
		assert.Equal(t, cfg.SourceBandY, got[id].Position.Y(), id)
	}
	assert.InDelta(t, nb1.X(), (got["S1"].Position.X()+got["S2"].Position.X())/2, 1e-9)
	assert.Less(t, got["S2"].Position.X(), got["S3"].Position.X())
	assert.Less(t, got["S3"].Position.X(), got["S4"].Position.X(), "unowned sources go last")

	assert.Equal(t, cfg.DetailBandY, got["C1"].Position.Y())
	assert.InDelta(t, got["S1"].Position.X(), got["C1"].Position.X(), cfg.CiteClusterOffset*float64(cfg.CiteClusterWidth))
	assert.Greater(t, got["G1"].Position.Y(), cfg.DetailBandY, "uncited nodes sit on the grid below the clusters")
}

func TestResolve_Precedence(t *testing.T) {
	nodes, edges := layoutFixture(t)
	stored := valueobjects.MustPosition(11, 22)
	require.NoError(t, nodes[3].SetPosition(valueobjects.LayoutHierarchical, stored))

	cachedPos := valueobjects.MustPosition(33, 44)
	cached := map[string]valueobjects.Position{
		"S1": valueobjects.MustPosition(-1, -1),
		"P":  cachedPos,
	}

	got := byID(NewLayoutResolver(nil).Resolve(nodes, edges, valueobjects.LayoutHierarchical, cached))

	assert.Equal(t, PositionStored, got["S1"].Source)
	assert.Equal(t, stored, got["S1"].Position)
	assert.Equal(t, PositionCached, got["P"].Source)
	assert.Equal(t, cachedPos, got["P"].Position)
	assert.Equal(t, PositionComputed, got["NB1"].Source)

	spatial := byID(NewLayoutResolver(nil).Resolve(nodes, edges, valueobjects.LayoutSpatial, nil))
	assert.Equal(t, PositionComputed, spatial["S1"].Source, "hierarchical position does not leak into spatial mode")
}

func TestResolve_ModeRoundTrip(t *testing.T) {
	nodes, edges := layoutFixture(t)
	resolver := NewLayoutResolver(nil)

	first := resolver.Resolve(nodes, edges, valueobjects.LayoutHierarchical, nil)
	for _, p := range first {
		require.NoError(t, p.Node.SetPosition(valueobjects.LayoutHierarchical, p.Position))
	}

	spatial := resolver.Resolve(nodes, edges, valueobjects.LayoutSpatial, nil)
	for _, p := range spatial {
		moved, err := valueobjects.NewPosition(p.Position.X()+5, p.Position.Y()+5)
		require.NoError(t, err)
		require.NoError(t, p.Node.SetPosition(valueobjects.LayoutSpatial, moved))
	}

	again := resolver.Resolve(nodes, edges, valueobjects.LayoutHierarchical, nil)
	require.Len(t, again, len(first))
	for i := range first {
		assert.Equal(t, first[i].Position, again[i].Position, first[i].Node.ID)
	}
}

func TestResolve_SpatialGrid(t *testing.T) {
	nodes, edges := layoutFixture(t)
	cfg := config.DefaultLayoutConfig()

	got := NewLayoutResolver(cfg).Resolve(nodes, edges, valueobjects.LayoutSpatial, nil)

	assert.Equal(t, valueobjects.MustPosition(cfg.SpatialRootX, cfg.SpatialRootY), got[0].Position)
	assert.Equal(t, valueobjects.MustPosition(cfg.SpatialStartX, cfg.SpatialStartY), got[1].Position)
	assert.Equal(t, valueobjects.MustPosition(cfg.SpatialStartX, cfg.SpatialStartY+cfg.SpatialRowSpacing), got[1+cfg.SpatialColumns].Position)
}

func TestNewLayoutResolver_InvalidConfigFallsBack(t *testing.T) {
	cfg := config.DefaultLayoutConfig()
	cfg.SpatialColumns = 0

	resolver := NewLayoutResolver(cfg)

	assert.Equal(t, config.DefaultLayoutConfig(), resolver.Config())
}

func TestNewLayoutResolver_NonFiniteConfig(t *testing.T) {
	nodes, edges := layoutFixture(t)
	def := config.DefaultLayoutConfig()

	tests := []struct {
		name   string
		mutate func(c *config.LayoutConfig)
	}{
		{name: "infinite root", mutate: func(c *config.LayoutConfig) { c.RootX = math.Inf(1) }},
		{name: "nan spacing", mutate: func(c *config.LayoutConfig) { c.NotebookSpacing = math.NaN() }},
		{name: "negative infinite band", mutate: func(c *config.LayoutConfig) { c.DetailBandY = math.Inf(-1) }},
		{name: "nan spatial start", mutate: func(c *config.LayoutConfig) { c.SpatialStartY = math.NaN() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultLayoutConfig()
			tt.mutate(cfg)
			resolver := NewLayoutResolver(cfg)
			assert.Equal(t, def, resolver.Config())

			for _, mode := range []valueobjects.LayoutMode{valueobjects.LayoutHierarchical, valueobjects.LayoutSpatial} {
				assert.NotPanics(t, func() {
					require.Len(t, resolver.Resolve(nodes, edges, mode, nil), len(nodes))
				})
			}
		})
	}
}

func TestResolve_OverflowingSpacingFallsBack(t *testing.T) {
	nodes, edges := layoutFixture(t)
	cfg := config.DefaultLayoutConfig()
	cfg.RootX = math.MaxFloat64
	cfg.NotebookSpacing = math.MaxFloat64
	cfg.SourceSpacing = math.MaxFloat64
	require.NoError(t, cfg.Validate())

	var got []PositionedNode
	require.NotPanics(t, func() {
		got = NewLayoutResolver(cfg).Resolve(nodes, edges, valueobjects.LayoutHierarchical, nil)
	})
	def := config.DefaultLayoutConfig()
	anchor := valueobjects.MustPosition(def.RootX, def.RootY)
	for _, p := range got {
		assert.False(t, math.IsInf(p.Position.X(), 0) || math.IsNaN(p.Position.X()), p.Node.ID)
	}
	assert.Equal(t, anchor, byID(got)["NB2"].Position)
}
