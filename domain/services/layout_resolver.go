package services

import (
	"math"

	"literature-flow/domain/config"
	"literature-flow/domain/core/entities"
	"literature-flow/domain/core/valueobjects"
)

// PositionSource tells where a resolved position came from
type PositionSource string

const (
	PositionStored   PositionSource = "stored"
	PositionCached   PositionSource = "cached"
	PositionComputed PositionSource = "computed"
)

// PositionedNode is a node with its resolved position in one layout mode
type PositionedNode struct {
	Node     *entities.Node
	Position valueobjects.Position
	Source   PositionSource
}

// LayoutResolver assigns a position to every node for a layout mode.
// Per node the stored mode position wins, then a cached position, then the
// computed default.
type LayoutResolver struct {
	config *config.LayoutConfig
}

// NewLayoutResolver creates a resolver. A nil or unusable config falls back to the defaults.
func NewLayoutResolver(cfg *config.LayoutConfig) *LayoutResolver {
	if cfg == nil || cfg.Validate() != nil {
		cfg = config.DefaultLayoutConfig()
	}
	return &LayoutResolver{config: cfg}
}

// Config returns the layout configuration in use
func (r *LayoutResolver) Config() *config.LayoutConfig {
	return r.config
}

// Resolve positions every node. The edges are used only to find the source a
// node cites; cached holds positions keyed by node id for this mode.
func (r *LayoutResolver) Resolve(
	nodes []*entities.Node,
	edges []*entities.Edge,
	mode valueobjects.LayoutMode,
	cached map[string]valueobjects.Position,
) []PositionedNode {
	out := make([]PositionedNode, len(nodes))
	resolved := make(map[string]valueobjects.Position, len(nodes))

	effective := func(i int, n *entities.Node) (valueobjects.Position, bool) {
		if pos, ok := n.PositionFor(mode); ok {
			out[i] = PositionedNode{Node: n, Position: pos, Source: PositionStored}
		} else if pos, ok := cached[n.ID]; ok {
			out[i] = PositionedNode{Node: n, Position: pos, Source: PositionCached}
		} else {
			return valueobjects.Position{}, false
		}
		resolved[n.ID] = out[i].Position
		return out[i].Position, true
	}
	fallback := fallbackPosition(mode)
	computed := func(i int, n *entities.Node, x, y float64) {
		// spacings large enough to overflow land on the default anchor
		pos, err := valueobjects.NewPosition(x, y)
		if err != nil {
			pos = fallback
		}
		out[i] = PositionedNode{Node: n, Position: pos, Source: PositionComputed}
		resolved[n.ID] = pos
	}

	if mode == valueobjects.LayoutSpatial {
		r.spatial(nodes, effective, computed)
	} else {
		r.hierarchical(nodes, edges, resolved, effective, computed)
	}
	return out
}

type (
	effectiveFunc func(i int, n *entities.Node) (valueobjects.Position, bool)
	computedFunc  func(i int, n *entities.Node, x, y float64)
)

func fallbackPosition(mode valueobjects.LayoutMode) valueobjects.Position {
	def := config.DefaultLayoutConfig()
	if mode == valueobjects.LayoutSpatial {
		return valueobjects.MustPosition(def.SpatialRootX, def.SpatialRootY)
	}
	return valueobjects.MustPosition(def.RootX, def.RootY)
}

func (r *LayoutResolver) spatial(nodes []*entities.Node, effective effectiveFunc, computed computedFunc) {
	cfg := r.config
	slot := 0
	for i, n := range nodes {
		if n.IsProjectRoot() {
			if _, ok := effective(i, n); !ok {
				computed(i, n, cfg.SpatialRootX, cfg.SpatialRootY)
			}
			continue
		}
		col, row := slot%cfg.SpatialColumns, slot/cfg.SpatialColumns
		slot++
		if _, ok := effective(i, n); ok {
			continue
		}
		computed(i, n,
			cfg.SpatialStartX+float64(col)*cfg.SpatialColSpacing,
			cfg.SpatialStartY+float64(row)*cfg.SpatialRowSpacing,
		)
	}
}

func (r *LayoutResolver) hierarchical(
	nodes []*entities.Node,
	edges []*entities.Edge,
	resolved map[string]valueobjects.Position,
	effective effectiveFunc,
	computed computedFunc,
) {
	cfg := r.config

	var notebooks, sources, rest []int
	var notebookNodes []*entities.Node
	for i, n := range nodes {
		switch {
		case n.IsProjectRoot():
			if _, ok := effective(i, n); !ok {
				computed(i, n, cfg.RootX, cfg.RootY)
			}
		case n.Type == valueobjects.NodeTypeNotebook:
			notebooks = append(notebooks, i)
			notebookNodes = append(notebookNodes, n)
		case n.Type == valueobjects.NodeTypeSource:
			sources = append(sources, i)
		default:
			rest = append(rest, i)
		}
	}

	// notebooks centred on the root column
	for k, i := range notebooks {
		if _, ok := effective(i, nodes[i]); ok {
			continue
		}
		x := cfg.RootX + (float64(k)-float64(len(notebooks)-1)/2)*cfg.NotebookSpacing
		computed(i, nodes[i], x, cfg.NotebookBandY)
	}

	// sources grouped under their notebook, groups kept from overlapping
	groups := make(map[string][]int)
	var unowned []int
	for _, i := range sources {
		if owner := OwningNotebook(nodes[i], notebookNodes); owner != nil {
			groups[owner.ID] = append(groups[owner.ID], i)
		} else {
			unowned = append(unowned, i)
		}
	}
	nextFree := math.Inf(-1)
	for _, nb := range notebookNodes {
		members := groups[nb.ID]
		if len(members) == 0 {
			continue
		}
		start := resolved[nb.ID].X() - float64(len(members)-1)/2*cfg.SourceSpacing
		if start < nextFree {
			start = nextFree
		}
		for k, i := range members {
			x := start + float64(k)*cfg.SourceSpacing
			nextFree = x + cfg.SourceSpacing
			if _, ok := effective(i, nodes[i]); ok {
				continue
			}
			computed(i, nodes[i], x, cfg.SourceBandY)
		}
	}
	if math.IsInf(nextFree, -1) {
		nextFree = cfg.RootX
	}
	for k, i := range unowned {
		if _, ok := effective(i, nodes[i]); ok {
			continue
		}
		computed(i, nodes[i], nextFree+float64(k)*cfg.SourceSpacing, cfg.SourceBandY)
	}

	// everything else clusters near a cited source, or falls onto a grid
	citedBy := firstCitedSource(nodes, edges)
	clusterSize := make(map[string]int)
	type clusterSlot struct {
		source string
		k      int
	}
	slots := make(map[int]clusterSlot)
	var grid []int
	maxRows := 0
	for _, i := range rest {
		src, ok := citedBy[nodes[i].ID]
		if !ok {
			grid = append(grid, i)
			continue
		}
		k := clusterSize[src]
		clusterSize[src] = k + 1
		slots[i] = clusterSlot{source: src, k: k}
		if rows := k/cfg.CiteClusterWidth + 1; rows > maxRows {
			maxRows = rows
		}
	}

	for _, i := range rest {
		slot, ok := slots[i]
		if !ok {
			continue
		}
		if _, ok := effective(i, nodes[i]); ok {
			continue
		}
		anchor := resolved[slot.source]
		width := cfg.CiteClusterWidth
		if n := clusterSize[slot.source]; n < width {
			width = n
		}
		col, row := slot.k%cfg.CiteClusterWidth, slot.k/cfg.CiteClusterWidth
		x := anchor.X() + (float64(col)-float64(width-1)/2)*cfg.CiteClusterOffset
		y := cfg.DetailBandY + float64(row)*cfg.DetailRowSpacing
		computed(i, nodes[i], x, y)
	}

	gridTop := cfg.DetailBandY + float64(maxRows)*cfg.DetailRowSpacing
	left := cfg.RootX - float64(cfg.DetailColumns-1)/2*cfg.DetailColSpacing
	for k, i := range grid {
		if _, ok := effective(i, nodes[i]); ok {
			continue
		}
		col, row := k%cfg.DetailColumns, k/cfg.DetailColumns
		computed(i, nodes[i],
			left+float64(col)*cfg.DetailColSpacing,
			gridTop+float64(row)*cfg.DetailRowSpacing,
		)
	}
}

// firstCitedSource maps each node to the first source node that cites it
func firstCitedSource(nodes []*entities.Node, edges []*entities.Edge) map[string]string {
	isSource := make(map[string]bool)
	for _, n := range nodes {
		if n.Type == valueobjects.NodeTypeSource {
			isSource[n.ID] = true
		}
	}
	out := make(map[string]string)
	for _, e := range edges {
		if e.Type != valueobjects.EdgeTypeCites || !isSource[e.SourceID] {
			continue
		}
		if _, seen := out[e.TargetID]; !seen {
			out[e.TargetID] = e.SourceID
		}
	}
	return out
}
