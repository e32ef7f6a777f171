package config

import (
	"fmt"
	"math"
)

// LayoutConfig holds the anchors and spacings used when a node has no stored
// or cached position
type LayoutConfig struct {
	// Hierarchical mode
	RootX             float64 `yaml:"root_x" json:"root_x"`
	RootY             float64 `yaml:"root_y" json:"root_y"`
	NotebookBandY     float64 `yaml:"notebook_band_y" json:"notebook_band_y"`
	NotebookSpacing   float64 `yaml:"notebook_spacing" json:"notebook_spacing"`
	SourceBandY       float64 `yaml:"source_band_y" json:"source_band_y"`
	SourceSpacing     float64 `yaml:"source_spacing" json:"source_spacing"`
	DetailBandY       float64 `yaml:"detail_band_y" json:"detail_band_y"`
	DetailColumns     int     `yaml:"detail_columns" json:"detail_columns"`
	DetailColSpacing  float64 `yaml:"detail_col_spacing" json:"detail_col_spacing"`
	DetailRowSpacing  float64 `yaml:"detail_row_spacing" json:"detail_row_spacing"`
	CiteClusterOffset float64 `yaml:"cite_cluster_offset" json:"cite_cluster_offset"`
	CiteClusterWidth  int     `yaml:"cite_cluster_width" json:"cite_cluster_width"`

	// Spatial mode
	SpatialRootX      float64 `yaml:"spatial_root_x" json:"spatial_root_x"`
	SpatialRootY      float64 `yaml:"spatial_root_y" json:"spatial_root_y"`
	SpatialStartX     float64 `yaml:"spatial_start_x" json:"spatial_start_x"`
	SpatialStartY     float64 `yaml:"spatial_start_y" json:"spatial_start_y"`
	SpatialColumns    int     `yaml:"spatial_columns" json:"spatial_columns"`
	SpatialColSpacing float64 `yaml:"spatial_col_spacing" json:"spatial_col_spacing"`
	SpatialRowSpacing float64 `yaml:"spatial_row_spacing" json:"spatial_row_spacing"`
}

// DefaultLayoutConfig returns the default layout configuration
func DefaultLayoutConfig() *LayoutConfig {
	return &LayoutConfig{
		RootX:             600,
		RootY:             50,
		NotebookBandY:     220,
		NotebookSpacing:   320,
		SourceBandY:       400,
		SourceSpacing:     180,
		DetailBandY:       600,
		DetailColumns:     6,
		DetailColSpacing:  200,
		DetailRowSpacing:  140,
		CiteClusterOffset: 70,
		CiteClusterWidth:  3,

		SpatialRootX:      100,
		SpatialRootY:      100,
		SpatialStartX:     100,
		SpatialStartY:     300,
		SpatialColumns:    5,
		SpatialColSpacing: 250,
		SpatialRowSpacing: 200,
	}
}

// Validate checks that every coordinate is finite and grid dimensions can be
// used for placement
func (c *LayoutConfig) Validate() error {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"root_x", c.RootX},
		{"root_y", c.RootY},
		{"notebook_band_y", c.NotebookBandY},
		{"notebook_spacing", c.NotebookSpacing},
		{"source_band_y", c.SourceBandY},
		{"source_spacing", c.SourceSpacing},
		{"detail_band_y", c.DetailBandY},
		{"detail_col_spacing", c.DetailColSpacing},
		{"detail_row_spacing", c.DetailRowSpacing},
		{"cite_cluster_offset", c.CiteClusterOffset},
		{"spatial_root_x", c.SpatialRootX},
		{"spatial_root_y", c.SpatialRootY},
		{"spatial_start_x", c.SpatialStartX},
		{"spatial_start_y", c.SpatialStartY},
		{"spatial_col_spacing", c.SpatialColSpacing},
		{"spatial_row_spacing", c.SpatialRowSpacing},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%s must be a finite number, got %v", f.name, f.value)
		}
	}
	if c.DetailColumns <= 0 {
		return fmt.Errorf("detail_columns must be positive, got %d", c.DetailColumns)
	}
	if c.SpatialColumns <= 0 {
		return fmt.Errorf("spatial_columns must be positive, got %d", c.SpatialColumns)
	}
	if c.CiteClusterWidth <= 0 {
		return fmt.Errorf("cite_cluster_width must be positive, got %d", c.CiteClusterWidth)
	}
	return nil
}
