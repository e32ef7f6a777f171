package valueobjects

import (
	"strings"

	pkgerrors "literature-flow/pkg/errors"
)

// LayoutMode names one of the coordinate spaces a project's nodes are positioned in
type LayoutMode string

const (
	LayoutHierarchical LayoutMode = "hierarchical"
	LayoutSpatial      LayoutMode = "spatial"
)

// DefaultLayoutMode is used on first view of a project
const DefaultLayoutMode = LayoutHierarchical

// ParseLayoutMode converts a string into a LayoutMode
func ParseLayoutMode(s string) (LayoutMode, error) {
	mode := LayoutMode(strings.ToLower(strings.TrimSpace(s)))
	if !mode.IsValid() {
		return "", pkgerrors.NewValidationError("unknown layout mode: " + s)
	}
	return mode, nil
}

// IsValid checks if the layout mode is known
func (m LayoutMode) IsValid() bool {
	switch m {
	case LayoutHierarchical, LayoutSpatial:
		return true
	default:
		return false
	}
}

// String returns the string representation of the layout mode
func (m LayoutMode) String() string {
	return string(m)
}
