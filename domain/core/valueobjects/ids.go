package valueobjects

import (
	"strings"

	"github.com/google/uuid"
)

// Prefixes of ids minted for session-only nodes that have no database row
const (
	SyntheticProjectPrefix  = "project-"
	SyntheticNotebookPrefix = "notebook-"
	SyntheticSourcePrefix   = "source-"
)

// NewID returns a fresh identifier for a node, edge or draft
func NewID() string {
	return uuid.New().String()
}

// SyntheticRootID derives the id of the manufactured root node for a project
func SyntheticRootID(projectID string) string {
	return SyntheticProjectPrefix + projectID
}

// IsSyntheticID reports whether the id follows the session-only synthesis convention
func IsSyntheticID(id string) bool {
	return strings.HasPrefix(id, SyntheticProjectPrefix) ||
		strings.HasPrefix(id, SyntheticNotebookPrefix) ||
		strings.HasPrefix(id, SyntheticSourcePrefix)
}
