package valueobjects

// EdgeType represents the type of relationship between nodes
type EdgeType string

const (
	EdgeTypeSupports    EdgeType = "supports"
	EdgeTypeContradicts EdgeType = "contradicts"
	EdgeTypeRelatesTo   EdgeType = "relates_to"
	EdgeTypeBuildsOn    EdgeType = "builds_on"
	EdgeTypeQuestions   EdgeType = "questions"

	// Structural relationships, also derived from containment
	EdgeTypeIncludes EdgeType = "includes"
	EdgeTypeContains EdgeType = "contains"
	EdgeTypeCites    EdgeType = "cites"
)

// RelationshipVocabulary lists the edge types a user may pick when connecting nodes
var RelationshipVocabulary = []EdgeType{
	EdgeTypeSupports,
	EdgeTypeContradicts,
	EdgeTypeRelatesTo,
	EdgeTypeBuildsOn,
	EdgeTypeQuestions,
	EdgeTypeIncludes,
	EdgeTypeContains,
	EdgeTypeCites,
}

// IsValid checks if the edge type belongs to the closed relationship vocabulary.
// Edge types read back from the store are not checked, so future values survive a load.
func (e EdgeType) IsValid() bool {
	for _, known := range RelationshipVocabulary {
		if e == known {
			return true
		}
	}
	return false
}

// String returns the string representation of the edge type
func (e EdgeType) String() string {
	return string(e)
}
