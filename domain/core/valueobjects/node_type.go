package valueobjects

// NodeType is the discriminator of a map node
type NodeType string

const (
	NodeTypeProject     NodeType = "project"
	NodeTypeNotebook    NodeType = "notebook"
	NodeTypeSource      NodeType = "source"
	NodeTypeConcept     NodeType = "concept"
	NodeTypeHypothesis  NodeType = "hypothesis"
	NodeTypeGap         NodeType = "gap"
	NodeTypeDiscrepancy NodeType = "discrepancy"
	NodeTypePublication NodeType = "publication"
	NodeTypeInsight     NodeType = "insight"
)

// IsValid checks if the node type is known
func (t NodeType) IsValid() bool {
	switch t {
	case NodeTypeProject, NodeTypeNotebook, NodeTypeSource,
		NodeTypeConcept, NodeTypeHypothesis, NodeTypeGap,
		NodeTypeDiscrepancy, NodeTypePublication, NodeTypeInsight:
		return true
	default:
		return false
	}
}

// IsConceptLike reports whether nodes of this type can be aggregated into an insight
func (t NodeType) IsConceptLike() bool {
	switch t {
	case NodeTypeConcept, NodeTypeHypothesis, NodeTypeGap, NodeTypeDiscrepancy:
		return true
	default:
		return false
	}
}

// CitesSources reports whether structural cites edges are derived for this type
func (t NodeType) CitesSources() bool {
	return t == NodeTypeConcept || t == NodeTypeHypothesis
}

// String returns the string representation of the node type
func (t NodeType) String() string {
	return string(t)
}
