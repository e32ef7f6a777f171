package entities

import "literature-flow/domain/core/valueobjects"

// Project is the metadata the map needs from a literature-review project
type Project struct {
	ID         string
	Title      string
	Hypothesis string
	PaperType  string
	Theme      string
}

// NewSyntheticRoot manufactures the session-only root node for a project that
// has no persisted root
func NewSyntheticRoot(project Project) *Node {
	title := project.Title
	if title == "" {
		title = "Project"
	}
	return &Node{
		ID:      valueobjects.SyntheticRootID(project.ID),
		Type:    valueobjects.NodeTypeProject,
		Title:   title,
		Details: project.Hypothesis,
		Payload: ProjectPayload{
			IsProjectRoot: true,
			Hypothesis:    project.Hypothesis,
			PaperType:     project.PaperType,
			Theme:         project.Theme,
		},
		Synthetic: true,
	}
}
