package services

import (
	"strings"

	"literature-flow/domain/core/valueobjects"
	domainservices "literature-flow/domain/services"
	pkgerrors "literature-flow/pkg/errors"
)

// InteractionPhase is the state of the selection state machine
type InteractionPhase string

const (
	PhaseIdle                   InteractionPhase = "idle"
	PhaseMultiSelectingConcepts InteractionPhase = "multi-selecting-concepts"
	PhaseInsightDraftOpen       InteractionPhase = "insight-draft-open"
	PhaseTracingInsights        InteractionPhase = "tracing-insights"
)

// Modifiers are the keys held during a node click
type Modifiers struct {
	Shift bool `json:"shift"`
	Ctrl  bool `json:"ctrl"`
	Meta  bool `json:"meta"`
}

// ClickOutcome is the single behavior a click was routed to
type ClickOutcome string

const (
	ClickToggledSelection ClickOutcome = "toggled-selection"
	ClickToggledTrace     ClickOutcome = "toggled-trace"
	ClickOpenedDetail     ClickOutcome = "opened-detail"
	ClickIgnored          ClickOutcome = "ignored"
)

// PathTracer traces provenance paths over the current graph
type PathTracer interface {
	Trace(nodeID string) []domainservices.Path
}

// InteractionState is a snapshot of the selection state
type InteractionState struct {
	Phase          InteractionPhase              `json:"phase"`
	MultiSelected  []string                      `json:"multiSelected"`
	TracedInsights []string                      `json:"tracedInsights"`
	Draft          *domainservices.InsightDraft `json:"draft,omitempty"`
	DetailNodeID   string                        `json:"detailNodeId,omitempty"`
}

// SelectionController is the explicit state machine behind multi-select,
// insight drafting and provenance tracing. It is owned by one map session
// and is not safe for concurrent use on its own.
type SelectionController struct {
	lookup domainservices.NodeLookup
	tracer PathTracer

	phase     InteractionPhase
	selected  []string
	traced    []string
	draft     *domainservices.InsightDraft
	detail    string
	highlight domainservices.HighlightSet
}

// NewSelectionController creates a controller in the idle phase
func NewSelectionController(lookup domainservices.NodeLookup, tracer PathTracer) *SelectionController {
	return &SelectionController{
		lookup:    lookup,
		tracer:    tracer,
		phase:     PhaseIdle,
		highlight: domainservices.NewHighlightSet(),
	}
}

// Phase returns the current phase
func (c *SelectionController) Phase() InteractionPhase {
	return c.phase
}

// Click routes a node click to exactly one behavior. Shift wins over ctrl;
// meta counts as ctrl.
func (c *SelectionController) Click(nodeID string, mods Modifiers) (ClickOutcome, error) {
	node, ok := c.lookup(nodeID)
	if !ok {
		return ClickIgnored, pkgerrors.NewNotFoundError("node " + nodeID)
	}

	switch {
	case mods.Shift:
		if c.phase == PhaseTracingInsights || c.phase == PhaseInsightDraftOpen {
			return ClickIgnored, nil
		}
		if !node.Type.IsConceptLike() {
			return ClickIgnored, nil
		}
		c.selected = toggle(c.selected, nodeID)
		c.phase = PhaseIdle
		if len(c.selected) > 0 {
			c.phase = PhaseMultiSelectingConcepts
		}
		return ClickToggledSelection, nil

	case mods.Ctrl || mods.Meta:
		if c.phase == PhaseMultiSelectingConcepts || c.phase == PhaseInsightDraftOpen {
			return ClickIgnored, nil
		}
		if node.Type != valueobjects.NodeTypeInsight {
			return ClickIgnored, nil
		}
		c.traced = toggle(c.traced, nodeID)
		c.RefreshHighlight()
		return ClickToggledTrace, nil

	default:
		c.detail = nodeID
		return ClickOpenedDetail, nil
	}
}

// OpenDraft copies the live selection into a new insight draft. The selection
// stays in place until the draft is saved or cancelled.
func (c *SelectionController) OpenDraft(title string) (*domainservices.InsightDraft, error) {
	if c.phase == PhaseInsightDraftOpen {
		return nil, pkgerrors.NewConflictError("an insight draft is already open")
	}
	if len(c.selected) == 0 {
		return nil, pkgerrors.NewValidationError("select at least one concept before adding an insight")
	}
	c.draft = &domainservices.InsightDraft{
		Title:            strings.TrimSpace(title),
		SourceConceptIDs: append([]string(nil), c.selected...),
	}
	c.phase = PhaseInsightDraftOpen
	return c.copyDraft(), nil
}

// UpdateDraft edits the open draft's text fields
func (c *SelectionController) UpdateDraft(title, details string) (*domainservices.InsightDraft, error) {
	if c.draft == nil {
		return nil, pkgerrors.NewNotFoundError("insight draft")
	}
	c.draft.Title = strings.TrimSpace(title)
	c.draft.Details = strings.TrimSpace(details)
	return c.copyDraft(), nil
}

// PendingDraft returns the open draft ready to be saved. An empty concept list
// is rejected here, before anything is created.
func (c *SelectionController) PendingDraft() (domainservices.InsightDraft, error) {
	if c.draft == nil {
		return domainservices.InsightDraft{}, pkgerrors.NewNotFoundError("insight draft")
	}
	if len(c.draft.SourceConceptIDs) == 0 {
		return domainservices.InsightDraft{}, pkgerrors.NewValidationError("an insight needs at least one selected concept")
	}
	return *c.copyDraft(), nil
}

// CompleteDraft clears the draft and the live selection after a save
func (c *SelectionController) CompleteDraft() {
	c.draft = nil
	c.selected = nil
	c.phase = PhaseIdle
}

// CancelDraft discards the draft only; the selection that produced it remains
func (c *SelectionController) CancelDraft() bool {
	if c.draft == nil {
		return false
	}
	c.draft = nil
	c.phase = PhaseIdle
	if len(c.selected) > 0 {
		c.phase = PhaseMultiSelectingConcepts
	}
	return true
}

// ClearSelection drops the multi-selection unless a draft depends on it
func (c *SelectionController) ClearSelection() {
	if c.phase != PhaseMultiSelectingConcepts {
		return
	}
	c.selected = nil
	c.phase = PhaseIdle
}

// ClearTrace drops every traced insight and the highlight set
func (c *SelectionController) ClearTrace() {
	if c.phase != PhaseTracingInsights {
		return
	}
	c.traced = nil
	c.RefreshHighlight()
}

// CloseDetail closes the read-only detail view
func (c *SelectionController) CloseDetail() {
	c.detail = ""
}

// RefreshHighlight recomputes the highlight set from the traced insights.
// Insights no longer present in the graph are dropped from the trace set.
func (c *SelectionController) RefreshHighlight() {
	kept := c.traced[:0]
	highlight := domainservices.NewHighlightSet()
	for _, id := range c.traced {
		if _, ok := c.lookup(id); !ok {
			continue
		}
		kept = append(kept, id)
		if c.tracer == nil {
			continue
		}
		for _, p := range c.tracer.Trace(id) {
			highlight.Add(p)
		}
	}
	c.traced = kept
	c.highlight = highlight

	switch {
	case len(c.traced) > 0:
		c.phase = PhaseTracingInsights
	case c.phase == PhaseTracingInsights:
		c.phase = PhaseIdle
	}
}

// Highlight returns the current highlight set
func (c *SelectionController) Highlight() domainservices.HighlightSet {
	return c.highlight
}

// TracedInsights returns the insights in the trace set, in click order
func (c *SelectionController) TracedInsights() []string {
	return append([]string(nil), c.traced...)
}

// State returns a snapshot of the interaction state
func (c *SelectionController) State() InteractionState {
	return InteractionState{
		Phase:          c.phase,
		MultiSelected:  append([]string{}, c.selected...),
		TracedInsights: append([]string{}, c.traced...),
		Draft:          c.copyDraft(),
		DetailNodeID:   c.detail,
	}
}

func (c *SelectionController) copyDraft() *domainservices.InsightDraft {
	if c.draft == nil {
		return nil
	}
	d := *c.draft
	d.SourceConceptIDs = append([]string(nil), c.draft.SourceConceptIDs...)
	return &d
}

func toggle(ids []string, id string) []string {
	for i, existing := range ids {
		if existing == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return append(ids, id)
}
