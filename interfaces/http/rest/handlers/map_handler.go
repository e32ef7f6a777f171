package handlers

import (
	"encoding/json"
	"net/http"

	"literature-flow/application/ports"
	"literature-flow/application/services"
	"literature-flow/domain/core/entities"
	"literature-flow/domain/core/valueobjects"
	domainservices "literature-flow/domain/services"
	pkgerrors "literature-flow/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// MapHandler bridges the rendering surface to a project's map session
type MapHandler struct {
	sessions     *services.SessionRegistry
	logger       *zap.Logger
	errorHandler *pkgerrors.ErrorHandler
}

// NewMapHandler creates a new map handler
func NewMapHandler(sessions *services.SessionRegistry, logger *zap.Logger, errorHandler *pkgerrors.ErrorHandler) *MapHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MapHandler{
		sessions:     sessions,
		logger:       logger.Named("map_handler"),
		errorHandler: errorHandler,
	}
}

// Routes mounts the map endpoints under /projects/{projectID}/map
func (h *MapHandler) Routes(r chi.Router) {
	r.Get("/", h.GetFrame)
	r.Post("/open", h.OpenView)
	r.Put("/mode", h.SetMode)
	r.Post("/clicks", h.Click)

	r.Post("/insight-draft", h.OpenInsightDraft)
	r.Put("/insight-draft", h.UpdateInsightDraft)
	r.Delete("/insight-draft", h.CancelInsightDraft)
	r.Post("/insight-draft/save", h.SaveInsightDraft)

	r.Post("/connections", h.ProposeConnection)
	r.Post("/connections/commit", h.CommitConnection)
	r.Delete("/connections", h.CancelConnection)

	r.Get("/nodes/{nodeID}", h.GetNodeDetail)
	r.Put("/nodes/{nodeID}/position", h.MoveNode)
	r.Get("/nodes/{nodeID}/paths", h.GetPaths)

	r.Get("/traces", h.GetTraces)
	r.Delete("/traces", h.ClearTraces)
	r.Delete("/selection", h.ClearSelection)
	r.Get("/notifications", h.GetNotifications)
}

// NodeView is a positioned node as drawn by the rendering surface
type NodeView struct {
	ID             string                        `json:"id"`
	Type           valueobjects.NodeType         `json:"type"`
	Label          string                        `json:"label"`
	Position       valueobjects.Position         `json:"position"`
	PositionSource domainservices.PositionSource `json:"positionSource"`
	Synthetic      bool                          `json:"synthetic,omitempty"`
	Highlighted    bool                          `json:"highlighted,omitempty"`
}

// EdgeView is an edge as drawn by the rendering surface
type EdgeView struct {
	ID          string                `json:"id"`
	Source      string                `json:"source"`
	Target      string                `json:"target"`
	Type        valueobjects.EdgeType `json:"type"`
	Annotation  string                `json:"annotation,omitempty"`
	Strength    float64               `json:"strength"`
	Structural  bool                  `json:"structural,omitempty"`
	Highlighted bool                  `json:"highlighted,omitempty"`
}

// FrameResponse is the body of GET /map
type FrameResponse struct {
	ProjectID string                    `json:"projectId"`
	Mode      valueobjects.LayoutMode   `json:"mode"`
	Nodes     []NodeView                `json:"nodes"`
	Edges     []EdgeView                `json:"edges"`
	State     services.InteractionState `json:"state"`
}

// SetModeRequest switches the layout mode
type SetModeRequest struct {
	Mode string `json:"mode" validate:"required,layoutmode"`
}

// ClickRequest is a node click with its held modifiers
type ClickRequest struct {
	NodeID string `json:"nodeId" validate:"required"`
	Shift  bool   `json:"shift"`
	Ctrl   bool   `json:"ctrl"`
	Meta   bool   `json:"meta"`
}

// InsightDraftRequest opens or edits the insight draft
type InsightDraftRequest struct {
	Title   string `json:"title" validate:"max=200"`
	Details string `json:"details" validate:"max=10000"`
}

// ConnectRequest is a drag-connect between two nodes
type ConnectRequest struct {
	SourceID string `json:"sourceId" validate:"required"`
	TargetID string `json:"targetId" validate:"required"`
}

// CommitConnectionRequest picks the relationship for the pending draft
type CommitConnectionRequest struct {
	DraftID    string `json:"draftId" validate:"required"`
	Type       string `json:"type" validate:"required,edgetype"`
	Annotation string `json:"annotation" validate:"max=1000"`
}

// MoveNodeRequest is the drop position of a dragged node
type MoveNodeRequest struct {
	X *float64 `json:"x" validate:"required"`
	Y *float64 `json:"y" validate:"required"`
}

// GetFrame handles GET /map
func (h *MapHandler) GetFrame(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	h.respondJSON(w, http.StatusOK, toFrameResponse(session.Frame(r.Context())))
}

// OpenView handles POST /map/open. The project's graph is rebuilt from the
// store so nodes created elsewhere appear.
func (h *MapHandler) OpenView(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	session, err := h.sessions.OpenView(r.Context(), projectID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toFrameResponse(session.Frame(r.Context())))
}

// SetMode handles PUT /map/mode
func (h *MapHandler) SetMode(w http.ResponseWriter, r *http.Request) {
	var req SetModeRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	mode, err := valueobjects.ParseLayoutMode(req.Mode)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	if err := session.SetLayoutMode(r.Context(), mode); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toFrameResponse(session.Frame(r.Context())))
}

// Click handles POST /map/clicks
func (h *MapHandler) Click(w http.ResponseWriter, r *http.Request) {
	var req ClickRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	result, err := session.HandleNodeClick(r.Context(), req.NodeID, services.Modifiers{
		Shift: req.Shift,
		Ctrl:  req.Ctrl,
		Meta:  req.Meta,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// OpenInsightDraft handles POST /map/insight-draft
func (h *MapHandler) OpenInsightDraft(w http.ResponseWriter, r *http.Request) {
	var req InsightDraftRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	draft, err := session.OpenInsightDraft(req.Title)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, draft)
}

// UpdateInsightDraft handles PUT /map/insight-draft
func (h *MapHandler) UpdateInsightDraft(w http.ResponseWriter, r *http.Request) {
	var req InsightDraftRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	draft, err := session.UpdateInsightDraft(req.Title, req.Details)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, draft)
}

// CancelInsightDraft handles DELETE /map/insight-draft
func (h *MapHandler) CancelInsightDraft(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	if !session.CancelInsightDraft() {
		h.errorHandler.Handle(w, r, pkgerrors.NewNotFoundError("insight draft"))
		return
	}
	h.respondJSON(w, http.StatusOK, session.State())
}

// SaveInsightDraft handles POST /map/insight-draft/save
func (h *MapHandler) SaveInsightDraft(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	insight, edges, err := session.SaveInsightDraft(r.Context())
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	views := make([]EdgeView, 0, len(edges))
	for _, e := range edges {
		views = append(views, toEdgeView(e, nil))
	}
	h.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"insight": map[string]interface{}{
			"id":               insight.ID,
			"title":            insight.Title,
			"details":          insight.Details,
			"sourceConceptIds": sourceIDs(edges),
		},
		"edges": views,
		"state": session.State(),
	})
}

// ProposeConnection handles POST /map/connections
func (h *MapHandler) ProposeConnection(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	draft, err := session.HandleConnectAttempt(r.Context(), req.SourceID, req.TargetID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"draft":         draft,
		"relationships": valueobjects.RelationshipVocabulary,
	})
}

// CommitConnection handles POST /map/connections/commit
func (h *MapHandler) CommitConnection(w http.ResponseWriter, r *http.Request) {
	var req CommitConnectionRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	edge, err := session.CommitConnection(r.Context(), req.DraftID, valueobjects.EdgeType(req.Type), req.Annotation)
	if err != nil {
		h.logger.Warn("Failed to commit connection",
			zap.String("projectID", session.ProjectID()),
			zap.String("draftID", req.DraftID),
			zap.Error(err),
		)
		h.errorHandler.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, toEdgeView(edge, nil))
}

// CancelConnection handles DELETE /map/connections
func (h *MapHandler) CancelConnection(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	if !session.CancelConnection() {
		h.errorHandler.Handle(w, r, pkgerrors.NewNotFoundError("connection draft"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetNodeDetail handles GET /map/nodes/{nodeID}
func (h *MapHandler) GetNodeDetail(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	detail, err := session.NodeDetail(chi.URLParam(r, "nodeID"))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, detail)
}

// MoveNode handles PUT /map/nodes/{nodeID}/position
func (h *MapHandler) MoveNode(w http.ResponseWriter, r *http.Request) {
	var req MoveNodeRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	pos, err := valueobjects.NewPosition(*req.X, *req.Y)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	nodeID := chi.URLParam(r, "nodeID")
	channel, err := session.HandleDragEnd(r.Context(), nodeID, pos)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"nodeId":   nodeID,
		"position": pos,
		"mode":     session.Mode(),
		"channel":  channel,
	})
}

// GetPaths handles GET /map/nodes/{nodeID}/paths
func (h *MapHandler) GetPaths(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	paths, err := session.FindPathsToRoot(chi.URLParam(r, "nodeID"))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	if paths == nil {
		paths = []services.LabeledPath{}
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"paths": paths})
}

// GetTraces handles GET /map/traces
func (h *MapHandler) GetTraces(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	traces := session.TracedPaths()
	if traces == nil {
		traces = []services.TracedInsight{}
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"traces": traces})
}

// ClearTraces handles DELETE /map/traces
func (h *MapHandler) ClearTraces(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	h.respondJSON(w, http.StatusOK, session.ClearTrace())
}

// ClearSelection handles DELETE /map/selection
func (h *MapHandler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	h.respondJSON(w, http.StatusOK, session.ClearSelection())
}

// GetNotifications handles GET /map/notifications
func (h *MapHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	notices := session.Notifications()
	if notices == nil {
		notices = []ports.Notice{}
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"notifications": notices})
}

func (h *MapHandler) session(w http.ResponseWriter, r *http.Request) (*services.MapSession, bool) {
	projectID := chi.URLParam(r, "projectID")
	session, err := h.sessions.Get(r.Context(), projectID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return nil, false
	}
	return session, true
}

func (h *MapHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func toFrameResponse(frame services.Frame) FrameResponse {
	resp := FrameResponse{
		ProjectID: frame.ProjectID,
		Mode:      frame.Mode,
		Nodes:     make([]NodeView, 0, len(frame.Nodes)),
		Edges:     make([]EdgeView, 0, len(frame.Edges)),
		State:     frame.State,
	}
	for _, pn := range frame.Nodes {
		_, lit := frame.Highlight.NodeIDs[pn.Node.ID]
		resp.Nodes = append(resp.Nodes, NodeView{
			ID:             pn.Node.ID,
			Type:           pn.Node.Type,
			Label:          pn.Node.Label(),
			Position:       pn.Position,
			PositionSource: pn.Source,
			Synthetic:      pn.Node.Synthetic,
			Highlighted:    lit,
		})
	}
	for _, e := range frame.Edges {
		resp.Edges = append(resp.Edges, toEdgeView(e, frame.Highlight.EdgeIDs))
	}
	return resp
}

func toEdgeView(e *entities.Edge, highlighted map[string]struct{}) EdgeView {
	_, lit := highlighted[e.ID]
	return EdgeView{
		ID:          e.ID,
		Source:      e.SourceID,
		Target:      e.TargetID,
		Type:        e.Type,
		Annotation:  e.Annotation,
		Strength:    e.Strength,
		Structural:  e.Structural,
		Highlighted: lit,
	}
}

func sourceIDs(edges []*entities.Edge) []string {
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.SourceID)
	}
	return ids
}
