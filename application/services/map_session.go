package services

import (
	"context"
	"sync"
	"time"

	"literature-flow/application/ports"
	"literature-flow/domain/config"
	"literature-flow/domain/core/aggregates"
	"literature-flow/domain/core/entities"
	"literature-flow/domain/core/valueobjects"
	"literature-flow/domain/events"
	domainservices "literature-flow/domain/services"
	pkgerrors "literature-flow/pkg/errors"
	"literature-flow/pkg/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// SessionDeps are the collaborators shared by every map session
type SessionDeps struct {
	Store        ports.GraphStore
	Projects     ports.ProjectStore
	Cache        ports.KeyValueCache
	Publisher    ports.EventPublisher
	Logger       *zap.Logger
	Metrics      *observability.Collector
	Tracer       trace.Tracer
	Layout       *config.LayoutConfig
	QueueSize    int
	WriteTimeout time.Duration
}

// Frame is everything the rendering surface needs to draw the map
type Frame struct {
	ProjectID string                          `json:"projectId"`
	Mode      valueobjects.LayoutMode         `json:"mode"`
	Nodes     []domainservices.PositionedNode `json:"-"`
	Edges     []*entities.Edge                `json:"-"`
	Highlight domainservices.HighlightSet     `json:"-"`
	State     InteractionState                `json:"state"`
}

// NodeDetail is the read-only view opened by a plain click
type NodeDetail struct {
	ID              string                `json:"id"`
	Type            valueobjects.NodeType `json:"type"`
	Title           string                `json:"title"`
	Content         string                `json:"content,omitempty"`
	ConfidenceScore *float64              `json:"confidenceScore,omitempty"`
	ConceptSource   string                `json:"conceptSource,omitempty"`
	NotebookID      string                `json:"notebookId,omitempty"`
}

// ClickResult reports how a click was handled
type ClickResult struct {
	Outcome ClickOutcome     `json:"outcome"`
	Detail  *NodeDetail      `json:"detail,omitempty"`
	State   InteractionState `json:"state"`
}

// LabeledPath is a provenance path with display labels
type LabeledPath struct {
	NodeIDs []string `json:"nodeIds"`
	Labels  []string `json:"labels"`
	Orphan  bool     `json:"orphan"`
}

// TracedInsight groups the paths of one traced insight for the side panel
type TracedInsight struct {
	InsightID string        `json:"insightId"`
	Label     string        `json:"label"`
	Paths     []LabeledPath `json:"paths"`
}

// MapSession owns the graph store and interaction state of one project view.
// Every exported method serializes on the session lock; remote writes happen
// afterwards on the session's writer.
type MapSession struct {
	mu sync.Mutex

	projectID string
	project   entities.Project
	mode      valueobjects.LayoutMode
	graph     *aggregates.Graph

	store       ports.GraphStore
	projects    ports.ProjectStore
	publisher   ports.EventPublisher
	positions   *PositionPersistence
	writer      *RemoteWriter
	notices     *NoticeBuffer
	synthesizer *domainservices.StructuralEdgeSynthesizer
	resolver    *domainservices.LayoutResolver
	selection   *SelectionController
	connections *ConnectionEditor

	// created this session, kept across reloads until the store returns them
	localNodes []*entities.Node
	localEdges []*entities.Edge

	logger  *zap.Logger
	metrics *observability.Collector
	tracer  trace.Tracer
}

// NewMapSession creates a session. Open must be called before use.
func NewMapSession(projectID string, deps SessionDeps) (*MapSession, error) {
	graph, err := aggregates.NewGraph(projectID)
	if err != nil {
		return nil, err
	}
	if deps.Store == nil || deps.Cache == nil {
		return nil, pkgerrors.NewValidationError("graph store and cache are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(observability.TracerName)
	}
	logger = logger.Named("map_session").With(zap.String("projectID", projectID))

	notices := NewNoticeBuffer()
	writer := NewRemoteWriter(deps.QueueSize, deps.WriteTimeout, notices, logger, deps.Metrics)

	s := &MapSession{
		projectID:   projectID,
		project:     entities.Project{ID: projectID},
		mode:        valueobjects.DefaultLayoutMode,
		graph:       graph,
		store:       deps.Store,
		projects:    deps.Projects,
		publisher:   deps.Publisher,
		positions:   NewPositionPersistence(deps.Store, deps.Cache, writer, logger, deps.Metrics),
		writer:      writer,
		notices:     notices,
		synthesizer: domainservices.NewStructuralEdgeSynthesizer(),
		resolver:    domainservices.NewLayoutResolver(deps.Layout),
		logger:      logger,
		metrics:     deps.Metrics,
		tracer:      tracer,
	}
	s.selection = NewSelectionController(s.lookup, sessionTracer{s})
	s.connections = NewConnectionEditor(s.lookup)
	return s, nil
}

// ProjectID returns the session's project
func (s *MapSession) ProjectID() string {
	return s.projectID
}

// Open loads the project metadata, the sticky layout mode and the graph
func (s *MapSession) Open(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "MapSession.Open", trace.WithAttributes(attribute.String("project.id", s.projectID)))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.loadProject(ctx)
	s.mode = s.positions.LayoutMode(ctx, s.projectID)
	s.reload(ctx)
	return nil
}

// Reload rebuilds the graph store so nodes and edges written by other flows
// show up. Interaction state, local creations and known positions are kept.
func (s *MapSession) Reload(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "MapSession.Reload", trace.WithAttributes(attribute.String("project.id", s.projectID)))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.loadProject(ctx)
	s.reload(ctx)
}

func (s *MapSession) loadProject(ctx context.Context) {
	if s.projects == nil {
		return
	}
	project, err := s.projects.GetProject(ctx, s.projectID)
	if err != nil {
		s.logger.Warn("Failed to load project metadata", zap.Error(err))
		return
	}
	if project != nil {
		s.project = *project
	}
}

// reload rebuilds the graph store from the authoritative store. A failed read
// leaves an empty graph with a root so the map still renders.
func (s *MapSession) reload(ctx context.Context) {
	nodes, err := s.store.ListNodes(ctx, s.projectID)
	if err != nil {
		s.logger.Error("Failed to list nodes", zap.Error(err))
		s.notices.Notify(ports.Notice{Operation: "list_nodes", Message: "map could not be loaded: " + err.Error()})
		nodes = nil
	}
	edges, err := s.store.ListEdges(ctx, s.projectID)
	if err != nil {
		s.logger.Error("Failed to list edges", zap.Error(err))
		s.notices.Notify(ports.Notice{Operation: "list_edges", Message: "connections could not be loaded: " + err.Error()})
		edges = nil
	}

	carried := make(map[string]*entities.Node, s.graph.Len())
	for _, n := range s.graph.Nodes() {
		carried[n.ID] = n
	}

	for _, skipped := range s.graph.Load(nodes, edges) {
		s.logger.Warn("Skipped row while loading graph", zap.Error(skipped))
	}

	s.graph.EnsureProjectRoot(s.project)

	// background position writes may not have landed yet; keep what this session already knows
	for _, n := range s.graph.Nodes() {
		if prev, ok := carried[n.ID]; ok {
			carryPositions(prev, n)
		}
	}
	s.restoreLocal()
	s.selection.RefreshHighlight()

	s.logger.Debug("Graph loaded",
		zap.Int("nodes", s.graph.Len()),
		zap.Int("edges", len(s.graph.Edges())),
		zap.String("mode", string(s.mode)),
	)
}

// Frame resolves positions and merges explicit with structural edges
func (s *MapSession) Frame(ctx context.Context) Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame(ctx)
}

func (s *MapSession) frame(ctx context.Context) Frame {
	nodes := s.graph.Nodes()
	edges := s.renderEdges()
	cached := s.positions.LoadCached(ctx, nodes, s.mode)

	return Frame{
		ProjectID: s.projectID,
		Mode:      s.mode,
		Nodes:     s.resolver.Resolve(nodes, edges, s.mode, cached),
		Edges:     edges,
		Highlight: s.selection.Highlight(),
		State:     s.selection.State(),
	}
}

func (s *MapSession) renderEdges() []*entities.Edge {
	root, _ := s.graph.Root()
	structural := s.synthesizer.Synthesize(s.graph.Nodes(), root)
	return domainservices.MergeEdges(s.graph.VisibleEdges(), structural)
}

// Mode returns the active layout mode
func (s *MapSession) Mode() valueobjects.LayoutMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetLayoutMode switches coordinate spaces, remembers the choice and rebuilds the graph store
func (s *MapSession) SetLayoutMode(ctx context.Context, mode valueobjects.LayoutMode) error {
	if !mode.IsValid() {
		return pkgerrors.NewValidationError("unknown layout mode: " + string(mode))
	}
	ctx, span := s.tracer.Start(ctx, "MapSession.SetLayoutMode", trace.WithAttributes(attribute.String("layout.mode", string(mode))))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if mode == s.mode {
		return nil
	}
	from := s.mode
	s.mode = mode
	s.positions.SaveLayoutMode(ctx, s.projectID, mode)
	s.reload(ctx)
	s.graph.RecordEvent(events.NewLayoutModeChanged(s.projectID, from, mode, time.Now().UTC()))
	s.flushEvents()
	return nil
}

// HandleNodeClick routes a click by its modifiers
func (s *MapSession) HandleNodeClick(ctx context.Context, nodeID string, mods Modifiers) (ClickResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcome, err := s.selection.Click(nodeID, mods)
	if err != nil {
		return ClickResult{Outcome: outcome, State: s.selection.State()}, err
	}
	result := ClickResult{Outcome: outcome, State: s.selection.State()}
	if outcome == ClickOpenedDetail {
		result.Detail = s.detail(nodeID)
	}
	return result, nil
}

// NodeDetail returns the read-only detail of a node
func (s *MapSession) NodeDetail(nodeID string) (*NodeDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d := s.detail(nodeID); d != nil {
		return d, nil
	}
	return nil, pkgerrors.NewNotFoundError("node " + nodeID)
}

func (s *MapSession) detail(nodeID string) *NodeDetail {
	n, ok := s.graph.Node(nodeID)
	if !ok {
		return nil
	}
	d := &NodeDetail{
		ID:            n.ID,
		Type:          n.Type,
		Title:         n.Label(),
		Content:       n.Details,
		ConceptSource: n.ConceptSource(),
		NotebookID:    n.NotebookID(),
	}
	if score, ok := n.ConfidenceScore(); ok {
		d.ConfidenceScore = &score
	}
	return d
}

// HandleDragEnd moves a node in the active mode and persists the position
// on its channel. The in-memory move stands whatever happens to the write.
func (s *MapSession) HandleDragEnd(ctx context.Context, nodeID string, pos valueobjects.Position) (PersistenceChannel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.graph.MoveNode(nodeID, s.mode, pos); err != nil {
		return "", err
	}
	channel := s.positions.Save(ctx, nodeID, s.mode, pos)
	s.flushEvents()
	return channel, nil
}

// HandleConnectAttempt opens a connection draft between two nodes
func (s *MapSession) HandleConnectAttempt(ctx context.Context, sourceID, targetID string) (*ConnectionDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connections.Propose(sourceID, targetID)
}

// PendingConnection returns the open connection draft
func (s *MapSession) PendingConnection() (*ConnectionDraft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connections.Pending()
}

// CommitConnection creates the edge locally and writes it in the background
func (s *MapSession) CommitConnection(ctx context.Context, draftID string, edgeType valueobjects.EdgeType, annotation string) (*entities.Edge, error) {
	_, span := s.tracer.Start(ctx, "MapSession.CommitConnection", trace.WithAttributes(attribute.String("edge.type", string(edgeType))))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	edge, err := s.connections.Commit(draftID, edgeType, annotation, s.graph.AddEdge)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.metrics.RecordEdge()
	s.localEdges = append(s.localEdges, edge)

	projectID := s.projectID
	s.writer.Enqueue(WriteJob{
		Name: "insert_edge",
		Run: func(ctx context.Context) error {
			_, err := s.store.InsertEdge(ctx, projectID, edge)
			return err
		},
	})
	s.graph.RecordEvent(events.NewNodesConnected(projectID, edge.ID, edge.SourceID, edge.TargetID, edge.Type, time.Now().UTC()))
	s.flushEvents()
	return edge, nil
}

// CancelConnection discards the pending connection draft
func (s *MapSession) CancelConnection() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connections.Cancel()
}

// OpenInsightDraft starts an insight from the current concept selection
func (s *MapSession) OpenInsightDraft(title string) (*domainservices.InsightDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.OpenDraft(title)
}

// UpdateInsightDraft edits the open draft
func (s *MapSession) UpdateInsightDraft(title, details string) (*domainservices.InsightDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.UpdateDraft(title, details)
}

// CancelInsightDraft discards the open draft and keeps the selection
func (s *MapSession) CancelInsightDraft() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.CancelDraft()
}

// SaveInsightDraft creates one insight node and a supports edge from each
// selected concept, then clears the draft and the selection
func (s *MapSession) SaveInsightDraft(ctx context.Context) (*entities.Node, []*entities.Edge, error) {
	_, span := s.tracer.Start(ctx, "MapSession.SaveInsightDraft")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	draft, err := s.selection.PendingDraft()
	if err != nil {
		return nil, nil, err
	}
	insight, edges, err := domainservices.BuildInsight(draft, s.lookup)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}
	if err := s.graph.AddNode(insight); err != nil {
		return nil, nil, err
	}
	for _, e := range edges {
		if err := s.graph.AddEdge(e); err != nil {
			// endpoints were checked by BuildInsight
			return nil, nil, pkgerrors.Wrap(err, "failed to add supports edge")
		}
	}
	s.selection.CompleteDraft()
	s.metrics.RecordInsight(len(edges))
	s.localNodes = append(s.localNodes, insight)
	s.localEdges = append(s.localEdges, edges...)
	span.SetAttributes(attribute.String("insight.id", insight.ID), attribute.Int("insight.concepts", len(edges)))

	projectID := s.projectID
	node := insight.Clone()
	s.writer.Enqueue(WriteJob{
		Name: "create_insight",
		Run: func(ctx context.Context) error {
			if _, err := s.store.InsertNode(ctx, projectID, node); err != nil {
				return err
			}
			for _, e := range edges {
				if _, err := s.store.InsertEdge(ctx, projectID, e); err != nil {
					return err
				}
			}
			return nil
		},
	})
	s.graph.RecordEvent(events.NewInsightCreated(projectID, insight.ID, insight.Title, draft.SourceConceptIDs, time.Now().UTC()))
	s.flushEvents()
	return insight, edges, nil
}

// ClearSelection drops the concept multi-selection
func (s *MapSession) ClearSelection() InteractionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.ClearSelection()
	return s.selection.State()
}

// ClearTrace drops every traced insight
func (s *MapSession) ClearTrace() InteractionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.ClearTrace()
	return s.selection.State()
}

// State returns the interaction state
func (s *MapSession) State() InteractionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.State()
}

// FindPathsToRoot traces a node's provenance over explicit and structural edges
func (s *MapSession) FindPathsToRoot(nodeID string) ([]LabeledPath, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.graph.Node(nodeID); !ok {
		return nil, pkgerrors.NewNotFoundError("node " + nodeID)
	}
	tracer := s.provenance()
	return labelPaths(tracer, tracer.Trace(nodeID)), nil
}

// TracedPaths lists the paths of every traced insight with display labels
func (s *MapSession) TracedPaths() []TracedInsight {
	s.mu.Lock()
	defer s.mu.Unlock()

	tracer := s.provenance()
	var out []TracedInsight
	for _, id := range s.selection.TracedInsights() {
		out = append(out, TracedInsight{
			InsightID: id,
			Label:     tracer.Label(id),
			Paths:     labelPaths(tracer, tracer.Trace(id)),
		})
	}
	return out
}

// Notifications drains the non-blocking failure notices
func (s *MapSession) Notifications() []ports.Notice {
	return s.notices.Drain()
}

// Close drains the background writer
func (s *MapSession) Close(ctx context.Context) error {
	return s.writer.Close(ctx)
}

func (s *MapSession) lookup(id string) (*entities.Node, bool) {
	return s.graph.Node(id)
}

func (s *MapSession) provenance() *domainservices.ProvenanceTracer {
	return domainservices.NewProvenanceTracer(s.graph.Nodes(), s.renderEdges())
}

// flushEvents hands recorded domain events to the publisher in the background
func (s *MapSession) flushEvents() {
	pending := s.graph.PullEvents()
	if len(pending) == 0 || s.publisher == nil {
		return
	}
	s.writer.Enqueue(WriteJob{
		Name: "publish_events",
		Run: func(ctx context.Context) error {
			return s.publisher.Publish(ctx, pending)
		},
	})
}

func (s *MapSession) restoreLocal() {
	var nodes []*entities.Node
	for _, n := range s.localNodes {
		if _, ok := s.graph.Node(n.ID); ok {
			continue
		}
		if err := s.graph.AddNode(n); err == nil {
			nodes = append(nodes, n)
		}
	}
	stored := make(map[string]bool)
	for _, e := range s.graph.Edges() {
		stored[e.ID] = true
	}
	var edges []*entities.Edge
	for _, e := range s.localEdges {
		if stored[e.ID] {
			continue
		}
		if err := s.graph.AddEdge(e); err == nil {
			edges = append(edges, e)
		}
	}
	s.localNodes, s.localEdges = nodes, edges
}

func carryPositions(prev, next *entities.Node) {
	ph, ps, pl := prev.Positions()
	nh, ns, nl := next.Positions()
	if ph != nil {
		nh = ph
	}
	if ps != nil {
		ns = ps
	}
	if pl != nil {
		nl = pl
	}
	next.RestorePositions(nh, ns, nl)
}

func labelPaths(tracer *domainservices.ProvenanceTracer, paths []domainservices.Path) []LabeledPath {
	out := make([]LabeledPath, 0, len(paths))
	for _, p := range paths {
		labels := make([]string, len(p.Nodes))
		for i, id := range p.Nodes {
			labels[i] = tracer.Label(id)
		}
		out = append(out, LabeledPath{NodeIDs: p.Nodes, Labels: labels, Orphan: p.Orphan})
	}
	return out
}

// sessionTracer lets the selection controller trace over the session's
// current graph. It runs under the session lock.
type sessionTracer struct {
	s *MapSession
}

func (t sessionTracer) Trace(nodeID string) []domainservices.Path {
	return t.s.provenance().Trace(nodeID)
}
