package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"literature-flow/application/services"
	"literature-flow/domain/core/entities"
	"literature-flow/domain/core/valueobjects"
	"literature-flow/infrastructure/cache"
	"literature-flow/infrastructure/persistence/memory"
	"literature-flow/interfaces/http/rest/handlers"
	"literature-flow/pkg/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	store   *memory.GraphStore
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	store := memory.NewGraphStore(zap.NewNop())
	store.PutProject(entities.Project{ID: "1", Title: "Sleep and memory"})

	seed := []struct {
		id       string
		nodeType valueobjects.NodeType
		payload  entities.NodePayload
	}{
		{"P", valueobjects.NodeTypeProject, entities.ProjectPayload{IsProjectRoot: true}},
		{"NB1", valueobjects.NodeTypeNotebook, nil},
		{"S1", valueobjects.NodeTypeSource, entities.SourcePayload{NotebookID: "NB1"}},
		{"C1", valueobjects.NodeTypeConcept, entities.ConceptPayload{NotebookID: "NB1"}},
		{"C2", valueobjects.NodeTypeHypothesis, entities.ConceptPayload{NotebookID: "NB1"}},
	}
	for _, s := range seed {
		n, err := entities.NewNode(s.id, s.nodeType, s.id, s.payload)
		require.NoError(t, err)
		_, err = store.InsertNode(ctx, "1", n)
		require.NoError(t, err)
	}

	metrics := observability.NewCollector("test")
	registry := services.NewSessionRegistry(services.SessionDeps{
		Store:        store,
		Projects:     store,
		Cache:        cache.NewMemoryCache(0),
		Logger:       zap.NewNop(),
		Metrics:      metrics,
		WriteTimeout: time.Second,
	})
	t.Cleanup(func() { _ = registry.Close(context.Background()) })

	router := NewRouter(registry, metrics, zap.NewNop(), RouterOptions{EnableCORS: true, EnableMetrics: true})
	return &testServer{store: store, handler: router.Setup()}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

const mapPath = "/api/v1/projects/1/map"

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestRouter_Frame(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, mapPath+"/", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var frame handlers.FrameResponse
	decode(t, rec, &frame)
	assert.Equal(t, valueobjects.LayoutHierarchical, frame.Mode)
	assert.Len(t, frame.Nodes, 5)

	types := map[valueobjects.EdgeType]int{}
	for _, e := range frame.Edges {
		assert.True(t, e.Structural)
		types[e.Type]++
	}
	assert.Equal(t, 1, types[valueobjects.EdgeTypeIncludes])
	assert.Equal(t, 1, types[valueobjects.EdgeTypeContains])
	assert.Equal(t, 2, types[valueobjects.EdgeTypeCites])
}

func TestRouter_OpenViewShowsExternalNodes(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, mapPath+"/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	extracted, err := entities.NewNode("C3", valueobjects.NodeTypeConcept, "C3", entities.ConceptPayload{NotebookID: "NB1"})
	require.NoError(t, err)
	_, err = s.store.InsertNode(context.Background(), "1", extracted)
	require.NoError(t, err)

	var frame handlers.FrameResponse
	decode(t, s.do(t, http.MethodGet, mapPath+"/", nil), &frame)
	assert.Len(t, frame.Nodes, 5)

	rec = s.do(t, http.MethodPost, mapPath+"/open", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &frame)
	require.Len(t, frame.Nodes, 6)
	cites := 0
	for _, e := range frame.Edges {
		if e.Type == valueobjects.EdgeTypeCites && e.Target == "C3" {
			cites++
		}
	}
	assert.Equal(t, 1, cites)

	rec = s.do(t, http.MethodPost, "/api/v1/projects/2/map/open", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_InsightFlow(t *testing.T) {
	s := newTestServer(t)

	for _, id := range []string{"C1", "C2"} {
		rec := s.do(t, http.MethodPost, mapPath+"/clicks", handlers.ClickRequest{NodeID: id, Shift: true})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := s.do(t, http.MethodPost, mapPath+"/insight-draft", handlers.InsightDraftRequest{Title: "Insight-A"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPut, mapPath+"/insight-draft", handlers.InsightDraftRequest{Title: "Insight-A", Details: "REM links both"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, mapPath+"/insight-draft/save", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var saved struct {
		Insight struct {
			ID               string   `json:"id"`
			Title            string   `json:"title"`
			SourceConceptIDs []string `json:"sourceConceptIds"`
		} `json:"insight"`
		Edges []handlers.EdgeView       `json:"edges"`
		State services.InteractionState `json:"state"`
	}
	decode(t, rec, &saved)
	assert.Equal(t, "Insight-A", saved.Insight.Title)
	assert.ElementsMatch(t, []string{"C1", "C2"}, saved.Insight.SourceConceptIDs)
	require.Len(t, saved.Edges, 2)
	for _, e := range saved.Edges {
		assert.Equal(t, valueobjects.EdgeTypeSupports, e.Type)
		assert.Equal(t, saved.Insight.ID, e.Target)
	}
	assert.Empty(t, saved.State.MultiSelected)

	// the background writer persists the insight and both edges
	assert.Eventually(t, func() bool {
		edges, err := s.store.ListEdges(context.Background(), "1")
		return err == nil && len(edges) == 2
	}, 2*time.Second, 10*time.Millisecond)

	rec = s.do(t, http.MethodPost, mapPath+"/insight-draft/save", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_DragPersistsPosition(t *testing.T) {
	s := newTestServer(t)

	x, y := 10.0, 20.0
	rec := s.do(t, http.MethodPut, mapPath+"/nodes/C1/position", handlers.MoveNodeRequest{X: &x, Y: &y})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var moved map[string]interface{}
	decode(t, rec, &moved)
	assert.Equal(t, string(services.ChannelStore), moved["channel"])

	assert.Eventually(t, func() bool {
		nodes, err := s.store.ListNodes(context.Background(), "1")
		if err != nil {
			return false
		}
		for _, n := range nodes {
			if n.ID == "C1" {
				pos, ok := n.PositionFor(valueobjects.LayoutHierarchical)
				return ok && pos.Equals(valueobjects.MustPosition(10, 20))
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	rec = s.do(t, http.MethodPut, mapPath+"/nodes/C1/position", map[string]float64{"x": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, mapPath+"/nodes/ghost/position", handlers.MoveNodeRequest{X: &x, Y: &y})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_ModeAndPaths(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPut, mapPath+"/mode", handlers.SetModeRequest{Mode: "spatial"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var frame handlers.FrameResponse
	decode(t, rec, &frame)
	assert.Equal(t, valueobjects.LayoutSpatial, frame.Mode)

	rec = s.do(t, http.MethodPut, mapPath+"/mode", handlers.SetModeRequest{Mode: "radial"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, mapPath+"/nodes/C1/paths", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Paths []services.LabeledPath `json:"paths"`
	}
	decode(t, rec, &body)
	var chains [][]string
	for _, p := range body.Paths {
		chains = append(chains, p.NodeIDs)
	}
	assert.Contains(t, chains, []string{"C1", "S1", "NB1", "P"})

	rec = s.do(t, http.MethodGet, mapPath+"/nodes/ghost/paths", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, mapPath+"/nodes/C1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail services.NodeDetail
	decode(t, rec, &detail)
	assert.Equal(t, "NB1", detail.NotebookID)
}

func TestRouter_Connections(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, mapPath+"/connections", handlers.ConnectRequest{SourceID: "C1", TargetID: "C1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, mapPath+"/connections", handlers.ConnectRequest{SourceID: "C1", TargetID: "C2"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var proposed struct {
		Draft services.ConnectionDraft `json:"draft"`
	}
	decode(t, rec, &proposed)
	require.NotEmpty(t, proposed.Draft.ID)

	rec = s.do(t, http.MethodPost, mapPath+"/connections/commit", handlers.CommitConnectionRequest{DraftID: proposed.Draft.ID, Type: "sideways"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, mapPath+"/connections/commit", handlers.CommitConnectionRequest{
		DraftID:    proposed.Draft.ID,
		Type:       string(valueobjects.EdgeTypeContradicts),
		Annotation: "different cohorts",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var edge handlers.EdgeView
	decode(t, rec, &edge)
	assert.Equal(t, "C1", edge.Source)
	assert.Equal(t, "C2", edge.Target)
	assert.False(t, edge.Structural)

	rec = s.do(t, http.MethodDelete, mapPath+"/connections", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_NotificationsAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, mapPath+"/notifications", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"notifications":[]}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_http_requests_total")

	rec = s.do(t, http.MethodPost, mapPath+"/clicks", "not an object")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
