package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"literature-flow/domain/core/entities"
	"literature-flow/domain/core/valueobjects"
	pkgerrors "literature-flow/pkg/errors"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) ListNodes(ctx context.Context, projectID string) ([]*entities.Node, error) {
	args := m.Called(ctx, projectID)
	nodes, _ := args.Get(0).([]*entities.Node)
	return nodes, args.Error(1)
}

func (m *mockStore) ListEdges(ctx context.Context, projectID string) ([]*entities.Edge, error) {
	args := m.Called(ctx, projectID)
	edges, _ := args.Get(0).([]*entities.Edge)
	return edges, args.Error(1)
}

func (m *mockStore) InsertNode(ctx context.Context, projectID string, node *entities.Node) (*entities.Node, error) {
	args := m.Called(ctx, projectID, node)
	return node, args.Error(0)
}

func (m *mockStore) InsertEdge(ctx context.Context, projectID string, edge *entities.Edge) (*entities.Edge, error) {
	args := m.Called(ctx, projectID, edge)
	return edge, args.Error(0)
}

func (m *mockStore) UpdateNodePosition(ctx context.Context, nodeID string, pos valueobjects.Position, mode valueobjects.LayoutMode) error {
	return m.Called(ctx, nodeID, pos, mode).Error(0)
}

func testBreakerConfig() BreakerConfig {
	cfg := DefaultBreakerConfig("test")
	cfg.MinRequests = 3
	cfg.Timeout = time.Minute
	return cfg
}

func TestBreakerStore_TripsOnStoreFailures(t *testing.T) {
	next := new(mockStore)
	next.On("ListNodes", mock.Anything, "p1").Return(nil, errors.New("connection reset")).Times(3)
	store := NewBreakerStore(next, testBreakerConfig(), zap.NewNop())

	for i := 0; i < 3; i++ {
		_, err := store.ListNodes(context.Background(), "p1")
		require.Error(t, err)
		assert.False(t, pkgerrors.IsUnavailable(err))
	}
	assert.Equal(t, gobreaker.StateOpen, store.State())

	_, err := store.ListNodes(context.Background(), "p1")
	assert.True(t, pkgerrors.IsUnavailable(err))
	next.AssertExpectations(t)
}

func TestBreakerStore_CallerErrorsDoNotTrip(t *testing.T) {
	next := new(mockStore)
	pos := valueobjects.MustPosition(1, 1)
	next.On("UpdateNodePosition", mock.Anything, "ghost", pos, valueobjects.LayoutSpatial).
		Return(pkgerrors.NewNotFoundError("node ghost"))
	store := NewBreakerStore(next, testBreakerConfig(), nil)

	for i := 0; i < 5; i++ {
		err := store.UpdateNodePosition(context.Background(), "ghost", pos, valueobjects.LayoutSpatial)
		assert.True(t, pkgerrors.IsNotFound(err))
	}
	assert.Equal(t, gobreaker.StateClosed, store.State())
}

func TestBreakerStore_PassesResultsThrough(t *testing.T) {
	next := new(mockStore)
	edge := &entities.Edge{ID: "e1", SourceID: "a", TargetID: "b", Type: valueobjects.EdgeTypeSupports}
	next.On("InsertEdge", mock.Anything, "p1", edge).Return(nil)
	next.On("ListEdges", mock.Anything, "p1").Return([]*entities.Edge{edge}, nil)
	store := NewBreakerStore(next, testBreakerConfig(), nil)

	stored, err := store.InsertEdge(context.Background(), "p1", edge)
	require.NoError(t, err)
	assert.Same(t, edge, stored)

	edges, err := store.ListEdges(context.Background(), "p1")
	require.NoError(t, err)
	assert.Len(t, edges, 1)
}
