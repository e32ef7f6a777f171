package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"literature-flow/domain/config"
	"literature-flow/domain/core/entities"
	"literature-flow/domain/core/valueobjects"
	pkgerrors "literature-flow/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) (*SessionRegistry, *MockGraphStore) {
	t.Helper()
	store := new(MockGraphStore)
	store.On("ListNodes", mock.Anything, mock.Anything).Return([]*entities.Node(nil), nil)
	store.On("ListEdges", mock.Anything, mock.Anything).Return([]*entities.Edge(nil), nil)
	r := NewSessionRegistry(SessionDeps{Store: store, Cache: newFakeCache()})
	t.Cleanup(func() { _ = r.Close(context.Background()) })
	return r, store
}

func TestSessionRegistry_GetReusesSessions(t *testing.T) {
	r, store := newRegistry(t)
	ctx := context.Background()

	first, err := r.Get(ctx, "1")
	require.NoError(t, err)
	again, err := r.Get(ctx, "1")
	require.NoError(t, err)
	assert.Same(t, first, again)

	other, err := r.Get(ctx, "2")
	require.NoError(t, err)
	assert.NotSame(t, first, other)
	assert.Equal(t, 2, r.Len())
	store.AssertNumberOfCalls(t, "ListNodes", 2)

	_, err = r.Get(ctx, "")
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Equal(t, 2, r.Len())
}

func TestSessionRegistry_EvictReloads(t *testing.T) {
	r, store := newRegistry(t)
	ctx := context.Background()

	first, err := r.Get(ctx, "1")
	require.NoError(t, err)
	require.NoError(t, r.Evict(ctx, "1"))
	require.NoError(t, r.Evict(ctx, "1"))
	assert.Equal(t, 0, r.Len())

	second, err := r.Get(ctx, "1")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	store.AssertNumberOfCalls(t, "ListNodes", 2)
}

func TestSessionRegistry_UpdateLayoutConfig(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	cfg := config.DefaultLayoutConfig()
	cfg.RootX = 900
	r.UpdateLayoutConfig(cfg)

	broken := config.DefaultLayoutConfig()
	broken.SpatialColumns = 0
	r.UpdateLayoutConfig(broken)
	r.UpdateLayoutConfig(nil)

	s, err := r.Get(ctx, "1")
	require.NoError(t, err)
	frame := s.Frame(ctx)
	require.Len(t, frame.Nodes, 1)
	assert.Equal(t, 900.0, frame.Nodes[0].Position.X())
}

func TestSessionRegistry_Close(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	_, err := r.Get(ctx, "1")
	require.NoError(t, err)
	require.NoError(t, r.Close(ctx))
	assert.Equal(t, 0, r.Len())
}

// listingStore serves nodes that can change underneath an open session. A
// project with a gate blocks ListNodes until the gate is closed.
type listingStore struct {
	MockGraphStore

	mu      sync.Mutex
	nodes   map[string][]*entities.Node
	gates   map[string]chan struct{}
	entered chan string
}

func newListingStore() *listingStore {
	return &listingStore{
		nodes:   make(map[string][]*entities.Node),
		gates:   make(map[string]chan struct{}),
		entered: make(chan string, 8),
	}
}

func (s *listingStore) add(projectID string, nodes ...*entities.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[projectID] = append(s.nodes[projectID], nodes...)
}

func (s *listingStore) remove(projectID, nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.nodes[projectID][:0]
	for _, n := range s.nodes[projectID] {
		if n.ID != nodeID {
			kept = append(kept, n)
		}
	}
	s.nodes[projectID] = kept
}

func (s *listingStore) ListNodes(ctx context.Context, projectID string) ([]*entities.Node, error) {
	s.mu.Lock()
	gate := s.gates[projectID]
	s.mu.Unlock()
	if gate != nil {
		s.entered <- projectID
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entities.Node, 0, len(s.nodes[projectID]))
	for _, n := range s.nodes[projectID] {
		out = append(out, n.Clone())
	}
	return out, nil
}

func (s *listingStore) ListEdges(ctx context.Context, projectID string) ([]*entities.Edge, error) {
	return nil, nil
}

func nodeIDs(frame Frame) []string {
	ids := make([]string, 0, len(frame.Nodes))
	for _, p := range frame.Nodes {
		ids = append(ids, p.Node.ID)
	}
	return ids
}

func TestSessionRegistry_OpenViewPicksUpExternalNodes(t *testing.T) {
	store := newListingStore()
	store.add("p1", buildNodes(t, nodeSpec{id: "C1", nodeType: valueobjects.NodeTypeConcept})...)
	r := NewSessionRegistry(SessionDeps{Store: store, Cache: newFakeCache()})
	t.Cleanup(func() { _ = r.Close(context.Background()) })
	ctx := context.Background()

	first, err := r.OpenView(ctx, "p1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"project-p1", "C1"}, nodeIDs(first.Frame(ctx)))
	_, err = first.HandleNodeClick(ctx, "C1", Modifiers{Shift: true})
	require.NoError(t, err)

	// created by another flow while the view is open
	store.add("p1", buildNodes(t, nodeSpec{id: "c-new", nodeType: valueobjects.NodeTypeConcept})...)

	cached, err := r.Get(ctx, "p1")
	require.NoError(t, err)
	assert.NotContains(t, nodeIDs(cached.Frame(ctx)), "c-new")

	reopened, err := r.OpenView(ctx, "p1")
	require.NoError(t, err)
	assert.Same(t, first, reopened)
	assert.ElementsMatch(t, []string{"project-p1", "C1", "c-new"}, nodeIDs(reopened.Frame(ctx)))
	assert.Equal(t, []string{"C1"}, reopened.State().MultiSelected)
}

func TestSessionRegistry_SlowOpenDoesNotBlockOtherProjects(t *testing.T) {
	store := newListingStore()
	gate := make(chan struct{})
	store.gates["slow"] = gate
	r := NewSessionRegistry(SessionDeps{Store: store, Cache: newFakeCache()})
	t.Cleanup(func() { _ = r.Close(context.Background()) })
	ctx := context.Background()

	type result struct {
		session *MapSession
		err     error
	}
	slow := make(chan result, 2)
	for i := 0; i < 2; i++ {
		go func() {
			s, err := r.Get(ctx, "slow")
			slow <- result{s, err}
		}()
	}
	select {
	case <-store.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("slow project never started loading")
	}

	fast := make(chan error, 1)
	go func() {
		_, err := r.Get(ctx, "fast")
		fast <- err
	}()
	select {
	case err := <-fast:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("fast project waited on the slow one")
	}

	waiting, cancel := context.WithCancel(ctx)
	cancel()
	_, err := r.Get(waiting, "slow")
	assert.ErrorIs(t, err, context.Canceled)

	close(gate)
	a, b := <-slow, <-slow
	require.NoError(t, a.err)
	require.NoError(t, b.err)
	assert.Same(t, a.session, b.session)
	assert.Len(t, store.entered, 0, "one load shared by both callers")
}

func TestSessionRegistry_EvictIdle(t *testing.T) {
	r, store := newRegistry(t)
	ctx := context.Background()
	clock := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }

	_, err := r.Get(ctx, "1")
	require.NoError(t, err)
	clock = clock.Add(20 * time.Minute)
	_, err = r.Get(ctx, "2")
	require.NoError(t, err)

	clock = clock.Add(20 * time.Minute)
	assert.Equal(t, 1, r.EvictIdle(ctx, 30*time.Minute))
	assert.Equal(t, 1, r.Len())

	_, err = r.Get(ctx, "1")
	require.NoError(t, err)
	store.AssertNumberOfCalls(t, "ListNodes", 3)
	assert.Equal(t, 0, r.EvictIdle(ctx, 30*time.Minute))
}

func TestSessionRegistry_StartIdleEviction(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	r.StartIdleEviction(20 * time.Millisecond)
	r.StartIdleEviction(20 * time.Millisecond)
	_, err := r.Get(ctx, "1")
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return r.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, r.Close(ctx))
}
