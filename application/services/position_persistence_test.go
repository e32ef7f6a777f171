package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"literature-flow/domain/core/valueobjects"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newPersistence(t *testing.T, store *MockGraphStore, cache *fakeCache, notices *NoticeBuffer) (*PositionPersistence, *RemoteWriter) {
	t.Helper()
	writer := NewRemoteWriter(8, time.Second, notices, zap.NewNop(), nil)
	return NewPositionPersistence(store, cache, writer, zap.NewNop(), nil), writer
}

func TestPositionPersistence_SyntheticNodeGoesToCacheOnly(t *testing.T) {
	store := new(MockGraphStore)
	cache := newFakeCache()
	p, writer := newPersistence(t, store, cache, nil)

	channel := p.Save(context.Background(), "project-42", valueobjects.LayoutSpatial, valueobjects.MustPosition(120, 80))
	require.NoError(t, writer.Close(context.Background()))

	assert.Equal(t, ChannelCache, channel)
	assert.Equal(t, []string{"project-42-spatial-position"}, cache.keys())
	assert.JSONEq(t, `{"x":120,"y":80}`, cache.entries["project-42-spatial-position"])
	store.AssertNotCalled(t, "UpdateNodePosition", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPositionPersistence_DatabaseNodeGoesToStoreOnly(t *testing.T) {
	store := new(MockGraphStore)
	cache := newFakeCache()
	p, writer := newPersistence(t, store, cache, nil)

	pos := valueobjects.MustPosition(10, 20)
	store.On("UpdateNodePosition", mock.Anything, "c1", pos, valueobjects.LayoutHierarchical).Return(nil).Once()

	channel := p.Save(context.Background(), "c1", valueobjects.LayoutHierarchical, pos)
	require.NoError(t, writer.Close(context.Background()))

	assert.Equal(t, ChannelStore, channel)
	assert.Empty(t, cache.keys())
	store.AssertExpectations(t)
}

func TestPositionPersistence_FailuresDoNotSurface(t *testing.T) {
	store := new(MockGraphStore)
	cache := newFakeCache()
	cache.setErr = errors.New("quota exceeded")
	notices := NewNoticeBuffer()
	p, writer := newPersistence(t, store, cache, notices)

	store.On("UpdateNodePosition", mock.Anything, "c1", mock.Anything, mock.Anything).Return(errors.New("timeout"))

	assert.Equal(t, ChannelCache, p.Save(context.Background(), "notebook-7", valueobjects.LayoutSpatial, valueobjects.MustPosition(1, 1)))
	assert.Equal(t, ChannelStore, p.Save(context.Background(), "c1", valueobjects.LayoutSpatial, valueobjects.MustPosition(1, 1)))
	require.NoError(t, writer.Close(context.Background()))

	got := notices.Drain()
	require.Len(t, got, 2)
	assert.Contains(t, got[0].Message, "quota exceeded")
	assert.Contains(t, got[1].Message, "timeout")
}

func TestPositionPersistence_Load(t *testing.T) {
	cache := newFakeCache()
	cache.entries["project-42-spatial-position"] = `{"x":120,"y":80}`
	cache.entries["source-9-hierarchical-position"] = `{"x":"left"}`
	cache.entries["c1-spatial-position"] = `{"x":1,"y":1}`
	p, writer := newPersistence(t, new(MockGraphStore), cache, nil)
	defer writer.Close(context.Background())

	tests := []struct {
		name   string
		nodeID string
		mode   valueobjects.LayoutMode
		want   valueobjects.Position
		wantOK bool
	}{
		{name: "cached synthetic position", nodeID: "project-42", mode: valueobjects.LayoutSpatial, want: valueobjects.MustPosition(120, 80), wantOK: true},
		{name: "other mode not cached", nodeID: "project-42", mode: valueobjects.LayoutHierarchical},
		{name: "malformed entry treated as absent", nodeID: "source-9", mode: valueobjects.LayoutHierarchical},
		{name: "database node never reads the cache", nodeID: "c1", mode: valueobjects.LayoutSpatial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := p.Load(context.Background(), tt.nodeID, tt.mode)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.True(t, tt.want.Equals(got))
			}
		})
	}

	cache.getErr = errors.New("unavailable")
	_, ok := p.Load(context.Background(), "project-42", valueobjects.LayoutSpatial)
	assert.False(t, ok)
}

func TestPositionPersistence_LayoutMode(t *testing.T) {
	cache := newFakeCache()
	p, writer := newPersistence(t, new(MockGraphStore), cache, nil)
	defer writer.Close(context.Background())

	assert.Equal(t, valueobjects.LayoutHierarchical, p.LayoutMode(context.Background(), "42"))

	p.SaveLayoutMode(context.Background(), "42", valueobjects.LayoutSpatial)
	assert.Equal(t, "spatial", cache.entries["42-layout-mode"])
	assert.Equal(t, valueobjects.LayoutSpatial, p.LayoutMode(context.Background(), "42"))

	cache.entries["42-layout-mode"] = "radial"
	assert.Equal(t, valueobjects.LayoutHierarchical, p.LayoutMode(context.Background(), "42"))
}
