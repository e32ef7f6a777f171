package services

import (
	"context"
	"encoding/json"
	"fmt"

	"literature-flow/application/ports"
	"literature-flow/domain/core/entities"
	"literature-flow/domain/core/valueobjects"
	"literature-flow/pkg/observability"

	"go.uber.org/zap"
)

// PersistenceChannel names where a position save went
type PersistenceChannel string

const (
	ChannelCache PersistenceChannel = "cache"
	ChannelStore PersistenceChannel = "store"
)

// PositionCacheKey is the client cache key for a synthetic node's position
func PositionCacheKey(nodeID string, mode valueobjects.LayoutMode) string {
	return fmt.Sprintf("%s-%s-position", nodeID, mode)
}

// LayoutModeCacheKey is the client cache key for a project's sticky layout mode
func LayoutModeCacheKey(projectID string) string {
	return projectID + "-layout-mode"
}

// PositionPersistence routes every position save to exactly one channel.
// Synthetic nodes have no database row, so their positions live in the client
// cache; every other node is written to the authoritative store.
type PositionPersistence struct {
	store   ports.GraphStore
	cache   ports.KeyValueCache
	writer  *RemoteWriter
	logger  *zap.Logger
	metrics *observability.Collector
}

// NewPositionPersistence creates the adapter
func NewPositionPersistence(
	store ports.GraphStore,
	cache ports.KeyValueCache,
	writer *RemoteWriter,
	logger *zap.Logger,
	metrics *observability.Collector,
) *PositionPersistence {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PositionPersistence{
		store:   store,
		cache:   cache,
		writer:  writer,
		logger:  logger.Named("positions"),
		metrics: metrics,
	}
}

// Save records a position and reports the channel it used. It never fails:
// cache errors are logged and store writes happen in the background.
func (p *PositionPersistence) Save(ctx context.Context, nodeID string, mode valueobjects.LayoutMode, pos valueobjects.Position) PersistenceChannel {
	if valueobjects.IsSyntheticID(nodeID) {
		p.metrics.RecordPositionSave(string(ChannelCache), string(mode))
		data, err := json.Marshal(pos)
		if err == nil {
			err = p.cache.Set(ctx, PositionCacheKey(nodeID, mode), string(data))
		}
		if err != nil {
			p.logger.Warn("Failed to cache position",
				zap.String("nodeID", nodeID),
				zap.String("mode", string(mode)),
				zap.Error(err),
			)
			if p.writer != nil {
				p.writer.notify("save_position", "position could not be cached: "+err.Error())
			}
		}
		return ChannelCache
	}

	p.metrics.RecordPositionSave(string(ChannelStore), string(mode))
	p.writer.Enqueue(WriteJob{
		Name: "update_node_position",
		Run: func(ctx context.Context) error {
			return p.store.UpdateNodePosition(ctx, nodeID, pos, mode)
		},
	})
	return ChannelStore
}

// Load returns the cached position of a synthetic node. Database-backed nodes
// carry their positions on the node itself and never hit the cache. A cache
// entry that cannot be parsed counts as absent.
func (p *PositionPersistence) Load(ctx context.Context, nodeID string, mode valueobjects.LayoutMode) (valueobjects.Position, bool) {
	if !valueobjects.IsSyntheticID(nodeID) {
		return valueobjects.Position{}, false
	}

	raw, ok, err := p.cache.Get(ctx, PositionCacheKey(nodeID, mode))
	if err != nil {
		p.logger.Warn("Failed to read cached position", zap.String("nodeID", nodeID), zap.Error(err))
		p.metrics.RecordCacheLookup(false)
		return valueobjects.Position{}, false
	}
	if !ok {
		p.metrics.RecordCacheLookup(false)
		return valueobjects.Position{}, false
	}

	var pos valueobjects.Position
	if err := json.Unmarshal([]byte(raw), &pos); err != nil {
		p.logger.Debug("Ignoring malformed cached position",
			zap.String("nodeID", nodeID),
			zap.String("mode", string(mode)),
			zap.Error(err),
		)
		p.metrics.RecordCacheLookup(false)
		return valueobjects.Position{}, false
	}
	p.metrics.RecordCacheLookup(true)
	return pos, true
}

// LoadCached collects cached positions for the synthetic nodes in a set
func (p *PositionPersistence) LoadCached(ctx context.Context, nodes []*entities.Node, mode valueobjects.LayoutMode) map[string]valueobjects.Position {
	out := make(map[string]valueobjects.Position)
	for _, n := range nodes {
		if pos, ok := p.Load(ctx, n.ID, mode); ok {
			out[n.ID] = pos
		}
	}
	return out
}

// LayoutMode returns the project's sticky layout mode, defaulting to hierarchical
func (p *PositionPersistence) LayoutMode(ctx context.Context, projectID string) valueobjects.LayoutMode {
	raw, ok, err := p.cache.Get(ctx, LayoutModeCacheKey(projectID))
	if err != nil || !ok {
		return valueobjects.DefaultLayoutMode
	}
	mode, err := valueobjects.ParseLayoutMode(raw)
	if err != nil {
		return valueobjects.DefaultLayoutMode
	}
	return mode
}

// SaveLayoutMode remembers the project's layout mode
func (p *PositionPersistence) SaveLayoutMode(ctx context.Context, projectID string, mode valueobjects.LayoutMode) {
	if err := p.cache.Set(ctx, LayoutModeCacheKey(projectID), string(mode)); err != nil {
		p.logger.Warn("Failed to remember layout mode",
			zap.String("projectID", projectID),
			zap.Error(err),
		)
	}
}
