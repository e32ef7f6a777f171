package persistence

import (
	"context"
	"errors"
	"time"

	"literature-flow/application/ports"
	"literature-flow/domain/core/entities"
	"literature-flow/domain/core/valueobjects"
	pkgerrors "literature-flow/pkg/errors"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var _ ports.GraphStore = (*BreakerStore)(nil)

// BreakerConfig holds circuit breaker settings for store calls
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the settings used for the hosted store
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// BreakerStore decorates a GraphStore with a circuit breaker. Once the store
// keeps failing, calls fail fast with an UNAVAILABLE error instead of waiting
// on the remote timeout.
type BreakerStore struct {
	next ports.GraphStore
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerStore wraps next
func NewBreakerStore(next ports.GraphStore, cfg BreakerConfig, logger *zap.Logger) *BreakerStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("breaker")

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// caller mistakes say nothing about the store's health
		IsSuccessful: func(err error) bool {
			return err == nil || pkgerrors.IsValidation(err) || pkgerrors.IsNotFound(err) || pkgerrors.IsConflict(err)
		},
	})

	return &BreakerStore{next: next, cb: cb}
}

// State reports the breaker state
func (s *BreakerStore) State() gobreaker.State {
	return s.cb.State()
}

func (s *BreakerStore) ListNodes(ctx context.Context, projectID string) ([]*entities.Node, error) {
	res, err := s.execute(func() (interface{}, error) {
		return s.next.ListNodes(ctx, projectID)
	})
	nodes, _ := res.([]*entities.Node)
	return nodes, err
}

func (s *BreakerStore) ListEdges(ctx context.Context, projectID string) ([]*entities.Edge, error) {
	res, err := s.execute(func() (interface{}, error) {
		return s.next.ListEdges(ctx, projectID)
	})
	edges, _ := res.([]*entities.Edge)
	return edges, err
}

func (s *BreakerStore) InsertNode(ctx context.Context, projectID string, node *entities.Node) (*entities.Node, error) {
	res, err := s.execute(func() (interface{}, error) {
		return s.next.InsertNode(ctx, projectID, node)
	})
	stored, _ := res.(*entities.Node)
	return stored, err
}

func (s *BreakerStore) InsertEdge(ctx context.Context, projectID string, edge *entities.Edge) (*entities.Edge, error) {
	res, err := s.execute(func() (interface{}, error) {
		return s.next.InsertEdge(ctx, projectID, edge)
	})
	stored, _ := res.(*entities.Edge)
	return stored, err
}

func (s *BreakerStore) UpdateNodePosition(ctx context.Context, nodeID string, pos valueobjects.Position, mode valueobjects.LayoutMode) error {
	_, err := s.execute(func() (interface{}, error) {
		return nil, s.next.UpdateNodePosition(ctx, nodeID, pos, mode)
	})
	return err
}

func (s *BreakerStore) execute(req func() (interface{}, error)) (interface{}, error) {
	res, err := s.cb.Execute(req)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, pkgerrors.NewUnavailableError("graph store")
	}
	return res, err
}
