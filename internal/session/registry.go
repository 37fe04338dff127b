package session

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fjod/rocketshoes-cart/internal/engine"
	"github.com/fjod/rocketshoes-cart/internal/notify"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	defaultIdleTTL     = 30 * time.Minute
	defaultMaxSessions = 10000
)

var ErrEmptySessionID = errors.New("session id is required")

// SnapshotDeleter is implemented by stores that can drop a session's snapshot.
type SnapshotDeleter interface {
	Delete(ctx context.Context, sessionID string) error
}

type Option func(*Registry)

// WithIdleTTL sets how long an unused session stays in memory.
func WithIdleTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.idleTTL = ttl
		}
	}
}

// WithMaxSessions caps the number of sessions kept in memory. The least recently used
// one is dropped when a new session would exceed it.
func WithMaxSessions(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxSessions = n
		}
	}
}

type entry struct {
	sessionID string
	engine    *engine.CartEngine
	lastUsed  time.Time
}

// Registry hands out one CartEngine per session. Engines are built on first use from
// the persisted snapshot and dropped again once idle or when the registry is full;
// the next Get rebuilds them from the store.
type Registry struct {
	stock   engine.StockService
	catalog engine.ProductCatalog
	store   engine.Store
	sink    notify.Sink
	log     *logrus.Logger

	idleTTL     time.Duration
	maxSessions int
	now         func() time.Time

	mu      sync.Mutex
	engines map[string]*list.Element
	lru     *list.List // front is the most recently used
	sfg     singleflight.Group
}

func NewRegistry(
	stock engine.StockService,
	catalog engine.ProductCatalog,
	store engine.Store,
	sink notify.Sink,
	log *logrus.Logger,
	opts ...Option,
) *Registry {
	r := &Registry{
		stock:       stock,
		catalog:     catalog,
		store:       store,
		sink:        sink,
		log:         log,
		idleTTL:     defaultIdleTTL,
		maxSessions: defaultMaxSessions,
		now:         time.Now,
		engines:     make(map[string]*list.Element),
		lru:         list.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the session's engine, loading it from the store when it is not in
// memory.
func (r *Registry) Get(ctx context.Context, sessionID string) (*engine.CartEngine, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}

	if e, ok := r.touch(sessionID); ok {
		return e, nil
	}

	// two first requests for one session must not build two engines
	v, err, _ := r.sfg.Do(sessionID, func() (interface{}, error) {
		if existing, ok := r.touch(sessionID); ok {
			return existing, nil
		}

		created, err := engine.New(ctx, engine.Deps{
			SessionID: sessionID,
			Stock:     r.stock,
			Catalog:   r.catalog,
			Store:     r.store,
			Sink:      r.sink,
			Log:       r.log,
		})
		if err != nil {
			return nil, err
		}

		r.add(sessionID, created)
		r.log.WithField("session_id", sessionID).Debug("cart session loaded")
		return created, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*engine.CartEngine), nil
}

func (r *Registry) touch(sessionID string) (*engine.CartEngine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	el, ok := r.engines[sessionID]
	if !ok {
		return nil, false
	}
	el.Value.(*entry).lastUsed = r.now()
	r.lru.MoveToFront(el)
	return el.Value.(*entry).engine, true
}

func (r *Registry) add(sessionID string, e *engine.CartEngine) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.engines[sessionID] = r.lru.PushFront(&entry{sessionID: sessionID, engine: e, lastUsed: r.now()})
	for r.lru.Len() > r.maxSessions {
		oldest := r.lru.Back()
		r.remove(oldest)
		r.log.WithField("session_id", oldest.Value.(*entry).sessionID).Debug("cart session dropped, registry full")
	}
}

// remove must be called with mu held.
func (r *Registry) remove(el *list.Element) {
	r.lru.Remove(el)
	delete(r.engines, el.Value.(*entry).sessionID)
}

// EvictIdle drops every session unused for the idle TTL and returns how many were
// dropped. Snapshots of empty carts are deleted from the store when it supports it.
func (r *Registry) EvictIdle(ctx context.Context) int {
	deleter, _ := r.store.(SnapshotDeleter)
	cutoff := r.now().Add(-r.idleTTL)

	// mu stays held across Delete so a concurrent Get of the same session reloads only
	// after the snapshot is gone
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for el := r.lru.Back(); el != nil; {
		ent := el.Value.(*entry)
		if ent.lastUsed.After(cutoff) {
			break
		}
		prev := el.Prev()
		r.remove(el)
		evicted++

		if deleter != nil && len(ent.engine.Cart()) == 0 {
			if err := deleter.Delete(ctx, ent.sessionID); err != nil {
				r.log.WithError(err).WithField("session_id", ent.sessionID).Warn("failed to delete empty cart")
			}
		}
		el = prev
	}

	if evicted > 0 {
		r.log.WithField("count", evicted).Debug("idle cart sessions evicted")
	}
	return evicted
}

// Run evicts idle sessions every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.EvictIdle(ctx)
		}
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lru.Len()
}
