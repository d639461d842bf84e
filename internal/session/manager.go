package session

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/koustreak/askdb/internal/errs"
	"github.com/koustreak/askdb/internal/logger"
)

// DefaultTTL is how long an idle session survives.
const DefaultTTL = 30 * time.Minute

// closeTimeout bounds the archive and close work done on eviction.
const closeTimeout = 30 * time.Second

// Manager keeps independent sessions keyed by ID. Sessions idle for longer
// than the TTL are evicted and closed.
type Manager struct {
	cache *ttlcache.Cache[string, *Session]
	log   *logger.Logger
}

// NewManager starts the expiry loop. Call Close to stop it.
func NewManager(ttl time.Duration, log *logger.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logger.Nop()
	}

	cache := ttlcache.New(
		ttlcache.WithTTL[string, *Session](ttl),
	)
	m := &Manager{cache: cache, log: log}

	cache.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *Session]) {
		s := item.Value()
		if reason == ttlcache.EvictionReasonExpired {
			m.log.InfoWith("session expired", map[string]interface{}{"session": s.ID()})
		}
		// Close waits for an in-flight Ask; keep the cache loop free.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
			defer cancel()
			if err := s.Close(ctx); err != nil {
				m.log.Warn("session: archive on eviction failed: " + err.Error())
			}
		}()
	})

	go cache.Start()
	return m
}

// Start creates a session and registers it.
func (m *Manager) Start(ctx context.Context, cfg Config, deps Deps) (*Session, error) {
	s, err := Start(ctx, cfg, deps)
	if err != nil {
		return nil, err
	}
	m.cache.Set(s.ID(), s, ttlcache.DefaultTTL)
	return s, nil
}

// Get returns a live session and extends its lifetime.
func (m *Manager) Get(id string) (*Session, error) {
	item := m.cache.Get(id)
	if item == nil {
		return nil, errs.Newf(errs.ErrKindNotFound, "session %q not found", id)
	}
	return item.Value(), nil
}

// Delete closes and forgets a session.
func (m *Manager) Delete(ctx context.Context, id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	m.cache.Delete(id)
	return s.Close(ctx)
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	return m.cache.Len()
}

// Close closes every session and stops the expiry loop.
func (m *Manager) Close(ctx context.Context) error {
	var first error
	for id, item := range m.cache.Items() {
		m.cache.Delete(id)
		if err := item.Value().Close(ctx); err != nil && first == nil {
			first = err
		}
	}
	m.cache.Stop()
	return first
}
