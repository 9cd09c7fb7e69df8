package session

import (
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/mikey/food-safety-agent/internal/core"
)

// Store keeps live assessment sessions in memory. Sessions that are not touched
// for the configured TTL are evicted.
type Store struct {
	cache  *cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewStore creates a session store
func NewStore(ttl, cleanup time.Duration, logger *zap.Logger) *Store {
	c := cache.New(ttl, cleanup)
	c.OnEvicted(func(id string, _ interface{}) {
		logger.Debug("Session evicted", zap.String("session_id", id))
	})
	return &Store{cache: c, ttl: ttl, logger: logger}
}

// Create starts a new empty session and stores it
func (s *Store) Create() *core.Session {
	sess := core.NewSession(s.logger)
	s.cache.Set(sess.ID, sess, cache.DefaultExpiration)
	s.logger.Debug("Session created", zap.String("session_id", sess.ID))
	return sess
}

// Get looks a session up and extends its lifetime
func (s *Store) Get(id string) (*core.Session, bool) {
	x, found := s.cache.Get(id)
	if !found {
		return nil, false
	}
	sess := x.(*core.Session)
	s.cache.Set(id, sess, cache.DefaultExpiration)
	return sess, true
}

// Delete drops a session
func (s *Store) Delete(id string) {
	s.cache.Delete(id)
}

// Count returns the number of stored sessions, expired ones included until the next cleanup
func (s *Store) Count() int {
	return s.cache.ItemCount()
}
