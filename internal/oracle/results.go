package oracle

import (
	"sync"

	"github.com/preyanshu/verdict/internal/domain"
)

// ResultStore keeps the latest AuditResult per market for display. It is
// never consulted by Audit itself.
type ResultStore struct {
	mu      sync.RWMutex
	results map[string]domain.AuditResult
}

// NewResultStore creates an empty ResultStore.
func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[string]domain.AuditResult)}
}

// Put records r as the latest result for its market.
func (s *ResultStore) Put(r domain.AuditResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[r.MarketID] = r
}

// Get returns the latest result for marketID.
func (s *ResultStore) Get(marketID string) (domain.AuditResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[marketID]
	return r, ok
}
