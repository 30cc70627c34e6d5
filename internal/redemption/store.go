package redemption

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/preyanshu/verdict/internal/domain"
)

type key struct {
	market string
	wallet string
}

func keyOf(marketID, wallet string) key {
	return key{market: marketID, wallet: strings.ToLower(wallet)}
}

// Store holds one attempt per (market, wallet). An in-flight attempt blocks
// a new one for the same key; a terminal attempt stays visible until it is
// reset or replaced by the next attempt.
type Store struct {
	mu       sync.Mutex
	attempts map[key]domain.RedemptionAttempt
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{attempts: make(map[key]domain.RedemptionAttempt)}
}

// Begin registers a new attempt in checking_chain, replacing any terminal
// attempt for the same key.
func (s *Store) Begin(marketID, wallet string, now time.Time) (domain.RedemptionAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := keyOf(marketID, wallet)
	if prev, ok := s.attempts[k]; ok && prev.InFlight() {
		return prev, domain.ErrAttemptInFlight
	}
	a := domain.RedemptionAttempt{
		ID:        uuid.NewString(),
		MarketID:  marketID,
		Wallet:    wallet,
		Status:    domain.RedemptionCheckingChain,
		StartedAt: now,
		UpdatedAt: now,
	}
	s.attempts[k] = a
	return a, nil
}

// Update stores a if it is still the current attempt for its key.
func (s *Store) Update(a domain.RedemptionAttempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := keyOf(a.MarketID, a.Wallet)
	if cur, ok := s.attempts[k]; ok && cur.ID == a.ID {
		s.attempts[k] = a
	}
}

// Discard removes a if it is still the current attempt for its key.
func (s *Store) Discard(a domain.RedemptionAttempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := keyOf(a.MarketID, a.Wallet)
	if cur, ok := s.attempts[k]; ok && cur.ID == a.ID {
		delete(s.attempts, k)
	}
}

// Get returns the current attempt for (marketID, wallet).
func (s *Store) Get(marketID, wallet string) (domain.RedemptionAttempt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[keyOf(marketID, wallet)]
	return a, ok
}

// Reset returns the key to idle. In-flight attempts cannot be reset.
func (s *Store) Reset(marketID, wallet string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := keyOf(marketID, wallet)
	a, ok := s.attempts[k]
	if !ok {
		return nil
	}
	if a.InFlight() {
		return domain.ErrAttemptInFlight
	}
	delete(s.attempts, k)
	return nil
}

// InFlight counts attempts that have not reached a terminal state.
func (s *Store) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.attempts {
		if a.InFlight() {
			n++
		}
	}
	return n
}
