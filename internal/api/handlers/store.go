package handlers

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"momentum-backtest/internal/analysis"
	"momentum-backtest/internal/backtest"
	"momentum-backtest/internal/config"
)

// StoredRun is a completed backtest kept for later retrieval.
type StoredRun struct {
	ID        string
	CreatedAt time.Time
	Config    config.Config
	Result    *backtest.Result
	Metrics   analysis.Metrics
}

// ResultStore keeps the most recent runs in memory, keyed by a random UUID.
// When full, the oldest run is evicted.
type ResultStore struct {
	mu       sync.RWMutex
	runs     map[string]*StoredRun
	order    []string
	capacity int
	now      func() time.Time
}

func NewResultStore(capacity int) *ResultStore {
	if capacity <= 0 {
		capacity = 100
	}
	return &ResultStore{
		runs:     make(map[string]*StoredRun),
		capacity: capacity,
		now:      time.Now,
	}
}

func (s *ResultStore) Put(cfg config.Config, res *backtest.Result, m analysis.Metrics) *StoredRun {
	run := &StoredRun{
		ID:        uuid.NewString(),
		CreatedAt: s.now().UTC(),
		Config:    cfg,
		Result:    res,
		Metrics:   m,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	s.order = append(s.order, run.ID)
	for len(s.order) > s.capacity {
		delete(s.runs, s.order[0])
		s.order = s.order[1:]
	}
	return run
}

func (s *ResultStore) Get(id string) (*StoredRun, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	return run, ok
}

func (s *ResultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}
