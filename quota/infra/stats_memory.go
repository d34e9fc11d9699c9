package infra

import (
	"context"
	"sync"

	"quota-gateway/quota/domain"
)

// Counters conta resultados por outcome (ok, limit_reached, ...).
type Counters map[string]int64

func (c Counters) clone() Counters {
	out := make(Counters, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes e desenvolvimento.
//
// Não faz expiração; com WithTrackKeys a cardinalidade cresce com os clientes.
type MemoryStatsStore struct {
	mu    sync.Mutex
	total Counters
	byOp  map[domain.Op]Counters
	byKey map[domain.Key]Counters

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		total: make(Counters),
		byOp:  make(map[domain.Op]Counters),
		byKey: make(map[domain.Key]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total[ev.Outcome]++
	bump(s.byOp, ev.Op, ev.Outcome)
	if s.trackKeys && !ev.Key.IsNone() {
		bump(s.byKey, ev.Key, ev.Outcome)
	}
	return nil
}

func bump[K comparable](m map[K]Counters, k K, outcome string) {
	c, ok := m[k]
	if !ok {
		c = make(Counters)
		m[k] = c
	}
	c[outcome]++
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total.clone()
}

func (s *MemoryStatsStore) ByOp() map[domain.Op]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.Op]Counters, len(s.byOp))
	for k, v := range s.byOp {
		out[k] = v.clone()
	}
	return out
}

func (s *MemoryStatsStore) ByKey() map[domain.Key]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.Key]Counters, len(s.byKey))
	for k, v := range s.byKey {
		out[k] = v.clone()
	}
	return out
}
