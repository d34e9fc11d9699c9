package infra

import (
	"sync"
	"time"

	"quota-gateway/quota/domain"

	"golang.org/x/time/rate"
)

// BucketStore guarda um token bucket (x/time/rate) por cliente para frear
// tentativas de senha, com limpeza periódica dos clientes inativos.
type BucketStore struct {
	mu           sync.Mutex
	entries      map[domain.Key]*bucketEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type bucketEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type BucketStoreOption func(*BucketStore)

func WithIdleTTL(d time.Duration) BucketStoreOption {
	return func(s *BucketStore) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) BucketStoreOption {
	return func(s *BucketStore) { s.cleanupEvery = d }
}

// NewBucketStore cria o store. perMinute é a taxa de reposição; burst é
// quantas tentativas seguidas passam antes de começar a bloquear.
func NewBucketStore(perMinute float64, burst int, opts ...BucketStoreOption) *BucketStore {
	s := &BucketStore{
		entries:      make(map[domain.Key]*bucketEntry),
		rps:          rate.Limit(perMinute / 60),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get implementa domain.LimiterStore.
func (s *BucketStore) Get(key domain.Key) domain.Limiter {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return bucket{ent.lim}
	}

	lim := rate.NewLimiter(s.rps, s.burst)
	s.entries[key] = &bucketEntry{lim: lim, lastSeen: now}
	return bucket{lim}
}

// bucket adapta *rate.Limiter para domain.Limiter.
type bucket struct {
	lim *rate.Limiter
}

// Take reserva uma ficha; se ela só estaria disponível no futuro, devolve a
// reserva e informa a espera real até a reposição.
func (b bucket) Take(now time.Time) (bool, time.Duration) {
	r := b.lim.ReserveN(now, 1)
	if !r.OK() {
		return false, 0
	}
	wait := r.DelayFrom(now)
	if wait == 0 {
		return true, 0
	}
	r.CancelAt(now)
	return false, wait
}

func (s *BucketStore) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// RunJanitor limpa clientes inativos periodicamente até o contexto encerrar.
// Bloqueia; rode em uma goroutine (ex: errgroup).
func (s *BucketStore) RunJanitor(ctx DoneContext) {
	runEvery(ctx, s.cleanupEvery, s.Cleanup)
}
