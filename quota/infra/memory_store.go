package infra

import (
	"sync"
	"time"

	"quota-gateway/quota/domain"
)

const dateLayout = "2006-01-02"

// MemoryStore é a implementação em memória de domain.QuotaStore.
//
// Um único mutex serializa todas as chaves: a carga esperada é baixa e cada
// operação é só uma leitura-modificação-escrita em um map.
// Os registros somem quando o processo reinicia.
type MemoryStore struct {
	mu      sync.Mutex
	records map[domain.Key]*domain.Record

	limit        int
	policy       domain.VIPPolicy
	loc          *time.Location
	now          func() time.Time
	cleanupEvery time.Duration
}

var _ domain.QuotaStore = (*MemoryStore)(nil)

type MemoryStoreOption func(*MemoryStore)

// WithLimit define quantos usos por dia um cliente não VIP tem.
func WithLimit(n int) MemoryStoreOption {
	return func(s *MemoryStore) { s.limit = n }
}

func WithVIPPolicy(p domain.VIPPolicy) MemoryStoreOption {
	return func(s *MemoryStore) { s.policy = p }
}

// WithLocation define o fuso usado para calcular "hoje".
// A virada acontece à meia-noite desse fuso, não em janela móvel de 24h.
func WithLocation(loc *time.Location) MemoryStoreOption {
	return func(s *MemoryStore) { s.loc = loc }
}

// WithNow troca o relógio (testes).
func WithNow(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) { s.now = now }
}

func WithRecordCleanupEvery(d time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) { s.cleanupEvery = d }
}

func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		records:      make(map[domain.Key]*domain.Record),
		limit:        domain.DefaultDailyLimit,
		policy:       domain.VIPResetDaily,
		loc:          time.UTC,
		now:          time.Now,
		cleanupEvery: time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) today() string {
	return s.now().In(s.loc).Format(dateLayout)
}

// GetOrInit implementa domain.QuotaStore.
//
// Sem chave devolve um registro bloqueado que nunca é armazenado.
func (s *MemoryStore) GetOrInit(key domain.Key) domain.Record {
	if key.IsNone() {
		return s.blocked(s.today())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.getOrInitLocked(key, s.today())
}

func (s *MemoryStore) Status(key domain.Key) domain.Status {
	rec := s.GetOrInit(key)
	return domain.NewStatus(rec, s.limit)
}

// Increment consome um uso. Checagem do limite e incremento acontecem na
// mesma seção crítica.
func (s *MemoryStore) Increment(key domain.Key) (int, error) {
	if key.IsNone() {
		return 0, domain.ErrMissingIdentity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.getOrInitLocked(key, s.today())
	if !rec.IsVIP && rec.Count >= s.limit {
		return rec.Count, domain.ErrLimitReached
	}
	rec.Count++
	return rec.Count, nil
}

func (s *MemoryStore) GrantVIP(key domain.Key) error {
	if key.IsNone() {
		return domain.ErrMissingIdentity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.getOrInitLocked(key, s.today()).IsVIP = true
	return nil
}

// Len retorna quantos registros estão armazenados.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *MemoryStore) blocked(today string) domain.Record {
	return domain.Record{Count: s.limit, LastResetDate: today}
}

// getOrInitLocked deve ser chamado com s.mu travado e com today lido também
// sob o lock. A data só anda para frente: uma leitura de relógio atrasada
// (today < LastResetDate) nunca desfaz a virada já aplicada. Datas ISO
// comparam corretamente como string.
func (s *MemoryStore) getOrInitLocked(key domain.Key, today string) *domain.Record {
	rec, ok := s.records[key]
	if !ok {
		rec = &domain.Record{LastResetDate: today}
		s.records[key] = rec
		return rec
	}
	if today > rec.LastResetDate {
		rec.Count = 0
		rec.LastResetDate = today
		if s.policy == domain.VIPResetDaily {
			rec.IsVIP = false
		}
	}
	return rec
}

// Cleanup remove registros que, no próximo acesso, virariam um registro novo
// de qualquer jeito (data antiga e sem VIP a preservar). Não perde estado.
func (s *MemoryStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.today()
	removed := 0
	for k, rec := range s.records {
		if rec.LastResetDate >= today {
			continue
		}
		if rec.IsVIP && s.policy == domain.VIPKeepAcrossDays {
			continue
		}
		delete(s.records, k)
		removed++
	}
	return removed
}

// RunJanitor chama Cleanup periodicamente até o contexto encerrar.
// Bloqueia; rode em uma goroutine (ex: errgroup).
func (s *MemoryStore) RunJanitor(ctx DoneContext) {
	runEvery(ctx, s.cleanupEvery, func() { s.Cleanup() })
}
