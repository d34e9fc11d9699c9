package application

import (
	"context"
	"sync"
	"testing"

	"quota-gateway/quota/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapStore é um QuotaStore mínimo, sem virada de dia, para testar o serviço isolado.
type mapStore struct {
	mu      sync.Mutex
	limit   int
	records map[domain.Key]*domain.Record
}

func newMapStore() *mapStore {
	return &mapStore{limit: 3, records: map[domain.Key]*domain.Record{}}
}

func (m *mapStore) get(k domain.Key) *domain.Record {
	r, ok := m.records[k]
	if !ok {
		r = &domain.Record{LastResetDate: "2026-03-10"}
		m.records[k] = r
	}
	return r
}

func (m *mapStore) GetOrInit(k domain.Key) domain.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	if k.IsNone() {
		return domain.Record{Count: m.limit}
	}
	return *m.get(k)
}

func (m *mapStore) Status(k domain.Key) domain.Status {
	return domain.NewStatus(m.GetOrInit(k), m.limit)
}

func (m *mapStore) Increment(k domain.Key) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.get(k)
	if !r.IsVIP && r.Count >= m.limit {
		return r.Count, domain.ErrLimitReached
	}
	r.Count++
	return r.Count, nil
}

func (m *mapStore) GrantVIP(k domain.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.get(k).IsVIP = true
	return nil
}

type staticPasswords []string

func (p staticPasswords) Passwords() []string { return p }

type recordedStats struct {
	events []domain.StatsEvent
}

func (r *recordedStats) Record(_ context.Context, ev domain.StatsEvent) error {
	r.events = append(r.events, ev)
	return nil
}

func TestQuotaService_IncrementWithoutIdentity(t *testing.T) {
	store := newMapStore()
	svc := &QuotaService{Store: store}

	_, err := svc.Increment(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrMissingIdentity)
	assert.Equal(t, 3, svc.GetOrInit("").Count)
	assert.Empty(t, store.records)
}

func TestQuotaService_UnlockErrors(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name      string
		passwords domain.PasswordSource
		key       domain.Key
		password  string
		want      error
	}{
		{"no passwords configured", staticPasswords(nil), "dev-a", "anything", domain.ErrServerMisconfigured},
		{"nil source", nil, "dev-a", "anything", domain.ErrServerMisconfigured},
		{"misconfigured wins over missing identity", staticPasswords(nil), "", "", domain.ErrServerMisconfigured},
		{"missing identity", staticPasswords{"pw"}, "", "pw", domain.ErrMissingIdentity},
		{"wrong password", staticPasswords{"pw1", "pw2"}, "dev-a", "pw3", domain.ErrInvalidPassword},
		{"prefix is not a match", staticPasswords{"secret"}, "dev-a", "secre", domain.ErrInvalidPassword},
		{"case sensitive", staticPasswords{"Secret"}, "dev-a", "secret", domain.ErrInvalidPassword},
		{"empty password", staticPasswords{"pw"}, "dev-a", "", domain.ErrInvalidPassword},
		{"second password ok", staticPasswords{"pw1", "pw2"}, "dev-a", "pw2", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newMapStore()
			svc := &QuotaService{Store: store, Passwords: tc.passwords}

			err := svc.Unlock(ctx, tc.key, tc.password)
			if tc.want == nil {
				require.NoError(t, err)
				assert.True(t, store.Status(tc.key).IsVIP)
				return
			}
			assert.ErrorIs(t, err, tc.want)
			if !tc.key.IsNone() {
				assert.False(t, store.Status(tc.key).IsVIP)
			}
		})
	}
}

func TestQuotaService_UnlockLiftsLimit(t *testing.T) {
	ctx := context.Background()
	svc := &QuotaService{Store: newMapStore(), Passwords: staticPasswords{"pw"}}

	for i := 0; i < 3; i++ {
		_, err := svc.Increment(ctx, "dev-a")
		require.NoError(t, err)
	}
	_, err := svc.Increment(ctx, "dev-a")
	require.ErrorIs(t, err, domain.ErrLimitReached)

	require.NoError(t, svc.Unlock(ctx, "dev-a", "pw"))

	n, err := svc.Increment(ctx, "dev-a")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestQuotaService_RecordsOutcomes(t *testing.T) {
	ctx := context.Background()
	stats := &recordedStats{}
	svc := &QuotaService{Store: newMapStore(), Passwords: staticPasswords{"pw"}, Stats: stats}

	svc.Status(ctx, "dev-a")
	_, _ = svc.Increment(ctx, "")
	_ = svc.Unlock(ctx, "dev-a", "nope")

	require.Len(t, stats.events, 3)
	assert.Equal(t, domain.OpStatus, stats.events[0].Op)
	assert.Equal(t, domain.OutcomeOK, stats.events[0].Outcome)
	assert.Equal(t, domain.OutcomeMissingIdentity, stats.events[1].Outcome)
	assert.Equal(t, domain.OpUnlock, stats.events[2].Op)
	assert.Equal(t, domain.OutcomeInvalidPassword, stats.events[2].Outcome)
	assert.False(t, stats.events[2].At.IsZero())
}

func TestQuotaService_CheckAuthConsumesWithoutPassword(t *testing.T) {
	ctx := context.Background()
	svc := &QuotaService{Store: newMapStore(), Passwords: staticPasswords{"pw"}}

	for i := 1; i <= 3; i++ {
		res, err := svc.CheckAuth(ctx, "dev-a", "")
		require.NoError(t, err)
		assert.False(t, res.Unlocked)
		assert.Equal(t, i, res.Status.Count)
		assert.Equal(t, 3-i, res.Status.Remaining)
	}

	_, err := svc.CheckAuth(ctx, "dev-a", "")
	assert.ErrorIs(t, err, domain.ErrLimitReached)
	_, err = svc.CheckAuth(ctx, "dev-a", "wrong")
	assert.ErrorIs(t, err, domain.ErrLimitReached)
}

func TestQuotaService_CheckAuthWrongPasswordStillConsumes(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	svc := &QuotaService{Store: store, Passwords: staticPasswords{"pw"}}

	res, err := svc.CheckAuth(ctx, "dev-a", "wrong")
	require.NoError(t, err)
	assert.False(t, res.Unlocked)
	assert.Equal(t, 1, store.Status("dev-a").Count)
}

func TestQuotaService_CheckAuthRightPasswordDoesNotConsume(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	svc := &QuotaService{Store: store, Passwords: staticPasswords{"pw"}}

	for i := 0; i < 3; i++ {
		_, err := svc.Increment(ctx, "dev-a")
		require.NoError(t, err)
	}

	res, err := svc.CheckAuth(ctx, "dev-a", "pw")
	require.NoError(t, err)
	assert.True(t, res.Unlocked)
	assert.Equal(t, domain.Status{Count: 3, IsVIP: true, Limit: 3, Remaining: 0}, res.Status)
}

func TestQuotaService_CheckAuthErrors(t *testing.T) {
	ctx := context.Background()

	// sem senha configurada, quem não manda senha continua consumindo
	svc := &QuotaService{Store: newMapStore()}
	_, err := svc.CheckAuth(ctx, "dev-a", "")
	require.NoError(t, err)
	_, err = svc.CheckAuth(ctx, "dev-a", "pw")
	assert.ErrorIs(t, err, domain.ErrServerMisconfigured)

	svc = &QuotaService{Store: newMapStore(), Passwords: staticPasswords{"pw"}}
	_, err = svc.CheckAuth(ctx, "", "")
	assert.ErrorIs(t, err, domain.ErrMissingIdentity)
	_, err = svc.CheckAuth(ctx, "", "pw")
	assert.ErrorIs(t, err, domain.ErrMissingIdentity)
}
