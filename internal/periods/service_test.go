package periods

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/granite-erp/granite-ledger/internal/coa"
	"github.com/granite-erp/granite-ledger/internal/glsummary"
	"github.com/granite-erp/granite-ledger/internal/shared"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	periods   map[int64]Period
	drafts    map[int64]int
	balances  map[int64][]glsummary.AccountPeriodBalance
	openings  map[int64]map[int64]decimal.Decimal
	stockRows map[int64]int64
	nextID    int64

	txError error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		periods:   make(map[int64]Period),
		drafts:    make(map[int64]int),
		balances:  make(map[int64][]glsummary.AccountPeriodBalance),
		openings:  make(map[int64]map[int64]decimal.Decimal),
		stockRows: make(map[int64]int64),
		nextID:    1,
	}
}

func (m *mockRepository) addPeriod(p Period) Period {
	if p.ID == 0 {
		p.ID = m.nextID
	}
	if p.ID >= m.nextID {
		m.nextID = p.ID + 1
	}
	m.periods[p.ID] = p
	return p
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if m.txError != nil {
		return m.txError
	}
	return fn(ctx, &mockTxRepo{mock: m})
}

func (m *mockRepository) GetByID(ctx context.Context, id int64) (Period, error) {
	p, ok := m.periods[id]
	if !ok {
		return Period{}, ErrNotFound
	}
	return p, nil
}

func (m *mockRepository) FindByDate(ctx context.Context, civilDate time.Time) (Period, error) {
	for _, p := range m.periods {
		if p.Covers(civilDate) {
			return p, nil
		}
	}
	return Period{}, ErrNoMatchingPeriod
}

func (m *mockRepository) List(ctx context.Context) ([]Period, error) {
	out := make([]Period, 0, len(m.periods))
	for _, p := range m.periods {
		out = append(out, p)
	}
	return out, nil
}

type mockTxRepo struct {
	mock *mockRepository
}

func (t *mockTxRepo) GetPeriodForUpdate(ctx context.Context, id int64) (Period, error) {
	return t.mock.GetByID(ctx, id)
}

func (t *mockTxRepo) LatestPeriod(ctx context.Context) (Period, bool, error) {
	var latest Period
	var found bool
	for _, p := range t.mock.periods {
		if !found || p.StartDate.After(latest.StartDate) {
			latest = p
			found = true
		}
	}
	return latest, found, nil
}

func (t *mockTxRepo) RangeConflict(ctx context.Context, start, end time.Time) (bool, error) {
	for _, p := range t.mock.periods {
		if !p.StartDate.After(end) && !p.EndDate.Before(start) {
			return true, nil
		}
	}
	return false, nil
}

func (t *mockTxRepo) InsertPeriod(ctx context.Context, code string, start, end time.Time) (Period, error) {
	return t.mock.addPeriod(Period{Code: code, StartDate: start, EndDate: end}), nil
}

func (t *mockTxRepo) NextPeriodAfter(ctx context.Context, end time.Time) (Period, bool, error) {
	var next Period
	var found bool
	for _, p := range t.mock.periods {
		if p.StartDate.After(end) && (!found || p.StartDate.Before(next.StartDate)) {
			next = p
			found = true
		}
	}
	return next, found, nil
}

func (t *mockTxRepo) CountDraftLedgers(ctx context.Context, periodID int64) (int, error) {
	return t.mock.drafts[periodID], nil
}

func (t *mockTxRepo) ClosingBalances(ctx context.Context, periodID int64) ([]glsummary.AccountPeriodBalance, error) {
	return t.mock.balances[periodID], nil
}

func (t *mockTxRepo) HasOpeningBalances(ctx context.Context, periodID int64) (bool, error) {
	return len(t.mock.openings[periodID]) > 0, nil
}

func (t *mockTxRepo) SeedOpeningBalances(ctx context.Context, periodID int64, balances []glsummary.AccountPeriodBalance) error {
	seeded := make(map[int64]decimal.Decimal, len(balances))
	for _, bal := range balances {
		seeded[bal.AccountID] = bal.Closing()
	}
	t.mock.openings[periodID] = seeded
	return nil
}

func (t *mockTxRepo) DeleteOpeningBalances(ctx context.Context, periodID int64) error {
	delete(t.mock.openings, periodID)
	return nil
}

func (t *mockTxRepo) HasStockBalances(ctx context.Context, periodID int64) (bool, error) {
	return t.mock.stockRows[periodID] > 0, nil
}

func (t *mockTxRepo) RollForwardStock(ctx context.Context, fromPeriodID, toPeriodID int64) (int64, error) {
	rows := t.mock.stockRows[fromPeriodID]
	t.mock.stockRows[toPeriodID] = rows
	return rows, nil
}

func (t *mockTxRepo) DeleteStockBalances(ctx context.Context, periodID int64) (int64, error) {
	rows := t.mock.stockRows[periodID]
	delete(t.mock.stockRows, periodID)
	return rows, nil
}

func (t *mockTxRepo) MarkClosed(ctx context.Context, periodID, actorID int64) error {
	p, ok := t.mock.periods[periodID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	p.IsClosed = true
	p.ClosedAt = &now
	p.ClosedBy = &actorID
	t.mock.periods[periodID] = p
	return nil
}

func (t *mockTxRepo) MarkReopened(ctx context.Context, periodID, actorID int64) error {
	p, ok := t.mock.periods[periodID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	p.IsClosed = false
	p.ReopenedAt = &now
	p.ReopenedBy = &actorID
	t.mock.periods[periodID] = p
	return nil
}

type mockAudit struct {
	logs []shared.AuditLog
}

func (m *mockAudit) Record(ctx context.Context, log shared.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

type mockLocker struct {
	held     map[int64]bool
	acquires int
	releases int
}

func (m *mockLocker) Acquire(ctx context.Context, periodID int64) error {
	if m.held[periodID] {
		return shared.ErrLockHeld
	}
	m.acquires++
	return nil
}

func (m *mockLocker) Release(ctx context.Context, periodID int64) {
	m.releases++
}

// ============================================================================
// FIXTURES
// ============================================================================

var jakarta = mustLoadLocation("Asia/Jakarta")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func civil(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func newTestService() (*Service, *mockRepository, *mockAudit, *mockLocker) {
	repo := newMockRepository()
	repo.addPeriod(Period{ID: 1, Code: "012026", StartDate: civil(2026, 1, 1), EndDate: civil(2026, 1, 31)})
	repo.balances[1] = []glsummary.AccountPeriodBalance{
		{AccountID: 10, AccountType: coa.AccountTypeAsset, PeriodID: 1,
			Opening: decimal.NewFromInt(100), Debit: decimal.NewFromInt(400), Credit: decimal.NewFromInt(150)},
		{AccountID: 20, AccountType: coa.AccountTypeRevenue, PeriodID: 1,
			Debit: decimal.NewFromInt(0), Credit: decimal.NewFromInt(250)},
	}
	repo.stockRows[1] = 3

	audit := &mockAudit{}
	locker := &mockLocker{held: make(map[int64]bool)}
	svc := NewService(repo, audit, locker, jakarta)
	return svc, repo, audit, locker
}

// ============================================================================
// RESOLUTION
// ============================================================================

func TestResolveUsesFiscalTimezone(t *testing.T) {
	svc, repo, _, _ := newTestService()
	repo.addPeriod(Period{ID: 2, Code: "022026", StartDate: civil(2026, 2, 1), EndDate: civil(2026, 2, 28)})
	ctx := context.Background()

	// 16:00 UTC on Jan 31 is still Jan 31 in UTC+7.
	p, err := svc.Resolve(ctx, time.Date(2026, 1, 31, 16, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.ID)

	// 17:00 UTC is already Feb 1 in UTC+7.
	p, err = svc.Resolve(ctx, time.Date(2026, 1, 31, 17, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.ID)
}

func TestResolveNoMatchingPeriod(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.Resolve(context.Background(), time.Date(2027, 6, 1, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoMatchingPeriod))
}

// ============================================================================
// CREATION
// ============================================================================

func TestCreatePeriod(t *testing.T) {
	svc, _, _, _ := newTestService()

	p, err := svc.Create(context.Background(), CreateInput{
		StartDate: civil(2026, 2, 1),
		EndDate:   civil(2026, 2, 28),
		ActorID:   100,
	})
	require.NoError(t, err)
	assert.Equal(t, "022026", p.Code)
}

func TestCreatePeriodOverlap(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.Create(context.Background(), CreateInput{
		StartDate: civil(2026, 1, 15),
		EndDate:   civil(2026, 2, 14),
		ActorID:   100,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPeriodOverlap))
}

func TestCreatePeriodGap(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.Create(context.Background(), CreateInput{
		StartDate: civil(2026, 3, 1),
		EndDate:   civil(2026, 3, 31),
		ActorID:   100,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPeriodGap))
}

// ============================================================================
// CLOSING
// ============================================================================

func TestClose(t *testing.T) {
	svc, repo, audit, locker := newTestService()
	ctx := context.Background()

	closed, err := svc.Close(ctx, 1, 100)
	require.NoError(t, err)
	assert.True(t, closed.IsClosed)
	require.NotNil(t, closed.ClosedBy)
	assert.Equal(t, int64(100), *closed.ClosedBy)

	// February was created automatically and received the rollover.
	next, err := repo.FindByDate(ctx, civil(2026, 2, 10))
	require.NoError(t, err)
	assert.Equal(t, "022026", next.Code)

	openings := repo.openings[next.ID]
	require.Len(t, openings, 2)
	// Asset: 100 + 400 - 150; revenue: 0 + 250 - 0.
	assert.True(t, openings[10].Equal(decimal.NewFromInt(350)), "got %s", openings[10])
	assert.True(t, openings[20].Equal(decimal.NewFromInt(250)), "got %s", openings[20])

	assert.Equal(t, int64(3), repo.stockRows[next.ID])

	require.Len(t, audit.logs, 1)
	assert.Equal(t, "period.close", audit.logs[0].Action)
	assert.Equal(t, 1, locker.acquires)
	assert.Equal(t, 1, locker.releases)
}

func TestCloseTwice(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Close(ctx, 1, 100)
	require.NoError(t, err)

	_, err = svc.Close(ctx, 1, 100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPeriodClosed))
}

func TestCloseDuplicateRolloverGuard(t *testing.T) {
	svc, repo, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Close(ctx, 1, 100)
	require.NoError(t, err)

	// Simulate the flag being reset without removing the seeded rows.
	p := repo.periods[1]
	p.IsClosed = false
	repo.periods[1] = p

	_, err = svc.Close(ctx, 1, 100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateRollover))
}

func TestCloseWithDrafts(t *testing.T) {
	svc, repo, _, _ := newTestService()
	repo.drafts[1] = 2

	_, err := svc.Close(context.Background(), 1, 100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnpostedEntriesExist))
	assert.False(t, repo.periods[1].IsClosed)
	assert.Empty(t, repo.openings)
}

func TestCloseUsesExistingNextPeriod(t *testing.T) {
	svc, repo, _, _ := newTestService()
	repo.addPeriod(Period{ID: 2, Code: "022026", StartDate: civil(2026, 2, 1), EndDate: civil(2026, 2, 28)})

	_, err := svc.Close(context.Background(), 1, 100)
	require.NoError(t, err)
	assert.Len(t, repo.periods, 2)
	assert.Len(t, repo.openings[2], 2)
}

func TestCloseLockHeld(t *testing.T) {
	svc, _, _, locker := newTestService()
	locker.held[1] = true

	_, err := svc.Close(context.Background(), 1, 100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrLockHeld))
}

// ============================================================================
// REOPENING
// ============================================================================

func TestReopen(t *testing.T) {
	svc, repo, audit, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Close(ctx, 1, 100)
	require.NoError(t, err)
	next, err := repo.FindByDate(ctx, civil(2026, 2, 10))
	require.NoError(t, err)

	reopened, err := svc.Reopen(ctx, 1, 200)
	require.NoError(t, err)
	assert.False(t, reopened.IsClosed)
	require.NotNil(t, reopened.ReopenedBy)
	assert.Equal(t, int64(200), *reopened.ReopenedBy)

	// Seeded rollover rows were removed so a later close starts clean.
	assert.Empty(t, repo.openings[next.ID])
	assert.Zero(t, repo.stockRows[next.ID])

	// The period can then be closed again.
	_, err = svc.Close(ctx, 1, 100)
	require.NoError(t, err)

	require.Len(t, audit.logs, 3)
	assert.Equal(t, "period.reopen", audit.logs[1].Action)
}

func TestReopenOpenPeriod(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.Reopen(context.Background(), 1, 100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPeriodOpen))
}

func TestReopenBlockedByClosedNextPeriod(t *testing.T) {
	svc, repo, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Close(ctx, 1, 100)
	require.NoError(t, err)
	next, err := repo.FindByDate(ctx, civil(2026, 2, 10))
	require.NoError(t, err)

	_, err = svc.Close(ctx, next.ID, 100)
	require.NoError(t, err)

	_, err = svc.Reopen(ctx, 1, 100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPeriodClosed))
}

// ============================================================================
// DOMAIN HELPERS
// ============================================================================

func TestCivilDate(t *testing.T) {
	got := CivilDate(time.Date(2026, 1, 31, 17, 0, 0, 0, time.UTC), jakarta)
	assert.Equal(t, civil(2026, 2, 1), got)

	got = CivilDate(time.Date(2026, 1, 31, 16, 59, 59, 0, time.UTC), jakarta)
	assert.Equal(t, civil(2026, 1, 31), got)
}

func TestNextMonthRange(t *testing.T) {
	start, end := NextMonthRange(Period{StartDate: civil(2026, 1, 1), EndDate: civil(2026, 1, 31)})
	assert.Equal(t, civil(2026, 2, 1), start)
	assert.Equal(t, civil(2026, 2, 28), end)

	// Month-length arithmetic across December.
	start, end = NextMonthRange(Period{StartDate: civil(2026, 12, 1), EndDate: civil(2026, 12, 31)})
	assert.Equal(t, civil(2027, 1, 1), start)
	assert.Equal(t, civil(2027, 1, 31), end)
}
