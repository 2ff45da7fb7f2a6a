package credits

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/credits"
	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/plans"
	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/users"
	"github.com/shahzaibimran219/pdf-scrapper/internal/infra/dbtest"
)

func newUser(t *testing.T, db *gorm.DB, plan plans.PlanType) users.User {
	t.Helper()
	u := users.NewFreeUser("user@example.com", "Test User")
	u.PlanType = plan
	require.NoError(t, db.Create(&u).Error)
	return u
}

func TestGrantAndDebitKeepLedgerInSync(t *testing.T) {
	db := dbtest.Open(t)
	l := NewLedger(db, zap.NewNop(), nil)
	ctx := context.Background()
	u := newUser(t, db, plans.Basic)

	res, err := l.Grant(ctx, GrantInput{UserID: u.ID, Amount: 10000, IdempotencyKey: "grant:sub_1:1:BASIC"})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, int64(10000), res.Balance)

	bal, err := l.Debit(ctx, u.ID, 100, "resume-1")
	require.NoError(t, err)
	assert.Equal(t, int64(9900), bal)

	audit, err := l.Audit(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, audit.Consistent)
	assert.Equal(t, int64(9900), audit.Summed)
	assert.Equal(t, int64(2), audit.Entries)

	history, err := l.History(ctx, u.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, credits.ReasonExtractionDebit, history[0].Reason)
	assert.Equal(t, int64(-100), history[0].Delta)
	require.NotNil(t, history[0].ResumeID)
	assert.Equal(t, "resume-1", *history[0].ResumeID)
}

func TestGrantIsIdempotentPerKey(t *testing.T) {
	db := dbtest.Open(t)
	l := NewLedger(db, nil, nil)
	ctx := context.Background()
	u := newUser(t, db, plans.Pro)

	in := GrantInput{UserID: u.ID, Amount: 20000, IdempotencyKey: "grant:sub_1:1700000000:PRO"}
	first, err := l.Grant(ctx, in)
	require.NoError(t, err)
	second, err := l.Grant(ctx, in)
	require.NoError(t, err)

	assert.True(t, first.Applied)
	assert.False(t, second.Applied)
	assert.Equal(t, int64(20000), second.Balance)

	var n int64
	require.NoError(t, db.Model(&credits.LedgerEntry{}).Where("user_id = ?", u.ID).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestGrantRejectsNonPositiveAmounts(t *testing.T) {
	db := dbtest.Open(t)
	l := NewLedger(db, nil, nil)
	u := newUser(t, db, plans.Basic)

	_, err := l.Grant(context.Background(), GrantInput{UserID: u.ID, Amount: 0})
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = l.Debit(context.Background(), u.ID, -5, "")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestDebitInsufficientLeavesStateUnchanged(t *testing.T) {
	db := dbtest.Open(t)
	l := NewLedger(db, nil, nil)
	ctx := context.Background()
	u := newUser(t, db, plans.Basic)

	_, err := l.Grant(ctx, GrantInput{UserID: u.ID, Amount: 50})
	require.NoError(t, err)

	_, err = l.Debit(ctx, u.ID, 100, "resume-x")
	require.ErrorIs(t, err, ErrInsufficientCredits)

	bal, err := l.Balance(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), bal)

	var n int64
	require.NoError(t, db.Model(&credits.LedgerEntry{}).
		Where("user_id = ? AND reason = ?", u.ID, credits.ReasonExtractionDebit).Count(&n).Error)
	assert.Zero(t, n)
}

func TestDebitUnknownUser(t *testing.T) {
	db := dbtest.Open(t)
	l := NewLedger(db, nil, nil)
	_, err := l.Debit(context.Background(), 4242, 100, "")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	db := dbtest.Open(t)
	l := NewLedger(db, nil, nil)
	ctx := context.Background()
	u := newUser(t, db, plans.Basic)

	_, err := l.Grant(ctx, GrantInput{UserID: u.ID, Amount: 500})
	require.NoError(t, err)

	const workers = 12
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		ok, denied int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Debit(ctx, u.ID, 100, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrInsufficientCredits):
				denied++
			default:
				t.Errorf("unexpected debit error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, ok)
	assert.Equal(t, workers-5, denied)

	audit, err := l.Audit(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), audit.Cached)
	assert.True(t, audit.Consistent)
}

func TestForfeitZeroesBalanceWithEntry(t *testing.T) {
	db := dbtest.Open(t)
	l := NewLedger(db, nil, nil)
	ctx := context.Background()
	u := newUser(t, db, plans.Pro)

	_, err := l.Grant(ctx, GrantInput{UserID: u.ID, Amount: 700})
	require.NoError(t, err)

	var forfeited int64
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		forfeited, err = l.ForfeitTx(tx, u.ID, map[string]any{"reason": "test"})
		return err
	}))
	assert.Equal(t, int64(700), forfeited)

	audit, err := l.Audit(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), audit.Cached)
	assert.True(t, audit.Consistent)

	// nothing left to forfeit
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		n, err := l.ForfeitTx(tx, u.ID, nil)
		assert.Zero(t, n)
		return err
	}))
}
