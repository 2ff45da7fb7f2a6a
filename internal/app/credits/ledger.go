package credits

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/credits"
	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/users"
	"github.com/shahzaibimran219/pdf-scrapper/internal/infra/metrics"
)

var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidAmount       = errors.New("credit amount must be positive")
	ErrUserNotFound        = errors.New("user not found")
)

// Ledger owns every change to a user's credit balance. The cached
// users.credits column and the sum of credit_ledger deltas move together
// inside one transaction.
type Ledger struct {
	db      *gorm.DB
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewLedger(db *gorm.DB, log *zap.Logger, m *metrics.Metrics) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{db: db, log: log.Named("credits.ledger"), metrics: m}
}

type GrantInput struct {
	UserID uint
	Amount int64
	// IdempotencyKey scopes the grant to one causal event. Empty means no
	// dedup beyond the caller's own guard.
	IdempotencyKey string
	Meta           map[string]any
}

type GrantResult struct {
	Balance int64
	// Applied is false when the idempotency key was already recorded and
	// the balance was left untouched.
	Applied bool
}

func (l *Ledger) Grant(ctx context.Context, in GrantInput) (GrantResult, error) {
	var res GrantResult
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		res, err = l.GrantTx(tx, in)
		return err
	})
	return res, err
}

// GrantTx runs inside the caller's transaction so plan changes and the
// grant commit together.
func (l *Ledger) GrantTx(tx *gorm.DB, in GrantInput) (GrantResult, error) {
	if in.Amount <= 0 {
		return GrantResult{}, ErrInvalidAmount
	}
	meta, err := encodeMeta(in.Meta)
	if err != nil {
		return GrantResult{}, err
	}

	entry := credits.LedgerEntry{
		UserID: in.UserID,
		Delta:  in.Amount,
		Reason: credits.ReasonSubscriptionGrant,
		Meta:   meta,
	}
	if in.IdempotencyKey != "" {
		key := in.IdempotencyKey
		entry.IdempotencyKey = &key
	}

	// Entry first: a key collision must stop the increment.
	ins := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "idempotency_key"}},
		DoNothing: true,
	}).Create(&entry)
	if ins.Error != nil {
		return GrantResult{}, fmt.Errorf("append grant entry: %w", ins.Error)
	}
	if ins.RowsAffected == 0 {
		l.log.Warn("duplicate grant ignored",
			zap.Uint("user_id", in.UserID),
			zap.String("idempotency_key", in.IdempotencyKey),
		)
		bal, err := balanceTx(tx, in.UserID)
		return GrantResult{Balance: bal}, err
	}

	upd := tx.Model(&users.User{}).
		Where("id = ?", in.UserID).
		Update("credits", gorm.Expr("credits + ?", in.Amount))
	if upd.Error != nil {
		return GrantResult{}, fmt.Errorf("increment credits: %w", upd.Error)
	}
	if upd.RowsAffected == 0 {
		return GrantResult{}, ErrUserNotFound
	}

	bal, err := balanceTx(tx, in.UserID)
	if err != nil {
		return GrantResult{}, err
	}
	l.metrics.LedgerEntry(string(credits.ReasonSubscriptionGrant), in.Amount)
	return GrantResult{Balance: bal, Applied: true}, nil
}

// Debit spends credits for one extraction. The balance check and the
// decrement are a single conditional UPDATE, so concurrent debits can
// never overdraw.
func (l *Ledger) Debit(ctx context.Context, userID uint, amount int64, resumeID string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	var balance int64
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upd := tx.Model(&users.User{}).
			Where("id = ? AND credits >= ?", userID, amount).
			Update("credits", gorm.Expr("credits - ?", amount))
		if upd.Error != nil {
			return fmt.Errorf("decrement credits: %w", upd.Error)
		}
		if upd.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&users.User{}).Where("id = ?", userID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return ErrUserNotFound
			}
			return ErrInsufficientCredits
		}

		entry := credits.LedgerEntry{
			UserID: userID,
			Delta:  -amount,
			Reason: credits.ReasonExtractionDebit,
		}
		if resumeID != "" {
			entry.ResumeID = &resumeID
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("append debit entry: %w", err)
		}

		var err error
		balance, err = balanceTx(tx, userID)
		return err
	})
	if err != nil {
		return 0, err
	}
	l.metrics.LedgerEntry(string(credits.ReasonExtractionDebit), amount)
	return balance, nil
}

// ForfeitTx zeroes the balance with a correcting entry. It returns the
// number of credits forfeited.
func (l *Ledger) ForfeitTx(tx *gorm.DB, userID uint, meta map[string]any) (int64, error) {
	current, err := balanceTx(tx, userID)
	if err != nil {
		return 0, err
	}
	if current <= 0 {
		return 0, nil
	}
	m, err := encodeMeta(meta)
	if err != nil {
		return 0, err
	}

	upd := tx.Model(&users.User{}).
		Where("id = ? AND credits = ?", userID, current).
		Update("credits", 0)
	if upd.Error != nil {
		return 0, fmt.Errorf("zero credits: %w", upd.Error)
	}
	if upd.RowsAffected == 0 {
		return 0, errors.New("credits changed during forfeit")
	}
	entry := credits.LedgerEntry{
		UserID: userID,
		Delta:  -current,
		Reason: credits.ReasonCancellationForfeit,
		Meta:   m,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return 0, fmt.Errorf("append forfeit entry: %w", err)
	}
	l.metrics.LedgerEntry(string(credits.ReasonCancellationForfeit), current)
	return current, nil
}

func (l *Ledger) Balance(ctx context.Context, userID uint) (int64, error) {
	return balanceTx(l.db.WithContext(ctx), userID)
}

func (l *Ledger) History(ctx context.Context, userID uint, limit int) ([]credits.LedgerEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var entries []credits.LedgerEntry
	err := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// Audit compares the cached balance with the ledger sum.
type Audit struct {
	UserID     uint  `json:"user_id"`
	Cached     int64 `json:"cached"`
	Summed     int64 `json:"summed"`
	Entries    int64 `json:"entries"`
	Consistent bool  `json:"consistent"`
}

func (l *Ledger) Audit(ctx context.Context, userID uint) (Audit, error) {
	db := l.db.WithContext(ctx)
	cached, err := balanceTx(db, userID)
	if err != nil {
		return Audit{}, err
	}

	var agg struct {
		Summed  int64
		Entries int64
	}
	if err := db.Model(&credits.LedgerEntry{}).
		Select("COALESCE(SUM(delta), 0) AS summed, COUNT(*) AS entries").
		Where("user_id = ?", userID).
		Scan(&agg).Error; err != nil {
		return Audit{}, err
	}

	return Audit{
		UserID:     userID,
		Cached:     cached,
		Summed:     agg.Summed,
		Entries:    agg.Entries,
		Consistent: cached == agg.Summed,
	}, nil
}

func balanceTx(db *gorm.DB, userID uint) (int64, error) {
	var u users.User
	if err := db.Select("id", "credits").Where("id = ?", userID).Take(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	return u.Credits, nil
}

func encodeMeta(meta map[string]any) (datatypes.JSON, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode ledger meta: %w", err)
	}
	return datatypes.JSON(b), nil
}
