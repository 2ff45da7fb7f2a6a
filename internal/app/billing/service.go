package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/shahzaibimran219/pdf-scrapper/internal/app/credits"
	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/billing"
	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/plans"
	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/users"
	"github.com/shahzaibimran219/pdf-scrapper/internal/infra/clock"
	"github.com/shahzaibimran219/pdf-scrapper/internal/infra/metrics"
)

var (
	ErrProcessor            = errors.New("payment processor request failed")
	ErrUserNotFound         = errors.New("user not found")
	ErrNoSubscription       = errors.New("no active subscription")
	ErrDowngradeIneligible  = errors.New("only PRO users with an active subscription can schedule a downgrade")
	ErrNoScheduledDowngrade = errors.New("no downgrade is scheduled")
	ErrInvalidReason        = errors.New("cancellation reason must be at least 4 characters")
	ErrCheckoutInProgress   = errors.New("another checkout for this user is in progress")
	ErrSessionMismatch      = errors.New("checkout session does not belong to this user")
)

// Locker serializes checkout for a user across instances. Optional.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

type Config struct {
	SuccessURL      string
	CancelURL       string
	PortalReturnURL string
}

type Params struct {
	fx.In

	DB        *gorm.DB
	Processor billing.Processor
	Ledger    *credits.Ledger
	Catalog   plans.Catalog
	Config    Config
	Clock     clock.Clock      `optional:"true"`
	Locker    Locker           `optional:"true"`
	Metrics   *metrics.Metrics `optional:"true"`
	Log       *zap.Logger      `optional:"true"`
}

// Service is the subscription and credit state machine: checkout,
// upgrade, downgrade and the webhook transitions that confirm them.
type Service struct {
	db        *gorm.DB
	processor billing.Processor
	ledger    *credits.Ledger
	guard     *Guard
	catalog   plans.Catalog
	cfg       Config
	clock     clock.Clock
	locker    Locker
	metrics   *metrics.Metrics
	log       *zap.Logger
}

func NewService(p Params) *Service {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{
		db:        p.DB,
		processor: p.Processor,
		ledger:    p.Ledger,
		guard:     NewGuard(p.DB),
		catalog:   p.Catalog,
		cfg:       p.Config,
		clock:     clk,
		locker:    p.Locker,
		metrics:   p.Metrics,
		log:       log.Named("billing"),
	}
}

func (s *Service) LoadUser(ctx context.Context, id uint) (*users.User, error) {
	return loadUser(s.db.WithContext(ctx), id)
}

func loadUser(db *gorm.DB, id uint) (*users.User, error) {
	var u users.User
	if err := db.Where("id = ?", id).Take(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// userForCustomer finds the local user behind a processor customer,
// falling back to the user_id we stamp into processor metadata.
func (s *Service) userForCustomer(ctx context.Context, customerID string, metadata map[string]string) (*users.User, error) {
	db := s.db.WithContext(ctx)
	if customerID != "" {
		var u users.User
		err := db.Where("stripe_customer_id = ?", customerID).Take(&u).Error
		if err == nil {
			return &u, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if id := userIDFromMetadata(metadata); id != 0 {
		return loadUser(db, id)
	}
	return nil, ErrUserNotFound
}

func userIDFromMetadata(md map[string]string) uint {
	if md == nil || md["user_id"] == "" {
		return 0
	}
	uid, err := strconv.ParseUint(md["user_id"], 10, 64)
	if err != nil {
		return 0
	}
	return uint(uid)
}

func loadIntent(db *gorm.DB, userID uint) (*billing.PendingBillingIntent, error) {
	var in billing.PendingBillingIntent
	err := db.Where("user_id = ?", userID).Take(&in).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &in, nil
}

// saveIntent replaces whatever intent the user had.
func saveIntent(db *gorm.DB, in *billing.PendingBillingIntent) error {
	if err := clearIntent(db, in.UserID); err != nil {
		return err
	}
	in.ID = 0
	return db.Create(in).Error
}

func clearIntent(db *gorm.DB, userID uint) error {
	return db.Where("user_id = ?", userID).Delete(&billing.PendingBillingIntent{}).Error
}

func (s *Service) Intent(ctx context.Context, userID uint) (*billing.PendingBillingIntent, error) {
	return loadIntent(s.db.WithContext(ctx), userID)
}

// priceFor returns the configured price id, creating an ad-hoc recurring
// price when none is configured.
func (s *Service) priceFor(ctx context.Context, spec plans.Spec) (string, error) {
	if spec.PriceID != "" {
		return spec.PriceID, nil
	}
	id, err := s.processor.CreatePrice(ctx, billing.PriceRequest{
		Currency:    s.catalog.Currency,
		UnitAmount:  spec.UnitAmount,
		Interval:    s.catalog.Interval,
		ProductName: spec.ProductName,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProcessor, err)
	}
	return id, nil
}

func planMetadata(userID uint, spec plans.Spec) map[string]string {
	return map[string]string{
		"user_id": strconv.FormatUint(uint64(userID), 10),
		"plan":    spec.Plan.Label(),
		"credits": strconv.FormatInt(spec.Credits, 10),
	}
}

func (s *Service) expiry(now time.Time) *time.Time {
	if s.catalog.IntentTTL <= 0 {
		return nil
	}
	t := now.Add(s.catalog.IntentTTL)
	return &t
}

func strPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
