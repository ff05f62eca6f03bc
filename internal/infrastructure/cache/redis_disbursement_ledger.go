package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/fuelerp/backend/internal/domain/payment"
)

const (
	disbursementKeyPrefix = "disbursement:"

	// amountScale stores amounts as integer ten-thousandths so the
	// counters stay exact under concurrent increments
	amountScale = 4

	dailyKeyTTL   = 48 * time.Hour
	monthlyKeyTTL = 40 * 24 * time.Hour
)

// RedisDisbursementLedger tracks rolling daily and monthly disbursement
// totals per tenant. The payment sweep consults it to enforce rule
// velocity limits across instances.
type RedisDisbursementLedger struct {
	client *redis.Client
}

// NewRedisDisbursementLedger creates a ledger backed by an existing client
func NewRedisDisbursementLedger(client *redis.Client) *RedisDisbursementLedger {
	return &RedisDisbursementLedger{client: client}
}

func dailyKey(tenantID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("%sdaily:%s:%s", disbursementKeyPrefix, tenantID, at.UTC().Format("2006-01-02"))
}

func monthlyKey(tenantID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("%smonthly:%s:%s", disbursementKeyPrefix, tenantID, at.UTC().Format("2006-01"))
}

// DailyTotal returns the amount disbursed for the tenant today
func (l *RedisDisbursementLedger) DailyTotal(ctx context.Context, tenantID uuid.UUID, at time.Time) (decimal.Decimal, error) {
	return l.total(ctx, dailyKey(tenantID, at))
}

// MonthlyTotal returns the amount disbursed for the tenant this month
func (l *RedisDisbursementLedger) MonthlyTotal(ctx context.Context, tenantID uuid.UUID, at time.Time) (decimal.Decimal, error) {
	return l.total(ctx, monthlyKey(tenantID, at))
}

func (l *RedisDisbursementLedger) total(ctx context.Context, key string) (decimal.Decimal, error) {
	value, err := l.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read disbursement counter: %w", err)
	}
	units, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return decimal.Zero, fmt.Errorf("corrupt disbursement counter %s: %w", key, err)
	}
	return decimal.New(units, -amountScale), nil
}

// Record adds a successful disbursement to both counters atomically
func (l *RedisDisbursementLedger) Record(ctx context.Context, tenantID uuid.UUID, amount decimal.Decimal, at time.Time) error {
	units := amount.Shift(amountScale).IntPart()

	day := dailyKey(tenantID, at)
	month := monthlyKey(tenantID, at)

	pipe := l.client.TxPipeline()
	pipe.IncrBy(ctx, day, units)
	pipe.Expire(ctx, day, dailyKeyTTL)
	pipe.IncrBy(ctx, month, units)
	pipe.Expire(ctx, month, monthlyKeyTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record disbursement: %w", err)
	}
	return nil
}

var _ payment.DisbursementLedger = (*RedisDisbursementLedger)(nil)
