package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fuelerp/backend/internal/domain/payment"
)

// InMemoryDisbursementLedger tracks disbursement totals in process
// memory. Suitable for single-instance deployments and as a fallback
// when redis is unreachable; velocity limits are then only enforced
// within one process.
type InMemoryDisbursementLedger struct {
	mu     sync.RWMutex
	totals map[string]decimal.Decimal
}

// NewInMemoryDisbursementLedger creates an empty in-memory ledger
func NewInMemoryDisbursementLedger() *InMemoryDisbursementLedger {
	return &InMemoryDisbursementLedger{
		totals: make(map[string]decimal.Decimal),
	}
}

// DailyTotal returns the amount disbursed for the tenant today
func (l *InMemoryDisbursementLedger) DailyTotal(ctx context.Context, tenantID uuid.UUID, at time.Time) (decimal.Decimal, error) {
	return l.total(dailyKey(tenantID, at)), nil
}

// MonthlyTotal returns the amount disbursed for the tenant this month
func (l *InMemoryDisbursementLedger) MonthlyTotal(ctx context.Context, tenantID uuid.UUID, at time.Time) (decimal.Decimal, error) {
	return l.total(monthlyKey(tenantID, at)), nil
}

// Record adds a successful disbursement to the day and month counters
func (l *InMemoryDisbursementLedger) Record(ctx context.Context, tenantID uuid.UUID, amount decimal.Decimal, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	day := dailyKey(tenantID, at)
	month := monthlyKey(tenantID, at)
	l.totals[day] = l.totals[day].Add(amount)
	l.totals[month] = l.totals[month].Add(amount)
	return nil
}

func (l *InMemoryDisbursementLedger) total(key string) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if total, ok := l.totals[key]; ok {
		return total
	}
	return decimal.Zero
}

var _ payment.DisbursementLedger = (*InMemoryDisbursementLedger)(nil)
