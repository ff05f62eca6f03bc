package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	lendingapp "github.com/fuelerp/backend/internal/application/lending"
	paymentapp "github.com/fuelerp/backend/internal/application/payment"
	settlementapp "github.com/fuelerp/backend/internal/application/settlement"
	"github.com/fuelerp/backend/internal/domain/pricing"
	"github.com/fuelerp/backend/internal/domain/settlement"
	"github.com/shopspring/decimal"
)

type stubPenaltyRunner struct {
	mu    sync.Mutex
	calls int
}

func (s *stubPenaltyRunner) AccruePenalties(ctx context.Context, asOf time.Time) (*lendingapp.PenaltyRunResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return &lendingapp.PenaltyRunResult{LoansChecked: 2, LoansPenalized: 1, TotalAccrued: decimal.NewFromInt(500)}, nil
}

func (s *stubPenaltyRunner) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubWindowRunner struct {
	mu      sync.Mutex
	windows []string
}

func (s *stubWindowRunner) RunWindowBatch(ctx context.Context, tenantID uuid.UUID, windowID string, other settlement.OtherDeductions) (*settlementapp.WindowRunResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows = append(s.windows, windowID)
	return &settlementapp.WindowRunResult{WindowID: windowID, Processed: 3}, nil
}

func (s *stubWindowRunner) ranWindows() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.windows...)
}

type stubSweeper struct {
	mu    sync.Mutex
	calls int
}

func (s *stubSweeper) ProcessAutomatedPayments(ctx context.Context, tenantID uuid.UUID, dryRun bool) (*paymentapp.SweepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return &paymentapp.SweepResult{Evaluated: 1, Accepted: 1, DryRun: dryRun}, nil
}

func (s *stubSweeper) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubTenantSource struct {
	tenants []uuid.UUID
}

func (s *stubTenantSource) ActiveTenants(ctx context.Context) ([]uuid.UUID, error) {
	return s.tenants, nil
}

type stubWindowSource struct {
	window pricing.Window
}

func (s *stubWindowSource) WindowForDate(ctx context.Context, date time.Time) (pricing.Window, error) {
	return s.window, nil
}

func newTestScheduler(windowEnd time.Time, tenantCount int) (*SettlementCronScheduler, *stubPenaltyRunner, *stubWindowRunner, *stubSweeper) {
	penalty := &stubPenaltyRunner{}
	windows := &stubWindowRunner{}
	sweeper := &stubSweeper{}

	tenants := make([]uuid.UUID, tenantCount)
	for i := range tenants {
		tenants[i] = uuid.New()
	}

	source := &stubWindowSource{window: pricing.Window{
		ID:        "2025-W5",
		StartDate: windowEnd.AddDate(0, 0, -13),
		EndDate:   windowEnd,
	}}

	s := NewSettlementCronScheduler(
		DefaultSettlementCronSchedulerConfig(),
		penalty, windows, sweeper,
		&stubTenantSource{tenants: tenants},
		source,
		zap.NewNop(),
	)
	return s, penalty, windows, sweeper
}

func TestSettlementCronScheduler_Schedule(t *testing.T) {
	s, _, _, _ := newTestScheduler(time.Now(), 1)

	t.Run("should run penalties at the configured hour", func(t *testing.T) {
		assert.True(t, s.shouldRunPenalties(time.Date(2025, 3, 10, 1, 0, 0, 0, time.UTC)))
		assert.False(t, s.shouldRunPenalties(time.Date(2025, 3, 10, 1, 30, 0, 0, time.UTC)))
		assert.False(t, s.shouldRunPenalties(time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC)))
	})

	t.Run("should run the window check at the configured hour", func(t *testing.T) {
		assert.True(t, s.shouldRunWindowCheck(time.Date(2025, 3, 10, 3, 0, 0, 0, time.UTC)))
		assert.False(t, s.shouldRunWindowCheck(time.Date(2025, 3, 10, 4, 0, 0, 0, time.UTC)))
	})

	t.Run("should run the sweep on the configured interval", func(t *testing.T) {
		assert.True(t, s.shouldRunSweep(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)))
		assert.True(t, s.shouldRunSweep(time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)))
		assert.True(t, s.shouldRunSweep(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)))
		assert.False(t, s.shouldRunSweep(time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC)))
		assert.False(t, s.shouldRunSweep(time.Date(2025, 3, 10, 6, 15, 0, 0, time.UTC)))
	})
}

func TestSettlementCronScheduler_WindowRun(t *testing.T) {
	t.Run("should run the batch when the window closed yesterday", func(t *testing.T) {
		now := time.Date(2025, 3, 15, 3, 0, 0, 0, time.UTC)
		yesterday := now.AddDate(0, 0, -1)
		s, _, windows, _ := newTestScheduler(yesterday, 2)

		s.runWindowSettlements(context.Background(), now)

		ran := windows.ranWindows()
		require.Len(t, ran, 2) // once per tenant
		assert.Equal(t, "2025-W5", ran[0])
	})

	t.Run("should skip when the window is still open", func(t *testing.T) {
		now := time.Date(2025, 3, 15, 3, 0, 0, 0, time.UTC)
		s, _, windows, _ := newTestScheduler(now.AddDate(0, 0, 5), 2)

		s.runWindowSettlements(context.Background(), now)

		assert.Empty(t, windows.ranWindows())
	})
}

func TestSettlementCronScheduler_Lifecycle(t *testing.T) {
	t.Run("should start and stop cleanly", func(t *testing.T) {
		s, _, _, _ := newTestScheduler(time.Now(), 1)

		require.NoError(t, s.Start(context.Background()))
		status := s.GetStatus()
		assert.Equal(t, true, status["is_running"])

		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, s.Stop(stopCtx))
		assert.Equal(t, false, s.GetStatus()["is_running"])
	})

	t.Run("should reject an invalid configuration", func(t *testing.T) {
		config := DefaultSettlementCronSchedulerConfig()
		config.SweepIntervalHours = 0
		s := NewSettlementCronScheduler(config, &stubPenaltyRunner{}, &stubWindowRunner{}, &stubSweeper{},
			&stubTenantSource{}, &stubWindowSource{}, zap.NewNop())

		assert.ErrorIs(t, s.Start(context.Background()), ErrInvalidConfig)
	})

	t.Run("should reject manual triggers while stopped", func(t *testing.T) {
		s, _, _, _ := newTestScheduler(time.Now(), 1)
		assert.ErrorIs(t, s.TriggerPenaltyRun(context.Background()), ErrSchedulerNotRunning)
		assert.ErrorIs(t, s.TriggerPaymentSweep(context.Background()), ErrSchedulerNotRunning)
	})

	t.Run("should run a manual penalty trigger", func(t *testing.T) {
		s, penalty, _, _ := newTestScheduler(time.Now(), 1)
		require.NoError(t, s.Start(context.Background()))
		defer func() { _ = s.Stop(context.Background()) }()

		require.NoError(t, s.TriggerPenaltyRun(context.Background()))

		assert.Eventually(t, func() bool {
			return penalty.callCount() == 1
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("should cancel and await a triggered run on stop", func(t *testing.T) {
		penalty := &blockingPenaltyRunner{started: make(chan struct{})}
		s := NewSettlementCronScheduler(
			DefaultSettlementCronSchedulerConfig(),
			penalty, &stubWindowRunner{}, &stubSweeper{},
			&stubTenantSource{tenants: []uuid.UUID{uuid.New()}},
			&stubWindowSource{},
			zap.NewNop(),
		)
		require.NoError(t, s.Start(context.Background()))

		require.NoError(t, s.TriggerPenaltyRun(context.Background()))
		select {
		case <-penalty.started:
		case <-time.After(2 * time.Second):
			t.Fatal("triggered run never started")
		}

		stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		require.NoError(t, s.Stop(stopCtx))
		assert.True(t, penalty.wasCanceled())
	})
}

// blockingPenaltyRunner holds its run open until the context is
// canceled, recording whether cancellation reached it
type blockingPenaltyRunner struct {
	mu       sync.Mutex
	started  chan struct{}
	canceled bool
}

func (b *blockingPenaltyRunner) AccruePenalties(ctx context.Context, asOf time.Time) (*lendingapp.PenaltyRunResult, error) {
	close(b.started)
	<-ctx.Done()
	b.mu.Lock()
	b.canceled = true
	b.mu.Unlock()
	return &lendingapp.PenaltyRunResult{}, ctx.Err()
}

func (b *blockingPenaltyRunner) wasCanceled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.canceled
}
