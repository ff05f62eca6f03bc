package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	lendingapp "github.com/fuelerp/backend/internal/application/lending"
	paymentapp "github.com/fuelerp/backend/internal/application/payment"
	settlementapp "github.com/fuelerp/backend/internal/application/settlement"
	"github.com/fuelerp/backend/internal/domain/pricing"
	"github.com/fuelerp/backend/internal/domain/settlement"
)

// cronTickerInterval is the interval at which the scheduler checks for due jobs
const cronTickerInterval = 1 * time.Minute

// PenaltyRunner accrues overdue loan penalties across tenants
type PenaltyRunner interface {
	AccruePenalties(ctx context.Context, asOf time.Time) (*lendingapp.PenaltyRunResult, error)
}

// WindowRunner calculates settlements for every eligible station in a
// closed pricing window
type WindowRunner interface {
	RunWindowBatch(ctx context.Context, tenantID uuid.UUID, windowID string, other settlement.OtherDeductions) (*settlementapp.WindowRunResult, error)
}

// PaymentSweeper evaluates approved settlements against payment rules
// and disburses the eligible ones
type PaymentSweeper interface {
	ProcessAutomatedPayments(ctx context.Context, tenantID uuid.UUID, dryRun bool) (*paymentapp.SweepResult, error)
}

// TenantSource enumerates the tenants with settlement data
type TenantSource interface {
	ActiveTenants(ctx context.Context) ([]uuid.UUID, error)
}

// WindowSource resolves the pricing window covering a date
type WindowSource interface {
	WindowForDate(ctx context.Context, date time.Time) (pricing.Window, error)
}

// SettlementCronSchedulerConfig holds configuration for the settlement scheduler
type SettlementCronSchedulerConfig struct {
	// Enabled indicates if the scheduler is enabled
	Enabled bool
	// PenaltyHour is the hour (0-23) for the daily penalty accrual run
	PenaltyHour int
	// SettlementHour is the hour (0-23) for the window close check
	SettlementHour int
	// SweepIntervalHours is how often the payment sweep runs
	SweepIntervalHours int
	// JobTimeout is the maximum time a single run can take
	JobTimeout time.Duration
}

// DefaultSettlementCronSchedulerConfig returns the default schedule:
// penalties at 1 AM, window check at 3 AM, payment sweep every 6 hours
func DefaultSettlementCronSchedulerConfig() SettlementCronSchedulerConfig {
	return SettlementCronSchedulerConfig{
		Enabled:            true,
		PenaltyHour:        1,
		SettlementHour:     3,
		SweepIntervalHours: 6,
		JobTimeout:         30 * time.Minute,
	}
}

// SettlementCronScheduler drives the recurring settlement engine work:
// daily penalty accrual, settlement calculation when a pricing window
// closes, and the periodic automated payment sweep.
type SettlementCronScheduler struct {
	config  SettlementCronSchedulerConfig
	penalty PenaltyRunner
	windows WindowRunner
	sweeper PaymentSweeper
	tenants TenantSource
	source  WindowSource
	logger  *zap.Logger

	runCtx    context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	lastPenaltyRunAt *time.Time
	lastWindowRunAt  *time.Time
	lastSweepAt      *time.Time
}

// NewSettlementCronScheduler creates a new settlement scheduler
func NewSettlementCronScheduler(
	config SettlementCronSchedulerConfig,
	penalty PenaltyRunner,
	windows WindowRunner,
	sweeper PaymentSweeper,
	tenants TenantSource,
	source WindowSource,
	logger *zap.Logger,
) *SettlementCronScheduler {
	return &SettlementCronScheduler{
		config:  config,
		penalty: penalty,
		windows: windows,
		sweeper: sweeper,
		tenants: tenants,
		source:  source,
		logger:  logger,
	}
}

// Start starts the scheduler loop
func (s *SettlementCronScheduler) Start(ctx context.Context) error {
	if s.config.PenaltyHour < 0 || s.config.PenaltyHour > 23 ||
		s.config.SettlementHour < 0 || s.config.SettlementHour > 23 ||
		s.config.SweepIntervalHours < 1 {
		return ErrInvalidConfig
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	s.runCtx = ctx
	s.cancel = cancel
	s.isRunning = true
	s.wg.Add(1)
	s.mu.Unlock()

	go s.cronLoop(ctx)

	s.logger.Info("Settlement cron scheduler started",
		zap.Int("penalty_hour", s.config.PenaltyHour),
		zap.Int("settlement_hour", s.config.SettlementHour),
		zap.Int("sweep_interval_hours", s.config.SweepIntervalHours),
	)

	return nil
}

// Stop stops the scheduler and waits for in-flight runs to finish
func (s *SettlementCronScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Settlement cron scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Settlement cron scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *SettlementCronScheduler) cronLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(cronTickerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if s.shouldRunPenalties(now) {
				s.runPenaltyAccrual(ctx, now)
			}
			if s.shouldRunWindowCheck(now) {
				s.runWindowSettlements(ctx, now)
			}
			if s.shouldRunSweep(now) {
				s.runPaymentSweep(ctx, now)
			}
		}
	}
}

func (s *SettlementCronScheduler) shouldRunPenalties(now time.Time) bool {
	return now.Hour() == s.config.PenaltyHour && now.Minute() == 0
}

func (s *SettlementCronScheduler) shouldRunWindowCheck(now time.Time) bool {
	return now.Hour() == s.config.SettlementHour && now.Minute() == 0
}

func (s *SettlementCronScheduler) shouldRunSweep(now time.Time) bool {
	return now.Hour()%s.config.SweepIntervalHours == 0 && now.Minute() == 0
}

// runPenaltyAccrual applies overdue penalties across all tenants in one pass
func (s *SettlementCronScheduler) runPenaltyAccrual(ctx context.Context, now time.Time) {
	runCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	s.mu.Lock()
	s.lastPenaltyRunAt = &now
	s.mu.Unlock()

	result, err := s.penalty.AccruePenalties(runCtx, now)
	if err != nil {
		s.logger.Error("Penalty accrual run failed", zap.Error(err))
		return
	}

	s.logger.Info("Penalty accrual run completed",
		zap.Int("loans_checked", result.LoansChecked),
		zap.Int("loans_penalized", result.LoansPenalized),
	)
}

// runWindowSettlements calculates settlements for every tenant when the
// pricing window covering yesterday has just closed
func (s *SettlementCronScheduler) runWindowSettlements(ctx context.Context, now time.Time) {
	runCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	yesterday := now.AddDate(0, 0, -1)
	window, err := s.source.WindowForDate(runCtx, yesterday)
	if err != nil {
		s.logger.Error("Failed to resolve pricing window for settlement check", zap.Error(err))
		return
	}

	if !sameDay(window.EndDate, yesterday) {
		s.logger.Debug("Pricing window still open, skipping settlement run",
			zap.String("window_id", window.ID),
			zap.Time("window_end", window.EndDate),
		)
		return
	}

	s.mu.Lock()
	s.lastWindowRunAt = &now
	s.mu.Unlock()

	tenants, err := s.tenants.ActiveTenants(runCtx)
	if err != nil {
		s.logger.Error("Failed to enumerate tenants for settlement run", zap.Error(err))
		return
	}

	s.logger.Info("Pricing window closed, running settlement batch",
		zap.String("window_id", window.ID),
		zap.Int("tenant_count", len(tenants)),
	)

	for _, tenantID := range tenants {
		result, err := s.windows.RunWindowBatch(runCtx, tenantID, window.ID, settlement.OtherDeductions{})
		if err != nil {
			s.logger.Error("Window settlement batch failed",
				zap.String("tenant_id", tenantID.String()),
				zap.String("window_id", window.ID),
				zap.Error(err),
			)
			continue
		}
		s.logger.Info("Window settlement batch completed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("window_id", window.ID),
			zap.Int("processed", result.Processed),
			zap.Int("failed", result.Failed),
		)
	}
}

// runPaymentSweep runs the automated payment sweep for every tenant
func (s *SettlementCronScheduler) runPaymentSweep(ctx context.Context, now time.Time) {
	runCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	s.mu.Lock()
	s.lastSweepAt = &now
	s.mu.Unlock()

	tenants, err := s.tenants.ActiveTenants(runCtx)
	if err != nil {
		s.logger.Error("Failed to enumerate tenants for payment sweep", zap.Error(err))
		return
	}

	for _, tenantID := range tenants {
		result, err := s.sweeper.ProcessAutomatedPayments(runCtx, tenantID, false)
		if err != nil {
			s.logger.Error("Payment sweep failed",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
			continue
		}
		s.logger.Info("Payment sweep completed",
			zap.String("tenant_id", tenantID.String()),
			zap.Int("evaluated", result.Evaluated),
			zap.Int("accepted", result.Accepted),
			zap.Int("skipped", len(result.Skipped)),
		)
	}
}

// TriggerPenaltyRun triggers a manual penalty accrual run. The run
// detaches from the triggering request but stays bound to the scheduler
// lifetime, so Stop cancels and awaits it.
func (s *SettlementCronScheduler) TriggerPenaltyRun(ctx context.Context) error {
	return s.trigger(s.runPenaltyAccrual)
}

// TriggerWindowRun triggers a manual window settlement check
func (s *SettlementCronScheduler) TriggerWindowRun(ctx context.Context) error {
	return s.trigger(s.runWindowSettlements)
}

// TriggerPaymentSweep triggers a manual payment sweep
func (s *SettlementCronScheduler) TriggerPaymentSweep(ctx context.Context) error {
	return s.trigger(s.runPaymentSweep)
}

// trigger runs a job on the scheduler's own context and waitgroup,
// giving manual runs the same lifecycle as scheduled ones
func (s *SettlementCronScheduler) trigger(job func(ctx context.Context, now time.Time)) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	runCtx := s.runCtx
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		job(runCtx, time.Now())
	}()
	return nil
}

// GetStatus returns the current status of the scheduler
func (s *SettlementCronScheduler) GetStatus() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	return map[string]any{
		"enabled":              s.config.Enabled,
		"is_running":           s.isRunning,
		"penalty_hour":         s.config.PenaltyHour,
		"settlement_hour":      s.config.SettlementHour,
		"sweep_interval_hours": s.config.SweepIntervalHours,
		"last_penalty_run_at":  s.lastPenaltyRunAt,
		"last_window_run_at":   s.lastWindowRunAt,
		"last_sweep_at":        s.lastSweepAt,
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
