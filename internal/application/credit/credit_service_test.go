package credit

import (
	"context"
	"testing"
	"time"

	"github.com/fuelerp/backend/internal/domain/accrual"
	"github.com/fuelerp/backend/internal/domain/credit"
	"github.com/fuelerp/backend/internal/domain/lending"
	"github.com/fuelerp/backend/internal/domain/settlement"
	"github.com/fuelerp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockAccrualRepo struct {
	mock.Mock
}

func (m *mockAccrualRepo) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*accrual.MarginAccrualRecord, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accrual.MarginAccrualRecord), args.Error(1)
}

func (m *mockAccrualRepo) FindByStationDate(ctx context.Context, tenantID, stationID uuid.UUID, date time.Time, windowID string) ([]*accrual.MarginAccrualRecord, error) {
	args := m.Called(ctx, tenantID, stationID, date, windowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*accrual.MarginAccrualRecord), args.Error(1)
}

func (m *mockAccrualRepo) FindByStationDateRange(ctx context.Context, tenantID, stationID uuid.UUID, from, to time.Time) ([]*accrual.MarginAccrualRecord, error) {
	args := m.Called(ctx, tenantID, stationID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*accrual.MarginAccrualRecord), args.Error(1)
}

func (m *mockAccrualRepo) FindAccruedForWindow(ctx context.Context, tenantID, stationID uuid.UUID, from, to time.Time) ([]*accrual.MarginAccrualRecord, error) {
	args := m.Called(ctx, tenantID, stationID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*accrual.MarginAccrualRecord), args.Error(1)
}

func (m *mockAccrualRepo) ReplaceForStationDate(ctx context.Context, tenantID, stationID uuid.UUID, date time.Time, windowID string, records []*accrual.MarginAccrualRecord) error {
	args := m.Called(ctx, tenantID, stationID, date, windowID, records)
	return args.Error(0)
}

func (m *mockAccrualRepo) FindStationsWithAccruals(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, tenantID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *mockAccrualRepo) Save(ctx context.Context, record *accrual.MarginAccrualRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *mockAccrualRepo) HasPostedForStationDate(ctx context.Context, tenantID, stationID uuid.UUID, date time.Time, windowID string) (bool, error) {
	args := m.Called(ctx, tenantID, stationID, date, windowID)
	return args.Bool(0), args.Error(1)
}

type mockSettlementRepo struct {
	mock.Mock
}

func (m *mockSettlementRepo) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*settlement.Settlement, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settlement.Settlement), args.Error(1)
}

func (m *mockSettlementRepo) FindByStationWindow(ctx context.Context, tenantID, stationID uuid.UUID, windowID string) (*settlement.Settlement, error) {
	args := m.Called(ctx, tenantID, stationID, windowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settlement.Settlement), args.Error(1)
}

func (m *mockSettlementRepo) FindByStatus(ctx context.Context, tenantID uuid.UUID, status settlement.SettlementStatus) ([]*settlement.Settlement, error) {
	args := m.Called(ctx, tenantID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*settlement.Settlement), args.Error(1)
}

func (m *mockSettlementRepo) FindByStation(ctx context.Context, tenantID, stationID uuid.UUID) ([]*settlement.Settlement, error) {
	args := m.Called(ctx, tenantID, stationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*settlement.Settlement), args.Error(1)
}

func (m *mockSettlementRepo) Save(ctx context.Context, s *settlement.Settlement) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *mockSettlementRepo) SaveWithAccrualPosting(ctx context.Context, s *settlement.Settlement, accrualIDs []uuid.UUID) error {
	args := m.Called(ctx, s, accrualIDs)
	return args.Error(0)
}

func (m *mockSettlementRepo) SaveWithLoanSweep(ctx context.Context, s *settlement.Settlement, loans []*lending.Loan, payments []*lending.LoanPayment) error {
	args := m.Called(ctx, s, loans, payments)
	return args.Error(0)
}

type mockLoanRepo struct {
	mock.Mock
}

func (m *mockLoanRepo) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*lending.Loan, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lending.Loan), args.Error(1)
}

func (m *mockLoanRepo) FindByReference(ctx context.Context, tenantID uuid.UUID, reference string) (*lending.Loan, error) {
	args := m.Called(ctx, tenantID, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lending.Loan), args.Error(1)
}

func (m *mockLoanRepo) FindActiveByStation(ctx context.Context, tenantID, stationID uuid.UUID) ([]*lending.Loan, error) {
	args := m.Called(ctx, tenantID, stationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*lending.Loan), args.Error(1)
}

func (m *mockLoanRepo) FindByStation(ctx context.Context, tenantID, stationID uuid.UUID) ([]*lending.Loan, error) {
	args := m.Called(ctx, tenantID, stationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*lending.Loan), args.Error(1)
}

func (m *mockLoanRepo) FindActiveDueOnOrBefore(ctx context.Context, date time.Time) ([]*lending.Loan, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*lending.Loan), args.Error(1)
}

func (m *mockLoanRepo) CountActiveByStation(ctx context.Context, tenantID, stationID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID, stationID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockLoanRepo) Save(ctx context.Context, loan *lending.Loan) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

func (m *mockLoanRepo) SaveWithPayment(ctx context.Context, loan *lending.Loan, payment *lending.LoanPayment) error {
	args := m.Called(ctx, loan, payment)
	return args.Error(0)
}

func (m *mockLoanRepo) SaveRestructure(ctx context.Context, original, successor *lending.Loan) error {
	args := m.Called(ctx, original, successor)
	return args.Error(0)
}

func (m *mockLoanRepo) FindPaymentsByLoan(ctx context.Context, tenantID, loanID uuid.UUID) ([]*lending.LoanPayment, error) {
	args := m.Called(ctx, tenantID, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*lending.LoanPayment), args.Error(1)
}

func monthlyAccruals(t *testing.T, tenantID, stationID uuid.UUID, months int, litresPerMonth int64) []*accrual.MarginAccrualRecord {
	records := make([]*accrual.MarginAccrualRecord, 0, months)
	now := time.Now()
	for i := months; i > 0; i-- {
		date := now.AddDate(0, -i, 0)
		record, err := accrual.NewMarginAccrualRecord(
			tenantID, stationID, "PMS", date, "W",
			decimal.NewFromInt(litresPerMonth), decimal.NewFromFloat(0.40), decimal.NewFromFloat(179.50), nil,
		)
		require.NoError(t, err)
		records = append(records, record)
	}
	return records
}

func TestAssessStation(t *testing.T) {
	tenantID := uuid.New()
	stationID := uuid.New()

	t.Run("should assess a station from its history", func(t *testing.T) {
		accrualRepo := new(mockAccrualRepo)
		settlementRepo := new(mockSettlementRepo)
		loanRepo := new(mockLoanRepo)
		service := NewCreditService(accrualRepo, settlementRepo, loanRepo, zap.NewNop())

		loan, err := lending.NewLoan(
			tenantID, stationID, uuid.New(), "LOAN-CS-1",
			decimal.NewFromInt(12000), decimal.NewFromInt(24), 12, lending.FrequencyMonthly,
			time.Now().AddDate(0, -1, 5), decimal.NewFromFloat(0.05), 7, "", "", "",
		)
		require.NoError(t, err)
		require.NoError(t, loan.Approve(uuid.New()))

		paid, err := settlement.NewSettlement(tenantID, "SETT-CS-1", settlement.Calculation{
			StationID:   stationID,
			WindowID:    "2025-W1",
			GrossMargin: decimal.NewFromInt(24000),
		})
		require.NoError(t, err)
		require.NoError(t, paid.Approve(uuid.New()))
		require.NoError(t, paid.MarkPaid("TXN-1", "BANK_TRANSFER", nil))

		disputed, err := settlement.NewSettlement(tenantID, "SETT-CS-2", settlement.Calculation{
			StationID:   stationID,
			WindowID:    "2025-W2",
			GrossMargin: decimal.NewFromInt(22000),
		})
		require.NoError(t, err)
		require.NoError(t, disputed.Dispute("Meter variance"))

		accrualRepo.On("FindByStationDateRange", mock.Anything, tenantID, stationID, mock.Anything, mock.Anything).
			Return(monthlyAccruals(t, tenantID, stationID, 8, 60000), nil)
		loanRepo.On("FindByStation", mock.Anything, tenantID, stationID).
			Return([]*lending.Loan{loan}, nil)
		loanRepo.On("FindPaymentsByLoan", mock.Anything, tenantID, loan.ID).
			Return([]*lending.LoanPayment{}, nil)
		settlementRepo.On("FindByStation", mock.Anything, tenantID, stationID).
			Return([]*settlement.Settlement{paid, disputed}, nil)

		assessment, err := service.AssessStation(context.Background(), tenantID, stationID, AssessRequest{})

		require.NoError(t, err)
		assert.GreaterOrEqual(t, assessment.Credit.Score, 0)
		assert.LessOrEqual(t, assessment.Credit.Score, 1000)
		assert.Equal(t, 8, assessment.Input.OperatingMonths)
		// steady volumes carry no volatility
		assert.InDelta(t, 0.0, assessment.Input.VolumeVolatility, 0.001)
		assert.Equal(t, 2, assessment.Portfolio.TotalSettlements)
		assert.Equal(t, 1, assessment.Portfolio.DisputedSettlements)
		assert.LessOrEqual(t, assessment.Portfolio.ProbabilityOfDefault, 95.0)
		assert.True(t, assessment.Credit.RecommendedLimit.IsPositive())
	})

	t.Run("should flag a high dispute rate", func(t *testing.T) {
		snapshot := credit.PortfolioSnapshot{
			VolumeTrend:              credit.VolumeTrendStable,
			DebtServiceCoverageRatio: 2.0,
			LiquidityRatio:           2.0,
			PaymentReliability:       95,
			TotalSettlements:         10,
			DisputedSettlements:      3,
			AnnualMarginEarned:       decimal.NewFromInt(120000),
		}

		assessment := credit.AssessPortfolioRisk(snapshot)

		assert.NotEmpty(t, assessment.RiskFlags)
	})

	t.Run("should reject a station without margin history", func(t *testing.T) {
		accrualRepo := new(mockAccrualRepo)
		service := NewCreditService(accrualRepo, new(mockSettlementRepo), new(mockLoanRepo), zap.NewNop())

		accrualRepo.On("FindByStationDateRange", mock.Anything, tenantID, stationID, mock.Anything, mock.Anything).
			Return([]*accrual.MarginAccrualRecord{}, nil)

		_, err := service.AssessStation(context.Background(), tenantID, stationID, AssessRequest{})

		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "NOT_FOUND", domainErr.Code)
	})
}
