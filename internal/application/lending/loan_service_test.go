package lending

import (
	"context"
	"testing"
	"time"

	"github.com/fuelerp/backend/internal/domain/lending"
	"github.com/fuelerp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

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

func newLoanService(repo *mockLoanRepo) *LoanService {
	return NewLoanService(repo, nil, zap.NewNop(), DefaultLoanServiceConfig())
}

func validCreateRequest(stationID uuid.UUID) CreateLoanRequest {
	return CreateLoanRequest{
		StationID:         stationID,
		DealerID:          uuid.New(),
		Principal:         decimal.NewFromInt(12000),
		AnnualRatePercent: decimal.NewFromInt(24),
		TenorMonths:       12,
		Frequency:         lending.FrequencyMonthly,
	}
}

func activeTestLoan(t *testing.T, tenantID, stationID uuid.UUID, principal int64, startDate time.Time) *lending.Loan {
	loan, err := lending.NewLoan(
		tenantID, stationID, uuid.New(), "LOAN-TEST-1",
		decimal.NewFromInt(principal), decimal.NewFromInt(24), 12, lending.FrequencyMonthly,
		startDate, decimal.NewFromFloat(0.05), 7, "", "", "",
	)
	require.NoError(t, err)
	require.NoError(t, loan.Approve(uuid.New()))
	loan.ClearDomainEvents()
	return loan
}

func TestCreateLoan(t *testing.T) {
	tenantID := uuid.New()
	stationID := uuid.New()

	t.Run("should create a pending loan with a generated schedule", func(t *testing.T) {
		repo := new(mockLoanRepo)
		service := newLoanService(repo)

		repo.On("CountActiveByStation", mock.Anything, tenantID, stationID).Return(int64(1), nil)
		repo.On("Save", mock.Anything, mock.AnythingOfType("*lending.Loan")).Return(nil)

		loan, err := service.CreateLoan(context.Background(), tenantID, validCreateRequest(stationID))

		require.NoError(t, err)
		assert.Equal(t, lending.LoanStatusPendingApproval, loan.Status)
		assert.Len(t, loan.Schedule, 12)
		assert.Contains(t, loan.Reference, "LOAN-")
		assert.InDelta(t, 1135.0, loan.InstallmentAmount.InexactFloat64(), 0.5)
		repo.AssertExpectations(t)
	})

	t.Run("should reject a fourth active loan for the station", func(t *testing.T) {
		repo := new(mockLoanRepo)
		service := newLoanService(repo)

		repo.On("CountActiveByStation", mock.Anything, tenantID, stationID).Return(int64(3), nil)

		_, err := service.CreateLoan(context.Background(), tenantID, validCreateRequest(stationID))

		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "VALIDATION_FAILURE", domainErr.Code)
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("should reject an out-of-range principal", func(t *testing.T) {
		repo := new(mockLoanRepo)
		service := newLoanService(repo)

		repo.On("CountActiveByStation", mock.Anything, tenantID, stationID).Return(int64(0), nil)

		req := validCreateRequest(stationID)
		req.Principal = decimal.NewFromInt(500)

		_, err := service.CreateLoan(context.Background(), tenantID, req)

		require.Error(t, err)
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})
}

func TestApproveLoan(t *testing.T) {
	tenantID := uuid.New()
	stationID := uuid.New()

	t.Run("should activate a pending loan and set its next payment date", func(t *testing.T) {
		repo := new(mockLoanRepo)
		service := newLoanService(repo)

		loan, err := lending.NewLoan(
			tenantID, stationID, uuid.New(), "LOAN-TEST-2",
			decimal.NewFromInt(12000), decimal.NewFromInt(24), 12, lending.FrequencyMonthly,
			time.Now(), decimal.NewFromFloat(0.05), 7, "", "", "",
		)
		require.NoError(t, err)

		repo.On("FindByIDForTenant", mock.Anything, tenantID, loan.ID).Return(loan, nil)
		repo.On("Save", mock.Anything, loan).Return(nil)

		approved, err := service.ApproveLoan(context.Background(), tenantID, loan.ID, uuid.New())

		require.NoError(t, err)
		assert.Equal(t, lending.LoanStatusActive, approved.Status)
		require.NotNil(t, approved.NextPaymentDate)
	})

	t.Run("should return not found for an unknown loan", func(t *testing.T) {
		repo := new(mockLoanRepo)
		service := newLoanService(repo)

		missing := uuid.New()
		repo.On("FindByIDForTenant", mock.Anything, tenantID, missing).Return(nil, nil)

		_, err := service.ApproveLoan(context.Background(), tenantID, missing, uuid.New())

		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "NOT_FOUND", domainErr.Code)
	})
}

func TestProcessLoanPayment(t *testing.T) {
	tenantID := uuid.New()
	stationID := uuid.New()

	t.Run("should allocate penalty then interest then principal", func(t *testing.T) {
		repo := new(mockLoanRepo)
		service := newLoanService(repo)

		loan := activeTestLoan(t, tenantID, stationID, 12000, time.Now().AddDate(0, -1, 0))
		repo.On("FindByIDForTenant", mock.Anything, tenantID, loan.ID).Return(loan, nil)
		repo.On("SaveWithPayment", mock.Anything, loan, mock.AnythingOfType("*lending.LoanPayment")).Return(nil)

		_, payment, err := service.ProcessPayment(context.Background(), tenantID, loan.ID, ProcessPaymentRequest{
			Amount: decimal.NewFromInt(1200),
			Method: "BANK_TRANSFER",
		})

		require.NoError(t, err)
		// monthly interest on 12000 at 24% is 240
		assert.True(t, payment.InterestPortion.Equal(decimal.NewFromInt(240)))
		assert.True(t, payment.PrincipalPortion.Equal(decimal.NewFromInt(960)))
		assert.True(t, loan.OutstandingBalance.Equal(decimal.NewFromInt(11040)))
		repo.AssertExpectations(t)
	})

	t.Run("should complete the loan when the balance reaches zero", func(t *testing.T) {
		repo := new(mockLoanRepo)
		service := newLoanService(repo)

		loan := activeTestLoan(t, tenantID, stationID, 1000, time.Now().AddDate(0, -1, 0))
		repo.On("FindByIDForTenant", mock.Anything, tenantID, loan.ID).Return(loan, nil)
		repo.On("SaveWithPayment", mock.Anything, loan, mock.Anything).Return(nil)

		// 1000 principal + 20 monthly interest
		_, _, err := service.ProcessPayment(context.Background(), tenantID, loan.ID, ProcessPaymentRequest{
			Amount: decimal.NewFromInt(1020),
		})

		require.NoError(t, err)
		assert.Equal(t, lending.LoanStatusCompleted, loan.Status)
		assert.True(t, loan.OutstandingBalance.IsZero())
		assert.Nil(t, loan.NextPaymentDate)
	})

	t.Run("should reject a payment on a pending loan", func(t *testing.T) {
		repo := new(mockLoanRepo)
		service := newLoanService(repo)

		loan, err := lending.NewLoan(
			tenantID, stationID, uuid.New(), "LOAN-TEST-3",
			decimal.NewFromInt(5000), decimal.NewFromInt(12), 6, lending.FrequencyMonthly,
			time.Now(), decimal.NewFromFloat(0.05), 7, "", "", "",
		)
		require.NoError(t, err)

		repo.On("FindByIDForTenant", mock.Anything, tenantID, loan.ID).Return(loan, nil)

		_, _, err = service.ProcessPayment(context.Background(), tenantID, loan.ID, ProcessPaymentRequest{
			Amount: decimal.NewFromInt(100),
		})

		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_STATE", domainErr.Code)
	})
}

func TestRestructureLoan(t *testing.T) {
	tenantID := uuid.New()
	stationID := uuid.New()

	t.Run("should close the original and open an active successor", func(t *testing.T) {
		repo := new(mockLoanRepo)
		service := newLoanService(repo)

		original := activeTestLoan(t, tenantID, stationID, 12000, time.Now().AddDate(0, -3, 0))
		repo.On("FindByIDForTenant", mock.Anything, tenantID, original.ID).Return(original, nil)
		repo.On("SaveRestructure", mock.Anything, original, mock.AnythingOfType("*lending.Loan")).Return(nil)

		newTenor := 24
		successor, err := service.RestructureLoan(context.Background(), tenantID, original.ID, RestructureLoanRequest{
			NewTenorMonths: &newTenor,
			Reason:         "Cash flow relief",
		})

		require.NoError(t, err)
		assert.Equal(t, lending.LoanStatusRestructured, original.Status)
		assert.Equal(t, lending.LoanStatusActive, successor.Status)
		assert.Equal(t, 24, successor.TenorMonths)
		assert.Contains(t, successor.Reference, "RESTR-")
		// successor principal defaults to the original's outstanding balance
		assert.True(t, successor.Principal.Equal(original.OutstandingBalance))
		repo.AssertExpectations(t)
	})
}

func TestAccruePenalties(t *testing.T) {
	tenantID := uuid.New()
	stationID := uuid.New()

	t.Run("should penalize overdue loans and skip those within grace", func(t *testing.T) {
		repo := new(mockLoanRepo)
		service := newLoanService(repo)

		asOf := time.Now()
		overdue := activeTestLoan(t, tenantID, stationID, 12000, asOf.AddDate(0, -3, 0))
		withinGrace := activeTestLoan(t, tenantID, stationID, 12000, asOf.AddDate(0, -1, -2))

		repo.On("FindActiveDueOnOrBefore", mock.Anything, asOf).
			Return([]*lending.Loan{overdue, withinGrace}, nil)
		repo.On("Save", mock.Anything, overdue).Return(nil)

		result, err := service.AccruePenalties(context.Background(), asOf)

		require.NoError(t, err)
		assert.Equal(t, 2, result.LoansChecked)
		assert.Equal(t, 1, result.LoansPenalized)
		assert.Equal(t, 0, result.Failed)
		assert.True(t, result.TotalAccrued.IsPositive())
		assert.True(t, overdue.PenaltyAmount.IsPositive())
		assert.True(t, withinGrace.PenaltyAmount.IsZero())
		repo.AssertNotCalled(t, "Save", mock.Anything, withinGrace)
	})
}

func TestGetStationObligation(t *testing.T) {
	tenantID := uuid.New()
	stationID := uuid.New()

	t.Run("should sum monthly obligations across active loans", func(t *testing.T) {
		repo := new(mockLoanRepo)
		service := newLoanService(repo)

		first := activeTestLoan(t, tenantID, stationID, 12000, time.Now().AddDate(0, -2, 0))
		second := activeTestLoan(t, tenantID, stationID, 24000, time.Now().AddDate(0, -1, 0))

		repo.On("FindActiveByStation", mock.Anything, tenantID, stationID).
			Return([]*lending.Loan{first, second}, nil)

		obligation, err := service.GetStationObligation(context.Background(), tenantID, stationID)

		require.NoError(t, err)
		assert.Equal(t, 2, obligation.ActiveLoans)
		assert.True(t, obligation.OutstandingBalance.Equal(decimal.NewFromInt(36000)))
		expected := first.MonthlyObligation().Add(second.MonthlyObligation()).Round(2)
		assert.True(t, obligation.MonthlyObligation.Equal(expected))
	})
}
