package models

import (
	"time"

	"github.com/fuelerp/backend/internal/domain/lending"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoanModel is the persistence model for the Loan aggregate
type LoanModel struct {
	TenantAggregateModel
	Reference          string                       `gorm:"type:varchar(50);not null;uniqueIndex:idx_loan_tenant_ref,priority:2"`
	StationID          uuid.UUID                    `gorm:"type:uuid;not null;index"`
	DealerID           uuid.UUID                    `gorm:"type:uuid;not null;index"`
	Principal          decimal.Decimal              `gorm:"type:decimal(18,4);not null"`
	InterestRate       decimal.Decimal              `gorm:"type:decimal(18,4);not null"`
	TenorMonths        int                          `gorm:"not null"`
	Frequency          lending.RepaymentFrequency   `gorm:"type:varchar(20);not null"`
	StartDate          time.Time                    `gorm:"not null"`
	MaturityDate       time.Time                    `gorm:"not null"`
	Status             lending.LoanStatus           `gorm:"type:varchar(20);not null;index"`
	OutstandingBalance decimal.Decimal              `gorm:"type:decimal(18,4);not null;default:0"`
	TotalPaid          decimal.Decimal              `gorm:"type:decimal(18,4);not null;default:0"`
	TotalInterestPaid  decimal.Decimal              `gorm:"type:decimal(18,4);not null;default:0"`
	InstallmentAmount  decimal.Decimal              `gorm:"type:decimal(18,4);not null;default:0"`
	PenaltyAmount      decimal.Decimal              `gorm:"type:decimal(18,4);not null;default:0"`
	PenaltyRate        decimal.Decimal              `gorm:"type:decimal(18,4);not null;default:0"`
	GracePeriodDays    int                          `gorm:"not null;default:0"`
	DaysPastDue        int                          `gorm:"not null;default:0"`
	NextPaymentDate    *time.Time                   `gorm:"index"`
	LastPaymentDate    *time.Time
	Schedule           lending.AmortizationSchedule `gorm:"type:jsonb"`
	CollateralDetails  string                       `gorm:"type:text"`
	GuarantorDetails   string                       `gorm:"type:text"`
	Notes              string                       `gorm:"type:text"`
	OriginalLoanID     *uuid.UUID                   `gorm:"type:uuid"`
	ApprovedBy         *uuid.UUID                   `gorm:"type:uuid"`
	ApprovedAt         *time.Time
	CompletedAt        *time.Time
}

// TableName returns the table name for GORM
func (LoanModel) TableName() string {
	return "loans"
}

// ToDomain converts the persistence model to a domain Loan
func (m *LoanModel) ToDomain() *lending.Loan {
	loan := &lending.Loan{
		Reference:          m.Reference,
		StationID:          m.StationID,
		DealerID:           m.DealerID,
		Principal:          m.Principal,
		InterestRate:       m.InterestRate,
		TenorMonths:        m.TenorMonths,
		Frequency:          m.Frequency,
		StartDate:          m.StartDate,
		MaturityDate:       m.MaturityDate,
		Status:             m.Status,
		OutstandingBalance: m.OutstandingBalance,
		TotalPaid:          m.TotalPaid,
		TotalInterestPaid:  m.TotalInterestPaid,
		InstallmentAmount:  m.InstallmentAmount,
		PenaltyAmount:      m.PenaltyAmount,
		PenaltyRate:        m.PenaltyRate,
		GracePeriodDays:    m.GracePeriodDays,
		DaysPastDue:        m.DaysPastDue,
		NextPaymentDate:    m.NextPaymentDate,
		LastPaymentDate:    m.LastPaymentDate,
		Schedule:           m.Schedule,
		CollateralDetails:  m.CollateralDetails,
		GuarantorDetails:   m.GuarantorDetails,
		Notes:              m.Notes,
		OriginalLoanID:     m.OriginalLoanID,
		ApprovedBy:         m.ApprovedBy,
		ApprovedAt:         m.ApprovedAt,
		CompletedAt:        m.CompletedAt,
	}
	m.PopulateTenantAggregateRoot(&loan.TenantAggregateRoot)
	return loan
}

// FromDomain populates the persistence model from a domain Loan
func (m *LoanModel) FromDomain(loan *lending.Loan) {
	m.FromDomainTenantAggregateRoot(loan.TenantAggregateRoot)
	m.Reference = loan.Reference
	m.StationID = loan.StationID
	m.DealerID = loan.DealerID
	m.Principal = loan.Principal
	m.InterestRate = loan.InterestRate
	m.TenorMonths = loan.TenorMonths
	m.Frequency = loan.Frequency
	m.StartDate = loan.StartDate
	m.MaturityDate = loan.MaturityDate
	m.Status = loan.Status
	m.OutstandingBalance = loan.OutstandingBalance
	m.TotalPaid = loan.TotalPaid
	m.TotalInterestPaid = loan.TotalInterestPaid
	m.InstallmentAmount = loan.InstallmentAmount
	m.PenaltyAmount = loan.PenaltyAmount
	m.PenaltyRate = loan.PenaltyRate
	m.GracePeriodDays = loan.GracePeriodDays
	m.DaysPastDue = loan.DaysPastDue
	m.NextPaymentDate = loan.NextPaymentDate
	m.LastPaymentDate = loan.LastPaymentDate
	m.Schedule = loan.Schedule
	m.CollateralDetails = loan.CollateralDetails
	m.GuarantorDetails = loan.GuarantorDetails
	m.Notes = loan.Notes
	m.OriginalLoanID = loan.OriginalLoanID
	m.ApprovedBy = loan.ApprovedBy
	m.ApprovedAt = loan.ApprovedAt
	m.CompletedAt = loan.CompletedAt
}

// LoanModelFromDomain creates a persistence model from a domain Loan
func LoanModelFromDomain(loan *lending.Loan) *LoanModel {
	m := &LoanModel{}
	m.FromDomain(loan)
	return m
}

// LoanPaymentModel is the persistence model for one immutable loan
// repayment record
type LoanPaymentModel struct {
	BaseModel
	TenantID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	LoanID           uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount           decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	PenaltyPortion   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	InterestPortion  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	PrincipalPortion decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	BalanceAfter     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	PaymentDate      time.Time       `gorm:"not null;index"`
	Method           string          `gorm:"type:varchar(30)"`
	PaymentReference string          `gorm:"type:varchar(100)"`
	ProcessedBy      *uuid.UUID      `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (LoanPaymentModel) TableName() string {
	return "loan_payments"
}

// ToDomain converts the persistence model to a domain LoanPayment
func (m *LoanPaymentModel) ToDomain() *lending.LoanPayment {
	return &lending.LoanPayment{
		BaseEntity:       m.ToDomainBaseEntity(),
		TenantID:         m.TenantID,
		LoanID:           m.LoanID,
		Amount:           m.Amount,
		PenaltyPortion:   m.PenaltyPortion,
		InterestPortion:  m.InterestPortion,
		PrincipalPortion: m.PrincipalPortion,
		BalanceAfter:     m.BalanceAfter,
		PaymentDate:      m.PaymentDate,
		Method:           m.Method,
		PaymentReference: m.PaymentReference,
		ProcessedBy:      m.ProcessedBy,
	}
}

// FromDomain populates the persistence model from a domain LoanPayment
func (m *LoanPaymentModel) FromDomain(p *lending.LoanPayment) {
	m.FromDomainBaseEntity(p.BaseEntity)
	m.TenantID = p.TenantID
	m.LoanID = p.LoanID
	m.Amount = p.Amount
	m.PenaltyPortion = p.PenaltyPortion
	m.InterestPortion = p.InterestPortion
	m.PrincipalPortion = p.PrincipalPortion
	m.BalanceAfter = p.BalanceAfter
	m.PaymentDate = p.PaymentDate
	m.Method = p.Method
	m.PaymentReference = p.PaymentReference
	m.ProcessedBy = p.ProcessedBy
}

// LoanPaymentModelFromDomain creates a persistence model from a domain LoanPayment
func LoanPaymentModelFromDomain(p *lending.LoanPayment) *LoanPaymentModel {
	m := &LoanPaymentModel{}
	m.FromDomain(p)
	return m
}
