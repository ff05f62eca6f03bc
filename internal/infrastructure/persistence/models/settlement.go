package models

import (
	"time"

	"github.com/fuelerp/backend/internal/domain/settlement"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SettlementModel is the persistence model for the Settlement aggregate.
// (tenant, station, window) is the natural key.
type SettlementModel struct {
	TenantAggregateModel
	Reference        string                           `gorm:"type:varchar(50);not null;uniqueIndex:idx_settlement_tenant_ref,priority:2"`
	StationID        uuid.UUID                        `gorm:"type:uuid;not null;uniqueIndex:idx_settlement_station_window,priority:2"`
	WindowID         string                           `gorm:"type:varchar(50);not null;uniqueIndex:idx_settlement_station_window,priority:3"`
	SettlementDate   time.Time                        `gorm:"not null"`
	PeriodStart      time.Time                        `gorm:"not null"`
	PeriodEnd        time.Time                        `gorm:"not null"`
	TotalLitresSold  decimal.Decimal                  `gorm:"type:decimal(18,4);not null;default:0"`
	GrossMargin      decimal.Decimal                  `gorm:"type:decimal(18,4);not null;default:0"`
	LoanDeduction    decimal.Decimal                  `gorm:"type:decimal(18,4);not null;default:0"`
	OtherDeduction   decimal.Decimal                  `gorm:"type:decimal(18,4);not null;default:0"`
	NetPayable       decimal.Decimal                  `gorm:"type:decimal(18,4);not null;default:0"`
	Status           settlement.SettlementStatus      `gorm:"type:varchar(20);not null;index"`
	Sales            settlement.ProductSalesBreakdown `gorm:"type:jsonb"`
	LoanLines        settlement.LoanDeductionLines    `gorm:"type:jsonb"`
	OtherBreakdown   settlement.OtherDeductions       `gorm:"type:jsonb"`
	ApprovedBy       *uuid.UUID                       `gorm:"type:uuid"`
	ApprovedAt       *time.Time
	PaidAt           *time.Time
	PaidBy           *uuid.UUID `gorm:"type:uuid"`
	PaymentReference string     `gorm:"type:varchar(100)"`
	PaymentMethod    string     `gorm:"type:varchar(30)"`
	DisputedAt       *time.Time
	DisputeReason    string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (SettlementModel) TableName() string {
	return "settlements"
}

// ToDomain converts the persistence model to a domain Settlement
func (m *SettlementModel) ToDomain() *settlement.Settlement {
	s := &settlement.Settlement{
		Reference:        m.Reference,
		StationID:        m.StationID,
		WindowID:         m.WindowID,
		SettlementDate:   m.SettlementDate,
		PeriodStart:      m.PeriodStart,
		PeriodEnd:        m.PeriodEnd,
		TotalLitresSold:  m.TotalLitresSold,
		GrossMargin:      m.GrossMargin,
		LoanDeduction:    m.LoanDeduction,
		OtherDeduction:   m.OtherDeduction,
		NetPayable:       m.NetPayable,
		Status:           m.Status,
		Sales:            m.Sales,
		LoanLines:        m.LoanLines,
		OtherBreakdown:   m.OtherBreakdown,
		ApprovedBy:       m.ApprovedBy,
		ApprovedAt:       m.ApprovedAt,
		PaidAt:           m.PaidAt,
		PaidBy:           m.PaidBy,
		PaymentReference: m.PaymentReference,
		PaymentMethod:    m.PaymentMethod,
		DisputedAt:       m.DisputedAt,
		DisputeReason:    m.DisputeReason,
	}
	m.PopulateTenantAggregateRoot(&s.TenantAggregateRoot)
	return s
}

// FromDomain populates the persistence model from a domain Settlement
func (m *SettlementModel) FromDomain(s *settlement.Settlement) {
	m.FromDomainTenantAggregateRoot(s.TenantAggregateRoot)
	m.Reference = s.Reference
	m.StationID = s.StationID
	m.WindowID = s.WindowID
	m.SettlementDate = s.SettlementDate
	m.PeriodStart = s.PeriodStart
	m.PeriodEnd = s.PeriodEnd
	m.TotalLitresSold = s.TotalLitresSold
	m.GrossMargin = s.GrossMargin
	m.LoanDeduction = s.LoanDeduction
	m.OtherDeduction = s.OtherDeduction
	m.NetPayable = s.NetPayable
	m.Status = s.Status
	m.Sales = s.Sales
	m.LoanLines = s.LoanLines
	m.OtherBreakdown = s.OtherBreakdown
	m.ApprovedBy = s.ApprovedBy
	m.ApprovedAt = s.ApprovedAt
	m.PaidAt = s.PaidAt
	m.PaidBy = s.PaidBy
	m.PaymentReference = s.PaymentReference
	m.PaymentMethod = s.PaymentMethod
	m.DisputedAt = s.DisputedAt
	m.DisputeReason = s.DisputeReason
}

// SettlementModelFromDomain creates a persistence model from a domain Settlement
func SettlementModelFromDomain(s *settlement.Settlement) *SettlementModel {
	m := &SettlementModel{}
	m.FromDomain(s)
	return m
}
