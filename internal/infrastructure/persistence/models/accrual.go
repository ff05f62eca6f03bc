package models

import (
	"time"

	"github.com/fuelerp/backend/internal/domain/accrual"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MarginAccrualModel is the persistence model for MarginAccrualRecord.
// One row per (station, product, day, window).
type MarginAccrualModel struct {
	TenantAggregateModel
	StationID        uuid.UUID                  `gorm:"type:uuid;not null;uniqueIndex:idx_accrual_station_day,priority:2;index:idx_accrual_station_range,priority:1"`
	Product          string                     `gorm:"type:varchar(20);not null;uniqueIndex:idx_accrual_station_day,priority:4"`
	AccrualDate      time.Time                  `gorm:"not null;uniqueIndex:idx_accrual_station_day,priority:3;index:idx_accrual_station_range,priority:2"`
	WindowID         string                     `gorm:"type:varchar(50);not null;uniqueIndex:idx_accrual_station_day,priority:5"`
	LitresSold       decimal.Decimal            `gorm:"type:decimal(18,4);not null"`
	MarginRate       decimal.Decimal            `gorm:"type:decimal(18,4);not null"`
	MarginAmount     decimal.Decimal            `gorm:"type:decimal(18,4);not null"`
	AverageExPump    decimal.Decimal            `gorm:"type:decimal(18,4);not null;default:0"`
	CumulativeLitres decimal.Decimal            `gorm:"type:decimal(18,4);not null;default:0"`
	CumulativeMargin decimal.Decimal            `gorm:"type:decimal(18,4);not null;default:0"`
	Status           accrual.AccrualStatus      `gorm:"type:varchar(20);not null;index"`
	Details          accrual.CalculationDetails `gorm:"type:jsonb"`
	PostedAt         *time.Time
}

// TableName returns the table name for GORM
func (MarginAccrualModel) TableName() string {
	return "margin_accruals"
}

// ToDomain converts the persistence model to a domain MarginAccrualRecord
func (m *MarginAccrualModel) ToDomain() *accrual.MarginAccrualRecord {
	record := &accrual.MarginAccrualRecord{
		StationID:        m.StationID,
		Product:          m.Product,
		AccrualDate:      m.AccrualDate,
		WindowID:         m.WindowID,
		LitresSold:       m.LitresSold,
		MarginRate:       m.MarginRate,
		MarginAmount:     m.MarginAmount,
		AverageExPump:    m.AverageExPump,
		CumulativeLitres: m.CumulativeLitres,
		CumulativeMargin: m.CumulativeMargin,
		Status:           m.Status,
		Details:          m.Details,
		PostedAt:         m.PostedAt,
	}
	m.PopulateTenantAggregateRoot(&record.TenantAggregateRoot)
	return record
}

// FromDomain populates the persistence model from a domain MarginAccrualRecord
func (m *MarginAccrualModel) FromDomain(r *accrual.MarginAccrualRecord) {
	m.FromDomainTenantAggregateRoot(r.TenantAggregateRoot)
	m.StationID = r.StationID
	m.Product = r.Product
	m.AccrualDate = r.AccrualDate
	m.WindowID = r.WindowID
	m.LitresSold = r.LitresSold
	m.MarginRate = r.MarginRate
	m.MarginAmount = r.MarginAmount
	m.AverageExPump = r.AverageExPump
	m.CumulativeLitres = r.CumulativeLitres
	m.CumulativeMargin = r.CumulativeMargin
	m.Status = r.Status
	m.Details = r.Details
	m.PostedAt = r.PostedAt
}

// MarginAccrualModelFromDomain creates a persistence model from a domain record
func MarginAccrualModelFromDomain(r *accrual.MarginAccrualRecord) *MarginAccrualModel {
	m := &MarginAccrualModel{}
	m.FromDomain(r)
	return m
}
