package models

import (
	"time"

	"github.com/fuelerp/backend/internal/domain/payment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentBatchModel is the persistence model for the PaymentBatch
// aggregate. Items are stored as JSONB on the batch row.
type PaymentBatchModel struct {
	TenantAggregateModel
	Reference          string              `gorm:"type:varchar(50);not null;uniqueIndex:idx_batch_tenant_ref,priority:2"`
	BatchDate          time.Time           `gorm:"not null;index"`
	Method             payment.Method      `gorm:"type:varchar(30);not null"`
	TotalAmount        decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"`
	TotalSettlements   int                 `gorm:"not null;default:0"`
	Status             payment.BatchStatus `gorm:"type:varchar(30);not null;index"`
	Items              payment.BatchItems  `gorm:"type:jsonb"`
	SuccessfulPayments int                 `gorm:"not null;default:0"`
	FailedPayments     int                 `gorm:"not null;default:0"`
	StartedAt          *time.Time
	CompletedAt        *time.Time
	ProcessedBy        *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (PaymentBatchModel) TableName() string {
	return "payment_batches"
}

// ToDomain converts the persistence model to a domain PaymentBatch
func (m *PaymentBatchModel) ToDomain() *payment.PaymentBatch {
	b := &payment.PaymentBatch{
		Reference:          m.Reference,
		BatchDate:          m.BatchDate,
		Method:             m.Method,
		TotalAmount:        m.TotalAmount,
		TotalSettlements:   m.TotalSettlements,
		Status:             m.Status,
		Items:              m.Items,
		SuccessfulPayments: m.SuccessfulPayments,
		FailedPayments:     m.FailedPayments,
		StartedAt:          m.StartedAt,
		CompletedAt:        m.CompletedAt,
		ProcessedBy:        m.ProcessedBy,
	}
	m.PopulateTenantAggregateRoot(&b.TenantAggregateRoot)
	return b
}

// FromDomain populates the persistence model from a domain PaymentBatch
func (m *PaymentBatchModel) FromDomain(b *payment.PaymentBatch) {
	m.FromDomainTenantAggregateRoot(b.TenantAggregateRoot)
	m.Reference = b.Reference
	m.BatchDate = b.BatchDate
	m.Method = b.Method
	m.TotalAmount = b.TotalAmount
	m.TotalSettlements = b.TotalSettlements
	m.Status = b.Status
	m.Items = b.Items
	m.SuccessfulPayments = b.SuccessfulPayments
	m.FailedPayments = b.FailedPayments
	m.StartedAt = b.StartedAt
	m.CompletedAt = b.CompletedAt
	m.ProcessedBy = b.ProcessedBy
}

// PaymentBatchModelFromDomain creates a persistence model from a domain PaymentBatch
func PaymentBatchModelFromDomain(b *payment.PaymentBatch) *PaymentBatchModel {
	m := &PaymentBatchModel{}
	m.FromDomain(b)
	return m
}

// PaymentRuleModel is the persistence model for PaymentRule
type PaymentRuleModel struct {
	TenantAggregateModel
	Name        string                 `gorm:"type:varchar(100);not null"`
	Description string                 `gorm:"type:text"`
	IsActive    bool                   `gorm:"not null;default:true;index"`
	Priority    int                    `gorm:"not null;default:0"`
	Conditions  payment.RuleConditions `gorm:"type:jsonb"`
	Method      payment.Method         `gorm:"type:varchar(30);not null"`
	Controls    payment.RiskControls   `gorm:"type:jsonb"`
}

// TableName returns the table name for GORM
func (PaymentRuleModel) TableName() string {
	return "payment_rules"
}

// ToDomain converts the persistence model to a domain PaymentRule
func (m *PaymentRuleModel) ToDomain() *payment.PaymentRule {
	r := &payment.PaymentRule{
		Name:        m.Name,
		Description: m.Description,
		IsActive:    m.IsActive,
		Priority:    m.Priority,
		Conditions:  m.Conditions,
		Method:      m.Method,
		Controls:    m.Controls,
	}
	m.PopulateTenantAggregateRoot(&r.TenantAggregateRoot)
	return r
}

// FromDomain populates the persistence model from a domain PaymentRule
func (m *PaymentRuleModel) FromDomain(r *payment.PaymentRule) {
	m.FromDomainTenantAggregateRoot(r.TenantAggregateRoot)
	m.Name = r.Name
	m.Description = r.Description
	m.IsActive = r.IsActive
	m.Priority = r.Priority
	m.Conditions = r.Conditions
	m.Method = r.Method
	m.Controls = r.Controls
}

// PaymentRuleModelFromDomain creates a persistence model from a domain PaymentRule
func PaymentRuleModelFromDomain(r *payment.PaymentRule) *PaymentRuleModel {
	m := &PaymentRuleModel{}
	m.FromDomain(r)
	return m
}

// PaymentInstructionModel is the persistence model for a queued manual
// disbursement instruction
type PaymentInstructionModel struct {
	BaseModel
	TenantID      uuid.UUID                   `gorm:"type:uuid;not null;index"`
	SettlementID  uuid.UUID                   `gorm:"type:uuid;not null;index"`
	Amount        decimal.Decimal             `gorm:"type:decimal(18,4);not null"`
	Method        payment.Method              `gorm:"type:varchar(30);not null"`
	RecipientName string                      `gorm:"type:varchar(200)"`
	AccountNumber string                      `gorm:"type:varchar(50)"`
	BankCode      string                      `gorm:"type:varchar(20)"`
	Reference     string                      `gorm:"type:varchar(100)"`
	Priority      payment.InstructionPriority `gorm:"type:varchar(10);not null"`
	ScheduledDate time.Time                   `gorm:"not null"`
	Status        payment.InstructionStatus   `gorm:"type:varchar(20);not null;index"`
}

// TableName returns the table name for GORM
func (PaymentInstructionModel) TableName() string {
	return "payment_instructions"
}

// ToDomain converts the persistence model to a domain PaymentInstruction
func (m *PaymentInstructionModel) ToDomain() *payment.PaymentInstruction {
	return &payment.PaymentInstruction{
		BaseEntity:    m.ToDomainBaseEntity(),
		TenantID:      m.TenantID,
		SettlementID:  m.SettlementID,
		Amount:        m.Amount,
		Method:        m.Method,
		RecipientName: m.RecipientName,
		AccountNumber: m.AccountNumber,
		BankCode:      m.BankCode,
		Reference:     m.Reference,
		Priority:      m.Priority,
		ScheduledDate: m.ScheduledDate,
		Status:        m.Status,
	}
}

// FromDomain populates the persistence model from a domain PaymentInstruction
func (m *PaymentInstructionModel) FromDomain(i *payment.PaymentInstruction) {
	m.FromDomainBaseEntity(i.BaseEntity)
	m.TenantID = i.TenantID
	m.SettlementID = i.SettlementID
	m.Amount = i.Amount
	m.Method = i.Method
	m.RecipientName = i.RecipientName
	m.AccountNumber = i.AccountNumber
	m.BankCode = i.BankCode
	m.Reference = i.Reference
	m.Priority = i.Priority
	m.ScheduledDate = i.ScheduledDate
	m.Status = i.Status
}

// PaymentInstructionModelFromDomain creates a persistence model from a domain PaymentInstruction
func PaymentInstructionModelFromDomain(i *payment.PaymentInstruction) *PaymentInstructionModel {
	m := &PaymentInstructionModel{}
	m.FromDomain(i)
	return m
}

// StationBankAccountModel stores the registered disbursement account
// for a station. One account per (tenant, station).
type StationBankAccountModel struct {
	BaseModel
	TenantID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_station_account,priority:1"`
	StationID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_station_account,priority:2"`
	AccountName   string    `gorm:"type:varchar(200);not null"`
	AccountNumber string    `gorm:"type:varchar(50);not null"`
	BankName      string    `gorm:"type:varchar(100)"`
	BankCode      string    `gorm:"type:varchar(20);not null"`
}

// TableName returns the table name for GORM
func (StationBankAccountModel) TableName() string {
	return "station_bank_accounts"
}

// ToDomain converts the persistence model to a domain BankAccount
func (m *StationBankAccountModel) ToDomain() payment.BankAccount {
	return payment.BankAccount{
		AccountName:   m.AccountName,
		AccountNumber: m.AccountNumber,
		BankName:      m.BankName,
		BankCode:      m.BankCode,
	}
}
