package payment

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/fuelerp/backend/internal/domain/settlement"
	"github.com/fuelerp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Method represents a disbursement channel
type Method string

const (
	MethodBankTransfer Method = "BANK_TRANSFER"
	MethodMobileMoney  Method = "MOBILE_MONEY"
	MethodCheck        Method = "CHECK"
	MethodCash         Method = "CASH"
)

// IsValid checks if the method is a valid Method
func (m Method) IsValid() bool {
	switch m {
	case MethodBankTransfer, MethodMobileMoney, MethodCheck, MethodCash:
		return true
	}
	return false
}

// String returns the string representation of Method
func (m Method) String() string {
	return string(m)
}

// RuleConditions are the match criteria of a payment rule, stored as JSONB
type RuleConditions struct {
	MinAmount        decimal.Decimal               `json:"min_amount"`
	MaxAmount        decimal.Decimal               `json:"max_amount"`
	AllowedStatuses  []settlement.SettlementStatus `json:"allowed_statuses"`
	DaysFromApproval int                           `json:"days_from_approval"`
}

// Value implements driver.Valuer interface for GORM to store as JSONB
func (c RuleConditions) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (c *RuleConditions) Scan(value interface{}) error {
	return scanJSONB(value, c, func() { *c = RuleConditions{} })
}

// RiskControls are the limits a matching rule must still pass before a
// settlement is accepted into a batch, stored as JSONB
type RiskControls struct {
	DailyLimit     decimal.Decimal `json:"daily_limit"`
	MonthlyLimit   decimal.Decimal `json:"monthly_limit"`
	DuplicateCheck bool            `json:"duplicate_check"`
	FraudCheck     bool            `json:"fraud_check"`
}

// Value implements driver.Valuer interface for GORM to store as JSONB
func (c RiskControls) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (c *RiskControls) Scan(value interface{}) error {
	return scanJSONB(value, c, func() { *c = RiskControls{} })
}

func scanJSONB(value interface{}, target interface{}, reset func()) error {
	if value == nil {
		reset()
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan JSONB value: unsupported type")
	}

	if len(bytes) == 0 {
		reset()
		return nil
	}

	return json.Unmarshal(bytes, target)
}

// PaymentRule decides which approved settlements are accepted for
// automated disbursement. Active rules are evaluated in ascending
// priority order; the first rule to match and pass risk controls wins.
type PaymentRule struct {
	shared.TenantAggregateRoot
	Name        string         `json:"name"`
	Description string         `json:"description"`
	IsActive    bool           `json:"is_active"`
	Priority    int            `json:"priority"`
	Conditions  RuleConditions `json:"conditions"`
	Method      Method         `json:"method"`
	Controls    RiskControls   `json:"controls"`
}

// NewPaymentRule creates an active payment rule
func NewPaymentRule(
	tenantID uuid.UUID,
	name string,
	description string,
	priority int,
	conditions RuleConditions,
	method Method,
	controls RiskControls,
) (*PaymentRule, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_RULE_NAME", "Rule name cannot be empty")
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError("INVALID_METHOD", "Payment method is not valid")
	}
	if conditions.MaxAmount.LessThan(conditions.MinAmount) {
		return nil, shared.NewDomainError("VALIDATION_FAILURE", "Rule maximum amount must not be below the minimum")
	}
	if conditions.DaysFromApproval < 0 {
		return nil, shared.NewDomainError("VALIDATION_FAILURE", "Days from approval cannot be negative")
	}

	return &PaymentRule{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                name,
		Description:         description,
		IsActive:            true,
		Priority:            priority,
		Conditions:          conditions,
		Method:              method,
		Controls:            controls,
	}, nil
}

// DefaultRule returns the rule seeded for tenants that have not
// configured any
func DefaultRule(tenantID uuid.UUID) *PaymentRule {
	rule, _ := NewPaymentRule(
		tenantID,
		"Standard Payment Rule",
		"Default rule for automated payments",
		1,
		RuleConditions{
			MinAmount:        decimal.NewFromInt(100),
			MaxAmount:        decimal.NewFromInt(50000),
			AllowedStatuses:  []settlement.SettlementStatus{settlement.SettlementStatusApproved},
			DaysFromApproval: 3,
		},
		MethodBankTransfer,
		RiskControls{
			DailyLimit:     decimal.NewFromInt(1_000_000),
			MonthlyLimit:   decimal.NewFromInt(10_000_000),
			DuplicateCheck: true,
			FraudCheck:     true,
		},
	)
	return rule
}

// Matches reports whether the settlement satisfies the rule's
// conditions: amount band, status set, and days since approval
func (r *PaymentRule) Matches(s *settlement.Settlement, asOf time.Time) bool {
	if !r.IsActive {
		return false
	}
	if s.NetPayable.LessThan(r.Conditions.MinAmount) || s.NetPayable.GreaterThan(r.Conditions.MaxAmount) {
		return false
	}

	statusAllowed := false
	for _, allowed := range r.Conditions.AllowedStatuses {
		if s.Status == allowed {
			statusAllowed = true
			break
		}
	}
	if !statusAllowed {
		return false
	}

	if days := s.DaysSinceApproval(asOf); days < r.Conditions.DaysFromApproval {
		return false
	}

	return true
}

// Deactivate turns the rule off without deleting it
func (r *PaymentRule) Deactivate() {
	r.IsActive = false
	r.UpdatedAt = time.Now()
	r.IncrementVersion()
}
