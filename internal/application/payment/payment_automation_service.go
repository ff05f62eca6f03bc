package payment

import (
	"context"
	"fmt"
	"time"

	settlementapp "github.com/fuelerp/backend/internal/application/settlement"
	"github.com/fuelerp/backend/internal/domain/payment"
	"github.com/fuelerp/backend/internal/domain/settlement"
	"github.com/fuelerp/backend/internal/domain/shared"
	"github.com/fuelerp/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SettlementPayer marks an approved settlement paid and runs its loan
// deduction sweep. Satisfied by the settlement application service.
type SettlementPayer interface {
	Pay(ctx context.Context, tenantID, settlementID uuid.UUID, req settlementapp.PayRequest) (*settlement.Settlement, error)
}

// AutomationConfig holds the tunables of the automated payment sweep
type AutomationConfig struct {
	MinDaysFromApproval int
	MaxBatchSize        int
	Currency            string
}

// DefaultAutomationConfig returns the production defaults
func DefaultAutomationConfig() AutomationConfig {
	return AutomationConfig{
		MinDaysFromApproval: 3,
		MaxBatchSize:        50,
		Currency:            string(valueobject.DefaultCurrency),
	}
}

// PaymentAutomationService evaluates payment rules over approved
// settlements, groups the accepted ones into disbursement batches and
// executes batches against the bank rail
type PaymentAutomationService struct {
	batchRepo       payment.PaymentBatchRepository
	ruleRepo        payment.PaymentRuleRepository
	instructionRepo payment.PaymentInstructionRepository
	settlementRepo  settlement.SettlementRepository
	payer           SettlementPayer
	directory       payment.StationDirectory
	ledger          payment.DisbursementLedger
	rail            payment.BankRail
	eventBus        shared.EventBus
	logger          *zap.Logger
	config          AutomationConfig
	now             func() time.Time
}

// NewPaymentAutomationService creates a new PaymentAutomationService
func NewPaymentAutomationService(
	batchRepo payment.PaymentBatchRepository,
	ruleRepo payment.PaymentRuleRepository,
	instructionRepo payment.PaymentInstructionRepository,
	settlementRepo settlement.SettlementRepository,
	payer SettlementPayer,
	directory payment.StationDirectory,
	ledger payment.DisbursementLedger,
	rail payment.BankRail,
	eventBus shared.EventBus,
	logger *zap.Logger,
	config AutomationConfig,
) *PaymentAutomationService {
	if config.MinDaysFromApproval <= 0 {
		config.MinDaysFromApproval = DefaultAutomationConfig().MinDaysFromApproval
	}
	if config.MaxBatchSize <= 0 {
		config.MaxBatchSize = DefaultAutomationConfig().MaxBatchSize
	}
	if config.Currency == "" {
		config.Currency = DefaultAutomationConfig().Currency
	}
	return &PaymentAutomationService{
		batchRepo:       batchRepo,
		ruleRepo:        ruleRepo,
		instructionRepo: instructionRepo,
		settlementRepo:  settlementRepo,
		payer:           payer,
		directory:       directory,
		ledger:          ledger,
		rail:            rail,
		eventBus:        eventBus,
		logger:          logger,
		config:          config,
		now:             time.Now,
	}
}

// SkippedSettlement reports why an approved settlement was not accepted
// into any batch during a sweep
type SkippedSettlement struct {
	SettlementID uuid.UUID `json:"settlement_id"`
	Reference    string    `json:"reference"`
	Reason       string    `json:"reason"`
}

// PlannedBatch describes one batch a sweep created, or would create in
// dry-run mode
type PlannedBatch struct {
	BatchID     *uuid.UUID      `json:"batch_id,omitempty"`
	Reference   string          `json:"reference"`
	Method      payment.Method  `json:"method"`
	Settlements int             `json:"settlements"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// SweepResult is the outcome of one automated payment sweep
type SweepResult struct {
	Evaluated   int                 `json:"evaluated"`
	Accepted    int                 `json:"accepted"`
	Batches     []PlannedBatch      `json:"batches"`
	Skipped     []SkippedSettlement `json:"skipped"`
	TotalAmount decimal.Decimal     `json:"total_amount"`
	DryRun      bool                `json:"dry_run"`
}

type acceptedSettlement struct {
	settlement *settlement.Settlement
	rule       *payment.PaymentRule
	account    payment.BankAccount
}

// ProcessAutomatedPayments runs the rule engine over the tenant's
// approved settlements and groups the accepted ones into pending
// batches by payment method. In dry-run mode the same evaluation runs
// but nothing is persisted and no events are emitted.
func (s *PaymentAutomationService) ProcessAutomatedPayments(ctx context.Context, tenantID uuid.UUID, dryRun bool) (*SweepResult, error) {
	approved, err := s.settlementRepo.FindByStatus(ctx, tenantID, settlement.SettlementStatusApproved)
	if err != nil {
		return nil, err
	}

	rules, err := s.activeRules(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	asOf := s.now()
	result := &SweepResult{
		Batches:     make([]PlannedBatch, 0),
		Skipped:     make([]SkippedSettlement, 0),
		TotalAmount: decimal.Zero,
		DryRun:      dryRun,
	}

	dailyUsed, monthlyUsed, err := s.disbursedTotals(ctx, tenantID, asOf)
	if err != nil {
		return nil, err
	}

	accepted := make([]acceptedSettlement, 0, len(approved))
	for _, sett := range approved {
		result.Evaluated++

		if reason := s.eligibility(sett, asOf); reason != "" {
			result.Skipped = append(result.Skipped, skipped(sett, reason))
			continue
		}

		match, reason := s.evaluateRules(ctx, tenantID, sett, rules, asOf, dailyUsed, monthlyUsed)
		if match == nil {
			result.Skipped = append(result.Skipped, skipped(sett, reason))
			continue
		}

		account, err := s.directory.BankAccount(ctx, tenantID, sett.StationID)
		if err != nil {
			result.Skipped = append(result.Skipped, skipped(sett, "No disbursement account registered for station"))
			continue
		}

		dailyUsed = dailyUsed.Add(sett.NetPayable)
		monthlyUsed = monthlyUsed.Add(sett.NetPayable)
		accepted = append(accepted, acceptedSettlement{settlement: sett, rule: match, account: account})
	}

	result.Accepted = len(accepted)

	for method, group := range groupByMethod(accepted) {
		for _, chunk := range chunk(group, s.config.MaxBatchSize) {
			planned, err := s.createBatch(ctx, tenantID, method, chunk, dryRun)
			if err != nil {
				return nil, err
			}
			result.Batches = append(result.Batches, *planned)
			result.TotalAmount = result.TotalAmount.Add(planned.TotalAmount)
		}
	}

	s.logger.Info("Automated payment sweep finished",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("evaluated", result.Evaluated),
		zap.Int("accepted", result.Accepted),
		zap.Int("batches", len(result.Batches)),
		zap.Bool("dry_run", dryRun))

	return result, nil
}

func (s *PaymentAutomationService) eligibility(sett *settlement.Settlement, asOf time.Time) string {
	if !sett.NetPayable.IsPositive() {
		return "Net payable is not positive"
	}
	if sett.DaysSinceApproval(asOf) < s.config.MinDaysFromApproval {
		return fmt.Sprintf("Less than %d days since approval", s.config.MinDaysFromApproval)
	}
	return ""
}

// evaluateRules tries the active rules in ascending priority order. The
// first rule whose conditions match AND whose risk controls pass wins.
// Returns a nil rule with the last skip reason when none accepts.
func (s *PaymentAutomationService) evaluateRules(
	ctx context.Context,
	tenantID uuid.UUID,
	sett *settlement.Settlement,
	rules []*payment.PaymentRule,
	asOf time.Time,
	dailyUsed, monthlyUsed decimal.Decimal,
) (*payment.PaymentRule, string) {
	reason := "No payment rule matched"
	for _, rule := range rules {
		if !rule.Matches(sett, asOf) {
			continue
		}
		if riskReason := s.riskControls(ctx, tenantID, rule, sett, dailyUsed, monthlyUsed); riskReason != "" {
			reason = riskReason
			continue
		}
		return rule, ""
	}
	return nil, reason
}

func (s *PaymentAutomationService) riskControls(
	ctx context.Context,
	tenantID uuid.UUID,
	rule *payment.PaymentRule,
	sett *settlement.Settlement,
	dailyUsed, monthlyUsed decimal.Decimal,
) string {
	controls := rule.Controls

	if controls.DailyLimit.IsPositive() && dailyUsed.Add(sett.NetPayable).GreaterThan(controls.DailyLimit) {
		return "Daily disbursement limit exceeded"
	}
	if controls.MonthlyLimit.IsPositive() && monthlyUsed.Add(sett.NetPayable).GreaterThan(controls.MonthlyLimit) {
		return "Monthly disbursement limit exceeded"
	}

	if controls.DuplicateCheck {
		inBatch, err := s.batchRepo.SettlementInOpenBatch(ctx, tenantID, sett.ID)
		if err != nil {
			s.logger.Warn("Duplicate check failed, skipping settlement",
				zap.String("settlement_id", sett.ID.String()),
				zap.Error(err))
			return "Duplicate check unavailable"
		}
		if inBatch {
			return "Settlement already queued in an open batch"
		}
	}

	if controls.FraudCheck && s.fraudSuspected(rule, sett) {
		return "Flagged by fraud heuristic"
	}

	return ""
}

// fraudSuspected flags a single transfer large enough to consume half
// the rule's daily limit, pending manual review
func (s *PaymentAutomationService) fraudSuspected(rule *payment.PaymentRule, sett *settlement.Settlement) bool {
	if !rule.Controls.DailyLimit.IsPositive() {
		return false
	}
	half := rule.Controls.DailyLimit.Div(decimal.NewFromInt(2))
	return sett.NetPayable.GreaterThan(half)
}

func (s *PaymentAutomationService) createBatch(
	ctx context.Context,
	tenantID uuid.UUID,
	method payment.Method,
	group []acceptedSettlement,
	dryRun bool,
) (*PlannedBatch, error) {
	items := make(payment.BatchItems, 0, len(group))
	total := decimal.Zero
	for _, a := range group {
		items = append(items, payment.BatchItem{
			SettlementID:     a.settlement.ID,
			StationID:        a.settlement.StationID,
			Amount:           a.settlement.NetPayable,
			PaymentReference: a.settlement.Reference,
			AccountName:      a.account.AccountName,
			AccountNumber:    a.account.AccountNumber,
			BankName:         a.account.BankName,
			BankCode:         a.account.BankCode,
		})
		total = total.Add(a.settlement.NetPayable)
	}

	reference := batchReference(s.now())
	if dryRun {
		return &PlannedBatch{
			Reference:   reference,
			Method:      method,
			Settlements: len(items),
			TotalAmount: total,
		}, nil
	}

	batch, err := payment.NewPaymentBatch(tenantID, reference, method, items)
	if err != nil {
		return nil, err
	}
	if err := s.batchRepo.Save(ctx, batch); err != nil {
		return nil, err
	}
	s.publishEvents(ctx, batch)

	return &PlannedBatch{
		BatchID:     &batch.ID,
		Reference:   batch.Reference,
		Method:      method,
		Settlements: len(items),
		TotalAmount: total,
	}, nil
}

// ExecuteBatch disburses a pending batch through the bank rail. Each
// transfer is isolated: a rejected transfer marks its settlement failed
// and execution continues with the next item.
func (s *PaymentAutomationService) ExecuteBatch(ctx context.Context, tenantID, batchID, processedBy uuid.UUID) (*payment.PaymentBatch, error) {
	batch, err := s.findBatch(ctx, tenantID, batchID)
	if err != nil {
		return nil, err
	}

	if err := batch.StartProcessing(processedBy); err != nil {
		return nil, err
	}
	if err := s.batchRepo.Save(ctx, batch); err != nil {
		return nil, err
	}

	s.executeItems(ctx, tenantID, batch, batch.Items)

	if err := batch.Finish(); err != nil {
		return nil, err
	}
	if err := s.batchRepo.Save(ctx, batch); err != nil {
		return nil, err
	}
	s.publishEvents(ctx, batch)

	return batch, nil
}

// RetryFailedPayments re-attempts only the failed items of a finished
// batch. Completed items keep their results.
func (s *PaymentAutomationService) RetryFailedPayments(ctx context.Context, tenantID, batchID, processedBy uuid.UUID) (*payment.PaymentBatch, error) {
	batch, err := s.findBatch(ctx, tenantID, batchID)
	if err != nil {
		return nil, err
	}

	failed := batch.FailedItems()
	if err := batch.BeginRetry(processedBy); err != nil {
		return nil, err
	}
	if err := s.batchRepo.Save(ctx, batch); err != nil {
		return nil, err
	}

	s.executeItems(ctx, tenantID, batch, failed)

	if err := batch.Finish(); err != nil {
		return nil, err
	}
	if err := s.batchRepo.Save(ctx, batch); err != nil {
		return nil, err
	}
	s.publishEvents(ctx, batch)

	return batch, nil
}

func (s *PaymentAutomationService) executeItems(ctx context.Context, tenantID uuid.UUID, batch *payment.PaymentBatch, items []payment.BatchItem) {
	for _, item := range items {
		if err := s.disburseItem(ctx, tenantID, batch, item); err != nil {
			s.logger.Warn("Disbursement failed",
				zap.String("batch_id", batch.ID.String()),
				zap.String("settlement_id", item.SettlementID.String()),
				zap.Error(err))
			if recordErr := batch.RecordItemFailure(item.SettlementID, err.Error()); recordErr != nil {
				s.logger.Error("Failed to record item failure",
					zap.String("settlement_id", item.SettlementID.String()),
					zap.Error(recordErr))
			}
		}
	}
}

func (s *PaymentAutomationService) disburseItem(ctx context.Context, tenantID uuid.UUID, batch *payment.PaymentBatch, item payment.BatchItem) error {
	amount, err := valueobject.NewMoney(item.Amount, valueobject.Currency(s.config.Currency))
	if err != nil {
		return shared.NewDomainErrorWithCause("VALIDATION_FAILURE", "Invalid disbursement currency", err)
	}
	result, err := s.rail.SubmitTransfer(ctx, payment.TransferRequest{
		Amount:        amount,
		AccountName:   item.AccountName,
		AccountNumber: item.AccountNumber,
		BankCode:      item.BankCode,
		Reference:     item.PaymentReference,
		Method:        batch.Method,
	})
	if err != nil {
		return shared.NewDomainErrorWithCause("EXTERNAL_FAILURE", "Bank rail rejected the transfer", err)
	}

	if _, err := s.payer.Pay(ctx, tenantID, item.SettlementID, settlementapp.PayRequest{
		PaymentReference: result.TransactionID,
		PaymentMethod:    batch.Method.String(),
		PaidBy:           batch.ProcessedBy,
	}); err != nil {
		return err
	}

	if err := s.ledger.Record(ctx, tenantID, item.Amount, s.now()); err != nil {
		s.logger.Warn("Failed to record disbursement in risk ledger",
			zap.String("settlement_id", item.SettlementID.String()),
			zap.Error(err))
	}

	return batch.RecordItemSuccess(item.SettlementID, result.TransactionID)
}

// CancelBatch abandons a batch that has not started processing
func (s *PaymentAutomationService) CancelBatch(ctx context.Context, tenantID, batchID uuid.UUID) (*payment.PaymentBatch, error) {
	batch, err := s.findBatch(ctx, tenantID, batchID)
	if err != nil {
		return nil, err
	}
	if err := batch.Cancel(); err != nil {
		return nil, err
	}
	if err := s.batchRepo.Save(ctx, batch); err != nil {
		return nil, err
	}
	return batch, nil
}

// CreateInstructionsRequest queues manual payment instructions for a
// set of approved settlements
type CreateInstructionsRequest struct {
	SettlementIDs []uuid.UUID                 `json:"settlement_ids" binding:"required,min=1"`
	Method        payment.Method              `json:"method" binding:"required"`
	Priority      payment.InstructionPriority `json:"priority" binding:"required"`
}

// CreatePaymentInstructions builds queued instructions for manual
// processing outside the automated rail
func (s *PaymentAutomationService) CreatePaymentInstructions(ctx context.Context, tenantID uuid.UUID, req CreateInstructionsRequest) ([]*payment.PaymentInstruction, error) {
	instructions := make([]*payment.PaymentInstruction, 0, len(req.SettlementIDs))
	total := decimal.Zero

	for _, settlementID := range req.SettlementIDs {
		sett, err := s.settlementRepo.FindByIDForTenant(ctx, tenantID, settlementID)
		if err != nil {
			return nil, err
		}
		if sett == nil {
			return nil, shared.NewDomainError("NOT_FOUND",
				fmt.Sprintf("Settlement %s not found", settlementID))
		}
		if sett.Status != settlement.SettlementStatusApproved {
			return nil, shared.NewDomainError("INVALID_STATE",
				fmt.Sprintf("Settlement %s is not approved", sett.Reference))
		}

		account, err := s.directory.BankAccount(ctx, tenantID, sett.StationID)
		if err != nil {
			return nil, shared.NewDomainErrorWithCause("EXTERNAL_FAILURE",
				fmt.Sprintf("No disbursement account for station %s", sett.StationID), err)
		}

		instruction, err := payment.NewPaymentInstruction(
			tenantID,
			sett.ID,
			sett.NetPayable,
			req.Method,
			account.AccountName,
			account.AccountNumber,
			account.BankCode,
			sett.Reference,
			req.Priority,
		)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, instruction)
		total = total.Add(sett.NetPayable)
	}

	if err := s.instructionRepo.SaveAll(ctx, instructions); err != nil {
		return nil, err
	}

	s.publish(ctx, payment.NewPaymentInstructionsCreatedEvent(tenantID, len(instructions), total, req.Priority))

	return instructions, nil
}

// MethodStats aggregates one payment method's share of a report period
type MethodStats struct {
	Method      payment.Method  `json:"method"`
	Batches     int             `json:"batches"`
	Settlements int             `json:"settlements"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// PaymentReport is the disbursement read model for a period
type PaymentReport struct {
	From               time.Time       `json:"from"`
	To                 time.Time       `json:"to"`
	TotalBatches       int             `json:"total_batches"`
	TotalSettlements   int             `json:"total_settlements"`
	SuccessfulPayments int             `json:"successful_payments"`
	FailedPayments     int             `json:"failed_payments"`
	TotalDisbursed     decimal.Decimal `json:"total_disbursed"`
	ByMethod           []MethodStats   `json:"by_method"`
	FailureReasons     map[string]int  `json:"failure_reasons"`
}

// GetPaymentReport aggregates the tenant's batches over a date range
func (s *PaymentAutomationService) GetPaymentReport(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (*PaymentReport, error) {
	batches, err := s.batchRepo.FindByDateRange(ctx, tenantID, from, to)
	if err != nil {
		return nil, err
	}

	report := &PaymentReport{
		From:           from,
		To:             to,
		TotalDisbursed: decimal.Zero,
		ByMethod:       make([]MethodStats, 0),
		FailureReasons: make(map[string]int),
	}

	byMethod := make(map[payment.Method]*MethodStats)
	methodOrder := make([]payment.Method, 0)

	for _, batch := range batches {
		report.TotalBatches++
		report.TotalSettlements += batch.TotalSettlements
		report.SuccessfulPayments += batch.SuccessfulPayments
		report.FailedPayments += batch.FailedPayments

		stats, ok := byMethod[batch.Method]
		if !ok {
			stats = &MethodStats{Method: batch.Method, TotalAmount: decimal.Zero}
			byMethod[batch.Method] = stats
			methodOrder = append(methodOrder, batch.Method)
		}
		stats.Batches++
		stats.Settlements += batch.TotalSettlements

		for _, item := range batch.Items {
			switch item.Status {
			case payment.ItemStatusCompleted:
				report.TotalDisbursed = report.TotalDisbursed.Add(item.Amount)
				stats.TotalAmount = stats.TotalAmount.Add(item.Amount)
			case payment.ItemStatusFailed:
				if item.FailureReason != "" {
					report.FailureReasons[item.FailureReason]++
				}
			}
		}
	}

	for _, method := range methodOrder {
		report.ByMethod = append(report.ByMethod, *byMethod[method])
	}

	return report, nil
}

// GetBatch returns a payment batch by ID
func (s *PaymentAutomationService) GetBatch(ctx context.Context, tenantID, batchID uuid.UUID) (*payment.PaymentBatch, error) {
	return s.findBatch(ctx, tenantID, batchID)
}

// ListBatchesByStatus returns the tenant's batches in a given status
func (s *PaymentAutomationService) ListBatchesByStatus(ctx context.Context, tenantID uuid.UUID, status payment.BatchStatus) ([]*payment.PaymentBatch, error) {
	if !status.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_FAILURE", "Batch status is not valid")
	}
	return s.batchRepo.FindByStatus(ctx, tenantID, status)
}

func (s *PaymentAutomationService) activeRules(ctx context.Context, tenantID uuid.UUID) ([]*payment.PaymentRule, error) {
	rules, err := s.ruleRepo.FindActiveForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		rules = []*payment.PaymentRule{payment.DefaultRule(tenantID)}
	}
	return rules, nil
}

func (s *PaymentAutomationService) disbursedTotals(ctx context.Context, tenantID uuid.UUID, at time.Time) (decimal.Decimal, decimal.Decimal, error) {
	daily, err := s.ledger.DailyTotal(ctx, tenantID, at)
	if err != nil {
		return decimal.Zero, decimal.Zero, shared.NewDomainErrorWithCause("EXTERNAL_FAILURE", "Disbursement ledger unavailable", err)
	}
	monthly, err := s.ledger.MonthlyTotal(ctx, tenantID, at)
	if err != nil {
		return decimal.Zero, decimal.Zero, shared.NewDomainErrorWithCause("EXTERNAL_FAILURE", "Disbursement ledger unavailable", err)
	}
	return daily, monthly, nil
}

func (s *PaymentAutomationService) findBatch(ctx context.Context, tenantID, batchID uuid.UUID) (*payment.PaymentBatch, error) {
	batch, err := s.batchRepo.FindByIDForTenant(ctx, tenantID, batchID)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Payment batch not found")
	}
	return batch, nil
}

func skipped(sett *settlement.Settlement, reason string) SkippedSettlement {
	return SkippedSettlement{
		SettlementID: sett.ID,
		Reference:    sett.Reference,
		Reason:       reason,
	}
}

func groupByMethod(accepted []acceptedSettlement) map[payment.Method][]acceptedSettlement {
	groups := make(map[payment.Method][]acceptedSettlement)
	for _, a := range accepted {
		groups[a.rule.Method] = append(groups[a.rule.Method], a)
	}
	return groups
}

func chunk(group []acceptedSettlement, size int) [][]acceptedSettlement {
	chunks := make([][]acceptedSettlement, 0, (len(group)+size-1)/size)
	for start := 0; start < len(group); start += size {
		end := start + size
		if end > len(group) {
			end = len(group)
		}
		chunks = append(chunks, group[start:end])
	}
	return chunks
}

func batchReference(at time.Time) string {
	suffix := uuid.New().String()
	return fmt.Sprintf("PB-%d-%s", at.UnixMilli(), suffix[len(suffix)-4:])
}

func (s *PaymentAutomationService) publish(ctx context.Context, event shared.DomainEvent) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish event",
			zap.String("event_type", event.EventType()),
			zap.Error(err))
	}
}

func (s *PaymentAutomationService) publishEvents(ctx context.Context, batch *payment.PaymentBatch) {
	if s.eventBus == nil {
		batch.ClearDomainEvents()
		return
	}
	for _, event := range batch.GetDomainEvents() {
		if err := s.eventBus.Publish(ctx, event); err != nil {
			s.logger.Warn("Failed to publish event",
				zap.String("event_type", event.EventType()),
				zap.Error(err))
		}
	}
	batch.ClearDomainEvents()
}
