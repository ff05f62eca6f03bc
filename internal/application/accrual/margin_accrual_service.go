package accrual

import (
	"context"
	"errors"
	"time"

	"github.com/fuelerp/backend/internal/domain/accrual"
	"github.com/fuelerp/backend/internal/domain/pricing"
	"github.com/fuelerp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MarginAccrualService aggregates daily sales into margin accrual
// records and exposes the accrual read models
type MarginAccrualService struct {
	accrualRepo accrual.MarginAccrualRepository
	pricing     pricing.Authority
	eventBus    shared.EventBus
	logger      *zap.Logger
}

// NewMarginAccrualService creates a new MarginAccrualService
func NewMarginAccrualService(
	accrualRepo accrual.MarginAccrualRepository,
	pricingAuthority pricing.Authority,
	eventBus shared.EventBus,
	logger *zap.Logger,
) *MarginAccrualService {
	return &MarginAccrualService{
		accrualRepo: accrualRepo,
		pricing:     pricingAuthority,
		eventBus:    eventBus,
		logger:      logger,
	}
}

// ProductSalesInput is one product's aggregated sales for a station-day
type ProductSalesInput struct {
	Product        string          `json:"product"`
	LitresSold     decimal.Decimal `json:"litres_sold"`
	AverageExPump  decimal.Decimal `json:"average_ex_pump"`
	TransactionIDs []string        `json:"transaction_ids"`
}

// StationDayInput is the accrual unit: all of one station's sales for
// one day inside a pricing window
type StationDayInput struct {
	StationID uuid.UUID           `json:"station_id"`
	Date      time.Time           `json:"date"`
	WindowID  string              `json:"window_id"`
	Sales     []ProductSalesInput `json:"sales"`
}

// StationDayResult summarizes one processed station-day
type StationDayResult struct {
	StationID   uuid.UUID       `json:"station_id"`
	Date        time.Time       `json:"date"`
	WindowID    string          `json:"window_id"`
	RecordCount int             `json:"record_count"`
	TotalLitres decimal.Decimal `json:"total_litres"`
	TotalMargin decimal.Decimal `json:"total_margin"`
	Reprocessed bool            `json:"reprocessed"`
}

// ProcessStationDay computes the accrual records for one station-day.
// Re-running the same station-day replaces the previous records; once
// any record of the day is posted to the ledger the day is frozen.
func (s *MarginAccrualService) ProcessStationDay(ctx context.Context, tenantID uuid.UUID, input StationDayInput) (*StationDayResult, error) {
	if len(input.Sales) == 0 {
		return nil, shared.NewDomainError("VALIDATION_FAILURE", "Station day must contain at least one product's sales")
	}

	posted, err := s.accrualRepo.HasPostedForStationDate(ctx, tenantID, input.StationID, input.Date, input.WindowID)
	if err != nil {
		return nil, err
	}
	if posted {
		return nil, shared.NewDomainError("CONFLICT", "Accruals for this station day have been posted to the ledger")
	}

	existing, err := s.accrualRepo.FindByStationDate(ctx, tenantID, input.StationID, input.Date, input.WindowID)
	if err != nil {
		return nil, err
	}

	window, err := s.pricing.WindowDates(ctx, input.WindowID)
	if err != nil {
		return nil, shared.NewDomainErrorWithCause("EXTERNAL_FAILURE", "Failed to resolve pricing window", err)
	}
	if !window.Contains(input.Date) {
		return nil, shared.NewDomainError("VALIDATION_FAILURE", "Accrual date falls outside the pricing window")
	}

	priorLitres, priorMargin, err := s.windowRunningTotals(ctx, tenantID, input.StationID, window.StartDate, input.Date)
	if err != nil {
		return nil, err
	}

	records := make([]*accrual.MarginAccrualRecord, 0, len(input.Sales))
	totalLitres, totalMargin := decimal.Zero, decimal.Zero

	for _, sale := range input.Sales {
		rate, err := s.pricing.MarginRate(ctx, sale.Product, input.WindowID)
		if errors.Is(err, pricing.ErrRateNotFound) {
			s.logger.Warn("No margin rate for product, skipping",
				zap.String("product", sale.Product),
				zap.String("window_id", input.WindowID))
			continue
		}
		if err != nil {
			return nil, shared.NewDomainErrorWithCause("EXTERNAL_FAILURE", "Failed to resolve margin rate", err)
		}

		record, err := accrual.NewMarginAccrualRecord(
			tenantID, input.StationID, sale.Product, input.Date, input.WindowID,
			sale.LitresSold, rate, sale.AverageExPump, sale.TransactionIDs,
		)
		if err != nil {
			return nil, err
		}

		totalLitres = totalLitres.Add(record.LitresSold)
		totalMargin = totalMargin.Add(record.MarginAmount)
		record.SetCumulatives(priorLitres.Add(totalLitres), priorMargin.Add(totalMargin))

		records = append(records, record)
	}

	if len(records) == 0 {
		return nil, shared.NewDomainError("VALIDATION_FAILURE", "No margin rate found for any product in the station day")
	}

	if err := s.accrualRepo.ReplaceForStationDate(ctx, tenantID, input.StationID, input.Date, input.WindowID, records); err != nil {
		return nil, err
	}

	s.publish(ctx, accrual.NewMarginAccruedEvent(tenantID, input.StationID, input.WindowID, input.Date, len(records), totalLitres, totalMargin))

	s.logger.Info("Processed station day accruals",
		zap.String("tenant_id", tenantID.String()),
		zap.String("station_id", input.StationID.String()),
		zap.String("window_id", input.WindowID),
		zap.Time("date", input.Date),
		zap.Int("records", len(records)),
		zap.String("total_margin", totalMargin.String()))

	return &StationDayResult{
		StationID:   input.StationID,
		Date:        input.Date,
		WindowID:    input.WindowID,
		RecordCount: len(records),
		TotalLitres: totalLitres,
		TotalMargin: totalMargin,
		Reprocessed: len(existing) > 0,
	}, nil
}

// windowRunningTotals sums accrued litres and margin for the station
// from the window start up to but excluding the given date
func (s *MarginAccrualService) windowRunningTotals(ctx context.Context, tenantID, stationID uuid.UUID, windowStart, date time.Time) (decimal.Decimal, decimal.Decimal, error) {
	if !date.After(windowStart) {
		return decimal.Zero, decimal.Zero, nil
	}

	prior, err := s.accrualRepo.FindByStationDateRange(ctx, tenantID, stationID, windowStart, date.AddDate(0, 0, -1))
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	litres, margin := decimal.Zero, decimal.Zero
	for _, record := range prior {
		litres = litres.Add(record.LitresSold)
		margin = margin.Add(record.MarginAmount)
	}
	return litres, margin, nil
}

// BatchResult aggregates a multi-station-day accrual run
type BatchResult struct {
	Processed int                `json:"processed"`
	Failed    int                `json:"failed"`
	Records   int                `json:"records"`
	Results   []StationDayResult `json:"results"`
	Errors    []BatchError       `json:"errors,omitempty"`
}

// BatchError carries one failed station-day and its reason
type BatchError struct {
	StationID uuid.UUID `json:"station_id"`
	Date      time.Time `json:"date"`
	Reason    string    `json:"reason"`
}

// ProcessBatch runs accrual for many station-days with per-item error
// isolation. One bad day never aborts the rest of the batch.
func (s *MarginAccrualService) ProcessBatch(ctx context.Context, tenantID uuid.UUID, windowID string, inputs []StationDayInput) (*BatchResult, error) {
	if len(inputs) == 0 {
		return nil, shared.NewDomainError("VALIDATION_FAILURE", "Batch must contain at least one station day")
	}

	result := &BatchResult{
		Results: make([]StationDayResult, 0, len(inputs)),
	}

	for _, input := range inputs {
		dayResult, err := s.ProcessStationDay(ctx, tenantID, input)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, BatchError{
				StationID: input.StationID,
				Date:      input.Date,
				Reason:    err.Error(),
			})
			s.logger.Warn("Station day accrual failed",
				zap.String("tenant_id", tenantID.String()),
				zap.String("station_id", input.StationID.String()),
				zap.Time("date", input.Date),
				zap.Error(err))
			continue
		}
		result.Processed++
		result.Records += dayResult.RecordCount
		result.Results = append(result.Results, *dayResult)
	}

	s.publish(ctx, accrual.NewMarginAccrualBatchCompletedEvent(tenantID, windowID, result.Processed, result.Failed, result.Records))

	return result, nil
}

// ApplyAdjustment applies a manual amount correction to one accrual
// record with its audit entry
func (s *MarginAccrualService) ApplyAdjustment(ctx context.Context, tenantID, recordID uuid.UUID, delta decimal.Decimal, reason string, adjustedBy uuid.UUID) (*accrual.MarginAccrualRecord, error) {
	record, err := s.accrualRepo.FindByIDForTenant(ctx, tenantID, recordID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Accrual record not found")
	}

	if err := record.ApplyAdjustment(delta, reason, adjustedBy); err != nil {
		return nil, err
	}

	if err := s.accrualRepo.Save(ctx, record); err != nil {
		return nil, err
	}

	s.publishAggregate(ctx, record)

	s.logger.Info("Applied accrual adjustment",
		zap.String("tenant_id", tenantID.String()),
		zap.String("record_id", recordID.String()),
		zap.String("delta", delta.String()),
		zap.String("reason", reason))

	return record, nil
}

// ProductSummary is one product's share of a summary period
type ProductSummary struct {
	Product     string          `json:"product"`
	LitresSold  decimal.Decimal `json:"litres_sold"`
	Margin      decimal.Decimal `json:"margin"`
	RecordCount int             `json:"record_count"`
}

// PeriodSummary aggregates a station's accruals over a date range
type PeriodSummary struct {
	StationID      uuid.UUID        `json:"station_id"`
	From           time.Time        `json:"from"`
	To             time.Time        `json:"to"`
	TotalLitres    decimal.Decimal  `json:"total_litres"`
	TotalMargin    decimal.Decimal  `json:"total_margin"`
	MarginPerLitre decimal.Decimal  `json:"margin_per_litre"`
	DaysCovered    int              `json:"days_covered"`
	Products       []ProductSummary `json:"products"`
}

// GetPeriodSummary builds the per-product accrual summary for a
// station over a date range
func (s *MarginAccrualService) GetPeriodSummary(ctx context.Context, tenantID, stationID uuid.UUID, from, to time.Time) (*PeriodSummary, error) {
	records, err := s.accrualRepo.FindByStationDateRange(ctx, tenantID, stationID, from, to)
	if err != nil {
		return nil, err
	}

	summary := &PeriodSummary{
		StationID:   stationID,
		From:        from,
		To:          to,
		TotalLitres: decimal.Zero,
		TotalMargin: decimal.Zero,
	}

	byProduct := make(map[string]*ProductSummary)
	productOrder := make([]string, 0)
	days := make(map[string]struct{})

	for _, record := range records {
		summary.TotalLitres = summary.TotalLitres.Add(record.LitresSold)
		summary.TotalMargin = summary.TotalMargin.Add(record.MarginAmount)
		days[record.AccrualDate.Format("2006-01-02")] = struct{}{}

		product, ok := byProduct[record.Product]
		if !ok {
			product = &ProductSummary{Product: record.Product, LitresSold: decimal.Zero, Margin: decimal.Zero}
			byProduct[record.Product] = product
			productOrder = append(productOrder, record.Product)
		}
		product.LitresSold = product.LitresSold.Add(record.LitresSold)
		product.Margin = product.Margin.Add(record.MarginAmount)
		product.RecordCount++
	}

	for _, name := range productOrder {
		summary.Products = append(summary.Products, *byProduct[name])
	}

	summary.DaysCovered = len(days)
	if summary.TotalLitres.IsPositive() {
		summary.MarginPerLitre = summary.TotalMargin.Div(summary.TotalLitres).Round(4)
	}

	return summary, nil
}

// TrendPoint is one day in a rolling accrual trend
type TrendPoint struct {
	Date           time.Time       `json:"date"`
	LitresSold     decimal.Decimal `json:"litres_sold"`
	Margin         decimal.Decimal `json:"margin"`
	MarginPerLitre decimal.Decimal `json:"margin_per_litre"`
}

// Trend is the N-day rolling accrual trend for a station
type Trend struct {
	StationID uuid.UUID    `json:"station_id"`
	Days      int          `json:"days"`
	Points    []TrendPoint `json:"points"`
	BestDay   *TrendPoint  `json:"best_day,omitempty"`
	WorstDay  *TrendPoint  `json:"worst_day,omitempty"`
}

// GetTrend builds the rolling daily trend ending at the given date
func (s *MarginAccrualService) GetTrend(ctx context.Context, tenantID, stationID uuid.UUID, endDate time.Time, days int) (*Trend, error) {
	if days <= 0 {
		return nil, shared.NewDomainError("VALIDATION_FAILURE", "Trend length must be positive")
	}

	from := endDate.AddDate(0, 0, -(days - 1))
	records, err := s.accrualRepo.FindByStationDateRange(ctx, tenantID, stationID, from, endDate)
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]*TrendPoint)
	order := make([]string, 0)
	for _, record := range records {
		key := record.AccrualDate.Format("2006-01-02")
		point, ok := byDay[key]
		if !ok {
			point = &TrendPoint{Date: record.AccrualDate, LitresSold: decimal.Zero, Margin: decimal.Zero}
			byDay[key] = point
			order = append(order, key)
		}
		point.LitresSold = point.LitresSold.Add(record.LitresSold)
		point.Margin = point.Margin.Add(record.MarginAmount)
	}

	trend := &Trend{StationID: stationID, Days: days, Points: make([]TrendPoint, 0, len(order))}
	for _, key := range order {
		point := byDay[key]
		if point.LitresSold.IsPositive() {
			point.MarginPerLitre = point.Margin.Div(point.LitresSold).Round(4)
		}
		trend.Points = append(trend.Points, *point)

		if trend.BestDay == nil || point.Margin.GreaterThan(trend.BestDay.Margin) {
			best := *point
			trend.BestDay = &best
		}
		if trend.WorstDay == nil || point.Margin.LessThan(trend.WorstDay.Margin) {
			worst := *point
			trend.WorstDay = &worst
		}
	}

	return trend, nil
}

// GetByID returns one accrual record
func (s *MarginAccrualService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*accrual.MarginAccrualRecord, error) {
	record, err := s.accrualRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Accrual record not found")
	}
	return record, nil
}

func (s *MarginAccrualService) publish(ctx context.Context, event shared.DomainEvent) {
	if s.eventBus == nil {
		return
	}
	_ = s.eventBus.Publish(ctx, event)
}

func (s *MarginAccrualService) publishAggregate(ctx context.Context, record *accrual.MarginAccrualRecord) {
	if s.eventBus == nil {
		return
	}
	for _, event := range record.GetDomainEvents() {
		_ = s.eventBus.Publish(ctx, event)
	}
	record.ClearDomainEvents()
}
