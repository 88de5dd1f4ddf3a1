package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"flow-efficiency/pkg/models"
	"flow-efficiency/pkg/repository"

	"github.com/shopspring/decimal"
)

type fallbackKPI struct {
	average, best, worst int
	trend                models.Trend
}

// Shown when a period has no records for a metric
var fallbackKPIs = map[models.MetricName]fallbackKPI{
	models.MetricLeadConversion:  {12, 3, 45, models.TrendUp},
	models.MetricQuoteConversion: {8, 2, 28, models.TrendDown},
	models.MetricOrderConversion: {15, 5, 60, models.TrendUp},
	models.MetricProcurement:     {22, 10, 90, models.TrendStable},
	models.MetricManufacturing:   {35, 20, 120, models.TrendDown},
	models.MetricDelivery:        {7, 2, 21, models.TrendUp},
	models.MetricPayment:         {18, 1, 90, models.TrendStable},
}

// Aggregate computes one KPI card per metric, in dashboard order, from the
// records of a single period. Records of other periods are ignored.
func Aggregate(period models.Period, records []models.DealRecord) []models.MetricSummary {
	byMetric := make(map[models.MetricName][]int)
	for _, r := range records {
		if r.Period != period {
			continue
		}
		byMetric[r.Metric] = append(byMetric[r.Metric], r.DurationDays)
	}

	summaries := make([]models.MetricSummary, 0, len(fallbackKPIs))
	for _, metric := range models.MetricNames() {
		days := byMetric[metric]
		if len(days) == 0 {
			fb := fallbackKPIs[metric]
			summaries = append(summaries, models.MetricSummary{
				Title:    metric,
				Average:  fb.average,
				Best:     fb.best,
				Worst:    fb.worst,
				Trend:    fb.trend,
				Fallback: true,
			})
			continue
		}

		avg, best, worst := stats(days)
		summaries = append(summaries, models.MetricSummary{
			Title:   metric,
			Average: avg,
			Best:    best,
			Worst:   worst,
			// no trend history is kept for live data
			Trend: models.TrendStable,
		})
	}
	return summaries
}

// stats returns the half-up rounded mean, min and max of a non-empty slice
func stats(days []int) (avg, best, worst int) {
	best, worst = days[0], days[0]
	var sum int64
	for _, d := range days {
		sum += int64(d)
		if d < best {
			best = d
		}
		if d > worst {
			worst = d
		}
	}
	mean := decimal.NewFromInt(sum).Div(decimal.NewFromInt(int64(len(days))))
	return int(mean.Round(0).IntPart()), best, worst
}

// ResolvePeriod maps a query value to a period, falling back to the default
func ResolvePeriod(raw string) models.Period {
	if p, ok := models.ParsePeriod(raw); ok {
		return p
	}
	return models.DefaultPeriod
}

// ResolveDetailPeriod is ResolvePeriod for the metric detail page, which
// opens on its own default bucket
func ResolveDetailPeriod(raw string) models.Period {
	if p, ok := models.ParsePeriod(raw); ok {
		return p
	}
	return models.DefaultDetailPeriod
}

// ResolveMetric maps a query value to a metric, falling back to the default
func ResolveMetric(raw string) models.MetricName {
	if m, ok := models.ParseMetricName(raw); ok {
		return m
	}
	return models.DefaultMetric
}

// KPIService serves the dashboard home and metric detail pages
type KPIService struct {
	recordRepo repository.DealRecordRepository
	logger     *slog.Logger
}

func NewKPIService(recordRepo repository.DealRecordRepository, logger *slog.Logger) *KPIService {
	return &KPIService{
		recordRepo: recordRepo,
		logger:     logger,
	}
}

// Summaries returns the KPI cards for period
func (s *KPIService) Summaries(ctx context.Context, period models.Period) ([]models.MetricSummary, error) {
	if _, ok := models.ParsePeriod(string(period)); !ok {
		s.logger.Debug("unknown period, using default", "period", period)
		period = models.DefaultPeriod
	}

	records, err := s.recordRepo.ListByPeriod(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("failed to load deal records: %w", err)
	}
	return Aggregate(period, records), nil
}

// Detail returns the per-deal breakdown of one metric. Unlike the KPI
// cards, an empty breakdown reports zeros rather than fallbacks.
func (s *KPIService) Detail(ctx context.Context, metric models.MetricName, period models.Period) (*models.MetricDetail, error) {
	metric = ResolveMetric(string(metric))
	period = ResolveDetailPeriod(string(period))

	records, err := s.recordRepo.ListByMetricAndPeriod(ctx, metric, period)
	if err != nil {
		return nil, fmt.Errorf("failed to load deal records: %w", err)
	}

	detail := &models.MetricDetail{
		Metric:      metric,
		Period:      period,
		PeriodLabel: period.Label(),
		Deals:       make([]models.DealRow, 0, len(records)),
	}
	if len(records) == 0 {
		return detail, nil
	}

	days := make([]int, len(records))
	for i, r := range records {
		days[i] = r.DurationDays
	}
	detail.Average, detail.Best, detail.Worst = stats(days)

	for _, r := range records {
		rank := models.RankNormal
		switch r.DurationDays {
		case detail.Best:
			rank = models.RankBest
		case detail.Worst:
			rank = models.RankWorst
		}
		detail.Deals = append(detail.Deals, models.DealRow{DealRecord: r, Rank: rank})
	}
	return detail, nil
}

// DealRecordService handles deal record ingestion
type DealRecordService struct {
	recordRepo repository.DealRecordRepository
	logger     *slog.Logger
}

func NewDealRecordService(recordRepo repository.DealRecordRepository, logger *slog.Logger) *DealRecordService {
	return &DealRecordService{
		recordRepo: recordRepo,
		logger:     logger,
	}
}

// Ingest validates and stores a deal record
func (s *DealRecordService) Ingest(ctx context.Context, req models.IngestDealRecordRequest) (*models.DealRecord, error) {
	record := &models.DealRecord{
		ID:           req.ID,
		Metric:       req.Metric,
		Period:       req.Period,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		DurationDays: req.DurationDays,
	}
	if err := record.Validate(); err != nil {
		s.logger.Warn("rejected deal record", "id", req.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	if err := s.recordRepo.Create(ctx, record); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: %s in period %s", ErrDuplicateRecord, record.ID, record.Period)
		}
		return nil, fmt.Errorf("failed to store deal record: %w", err)
	}

	s.logger.Info("deal record ingested", "id", record.ID, "metric", record.Metric, "period", record.Period)
	return record, nil
}
