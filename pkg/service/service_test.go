package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"testing"

	"flow-efficiency/pkg/models"
	"flow-efficiency/pkg/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockDealRecordRepository is a mock implementation for testing
type MockDealRecordRepository struct {
	mock.Mock
}

func (m *MockDealRecordRepository) ListByPeriod(ctx context.Context, period models.Period) ([]models.DealRecord, error) {
	args := m.Called(ctx, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.DealRecord), args.Error(1)
}

func (m *MockDealRecordRepository) ListByMetricAndPeriod(ctx context.Context, metric models.MetricName, period models.Period) ([]models.DealRecord, error) {
	args := m.Called(ctx, metric, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.DealRecord), args.Error(1)
}

func (m *MockDealRecordRepository) Create(ctx context.Context, record *models.DealRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rec(id string, metric models.MetricName, period models.Period, days int) models.DealRecord {
	start := models.NewDate(2024, 1, 1)
	return models.DealRecord{
		ID:           id,
		Metric:       metric,
		Period:       period,
		StartDate:    start,
		EndDate:      models.Date{Time: start.AddDate(0, 0, days)},
		DurationDays: days,
	}
}

func summaryFor(t *testing.T, summaries []models.MetricSummary, metric models.MetricName) models.MetricSummary {
	t.Helper()
	for _, s := range summaries {
		if s.Title == metric {
			return s
		}
	}
	t.Fatalf("no summary for %s", metric)
	return models.MetricSummary{}
}

// TestAggregateSevenDaySample checks the home page numbers for the 7d sample
func TestAggregateSevenDaySample(t *testing.T) {
	records := []models.DealRecord{
		rec("D001", models.MetricLeadConversion, models.Period7Days, 3),
		rec("D002", models.MetricLeadConversion, models.Period7Days, 12),
		rec("D003", models.MetricQuoteConversion, models.Period7Days, 8),
	}

	summaries := Aggregate(models.Period7Days, records)
	require.Len(t, summaries, 7)
	for i, metric := range models.MetricNames() {
		assert.Equal(t, metric, summaries[i].Title, "fixed metric order")
	}

	lead := summaryFor(t, summaries, models.MetricLeadConversion)
	assert.Equal(t, 8, lead.Average) // 7.5 rounds half up
	assert.Equal(t, 3, lead.Best)
	assert.Equal(t, 12, lead.Worst)
	assert.Equal(t, models.TrendStable, lead.Trend)
	assert.False(t, lead.Fallback)

	quote := summaryFor(t, summaries, models.MetricQuoteConversion)
	assert.Equal(t, models.MetricSummary{Title: models.MetricQuoteConversion, Average: 8, Best: 8, Worst: 8, Trend: models.TrendStable}, quote)

	order := summaryFor(t, summaries, models.MetricOrderConversion)
	assert.Equal(t, models.MetricSummary{Title: models.MetricOrderConversion, Average: 15, Best: 5, Worst: 60, Trend: models.TrendUp, Fallback: true}, order)
}

// TestAggregateFallbacks checks every metric falls back when nothing matches
func TestAggregateFallbacks(t *testing.T) {
	records := []models.DealRecord{
		rec("D001", models.MetricLeadConversion, models.Period7Days, 3),
	}

	summaries := Aggregate(models.Period12Months, records)
	require.Len(t, summaries, 7)
	for _, s := range summaries {
		assert.True(t, s.Fallback, s.Title)
		fb := fallbackKPIs[s.Title]
		assert.Equal(t, fb.average, s.Average)
		assert.Equal(t, fb.best, s.Best)
		assert.Equal(t, fb.worst, s.Worst)
		assert.Equal(t, fb.trend, s.Trend)
	}

	manufacturing := summaryFor(t, Aggregate(models.Period3Months, nil), models.MetricManufacturing)
	assert.Equal(t, 35, manufacturing.Average)
	assert.Equal(t, models.TrendDown, manufacturing.Trend)
}

// TestAggregateProperties checks min <= average <= max on generated sets
func TestAggregateProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		n := 1 + rng.Intn(9)
		var records []models.DealRecord
		sum, lo, hi := 0, 1<<30, -1
		for j := 0; j < n; j++ {
			d := rng.Intn(120)
			sum += d
			if d < lo {
				lo = d
			}
			if d > hi {
				hi = d
			}
			records = append(records, rec("D", models.MetricDelivery, models.Period6Months, d))
		}

		s := summaryFor(t, Aggregate(models.Period6Months, records), models.MetricDelivery)
		assert.Equal(t, lo, s.Best)
		assert.Equal(t, hi, s.Worst)
		assert.LessOrEqual(t, s.Best, s.Average)
		assert.LessOrEqual(t, s.Average, s.Worst)
		// half-up integer rounding of sum/n
		assert.Equal(t, (2*sum+n)/(2*n), s.Average)
	}
}

func TestKPIServiceSummaries(t *testing.T) {
	ctx := context.Background()

	t.Run("Known period", func(t *testing.T) {
		repo := new(MockDealRecordRepository)
		repo.On("ListByPeriod", ctx, models.Period14Days).Return([]models.DealRecord{
			rec("D004", models.MetricLeadConversion, models.Period14Days, 15),
		}, nil)

		summaries, err := NewKPIService(repo, testLogger()).Summaries(ctx, models.Period14Days)
		require.NoError(t, err)
		assert.Equal(t, 15, summaryFor(t, summaries, models.MetricLeadConversion).Average)
		repo.AssertExpectations(t)
	})

	t.Run("Unknown period uses default", func(t *testing.T) {
		repo := new(MockDealRecordRepository)
		repo.On("ListByPeriod", ctx, models.DefaultPeriod).Return(nil, nil)

		summaries, err := NewKPIService(repo, testLogger()).Summaries(ctx, "5y")
		require.NoError(t, err)
		assert.Len(t, summaries, 7)
		repo.AssertExpectations(t)
	})

	t.Run("Repository failure", func(t *testing.T) {
		repo := new(MockDealRecordRepository)
		repo.On("ListByPeriod", ctx, models.Period7Days).Return(nil, errors.New("connection reset"))

		_, err := NewKPIService(repo, testLogger()).Summaries(ctx, models.Period7Days)
		assert.Error(t, err)
	})
}

func TestKPIServiceDetail(t *testing.T) {
	ctx := context.Background()
	lead, month := models.MetricLeadConversion, models.Period1Month

	repo := new(MockDealRecordRepository)
	repo.On("ListByMetricAndPeriod", ctx, lead, month).Return([]models.DealRecord{
		rec("D001", lead, month, 3),
		rec("D002", lead, month, 12),
		rec("D004", lead, month, 15),
		rec("D007", lead, month, 45),
		rec("D008", lead, month, 8),
	}, nil)
	repo.On("ListByMetricAndPeriod", ctx, models.DefaultMetric, models.Period3Months).Return(nil, nil)

	svc := NewKPIService(repo, testLogger())

	detail, err := svc.Detail(ctx, lead, month)
	require.NoError(t, err)
	assert.Equal(t, "Last 1 month", detail.PeriodLabel)
	assert.Equal(t, 17, detail.Average) // 83 / 5 = 16.6
	assert.Equal(t, 3, detail.Best)
	assert.Equal(t, 45, detail.Worst)
	require.Len(t, detail.Deals, 5)

	ranks := map[string]models.DealRank{}
	for _, row := range detail.Deals {
		ranks[row.ID] = row.Rank
	}
	assert.Equal(t, models.RankBest, ranks["D001"])
	assert.Equal(t, models.RankWorst, ranks["D007"])
	assert.Equal(t, models.RankNormal, ranks["D002"])

	// no period selected opens the detail bucket
	defaulted, err := svc.Detail(ctx, lead, "")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultDetailPeriod, defaulted.Period)
	assert.Len(t, defaulted.Deals, 5)

	empty, err := svc.Detail(ctx, "Unknown Metric", models.Period3Months)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultMetric, empty.Metric)
	assert.Equal(t, models.Period3Months, empty.Period)
	assert.Zero(t, empty.Average)
	assert.Zero(t, empty.Best)
	assert.Zero(t, empty.Worst)
	assert.NotNil(t, empty.Deals)
	assert.Empty(t, empty.Deals)

	repo.AssertExpectations(t)
}

func TestDealRecordServiceIngest(t *testing.T) {
	ctx := context.Background()
	valid := models.IngestDealRecordRequest{
		ID:           "D010",
		Metric:       models.MetricPayment,
		Period:       models.Period3Months,
		StartDate:    models.NewDate(2024, 3, 1),
		EndDate:      models.NewDate(2024, 3, 11),
		DurationDays: 10,
	}

	t.Run("Valid record is stored", func(t *testing.T) {
		repo := new(MockDealRecordRepository)
		repo.On("Create", ctx, mock.MatchedBy(func(r *models.DealRecord) bool {
			return r.ID == "D010" && r.DurationDays == 10
		})).Return(nil)

		stored, err := NewDealRecordService(repo, testLogger()).Ingest(ctx, valid)
		require.NoError(t, err)
		assert.Equal(t, models.MetricPayment, stored.Metric)
		repo.AssertExpectations(t)
	})

	t.Run("Malformed record is rejected before storage", func(t *testing.T) {
		repo := new(MockDealRecordRepository)
		bad := valid
		bad.DurationDays = -2

		_, err := NewDealRecordService(repo, testLogger()).Ingest(ctx, bad)
		assert.ErrorIs(t, err, ErrInvalidRecord)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("End before start is rejected", func(t *testing.T) {
		repo := new(MockDealRecordRepository)
		bad := valid
		bad.EndDate = models.NewDate(2024, 2, 1)

		_, err := NewDealRecordService(repo, testLogger()).Ingest(ctx, bad)
		assert.ErrorIs(t, err, ErrInvalidRecord)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("Duplicate id in period", func(t *testing.T) {
		repo := new(MockDealRecordRepository)
		repo.On("Create", ctx, mock.Anything).Return(repository.ErrConflict)

		_, err := NewDealRecordService(repo, testLogger()).Ingest(ctx, valid)
		assert.ErrorIs(t, err, ErrDuplicateRecord)
	})
}

// BenchmarkAggregate benchmarks KPI aggregation over a full period bucket
func BenchmarkAggregate(b *testing.B) {
	records := repository.SampleDealRecords()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Aggregate(models.Period1Month, records)
	}
}
