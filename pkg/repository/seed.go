package repository

import (
	"context"
	"fmt"
	"time"

	"flow-efficiency/pkg/models"

	"github.com/shopspring/decimal"
)

func record(id string, metric models.MetricName, period models.Period, start, end models.Date) models.DealRecord {
	return models.DealRecord{
		ID:           id,
		Metric:       metric,
		Period:       period,
		StartDate:    start,
		EndDate:      end,
		DurationDays: start.DaysUntil(end),
	}
}

func jan(day int) models.Date { return models.NewDate(2024, time.January, day) }

// SampleDealRecords returns the dashboard's sample records. The 1m bucket
// carries the metric detail dataset; longer periods are left empty so the
// dashboard shows the fallback KPIs for them.
func SampleDealRecords() []models.DealRecord {
	lead, quote := models.MetricLeadConversion, models.MetricQuoteConversion
	week, fortnight, month := models.Period7Days, models.Period14Days, models.Period1Month

	return []models.DealRecord{
		record("D001", lead, week, jan(15), jan(18)),
		record("D002", lead, week, jan(16), jan(28)),
		record("D003", quote, week, jan(17), jan(25)),

		record("D001", lead, fortnight, jan(15), jan(18)),
		record("D002", lead, fortnight, jan(16), jan(28)),
		record("D004", lead, fortnight, jan(10), jan(25)),
		record("D003", quote, fortnight, jan(17), jan(25)),
		record("D005", quote, fortnight, jan(12), jan(14)),

		record("D001", lead, month, jan(15), jan(18)),
		record("D002", lead, month, jan(16), jan(28)),
		record("D004", lead, month, jan(10), jan(25)),
		record("D007", lead, month, jan(5), models.NewDate(2024, time.February, 19)),
		record("D008", lead, month, jan(12), jan(20)),
		record("D003", quote, month, jan(17), jan(19)),
		record("D005", quote, month, jan(12), jan(20)),
		record("D006", quote, month, jan(8), jan(15)),
		record("D009", quote, month, jan(1), jan(29)),
	}
}

func mapping(id string, stage models.CanonicalStage, startPipeline, startStage, endPipeline, endStage string) models.CanonicalMapping {
	return models.CanonicalMapping{
		ID:             id,
		CanonicalStage: stage,
		StartPipeline:  startPipeline,
		StartStage:     startStage,
		EndPipeline:    endPipeline,
		EndStage:       endStage,
	}
}

// SampleMappings returns the initial canonical stage mapping set
func SampleMappings() []models.CanonicalMapping {
	const sales, fulfillment = "Sales Pipeline", "Fulfillment Pipeline"
	return []models.CanonicalMapping{
		mapping("1", "Lead Generated", sales, "Lead In", sales, "Qualified"),
		mapping("2", "Qualification", sales, "Qualified", sales, "Proposal Made"),
		mapping("3", "Proposal Sent", sales, "Proposal Made", sales, "Negotiation"),
		mapping("4", "Negotiation", sales, "Negotiation", sales, "Won"),
		mapping("5", "Order Received", sales, "Won", fulfillment, "Goods Ordered"),
		mapping("6", "Procurement", fulfillment, "Goods Ordered", fulfillment, "In Production"),
		mapping("7", "Manufacturing", fulfillment, "In Production", fulfillment, "Shipped"),
		mapping("8", "Delivery", fulfillment, "Shipped", fulfillment, "Paid"),
	}
}

type sampleDeal struct {
	deal        models.Deal
	transitions []models.StageTransition
}

func at(value string) *time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return &t
}

func sampleDeals() []sampleDeal {
	return []sampleDeal{
		{
			deal: models.Deal{ID: "1", Name: "Acme Corp - Software License", Value: decimal.NewFromInt(50000)},
			transitions: []models.StageTransition{
				{Stage: "Lead Generated", Start: at("2024-01-15T09:00:00Z"), End: at("2024-01-15T09:00:00Z")},
				{Stage: "Qualification", Start: at("2024-01-15T09:00:00Z"), End: at("2024-01-18T17:00:00Z")},
				{Stage: "Proposal Sent", Start: at("2024-01-18T17:00:00Z"), End: at("2024-01-25T14:30:00Z")},
				{Stage: "Negotiation", Start: at("2024-01-25T14:30:00Z"), End: at("2024-02-02T16:00:00Z")},
				{Stage: "Order Received", Start: at("2024-02-02T16:00:00Z"), End: at("2024-02-05T10:00:00Z")},
				{Stage: "Procurement", Start: at("2024-02-05T10:00:00Z")},
			},
		},
		{
			deal: models.Deal{ID: "2", Name: "TechStart - Consulting Services", Value: decimal.NewFromInt(25000)},
			transitions: []models.StageTransition{
				{Stage: "Lead Generated", Start: at("2024-02-01T10:00:00Z"), End: at("2024-02-02T10:00:00Z")},
				{Stage: "Qualification", Start: at("2024-02-02T10:00:00Z")},
			},
		},
		{
			deal: models.Deal{ID: "3", Name: "Global Inc - Hardware Purchase", Value: decimal.NewFromInt(75000)},
		},
	}
}

// Seed loads the sample dataset into an empty store. A store that already
// holds mappings or deals is left untouched.
func Seed(ctx context.Context, store *Store) (bool, error) {
	mappings, err := store.Mappings.List(ctx)
	if err != nil {
		return false, err
	}
	deals, err := store.Deals.List(ctx)
	if err != nil {
		return false, err
	}
	if len(mappings) > 0 || len(deals) > 0 {
		return false, nil
	}

	for _, rec := range SampleDealRecords() {
		rec := rec
		if err := store.Records.Create(ctx, &rec); err != nil {
			return false, fmt.Errorf("seed deal record %s/%s: %w", rec.Period, rec.ID, err)
		}
	}

	var snapshot []models.CanonicalMapping
	for _, m := range SampleMappings() {
		m := m
		if err := store.Mappings.Create(ctx, &m); err != nil {
			return false, fmt.Errorf("seed mapping %s: %w", m.ID, err)
		}
		snapshot = append(snapshot, m)
	}

	created := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	versions := []models.MappingVersion{
		{ID: "v1", Version: "1.0", EffectiveDate: jan(1), CreatedBy: "Admin", Status: models.VersionActive, CreatedAt: created, Mappings: snapshot},
		{ID: "v2", Version: "1.1", EffectiveDate: models.NewDate(2024, time.February, 15), CreatedBy: "Admin", Status: models.VersionDraft, CreatedAt: created.Add(time.Hour), Mappings: snapshot},
	}
	for _, v := range versions {
		v := v
		if err := store.Versions.Create(ctx, &v); err != nil {
			return false, fmt.Errorf("seed version %s: %w", v.Version, err)
		}
	}

	for _, sd := range sampleDeals() {
		deal := sd.deal
		if err := store.Deals.Create(ctx, &deal); err != nil {
			return false, fmt.Errorf("seed deal %s: %w", deal.ID, err)
		}
		for _, t := range sd.transitions {
			if err := store.Deals.SaveTransition(ctx, deal.ID, t); err != nil {
				return false, fmt.Errorf("seed transition %s/%s: %w", deal.ID, t.Stage, err)
			}
		}
	}

	return true, nil
}
