package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MetricName identifies one of the lead-time KPIs shown on the dashboard
type MetricName string

const (
	MetricLeadConversion  MetricName = "Lead Conversion Time"
	MetricQuoteConversion MetricName = "Quote Conversion Time"
	MetricOrderConversion MetricName = "Order Conversion Time"
	MetricProcurement     MetricName = "Procurement Lead Time"
	MetricManufacturing   MetricName = "Manufacturing Lead Time"
	MetricDelivery        MetricName = "Delivery Lead Time"
	MetricPayment         MetricName = "Payment Lead Time"
)

// DefaultMetric is used when the metric query parameter is absent or unknown
const DefaultMetric = MetricLeadConversion

var metricNames = []MetricName{
	MetricLeadConversion,
	MetricQuoteConversion,
	MetricOrderConversion,
	MetricProcurement,
	MetricManufacturing,
	MetricDelivery,
	MetricPayment,
}

// MetricNames returns every metric in dashboard order
func MetricNames() []MetricName {
	out := make([]MetricName, len(metricNames))
	copy(out, metricNames)
	return out
}

// ParseMetricName reports whether s names a known metric
func ParseMetricName(s string) (MetricName, bool) {
	for _, m := range metricNames {
		if string(m) == s {
			return m, true
		}
	}
	return "", false
}

// Period is a reporting window used to bucket deal records
type Period string

const (
	Period7Days    Period = "7d"
	Period14Days   Period = "14d"
	Period1Month   Period = "1m"
	Period3Months  Period = "3m"
	Period6Months  Period = "6m"
	Period12Months Period = "12m"
)

// DefaultPeriod is used when the period query parameter is absent or unknown
const DefaultPeriod = Period7Days

// DefaultDetailPeriod is the metric detail page's period when none is chosen.
// It is the bucket holding the per-deal breakdown.
const DefaultDetailPeriod = Period1Month

var periodLabels = []struct {
	period Period
	label  string
}{
	{Period7Days, "Last 7 days"},
	{Period14Days, "Last 14 days"},
	{Period1Month, "Last 1 month"},
	{Period3Months, "Last 3 months"},
	{Period6Months, "Last 6 months"},
	{Period12Months, "Last 12 months"},
}

// Periods returns every period code in selector order
func Periods() []Period {
	out := make([]Period, 0, len(periodLabels))
	for _, p := range periodLabels {
		out = append(out, p.period)
	}
	return out
}

// ParsePeriod reports whether s is a known period code
func ParsePeriod(s string) (Period, bool) {
	for _, p := range periodLabels {
		if string(p.period) == s {
			return p.period, true
		}
	}
	return "", false
}

// Label returns the human readable period name, empty for unknown codes
func (p Period) Label() string {
	for _, pl := range periodLabels {
		if pl.period == p {
			return pl.label
		}
	}
	return ""
}

// PeriodOption is a period code paired with its label
type PeriodOption struct {
	Code  Period `json:"code"`
	Label string `json:"label"`
}

// Trend is the direction a KPI is moving
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// Date is a calendar date serialized as YYYY-MM-DD
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// NewDate truncates t to its calendar day in UTC
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{t}, nil
}

const secondsPerDay = 24 * 60 * 60

// DaysUntil returns the number of calendar days from d to other. It works on
// Unix seconds so ranges beyond the time.Duration limit stay exact.
func (d Date) DaysUntil(other Date) int {
	a := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(other.Year(), other.Month(), other.Day(), 0, 0, 0, 0, time.UTC)
	return int((b.Unix() - a.Unix()) / secondsPerDay)
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DealRecord is one deal's elapsed time for a metric within a period bucket
type DealRecord struct {
	ID           string     `json:"id" db:"id"`
	Metric       MetricName `json:"metric" db:"metric"`
	Period       Period     `json:"period" db:"period"`
	StartDate    Date       `json:"start_date" db:"start_date"`
	EndDate      Date       `json:"end_date" db:"end_date"`
	DurationDays int        `json:"duration_days" db:"duration_days"`
}

// Validate rejects records that must never reach the dashboard
func (r DealRecord) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("id is required")
	}
	if _, ok := ParseMetricName(string(r.Metric)); !ok {
		return fmt.Errorf("unknown metric %q", r.Metric)
	}
	if _, ok := ParsePeriod(string(r.Period)); !ok {
		return fmt.Errorf("unknown period %q", r.Period)
	}
	if r.StartDate.IsZero() || r.EndDate.IsZero() {
		return fmt.Errorf("start_date and end_date are required")
	}
	if r.DurationDays < 0 {
		return fmt.Errorf("duration_days must not be negative, got %d", r.DurationDays)
	}
	if r.EndDate.Before(r.StartDate.Time) {
		return fmt.Errorf("end_date %s is before start_date %s", r.EndDate, r.StartDate)
	}
	if days := r.StartDate.DaysUntil(r.EndDate); days != r.DurationDays {
		return fmt.Errorf("duration_days %d does not match date range of %d days", r.DurationDays, days)
	}
	return nil
}

// MetricSummary is the KPI card for one metric
type MetricSummary struct {
	Title    MetricName `json:"title"`
	Average  int        `json:"average"`
	Best     int        `json:"best"`
	Worst    int        `json:"worst"`
	Trend    Trend      `json:"trend"`
	Fallback bool       `json:"fallback"` // true when no records exist for the period
}

// DealRank marks a row on the metric detail page
type DealRank string

const (
	RankBest   DealRank = "best"
	RankWorst  DealRank = "worst"
	RankNormal DealRank = "normal"
)

// DealRow is a deal record annotated with its rank within the metric
type DealRow struct {
	DealRecord
	Rank DealRank `json:"rank"`
}

// MetricDetail backs the metric detail page
type MetricDetail struct {
	Metric      MetricName `json:"metric"`
	Period      Period     `json:"period"`
	PeriodLabel string     `json:"period_label"`
	Average     int        `json:"average"`
	Best        int        `json:"best"`
	Worst       int        `json:"worst"`
	Deals       []DealRow  `json:"deals"`
}

// CanonicalStage is a pipeline independent lifecycle phase
type CanonicalStage string

// CanonicalMapping ties a canonical stage to the pipeline stages bounding it
type CanonicalMapping struct {
	ID             string         `json:"id" db:"id"`
	CanonicalStage CanonicalStage `json:"canonical_stage" db:"canonical_stage"`
	StartPipeline  string         `json:"start_pipeline" db:"start_pipeline"`
	StartStage     string         `json:"start_stage" db:"start_stage"`
	EndPipeline    string         `json:"end_pipeline" db:"end_pipeline"`
	EndStage       string         `json:"end_stage" db:"end_stage"`
	Position       int            `json:"position" db:"position"`
}

// VersionStatus is the lifecycle state of a mapping version
type VersionStatus string

const (
	VersionActive VersionStatus = "Active"
	VersionDraft  VersionStatus = "Draft"
)

// MappingVersion is a dated snapshot of the mapping set
type MappingVersion struct {
	ID            string             `json:"id" db:"id"`
	Version       string             `json:"version" db:"version"`
	EffectiveDate Date               `json:"effective_date" db:"effective_date"`
	CreatedBy     string             `json:"created_by" db:"created_by"`
	Status        VersionStatus      `json:"status" db:"status"`
	CreatedAt     time.Time          `json:"created_at" db:"created_at"`
	Mappings      []CanonicalMapping `json:"mappings"`
}

// Deal is an opportunity whose stage history is shown on the timeline page
type Deal struct {
	ID    string          `json:"id" db:"id"`
	Name  string          `json:"name" db:"name"`
	Value decimal.Decimal `json:"value" db:"value"`
}

// StageTransition holds the recorded boundaries of one stage for a deal.
// A nil End means the stage is still open.
type StageTransition struct {
	Stage CanonicalStage `json:"stage" db:"stage"`
	Start *time.Time     `json:"start" db:"started_at"`
	End   *time.Time     `json:"end" db:"ended_at"`
}

// StageStatus is the projected state of a stage on a timeline
type StageStatus string

const (
	StageCompleted StageStatus = "completed"
	StageCurrent   StageStatus = "current"
	StageFuture    StageStatus = "future"
)

// TimelineStage is one projected row of a deal timeline
type TimelineStage struct {
	Name         CanonicalStage `json:"name"`
	Start        *time.Time     `json:"start"`
	End          *time.Time     `json:"end"`
	DurationDays int            `json:"duration_days"`
	Status       StageStatus    `json:"status"`
}

// Timeline is a deal with its projected stages
type Timeline struct {
	Deal    Deal            `json:"deal"`
	Stages  []TimelineStage `json:"stages"`
	Current *CanonicalStage `json:"current"` // NULL = no stage in progress
}

// IngestDealRecordRequest represents API request to add a deal record
type IngestDealRecordRequest struct {
	ID           string     `json:"id"`
	Metric       MetricName `json:"metric"`
	Period       Period     `json:"period"`
	StartDate    Date       `json:"start_date"`
	EndDate      Date       `json:"end_date"`
	DurationDays int        `json:"duration_days"`
}

// AddMappingRequest represents API request to add a stage mapping
type AddMappingRequest struct {
	CanonicalStage CanonicalStage `json:"canonical_stage"`
	StartPipeline  string         `json:"start_pipeline"`
	StartStage     string         `json:"start_stage"`
	EndPipeline    string         `json:"end_pipeline"`
	EndStage       string         `json:"end_stage"`
}

// CreateVersionRequest represents API request to snapshot the mapping set
type CreateVersionRequest struct {
	Version       string `json:"version"`
	EffectiveDate Date   `json:"effective_date"`
	CreatedBy     string `json:"created_by"`
}
