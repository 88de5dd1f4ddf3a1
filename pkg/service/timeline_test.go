package service

import (
	"context"
	"testing"
	"time"

	"flow-efficiency/pkg/catalog"
	"flow-efficiency/pkg/models"
	"flow-efficiency/pkg/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(value string) *time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return &t
}

var fiveStages = []models.CanonicalStage{"A", "B", "C", "D", "E"}

func statuses(stages []models.TimelineStage) []models.StageStatus {
	out := make([]models.StageStatus, len(stages))
	for i, s := range stages {
		out[i] = s.Status
	}
	return out
}

func TestProjectCompletedCurrentFuture(t *testing.T) {
	now := *ts("2024-01-20T09:00:00Z")
	transitions := []models.StageTransition{
		{Stage: "A", Start: ts("2024-01-01T00:00:00Z"), End: ts("2024-01-03T00:00:00Z")},
		{Stage: "B", Start: ts("2024-01-03T00:00:00Z"), End: ts("2024-01-10T00:00:00Z")},
		{Stage: "C", Start: ts("2024-01-10T09:00:00Z")},
	}

	stages, err := Project(fiveStages, transitions, now)
	require.NoError(t, err)
	assert.Equal(t, []models.StageStatus{
		models.StageCompleted,
		models.StageCompleted,
		models.StageCurrent,
		models.StageFuture,
		models.StageFuture,
	}, statuses(stages))

	assert.Equal(t, 2, stages[0].DurationDays)
	assert.Equal(t, 7, stages[1].DurationDays)
	assert.Equal(t, 10, stages[2].DurationDays)
	assert.Nil(t, stages[2].End)
	for _, s := range stages[3:] {
		assert.Nil(t, s.Start)
		assert.Nil(t, s.End)
		assert.Zero(t, s.DurationDays)
	}
}

func TestProjectNothingStarted(t *testing.T) {
	stages, err := Project(fiveStages, nil, time.Now())
	require.NoError(t, err)
	for _, s := range stages {
		assert.Equal(t, models.StageFuture, s.Status)
	}

	// a stage with an empty record is still future
	stages, err = Project(fiveStages, []models.StageTransition{{Stage: "A"}}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.StageFuture, stages[0].Status)
}

func TestProjectAllStartedCompletedHasNoCurrent(t *testing.T) {
	transitions := []models.StageTransition{
		{Stage: "A", Start: ts("2024-01-01T00:00:00Z"), End: ts("2024-01-02T00:00:00Z")},
		{Stage: "B", Start: ts("2024-01-02T00:00:00Z"), End: ts("2024-01-04T00:00:00Z")},
	}
	stages, err := Project(fiveStages, transitions, time.Now())
	require.NoError(t, err)
	assert.Equal(t, []models.StageStatus{
		models.StageCompleted,
		models.StageCompleted,
		models.StageFuture,
		models.StageFuture,
		models.StageFuture,
	}, statuses(stages))
}

func TestProjectRejectsInconsistentInput(t *testing.T) {
	tests := []struct {
		name        string
		transitions []models.StageTransition
	}{
		{"Unknown stage", []models.StageTransition{{Stage: "Z", Start: ts("2024-01-01T00:00:00Z")}}},
		{"End without start", []models.StageTransition{{Stage: "A", End: ts("2024-01-01T00:00:00Z")}}},
		{"End before start", []models.StageTransition{{Stage: "A", Start: ts("2024-01-05T00:00:00Z"), End: ts("2024-01-01T00:00:00Z")}}},
		{"Skipped stage", []models.StageTransition{
			{Stage: "A", Start: ts("2024-01-01T00:00:00Z"), End: ts("2024-01-02T00:00:00Z")},
			{Stage: "C", Start: ts("2024-01-02T00:00:00Z")},
		}},
		{"Open stage followed by started stage", []models.StageTransition{
			{Stage: "A", Start: ts("2024-01-01T00:00:00Z")},
			{Stage: "B", Start: ts("2024-01-02T00:00:00Z")},
		}},
		{"Duplicate stage", []models.StageTransition{
			{Stage: "A", Start: ts("2024-01-01T00:00:00Z")},
			{Stage: "A", Start: ts("2024-01-02T00:00:00Z")},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Project(fiveStages, tt.transitions, time.Now())
			assert.ErrorIs(t, err, ErrInconsistentTimeline)
		})
	}
}

func TestWholeDays(t *testing.T) {
	tests := []struct {
		name     string
		d        time.Duration
		expected int
	}{
		{"Same instant", 0, 0},
		{"Just under half a day", 11 * time.Hour, 0},
		{"Half a day rounds up", 12 * time.Hour, 1},
		{"Qualification sample", 3*24*time.Hour + 8*time.Hour, 3},
		{"Proposal sample", 6*24*time.Hour + 21*time.Hour + 30*time.Minute, 7},
		{"Clock skew", -time.Hour, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, wholeDays(tt.d))
		})
	}
}

func TestTimelineServiceSampleDeals(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	_, err := repository.Seed(ctx, store)
	require.NoError(t, err)

	svc := NewTimelineService(store.Deals, testLogger()).
		WithClock(func() time.Time { return *ts("2024-02-17T10:00:00Z") })

	deals, err := svc.ListDeals(ctx)
	require.NoError(t, err)
	require.Len(t, deals, 3)

	timeline, err := svc.Timeline(ctx, "1")
	require.NoError(t, err)
	require.Len(t, timeline.Stages, len(catalog.CanonicalStages()))
	require.NotNil(t, timeline.Current)
	assert.Equal(t, catalog.StageProcurement, *timeline.Current)

	durations := make([]int, len(timeline.Stages))
	for i, s := range timeline.Stages {
		durations[i] = s.DurationDays
	}
	assert.Equal(t, []int{0, 3, 7, 8, 3, 12, 0, 0, 0}, durations)

	current := 0
	seenCurrent := false
	for _, s := range timeline.Stages {
		switch s.Status {
		case models.StageCurrent:
			current++
			seenCurrent = true
		case models.StageCompleted:
			assert.False(t, seenCurrent, "no completed stage after current")
		}
	}
	assert.Equal(t, 1, current)

	notStarted, err := svc.Timeline(ctx, "3")
	require.NoError(t, err)
	assert.Nil(t, notStarted.Current)
	for _, s := range notStarted.Stages {
		assert.Equal(t, models.StageFuture, s.Status)
	}

	_, err = svc.Timeline(ctx, "404")
	assert.ErrorIs(t, err, ErrDealNotFound)
}
