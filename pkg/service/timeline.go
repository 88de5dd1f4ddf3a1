package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"flow-efficiency/pkg/catalog"
	"flow-efficiency/pkg/models"
	"flow-efficiency/pkg/repository"
)

// Project derives the status and duration of every stage of a deal.
//
// stages is the full lifecycle in order; transitions is the sparse set of
// recorded stage boundaries. Stages up to the last started one must all have
// a start, and only that last one may still be open. Everything after it is
// future. When nothing has started, every stage is future.
func Project(stages []models.CanonicalStage, transitions []models.StageTransition, now time.Time) ([]models.TimelineStage, error) {
	position := make(map[models.CanonicalStage]int, len(stages))
	for i, s := range stages {
		position[s] = i
	}

	byStage := make(map[models.CanonicalStage]models.StageTransition, len(transitions))
	for _, t := range transitions {
		if _, ok := position[t.Stage]; !ok {
			return nil, fmt.Errorf("%w: unknown stage %q", ErrInconsistentTimeline, t.Stage)
		}
		if _, dup := byStage[t.Stage]; dup {
			return nil, fmt.Errorf("%w: stage %q recorded twice", ErrInconsistentTimeline, t.Stage)
		}
		if t.End != nil && t.Start == nil {
			return nil, fmt.Errorf("%w: stage %q has an end but no start", ErrInconsistentTimeline, t.Stage)
		}
		if t.End != nil && t.End.Before(*t.Start) {
			return nil, fmt.Errorf("%w: stage %q ends before it starts", ErrInconsistentTimeline, t.Stage)
		}
		byStage[t.Stage] = t
	}

	lastStarted := -1
	for i, s := range stages {
		if t, ok := byStage[s]; ok && t.Start != nil {
			lastStarted = i
		}
	}

	out := make([]models.TimelineStage, len(stages))
	for i, s := range stages {
		t := byStage[s]
		stage := models.TimelineStage{Name: s}

		switch {
		case i > lastStarted:
			stage.Status = models.StageFuture
		case t.Start == nil:
			return nil, fmt.Errorf("%w: stage %q was skipped", ErrInconsistentTimeline, s)
		case t.End != nil:
			stage.Status = models.StageCompleted
			stage.Start, stage.End = t.Start, t.End
			stage.DurationDays = wholeDays(t.End.Sub(*t.Start))
		case i == lastStarted:
			stage.Status = models.StageCurrent
			stage.Start = t.Start
			stage.DurationDays = wholeDays(now.Sub(*t.Start))
		default:
			return nil, fmt.Errorf("%w: stage %q is still open but a later stage has started", ErrInconsistentTimeline, s)
		}
		out[i] = stage
	}
	return out, nil
}

// wholeDays rounds a duration to the nearest day, half up; negatives clamp to 0
func wholeDays(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Hours() / 24))
}

// TimelineService serves the deal timeline page
type TimelineService struct {
	dealRepo repository.DealRepository
	logger   *slog.Logger
	now      func() time.Time
}

func NewTimelineService(dealRepo repository.DealRepository, logger *slog.Logger) *TimelineService {
	return &TimelineService{
		dealRepo: dealRepo,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the clock used for open stage durations
func (s *TimelineService) WithClock(now func() time.Time) *TimelineService {
	s.now = now
	return s
}

// ListDeals returns every deal available to the timeline selector
func (s *TimelineService) ListDeals(ctx context.Context) ([]models.Deal, error) {
	deals, err := s.dealRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list deals: %w", err)
	}
	return deals, nil
}

// Timeline projects the canonical lifecycle of one deal
func (s *TimelineService) Timeline(ctx context.Context, dealID string) (*models.Timeline, error) {
	deal, err := s.dealRepo.GetByID(ctx, dealID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrDealNotFound, dealID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deal: %w", err)
	}

	transitions, err := s.dealRepo.GetTransitions(ctx, dealID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transitions: %w", err)
	}

	stages, err := Project(catalog.CanonicalStages(), transitions, s.now())
	if err != nil {
		s.logger.Error("cannot project deal timeline", "deal", dealID, "error", err)
		return nil, err
	}

	timeline := &models.Timeline{Deal: *deal, Stages: stages}
	for _, st := range stages {
		if st.Status == models.StageCurrent {
			name := st.Name
			timeline.Current = &name
			break
		}
	}
	return timeline, nil
}
