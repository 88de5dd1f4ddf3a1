package repository

import (
	"context"
	"sort"
	"sync"

	"flow-efficiency/pkg/models"
)

// NewMemoryStore returns an empty process-local store
func NewMemoryStore() *Store {
	return &Store{
		Records:  NewMemoryDealRecordRepository(),
		Mappings: NewMemoryMappingRepository(),
		Versions: NewMemoryVersionRepository(),
		Deals:    NewMemoryDealRepository(),
	}
}

// MemoryDealRecordRepository implements DealRecordRepository
type MemoryDealRecordRepository struct {
	mu      sync.RWMutex
	records []models.DealRecord
}

func NewMemoryDealRecordRepository() *MemoryDealRecordRepository {
	return &MemoryDealRecordRepository{}
}

func (r *MemoryDealRecordRepository) ListByPeriod(ctx context.Context, period models.Period) ([]models.DealRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.DealRecord
	for _, rec := range r.records {
		if rec.Period == period {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *MemoryDealRecordRepository) ListByMetricAndPeriod(ctx context.Context, metric models.MetricName, period models.Period) ([]models.DealRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.DealRecord
	for _, rec := range r.records {
		if rec.Period == period && rec.Metric == metric {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *MemoryDealRecordRepository) Create(ctx context.Context, record *models.DealRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.records {
		if rec.Period == record.Period && rec.ID == record.ID {
			return ErrConflict
		}
	}
	r.records = append(r.records, *record)
	return nil
}

// MemoryMappingRepository implements MappingRepository
type MemoryMappingRepository struct {
	mu       sync.RWMutex
	mappings []models.CanonicalMapping
	next     int
}

func NewMemoryMappingRepository() *MemoryMappingRepository {
	return &MemoryMappingRepository{next: 1}
}

func (r *MemoryMappingRepository) List(ctx context.Context) ([]models.CanonicalMapping, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.CanonicalMapping, len(r.mappings))
	copy(out, r.mappings)
	return out, nil
}

func (r *MemoryMappingRepository) Create(ctx context.Context, mapping *models.CanonicalMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.mappings {
		if m.ID == mapping.ID || m.CanonicalStage == mapping.CanonicalStage {
			return ErrConflict
		}
	}
	mapping.Position = r.next
	r.next++
	r.mappings = append(r.mappings, *mapping)
	return nil
}

func (r *MemoryMappingRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, m := range r.mappings {
		if m.ID == id {
			r.mappings = append(r.mappings[:i], r.mappings[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// MemoryVersionRepository implements VersionRepository
type MemoryVersionRepository struct {
	mu       sync.RWMutex
	versions []models.MappingVersion
}

func NewMemoryVersionRepository() *MemoryVersionRepository {
	return &MemoryVersionRepository{}
}

func (r *MemoryVersionRepository) List(ctx context.Context) ([]models.MappingVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.MappingVersion, len(r.versions))
	for i, v := range r.versions {
		out[i] = cloneVersion(v)
	}
	// versions are stored in creation order, so a stable sort keeps ties in it
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EffectiveDate.Before(out[j].EffectiveDate.Time)
	})
	return out, nil
}

func (r *MemoryVersionRepository) GetByID(ctx context.Context, id string) (*models.MappingVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, v := range r.versions {
		if v.ID == id {
			out := cloneVersion(v)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryVersionRepository) Create(ctx context.Context, version *models.MappingVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, v := range r.versions {
		if v.ID == version.ID || v.Version == version.Version {
			return ErrConflict
		}
	}
	r.versions = append(r.versions, cloneVersion(*version))
	return nil
}

func (r *MemoryVersionRepository) SetActive(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	found := false
	for _, v := range r.versions {
		if v.ID == id {
			found = true
			break
		}
	}
	if !found {
		return ErrNotFound
	}

	for i := range r.versions {
		if r.versions[i].ID == id {
			r.versions[i].Status = models.VersionActive
		} else {
			r.versions[i].Status = models.VersionDraft
		}
	}
	return nil
}

func cloneVersion(v models.MappingVersion) models.MappingVersion {
	v.Mappings = append([]models.CanonicalMapping(nil), v.Mappings...)
	return v
}

// MemoryDealRepository implements DealRepository
type MemoryDealRepository struct {
	mu          sync.RWMutex
	deals       []models.Deal
	transitions map[string][]models.StageTransition
}

func NewMemoryDealRepository() *MemoryDealRepository {
	return &MemoryDealRepository{transitions: make(map[string][]models.StageTransition)}
}

func (r *MemoryDealRepository) List(ctx context.Context) ([]models.Deal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Deal, len(r.deals))
	copy(out, r.deals)
	return out, nil
}

func (r *MemoryDealRepository) GetByID(ctx context.Context, dealID string) (*models.Deal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, d := range r.deals {
		if d.ID == dealID {
			deal := d
			return &deal, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryDealRepository) Create(ctx context.Context, deal *models.Deal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range r.deals {
		if d.ID == deal.ID {
			return ErrConflict
		}
	}
	r.deals = append(r.deals, *deal)
	return nil
}

func (r *MemoryDealRepository) GetTransitions(ctx context.Context, dealID string) ([]models.StageTransition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.hasDeal(dealID) {
		return nil, ErrNotFound
	}
	out := make([]models.StageTransition, len(r.transitions[dealID]))
	copy(out, r.transitions[dealID])
	return out, nil
}

// SaveTransition inserts or replaces the transition for its stage
func (r *MemoryDealRepository) SaveTransition(ctx context.Context, dealID string, transition models.StageTransition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.hasDeal(dealID) {
		return ErrNotFound
	}
	list := r.transitions[dealID]
	for i, t := range list {
		if t.Stage == transition.Stage {
			list[i] = transition
			return nil
		}
	}
	r.transitions[dealID] = append(list, transition)
	return nil
}

func (r *MemoryDealRepository) hasDeal(dealID string) bool {
	for _, d := range r.deals {
		if d.ID == dealID {
			return true
		}
	}
	return false
}
