package repository

import (
	"context"
	"errors"
	"fmt"

	"flow-efficiency/pkg/config"
	"flow-efficiency/pkg/models"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a uniqueness constraint is violated
	ErrConflict = errors.New("conflict: entity already exists")
)

// DealRecordRepository handles deal record persistence. Records are
// append-only.
type DealRecordRepository interface {
	ListByPeriod(ctx context.Context, period models.Period) ([]models.DealRecord, error)
	ListByMetricAndPeriod(ctx context.Context, metric models.MetricName, period models.Period) ([]models.DealRecord, error)
	Create(ctx context.Context, record *models.DealRecord) error
}

// MappingRepository handles the canonical stage mapping list. Create returns
// ErrConflict when the id or the canonical stage is already taken.
type MappingRepository interface {
	List(ctx context.Context) ([]models.CanonicalMapping, error)
	Create(ctx context.Context, mapping *models.CanonicalMapping) error
	Delete(ctx context.Context, id string) error
}

// VersionRepository handles mapping version snapshots
type VersionRepository interface {
	List(ctx context.Context) ([]models.MappingVersion, error)
	GetByID(ctx context.Context, id string) (*models.MappingVersion, error)
	Create(ctx context.Context, version *models.MappingVersion) error
	SetActive(ctx context.Context, id string) error
}

// DealRepository handles deals and their recorded stage transitions
type DealRepository interface {
	List(ctx context.Context) ([]models.Deal, error)
	GetByID(ctx context.Context, dealID string) (*models.Deal, error)
	Create(ctx context.Context, deal *models.Deal) error
	GetTransitions(ctx context.Context, dealID string) ([]models.StageTransition, error)
	SaveTransition(ctx context.Context, dealID string, transition models.StageTransition) error
}

// Store bundles the repositories of one backend
type Store struct {
	Records  DealRecordRepository
	Mappings MappingRepository
	Versions VersionRepository
	Deals    DealRepository

	close func() error
}

// Close releases the backend connection, if any
func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Open builds the store selected by cfg and applies the schema for SQL
// backends.
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		return NewMemoryStore(), nil
	case config.DriverPostgres, config.DriverSQLite:
		db, err := NewDB(cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return NewSQLStore(db), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

// GenerateID generates a new UUID
func GenerateID() string {
	return uuid.New().String()
}
