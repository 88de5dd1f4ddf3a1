package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"flow-efficiency/pkg/catalog"
	"flow-efficiency/pkg/models"
	"flow-efficiency/pkg/repository"
)

// MappingService is the stage mapping registry and its version history
type MappingService struct {
	mappingRepo repository.MappingRepository
	versionRepo repository.VersionRepository
	logger      *slog.Logger
	now         func() time.Time
}

func NewMappingService(
	mappingRepo repository.MappingRepository,
	versionRepo repository.VersionRepository,
	logger *slog.Logger,
) *MappingService {
	return &MappingService{
		mappingRepo: mappingRepo,
		versionRepo: versionRepo,
		logger:      logger,
		now:         time.Now,
	}
}

// List returns the current mappings in insertion order
func (s *MappingService) List(ctx context.Context) ([]models.CanonicalMapping, error) {
	mappings, err := s.mappingRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings: %w", err)
	}
	return mappings, nil
}

// Add appends a mapping after checking both boundaries against the catalog
func (s *MappingService) Add(ctx context.Context, req models.AddMappingRequest) (*models.CanonicalMapping, error) {
	if !catalog.IsCanonicalStage(req.CanonicalStage) {
		return nil, fmt.Errorf("%w: %w: %q", ErrInvalidMapping, catalog.ErrUnknownStage, req.CanonicalStage)
	}
	if err := catalog.ValidateBoundary(req.StartPipeline, req.StartStage); err != nil {
		return nil, fmt.Errorf("%w: start: %w", ErrInvalidMapping, err)
	}
	if err := catalog.ValidateBoundary(req.EndPipeline, req.EndStage); err != nil {
		return nil, fmt.Errorf("%w: end: %w", ErrInvalidMapping, err)
	}

	existing, err := s.mappingRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings: %w", err)
	}
	for _, m := range existing {
		if m.CanonicalStage == req.CanonicalStage {
			return nil, fmt.Errorf("%w: %q (mapping %s)", ErrDuplicateMapping, req.CanonicalStage, m.ID)
		}
	}

	mapping := &models.CanonicalMapping{
		ID:             repository.GenerateID(),
		CanonicalStage: req.CanonicalStage,
		StartPipeline:  req.StartPipeline,
		StartStage:     req.StartStage,
		EndPipeline:    req.EndPipeline,
		EndStage:       req.EndStage,
	}
	if err := s.mappingRepo.Create(ctx, mapping); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateMapping, req.CanonicalStage)
		}
		return nil, fmt.Errorf("failed to create mapping: %w", err)
	}

	s.logger.Info("mapping added", "id", mapping.ID, "stage", mapping.CanonicalStage)
	return mapping, nil
}

// Remove deletes a mapping by id
func (s *MappingService) Remove(ctx context.Context, id string) error {
	if err := s.mappingRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrMappingNotFound, id)
		}
		return fmt.Errorf("failed to delete mapping: %w", err)
	}
	s.logger.Info("mapping removed", "id", id)
	return nil
}

// CreateVersion snapshots the current mapping set as a new Draft version
func (s *MappingService) CreateVersion(ctx context.Context, req models.CreateVersionRequest) (*models.MappingVersion, error) {
	label := strings.TrimSpace(req.Version)
	if label == "" {
		return nil, fmt.Errorf("%w: version label is required", ErrInvalidVersion)
	}
	if req.EffectiveDate.IsZero() {
		return nil, fmt.Errorf("%w: effective_date is required", ErrInvalidVersion)
	}
	createdBy := strings.TrimSpace(req.CreatedBy)
	if createdBy == "" {
		return nil, fmt.Errorf("%w: created_by is required", ErrInvalidVersion)
	}

	mappings, err := s.mappingRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings: %w", err)
	}

	version := &models.MappingVersion{
		ID:            repository.GenerateID(),
		Version:       label,
		EffectiveDate: req.EffectiveDate,
		CreatedBy:     createdBy,
		Status:        models.VersionDraft,
		CreatedAt:     s.now().UTC(),
		Mappings:      mappings,
	}
	if err := s.versionRepo.Create(ctx, version); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateVersion, label)
		}
		return nil, fmt.Errorf("failed to create version: %w", err)
	}

	s.logger.Info("mapping version created", "id", version.ID, "version", label, "mappings", len(mappings))
	return version, nil
}

// ListVersions returns versions ordered by effective date
func (s *MappingService) ListVersions(ctx context.Context) ([]models.MappingVersion, error) {
	versions, err := s.versionRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	return versions, nil
}

// ActivateVersion makes id the only Active version
func (s *MappingService) ActivateVersion(ctx context.Context, id string) (*models.MappingVersion, error) {
	if err := s.versionRepo.SetActive(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrVersionNotFound, id)
		}
		return nil, fmt.Errorf("failed to activate version: %w", err)
	}

	version, err := s.versionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload version: %w", err)
	}
	s.logger.Info("mapping version activated", "id", id, "version", version.Version)
	return version, nil
}

// ActiveVersion returns the Active version, if one has been activated
func (s *MappingService) ActiveVersion(ctx context.Context) (*models.MappingVersion, error) {
	versions, err := s.ListVersions(ctx)
	if err != nil {
		return nil, err
	}
	for _, v := range versions {
		if v.Status == models.VersionActive {
			v := v
			return &v, nil
		}
	}
	return nil, ErrVersionNotFound
}
