package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/address-lookup/app/models"
	"github.com/address-lookup/internal/mapping"
)

// ErrInvalidMapping is returned when an update names an unknown part.
var ErrInvalidMapping = errors.New("invalid field mapping")

// MappingService owns the per-profile field mapping configuration.
type MappingService struct {
	repo     MappingRepository
	standard []string
	logger   *zap.Logger
}

// NewMappingService tạo mới MappingService
func NewMappingService(repo MappingRepository, standardFields []string, logger *zap.Logger) *MappingService {
	if len(standardFields) == 0 {
		standardFields = mapping.StandardFields
	}
	return &MappingService{
		repo:     repo,
		standard: slices.Clone(standardFields),
		logger:   logger,
	}
}

// Get returns the stored profile, or the defaults over the standard fields
// when nothing was stored yet.
func (ms *MappingService) Get(ctx context.Context, profile string) (*models.FieldMappingProfile, error) {
	p, err := ms.repo.Get(ctx, profile)
	if errors.Is(err, ErrMappingNotFound) {
		cfg, _ := mapping.Refresh(mapping.Configuration{}, ms.standard)
		return &models.FieldMappingProfile{Profile: profile, Config: cfg}, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Update overlays changes on the stored mapping. Fields not known before
// are added to the field snapshot.
func (ms *MappingService) Update(ctx context.Context, profile string, changes mapping.FieldMapping) (*models.FieldMappingProfile, error) {
	for field, part := range changes {
		if field == "" || !part.Known() {
			return nil, fmt.Errorf("%w: field %q part %q", ErrInvalidMapping, field, part)
		}
	}

	current, err := ms.Get(ctx, profile)
	if err != nil {
		return nil, err
	}

	overlay := current.Config.Mapping.Clone()
	if overlay == nil {
		overlay = make(mapping.FieldMapping, len(changes))
	}
	fields := slices.Clone(current.Config.Fields)
	for field, part := range changes {
		overlay[field] = part
		fields = append(fields, field)
	}
	slices.Sort(fields)
	fields = slices.Compact(fields)

	next := *current
	next.Config = mapping.Configuration{
		Mapping: mapping.Merge(mapping.ComputeDefaults(fields), overlay),
		Fields:  fields,
	}
	if err := ms.save(ctx, &next); err != nil {
		return nil, err
	}

	ms.logger.Info("field mapping updated",
		zap.String("profile", profile),
		zap.Int("changed", len(changes)),
		zap.Int("version", next.Version))
	return &next, nil
}

// Refresh recomputes the mapping for the live destination fields of a form
// and persists it when the field set changed or nothing was stored yet. The
// boolean reports whether it persisted.
func (ms *MappingService) Refresh(ctx context.Context, profile string, live []string) (*models.FieldMappingProfile, bool, error) {
	if len(live) == 0 {
		live = ms.standard
	}

	current, err := ms.repo.Get(ctx, profile)
	stored := true
	if errors.Is(err, ErrMappingNotFound) {
		current, stored, err = &models.FieldMappingProfile{Profile: profile}, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	cfg, changed := mapping.Refresh(current.Config, live)
	if !changed && stored {
		return current, false, nil
	}

	next := *current
	next.Config = cfg
	if err := ms.save(ctx, &next); err != nil {
		return nil, false, err
	}

	ms.logger.Info("field mapping refreshed",
		zap.String("profile", profile),
		zap.Strings("fields", cfg.Fields),
		zap.Int("version", next.Version))
	return &next, true, nil
}

// Profiles lists every stored profile.
func (ms *MappingService) Profiles(ctx context.Context) ([]string, error) {
	return ms.repo.List(ctx)
}

// StandardFields returns the fields every form is assumed to have.
func (ms *MappingService) StandardFields() []string {
	return slices.Clone(ms.standard)
}

func (ms *MappingService) save(ctx context.Context, p *models.FieldMappingProfile) error {
	p.Version++
	p.UpdatedAt = time.Now()
	if err := ms.repo.Save(ctx, p); err != nil {
		return fmt.Errorf("persist field mapping %s: %w", p.Profile, err)
	}
	return nil
}
