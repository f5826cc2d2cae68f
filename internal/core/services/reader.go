package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/cogniprof/internal/core/domain"
	"github.com/custodia-labs/cogniprof/internal/core/ports/driven"
	"github.com/custodia-labs/cogniprof/internal/core/ports/driving"
)

// Ensure ProfileReaderService implements the interface.
var _ driving.ProfileReader = (*ProfileReaderService)(nil)

// ProfileReaderService reads stored profiles and lines.
type ProfileReaderService struct {
	profiles driven.ProfileStore
	lines    driven.LineStore
}

// NewProfileReaderService creates a new reader.
func NewProfileReaderService(profiles driven.ProfileStore, lines driven.LineStore) *ProfileReaderService {
	return &ProfileReaderService{profiles: profiles, lines: lines}
}

// GetProfile retrieves one profile.
func (s *ProfileReaderService) GetProfile(ctx context.Context, entityID string) (*domain.EntityProfile, error) {
	p, err := s.profiles.Get(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("getting profile %s: %w", entityID, err)
	}
	return p, nil
}

// ListProfiles returns every profile.
func (s *ProfileReaderService) ListProfiles(ctx context.Context) ([]domain.EntityProfile, error) {
	return s.profiles.List(ctx)
}

// GetLines returns an entity's lines.
func (s *ProfileReaderService) GetLines(ctx context.Context, entityID string) ([]domain.JurisprudentialLine, error) {
	return s.lines.ListByEntity(ctx, entityID)
}

// SearchProfiles performs a substring lookup over profiles.
func (s *ProfileReaderService) SearchProfiles(
	ctx context.Context, term string, limit int,
) ([]domain.EntityProfile, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []domain.EntityProfile{}, nil
	}
	return s.profiles.Search(ctx, term, limit)
}
