package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/transfa/portfolio-service/internal/domain"
	"github.com/transfa/portfolio-service/internal/store"
)

// InstitutionProvider looks institutions up at the external provider.
type InstitutionProvider interface {
	GetInstitution(ctx context.Context, institutionID string, countryCodes []string) (*domain.PlaidInstitutionGetResponse, error)
}

// InstitutionResolver resolves institution metadata, reading through a cache when one is configured.
type InstitutionResolver struct {
	provider     InstitutionProvider
	cache        store.InstitutionCache
	countryCodes []string
	cacheTTL     time.Duration
	logger       *slog.Logger
}

func NewInstitutionResolver(provider InstitutionProvider, cache store.InstitutionCache, countryCodes []string, cacheTTL time.Duration, logger *slog.Logger) *InstitutionResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &InstitutionResolver{
		provider:     provider,
		cache:        cache,
		countryCodes: countryCodes,
		cacheTTL:     cacheTTL,
		logger:       logger,
	}
}

// Resolve returns metadata for institutionID. It fails with ErrInstitutionNotFound
// for empty or sentinel ids and with the provider's error otherwise.
func (r *InstitutionResolver) Resolve(ctx context.Context, institutionID string) (domain.InstitutionMetadata, error) {
	institutionID = strings.TrimSpace(institutionID)
	if institutionID == "" || institutionID == domain.UnknownInstitutionID {
		return domain.InstitutionMetadata{}, fmt.Errorf("%w: no institution id", domain.ErrInstitutionNotFound)
	}

	if r.cache != nil {
		cached, err := r.cache.GetCachedInstitution(ctx, institutionID)
		switch {
		case err == nil && cached != nil:
			return *cached, nil
		case err != nil && !errors.Is(err, store.ErrInstitutionCacheMiss):
			r.logger.Warn("institution cache read failed", "institution_id", institutionID, "error", err)
		}
	}

	resp, err := r.provider.GetInstitution(ctx, institutionID, r.countryCodes)
	if err != nil {
		return domain.InstitutionMetadata{}, fmt.Errorf("resolve institution %s: %w", institutionID, err)
	}

	meta := domain.InstitutionMetadata{
		ID:           resp.Institution.InstitutionID,
		Name:         resp.Institution.Name,
		Logo:         valueOr(resp.Institution.Logo, ""),
		URL:          valueOr(resp.Institution.URL, ""),
		PrimaryColor: valueOr(resp.Institution.PrimaryColor, ""),
	}
	if meta.ID == "" {
		meta.ID = institutionID
	}

	if r.cache != nil && r.cacheTTL > 0 {
		if err := r.cache.CacheInstitution(ctx, meta, r.cacheTTL); err != nil {
			r.logger.Warn("institution cache write failed", "institution_id", institutionID, "error", err)
		}
	}
	return meta, nil
}
