// Package tenant resolves tenant records for the request lifecycle.
package tenant

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aicacia/go-auth/internal/domain"
	"github.com/aicacia/go-auth/internal/repository"
)

// Resolver loads tenant metadata from the tenant repository.
type Resolver struct {
	repo   repository.TenantRepository
	logger *zap.Logger
}

// NewResolver creates a tenant resolver.
func NewResolver(repo repository.TenantRepository, logger *zap.Logger) *Resolver {
	return &Resolver{repo: repo, logger: logger}
}

// ResolveByClientID loads a tenant from the external client identifier
// carried in the Tenant-ID header.
func (r *Resolver) ResolveByClientID(ctx context.Context, raw string) (*domain.Tenant, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("resolve tenant: empty client id")
	}
	clientID, err := uuid.Parse(cleaned)
	if err != nil {
		return nil, fmt.Errorf("resolve tenant: %w", err)
	}
	row, err := r.repo.GetByClientID(ctx, clientID)
	if err != nil {
		r.logger.Debug("tenant lookup failed", zap.String("client_id", cleaned), zap.Error(err))
		return nil, fmt.Errorf("resolve tenant: %w", err)
	}
	return &row, nil
}

// ResolveByID loads a tenant by internal id.
func (r *Resolver) ResolveByID(ctx context.Context, tenantID int64) (*domain.Tenant, error) {
	row, err := r.repo.GetByID(ctx, tenantID)
	if err != nil {
		r.logger.Debug("tenant lookup failed", zap.Int64("tenant_id", tenantID), zap.Error(err))
		return nil, fmt.Errorf("resolve tenant: %w", err)
	}
	return &row, nil
}
