// Package repository defines storage interfaces consumed by the services and
// their Postgres implementations. Not-found is reported as pgx.ErrNoRows so
// callers can match with errors.Is.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/aicacia/go-auth/internal/domain"
)

// TenantRepository supplies tenant records by internal id or external client
// identifier.
type TenantRepository interface {
	GetByID(ctx context.Context, tenantID int64) (domain.Tenant, error)
	GetByClientID(ctx context.Context, clientID uuid.UUID) (domain.Tenant, error)
}

// UserRepository reads users and the rows consumed during issuance and
// scope projection.
type UserRepository interface {
	GetByID(ctx context.Context, userID int64) (domain.User, error)
	// GetByIdentifier resolves a user by username or by a primary or
	// verified email address.
	GetByIdentifier(ctx context.Context, identifier string) (domain.User, error)
	GetActivePassword(ctx context.Context, userID int64) (domain.UserPassword, error)
	GetMFA(ctx context.Context, userID int64) (domain.UserMFA, error)
	GetActiveTOTP(ctx context.Context, userID int64) (domain.UserTOTP, error)
	GetInfo(ctx context.Context, userID int64) (domain.UserInfo, error)
	ListEmails(ctx context.Context, userID int64) ([]domain.UserEmail, error)
	ListPhoneNumbers(ctx context.Context, userID int64) ([]domain.UserPhoneNumber, error)
}

// ServiceAccountRepository reads machine principals.
type ServiceAccountRepository interface {
	GetByID(ctx context.Context, id int64) (domain.ServiceAccount, error)
	GetByClientID(ctx context.Context, clientID uuid.UUID) (domain.ServiceAccount, error)
}
