// Package service contains the token engine: grant handling, authorization
// resolution, the MFA step-up gate, and back-office claim signing.
package service

import (
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/aicacia/go-auth/internal/jwt"
	"github.com/aicacia/go-auth/internal/repository"
)

const tracerName = "github.com/aicacia/go-auth/internal/service"

// AuthService implements per-grant-type issuance and validation against the
// tenant registry and subject repositories.
type AuthService struct {
	tenants         repository.TenantRepository
	users           repository.UserRepository
	serviceAccounts repository.ServiceAccountRepository
	codec           *jwt.Codec
	logger          *zap.Logger
	tracer          trace.Tracer
	now             func() time.Time
}

// NewAuthService wires the token engine.
func NewAuthService(
	tenants repository.TenantRepository,
	users repository.UserRepository,
	serviceAccounts repository.ServiceAccountRepository,
	codec *jwt.Codec,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		tenants:         tenants,
		users:           users,
		serviceAccounts: serviceAccounts,
		codec:           codec,
		logger:          logger,
		tracer:          otel.Tracer(tracerName),
		now:             time.Now,
	}
}

// WithClock overrides the clock, for tests.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

func (s *AuthService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
