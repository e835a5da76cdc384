package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/aicacia/go-auth/internal/apierrors"
	"github.com/aicacia/go-auth/internal/domain"
	"github.com/aicacia/go-auth/internal/jwt"
)

const bearerPrefix = "bearer "

// Authorized is the verified (tenant, subject, claims) triple produced for
// every protected operation. Exactly one of User and ServiceAccount is set,
// matching Claims.SubjectKind.
type Authorized struct {
	Tenant         domain.Tenant
	Claims         *jwt.Claims
	User           *domain.User
	ServiceAccount *domain.ServiceAccount
}

// ResolveAuthorization verifies an inbound Authorization header against an
// expected token kind and subject kind. The path performs no mutation, and
// every failure mode collapses to the same unauthorized outcome; the
// internal cause is logged but never echoed to the caller.
func (s *AuthService) ResolveAuthorization(ctx context.Context, header string, expectedKind jwt.Kind, expectedSubject jwt.SubjectKind) (*Authorized, error) {
	authorized, err := s.resolveBearer(ctx, header)
	if err != nil {
		return nil, err
	}
	if authorized.Claims.Kind != expectedKind || authorized.Claims.SubjectKind != expectedSubject {
		s.log().Debug("token kind mismatch",
			zap.String("kind", string(authorized.Claims.Kind)),
			zap.String("expected_kind", string(expectedKind)))
		return nil, apierrors.Unauthorized()
	}
	return authorized, nil
}

// ResolveBearer verifies a bearer access token for either subject kind.
func (s *AuthService) ResolveBearer(ctx context.Context, header string) (*Authorized, error) {
	authorized, err := s.resolveBearer(ctx, header)
	if err != nil {
		return nil, err
	}
	if authorized.Claims.Kind != jwt.KindBearer {
		s.log().Debug("token is not a bearer access token", zap.String("kind", string(authorized.Claims.Kind)))
		return nil, apierrors.Unauthorized()
	}
	return authorized, nil
}

// ResolveMFAStepUp verifies an Authorization header carrying an MFA step-up
// token for a user subject, accepting any step-up factor kind.
func (s *AuthService) ResolveMFAStepUp(ctx context.Context, header string) (*Authorized, error) {
	authorized, err := s.resolveBearer(ctx, header)
	if err != nil {
		return nil, err
	}
	if _, ok := authorized.Claims.Kind.MFAFactor(); !ok || authorized.Claims.SubjectKind != jwt.SubjectUser {
		s.log().Debug("token is not an mfa step-up", zap.String("kind", string(authorized.Claims.Kind)))
		return nil, apierrors.Unauthorized()
	}
	return authorized, nil
}

func (s *AuthService) resolveBearer(ctx context.Context, header string) (*Authorized, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.resolveBearer")
	defer span.End()

	if strings.TrimSpace(header) == "" {
		return nil, apierrors.AuthorizationRequired()
	}
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return nil, apierrors.Unauthorized()
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return nil, apierrors.Unauthorized()
	}

	// The unvalidated decode only locates the tenant whose key verifies the
	// token; nothing from it is trusted before DecodeValidated passes.
	_, clientID, err := s.codec.DecodeUnvalidated(token)
	if err != nil {
		s.log().Debug("unreadable bearer token", zap.Error(err))
		return nil, apierrors.Unauthorized()
	}

	tenant, err := s.tenants.GetByClientID(ctx, clientID)
	if err != nil {
		s.log().Debug("tenant lookup failed for bearer token", zap.String("client_id", clientID.String()), zap.Error(err))
		return nil, apierrors.Unauthorized()
	}

	claims, err := s.codec.DecodeValidated(token, &tenant)
	if err != nil {
		s.log().Debug("bearer token failed validation", zap.Int64("tenant_id", tenant.ID), zap.Error(err))
		return nil, apierrors.Unauthorized()
	}

	authorized := &Authorized{Tenant: tenant, Claims: claims}
	switch claims.SubjectKind {
	case jwt.SubjectUser:
		user, err := s.users.GetByID(ctx, claims.SubjectID)
		if err != nil || !user.Active {
			s.log().Debug("bearer subject user missing or inactive", zap.Int64("user_id", claims.SubjectID), zap.Error(err))
			return nil, apierrors.Unauthorized()
		}
		authorized.User = &user
	case jwt.SubjectServiceAccount:
		account, err := s.serviceAccounts.GetByID(ctx, claims.SubjectID)
		if err != nil || !account.Active {
			s.log().Debug("bearer subject service account missing or inactive", zap.Int64("service_account_id", claims.SubjectID), zap.Error(err))
			return nil, apierrors.Unauthorized()
		}
		authorized.ServiceAccount = &account
	default:
		return nil, apierrors.Unauthorized()
	}
	return authorized, nil
}
