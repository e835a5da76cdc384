package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/aicacia/go-auth/internal/apierrors"
	"github.com/aicacia/go-auth/internal/domain"
)

// SignClaims signs an arbitrary claim set with a tenant's key for
// back-office use. Registered claims the caller omits are stamped so the
// result round-trips through DecodeClaims.
func (s *AuthService) SignClaims(ctx context.Context, tenant *domain.Tenant, claims map[string]any) (string, error) {
	_, span := s.tracer.Start(ctx, "AuthService.SignClaims")
	defer span.End()

	now := s.now()
	stamped := make(map[string]any, len(claims)+4)
	for k, v := range claims {
		stamped[k] = v
	}
	stamped["iss"] = tenant.Issuer
	if tenant.Audience != nil {
		stamped["aud"] = *tenant.Audience
	}
	if _, ok := stamped["iat"]; !ok {
		stamped["iat"] = now.Unix()
	}
	if _, ok := stamped["exp"]; !ok {
		stamped["exp"] = now.Add(tenant.AccessTokenTTL).Unix()
	}

	token, err := s.codec.Encode(tenant, stamped)
	if err != nil {
		s.log().Error("sign claim set failed", zap.Int64("tenant_id", tenant.ID), zap.Error(err))
		return "", apierrors.Internal()
	}
	return token, nil
}

// DecodeClaims validates a token against the tenant from the Tenant-ID
// header and returns the raw claim map. The token's embedded tenant must
// match the header tenant; any mismatch or validation failure collapses to
// unauthorized.
func (s *AuthService) DecodeClaims(ctx context.Context, tenant *domain.Tenant, token string) (map[string]any, error) {
	_, span := s.tracer.Start(ctx, "AuthService.DecodeClaims")
	defer span.End()

	claims, err := s.codec.DecodeValidatedMap(token, tenant)
	if err != nil {
		s.log().Debug("claim set rejected", zap.Int64("tenant_id", tenant.ID), zap.Error(err))
		return nil, apierrors.Unauthorized()
	}
	return claims, nil
}
