package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"

	"github.com/aicacia/go-auth/internal/apierrors"
	"github.com/aicacia/go-auth/internal/domain"
	"github.com/aicacia/go-auth/internal/jwt"
)

// MFARequest is the factor-discriminated body of POST /mfa. Exactly one
// field is set.
type MFARequest struct {
	TOTP           string `json:"totp"`
	ServiceAccount string `json:"service_account"`
}

// VerifyMFA finalizes a login paused on a second factor. The step-up token
// names the factor it was issued for; presenting a proof for any other
// factor fails unauthorized.
func (s *AuthService) VerifyMFA(ctx context.Context, authorized *Authorized, req MFARequest) (*TokenBundle, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.VerifyMFA")
	defer span.End()

	factor, ok := authorized.Claims.Kind.MFAFactor()
	if !ok || authorized.User == nil {
		return nil, apierrors.Unauthorized()
	}

	switch {
	case req.TOTP != "":
		if factor != domain.MFAFactorTOTP {
			return nil, apierrors.New(http.StatusUnauthorized).With("totp", apierrors.CodeInvalid)
		}
		if err := s.verifyTOTP(ctx, authorized.User.ID, req.TOTP); err != nil {
			return nil, err
		}
	case req.ServiceAccount != "":
		if factor != domain.MFAFactorServiceAccount {
			return nil, apierrors.New(http.StatusUnauthorized).With("service_account", apierrors.CodeInvalid)
		}
		// The proof is a bearer token of a trusted backend vouching for the
		// step-up; it must resolve as a service-account bearer credential.
		if _, err := s.ResolveAuthorization(ctx, "Bearer "+req.ServiceAccount, jwt.KindBearer, jwt.SubjectServiceAccount); err != nil {
			return nil, apierrors.New(http.StatusUnauthorized).With("service_account", apierrors.CodeInvalid)
		}
	default:
		field := "totp"
		if factor == domain.MFAFactorServiceAccount {
			field = "service_account"
		}
		return nil, apierrors.New(http.StatusBadRequest).With(field, apierrors.CodeRequired)
	}

	return s.createUserToken(ctx, &authorized.Tenant, authorized.User, authorized.Claims.Scopes, IssuedTokenTypeAccess, true)
}

func (s *AuthService) verifyTOTP(ctx context.Context, userID int64, code string) error {
	row, err := s.users.GetActiveTOTP(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apierrors.NotFound("totp")
		}
		s.log().Error("totp lookup failed", zap.Int64("user_id", userID), zap.Error(err))
		return apierrors.Internal()
	}

	valid, err := totp.ValidateCustom(code, row.Secret, s.now().UTC(), totp.ValidateOpts{
		Period:    uint(row.Period),
		Skew:      1,
		Digits:    otp.Digits(row.Digits),
		Algorithm: totpAlgorithm(row.Algorithm),
	})
	if err != nil || !valid {
		return apierrors.New(http.StatusUnauthorized).With("totp", apierrors.CodeInvalid)
	}
	return nil
}

func totpAlgorithm(name string) otp.Algorithm {
	switch name {
	case "SHA256":
		return otp.AlgorithmSHA256
	case "SHA512":
		return otp.AlgorithmSHA512
	default:
		return otp.AlgorithmSHA1
	}
}
