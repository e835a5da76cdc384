package service

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	gojwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/aicacia/go-auth/internal/apierrors"
	"github.com/aicacia/go-auth/internal/domain"
	"github.com/aicacia/go-auth/internal/jwt"
	"github.com/aicacia/go-auth/internal/openid"
)

// dummySecretHash keeps the bcrypt cost of a service-account grant constant
// when the client id does not exist, so a nonexistent client and a wrong
// secret are indistinguishable to the caller.
const dummySecretHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Token dispatches a token request to its grant handler. The tenant comes
// from the Tenant-ID header and scopes the signing key for everything
// issued here.
func (s *AuthService) Token(ctx context.Context, tenant *domain.Tenant, req TokenRequest) (*TokenBundle, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Token")
	defer span.End()

	grant, err := ParseGrantType(req.GrantType)
	if err != nil {
		return nil, err
	}
	switch grant {
	case GrantPassword:
		return s.passwordGrant(ctx, tenant, req)
	case GrantRefreshToken:
		return s.refreshGrant(ctx, tenant, req)
	case GrantServiceAccount:
		return s.serviceAccountGrant(ctx, tenant, req)
	case GrantAuthorizationCode:
		return s.authorizationCodeGrant(ctx, tenant, req)
	}
	return nil, apierrors.Invalid("grant_type")
}

func (s *AuthService) passwordGrant(ctx context.Context, tenant *domain.Tenant, req TokenRequest) (*TokenBundle, error) {
	user, err := s.users.GetByIdentifier(ctx, normalizeIdentifier(req.Username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, invalidCredentials()
		}
		s.log().Error("password grant user lookup failed", zap.Error(err))
		return nil, apierrors.Internal()
	}
	if !user.Active {
		return nil, invalidCredentials()
	}

	password, err := s.users.GetActivePassword(ctx, user.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, invalidCredentials()
		}
		s.log().Error("password grant password lookup failed", zap.Error(err))
		return nil, apierrors.Internal()
	}
	if bcrypt.CompareHashAndPassword([]byte(password.Hash), []byte(req.Password)) != nil {
		return nil, invalidCredentials()
	}

	// A password past its maximum age still authenticates the user, but the
	// only credential issued is one that can reset the password. This is a
	// first-class success outcome.
	if tenant.PasswordMaxAge > 0 && s.now().Sub(password.CreatedAt) > tenant.PasswordMaxAge {
		return s.issueResetPassword(tenant, &user)
	}

	return s.createUserToken(ctx, tenant, &user, parseScopes(req.Scope), IssuedTokenTypeAccess, false)
}

func (s *AuthService) refreshGrant(ctx context.Context, tenant *domain.Tenant, req TokenRequest) (*TokenBundle, error) {
	if req.RefreshToken == "" {
		return nil, apierrors.Invalid("refresh_token")
	}
	claims, err := s.codec.DecodeValidated(req.RefreshToken, tenant)
	if err != nil || claims.Kind != jwt.KindRefresh {
		s.log().Debug("refresh grant token rejected", zap.Error(err))
		return nil, apierrors.New(http.StatusUnauthorized).With("refresh_token", apierrors.CodeInvalid)
	}

	// A refresh exchange reissues a fresh bearer/refresh pair carrying the
	// same scopes and is treated as already MFA-satisfied.
	switch claims.SubjectKind {
	case jwt.SubjectUser:
		user, err := s.users.GetByID(ctx, claims.SubjectID)
		if err != nil || !user.Active {
			return nil, apierrors.New(http.StatusUnauthorized).With("refresh_token", apierrors.CodeInvalid)
		}
		return s.createUserToken(ctx, tenant, &user, claims.Scopes, IssuedTokenTypeAccess, true)
	case jwt.SubjectServiceAccount:
		account, err := s.serviceAccounts.GetByID(ctx, claims.SubjectID)
		if err != nil || !account.Active {
			return nil, apierrors.New(http.StatusUnauthorized).With("refresh_token", apierrors.CodeInvalid)
		}
		return s.createServiceAccountToken(tenant, &account)
	}
	return nil, apierrors.New(http.StatusUnauthorized).With("refresh_token", apierrors.CodeInvalid)
}

func (s *AuthService) authorizationCodeGrant(ctx context.Context, tenant *domain.Tenant, req TokenRequest) (*TokenBundle, error) {
	if req.Code == "" {
		return nil, apierrors.Invalid("code")
	}
	claims, err := s.codec.DecodeValidated(req.Code, tenant)
	if err != nil || claims.Kind != jwt.KindAuthorizationCode || claims.SubjectKind != jwt.SubjectUser {
		s.log().Debug("authorization code rejected", zap.Error(err))
		return nil, apierrors.New(http.StatusUnauthorized).With("code", apierrors.CodeInvalid)
	}
	user, err := s.users.GetByID(ctx, claims.SubjectID)
	if err != nil || !user.Active {
		return nil, apierrors.New(http.StatusUnauthorized).With("code", apierrors.CodeInvalid)
	}

	// The code exchange already represents a completed front-channel
	// interaction, so MFA is treated as satisfied. A narrower scope may be
	// requested but never a wider one.
	scopes := intersectScopes(parseScopes(req.Scope), claims.Scopes)
	return s.createUserToken(ctx, tenant, &user, scopes, IssuedTokenTypeAccess, true)
}

func (s *AuthService) serviceAccountGrant(ctx context.Context, tenant *domain.Tenant, req TokenRequest) (*TokenBundle, error) {
	clientID, parseErr := uuid.Parse(req.ClientID)
	var account domain.ServiceAccount
	lookupErr := error(pgx.ErrNoRows)
	if parseErr == nil {
		account, lookupErr = s.serviceAccounts.GetByClientID(ctx, clientID)
	}
	if lookupErr != nil {
		if !errors.Is(lookupErr, pgx.ErrNoRows) {
			s.log().Error("service account lookup failed", zap.Error(lookupErr))
			return nil, apierrors.Internal()
		}
		// Burn a bcrypt comparison so a nonexistent client costs the same
		// as a wrong secret.
		_ = bcrypt.CompareHashAndPassword([]byte(dummySecretHash), []byte(req.ClientSecret))
		return nil, invalidClientCredentials()
	}
	if !account.Active {
		_ = bcrypt.CompareHashAndPassword([]byte(dummySecretHash), []byte(req.ClientSecret))
		return nil, invalidClientCredentials()
	}
	if bcrypt.CompareHashAndPassword([]byte(account.EncryptedSecret), []byte(req.ClientSecret)) != nil {
		return nil, invalidClientCredentials()
	}
	return s.createServiceAccountToken(tenant, &account)
}

// createUserToken is the final-issuance routine. When the user still owes a
// second factor it returns an MFA step-up bundle: a success status carrying
// a non-terminal credential the caller must exchange at the MFA endpoint.
func (s *AuthService) createUserToken(ctx context.Context, tenant *domain.Tenant, user *domain.User, scopes []string, provenance string, mfaValidated bool) (*TokenBundle, error) {
	if !mfaValidated {
		mfa, err := s.users.GetMFA(ctx, user.ID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			s.log().Error("mfa lookup failed", zap.Int64("user_id", user.ID), zap.Error(err))
			return nil, apierrors.Internal()
		}
		if err == nil && mfa.Factor != domain.MFAFactorNone {
			return s.issueStepUp(tenant, user, scopes, mfa.Factor)
		}
	}

	now := s.now()
	access := s.newClaims(tenant, jwt.KindBearer, jwt.SubjectUser, user.ID, now, tenant.AccessTokenTTL, scopes)
	accessToken, err := s.codec.Encode(tenant, access)
	if err != nil {
		s.log().Error("sign access token failed", zap.Int64("tenant_id", tenant.ID), zap.Error(err))
		return nil, apierrors.Internal()
	}

	refresh := s.newClaims(tenant, jwt.KindRefresh, jwt.SubjectUser, user.ID, now, tenant.RefreshTokenTTL, scopes)
	refreshToken, err := s.codec.Encode(tenant, refresh)
	if err != nil {
		s.log().Error("sign refresh token failed", zap.Int64("tenant_id", tenant.ID), zap.Error(err))
		return nil, apierrors.Internal()
	}

	refreshExpiresIn := int64(tenant.RefreshTokenTTL / time.Second)
	bundle := &TokenBundle{
		AccessToken:           accessToken,
		TokenType:             TokenTypeBearer,
		IssuedTokenType:       provenance,
		ExpiresIn:             int64(tenant.AccessTokenTTL / time.Second),
		Scope:                 joinScopes(scopes),
		RefreshToken:          &refreshToken,
		RefreshTokenExpiresIn: &refreshExpiresIn,
	}

	if openid.HasDisclosureScope(scopes) {
		idToken, err := s.signIDToken(ctx, tenant, user, scopes, now)
		if err != nil {
			return nil, err
		}
		bundle.IDToken = &idToken
	}
	return bundle, nil
}

func (s *AuthService) signIDToken(ctx context.Context, tenant *domain.Tenant, user *domain.User, scopes []string, now time.Time) (string, error) {
	info, err := s.users.GetInfo(ctx, user.ID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		s.log().Error("user info lookup failed", zap.Int64("user_id", user.ID), zap.Error(err))
		return "", apierrors.Internal()
	}
	emails, err := s.users.ListEmails(ctx, user.ID)
	if err != nil {
		s.log().Error("user emails lookup failed", zap.Int64("user_id", user.ID), zap.Error(err))
		return "", apierrors.Internal()
	}
	phones, err := s.users.ListPhoneNumbers(ctx, user.ID)
	if err != nil {
		s.log().Error("user phones lookup failed", zap.Int64("user_id", user.ID), zap.Error(err))
		return "", apierrors.Internal()
	}

	idClaims := jwt.IDClaims{
		Claims:     s.newClaims(tenant, jwt.KindID, jwt.SubjectUser, user.ID, now, tenant.AccessTokenTTL, scopes),
		Projection: openid.Project(scopes, info, emails, phones),
	}
	idToken, err := s.codec.Encode(tenant, idClaims)
	if err != nil {
		s.log().Error("sign id token failed", zap.Int64("tenant_id", tenant.ID), zap.Error(err))
		return "", apierrors.Internal()
	}
	return idToken, nil
}

func (s *AuthService) issueStepUp(tenant *domain.Tenant, user *domain.User, scopes []string, factor domain.MFAFactor) (*TokenBundle, error) {
	kind, err := jwt.MFAKindFor(factor)
	if err != nil {
		s.log().Error("unknown mfa factor configured", zap.Int64("user_id", user.ID), zap.String("factor", string(factor)))
		return nil, apierrors.Internal()
	}
	claims := s.newClaims(tenant, kind, jwt.SubjectUser, user.ID, s.now(), tenant.AccessTokenTTL, scopes)
	token, err := s.codec.Encode(tenant, claims)
	if err != nil {
		s.log().Error("sign step-up token failed", zap.Int64("tenant_id", tenant.ID), zap.Error(err))
		return nil, apierrors.Internal()
	}
	issuedType := IssuedTokenTypeMFATOTP
	if kind == jwt.KindMFAServiceAccount {
		issuedType = IssuedTokenTypeMFAServiceAccount
	}
	return &TokenBundle{
		AccessToken:     token,
		TokenType:       TokenTypeBearer,
		IssuedTokenType: issuedType,
		ExpiresIn:       int64(tenant.AccessTokenTTL / time.Second),
		Scope:           joinScopes(scopes),
	}, nil
}

func (s *AuthService) issueResetPassword(tenant *domain.Tenant, user *domain.User) (*TokenBundle, error) {
	claims := s.newClaims(tenant, jwt.KindResetPassword, jwt.SubjectUser, user.ID, s.now(), tenant.AccessTokenTTL, nil)
	token, err := s.codec.Encode(tenant, claims)
	if err != nil {
		s.log().Error("sign reset-password token failed", zap.Int64("tenant_id", tenant.ID), zap.Error(err))
		return nil, apierrors.Internal()
	}
	return &TokenBundle{
		AccessToken:     token,
		TokenType:       TokenTypeBearer,
		IssuedTokenType: IssuedTokenTypeResetPassword,
		ExpiresIn:       int64(tenant.AccessTokenTTL / time.Second),
	}, nil
}

func (s *AuthService) createServiceAccountToken(tenant *domain.Tenant, account *domain.ServiceAccount) (*TokenBundle, error) {
	now := s.now()
	// Service accounts never carry OpenID-style scopes and never pass
	// through the MFA gate.
	access := s.newClaims(tenant, jwt.KindBearer, jwt.SubjectServiceAccount, account.ID, now, tenant.AccessTokenTTL, nil)
	accessToken, err := s.codec.Encode(tenant, access)
	if err != nil {
		s.log().Error("sign service account token failed", zap.Int64("tenant_id", tenant.ID), zap.Error(err))
		return nil, apierrors.Internal()
	}
	refresh := s.newClaims(tenant, jwt.KindRefresh, jwt.SubjectServiceAccount, account.ID, now, tenant.RefreshTokenTTL, nil)
	refreshToken, err := s.codec.Encode(tenant, refresh)
	if err != nil {
		s.log().Error("sign service account refresh failed", zap.Int64("tenant_id", tenant.ID), zap.Error(err))
		return nil, apierrors.Internal()
	}
	refreshExpiresIn := int64(tenant.RefreshTokenTTL / time.Second)
	return &TokenBundle{
		AccessToken:           accessToken,
		TokenType:             TokenTypeBearer,
		IssuedTokenType:       IssuedTokenTypeAccess,
		ExpiresIn:             int64(tenant.AccessTokenTTL / time.Second),
		RefreshToken:          &refreshToken,
		RefreshTokenExpiresIn: &refreshExpiresIn,
	}, nil
}

// newClaims builds the registered and application claims shared by every
// issued token. The not-before is the issuance instant.
func (s *AuthService) newClaims(tenant *domain.Tenant, kind jwt.Kind, subjectKind jwt.SubjectKind, subjectID int64, now time.Time, ttl time.Duration, scopes []string) jwt.Claims {
	std := gojwt.Claims{
		Issuer:    tenant.Issuer,
		Subject:   strconv.FormatInt(subjectID, 10),
		IssuedAt:  gojwt.NewNumericDate(now),
		NotBefore: gojwt.NewNumericDate(now),
		Expiry:    gojwt.NewNumericDate(now.Add(ttl)),
	}
	if tenant.Audience != nil {
		std.Audience = gojwt.Audience{*tenant.Audience}
	}
	return jwt.Claims{
		Claims:      std,
		Kind:        kind,
		SubjectKind: subjectKind,
		SubjectID:   subjectID,
		TenantID:    tenant.ID,
		Scopes:      scopes,
	}
}

func invalidCredentials() *apierrors.ErrorBody {
	return apierrors.New(http.StatusUnauthorized).
		With("username", apierrors.CodeInvalid).
		With("password", apierrors.CodeInvalid)
}

func invalidClientCredentials() *apierrors.ErrorBody {
	return apierrors.New(http.StatusUnauthorized).
		With("client_id", apierrors.CodeInvalid).
		With("client_secret", apierrors.CodeInvalid)
}

func normalizeIdentifier(value string) string {
	return trimLower(value)
}
