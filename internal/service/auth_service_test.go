package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	gojwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/aicacia/go-auth/internal/apierrors"
	"github.com/aicacia/go-auth/internal/domain"
	"github.com/aicacia/go-auth/internal/jwt"
	"github.com/aicacia/go-auth/internal/service"
)

const totpSecret = "JBSWY3DPEHPK3PXP"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type memoryTenantRepo struct {
	tenants []domain.Tenant
}

func (m *memoryTenantRepo) GetByID(ctx context.Context, tenantID int64) (domain.Tenant, error) {
	for _, t := range m.tenants {
		if t.ID == tenantID {
			return t, nil
		}
	}
	return domain.Tenant{}, pgx.ErrNoRows
}

func (m *memoryTenantRepo) GetByClientID(ctx context.Context, clientID uuid.UUID) (domain.Tenant, error) {
	for _, t := range m.tenants {
		if t.ClientID == clientID {
			return t, nil
		}
	}
	return domain.Tenant{}, pgx.ErrNoRows
}

type memoryUserRepo struct {
	user     domain.User
	password domain.UserPassword
	mfa      *domain.UserMFA
	totp     *domain.UserTOTP
	info     domain.UserInfo
	emails   []domain.UserEmail
	phones   []domain.UserPhoneNumber
}

func (m *memoryUserRepo) GetByID(ctx context.Context, userID int64) (domain.User, error) {
	if m.user.ID != userID {
		return domain.User{}, pgx.ErrNoRows
	}
	return m.user, nil
}

func (m *memoryUserRepo) GetByIdentifier(ctx context.Context, identifier string) (domain.User, error) {
	if identifier != m.user.Username {
		return domain.User{}, pgx.ErrNoRows
	}
	return m.user, nil
}

func (m *memoryUserRepo) GetActivePassword(ctx context.Context, userID int64) (domain.UserPassword, error) {
	if m.password.UserID != userID || !m.password.Active {
		return domain.UserPassword{}, pgx.ErrNoRows
	}
	return m.password, nil
}

func (m *memoryUserRepo) GetMFA(ctx context.Context, userID int64) (domain.UserMFA, error) {
	if m.mfa == nil || m.mfa.UserID != userID {
		return domain.UserMFA{}, pgx.ErrNoRows
	}
	return *m.mfa, nil
}

func (m *memoryUserRepo) GetActiveTOTP(ctx context.Context, userID int64) (domain.UserTOTP, error) {
	if m.totp == nil || m.totp.UserID != userID {
		return domain.UserTOTP{}, pgx.ErrNoRows
	}
	return *m.totp, nil
}

func (m *memoryUserRepo) GetInfo(ctx context.Context, userID int64) (domain.UserInfo, error) {
	if m.info.UserID != userID {
		return domain.UserInfo{}, pgx.ErrNoRows
	}
	return m.info, nil
}

func (m *memoryUserRepo) ListEmails(ctx context.Context, userID int64) ([]domain.UserEmail, error) {
	return m.emails, nil
}

func (m *memoryUserRepo) ListPhoneNumbers(ctx context.Context, userID int64) ([]domain.UserPhoneNumber, error) {
	return m.phones, nil
}

type memoryServiceAccountRepo struct {
	account domain.ServiceAccount
}

func (m *memoryServiceAccountRepo) GetByID(ctx context.Context, id int64) (domain.ServiceAccount, error) {
	if m.account.ID != id {
		return domain.ServiceAccount{}, pgx.ErrNoRows
	}
	return m.account, nil
}

func (m *memoryServiceAccountRepo) GetByClientID(ctx context.Context, clientID uuid.UUID) (domain.ServiceAccount, error) {
	if m.account.ClientID != clientID {
		return domain.ServiceAccount{}, pgx.ErrNoRows
	}
	return m.account, nil
}

type fixture struct {
	service  *service.AuthService
	tenant   domain.Tenant
	users    *memoryUserRepo
	accounts *memoryServiceAccountRepo
	clock    *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	require.NoError(t, err)
	secretHash, err := bcrypt.GenerateFromPassword([]byte("client-secret"), bcrypt.MinCost)
	require.NoError(t, err)

	clock := &fakeClock{now: time.Now()}
	tenant := domain.Tenant{
		ID:              1,
		ClientID:        uuid.New(),
		Issuer:          "https://issuer.test",
		Algorithm:       "HS256",
		PrivateKey:      []byte("0123456789abcdef0123456789abcdef"),
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	}

	users := &memoryUserRepo{
		user: domain.User{ID: 10, Username: "alex", Active: true},
		password: domain.UserPassword{
			ID:        1,
			UserID:    10,
			Hash:      string(hash),
			Active:    true,
			CreatedAt: clock.Now(),
		},
		info: domain.UserInfo{UserID: 10, Name: strPtr("Alex Doe")},
		emails: []domain.UserEmail{
			{ID: 1, UserID: 10, Email: "alex@example.com", Primary: true, Verified: true},
		},
	}
	accounts := &memoryServiceAccountRepo{
		account: domain.ServiceAccount{
			ID:              20,
			ClientID:        uuid.New(),
			Name:            "backend",
			EncryptedSecret: string(secretHash),
			Active:          true,
		},
	}

	codec := jwt.NewCodecAt(clock.Now)
	svc := service.NewAuthService(
		&memoryTenantRepo{tenants: []domain.Tenant{tenant}},
		users,
		accounts,
		codec,
		zap.NewNop(),
	).WithClock(clock.Now)

	return &fixture{service: svc, tenant: tenant, users: users, accounts: accounts, clock: clock}
}

func strPtr(s string) *string { return &s }

func requireErrorBody(t *testing.T, err error, status int, fields ...string) *apierrors.ErrorBody {
	t.Helper()
	var body *apierrors.ErrorBody
	require.ErrorAs(t, err, &body)
	require.Equal(t, status, body.Status)
	for _, field := range fields {
		require.Contains(t, body.Errors, field)
	}
	return body
}

func TestPasswordGrantIssuesBearerBundle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bundle, err := f.service.Token(ctx, &f.tenant, service.TokenRequest{
		GrantType: "password",
		Username:  "alex",
		Password:  "password",
		Scope:     "openid email",
	})
	require.NoError(t, err)
	require.Equal(t, service.TokenTypeBearer, bundle.TokenType)
	require.Equal(t, service.IssuedTokenTypeAccess, bundle.IssuedTokenType)
	require.Equal(t, int64(3600), bundle.ExpiresIn)
	require.NotNil(t, bundle.RefreshToken)
	require.Equal(t, int64(86400), *bundle.RefreshTokenExpiresIn)
	require.Equal(t, "openid email", *bundle.Scope)
	require.NotNil(t, bundle.IDToken)
	require.False(t, bundle.StepUp())

	authorized, err := f.service.ResolveBearer(ctx, "Bearer "+bundle.AccessToken)
	require.NoError(t, err)
	require.Equal(t, int64(10), authorized.Claims.SubjectID)
	require.Equal(t, []string{"openid", "email"}, authorized.Claims.Scopes)
}

func TestPasswordGrantWithoutDisclosureScopeOmitsIDToken(t *testing.T) {
	f := newFixture(t)

	bundle, err := f.service.Token(context.Background(), &f.tenant, service.TokenRequest{
		GrantType: "password",
		Username:  "alex",
		Password:  "password",
		Scope:     "read write",
	})
	require.NoError(t, err)
	require.Nil(t, bundle.IDToken)
}

func TestPasswordGrantRejectsBadCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Token(ctx, &f.tenant, service.TokenRequest{
		GrantType: "password",
		Username:  "alex",
		Password:  "wrong",
	})
	wrongPassword := requireErrorBody(t, err, 401, "username", "password")

	_, err = f.service.Token(ctx, &f.tenant, service.TokenRequest{
		GrantType: "password",
		Username:  "nobody",
		Password:  "password",
	})
	unknownUser := requireErrorBody(t, err, 401, "username", "password")

	// An unknown user and a wrong password are indistinguishable.
	require.Equal(t, wrongPassword.Errors, unknownUser.Errors)
}

func TestPasswordGrantRejectsInactiveUser(t *testing.T) {
	f := newFixture(t)
	f.users.user.Active = false

	_, err := f.service.Token(context.Background(), &f.tenant, service.TokenRequest{
		GrantType: "password",
		Username:  "alex",
		Password:  "password",
	})
	requireErrorBody(t, err, 401, "username", "password")
}

func TestPasswordGrantStalePasswordIssuesReset(t *testing.T) {
	f := newFixture(t)
	f.tenant.PasswordMaxAge = time.Hour
	f.users.password.CreatedAt = f.clock.Now().Add(-2 * time.Hour)

	bundle, err := f.service.Token(context.Background(), &f.tenant, service.TokenRequest{
		GrantType: "password",
		Username:  "alex",
		Password:  "password",
		Scope:     "openid",
	})
	require.NoError(t, err)
	require.Equal(t, service.IssuedTokenTypeResetPassword, bundle.IssuedTokenType)
	require.Nil(t, bundle.RefreshToken)
	require.Nil(t, bundle.IDToken)

	// The reset credential is not a bearer access token.
	_, err = f.service.ResolveBearer(context.Background(), "Bearer "+bundle.AccessToken)
	requireErrorBody(t, err, 401, "authorization")
}

func TestRefreshGrantReissues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.service.Token(ctx, &f.tenant, service.TokenRequest{
		GrantType: "password",
		Username:  "alex",
		Password:  "password",
		Scope:     "openid",
	})
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	second, err := f.service.Token(ctx, &f.tenant, service.TokenRequest{
		GrantType:    "refresh_token",
		RefreshToken: *first.RefreshToken,
	})
	require.NoError(t, err)
	require.NotEqual(t, first.AccessToken, second.AccessToken)
	require.NotEqual(t, *first.RefreshToken, *second.RefreshToken)
	require.Equal(t, "openid", *second.Scope)
}

func TestRefreshGrantRejectsAccessToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bundle, err := f.service.Token(ctx, &f.tenant, service.TokenRequest{
		GrantType: "password",
		Username:  "alex",
		Password:  "password",
	})
	require.NoError(t, err)

	_, err = f.service.Token(ctx, &f.tenant, service.TokenRequest{
		GrantType:    "refresh_token",
		RefreshToken: bundle.AccessToken,
	})
	requireErrorBody(t, err, 401, "refresh_token")
}

func TestServiceAccountGrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bundle, err := f.service.Token(ctx, &f.tenant, service.TokenRequest{
		GrantType:    "service_account",
		ClientID:     f.accounts.account.ClientID.String(),
		ClientSecret: "client-secret",
	})
	require.NoError(t, err)
	require.Nil(t, bundle.Scope)
	require.NotNil(t, bundle.RefreshToken)

	authorized, err := f.service.ResolveBearer(ctx, "Bearer "+bundle.AccessToken)
	require.NoError(t, err)
	require.NotNil(t, authorized.ServiceAccount)
	require.Equal(t, jwt.SubjectServiceAccount, authorized.Claims.SubjectKind)
}

func TestServiceAccountGrantFailureShapesMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Token(ctx, &f.tenant, service.TokenRequest{
		GrantType:    "service_account",
		ClientID:     uuid.NewString(),
		ClientSecret: "client-secret",
	})
	unknown := requireErrorBody(t, err, 401, "client_id", "client_secret")

	_, err = f.service.Token(ctx, &f.tenant, service.TokenRequest{
		GrantType:    "service_account",
		ClientID:     f.accounts.account.ClientID.String(),
		ClientSecret: "wrong",
	})
	wrongSecret := requireErrorBody(t, err, 401, "client_id", "client_secret")

	require.Equal(t, unknown.Status, wrongSecret.Status)
	require.Equal(t, unknown.Errors, wrongSecret.Errors)
}

func TestAuthorizationCodeGrantNarrowsScopes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	codec := jwt.NewCodecAt(f.clock.Now)

	code, err := codec.Encode(&f.tenant, authorizationCode(f, []string{"openid", "email"}))
	require.NoError(t, err)

	bundle, err := f.service.Token(ctx, &f.tenant, service.TokenRequest{
		GrantType: "authorization_code",
		Code:      code,
		Scope:     "email admin",
	})
	require.NoError(t, err)
	require.Equal(t, "email", *bundle.Scope)
	require.NotNil(t, bundle.RefreshToken)
}

func TestAuthorizationCodeGrantRejectsBearerToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bundle, err := f.service.Token(ctx, &f.tenant, service.TokenRequest{
		GrantType: "password",
		Username:  "alex",
		Password:  "password",
	})
	require.NoError(t, err)

	_, err = f.service.Token(ctx, &f.tenant, service.TokenRequest{
		GrantType: "authorization_code",
		Code:      bundle.AccessToken,
	})
	requireErrorBody(t, err, 401, "code")
}

func TestUnknownGrantType(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Token(context.Background(), &f.tenant, service.TokenRequest{GrantType: "device_code"})
	requireErrorBody(t, err, 400, "grant_type")
}

func authorizationCode(f *fixture, scopes []string) jwt.Claims {
	now := f.clock.Now()
	return jwt.Claims{
		Claims: gojwt.Claims{
			Issuer:    f.tenant.Issuer,
			Subject:   "10",
			IssuedAt:  gojwt.NewNumericDate(now),
			NotBefore: gojwt.NewNumericDate(now),
			Expiry:    gojwt.NewNumericDate(now.Add(time.Minute)),
		},
		Kind:        jwt.KindAuthorizationCode,
		SubjectKind: jwt.SubjectUser,
		SubjectID:   10,
		TenantID:    f.tenant.ID,
		Scopes:      scopes,
	}
}

func TestMFAStepUpWithTOTP(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.users.mfa = &domain.UserMFA{UserID: 10, Factor: domain.MFAFactorTOTP}
	f.users.totp = &domain.UserTOTP{
		ID: 1, UserID: 10, Secret: totpSecret,
		Algorithm: "SHA1", Digits: 6, Period: 30, Active: true,
	}

	stepUp, err := f.service.Token(ctx, &f.tenant, service.TokenRequest{
		GrantType: "password",
		Username:  "alex",
		Password:  "password",
		Scope:     "openid",
	})
	require.NoError(t, err)
	require.True(t, stepUp.StepUp())
	require.Equal(t, service.IssuedTokenTypeMFATOTP, stepUp.IssuedTokenType)
	require.Nil(t, stepUp.RefreshToken)

	// The step-up credential is not usable as a bearer token.
	_, err = f.service.ResolveBearer(ctx, "Bearer "+stepUp.AccessToken)
	requireErrorBody(t, err, 401, "authorization")

	authorized, err := f.service.ResolveMFAStepUp(ctx, "Bearer "+stepUp.AccessToken)
	require.NoError(t, err)

	code, err := totp.GenerateCodeCustom(totpSecret, f.clock.Now().UTC(), totp.ValidateOpts{
		Period: 30, Skew: 1, Digits: otp.DigitsSix, Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)

	bundle, err := f.service.VerifyMFA(ctx, authorized, service.MFARequest{TOTP: code})
	require.NoError(t, err)
	require.False(t, bundle.StepUp())
	require.NotNil(t, bundle.RefreshToken)
	require.Equal(t, "openid", *bundle.Scope)
	require.NotNil(t, bundle.IDToken)
}

func TestMFARejectsBadTOTPCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.users.mfa = &domain.UserMFA{UserID: 10, Factor: domain.MFAFactorTOTP}
	f.users.totp = &domain.UserTOTP{
		ID: 1, UserID: 10, Secret: totpSecret,
		Algorithm: "SHA1", Digits: 6, Period: 30, Active: true,
	}

	authorized := stepUpAuthorized(t, f)

	_, err := f.service.VerifyMFA(ctx, authorized, service.MFARequest{TOTP: "000000"})
	requireErrorBody(t, err, 401, "totp")
}

func TestMFARejectsMissingEnrollment(t *testing.T) {
	f := newFixture(t)
	f.users.mfa = &domain.UserMFA{UserID: 10, Factor: domain.MFAFactorTOTP}

	authorized := stepUpAuthorized(t, f)

	_, err := f.service.VerifyMFA(context.Background(), authorized, service.MFARequest{TOTP: "123456"})
	requireErrorBody(t, err, 404, "totp")
}

func TestMFARejectsFactorMismatch(t *testing.T) {
	f := newFixture(t)
	f.users.mfa = &domain.UserMFA{UserID: 10, Factor: domain.MFAFactorTOTP}

	authorized := stepUpAuthorized(t, f)

	_, err := f.service.VerifyMFA(context.Background(), authorized, service.MFARequest{ServiceAccount: "proof"})
	requireErrorBody(t, err, 401, "service_account")
}

func TestMFARequiresProof(t *testing.T) {
	f := newFixture(t)
	f.users.mfa = &domain.UserMFA{UserID: 10, Factor: domain.MFAFactorTOTP}

	authorized := stepUpAuthorized(t, f)

	_, err := f.service.VerifyMFA(context.Background(), authorized, service.MFARequest{})
	requireErrorBody(t, err, 400, "totp")
}

func TestMFAServiceAccountFactor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.users.mfa = &domain.UserMFA{UserID: 10, Factor: domain.MFAFactorServiceAccount}

	authorized := stepUpAuthorized(t, f)

	proof, err := f.service.Token(ctx, &f.tenant, service.TokenRequest{
		GrantType:    "service_account",
		ClientID:     f.accounts.account.ClientID.String(),
		ClientSecret: "client-secret",
	})
	require.NoError(t, err)

	bundle, err := f.service.VerifyMFA(ctx, authorized, service.MFARequest{ServiceAccount: proof.AccessToken})
	require.NoError(t, err)
	require.False(t, bundle.StepUp())

	_, err = f.service.VerifyMFA(ctx, authorized, service.MFARequest{ServiceAccount: "garbage"})
	requireErrorBody(t, err, 401, "service_account")
}

func stepUpAuthorized(t *testing.T, f *fixture) *service.Authorized {
	t.Helper()
	stepUp, err := f.service.Token(context.Background(), &f.tenant, service.TokenRequest{
		GrantType: "password",
		Username:  "alex",
		Password:  "password",
		Scope:     "openid",
	})
	require.NoError(t, err)
	require.True(t, stepUp.StepUp())

	authorized, err := f.service.ResolveMFAStepUp(context.Background(), "Bearer "+stepUp.AccessToken)
	require.NoError(t, err)
	return authorized
}

func TestResolveAuthorizationKindIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bundle, err := f.service.Token(ctx, &f.tenant, service.TokenRequest{
		GrantType: "password",
		Username:  "alex",
		Password:  "password",
	})
	require.NoError(t, err)

	_, err = f.service.ResolveAuthorization(ctx, "Bearer "+bundle.AccessToken, jwt.KindBearer, jwt.SubjectUser)
	require.NoError(t, err)

	_, err = f.service.ResolveAuthorization(ctx, "Bearer "+bundle.AccessToken, jwt.KindBearer, jwt.SubjectServiceAccount)
	requireErrorBody(t, err, 401, "authorization")

	_, err = f.service.ResolveAuthorization(ctx, "Bearer "+*bundle.RefreshToken, jwt.KindBearer, jwt.SubjectUser)
	requireErrorBody(t, err, 401, "authorization")

	_, err = f.service.ResolveAuthorization(ctx, "", jwt.KindBearer, jwt.SubjectUser)
	requireErrorBody(t, err, 401, "authorization")

	_, err = f.service.ResolveAuthorization(ctx, "Basic dXNlcjpwYXNz", jwt.KindBearer, jwt.SubjectUser)
	requireErrorBody(t, err, 401, "authorization")
}

func TestResolveBearerRejectsInactiveSubject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bundle, err := f.service.Token(ctx, &f.tenant, service.TokenRequest{
		GrantType: "password",
		Username:  "alex",
		Password:  "password",
	})
	require.NoError(t, err)

	f.users.user.Active = false
	_, err = f.service.ResolveBearer(ctx, "Bearer "+bundle.AccessToken)
	requireErrorBody(t, err, 401, "authorization")
}

func TestSignAndDecodeClaims(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token, err := f.service.SignClaims(ctx, &f.tenant, map[string]any{"role": "admin"})
	require.NoError(t, err)

	claims, err := f.service.DecodeClaims(ctx, &f.tenant, token)
	require.NoError(t, err)
	require.Equal(t, "admin", claims["role"])
	require.Equal(t, f.tenant.Issuer, claims["iss"])

	other := f.tenant
	other.ClientID = uuid.New()
	other.PrivateKey = []byte("ffffffffffffffffffffffffffffffff")
	_, err = f.service.DecodeClaims(ctx, &other, token)
	requireErrorBody(t, err, 401, "authorization")
}
