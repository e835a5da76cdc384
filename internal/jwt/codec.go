package jwt

import (
	"errors"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"

	"github.com/aicacia/go-auth/internal/domain"
)

// Codec errors. Every decode failure that is not a time-window violation
// collapses to ErrInvalidToken.
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenNotYetValid = errors.New("token not yet valid")
)

// allSignatureAlgorithms bounds what ParseSigned will accept before the
// tenant's own algorithm is known.
var allSignatureAlgorithms = []jose.SignatureAlgorithm{jose.HS256, jose.HS384, jose.HS512}

// Codec signs and verifies claim payloads against a tenant's key and
// algorithm.
type Codec struct {
	now func() time.Time
}

// NewCodec returns a Codec using the wall clock.
func NewCodec() *Codec {
	return &Codec{now: time.Now}
}

// NewCodecAt returns a Codec with an injected clock, for tests.
func NewCodecAt(now func() time.Time) *Codec {
	return &Codec{now: now}
}

// Encode signs claims with the tenant's key and embeds the tenant client id
// as the token key identifier.
func (c *Codec) Encode(tenant *domain.Tenant, claims any) (string, error) {
	key, err := signingKey(tenant)
	if err != nil {
		return "", err
	}
	opts := (&jose.SignerOptions{}).
		WithType("JWT").
		WithHeader(jose.HeaderKey("kid"), tenant.ClientID.String())
	signer, err := jose.NewSigner(key, opts)
	if err != nil {
		return "", err
	}
	return gojwt.Signed(signer).Claims(claims).Serialize()
}

// DecodeUnvalidated parses the token without any signature check and
// returns the claims alongside the tenant client id from the key-id header.
// Output is only good for looking up the tenant whose key verifies the
// token; it must never feed an authorization decision.
func (c *Codec) DecodeUnvalidated(token string) (*Claims, uuid.UUID, error) {
	parsed, err := gojwt.ParseSigned(token, allSignatureAlgorithms)
	if err != nil {
		return nil, uuid.Nil, ErrInvalidToken
	}
	if len(parsed.Headers) != 1 {
		return nil, uuid.Nil, ErrInvalidToken
	}
	clientID, err := uuid.Parse(parsed.Headers[0].KeyID)
	if err != nil {
		return nil, uuid.Nil, ErrInvalidToken
	}
	var claims Claims
	if err := parsed.UnsafeClaimsWithoutVerification(&claims); err != nil {
		return nil, uuid.Nil, ErrInvalidToken
	}
	return &claims, clientID, nil
}

// DecodeValidated verifies the signature with the tenant's key, then the
// not-before/expiry window, issuer equality, and audience equality when the
// tenant declares one.
func (c *Codec) DecodeValidated(token string, tenant *domain.Tenant) (*Claims, error) {
	var claims Claims
	if err := c.decodeInto(token, tenant, &claims); err != nil {
		return nil, err
	}
	if err := c.validate(claims.Claims, tenant); err != nil {
		return nil, err
	}
	if !claims.Kind.Valid() || !claims.SubjectKind.Valid() || claims.TenantID != tenant.ID {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// DecodeValidatedMap verifies a token the same way as DecodeValidated but
// returns the raw claim map; used for back-office signed claim sets that
// carry no kind.
func (c *Codec) DecodeValidatedMap(token string, tenant *domain.Tenant) (map[string]any, error) {
	var std gojwt.Claims
	out := map[string]any{}
	if err := c.decodeInto(token, tenant, &std, &out); err != nil {
		return nil, err
	}
	if err := c.validate(std, tenant); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Codec) decodeInto(token string, tenant *domain.Tenant, dests ...any) error {
	key, err := signingKey(tenant)
	if err != nil {
		return err
	}
	alg, _ := ParseAlgorithm(tenant.Algorithm)
	parsed, err := gojwt.ParseSigned(token, []jose.SignatureAlgorithm{alg.signature()})
	if err != nil {
		return ErrInvalidToken
	}
	if len(parsed.Headers) != 1 || parsed.Headers[0].KeyID != tenant.ClientID.String() {
		return ErrInvalidToken
	}
	if err := parsed.Claims(key.Key, dests...); err != nil {
		return ErrInvalidToken
	}
	return nil
}

func (c *Codec) validate(std gojwt.Claims, tenant *domain.Tenant) error {
	expected := gojwt.Expected{Issuer: tenant.Issuer, Time: c.now()}
	if tenant.Audience != nil {
		expected.AnyAudience = gojwt.Audience{*tenant.Audience}
	}
	switch err := std.Validate(expected); {
	case err == nil:
		return nil
	case errors.Is(err, gojwt.ErrExpired):
		return ErrTokenExpired
	case errors.Is(err, gojwt.ErrNotValidYet):
		return ErrTokenNotYetValid
	default:
		return ErrInvalidToken
	}
}
