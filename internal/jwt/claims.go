// Package jwt implements the tenant-scoped claims codec. Tokens are signed
// and verified with the owning tenant's key and algorithm, and carry the
// tenant client id in the "kid" header so verification can resolve the
// tenant before the key is known.
package jwt

import (
	"fmt"

	gojwt "github.com/go-jose/go-jose/v4/jwt"

	"github.com/aicacia/go-auth/internal/domain"
	"github.com/aicacia/go-auth/internal/openid"
)

// Kind determines which operation may accept a token. Tokens are
// single-purpose and never reusable across kinds.
type Kind string

const (
	KindBearer            Kind = "bearer"
	KindRefresh           Kind = "refresh"
	KindAuthorizationCode Kind = "authorization_code"
	KindResetPassword     Kind = "reset_password"
	KindMFATOTP           Kind = "mfa_totp"
	KindMFAServiceAccount Kind = "mfa_service_account"
	KindID                Kind = "id"
)

// Valid reports whether k is a member of the closed kind set.
func (k Kind) Valid() bool {
	switch k {
	case KindBearer, KindRefresh, KindAuthorizationCode, KindResetPassword,
		KindMFATOTP, KindMFAServiceAccount, KindID:
		return true
	}
	return false
}

// MFAFactor returns the factor a step-up kind demands, or false for
// terminal kinds.
func (k Kind) MFAFactor() (domain.MFAFactor, bool) {
	switch k {
	case KindMFATOTP:
		return domain.MFAFactorTOTP, true
	case KindMFAServiceAccount:
		return domain.MFAFactorServiceAccount, true
	}
	return domain.MFAFactorNone, false
}

// MFAKindFor maps a configured factor to the step-up kind issued for it.
func MFAKindFor(factor domain.MFAFactor) (Kind, error) {
	switch factor {
	case domain.MFAFactorTOTP:
		return KindMFATOTP, nil
	case domain.MFAFactorServiceAccount:
		return KindMFAServiceAccount, nil
	}
	return "", fmt.Errorf("no step-up kind for factor %q", factor)
}

// SubjectKind separates human users from machine service accounts.
type SubjectKind string

const (
	SubjectUser           SubjectKind = "user"
	SubjectServiceAccount SubjectKind = "service_account"
)

// Valid reports whether s is a member of the closed subject-kind set.
func (s SubjectKind) Valid() bool {
	return s == SubjectUser || s == SubjectServiceAccount
}

// Claims is the payload of every token this service issues. Claims are
// constructed fresh per request and never persisted.
type Claims struct {
	gojwt.Claims
	Kind        Kind        `json:"kind"`
	SubjectKind SubjectKind `json:"sub_kind"`
	SubjectID   int64       `json:"sub_id"`
	TenantID    int64       `json:"tenant_id"`
	Scopes      []string    `json:"scopes,omitempty"`
}

// IDClaims is the id-token payload: base claims plus the scope-gated
// profile and contact projection. Absent fields are omitted, never null.
type IDClaims struct {
	Claims
	openid.Projection
}
