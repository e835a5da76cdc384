package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tenant represents a registered client application with its own signing
// material, issuer/audience, and token lifetimes.
type Tenant struct {
	ID              int64
	ClientID        uuid.UUID
	Issuer          string
	Audience        *string
	Algorithm       string
	PublicKey       *string
	PrivateKey      []byte
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	// PasswordMaxAge forces a reset-password issuance on login when the
	// active password is older than this. Zero disables the check.
	PasswordMaxAge time.Duration
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
