package domain

import (
	"time"

	"github.com/google/uuid"
)

// ServiceAccount is a machine principal authenticating with a client
// id/secret pair. EncryptedSecret is a bcrypt hash of the secret.
type ServiceAccount struct {
	ID              int64
	ClientID        uuid.UUID
	Name            string
	EncryptedSecret string
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
