package domain

import "time"

// User represents an end user that can authenticate within the service.
type User struct {
	ID        int64
	Username  string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserPassword is one credential row; at most one row per user is active.
type UserPassword struct {
	ID        int64
	UserID    int64
	Hash      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserInfo holds the OpenID profile fields disclosed under the profile scope.
type UserInfo struct {
	UserID     int64
	Name       *string
	GivenName  *string
	FamilyName *string
	MiddleName *string
	Nickname   *string
	Picture    *string
	Website    *string
	Gender     *string
	Birthdate  *time.Time
	Locale     *string
	ZoneInfo   *string
	Address    *string
	UpdatedAt  time.Time
}

// UserEmail is one email address owned by a user.
type UserEmail struct {
	ID        int64
	UserID    int64
	Email     string
	Primary   bool
	Verified  bool
	CreatedAt time.Time
}

// UserPhoneNumber is one phone number owned by a user.
type UserPhoneNumber struct {
	ID          int64
	UserID      int64
	PhoneNumber string
	Primary     bool
	Verified    bool
	CreatedAt   time.Time
}

// UserTOTP stores a user's active TOTP enrollment.
type UserTOTP struct {
	ID        int64
	UserID    int64
	Secret    string
	Algorithm string
	Digits    int
	Period    int
	Active    bool
	CreatedAt time.Time
}

// MFAFactor names the second factor a user has configured.
type MFAFactor string

const (
	MFAFactorNone           MFAFactor = ""
	MFAFactorTOTP           MFAFactor = "totp"
	MFAFactorServiceAccount MFAFactor = "service_account"
)

// UserMFA records which second factor, if any, a user login must prove.
type UserMFA struct {
	UserID    int64
	Factor    MFAFactor
	CreatedAt time.Time
}
