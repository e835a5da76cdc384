// Package openid maps requested disclosure scopes to the subset of profile
// and contact fields exposed in id tokens and profile reads.
package openid

import (
	"time"

	"github.com/aicacia/go-auth/internal/domain"
)

// Disclosure scopes. ScopeOpenID implies ScopeProfile.
const (
	ScopeOpenID  = "openid"
	ScopeProfile = "profile"
	ScopeEmail   = "email"
	ScopePhone   = "phone"
	ScopeAddress = "address"
)

// HasDisclosureScope reports whether any scope in the list unlocks id-token
// claims at all.
func HasDisclosureScope(scopes []string) bool {
	for _, s := range scopes {
		switch s {
		case ScopeOpenID, ScopeProfile, ScopeEmail, ScopePhone, ScopeAddress:
			return true
		}
	}
	return false
}

// Projection is the partial claim set produced for a scope request. Absent
// fields stay nil and are omitted from the serialized token, never null.
type Projection struct {
	Name                *string `json:"name,omitempty"`
	GivenName           *string `json:"given_name,omitempty"`
	FamilyName          *string `json:"family_name,omitempty"`
	MiddleName          *string `json:"middle_name,omitempty"`
	Nickname            *string `json:"nickname,omitempty"`
	Picture             *string `json:"picture,omitempty"`
	Website             *string `json:"website,omitempty"`
	Gender              *string `json:"gender,omitempty"`
	Birthdate           *string `json:"birthdate,omitempty"`
	Locale              *string `json:"locale,omitempty"`
	ZoneInfo            *string `json:"zoneinfo,omitempty"`
	Address             *string `json:"address,omitempty"`
	Email               *string `json:"email,omitempty"`
	EmailVerified       *bool   `json:"email_verified,omitempty"`
	PhoneNumber         *string `json:"phone_number,omitempty"`
	PhoneNumberVerified *bool   `json:"phone_number_verified,omitempty"`
}

// Project is a pure function of the requested scopes and the user's profile
// and contact rows. The same selection policy applies everywhere the
// projection is used.
func Project(scopes []string, info domain.UserInfo, emails []domain.UserEmail, phones []domain.UserPhoneNumber) Projection {
	var p Projection
	for _, scope := range scopes {
		switch scope {
		case ScopeOpenID, ScopeProfile:
			p.Name = info.Name
			p.GivenName = info.GivenName
			p.FamilyName = info.FamilyName
			p.MiddleName = info.MiddleName
			p.Nickname = info.Nickname
			p.Picture = info.Picture
			p.Website = info.Website
			p.Gender = info.Gender
			p.Birthdate = formatBirthdate(info.Birthdate)
			p.Locale = info.Locale
			p.ZoneInfo = info.ZoneInfo
		case ScopeEmail:
			if email := pickEmail(emails); email != nil {
				p.Email = &email.Email
				p.EmailVerified = &email.Verified
			}
		case ScopePhone:
			if phone := pickPhone(phones); phone != nil {
				p.PhoneNumber = &phone.PhoneNumber
				p.PhoneNumberVerified = &phone.Verified
			}
		case ScopeAddress:
			p.Address = info.Address
			p.Locale = info.Locale
			p.ZoneInfo = info.ZoneInfo
		}
	}
	return p
}

// pickEmail applies the multi-valued contact policy: primary first, then
// verified, then the first available, else none.
func pickEmail(emails []domain.UserEmail) *domain.UserEmail {
	for i := range emails {
		if emails[i].Primary {
			return &emails[i]
		}
	}
	for i := range emails {
		if emails[i].Verified {
			return &emails[i]
		}
	}
	if len(emails) > 0 {
		return &emails[0]
	}
	return nil
}

func pickPhone(phones []domain.UserPhoneNumber) *domain.UserPhoneNumber {
	for i := range phones {
		if phones[i].Primary {
			return &phones[i]
		}
	}
	for i := range phones {
		if phones[i].Verified {
			return &phones[i]
		}
	}
	if len(phones) > 0 {
		return &phones[0]
	}
	return nil
}

func formatBirthdate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}
