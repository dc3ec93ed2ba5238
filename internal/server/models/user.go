// Package models defines the records persisted by the server: users, their
// reimbursement requests and the audit log.
package models

import "time"

// Plan is a subscription tier.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanPro     Plan = "pro"
	PlanPremium Plan = "premium"
)

// Valid reports whether p is one of the known tiers.
func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanPro, PlanPremium:
		return true
	}
	return false
}

// User is an account. Email is stored lower-cased and is unique. An
// unverified user always holds a VerificationToken; verifying clears it.
type User struct {
	ID                      string    `json:"id"`
	Email                   string    `json:"email"`
	PasswordHash            string    `json:"password"`
	Name                    string    `json:"name"`
	Plan                    Plan      `json:"plan"`
	IsVerified              bool      `json:"isVerified"`
	IsAdmin                 bool      `json:"isAdmin,omitempty"`
	VerificationToken       string    `json:"verificationToken,omitempty"`
	CreatedAt               time.Time `json:"createdAt"`
	ReimbursementsThisMonth int       `json:"reimbursementsThisMonth"`
	LastMonthReset          time.Time `json:"lastMonthReset"`
}

// PublicUser is a User without its password hash and verification token.
type PublicUser struct {
	ID                      string    `json:"id"`
	Email                   string    `json:"email"`
	Name                    string    `json:"name"`
	Plan                    Plan      `json:"plan"`
	IsVerified              bool      `json:"isVerified"`
	IsAdmin                 bool      `json:"isAdmin,omitempty"`
	CreatedAt               time.Time `json:"createdAt"`
	ReimbursementsThisMonth int       `json:"reimbursementsThisMonth"`
	LastMonthReset          time.Time `json:"lastMonthReset"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:                      u.ID,
		Email:                   u.Email,
		Name:                    u.Name,
		Plan:                    u.Plan,
		IsVerified:              u.IsVerified,
		IsAdmin:                 u.IsAdmin,
		CreatedAt:               u.CreatedAt,
		ReimbursementsThisMonth: u.ReimbursementsThisMonth,
		LastMonthReset:          u.LastMonthReset,
	}
}

// Clone returns a copy safe to mutate.
func (u *User) Clone() *User {
	c := *u
	return &c
}
