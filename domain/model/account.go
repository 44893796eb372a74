package model

import "time"

type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "active"
	AccountStatusInactive AccountStatus = "inactive"
	AccountStatusExpired  AccountStatus = "expired"
	AccountStatusError    AccountStatus = "error"
)

// LinkedAccount is a credentialed identity on one platform. Token and status
// fields are mutated by the token lifecycle manager; quota counters and
// last-published-at by the dispatcher, via atomic updates at the store.
type LinkedAccount struct {
	ID              string        `json:"id"`
	Platform        Platform      `json:"platform"`
	ExternalID      string        `json:"external_id"`
	DisplayName     string        `json:"display_name"`
	AccessToken     string        `json:"-"`
	RefreshToken    string        `json:"-"`
	TokenExpiresAt  time.Time     `json:"token_expires_at"`
	Status          AccountStatus `json:"status"`
	DailyUsed       int           `json:"daily_used"`
	DailyLimit      int           `json:"daily_limit"`
	MonthlyUsed     int           `json:"monthly_used"`
	MonthlyLimit    int           `json:"monthly_limit"`
	QuotaResetAt    time.Time     `json:"quota_reset_at"`
	MonthlyResetAt  time.Time     `json:"monthly_reset_at"`
	LastPublishedAt *time.Time    `json:"last_published_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// TokenTimeRemaining reports how long the access token stays valid from now.
func (a *LinkedAccount) TokenTimeRemaining(now time.Time) time.Duration {
	return a.TokenExpiresAt.Sub(now)
}

// DailyQuotaExhausted reports whether another publish would exceed the daily
// window. A zero limit means unlimited.
func (a *LinkedAccount) DailyQuotaExhausted() bool {
	return a.DailyLimit > 0 && a.DailyUsed >= a.DailyLimit
}

func (a *LinkedAccount) MonthlyQuotaExhausted() bool {
	return a.MonthlyLimit > 0 && a.MonthlyUsed >= a.MonthlyLimit
}

// AccountPatch is a partial update for one linked account.
type AccountPatch struct {
	AccessToken    *string
	RefreshToken   *string
	TokenExpiresAt *time.Time
	Status         *AccountStatus
}
