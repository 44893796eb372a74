package usecase

import (
	"context"
	"fmt"
	"time"

	"storycast/domain/model"
	"storycast/domain/repository"
	"storycast/infrastructure/logger"
)

// RefreshTrigger tags why a refresh was attempted; the trigger decides whether
// a failed refresh demotes the account.
type RefreshTrigger string

const (
	TriggerRecovery         RefreshTrigger = "RECOVERY"
	TriggerHealthFailure    RefreshTrigger = "HEALTH_FAILURE"
	TriggerCriticalExpiry   RefreshTrigger = "CRITICAL_EXPIRY"
	TriggerProactiveRenewal RefreshTrigger = "PROACTIVE_RENEWAL"
	TriggerPrePublish       RefreshTrigger = "PRE_PUBLISH"
)

// ITokenLifecycle keeps linked-account credentials usable: proactively on the
// periodic sweep and reactively right before a publish.
type ITokenLifecycle interface {
	// RefreshIfNeeded refreshes the account's token when it is expired or
	// inside the pre-publish buffer. On refresh failure the account is
	// demoted to expired and an error returned.
	RefreshIfNeeded(ctx context.Context, account *model.LinkedAccount) (*model.LinkedAccount, error)
	// RefreshAccount performs one tagged refresh attempt.
	RefreshAccount(ctx context.Context, account *model.LinkedAccount, trigger RefreshTrigger) (*model.LinkedAccount, error)
	// Sweep evaluates every account against the lifecycle triggers.
	Sweep(ctx context.Context) error
}

type TokenLifecycleManager struct {
	accounts        repository.IAccountStore
	clients         map[model.Platform]repository.IPlatformClient
	refreshBuffer   time.Duration
	criticalWindow  time.Duration
	proactiveWindow time.Duration
	now             func() time.Time
}

func NewTokenLifecycleManager(accounts repository.IAccountStore, clients map[model.Platform]repository.IPlatformClient) *TokenLifecycleManager {
	return &TokenLifecycleManager{
		accounts:        accounts,
		clients:         clients,
		refreshBuffer:   5 * time.Minute,
		criticalWindow:  24 * time.Hour,
		proactiveWindow: 7 * 24 * time.Hour,
		now:             time.Now,
	}
}

func (m *TokenLifecycleManager) RefreshIfNeeded(ctx context.Context, account *model.LinkedAccount) (*model.LinkedAccount, error) {
	if account.TokenTimeRemaining(m.now()) > m.refreshBuffer && account.Status == model.AccountStatusActive {
		return account, nil
	}
	refreshed, err := m.RefreshAccount(ctx, account, TriggerPrePublish)
	if err != nil {
		return nil, err
	}
	return refreshed, nil
}

func (m *TokenLifecycleManager) RefreshAccount(ctx context.Context, account *model.LinkedAccount, trigger RefreshTrigger) (*model.LinkedAccount, error) {
	lg := logger.GetLogger().
		WithField("account_id", account.ID).
		WithField("platform", account.Platform).
		WithField("trigger", string(trigger))

	client, ok := m.clients[account.Platform]
	if !ok {
		return nil, fmt.Errorf("no platform client registered for %s", account.Platform)
	}

	tok, err := client.RefreshToken(ctx, account)
	if err != nil {
		lg.WithField("error", err).Warn("Token refresh failed")
		if m.demotesOnFailure(trigger) {
			expired := model.AccountStatusExpired
			if uErr := m.accounts.UpdateAccount(ctx, account.ID, &model.AccountPatch{Status: &expired}); uErr != nil {
				lg.WithField("error", uErr).Error("Failed demoting account to expired")
			} else {
				account.Status = model.AccountStatusExpired
			}
		}
		return nil, err
	}

	expiry := m.now().Add(time.Duration(tok.ExpiresIn) * time.Second).UTC()
	active := model.AccountStatusActive
	patch := &model.AccountPatch{
		AccessToken:    &tok.AccessToken,
		TokenExpiresAt: &expiry,
		Status:         &active,
	}
	if tok.RefreshToken != "" {
		patch.RefreshToken = &tok.RefreshToken
	}
	if err := m.accounts.UpdateAccount(ctx, account.ID, patch); err != nil {
		return nil, err
	}

	account.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		account.RefreshToken = tok.RefreshToken
	}
	account.TokenExpiresAt = expiry
	account.Status = model.AccountStatusActive
	lg.WithField("expires_at", expiry).Info("Token refreshed")
	return account, nil
}

// demotesOnFailure: a proactive renewal still has runway, so failure only
// logs. Every other trigger forces the account out of eligibility.
func (m *TokenLifecycleManager) demotesOnFailure(trigger RefreshTrigger) bool {
	return trigger != TriggerProactiveRenewal
}

func (m *TokenLifecycleManager) Sweep(ctx context.Context) error {
	accounts, err := m.accounts.ListAccounts(ctx)
	if err != nil {
		return err
	}
	for _, account := range accounts {
		trigger, ok := m.evaluate(ctx, account)
		if !ok {
			continue
		}
		if _, err := m.RefreshAccount(ctx, account, trigger); err != nil {
			// Outcome already logged and applied per trigger; the sweep
			// keeps going so one broken account never blocks the rest.
			continue
		}
	}
	return nil
}

// evaluate picks the first matching trigger for an account, or false when the
// credentials need no attention this sweep.
func (m *TokenLifecycleManager) evaluate(ctx context.Context, account *model.LinkedAccount) (RefreshTrigger, bool) {
	if account.Status == model.AccountStatusExpired || account.Status == model.AccountStatusError {
		return TriggerRecovery, true
	}
	if account.Status != model.AccountStatusActive {
		return "", false
	}

	if client, ok := m.clients[account.Platform]; ok {
		healthy, err := client.VerifyTokenHealth(ctx, account.AccessToken)
		if err != nil {
			logger.GetLogger().WithField("account_id", account.ID).WithField("error", err).Warn("Token health probe errored")
		} else if !healthy {
			return TriggerHealthFailure, true
		}
	}

	remaining := account.TokenTimeRemaining(m.now())
	switch {
	case remaining < m.criticalWindow:
		return TriggerCriticalExpiry, true
	case remaining < m.proactiveWindow:
		return TriggerProactiveRenewal, true
	}
	return "", false
}
