package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"storycast/domain/model"
	"storycast/infrastructure/logger"
)

const accountColumns = `id, platform, external_id, display_name, access_token, refresh_token,
	token_expires_at, status, daily_used, daily_limit, monthly_used, monthly_limit,
	quota_reset_at, monthly_reset_at, last_published_at, created_at, updated_at`

// AccountRepository implements IAccountStore on PostgreSQL. Quota counters
// are only ever mutated server-side so concurrent dispatchers cannot lose
// increments.
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetAccount(ctx context.Context, id string) (*model.LinkedAccount, error) {
	query := fmt.Sprintf("SELECT %s FROM linked_accounts WHERE id = $1", accountColumns)
	row := r.db.QueryRowContext(ctx, query, id)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (r *AccountRepository) ListAccounts(ctx context.Context) ([]*model.LinkedAccount, error) {
	query := fmt.Sprintf("SELECT %s FROM linked_accounts ORDER BY created_at", accountColumns)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.GetLogger().WithField("error", err).Error("Error while closing rows")
		}
	}()

	var accounts []*model.LinkedAccount
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (r *AccountRepository) UpdateAccount(ctx context.Context, id string, patch *model.AccountPatch) error {
	sets := []string{"updated_at = now()"}
	args := []interface{}{}
	idx := 1
	if patch.AccessToken != nil {
		sets = append(sets, fmt.Sprintf("access_token = $%d", idx))
		args = append(args, *patch.AccessToken)
		idx++
	}
	if patch.RefreshToken != nil {
		sets = append(sets, fmt.Sprintf("refresh_token = $%d", idx))
		args = append(args, *patch.RefreshToken)
		idx++
	}
	if patch.TokenExpiresAt != nil {
		sets = append(sets, fmt.Sprintf("token_expires_at = $%d", idx))
		args = append(args, *patch.TokenExpiresAt)
		idx++
	}
	if patch.Status != nil {
		sets = append(sets, fmt.Sprintf("status = $%d", idx))
		args = append(args, string(*patch.Status))
		idx++
	}
	query := fmt.Sprintf("UPDATE linked_accounts SET %s WHERE id = $%d", strings.Join(sets, ", "), idx)
	args = append(args, id)
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *AccountRepository) RecordPublish(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE linked_accounts
		SET daily_used = daily_used + 1,
		    monthly_used = monthly_used + 1,
		    last_published_at = $1,
		    updated_at = now()
		WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, at, id)
	return err
}

func (r *AccountRepository) ResetExpiredQuotas(ctx context.Context, now time.Time) error {
	daily := `UPDATE linked_accounts
		SET daily_used = 0,
		    quota_reset_at = $1 + INTERVAL '24 hours',
		    updated_at = now()
		WHERE quota_reset_at <= $1`
	if _, err := r.db.ExecContext(ctx, daily, now); err != nil {
		return err
	}
	monthly := `UPDATE linked_accounts
		SET monthly_used = 0,
		    monthly_reset_at = $1 + INTERVAL '30 days',
		    updated_at = now()
		WHERE monthly_reset_at <= $1`
	_, err := r.db.ExecContext(ctx, monthly, now)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*model.LinkedAccount, error) {
	var a model.LinkedAccount
	var lastPublished sql.NullTime
	err := row.Scan(
		&a.ID, &a.Platform, &a.ExternalID, &a.DisplayName, &a.AccessToken, &a.RefreshToken,
		&a.TokenExpiresAt, &a.Status, &a.DailyUsed, &a.DailyLimit, &a.MonthlyUsed, &a.MonthlyLimit,
		&a.QuotaResetAt, &a.MonthlyResetAt, &lastPublished, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastPublished.Valid {
		a.LastPublishedAt = &lastPublished.Time
	}
	return &a, nil
}
