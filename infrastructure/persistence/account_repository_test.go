package persistence

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"storycast/domain/model"
)

func accountRows(t *testing.T) *sqlmock.Rows {
	t.Helper()
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "platform", "external_id", "display_name", "access_token", "refresh_token",
		"token_expires_at", "status", "daily_used", "daily_limit", "monthly_used", "monthly_limit",
		"quota_reset_at", "monthly_reset_at", "last_published_at", "created_at", "updated_at",
	}).AddRow(
		"acc-1", "facebook", "page-42", "Brand Page", "tok", "refresh",
		now.Add(48*time.Hour), "active", 2, 25, 10, 500,
		now.Add(12*time.Hour), now.Add(20*24*time.Hour), nil, now, now,
	)
}

func TestAccountRepository_GetAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewAccountRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM linked_accounts WHERE id = \\$1").
		WithArgs("acc-1").
		WillReturnRows(accountRows(t))

	account, err := repository.GetAccount(context.Background(), "acc-1")
	require.NoError(t, err)
	require.NotNil(t, account)
	require.Equal(t, "acc-1", account.ID)
	require.Equal(t, model.PlatformFacebook, account.Platform)
	require.Equal(t, model.AccountStatusActive, account.Status)
	require.Equal(t, 2, account.DailyUsed)
	require.Nil(t, account.LastPublishedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_GetAccount_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewAccountRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM linked_accounts WHERE id = \\$1").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	account, err := repository.GetAccount(context.Background(), "ghost")
	require.NoError(t, err, "an absent account is not an error")
	require.Nil(t, account)
}

func TestAccountRepository_UpdateAccount_PartialPatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewAccountRepository(db)

	status := model.AccountStatusExpired
	mock.ExpectExec(regexp.QuoteMeta("UPDATE linked_accounts SET updated_at = now(), status = $1 WHERE id = $2")).
		WithArgs("expired", "acc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repository.UpdateAccount(context.Background(), "acc-1", &model.AccountPatch{Status: &status})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_RecordPublish_IncrementsAtomically(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewAccountRepository(db)
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE linked_accounts\\s+SET daily_used = daily_used \\+ 1,\\s+monthly_used = monthly_used \\+ 1,").
		WithArgs(at, "acc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repository.RecordPublish(context.Background(), "acc-1", at)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_ResetExpiredQuotas(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewAccountRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec("UPDATE linked_accounts\\s+SET daily_used = 0,").
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("UPDATE linked_accounts\\s+SET monthly_used = 0,").
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repository.ResetExpiredQuotas(context.Background(), now)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
