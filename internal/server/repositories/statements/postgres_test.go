package statements

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/foliokeeper/internal/common"
	"github.com/dmitrijs2005/foliokeeper/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	stmtID    = "0b7c9a1e-2222-4c3b-9a55-0123456789ab"
	sessionID = "1c8d0b2f-3333-4c3b-9a55-0123456789ab"
	userID    = "user-1"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock, db
}

var stmtCols = []string{"id", "upload_session_id", "user_id", "file_name", "file_size_bytes", "statement_type",
	"statement_date", "institution_name", "folio_number", "parsing_confidence", "confirmed_at", "created_at", "updated_at"}

func TestCreateUploadSession(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+upload_sessions\s*\(user_id,\s*status,\s*statement_type,\s*expires_at,\s*error_message\)`).
		WithArgs(userID, "completed", "manual", nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(sessionID, now, now))

	st := models.StatementManual
	got, err := repo.CreateUploadSession(context.Background(), &models.UploadSession{
		UserID: userID, Status: models.UploadSessionCompleted, StatementType: &st,
	})
	require.NoError(t, err)
	assert.Equal(t, sessionID, got.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUploadSessionStatus(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	q := `(?s)^UPDATE\s+upload_sessions\s+SET\s+status\s*=\s*\$2`

	mock.ExpectExec(q).WithArgs(sessionID, "failed", "bad file").WillReturnResult(sqlmock.NewResult(0, 1))
	msg := "bad file"
	require.NoError(t, repo.UpdateUploadSessionStatus(context.Background(), sessionID, models.UploadSessionFailed, &msg))

	mock.ExpectExec(q).WithArgs(sessionID, "expired", nil).WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.UpdateUploadSessionStatus(context.Background(), sessionID, models.UploadSessionExpired, nil)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	assert.ErrorIs(t, repo.UpdateUploadSessionStatus(context.Background(), "x", models.UploadSessionExpired, nil), common.ErrorNotFound)
}

func TestCreateStatement(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+statements\s*\(upload_session_id,`).
		WithArgs(sessionID, userID, "manual-entry", int64(0), "manual", nil, nil, "F-1", "0.9").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(stmtID, now, now))

	folio := "F-1"
	got, err := repo.CreateStatement(context.Background(), &models.Statement{
		UploadSessionID:   sessionID,
		UserID:            userID,
		FileName:          "manual-entry",
		StatementType:     models.StatementManual,
		FolioNumber:       &folio,
		ParsingConfidence: decimal.NewNullDecimal(decimal.RequireFromString("0.9")),
	})
	require.NoError(t, err)
	assert.Equal(t, stmtID, got.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindStatement(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	now := time.Now()
	q := `(?s)^SELECT\s+id,\s*upload_session_id,.*FROM\s+statements\s+WHERE\s+id\s*=\s*\$1\s+AND\s+user_id\s*=\s*\$2$`

	mock.ExpectQuery(q).WithArgs(stmtID, userID).
		WillReturnRows(sqlmock.NewRows(stmtCols).AddRow(
			stmtID, sessionID, userID, "cams.pdf", int64(2048), "cams",
			now, "CAMS", "F-9", "0.75", nil, now, now))

	got, err := repo.FindStatement(context.Background(), userID, stmtID)
	require.NoError(t, err)
	assert.Equal(t, models.StatementCAMS, got.StatementType)
	assert.Equal(t, int64(2048), got.FileSizeBytes)
	require.NotNil(t, got.InstitutionName)
	assert.Equal(t, "CAMS", *got.InstitutionName)
	assert.True(t, got.ParsingConfidence.Valid)
	assert.Equal(t, "0.75", got.ParsingConfidence.Decimal.String())
	assert.Nil(t, got.ConfirmedAt)

	mock.ExpectQuery(q).WithArgs(stmtID, "other").WillReturnError(sql.ErrNoRows)
	_, err = repo.FindStatement(context.Background(), "other", stmtID)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = repo.FindStatement(context.Background(), userID, "not-a-uuid")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestListStatements(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	now := time.Now()
	q := `(?s)FROM\s+statements\s+WHERE\s+user_id\s*=\s*\$1\s+ORDER\s+BY\s+created_at\s+DESC\s+LIMIT\s+\$2\s+OFFSET\s+\$3`

	mock.ExpectQuery(q).WithArgs(userID, 10, 0).
		WillReturnRows(sqlmock.NewRows(stmtCols).
			AddRow(stmtID, sessionID, userID, "a", int64(1), "manual", nil, nil, nil, nil, nil, now, now).
			AddRow(sessionID, sessionID, userID, "b", int64(2), "zerodha", nil, nil, nil, nil, now, now, now))

	got, err := repo.ListStatements(context.Background(), userID, 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.False(t, got[0].ParsingConfidence.Valid)
	assert.NotNil(t, got[1].ConfirmedAt)

	mock.ExpectQuery(q).WithArgs(userID, 10, 0).WillReturnRows(sqlmock.NewRows(stmtCols))
	got, err = repo.ListStatements(context.Background(), userID, 10, 0)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	mock.ExpectQuery(q).WillReturnError(errors.New("db down"))
	_, err = repo.ListStatements(context.Background(), userID, 10, 0)
	assert.Regexp(t, regexp.MustCompile(`db error: .*db down`), err.Error())
}

func TestConfirmStatement(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`(?s)^UPDATE\s+statements\s+SET\s+confirmed_at\s*=\s*now\(\)`).
		WithArgs(stmtID, userID).
		WillReturnRows(sqlmock.NewRows([]string{"confirmed_at"}).AddRow(now))
	mock.ExpectExec(`(?s)^UPDATE\s+parsed_transactions\s+SET\s+is_confirmed\s*=\s*TRUE`).
		WithArgs(stmtID).
		WillReturnResult(sqlmock.NewResult(0, 3))

	got, err := repo.ConfirmStatement(context.Background(), userID, stmtID)
	require.NoError(t, err)
	assert.True(t, got.Equal(now))
	require.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectQuery(`UPDATE\s+statements`).WillReturnError(sql.ErrNoRows)
	_, err = repo.ConfirmStatement(context.Background(), userID, stmtID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestAddTransactions(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	now := time.Now()
	q := `(?s)^INSERT\s+INTO\s+parsed_transactions\s*\(statement_id,`

	mock.ExpectQuery(q).
		WithArgs(stmtID, userID, "purchase", sqlmock.AnyArg(), nil, nil, "10", nil, nil, "1500.5", nil, nil, "1", false, false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("t1", now, now))
	mock.ExpectQuery(q).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("t2", now, now))

	txs := []*models.ParsedTransaction{
		{
			StatementID: stmtID, UserID: userID, TransactionType: models.TransactionPurchase, TransactionDate: now,
			Quantity:        decimal.NewNullDecimal(decimal.NewFromInt(10)),
			Amount:          decimal.NewNullDecimal(decimal.RequireFromString("1500.5")),
			ConfidenceScore: decimal.NewNullDecimal(decimal.NewFromInt(1)),
		},
		{StatementID: stmtID, UserID: userID, TransactionType: models.TransactionDividend, TransactionDate: now},
	}
	require.NoError(t, repo.AddTransactions(context.Background(), txs))
	assert.Equal(t, "t1", txs[0].ID)
	assert.Equal(t, "t2", txs[1].ID)
	require.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectQuery(q).WillReturnError(errors.New("boom"))
	err := repo.AddTransactions(context.Background(), txs[:1])
	assert.Error(t, err)
}

func TestListTransactions(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	now := time.Now()
	cols := []string{"id", "statement_id", "user_id", "transaction_type", "transaction_date",
		"security_name", "security_symbol", "quantity", "price_per_unit", "nav", "amount", "units",
		"brokerage_charges", "confidence_score", "is_duplicate", "is_confirmed", "created_at", "updated_at"}

	mock.ExpectQuery(`(?s)FROM\s+parsed_transactions\s+WHERE\s+statement_id\s*=\s*\$1\s+AND\s+user_id\s*=\s*\$2`).
		WithArgs(stmtID, userID).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"t1", stmtID, userID, "sip", now, "Fund A", "FNDA", "12.5", "40", "40.1", "500", "12.5",
			nil, "0.8", false, true, now, now))

	got, err := repo.ListTransactions(context.Background(), userID, stmtID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.TransactionSIP, got[0].TransactionType)
	assert.Equal(t, "500", got[0].Amount.Decimal.String())
	assert.False(t, got[0].BrokerageCharges.Valid)
	assert.True(t, got[0].IsConfirmed)
}

func TestAttachAndFindFile(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+statement_files`).
		WithArgs(stmtID, "/data/a.pdf", "abc").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("f1", now, now))

	f, err := repo.AttachFile(context.Background(), &models.StatementFile{StatementID: stmtID, LocalFilePath: "/data/a.pdf", FileHash: "abc"})
	require.NoError(t, err)
	assert.Equal(t, "f1", f.ID)

	mock.ExpectQuery(`INSERT\s+INTO\s+statement_files`).WillReturnError(&pgconn.PgError{Code: "23505"})
	_, err = repo.AttachFile(context.Background(), &models.StatementFile{StatementID: stmtID})
	assert.ErrorIs(t, err, common.ErrorConflict)

	mock.ExpectQuery(`FROM\s+statement_files\s+WHERE\s+statement_id\s*=\s*\$1`).
		WithArgs(stmtID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "statement_id", "local_file_path", "file_hash", "created_at", "updated_at"}).
			AddRow("f1", stmtID, "/data/a.pdf", "abc", now, now))
	got, err := repo.FindFile(context.Background(), stmtID)
	require.NoError(t, err)
	assert.Equal(t, "abc", got.FileHash)

	mock.ExpectQuery(`FROM\s+statement_files`).WillReturnError(sql.ErrNoRows)
	_, err = repo.FindFile(context.Background(), stmtID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
