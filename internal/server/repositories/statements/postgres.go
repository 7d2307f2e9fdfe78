package statements

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/foliokeeper/internal/common"
	"github.com/dmitrijs2005/foliokeeper/internal/dbx"
	"github.com/dmitrijs2005/foliokeeper/internal/server/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const statementColumns = `id, upload_session_id, user_id, file_name, file_size_bytes, statement_type,
	statement_date, institution_name, folio_number, parsing_confidence, confirmed_at, created_at, updated_at`

const transactionColumns = `id, statement_id, user_id, transaction_type, transaction_date,
	security_name, security_symbol, quantity, price_per_unit, nav, amount, units,
	brokerage_charges, confidence_score, is_duplicate, is_confirmed, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (r *PostgresRepository) CreateUploadSession(ctx context.Context, s *models.UploadSession) (*models.UploadSession, error) {

	query :=
		`INSERT INTO upload_sessions (user_id, status, statement_type, expires_at, error_message)
         VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		s.UserID, s.Status, s.StatementType, s.ExpiresAt, s.ErrorMessage).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return s, nil
}

func (r *PostgresRepository) UpdateUploadSessionStatus(ctx context.Context, id string, status models.UploadSessionStatus, errorMessage *string) error {
	if !validID(id) {
		return common.ErrorNotFound
	}

	query :=
		`UPDATE upload_sessions SET status = $2, error_message = $3, updated_at = now()
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, id, status, errorMessage)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireRow(res)
}

func (r *PostgresRepository) CreateStatement(ctx context.Context, s *models.Statement) (*models.Statement, error) {

	query :=
		`INSERT INTO statements (upload_session_id, user_id, file_name, file_size_bytes, statement_type,
		 statement_date, institution_name, folio_number, parsing_confidence)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		s.UploadSessionID, s.UserID, s.FileName, s.FileSizeBytes, s.StatementType,
		s.StatementDate, s.InstitutionName, s.FolioNumber, s.ParsingConfidence).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return s, nil
}

func (r *PostgresRepository) FindStatement(ctx context.Context, userID, id string) (*models.Statement, error) {
	if !validID(id) {
		return nil, common.ErrorNotFound
	}

	query := `SELECT ` + statementColumns + ` FROM statements WHERE id = $1 AND user_id = $2`

	s, err := scanStatement(r.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) ListStatements(ctx context.Context, userID string, limit, offset int) ([]*models.Statement, error) {

	query := `SELECT ` + statementColumns + ` FROM statements
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	res := make([]*models.Statement, 0)
	for rows.Next() {
		s, err := scanStatement(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		res = append(res, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return res, nil
}

// ConfirmStatement stamps confirmed_at on the statement and marks all of
// its transactions confirmed. Run it inside a transaction.
func (r *PostgresRepository) ConfirmStatement(ctx context.Context, userID, id string) (time.Time, error) {
	if !validID(id) {
		return time.Time{}, common.ErrorNotFound
	}

	query :=
		`UPDATE statements SET confirmed_at = now(), updated_at = now()
		 WHERE id = $1 AND user_id = $2
		 RETURNING confirmed_at
		 `

	var confirmedAt time.Time
	if err := r.db.QueryRowContext(ctx, query, id, userID).Scan(&confirmedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, common.ErrorNotFound
		}
		return time.Time{}, fmt.Errorf("db error: %w", err)
	}

	query =
		`UPDATE parsed_transactions SET is_confirmed = TRUE, updated_at = now()
		 WHERE statement_id = $1
		 `

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return time.Time{}, fmt.Errorf("db error: %w", err)
	}

	return confirmedAt, nil
}

// AddTransactions inserts txs one row at a time on the caller's handle, so
// a failure part-way rolls back with the surrounding transaction.
func (r *PostgresRepository) AddTransactions(ctx context.Context, txs []*models.ParsedTransaction) error {

	query :=
		`INSERT INTO parsed_transactions (statement_id, user_id, transaction_type, transaction_date,
		 security_name, security_symbol, quantity, price_per_unit, nav, amount, units,
		 brokerage_charges, confidence_score, is_duplicate, is_confirmed)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 RETURNING id, created_at, updated_at
		 `

	for _, t := range txs {
		err := r.db.QueryRowContext(ctx, query,
			t.StatementID, t.UserID, t.TransactionType, t.TransactionDate,
			t.SecurityName, t.SecuritySymbol, t.Quantity, t.PricePerUnit, t.NAV, t.Amount, t.Units,
			t.BrokerageCharges, t.ConfidenceScore, t.IsDuplicate, t.IsConfirmed).
			Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) ListTransactions(ctx context.Context, userID, statementID string) ([]*models.ParsedTransaction, error) {
	if !validID(statementID) {
		return nil, common.ErrorNotFound
	}

	query := `SELECT ` + transactionColumns + ` FROM parsed_transactions
		 WHERE statement_id = $1 AND user_id = $2
		 ORDER BY transaction_date, created_at`

	rows, err := r.db.QueryContext(ctx, query, statementID, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	res := make([]*models.ParsedTransaction, 0)
	for rows.Next() {
		t := &models.ParsedTransaction{}
		err := rows.Scan(&t.ID, &t.StatementID, &t.UserID, &t.TransactionType, &t.TransactionDate,
			&t.SecurityName, &t.SecuritySymbol, &t.Quantity, &t.PricePerUnit, &t.NAV, &t.Amount, &t.Units,
			&t.BrokerageCharges, &t.ConfidenceScore, &t.IsDuplicate, &t.IsConfirmed, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		res = append(res, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return res, nil
}

func (r *PostgresRepository) AttachFile(ctx context.Context, f *models.StatementFile) (*models.StatementFile, error) {

	query :=
		`INSERT INTO statement_files (statement_id, local_file_path, file_hash)
         VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query, f.StatementID, f.LocalFilePath, f.FileHash).
		Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.NewError(common.ErrorConflict, "Statement already has a file")
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return f, nil
}

func (r *PostgresRepository) FindFile(ctx context.Context, statementID string) (*models.StatementFile, error) {
	if !validID(statementID) {
		return nil, common.ErrorNotFound
	}

	query :=
		`SELECT id, statement_id, local_file_path, file_hash, created_at, updated_at
		 FROM statement_files WHERE statement_id = $1`

	f := &models.StatementFile{}
	err := r.db.QueryRowContext(ctx, query, statementID).
		Scan(&f.ID, &f.StatementID, &f.LocalFilePath, &f.FileHash, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return f, nil
}

func scanStatement(row scanner) (*models.Statement, error) {
	s := &models.Statement{}
	err := row.Scan(&s.ID, &s.UploadSessionID, &s.UserID, &s.FileName, &s.FileSizeBytes, &s.StatementType,
		&s.StatementDate, &s.InstitutionName, &s.FolioNumber, &s.ParsingConfidence, &s.ConfirmedAt,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
