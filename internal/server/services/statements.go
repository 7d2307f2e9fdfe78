package services

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/foliokeeper/internal/common"
	"github.com/dmitrijs2005/foliokeeper/internal/dbx"
	"github.com/dmitrijs2005/foliokeeper/internal/server/models"
	"github.com/dmitrijs2005/foliokeeper/internal/server/repositories/repomanager"
	"github.com/shopspring/decimal"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	manualFileName = "manual-entry"
)

// ManualTransaction is one user-entered transaction.
type ManualTransaction struct {
	TransactionType  models.TransactionType
	TransactionDate  time.Time
	SecurityName     *string
	SecuritySymbol   *string
	Quantity         decimal.NullDecimal
	PricePerUnit     decimal.NullDecimal
	NAV              decimal.NullDecimal
	Amount           decimal.NullDecimal
	Units            decimal.NullDecimal
	BrokerageCharges decimal.NullDecimal
	ConfidenceScore  decimal.NullDecimal
}

// ManualStatement is a statement typed in by the user instead of parsed.
type ManualStatement struct {
	FileName        string
	StatementDate   *time.Time
	InstitutionName *string
	FolioNumber     *string
	Transactions    []ManualTransaction
}

// StatementDetail is a statement together with its transactions.
type StatementDetail struct {
	Statement    *models.Statement
	Transactions []*models.ParsedTransaction
}

type StatementService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewStatementService(db *sql.DB, m repomanager.RepositoryManager) *StatementService {
	return &StatementService{db: db, repomanager: m}
}

var (
	confidenceMin = decimal.Zero
	confidenceMax = decimal.NewFromInt(1)
)

func validConfidence(d decimal.NullDecimal) bool {
	return !d.Valid || (d.Decimal.GreaterThanOrEqual(confidenceMin) && d.Decimal.LessThanOrEqual(confidenceMax))
}

func validateManual(in ManualStatement) error {
	if len(in.Transactions) == 0 {
		return common.NewError(common.ErrorValidation, "At least one transaction is required")
	}
	for i, t := range in.Transactions {
		if !t.TransactionType.Valid() {
			return common.NewError(common.ErrorValidation,
				fmt.Sprintf("transactions[%d]: unknown transaction type %q", i, t.TransactionType))
		}
		if t.TransactionDate.IsZero() {
			return common.NewError(common.ErrorValidation,
				fmt.Sprintf("transactions[%d]: transaction date is required", i))
		}
		if !validConfidence(t.ConfidenceScore) {
			return common.NewError(common.ErrorValidation,
				fmt.Sprintf("transactions[%d]: confidence score must be between 0 and 1", i))
		}
	}
	return nil
}

// CreateManual stores a completed upload session, a manual statement and
// its transactions in one transaction.
func (s *StatementService) CreateManual(ctx context.Context, userID string, in ManualStatement) (*StatementDetail, error) {
	if err := validateManual(in); err != nil {
		return nil, err
	}

	fileName := strings.TrimSpace(in.FileName)
	if fileName == "" {
		fileName = manualFileName
	}

	var detail *StatementDetail
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Statements(tx)

		st := models.StatementManual
		session, err := repo.CreateUploadSession(ctx, &models.UploadSession{
			UserID:        userID,
			Status:        models.UploadSessionCompleted,
			StatementType: &st,
		})
		if err != nil {
			return fmt.Errorf("error creating upload session: %w", err)
		}

		stmt, err := repo.CreateStatement(ctx, &models.Statement{
			UploadSessionID:   session.ID,
			UserID:            userID,
			FileName:          fileName,
			StatementType:     models.StatementManual,
			StatementDate:     in.StatementDate,
			InstitutionName:   in.InstitutionName,
			FolioNumber:       in.FolioNumber,
			ParsingConfidence: decimal.NewNullDecimal(confidenceMax),
		})
		if err != nil {
			return fmt.Errorf("error creating statement: %w", err)
		}

		txs := make([]*models.ParsedTransaction, 0, len(in.Transactions))
		for _, t := range in.Transactions {
			txs = append(txs, &models.ParsedTransaction{
				StatementID:      stmt.ID,
				UserID:           userID,
				TransactionType:  t.TransactionType,
				TransactionDate:  t.TransactionDate,
				SecurityName:     t.SecurityName,
				SecuritySymbol:   t.SecuritySymbol,
				Quantity:         t.Quantity,
				PricePerUnit:     t.PricePerUnit,
				NAV:              t.NAV,
				Amount:           t.Amount,
				Units:            t.Units,
				BrokerageCharges: t.BrokerageCharges,
				ConfidenceScore:  t.ConfidenceScore,
			})
		}
		if err := repo.AddTransactions(ctx, txs); err != nil {
			return fmt.Errorf("error adding transactions: %w", err)
		}

		detail = &StatementDetail{Statement: stmt, Transactions: txs}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *StatementService) Get(ctx context.Context, userID, id string) (*models.Statement, error) {
	return s.repomanager.Statements(s.db).FindStatement(ctx, userID, id)
}

// List pages through the caller's statements, newest first.
func (s *StatementService) List(ctx context.Context, userID string, limit, offset int) ([]*models.Statement, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.repomanager.Statements(s.db).ListStatements(ctx, userID, limit, offset)
}

func (s *StatementService) Transactions(ctx context.Context, userID, id string) ([]*models.ParsedTransaction, error) {
	repo := s.repomanager.Statements(s.db)
	if _, err := repo.FindStatement(ctx, userID, id); err != nil {
		return nil, err
	}
	return repo.ListTransactions(ctx, userID, id)
}

// Confirm marks the statement and all its transactions as reviewed.
func (s *StatementService) Confirm(ctx context.Context, userID, id string) (*models.Statement, error) {
	var stmt *models.Statement
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Statements(tx)
		if _, err := repo.ConfirmStatement(ctx, userID, id); err != nil {
			return err
		}
		var err error
		stmt, err = repo.FindStatement(ctx, userID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stmt, nil
}

// RecordFile stores the local path and SHA-256 of a statement's source
// file. The content is hashed, not written.
func (s *StatementService) RecordFile(ctx context.Context, userID, statementID, localPath string, content []byte) (*models.StatementFile, error) {
	if strings.TrimSpace(localPath) == "" {
		return nil, common.NewError(common.ErrorValidation, "File path is required")
	}

	sum := sha256.Sum256(content)

	var file *models.StatementFile
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Statements(tx)
		if _, err := repo.FindStatement(ctx, userID, statementID); err != nil {
			return err
		}
		var err error
		file, err = repo.AttachFile(ctx, &models.StatementFile{
			StatementID:   statementID,
			LocalFilePath: localPath,
			FileHash:      hex.EncodeToString(sum[:]),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}
