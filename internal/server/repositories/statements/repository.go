package statements

import (
	"context"
	"time"

	"github.com/dmitrijs2005/foliokeeper/internal/server/models"
)

// Repository persists upload sessions, statements, parsed transactions and
// statement files. Reads are scoped by user ID; another user's rows are
// reported as common.ErrorNotFound.
type Repository interface {
	CreateUploadSession(ctx context.Context, s *models.UploadSession) (*models.UploadSession, error)
	UpdateUploadSessionStatus(ctx context.Context, id string, status models.UploadSessionStatus, errorMessage *string) error

	CreateStatement(ctx context.Context, s *models.Statement) (*models.Statement, error)
	FindStatement(ctx context.Context, userID, id string) (*models.Statement, error)
	ListStatements(ctx context.Context, userID string, limit, offset int) ([]*models.Statement, error)
	ConfirmStatement(ctx context.Context, userID, id string) (time.Time, error)

	AddTransactions(ctx context.Context, txs []*models.ParsedTransaction) error
	ListTransactions(ctx context.Context, userID, statementID string) ([]*models.ParsedTransaction, error)

	AttachFile(ctx context.Context, f *models.StatementFile) (*models.StatementFile, error)
	FindFile(ctx context.Context, statementID string) (*models.StatementFile, error)
}
