package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/foliokeeper/internal/dbx"
	"github.com/dmitrijs2005/foliokeeper/internal/server/repositories/statements"
	"github.com/dmitrijs2005/foliokeeper/internal/server/repositories/users"
)

// RepositoryManager hands out repositories bound to a pool or a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Statements(db dbx.DBTX) statements.Repository
}
