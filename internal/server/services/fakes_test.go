package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/foliokeeper/internal/common"
	"github.com/dmitrijs2005/foliokeeper/internal/dbx"
	"github.com/dmitrijs2005/foliokeeper/internal/server/models"
	"github.com/dmitrijs2005/foliokeeper/internal/server/repositories/statements"
	"github.com/dmitrijs2005/foliokeeper/internal/server/repositories/users"
	"github.com/google/uuid"
)

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

type fakeUsersRepo struct {
	mu        sync.Mutex
	byID      map[string]*models.User
	createErr error
	getErr    error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byID: map[string]*models.User{}}
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, existing := range f.byID {
		if existing.Email == u.Email {
			return nil, common.NewError(common.ErrorConflict, "Email already registered")
		}
	}
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	f.byID[u.ID] = &cp
	return u, nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) UpdatePassword(ctx context.Context, id string, hashed string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.HashedPassword = hashed
	return nil
}

func (f *fakeUsersRepo) delete(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
}

type fakeStatementsRepo struct {
	mu         sync.Mutex
	sessions   map[string]*models.UploadSession
	statements map[string]*models.Statement
	txs        []*models.ParsedTransaction
	files      map[string]*models.StatementFile
	addErr     error
}

func newFakeStatementsRepo() *fakeStatementsRepo {
	return &fakeStatementsRepo{
		sessions:   map[string]*models.UploadSession{},
		statements: map[string]*models.Statement{},
		files:      map[string]*models.StatementFile{},
	}
}

func (f *fakeStatementsRepo) CreateUploadSession(ctx context.Context, s *models.UploadSession) (*models.UploadSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s.ID = uuid.NewString()
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeStatementsRepo) UpdateUploadSessionStatus(ctx context.Context, id string, status models.UploadSessionStatus, msg *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return common.ErrorNotFound
	}
	s.Status, s.ErrorMessage = status, msg
	return nil
}

func (f *fakeStatementsRepo) CreateStatement(ctx context.Context, s *models.Statement) (*models.Statement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s.ID = uuid.NewString()
	s.CreatedAt = time.Now()
	f.statements[s.ID] = s
	return s, nil
}

func (f *fakeStatementsRepo) FindStatement(ctx context.Context, userID, id string) (*models.Statement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.statements[id]
	if !ok || s.UserID != userID {
		return nil, common.ErrorNotFound
	}
	return s, nil
}

func (f *fakeStatementsRepo) ListStatements(ctx context.Context, userID string, limit, offset int) ([]*models.Statement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := make([]*models.Statement, 0)
	for _, s := range f.statements {
		if s.UserID == userID {
			res = append(res, s)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	if offset >= len(res) {
		return []*models.Statement{}, nil
	}
	res = res[offset:]
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (f *fakeStatementsRepo) ConfirmStatement(ctx context.Context, userID, id string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.statements[id]
	if !ok || s.UserID != userID {
		return time.Time{}, common.ErrorNotFound
	}
	now := time.Now()
	s.ConfirmedAt = &now
	for _, t := range f.txs {
		if t.StatementID == id {
			t.IsConfirmed = true
		}
	}
	return now, nil
}

func (f *fakeStatementsRepo) AddTransactions(ctx context.Context, txs []*models.ParsedTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	for _, t := range txs {
		t.ID = uuid.NewString()
		f.txs = append(f.txs, t)
	}
	return nil
}

func (f *fakeStatementsRepo) ListTransactions(ctx context.Context, userID, statementID string) ([]*models.ParsedTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := make([]*models.ParsedTransaction, 0)
	for _, t := range f.txs {
		if t.StatementID == statementID && t.UserID == userID {
			res = append(res, t)
		}
	}
	return res, nil
}

func (f *fakeStatementsRepo) AttachFile(ctx context.Context, file *models.StatementFile) (*models.StatementFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[file.StatementID]; ok {
		return nil, common.NewError(common.ErrorConflict, "Statement already has a file")
	}
	file.ID = uuid.NewString()
	f.files[file.StatementID] = file
	return file, nil
}

func (f *fakeStatementsRepo) FindFile(ctx context.Context, statementID string) (*models.StatementFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[statementID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return file, nil
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	s *fakeStatementsRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) users.Repository           { return m.u }
func (m *fakeRepoManager) Statements(db dbx.DBTX) statements.Repository { return m.s }
