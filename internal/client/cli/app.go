package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/foliokeeper/internal/client/client"
	"github.com/dmitrijs2005/foliokeeper/internal/client/config"
	"github.com/dmitrijs2005/foliokeeper/internal/client/repositories/session"
	"github.com/dmitrijs2005/foliokeeper/internal/client/services"
	"github.com/dmitrijs2005/foliokeeper/internal/filex"
	"github.com/dmitrijs2005/foliokeeper/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

const pingTimeout = 3 * time.Second

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	authService services.AuthService
	reader      *bufio.Reader
	out         io.Writer

	mu    sync.RWMutex
	mode  Mode
	email string
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(logging.FormatConsole, c.LogLevel, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	if _, err := filex.EnsureParentDir(c.SessionDBPath); err != nil {
		return nil, fmt.Errorf("error preparing session directory: %w", err)
	}

	db, err := client.InitDatabase(ctx, c.SessionDBPath)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	repo := session.NewSQLiteRepository(db)
	api := client.NewHTTPClient(c.ServerURL, c.RequestTimeout, services.NewSessionTokens(repo))
	as := services.NewAuthService(api, repo)

	email, err := as.CurrentEmail(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error loading session: %w", err)
	}

	return &App{
		config:      c,
		logger:      logger.With("module", "cli"),
		db:          db,
		authService: as,
		reader:      bufio.NewReader(os.Stdin),
		out:         os.Stdout,
		mode:        ModeOffline,
		email:       email,
	}, nil
}

// Run starts the connectivity watcher and blocks in the REPL.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.closeDB()

	a.checkOnline(ctx)
	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	fmt.Fprintln(a.out, "Welcome to foliokeeper CLI (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, a.reader)
}

func (a *App) closeDB() {
	if a.db == nil {
		return
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error(context.Background(), "error closing database", "error", err)
	}
}

func (a *App) isLoggedIn() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.email != ""
}

func (a *App) setEmail(email string) {
	a.mu.Lock()
	a.email = email
	a.mu.Unlock()
}

func (a *App) currentMode() Mode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mode
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	changed := a.mode != mode
	a.mode = mode
	a.mu.Unlock()

	if changed {
		a.logger.Info(context.Background(), "connectivity changed", "mode", mode)
	}
}

// getStatus renders the prompt status, e.g. "(ann@example.com online)".
func (a *App) getStatus() string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := string(a.mode)
	if a.email != "" {
		s = a.email + " " + s
	}
	if s == "" {
		return ""
	}
	return "(" + s + ")"
}

func (a *App) checkOnline(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	err := a.authService.Ping(pingCtx)
	cancel()

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		a.logger.Debug(ctx, "ping failed", "error", err)
		a.setMode(ModeOffline)
		return
	}
	a.setMode(ModeOnline)
}

// StartOnlineStatusWatcher pings the server every interval until ctx is
// done.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}
