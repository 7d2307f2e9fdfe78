// Package server wires configuration, storage, the identity provider of the
// selected mode and both transports, and runs them until a shutdown signal.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/foliokeeper/internal/dbx"
	"github.com/dmitrijs2005/foliokeeper/internal/logging"
	"github.com/dmitrijs2005/foliokeeper/internal/server/auth/jwks"
	"github.com/dmitrijs2005/foliokeeper/internal/server/auth/password"
	"github.com/dmitrijs2005/foliokeeper/internal/server/auth/tokens"
	"github.com/dmitrijs2005/foliokeeper/internal/server/cognito"
	"github.com/dmitrijs2005/foliokeeper/internal/server/config"
	"github.com/dmitrijs2005/foliokeeper/internal/server/identity"
	"github.com/dmitrijs2005/foliokeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/foliokeeper/internal/server/rest"
	"github.com/dmitrijs2005/foliokeeper/internal/server/services"
	"github.com/gin-gonic/gin"

	gs "github.com/dmitrijs2005/foliokeeper/internal/server/grpc"
)

const dbPingTimeout = 5 * time.Second

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	resolver *identity.Resolver
	deps     rest.Deps
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(c.LogFormat, c.LogLevel, os.Stdout)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	if c.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	app := &App{config: c, logger: logger}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := app.openDB(ctx, rm); err != nil {
		return nil, err
	}

	var provider identity.Provider
	switch c.AuthMode {
	case config.ModeSelfHosted:
		provider, err = app.initSelfHosted(rm)
	case config.ModeDelegated:
		provider, err = app.initDelegated(ctx)
	default:
		err = fmt.Errorf("unknown auth mode %q", c.AuthMode)
	}
	if err != nil {
		app.closeDB()
		return nil, err
	}

	app.resolver = identity.NewResolver(provider, c.APIKeys)
	app.deps.Config = c
	app.deps.Logger = logger
	app.deps.Resolver = app.resolver
	if app.db != nil {
		app.deps.Statements = services.NewStatementService(app.db, rm)
		app.deps.DB = app.db
	}

	logger.Info(ctx, "app initialized", "mode", c.AuthMode, "environment", c.Environment, "database", app.db != nil)
	return app, nil
}

// openDB connects and migrates. Self-hosted mode cannot run without the
// user store; delegated mode degrades to identity-only routes.
func (app *App) openDB(ctx context.Context, rm repomanager.RepositoryManager) error {
	c := app.config
	if c.DatabaseDSN == "" {
		return nil
	}

	db, err := dbx.Open(ctx, repomanager.DriverName, c.DatabaseDSN, dbx.PoolConfig{
		MaxOpenConns:    c.DBMaxOpenConns,
		MaxIdleConns:    c.DBMaxIdleConns,
		ConnMaxLifetime: c.DBConnMaxLifetime,
	}, dbPingTimeout)
	if err == nil {
		if err = rm.RunMigrations(ctx, db); err != nil {
			_ = db.Close()
			err = fmt.Errorf("migrations error: %w", err)
		}
	}
	if err != nil {
		if c.AuthMode == config.ModeSelfHosted {
			return fmt.Errorf("db init error: %w", err)
		}
		app.logger.Warn(ctx, "database unavailable, statement routes disabled", "error", err)
		return nil
	}

	app.db = db
	return nil
}

func (app *App) initSelfHosted(rm repomanager.RepositoryManager) (identity.Provider, error) {
	c := app.config
	if app.db == nil {
		return nil, fmt.Errorf("%s mode requires a database", config.ModeSelfHosted)
	}

	codec, err := tokens.NewCodec(tokens.Config{
		SecretKey:  c.SecretKey,
		Algorithm:  c.JWTAlgorithm,
		AccessTTL:  c.AccessTokenValidityDuration,
		RefreshTTL: c.RefreshTokenValidityDuration,
		ResetTTL:   c.ResetTokenValidityDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("token codec init error: %w", err)
	}

	app.deps.Auth = services.NewAuthService(app.db, rm, codec, password.NewBcryptHasher(),
		services.WithExposeResetToken(c.ExposeResetToken),
		services.WithLogger(app.logger),
	)
	return identity.NewSelfHostedProvider(codec), nil
}

func (app *App) initDelegated(ctx context.Context) (identity.Provider, error) {
	c := app.config

	cache := jwks.NewCache(jwks.NewHTTPFetcher(c.JWKSURL()), jwks.WithTTL(c.JWKSCacheTTL))
	verifier := jwks.NewVerifier(cache, c.CognitoAppClientID, c.Issuer())

	dir, err := cognito.New(ctx, cognito.Config{
		Region:          c.CognitoRegion,
		UserPoolID:      c.CognitoUserPoolID,
		AccessKeyID:     c.AWSAccessKeyID,
		SecretAccessKey: c.AWSSecretAccessKey,
	}, app.logger)
	if err != nil {
		return nil, fmt.Errorf("cognito init error: %w", err)
	}
	app.deps.Directory = dir

	return identity.NewDelegatedProvider(verifier), nil
}

func (app *App) closeDB() {
	if app.db == nil {
		return
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "error closing database", "error", err)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := rest.NewHTTPServer(app.config.EndpointAddrHTTP, rest.NewRouter(app.deps), app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	var db gs.Pinger
	if app.db != nil {
		db = app.db
	}
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.resolver, db, app.config.HealthCheckInterval)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves HTTP and gRPC until a signal arrives or either server fails.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.closeDB()
	app.logger.Info(ctx, "App stopped")
}
