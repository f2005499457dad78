package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	errors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	auth "github.com/goliatone/go-auth-api"
)

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Debug),
		glog.WithName("auth-api"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg, err := LoadConfig()
	if err != nil {
		lgr.Error("load configuration", "error", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		lgr.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := openDatabase(ctx, cfg.DatabaseDSN)
	if err != nil {
		lgr.Error("open database", "error", err, "dsn", cfg.DatabaseDSN)
		os.Exit(1)
	}
	defer db.Close()

	repo := auth.NewRepositoryManager(db)
	if err := repo.Validate(); err != nil {
		lgr.Error("repository manager", "error", err)
		os.Exit(1)
	}

	tokens, err := auth.NewTokenService(
		[]byte(cfg.SigningKey),
		cfg.TokenExpiration,
		cfg.Issuer,
		jwt.ClaimStrings(cfg.Audience),
		lgr.GetLogger("tokens"),
	)
	if err != nil {
		lgr.Error("token service", "error", err)
		os.Exit(1)
	}

	store := auth.NewIdentityStore(
		repo,
		auth.WithStoreLogger(lgr.GetLogger("store")),
	)

	guard := auth.NewRouteGuard(cfg, tokens)

	app := fiber.New(fiber.Config{
		AppName:               "go-auth-api",
		DisableStartupMessage: !cfg.Debug,
	})

	controller := auth.NewAuthController(
		auth.WithControllerStore(store),
		auth.WithControllerTokens(tokens),
		auth.WithControllerLogger(lgr.GetLogger("http")),
		auth.WithControllerAuthorInfo(cfg.AuthorInfo()),
		auth.WithControllerContextKey(cfg.ContextKey),
		auth.WithControllerDebug(cfg.Debug),
	)

	auth.RegisterAuthRoutes(app.Group("/api"), controller, guard)

	go func() {
		if err := app.Listen(cfg.ServerAddr); err != nil {
			lgr.Error("http server", "error", err)
			os.Exit(1)
		}
	}()

	lgr.Info("server started", "addr", cfg.ServerAddr)

	WaitExitSignal()

	lgr.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		lgr.Error("shutdown", "error", err)
	}
}

func openDatabase(ctx context.Context, dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if err := bootstrapSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func bootstrapSchema(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*auth.User)(nil),
		(*auth.PasswordReset)(nil),
	}

	for _, model := range models {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}

	return nil
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
