package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"huddler.io/internal/access"
	"huddler.io/internal/cms"
	"huddler.io/internal/config"
	"huddler.io/internal/httpapi"
	"huddler.io/internal/identity"
	"huddler.io/internal/mail"
	"huddler.io/internal/migrate"
	"huddler.io/internal/obs"
	"huddler.io/internal/roles"
	"huddler.io/internal/store/pg"
	"huddler.io/internal/stream"
)

var version = "0.3.0"

func main() {
	cfg, err := config.Load(os.Getenv("HUDDLER_CONFIG"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("HUDDLER_COMMIT"))
	defer obs.Sync()
	logger := obs.Logger()

	// Postgres when configured; in-memory stores keep local demos running
	// without a database.
	var (
		db        *sql.DB
		identStor identity.Store
		accStor   access.Store
	)
	if dsn := cfg.Database.DSN(); dsn != "" {
		db, err = pg.Open(dsn)
		if err != nil {
			logger.Fatal("open db", zap.Error(err))
		}
		defer db.Close()
		if err := pg.Ping(context.Background(), db, 5*time.Second); err != nil {
			logger.Fatal("ping db", zap.Error(err))
		}
		if cfg.MigrateOnStart {
			mgr := migrate.NewManager(db, cfg.MigrationsDir, cfg.SeedsDir)
			if err := mgr.Up(context.Background()); err != nil {
				logger.Fatal("migrate up", zap.Error(err))
			}
		}
		identStor = identity.NewPGStore(db)
		accStor = access.NewPGStore(db)
	} else {
		logger.Warn("no database configured, using in-memory stores")
		identStor = identity.NewMemStore()
		accStor = access.NewMemStore()
	}

	mailer := mail.NewLogMailer(logger)
	idp, err := identity.NewService(identStor, cfg.AuthSecret,
		identity.WithTokenTTL(time.Duration(cfg.TokenTTLMinutes)*time.Minute),
		identity.WithInviteTTL(time.Duration(cfg.InviteTTLHours)*time.Hour),
		identity.WithBaseURL(cfg.BaseURL),
		identity.WithMailer(mailer),
	)
	if err != nil {
		logger.Fatal("identity service", zap.Error(err))
	}

	if err := bootstrapAdmin(context.Background(), cfg, idp); err != nil {
		logger.Fatal("bootstrap admin", zap.Error(err))
	}

	accessSvc, err := access.NewService(accStor, idp)
	if err != nil {
		logger.Fatal("access service", zap.Error(err))
	}

	var content httpapi.ContentSource
	if cfg.CMS.BaseURL != "" {
		client, err := cms.New(cfg.CMS.BaseURL, cfg.CMS.Token)
		if err != nil {
			logger.Fatal("cms client", zap.Error(err))
		}
		content = client
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, httpapi.Deps{
		Identity:      idp,
		Access:        accessSvc,
		Content:       content,
		Mailer:        mailer,
		Stream:        stream.New(),
		SessionSecret: cfg.SessionSecret,
		RateBurst:     cfg.RateBurst,
		RatePerSec:    cfg.RatePerSec,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second, // SSE subscribers hold the response open
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting huddler-api",
		zap.String("version", version),
		zap.String("addr", srv.Addr),
		zap.String("env", cfg.Env),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	logger.Info("stopped")
}

// bootstrapAdmin ensures the configured super_admin account exists. Without
// one nobody can reach /admin or send invites.
func bootstrapAdmin(ctx context.Context, cfg *config.Config, idp *identity.Service) error {
	if cfg.BootstrapAdminEmail == "" {
		return nil
	}
	if cfg.BootstrapAdminPassword == "" {
		return errors.New("HUDDLER_BOOTSTRAP_ADMIN_PASSWORD is required with bootstrap_admin_email")
	}
	_, err := idp.Create(ctx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword, map[string]string{
		roles.MetadataKey: roles.SuperAdmin.String(),
	})
	if errors.Is(err, identity.ErrAlreadyExists) {
		return nil
	}
	return err
}
