package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/blog/config"
	"github.com/cppla/blog/controllers"
	"github.com/cppla/blog/models"
	"github.com/cppla/blog/repository"
	"github.com/cppla/blog/routes"
	"github.com/cppla/blog/utils"
)

func main() {
	configPath := flag.String("config", "config/config.json", "path to the JSON config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger early
	log, err := utils.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	db, err := config.InitDatabase(cfg.Database, cfg.Log.Level, log, models.All()...)
	if err != nil {
		log.Fatal("database init failed", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}

	ctx := context.Background()
	rdb, err := utils.NewRedis(ctx, cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, falling back to in-memory stores", zap.Error(err))
	}

	env := &controllers.Env{
		Store:   repository.New(db),
		Config:  cfg,
		Tokens:  utils.NewTokenIssuer(cfg.SecretKey, time.Duration(cfg.Session.TokenTTLHours)*time.Hour),
		Revoked: utils.NewTTLStore(rdb, "jwt:revoked:"),
		States:  utils.NewTTLStore(rdb, "oauth:state:"),
		Cache:   utils.NewCache(rdb, log),
		Mailer:  utils.NewMailer(cfg.SMTP),
		Cookie:  utils.IdentityCookie{Name: cfg.Session.CookieName, Secure: cfg.Session.CookieSecure},
		Log:     log,
	}

	r, err := routes.SetupRouter(env)
	if err != nil {
		log.Fatal("router setup failed", zap.Error(err))
	}

	log.Info("starting server", zap.String("port", cfg.AppPort), zap.String("db_driver", cfg.Database.Driver), zap.Bool("redis", rdb != nil))
	if err := utils.NewServer(":"+cfg.AppPort, r, log).Run(ctx); err != nil {
		log.Fatal("server stopped with error", zap.Error(err))
	}
}
