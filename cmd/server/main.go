package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/boxoffice-sync/internal/app"
	"github.com/iliyamo/boxoffice-sync/internal/config"
	"github.com/iliyamo/boxoffice-sync/internal/handler"
	"github.com/iliyamo/boxoffice-sync/internal/middleware"
	"github.com/iliyamo/boxoffice-sync/internal/router"
)

func main() {
	a, err := app.New()
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer a.Close()
	if err := a.Config.RequireJWT(); err != nil {
		a.Log.Fatal("startup", zap.Error(err))
	}

	rl := config.LoadRateLimitConfig()
	cc := config.LoadCacheConfig()

	e := echo.New()
	e.HideBanner = true
	router.RegisterRoutes(e, handler.Ready(a.DB, a.Redis))
	router.RegisterWebhooks(e,
		handler.NewWebhookHandler(a.Runner, a.Log),
		middleware.NewTokenBucket(rl, a.Redis, a.Log))
	router.RegisterOps(e,
		handler.NewOpsHandler(a.Runner, a.Store, a.Publisher, a.PurgeCache, a.Log),
		a.Config.JWTSecret,
		middleware.NewRedisCache(cc, a.Redis))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := ":" + a.Config.Port
	go func() {
		a.Log.Info("listening", zap.String("addr", addr), zap.String("env", a.Config.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		a.Log.Error("shutdown", zap.Error(err))
	}
}
