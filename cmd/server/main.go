package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/scorpion-security/hub/internal/ai"
	"github.com/scorpion-security/hub/internal/config"
	internalhttp "github.com/scorpion-security/hub/internal/http"
	"github.com/scorpion-security/hub/internal/logging"
	"github.com/scorpion-security/hub/internal/store"
)

func main() {
	cfg, errLoad := config.Load()
	if errLoad != nil {
		log.WithError(errLoad).Fatal("load configuration")
	}
	logging.Setup(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, errStore := store.Open(ctx, cfg)
	if errStore != nil {
		log.WithError(errStore).Fatal("open record store")
	}
	defer func() {
		if errClose := st.Close(); errClose != nil {
			log.WithError(errClose).Warn("close record store")
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	engine := internalhttp.NewRouter(cfg, st, ai.NewResponder(cfg.AI))

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("server listening")
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			log.WithError(errServe).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
		log.WithError(errShutdown).Error("shutdown server")
	}
}
