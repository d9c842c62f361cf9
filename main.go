package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mbolis/quick-form/app"
	"github.com/mbolis/quick-form/config"
	"github.com/mbolis/quick-form/database"
	"github.com/mbolis/quick-form/log"
	"github.com/mbolis/quick-form/routes"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal("main.config: ", err)
	}
	log.SetFormat(cfg.LogFormat)
	log.SetLevel(log.ParseLevel(cfg.LogLevel))
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	db, err := database.Open(cfg.DBUrl)
	if err != nil {
		log.Fatal("main.db.open: ", err)
	}
	defer db.Close()

	app, err := app.New(cfg, db)
	if err != nil {
		log.Fatal("main.app: ", err)
	}

	handler := routes.Wire(app)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = runServer(ctx, cfg, handler)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("main.server: ", err)
	}
}

func runServer(ctx context.Context, cfg config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("Listening on " + cfg.Url())
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("main.server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
