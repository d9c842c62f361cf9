package app

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mbolis/quick-form/config"
	"github.com/mbolis/quick-form/httpx"
	"github.com/mbolis/quick-form/metrics"
	"github.com/mbolis/quick-form/store"
	"github.com/mbolis/quick-form/submission"
	"github.com/mbolis/quick-form/upload"
)

type App struct {
	*sql.DB
	config.Config

	Forms     *store.Forms
	Responses *store.Responses
	Users     *store.Users
	Uploads   *upload.Disk
	Tokens    *httpx.Tokens
	Pipeline  *submission.Pipeline
	Registry  *prometheus.Registry
}

// New wires the stores, the upload directory and the submission pipeline
// around an open database.
func New(cfg config.Config, db *sql.DB) (App, error) {
	uploads, err := upload.NewDisk(cfg.UploadDir, cfg.Url(), cfg.UploadMaxBytes)
	if err != nil {
		return App{}, err
	}

	registry := metrics.NewRegistry()
	forms := store.NewForms(db)
	responses := store.NewResponses(db)

	return App{
		DB:        db,
		Config:    cfg,
		Forms:     forms,
		Responses: responses,
		Users:     store.NewUsers(db),
		Uploads:   uploads,
		Tokens:    httpx.NewTokens(cfg.TokenSecret, cfg.TokenTTL, cfg.CookieName, cfg.CookieSecure),
		Pipeline: submission.New(forms, uploads, responses,
			submission.WithObserver(metrics.New(registry)),
			submission.WithConcurrency(cfg.UploadConcurrency),
		),
		Registry: registry,
	}, nil
}
