package database

import (
	"database/sql"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the SQLite3 file at url and brings its schema up to date.
func Open(url string) (db *sql.DB, err error) {
	db, err = sql.Open("sqlite3", withPragmas(url))
	if err != nil {
		return
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		db.Close()
		return
	}

	// db tuning options
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(2 * time.Hour)

	err = migrateDB(db)
	if err != nil {
		db.Close()
		return
	}

	return
}

// the pragma above only reaches the first connection of the pool
func withPragmas(url string) string {
	params := []string{}
	if !strings.Contains(url, "_foreign_keys") && !strings.Contains(url, "_fk") {
		params = append(params, "_foreign_keys=on")
	}
	if !strings.Contains(url, "_busy_timeout") {
		params = append(params, "_busy_timeout=5000")
	}
	if len(params) == 0 {
		return url
	}
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	if !strings.HasPrefix(url, "file:") {
		url = "file:" + url
	}
	return url + sep + strings.Join(params, "&")
}
