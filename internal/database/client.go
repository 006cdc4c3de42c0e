package database

import (
	"database/sql"
	"sync"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-scanner/internal/config"
)

var (
	once    sync.Once
	handle  *bun.DB
	initErr error
)

// Connect opens the process-wide database handle. The first caller performs
// the dial and ping; every later caller shares the same handle, so the setup
// runs exactly once no matter how many goroutines race into it.
func Connect(cfg config.DatabaseConfig) (*bun.DB, error) {
	once.Do(func() {
		sqldb, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			initErr = err
			return
		}
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
		sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

		if err := sqldb.Ping(); err != nil {
			initErr = err
			return
		}

		handle = bun.NewDB(sqldb, pgdialect.New())
	})
	return handle, initErr
}
