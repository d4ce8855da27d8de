package database

import (
	"context"
	"embed"
	"net/url"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/microsoft/go-mssqldb"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/ademscil/Event-Management-BE-sub001/core"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

var (
	openFunc     = Open // mockable
	pingAttempts = uint64(30)
)

// DSN builds the sqlserver:// connection string for conf.
func DSN(conf *core.Config) string {
	q := make(url.Values)
	q.Set("database", conf.Database.Name)
	if conf.Database.Encrypt != "" {
		q.Set("encrypt", conf.Database.Encrypt)
	}
	q.Set("app name", conf.AppName)

	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(conf.Database.User, conf.Database.Password),
		Host:     conf.Database.Address(),
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Open opens a new connection pool. The pool is not pinged.
func Open(conf *core.Config) (*sqlx.DB, error) {
	db, err := sqlx.Open(conf.Database.Engine, DSN(conf))
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	db.SetMaxOpenConns(conf.Database.MaxOpenConns)
	db.SetMaxIdleConns(conf.Database.MaxIdleConns)
	db.SetConnMaxLifetime(conf.Database.ConnMaxLifetime)
	return db, nil
}

// Ping waits for the database to be ready, backing off exponentially between attempts.
func Ping(ctx context.Context, db *sqlx.DB) error {
	b := retry.NewExponential(100 * time.Millisecond)
	b = retry.WithCappedDuration(2*time.Second, b)
	b = retry.WithMaxRetries(pingAttempts, b)

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	return errors.Wrap(err, "DB ping timeout")
}

// Pool lazily opens one connection pool and hands the same *sqlx.DB to every caller.
type Pool struct {
	conf *core.Config
	mu   sync.Mutex
	db   *sqlx.DB
}

func NewPool(conf *core.Config) *Pool {
	return &Pool{conf: conf}
}

// Get returns the memoised pool, opening and pinging it on first use.
// A failed attempt is not memoised; the next call tries again.
func (p *Pool) Get(ctx context.Context) (*sqlx.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.db != nil {
		return p.db, nil
	}
	db, err := openFunc(p.conf)
	if err != nil {
		return nil, err
	}
	if err = Ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	p.db = db
	return db, nil
}

func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

// Migrate runs goose with the embedded migrations. command is any goose command (up, down, status...).
func Migrate(ctx context.Context, db *sqlx.DB, command string, args ...string) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("mssql"); err != nil {
		return errors.Wrap(err, "setting goose dialect")
	}
	if err := goose.RunContext(ctx, command, db.DB, migrationsDir, args...); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}

// TxRunner implements core.Transactor on top of a *sqlx.DB.
type TxRunner struct {
	db *sqlx.DB
}

var _ core.Transactor = (*TxRunner)(nil)

func NewTransactor(db *sqlx.DB) *TxRunner {
	return &TxRunner{db: db}
}

func (t *TxRunner) WithinTx(ctx context.Context, fn func(exec core.DBExecutor) error) (err error) {
	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}
