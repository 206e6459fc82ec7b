package database

import (
	"context"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

type Sqlite struct {
	dbName string
	driver string
	conn   *sqlx.DB

	mx *sync.RWMutex
}

// ConnectSqlite prepares a handle for dbName, a file path or ":memory:".
func ConnectSqlite(dbName string) *Sqlite {
	return &Sqlite{
		dbName: dbName,
		driver: "sqlite3",
		mx:     &sync.RWMutex{},
	}
}

func (sqlite *Sqlite) Connect(ctx context.Context) error {
	db, err := sqlx.ConnectContext(ctx, sqlite.driver, sqlite.dbName)
	if err != nil {
		log.Error().Err(err).Str("db", sqlite.dbName).Msg("failed to connect to sqlite")
		return err
	}

	// one writer at a time, and a single shared :memory: database
	db.SetMaxOpenConns(1)

	sqlite.mx.Lock()
	defer sqlite.mx.Unlock()

	sqlite.conn = db

	return nil
}

func (sqlite *Sqlite) Conn() *sqlx.DB {
	sqlite.mx.RLock()
	defer sqlite.mx.RUnlock()

	return sqlite.conn
}

func (sqlite *Sqlite) Close() error {
	sqlite.mx.Lock()
	defer sqlite.mx.Unlock()

	if sqlite.conn == nil {
		return nil
	}

	return sqlite.conn.Close()
}

// Setup runs schema, a list of statements separated by "---", in one
// transaction.
func (sqlite *Sqlite) Setup(ctx context.Context, schema string) (err error) {
	tx, err := sqlite.Conn().BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			log.Info().Msg("rolling back schema changes")
			tx.Rollback()
		}
	}()

	for _, stmt := range strings.Split(schema, "---") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}

		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			log.Error().Err(err).Msg("failed to setup db")
			return err
		}
	}

	return tx.Commit()
}
