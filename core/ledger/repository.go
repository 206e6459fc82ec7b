package ledger

import (
	"chupload/core/database"
	"chupload/pkg/squirtle"
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

//go:embed sql
var sqlFiles embed.FS

const (
	TableName = "uploads"

	CreateUploadStmt        = "CreateUpload"
	GetLatestByBasenameStmt = "GetLatestByBasename"
	ListByStatusStmt        = "ListByStatus"
	UpdateStatusStmt        = "UpdateStatus"
)

var (
	ErrorStmtNotFound = errors.New("query_not_found")
	ErrNotFound       = errors.New("upload_not_found")
)

// Schema is the DDL for the ledger tables.
func Schema() (string, error) {
	byt, err := sqlFiles.ReadFile("sql/schema.up.sql")
	return string(byt), err
}

// Queries loads the named ledger queries bundled with the binary.
func Queries() (squirtle.QueryMapper, error) {
	store, err := squirtle.LoadFS(sqlFiles, "sql/querystore.yaml")
	if err != nil {
		return nil, err
	}

	return store.HydrateQueryStore(TableName)
}

type Repository struct {
	conn    *sqlx.DB
	querier squirtle.QueryMapper
}

func NewRepository(conn *sqlx.DB, querier squirtle.QueryMapper) *Repository {
	return &Repository{
		conn:    conn,
		querier: querier,
	}
}

// Open sets up the schema on db and returns a repository over it.
func Open(ctx context.Context, db *database.Sqlite) (*Repository, error) {
	schema, err := Schema()
	if err != nil {
		return nil, err
	}

	if err := db.Setup(ctx, schema); err != nil {
		return nil, err
	}

	querier, err := Queries()
	if err != nil {
		return nil, err
	}

	return NewRepository(db.Conn(), querier), nil
}

func (repo *Repository) Create(ctx context.Context, upload *Upload) error {
	stmt, ok := repo.querier.GetQuery(CreateUploadStmt)
	if !ok {
		return ErrorStmtNotFound
	}

	if _, err := repo.conn.NamedExecContext(ctx, stmt, upload); err != nil {
		log.Error().Err(err).Str("basename", upload.Basename).Msg("failed to insert upload")
		return err
	}

	return nil
}

func (repo *Repository) GetLatest(ctx context.Context, basename string) (*Upload, error) {
	stmt, ok := repo.querier.GetQuery(GetLatestByBasenameStmt)
	if !ok {
		return nil, ErrorStmtNotFound
	}

	rows, err := repo.conn.NamedQueryContext(ctx, stmt, map[string]any{"basename": basename})
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch upload")
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}

		return nil, ErrNotFound
	}

	upload := &Upload{}
	if err := rows.StructScan(upload); err != nil {
		log.Error().Err(err).Msg("upload record unmarshal failed")
		return nil, err
	}

	return upload, nil
}

const DefaultLimit = 20

func (repo *Repository) ListByStatus(ctx context.Context, status string, limit int) ([]*Upload, error) {
	stmtTmpl, ok := repo.querier.GetQuery(ListByStatusStmt)
	if !ok {
		return nil, ErrorStmtNotFound
	}

	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := repo.conn.NamedQueryContext(
		ctx,
		fmt.Sprintf(stmtTmpl, limit),
		map[string]any{"status": status},
	)
	if err != nil {
		log.Error().Err(err).Msg("failed to list uploads")
		return nil, err
	}
	defer rows.Close()

	results := []*Upload{}

	for rows.Next() {
		upload := &Upload{}
		if err := rows.StructScan(upload); err != nil {
			log.Error().Err(err).Msg("upload record unmarshal failed")
			return nil, err
		}

		results = append(results, upload)
	}

	return results, rows.Err()
}

// UpdateStatus moves the upload with id to status. archiveURL may be nil.
func (repo *Repository) UpdateStatus(ctx context.Context, id, status string, archiveURL *string) error {
	stmt, ok := repo.querier.GetQuery(UpdateStatusStmt)
	if !ok {
		return ErrorStmtNotFound
	}

	res, err := repo.conn.NamedExecContext(ctx, stmt, map[string]any{
		"id":          id,
		"status":      status,
		"archive_url": archiveURL,
		"updated_at":  database.Now(),
	})
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("failed to update upload status")
		return err
	}

	n, err := res.RowsAffected()
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	if n == 0 {
		return ErrNotFound
	}

	return nil
}
