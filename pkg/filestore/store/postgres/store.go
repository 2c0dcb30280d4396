// Package postgres keeps file records in a PostgreSQL table managed by
// embedded golang-migrate migrations.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/tendant/simple-files/pkg/filestore"
)

const filesTable = "files"

var fileColumns = []string{"id", "filename", "content_type", "file_path", "size", "upload_date"}

//go:embed migrations/*.sql
var migrations embed.FS

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Config options for the Postgres metadata store
type Config struct {
	DatabaseURL string
	Schema      string // search_path for the files table, defaults to public
}

// Store implements filestore.MetadataStore using PostgreSQL
type Store struct {
	db     DBTX
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New applies pending migrations and opens a connection pool.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required")
	}
	if cfg.Schema == "" {
		cfg.Schema = "public"
	}
	if logger == nil {
		logger = slog.Default()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolCfg.ConnConfig.RuntimeParams["search_path"] = cfg.Schema

	if err := runMigrations(ctx, poolCfg.ConnConfig, cfg.Schema, logger); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("Postgres metadata store ready", "schema", cfg.Schema)

	return &Store{db: pool, pool: pool, logger: logger}, nil
}

// NewWithDB creates a store on an existing connection or transaction.
// Migrations are not applied.
func NewWithDB(db DBTX) *Store {
	return &Store{db: db, logger: slog.Default()}
}

// Close closes the pool opened by New.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func runMigrations(ctx context.Context, connCfg *pgx.ConnConfig, schema string, logger *slog.Logger) error {
	// golang-migrate needs a database/sql handle, separate from the pool
	sqldb := stdlib.OpenDB(*connCfg)
	defer sqldb.Close()

	if schema != "public" {
		if _, err := sqldb.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{schema}.Sanitize()); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	driver, err := migratepg.WithInstance(sqldb, &migratepg.Config{SchemaName: schema})
	if err != nil {
		return fmt.Errorf("postgres driver: %w", err)
	}

	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate.New: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debug("No new migrations to apply")
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}
	logger.Info("Migrations applied")
	return nil
}

func qb() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

func insertQuery(id uuid.UUID, record *filestore.FileRecord) sq.InsertBuilder {
	return qb().Insert(filesTable).
		Columns(fileColumns...).
		Values(id, record.Filename, record.ContentType, record.StorageLocator, record.Size, record.UploadDate.UTC())
}

func findQuery(id uuid.UUID) sq.SelectBuilder {
	return qb().Select(fileColumns...).From(filesTable).Where(sq.Eq{"id": id.String()})
}

func listQuery(params filestore.ListParams) sq.SelectBuilder {
	q := qb().Select(fileColumns...).From(filesTable).OrderBy("upload_date DESC", "id DESC")
	if params.Skip > 0 {
		q = q.Offset(uint64(params.Skip))
	}
	if params.Limit > 0 {
		q = q.Limit(uint64(params.Limit))
	}
	return q
}

func (s *Store) Insert(ctx context.Context, record *filestore.FileRecord) (string, error) {
	id := uuid.New()
	sqlStr, args, err := insertQuery(id, record).ToSql()
	if err != nil {
		return "", fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.db.Exec(ctx, sqlStr, args...); err != nil {
		return "", s.handlePostgresError("insert", err)
	}
	return id.String(), nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*filestore.FileRecord, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, filestore.ErrFileNotFound
	}

	sqlStr, args, err := findQuery(parsed).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	record, err := scanRecord(s.db.QueryRow(ctx, sqlStr, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, filestore.ErrFileNotFound
	} else if err != nil {
		return nil, s.handlePostgresError("find", err)
	}
	return record, nil
}

func (s *Store) List(ctx context.Context, params filestore.ListParams) ([]*filestore.FileRecord, error) {
	sqlStr, args, err := listQuery(params).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, s.handlePostgresError("list", err)
	}
	defer rows.Close()

	records := []*filestore.FileRecord{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, s.handlePostgresError("list", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, s.handlePostgresError("list", err)
	}
	return records, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	sqlStr, args, err := qb().Select("COUNT(*)").From(filesTable).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}

	var n int64
	if err := s.db.QueryRow(ctx, sqlStr, args...).Scan(&n); err != nil {
		return 0, s.handlePostgresError("count", err)
	}
	return n, nil
}

func scanRecord(row pgx.Row) (*filestore.FileRecord, error) {
	var (
		id         uuid.UUID
		record     filestore.FileRecord
		uploadDate time.Time
	)
	if err := row.Scan(&id, &record.Filename, &record.ContentType, &record.StorageLocator, &record.Size, &uploadDate); err != nil {
		return nil, err
	}
	record.ID = id.String()
	record.UploadDate = uploadDate.UTC()
	return &record, nil
}

// Error handling helper
func (s *Store) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		s.logger.Error("Postgres error", "operation", operation, "code", pgErr.Code, "message", pgErr.Message)
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("duplicate file id: %w", err)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required: %w", err)
		}
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}
