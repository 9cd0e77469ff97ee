package metastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/anthanhphan/go-chunked-file-storage/internal/api/adapter/outbound/metastore/migrations"
	"github.com/anthanhphan/go-chunked-file-storage/internal/api/domain"
	"github.com/anthanhphan/go-chunked-file-storage/internal/api/port"
	"github.com/anthanhphan/go-chunked-file-storage/pkg/dbx"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const pgUniqueViolation = "23505"

// Postgres is the relational MetadataStore.
type Postgres struct {
	db           *sql.DB
	defaultQuota int64
}

var _ port.MetadataStore = (*Postgres)(nil)

// OpenPostgres opens a pgx-backed *sql.DB and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// NewPostgres wraps db. Owners without a usage row get defaultQuota.
func NewPostgres(db *sql.DB, defaultQuota int64) *Postgres {
	return &Postgres{db: db, defaultQuota: defaultQuota}
}

// SaveFileTransactional inserts file and chunks in one transaction. For owned
// files the usage row is created if missing and grown with a guarded UPDATE, so
// two finalizes racing at the quota boundary cannot both pass.
func (p *Postgres) SaveFileTransactional(ctx context.Context, file *domain.File, chunks []domain.Chunk) error {
	return dbx.WithTx(ctx, p.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if file.OwnerID != "" {
			if err := p.reserveQuota(ctx, tx, file.OwnerID, file.Size); err != nil {
				return err
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO files (id, name, size, mime_type, folder_path, owner_id, is_public, iv, created_at)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, NULLIF($8, ''), $9)`,
			file.ID, file.Name, file.Size, file.MimeType, file.FolderPath, file.OwnerID, file.IsPublic, file.IV, file.CreatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
				return fmt.Errorf("%w: %s", domain.ErrConflict, file.Name)
			}
			return fmt.Errorf("insert file: %w", err)
		}

		for _, c := range chunks {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO chunks (file_id, chunk_index, blob_ref, url, iv, size)
				VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)`,
				file.ID, c.Index, c.BlobRef, c.URL, c.IV, c.Size)
			if err != nil {
				return fmt.Errorf("insert chunk %d: %w", c.Index, err)
			}
		}
		return nil
	})
}

func (p *Postgres) reserveQuota(ctx context.Context, tx dbx.DBTX, ownerID string, size int64) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO storage_usage (owner_id, used_bytes, limit_bytes)
		VALUES ($1, 0, $2)
		ON CONFLICT (owner_id) DO NOTHING`, ownerID, p.defaultQuota); err != nil {
		return fmt.Errorf("ensure usage row: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE storage_usage
		SET used_bytes = used_bytes + $2, updated_at = now()
		WHERE owner_id = $1 AND used_bytes + $2 <= limit_bytes`, ownerID, size)
	if err != nil {
		return fmt.Errorf("reserve quota: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d bytes for %s", domain.ErrQuotaExceeded, size, ownerID)
	}
	return nil
}

const fileColumns = `id, name, size, mime_type, folder_path, COALESCE(owner_id, ''), is_public, COALESCE(iv, ''), created_at, deleted_at`

// GetFileByName resolves a live file: the caller's own first, then public, then newest.
func (p *Postgres) GetFileByName(ctx context.Context, name string, ownerID string) (*domain.File, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+fileColumns+`
		FROM files
		WHERE name = $1 AND deleted_at IS NULL
		ORDER BY COALESCE(owner_id = $2, FALSE) DESC, is_public DESC, created_at DESC
		LIMIT 1`, name, ownerID)
	return p.loadFile(ctx, row, name)
}

// GetOwnedFile returns ownerID's file named name, live first, then the most recently trashed.
func (p *Postgres) GetOwnedFile(ctx context.Context, name string, ownerID string) (*domain.File, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+fileColumns+`
		FROM files
		WHERE name = $1 AND owner_id = $2
		ORDER BY deleted_at IS NULL DESC, deleted_at DESC
		LIMIT 1`, name, ownerID)
	return p.loadFile(ctx, row, name)
}

func (p *Postgres) loadFile(ctx context.Context, row *sql.Row, name string) (*domain.File, error) {
	var (
		f         domain.File
		deletedAt sql.NullTime
	)
	err := row.Scan(&f.ID, &f.Name, &f.Size, &f.MimeType, &f.FolderPath, &f.OwnerID, &f.IsPublic, &f.IV, &f.CreatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("select file: %w", err)
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		f.DeletedAt = &t
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT chunk_index, blob_ref, url, COALESCE(iv, ''), size
		FROM chunks
		WHERE file_id = $1
		ORDER BY chunk_index`, f.ID)
	if err != nil {
		return nil, fmt.Errorf("select chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.Index, &c.BlobRef, &c.URL, &c.IV, &c.Size); err != nil {
			return nil, err
		}
		f.Chunks = append(f.Chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &f, nil
}

// GetUsage returns the owner's usage, or zero usage under the default quota.
func (p *Postgres) GetUsage(ctx context.Context, ownerID string) (domain.Usage, error) {
	var u domain.Usage
	err := p.db.QueryRowContext(ctx,
		`SELECT used_bytes, limit_bytes FROM storage_usage WHERE owner_id = $1`, ownerID).Scan(&u.Used, &u.Limit)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Usage{Limit: p.defaultQuota}, nil
	}
	if err != nil {
		return domain.Usage{}, fmt.Errorf("select usage: %w", err)
	}
	return u, nil
}

// UpdateUsage applies deltaBytes, never going below zero.
func (p *Postgres) UpdateUsage(ctx context.Context, ownerID string, deltaBytes int64) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO storage_usage (owner_id, used_bytes, limit_bytes)
		VALUES ($1, GREATEST($2, 0), $3)
		ON CONFLICT (owner_id)
		DO UPDATE SET used_bytes = GREATEST(storage_usage.used_bytes + $2, 0), updated_at = now()`,
		ownerID, deltaBytes, p.defaultQuota)
	if err != nil {
		return fmt.Errorf("update usage: %w", err)
	}
	return nil
}

func (p *Postgres) SoftDeleteFile(ctx context.Context, fileID string, at time.Time) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE files SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`, fileID, at)
	if err != nil {
		return fmt.Errorf("soft delete: %w", err)
	}
	return expectOneRow(res, fileID)
}

// DeleteFile removes the file row; chunk rows go with it through ON DELETE CASCADE.
func (p *Postgres) DeleteFile(ctx context.Context, fileID string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, fileID)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return expectOneRow(res, fileID)
}

func expectOneRow(res sql.Result, fileID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: file id %s", domain.ErrNotFound, fileID)
	}
	return nil
}
