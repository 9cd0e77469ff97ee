package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/anthanhphan/go-chunked-file-storage/internal/api/domain"
	"github.com/anthanhphan/go-chunked-file-storage/internal/client/ledger/migrations"
	"github.com/anthanhphan/go-chunked-file-storage/pkg/dbx"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// SQLite is a Ledger kept in an embedded database file.
type SQLite struct {
	db  dbx.DBTX
	now func() time.Time
}

var _ Ledger = (*SQLite)(nil)

// OpenSQLite opens (or creates) the ledger database at dsn and applies migrations.
func OpenSQLite(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	// One writer at a time; sqlite serializes them anyway.
	db.SetMaxOpenConns(1)

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate ledger db: %w", err)
	}
	return nil
}

func NewSQLite(db dbx.DBTX) *SQLite {
	return &SQLite{db: db, now: time.Now}
}

func (s *SQLite) Load(ctx context.Context, fingerprint string) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_index, blob_ref, url, iv, size
		FROM resume_chunks
		WHERE fingerprint = ?
		ORDER BY chunk_index`, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger[%s]: %w", fingerprint, err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.Index, &c.BlobRef, &c.URL, &c.IV, &c.Size); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger rows: %w", err)
	}
	return chunks, nil
}

func (s *SQLite) Append(ctx context.Context, fingerprint string, chunk domain.Chunk) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resume_chunks (fingerprint, chunk_index, blob_ref, url, iv, size, committed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint, chunk_index) DO UPDATE SET
			blob_ref = excluded.blob_ref,
			url = excluded.url,
			iv = excluded.iv,
			size = excluded.size,
			committed_at = excluded.committed_at
	`, fingerprint, chunk.Index, chunk.BlobRef, chunk.URL, chunk.IV, chunk.Size, s.now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("failed to append ledger[%s] chunk %d: %w", fingerprint, chunk.Index, err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, fingerprint string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM resume_chunks WHERE fingerprint = ?`, fingerprint)
	if err != nil {
		return fmt.Errorf("failed to delete ledger[%s]: %w", fingerprint, err)
	}
	return nil
}
