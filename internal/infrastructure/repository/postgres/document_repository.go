package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/knowledge-retrieval/internal/core/domain"
)

// DocumentRecordRepository persists per-document ingest outcomes.
// Rows are keyed by the document identity, so a re-ingest of the same
// filename overwrites the previous outcome.
type DocumentRecordRepository struct {
	db *sql.DB
}

func NewDocumentRecordRepository(db *sql.DB) *DocumentRecordRepository {
	return &DocumentRecordRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRecordRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS document_records (
	document_id TEXT PRIMARY KEY,
	file_type TEXT NOT NULL,
	passage_count INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	uploaded_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_document_records_status ON document_records(status);
CREATE INDEX IF NOT EXISTS idx_document_records_uploaded_at ON document_records(uploaded_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DocumentRecordRepository) Save(ctx context.Context, rec *domain.DocumentRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO document_records (document_id, file_type, passage_count, status, error_message, uploaded_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (document_id) DO UPDATE
SET file_type = EXCLUDED.file_type,
    passage_count = EXCLUDED.passage_count,
    status = EXCLUDED.status,
    error_message = EXCLUDED.error_message,
    uploaded_at = EXCLUDED.uploaded_at
`,
		rec.DocumentID, rec.FileType, rec.PassageCount, string(rec.Status), rec.Error, rec.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert document record: %w", err)
	}
	return nil
}

func (r *DocumentRecordRepository) GetByID(ctx context.Context, documentID string) (*domain.DocumentRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT document_id, file_type, passage_count, status, error_message, uploaded_at
FROM document_records
WHERE document_id = $1
`, documentID)

	rec, err := scanRecord(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document record", fmt.Errorf("id %s", documentID))
		}
		return nil, fmt.Errorf("scan document record: %w", err)
	}
	return rec, nil
}

func (r *DocumentRecordRepository) List(ctx context.Context) ([]domain.DocumentRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT document_id, file_type, passage_count, status, error_message, uploaded_at
FROM document_records
ORDER BY uploaded_at DESC
`)
	if err != nil {
		return nil, fmt.Errorf("list document records: %w", err)
	}
	defer rows.Close()

	var records []domain.DocumentRecord
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan document record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document records: %w", err)
	}
	return records, nil
}

func scanRecord(scan func(dest ...any) error) (*domain.DocumentRecord, error) {
	var rec domain.DocumentRecord
	var status string
	if err := scan(
		&rec.DocumentID, &rec.FileType, &rec.PassageCount, &status, &rec.Error, &rec.UploadedAt,
	); err != nil {
		return nil, err
	}
	rec.Status = domain.IngestStatus(status)
	return &rec, nil
}
