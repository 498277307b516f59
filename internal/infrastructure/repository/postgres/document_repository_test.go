package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/knowledge-retrieval/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*DocumentRecordRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &DocumentRecordRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestSaveUpsertsByDocumentID(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	uploadedAt := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO document_records").
		WithArgs("notes.txt", "txt", 7, string(domain.StatusIngested), "", uploadedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Save(context.Background(), &domain.DocumentRecord{
		DocumentID:   "notes.txt",
		FileType:     "txt",
		PassageCount: 7,
		Status:       domain.StatusIngested,
		UploadedAt:   uploadedAt,
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT document_id, file_type, passage_count").
		WithArgs("missing.txt").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing.txt")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDScansRecord(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	uploadedAt := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"document_id", "file_type", "passage_count", "status", "error_message", "uploaded_at"}).
		AddRow("notes.txt", "txt", 7, "ingested", "", uploadedAt)
	mock.ExpectQuery("SELECT document_id, file_type, passage_count").
		WithArgs("notes.txt").
		WillReturnRows(rows)

	rec, err := repo.GetByID(context.Background(), "notes.txt")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if rec.Status != domain.StatusIngested || rec.PassageCount != 7 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListOrdersByUploadTime(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	newer := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	older := newer.Add(-time.Hour)
	rows := sqlmock.NewRows([]string{"document_id", "file_type", "passage_count", "status", "error_message", "uploaded_at"}).
		AddRow("b.txt", "txt", 3, "ingested", "", newer).
		AddRow("a.pdf", "pdf", 0, "failed", "corrupt file", older)
	mock.ExpectQuery("SELECT document_id, file_type, passage_count").
		WillReturnRows(rows)

	records, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].DocumentID != "b.txt" || records[1].Status != domain.StatusFailed {
		t.Fatalf("unexpected records: %+v", records)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
