package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

type DocumentRepository struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

func NewDocumentRepository(db *sql.DB, dialect Dialect) *DocumentRepository {
	return &DocumentRepository{
		db:      db,
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *DocumentRepository) q(query string) string {
	return rebind(r.dialect, query)
}

const documentColumns = `id, customer_id, filename, storage_key, file_classification, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.DocumentRecord, error) {
	var (
		record         domain.DocumentRecord
		classification sql.NullString
	)
	err := row.Scan(
		&record.ID, &record.CustomerID, &record.Filename, &record.StorageKey,
		&classification, &record.Version, &record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if classification.Valid {
		label := classification.String
		record.Classification = &label
	}
	return &record, nil
}

func (r *DocumentRepository) Find(ctx context.Context, customerID int64, filename string) (*domain.DocumentRecord, error) {
	row := r.db.QueryRowContext(ctx, r.q(`
SELECT `+documentColumns+`
FROM documents
WHERE customer_id = $1 AND filename = $2
`), customerID, filename)

	record, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "find document",
				fmt.Errorf("customer %d, filename %q", customerID, filename))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return record, nil
}

// UpdateClassification writes the label only if the row still carries the
// version the caller read. On any failure the transaction is rolled back and
// record is left as it was.
func (r *DocumentRepository) UpdateClassification(ctx context.Context, record *domain.DocumentRecord, label string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapError(domain.ErrPersistence, "begin classification tx", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := r.now()
	res, err := tx.ExecContext(ctx, r.q(`
UPDATE documents
SET file_classification = $1, version = version + 1, updated_at = $2
WHERE id = $3 AND version = $4
`), label, now, record.ID, record.Version)
	if err != nil {
		return domain.WrapError(domain.ErrPersistence, "update classification", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.WrapError(domain.ErrPersistence, "update classification rows affected", err)
	}
	if affected == 0 {
		return fmt.Errorf("update classification: %w: %w: document %d changed since version %d",
			domain.ErrConflict, domain.ErrPersistence, record.ID, record.Version)
	}

	if err := tx.Commit(); err != nil {
		return domain.WrapError(domain.ErrPersistence, "commit classification tx", err)
	}

	record.Classification = &label
	record.Version++
	record.UpdatedAt = now
	return nil
}

func (r *DocumentRepository) Create(ctx context.Context, record *domain.DocumentRecord) error {
	now := r.now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}

	var classification any
	if record.Classification != nil {
		classification = *record.Classification
	}
	err := r.db.QueryRowContext(ctx, r.q(`
INSERT INTO documents (customer_id, filename, storage_key, file_classification, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, 1, $5, $6)
RETURNING id
`), record.CustomerID, record.Filename, record.StorageKey, classification, record.CreatedAt, record.UpdatedAt).Scan(&record.ID)
	if err != nil {
		return classifyWriteError("insert document", err)
	}
	record.Version = 1
	return nil
}

func (r *DocumentRepository) ListByCustomer(ctx context.Context, customerID int64) ([]domain.DocumentRecord, error) {
	rows, err := r.db.QueryContext(ctx, r.q(`
SELECT `+documentColumns+`
FROM documents
WHERE customer_id = $1
ORDER BY filename
`), customerID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]domain.DocumentRecord, 0)
	for rows.Next() {
		record, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

// EnsureCustomer inserts the customer or refreshes its name.
func (r *DocumentRepository) EnsureCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID <= 0 {
		return nil, domain.WrapError(domain.ErrValidation, "ensure customer", fmt.Errorf("customer id must be positive, got %d", customer.ID))
	}
	var out domain.Customer
	err := r.db.QueryRowContext(ctx, r.q(`
INSERT INTO customers (id, name)
VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET name = excluded.name
RETURNING id, name
`), customer.ID, customer.Name).Scan(&out.ID, &out.Name)
	if err != nil {
		return nil, classifyWriteError("upsert customer", err)
	}
	return &out, nil
}

// classifyWriteError maps constraint violations from either driver onto
// domain kinds.
func classifyWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return domain.WrapError(domain.ErrConflict, op, err)
		case "23503":
			return domain.WrapError(domain.ErrValidation, op, fmt.Errorf("unknown customer: %w", err))
		}
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return domain.WrapError(domain.ErrConflict, op, err)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return domain.WrapError(domain.ErrValidation, op, fmt.Errorf("unknown customer: %w", err))
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}
