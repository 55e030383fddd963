package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/case-service/internal/domain"
)

// CaseFilter captures admin search parameters.
type CaseFilter struct {
	Status *domain.CaseStatus
	Search *string
	Limit  int
	Offset int
}

// CaseRepository encapsulates case persistence.
type CaseRepository interface {
	Create(ctx context.Context, c *domain.Case) error
	Update(ctx context.Context, c *domain.Case) error
	GetByID(ctx context.Context, id string) (*domain.Case, error)
	FindByOwnerEmail(ctx context.Context, email string) (*domain.Case, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Case, error)
	List(ctx context.Context, filter CaseFilter) ([]domain.Case, int, error)
	ListWithThread(ctx context.Context, limit int) ([]domain.Case, error)
}

type caseRepository struct {
	pool *pgxpool.Pool
}

// NewCaseRepository instantiates repository.
func NewCaseRepository(pool *pgxpool.Pool) CaseRepository {
	return &caseRepository{pool: pool}
}

const caseColumns = `id, owner_id, owner_email, store, product, description, images,
               product_image_url, receipt_image_url, status, status_history, emails,
               info_request_history, info_response_history, thread_id, last_email_reply_at,
               last_email_message_id, resolution, manual_analysis, created_at, updated_at`

func (r *caseRepository) Create(ctx context.Context, c *domain.Case) error {
	const query = `
        INSERT INTO cases (id, owner_id, owner_email, store, product, description, images,
            product_image_url, receipt_image_url, status, status_history, emails,
            info_request_history, info_response_history, thread_id, last_email_reply_at,
            last_email_message_id, resolution, manual_analysis)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
        RETURNING created_at, updated_at`
	args := []any{
		c.ID,
		c.OwnerID,
		c.OwnerEmail,
		c.Store,
		c.Product,
		c.Description,
		c.Images,
		c.ProductImageURL,
		c.ReceiptImageURL,
		c.Status,
	}
	args = append(args, logArgs(c)...)
	args = append(args,
		c.ThreadID,
		c.LastEmailReplyAt,
		c.LastEmailMessageID,
		c.Resolution,
		c.ManualAnalysis,
	)
	return r.pool.QueryRow(ctx, query, args...).Scan(&c.CreatedAt, &c.UpdatedAt)
}

// Update writes the full case; the history columns are replaced with the caller's append-only logs.
func (r *caseRepository) Update(ctx context.Context, c *domain.Case) error {
	const query = `
        UPDATE cases SET owner_email=$1, store=$2, product=$3, description=$4, images=$5,
            product_image_url=$6, receipt_image_url=$7, status=$8, status_history=$9, emails=$10,
            info_request_history=$11, info_response_history=$12,
            thread_id=COALESCE(thread_id, $13), last_email_reply_at=$14, last_email_message_id=$15,
            resolution=$16, manual_analysis=$17, updated_at=NOW()
        WHERE id=$18
        RETURNING updated_at`
	args := []any{
		c.OwnerEmail,
		c.Store,
		c.Product,
		c.Description,
		c.Images,
		c.ProductImageURL,
		c.ReceiptImageURL,
		c.Status,
	}
	args = append(args, logArgs(c)...)
	args = append(args,
		c.ThreadID,
		c.LastEmailReplyAt,
		c.LastEmailMessageID,
		c.Resolution,
		c.ManualAnalysis,
		c.ID,
	)
	err := r.pool.QueryRow(ctx, query, args...).Scan(&c.UpdatedAt)
	return notFound(err)
}

// logArgs returns the four JSONB log columns in table order. pgx sends a nil slice as NULL,
// so empty logs go out as '[]'.
func logArgs(c *domain.Case) []any {
	return []any{
		orEmpty(c.StatusHistory),
		orEmpty(c.Emails),
		orEmpty(c.InfoRequestHistory),
		orEmpty(c.InfoResponseHistory),
	}
}

func orEmpty[T any](l domain.AppendLog[T]) domain.AppendLog[T] {
	if l == nil {
		return domain.AppendLog[T]{}
	}
	return l
}

func (r *caseRepository) GetByID(ctx context.Context, id string) (*domain.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *caseRepository) FindByOwnerEmail(ctx context.Context, email string) (*domain.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE owner_email=$1 ORDER BY created_at DESC LIMIT 1`
	return r.fetchSingle(ctx, query, strings.ToLower(strings.TrimSpace(email)))
}

func (r *caseRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Case, error) {
	c, err := scanCase(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

func (r *caseRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE owner_id=$1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCases(rows)
}

func (r *caseRepository) List(ctx context.Context, filter CaseFilter) ([]domain.Case, int, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.Search != nil && strings.TrimSpace(*filter.Search) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.Search)) + "%"
		args = append(args, search)
		p := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(store) LIKE %s OR LOWER(product) LIKE %s OR LOWER(description) LIKE %s OR COALESCE(owner_email,'') LIKE %s)", p, p, p, p))
	}
	where := strings.Join(clauses, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM cases WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := clampPage(filter.Limit, filter.Offset, 20, 200)
	query := fmt.Sprintf(`SELECT %s FROM cases WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		caseColumns, where, limit, offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := scanCases(rows)
	return items, total, err
}

func (r *caseRepository) ListWithThread(ctx context.Context, limit int) ([]domain.Case, error) {
	limit, _ = clampPage(limit, 0, 500, 500)
	query := fmt.Sprintf(`SELECT %s FROM cases WHERE thread_id IS NOT NULL ORDER BY updated_at DESC LIMIT %d`, caseColumns, limit)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCases(rows)
}

func scanCase(row pgx.Row) (*domain.Case, error) {
	var c domain.Case
	if err := row.Scan(
		&c.ID,
		&c.OwnerID,
		&c.OwnerEmail,
		&c.Store,
		&c.Product,
		&c.Description,
		&c.Images,
		&c.ProductImageURL,
		&c.ReceiptImageURL,
		&c.Status,
		&c.StatusHistory,
		&c.Emails,
		&c.InfoRequestHistory,
		&c.InfoResponseHistory,
		&c.ThreadID,
		&c.LastEmailReplyAt,
		&c.LastEmailMessageID,
		&c.Resolution,
		&c.ManualAnalysis,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanCases(rows pgx.Rows) ([]domain.Case, error) {
	var result []domain.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	return result, rows.Err()
}

func clampPage(limit, offset, def, max int) (int, int) {
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
