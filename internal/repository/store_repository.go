package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/case-service/internal/domain"
)

// StoreRepository resolves retailer records.
type StoreRepository interface {
	GetByStoreID(ctx context.Context, storeID string) (*domain.Store, error)
	GetByName(ctx context.Context, name string) (*domain.Store, error)
}

type storeRepository struct {
	pool *pgxpool.Pool
}

// NewStoreRepository builds repository.
func NewStoreRepository(pool *pgxpool.Pool) StoreRepository {
	return &storeRepository{pool: pool}
}

func (r *storeRepository) GetByStoreID(ctx context.Context, storeID string) (*domain.Store, error) {
	const query = `
        SELECT store_id, name, email, primary_color, secondary_color, created_at, updated_at
        FROM stores WHERE store_id=$1`
	return r.fetchSingle(ctx, query, storeID)
}

// GetByName matches the exact name, ignoring case.
func (r *storeRepository) GetByName(ctx context.Context, name string) (*domain.Store, error) {
	const query = `
        SELECT store_id, name, email, primary_color, secondary_color, created_at, updated_at
        FROM stores WHERE LOWER(name)=LOWER($1) LIMIT 1`
	return r.fetchSingle(ctx, query, name)
}

func (r *storeRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Store, error) {
	var s domain.Store
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&s.StoreID,
		&s.Name,
		&s.Email,
		&s.PrimaryColor,
		&s.SecondaryColor,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}
