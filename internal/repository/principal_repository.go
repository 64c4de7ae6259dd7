package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quickdesk/helpdesk/internal/domain"
)

// PrincipalDirectory resolves principals for notification fan-out. The rows
// are maintained by the external identity system; this service only reads.
type PrincipalDirectory interface {
	GetByID(ctx context.Context, id string) (*domain.Principal, error)
	ListByRole(ctx context.Context, roles ...domain.Role) ([]domain.Principal, error)
}

type principalRepository struct {
	pool *pgxpool.Pool
}

// NewPrincipalRepository returns a Postgres-backed directory.
func NewPrincipalRepository(pool *pgxpool.Pool) PrincipalDirectory {
	return &principalRepository{pool: pool}
}

func (r *principalRepository) GetByID(ctx context.Context, id string) (*domain.Principal, error) {
	const query = `SELECT id, name, email, role, created_at FROM principals WHERE id=$1`
	var principal domain.Principal
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&principal.ID,
		&principal.Name,
		&principal.Email,
		&principal.Role,
		&principal.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &principal, nil
}

func (r *principalRepository) ListByRole(ctx context.Context, roles ...domain.Role) ([]domain.Principal, error) {
	const query = `SELECT id, name, email, role, created_at FROM principals WHERE role = ANY($1) ORDER BY name`
	roleStrs := make([]string, len(roles))
	for i, role := range roles {
		roleStrs[i] = string(role)
	}

	rows, err := r.pool.Query(ctx, query, roleStrs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Principal
	for rows.Next() {
		var principal domain.Principal
		if err := rows.Scan(
			&principal.ID,
			&principal.Name,
			&principal.Email,
			&principal.Role,
			&principal.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, principal)
	}
	return result, rows.Err()
}
