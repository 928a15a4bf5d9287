package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tablevoice-service/internal/authz"
	"tablevoice-service/internal/domain/restaurant"
	xerrors "tablevoice-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AccessRepository struct {
	db *pgxpool.Pool
}

func NewAccessRepository(db *pgxpool.Pool) *AccessRepository {
	return &AccessRepository{db: db}
}

// Create inserts a restaurant access record.
func (r *AccessRepository) Create(ctx context.Context, a *restaurant.Access) error {
	query := `
		INSERT INTO restaurant_access (user_id, restaurant_id, organization_id, role, permissions)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, restaurant_id) DO NOTHING
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		a.UserID, a.RestaurantID, a.OrganizationID, a.Role, a.Permissions,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return xerrors.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to create access record: %w", err)
	}

	return nil
}

// FindByUserAndRestaurant retrieves one access record.
func (r *AccessRepository) FindByUserAndRestaurant(ctx context.Context, userID, restaurantID int64) (*restaurant.Access, error) {
	query := `
		SELECT id, user_id, restaurant_id, organization_id, role, permissions, created_at, updated_at
		FROM restaurant_access
		WHERE user_id = $1 AND restaurant_id = $2
	`

	var a restaurant.Access
	err := r.db.QueryRow(ctx, query, userID, restaurantID).Scan(
		&a.ID, &a.UserID, &a.RestaurantID, &a.OrganizationID, &a.Role, &a.Permissions,
		&a.CreatedAt, &a.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find access record: %w", err)
	}

	return &a, nil
}

// PermissionsOf resolves the stored role and permission list for the
// authorizer.
func (r *AccessRepository) PermissionsOf(ctx context.Context, userID, restaurantID int64) (authz.RestaurantRole, []string, error) {
	var role authz.RestaurantRole
	var perms []string

	err := r.db.QueryRow(
		ctx,
		`SELECT role, permissions FROM restaurant_access WHERE user_id = $1 AND restaurant_id = $2`,
		userID, restaurantID,
	).Scan(&role, &perms)

	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil, xerrors.ErrNotFound
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to resolve access permissions: %w", err)
	}

	return role, perms, nil
}

// ListByRestaurant lists access records for one restaurant.
func (r *AccessRepository) ListByRestaurant(ctx context.Context, restaurantID int64) ([]*restaurant.Access, error) {
	query := `
		SELECT id, user_id, restaurant_id, organization_id, role, permissions, created_at, updated_at
		FROM restaurant_access
		WHERE restaurant_id = $1
		ORDER BY created_at
	`
	return r.queryAccess(ctx, query, restaurantID)
}

// ListAll returns every access record. Used by the permission repair
// procedure.
func (r *AccessRepository) ListAll(ctx context.Context) ([]*restaurant.Access, error) {
	query := `
		SELECT id, user_id, restaurant_id, organization_id, role, permissions, created_at, updated_at
		FROM restaurant_access
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list access records: %w", err)
	}
	defer rows.Close()

	return r.collectAccess(rows)
}

// UpdateRole changes the role and rewrites the derived permission list.
func (r *AccessRepository) UpdateRole(ctx context.Context, id int64, role authz.RestaurantRole, permissions []string) error {
	query := `
		UPDATE restaurant_access
		SET role = $1, permissions = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := r.db.Exec(ctx, query, role, permissions, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update access role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// UpdatePermissions overwrites only the stored permission list. Used by the
// repair procedure.
func (r *AccessRepository) UpdatePermissions(ctx context.Context, id int64, permissions []string) error {
	result, err := r.db.Exec(
		ctx,
		`UPDATE restaurant_access SET permissions = $1, updated_at = $2 WHERE id = $3`,
		permissions, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update access permissions: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// Delete removes one access record.
func (r *AccessRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM restaurant_access WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete access record: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// DeleteByRestaurant removes all access records for a restaurant.
func (r *AccessRepository) DeleteByRestaurant(ctx context.Context, restaurantID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM restaurant_access WHERE restaurant_id = $1`, restaurantID)
	if err != nil {
		return fmt.Errorf("failed to delete access records: %w", err)
	}
	return nil
}

func (r *AccessRepository) queryAccess(ctx context.Context, query string, arg interface{}) ([]*restaurant.Access, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query access records: %w", err)
	}
	defer rows.Close()

	return r.collectAccess(rows)
}

func (r *AccessRepository) collectAccess(rows pgx.Rows) ([]*restaurant.Access, error) {
	var records []*restaurant.Access
	for rows.Next() {
		var a restaurant.Access
		if err := rows.Scan(&a.ID, &a.UserID, &a.RestaurantID, &a.OrganizationID, &a.Role, &a.Permissions, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan access record: %w", err)
		}
		records = append(records, &a)
	}
	return records, rows.Err()
}
