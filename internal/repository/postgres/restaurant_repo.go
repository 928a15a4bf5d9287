package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tablevoice-service/internal/domain/restaurant"
	xerrors "tablevoice-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RestaurantRepository struct {
	db *pgxpool.Pool
}

func NewRestaurantRepository(db *pgxpool.Pool) *RestaurantRepository {
	return &RestaurantRepository{db: db}
}

// Create inserts a restaurant. Ownership must already be validated.
func (r *RestaurantRepository) Create(ctx context.Context, rest *restaurant.Restaurant) error {
	query := `
		INSERT INTO restaurants (
			name, owner_id, organization_id, phone, email, address, city, country,
			timezone, hours, settings, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`

	ownerID, orgID := ownershipColumns(rest.Ownership)

	hoursJSON, err := json.Marshal(rest.Hours)
	if err != nil {
		return fmt.Errorf("failed to marshal hours: %w", err)
	}
	settingsJSON, err := json.Marshal(rest.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	err = r.db.QueryRow(
		ctx, query,
		rest.Name, ownerID, orgID, rest.Phone, rest.Email, rest.Address, rest.City,
		rest.Country, rest.Timezone, hoursJSON, settingsJSON, rest.Status,
	).Scan(&rest.ID, &rest.CreatedAt, &rest.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create restaurant: %w", err)
	}

	return nil
}

// FindByID retrieves a restaurant.
func (r *RestaurantRepository) FindByID(ctx context.Context, id int64) (*restaurant.Restaurant, error) {
	query := `
		SELECT id, name, owner_id, organization_id, phone, email, address, city, country,
		       timezone, hours, settings, status, created_at, updated_at
		FROM restaurants
		WHERE id = $1
	`

	rest, err := r.scanRestaurant(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return rest, nil
}

// OwnershipOf resolves the ownership columns for the authorizer.
func (r *RestaurantRepository) OwnershipOf(ctx context.Context, restaurantID int64) (int64, int64, error) {
	var ownerID, orgID *int64
	err := r.db.QueryRow(
		ctx,
		`SELECT owner_id, organization_id FROM restaurants WHERE id = $1`,
		restaurantID,
	).Scan(&ownerID, &orgID)

	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, xerrors.ErrNotFound
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to resolve restaurant ownership: %w", err)
	}

	return deref(ownerID), deref(orgID), nil
}

// ListByOwner lists personally owned restaurants for a user.
func (r *RestaurantRepository) ListByOwner(ctx context.Context, userID int64) ([]*restaurant.Restaurant, error) {
	query := `
		SELECT id, name, owner_id, organization_id, phone, email, address, city, country,
		       timezone, hours, settings, status, created_at, updated_at
		FROM restaurants
		WHERE owner_id = $1
		ORDER BY created_at
	`
	return r.queryRestaurants(ctx, query, userID)
}

// ListByOrganization lists an organization's restaurants.
func (r *RestaurantRepository) ListByOrganization(ctx context.Context, orgID int64) ([]*restaurant.Restaurant, error) {
	query := `
		SELECT id, name, owner_id, organization_id, phone, email, address, city, country,
		       timezone, hours, settings, status, created_at, updated_at
		FROM restaurants
		WHERE organization_id = $1
		ORDER BY created_at
	`
	return r.queryRestaurants(ctx, query, orgID)
}

// Update writes mutable restaurant fields.
func (r *RestaurantRepository) Update(ctx context.Context, rest *restaurant.Restaurant) error {
	query := `
		UPDATE restaurants
		SET name = $1, phone = $2, email = $3, address = $4, city = $5, country = $6,
		    timezone = $7, hours = $8, settings = $9, status = $10, updated_at = $11
		WHERE id = $12
	`

	hoursJSON, err := json.Marshal(rest.Hours)
	if err != nil {
		return fmt.Errorf("failed to marshal hours: %w", err)
	}
	settingsJSON, err := json.Marshal(rest.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	result, err := r.db.Exec(
		ctx, query,
		rest.Name, rest.Phone, rest.Email, rest.Address, rest.City, rest.Country,
		rest.Timezone, hoursJSON, settingsJSON, rest.Status, time.Now(), rest.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update restaurant: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// Delete removes the restaurant row itself. Cascading of agents and
// reservations happens in the service layer.
func (r *RestaurantRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM restaurants WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete restaurant: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

func (r *RestaurantRepository) queryRestaurants(ctx context.Context, query string, arg interface{}) ([]*restaurant.Restaurant, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list restaurants: %w", err)
	}
	defer rows.Close()

	var restaurants []*restaurant.Restaurant
	for rows.Next() {
		rest, err := r.scanRestaurant(rows)
		if err != nil {
			return nil, err
		}
		restaurants = append(restaurants, rest)
	}

	return restaurants, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *RestaurantRepository) scanRestaurant(row rowScanner) (*restaurant.Restaurant, error) {
	var rest restaurant.Restaurant
	var ownerID, orgID *int64
	var hoursJSON, settingsJSON []byte

	err := row.Scan(
		&rest.ID, &rest.Name, &ownerID, &orgID, &rest.Phone, &rest.Email, &rest.Address,
		&rest.City, &rest.Country, &rest.Timezone, &hoursJSON, &settingsJSON, &rest.Status,
		&rest.CreatedAt, &rest.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan restaurant: %w", err)
	}

	if orgID != nil {
		rest.Ownership = restaurant.OrganizationOwnership(*orgID)
	} else if ownerID != nil {
		rest.Ownership = restaurant.PersonalOwnership(*ownerID)
	}

	if len(hoursJSON) > 0 {
		if err := json.Unmarshal(hoursJSON, &rest.Hours); err != nil {
			return nil, fmt.Errorf("failed to unmarshal hours: %w", err)
		}
	}
	if len(settingsJSON) > 0 {
		if err := json.Unmarshal(settingsJSON, &rest.Settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
		}
	}

	return &rest, nil
}

func ownershipColumns(o restaurant.Ownership) (ownerID, orgID *int64) {
	switch o.Kind {
	case restaurant.OwnerPersonal:
		ownerID = &o.UserID
	case restaurant.OwnerOrganization:
		orgID = &o.OrganizationID
	}
	return ownerID, orgID
}

func deref(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
