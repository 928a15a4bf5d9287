package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"tablevoice-service/internal/domain/reservation"
	xerrors "tablevoice-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ReservationRepository struct {
	db *pgxpool.Pool
}

func NewReservationRepository(db *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{db: db}
}

const reservationColumns = `
	id, restaurant_id, agent_id, code, customer_name, customer_phone, customer_email,
	reservation_date, reservation_time, party_size, status, source, notes, history,
	created_at, updated_at
`

// Create inserts a reservation with its initial history log.
func (r *ReservationRepository) Create(ctx context.Context, res *reservation.Reservation) error {
	query := `
		INSERT INTO reservations (
			restaurant_id, agent_id, code, customer_name, customer_phone, customer_email,
			reservation_date, reservation_time, party_size, status, source, notes, history
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at
	`

	historyJSON, err := marshalHistory(res.History)
	if err != nil {
		return err
	}

	err = r.db.QueryRow(
		ctx, query,
		res.RestaurantID, res.AgentID, res.Code, res.CustomerName, res.CustomerPhone,
		res.CustomerEmail, res.Date, res.Time, res.PartySize, res.Status, res.Source,
		res.Notes, historyJSON,
	).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}

	return nil
}

// FindByID retrieves a reservation.
func (r *ReservationRepository) FindByID(ctx context.Context, id int64) (*reservation.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	return r.scanReservation(r.db.QueryRow(ctx, query, id))
}

// FindByCode retrieves a reservation by its restaurant-scoped confirmation
// code.
func (r *ReservationRepository) FindByCode(ctx context.Context, restaurantID int64, code string) (*reservation.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE restaurant_id = $1 AND code = $2`
	return r.scanReservation(r.db.QueryRow(ctx, query, restaurantID, code))
}

// CodeExists checks whether a confirmation code is already taken within the
// restaurant.
func (r *ReservationRepository) CodeExists(ctx context.Context, restaurantID int64, code string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(
		ctx,
		`SELECT EXISTS(SELECT 1 FROM reservations WHERE restaurant_id = $1 AND code = $2)`,
		restaurantID, code,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check reservation code: %w", err)
	}
	return exists, nil
}

// List retrieves reservations for a restaurant with optional date/status
// filters and pagination.
func (r *ReservationRepository) List(ctx context.Context, restaurantID int64, f *reservation.ListFilters) ([]*reservation.Reservation, int64, error) {
	conditions := []string{"restaurant_id = $1"}
	args := []interface{}{restaurantID}

	if f.DateFrom != "" {
		args = append(args, f.DateFrom)
		conditions = append(conditions, fmt.Sprintf("reservation_date >= $%d", len(args)))
	}
	if f.DateTo != "" {
		args = append(args, f.DateTo)
		conditions = append(conditions, fmt.Sprintf("reservation_date <= $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	where := strings.Join(conditions, " AND ")

	var total int64
	countQuery := `SELECT COUNT(*) FROM reservations WHERE ` + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count reservations: %w", err)
	}

	args = append(args, f.PageSize, (f.Page-1)*f.PageSize)
	listQuery := fmt.Sprintf(
		`SELECT %s FROM reservations WHERE %s ORDER BY reservation_date, reservation_time LIMIT $%d OFFSET $%d`,
		reservationColumns, where, len(args)-1, len(args),
	)

	rows, err := r.db.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list reservations: %w", err)
	}
	defer rows.Close()

	var reservations []*reservation.Reservation
	for rows.Next() {
		res, err := r.scanReservation(rows)
		if err != nil {
			return nil, 0, err
		}
		reservations = append(reservations, res)
	}

	return reservations, total, rows.Err()
}

// SumConfirmedPartySize totals the seated party size for confirmed
// reservations in a time window on one date. Used for availability checks.
func (r *ReservationRepository) SumConfirmedPartySize(ctx context.Context, restaurantID int64, date, timeFrom, timeTo string) (int, error) {
	query := `
		SELECT COALESCE(SUM(party_size), 0)
		FROM reservations
		WHERE restaurant_id = $1 AND reservation_date = $2
		  AND reservation_time >= $3 AND reservation_time < $4
		  AND status = 'confirmed'
	`

	var sum int
	err := r.db.QueryRow(ctx, query, restaurantID, date, timeFrom, timeTo).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum party sizes: %w", err)
	}
	return sum, nil
}

// Update writes mutable reservation fields including the history log.
func (r *ReservationRepository) Update(ctx context.Context, res *reservation.Reservation) error {
	query := `
		UPDATE reservations
		SET customer_name = $1, customer_phone = $2, customer_email = $3,
		    reservation_date = $4, reservation_time = $5, party_size = $6,
		    status = $7, notes = $8, history = $9, updated_at = $10
		WHERE id = $11
	`

	historyJSON, err := marshalHistory(res.History)
	if err != nil {
		return err
	}

	result, err := r.db.Exec(
		ctx, query,
		res.CustomerName, res.CustomerPhone, res.CustomerEmail, res.Date, res.Time,
		res.PartySize, res.Status, res.Notes, historyJSON, time.Now(), res.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update reservation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// Delete removes one reservation.
func (r *ReservationRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM reservations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete reservation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// ListIDsByRestaurant returns reservation ids for a restaurant. The cascade
// delete walks these and deletes each record individually.
func (r *ReservationRepository) ListIDsByRestaurant(ctx context.Context, restaurantID int64) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM reservations WHERE restaurant_id = $1 ORDER BY id`, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservation ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan reservation id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (r *ReservationRepository) scanReservation(row rowScanner) (*reservation.Reservation, error) {
	var res reservation.Reservation
	var date time.Time
	var historyJSON []byte

	err := row.Scan(
		&res.ID, &res.RestaurantID, &res.AgentID, &res.Code, &res.CustomerName,
		&res.CustomerPhone, &res.CustomerEmail, &date, &res.Time, &res.PartySize,
		&res.Status, &res.Source, &res.Notes, &historyJSON, &res.CreatedAt, &res.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan reservation: %w", err)
	}

	res.Date = date.Format("2006-01-02")

	if len(historyJSON) > 0 {
		if err := json.Unmarshal(historyJSON, &res.History); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history: %w", err)
		}
	}

	return &res, nil
}

func marshalHistory(entries []reservation.HistoryEntry) ([]byte, error) {
	if entries == nil {
		entries = []reservation.HistoryEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal history: %w", err)
	}
	return data, nil
}
