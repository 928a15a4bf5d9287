package reservation

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"tablevoice-service/internal/authz"
	"tablevoice-service/internal/domain/reservation"
	"tablevoice-service/internal/domain/restaurant"
	xerrors "tablevoice-service/internal/pkg/errors"
	"tablevoice-service/internal/service/email"
	"tablevoice-service/internal/ws"

	"go.uber.org/zap"
)

// Confirmation codes are 4 digits and unique per restaurant; collisions are
// retried a bounded number of times before giving up.
const codeAttempts = 20

type ReservationStore interface {
	Create(ctx context.Context, res *reservation.Reservation) error
	FindByID(ctx context.Context, id int64) (*reservation.Reservation, error)
	FindByCode(ctx context.Context, restaurantID int64, code string) (*reservation.Reservation, error)
	CodeExists(ctx context.Context, restaurantID int64, code string) (bool, error)
	List(ctx context.Context, restaurantID int64, f *reservation.ListFilters) ([]*reservation.Reservation, int64, error)
	SumConfirmedPartySize(ctx context.Context, restaurantID int64, date, timeFrom, timeTo string) (int, error)
	Update(ctx context.Context, res *reservation.Reservation) error
	Delete(ctx context.Context, id int64) error
}

type RestaurantStore interface {
	FindByID(ctx context.Context, id int64) (*restaurant.Restaurant, error)
}

type ReservationService struct {
	reservations ReservationStore
	restaurants  RestaurantStore
	authorizer   *authz.Authorizer
	emailSender  email.Sender
	hub          *ws.Hub
	logger       *zap.Logger
	now          func() time.Time
}

func NewReservationService(
	reservations ReservationStore,
	restaurants RestaurantStore,
	authorizer *authz.Authorizer,
	emailSender email.Sender,
	hub *ws.Hub,
	logger *zap.Logger,
) *ReservationService {
	return &ReservationService{
		reservations: reservations,
		restaurants:  restaurants,
		authorizer:   authorizer,
		emailSender:  emailSender,
		hub:          hub,
		logger:       logger,
		now:          time.Now,
	}
}

// Create books a table on behalf of an authenticated dashboard user.
func (s *ReservationService) Create(ctx context.Context, userID, restaurantID int64, req *reservation.CreateReservationRequest) (*reservation.Reservation, error) {
	if _, err := s.authorizer.Authorize(ctx, userID, restaurantID, authz.PermReservationCreate); err != nil {
		return nil, err
	}

	if req.Source == "" {
		req.Source = reservation.SourceManual
	}
	return s.create(ctx, restaurantID, req.AgentID, req, fmt.Sprintf("user:%d", userID))
}

// CreateFromAgent books a table for a call handled by a voice agent. The
// caller already passed through webhook authentication, so there is no user
// to authorize.
func (s *ReservationService) CreateFromAgent(ctx context.Context, restaurantID, agentID int64, req *reservation.CreateReservationRequest) (*reservation.Reservation, error) {
	req.Source = reservation.SourcePhoneAgent
	return s.create(ctx, restaurantID, &agentID, req, fmt.Sprintf("agent:%d", agentID))
}

func (s *ReservationService) create(ctx context.Context, restaurantID int64, agentID *int64, req *reservation.CreateReservationRequest, actor string) (*reservation.Reservation, error) {
	rest, err := s.restaurants.FindByID(ctx, restaurantID)
	if err != nil {
		return nil, err
	}

	if err := validateSlot(req.Date, req.Time); err != nil {
		return nil, err
	}
	if err := validatePartySize(req.PartySize, &rest.Settings); err != nil {
		return nil, err
	}
	if err := validateBookingWindow(req.Date, req.Time, &rest.Settings, rest.Timezone, s.now()); err != nil {
		return nil, err
	}

	code, err := s.generateCode(ctx, restaurantID)
	if err != nil {
		return nil, err
	}

	res := &reservation.Reservation{
		RestaurantID:  restaurantID,
		AgentID:       agentID,
		Code:          code,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		Date:          req.Date,
		Time:          req.Time,
		PartySize:     req.PartySize,
		Status:        reservation.StatusConfirmed,
		Source:        req.Source,
	}
	if req.CustomerEmail != "" {
		res.CustomerEmail = &req.CustomerEmail
	}
	if req.Notes != "" {
		res.Notes = &req.Notes
	}
	res.AppendHistory("created", actor, "")

	if err := s.reservations.Create(ctx, res); err != nil {
		return nil, err
	}

	s.logger.Info("reservation created",
		zap.Int64("reservation_id", res.ID),
		zap.Int64("restaurant_id", restaurantID),
		zap.String("code", res.Code),
		zap.String("source", string(res.Source)),
	)

	s.notifyConfirmation(rest, res)
	s.hub.Publish(ws.NewEvent(ws.EventReservationCreated, restaurantID, res))

	return res, nil
}

// Get returns one reservation.
func (s *ReservationService) Get(ctx context.Context, userID, reservationID int64) (*reservation.Reservation, error) {
	res, err := s.reservations.FindByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorizer.Authorize(ctx, userID, res.RestaurantID, authz.PermReservationView); err != nil {
		return nil, err
	}
	return res, nil
}

// GetByCode looks a reservation up by its restaurant-scoped confirmation code.
func (s *ReservationService) GetByCode(ctx context.Context, userID, restaurantID int64, code string) (*reservation.Reservation, error) {
	if _, err := s.authorizer.Authorize(ctx, userID, restaurantID, authz.PermReservationView); err != nil {
		return nil, err
	}
	return s.reservations.FindByCode(ctx, restaurantID, code)
}

// List pages through a restaurant's reservations with optional filters.
func (s *ReservationService) List(ctx context.Context, userID, restaurantID int64, f *reservation.ListFilters) (*reservation.ListResponse, error) {
	if _, err := s.authorizer.Authorize(ctx, userID, restaurantID, authz.PermReservationView); err != nil {
		return nil, err
	}

	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 || f.PageSize > 100 {
		f.PageSize = 20
	}

	items, total, err := s.reservations.List(ctx, restaurantID, f)
	if err != nil {
		return nil, err
	}

	totalPages := int((total + int64(f.PageSize) - 1) / int64(f.PageSize))
	return &reservation.ListResponse{
		Reservations: items,
		Total:        total,
		Page:         f.Page,
		PageSize:     f.PageSize,
		TotalPages:   totalPages,
	}, nil
}

// Update edits reservation details and appends to the history log. Terminal
// reservations cannot be edited.
func (s *ReservationService) Update(ctx context.Context, userID, reservationID int64, req *reservation.UpdateReservationRequest) (*reservation.Reservation, error) {
	res, err := s.reservations.FindByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorizer.Authorize(ctx, userID, res.RestaurantID, authz.PermReservationEdit); err != nil {
		return nil, err
	}
	if res.Status != reservation.StatusConfirmed {
		return nil, fmt.Errorf("%w: only confirmed reservations can be edited", xerrors.ErrConflict)
	}

	applyUpdate(res, req)

	if err := validateSlot(res.Date, res.Time); err != nil {
		return nil, err
	}
	rest, err := s.restaurants.FindByID(ctx, res.RestaurantID)
	if err != nil {
		return nil, err
	}
	if err := validatePartySize(res.PartySize, &rest.Settings); err != nil {
		return nil, err
	}
	if err := validateBookingWindow(res.Date, res.Time, &rest.Settings, rest.Timezone, s.now()); err != nil {
		return nil, err
	}

	res.AppendHistory("updated", fmt.Sprintf("user:%d", userID), "")

	if err := s.reservations.Update(ctx, res); err != nil {
		return nil, err
	}

	s.hub.Publish(ws.NewEvent(ws.EventReservationUpdated, res.RestaurantID, res))
	return res, nil
}

// UpdateStatus moves a reservation through its lifecycle. Confirmed is the
// only state transitions start from; cancelled, completed and no_show are
// terminal.
func (s *ReservationService) UpdateStatus(ctx context.Context, userID, reservationID int64, status reservation.Status) (*reservation.Reservation, error) {
	res, err := s.reservations.FindByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorizer.Authorize(ctx, userID, res.RestaurantID, authz.PermReservationEdit); err != nil {
		return nil, err
	}

	if err := validateTransition(res.Status, status); err != nil {
		return nil, err
	}

	res.Status = status
	res.AppendHistory("status_changed", fmt.Sprintf("user:%d", userID), string(status))

	if err := s.reservations.Update(ctx, res); err != nil {
		return nil, err
	}

	if status == reservation.StatusCancelled {
		s.notifyCancellation(res)
	}
	s.hub.Publish(ws.NewEvent(ws.EventReservationStatus, res.RestaurantID, res))

	return res, nil
}

// Delete removes a reservation record entirely.
func (s *ReservationService) Delete(ctx context.Context, userID, reservationID int64) error {
	res, err := s.reservations.FindByID(ctx, reservationID)
	if err != nil {
		return err
	}
	if _, err := s.authorizer.Authorize(ctx, userID, res.RestaurantID, authz.PermReservationDelete); err != nil {
		return err
	}
	return s.reservations.Delete(ctx, reservationID)
}

// CheckAvailability reports whether a party fits on the requested date and
// time, considering opening hours, party size bounds and seats already
// committed to confirmed reservations in the surrounding turnover window.
func (s *ReservationService) CheckAvailability(ctx context.Context, userID, restaurantID int64, req *reservation.AvailabilityRequest) (*reservation.AvailabilityResponse, error) {
	if _, err := s.authorizer.Authorize(ctx, userID, restaurantID, authz.PermReservationView); err != nil {
		return nil, err
	}

	rest, err := s.restaurants.FindByID(ctx, restaurantID)
	if err != nil {
		return nil, err
	}

	if err := validateSlot(req.Date, req.Time); err != nil {
		return nil, err
	}

	if err := validatePartySize(req.PartySize, &rest.Settings); err != nil {
		return &reservation.AvailabilityResponse{Available: false, Reason: xerrors.MessageOrDefault(err, "party size not accepted")}, nil
	}

	if err := validateBookingWindow(req.Date, req.Time, &rest.Settings, rest.Timezone, s.now()); err != nil {
		return &reservation.AvailabilityResponse{Available: false, Reason: xerrors.MessageOrDefault(err, "slot not bookable")}, nil
	}

	if reason, open := withinOpeningHours(rest.Hours, req.Date, req.Time); !open {
		return &reservation.AvailabilityResponse{Available: false, Reason: reason}, nil
	}

	from, to := turnoverWindow(req.Time, rest.Settings.TurnoverMinutes)
	committed, err := s.reservations.SumConfirmedPartySize(ctx, restaurantID, req.Date, from, to)
	if err != nil {
		return nil, err
	}

	capacity := rest.Settings.SeatingCapacity
	if capacity > 0 && committed+req.PartySize > capacity {
		return &reservation.AvailabilityResponse{
			Available: false,
			Reason:    "no seats left in this time window",
		}, nil
	}

	return &reservation.AvailabilityResponse{Available: true}, nil
}

func (s *ReservationService) generateCode(ctx context.Context, restaurantID int64) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10000))
		if err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}
		code := fmt.Sprintf("%04d", n.Int64())

		exists, err := s.reservations.CodeExists(ctx, restaurantID, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w: no free confirmation codes for restaurant", xerrors.ErrConflict)
}

func (s *ReservationService) notifyConfirmation(rest *restaurant.Restaurant, res *reservation.Reservation) {
	if res.CustomerEmail == nil || *res.CustomerEmail == "" {
		return
	}

	subject, body := email.ReservationConfirmationBody(
		rest.Name, res.CustomerName, res.Date, res.Time, res.Code, res.PartySize,
	)
	if err := s.emailSender.Send(*res.CustomerEmail, subject, body); err != nil {
		// The booking stands even if the confirmation email bounces.
		s.logger.Error("failed to send confirmation email",
			zap.Int64("reservation_id", res.ID),
			zap.Error(err),
		)
	}
}

func (s *ReservationService) notifyCancellation(res *reservation.Reservation) {
	if res.CustomerEmail == nil || *res.CustomerEmail == "" {
		return
	}

	rest, err := s.restaurants.FindByID(context.Background(), res.RestaurantID)
	if err != nil {
		s.logger.Error("failed to load restaurant for cancellation email", zap.Error(err))
		return
	}

	subject, body := email.ReservationCancellationBody(rest.Name, res.CustomerName, res.Date, res.Time, res.Code)
	if err := s.emailSender.Send(*res.CustomerEmail, subject, body); err != nil {
		s.logger.Error("failed to send cancellation email",
			zap.Int64("reservation_id", res.ID),
			zap.Error(err),
		)
	}
}

func applyUpdate(res *reservation.Reservation, req *reservation.UpdateReservationRequest) {
	if req.CustomerName != nil {
		res.CustomerName = *req.CustomerName
	}
	if req.CustomerPhone != nil {
		res.CustomerPhone = *req.CustomerPhone
	}
	if req.CustomerEmail != nil {
		res.CustomerEmail = req.CustomerEmail
	}
	if req.Date != nil {
		res.Date = *req.Date
	}
	if req.Time != nil {
		res.Time = *req.Time
	}
	if req.PartySize != nil {
		res.PartySize = *req.PartySize
	}
	if req.Notes != nil {
		res.Notes = req.Notes
	}
}

func validateSlot(date, timeOfDay string) error {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", xerrors.ErrInvalidInput)
	}
	if _, err := time.Parse("15:04", timeOfDay); err != nil {
		return fmt.Errorf("%w: time must be HH:MM", xerrors.ErrInvalidInput)
	}
	return nil
}

func validatePartySize(size int, settings *restaurant.Settings) error {
	if settings.MinPartySize > 0 && size < settings.MinPartySize {
		return fmt.Errorf("%w: party size below the restaurant minimum of %d", xerrors.ErrInvalidInput, settings.MinPartySize)
	}
	if settings.MaxPartySize > 0 && size > settings.MaxPartySize {
		return fmt.Errorf("%w: party size above the restaurant maximum of %d", xerrors.ErrInvalidInput, settings.MaxPartySize)
	}
	return nil
}

// validateBookingWindow applies the restaurant's booking buffer and advance
// window, measured against its local clock. Either setting at zero disables
// that bound.
func validateBookingWindow(date, timeOfDay string, settings *restaurant.Settings, timezone string, now time.Time) error {
	loc, err := time.LoadLocation(timezone)
	if timezone == "" || err != nil {
		loc = time.UTC
	}

	slot, err := time.ParseInLocation("2006-01-02 15:04", date+" "+timeOfDay, loc)
	if err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD and time HH:MM", xerrors.ErrInvalidInput)
	}

	local := now.In(loc)
	if buffer := settings.BookingBufferMinutes; buffer > 0 && slot.Before(local.Add(time.Duration(buffer)*time.Minute)) {
		return fmt.Errorf("%w: bookings require at least %d minutes notice", xerrors.ErrInvalidInput, buffer)
	}
	if days := settings.AdvanceBookingDays; days > 0 && slot.After(local.AddDate(0, 0, days)) {
		return fmt.Errorf("%w: bookings open at most %d days in advance", xerrors.ErrInvalidInput, days)
	}
	return nil
}

func validateTransition(from, to reservation.Status) error {
	if from == to {
		return fmt.Errorf("%w: reservation already %s", xerrors.ErrConflict, to)
	}
	if from != reservation.StatusConfirmed {
		return fmt.Errorf("%w: %s reservations cannot change status", xerrors.ErrConflict, from)
	}
	switch to {
	case reservation.StatusCancelled, reservation.StatusCompleted, reservation.StatusNoShow:
		return nil
	default:
		return fmt.Errorf("%w: unknown reservation status %q", xerrors.ErrInvalidInput, to)
	}
}

// withinOpeningHours checks the requested slot against the weekday's hours.
// Restaurants with no configured hours accept any time.
func withinOpeningHours(hours []restaurant.DayHours, date, timeOfDay string) (string, bool) {
	if len(hours) == 0 {
		return "", true
	}

	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return "invalid date", false
	}
	weekday := int(day.Weekday())

	for _, h := range hours {
		if h.Weekday != weekday {
			continue
		}
		if h.Closed {
			return "the restaurant is closed that day", false
		}
		if timeOfDay < h.Open || timeOfDay >= h.Close {
			return fmt.Sprintf("outside opening hours (%s-%s)", h.Open, h.Close), false
		}
		return "", true
	}

	// Weekday not configured at all.
	return "the restaurant is closed that day", false
}

// turnoverWindow is the [from, to) interval of slots that compete for the
// same seats as a booking at timeOfDay.
func turnoverWindow(timeOfDay string, turnoverMinutes int) (string, string) {
	if turnoverMinutes <= 0 {
		turnoverMinutes = 90
	}

	t, err := time.Parse("15:04", timeOfDay)
	if err != nil {
		return timeOfDay, timeOfDay
	}

	from := t.Add(-time.Duration(turnoverMinutes) * time.Minute)
	to := t.Add(time.Duration(turnoverMinutes) * time.Minute)

	// Clamp to the same day; reservations never span midnight.
	if from.Day() != t.Day() {
		from = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}
	if to.Day() != t.Day() {
		to = time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 0, 0, t.Location())
	}

	return from.Format("15:04"), to.Format("15:04")
}
