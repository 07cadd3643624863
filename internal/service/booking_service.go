package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chargebook/internal/apperrors"
	"chargebook/internal/models"
	"chargebook/internal/repository"
)

// BookingRepository persists bookings and owns the slot arbitration transaction.
type BookingRepository interface {
	Reserve(ctx context.Context, booking *models.Booking) (*models.Booking, error)
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	UpdateStatus(ctx context.Context, id, from, to string) error
	StartCharging(ctx context.Context, id string, actualStart time.Time) (*models.ChargingSession, error)
	Complete(ctx context.Context, id string, actualEnd time.Time, totalCost float64) error
	ExpireStale(ctx context.Context, pendingBefore, confirmedBefore time.Time) ([]repository.ExpiredBooking, error)
}

// SessionRepository reads and advances charging sessions; opening one is part
// of the booking repository's start-charging transaction.
type SessionRepository interface {
	GetByBooking(ctx context.Context, bookingID string) (*models.ChargingSession, error)
	UpdateProgress(ctx context.Context, bookingID string, battery int, energyKWh, estimatedCost float64) error
	Close(ctx context.Context, bookingID string, endedAt time.Time, finalBattery int, finalEnergy, actualCost float64) error
}

// StationReader reads station metadata.
type StationReader interface {
	GetByID(ctx context.Context, id int64) (*models.Station, error)
}

// PromotionReader looks up promotions.
type PromotionReader interface {
	GetActiveByCode(ctx context.Context, code string) (*models.Promotion, error)
	GetByID(ctx context.Context, id int64) (*models.Promotion, error)
}

// CodeIssuer issues and verifies single-use confirmation codes.
type CodeIssuer interface {
	Issue(ctx context.Context, bookingID string) (string, error)
	Verify(ctx context.Context, bookingID, candidate string) error
}

// Settler hands a completed booking off to the payment collaborator.
type Settler interface {
	Settle(ctx context.Context, bookingID string, amount float64) error
}

// Notifier enqueues a user-facing notification for a state transition.
type Notifier interface {
	BookingEvent(ctx context.Context, userID int64, kind string, payload any)
}

// Notification event kinds fired on transitions.
const (
	NotifyBookingCreated   = "booking_created"
	NotifyBookingConfirmed = "booking_confirmed"
	NotifyChargingStarted  = "charging_started"
	NotifyBookingCancelled = "booking_cancelled"
	NotifyBookingCompleted = "booking_completed"
	NotifyBookingExpired   = "booking_expired"
)

// BookingService owns the booking state machine and composes slot arbitration,
// confirmation codes and cost computation. All booking mutation goes through it.
type BookingService struct {
	bookings   BookingRepository
	sessions   SessionRepository
	stations   StationReader
	promotions PromotionReader
	codes      CodeIssuer
	settlement Settler
	notifier   Notifier
	logger     *zap.Logger
	now        func() time.Time
}

// NewBookingService builds service. settlement and notifier may be nil when
// those collaborators are disabled.
func NewBookingService(
	bookings BookingRepository,
	sessions SessionRepository,
	stations StationReader,
	promotions PromotionReader,
	codes CodeIssuer,
	settlement Settler,
	notifier Notifier,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		bookings:   bookings,
		sessions:   sessions,
		stations:   stations,
		promotions: promotions,
		codes:      codes,
		settlement: settlement,
		notifier:   notifier,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateBookingInput carries a slot reservation request.
type CreateBookingInput struct {
	UserID      int64
	StationID   int64
	VehicleType string
	StartTime   time.Time
	EndTime     time.Time
	PromoCode   string
}

// Create validates the window and delegates to the slot arbitration
// transaction. A successful create leaves a pending booking holding one slot.
func (s *BookingService) Create(ctx context.Context, input CreateBookingInput) (*models.Booking, error) {
	now := s.now()
	if !input.EndTime.After(input.StartTime) {
		return nil, apperrors.Validation("booking window must end after it starts")
	}
	if input.StartTime.Before(now) {
		return nil, apperrors.Validation("booking window must not start in the past")
	}

	booking := &models.Booking{
		ID:          uuid.NewString(),
		UserID:      input.UserID,
		StationID:   input.StationID,
		VehicleType: input.VehicleType,
		StartTime:   input.StartTime.UTC(),
		EndTime:     input.EndTime.UTC(),
	}

	if input.PromoCode != "" {
		promo, err := s.promotions.GetActiveByCode(ctx, input.PromoCode)
		if err != nil {
			if apperrors.KindOf(err) == apperrors.KindNotFound {
				return nil, apperrors.Validation("promo code is not valid")
			}
			return nil, err
		}
		booking.PromotionID = &promo.ID
	}

	booking, err := s.bookings.Reserve(ctx, booking)
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking created",
		zap.String("booking_id", booking.ID),
		zap.Int64("station_id", booking.StationID),
		zap.Time("start_time", booking.StartTime),
		zap.Time("end_time", booking.EndTime),
	)
	s.notify(ctx, booking.UserID, NotifyBookingCreated, booking)
	return booking, nil
}

// Get loads a booking.
func (s *BookingService) Get(ctx context.Context, id string) (*models.Booking, error) {
	return s.bookings.GetByID(ctx, id)
}

// Confirm moves pending -> confirmed and issues the one-time code. The code is
// returned to the operator only; it never reaches the end user via this path.
func (s *BookingService) Confirm(ctx context.Context, id string) (string, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	dst, err := Transition(ctx, booking.Status, EventConfirm)
	if err != nil {
		return "", err
	}
	if err := s.casStatus(ctx, id, booking.Status, dst, EventConfirm); err != nil {
		return "", err
	}

	code, err := s.codes.Issue(ctx, id)
	if err != nil {
		return "", err
	}

	s.logger.Info("booking confirmed", zap.String("booking_id", id))
	s.notify(ctx, booking.UserID, NotifyBookingConfirmed, map[string]any{"booking_id": id})
	return code, nil
}

// VerifyAndStart consumes the confirmation code and, on success, stamps the
// actual start, opens the charging session and moves confirmed -> charging.
// The status flip and the session insert commit together, so a booking can
// never end up charging without a session.
func (s *BookingService) VerifyAndStart(ctx context.Context, id, candidate string) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := Transition(ctx, booking.Status, EventStart); err != nil {
		return nil, err
	}

	if err := s.codes.Verify(ctx, id, candidate); err != nil {
		return nil, err
	}

	startedAt := s.now()
	if _, err := s.bookings.StartCharging(ctx, id, startedAt); err != nil {
		return nil, s.staleToStateError(ctx, id, EventStart, err)
	}

	booking.Status = models.BookingStatusCharging
	booking.ActualStart = &startedAt

	s.logger.Info("charging session started", zap.String("booking_id", id))
	s.notify(ctx, booking.UserID, NotifyChargingStarted, map[string]any{"booking_id": id})
	return booking, nil
}

// ResendCode reissues the confirmation code, invalidating the prior one. Only
// a confirmed booking has a code to resend.
func (s *BookingService) ResendCode(ctx context.Context, id string) (string, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if booking.Status != models.BookingStatusConfirmed {
		return "", &apperrors.StateError{Attempted: "resend_code", Current: booking.Status}
	}
	return s.codes.Issue(ctx, id)
}

// Cancel is the user-facing cancel, legal from pending or confirmed only.
func (s *BookingService) Cancel(ctx context.Context, id string) error {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return err
	}
	dst, err := Transition(ctx, booking.Status, EventCancel)
	if err != nil {
		return err
	}
	if err := s.casStatus(ctx, id, booking.Status, dst, EventCancel); err != nil {
		return err
	}

	s.logger.Info("booking cancelled", zap.String("booking_id", id), zap.String("from", booking.Status))
	s.notify(ctx, booking.UserID, NotifyBookingCancelled, map[string]any{"booking_id": id})
	return nil
}

// Complete closes the lifecycle: final cost, session close, settlement
// hand-off. Settlement failure never rolls the completed booking back.
func (s *BookingService) Complete(ctx context.Context, id string, finalEnergy float64, finalBattery int, stopped bool) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := Transition(ctx, booking.Status, EventComplete); err != nil {
		return nil, err
	}

	station, err := s.stations.GetByID(ctx, booking.StationID)
	if err != nil {
		return nil, err
	}

	var promo *models.Promotion
	if booking.PromotionID != nil {
		promo, err = s.promotions.GetByID(ctx, *booking.PromotionID)
		if err != nil {
			s.logger.Warn("promotion lookup failed, completing without discount",
				zap.String("booking_id", id), zap.Error(err))
			promo = nil
		}
	}

	totalCost := ComputeCost(finalEnergy, station.PricePerKWh, promo)
	endedAt := s.now()

	if err := s.bookings.Complete(ctx, id, endedAt, totalCost); err != nil {
		return nil, s.staleToStateError(ctx, id, EventComplete, err)
	}
	if err := s.closeSession(ctx, id, endedAt, finalBattery, finalEnergy, totalCost); err != nil {
		s.logger.Error("charging session left open for reconciliation",
			zap.String("booking_id", id), zap.Error(err))
	}

	if s.settlement != nil {
		if err := s.settlement.Settle(ctx, id, totalCost); err != nil {
			s.logger.Warn("settlement hand-off failed", zap.String("booking_id", id), zap.Error(err))
		}
	}

	booking.Status = models.BookingStatusCompleted
	booking.ActualEnd = &endedAt
	booking.TotalCost = &totalCost

	s.logger.Info("booking completed",
		zap.String("booking_id", id),
		zap.Float64("energy_kwh", finalEnergy),
		zap.Float64("total_cost", totalCost),
		zap.Bool("stopped", stopped),
	)
	s.notify(ctx, booking.UserID, NotifyBookingCompleted, map[string]any{
		"booking_id": id,
		"total_cost": totalCost,
		"stopped":    stopped,
	})
	return booking, nil
}

// ChargingState is everything telemetry ingestion needs about an active booking.
type ChargingState struct {
	Booking     *models.Booking
	Session     *models.ChargingSession
	PricePerKWh float64
	Promotion   *models.Promotion
}

// ChargingState loads the booking, its session and its tariff context,
// rejecting bookings that are not currently charging.
func (s *BookingService) ChargingState(ctx context.Context, id string) (*ChargingState, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.BookingStatusCharging {
		return nil, &apperrors.StateError{Attempted: "telemetry", Current: booking.Status}
	}

	session, err := s.sessions.GetByBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	station, err := s.stations.GetByID(ctx, booking.StationID)
	if err != nil {
		return nil, err
	}

	var promo *models.Promotion
	if booking.PromotionID != nil {
		if promo, err = s.promotions.GetByID(ctx, *booking.PromotionID); err != nil {
			promo = nil
		}
	}

	return &ChargingState{
		Booking:     booking,
		Session:     session,
		PricePerKWh: station.PricePerKWh,
		Promotion:   promo,
	}, nil
}

// RecordProgress persists an accepted telemetry snapshot.
func (s *BookingService) RecordProgress(ctx context.Context, id string, battery int, energyKWh, estimatedCost float64) error {
	return s.sessions.UpdateProgress(ctx, id, battery, energyKWh, estimatedCost)
}

// ExpireStale cancels bookings that outlived the grace window without being
// confirmed or verified, releasing their slots. Returns the number released.
func (s *BookingService) ExpireStale(ctx context.Context, grace time.Duration) (int, error) {
	cutoff := s.now().Add(-grace)
	expired, err := s.bookings.ExpireStale(ctx, cutoff, cutoff)
	if err != nil {
		return 0, err
	}
	for _, e := range expired {
		s.logger.Info("booking expired by grace-window sweep", zap.String("booking_id", e.ID))
		s.notify(ctx, e.UserID, NotifyBookingExpired, map[string]any{"booking_id": e.ID})
	}
	return len(expired), nil
}

// closeSession retries once: a transient write failure here would otherwise
// leave a completed booking with an open session until reconciliation.
func (s *BookingService) closeSession(ctx context.Context, id string, endedAt time.Time, finalBattery int, finalEnergy, totalCost float64) error {
	err := s.sessions.Close(ctx, id, endedAt, finalBattery, finalEnergy, totalCost)
	if err == nil {
		return nil
	}
	s.logger.Warn("retrying charging session close", zap.String("booking_id", id), zap.Error(err))
	return s.sessions.Close(ctx, id, endedAt, finalBattery, finalEnergy, totalCost)
}

func (s *BookingService) casStatus(ctx context.Context, id, from, to, event string) error {
	err := s.bookings.UpdateStatus(ctx, id, from, to)
	if err != nil {
		return s.staleToStateError(ctx, id, event, err)
	}
	return nil
}

// staleToStateError re-reads the booking after a lost compare-and-set so the
// StateError reports the state that actually won.
func (s *BookingService) staleToStateError(ctx context.Context, id, event string, err error) error {
	if !errors.Is(err, repository.ErrStaleStatus) {
		return err
	}
	current, getErr := s.bookings.GetByID(ctx, id)
	if getErr != nil {
		return &apperrors.StateError{Attempted: event, Current: "unknown"}
	}
	return &apperrors.StateError{Attempted: event, Current: current.Status}
}

func (s *BookingService) notify(ctx context.Context, userID int64, kind string, payload any) {
	if s.notifier == nil {
		return
	}
	s.notifier.BookingEvent(ctx, userID, kind, payload)
}
