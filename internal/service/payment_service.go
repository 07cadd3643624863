package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"chargebook/internal/apperrors"
	"chargebook/internal/models"
)

// PaymentGateway is the black-box settlement collaborator.
type PaymentGateway interface {
	Initiate(ctx context.Context, bookingID string, amount float64) (string, error)
}

// PaymentRepo persists settlement records.
type PaymentRepo interface {
	Create(ctx context.Context, payment *models.Payment) error
	UpdateStatus(ctx context.Context, bookingID, status string) error
}

// PaymentService decouples settlement from the charging lifecycle: it hands
// completed bookings to the gateway and applies signed callbacks, never
// touching booking state.
type PaymentService struct {
	gateway PaymentGateway
	repo    PaymentRepo
	secret  []byte
	logger  *zap.Logger
}

// NewPaymentService builds service. secret signs gateway callbacks (HMAC-SHA256).
func NewPaymentService(gateway PaymentGateway, repo PaymentRepo, secret string, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		gateway: gateway,
		repo:    repo,
		secret:  []byte(secret),
		logger:  logger,
	}
}

// Settle initiates settlement for a completed booking and records the handle.
func (s *PaymentService) Settle(ctx context.Context, bookingID string, amount float64) error {
	redirect, err := s.gateway.Initiate(ctx, bookingID, amount)
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindPayment, "settlement initiation failed")
	}

	payment := &models.Payment{
		BookingID:   bookingID,
		Amount:      amount,
		Status:      models.PaymentStatusInitiated,
		RedirectURL: redirect,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return err
	}

	s.logger.Info("settlement initiated",
		zap.String("booking_id", bookingID),
		zap.Float64("amount", amount),
	)
	return nil
}

// CallbackPayload is the gateway's signed verdict.
type CallbackPayload struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
}

// HandleCallback verifies the HMAC signature and applies the verdict. Replayed
// callbacks match no initiated row and come back as not found.
func (s *PaymentService) HandleCallback(ctx context.Context, body []byte, signature string) error {
	if !s.validSignature(body, signature) {
		return apperrors.New(apperrors.KindValidation, "invalid callback signature")
	}

	var payload CallbackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return apperrors.Wrap(err, apperrors.KindValidation, "malformed callback payload")
	}
	if payload.Status != models.PaymentStatusPaid && payload.Status != models.PaymentStatusFailed {
		return apperrors.Validation("unknown settlement status %q", payload.Status)
	}

	if err := s.repo.UpdateStatus(ctx, payload.BookingID, payload.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NotFound("no pending settlement for booking %s", payload.BookingID)
		}
		return err
	}

	s.logger.Info("settlement callback applied",
		zap.String("booking_id", payload.BookingID),
		zap.String("status", payload.Status),
	)
	return nil
}

func (s *PaymentService) validSignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
