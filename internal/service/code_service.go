package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"chargebook/internal/apperrors"
	"chargebook/internal/models"
)

// CodeRepository persists confirmation codes.
type CodeRepository interface {
	Replace(ctx context.Context, code *models.ConfirmationCode) error
	Consume(ctx context.Context, bookingID, candidate string) (apperrors.CodeReason, error)
}

// CodeService issues and verifies single-use confirmation codes.
type CodeService struct {
	repo   CodeRepository
	ttl    time.Duration
	logger *zap.Logger
}

// NewCodeService builds service. ttl bounds code validity; 24h when unset.
func NewCodeService(repo CodeRepository, ttl time.Duration, logger *zap.Logger) *CodeService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CodeService{repo: repo, ttl: ttl, logger: logger}
}

// Issue generates a fresh 6-digit code for the booking, invalidating any prior
// unused one (resend semantics).
func (s *CodeService) Issue(ctx context.Context, bookingID string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	record := &models.ConfirmationCode{
		BookingID: bookingID,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.repo.Replace(ctx, record); err != nil {
		return "", err
	}

	s.logger.Info("confirmation code issued",
		zap.String("booking_id", bookingID),
		zap.Time("expires_at", record.ExpiresAt),
	)
	return code, nil
}

// Verify consumes the booking's live code. The exact failure reason is logged
// for diagnostics; callers surface only apperrors.SafeCodeMessage to clients.
func (s *CodeService) Verify(ctx context.Context, bookingID, candidate string) error {
	reason, err := s.repo.Consume(ctx, bookingID, candidate)
	if err != nil {
		return err
	}
	if reason != "" {
		s.logger.Warn("confirmation code rejected",
			zap.String("booking_id", bookingID),
			zap.String("reason", string(reason)),
		)
		return &apperrors.CodeError{Reason: reason}
	}
	return nil
}

// generateCode draws uniformly from the full 6-digit space. Collisions across
// bookings are irrelevant since lookup is booking-scoped.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
