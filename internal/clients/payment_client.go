package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// PaymentClient talks to the external settlement gateway.
type PaymentClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewPaymentClient returns HTTP client wrapper. An empty baseURL disables the
// integration; Initiate then returns an empty handle.
func NewPaymentClient(baseURL string, logger *zap.Logger) *PaymentClient {
	return &PaymentClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		logger: logger,
	}
}

type initiateRequest struct {
	BookingID string  `json:"booking_id"`
	Amount    float64 `json:"amount"`
}

type initiateResponse struct {
	RedirectURL string `json:"redirect_url"`
}

// Initiate asks the gateway to start settlement and returns the redirect handle.
func (c *PaymentClient) Initiate(ctx context.Context, bookingID string, amount float64) (string, error) {
	if c.baseURL == "" {
		c.logger.Debug("payment client disabled, skip settlement", zap.String("booking_id", bookingID))
		return "", nil
	}

	data, err := json.Marshal(initiateRequest{BookingID: bookingID, Amount: amount})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/initiate", c.baseURL), bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("payment gateway request failed", zap.Error(err))
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		c.logger.Warn("payment gateway returned non-success", zap.Int("status", resp.StatusCode))
		return "", errors.New("payment gateway rejected initiation")
	}

	var parsed initiateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	return parsed.RedirectURL, nil
}
