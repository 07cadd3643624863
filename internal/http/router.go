package httpserver

import (
	"net/http"

	"chargebook/internal/http/handlers"
)

// Middleware decorates a handler.
type Middleware func(http.Handler) http.Handler

// Routes groups handlers and the middleware applied to each surface. Confirm,
// resend and operator-cancel historically lived under a second operator path
// prefix; only the canonical paths below exist here.
type Routes struct {
	Auth     Middleware
	Operator Middleware

	Bookings *handlers.BookingHandler
	Charging *handlers.ChargingHandler
	WS       *handlers.WSHandler
	Payments *handlers.PaymentHandler
	Health   http.HandlerFunc
}

// NewRouter registers endpoints. The /internal/ endpoints are for the trusted
// device network and bypass user auth; the payment callback authenticates via
// its HMAC signature.
func NewRouter(routes Routes) http.Handler {
	mux := http.NewServeMux()

	user := func(h http.HandlerFunc) http.Handler { return routes.Auth(h) }
	operator := func(h http.HandlerFunc) http.Handler { return routes.Auth(routes.Operator(h)) }

	mux.Handle("POST /bookings", user(routes.Bookings.Create))
	mux.Handle("PUT /bookings/{id}/confirm", operator(routes.Bookings.Confirm))
	mux.Handle("POST /bookings/verify-code", user(routes.Bookings.VerifyCode))
	mux.Handle("PUT /bookings/{id}/cancel", user(routes.Bookings.Cancel))
	mux.Handle("POST /bookings/{id}/resend-code", operator(routes.Bookings.ResendCode))
	mux.Handle("GET /bookings/{id}/live", user(routes.Bookings.Live))
	mux.Handle("PUT /bookings/{id}/operator-cancel", operator(routes.Charging.OperatorCancel))

	mux.Handle("POST /internal/charging-update/{id}", http.HandlerFunc(routes.Charging.Update))
	mux.Handle("POST /internal/charging-stop/{id}", http.HandlerFunc(routes.Charging.Stop))

	mux.Handle("GET /ws/bookings/{id}", user(routes.WS.Join))
	mux.Handle("POST /payments/callback", http.HandlerFunc(routes.Payments.Callback))

	if routes.Health != nil {
		mux.Handle("GET /health", routes.Health)
	}
	return mux
}
