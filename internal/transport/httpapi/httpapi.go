// Package httpapi is a thin JSON adapter over the Reservation Engine.
// It does no business validation beyond what the Engine already
// does; its only job is decoding requests, attaching caller identity,
// and mapping engine errors onto HTTP status codes.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"reservation-core/internal/engine"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const callerIDHeader = "X-Caller-Id"

type CartReader interface {
	GetCart(ctx context.Context, callerID string) ([]engine.CartLine, error)
}

// RateLimiter guards the checkout endpoints. A nil RateLimiter passed
// to NewRouter disables rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, callerID string) (bool, error)
}

type Server struct {
	eng   *engine.Engine
	cart  CartReader
	limit RateLimiter
}

func NewRouter(eng *engine.Engine, cart CartReader, limit RateLimiter) *chi.Mux {
	s := &Server{eng: eng, cart: cart, limit: limit}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.requireCallerID)
		r.With(s.rateLimited).Post("/reservations", s.reserve)
		r.With(s.rateLimited).Post("/reservations/{id}/confirm", s.confirm)
		r.Get("/reservations/{id}", s.getReservation)
	})

	return r
}

// rateLimited enforces the per-caller checkout limit. It is a no-op
// when the server was built without a RateLimiter.
func (s *Server) rateLimited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limit == nil {
			next.ServeHTTP(w, r)
			return
		}
		callerID, _ := engine.CallerIDFromContext(r.Context())
		allowed, err := s.limit.Allow(r.Context(), callerID)
		if err != nil {
			writeError(w, engine.ErrInternal(err))
			return
		}
		if !allowed {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrReservationNotFound), errors.Is(err, engine.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInsufficientStock), errors.Is(err, engine.ErrIdempotencyMismatch):
		return http.StatusConflict
	case errors.Is(err, engine.ErrReservationGone):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) requireCallerID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callerID := r.Header.Get(callerIDHeader)
		if callerID == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		ctx := engine.WithCallerID(r.Context(), callerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type addressPayload struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Line1   string `json:"line1"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
}

type reserveRequest struct {
	Address        addressPayload `json:"address"`
	ShippingMethod string         `json:"shippingMethod"`
}

type reserveResponse struct {
	ReservationID string    `json:"reservationId"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

func (s *Server) reserve(w http.ResponseWriter, r *http.Request) {
	callerID, _ := engine.CallerIDFromContext(r.Context())

	var req reserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, engine.ErrValidation)
		return
	}

	cart, err := s.cart.GetCart(r.Context(), callerID)
	if err != nil {
		writeError(w, err)
		return
	}

	out, err := s.eng.Reserve(r.Context(), engine.ReserveInput{
		CallerID: callerID,
		Address: engine.Address{
			Name:    req.Address.Name,
			Phone:   req.Address.Phone,
			Line1:   req.Address.Line1,
			City:    req.Address.City,
			State:   req.Address.State,
			Pincode: req.Address.Pincode,
		},
		ShippingMethod: req.ShippingMethod,
	}, cart)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reserveResponse{
		ReservationID: out.ReservationID.String(),
		ExpiresAt:     out.ExpiresAt,
	})
}

type confirmResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

func (s *Server) confirm(w http.ResponseWriter, r *http.Request) {
	callerID, _ := engine.CallerIDFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, engine.ErrValidation)
		return
	}
	token := r.Header.Get("Idempotency-Key")
	if token == "" {
		writeError(w, engine.ErrValidation)
		return
	}

	out, err := s.eng.Confirm(r.Context(), engine.ConfirmInput{
		CallerID:         callerID,
		ReservationID:    id,
		IdempotencyToken: token,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, confirmResponse{OrderID: out.OrderID.String(), Status: out.Status})
}

type reservationLineResponse struct {
	ProductID      string `json:"productId"`
	SKU            string `json:"sku"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	Quantity       int32  `json:"quantity"`
}

type reservationResponse struct {
	ID             string                    `json:"id"`
	CallerID       string                    `json:"callerId"`
	State          string                    `json:"state"`
	Lines          []reservationLineResponse `json:"lines"`
	Address        addressPayload            `json:"address"`
	ShippingMethod string                    `json:"shippingMethod"`
	ExpiresAt      time.Time                 `json:"expiresAt"`
	CreatedAt      time.Time                 `json:"createdAt"`
	IsValid        bool                      `json:"isValid"`
}

func (s *Server) getReservation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, engine.ErrValidation)
		return
	}

	view, err := s.eng.GetReservation(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	lines := make([]reservationLineResponse, 0, len(view.Lines))
	for _, l := range view.Lines {
		lines = append(lines, reservationLineResponse{
			ProductID:      l.ProductID.String(),
			SKU:            l.SKU,
			Name:           l.Name,
			UnitPriceCents: l.UnitPriceCents,
			Quantity:       l.Quantity,
		})
	}

	writeJSON(w, http.StatusOK, reservationResponse{
		ID:       view.ID.String(),
		CallerID: view.CallerID,
		State:    view.State,
		Lines:    lines,
		Address: addressPayload{
			Name:    view.Address.Name,
			Phone:   view.Address.Phone,
			Line1:   view.Address.Line1,
			City:    view.Address.City,
			State:   view.Address.State,
			Pincode: view.Address.Pincode,
		},
		ShippingMethod: view.ShippingMethod,
		ExpiresAt:      view.ExpiresAt,
		CreatedAt:      view.CreatedAt,
		IsValid:        view.IsValid,
	})
}
