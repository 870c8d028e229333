// Package engine implements the reserve/confirm protocol: the
// transactional core that turns a cart into a soft hold and, later,
// an order.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"reservation-core/internal/fingerprint"
	"reservation-core/internal/models"
	"reservation-core/internal/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const confirmEndpoint = "confirm"

var tracer = otel.Tracer("reservation-core/engine")

type Engine struct {
	repo   *repository.Repository
	cart   CartProvider
	alerts LowStockSink
	log    *zap.Logger
	now    func() time.Time
}

func New(repo *repository.Repository, cart CartProvider, alerts LowStockSink, log *zap.Logger) *Engine {
	if cart == nil {
		cart = NullCartProvider{}
	}
	if alerts == nil {
		alerts = NullLowStockSink{}
	}
	return &Engine{
		repo:   repo,
		cart:   cart,
		alerts: alerts,
		log:    log,
		now:    time.Now,
	}
}

// Reserve implements §4.2's reserve operation: validate, sort lines by
// productId, increment each line's reserved counter in order, and
// hold nothing if any line fails.
func (e *Engine) Reserve(ctx context.Context, in ReserveInput, cart []CartLine) (*ReserveOutput, error) {
	ctx, span := tracer.Start(ctx, "engine.Reserve", trace.WithAttributes(
		attribute.String("caller_id", in.CallerID),
	))
	defer span.End()

	if err := validateReserve(in, cart); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	lines := make([]CartLine, len(cart))
	copy(lines, cart)
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].ProductID.String() < lines[j].ProductID.String()
	})

	products, err := e.repo.Products.GetMany(ctx, productIDsOf(lines))
	if err != nil {
		return nil, e.wrapStorageErr(span, err)
	}
	for _, l := range lines {
		if _, ok := products[l.ProductID]; !ok {
			return nil, fmt.Errorf("%w: product %s", ErrProductNotFound, l.ProductID)
		}
	}

	now := e.now()
	expiresAt := now.Add(HoldDuration)
	var out ReserveOutput

	err = e.repo.WithTx(func(tx *repository.Repository) error {
		for _, l := range lines {
			ok, err := tx.Inventories.TryIncrementReserved(ctx, l.ProductID, l.Quantity)
			if err != nil {
				return e.wrapStorageErr(span, err)
			}
			if !ok {
				return fmt.Errorf("%w: product %s", ErrInsufficientStock, l.ProductID)
			}
		}

		res := &models.Reservation{
			CallerID:       in.CallerID,
			State:          models.ReservationActive,
			ExpiresAt:      expiresAt,
			AddressName:    in.Address.Name,
			AddressPhone:   in.Address.Phone,
			AddressLine1:   in.Address.Line1,
			AddressCity:    in.Address.City,
			AddressState:   in.Address.State,
			AddressPincode: in.Address.Pincode,
			ShippingMethod: in.ShippingMethod,
			CreatedAt:      now,
		}
		if err := tx.Reservations.Create(ctx, res); err != nil {
			return e.wrapStorageErr(span, err)
		}

		resLines := make([]models.ReservationLine, 0, len(lines))
		for _, l := range lines {
			p := products[l.ProductID]
			resLines = append(resLines, models.ReservationLine{
				ReservationID:  res.ID,
				ProductID:      l.ProductID,
				SKU:            p.SKU,
				Name:           p.Name,
				UnitPriceCents: p.UnitPriceCents,
				Quantity:       l.Quantity,
				CreatedAt:      now,
			})
		}
		if err := tx.ReservationLines.CreateBatch(ctx, resLines); err != nil {
			return e.wrapStorageErr(span, err)
		}

		out = ReserveOutput{ReservationID: res.ID, ExpiresAt: res.ExpiresAt}
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return &out, nil
}

func validateReserve(in ReserveInput, cart []CartLine) error {
	if in.CallerID == "" {
		return ErrValidation
	}
	if len(cart) == 0 {
		return fmt.Errorf("%w: empty cart", ErrValidation)
	}
	if !allowedShippingMethods[in.ShippingMethod] {
		return fmt.Errorf("%w: unknown shipping method %q", ErrValidation, in.ShippingMethod)
	}
	if err := in.Address.validate(); err != nil {
		return err
	}
	for _, l := range cart {
		if l.Quantity < MinLineQuantity || l.Quantity > MaxLineQuantity {
			return fmt.Errorf("%w: quantity %d out of range", ErrValidation, l.Quantity)
		}
	}
	return nil
}

func productIDsOf(lines []CartLine) []uuid.UUID {
	ids := make([]uuid.UUID, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	return ids
}

// Confirm implements §4.2's confirm operation: idempotency consult,
// ordered tryCommit per line, order creation, reservation transition,
// cart cleanup, low-stock emission, idempotency finalize.
func (e *Engine) Confirm(ctx context.Context, in ConfirmInput) (*ConfirmOutput, error) {
	ctx, span := tracer.Start(ctx, "engine.Confirm", trace.WithAttributes(
		attribute.String("caller_id", in.CallerID),
		attribute.String("reservation_id", in.ReservationID.String()),
	))
	defer span.End()

	if in.CallerID == "" || in.ReservationID == uuid.Nil || in.IdempotencyToken == "" {
		return nil, fmt.Errorf("%w: missing caller, reservation id, or idempotency token", ErrValidation)
	}

	fp, err := fingerprint.Of(struct {
		ReservationID uuid.UUID `json:"reservationId"`
	}{in.ReservationID})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal(err), err)
	}

	existing, err := e.repo.Idempotency.Get(ctx, in.CallerID, confirmEndpoint, in.IdempotencyToken)
	if err != nil {
		return nil, e.wrapStorageErr(span, err)
	}

	var recordID uuid.UUID
	switch {
	case existing == nil:
		rec := &models.IdempotencyRecord{
			CallerID:    in.CallerID,
			Endpoint:    confirmEndpoint,
			Key:         in.IdempotencyToken,
			Fingerprint: fp,
			State:       models.IdempotencyInProgress,
		}
		if err := e.repo.Idempotency.ReserveSlot(ctx, rec); err != nil {
			if errors.Is(err, repository.ErrIdempotencyExists) {
				existing, err = e.repo.Idempotency.Get(ctx, in.CallerID, confirmEndpoint, in.IdempotencyToken)
				if err != nil {
					return nil, e.wrapStorageErr(span, err)
				}
			} else {
				return nil, e.wrapStorageErr(span, err)
			}
		} else {
			recordID = rec.ID
		}
	}

	if existing != nil {
		if existing.Fingerprint != fp {
			return nil, ErrIdempotencyMismatch
		}
		if existing.State == models.IdempotencySucceeded {
			return &ConfirmOutput{
				OrderID: existing.ResponseOrderID.UUID,
				Status:  existing.ResponseStatus,
			}, nil
		}
		// in_progress or failed with a matching fingerprint: proceed.
		recordID = existing.ID
	}

	out, err := e.runConfirmTx(ctx, span, in, recordID)
	if err != nil {
		if _, finishErr := e.repo.Idempotency.Finish(ctx, recordID, models.IdempotencyFailed, uuid.NullUUID{}, ""); finishErr != nil {
			e.log.Warn("failed to mark idempotency record failed", zap.Error(finishErr), zap.String("record_id", recordID.String()))
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return out, nil
}

func (e *Engine) runConfirmTx(ctx context.Context, span trace.Span, in ConfirmInput, recordID uuid.UUID) (*ConfirmOutput, error) {
	var out ConfirmOutput
	var lowStockEvents []LowStockEvent

	err := e.repo.WithTx(func(tx *repository.Repository) error {
		res, err := tx.Reservations.GetForUpdate(ctx, in.ReservationID)
		if err != nil {
			return e.wrapStorageErr(span, err)
		}
		if res == nil {
			return ErrReservationNotFound
		}
		if res.CallerID != in.CallerID {
			return ErrForbidden
		}
		if res.State != models.ReservationActive || !res.ExpiresAt.After(e.now()) {
			return ErrReservationGone
		}

		lines := make([]models.ReservationLine, len(res.Lines))
		copy(lines, res.Lines)
		sort.Slice(lines, func(i, j int) bool {
			return lines[i].ProductID.String() < lines[j].ProductID.String()
		})

		var total int64
		type commitResult struct {
			productID  uuid.UUID
			stockAfter int32
		}
		results := make([]commitResult, 0, len(lines))

		for _, l := range lines {
			ok, stockAfter, err := tx.Inventories.TryCommit(ctx, l.ProductID, l.Quantity)
			if err != nil {
				return e.wrapStorageErr(span, err)
			}
			if !ok {
				return fmt.Errorf("%w: product %s", ErrInsufficientStock, l.ProductID)
			}
			total += l.UnitPriceCents * int64(l.Quantity)
			results = append(results, commitResult{productID: l.ProductID, stockAfter: stockAfter})
		}

		order := &models.Order{
			CallerID:       in.CallerID,
			State:          models.OrderCreated,
			AddressName:    res.AddressName,
			AddressPhone:   res.AddressPhone,
			AddressLine1:   res.AddressLine1,
			AddressCity:    res.AddressCity,
			AddressState:   res.AddressState,
			AddressPincode: res.AddressPincode,
			ShippingMethod: res.ShippingMethod,
			TotalCents:     total,
			CreatedAt:      e.now(),
		}
		orderLines := make([]models.OrderLine, 0, len(lines))
		for _, l := range lines {
			orderLines = append(orderLines, models.OrderLine{
				ProductID:      l.ProductID,
				SKU:            l.SKU,
				Name:           l.Name,
				UnitPriceCents: l.UnitPriceCents,
				Quantity:       l.Quantity,
				LineTotalCents: l.UnitPriceCents * int64(l.Quantity),
				CreatedAt:      order.CreatedAt,
			})
		}
		order.Lines = orderLines
		if err := tx.Orders.Create(ctx, order); err != nil {
			return e.wrapStorageErr(span, err)
		}

		transitioned, err := tx.Reservations.TransitionState(ctx, res.ID, models.ReservationConsumed)
		if err != nil {
			return e.wrapStorageErr(span, err)
		}
		if !transitioned {
			return ErrReservationGone
		}

		products, err := tx.Products.GetMany(ctx, productIDsOfLines(lines))
		if err != nil {
			return e.wrapStorageErr(span, err)
		}
		for _, r := range results {
			p, ok := products[r.productID]
			if !ok {
				continue
			}
			if r.stockAfter < p.LowStockThreshold {
				if err := tx.LowStock.Create(ctx, &models.LowStockSignal{
					ProductID:  r.productID,
					StockAfter: r.stockAfter,
					Threshold:  p.LowStockThreshold,
					Processed:  false,
					CreatedAt:  e.now(),
				}); err != nil {
					return e.wrapStorageErr(span, err)
				}
				lowStockEvents = append(lowStockEvents, LowStockEvent{
					ProductID:  r.productID,
					StockAfter: r.stockAfter,
					Threshold:  p.LowStockThreshold,
				})
			}
		}

		out = ConfirmOutput{OrderID: order.ID, Status: "created"}

		if _, err := tx.Idempotency.Finish(ctx, recordID, models.IdempotencySucceeded, uuid.NullUUID{UUID: order.ID, Valid: true}, out.Status); err != nil {
			return e.wrapStorageErr(span, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := e.cart.ClearCart(ctx, in.CallerID); err != nil {
		e.log.Warn("cart cleanup failed after confirm", zap.Error(err), zap.String("caller_id", in.CallerID))
	}

	for _, ev := range lowStockEvents {
		if err := e.alerts.Emit(ctx, ev); err != nil {
			e.log.Warn("low stock alert emit failed", zap.Error(err), zap.String("product_id", ev.ProductID.String()))
		}
	}

	return &out, nil
}

func productIDsOfLines(lines []models.ReservationLine) []uuid.UUID {
	ids := make([]uuid.UUID, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	return ids
}

// GetReservation returns the read-model the transport layer exposes
// for getReservation.
func (e *Engine) GetReservation(ctx context.Context, id uuid.UUID) (*ReservationView, error) {
	ctx, span := tracer.Start(ctx, "engine.GetReservation")
	defer span.End()

	res, err := e.repo.Reservations.Get(ctx, id)
	if err != nil {
		return nil, e.wrapStorageErr(span, err)
	}
	if res == nil {
		return nil, ErrReservationNotFound
	}

	lines := make([]ReservationLineView, 0, len(res.Lines))
	for _, l := range res.Lines {
		lines = append(lines, ReservationLineView{
			ProductID:      l.ProductID,
			SKU:            l.SKU,
			Name:           l.Name,
			UnitPriceCents: l.UnitPriceCents,
			Quantity:       l.Quantity,
		})
	}

	return &ReservationView{
		ID:       res.ID,
		CallerID: res.CallerID,
		State:    string(res.State),
		Lines:    lines,
		Address: Address{
			Name:    res.AddressName,
			Phone:   res.AddressPhone,
			Line1:   res.AddressLine1,
			City:    res.AddressCity,
			State:   res.AddressState,
			Pincode: res.AddressPincode,
		},
		ShippingMethod: res.ShippingMethod,
		ExpiresAt:      res.ExpiresAt,
		CreatedAt:      res.CreatedAt,
		IsValid:        res.State == models.ReservationActive && res.ExpiresAt.After(e.now()),
	}, nil
}

func (e *Engine) wrapStorageErr(span trace.Span, err error) error {
	span.RecordError(err)
	return fmt.Errorf("%w: %v", ErrStorageTransient, err)
}

// ErrInternal wraps an unexpected error with an "internal:" prefix,
// keeping the original cause reachable through errors.Is/As. There is
// no sentinel for it; statusFor maps it to 500 via its default case.
func ErrInternal(cause error) error {
	return fmt.Errorf("internal: %w", cause)
}
