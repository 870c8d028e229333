package engine

import (
	"time"

	"github.com/google/uuid"
)

const (
	MinLineQuantity = 1
	MaxLineQuantity = 5
	HoldDuration    = 10 * time.Minute
)

var allowedShippingMethods = map[string]bool{
	"standard": true,
	"express":  true,
}

type Address struct {
	Name    string
	Phone   string
	Line1   string
	City    string
	State   string
	Pincode string
}

func (a Address) validate() error {
	if a.Name == "" || a.Phone == "" || a.Line1 == "" || a.City == "" || a.State == "" || a.Pincode == "" {
		return ErrValidation
	}
	return nil
}

// CartLine is one entry of the caller's cart as read from the
// out-of-scope cart subsystem.
type CartLine struct {
	ProductID uuid.UUID
	Quantity  int32
}

type ReserveInput struct {
	CallerID       string
	Address        Address
	ShippingMethod string
}

type ReserveOutput struct {
	ReservationID uuid.UUID
	ExpiresAt     time.Time
}

type ConfirmInput struct {
	CallerID         string
	ReservationID    uuid.UUID
	IdempotencyToken string
}

type ConfirmOutput struct {
	OrderID uuid.UUID
	Status  string
}

// ReservationLineView and ReservationView are the Engine's read-model
// for getReservation; they never expose the storage models directly.
type ReservationLineView struct {
	ProductID      uuid.UUID
	SKU            string
	Name           string
	UnitPriceCents int64
	Quantity       int32
}

type ReservationView struct {
	ID             uuid.UUID
	CallerID       string
	State          string
	Lines          []ReservationLineView
	Address        Address
	ShippingMethod string
	ExpiresAt      time.Time
	CreatedAt      time.Time
	IsValid        bool
}
