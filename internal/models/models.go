// Package models holds the persisted entities of the reservation core.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is externally curated catalog data. The core only ever
// mutates the Inventory row that hangs off it.
type Product struct {
	ID                 uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SKU                string    `gorm:"type:text;not null;uniqueIndex:ux_products_sku"`
	Name               string    `gorm:"type:text;not null"`
	Image              string    `gorm:"type:text"`
	UnitPriceCents     int64     `gorm:"not null;default:0"`
	LowStockThreshold  int32     `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"not null;default:now();index"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

func (Product) TableName() string { return "products" }

// Inventory is the 1:1 stock/reserved counter pair the Inventory Store
// primitives operate on. stock >= reserved >= 0 always.
type Inventory struct {
	ProductID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Stock     int32     `gorm:"not null;default:0"`
	Reserved  int32     `gorm:"not null;default:0"`

	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

func (Inventory) TableName() string { return "inventories" }

type ReservationState string

const (
	ReservationActive    ReservationState = "active"
	ReservationConsumed  ReservationState = "consumed"
	ReservationExpired   ReservationState = "expired"
	ReservationCancelled ReservationState = "cancelled"
)

// Reservation is the time-bounded soft hold created by reserve and
// mutated exactly once to a terminal state.
type Reservation struct {
	ID         uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CallerID   string           `gorm:"type:text;not null;index:ix_reservations_caller_state,priority:1"`
	State      ReservationState `gorm:"type:text;not null;default:'active';index:ix_reservations_state_expires,priority:1;index:ix_reservations_caller_state,priority:2"`
	ExpiresAt  time.Time        `gorm:"not null;index:ix_reservations_state_expires,priority:2"`

	AddressName    string `gorm:"type:text;not null"`
	AddressPhone   string `gorm:"type:text;not null"`
	AddressLine1   string `gorm:"type:text;not null"`
	AddressCity    string `gorm:"type:text;not null"`
	AddressState   string `gorm:"type:text;not null"`
	AddressPincode string `gorm:"type:text;not null"`
	ShippingMethod string `gorm:"type:text;not null"`

	CreatedAt time.Time `gorm:"not null;default:now()"`

	Lines []ReservationLine `gorm:"foreignKey:ReservationID;constraint:OnDelete:CASCADE"`
}

func (Reservation) TableName() string { return "reservations" }

// ReservationLine snapshots SKU/name/price at reserve time so later
// catalog edits never rewrite history.
type ReservationLine struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ReservationID  uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:ux_reservation_lines_res_product"`
	ProductID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_reservation_lines_res_product"`
	SKU            string    `gorm:"type:text;not null"`
	Name           string    `gorm:"type:text;not null"`
	UnitPriceCents int64     `gorm:"not null"`
	Quantity       int32     `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
}

func (ReservationLine) TableName() string { return "reservation_lines" }

type OrderState string

const (
	OrderCreated   OrderState = "created"
	OrderCancelled OrderState = "cancelled"
)

// Order is created exactly once per successful confirm and is
// immutable thereafter.
type Order struct {
	ID       uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CallerID string     `gorm:"type:text;not null;index"`
	State    OrderState `gorm:"type:text;not null;default:'created'"`

	AddressName    string `gorm:"type:text;not null"`
	AddressPhone   string `gorm:"type:text;not null"`
	AddressLine1   string `gorm:"type:text;not null"`
	AddressCity    string `gorm:"type:text;not null"`
	AddressState   string `gorm:"type:text;not null"`
	AddressPincode string `gorm:"type:text;not null"`
	ShippingMethod string `gorm:"type:text;not null"`

	TotalCents int64 `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null;default:now();index"`

	Lines []OrderLine `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (Order) TableName() string { return "orders" }

// OrderLine is copied verbatim from the originating ReservationLine.
type OrderLine struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID `gorm:"type:uuid;not null;index"`
	ProductID      uuid.UUID `gorm:"type:uuid;not null"`
	SKU            string    `gorm:"type:text;not null"`
	Name           string    `gorm:"type:text;not null"`
	UnitPriceCents int64     `gorm:"not null"`
	Quantity       int32     `gorm:"not null"`
	LineTotalCents int64     `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
}

func (OrderLine) TableName() string { return "order_lines" }

type IdempotencyState string

const (
	IdempotencyInProgress IdempotencyState = "in_progress"
	IdempotencySucceeded  IdempotencyState = "succeeded"
	IdempotencyFailed     IdempotencyState = "failed"
)

// IdempotencyRecord guards the confirm step against duplicate
// effective commits for the same (caller, endpoint, key).
type IdempotencyRecord struct {
	ID          uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CallerID    string           `gorm:"type:text;not null;uniqueIndex:ux_idempotency_caller_endpoint_key"`
	Endpoint    string           `gorm:"type:text;not null;uniqueIndex:ux_idempotency_caller_endpoint_key"`
	Key         string           `gorm:"type:text;not null;uniqueIndex:ux_idempotency_caller_endpoint_key"`
	Fingerprint string           `gorm:"type:text;not null"`
	State       IdempotencyState `gorm:"type:text;not null;default:'in_progress'"`

	// ResponseOrderID/ResponseStatus are the cached success response,
	// frozen once State is succeeded.
	ResponseOrderID uuid.NullUUID `gorm:"type:uuid"`
	ResponseStatus  string        `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

func (IdempotencyRecord) TableName() string { return "idempotency_records" }

// LowStockSignal is append-only from the core's perspective; the
// out-of-scope alerting sink consumes and marks it processed.
type LowStockSignal struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID  uuid.UUID `gorm:"type:uuid;not null;index"`
	StockAfter int32     `gorm:"not null"`
	Threshold  int32     `gorm:"not null"`
	Processed  bool      `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"not null;default:now();index"`
}

func (LowStockSignal) TableName() string { return "low_stock_signals" }
