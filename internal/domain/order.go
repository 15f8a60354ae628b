package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderMode indicates whether an order buys into or sells out of an
// instrument.
type OrderMode string

const (
	OrderModeBuy  OrderMode = "BUY"
	OrderModeSell OrderMode = "SELL"
)

// Order is an immutable historical record of one settlement attempt that
// passed validation. Orders are never mutated or deleted; listings return
// them newest first.
type Order struct {
	ID         string
	UserID     string
	Instrument string
	Quantity   int64
	Price      decimal.Decimal
	Mode       OrderMode
	CreatedAt  time.Time
}
