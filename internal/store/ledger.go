// Package store defines the persistence layer for the trading ledger.
// Implementations include in-memory (default, also used in tests) and
// PostgreSQL (durable, transactional).
package store

import (
	"context"

	"github.com/mvasconc/papertrade/internal/domain"
)

// SettleFunc decides the ledger mutations for one order given the current
// holding and position records (nil when absent). A nil changeset error
// commits; any error aborts with nothing written.
type SettleFunc func(holding *domain.Holding, position *domain.Position) (domain.Changeset, error)

// Ledger is the durable per-user collection of holdings, positions, and
// orders. Holdings and positions are keyed by (userID, instrument); orders
// are append-only and listed newest first.
//
// Point lookups return (nil, nil) when no record exists. Absence is a
// normal ledger state, not an error.
//
// Settle runs one settlement: it reads the order's holding and position,
// calls decide on them, and applies the returned changeset plus the order
// append as a single atomic unit. The read and the write happen under the
// same serialization scope per (userID, instrument), so decide never acts
// on records another settlement is about to change.
type Ledger interface {
	GetHolding(ctx context.Context, userID, instrument string) (*domain.Holding, error)
	GetPosition(ctx context.Context, userID, instrument string) (*domain.Position, error)

	ListHoldings(ctx context.Context, userID string) ([]domain.Holding, error)
	ListPositions(ctx context.Context, userID string) ([]domain.Position, error)
	ListOrders(ctx context.Context, userID string) ([]domain.Order, error)

	Settle(ctx context.Context, order *domain.Order, decide SettleFunc) error
}

// UserStore persists registered accounts. Email lookups are
// case-insensitive; Create rejects a duplicate email with
// domain.ErrEmailTaken.
type UserStore interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
}
