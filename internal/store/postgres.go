package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mvasconc/papertrade/internal/domain"
)

// Schema is the DDL for the ledger tables. Monetary columns are NUMERIC
// for exact decimal precision.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL UNIQUE,
	password   TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id),
	instrument TEXT NOT NULL,
	quantity   BIGINT NOT NULL,
	price      NUMERIC NOT NULL,
	mode       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS orders_user_created_idx ON orders (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS holdings (
	user_id    TEXT NOT NULL REFERENCES users(id),
	instrument TEXT NOT NULL,
	quantity   BIGINT NOT NULL CHECK (quantity >= 0),
	avg_cost   NUMERIC NOT NULL,
	last_price NUMERIC NOT NULL,
	PRIMARY KEY (user_id, instrument)
);

CREATE TABLE IF NOT EXISTS positions (
	user_id    TEXT NOT NULL REFERENCES users(id),
	instrument TEXT NOT NULL,
	quantity   BIGINT NOT NULL CHECK (quantity >= 0),
	avg_cost   NUMERIC NOT NULL,
	last_price NUMERIC NOT NULL,
	product    TEXT NOT NULL,
	PRIMARY KEY (user_id, instrument)
);
`

// PostgresLedger implements Ledger and UserStore backed by PostgreSQL.
// Settle reads, decides, and writes inside one transaction serialized per
// (user, instrument) with an advisory lock, so a settlement is atomic and
// two concurrent sells cannot both pass the sufficiency check on a stale
// quantity, even across server processes.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

// NewPostgresLedger creates a PostgreSQL-backed ledger.
func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

// EnsureSchema creates the ledger tables if they do not exist.
func (l *PostgresLedger) EnsureSchema(ctx context.Context) error {
	if _, err := l.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("%w: ensure schema: %v", domain.ErrStorage, err)
	}
	return nil
}

func (l *PostgresLedger) GetHolding(ctx context.Context, userID, instrument string) (*domain.Holding, error) {
	return scanHoldingRow(l.pool.QueryRow(ctx,
		`SELECT user_id, instrument, quantity, avg_cost::TEXT, last_price::TEXT
		 FROM holdings WHERE user_id = $1 AND instrument = $2`,
		userID, instrument))
}

func (l *PostgresLedger) GetPosition(ctx context.Context, userID, instrument string) (*domain.Position, error) {
	return scanPositionRow(l.pool.QueryRow(ctx,
		`SELECT user_id, instrument, quantity, avg_cost::TEXT, last_price::TEXT, product
		 FROM positions WHERE user_id = $1 AND instrument = $2`,
		userID, instrument))
}

func (l *PostgresLedger) ListHoldings(ctx context.Context, userID string) ([]domain.Holding, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT user_id, instrument, quantity, avg_cost::TEXT, last_price::TEXT
		 FROM holdings WHERE user_id = $1 ORDER BY instrument`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list holdings: %v", domain.ErrStorage, err)
	}
	defer rows.Close()

	holdings := make([]domain.Holding, 0)
	for rows.Next() {
		var h domain.Holding
		var avg, last string
		if err := rows.Scan(&h.UserID, &h.Instrument, &h.Quantity, &avg, &last); err != nil {
			return nil, fmt.Errorf("%w: scan holding: %v", domain.ErrStorage, err)
		}
		if h.AvgCost, err = decimal.NewFromString(avg); err != nil {
			return nil, fmt.Errorf("%w: parse avg_cost: %v", domain.ErrStorage, err)
		}
		if h.LastPrice, err = decimal.NewFromString(last); err != nil {
			return nil, fmt.Errorf("%w: parse last_price: %v", domain.ErrStorage, err)
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

func (l *PostgresLedger) ListPositions(ctx context.Context, userID string) ([]domain.Position, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT user_id, instrument, quantity, avg_cost::TEXT, last_price::TEXT, product
		 FROM positions WHERE user_id = $1 ORDER BY instrument`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list positions: %v", domain.ErrStorage, err)
	}
	defer rows.Close()

	positions := make([]domain.Position, 0)
	for rows.Next() {
		var p domain.Position
		var avg, last string
		if err := rows.Scan(&p.UserID, &p.Instrument, &p.Quantity, &avg, &last, &p.Product); err != nil {
			return nil, fmt.Errorf("%w: scan position: %v", domain.ErrStorage, err)
		}
		if p.AvgCost, err = decimal.NewFromString(avg); err != nil {
			return nil, fmt.Errorf("%w: parse avg_cost: %v", domain.ErrStorage, err)
		}
		if p.LastPrice, err = decimal.NewFromString(last); err != nil {
			return nil, fmt.Errorf("%w: parse last_price: %v", domain.ErrStorage, err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func (l *PostgresLedger) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id, user_id, instrument, quantity, price::TEXT, mode, created_at
		 FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list orders: %v", domain.ErrStorage, err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		var o domain.Order
		var price, mode string
		if err := rows.Scan(&o.ID, &o.UserID, &o.Instrument, &o.Quantity, &price, &mode, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan order: %v", domain.ErrStorage, err)
		}
		if o.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("%w: parse price: %v", domain.ErrStorage, err)
		}
		o.Mode = domain.OrderMode(mode)
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (l *PostgresLedger) Settle(ctx context.Context, order *domain.Order, decide SettleFunc) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", domain.ErrStorage, err)
	}
	defer tx.Rollback(ctx)

	// Serialize settlements per (user, instrument) for the duration of
	// the transaction. An advisory lock rather than FOR UPDATE because
	// the rows may not exist yet: two first buys must still serialize.
	if _, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1))`,
		order.UserID+"/"+order.Instrument); err != nil {
		return commitErr(err)
	}

	// Read the records inside the locked transaction so decide never
	// sees quantities another settlement is about to change.
	holding, err := scanHoldingRow(tx.QueryRow(ctx,
		`SELECT user_id, instrument, quantity, avg_cost::TEXT, last_price::TEXT
		 FROM holdings WHERE user_id = $1 AND instrument = $2`,
		order.UserID, order.Instrument))
	if err != nil {
		return err
	}
	position, err := scanPositionRow(tx.QueryRow(ctx,
		`SELECT user_id, instrument, quantity, avg_cost::TEXT, last_price::TEXT, product
		 FROM positions WHERE user_id = $1 AND instrument = $2`,
		order.UserID, order.Instrument))
	if err != nil {
		return err
	}

	cs, err := decide(holding, position)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO orders (id, user_id, instrument, quantity, price, mode, created_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6, $7)`,
		order.ID, order.UserID, order.Instrument, order.Quantity,
		order.Price.String(), string(order.Mode), order.CreatedAt); err != nil {
		return commitErr(err)
	}

	switch {
	case cs.DeleteHolding:
		if _, err := tx.Exec(ctx,
			`DELETE FROM holdings WHERE user_id = $1 AND instrument = $2`,
			order.UserID, order.Instrument); err != nil {
			return commitErr(err)
		}
	case cs.UpsertHolding != nil:
		h := cs.UpsertHolding
		if _, err := tx.Exec(ctx,
			`INSERT INTO holdings (user_id, instrument, quantity, avg_cost, last_price)
			 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC)
			 ON CONFLICT (user_id, instrument) DO UPDATE
			 SET quantity = EXCLUDED.quantity, avg_cost = EXCLUDED.avg_cost, last_price = EXCLUDED.last_price`,
			h.UserID, h.Instrument, h.Quantity, h.AvgCost.String(), h.LastPrice.String()); err != nil {
			return commitErr(err)
		}
	}

	switch {
	case cs.DeletePosition:
		if _, err := tx.Exec(ctx,
			`DELETE FROM positions WHERE user_id = $1 AND instrument = $2`,
			order.UserID, order.Instrument); err != nil {
			return commitErr(err)
		}
	case cs.UpsertPosition != nil:
		p := cs.UpsertPosition
		if _, err := tx.Exec(ctx,
			`INSERT INTO positions (user_id, instrument, quantity, avg_cost, last_price, product)
			 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6)
			 ON CONFLICT (user_id, instrument) DO UPDATE
			 SET quantity = EXCLUDED.quantity, avg_cost = EXCLUDED.avg_cost, last_price = EXCLUDED.last_price`,
			p.UserID, p.Instrument, p.Quantity, p.AvgCost.String(), p.LastPrice.String(), p.Product); err != nil {
			return commitErr(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return commitErr(err)
	}
	return nil
}

// --- UserStore ---

func (l *PostgresLedger) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := l.pool.Exec(ctx,
		`INSERT INTO users (id, name, email, password, created_at)
		 VALUES ($1, $2, LOWER($3), $4, $5)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("%w: create user: %v", domain.ErrStorage, err)
	}
	return nil
}

func (l *PostgresLedger) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return scanUserRow(l.pool.QueryRow(ctx,
		`SELECT id, name, email, password, created_at FROM users WHERE id = $1`, id))
}

func (l *PostgresLedger) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUserRow(l.pool.QueryRow(ctx,
		`SELECT id, name, email, password, created_at FROM users WHERE email = LOWER($1)`, email))
}

// --- scan helpers ---

func scanHoldingRow(row pgx.Row) (*domain.Holding, error) {
	var h domain.Holding
	var avg, last string
	err := row.Scan(&h.UserID, &h.Instrument, &h.Quantity, &avg, &last)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get holding: %v", domain.ErrStorage, err)
	}
	if h.AvgCost, err = decimal.NewFromString(avg); err != nil {
		return nil, fmt.Errorf("%w: parse avg_cost: %v", domain.ErrStorage, err)
	}
	if h.LastPrice, err = decimal.NewFromString(last); err != nil {
		return nil, fmt.Errorf("%w: parse last_price: %v", domain.ErrStorage, err)
	}
	return &h, nil
}

func scanPositionRow(row pgx.Row) (*domain.Position, error) {
	var p domain.Position
	var avg, last string
	err := row.Scan(&p.UserID, &p.Instrument, &p.Quantity, &avg, &last, &p.Product)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get position: %v", domain.ErrStorage, err)
	}
	if p.AvgCost, err = decimal.NewFromString(avg); err != nil {
		return nil, fmt.Errorf("%w: parse avg_cost: %v", domain.ErrStorage, err)
	}
	if p.LastPrice, err = decimal.NewFromString(last); err != nil {
		return nil, fmt.Errorf("%w: parse last_price: %v", domain.ErrStorage, err)
	}
	return &p, nil
}

func scanUserRow(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get user: %v", domain.ErrStorage, err)
	}
	return &u, nil
}

// commitErr classifies transaction failures: serialization conflicts are
// retryable, everything else is a storage fault.
func commitErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "40001" { // serialization_failure
		return domain.ErrConcurrencyConflict
	}
	return fmt.Errorf("%w: commit settlement: %v", domain.ErrStorage, err)
}
