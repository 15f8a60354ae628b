package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/btree"

	"github.com/mvasconc/papertrade/internal/domain"
)

// ledgerKey identifies one holding or position row.
type ledgerKey struct {
	userID     string
	instrument string
}

// orderEntry indexes an order for newest-first iteration.
type orderEntry struct {
	order *domain.Order
}

// orderNewestFirst orders entries by created_at descending, then id
// descending, so ascending over the tree streams the newest order first
// with a stable tie-break.
func orderNewestFirst(a, b orderEntry) bool {
	if !a.order.CreatedAt.Equal(b.order.CreatedAt) {
		return a.order.CreatedAt.After(b.order.CreatedAt)
	}
	return a.order.ID > b.order.ID
}

// MemoryLedger implements Ledger with in-memory maps and a per-user
// B-tree order index. A settlement's writes are applied under one write
// lock, so readers either see all of a commit or none of it.
type MemoryLedger struct {
	mu        sync.RWMutex
	holdings  map[ledgerKey]*domain.Holding
	positions map[ledgerKey]*domain.Position
	orders    map[string]*btree.BTreeG[orderEntry] // userID → index
}

// NewMemoryLedger creates an empty MemoryLedger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		holdings:  make(map[ledgerKey]*domain.Holding),
		positions: make(map[ledgerKey]*domain.Position),
		orders:    make(map[string]*btree.BTreeG[orderEntry]),
	}
}

func (l *MemoryLedger) GetHolding(_ context.Context, userID, instrument string) (*domain.Holding, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	h, ok := l.holdings[ledgerKey{userID, instrument}]
	if !ok {
		return nil, nil
	}
	cp := *h
	return &cp, nil
}

func (l *MemoryLedger) GetPosition(_ context.Context, userID, instrument string) (*domain.Position, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.positions[ledgerKey{userID, instrument}]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (l *MemoryLedger) ListHoldings(_ context.Context, userID string) ([]domain.Holding, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	holdings := make([]domain.Holding, 0)
	for key, h := range l.holdings {
		if key.userID == userID {
			holdings = append(holdings, *h)
		}
	}
	sortByInstrument(holdings, func(h domain.Holding) string { return h.Instrument })
	return holdings, nil
}

func (l *MemoryLedger) ListPositions(_ context.Context, userID string) ([]domain.Position, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	positions := make([]domain.Position, 0)
	for key, p := range l.positions {
		if key.userID == userID {
			positions = append(positions, *p)
		}
	}
	sortByInstrument(positions, func(p domain.Position) string { return p.Instrument })
	return positions, nil
}

func (l *MemoryLedger) ListOrders(_ context.Context, userID string) ([]domain.Order, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	orders := make([]domain.Order, 0)
	idx, ok := l.orders[userID]
	if !ok {
		return orders, nil
	}
	idx.Ascend(func(e orderEntry) bool {
		orders = append(orders, *e.order)
		return true
	})
	return orders, nil
}

// Settle reads the order's records, calls decide, and applies the result
// under a single write lock, so the check and the write cannot interleave
// with another settlement. Stored records are copies; callers can't mutate
// ledger state through retained pointers.
func (l *MemoryLedger) Settle(_ context.Context, order *domain.Order, decide SettleFunc) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := ledgerKey{order.UserID, order.Instrument}

	var holding *domain.Holding
	if h, ok := l.holdings[key]; ok {
		cp := *h
		holding = &cp
	}
	var position *domain.Position
	if p, ok := l.positions[key]; ok {
		cp := *p
		position = &cp
	}

	cs, err := decide(holding, position)
	if err != nil {
		return err
	}

	idx, ok := l.orders[order.UserID]
	if !ok {
		idx = btree.NewG[orderEntry](32, orderNewestFirst)
		l.orders[order.UserID] = idx
	}
	cp := *order
	idx.ReplaceOrInsert(orderEntry{order: &cp})

	switch {
	case cs.DeleteHolding:
		delete(l.holdings, key)
	case cs.UpsertHolding != nil:
		h := *cs.UpsertHolding
		l.holdings[key] = &h
	}
	switch {
	case cs.DeletePosition:
		delete(l.positions, key)
	case cs.UpsertPosition != nil:
		p := *cs.UpsertPosition
		l.positions[key] = &p
	}

	return nil
}

// sortByInstrument gives map-backed listings a deterministic order so
// repeated reads with no intervening writes return identical results.
func sortByInstrument[T any](items []T, instrument func(T) string) {
	sort.Slice(items, func(i, j int) bool {
		return instrument(items[i]) < instrument(items[j])
	})
}

// MemoryUserStore implements UserStore with in-memory maps, keyed by id
// with a secondary index by lowercased email.
type MemoryUserStore struct {
	mu      sync.RWMutex
	users   map[string]*domain.User
	byEmail map[string]*domain.User
}

// NewMemoryUserStore creates an empty MemoryUserStore.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		users:   make(map[string]*domain.User),
		byEmail: make(map[string]*domain.User),
	}
}

func (s *MemoryUserStore) CreateUser(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(u.Email)
	if _, exists := s.byEmail[email]; exists {
		return domain.ErrEmailTaken
	}
	cp := *u
	cp.Email = email
	s.users[cp.ID] = &cp
	s.byEmail[email] = &cp
	return nil
}

func (s *MemoryUserStore) GetUser(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryUserStore) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}
