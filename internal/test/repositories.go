package test

import (
	"context"
	"sort"
	"sync"
	"time"

	domainErrors "github.com/polkiloo/vendbot/internal/domain/errors"
	"github.com/polkiloo/vendbot/internal/domain/model"
	"github.com/polkiloo/vendbot/internal/domain/repository"
)

// MemoryStore keeps every repository in process memory. Ledger transactions
// take the store lock per call only, so concurrent transactions interleave and
// the conditional updates decide who wins. LockOrder and Item hold row locks
// until the transaction ends; writes are undone when fn fails.
type MemoryStore struct {
	mu    sync.Mutex
	state memoryState
	clock time.Time
	rows  map[rowKey]*sync.Mutex

	// Err, when set, is returned by every repository call.
	Err error
}

type memoryState struct {
	items       map[int64]model.Item
	orders      map[int64]model.Order
	customers   map[int64]model.Customer
	channels    map[int64]model.PaymentChannel
	settings    map[string]string
	nextItem    int64
	nextOrder   int64
	nextChannel int64
}

// NewMemoryStore returns an empty store seeded with default settings.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		state: memoryState{
			items:     make(map[int64]model.Item),
			orders:    make(map[int64]model.Order),
			customers: make(map[int64]model.Customer),
			channels:  make(map[int64]model.PaymentChannel),
			settings:  make(map[string]string),
		},
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		rows:  make(map[rowKey]*sync.Mutex),
	}
	for k, v := range model.DefaultSettings {
		s.state.settings[k] = v
	}
	return s
}

// tick advances the synthetic clock so insertion order is visible in timestamps.
func (s *MemoryStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *MemoryStore) Items() repository.InventoryRepository { return memoryItems{s} }

func (s *MemoryStore) Orders() repository.OrderRepository { return memoryOrders{s} }

func (s *MemoryStore) Customers() repository.CustomerRepository { return memoryCustomers{s} }

func (s *MemoryStore) PaymentChannels() repository.PaymentChannelRepository {
	return memoryChannels{s}
}

func (s *MemoryStore) Settings() repository.SettingsRepository { return memorySettings{s} }

func (s *MemoryStore) Ledger() repository.Ledger { return s }

// WithinLedger runs fn and undoes its writes when fn fails.
func (s *MemoryStore) WithinLedger(ctx context.Context, fn func(tx repository.LedgerTx) error) error {
	s.mu.Lock()
	err := s.Err
	s.mu.Unlock()
	if err != nil {
		return err
	}

	tx := &memoryTx{s: s, held: make(map[rowKey]*sync.Mutex)}
	defer tx.release()
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

type rowKey struct {
	table string
	id    int64
}

func (s *MemoryStore) rowLock(key rowKey) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[key]
	if !ok {
		m = &sync.Mutex{}
		s.rows[key] = m
	}
	return m
}

// Item returns a copy of the stored item for assertions.
func (s *MemoryStore) Item(id int64) (model.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.state.items[id]
	return it, ok
}

// Order returns a copy of the stored order for assertions.
func (s *MemoryStore) Order(id int64) (model.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.state.orders[id]
	return o, ok
}

// SetOrderItem pre-assigns an item without validation, as a legacy row would.
func (s *MemoryStore) SetOrderItem(orderID, itemID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.state.orders[orderID]
	o.ItemID = &itemID
	s.state.orders[orderID] = o
}

func sortedItems(items map[int64]model.Item) []model.Item {
	out := make([]model.Item, 0, len(items))
	for _, it := range items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].AddedAt.Before(out[j].AddedAt)
	})
	return out
}

func sortedOrders(orders map[int64]model.Order) []model.Order {
	out := make([]model.Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

type memoryItems struct{ s *MemoryStore }

func (r memoryItems) Add(ctx context.Context, login, secret, notes string) (*model.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	for _, it := range r.s.state.items {
		if it.Login == login {
			return nil, domainErrors.ErrAlreadyExists
		}
	}
	r.s.state.nextItem++
	it := model.Item{ID: r.s.state.nextItem, Login: login, Secret: secret, Notes: notes, AddedAt: r.s.tick()}
	r.s.state.items[it.ID] = it
	return &it, nil
}

func (r memoryItems) Get(ctx context.Context, id int64) (*model.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	it, ok := r.s.state.items[id]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	return &it, nil
}

func (r memoryItems) ListAvailable(ctx context.Context, limit int) ([]model.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	var out []model.Item
	for _, it := range sortedItems(r.s.state.items) {
		if it.Sold {
			continue
		}
		out = append(out, it)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r memoryItems) Count(ctx context.Context) (model.StockCount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return model.StockCount{}, r.s.Err
	}
	var c model.StockCount
	for _, it := range r.s.state.items {
		c.Total++
		if !it.Sold {
			c.Available++
		}
	}
	return c, nil
}

func (r memoryItems) Release(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.state.items[id]
	if !ok {
		return domainErrors.ErrNotFound
	}
	it.Sold, it.BuyerID, it.BuyerName, it.SoldAt = false, nil, nil, nil
	r.s.state.items[id] = it
	return nil
}

func (r memoryItems) Delete(ctx context.Context, id int64, force bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	if _, ok := r.s.state.items[id]; !ok {
		return domainErrors.ErrNotFound
	}
	for oid, o := range r.s.state.orders {
		if o.ItemID == nil || *o.ItemID != id {
			continue
		}
		if o.Status == model.OrderStatusCompleted && !force {
			return domainErrors.ErrForeignKeyConflict
		}
		o.ItemID = nil
		r.s.state.orders[oid] = o
	}
	delete(r.s.state.items, id)
	return nil
}

type memoryOrders struct{ s *MemoryStore }

func (r memoryOrders) Create(ctx context.Context, in repository.NewOrder) (*model.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	if _, ok := r.s.state.customers[in.CustomerID]; !ok {
		return nil, domainErrors.ErrNotFound
	}
	if in.MaxPending > 0 {
		open := 0
		for _, o := range r.s.state.orders {
			if o.CustomerID == in.CustomerID && o.Status == model.OrderStatusPending {
				open++
			}
		}
		if open >= in.MaxPending {
			return nil, domainErrors.ErrPurchaseLimit
		}
	}
	r.s.state.nextOrder++
	o := model.Order{
		ID:           r.s.state.nextOrder,
		CustomerID:   in.CustomerID,
		CustomerName: in.CustomerName,
		Amount:       in.Amount,
		PaymentProof: in.PaymentProof,
		Status:       model.OrderStatusPending,
		CreatedAt:    r.s.tick(),
	}
	r.s.state.orders[o.ID] = o
	return &o, nil
}

func (r memoryOrders) Get(ctx context.Context, id int64) (*model.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	o, ok := r.s.state.orders[id]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	return &o, nil
}

func (r memoryOrders) ListPending(ctx context.Context, limit int) ([]model.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	var out []model.Order
	for _, o := range sortedOrders(r.s.state.orders) {
		if o.Status != model.OrderStatusPending {
			continue
		}
		out = append(out, o)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r memoryOrders) CountPendingByCustomer(ctx context.Context, customerID int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return 0, r.s.Err
	}
	n := 0
	for _, o := range r.s.state.orders {
		if o.CustomerID == customerID && o.Status == model.OrderStatusPending {
			n++
		}
	}
	return n, nil
}

func (r memoryOrders) ListFinalizedSince(ctx context.Context, since time.Time) ([]model.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	var out []model.Order
	sorted := sortedOrders(r.s.state.orders)
	for i := len(sorted) - 1; i >= 0; i-- {
		o := sorted[i]
		if o.CreatedAt.Before(since) {
			continue
		}
		if o.Status == model.OrderStatusCompleted || o.Status == model.OrderStatusCancelled {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r memoryOrders) Stats(ctx context.Context, dayStart time.Time) (model.SalesStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return model.SalesStats{}, r.s.Err
	}
	st := model.SalesStats{Customers: len(r.s.state.customers)}
	for _, it := range r.s.state.items {
		st.ItemsTotal++
		if !it.Sold {
			st.ItemsAvailable++
		}
	}
	for _, o := range r.s.state.orders {
		switch o.Status {
		case model.OrderStatusPending:
			st.PendingOrders++
		case model.OrderStatusCompleted:
			st.CompletedTotal++
			st.RevenueTotal += o.Amount
			if o.CompletedAt != nil && !o.CompletedAt.Before(dayStart) {
				st.CompletedToday++
				st.RevenueToday += o.Amount
			}
		}
	}
	return st, nil
}

type memoryCustomers struct{ s *MemoryStore }

func (r memoryCustomers) Register(ctx context.Context, id int64, name string) (*model.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	c, ok := r.s.state.customers[id]
	if !ok {
		c = model.Customer{ID: id, JoinedAt: r.s.tick()}
	}
	c.Name = name
	r.s.state.customers[id] = c
	return &c, nil
}

func (r memoryCustomers) Get(ctx context.Context, id int64) (*model.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	c, ok := r.s.state.customers[id]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	return &c, nil
}

func (r memoryCustomers) ListActive(ctx context.Context) ([]model.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	var out []model.Customer
	for _, c := range r.s.state.customers {
		if !c.Blocked {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memoryCustomers) CountActive(ctx context.Context) (int, error) {
	list, err := r.ListActive(ctx)
	return len(list), err
}

func (r memoryCustomers) MarkBlocked(ctx context.Context, ids []int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return 0, r.s.Err
	}
	n := 0
	for _, id := range ids {
		c, ok := r.s.state.customers[id]
		if !ok || c.Blocked {
			continue
		}
		c.Blocked = true
		r.s.state.customers[id] = c
		n++
	}
	return n, nil
}

type memoryChannels struct{ s *MemoryStore }

func (r memoryChannels) Upsert(ctx context.Context, method, number, holder string) (*model.PaymentChannel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	for id, pc := range r.s.state.channels {
		if pc.Method == method {
			pc.AccountNumber, pc.Holder, pc.Active = number, holder, true
			r.s.state.channels[id] = pc
			return &pc, nil
		}
	}
	r.s.state.nextChannel++
	pc := model.PaymentChannel{ID: r.s.state.nextChannel, Method: method, AccountNumber: number, Holder: holder, Active: true}
	r.s.state.channels[pc.ID] = pc
	return &pc, nil
}

func (r memoryChannels) List(ctx context.Context, activeOnly bool) ([]model.PaymentChannel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	var out []model.PaymentChannel
	for _, pc := range r.s.state.channels {
		if activeOnly && !pc.Active {
			continue
		}
		out = append(out, pc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Method < out[j].Method })
	return out, nil
}

func (r memoryChannels) Toggle(ctx context.Context, id int64) (*model.PaymentChannel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	pc, ok := r.s.state.channels[id]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	pc.Active = !pc.Active
	r.s.state.channels[id] = pc
	return &pc, nil
}

func (r memoryChannels) Delete(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	if _, ok := r.s.state.channels[id]; !ok {
		return domainErrors.ErrNotFound
	}
	delete(r.s.state.channels, id)
	return nil
}

type memorySettings struct{ s *MemoryStore }

func (r memorySettings) Get(ctx context.Context, key string) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return "", r.s.Err
	}
	v, ok := r.s.state.settings[key]
	if !ok {
		return "", domainErrors.ErrNotFound
	}
	return v, nil
}

func (r memorySettings) Set(ctx context.Context, key, value string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	r.s.state.settings[key] = value
	return nil
}

type memoryTx struct {
	s    *MemoryStore
	held map[rowKey]*sync.Mutex
	undo []func()
}

func (t *memoryTx) lock(table string, id int64) {
	key := rowKey{table: table, id: id}
	if _, ok := t.held[key]; ok {
		return
	}
	m := t.s.rowLock(key)
	m.Lock()
	t.held[key] = m
}

func (t *memoryTx) release() {
	for _, m := range t.held {
		m.Unlock()
	}
}

func (t *memoryTx) rollback() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
}

func (t *memoryTx) LockOrder(ctx context.Context, id int64) (*model.Order, error) {
	t.lock("orders", id)
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	o, ok := t.s.state.orders[id]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	return &o, nil
}

func (t *memoryTx) OldestUnsoldItem(ctx context.Context) (*model.Item, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	pinned := make(map[int64]bool)
	for _, o := range t.s.state.orders {
		if o.Status == model.OrderStatusPending && o.ItemID != nil {
			pinned[*o.ItemID] = true
		}
	}
	for _, it := range sortedItems(t.s.state.items) {
		if !it.Sold && !pinned[it.ID] {
			return &it, nil
		}
	}
	return nil, domainErrors.ErrStockExhausted
}

func (t *memoryTx) Item(ctx context.Context, id int64) (*model.Item, error) {
	t.lock("items", id)
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	it, ok := t.s.state.items[id]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	return &it, nil
}

func (t *memoryTx) ItemPinned(ctx context.Context, itemID, orderID int64) (bool, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, o := range t.s.state.orders {
		if o.ID != orderID && o.Status == model.OrderStatusPending && o.ItemID != nil && *o.ItemID == itemID {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryTx) AssignItem(ctx context.Context, orderID, itemID int64, current *int64) (bool, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	o, ok := t.s.state.orders[orderID]
	if !ok || o.Status != model.OrderStatusPending || !sameItem(o.ItemID, current) {
		return false, nil
	}
	prev := o
	o.ItemID = &itemID
	t.s.state.orders[orderID] = o
	t.undo = append(t.undo, func() { t.s.state.orders[orderID] = prev })
	return true, nil
}

func sameItem(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (t *memoryTx) MarkItemSold(ctx context.Context, itemID, buyerID int64, buyerName string, at time.Time) (bool, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	it, ok := t.s.state.items[itemID]
	if !ok || it.Sold {
		return false, nil
	}
	prev := it
	it.Sold = true
	it.BuyerID = &buyerID
	it.BuyerName = &buyerName
	it.SoldAt = &at
	t.s.state.items[itemID] = it
	t.undo = append(t.undo, func() { t.s.state.items[itemID] = prev })
	return true, nil
}

func (t *memoryTx) FinalizeOrder(ctx context.Context, orderID int64, status model.OrderStatus, at time.Time, notes *string) (bool, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	o, ok := t.s.state.orders[orderID]
	if !ok || o.Status != model.OrderStatusPending {
		return false, nil
	}
	prev := o
	o.Status = status
	o.CompletedAt = &at
	if notes != nil {
		o.Notes = notes
	}
	t.s.state.orders[orderID] = o
	t.undo = append(t.undo, func() { t.s.state.orders[orderID] = prev })
	return true, nil
}

var (
	_ repository.Factory  = (*MemoryStore)(nil)
	_ repository.LedgerTx = (*memoryTx)(nil)
)
