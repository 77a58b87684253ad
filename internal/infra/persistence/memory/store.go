// Package memory implements the canonical in-memory transactional store
// for products and buildups. Durable backends (sqlite, postgres) reuse it
// for transaction semantics and snapshot after each successful commit.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"epdcore/pkg/domain"
)

// Exported aliases to keep method signatures concise while still exposing
// domain types from this infra package.
type (
	// Product is an alias of domain.Product.
	Product = domain.Product
	// Buildup is an alias of domain.Buildup.
	Buildup = domain.Buildup
	// Result is an alias of domain.Result.
	Result = domain.Result
	// RulesEngine is an alias of domain.RulesEngine.
	RulesEngine = domain.RulesEngine
	// Transaction is an alias of domain.Transaction.
	Transaction = domain.Transaction
	// TransactionView is an alias of domain.TransactionView.
	TransactionView = domain.TransactionView
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

type memoryState struct {
	products map[int64]Product
	buildups map[int64]Buildup
}

func newMemoryState() memoryState {
	return memoryState{
		products: make(map[int64]Product),
		buildups: make(map[int64]Buildup),
	}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for id, p := range s.products {
		cloned.products[id] = cloneProduct(p)
	}
	for id, b := range s.buildups {
		cloned.buildups[id] = cloneBuildup(b)
	}
	return cloned
}

func cloneProduct(p Product) Product {
	cp := p
	cp.LinearDensity = cloneFloat(p.LinearDensity)
	cp.GrossDensity = cloneFloat(p.GrossDensity)
	cp.BulkDensity = cloneFloat(p.BulkDensity)
	cp.Grammage = cloneFloat(p.Grammage)
	cp.LayerThickness = cloneFloat(p.LayerThickness)
	if p.EPD != nil {
		epd := *p.EPD
		cp.EPD = &epd
	}
	return cp
}

func cloneBuildup(b Buildup) Buildup {
	cp := b
	if b.Products != nil {
		cp.Products = make(domain.ProductReferenceMap, len(b.Products))
		for k, ref := range b.Products {
			cp.Products[k] = ref
		}
	}
	if b.Results != nil {
		cp.Results = make(map[string]domain.ResultEntry, len(b.Results))
		for k, r := range b.Results {
			cp.Results[k] = r
		}
	}
	if b.MetaData != nil {
		cp.MetaData = make(map[string]any, len(b.MetaData))
		for k, v := range b.MetaData {
			cp.MetaData[k] = v
		}
	}
	return cp
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// Snapshot captures the full store state for durable backends.
type Snapshot struct {
	Products map[int64]Product `json:"products"`
	Buildups map[int64]Buildup `json:"buildups"`
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nextID int64
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the store clock; intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = now
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// ExportState returns a snapshot of the committed state.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := Snapshot{
		Products: make(map[int64]Product, len(s.state.products)),
		Buildups: make(map[int64]Buildup, len(s.state.buildups)),
	}
	for id, p := range s.state.products {
		snapshot.Products[id] = cloneProduct(p)
	}
	for id, b := range s.state.buildups {
		snapshot.Buildups[id] = cloneBuildup(b)
	}
	return snapshot
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := newMemoryState()
	var maxID int64
	for id, p := range snapshot.Products {
		p.ID = id
		state.products[id] = cloneProduct(p)
		if id > maxID {
			maxID = id
		}
	}
	for id, b := range snapshot.Buildups {
		b.ID = id
		state.buildups[id] = cloneBuildup(b)
		if id > maxID {
			maxID = id
		}
	}
	s.state = state
	s.nextID = maxID
}

func (s *Store) newID() int64 {
	s.nextID++
	return s.nextID
}

type transaction struct {
	store   *Store
	state   memoryState
	changes []domain.Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

// ListProducts returns all products within the snapshot, ordered by id.
func (v transactionView) ListProducts() []Product {
	out := make([]Product, 0, len(v.state.products))
	for _, p := range v.state.products {
		out = append(out, cloneProduct(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListBuildups returns all buildups within the snapshot, ordered by id.
func (v transactionView) ListBuildups() []Buildup {
	out := make([]Buildup, 0, len(v.state.buildups))
	for _, b := range v.state.buildups {
		out = append(out, cloneBuildup(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FindProduct retrieves a product by id from the snapshot.
func (v transactionView) FindProduct(id int64) (Product, bool) {
	p, ok := v.state.products[id]
	if !ok {
		return Product{}, false
	}
	return cloneProduct(p), true
}

// FindProductByURI retrieves a product by its source/EPD identity.
func (v transactionView) FindProductByURI(uri string) (Product, bool) {
	for _, p := range v.state.products {
		if p.URI() == uri {
			return cloneProduct(p), true
		}
	}
	return Product{}, false
}

// FindBuildup retrieves a buildup by id from the snapshot.
func (v transactionView) FindBuildup(id int64) (Buildup, bool) {
	b, ok := v.state.buildups[id]
	if !ok {
		return Buildup{}, false
	}
	return cloneBuildup(b), true
}

// RunInTransaction executes fn within a transactional copy of the store
// state, evaluates the rules engine against the changes, and commits only
// when no blocking violation was raised.
func (s *Store) RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := transactionView{state: &tx.state}
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(ctx context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	return fn(transactionView{state: &snapshot})
}

func (tx *transaction) recordChange(change domain.Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot exposes the transactional state as a read-only view.
func (tx *transaction) Snapshot() TransactionView {
	return transactionView{state: &tx.state}
}

// CreateProduct stores a new product within the transaction.
func (tx *transaction) CreateProduct(p Product) (Product, error) {
	if p.ID == 0 {
		p.ID = tx.store.newID()
	}
	if _, exists := tx.state.products[p.ID]; exists {
		return Product{}, domain.ErrAlreadyExists{Entity: domain.EntityProduct, ID: p.ID}
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.products[p.ID] = cloneProduct(p)
	tx.recordChange(domain.Change{Entity: domain.EntityProduct, Action: domain.ActionCreate, After: cloneProduct(p)})
	return cloneProduct(p), nil
}

// UpdateProduct mutates a product using the provided mutator function.
func (tx *transaction) UpdateProduct(id int64, mutator func(*Product) error) (Product, error) {
	current, ok := tx.state.products[id]
	if !ok {
		return Product{}, domain.ErrNotFound{Entity: domain.EntityProduct, ID: id}
	}
	before := cloneProduct(current)
	if err := mutator(&current); err != nil {
		return Product{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.products[id] = cloneProduct(current)
	tx.recordChange(domain.Change{Entity: domain.EntityProduct, Action: domain.ActionUpdate, Before: before, After: cloneProduct(current)})
	return cloneProduct(current), nil
}

// DeleteProduct removes a product from the transaction state.
func (tx *transaction) DeleteProduct(id int64) error {
	current, ok := tx.state.products[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityProduct, ID: id}
	}
	delete(tx.state.products, id)
	tx.recordChange(domain.Change{Entity: domain.EntityProduct, Action: domain.ActionDelete, Before: cloneProduct(current)})
	return nil
}

// CreateBuildup stores a new buildup within the transaction.
func (tx *transaction) CreateBuildup(b Buildup) (Buildup, error) {
	if b.ID == 0 {
		b.ID = tx.store.newID()
	}
	if _, exists := tx.state.buildups[b.ID]; exists {
		return Buildup{}, domain.ErrAlreadyExists{Entity: domain.EntityBuildup, ID: b.ID}
	}
	b.CreatedAt = tx.now
	b.UpdatedAt = tx.now
	tx.state.buildups[b.ID] = cloneBuildup(b)
	tx.recordChange(domain.Change{Entity: domain.EntityBuildup, Action: domain.ActionCreate, After: cloneBuildup(b)})
	return cloneBuildup(b), nil
}

// UpdateBuildup mutates a buildup using the provided mutator function.
func (tx *transaction) UpdateBuildup(id int64, mutator func(*Buildup) error) (Buildup, error) {
	current, ok := tx.state.buildups[id]
	if !ok {
		return Buildup{}, domain.ErrNotFound{Entity: domain.EntityBuildup, ID: id}
	}
	before := cloneBuildup(current)
	if err := mutator(&current); err != nil {
		return Buildup{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.buildups[id] = cloneBuildup(current)
	tx.recordChange(domain.Change{Entity: domain.EntityBuildup, Action: domain.ActionUpdate, Before: before, After: cloneBuildup(current)})
	return cloneBuildup(current), nil
}

// DeleteBuildup removes a buildup from the transaction state.
func (tx *transaction) DeleteBuildup(id int64) error {
	current, ok := tx.state.buildups[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityBuildup, ID: id}
	}
	delete(tx.state.buildups, id)
	tx.recordChange(domain.Change{Entity: domain.EntityBuildup, Action: domain.ActionDelete, Before: cloneBuildup(current)})
	return nil
}

// FindProduct retrieves a product by id from the transaction state.
func (tx *transaction) FindProduct(id int64) (Product, bool) {
	return transactionView{state: &tx.state}.FindProduct(id)
}

// FindProductByURI retrieves a product by URI from the transaction state.
func (tx *transaction) FindProductByURI(uri string) (Product, bool) {
	return transactionView{state: &tx.state}.FindProductByURI(uri)
}

// FindBuildup retrieves a buildup by id from the transaction state.
func (tx *transaction) FindBuildup(id int64) (Buildup, bool) {
	return transactionView{state: &tx.state}.FindBuildup(id)
}

// Read helpers ---------------------------------------------------------------

// GetProduct retrieves a product by id from committed state.
func (s *Store) GetProduct(id int64) (Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.products[id]
	if !ok {
		return Product{}, false
	}
	return cloneProduct(p), true
}

// GetProductByURI retrieves a product by its "<source>.<epd id>" identity.
func (s *Store) GetProductByURI(uri string) (Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.state.products {
		if p.URI() == uri {
			return cloneProduct(p), true
		}
	}
	return Product{}, false
}

// GetBuildup retrieves a buildup by id from committed state.
func (s *Store) GetBuildup(id int64) (Buildup, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.state.buildups[id]
	if !ok {
		return Buildup{}, false
	}
	return cloneBuildup(b), true
}

// ListProducts returns all products from committed state.
func (s *Store) ListProducts() []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Product, 0, len(s.state.products))
	for _, p := range s.state.products {
		out = append(out, cloneProduct(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListBuildups returns all buildups from committed state.
func (s *Store) ListBuildups() []Buildup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Buildup, 0, len(s.state.buildups))
	for _, b := range s.state.buildups {
		out = append(out, cloneBuildup(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
