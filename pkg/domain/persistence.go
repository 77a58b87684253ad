package domain

import "context"

// Transaction exposes the domain operations that a persistence
// implementation must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateProduct(Product) (Product, error)
	UpdateProduct(id int64, mutator func(*Product) error) (Product, error)
	DeleteProduct(id int64) error
	CreateBuildup(Buildup) (Buildup, error)
	UpdateBuildup(id int64, mutator func(*Buildup) error) (Buildup, error)
	DeleteBuildup(id int64) error
	FindProduct(id int64) (Product, bool)
	FindProductByURI(uri string) (Product, bool)
	FindBuildup(id int64) (Buildup, bool)
}

// TransactionView provides read-only access to snapshot data for rules
// and read callbacks.
type TransactionView interface {
	ListProducts() []Product
	ListBuildups() []Buildup
	FindProduct(id int64) (Product, bool)
	FindProductByURI(uri string) (Product, bool)
	FindBuildup(id int64) (Buildup, bool)
}

// PersistentStore is a minimal abstraction over durable backends. It
// mirrors the subset of store capabilities used directly by higher
// layers: the impact processor only reads buildups, the catalog reads
// and creates product snapshots.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetProduct(id int64) (Product, bool)
	GetProductByURI(uri string) (Product, bool)
	GetBuildup(id int64) (Buildup, bool)
	ListProducts() []Product
	ListBuildups() []Buildup
}
