package remote

import (
	"context"
	"errors"

	"tiendafacil/terminal/internal/domain"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateCode = errors.New("duplicate code")
	// ErrForeignKey marks a referenced row that is not present remotely
	// yet. During queue replay this class is transient: the missing row's
	// own create operation may simply not have been replayed.
	ErrForeignKey = errors.New("referenced row missing")
)

// Store is the remote relational store the sync engine mirrors to.
// Conflict policy is last-writer-wins: whichever terminal writes a row
// last owns its final state; no version counters are kept.
type Store interface {
	Ping(ctx context.Context) error

	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductStock(ctx context.Context, id string) (int, error)
	SetProductStock(ctx context.Context, id string, stock int) error
	InsertProduct(ctx context.Context, p domain.Product) error
	UpdateProduct(ctx context.Context, p domain.Product) error
	DeleteProduct(ctx context.Context, id string) error
	ProductExists(ctx context.Context, id string) (bool, error)
	CodeExists(ctx context.Context, code string, excludeID string) (bool, error)
	HasSaleItemsForProduct(ctx context.Context, productID string) (bool, error)

	ListCategories(ctx context.Context) ([]domain.Category, error)

	ListSales(ctx context.Context) ([]domain.Sale, error)
	InsertSale(ctx context.Context, s domain.Sale) error
	UpsertSale(ctx context.Context, s domain.Sale) error
	UpdateSale(ctx context.Context, s domain.Sale) error
	DeleteSale(ctx context.Context, id string) error

	ListSaleItems(ctx context.Context, saleID string) ([]domain.SaleItem, error)
	InsertSaleItems(ctx context.Context, items []domain.SaleItem) error
	UpsertSaleItem(ctx context.Context, item domain.SaleItem) error
	DeleteSaleItem(ctx context.Context, id string) error
	DeleteSaleItemsBySale(ctx context.Context, saleID string) error
}

// BlobStore holds product images. Uploads deferred by offline product
// operations land here right before the queued insert/update is replayed.
type BlobStore interface {
	Upload(ctx context.Context, name string, data []byte, contentType string) (string, error)
	Remove(ctx context.Context, name string) error
}
