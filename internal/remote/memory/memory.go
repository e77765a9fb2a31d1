// Package memory is an in-memory remote store. It backs tests and
// DATABASE_URL-less runs, and enforces the same unique/foreign-key error
// classes as the postgres adapter so queue replay behaves identically.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"tiendafacil/terminal/internal/domain"
	"tiendafacil/terminal/internal/remote"
)

type Store struct {
	mu         sync.RWMutex
	products   map[string]domain.Product
	categories map[string]domain.Category
	sales      map[string]domain.Sale
	saleItems  map[string]domain.SaleItem
	blobs      map[string][]byte

	// pingErr simulates an unreachable backend; guarded by mu.
	pingErr error
}

func New() *Store {
	return &Store{
		products:   make(map[string]domain.Product),
		categories: make(map[string]domain.Category),
		sales:      make(map[string]domain.Sale),
		saleItems:  make(map[string]domain.SaleItem),
		blobs:      make(map[string][]byte),
	}
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pingErr
}

// SetPingError makes Ping fail until cleared with nil.
func (s *Store) SetPingError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pingErr = err
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmpString(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, remote.ErrNotFound
	}
	found := p
	return &found, nil
}

func (s *Store) GetProductStock(_ context.Context, id string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return 0, remote.ErrNotFound
	}
	return p.Stock, nil
}

func (s *Store) SetProductStock(_ context.Context, id string, stock int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return remote.ErrNotFound
	}
	p.Stock = stock
	s.products[id] = p
	return nil
}

func (s *Store) InsertProduct(_ context.Context, p domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.products {
		if existing.Code == p.Code && existing.ID != p.ID {
			return fmt.Errorf("products.code %q: %w", p.Code, remote.ErrDuplicateCode)
		}
	}
	s.products[p.ID] = p
	return nil
}

func (s *Store) UpdateProduct(_ context.Context, p domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[p.ID]; !ok {
		return remote.ErrNotFound
	}
	s.products[p.ID] = p
	return nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range s.saleItems {
		if item.ProductID == id {
			return fmt.Errorf("product %s still referenced: %w", id, remote.ErrForeignKey)
		}
	}
	delete(s.products, id)
	return nil
}

func (s *Store) ProductExists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.products[id]
	return ok, nil
}

func (s *Store) CodeExists(_ context.Context, code string, excludeID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if p.Code == code && p.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) HasSaleItemsForProduct(_ context.Context, productID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.saleItems {
		if item.ProductID == productID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListCategories(_ context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		categories = append(categories, c)
	}
	slices.SortFunc(categories, func(a, b domain.Category) int {
		return cmpString(a.Name, b.Name)
	})
	return categories, nil
}

// PutCategory seeds category rows for tests and demo runs.
func (s *Store) PutCategory(c domain.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[c.ID] = c
}

func (s *Store) ListSales(_ context.Context) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		sales = append(sales, sale)
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if a.Date.Equal(b.Date) {
			return cmpString(b.ID, a.ID)
		}
		if a.Date.After(b.Date) {
			return -1
		}
		return 1
	})
	return sales, nil
}

func (s *Store) InsertSale(_ context.Context, sale domain.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sales[sale.ID] = sale
	return nil
}

func (s *Store) UpsertSale(_ context.Context, sale domain.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sales[sale.ID] = sale
	return nil
}

func (s *Store) UpdateSale(_ context.Context, sale domain.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sales[sale.ID]; !ok {
		return remote.ErrNotFound
	}
	s.sales[sale.ID] = sale
	return nil
}

func (s *Store) DeleteSale(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sales, id)
	return nil
}

func (s *Store) ListSaleItems(_ context.Context, saleID string) ([]domain.SaleItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.SaleItem, 0, 8)
	for _, item := range s.saleItems {
		if item.SaleID == saleID {
			items = append(items, item)
		}
	}
	slices.SortFunc(items, func(a, b domain.SaleItem) int {
		return cmpString(a.ID, b.ID)
	})
	return items, nil
}

func (s *Store) InsertSaleItems(_ context.Context, items []domain.SaleItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range items {
		if err := s.checkItemRefs(item); err != nil {
			return err
		}
	}
	for _, item := range items {
		item.Product = nil
		s.saleItems[item.ID] = item
	}
	return nil
}

func (s *Store) UpsertSaleItem(_ context.Context, item domain.SaleItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkItemRefs(item); err != nil {
		return err
	}
	item.Product = nil
	s.saleItems[item.ID] = item
	return nil
}

// checkItemRefs mirrors the relational foreign keys: a sale item needs its
// sale and its product to exist. Callers hold mu.
func (s *Store) checkItemRefs(item domain.SaleItem) error {
	if _, ok := s.sales[item.SaleID]; !ok {
		return fmt.Errorf("sale_items.sale_id %s: %w", item.SaleID, remote.ErrForeignKey)
	}
	if _, ok := s.products[item.ProductID]; !ok {
		return fmt.Errorf("sale_items.product_id %s: %w", item.ProductID, remote.ErrForeignKey)
	}
	return nil
}

func (s *Store) DeleteSaleItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.saleItems, id)
	return nil
}

func (s *Store) DeleteSaleItemsBySale(_ context.Context, saleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, item := range s.saleItems {
		if item.SaleID == saleID {
			delete(s.saleItems, id)
		}
	}
	return nil
}

func (s *Store) Upload(_ context.Context, name string, data []byte, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blobs[name] = slices.Clone(data)
	return "memory://" + name, nil
}

func (s *Store) Remove(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, name)
	return nil
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}
