// Package products owns the product lifecycle and the stock-sync drain.
// Every mutation writes the local store first; the remote store is either
// mirrored immediately (online) or deferred through the pending queue.
package products

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tiendafacil/terminal/internal/domain"
	"tiendafacil/terminal/internal/localstore"
	"tiendafacil/terminal/internal/remote"
)

var (
	ErrDuplicateCode   = errors.New("product code already exists")
	ErrProductHasSales = errors.New("product is referenced by sales")
	ErrInvalidProduct  = errors.New("invalid product")
)

// Connectivity is the shared online flag; the monitor implements it.
type Connectivity interface {
	Online() bool
}

type Store struct {
	local *localstore.Store
	rem   remote.Store
	blobs remote.BlobStore
	conn  Connectivity

	// drainMu guards SyncPendingOperations against re-entrant invocation
	// during online/offline flapping.
	drainMu sync.Mutex
}

func New(local *localstore.Store, rem remote.Store, blobs remote.BlobStore, conn Connectivity) *Store {
	return &Store{local: local, rem: rem, blobs: blobs, conn: conn}
}

type CreateRequest struct {
	Code               string `json:"code"`
	Name               string `json:"name"`
	CategoryID         string `json:"category_id"`
	PurchasePriceCents int64  `json:"purchase_price_cents"`
	SalePriceCents     int64  `json:"sale_price_cents"`
	Stock              int    `json:"stock"`
	Image              []byte `json:"image,omitempty"`
}

type UpdateRequest struct {
	Code               *string `json:"code,omitempty"`
	Name               *string `json:"name,omitempty"`
	CategoryID         *string `json:"category_id,omitempty"`
	PurchasePriceCents *int64  `json:"purchase_price_cents,omitempty"`
	SalePriceCents     *int64  `json:"sale_price_cents,omitempty"`
	Stock              *int    `json:"stock,omitempty"`
	Image              []byte  `json:"image,omitempty"`
}

// LoadProducts refreshes the local mirror from the remote store when
// online, keeping each product's local pendingStockChanges accumulator,
// and falls back to the mirror when offline.
func (s *Store) LoadProducts(ctx context.Context) ([]domain.Product, error) {
	if !s.conn.Online() {
		return s.local.ListProducts()
	}

	remoteProducts, err := s.rem.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	localProducts, err := s.local.ListProducts()
	if err != nil {
		return nil, err
	}
	pendingByID := make(map[string]int, len(localProducts))
	for _, p := range localProducts {
		pendingByID[p.ID] = p.PendingStockChanges
	}

	merged := make([]domain.Product, 0, len(remoteProducts))
	for _, p := range remoteProducts {
		p.PendingStockChanges = pendingByID[p.ID]
		merged = append(merged, p)
	}
	if err := s.local.PutProducts(merged); err != nil {
		return nil, err
	}
	return merged, nil
}

func (s *Store) LoadCategories(ctx context.Context) ([]domain.Category, error) {
	if !s.conn.Online() {
		return s.local.ListCategories()
	}
	categories, err := s.rem.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	if err := s.local.PutCategories(categories); err != nil {
		return nil, err
	}
	return categories, nil
}

func (s *Store) CreateProduct(ctx context.Context, req CreateRequest) (*domain.Product, error) {
	req.Code = strings.TrimSpace(req.Code)
	req.Name = strings.TrimSpace(req.Name)
	if req.Code == "" || req.Name == "" {
		return nil, ErrInvalidProduct
	}
	if req.PurchasePriceCents < 0 || req.SalePriceCents < 1 || req.Stock < 0 {
		return nil, ErrInvalidProduct
	}

	exists, err := s.CheckCodeExists(ctx, req.Code, "")
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateCode
	}

	product := domain.Product{
		ID:                 uuid.NewString(),
		Code:               req.Code,
		Name:               req.Name,
		CategoryID:         req.CategoryID,
		PurchasePriceCents: req.PurchasePriceCents,
		SalePriceCents:     req.SalePriceCents,
		Stock:              req.Stock,
		CreatedAt:          time.Now().UTC(),
	}

	if err := s.local.PutProduct(product); err != nil {
		return nil, err
	}

	if s.conn.Online() {
		if len(req.Image) > 0 {
			url, err := s.uploadImage(ctx, req.Image)
			if err != nil {
				return nil, err
			}
			product.ImageURL = url
			if err := s.local.PutProduct(product); err != nil {
				return nil, err
			}
		}
		if err := s.rem.InsertProduct(ctx, product); err != nil {
			if errors.Is(err, remote.ErrDuplicateCode) {
				return nil, ErrDuplicateCode
			}
			return nil, fmt.Errorf("insert product: %w", err)
		}
		return &product, nil
	}

	payload := domain.ProductPayload{Product: product, PendingImage: req.Image}
	if _, err := s.local.AddPendingOperation(domain.OpCreate, domain.TableProducts, payload, 0, "", ""); err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, id string, req UpdateRequest) (*domain.Product, error) {
	existing, err := s.local.GetProduct(id)
	if err != nil {
		return nil, err
	}

	updated := *existing
	if req.Code != nil {
		code := strings.TrimSpace(*req.Code)
		if code == "" {
			return nil, ErrInvalidProduct
		}
		exists, err := s.CheckCodeExists(ctx, code, id)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrDuplicateCode
		}
		updated.Code = code
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, ErrInvalidProduct
		}
		updated.Name = name
	}
	if req.CategoryID != nil {
		updated.CategoryID = *req.CategoryID
	}
	if req.PurchasePriceCents != nil {
		if *req.PurchasePriceCents < 0 {
			return nil, ErrInvalidProduct
		}
		updated.PurchasePriceCents = *req.PurchasePriceCents
	}
	if req.SalePriceCents != nil {
		if *req.SalePriceCents < 1 {
			return nil, ErrInvalidProduct
		}
		updated.SalePriceCents = *req.SalePriceCents
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return nil, ErrInvalidProduct
		}
		updated.Stock = *req.Stock
	}

	if err := s.local.PutProduct(updated); err != nil {
		return nil, err
	}

	if s.conn.Online() {
		if len(req.Image) > 0 {
			url, err := s.uploadImage(ctx, req.Image)
			if err != nil {
				return nil, err
			}
			updated.ImageURL = url
			if err := s.local.PutProduct(updated); err != nil {
				return nil, err
			}
		}
		if err := s.rem.UpdateProduct(ctx, updated); err != nil {
			return nil, fmt.Errorf("update product: %w", err)
		}
		return &updated, nil
	}

	payload := domain.ProductPayload{Product: updated, PendingImage: req.Image}
	if _, err := s.local.AddPendingOperation(domain.OpUpdate, domain.TableProducts, payload, 0, "", ""); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Store) HideProduct(ctx context.Context, id string) error {
	return s.setHidden(ctx, id, true)
}

func (s *Store) UnhideProduct(ctx context.Context, id string) error {
	return s.setHidden(ctx, id, false)
}

func (s *Store) setHidden(ctx context.Context, id string, hidden bool) error {
	product, err := s.local.GetProduct(id)
	if err != nil {
		return err
	}
	product.IsHidden = hidden
	if err := s.local.PutProduct(*product); err != nil {
		return err
	}

	if s.conn.Online() {
		return s.rem.UpdateProduct(ctx, *product)
	}
	_, err = s.local.AddPendingOperation(domain.OpUpdate, domain.TableProducts, domain.ProductPayload{Product: *product}, 0, "", "")
	return err
}

// DeleteProduct hard-deletes a product. Blocked while any sale still
// references it; HideProduct is the soft-delete substitute.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	hasSales, err := s.CheckHasSales(ctx, id)
	if err != nil {
		return err
	}
	if hasSales {
		return ErrProductHasSales
	}

	product, err := s.local.GetProduct(id)
	if err != nil && !errors.Is(err, localstore.ErrNotFound) {
		return err
	}

	if err := s.local.DeleteProduct(id); err != nil {
		return err
	}

	if s.conn.Online() {
		if product != nil && product.ImageURL != "" {
			if err := s.blobs.Remove(ctx, imageName(product.ImageURL)); err != nil {
				log.Printf("[products] WARN: failed to remove image for %s: %v", id, err)
			}
		}
		return s.rem.DeleteProduct(ctx, id)
	}
	_, err = s.local.AddPendingOperation(domain.OpDelete, domain.TableProducts, domain.DeletePayload{ID: id}, 0, "", "")
	return err
}

func (s *Store) CheckHasSales(ctx context.Context, id string) (bool, error) {
	if s.conn.Online() {
		return s.rem.HasSaleItemsForProduct(ctx, id)
	}
	items, err := s.local.SaleItemsByProduct(id)
	if err != nil {
		return false, err
	}
	return len(items) > 0, nil
}

func (s *Store) CheckCodeExists(ctx context.Context, code string, excludeID string) (bool, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return false, nil
	}
	if s.conn.Online() {
		return s.rem.CodeExists(ctx, code, excludeID)
	}
	_, err := s.local.ProductByCode(code, excludeID)
	if errors.Is(err, localstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SyncPendingOperations reconciles stock accumulators and replays the
// products-table queue. Safe to invoke repeatedly; a second concurrent
// call returns immediately.
func (s *Store) SyncPendingOperations(ctx context.Context) error {
	if !s.drainMu.TryLock() {
		return nil
	}
	defer s.drainMu.Unlock()

	if !s.conn.Online() {
		return nil
	}

	if err := s.drainStockChanges(ctx); err != nil {
		return err
	}
	if err := s.drainQueue(ctx); err != nil {
		return err
	}

	if _, err := s.LoadProducts(ctx); err != nil {
		log.Printf("[products] WARN: reload after sync failed: %v", err)
	}
	return nil
}

// drainStockChanges applies the accumulated offline deltas on top of the
// authoritative remote stock: newStock = max(0, remoteStock - pending).
// The remote value may have moved (another terminal selling online), so
// the local count is never pushed as an absolute.
func (s *Store) drainStockChanges(ctx context.Context) error {
	pending, err := s.local.ProductsWithPendingStock()
	if err != nil {
		return err
	}

	for _, product := range pending {
		remoteStock, err := s.rem.GetProductStock(ctx, product.ID)
		if err != nil {
			log.Printf("[products] WARN: stock fetch failed for %s: %v", product.ID, err)
			continue
		}

		newStock := remoteStock - product.PendingStockChanges
		if newStock < 0 {
			newStock = 0
		}
		if err := s.rem.SetProductStock(ctx, product.ID, newStock); err != nil {
			log.Printf("[products] WARN: stock write failed for %s: %v", product.ID, err)
			continue
		}

		product.Stock = newStock
		product.PendingStockChanges = 0
		if err := s.local.PutProduct(product); err != nil {
			return err
		}
		log.Printf("[products] stock reconciled id=%s stock=%d", product.ID, newStock)
	}
	return nil
}

// drainQueue replays products-table operations in queue order. One
// operation failing never blocks the rest: foreign-key-class errors stay
// pending for the next drain, anything else is marked error and skipped.
func (s *Store) drainQueue(ctx context.Context) error {
	ops, err := s.local.PendingOperations()
	if err != nil {
		return err
	}

	for _, op := range ops {
		if op.Table != domain.TableProducts {
			continue
		}
		if err := s.local.UpdateOperationStatus(op.ID, domain.OpProcessing, ""); err != nil {
			return err
		}

		replayErr := s.replay(ctx, op)
		switch {
		case replayErr == nil:
			if err := s.local.DeleteOperation(op.ID); err != nil {
				return err
			}
		case errors.Is(replayErr, remote.ErrForeignKey):
			if err := s.local.UpdateOperationStatus(op.ID, domain.OpPending, ""); err != nil {
				return err
			}
		default:
			log.Printf("[products] operation %s failed: %v", op.ID, replayErr)
			if err := s.local.UpdateOperationStatus(op.ID, domain.OpError, replayErr.Error()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) replay(ctx context.Context, op domain.PendingOperation) error {
	payload, err := domain.DecodePayload(op)
	if err != nil {
		return err
	}

	switch p := payload.(type) {
	case *domain.ProductPayload:
		product := p.Product
		if len(p.PendingImage) > 0 {
			url, err := s.uploadImage(ctx, p.PendingImage)
			if err != nil {
				return err
			}
			product.ImageURL = url
		}
		if op.Kind == domain.OpCreate {
			return s.rem.InsertProduct(ctx, product)
		}
		return s.rem.UpdateProduct(ctx, product)
	case *domain.DeletePayload:
		return s.rem.DeleteProduct(ctx, p.ID)
	case *domain.StockUpdatePayload:
		return s.rem.SetProductStock(ctx, p.ID, p.Stock)
	}
	return fmt.Errorf("unsupported products operation %s", op.Kind)
}

func (s *Store) uploadImage(ctx context.Context, data []byte) (string, error) {
	name := uuid.NewString() + ".jpg"
	url, err := s.blobs.Upload(ctx, name, data, "image/jpeg")
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	return url, nil
}

// imageName extracts the blob name from a stored public URL.
func imageName(url string) string {
	if idx := strings.LastIndexByte(url, '/'); idx >= 0 {
		return url[idx+1:]
	}
	return url
}
