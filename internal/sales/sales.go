// Package sales owns the sale lifecycle and the queue drain that replays
// grouped sale mutations against the remote store. Grouping plus strict
// priority ordering encodes the parent-before-items dependency without a
// real foreign-key wait.
package sales

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"tiendafacil/terminal/internal/domain"
	"tiendafacil/terminal/internal/localstore"
	"tiendafacil/terminal/internal/products"
	"tiendafacil/terminal/internal/remote"
	"tiendafacil/terminal/internal/stats"
)

var (
	ErrEmptySale         = errors.New("sale has no items")
	ErrInvalidItem       = errors.New("invalid sale item")
	ErrInvalidPayment    = errors.New("invalid payment method")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Queue priorities within one sale group. Replay runs priority
// descending, so deletes of superseded items land before the sale row
// mutation, which lands before the new item rows.
const (
	prioItemDelete = 4
	prioSaleRow    = 3
	prioItemCreate = 2
)

type Store struct {
	local    *localstore.Store
	rem      remote.Store
	products *products.Store
	conn     products.Connectivity
	stats    *stats.Engine

	// drainMu guards SyncPendingSales against re-entrant invocation.
	drainMu sync.Mutex
}

func New(local *localstore.Store, rem remote.Store, prod *products.Store, conn products.Connectivity, engine *stats.Engine) *Store {
	return &Store{local: local, rem: rem, products: prod, conn: conn, stats: engine}
}

type CreateSaleRequest struct {
	PaymentMethod string               `json:"payment_method"`
	Items         []domain.NewSaleItem `json:"items"`
}

type UpdateSaleRequest struct {
	PaymentMethod *string              `json:"payment_method,omitempty"`
	Items         []domain.NewSaleItem `json:"items"`
}

func validPayment(method string) bool {
	return method == domain.PaymentQR || method == domain.PaymentCash
}

// CreateSale commits the sale locally, decrements stock, and mirrors it
// remotely right away or through a queued group. The local write always
// succeeds first; a remote failure leaves the optimistic local state in
// place and propagates to the caller.
func (s *Store) CreateSale(ctx context.Context, req CreateSaleRequest) (*domain.SaleWithItems, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptySale
	}
	if !validPayment(req.PaymentMethod) {
		return nil, ErrInvalidPayment
	}

	online := s.conn.Online()
	now := time.Now().UTC()

	// Quantities aggregate per product before the stock check: two lines
	// of the same product must not each validate against pristine stock.
	var total int64
	qty := make(map[string]int, len(req.Items))
	for _, line := range req.Items {
		if line.Quantity < 1 || line.PriceCents < 0 {
			return nil, ErrInvalidItem
		}
		qty[line.ProductID] += line.Quantity
		total += int64(line.Quantity) * line.PriceCents
	}
	saleProducts := make(map[string]*domain.Product, len(qty))
	for productID, q := range qty {
		p, err := s.local.GetProduct(productID)
		if err != nil {
			return nil, fmt.Errorf("sale product %s: %w", productID, err)
		}
		if q > p.Stock {
			return nil, fmt.Errorf("%w: product %s has %d", ErrInsufficientStock, p.Name, p.Stock)
		}
		saleProducts[productID] = p
	}

	sale := domain.Sale{
		ID:            uuid.NewString(),
		Date:          now,
		PaymentMethod: req.PaymentMethod,
		TotalCents:    total,
		CreatedAt:     now,
	}
	items := make([]domain.SaleItem, 0, len(req.Items))
	for _, line := range req.Items {
		items = append(items, domain.SaleItem{
			ID:         uuid.NewString(),
			SaleID:     sale.ID,
			ProductID:  line.ProductID,
			Quantity:   line.Quantity,
			PriceCents: line.PriceCents,
			CreatedAt:  now,
		})
	}

	if err := s.local.PutSale(sale); err != nil {
		return nil, err
	}
	for i := range items {
		local := items[i]
		local.Product = saleProducts[local.ProductID]
		if err := s.local.PutSaleItem(local); err != nil {
			return nil, err
		}
	}

	// Local stock moves immediately, once per product; the offline
	// accumulator records the decrement for later reconciliation against
	// the remote value.
	for productID, q := range qty {
		p := saleProducts[productID]
		p.Stock -= q
		if !online {
			p.PendingStockChanges += q
		}
		if err := s.local.PutProduct(*p); err != nil {
			return nil, err
		}
	}

	if online {
		if err := s.mirrorSale(ctx, sale, items, qty); err != nil {
			return nil, err
		}
	} else {
		if err := s.enqueueCreate(sale, items); err != nil {
			return nil, err
		}
	}

	s.stats.Invalidate(ctx)
	s.reload(ctx)
	return &domain.SaleWithItems{Sale: sale, Items: items}, nil
}

// mirrorSale pushes a fresh sale to the remote store. If the item insert
// fails the just-created remote sale row is deleted again so no headerless
// partial sale persists remotely.
func (s *Store) mirrorSale(ctx context.Context, sale domain.Sale, items []domain.SaleItem, qty map[string]int) error {
	if err := s.rem.InsertSale(ctx, sale); err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	if err := s.rem.InsertSaleItems(ctx, items); err != nil {
		if delErr := s.rem.DeleteSale(ctx, sale.ID); delErr != nil {
			log.Printf("[sales] WARN: compensating delete of sale %s failed: %v", sale.ID, delErr)
		}
		return fmt.Errorf("insert sale items: %w", err)
	}

	// Remote stock decrement is best-effort, not transactional with the
	// sale insert.
	for productID, q := range qty {
		remoteStock, err := s.rem.GetProductStock(ctx, productID)
		if err != nil {
			log.Printf("[sales] WARN: stock fetch failed for %s: %v", productID, err)
			continue
		}
		newStock := remoteStock - q
		if newStock < 0 {
			newStock = 0
		}
		if err := s.rem.SetProductStock(ctx, productID, newStock); err != nil {
			log.Printf("[sales] WARN: stock write failed for %s: %v", productID, err)
		}
	}
	return nil
}

func (s *Store) enqueueCreate(sale domain.Sale, items []domain.SaleItem) error {
	groupID := uuid.NewString()
	saleOp, err := s.local.AddPendingOperation(domain.OpCreate, domain.TableSales, sale, prioSaleRow, "", groupID)
	if err != nil {
		return err
	}
	for _, item := range items {
		item.Product = nil
		if _, err := s.local.AddPendingOperation(domain.OpCreate, domain.TableSaleItems, item, prioItemCreate, saleOp.ID, groupID); err != nil {
			return err
		}
	}
	return nil
}

// DeleteSale restores stock on every item's product and removes the sale
// locally right away; the queue only governs the remote mirror. Deleting
// a still-unsynced offline sale cancels its queued create group instead
// of queueing remote deletes that would target rows that never existed.
func (s *Store) DeleteSale(ctx context.Context, saleID string) error {
	if _, err := s.local.GetSale(saleID); err != nil {
		return err
	}
	items, err := s.local.SaleItemsBySale(saleID)
	if err != nil {
		return err
	}

	online := s.conn.Online()
	for _, item := range items {
		p, err := s.local.GetProduct(item.ProductID)
		if errors.Is(err, localstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		p.Stock += item.Quantity
		if !online {
			p.PendingStockChanges -= item.Quantity
		}
		if err := s.local.PutProduct(*p); err != nil {
			return err
		}
		if online {
			remoteStock, err := s.rem.GetProductStock(ctx, item.ProductID)
			if err != nil {
				log.Printf("[sales] WARN: stock fetch failed for %s: %v", item.ProductID, err)
				continue
			}
			if err := s.rem.SetProductStock(ctx, item.ProductID, remoteStock+item.Quantity); err != nil {
				log.Printf("[sales] WARN: stock restore failed for %s: %v", item.ProductID, err)
			}
		}
	}

	if err := s.local.DeleteSaleWithItems(saleID); err != nil {
		return err
	}

	if online {
		if err := s.rem.DeleteSaleItemsBySale(ctx, saleID); err != nil {
			return fmt.Errorf("delete sale items: %w", err)
		}
		if err := s.rem.DeleteSale(ctx, saleID); err != nil {
			return fmt.Errorf("delete sale: %w", err)
		}
	} else if createOp, _ := s.queuedCreateOp(saleID); createOp != nil {
		if _, err := s.local.DeleteOperationsByGroup(createOp.GroupID); err != nil {
			return err
		}
	} else {
		// Item deletes at 3, the sale row delete at 2: children vanish
		// before the parent row.
		groupID := uuid.NewString()
		for _, item := range items {
			if _, err := s.local.AddPendingOperation(domain.OpDelete, domain.TableSaleItems, domain.DeletePayload{ID: item.ID}, 3, "", groupID); err != nil {
				return err
			}
		}
		if _, err := s.local.AddPendingOperation(domain.OpDelete, domain.TableSales, domain.DeletePayload{ID: saleID}, 2, "", groupID); err != nil {
			return err
		}
	}

	s.stats.Invalidate(ctx)
	s.reload(ctx)
	return nil
}

// UpdateSale rewrites a sale's item set. Online it runs delete-then-
// reinsert remotely, the simplest strategy that avoids partial-update
// anomalies from per-item upserts. Offline it queues one group whose
// priorities encode the dependency order: old items out, sale row, new
// items in. Editing a sale that was itself created offline reuses the
// original group and sale id so the drained net effect is the latest
// edited state, never a stale intermediate.
func (s *Store) UpdateSale(ctx context.Context, saleID string, req UpdateSaleRequest) (*domain.SaleWithItems, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptySale
	}
	if req.PaymentMethod != nil && !validPayment(*req.PaymentMethod) {
		return nil, ErrInvalidPayment
	}

	sale, err := s.local.GetSale(saleID)
	if err != nil {
		return nil, err
	}
	originalItems, err := s.local.SaleItemsBySale(saleID)
	if err != nil {
		return nil, err
	}

	// Signed per-product delta: positive means more units sold than
	// before, so stock must fall by that much.
	delta := make(map[string]int)
	for _, item := range originalItems {
		delta[item.ProductID] -= item.Quantity
	}
	var total int64
	for _, line := range req.Items {
		if line.Quantity < 1 || line.PriceCents < 0 {
			return nil, ErrInvalidItem
		}
		delta[line.ProductID] += line.Quantity
		total += int64(line.Quantity) * line.PriceCents
	}

	touched := make(map[string]*domain.Product, len(delta))
	for productID, d := range delta {
		p, err := s.local.GetProduct(productID)
		if err != nil {
			return nil, fmt.Errorf("sale product %s: %w", productID, err)
		}
		if d > p.Stock {
			return nil, fmt.Errorf("%w: product %s has %d", ErrInsufficientStock, p.Name, p.Stock)
		}
		touched[productID] = p
	}

	online := s.conn.Online()
	now := time.Now().UTC()

	updated := *sale
	updated.TotalCents = total
	if req.PaymentMethod != nil {
		updated.PaymentMethod = *req.PaymentMethod
	}
	newItems := make([]domain.SaleItem, 0, len(req.Items))
	for _, line := range req.Items {
		newItems = append(newItems, domain.SaleItem{
			ID:         uuid.NewString(),
			SaleID:     saleID,
			ProductID:  line.ProductID,
			Quantity:   line.Quantity,
			PriceCents: line.PriceCents,
			CreatedAt:  now,
		})
	}

	if err := s.local.DeleteSaleWithItems(saleID); err != nil {
		return nil, err
	}
	if err := s.local.PutSale(updated); err != nil {
		return nil, err
	}
	for _, item := range newItems {
		item.Product = touched[item.ProductID]
		if err := s.local.PutSaleItem(item); err != nil {
			return nil, err
		}
	}

	for productID, d := range delta {
		if d == 0 {
			continue
		}
		p := touched[productID]
		p.Stock -= d
		if p.Stock < 0 {
			p.Stock = 0
		}
		if !online {
			p.PendingStockChanges += d
		}
		if err := s.local.PutProduct(*p); err != nil {
			return nil, err
		}
	}

	if online {
		if err := s.mirrorUpdate(ctx, updated, newItems, delta); err != nil {
			return nil, err
		}
	} else {
		if err := s.enqueueUpdate(updated, originalItems, newItems); err != nil {
			return nil, err
		}
		reminder := domain.SaleReminder{
			ID:        uuid.NewString(),
			SaleID:    saleID,
			Note:      "sale edited offline; verify after sync",
			CreatedAt: now,
			Status:    domain.ReminderPending,
		}
		if err := s.local.PutReminder(reminder); err != nil {
			return nil, err
		}
	}

	s.stats.Invalidate(ctx)
	s.reload(ctx)
	return &domain.SaleWithItems{Sale: updated, Items: newItems}, nil
}

func (s *Store) mirrorUpdate(ctx context.Context, sale domain.Sale, items []domain.SaleItem, delta map[string]int) error {
	if err := s.rem.DeleteSaleItemsBySale(ctx, sale.ID); err != nil {
		return fmt.Errorf("delete sale items: %w", err)
	}
	if err := s.rem.UpdateSale(ctx, sale); err != nil {
		return fmt.Errorf("update sale: %w", err)
	}
	if err := s.rem.InsertSaleItems(ctx, items); err != nil {
		return fmt.Errorf("insert sale items: %w", err)
	}

	for productID, d := range delta {
		if d == 0 {
			continue
		}
		remoteStock, err := s.rem.GetProductStock(ctx, productID)
		if err != nil {
			log.Printf("[sales] WARN: stock fetch failed for %s: %v", productID, err)
			continue
		}
		newStock := remoteStock - d
		if newStock < 0 {
			newStock = 0
		}
		if err := s.rem.SetProductStock(ctx, productID, newStock); err != nil {
			log.Printf("[sales] WARN: stock write failed for %s: %v", productID, err)
		}
	}
	return nil
}

// enqueueUpdate records an offline edit as one priority-ordered group.
// When the sale's own create is still queued, its group id is reused and
// the stale queued item creates are superseded so the drain realizes
// only the final edited state.
func (s *Store) enqueueUpdate(sale domain.Sale, originalItems []domain.SaleItem, newItems []domain.SaleItem) error {
	groupID := uuid.NewString()
	createOp, err := s.queuedCreateOp(sale.ID)
	if err != nil {
		return err
	}

	if createOp != nil {
		groupID = createOp.GroupID
		queued, err := s.local.Operations()
		if err != nil {
			return err
		}
		for _, op := range queued {
			if op.GroupID != groupID {
				continue
			}
			if op.Table == domain.TableSaleItems && op.Kind == domain.OpCreate {
				if err := s.local.DeleteOperation(op.ID); err != nil {
					return err
				}
			}
		}
		// The sale row never reached the remote store, so the queued
		// mutation stays a create, re-added with the edited totals.
		if err := s.local.DeleteOperation(createOp.ID); err != nil {
			return err
		}
		if _, err := s.local.AddPendingOperation(domain.OpCreate, domain.TableSales, sale, prioSaleRow, "", groupID); err != nil {
			return err
		}
	} else {
		if _, err := s.local.AddPendingOperation(domain.OpUpdate, domain.TableSales, sale, prioSaleRow, "", groupID); err != nil {
			return err
		}
	}

	for _, item := range originalItems {
		if _, err := s.local.AddPendingOperation(domain.OpDelete, domain.TableSaleItems, domain.DeletePayload{ID: item.ID}, prioItemDelete, "", groupID); err != nil {
			return err
		}
	}
	for _, item := range newItems {
		item.Product = nil
		if _, err := s.local.AddPendingOperation(domain.OpCreate, domain.TableSaleItems, item, prioItemCreate, "", groupID); err != nil {
			return err
		}
	}
	return nil
}

// queuedCreateOp finds the queued create for a sale that has not been
// synced yet, if any. The scan covers every queue status: a create that
// errored or was caught mid-replay by a crash still means the sale never
// reached the remote store.
func (s *Store) queuedCreateOp(saleID string) (*domain.PendingOperation, error) {
	ops, err := s.local.Operations()
	if err != nil {
		return nil, err
	}
	for _, op := range ops {
		if op.Table != domain.TableSales || op.Kind != domain.OpCreate {
			continue
		}
		payload, err := domain.DecodePayload(op)
		if err != nil {
			return nil, err
		}
		if sale, ok := payload.(*domain.Sale); ok && sale.ID == saleID {
			found := op
			return &found, nil
		}
	}
	return nil, nil
}

// LoadSales refreshes the local sales mirror from the remote store when
// online, keeping local-only sales whose create is still queued, and
// serves the mirror when offline.
func (s *Store) LoadSales(ctx context.Context) ([]domain.SaleWithItems, error) {
	if !s.conn.Online() {
		return s.localSales()
	}

	remoteSales, err := s.rem.ListSales(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sales: %w", err)
	}

	mirrorSales := make([]domain.Sale, 0, len(remoteSales))
	mirrorItems := make([]domain.SaleItem, 0, len(remoteSales)*2)
	seen := make(map[string]bool, len(remoteSales))
	for _, sale := range remoteSales {
		items, err := s.rem.ListSaleItems(ctx, sale.ID)
		if err != nil {
			return nil, fmt.Errorf("load sale items: %w", err)
		}
		mirrorSales = append(mirrorSales, sale)
		mirrorItems = append(mirrorItems, items...)
		seen[sale.ID] = true
	}

	// Unsynced offline sales only exist locally; the mirror swap must not
	// lose them.
	localSales, err := s.local.ListSales()
	if err != nil {
		return nil, err
	}
	for _, sale := range localSales {
		if seen[sale.ID] {
			continue
		}
		createOp, err := s.queuedCreateOp(sale.ID)
		if err != nil {
			return nil, err
		}
		if createOp == nil {
			continue
		}
		items, err := s.local.SaleItemsBySale(sale.ID)
		if err != nil {
			return nil, err
		}
		mirrorSales = append(mirrorSales, sale)
		mirrorItems = append(mirrorItems, items...)
	}

	if err := s.local.ReplaceSalesMirror(mirrorSales, mirrorItems); err != nil {
		return nil, err
	}
	return s.localSales()
}

func (s *Store) localSales() ([]domain.SaleWithItems, error) {
	sales, err := s.local.ListSales()
	if err != nil {
		return nil, err
	}
	result := make([]domain.SaleWithItems, 0, len(sales))
	for _, sale := range sales {
		items, err := s.local.SaleItemsBySale(sale.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, domain.SaleWithItems{Sale: sale, Items: items})
	}
	return result, nil
}

// SyncPendingSales is the drain entry point for the sales tables. It
// first runs the products drain (stock reconciliation and product
// creates must land before sale items reference them), then replays the
// remaining queue group by group in priority order.
func (s *Store) SyncPendingSales(ctx context.Context) error {
	if !s.drainMu.TryLock() {
		return nil
	}
	defer s.drainMu.Unlock()

	if !s.conn.Online() {
		return nil
	}

	if err := s.products.SyncPendingOperations(ctx); err != nil {
		return err
	}

	ops, err := s.local.PendingOperations()
	if err != nil {
		return err
	}

	// Group by groupId, preserving global replay order inside each group.
	groupOrder := make([]string, 0, 8)
	groups := make(map[string][]domain.PendingOperation, 8)
	hasProducts := make(map[string]bool, 8)
	for _, op := range ops {
		if _, ok := groups[op.GroupID]; !ok {
			groupOrder = append(groupOrder, op.GroupID)
		}
		groups[op.GroupID] = append(groups[op.GroupID], op)
		if op.Table == domain.TableProducts {
			hasProducts[op.GroupID] = true
		}
	}

	for _, groupID := range groupOrder {
		// Products-table groups belong to the products drain; touching
		// them here would double-process.
		if hasProducts[groupID] {
			continue
		}
		for _, op := range groups[groupID] {
			if err := s.replayOne(ctx, op); err != nil {
				return err
			}
		}
	}

	if _, err := s.LoadSales(ctx); err != nil {
		log.Printf("[sales] WARN: reload after sync failed: %v", err)
	}
	s.stats.Invalidate(ctx)
	return nil
}

func (s *Store) replayOne(ctx context.Context, op domain.PendingOperation) error {
	if err := s.local.UpdateOperationStatus(op.ID, domain.OpProcessing, ""); err != nil {
		return err
	}

	replayErr := s.replay(ctx, op)
	switch {
	case replayErr == nil:
		return s.local.DeleteOperation(op.ID)
	case errors.Is(replayErr, errProductNotSynced), errors.Is(replayErr, remote.ErrForeignKey):
		// Expected transient conditions during partial drains; the next
		// drain pass retries.
		return s.local.UpdateOperationStatus(op.ID, domain.OpPending, "")
	default:
		log.Printf("[sales] operation %s failed: %v", op.ID, replayErr)
		return s.local.UpdateOperationStatus(op.ID, domain.OpError, replayErr.Error())
	}
}

var errProductNotSynced = errors.New("referenced product not yet synced")

func (s *Store) replay(ctx context.Context, op domain.PendingOperation) error {
	payload, err := domain.DecodePayload(op)
	if err != nil {
		return err
	}

	switch p := payload.(type) {
	case *domain.Sale:
		if op.Kind == domain.OpUpdate {
			return s.rem.UpdateSale(ctx, *p)
		}
		// Upsert keeps a re-run after a crash mid-drain idempotent.
		return s.rem.UpsertSale(ctx, *p)
	case *domain.SaleItem:
		exists, err := s.rem.ProductExists(ctx, p.ProductID)
		if err != nil {
			return err
		}
		if !exists {
			// The product's own create may still be queued in another
			// group; leave this item pending instead of failing hard.
			return errProductNotSynced
		}
		return s.rem.UpsertSaleItem(ctx, *p)
	case *domain.DeletePayload:
		if op.Table == domain.TableSales {
			return s.rem.DeleteSale(ctx, p.ID)
		}
		return s.rem.DeleteSaleItem(ctx, p.ID)
	}
	return fmt.Errorf("unsupported sales operation %s/%s", op.Table, op.Kind)
}

// reload refreshes the local mirrors after a mutation so derived
// aggregates recompute from current data. Best-effort: mirror staleness
// self-heals on the next load.
func (s *Store) reload(ctx context.Context) {
	if !s.conn.Online() {
		return
	}
	if _, err := s.LoadSales(ctx); err != nil {
		log.Printf("[sales] WARN: sales reload failed: %v", err)
	}
	if _, err := s.products.LoadProducts(ctx); err != nil {
		log.Printf("[sales] WARN: products reload failed: %v", err)
	}
}

// Summary computes the dashboard aggregates from the local mirrors.
func (s *Store) Summary(ctx context.Context) (domain.StatsSummary, error) {
	return s.stats.Summary(ctx, func(context.Context) ([]domain.SaleWithItems, []domain.Product, error) {
		sales, err := s.localSales()
		if err != nil {
			return nil, nil, err
		}
		productList, err := s.local.ListProducts()
		if err != nil {
			return nil, nil, err
		}
		return sales, productList, nil
	})
}

// SyncStatus reports the shared online flag and queue depths.
func (s *Store) SyncStatus() (domain.SyncStatus, error) {
	pending, err := s.local.PendingOperations()
	if err != nil {
		return domain.SyncStatus{}, err
	}
	failed, err := s.local.FailedOperations()
	if err != nil {
		return domain.SyncStatus{}, err
	}
	return domain.SyncStatus{
		Online:  s.conn.Online(),
		Pending: len(pending),
		Failed:  len(failed),
	}, nil
}

// FailedOperations lists the queue entries stuck in the error state for
// operator diagnostics.
func (s *Store) FailedOperations() ([]domain.PendingOperation, error) {
	return s.local.FailedOperations()
}

// RetryFailed flips error operations back to pending and, when online,
// drains immediately. This is the manual reprocessing path; nothing
// retries error entries automatically.
func (s *Store) RetryFailed(ctx context.Context) (int, error) {
	count, err := s.local.RetryFailedOperations()
	if err != nil {
		return 0, err
	}
	if count > 0 && s.conn.Online() {
		if err := s.SyncPendingSales(ctx); err != nil {
			return count, err
		}
	}
	return count, nil
}

// --- sale reminders ---

func (s *Store) CreateReminder(saleID string, note string) (*domain.SaleReminder, error) {
	reminder := domain.SaleReminder{
		ID:        uuid.NewString(),
		SaleID:    saleID,
		Note:      note,
		CreatedAt: time.Now().UTC(),
		Status:    domain.ReminderPending,
	}
	if err := s.local.PutReminder(reminder); err != nil {
		return nil, err
	}
	return &reminder, nil
}

func (s *Store) Reminders(status string) ([]domain.SaleReminder, error) {
	return s.local.ListReminders(status)
}

func (s *Store) CompleteReminder(id string) error {
	return s.local.CompleteReminder(id)
}
