// Package localstore is the on-device durable mirror: the five entity
// collections plus the pending-operation queue. Every write is committed
// to disk before the call returns; multi-collection operations run inside
// a single bolt transaction.
package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"tiendafacil/terminal/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrIllegalTransition = errors.New("illegal operation status transition")
)

var (
	bucketProducts   = []byte("products")
	bucketSales      = []byte("sales")
	bucketSaleItems  = []byte("sale_items")
	bucketCategories = []byte("categories")
	bucketReminders  = []byte("sale_reminders")
	bucketQueue      = []byte("pending_operations")
)

var allBuckets = [][]byte{
	bucketProducts, bucketSales, bucketSaleItems,
	bucketCategories, bucketReminders, bucketQueue,
}

type Store struct {
	db *bolt.DB
}

func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init local store buckets: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func putJSON(b *bolt.Bucket, id string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put([]byte(id), raw)
}

func getJSON(b *bolt.Bucket, id string, v any) error {
	raw := b.Get([]byte(id))
	if raw == nil {
		return ErrNotFound
	}
	return json.Unmarshal(raw, v)
}

// --- products ---

func (s *Store) PutProduct(p domain.Product) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(bucketProducts), p.ID, p)
	})
}

// PutProducts bulk-writes a product mirror in one transaction.
func (s *Store) PutProducts(products []domain.Product) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProducts)
		for _, p := range products {
			if err := putJSON(b, p.ID, p); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) GetProduct(id string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(bucketProducts), id, &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) DeleteProduct(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProducts).Delete([]byte(id))
	})
}

func (s *Store) ListProducts() ([]domain.Product, error) {
	products := make([]domain.Product, 0, 64)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProducts).ForEach(func(_, raw []byte) error {
			var p domain.Product
			if err := json.Unmarshal(raw, &p); err != nil {
				return err
			}
			products = append(products, p)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmpString(a.Name, b.Name)
	})
	return products, nil
}

// ProductByCode matches the human-entered product code, optionally
// excluding one product id (the row being edited).
func (s *Store) ProductByCode(code string, excludeID string) (*domain.Product, error) {
	products, err := s.ListProducts()
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		if p.Code == code && p.ID != excludeID {
			found := p
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

// ProductsWithPendingStock selects every product whose offline stock
// accumulator still has to be reconciled against the remote value.
func (s *Store) ProductsWithPendingStock() ([]domain.Product, error) {
	products, err := s.ListProducts()
	if err != nil {
		return nil, err
	}
	pending := products[:0]
	for _, p := range products {
		if p.PendingStockChanges != 0 {
			pending = append(pending, p)
		}
	}
	return slices.Clone(pending), nil
}

// --- sales & sale items ---

func (s *Store) PutSale(sale domain.Sale) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(bucketSales), sale.ID, sale)
	})
}

func (s *Store) GetSale(id string) (*domain.Sale, error) {
	var sale domain.Sale
	err := s.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(bucketSales), id, &sale)
	})
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) ListSales() ([]domain.Sale, error) {
	sales := make([]domain.Sale, 0, 64)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSales).ForEach(func(_, raw []byte) error {
			var sale domain.Sale
			if err := json.Unmarshal(raw, &sale); err != nil {
				return err
			}
			sales = append(sales, sale)
			return nil
		})
	})
	if err != nil {
		return nil, err
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

func (s *Store) PutSaleItem(item domain.SaleItem) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(bucketSaleItems), item.ID, item)
	})
}

func (s *Store) SaleItemsBySale(saleID string) ([]domain.SaleItem, error) {
	return s.saleItemsWhere(func(it domain.SaleItem) bool { return it.SaleID == saleID })
}

func (s *Store) SaleItemsByProduct(productID string) ([]domain.SaleItem, error) {
	return s.saleItemsWhere(func(it domain.SaleItem) bool { return it.ProductID == productID })
}

func (s *Store) saleItemsWhere(match func(domain.SaleItem) bool) ([]domain.SaleItem, error) {
	items := make([]domain.SaleItem, 0, 16)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSaleItems).ForEach(func(_, raw []byte) error {
			var it domain.SaleItem
			if err := json.Unmarshal(raw, &it); err != nil {
				return err
			}
			if match(it) {
				items = append(items, it)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(items, func(a, b domain.SaleItem) int {
		return cmpString(a.ID, b.ID)
	})
	return items, nil
}

// DeleteSaleWithItems removes a sale and its items in one transaction.
// The queue only governs the remote mirror, so local removal is immediate
// regardless of connectivity.
func (s *Store) DeleteSaleWithItems(saleID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		items := tx.Bucket(bucketSaleItems)
		var stale [][]byte
		err := items.ForEach(func(key, raw []byte) error {
			var it domain.SaleItem
			if err := json.Unmarshal(raw, &it); err != nil {
				return err
			}
			if it.SaleID == saleID {
				stale = append(stale, slices.Clone(key))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, key := range stale {
			if err := items.Delete(key); err != nil {
				return err
			}
		}
		return tx.Bucket(bucketSales).Delete([]byte(saleID))
	})
}

// ReplaceSalesMirror atomically swaps the local sales+items mirror for the
// rows pulled from the remote store during an online reload.
func (s *Store) ReplaceSalesMirror(sales []domain.Sale, items []domain.SaleItem) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketSales, bucketSaleItems} {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		salesBucket := tx.Bucket(bucketSales)
		for _, sale := range sales {
			if err := putJSON(salesBucket, sale.ID, sale); err != nil {
				return err
			}
		}
		itemsBucket := tx.Bucket(bucketSaleItems)
		for _, item := range items {
			if err := putJSON(itemsBucket, item.ID, item); err != nil {
				return err
			}
		}
		return nil
	})
}

// --- categories ---

func (s *Store) PutCategories(categories []domain.Category) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCategories)
		for _, c := range categories {
			if err := putJSON(b, c.ID, c); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) ListCategories() ([]domain.Category, error) {
	categories := make([]domain.Category, 0, 16)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCategories).ForEach(func(_, raw []byte) error {
			var c domain.Category
			if err := json.Unmarshal(raw, &c); err != nil {
				return err
			}
			categories = append(categories, c)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(categories, func(a, b domain.Category) int {
		return cmpString(a.Name, b.Name)
	})
	return categories, nil
}

// --- sale reminders ---

func (s *Store) PutReminder(r domain.SaleReminder) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(bucketReminders), r.ID, r)
	})
}

func (s *Store) ListReminders(status string) ([]domain.SaleReminder, error) {
	reminders := make([]domain.SaleReminder, 0, 16)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketReminders).ForEach(func(_, raw []byte) error {
			var r domain.SaleReminder
			if err := json.Unmarshal(raw, &r); err != nil {
				return err
			}
			if status == "" || r.Status == status {
				reminders = append(reminders, r)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(reminders, func(a, b domain.SaleReminder) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.ID, b.ID)
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return reminders, nil
}

func (s *Store) CompleteReminder(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReminders)
		var r domain.SaleReminder
		if err := getJSON(b, id, &r); err != nil {
			return err
		}
		r.Status = domain.ReminderCompleted
		return putJSON(b, id, r)
	})
}

// --- pending-operation queue ---

// AddPendingOperation appends a queue entry. An operation with no explicit
// group is its own group: groupID defaults to a fresh uuid.
func (s *Store) AddPendingOperation(kind domain.OperationKind, table string, payload any, priority int, parentID string, groupID string) (domain.PendingOperation, error) {
	raw, err := domain.EncodePayload(payload)
	if err != nil {
		return domain.PendingOperation{}, err
	}
	if groupID == "" {
		groupID = uuid.NewString()
	}
	op := domain.PendingOperation{
		ID:        uuid.NewString(),
		Kind:      kind,
		Table:     table,
		Data:      raw,
		Timestamp: time.Now().UnixMilli(),
		Status:    domain.OpPending,
		Priority:  priority,
		ParentID:  parentID,
		GroupID:   groupID,
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(bucketQueue), op.ID, op)
	})
	if err != nil {
		return domain.PendingOperation{}, err
	}
	return op, nil
}

func (s *Store) GetOperation(id string) (*domain.PendingOperation, error) {
	var op domain.PendingOperation
	err := s.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(bucketQueue), id, &op)
	})
	if err != nil {
		return nil, err
	}
	return &op, nil
}

func (s *Store) operationsWhere(status domain.OperationStatus) ([]domain.PendingOperation, error) {
	ops := make([]domain.PendingOperation, 0, 32)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketQueue).ForEach(func(_, raw []byte) error {
			var op domain.PendingOperation
			if err := json.Unmarshal(raw, &op); err != nil {
				return err
			}
			if op.Status == status {
				ops = append(ops, op)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return ops, nil
}

// PendingOperations returns every pending entry in replay order: priority
// descending, products table ahead of the rest, then kind rank (stock
// corrections before dependent row mutations), then insertion order. This
// is what keeps grouped operations from interleaving destructively.
func (s *Store) PendingOperations() ([]domain.PendingOperation, error) {
	ops, err := s.operationsWhere(domain.OpPending)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(ops, func(a, b domain.PendingOperation) int {
		if a.Priority != b.Priority {
			return b.Priority - a.Priority
		}
		if a.Table != b.Table {
			if a.Table == domain.TableProducts {
				return -1
			}
			if b.Table == domain.TableProducts {
				return 1
			}
			return cmpString(a.Table, b.Table)
		}
		if a.Kind != b.Kind {
			return a.Kind.Rank() - b.Kind.Rank()
		}
		if a.Timestamp != b.Timestamp {
			if a.Timestamp < b.Timestamp {
				return -1
			}
			return 1
		}
		return cmpString(a.ID, b.ID)
	})
	return ops, nil
}

func (s *Store) FailedOperations() ([]domain.PendingOperation, error) {
	return s.operationsWhere(domain.OpError)
}

// Operations lists every queue entry regardless of status, unsorted.
// Whole-queue scans (unsynced-sale detection, group supersession) need
// entries in processing or error state too, which the replay-ordered
// PendingOperations view filters out.
func (s *Store) Operations() ([]domain.PendingOperation, error) {
	ops := make([]domain.PendingOperation, 0, 32)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketQueue).ForEach(func(_, raw []byte) error {
			var op domain.PendingOperation
			if err := json.Unmarshal(raw, &op); err != nil {
				return err
			}
			ops = append(ops, op)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return ops, nil
}

func legalTransition(from, to domain.OperationStatus) bool {
	switch from {
	case domain.OpPending:
		return to == domain.OpProcessing
	case domain.OpProcessing:
		// processing→pending re-queues a replay deferred by a transient
		// foreign-key condition; processing→error is a hard failure.
		return to == domain.OpPending || to == domain.OpError
	}
	return false
}

// UpdateOperationStatus moves a queue entry through the status machine.
// error→pending is not reachable here; RetryFailedOperations is the only
// path that resurrects failed entries.
func (s *Store) UpdateOperationStatus(id string, status domain.OperationStatus, errMsg string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketQueue)
		var op domain.PendingOperation
		if err := getJSON(b, id, &op); err != nil {
			return err
		}
		if !legalTransition(op.Status, status) {
			return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, op.Status, status)
		}
		if status == domain.OpError {
			op.RetryCount++
		}
		op.Status = status
		op.Error = errMsg
		return putJSON(b, id, op)
	})
}

// DeleteOperationsByGroup removes every queue entry in a group. Used to
// cancel a logical action whose effects never reached the remote store,
// e.g. deleting a sale that was created offline and is still unsynced.
func (s *Store) DeleteOperationsByGroup(groupID string) (int, error) {
	count := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketQueue)
		var stale [][]byte
		err := b.ForEach(func(key, raw []byte) error {
			var op domain.PendingOperation
			if err := json.Unmarshal(raw, &op); err != nil {
				return err
			}
			if op.GroupID == groupID {
				stale = append(stale, slices.Clone(key))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, key := range stale {
			if err := b.Delete(key); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteOperation removes a successfully replayed entry.
func (s *Store) DeleteOperation(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketQueue).Delete([]byte(id))
	})
}

// RetryFailedOperations flips every error entry back to pending so the
// next drain picks it up again. Returns how many were re-queued.
func (s *Store) RetryFailedOperations() (int, error) {
	count := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketQueue)
		var retry []domain.PendingOperation
		err := b.ForEach(func(_, raw []byte) error {
			var op domain.PendingOperation
			if err := json.Unmarshal(raw, &op); err != nil {
				return err
			}
			if op.Status == domain.OpError {
				retry = append(retry, op)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, op := range retry {
			op.Status = domain.OpPending
			op.Error = ""
			if err := putJSON(b, op.ID, op); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// RecoverProcessingOperations flips entries stranded in processing back
// to pending. A crash mid-replay leaves the status at processing, which
// no drain or diagnostic view would ever pick up again; replays are
// idempotent upserts, so re-running them on the next start is safe.
// Returns how many were recovered.
func (s *Store) RecoverProcessingOperations() (int, error) {
	count := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketQueue)
		var stranded []domain.PendingOperation
		err := b.ForEach(func(_, raw []byte) error {
			var op domain.PendingOperation
			if err := json.Unmarshal(raw, &op); err != nil {
				return err
			}
			if op.Status == domain.OpProcessing {
				stranded = append(stranded, op)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, op := range stranded {
			op.Status = domain.OpPending
			op.Error = ""
			if err := putJSON(b, op.ID, op); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ClearAllData atomically empties every collection and the queue. Full
// reset only (logout, test teardown), never partial sync.
func (s *Store) ClearAllData() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
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
