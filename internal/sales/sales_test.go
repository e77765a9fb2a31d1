package sales

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"tiendafacil/terminal/internal/cache"
	"tiendafacil/terminal/internal/domain"
	"tiendafacil/terminal/internal/localstore"
	"tiendafacil/terminal/internal/products"
	"tiendafacil/terminal/internal/remote/memory"
	"tiendafacil/terminal/internal/stats"
)

type fakeConn struct{ online bool }

func (f *fakeConn) Online() bool { return f.online }

type testEnv struct {
	local    *localstore.Store
	rem      *memory.Store
	conn     *fakeConn
	products *products.Store
	sales    *Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	local, err := localstore.Open(filepath.Join(t.TempDir(), "terminal.db"))
	if err != nil {
		t.Fatalf("open local store: %v", err)
	}
	t.Cleanup(func() { _ = local.Close() })

	rem := memory.New()
	conn := &fakeConn{online: true}
	prod := products.New(local, rem, rem, conn)
	engine := stats.NewEngine(cache.NoopCache{})
	return &testEnv{
		local:    local,
		rem:      rem,
		conn:     conn,
		products: prod,
		sales:    New(local, rem, prod, conn, engine),
	}
}

// seedProduct writes the product to both stores, as a completed online
// create would.
func (e *testEnv) seedProduct(t *testing.T, p domain.Product) {
	t.Helper()
	ctx := context.Background()
	if err := e.rem.InsertProduct(ctx, p); err != nil {
		t.Fatalf("seed remote product: %v", err)
	}
	if err := e.local.PutProduct(p); err != nil {
		t.Fatalf("seed local product: %v", err)
	}
}

func TestOfflineSalesReconcileStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedProduct(t, domain.Product{ID: "p1", Code: "A1", Name: "Beans", SalePriceCents: 2000, Stock: 10})
	env.conn.online = false

	for i := 0; i < 2; i++ {
		if _, err := env.sales.CreateSale(ctx, CreateSaleRequest{
			PaymentMethod: domain.PaymentCash,
			Items:         []domain.NewSaleItem{{ProductID: "p1", Quantity: 3, PriceCents: 2000}},
		}); err != nil {
			t.Fatalf("offline sale %d: %v", i, err)
		}
	}

	p, err := env.local.GetProduct("p1")
	if err != nil {
		t.Fatalf("local product: %v", err)
	}
	if p.Stock != 4 || p.PendingStockChanges != 6 {
		t.Fatalf("expected local 4/6, got %d/%d", p.Stock, p.PendingStockChanges)
	}

	env.conn.online = true
	if err := env.sales.SyncPendingSales(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}

	remoteStock, err := env.rem.GetProductStock(ctx, "p1")
	if err != nil {
		t.Fatalf("remote stock: %v", err)
	}
	if remoteStock != 4 {
		t.Fatalf("expected remote stock 4, got %d", remoteStock)
	}
	p, _ = env.local.GetProduct("p1")
	if p.Stock != 4 || p.PendingStockChanges != 0 {
		t.Fatalf("expected local 4/0 after drain, got %d/%d", p.Stock, p.PendingStockChanges)
	}

	remoteSales, _ := env.rem.ListSales(ctx)
	if len(remoteSales) != 2 {
		t.Fatalf("expected two remote sales, got %d", len(remoteSales))
	}
	pending, _ := env.local.PendingOperations()
	if len(pending) != 0 {
		t.Fatalf("expected drained queue, got %+v", pending)
	}
}

func TestOfflineSaleReplayIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedProduct(t, domain.Product{ID: "p1", Code: "A1", Name: "Beans", SalePriceCents: 2000, Stock: 10})
	env.conn.online = false

	sale, err := env.sales.CreateSale(ctx, CreateSaleRequest{
		PaymentMethod: domain.PaymentQR,
		Items:         []domain.NewSaleItem{{ProductID: "p1", Quantity: 2, PriceCents: 2000}},
	})
	if err != nil {
		t.Fatalf("offline sale: %v", err)
	}

	env.conn.online = true
	if err := env.sales.SyncPendingSales(ctx); err != nil {
		t.Fatalf("first drain: %v", err)
	}
	if err := env.sales.SyncPendingSales(ctx); err != nil {
		t.Fatalf("second drain: %v", err)
	}

	remoteSales, _ := env.rem.ListSales(ctx)
	if len(remoteSales) != 1 || remoteSales[0].ID != sale.ID {
		t.Fatalf("expected exactly the original sale, got %+v", remoteSales)
	}
	items, _ := env.rem.ListSaleItems(ctx, sale.ID)
	if len(items) != 1 || items[0].Quantity != 2 {
		t.Fatalf("expected the original single item, got %+v", items)
	}
}

func TestOnlineSaleUpdatesStockAndProfit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedProduct(t, domain.Product{ID: "p1", Code: "A1", Name: "Beans", PurchasePriceCents: 1200, SalePriceCents: 2000, Stock: 5})

	if _, err := env.sales.CreateSale(ctx, CreateSaleRequest{
		PaymentMethod: domain.PaymentCash,
		Items:         []domain.NewSaleItem{{ProductID: "p1", Quantity: 2, PriceCents: 2000}},
	}); err != nil {
		t.Fatalf("online sale: %v", err)
	}

	remoteStock, _ := env.rem.GetProductStock(ctx, "p1")
	if remoteStock != 3 {
		t.Fatalf("expected remote stock 3, got %d", remoteStock)
	}

	summary, err := env.sales.Summary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Today.SaleCount != 1 {
		t.Fatalf("expected one sale today, got %d", summary.Today.SaleCount)
	}
	if summary.Today.NetProfitCents != 1600 {
		t.Fatalf("expected profit 1600, got %d", summary.Today.NetProfitCents)
	}
	if summary.Today.MostSold == nil || summary.Today.MostSold.ProductID != "p1" {
		t.Fatalf("expected p1 most sold, got %+v", summary.Today.MostSold)
	}
}

func TestEditOfflineSaleKeepsGroupAndSaleID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedProduct(t, domain.Product{ID: "p1", Code: "A1", Name: "Beans", SalePriceCents: 2000, Stock: 10})
	env.seedProduct(t, domain.Product{ID: "p2", Code: "B2", Name: "Filters", SalePriceCents: 500, Stock: 10})
	env.conn.online = false

	sale, err := env.sales.CreateSale(ctx, CreateSaleRequest{
		PaymentMethod: domain.PaymentCash,
		Items:         []domain.NewSaleItem{{ProductID: "p1", Quantity: 3, PriceCents: 2000}},
	})
	if err != nil {
		t.Fatalf("offline sale: %v", err)
	}

	pending, _ := env.local.PendingOperations()
	if len(pending) == 0 {
		t.Fatalf("expected queued create group")
	}
	originalGroup := pending[0].GroupID

	if _, err := env.sales.UpdateSale(ctx, sale.ID, UpdateSaleRequest{
		Items: []domain.NewSaleItem{{ProductID: "p2", Quantity: 1, PriceCents: 500}},
	}); err != nil {
		t.Fatalf("offline edit: %v", err)
	}

	pending, _ = env.local.PendingOperations()
	if len(pending) == 0 {
		t.Fatalf("expected queued edit group")
	}
	var sawSaleRow bool
	for _, op := range pending {
		if op.GroupID != originalGroup {
			t.Fatalf("operation %s/%s left the original group: %s != %s", op.Table, op.Kind, op.GroupID, originalGroup)
		}
		if op.Table == domain.TableSales {
			payload, err := domain.DecodePayload(op)
			if err != nil {
				t.Fatalf("decode sale payload: %v", err)
			}
			queued := payload.(*domain.Sale)
			if queued.ID != sale.ID {
				t.Fatalf("queued sale id changed: %s != %s", queued.ID, sale.ID)
			}
			if op.Kind != domain.OpCreate {
				t.Fatalf("unsynced sale must stay a queued create, got %s", op.Kind)
			}
			sawSaleRow = true
		}
	}
	if !sawSaleRow {
		t.Fatalf("no sale row operation in edit group: %+v", pending)
	}

	env.conn.online = true
	if err := env.sales.SyncPendingSales(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}

	items, _ := env.rem.ListSaleItems(ctx, sale.ID)
	if len(items) != 1 || items[0].ProductID != "p2" || items[0].Quantity != 1 {
		t.Fatalf("drained state must be the edited sale, got %+v", items)
	}
	remoteStock, _ := env.rem.GetProductStock(ctx, "p1")
	if remoteStock != 10 {
		t.Fatalf("p1 stock must be fully restored, got %d", remoteStock)
	}
	p2Stock, _ := env.rem.GetProductStock(ctx, "p2")
	if p2Stock != 9 {
		t.Fatalf("p2 stock must reflect the edited sale, got %d", p2Stock)
	}
}

func TestEditOfflineCreatesReminder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedProduct(t, domain.Product{ID: "p1", Code: "A1", Name: "Beans", SalePriceCents: 2000, Stock: 10})

	sale, err := env.sales.CreateSale(ctx, CreateSaleRequest{
		PaymentMethod: domain.PaymentCash,
		Items:         []domain.NewSaleItem{{ProductID: "p1", Quantity: 1, PriceCents: 2000}},
	})
	if err != nil {
		t.Fatalf("online sale: %v", err)
	}

	env.conn.online = false
	if _, err := env.sales.UpdateSale(ctx, sale.ID, UpdateSaleRequest{
		Items: []domain.NewSaleItem{{ProductID: "p1", Quantity: 2, PriceCents: 2000}},
	}); err != nil {
		t.Fatalf("offline edit: %v", err)
	}

	reminders, err := env.sales.Reminders(domain.ReminderPending)
	if err != nil {
		t.Fatalf("reminders: %v", err)
	}
	if len(reminders) != 1 || reminders[0].SaleID != sale.ID {
		t.Fatalf("expected one pending reminder for the sale, got %+v", reminders)
	}

	if err := env.sales.CompleteReminder(reminders[0].ID); err != nil {
		t.Fatalf("complete reminder: %v", err)
	}
	reminders, _ = env.sales.Reminders(domain.ReminderPending)
	if len(reminders) != 0 {
		t.Fatalf("expected no pending reminders, got %+v", reminders)
	}
}

func TestUpdateSaleOnlineAppliesDeltas(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedProduct(t, domain.Product{ID: "p1", Code: "A1", Name: "Beans", SalePriceCents: 2000, Stock: 10})

	sale, err := env.sales.CreateSale(ctx, CreateSaleRequest{
		PaymentMethod: domain.PaymentCash,
		Items:         []domain.NewSaleItem{{ProductID: "p1", Quantity: 2, PriceCents: 2000}},
	})
	if err != nil {
		t.Fatalf("online sale: %v", err)
	}

	qr := domain.PaymentQR
	updated, err := env.sales.UpdateSale(ctx, sale.ID, UpdateSaleRequest{
		PaymentMethod: &qr,
		Items:         []domain.NewSaleItem{{ProductID: "p1", Quantity: 5, PriceCents: 1800}},
	})
	if err != nil {
		t.Fatalf("online edit: %v", err)
	}
	if updated.TotalCents != 9000 || updated.PaymentMethod != domain.PaymentQR {
		t.Fatalf("unexpected updated sale: %+v", updated.Sale)
	}

	// 2 sold, then edited to 5: remote stock 10-2-3.
	remoteStock, _ := env.rem.GetProductStock(ctx, "p1")
	if remoteStock != 5 {
		t.Fatalf("expected remote stock 5, got %d", remoteStock)
	}
	items, _ := env.rem.ListSaleItems(ctx, sale.ID)
	if len(items) != 1 || items[0].Quantity != 5 || items[0].PriceCents != 1800 {
		t.Fatalf("expected replaced items, got %+v", items)
	}
}

func TestDeleteSaleRestoresStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedProduct(t, domain.Product{ID: "p1", Code: "A1", Name: "Beans", SalePriceCents: 2000, Stock: 10})

	sale, err := env.sales.CreateSale(ctx, CreateSaleRequest{
		PaymentMethod: domain.PaymentCash,
		Items:         []domain.NewSaleItem{{ProductID: "p1", Quantity: 4, PriceCents: 2000}},
	})
	if err != nil {
		t.Fatalf("online sale: %v", err)
	}

	if err := env.sales.DeleteSale(ctx, sale.ID); err != nil {
		t.Fatalf("delete sale: %v", err)
	}

	remoteStock, _ := env.rem.GetProductStock(ctx, "p1")
	if remoteStock != 10 {
		t.Fatalf("expected restored stock 10, got %d", remoteStock)
	}
	remoteSales, _ := env.rem.ListSales(ctx)
	if len(remoteSales) != 0 {
		t.Fatalf("expected no remote sales, got %+v", remoteSales)
	}
	if _, err := env.local.GetSale(sale.ID); !errors.Is(err, localstore.ErrNotFound) {
		t.Fatalf("expected local sale gone, got %v", err)
	}
}

func TestDeleteUnsyncedOfflineSaleCancelsGroup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedProduct(t, domain.Product{ID: "p1", Code: "A1", Name: "Beans", SalePriceCents: 2000, Stock: 10})
	env.conn.online = false

	sale, err := env.sales.CreateSale(ctx, CreateSaleRequest{
		PaymentMethod: domain.PaymentCash,
		Items:         []domain.NewSaleItem{{ProductID: "p1", Quantity: 3, PriceCents: 2000}},
	})
	if err != nil {
		t.Fatalf("offline sale: %v", err)
	}

	if err := env.sales.DeleteSale(ctx, sale.ID); err != nil {
		t.Fatalf("delete offline sale: %v", err)
	}

	// The create never reached the remote store, so the whole group is
	// cancelled instead of queueing deletes for rows that never existed.
	pending, _ := env.local.PendingOperations()
	if len(pending) != 0 {
		t.Fatalf("expected cancelled queue, got %+v", pending)
	}
	p, _ := env.local.GetProduct("p1")
	if p.Stock != 10 || p.PendingStockChanges != 0 {
		t.Fatalf("expected stock bookkeeping back to 10/0, got %d/%d", p.Stock, p.PendingStockChanges)
	}

	env.conn.online = true
	if err := env.sales.SyncPendingSales(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	remoteSales, _ := env.rem.ListSales(ctx)
	if len(remoteSales) != 0 {
		t.Fatalf("cancelled sale must never reach the remote store, got %+v", remoteSales)
	}
}

func TestOfflineDeleteOfSyncedSaleQueuesGroup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedProduct(t, domain.Product{ID: "p1", Code: "A1", Name: "Beans", SalePriceCents: 2000, Stock: 10})

	sale, err := env.sales.CreateSale(ctx, CreateSaleRequest{
		PaymentMethod: domain.PaymentCash,
		Items:         []domain.NewSaleItem{{ProductID: "p1", Quantity: 3, PriceCents: 2000}},
	})
	if err != nil {
		t.Fatalf("online sale: %v", err)
	}

	env.conn.online = false
	if err := env.sales.DeleteSale(ctx, sale.ID); err != nil {
		t.Fatalf("offline delete: %v", err)
	}

	pending, _ := env.local.PendingOperations()
	if len(pending) != 2 {
		t.Fatalf("expected item delete + sale delete, got %+v", pending)
	}
	// Item deletes replay ahead of the sale delete.
	if pending[0].Table != domain.TableSaleItems || pending[0].Kind != domain.OpDelete {
		t.Fatalf("expected sale_items delete first, got %+v", pending[0])
	}
	if pending[1].Table != domain.TableSales || pending[1].Kind != domain.OpDelete {
		t.Fatalf("expected sales delete second, got %+v", pending[1])
	}

	env.conn.online = true
	if err := env.sales.SyncPendingSales(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	remoteSales, _ := env.rem.ListSales(ctx)
	if len(remoteSales) != 0 {
		t.Fatalf("expected remote sale removed, got %+v", remoteSales)
	}
	remoteStock, _ := env.rem.GetProductStock(ctx, "p1")
	if remoteStock != 10 {
		t.Fatalf("expected stock restored to 10, got %d", remoteStock)
	}
}

func TestItemForUnknownProductStaysPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// A sale item whose product never made it to the remote store: the
	// drain leaves it pending for a later pass instead of failing hard.
	if _, err := env.local.AddPendingOperation(domain.OpCreate, domain.TableSales, domain.Sale{ID: "s1", PaymentMethod: domain.PaymentCash}, 3, "", "grp"); err != nil {
		t.Fatalf("enqueue sale: %v", err)
	}
	if _, err := env.local.AddPendingOperation(domain.OpCreate, domain.TableSaleItems, domain.SaleItem{ID: "i1", SaleID: "s1", ProductID: "ghost", Quantity: 1}, 2, "", "grp"); err != nil {
		t.Fatalf("enqueue item: %v", err)
	}

	if err := env.sales.SyncPendingSales(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}

	pending, _ := env.local.PendingOperations()
	if len(pending) != 1 || pending[0].Table != domain.TableSaleItems {
		t.Fatalf("expected the item to stay pending, got %+v", pending)
	}
	failed, _ := env.local.FailedOperations()
	if len(failed) != 0 {
		t.Fatalf("pending deferral must not mark error, got %+v", failed)
	}
}

func TestCreateSaleValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedProduct(t, domain.Product{ID: "p1", Code: "A1", Name: "Beans", SalePriceCents: 2000, Stock: 2})

	if _, err := env.sales.CreateSale(ctx, CreateSaleRequest{PaymentMethod: domain.PaymentCash}); !errors.Is(err, ErrEmptySale) {
		t.Fatalf("expected empty sale error, got %v", err)
	}
	if _, err := env.sales.CreateSale(ctx, CreateSaleRequest{
		PaymentMethod: "CARD",
		Items:         []domain.NewSaleItem{{ProductID: "p1", Quantity: 1, PriceCents: 2000}},
	}); !errors.Is(err, ErrInvalidPayment) {
		t.Fatalf("expected invalid payment, got %v", err)
	}
	if _, err := env.sales.CreateSale(ctx, CreateSaleRequest{
		PaymentMethod: domain.PaymentCash,
		Items:         []domain.NewSaleItem{{ProductID: "p1", Quantity: 3, PriceCents: 2000}},
	}); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
}

func TestDuplicateSaleLinesAggregateStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedProduct(t, domain.Product{ID: "p1", Code: "A1", Name: "Beans", SalePriceCents: 2000, Stock: 5})
	env.conn.online = false

	// Two lines of the same product must validate against the summed
	// quantity, not each against pristine stock.
	_, err := env.sales.CreateSale(ctx, CreateSaleRequest{
		PaymentMethod: domain.PaymentCash,
		Items: []domain.NewSaleItem{
			{ProductID: "p1", Quantity: 3, PriceCents: 2000},
			{ProductID: "p1", Quantity: 3, PriceCents: 2000},
		},
	})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock for 3+3 of 5, got %v", err)
	}
	p, _ := env.local.GetProduct("p1")
	if p.Stock != 5 || p.PendingStockChanges != 0 {
		t.Fatalf("rejected sale must not touch stock, got %d/%d", p.Stock, p.PendingStockChanges)
	}

	sale, err := env.sales.CreateSale(ctx, CreateSaleRequest{
		PaymentMethod: domain.PaymentCash,
		Items: []domain.NewSaleItem{
			{ProductID: "p1", Quantity: 2, PriceCents: 2000},
			{ProductID: "p1", Quantity: 2, PriceCents: 2000},
		},
	})
	if err != nil {
		t.Fatalf("offline sale: %v", err)
	}
	if len(sale.Items) != 2 {
		t.Fatalf("expected both lines kept, got %+v", sale.Items)
	}
	p, _ = env.local.GetProduct("p1")
	if p.Stock != 1 || p.PendingStockChanges != 4 {
		t.Fatalf("expected local 1/4 after 2+2 of 5, got %d/%d", p.Stock, p.PendingStockChanges)
	}

	env.conn.online = true
	if err := env.sales.SyncPendingSales(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	remoteStock, _ := env.rem.GetProductStock(ctx, "p1")
	if remoteStock != 1 {
		t.Fatalf("expected remote stock 1, got %d", remoteStock)
	}
}

func TestLoadSalesKeepsSaleWithFailedCreate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedProduct(t, domain.Product{ID: "p1", Code: "A1", Name: "Beans", SalePriceCents: 2000, Stock: 10})
	env.conn.online = false

	sale, err := env.sales.CreateSale(ctx, CreateSaleRequest{
		PaymentMethod: domain.PaymentCash,
		Items:         []domain.NewSaleItem{{ProductID: "p1", Quantity: 2, PriceCents: 2000}},
	})
	if err != nil {
		t.Fatalf("offline sale: %v", err)
	}

	// A hard remote failure marks the queued group error; the sale still
	// only exists locally and must survive the next mirror refresh.
	pending, _ := env.local.PendingOperations()
	for _, op := range pending {
		if err := env.local.UpdateOperationStatus(op.ID, domain.OpProcessing, ""); err != nil {
			t.Fatalf("to processing: %v", err)
		}
		if err := env.local.UpdateOperationStatus(op.ID, domain.OpError, "boom"); err != nil {
			t.Fatalf("to error: %v", err)
		}
	}

	env.conn.online = true
	list, err := env.sales.LoadSales(ctx)
	if err != nil {
		t.Fatalf("load sales: %v", err)
	}
	var kept bool
	for _, s := range list {
		if s.ID == sale.ID {
			kept = true
		}
	}
	if !kept {
		t.Fatalf("sale with failed queued create dropped from mirror: %+v", list)
	}
	items, _ := env.local.SaleItemsBySale(sale.ID)
	if len(items) != 1 {
		t.Fatalf("expected the sale's items preserved, got %+v", items)
	}
}

func TestSyncStatusCountsQueue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedProduct(t, domain.Product{ID: "p1", Code: "A1", Name: "Beans", SalePriceCents: 2000, Stock: 10})
	env.conn.online = false

	if _, err := env.sales.CreateSale(ctx, CreateSaleRequest{
		PaymentMethod: domain.PaymentCash,
		Items:         []domain.NewSaleItem{{ProductID: "p1", Quantity: 1, PriceCents: 2000}},
	}); err != nil {
		t.Fatalf("offline sale: %v", err)
	}

	status, err := env.sales.SyncStatus()
	if err != nil {
		t.Fatalf("sync status: %v", err)
	}
	if status.Online || status.Pending != 2 || status.Failed != 0 {
		t.Fatalf("unexpected status %+v", status)
	}
}
