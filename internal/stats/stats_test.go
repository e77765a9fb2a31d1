package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"tiendafacil/terminal/internal/cache"
	"tiendafacil/terminal/internal/domain"
)

func saleAt(date time.Time, items ...domain.SaleItem) domain.SaleWithItems {
	var total int64
	for _, item := range items {
		total += int64(item.Quantity) * item.PriceCents
	}
	return domain.SaleWithItems{
		Sale:  domain.Sale{ID: date.Format(time.RFC3339Nano), Date: date, TotalCents: total},
		Items: items,
	}
}

func TestComputePeriodWindows(t *testing.T) {
	now := time.Date(2026, 3, 15, 14, 0, 0, 0, time.UTC)
	products := []domain.Product{
		{ID: "p1", Name: "Beans", PurchasePriceCents: 1200, Stock: 7},
		{ID: "p2", Name: "Filters", PurchasePriceCents: 100, Stock: 3},
	}

	sales := []domain.SaleWithItems{
		saleAt(now.Add(-time.Hour), domain.SaleItem{ProductID: "p1", Quantity: 2, PriceCents: 2000}),           // today
		saleAt(now.Add(-26*time.Hour), domain.SaleItem{ProductID: "p1", Quantity: 1, PriceCents: 2000}),        // yesterday
		saleAt(now.AddDate(0, 0, -5), domain.SaleItem{ProductID: "p2", Quantity: 10, PriceCents: 500}),         // this week
		saleAt(now.AddDate(0, 0, -40), domain.SaleItem{ProductID: "p2", Quantity: 1, PriceCents: 500}),         // older
	}

	summary := Compute(sales, products, now)

	if summary.Today.SaleCount != 1 || summary.Today.TotalCents != 4000 {
		t.Fatalf("unexpected today: %+v", summary.Today)
	}
	if summary.Today.NetProfitCents != 1600 {
		t.Fatalf("expected today profit 1600, got %d", summary.Today.NetProfitCents)
	}
	if summary.Yesterday.SaleCount != 1 || summary.Yesterday.NetProfitCents != 800 {
		t.Fatalf("unexpected yesterday: %+v", summary.Yesterday)
	}
	// Week includes today and yesterday plus the 5-day-old sale.
	if summary.Week.SaleCount != 3 {
		t.Fatalf("expected 3 sales this week, got %d", summary.Week.SaleCount)
	}
	if summary.AllTime.SaleCount != 4 {
		t.Fatalf("expected 4 sales all time, got %d", summary.AllTime.SaleCount)
	}

	if summary.Week.MostSold == nil || summary.Week.MostSold.ProductID != "p2" || summary.Week.MostSold.Quantity != 10 {
		t.Fatalf("unexpected week most sold: %+v", summary.Week.MostSold)
	}
	if summary.Today.MostSold == nil || summary.Today.MostSold.ProductID != "p1" {
		t.Fatalf("unexpected today most sold: %+v", summary.Today.MostSold)
	}

	if summary.StockUnits != 10 || summary.ProductCount != 2 {
		t.Fatalf("unexpected inventory counts: %d units, %d products", summary.StockUnits, summary.ProductCount)
	}
}

func TestProfitUsesPurchasePriceAtSaleTime(t *testing.T) {
	now := time.Now()
	// The denormalized copy captured purchase price 1000; the live
	// product has since been repriced to 1500.
	snapshot := &domain.Product{ID: "p1", PurchasePriceCents: 1000}
	sales := []domain.SaleWithItems{
		saleAt(now, domain.SaleItem{ProductID: "p1", Quantity: 1, PriceCents: 2000, Product: snapshot}),
	}
	products := []domain.Product{{ID: "p1", Name: "Beans", PurchasePriceCents: 1500}}

	summary := Compute(sales, products, now)
	if summary.Today.NetProfitCents != 1000 {
		t.Fatalf("expected profit from the sale-time price, got %d", summary.Today.NetProfitCents)
	}
}

type countingCache struct {
	cache.NoopCache
	stored *domain.StatsSummary
	gets   int
	sets   int
}

func (c *countingCache) GetSummary(context.Context) (*domain.StatsSummary, bool) {
	c.gets++
	if c.stored == nil {
		return nil, false
	}
	return c.stored, true
}

func (c *countingCache) SetSummary(_ context.Context, summary domain.StatsSummary) {
	c.sets++
	c.stored = &summary
}

func (c *countingCache) Invalidate(context.Context) { c.stored = nil }

func TestSummaryReadsThroughCache(t *testing.T) {
	cc := &countingCache{}
	engine := NewEngine(cc)
	ctx := context.Background()

	loads := 0
	load := func(context.Context) ([]domain.SaleWithItems, []domain.Product, error) {
		loads++
		return nil, []domain.Product{{ID: "p1", Stock: 2}}, nil
	}

	if _, err := engine.Summary(ctx, load); err != nil {
		t.Fatalf("first summary: %v", err)
	}
	if _, err := engine.Summary(ctx, load); err != nil {
		t.Fatalf("second summary: %v", err)
	}
	if loads != 1 || cc.sets != 1 {
		t.Fatalf("expected one compute and one cache fill, got loads=%d sets=%d", loads, cc.sets)
	}

	engine.Invalidate(ctx)
	if _, err := engine.Summary(ctx, load); err != nil {
		t.Fatalf("post-invalidate summary: %v", err)
	}
	if loads != 2 {
		t.Fatalf("invalidate must force a recompute, got %d loads", loads)
	}
}

func TestSummaryPropagatesLoadError(t *testing.T) {
	engine := NewEngine(cache.NoopCache{})
	wantErr := errors.New("mirror unavailable")

	_, err := engine.Summary(context.Background(), func(context.Context) ([]domain.SaleWithItems, []domain.Product, error) {
		return nil, nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected load error, got %v", err)
	}
}
