// Package stats derives the dashboard aggregates. Everything is a full
// recompute over the in-memory sale and product collections — no
// incremental maintenance, which is fine at single-shop volume.
package stats

import (
	"context"
	"time"

	"tiendafacil/terminal/internal/cache"
	"tiendafacil/terminal/internal/domain"
)

type Engine struct {
	cache cache.StatsCache
}

func NewEngine(c cache.StatsCache) *Engine {
	if c == nil {
		c = cache.NoopCache{}
	}
	return &Engine{cache: c}
}

// Summary returns the cached summary when present, otherwise recomputes
// from the loader's collections and caches the result.
func (e *Engine) Summary(ctx context.Context, load func(ctx context.Context) ([]domain.SaleWithItems, []domain.Product, error)) (domain.StatsSummary, error) {
	if cached, ok := e.cache.GetSummary(ctx); ok {
		return *cached, nil
	}

	sales, products, err := load(ctx)
	if err != nil {
		return domain.StatsSummary{}, err
	}

	summary := Compute(sales, products, time.Now())
	e.cache.SetSummary(ctx, summary)
	return summary, nil
}

// Invalidate drops the cached summary; called after every mutation.
func (e *Engine) Invalidate(ctx context.Context) {
	e.cache.Invalidate(ctx)
}

// Compute builds the full summary at a given instant. Period boundaries
// are local-midnight based: today, yesterday, the trailing 7 days, and
// the calendar month.
func Compute(sales []domain.SaleWithItems, products []domain.Product, now time.Time) domain.StatsSummary {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	yesterday := midnight.AddDate(0, 0, -1)
	weekStart := midnight.AddDate(0, 0, -6)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	productByID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		productByID[p.ID] = p
	}

	type window struct {
		from time.Time
		to   time.Time
	}
	periods := []window{
		{midnight, time.Time{}},  // today
		{yesterday, midnight},    // yesterday
		{weekStart, time.Time{}}, // week
		{monthStart, time.Time{}},
		{time.Time{}, time.Time{}}, // all time
	}

	stats := make([]domain.PeriodStats, len(periods))
	soldQty := make([]map[string]int, len(periods))
	for i := range soldQty {
		soldQty[i] = make(map[string]int)
	}

	for _, sale := range sales {
		for i, w := range periods {
			if !w.from.IsZero() && sale.Date.Before(w.from) {
				continue
			}
			if !w.to.IsZero() && !sale.Date.Before(w.to) {
				continue
			}
			stats[i].SaleCount++
			stats[i].TotalCents += sale.TotalCents
			for _, item := range sale.Items {
				stats[i].NetProfitCents += profit(item, productByID)
				soldQty[i][item.ProductID] += item.Quantity
			}
		}
	}

	for i := range stats {
		stats[i].MostSold = mostSold(soldQty[i], productByID)
	}

	summary := domain.StatsSummary{
		Today:        stats[0],
		Yesterday:    stats[1],
		Week:         stats[2],
		Month:        stats[3],
		AllTime:      stats[4],
		ProductCount: len(products),
		GeneratedAt:  now.UTC(),
	}
	for _, p := range products {
		summary.StockUnits += p.Stock
	}
	return summary
}

// profit uses the purchase price captured on the item's denormalized
// product copy when present, so old sales keep their margin even after
// the product's purchase price changes.
func profit(item domain.SaleItem, productByID map[string]domain.Product) int64 {
	var purchase int64
	if item.Product != nil {
		purchase = item.Product.PurchasePriceCents
	} else if p, ok := productByID[item.ProductID]; ok {
		purchase = p.PurchasePriceCents
	}
	return (item.PriceCents - purchase) * int64(item.Quantity)
}

func mostSold(qty map[string]int, productByID map[string]domain.Product) *domain.MostSoldProduct {
	var best *domain.MostSoldProduct
	for productID, sold := range qty {
		if sold == 0 {
			continue
		}
		name := productID
		if p, ok := productByID[productID]; ok {
			name = p.Name
		}
		if best == nil || sold > best.Quantity || (sold == best.Quantity && name < best.Name) {
			best = &domain.MostSoldProduct{ProductID: productID, Name: name, Quantity: sold}
		}
	}
	return best
}
