package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"tiendafacil/terminal/internal/domain"
	"tiendafacil/terminal/internal/remote"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	s, err := NewLazy(databaseURL)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := s.db.PingContext(pingCtx); err != nil {
		_ = s.db.Close()
		return nil, err
	}
	return s, nil
}

// NewLazy builds the store without probing the backend, so the terminal
// can boot offline and connect whenever the monitor first sees it up.
func NewLazy(databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 4*time.Second)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

const productColumns = `id, code, name, category_id, purchase_price_cents, sale_price_cents, stock, is_hidden, COALESCE(image_url, ''), created_at`

func scanProduct(row interface{ Scan(...any) error }) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.CategoryID, &p.PurchasePriceCents,
		&p.SalePriceCents, &p.Stock, &p.IsHidden, &p.ImageURL, &p.CreatedAt)
	return p, err
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, remote.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetProductStock(ctx context.Context, id string) (int, error) {
	var stock int
	err := s.db.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = $1`, id).Scan(&stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, remote.ErrNotFound
		}
		return 0, err
	}
	return stock, nil
}

func (s *Store) SetProductStock(ctx context.Context, id string, stock int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE products SET stock = $2 WHERE id = $1`, id, stock)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return remote.ErrNotFound
	}
	return nil
}

func (s *Store) InsertProduct(ctx context.Context, p domain.Product) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, code, name, category_id, purchase_price_cents, sale_price_cents, stock, is_hidden, image_url, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NULLIF($9,''),$10)
	`, p.ID, p.Code, p.Name, p.CategoryID, p.PurchasePriceCents, p.SalePriceCents,
		p.Stock, p.IsHidden, p.ImageURL, p.CreatedAt)
	return classify(err)
}

func (s *Store) UpdateProduct(ctx context.Context, p domain.Product) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET code = $2, name = $3, category_id = $4, purchase_price_cents = $5,
		    sale_price_cents = $6, stock = $7, is_hidden = $8, image_url = NULLIF($9,'')
		WHERE id = $1
	`, p.ID, p.Code, p.Name, p.CategoryID, p.PurchasePriceCents, p.SalePriceCents,
		p.Stock, p.IsHidden, p.ImageURL)
	if err != nil {
		return classify(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return remote.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	return classify(err)
}

func (s *Store) ProductExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (s *Store) CodeExists(ctx context.Context, code string, excludeID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM products WHERE code = $1 AND id <> $2)
	`, code, excludeID).Scan(&exists)
	return exists, err
}

func (s *Store) HasSaleItemsForProduct(ctx context.Context, productID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM sale_items WHERE product_id = $1)
	`, productID).Scan(&exists)
	return exists, err
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.Category, 0, 16)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *Store) ListSales(ctx context.Context) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, payment_method, total_cents, created_at
		FROM sales
		ORDER BY date DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 128)
	for rows.Next() {
		var sale domain.Sale
		if err := rows.Scan(&sale.ID, &sale.Date, &sale.PaymentMethod, &sale.TotalCents, &sale.CreatedAt); err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

func (s *Store) InsertSale(ctx context.Context, sale domain.Sale) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sales (id, date, payment_method, total_cents, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, sale.ID, sale.Date, sale.PaymentMethod, sale.TotalCents, sale.CreatedAt)
	return classify(err)
}

func (s *Store) UpsertSale(ctx context.Context, sale domain.Sale) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sales (id, date, payment_method, total_cents, created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE
		SET date = EXCLUDED.date, payment_method = EXCLUDED.payment_method, total_cents = EXCLUDED.total_cents
	`, sale.ID, sale.Date, sale.PaymentMethod, sale.TotalCents, sale.CreatedAt)
	return classify(err)
}

func (s *Store) UpdateSale(ctx context.Context, sale domain.Sale) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sales
		SET payment_method = $2, total_cents = $3
		WHERE id = $1
	`, sale.ID, sale.PaymentMethod, sale.TotalCents)
	if err != nil {
		return classify(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return remote.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteSale(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id)
	return classify(err)
}

func (s *Store) ListSaleItems(ctx context.Context, saleID string) ([]domain.SaleItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_id, product_id, quantity, price_cents, created_at
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.SaleItem, 0, 8)
	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.Quantity, &item.PriceCents, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) InsertSaleItems(ctx context.Context, items []domain.SaleItem) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, item := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sale_items (id, sale_id, product_id, quantity, price_cents, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, item.ID, item.SaleID, item.ProductID, item.Quantity, item.PriceCents, item.CreatedAt)
		if err != nil {
			return classify(err)
		}
	}
	return tx.Commit()
}

func (s *Store) UpsertSaleItem(ctx context.Context, item domain.SaleItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sale_items (id, sale_id, product_id, quantity, price_cents, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE
		SET quantity = EXCLUDED.quantity, price_cents = EXCLUDED.price_cents
	`, item.ID, item.SaleID, item.ProductID, item.Quantity, item.PriceCents, item.CreatedAt)
	return classify(err)
}

func (s *Store) DeleteSaleItem(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sale_items WHERE id = $1`, id)
	return classify(err)
}

func (s *Store) DeleteSaleItemsBySale(ctx context.Context, saleID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, saleID)
	return classify(err)
}

// Upload stores a product image and returns the public path the UI serves
// it from.
func (s *Store) Upload(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO product_images (name, data, content_type, created_at)
		VALUES ($1,$2,$3,now())
		ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, content_type = EXCLUDED.content_type
	`, name, data, contentType)
	if err != nil {
		return "", err
	}
	return "/images/" + name, nil
}

func (s *Store) Remove(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM product_images WHERE name = $1`, name)
	return err
}

// classify maps SQLSTATE classes onto the adapter's sentinel errors:
// 23505 unique violations surface as duplicate codes, 23503 foreign-key
// violations as the transient replay class.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, remote.ErrDuplicateCode)
		case "23503":
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, remote.ErrForeignKey)
		}
	}
	return err
}
