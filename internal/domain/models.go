package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type Product struct {
	ID                  string    `json:"id"`
	Code                string    `json:"code"`
	Name                string    `json:"name"`
	CategoryID          string    `json:"category_id"`
	PurchasePriceCents  int64     `json:"purchase_price_cents"`
	SalePriceCents      int64     `json:"sale_price_cents"`
	Stock               int       `json:"stock"`
	PendingStockChanges int       `json:"pending_stock_changes"`
	IsHidden            bool      `json:"is_hidden"`
	ImageURL            string    `json:"image_url,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

const (
	PaymentQR   = "QR"
	PaymentCash = "CASH"
)

type Sale struct {
	ID            string    `json:"id"`
	Date          time.Time `json:"date"`
	PaymentMethod string    `json:"payment_method"`
	TotalCents    int64     `json:"total_cents"`
	CreatedAt     time.Time `json:"created_at"`
}

// SaleItem carries a denormalized product copy so offline sale lists can
// render without a product lookup. The copy is local-only; remote writes
// use only the flat columns.
type SaleItem struct {
	ID         string    `json:"id"`
	SaleID     string    `json:"sale_id"`
	ProductID  string    `json:"product_id"`
	Quantity   int       `json:"quantity"`
	PriceCents int64     `json:"price_cents"`
	CreatedAt  time.Time `json:"created_at"`
	Product    *Product  `json:"product,omitempty"`
}

type SaleWithItems struct {
	Sale
	Items []SaleItem `json:"items"`
}

type NewSaleItem struct {
	ProductID  string `json:"product_id"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
}

const (
	ReminderPending   = "pending"
	ReminderCompleted = "completed"
)

// SaleReminder marks a sale edit that was attempted offline and has to be
// redone by the user once the remote store is reachable again.
type SaleReminder struct {
	ID        string    `json:"id"`
	SaleID    string    `json:"sale_id"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
	Status    string    `json:"status"`
}

type OperationKind string

const (
	OpStockUpdate OperationKind = "stock_update"
	OpCreate      OperationKind = "create"
	OpUpdate      OperationKind = "update"
	OpDelete      OperationKind = "delete"
)

// Rank orders replay within equal priority: stock corrections first, then
// create before update before delete.
func (k OperationKind) Rank() int {
	switch k {
	case OpStockUpdate:
		return 0
	case OpCreate:
		return 1
	case OpUpdate:
		return 2
	case OpDelete:
		return 3
	}
	return 4
}

const (
	TableProducts  = "products"
	TableSales     = "sales"
	TableSaleItems = "sale_items"
)

type OperationStatus string

const (
	OpPending    OperationStatus = "pending"
	OpProcessing OperationStatus = "processing"
	OpError      OperationStatus = "error"
)

// PendingOperation is one queued remote mutation. Data is a tagged union
// keyed by (Table, Kind); use the typed payload helpers below rather than
// touching the raw message.
type PendingOperation struct {
	ID         string          `json:"id"`
	Kind       OperationKind   `json:"type"`
	Table      string          `json:"table"`
	Data       json.RawMessage `json:"data"`
	Timestamp  int64           `json:"timestamp"`
	Status     OperationStatus `json:"status"`
	Error      string          `json:"error,omitempty"`
	RetryCount int             `json:"retry_count"`
	Priority   int             `json:"priority"`
	ParentID   string          `json:"parent_id,omitempty"`
	GroupID    string          `json:"group_id"`
}

// ProductPayload rides create/update operations on the products table.
// PendingImage defers an image upload until the operation is replayed.
type ProductPayload struct {
	Product
	PendingImage []byte `json:"pending_image,omitempty"`
}

type DeletePayload struct {
	ID string `json:"id"`
}

type StockUpdatePayload struct {
	ID    string `json:"id"`
	Stock int    `json:"stock"`
}

func EncodePayload(v any) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return raw, nil
}

// DecodePayload returns the typed payload for an operation. The shape is
// fully determined by (Table, Kind), so replay code never guesses.
func DecodePayload(op PendingOperation) (any, error) {
	decode := func(v any) (any, error) {
		if err := json.Unmarshal(op.Data, v); err != nil {
			return nil, fmt.Errorf("decode %s/%s payload: %w", op.Table, op.Kind, err)
		}
		return v, nil
	}

	switch {
	case op.Kind == OpDelete:
		return decode(&DeletePayload{})
	case op.Kind == OpStockUpdate:
		return decode(&StockUpdatePayload{})
	case op.Table == TableProducts:
		return decode(&ProductPayload{})
	case op.Table == TableSales:
		return decode(&Sale{})
	case op.Table == TableSaleItems:
		return decode(&SaleItem{})
	}
	return nil, fmt.Errorf("unknown operation payload %s/%s", op.Table, op.Kind)
}

type MostSoldProduct struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
}

type PeriodStats struct {
	SaleCount      int              `json:"sale_count"`
	TotalCents     int64            `json:"total_cents"`
	NetProfitCents int64            `json:"net_profit_cents"`
	MostSold       *MostSoldProduct `json:"most_sold,omitempty"`
}

type StatsSummary struct {
	Today        PeriodStats `json:"today"`
	Yesterday    PeriodStats `json:"yesterday"`
	Week         PeriodStats `json:"week"`
	Month        PeriodStats `json:"month"`
	AllTime      PeriodStats `json:"all_time"`
	StockUnits   int         `json:"stock_units"`
	ProductCount int         `json:"product_count"`
	GeneratedAt  time.Time   `json:"generated_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   string `json:"expires_at"`
}

type SyncStatus struct {
	Online  bool `json:"online"`
	Pending int  `json:"pending"`
	Failed  int  `json:"failed"`
}
