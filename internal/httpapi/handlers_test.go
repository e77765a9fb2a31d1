package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"tiendafacil/terminal/internal/cache"
	"tiendafacil/terminal/internal/domain"
	"tiendafacil/terminal/internal/localstore"
	"tiendafacil/terminal/internal/products"
	"tiendafacil/terminal/internal/remote/memory"
	"tiendafacil/terminal/internal/sales"
	"tiendafacil/terminal/internal/stats"
)

type onlineConn struct{}

func (onlineConn) Online() bool { return true }

func newTestAPI(t *testing.T) (*API, *memory.Store) {
	t.Helper()
	local, err := localstore.Open(filepath.Join(t.TempDir(), "terminal.db"))
	if err != nil {
		t.Fatalf("open local store: %v", err)
	}
	t.Cleanup(func() { _ = local.Close() })

	rem := memory.New()
	conn := onlineConn{}
	prod := products.New(local, rem, rem, conn)
	engine := stats.NewEngine(cache.NoopCache{})
	sal := sales.New(local, rem, prod, conn, engine)

	auth := NewAuthManager("0123456789abcdef0123456789abcdef", time.Hour, "admin", testHash(t, "s3cret-pass"))
	return New(prod, sal, auth, "*"), rem
}

func login(t *testing.T, handler http.Handler) string {
	t.Helper()
	body := bytes.NewBufferString(`{"username":"admin","password":"s3cret-pass"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.AccessToken
}

func doJSON(t *testing.T, handler http.Handler, method string, path string, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestEndpointsRequireAuth(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()

	paths := []string{"/api/v1/products", "/api/v1/sales", "/api/v1/stats", "/api/v1/sync/status"}
	for _, path := range paths {
		rec := doJSON(t, handler, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, rec.Code)
		}
	}
}

func TestProductAndSaleFlow(t *testing.T) {
	api, rem := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/products", token, products.CreateRequest{
		Code: "A1", Name: "Beans", PurchasePriceCents: 1200, SalePriceCents: 2000, Stock: 5,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create product status %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Product domain.Product `json:"product"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode product: %v", err)
	}

	// Duplicate code conflicts.
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/products", token, products.CreateRequest{
		Code: "A1", Name: "Other", SalePriceCents: 100,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate code, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/sales", token, sales.CreateSaleRequest{
		PaymentMethod: domain.PaymentCash,
		Items:         []domain.NewSaleItem{{ProductID: created.Product.ID, Quantity: 2, PriceCents: 2000}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create sale status %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/stats", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status %d: %s", rec.Code, rec.Body.String())
	}
	var statsResp struct {
		Stats domain.StatsSummary `json:"stats"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &statsResp); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if statsResp.Stats.Today.NetProfitCents != 1600 {
		t.Fatalf("expected today profit 1600, got %d", statsResp.Stats.Today.NetProfitCents)
	}

	remoteStock, err := rem.GetProductStock(context.Background(), created.Product.ID)
	if err != nil {
		t.Fatalf("remote stock: %v", err)
	}
	if remoteStock != 3 {
		t.Fatalf("expected remote stock 3, got %d", remoteStock)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/sync/status", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("sync status %d: %s", rec.Code, rec.Body.String())
	}
	var syncResp struct {
		Sync domain.SyncStatus `json:"sync"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &syncResp); err != nil {
		t.Fatalf("decode sync status: %v", err)
	}
	if !syncResp.Sync.Online || syncResp.Sync.Pending != 0 {
		t.Fatalf("unexpected sync status: %+v", syncResp.Sync)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/sync/failed", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("sync failed status %d: %s", rec.Code, rec.Body.String())
	}
	var failedResp struct {
		Failed []domain.PendingOperation `json:"failed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &failedResp); err != nil {
		t.Fatalf("decode failed operations: %v", err)
	}
	if len(failedResp.Failed) != 0 {
		t.Fatalf("expected no failed operations, got %d", len(failedResp.Failed))
	}
}

func TestSaleValidationStatuses(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", token, sales.CreateSaleRequest{
		PaymentMethod: domain.PaymentCash,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty sale, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/sales/does-not-exist", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown sale, got %d", rec.Code)
	}
}

func TestHideEndpoint(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/products", token, products.CreateRequest{
		Code: "A1", Name: "Beans", SalePriceCents: 2000, Stock: 5,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create product status %d", rec.Code)
	}
	var created struct {
		Product domain.Product `json:"product"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode product: %v", err)
	}

	rec = doJSON(t, handler, http.MethodPost, fmt.Sprintf("/api/v1/products/%s/hide", created.Product.ID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("hide status %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/products", token, nil)
	var listResp struct {
		Products []domain.Product `json:"products"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("decode products: %v", err)
	}
	if len(listResp.Products) != 1 || !listResp.Products[0].IsHidden {
		t.Fatalf("expected hidden product in list, got %+v", listResp.Products)
	}
}
