package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alanyoungcy/bookstock/internal/metrics"
	"github.com/alanyoungcy/bookstock/internal/server/handler"
	"github.com/alanyoungcy/bookstock/internal/service"
	"github.com/alanyoungcy/bookstock/internal/store/memory"
)

type testAPI struct {
	srv *httptest.Server
	key string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := memory.NewSignalBus()
	m := metrics.New(prometheus.NewRegistry())

	inventory := service.NewInventoryService(memory.NewBookStore(), bus, logger).WithMetrics(m)
	orderStore := memory.NewOrderStore()
	orders := service.NewOrderService(orderStore, memory.NewUserStore("u1"),
		inventory, nil, bus, service.OrderConfig{}, logger).WithMetrics(m)
	alerts := service.NewAlertService(inventory, memory.NewAlertStore(), nil, nil, bus, service.AlertConfig{}, logger).WithMetrics(m)

	h := NewHandler(Config{APIKey: "k"}, Handlers{
		Health:    handler.NewHealthHandler(nil, logger),
		Status:    handler.NewStatusHandler("server", "memory"),
		Inventory: handler.NewInventoryHandler(inventory, logger),
		Alerts:    handler.NewAlertHandler(alerts, inventory, logger),
		Orders:    handler.NewOrderHandler(orders, logger),
		Reports:   handler.NewReportHandler(service.NewSalesReportService(orderStore, inventory, logger), logger),
	}, Deps{Metrics: m}, logger)

	api := &testAPI{srv: httptest.NewServer(h), key: "k"}
	t.Cleanup(api.srv.Close)
	return api
}

func (a *testAPI) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if a.key != "" {
		req.Header.Set("X-API-Key", a.key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var out map[string]any
	if len(bytes.TrimSpace(raw)) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, raw)
		}
	}
	return resp.StatusCode, out
}

func TestServer_OrderFlow(t *testing.T) {
	api := newTestAPI(t)

	code, book := api.do(t, "POST", "/api/inventory",
		`{"id":"b1","title":"Dune","price":"12.50","stockQuantity":10,"minThreshold":3}`)
	if code != http.StatusCreated || book["stockStatus"] != "IN_STOCK" || book["price"] != "12.50" {
		t.Fatalf("create book: %d %v", code, book)
	}

	code, order := api.do(t, "POST", "/api/orders", `{"userId":"u1","items":[{"bookId":"b1","quantity":8}]}`)
	if code != http.StatusCreated {
		t.Fatalf("place order: %d %v", code, order)
	}
	if order["totalAmount"] != "100.00" || order["status"] != "PENDING" {
		t.Errorf("unexpected order %v", order)
	}
	id, _ := order["id"].(string)

	_, got := api.do(t, "GET", "/api/inventory/b1", "")
	if got["stockQuantity"] != float64(2) || got["stockStatus"] != "LOW_STOCK" {
		t.Errorf("expected 2 units LOW_STOCK, got %v", got)
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"insufficient stock", "POST", "/api/orders", `{"userId":"u1","items":[{"bookId":"b1","quantity":5}]}`, http.StatusConflict},
		{"unknown user", "POST", "/api/orders", `{"userId":"ghost","items":[{"bookId":"b1","quantity":1}]}`, http.StatusBadRequest},
		{"unknown book", "POST", "/api/orders", `{"userId":"u1","items":[{"bookId":"nope","quantity":1}]}`, http.StatusNotFound},
		{"empty order", "POST", "/api/orders", `{"userId":"u1","items":[]}`, http.StatusBadRequest},
		{"malformed body", "POST", "/api/orders", `{"userId":`, http.StatusBadRequest},
		{"get order", "GET", "/api/orders/" + id, "", http.StatusOK},
		{"missing order", "GET", "/api/orders/missing", "", http.StatusNotFound},
		{"bad status", "PUT", "/api/orders/" + id + "/status", `{"status":"shipped"}`, http.StatusBadRequest},
		{"status update", "PUT", "/api/orders/" + id + "/status", `{"status":"SHIPPED"}`, http.StatusOK},
		{"status on missing order", "PUT", "/api/orders/missing/status", `{"status":"SHIPPED"}`, http.StatusNotFound},
		{"history", "GET", "/api/orders/history/u1", "", http.StatusOK},
		{"bad since", "GET", "/api/orders?since=yesterday", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := api.do(t, tt.method, tt.path, tt.body)
			if code != tt.want {
				t.Errorf("expected %d, got %d (%v)", tt.want, code, body)
			}
		})
	}

	_, hist := api.do(t, "GET", "/api/orders/history/u1", "")
	if hist["count"] != float64(1) {
		t.Errorf("expected one order in history, got %v", hist)
	}
}

func TestServer_Reports(t *testing.T) {
	api := newTestAPI(t)
	api.do(t, "POST", "/api/inventory", `{"id":"b1","title":"Dune","author":"Herbert","price":"12.50","stockQuantity":10}`)
	api.do(t, "POST", "/api/inventory", `{"id":"b2","title":"Emma","price":"4.00","stockQuantity":10}`)
	api.do(t, "POST", "/api/orders", `{"userId":"u1","items":[{"bookId":"b1","quantity":2},{"bookId":"b2","quantity":1}]}`)
	api.do(t, "POST", "/api/orders", `{"userId":"u1","items":[{"bookId":"b2","quantity":3}]}`)

	code, sales := api.do(t, "GET", "/api/reports/sales", "")
	if code != http.StatusOK {
		t.Fatalf("sales report: %d %v", code, sales)
	}
	if sales["totalRevenue"] != "41.00" || sales["totalOrders"] != float64(2) ||
		sales["totalItemsSold"] != float64(6) || sales["averageOrderValue"] != "20.50" {
		t.Errorf("unexpected sales report %v", sales)
	}
	byStatus, _ := sales["ordersByStatus"].(map[string]any)
	if byStatus["PENDING"] != float64(2) {
		t.Errorf("expected 2 PENDING orders, got %v", byStatus)
	}

	tests := []struct {
		name string
		path string
		want int
	}{
		{"top books", "/api/reports/top-books", http.StatusOK},
		{"top books limit", "/api/reports/top-books?limit=1", http.StatusOK},
		{"bad limit", "/api/reports/top-books?limit=zero", http.StatusBadRequest},
		{"negative limit", "/api/reports/top-books?limit=-2", http.StatusBadRequest},
		{"monthly", "/api/reports/monthly-revenue", http.StatusOK},
		{"bad until", "/api/reports/monthly-revenue?until=tomorrow", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, body := api.do(t, "GET", tt.path, ""); code != tt.want {
				t.Errorf("expected %d, got %d (%v)", tt.want, code, body)
			}
		})
	}
}

func TestServer_InventoryAndAlerts(t *testing.T) {
	api := newTestAPI(t)
	api.do(t, "POST", "/api/inventory", `{"id":"a","title":"A","price":5,"stockQuantity":1}`)
	api.do(t, "POST", "/api/inventory", `{"id":"b","title":"B","price":5,"stockQuantity":50}`)

	code, inv := api.do(t, "GET", "/api/inventory", "")
	if code != http.StatusOK {
		t.Fatalf("list inventory: %d", code)
	}
	sum, _ := inv["summary"].(map[string]any)
	if sum["totalBooks"] != float64(2) || sum["lowStockCount"] != float64(1) {
		t.Errorf("unexpected summary %v", sum)
	}

	code, sweep := api.do(t, "POST", "/api/inventory/alerts/sweep", "")
	if code != http.StatusOK {
		t.Fatalf("sweep: %d", code)
	}
	if raised, _ := sweep["raised"].([]any); len(raised) != 1 || raised[0] != "a" {
		t.Errorf("expected a raised, got %v", sweep)
	}

	api.do(t, "POST", "/api/inventory/alerts/a/acknowledge", "")
	_, alerts := api.do(t, "GET", "/api/inventory/alerts", "")
	list, _ := alerts["alerts"].([]any)
	if len(list) != 1 || list[0].(map[string]any)["alertState"] != "ACKNOWLEDGED" {
		t.Errorf("expected acknowledged alert, got %v", alerts)
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"negative stock", "PUT", "/api/inventory/stock/a", `{"stockQuantity":-1}`, http.StatusBadRequest},
		{"missing stock field", "PUT", "/api/inventory/stock/a", `{}`, http.StatusBadRequest},
		{"stock on missing book", "PUT", "/api/inventory/stock/zzz", `{"stockQuantity":3}`, http.StatusNotFound},
		{"bad override", "PUT", "/api/inventory/status/a", `{"stockStatus":"GONE"}`, http.StatusBadRequest},
		{"override", "PUT", "/api/inventory/status/b", `{"stockStatus":"OUT_OF_STOCK"}`, http.StatusOK},
		{"bad thresholds", "PUT", "/api/inventory/threshold/a", `{"minThreshold":9,"maxThreshold":3}`, http.StatusBadRequest},
		{"duplicate id", "POST", "/api/inventory", `{"id":"a","title":"A","price":5}`, http.StatusConflict},
		{"invalid price", "POST", "/api/inventory", `{"title":"C","price":0}`, http.StatusBadRequest},
		{"sub-cent price", "POST", "/api/inventory", `{"title":"C","price":"9.999"}`, http.StatusBadRequest},
		{"critical", "GET", "/api/inventory/alerts/critical", "", http.StatusOK},
		{"report", "GET", "/api/inventory/alerts/report", "", http.StatusOK},
		{"out of stock", "GET", "/api/inventory/out-of-stock", "", http.StatusOK},
		{"delete", "DELETE", "/api/inventory/b", "", http.StatusNoContent},
		{"delete again", "DELETE", "/api/inventory/b", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := api.do(t, tt.method, tt.path, tt.body)
			if code != tt.want {
				t.Errorf("expected %d, got %d (%v)", tt.want, code, body)
			}
		})
	}
}

func TestServer_AuthAndPublicPaths(t *testing.T) {
	api := newTestAPI(t)
	api.key = ""

	if code, _ := api.do(t, "GET", "/api/inventory", ""); code != http.StatusUnauthorized {
		t.Errorf("expected 401 without key, got %d", code)
	}
	if code, body := api.do(t, "GET", "/api/health", ""); code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("expected public health check, got %d %v", code, body)
	}

	resp, err := http.Get(api.srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(raw), "http_requests_total") {
		t.Errorf("expected metrics exposition, got %d", resp.StatusCode)
	}
}
