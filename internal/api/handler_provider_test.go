package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/fleepgift/coinledger/internal/infra/metrics"
	"github.com/fleepgift/coinledger/internal/services/initdata"
	"github.com/fleepgift/coinledger/internal/services/invoice"
)

const testToken = "123456:TEST-token"

type fakeGateway struct {
	calls atomic.Int32
	err   error
}

func (g *fakeGateway) CreateInvoiceLink(_ context.Context, inv invoice.Invoice) (string, error) {
	g.calls.Add(1)
	if g.err != nil {
		return "", g.err
	}

	return "https://t.me/$" + inv.Payload, nil
}

func (g *fakeGateway) SendInvoice(context.Context, int64, invoice.Invoice) error {
	g.calls.Add(1)

	return g.err
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(gw invoice.Gateway, db Pinger) http.Handler {
	m := metrics.New()
	iss := invoice.New(gw, testToken, quietLogger(), invoice.WithMetrics(m))

	return NewRouter(Deps{Issuer: iss, DB: db, Metrics: m, Log: quietLogger()})
}

func validInitData(t *testing.T) string {
	t.Helper()

	return initdata.Sign(map[string]string{
		"user":      `{"id":12345,"first_name":"Ivan"}`,
		"auth_date": "1700000000",
	}, testToken)
}

func postJSON(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/create-invoice", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://mini.app.example")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func mustBody(t *testing.T, v any) string {
	t.Helper()

	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	return string(b)
}

func TestCreateInvoice_OK(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	h := newTestRouter(gw, nil)

	rec := postJSON(t, h, mustBody(t, map[string]any{
		"stars":     100,
		"coins":     999999,
		"promo":     "vesna26",
		"init_data": validInitData(t),
	}))

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp createInvoiceResponse

	err := json.Unmarshal(rec.Body.Bytes(), &resp)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}

	// The client-supplied coins are ignored.
	if resp.Coins != 120 {
		t.Fatalf("coins: want 120, got %d", resp.Coins)
	}
	if resp.InvoiceLink != "https://t.me/$stars_100_120_12345" {
		t.Fatalf("link: %q", resp.InvoiceLink)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("CORS origin header: %q", got)
	}
}

func TestCreateInvoice_Errors(t *testing.T) {
	t.Parallel()

	valid := validInitData(t)
	tampered := strings.Replace(valid, "Ivan", "Ivam", 1)

	cases := []struct {
		name       string
		body       string
		gwErr      error
		wantStatus int
		wantCalls  int32
	}{
		{"empty body", "", nil, http.StatusBadRequest, 0},
		{"invalid json", "{not json", nil, http.StatusBadRequest, 0},
		{"stars not a number", `{"stars":"abc","init_data":"x"}`, nil, http.StatusBadRequest, 0},
		{"tampered hash", mustBody(t, map[string]any{"stars": 100, "coins": 100, "init_data": tampered}), nil, http.StatusForbidden, 0},
		{"missing init data", `{"stars":100,"coins":100}`, nil, http.StatusForbidden, 0},
		{"forged and unknown package", mustBody(t, map[string]any{"stars": 7, "init_data": tampered}), nil, http.StatusForbidden, 0},
		{"missing stars", mustBody(t, map[string]any{"init_data": valid}), nil, http.StatusBadRequest, 0},
		{"unknown package", mustBody(t, map[string]any{"stars": 7, "init_data": valid}), nil, http.StatusBadRequest, 0},
		{"gateway failure", mustBody(t, map[string]any{"stars": 100, "init_data": valid}), errors.New("boom"), http.StatusInternalServerError, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			gw := &fakeGateway{err: tc.gwErr}
			h := newTestRouter(gw, nil)

			rec := postJSON(t, h, tc.body)
			if rec.Code != tc.wantStatus {
				t.Fatalf("want %d, got %d: %s", tc.wantStatus, rec.Code, rec.Body.String())
			}
			if got := gw.calls.Load(); got != tc.wantCalls {
				t.Fatalf("gateway calls: want %d, got %d", tc.wantCalls, got)
			}

			var resp map[string]string

			err := json.Unmarshal(rec.Body.Bytes(), &resp)
			if err != nil || resp["error"] == "" {
				t.Fatalf("want JSON error body, got %q", rec.Body.String())
			}
		})
	}
}

func TestCreateInvoice_UnparseableUser(t *testing.T) {
	t.Parallel()

	blob := initdata.Sign(map[string]string{"user": `{"first_name":"NoID"}`}, testToken)
	h := newTestRouter(&fakeGateway{}, nil)

	rec := postJSON(t, h, mustBody(t, map[string]any{"stars": 100, "init_data": blob}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}
}

func TestPreflight(t *testing.T) {
	t.Parallel()

	h := newTestRouter(&fakeGateway{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/create-invoice", nil)
	req.Header.Set("Origin", "https://mini.app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("want 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow origin: %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, http.MethodPost) {
		t.Fatalf("allow methods: %q", got)
	}
}

func TestRootAndHealth(t *testing.T) {
	t.Parallel()

	h := newTestRouter(&fakeGateway{}, fakePinger{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("root: %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: want 200, got %d", rec.Code)
	}

	h = newTestRouter(&fakeGateway{}, fakePinger{err: errors.New("down")})

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("healthz with db down: want 503, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	h := newTestRouter(&fakeGateway{}, nil)
	_ = postJSON(t, h, mustBody(t, map[string]any{"stars": 100, "init_data": validInitData(t)}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: want 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `fleep_invoices_issued_total{path="webapp"} 1`) {
		t.Fatalf("metrics output missing issued counter")
	}
}
