package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"finledger/internal/cache"
	"finledger/internal/core"
	"finledger/internal/middleware/auth"
	"finledger/internal/services"
	"finledger/internal/storage/memory"
)

const testSecret = "server-test-secret"

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Details []FieldError    `json:"details"`
}

type testAPI struct {
	t   *testing.T
	srv *Server
}

func newTestAPI(t *testing.T, rpm int, ready func(context.Context) error) *testAPI {
	t.Helper()
	store := memory.New()
	dashboard := services.NewDashboardService(store, cache.NewLocal[services.Overview](100, time.Minute))
	ledger := services.NewLedgerService(store, dashboard)
	svc := Services{
		Accounts:  services.NewAccountService(store, dashboard),
		Ledger:    ledger,
		Budgets:   services.NewBudgetService(store, ledger, dashboard),
		Dashboard: dashboard,
		Imports:   services.NewImportService(ledger, nil, nil),
	}
	srv := NewServer(":0", svc, Options{JWTSecret: testSecret, RateLimitRPM: rpm, Ready: ready})
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return &testAPI{t: t, srv: srv}
}

func token(t *testing.T, subject string) string {
	t.Helper()
	claims := auth.Claims{
		Email: subject + "@example.com",
		Name:  subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func (a *testAPI) do(method, path, tok string, body any) (int, apiResponse, http.Header) {
	a.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			a.t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.send(req, tok)
}

func (a *testAPI) send(req *http.Request, tok string) (int, apiResponse, http.Header) {
	a.t.Helper()
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rr := httptest.NewRecorder()
	a.srv.Handler.ServeHTTP(rr, req)

	var resp apiResponse
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			a.t.Fatalf("%s %s: decode body %q: %v", req.Method, req.URL.Path, rr.Body.String(), err)
		}
	}
	return rr.Code, resp, rr.Header()
}

func decodeData[T any](t *testing.T, resp apiResponse) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(resp.Data, &v); err != nil {
		t.Fatalf("decode data %s: %v", resp.Data, err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	api := newTestAPI(t, 60, nil)
	for _, path := range []string{"/healthz", "/readyz"} {
		code, resp, hdr := api.do(http.MethodGet, path, "", nil)
		if code != http.StatusOK || !resp.Success {
			t.Fatalf("%s status = %d, success = %v", path, code, resp.Success)
		}
		if hdr.Get("X-Request-ID") == "" {
			t.Errorf("%s missing X-Request-ID", path)
		}
		if hdr.Get("X-Content-Type-Options") != "nosniff" {
			t.Errorf("%s missing security headers", path)
		}
	}

	down := newTestAPI(t, 60, func(context.Context) error { return errors.New("db down") })
	if code, _, _ := down.do(http.MethodGet, "/readyz", "", nil); code != http.StatusServiceUnavailable {
		t.Errorf("readyz with failing store = %d, want 503", code)
	}
}

func TestAuthRequired(t *testing.T) {
	api := newTestAPI(t, 60, nil)
	for _, path := range []string{"/api/accounts", "/api/transactions", "/api/dashboard", "/api/budgets"} {
		code, resp, _ := api.do(http.MethodGet, path, "", nil)
		if code != http.StatusUnauthorized || resp.Success {
			t.Errorf("GET %s without token = %d, want 401", path, code)
		}
	}
	if code, _, _ := api.do(http.MethodGet, "/api/accounts", "not-a-jwt", nil); code != http.StatusUnauthorized {
		t.Errorf("garbage token = %d, want 401", code)
	}
}

// userLookupDown fails identity lookups as an unreachable database would.
type userLookupDown struct {
	*memory.Store
}

func (userLookupDown) GetUserBySubject(context.Context, string) (core.User, error) {
	return core.User{}, errors.New("dial tcp 127.0.0.1:3306: connection refused")
}

func TestIdentityLookupOutage(t *testing.T) {
	store := userLookupDown{memory.New()}
	srv := NewServer(":0", Services{
		Accounts:  services.NewAccountService(store, nil),
		Ledger:    services.NewLedgerService(store, nil),
		Dashboard: services.NewDashboardService(store, nil),
	}, Options{JWTSecret: testSecret, RateLimitRPM: 60})
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	api := &testAPI{t: t, srv: srv}

	code, resp, _ := api.do(http.MethodGet, "/api/accounts", token(t, "asha"), nil)
	if code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 (%s)", code, resp.Error)
	}
	if strings.Contains(resp.Error, "3306") {
		t.Errorf("error leaks storage detail: %q", resp.Error)
	}
	if code, _, _ := api.do(http.MethodGet, "/api/accounts", "", nil); code != http.StatusUnauthorized {
		t.Errorf("missing token during outage = %d, want 401", code)
	}
}

func TestLedgerFlow(t *testing.T) {
	api := newTestAPI(t, 100, nil)
	tok := token(t, "asha")

	code, resp, _ := api.do(http.MethodPost, "/api/accounts", tok, map[string]any{
		"name": "Main", "type": "SAVINGS", "balance": "1000.00",
	})
	if code != http.StatusCreated {
		t.Fatalf("create account = %d (%s)", code, resp.Error)
	}
	acc := decodeData[accountView](t, resp)
	if !acc.IsDefault || acc.Balance != "1000.00" || acc.Currency != "INR" {
		t.Fatalf("account = %+v", acc)
	}

	code, resp, _ = api.do(http.MethodPost, "/api/transactions", tok, map[string]any{
		"account_id": acc.ID, "kind": "EXPENSE", "amount": 250, "category": "Food", "date": "2024-01-10",
	})
	if code != http.StatusCreated {
		t.Fatalf("create transaction = %d (%s %v)", code, resp.Error, resp.Details)
	}
	tx := decodeData[transactionView](t, resp)

	wantBalance := func(want string) {
		t.Helper()
		_, resp, _ := api.do(http.MethodGet, "/api/accounts/"+acc.ID, tok, nil)
		d := decodeData[accountDetailView](t, resp)
		if d.Account.Balance != want {
			t.Fatalf("balance = %s, want %s", d.Account.Balance, want)
		}
	}
	wantBalance("750.00")

	code, resp, _ = api.do(http.MethodPut, "/api/transactions/"+tx.ID, tok, map[string]any{
		"kind": "INCOME", "amount": "100.00", "category": "Refund", "date": "2024-01-10",
	})
	if code != http.StatusOK {
		t.Fatalf("update transaction = %d (%s)", code, resp.Error)
	}
	wantBalance("1100.00")

	code, resp, _ = api.do(http.MethodPost, "/api/transactions/bulk-delete", tok, map[string]any{
		"ids": []string{tx.ID, "missing"},
	})
	if code != http.StatusConflict {
		t.Fatalf("bulk delete with unknown id = %d, want 409 (%s)", code, resp.Error)
	}
	wantBalance("1100.00")

	code, resp, _ = api.do(http.MethodDelete, "/api/transactions/missing", tok, nil)
	if code != http.StatusNotFound {
		t.Fatalf("delete unknown transaction = %d, want 404 (%s)", code, resp.Error)
	}

	code, resp, _ = api.do(http.MethodDelete, "/api/transactions/"+tx.ID, tok, nil)
	if code != http.StatusOK {
		t.Fatalf("delete transaction = %d (%s)", code, resp.Error)
	}
	del := decodeData[deleteResultView](t, resp)
	if del.Deleted != 1 || del.Adjustments[acc.ID] != "-100.00" {
		t.Errorf("delete result = %+v", del)
	}
	wantBalance("1000.00")

	if code, _, _ := api.do(http.MethodGet, "/api/transactions/"+tx.ID, tok, nil); code != http.StatusNotFound {
		t.Errorf("get deleted transaction = %d, want 404", code)
	}

	// another user cannot see the account
	if code, _, _ := api.do(http.MethodGet, "/api/accounts/"+acc.ID, token(t, "ravi"), nil); code != http.StatusNotFound {
		t.Errorf("foreign account = %d, want 404", code)
	}
}

func TestBudgetAndDashboard(t *testing.T) {
	api := newTestAPI(t, 100, nil)
	tok := token(t, "meera")

	_, resp, _ := api.do(http.MethodPost, "/api/accounts", tok, map[string]any{
		"name": "Daily", "type": "CURRENT", "balance": 500,
	})
	acc := decodeData[accountView](t, resp)

	code, resp, _ := api.do(http.MethodPut, "/api/budgets", tok, map[string]any{
		"account_id": acc.ID, "amount": "200",
	})
	if code != http.StatusOK {
		t.Fatalf("update budget = %d (%s)", code, resp.Error)
	}

	today := time.Now().UTC().Format(dateLayout)
	api.do(http.MethodPost, "/api/transactions", tok, map[string]any{
		"account_id": acc.ID, "kind": "EXPENSE", "amount": "50", "category": "Food", "date": today,
	})

	code, resp, _ = api.do(http.MethodGet, "/api/budgets", tok, nil)
	if code != http.StatusOK {
		t.Fatalf("get budget = %d (%s)", code, resp.Error)
	}
	bv := decodeData[budgetView](t, resp)
	if bv.Budget == nil || bv.Budget.Amount != "200.00" || bv.Expenses != "50.00" || bv.Remaining != "150.00" {
		t.Errorf("budget view = %+v", bv)
	}

	code, resp, _ = api.do(http.MethodGet, "/api/dashboard", tok, nil)
	if code != http.StatusOK {
		t.Fatalf("dashboard = %d (%s)", code, resp.Error)
	}
	ov := decodeData[overviewView](t, resp)
	if ov.DefaultAccountID != acc.ID || len(ov.Recent) != 1 || ov.Month.TotalExpenses != "50.00" {
		t.Errorf("overview = %+v", ov)
	}
	if ov.Budget == nil || ov.Budget.PercentUsed != "25.0" {
		t.Errorf("overview budget = %+v", ov.Budget)
	}
}

func TestValidationErrors(t *testing.T) {
	api := newTestAPI(t, 100, nil)
	tok := token(t, "kiran")

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantField  string
	}{
		{"missing kind", map[string]any{"account_id": "a", "amount": "1", "category": "x", "date": "2024-01-01"}, 400, "kind"},
		{"bad date", map[string]any{"account_id": "a", "kind": "EXPENSE", "amount": "1", "category": "x", "date": "01/02/2024"}, 400, "date"},
		{"recurring without interval", map[string]any{"account_id": "a", "kind": "EXPENSE", "amount": "1", "category": "x", "date": "2024-01-01", "is_recurring": true}, 400, "interval"},
		{"unknown field", map[string]any{"account_id": "a", "kind": "EXPENSE", "amount": "1", "category": "x", "date": "2024-01-01", "bogus": 1}, 400, ""},
		{"negative amount", map[string]any{"account_id": "a", "kind": "EXPENSE", "amount": "-5", "category": "x", "date": "2024-01-01"}, 400, ""},
		{"unknown account", map[string]any{"account_id": "nope", "kind": "EXPENSE", "amount": "5", "category": "x", "date": "2024-01-01"}, 404, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp, _ := api.do(http.MethodPost, "/api/transactions", tok, tt.body)
			if code != tt.wantStatus || resp.Success {
				t.Fatalf("status = %d, want %d (%s)", code, tt.wantStatus, resp.Error)
			}
			if tt.wantField == "" {
				return
			}
			for _, d := range resp.Details {
				if d.Field == tt.wantField {
					return
				}
			}
			t.Errorf("details %+v missing field %q", resp.Details, tt.wantField)
		})
	}
}

func TestRateLimitPerUser(t *testing.T) {
	api := newTestAPI(t, 2, nil)
	tok := token(t, "dev")
	body := map[string]any{"account_id": "x", "kind": "EXPENSE", "amount": "1", "category": "x", "date": "2024-01-01"}

	for i := 0; i < 2; i++ {
		if code, _, _ := api.do(http.MethodPost, "/api/transactions", tok, body); code == http.StatusTooManyRequests {
			t.Fatalf("request %d limited early", i+1)
		}
	}
	code, _, hdr := api.do(http.MethodPost, "/api/transactions", tok, body)
	if code != http.StatusTooManyRequests {
		t.Fatalf("third request = %d, want 429", code)
	}
	if hdr.Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", hdr.Get("Retry-After"))
	}
	if code, _, _ := api.do(http.MethodPost, "/api/transactions", token(t, "other"), body); code == http.StatusTooManyRequests {
		t.Error("a different user shares the limit")
	}
}

func TestImportCSVUpload(t *testing.T) {
	api := newTestAPI(t, 100, nil)
	tok := token(t, "lena")
	_, resp, _ := api.do(http.MethodPost, "/api/accounts", tok, map[string]any{
		"name": "Main", "type": "SAVINGS", "balance": "0",
	})
	acc := decodeData[accountView](t, resp)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("file", "bank.csv")
	io.WriteString(fw, "Date,Amount,Description\n2024-03-01,-20.50,Coffee\n2024-03-02,100,Salary\n")
	mw.WriteField("account_id", acc.ID)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	code, resp, _ := api.send(req, tok)
	if code != http.StatusCreated {
		t.Fatalf("import = %d (%s)", code, resp.Error)
	}
	res := decodeData[importResultView](t, resp)
	if res.Count != 2 || res.Created != 2 {
		t.Errorf("import result = %+v", res)
	}

	_, resp, _ = api.do(http.MethodGet, "/api/accounts/"+acc.ID, tok, nil)
	if d := decodeData[accountDetailView](t, resp); d.Account.Balance != "79.50" {
		t.Errorf("balance after import = %s, want 79.50", d.Account.Balance)
	}
}

func TestStatementPDF(t *testing.T) {
	api := newTestAPI(t, 100, nil)
	tok := token(t, "omar")
	api.do(http.MethodPost, "/api/accounts", tok, map[string]any{"name": "Main", "type": "SAVINGS"})

	req := httptest.NewRequest(http.MethodGet, "/api/reports/statement.pdf?from=2024-01-01&to=2024-01-31", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr := httptest.NewRecorder()
	api.srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("statement = %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF-")) {
		t.Error("body is not a PDF")
	}

	code, _, _ := api.do(http.MethodGet, "/api/reports/statement.pdf?from=2024-02-01&to=2024-01-01", tok, nil)
	if code != http.StatusBadRequest {
		t.Errorf("inverted period = %d, want 400", code)
	}
}

func TestOptionalServicesUnconfigured(t *testing.T) {
	api := newTestAPI(t, 100, nil)
	code, _, _ := api.do(http.MethodPost, "/api/receipts/scan", token(t, "zoe"), nil)
	if code != http.StatusServiceUnavailable {
		t.Errorf("receipt scan without generator = %d, want 503", code)
	}
}
