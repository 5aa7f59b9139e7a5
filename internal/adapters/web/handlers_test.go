package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"autoshop-crm/internal/ai"
	"autoshop-crm/internal/app"
	"autoshop-crm/internal/core"
	"autoshop-crm/internal/export"
	"autoshop-crm/internal/store/memory"
)

const (
	testSecret   = "test-secret"
	testPassword = "correct-horse"
)

var testNow = time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

// ── fakes ────────────────────────────────────────────────────────────────────

type fakeUsers struct {
	user core.User
}

func newFakeUsers(t *testing.T) *fakeUsers {
	t.Helper()
	hash, err := core.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return &fakeUsers{user: core.User{ID: 7, Username: "sam", PasswordHash: hash, Role: core.RoleSales, IsActive: true}}
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*core.User, error) {
	if username != f.user.Username {
		return nil, core.ErrNotFound
	}
	u := f.user
	return &u, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id int) (*core.User, error) {
	if id != f.user.ID {
		return nil, core.ErrNotFound
	}
	u := f.user
	return &u, nil
}

func (f *fakeUsers) Authenticate(ctx context.Context, username, password string) (*core.User, error) {
	u, err := f.GetByUsername(ctx, username)
	if err != nil {
		return nil, core.ErrInvalidCredentials
	}
	if err := core.CheckPassword(u.PasswordHash, password); err != nil {
		return nil, err
	}
	return u, nil
}

func (f *fakeUsers) CreateUser(context.Context, string, string, string, core.Role) (*core.User, error) {
	return nil, fmt.Errorf("not supported")
}

type fakeCustomers struct{}

func (fakeCustomers) CreateCustomer(_ context.Context, in core.CustomerInput) (*core.Customer, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return &core.Customer{ID: 2, FirstName: in.FirstName, LastName: in.LastName, Email: in.Email}, nil
}

func (fakeCustomers) GetCustomer(_ context.Context, id int) (*core.Customer, error) {
	if id != 1 {
		return nil, fmt.Errorf("customer %d: %w", id, core.ErrNotFound)
	}
	return &core.Customer{ID: 1, FirstName: "Ada", LastName: "Lovelace"}, nil
}

func (fakeCustomers) ListCustomers(context.Context, string) ([]core.Customer, error) { return nil, nil }

func (fakeCustomers) AddVehicle(_ context.Context, customerID int, in core.VehicleInput) (*core.Vehicle, error) {
	in.Normalize()
	if err := in.Validate(testNow); err != nil {
		return nil, err
	}
	return &core.Vehicle{ID: 1, CustomerID: customerID, Make: in.Make, Model: in.Model, Year: in.Year}, nil
}

func (fakeCustomers) ListVehicles(context.Context, int) ([]core.Vehicle, error) { return nil, nil }

type fakeMemberships struct {
	items map[int]*core.Membership
}

func (f *fakeMemberships) CreateMembership(_ context.Context, in core.MembershipInput) (*core.Membership, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	start := in.StartDate
	if start.IsZero() {
		start = testNow
	}
	m := &core.Membership{ID: len(f.items) + 1, CustomerID: in.CustomerID, Plan: in.Plan, BillingCycle: in.BillingCycle,
		Price: in.Price, Status: core.MembershipActive, StartDate: start, NextBillingDate: core.NextBillingDate(start, in.BillingCycle)}
	f.items[m.ID] = m
	return m, nil
}

func (f *fakeMemberships) GetMembership(_ context.Context, id int) (*core.Membership, error) {
	m, ok := f.items[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return m, nil
}

func (f *fakeMemberships) ListMemberships(context.Context, *int) ([]core.Membership, error) { return nil, nil }

func (f *fakeMemberships) RenewMembership(ctx context.Context, id int, billedAt time.Time) (*core.Membership, error) {
	m, err := f.GetMembership(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Status != core.MembershipActive {
		return nil, core.ErrInvalidState
	}
	m.LastBilledAt = &billedAt
	m.NextBillingDate = core.NextBillingDate(m.NextBillingDate, m.BillingCycle)
	return m, nil
}

func (f *fakeMemberships) CancelMembership(ctx context.Context, id int) (*core.Membership, error) {
	m, err := f.GetMembership(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Status == core.MembershipCancelled {
		return nil, core.ErrInvalidState
	}
	m.Status = core.MembershipCancelled
	return m, nil
}

func (f *fakeMemberships) ListDueMemberships(_ context.Context, asOf time.Time) ([]core.Membership, error) {
	var out []core.Membership
	for _, m := range f.items {
		if m.Status == core.MembershipActive && !m.NextBillingDate.After(asOf) {
			out = append(out, *m)
		}
	}
	return out, nil
}

type fakeDrafter struct{}

func (fakeDrafter) DraftFollowUp(_ context.Context, rec *core.SalesRecord, customerName string) (*ai.FollowUpDraft, error) {
	return &ai.FollowUpDraft{Subject: "Thanks, " + customerName, Message: "How is your car after " + rec.RecordNumber + "?", SuggestedDays: 14}, nil
}

// ── harness ──────────────────────────────────────────────────────────────────

type testServer struct {
	t       *testing.T
	handler http.Handler
	token   string
}

func newTestServer(t *testing.T, drafter ai.Drafter) *testServer {
	t.Helper()
	store := memory.NewSalesRecordStore()
	store.SetCustomerName(1, "Ada Lovelace")
	sales := core.NewSalesRecordService(store, nil, core.WithClock(func() time.Time { return testNow }))
	svc := app.NewAppService(sales, fakeCustomers{}, &fakeMemberships{items: map[int]*core.Membership{}}, newFakeUsers(t), drafter, nil)

	handler := NewHandler(svc, "", testSecret, nil)
	ts := &testServer{t: t, handler: handler}

	rec := ts.do(http.MethodPost, "/api/auth/login", map[string]string{"username": "sam", "password": testPassword})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d body %s", rec.Code, rec.Body)
	}
	var session sessionResponse
	decodeBody(t, rec, &session)
	if session.Token == "" {
		t.Fatal("login returned no token")
	}
	ts.token = session.Token
	return ts
}

func (ts *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			ts.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if ts.token != "" {
		req.Header.Set("Authorization", "Bearer "+ts.token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) errorResponse {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body)
	}
	var body errorResponse
	decodeBody(t, rec, &body)
	if body.Code != code {
		t.Errorf("code = %q, want %q", body.Code, code)
	}
	if body.RequestID == "" {
		t.Error("error response has no request_id")
	}
	return body
}

func saleBody(status string) map[string]any {
	return map[string]any{
		"customer_id": 1,
		"sale_date":   "2024-03-15",
		"status":      status,
		"items": []map[string]any{
			{"name": "Brake pads", "quantity": 2, "unit_price": "40.00", "total_price": "80.00"},
			{"name": "Labour", "quantity": 1, "unit_price": "60.00", "total_price": "60.00"},
		},
		"tax":      "14.00",
		"discount": "4.00",
		"subtotal": "1.00",
		"total":    "1.00",
	}
}

func (ts *testServer) createSale(status string) core.SalesRecord {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/sales-records", saleBody(status))
	if rec.Code != http.StatusCreated {
		ts.t.Fatalf("create: status %d body %s", rec.Code, rec.Body)
	}
	var sale core.SalesRecord
	decodeBody(ts.t, rec, &sale)
	return sale
}

// ── auth ─────────────────────────────────────────────────────────────────────

func TestHealthIsPublic(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.token = ""
	rec := ts.do(http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.token = ""
	expectError(t, ts.do(http.MethodGet, "/api/sales-records", nil), http.StatusUnauthorized, "UNAUTHORIZED")

	ts.token = "not-a-jwt"
	expectError(t, ts.do(http.MethodGet, "/api/sales-records", nil), http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.token = ""
	rec := ts.do(http.MethodPost, "/api/auth/login", map[string]string{"username": "sam", "password": "wrong"})
	expectError(t, rec, http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestMeReturnsSignedInUser(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(http.MethodGet, "/api/auth/me", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body)
	}
	var session sessionResponse
	decodeBody(t, rec, &session)
	if session.UserID != 7 || session.Role != core.RoleSales || session.Token != "" {
		t.Errorf("me = %+v", session)
	}
}

// ── sales records ────────────────────────────────────────────────────────────

func TestCreateSalesRecord_DerivesTotals(t *testing.T) {
	ts := newTestServer(t, nil)
	sale := ts.createSale("draft")

	if sale.RecordNumber != "SR-202403-0001" {
		t.Errorf("record_number = %q", sale.RecordNumber)
	}
	if !sale.Subtotal.Equal(decimal.RequireFromString("140")) || !sale.Total.Equal(decimal.RequireFromString("150")) {
		t.Errorf("totals = (%s, %s), want (140, 150)", sale.Subtotal, sale.Total)
	}
	if sale.SalesPersonID != 7 {
		t.Errorf("sales_person_id = %d, want signed-in user 7", sale.SalesPersonID)
	}
	if sale.CustomerName != "Ada Lovelace" {
		t.Errorf("customer_name = %q", sale.CustomerName)
	}
}

func TestCreateSalesRecord_ValidationError(t *testing.T) {
	ts := newTestServer(t, nil)
	body := saleBody("draft")
	body["items"] = []map[string]any{}
	resp := expectError(t, ts.do(http.MethodPost, "/api/sales-records", body), http.StatusBadRequest, "VALIDATION_ERROR")
	if resp.Field != "items" {
		t.Errorf("field = %q, want items", resp.Field)
	}

	body = saleBody("draft")
	body["sale_date"] = "15/03/2024"
	resp = expectError(t, ts.do(http.MethodPost, "/api/sales-records", body), http.StatusBadRequest, "VALIDATION_ERROR")
	if resp.Field != "sale_date" {
		t.Errorf("field = %q, want sale_date", resp.Field)
	}
}

func TestCreateSalesRecord_MalformedJSON(t *testing.T) {
	ts := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/sales-records", strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer "+ts.token)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	expectError(t, rec, http.StatusBadRequest, "BAD_REQUEST")
}

func TestGetSalesRecord_ByIDAndNumber(t *testing.T) {
	ts := newTestServer(t, nil)
	sale := ts.createSale("draft")

	for _, ref := range []string{fmt.Sprint(sale.ID), sale.RecordNumber} {
		rec := ts.do(http.MethodGet, "/api/sales-records/"+ref, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s: status %d", ref, rec.Code)
		}
		var got core.SalesRecord
		decodeBody(t, rec, &got)
		if got.ID != sale.ID {
			t.Errorf("GET %s: id = %d, want %d", ref, got.ID, sale.ID)
		}
	}

	expectError(t, ts.do(http.MethodGet, "/api/sales-records/999", nil), http.StatusNotFound, "NOT_FOUND")
	expectError(t, ts.do(http.MethodGet, "/api/sales-records/SR-202403-0099", nil), http.StatusNotFound, "NOT_FOUND")
	expectError(t, ts.do(http.MethodGet, "/api/sales-records/bogus", nil), http.StatusNotFound, "NOT_FOUND")
}

func TestUpdateSalesRecord_NegativeTotalRejected(t *testing.T) {
	ts := newTestServer(t, nil)
	sale := ts.createSale("draft")

	rec := ts.do(http.MethodPatch, "/api/sales-records/"+sale.RecordNumber, map[string]any{"discount": "1000"})
	resp := expectError(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")
	if resp.Field != "discount" {
		t.Errorf("field = %q", resp.Field)
	}
}

func TestGatewayPayment(t *testing.T) {
	ts := newTestServer(t, nil)
	sale := ts.createSale("completed")
	path := fmt.Sprintf("/api/sales-records/%d/payments", sale.ID)

	expectError(t, ts.do(http.MethodPost, path, map[string]any{"succeeded": false, "amount": "150"}), http.StatusPaymentRequired, "PAYMENT_FAILED")

	rec := ts.do(http.MethodPost, path, map[string]any{"succeeded": true, "amount": "150", "payment_method": "credit_card"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body)
	}
	var got core.SalesRecord
	decodeBody(t, rec, &got)
	if got.PaymentStatus != core.PaymentPaid {
		t.Errorf("payment_status = %s", got.PaymentStatus)
	}
}

func TestRecordSatisfaction_OnlyOnce(t *testing.T) {
	ts := newTestServer(t, nil)
	draft := ts.createSale("draft")
	completed := ts.createSale("completed")

	expectError(t, ts.do(http.MethodPost, fmt.Sprintf("/api/sales-records/%d/satisfaction", draft.ID),
		map[string]any{"rating": 5}), http.StatusConflict, "CONFLICT")

	path := fmt.Sprintf("/api/sales-records/%d/satisfaction", completed.ID)
	if rec := ts.do(http.MethodPost, path, map[string]any{"rating": 5, "feedback": "great"}); rec.Code != http.StatusCreated {
		t.Fatalf("first submission: status %d body %s", rec.Code, rec.Body)
	}
	expectError(t, ts.do(http.MethodPost, path, map[string]any{"rating": 3}), http.StatusConflict, "CONFLICT")
}

func TestFollowUpNotesAndOverdue(t *testing.T) {
	ts := newTestServer(t, nil)
	sale := ts.createSale("completed")
	base := fmt.Sprintf("/api/sales-records/%d", sale.ID)

	rec := ts.do(http.MethodPost, base+"/follow-up-notes", map[string]string{"content": "Left voicemail"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add note: status %d body %s", rec.Code, rec.Body)
	}
	var got core.SalesRecord
	decodeBody(t, rec, &got)
	if len(got.FollowUpNotes) != 1 || got.FollowUpNotes[0].AuthorID != 7 {
		t.Errorf("notes = %+v", got.FollowUpNotes)
	}

	rec = ts.do(http.MethodPut, base+"/follow-up", map[string]string{"follow_up_status": "scheduled", "follow_up_date": "2024-03-18"})
	if rec.Code != http.StatusOK {
		t.Fatalf("schedule: status %d body %s", rec.Code, rec.Body)
	}

	rec = ts.do(http.MethodPost, "/api/sales-records/mark-overdue", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("mark overdue: status %d", rec.Code)
	}
	var marked map[string]int
	decodeBody(t, rec, &marked)
	if marked["marked"] != 1 {
		t.Errorf("marked = %d, want 1", marked["marked"])
	}
}

func TestDraftFollowUp(t *testing.T) {
	ts := newTestServer(t, nil)
	sale := ts.createSale("completed")
	path := fmt.Sprintf("/api/sales-records/%d/follow-up-draft", sale.ID)
	expectError(t, ts.do(http.MethodPost, path, nil), http.StatusServiceUnavailable, "AI_UNAVAILABLE")

	ts = newTestServer(t, fakeDrafter{})
	sale = ts.createSale("completed")
	rec := ts.do(http.MethodPost, fmt.Sprintf("/api/sales-records/%d/follow-up-draft", sale.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body)
	}
	var draft ai.FollowUpDraft
	decodeBody(t, rec, &draft)
	if draft.Subject != "Thanks, Ada Lovelace" || draft.SuggestedDays != 14 {
		t.Errorf("draft = %+v", draft)
	}
}

func TestSalesStats(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.createSale("completed")
	ts.createSale("draft")

	rec := ts.do(http.MethodGet, "/api/sales-records/stats?from=2024-03-01&to=2024-03-31", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body)
	}
	var stats core.SalesStats
	decodeBody(t, rec, &stats)
	if stats.TotalSales != 2 || !stats.TotalRevenue.Equal(decimal.RequireFromString("300")) || stats.TotalItems != 6 {
		t.Errorf("stats = %+v", stats)
	}

	rec = ts.do(http.MethodGet, "/api/sales-records/stats?from=2023-01-01&to=2023-01-31", nil)
	decodeBody(t, rec, &stats)
	if stats.TotalSales != 0 || !stats.AvgSaleValue.IsZero() {
		t.Errorf("empty range stats = %+v", stats)
	}

	resp := expectError(t, ts.do(http.MethodGet, "/api/sales-records/stats?from=2024-04-01&to=2024-03-01", nil),
		http.StatusBadRequest, "VALIDATION_ERROR")
	if resp.Field != "from" {
		t.Errorf("field = %q", resp.Field)
	}
}

func TestListSalesRecords_Filters(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.createSale("completed")
	ts.createSale("draft")

	rec := ts.do(http.MethodGet, "/api/sales-records?status=completed", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var list []core.SalesRecord
	decodeBody(t, rec, &list)
	if len(list) != 1 || list[0].Status != core.SalesCompleted {
		t.Errorf("list = %+v", list)
	}

	rec = ts.do(http.MethodGet, "/api/sales-records?to=2024-03-15", nil)
	decodeBody(t, rec, &list)
	if len(list) != 2 {
		t.Errorf("inclusive to-date: got %d records, want 2", len(list))
	}

	expectError(t, ts.do(http.MethodGet, "/api/sales-records?status=lost", nil), http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestExportSales(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.createSale("completed")

	rec := ts.do(http.MethodGet, "/api/sales-records/export?from=2024-03-01&to=2024-03-31", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != export.ContentType {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "sales_20240301_20240331.xlsx") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if rec.Body.Len() == 0 {
		t.Error("empty workbook")
	}
}

// ── customers ────────────────────────────────────────────────────────────────

func TestCustomers(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := expectError(t, ts.do(http.MethodPost, "/api/customers", map[string]string{"first_name": "Grace"}),
		http.StatusBadRequest, "VALIDATION_ERROR")
	if resp.Field != "last_name" {
		t.Errorf("field = %q", resp.Field)
	}

	expectError(t, ts.do(http.MethodGet, "/api/customers/5", nil), http.StatusNotFound, "NOT_FOUND")
	expectError(t, ts.do(http.MethodGet, "/api/customers/abc", nil), http.StatusBadRequest, "VALIDATION_ERROR")

	rec := ts.do(http.MethodGet, "/api/customers/1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body)
	}
}

// ── memberships ──────────────────────────────────────────────────────────────

func TestMemberships(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := expectError(t, ts.do(http.MethodPost, "/api/memberships",
		map[string]any{"customer_id": 1, "plan": "Oil club", "billing_cycle": "weekly", "price": "19.99"}),
		http.StatusBadRequest, "VALIDATION_ERROR")
	if resp.Field != "billing_cycle" {
		t.Errorf("field = %q", resp.Field)
	}

	rec := ts.do(http.MethodPost, "/api/memberships",
		map[string]any{"customer_id": 1, "plan": "Oil club", "billing_cycle": "monthly", "price": "19.99", "start_date": "2024-01-31"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", rec.Code, rec.Body)
	}
	var m core.Membership
	decodeBody(t, rec, &m)
	if m.NextBillingDate.Format("2006-01-02") != "2024-02-29" {
		t.Errorf("next_billing_date = %s, want 2024-02-29", m.NextBillingDate.Format("2006-01-02"))
	}

	rec = ts.do(http.MethodGet, "/api/memberships/due?as_of=2024-02-29", nil)
	var due []core.Membership
	decodeBody(t, rec, &due)
	if len(due) != 1 {
		t.Fatalf("due = %d, want 1", len(due))
	}

	rec = ts.do(http.MethodPost, fmt.Sprintf("/api/memberships/%d/renew", m.ID), map[string]string{"billed_at": "2024-02-29"})
	if rec.Code != http.StatusOK {
		t.Fatalf("renew: status %d body %s", rec.Code, rec.Body)
	}
	decodeBody(t, rec, &m)
	if m.NextBillingDate.Format("2006-01-02") != "2024-03-29" || m.LastBilledAt == nil {
		t.Errorf("after renew = %+v", m)
	}

	path := fmt.Sprintf("/api/memberships/%d/cancel", m.ID)
	if rec := ts.do(http.MethodPost, path, nil); rec.Code != http.StatusOK {
		t.Fatalf("cancel: status %d", rec.Code)
	}
	expectError(t, ts.do(http.MethodPost, path, nil), http.StatusConflict, "CONFLICT")
	expectError(t, ts.do(http.MethodPost, "/api/memberships/99/renew", nil), http.StatusNotFound, "NOT_FOUND")
}
