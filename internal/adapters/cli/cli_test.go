package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"autoshop-crm/internal/app"
	"autoshop-crm/internal/core"
	"autoshop-crm/internal/store/memory"
)

type fakeMemberships struct {
	core.MembershipService
	asOf time.Time
	due  []core.Membership
}

func (f *fakeMemberships) ListDueMemberships(_ context.Context, asOf time.Time) ([]core.Membership, error) {
	f.asOf = asOf
	return f.due, nil
}

func newCLIService(t *testing.T, memberships core.MembershipService) app.ApplicationService {
	t.Helper()
	now := time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC)
	store := memory.NewSalesRecordStore()
	sales := core.NewSalesRecordService(store, nil, core.WithClock(func() time.Time { return now }))
	svc := app.NewAppService(sales, nil, memberships, nil, nil, nil)

	_, err := svc.CreateSalesRecord(context.Background(), app.CreateSalesRecordRequest{
		CustomerID:    1,
		SalesPersonID: 7,
		SaleDate:      now,
		Items: []core.LineItem{
			{Name: "Alignment", Quantity: 1, UnitPrice: decimal.RequireFromString("89.50"), TotalPrice: decimal.RequireFromString("89.50")},
		},
	})
	if err != nil {
		t.Fatalf("seed sale: %v", err)
	}
	return svc
}

func TestRunStats(t *testing.T) {
	svc := newCLIService(t, nil)
	var out bytes.Buffer
	if err := Run(context.Background(), svc, []string{"stats", "2024-03-01", "2024-03-31", "7"}, &out); err != nil {
		t.Fatalf("Run stats: %v", err)
	}
	for _, want := range []string{"SALES 2024-03-01 .. 2024-03-31", "Sales person : 7", "89.50"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunGet(t *testing.T) {
	svc := newCLIService(t, nil)
	var out bytes.Buffer
	if err := Run(context.Background(), svc, []string{"get", "SR-202403-0001"}, &out); err != nil {
		t.Fatalf("Run get: %v", err)
	}
	if !strings.Contains(out.String(), `"record_number": "SR-202403-0001"`) {
		t.Errorf("unexpected output:\n%s", out.String())
	}

	err := Run(context.Background(), svc, []string{"get", "SR-202403-0009"}, &out)
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRunExport(t *testing.T) {
	svc := newCLIService(t, nil)
	path := filepath.Join(t.TempDir(), "march.xlsx")
	var out bytes.Buffer
	if err := Run(context.Background(), svc, []string{"export", "2024-03-01", "2024-03-31", path}, &out); err != nil {
		t.Fatalf("Run export: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		t.Fatalf("workbook not written: %v", err)
	}
}

func TestRunDueMemberships(t *testing.T) {
	fake := &fakeMemberships{due: []core.Membership{{
		ID: 3, CustomerName: "Ada Lovelace", Plan: "Oil club", BillingCycle: core.CycleMonthly,
		Price: decimal.RequireFromString("19.99"), NextBillingDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}}}
	svc := newCLIService(t, fake)
	var out bytes.Buffer
	if err := Run(context.Background(), svc, []string{"due-memberships", "2024-03-15"}, &out); err != nil {
		t.Fatalf("Run due-memberships: %v", err)
	}
	if !fake.asOf.Equal(time.Date(2024, 3, 15, 23, 59, 59, 999999999, time.UTC)) {
		t.Errorf("as_of = %v, want end of day", fake.asOf)
	}
	if !strings.Contains(out.String(), "Oil club") || !strings.Contains(out.String(), "19.99") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

func TestRunUsageErrors(t *testing.T) {
	svc := newCLIService(t, nil)
	var out bytes.Buffer
	for _, args := range [][]string{nil, {"bogus"}, {"stats", "2024-03-01"}, {"stats", "2024-03-01", "2024-03-31", "x"}, {"get"}} {
		if err := Run(context.Background(), svc, args, &out); !errors.Is(err, ErrUsage) {
			t.Errorf("Run(%v): expected ErrUsage, got %v", args, err)
		}
	}
}

func TestRunInteractive(t *testing.T) {
	svc := newCLIService(t, nil)
	in := strings.NewReader("help\nget 1\nget nope\nquit\nget 1\n")
	var out bytes.Buffer
	RunInteractive(context.Background(), svc, in, &out)

	s := out.String()
	if !strings.Contains(s, "Available commands") {
		t.Error("help not printed")
	}
	if strings.Count(s, `"record_number"`) != 1 {
		t.Errorf("expected exactly one record before quit:\n%s", s)
	}
	if !strings.Contains(s, "Error:") {
		t.Error("lookup error not reported")
	}
}
