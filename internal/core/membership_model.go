package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type BillingCycle string

const (
	CycleMonthly   BillingCycle = "monthly"
	CycleQuarterly BillingCycle = "quarterly"
	CycleYearly    BillingCycle = "yearly"
)

// Months is the number of calendar months one cycle spans, 0 for an unknown cycle.
func (c BillingCycle) Months() int {
	switch c {
	case CycleMonthly:
		return 1
	case CycleQuarterly:
		return 3
	case CycleYearly:
		return 12
	}
	return 0
}

func (c BillingCycle) Valid() bool { return c.Months() > 0 }

type MembershipStatus string

const (
	MembershipActive    MembershipStatus = "active"
	MembershipPaused    MembershipStatus = "paused"
	MembershipCancelled MembershipStatus = "cancelled"
	MembershipExpired   MembershipStatus = "expired"
)

// Membership is a recurring service plan a customer pays for each billing cycle.
type Membership struct {
	ID              int              `json:"id"`
	CustomerID      int              `json:"customer_id"`
	CustomerName    string           `json:"customer_name,omitempty"` // joined from customers
	Plan            string           `json:"plan"`
	BillingCycle    BillingCycle     `json:"billing_cycle"`
	Price           decimal.Decimal  `json:"price"`
	Status          MembershipStatus `json:"status"`
	StartDate       time.Time        `json:"start_date"`
	NextBillingDate time.Time        `json:"next_billing_date"`
	LastBilledAt    *time.Time       `json:"last_billed_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

type MembershipInput struct {
	CustomerID   int
	Plan         string
	BillingCycle BillingCycle
	Price        decimal.Decimal
	StartDate    time.Time // zero means today
}

func (in MembershipInput) Validate() error {
	if in.CustomerID <= 0 {
		return invalid("customer_id", "is required")
	}
	if strings.TrimSpace(in.Plan) == "" {
		return invalid("plan", "is required")
	}
	if !in.BillingCycle.Valid() {
		return invalid("billing_cycle", "unknown value %q", in.BillingCycle)
	}
	if err := validateMoney("price", in.Price); err != nil {
		return err
	}
	return nil
}

// NextBillingDate advances from by one billing cycle. The day of month is kept
// where the target month has it and clamped to the month's last day otherwise,
// so Jan 31 + monthly is Feb 28 (Feb 29 in leap years). Calendar days are
// taken in UTC whatever location from carries.
func NextBillingDate(from time.Time, cycle BillingCycle) time.Time {
	return addMonthsClamped(from.UTC(), cycle.Months())
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	target := time.Date(y, m, 1, 0, 0, 0, 0, t.Location()).AddDate(0, months, 0)
	if last := daysInMonth(target.Year(), target.Month(), t.Location()); d > last {
		d = last
	}
	return time.Date(target.Year(), target.Month(), d,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
