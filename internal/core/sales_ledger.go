package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const recordNumberPrefix = "SR"

// Money columns are NUMERIC(14, 2): two fractional digits and twelve integer digits.
const moneyScale = 2

var moneyLimit = decimal.New(1, 12)

// validateMoney rejects amounts the money columns would round or overflow.
func validateMoney(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return invalid(field, "must be >= 0")
	}
	if d.Exponent() < -moneyScale && !d.Equal(d.Round(moneyScale)) {
		return invalid(field, "must have at most %d decimal places", moneyScale)
	}
	if d.GreaterThanOrEqual(moneyLimit) {
		return invalid(field, "must be less than %s", moneyLimit.String())
	}
	return nil
}

// RecordPeriod returns the YYYYMM key a sale date is numbered under.
// Sale dates are bucketed by their UTC calendar month.
func RecordPeriod(saleDate time.Time) string {
	t := saleDate.UTC()
	return fmt.Sprintf("%04d%02d", t.Year(), int(t.Month()))
}

// MonthBounds returns the first instant of the sale date's month and the first
// instant of the following month (inclusive start, exclusive end).
func MonthBounds(saleDate time.Time) (time.Time, time.Time) {
	t := saleDate.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// FormatRecordNumber renders SR-YYYYMM-NNNN for the given month sequence.
func FormatRecordNumber(saleDate time.Time, seq int64) string {
	return fmt.Sprintf("%s-%s-%04d", recordNumberPrefix, RecordPeriod(saleDate), seq)
}

// ParseRecordNumber splits a record number into its period and sequence.
func ParseRecordNumber(number string) (period string, seq int64, err error) {
	parts := strings.Split(number, "-")
	if len(parts) != 3 || parts[0] != recordNumberPrefix || len(parts[1]) != 6 || len(parts[2]) < 4 {
		return "", 0, fmt.Errorf("malformed record number %q", number)
	}
	if _, err := strconv.Atoi(parts[1]); err != nil {
		return "", 0, fmt.Errorf("malformed record number %q", number)
	}
	seq, err = strconv.ParseInt(parts[2], 10, 64)
	if err != nil || seq < 1 {
		return "", 0, fmt.Errorf("malformed record number %q", number)
	}
	return parts[1], seq, nil
}

// RecomputeTotals derives subtotal (sum of item totals) and total (subtotal + tax - discount).
func RecomputeTotals(items []LineItem, tax, discount decimal.Decimal) (subtotal, total decimal.Decimal) {
	subtotal = decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.TotalPrice)
	}
	total = subtotal.Add(tax).Sub(discount)
	return subtotal, total
}

// applyTotals overwrites the record's aggregates from its items, tax and discount.
// A discount larger than subtotal + tax is rejected rather than persisted as a negative total.
func applyTotals(rec *SalesRecord) error {
	if err := validateMoney("tax", rec.Tax); err != nil {
		return err
	}
	if err := validateMoney("discount", rec.Discount); err != nil {
		return err
	}
	subtotal, total := RecomputeTotals(rec.Items, rec.Tax, rec.Discount)
	if total.IsNegative() {
		return invalid("discount", "%s exceeds subtotal plus tax (%s)",
			rec.Discount.StringFixed(2), subtotal.Add(rec.Tax).StringFixed(2))
	}
	if subtotal.GreaterThanOrEqual(moneyLimit) {
		return invalid("items", "subtotal %s must be less than %s", subtotal.StringFixed(2), moneyLimit.String())
	}
	if total.GreaterThanOrEqual(moneyLimit) {
		return invalid("total", "%s must be less than %s", total.StringFixed(2), moneyLimit.String())
	}
	rec.Subtotal = subtotal
	rec.Total = total
	return nil
}

func validateLineItems(items []LineItem) error {
	if len(items) == 0 {
		return invalid("items", "at least one line item is required")
	}
	for i, it := range items {
		field := fmt.Sprintf("items[%d]", i)
		if strings.TrimSpace(it.Name) == "" {
			return invalid(field+".name", "is required")
		}
		if it.Quantity < 1 {
			return invalid(field+".quantity", "must be >= 1")
		}
		if it.Quantity > math.MaxInt32 {
			return invalid(field+".quantity", "must be <= %d", math.MaxInt32)
		}
		if err := validateMoney(field+".unit_price", it.UnitPrice); err != nil {
			return err
		}
		if err := validateMoney(field+".total_price", it.TotalPrice); err != nil {
			return err
		}
	}
	return nil
}

// newSalesStats builds the stats shape from raw aggregates.
// AvgSaleValue is zero when there are no sales.
func newSalesStats(count int, revenue decimal.Decimal, items int) SalesStats {
	stats := SalesStats{
		TotalSales:   count,
		TotalRevenue: revenue,
		TotalItems:   items,
		AvgSaleValue: decimal.Zero,
	}
	if count > 0 {
		stats.AvgSaleValue = revenue.DivRound(decimal.NewFromInt(int64(count)), 2)
	}
	return stats
}

// AggregateSalesStats folds a set of records into SalesStats.
func AggregateSalesStats(records []SalesRecord) SalesStats {
	revenue := decimal.Zero
	items := 0
	for _, r := range records {
		revenue = revenue.Add(r.Total)
		for _, it := range r.Items {
			items += it.Quantity
		}
	}
	return newSalesStats(len(records), revenue, items)
}

// InStatsRange reports whether t lies in the inclusive [from, to] window.
func InStatsRange(t, from, to time.Time) bool {
	return !t.Before(from) && !t.After(to)
}
