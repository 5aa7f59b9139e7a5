// Package export renders sales records as an .xlsx workbook.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"autoshop-crm/internal/core"
)

const (
	SalesSheet = "Sales"
	ItemsSheet = "Items"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var salesHeaders = []string{
	"Record Number", "Sale Date", "Customer", "Sales Person", "Status", "Payment Status",
	"Subtotal", "Tax", "Discount", "Total",
}

var itemHeaders = []string{
	"Record Number", "Line", "Item", "Quantity", "Unit Price", "Total Price",
}

// Filename names an export covering [from, to].
func Filename(from, to time.Time) string {
	return fmt.Sprintf("sales_%s_%s.xlsx", from.UTC().Format("20060102"), to.UTC().Format("20060102"))
}

// WriteSalesWorkbook writes a "Sales" sheet (one row per record plus a summary
// row built from stats) and an "Items" sheet (one row per line item) to w.
func WriteSalesWorkbook(w io.Writer, records []core.SalesRecord, stats core.SalesStats) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SalesSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(ItemsSheet); err != nil {
		return fmt.Errorf("create items sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	summaryStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create summary style: %w", err)
	}

	if err := writeHeader(f, SalesSheet, salesHeaders, headerStyle); err != nil {
		return err
	}
	if err := writeHeader(f, ItemsSheet, itemHeaders, headerStyle); err != nil {
		return err
	}

	itemRow := 2
	for i, r := range records {
		row := i + 2
		values := []any{
			r.RecordNumber,
			r.SaleDate.UTC().Format("2006-01-02"),
			r.CustomerName,
			r.SalesPersonID,
			string(r.Status),
			string(r.PaymentStatus),
			r.Subtotal.InexactFloat64(),
			r.Tax.InexactFloat64(),
			r.Discount.InexactFloat64(),
			r.Total.InexactFloat64(),
		}
		if err := writeRow(f, SalesSheet, row, values); err != nil {
			return err
		}

		for line, it := range r.Items {
			if err := writeRow(f, ItemsSheet, itemRow, []any{
				r.RecordNumber,
				line + 1,
				it.Name,
				it.Quantity,
				it.UnitPrice.InexactFloat64(),
				it.TotalPrice.InexactFloat64(),
			}); err != nil {
				return err
			}
			itemRow++
		}
	}

	summaryRow := len(records) + 2
	if err := writeRow(f, SalesSheet, summaryRow, []any{
		"Summary",
		fmt.Sprintf("%d sales", stats.TotalSales),
		fmt.Sprintf("%d items", stats.TotalItems),
		fmt.Sprintf("avg %s", stats.AvgSaleValue.StringFixed(2)),
		nil, nil, nil, nil, nil,
		stats.TotalRevenue.InexactFloat64(),
	}); err != nil {
		return err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(salesHeaders))
	if err := f.SetCellStyle(SalesSheet, fmt.Sprintf("A%d", summaryRow), fmt.Sprintf("%s%d", lastCol, summaryRow), summaryStyle); err != nil {
		return fmt.Errorf("style summary row: %w", err)
	}

	setWidths(f, SalesSheet, []float64{18, 12, 24, 12, 12, 14, 12, 10, 10, 12})
	setWidths(f, ItemsSheet, []float64{18, 6, 30, 10, 12, 12})

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("write %s header: %w", sheet, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return fmt.Errorf("style %s header: %w", sheet, err)
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	for i, v := range values {
		if v == nil {
			continue
		}
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetCellValue(sheet, fmt.Sprintf("%s%d", col, row), v); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, row, err)
		}
	}
	return nil
}

func setWidths(f *excelize.File, sheet string, widths []float64) {
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}
}
