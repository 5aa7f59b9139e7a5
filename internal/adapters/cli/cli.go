package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"autoshop-crm/internal/app"
	"autoshop-crm/internal/core"
)

// Usage lists the one-shot commands understood by Run.
const Usage = `Available commands:
  stats <from> <to> [sales_person_id]   sales statistics for an inclusive date range
  export <from> <to> <file.xlsx>        write the range as an Excel workbook
  get <ref>                             print one sales record (id or SR-YYYYMM-NNNN)
  overdue                               mark scheduled follow-ups past their date as overdue
  due-memberships [as_of]               list active memberships due for billing`

// ErrUsage is returned for unknown commands or wrong arguments.
var ErrUsage = errors.New("usage")

// Run executes a one-shot CLI command, writing its output to out.
// args is os.Args[1:]; the first element is the subcommand name.
func Run(ctx context.Context, svc app.ApplicationService, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: no command\n%s", ErrUsage, Usage)
	}

	switch args[0] {
	case "stats":
		if len(args) < 3 {
			return fmt.Errorf("%w: app stats <from> <to> [sales_person_id]", ErrUsage)
		}
		from, to, err := app.ParseDateRange(args[1], args[2])
		if err != nil {
			return err
		}
		req := app.SalesStatsRequest{From: from, To: to}
		if len(args) > 3 {
			var id int
			if _, err := fmt.Sscanf(args[3], "%d", &id); err != nil {
				return fmt.Errorf("%w: sales_person_id must be numeric", ErrUsage)
			}
			req.SalesPersonID = &id
		}
		result, err := svc.GetSalesStats(ctx, req)
		if err != nil {
			return err
		}
		printStats(out, result)

	case "export":
		if len(args) < 4 {
			return fmt.Errorf("%w: app export <from> <to> <file.xlsx>", ErrUsage)
		}
		from, to, err := app.ParseDateRange(args[1], args[2])
		if err != nil {
			return err
		}
		f, err := os.Create(args[3])
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", args[3], err)
		}
		if err := svc.ExportSales(ctx, f, from, to); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to write %s: %w", args[3], err)
		}
		fmt.Fprintf(out, "Exported sales %s..%s to %s\n", from.Format("2006-01-02"), to.Format("2006-01-02"), args[3])

	case "get":
		if len(args) < 2 {
			return fmt.Errorf("%w: app get <ref>", ErrUsage)
		}
		result, err := svc.GetSalesRecord(ctx, args[1])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result.Record)

	case "overdue":
		n, err := svc.MarkOverdueFollowUps(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d follow-up(s) marked overdue.\n", n)

	case "due-memberships":
		asOf := time.Now().UTC()
		if len(args) > 1 {
			d, err := app.ParseEndDate("as_of", args[1])
			if err != nil {
				return err
			}
			asOf = d
		}
		list, err := svc.ListDueMemberships(ctx, asOf)
		if err != nil {
			return err
		}
		printMemberships(out, list, asOf)

	default:
		return fmt.Errorf("%w: unknown command %q\n%s", ErrUsage, args[0], Usage)
	}
	return nil
}

// RunInteractive reads commands line by line until EOF, "exit" or "quit".
// Errors are printed and the loop continues.
func RunInteractive(ctx context.Context, svc app.ApplicationService, in io.Reader, out io.Writer) {
	reader := bufio.NewScanner(in)
	fmt.Fprintln(out, "Auto-shop CRM console. Type 'help' for commands.")
	for {
		fmt.Fprint(out, "\n> ")
		if !reader.Scan() {
			return
		}
		tokens := strings.Fields(reader.Text())
		if len(tokens) == 0 {
			continue
		}
		switch strings.ToLower(tokens[0]) {
		case "exit", "quit":
			return
		case "help":
			fmt.Fprintln(out, Usage)
			continue
		}
		if err := Run(ctx, svc, tokens, out); err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
}

func printStats(out io.Writer, result *app.SalesStatsResult) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("=", 50))
	fmt.Fprintf(out, "  SALES %s .. %s\n", result.From.Format("2006-01-02"), result.To.Format("2006-01-02"))
	if result.SalesPersonID != nil {
		fmt.Fprintf(out, "  Sales person : %d\n", *result.SalesPersonID)
	}
	fmt.Fprintln(out, strings.Repeat("=", 50))
	fmt.Fprintf(out, "  %-20s %25d\n", "Sales", result.Stats.TotalSales)
	fmt.Fprintf(out, "  %-20s %25d\n", "Items sold", result.Stats.TotalItems)
	fmt.Fprintf(out, "  %-20s %25s\n", "Revenue", result.Stats.TotalRevenue.StringFixed(2))
	fmt.Fprintf(out, "  %-20s %25s\n", "Average sale", result.Stats.AvgSaleValue.StringFixed(2))
	fmt.Fprintln(out, strings.Repeat("=", 50))
}

func printMemberships(out io.Writer, list []core.Membership, asOf time.Time) {
	fmt.Fprintf(out, "Memberships due on or before %s: %d\n", asOf.Format("2006-01-02"), len(list))
	if len(list) == 0 {
		return
	}
	fmt.Fprintf(out, "  %-6s %-24s %-16s %-10s %12s  %s\n", "ID", "CUSTOMER", "PLAN", "CYCLE", "PRICE", "DUE")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 84))
	for _, m := range list {
		fmt.Fprintf(out, "  %-6d %-24s %-16s %-10s %12s  %s\n",
			m.ID, m.CustomerName, m.Plan, m.BillingCycle, m.Price.StringFixed(2), m.NextBillingDate.Format("2006-01-02"))
	}
}
