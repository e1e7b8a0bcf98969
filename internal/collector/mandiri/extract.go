package mandiri

import (
	"fmt"
	"strings"

	"bankstatements/internal/collector"
	"bankstatements/internal/components/telemetry"
	"bankstatements/internal/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const report_mandiri_extract = "mandiri.extract-statements"

const statementTable = 4

// cell positions within a statement row: Tanggal, Keterangan, Debet, Kredit
const (
	columnDate        = 0
	columnDescription = 1
	columnDebit       = 2
	columnCredit      = 3
)

// the value the bank puts in the amount column that does not apply
const zeroAmount = "0,00"

// normalizeAmount turns "1.234,56" into "1234.56", already normalized amounts are left alone.
func normalizeAmount(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, ",") {
		raw = strings.ReplaceAll(raw, ".", "")
		return strings.ReplaceAll(raw, ",", ".")
	}
	if strings.Count(raw, ".") > 1 {
		return strings.ReplaceAll(raw, ".", "")
	}
	return raw
}

// parseDate turns DD/MM/YYYY into YYYY-MM-DD.
func parseDate(raw string) (string, error) {
	parts := strings.Split(strings.TrimSpace(raw), "/")
	if len(parts) != 3 {
		return "", fmt.Errorf("invalid date '%s'", raw)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
		if parts[i] == "" {
			return "", fmt.Errorf("invalid date '%s'", raw)
		}
	}
	return parts[2] + "-" + parts[1] + "-" + parts[0], nil
}

// extractStatements reads the statement table in the order the bank shows it.
func extractStatements(
	doc *goquery.Document,
	params map[string]string,
	tel telemetry.API,
) ([]collector.Entity, error) {
	table, ok := htmlutil.NthTable(doc, statementTable)
	if !ok {
		return nil, collector.ParsingError("required table not found at index #%d", statementTable)
	}

	rows := htmlutil.TableRows(table)
	if len(rows) <= 1 {
		return nil, nil
	}

	var entities []collector.Entity
	for i, row := range rows[1:] {
		cells := htmlutil.RowCells(row)
		if len(cells) <= 1 {
			continue
		}
		if len(cells) <= columnCredit {
			tel.ReportWarning(report_mandiri_extract, fmt.Errorf("row %d: expected %d cells, got %d", i+1, columnCredit+1, len(cells)))
			continue
		}

		date, err := parseDate(htmlutil.Text(cells[columnDate]))
		if err != nil {
			tel.ReportWarning(report_mandiri_extract, fmt.Errorf("row %d: %w", i+1, err))
			continue
		}
		description := htmlutil.Description(cells[columnDescription])

		debit := htmlutil.Text(cells[columnDebit])
		txType := collector.Debit
		amount := debit
		if debit == zeroAmount {
			txType = collector.Credit
			amount = htmlutil.Text(cells[columnCredit])
		}
		amount = normalizeAmount(amount)

		if !collector.ValidAmount(amount) {
			tel.ReportWarning(report_mandiri_extract, fmt.Errorf("row %d: invalid amount '%s'", i+1, amount))
			continue
		}

		entities = append(entities, collector.Entity{
			AccountID:   params["account_id"],
			UniqueID:    collector.Identifier(params, date, description, string(txType), amount),
			Date:        date,
			Description: description,
			Type:        txType,
			Amount:      amount,
		})
	}

	return entities, nil
}
