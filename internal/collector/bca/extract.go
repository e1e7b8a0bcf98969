package bca

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"bankstatements/internal/collector"
	"bankstatements/internal/components/telemetry"
	"bankstatements/internal/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const report_bca_extract = "bca.extract-statements"

// the statement is the 5th table of the page
const statementTable = 4

// cell positions within a statement row: Tgl, Keterangan, Cab, Mutasi, DB/CR, Saldo
const (
	columnDate        = 0
	columnDescription = 1
	columnAmount      = 3
	columnType        = 4
	columnBalance     = 5
)

const pendingDate = "PEND"

func parseDay(raw string, month time.Time) (string, error) {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if raw == pendingDate {
		return month.Format("2006-01") + "-00", nil
	}
	day, err := strconv.Atoi(strings.TrimSpace(strings.Split(raw, "/")[0]))
	if err != nil || day < 1 || day > 31 {
		return "", fmt.Errorf("invalid day '%s'", raw)
	}
	return fmt.Sprintf("%s-%02d", month.Format("2006-01"), day), nil
}

// extractStatements reads the statement table, the first row is the header.
// Rows are dated within the month of `start`.
func extractStatements(
	doc *goquery.Document,
	start time.Time,
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
		if len(cells) <= columnBalance {
			tel.ReportWarning(report_bca_extract, fmt.Errorf("row %d: expected %d cells, got %d", i+1, columnBalance+1, len(cells)))
			continue
		}

		date, err := parseDay(htmlutil.Text(cells[columnDate]), start)
		if err != nil {
			tel.ReportWarning(report_bca_extract, fmt.Errorf("row %d: %w", i+1, err))
			continue
		}
		description := htmlutil.Description(cells[columnDescription])
		amount := strings.ReplaceAll(htmlutil.Text(cells[columnAmount]), ",", "")
		txType := strings.ToUpper(htmlutil.Text(cells[columnType]))
		balance := strings.ReplaceAll(htmlutil.Text(cells[columnBalance]), ",", "")

		if !collector.ValidAmount(amount) {
			tel.ReportWarning(report_bca_extract, fmt.Errorf("row %d: invalid amount '%s'", i+1, amount))
			continue
		}

		entities = append(entities, collector.Entity{
			AccountID: params["account_id"],
			// the date is left out on purpose, pending rows change their date once they settle
			UniqueID:    collector.Identifier(params, description, txType, amount, balance),
			Date:        date,
			Description: description,
			Type:        collector.TransactionType(txType),
			Amount:      amount,
		})
	}

	return entities, nil
}
