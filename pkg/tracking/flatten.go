// Package tracking flattens the monthly FTD/RTN source tables into the
// unified TEXT-typed master table the deposit dashboards read.
package tracking

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"regexp"
	"strings"

	"deposit-tracking/pkg/models"
	"deposit-tracking/pkg/normalizer"

	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"
)

// masterColumns is the fixed projection of the master table; month_name
// and type are appended by BuildClean.
var masterColumns = []string{
	"date", "id", "team", "agent", "country",
	"affiliate", "method", "usd", "source",
}

var (
	tableNameRe  = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	yearSuffixRe = regexp.MustCompile(`_\d{4}$`)
	dateCellRe   = regexp.MustCompile(`^\d{1,4}([/-]\d{1,2}){1,2}$`)
)

// LooksLikeHeaderRow reports whether row 0 of a table is actually the
// header, which happens when a sheet was imported under generic column
// names (col1, unnamed_3, num_...). Heuristic: at least half the column
// names are generic and at least 40% of the first-row cells are
// non-date text.
func LooksLikeHeaderRow(t models.RawTable) bool {
	if len(t.Columns) == 0 || len(t.Rows) == 0 {
		return false
	}
	generic := 0
	for _, c := range t.Columns {
		lc := strings.ToLower(c)
		if strings.HasPrefix(lc, "col") || strings.Contains(lc, "unnamed") || strings.HasPrefix(lc, "num_") {
			generic++
		}
	}
	if generic*2 < len(t.Columns) {
		return false
	}
	texts := 0
	for _, cell := range t.Rows[0] {
		if cell != "" && !dateCellRe.MatchString(cell) {
			texts++
		}
	}
	return texts*5 >= len(t.Rows[0])*2
}

// PromoteHeader takes row 0 as the header and drops it from the rows.
func PromoteHeader(t models.RawTable) models.RawTable {
	if len(t.Rows) == 0 {
		return t
	}
	header := make([]string, len(t.Columns))
	for i := range header {
		if i < len(t.Rows[0]) {
			header[i] = t.Rows[0][i]
		}
	}
	return models.RawTable{Columns: header, Rows: t.Rows[1:]}
}

// StandardizeColumns rewrites every header through the shared alias
// table. Rows are untouched.
func StandardizeColumns(t models.RawTable) models.RawTable {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = normalizer.CanonicalColumn(c)
	}
	return models.RawTable{Columns: cols, Rows: t.Rows}
}

// BuildClean projects one standardized monthly table onto the master
// column set, cleans the amount cell to a plain numeric string, stamps
// the month label and deposit type, and drops rows with no content in
// any projected column.
func BuildClean(t models.RawTable, monthLabel string, depType models.DepositType) models.RawTable {
	idx := make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		if _, seen := idx[c]; !seen {
			idx[c] = i
		}
	}
	cell := func(row []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	out := models.RawTable{Columns: append(append([]string{}, masterColumns...), "month_name", "type")}
	for _, row := range t.Rows {
		vals := make([]string, 0, len(out.Columns))
		empty := true
		for _, col := range masterColumns {
			src := col
			if col == "usd" {
				src = "amount" // canonical name after StandardizeColumns
			}
			v := cell(row, src)
			if col == "usd" {
				v = CleanAmountString(v)
			}
			if v != "" {
				empty = false
			}
			vals = append(vals, v)
		}
		if empty {
			continue
		}
		vals = append(vals, monthLabel, string(depType))
		out.Rows = append(out.Rows, vals)
	}
	return out
}

// CleanAmountString normalizes a currency cell to a plain numeric string,
// or "" when the cell cannot be read as a number. The master table stays
// TEXT-typed, so unlike the canonical normalizer this works at the string
// level; a lone comma is a decimal point only when it cuts off a 2- or
// 3-digit tail, otherwise it is a thousands separator.
func CleanAmountString(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		if (r >= '0' && r <= '9') || r == ',' || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()

	hasComma := strings.Contains(cleaned, ",")
	hasDot := strings.Contains(cleaned, ".")
	switch {
	case hasComma && hasDot:
		if strings.LastIndex(cleaned, ",") > strings.LastIndex(cleaned, ".") {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case hasComma:
		parts := strings.Split(cleaned, ",")
		if n := len(parts[len(parts)-1]); n == 2 || n == 3 {
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	}

	if _, err := decimal.NewFromString(cleaned); err != nil {
		return ""
	}
	return cleaned
}

// MonthLabel derives the three-letter month tag from a source table name:
// "ftds_sep_2025" and "dep_sep_rtn_2025" both yield "Sep".
func MonthLabel(table string) string {
	m := strings.ToLower(table)
	m = strings.TrimPrefix(m, "ftds_")
	m = strings.TrimPrefix(m, "dep_")
	m = yearSuffixRe.ReplaceAllString(m, "")
	m = strings.TrimSuffix(m, "_rtn")
	if len(m) > 3 {
		m = m[:3]
	}
	if m == "" {
		return ""
	}
	return strings.ToUpper(m[:1]) + m[1:]
}

// TypeOf tags a source table as FTD or RTN from its name.
func TypeOf(table string) models.DepositType {
	if strings.Contains(strings.ToLower(table), "ftd") {
		return models.TypeFTD
	}
	return models.TypeRTN
}

// Concat appends tables that share BuildClean's column layout.
func Concat(tables ...models.RawTable) models.RawTable {
	var out models.RawTable
	for _, t := range tables {
		if out.Columns == nil {
			out.Columns = t.Columns
		}
		out.Rows = append(out.Rows, t.Rows...)
	}
	return out
}

// WriteMaster drops and recreates the master table, then inserts every
// row. All columns are TEXT; typing is the normalizer's job at read time.
func WriteMaster(ctx context.Context, db *sql.DB, table string, t models.RawTable) error {
	if !tableNameRe.MatchString(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		return fmt.Errorf("drop %s: %w", table, err)
	}
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = c + " TEXT"
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", "))
	if _, err := db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create %s: %w", table, err)
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(t.Columns, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(t.Columns)), ", "))
	stmt, err := db.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	bar := progressbar.Default(int64(len(t.Rows)))
	for _, row := range t.Rows {
		args := make([]any, len(t.Columns))
		for i := range t.Columns {
			if i < len(row) && row[i] != "" {
				args[i] = row[i]
			} else {
				args[i] = nil
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert into %s: %w", table, err)
		}
		_ = bar.Add(1)
	}
	return nil
}

// WritePreviewCSV mirrors the master table to the snapshot file the
// dashboards fall back to when the database is unreachable.
func WritePreviewCSV(path string, t models.RawTable) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.Columns); err != nil {
		return err
	}
	for _, row := range t.Rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
