package normalizer

import (
	"strings"
	"time"
	"unicode"

	"deposit-tracking/pkg/models"

	"github.com/shopspring/decimal"
)

// columnAliases maps every historical column name seen across the monthly
// source tables to its canonical field. Consulted once per table after
// headers are lowercased, trimmed and space→underscore normalized — no
// runtime probing.
var columnAliases = map[string]string{
	"data": "date", "fecha": "date", "date_ftd": "date", "fechadep": "date",
	"fecha_dep": "date", "fecha_rtn": "date", "fecha_de_registro": "date",

	"usuario": "id", "id_user": "id", "id_usuario": "id",

	"equipo": "team", "team_name": "team", "leader_team": "team", "team_lader": "team",

	"agente": "agent", "agent_sales": "agent", "agent_name": "agent",

	"pais": "country", "country_name": "country",

	"afiliado": "affiliate", "affiliate_name": "affiliate",

	"type": "deposit_type",

	"usd": "amount", "usd_total": "amount", "monto": "amount",
	"amount_country": "amount", "usd_monto": "amount",
	"total_amount": "amount", "deposit_amount": "amount",

	"origen": "source", "source_name": "source",

	"metodo": "method", "payment_method": "method",
}

// CanonicalColumn normalizes a raw header and resolves it through the
// alias table. Unrecognized names pass through normalized.
func CanonicalColumn(name string) string {
	c := strings.ToLower(strings.TrimSpace(name))
	c = strings.ReplaceAll(c, " ", "_")
	if canon, ok := columnAliases[c]; ok {
		return canon
	}
	return c
}

// Normalize turns a raw source table into canonical deposit records.
// Rows without a parseable date are dropped; every other field is cleaned
// best-effort. Pure: the input table is not modified.
func Normalize(raw models.RawTable) []models.DepositRecord {
	idx := make(map[string]int, len(raw.Columns))
	for i, col := range raw.Columns {
		canon := CanonicalColumn(col)
		if _, seen := idx[canon]; !seen {
			idx[canon] = i
		}
	}
	cell := func(row []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	records := make([]models.DepositRecord, 0, len(raw.Rows))
	for seq, row := range raw.Rows {
		date, ok := CleanDate(cell(row, "date"))
		if !ok {
			continue
		}
		amount, parsed := CleanAmount(cell(row, "amount"))
		records = append(records, models.DepositRecord{
			Seq:          seq,
			ID:           CleanText(cell(row, "id")),
			Date:         date,
			Type:         depositType(cell(row, "deposit_type")),
			Amount:       amount,
			AmountParsed: parsed,
			Team:         CleanText(cell(row, "team")),
			Agent:        CleanText(cell(row, "agent")),
			Country:      CleanText(cell(row, "country")),
			Affiliate:    CleanText(cell(row, "affiliate")),
			Method:       CleanText(cell(row, "method")),
			Source:       CleanText(cell(row, "source")),
		})
	}
	return records
}

func depositType(s string) models.DepositType {
	v := strings.ToUpper(strings.TrimSpace(s))
	switch v {
	case "", "NAN", "NONE":
		return models.TypeUnknown
	}
	return models.DepositType(v)
}

// CleanAmount applies the currency separator heuristic: strip everything
// but digits, separators and sign; when both separators appear, the one
// furthest right is the decimal point and the other is a thousands
// separator; a lone comma is always a decimal point. Returns false when
// the value had to default to zero.
func CleanAmount(s string) (decimal.Decimal, bool) {
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
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// CleanDate parses the two date shapes the sources use: DD/MM/YYYY when a
// slash is present, otherwise the ISO date before the first space.
// Timestamps come back date-only in UTC; false means the row must be
// dropped.
func CleanDate(s string) (time.Time, bool) {
	v := strings.TrimSpace(s)
	if v == "" {
		return time.Time{}, false
	}
	if strings.Contains(v, "/") {
		t, err := time.Parse("02/01/2006", v)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	if i := strings.IndexByte(v, ' '); i >= 0 {
		v = v[:i]
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// CleanText trims, title-cases and collapses the nan/none placeholders the
// monthly sheets are full of. "" means absent.
func CleanText(s string) string {
	v := strings.TrimSpace(s)
	switch strings.ToLower(v) {
	case "", "nan", "none":
		return ""
	}
	return titleCase(v)
}

// titleCase uppercases the first letter of every alphabetic run and
// lowercases the rest, matching the casing the master table historically
// carries.
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		switch {
		case !unicode.IsLetter(r):
			b.WriteRune(r)
			prevLetter = false
		case prevLetter:
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(unicode.ToUpper(r))
			prevLetter = true
		}
	}
	return b.String()
}
