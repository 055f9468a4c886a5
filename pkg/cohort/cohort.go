package cohort

import (
	"fmt"
	"sort"
	"time"

	"deposit-tracking/pkg/models"

	"github.com/shopspring/decimal"
)

// Compute runs one full cohort pass over the canonical table.
//
// Without a reporting month there is no cohort to anchor, so the cards
// report raw scoped volume. With a month, FTDs in that month define the
// cohort and every metric besides the FTD count is measured on the STD
// set: the earliest RTN per cohort id strictly after that id's FTD date.
//
// The table is read-only shared state; each call works on private copies
// and mutates nothing.
func Compute(records []models.DepositRecord, f models.Filters) models.CohortResult {
	scoped := applyFilters(records, f)
	if f.Month == nil {
		return scopedResult(scoped)
	}

	// Origination set: FTDs anchored to the reporting month, one per id.
	// On duplicate FTDs the chronologically first wins, then lowest Seq.
	ftdByID := make(map[string]models.DepositRecord)
	anonFTDs := 0 // FTD rows without an id still count, but cannot join
	for _, r := range scoped {
		if r.Type != models.TypeFTD || !sameMonth(r.Date, *f.Month) {
			continue
		}
		if r.ID == "" {
			anonFTDs++
			continue
		}
		cur, seen := ftdByID[r.ID]
		if !seen || earlier(r, cur) {
			ftdByID[r.ID] = r
		}
	}

	// Follow-up set: earliest RTN per id after its own FTD date, bounded
	// by the end date when one is set. Ties on date break on lowest Seq.
	best := make(map[string]models.DepositRecord)
	for _, r := range scoped {
		if r.Type != models.TypeRTN || r.ID == "" {
			continue
		}
		ftd, ok := ftdByID[r.ID]
		if !ok || !r.Date.After(ftd.Date) {
			continue
		}
		if f.End != nil && r.Date.After(*f.End) {
			continue
		}
		cur, seen := best[r.ID]
		if !seen || earlier(r, cur) {
			best[r.ID] = r
		}
	}

	pairs := make([]models.CohortPair, 0, len(best))
	for id, std := range best {
		pairs = append(pairs, models.CohortPair{FTD: ftdByID[id], STD: std})
	}
	sort.Slice(pairs, func(i, j int) bool {
		return earlier(pairs[i].STD, pairs[j].STD)
	})

	res := models.CohortResult{
		FTDCount:      len(ftdByID) + anonFTDs,
		STDCount:      len(pairs),
		TotalDeposits: len(pairs),
		TotalAmount:   decimal.Zero,
		STD:           pairs,
	}
	stdRecords := make([]models.DepositRecord, len(pairs))
	for i, p := range pairs {
		stdRecords[i] = p.STD
		res.TotalAmount = res.TotalAmount.Add(p.STD.Amount)
	}
	res.Detail = detailRows(stdRecords)
	return res
}

// scopedResult covers the no-month mode: raw volume over the scoped table.
func scopedResult(scoped []models.DepositRecord) models.CohortResult {
	res := models.CohortResult{TotalAmount: decimal.Zero}
	for _, r := range scoped {
		if r.Type == models.TypeFTD {
			res.FTDCount++
		}
		res.TotalAmount = res.TotalAmount.Add(r.Amount)
	}
	res.TotalDeposits = len(scoped)
	res.Detail = detailRows(scoped)
	return res
}

// applyFilters keeps a row iff it matches every active predicate.
func applyFilters(records []models.DepositRecord, f models.Filters) []models.DepositRecord {
	teams := toSet(f.Teams)
	agents := toSet(f.Agents)
	countries := toSet(f.Countries)
	affiliates := toSet(f.Affiliates)

	out := make([]models.DepositRecord, 0, len(records))
	for _, r := range records {
		if f.Start != nil && r.Date.Before(*f.Start) {
			continue
		}
		if f.End != nil && r.Date.After(*f.End) {
			continue
		}
		if teams != nil && !teams[r.Team] {
			continue
		}
		if agents != nil && !agents[r.Agent] {
			continue
		}
		if countries != nil && !countries[r.Country] {
			continue
		}
		if affiliates != nil && !affiliates[r.Affiliate] {
			continue
		}
		if f.ID != "" && r.ID != f.ID {
			continue
		}
		out = append(out, r)
	}
	return out
}

// GroupByCountry feeds the country pie chart: deposit count and amount
// sum per country over the scoped table.
func GroupByCountry(records []models.DepositRecord, f models.Filters) []models.GroupTotal {
	return groupBy(applyFilters(records, f), func(r models.DepositRecord) string { return r.Country })
}

// GroupByAffiliate feeds the affiliate pie chart.
func GroupByAffiliate(records []models.DepositRecord, f models.Filters) []models.GroupTotal {
	return groupBy(applyFilters(records, f), func(r models.DepositRecord) string { return r.Affiliate })
}

func groupBy(records []models.DepositRecord, key func(models.DepositRecord) string) []models.GroupTotal {
	totals := make(map[string]*models.GroupTotal)
	for _, r := range records {
		k := key(r)
		if k == "" {
			continue
		}
		g, ok := totals[k]
		if !ok {
			g = &models.GroupTotal{Key: k, Amount: decimal.Zero}
			totals[k] = g
		}
		g.Count++
		g.Amount = g.Amount.Add(r.Amount)
	}
	out := make([]models.GroupTotal, 0, len(totals))
	for _, g := range totals {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// MonthOptions lists the distinct reporting months present in the table,
// ascending, as first-of-month dates. This backs the month selector.
func MonthOptions(records []models.DepositRecord) []time.Time {
	seen := make(map[time.Time]bool)
	for _, r := range records {
		m := time.Date(r.Date.Year(), r.Date.Month(), 1, 0, 0, 0, 0, time.UTC)
		seen[m] = true
	}
	out := make([]time.Time, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func detailRows(records []models.DepositRecord) []models.DetailRow {
	rows := make([]models.DetailRow, len(records))
	for i, r := range records {
		rows[i] = models.DetailRow{
			Date:         r.Date.Format("2006-01-02"),
			ID:           r.ID,
			Agent:        r.Agent,
			Team:         r.Team,
			Country:      r.Country,
			Affiliate:    r.Affiliate,
			Amount:       r.Amount,
			DepositCount: 1,
		}
	}
	return rows
}

// earlier orders records by date, then by original row order so equal
// dates resolve deterministically.
func earlier(a, b models.DepositRecord) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	return a.Seq < b.Seq
}

func sameMonth(t, month time.Time) bool {
	return t.Year() == month.Year() && t.Month() == month.Month()
}

func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	s := make(map[string]bool, len(values))
	for _, v := range values {
		s[v] = true
	}
	return s
}

// ParseMonth("MMYYYY") -> first day of the month, UTC.
func ParseMonth(mmyyyy string) (time.Time, error) {
	if len(mmyyyy) != 6 {
		return time.Time{}, fmt.Errorf("expected MMYYYY (e.g. 092025)")
	}
	for _, c := range mmyyyy {
		if c < '0' || c > '9' {
			return time.Time{}, fmt.Errorf("expected MMYYYY (e.g. 092025)")
		}
	}
	month := int(mmyyyy[0]-'0')*10 + int(mmyyyy[1]-'0')
	year := int(mmyyyy[2]-'0')*1000 + int(mmyyyy[3]-'0')*100 + int(mmyyyy[4]-'0')*10 + int(mmyyyy[5]-'0')
	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("invalid month %02d", month)
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), nil
}

// FormatMonth renders a month anchor as "MM/YYYY" for labels.
func FormatMonth(t time.Time) string {
	return fmt.Sprintf("%02d/%04d", int(t.Month()), t.Year())
}
