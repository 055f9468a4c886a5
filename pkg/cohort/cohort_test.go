package cohort

import (
	"testing"
	"time"

	"deposit-tracking/pkg/models"

	"github.com/shopspring/decimal"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func rec(seq int, id string, typ models.DepositType, date time.Time, amount string) models.DepositRecord {
	return models.DepositRecord{
		Seq:          seq,
		ID:           id,
		Type:         typ,
		Date:         date,
		Amount:       decimal.RequireFromString(amount),
		AmountParsed: true,
	}
}

func monthOf(y int, m time.Month) *time.Time {
	t := day(y, m, 1)
	return &t
}

func TestCompute_MonthScenario(t *testing.T) {
	records := []models.DepositRecord{
		rec(0, "A001", models.TypeFTD, day(2025, 9, 5), "100.5"),
		rec(1, "A001", models.TypeRTN, day(2025, 9, 20), "30"),
	}
	res := Compute(records, models.Filters{Month: monthOf(2025, 9)})

	if res.FTDCount != 1 || res.STDCount != 1 {
		t.Fatalf("got ftd=%d std=%d, want 1/1", res.FTDCount, res.STDCount)
	}
	if len(res.Detail) != 1 {
		t.Fatalf("got %d detail rows, want 1", len(res.Detail))
	}
	row := res.Detail[0]
	if row.Date != "2025-09-20" {
		t.Fatalf("std date %q, want 2025-09-20", row.Date)
	}
	if !row.Amount.Equal(decimal.RequireFromString("30")) {
		t.Fatalf("std amount %s, want 30", row.Amount)
	}
	if row.DepositCount != 1 {
		t.Fatalf("deposit_count %d, want constant 1", row.DepositCount)
	}
}

func TestCompute_EarliestRTNWins(t *testing.T) {
	records := []models.DepositRecord{
		rec(0, "A001", models.TypeFTD, day(2025, 9, 5), "100"),
		rec(1, "A001", models.TypeRTN, day(2025, 9, 25), "40"),
		rec(2, "A001", models.TypeRTN, day(2025, 9, 12), "20"),
	}
	res := Compute(records, models.Filters{Month: monthOf(2025, 9)})

	if res.STDCount != 1 {
		t.Fatalf("std_count %d, want exactly 1 per id", res.STDCount)
	}
	if got := res.STD[0].STD.Date; !got.Equal(day(2025, 9, 12)) {
		t.Fatalf("std date %v, want the earlier RTN 2025-09-12", got)
	}
}

func TestCompute_TieBreaksOnRowOrder(t *testing.T) {
	records := []models.DepositRecord{
		rec(0, "A001", models.TypeFTD, day(2025, 9, 5), "100"),
		rec(7, "A001", models.TypeRTN, day(2025, 9, 12), "40"),
		rec(3, "A001", models.TypeRTN, day(2025, 9, 12), "20"),
	}
	res := Compute(records, models.Filters{Month: monthOf(2025, 9)})

	if res.STDCount != 1 {
		t.Fatalf("std_count %d, want 1", res.STDCount)
	}
	if got := res.STD[0].STD.Seq; got != 3 {
		t.Fatalf("tie on equal dates must pick lowest seq, got %d", got)
	}
}

func TestCompute_RTNOnFTDDateDoesNotQualify(t *testing.T) {
	records := []models.DepositRecord{
		rec(0, "A001", models.TypeFTD, day(2025, 9, 5), "100"),
		rec(1, "A001", models.TypeRTN, day(2025, 9, 5), "30"),
	}
	res := Compute(records, models.Filters{Month: monthOf(2025, 9)})
	if res.STDCount != 0 {
		t.Fatalf("std must be strictly after ftd, got std_count=%d", res.STDCount)
	}
}

func TestCompute_EndDateBoundsFollowUps(t *testing.T) {
	end := day(2025, 9, 15)
	records := []models.DepositRecord{
		rec(0, "A001", models.TypeFTD, day(2025, 9, 5), "100"),
		rec(1, "A001", models.TypeRTN, day(2025, 9, 20), "30"),
	}
	res := Compute(records, models.Filters{Month: monthOf(2025, 9), End: &end})
	if res.STDCount != 0 {
		t.Fatalf("rtn after end date must not count, got std_count=%d", res.STDCount)
	}
}

func TestCompute_DuplicateFTDDedup(t *testing.T) {
	records := []models.DepositRecord{
		rec(0, "A001", models.TypeFTD, day(2025, 9, 8), "100"),
		rec(1, "A001", models.TypeFTD, day(2025, 9, 3), "50"),
		rec(2, "A001", models.TypeRTN, day(2025, 9, 5), "30"),
	}
	res := Compute(records, models.Filters{Month: monthOf(2025, 9)})

	if res.FTDCount != 1 {
		t.Fatalf("ftd_count %d, want 1 per id per cohort", res.FTDCount)
	}
	// The chronologically first FTD (Sep 3) anchors the cohort, so the
	// Sep 5 RTN qualifies.
	if res.STDCount != 1 {
		t.Fatalf("std_count %d, want 1 against the earliest FTD", res.STDCount)
	}
}

func TestCompute_EmptyTable(t *testing.T) {
	res := Compute(nil, models.Filters{Month: monthOf(2025, 9)})
	if res.FTDCount != 0 || res.STDCount != 0 || res.TotalDeposits != 0 {
		t.Fatalf("empty input must produce zero aggregates: %+v", res)
	}
	if !res.TotalAmount.IsZero() || len(res.Detail) != 0 {
		t.Fatalf("empty input must produce empty detail: %+v", res)
	}
}

func TestCompute_CountryFilterNoMatch(t *testing.T) {
	records := []models.DepositRecord{
		rec(0, "A001", models.TypeFTD, day(2025, 9, 5), "100"),
		rec(1, "A001", models.TypeRTN, day(2025, 9, 20), "30"),
	}
	res := Compute(records, models.Filters{
		Month:     monthOf(2025, 9),
		Countries: []string{"Atlantis"},
	})
	if res.FTDCount != 0 || res.STDCount != 0 || res.TotalDeposits != 0 || !res.TotalAmount.IsZero() {
		t.Fatalf("no-match filter must behave like an empty table: %+v", res)
	}
}

func TestCompute_NoMonthReportsScopedVolume(t *testing.T) {
	records := []models.DepositRecord{
		rec(0, "A001", models.TypeFTD, day(2025, 9, 5), "100.5"),
		rec(1, "A001", models.TypeRTN, day(2025, 9, 20), "30"),
		rec(2, "B002", models.TypeFTD, day(2025, 10, 1), "10"),
	}
	res := Compute(records, models.Filters{})

	if res.FTDCount != 2 {
		t.Fatalf("ftd_count %d, want raw FTD row count 2", res.FTDCount)
	}
	if res.TotalDeposits != 3 {
		t.Fatalf("total_deposits %d, want all scoped rows", res.TotalDeposits)
	}
	if !res.TotalAmount.Equal(decimal.RequireFromString("140.5")) {
		t.Fatalf("total_amount %s, want 140.5", res.TotalAmount)
	}
	if len(res.Detail) != 3 {
		t.Fatalf("detail must cover the scoped table, got %d rows", len(res.Detail))
	}
}

func TestCompute_IDFilter(t *testing.T) {
	records := []models.DepositRecord{
		rec(0, "A001", models.TypeFTD, day(2025, 9, 5), "100"),
		rec(1, "A001", models.TypeRTN, day(2025, 9, 20), "30"),
		rec(2, "B002", models.TypeFTD, day(2025, 9, 6), "50"),
		rec(3, "B002", models.TypeRTN, day(2025, 9, 21), "25"),
	}
	res := Compute(records, models.Filters{Month: monthOf(2025, 9), ID: "A001"})
	if res.FTDCount != 1 || res.STDCount != 1 {
		t.Fatalf("got ftd=%d std=%d, want 1/1 for the selected id", res.FTDCount, res.STDCount)
	}
	if res.STD[0].STD.ID != "A001" {
		t.Fatalf("unexpected id %q", res.STD[0].STD.ID)
	}
}

func TestCompute_FollowUpOutsideCohortMonthStillCounts(t *testing.T) {
	// Cohort is anchored to the FTD month; the follow-up may land later.
	records := []models.DepositRecord{
		rec(0, "A001", models.TypeFTD, day(2025, 9, 28), "100"),
		rec(1, "A001", models.TypeRTN, day(2025, 10, 3), "30"),
	}
	res := Compute(records, models.Filters{Month: monthOf(2025, 9)})
	if res.STDCount != 1 {
		t.Fatalf("std in the following month must count, got %d", res.STDCount)
	}
}

func TestGroupByCountry(t *testing.T) {
	records := []models.DepositRecord{
		{Seq: 0, Country: "Mexico", Amount: decimal.RequireFromString("10"), Date: day(2025, 9, 1)},
		{Seq: 1, Country: "Mexico", Amount: decimal.RequireFromString("5"), Date: day(2025, 9, 2)},
		{Seq: 2, Country: "Chile", Amount: decimal.RequireFromString("7"), Date: day(2025, 9, 3)},
		{Seq: 3, Country: "", Amount: decimal.RequireFromString("99"), Date: day(2025, 9, 4)},
	}
	got := GroupByCountry(records, models.Filters{})
	if len(got) != 2 {
		t.Fatalf("got %d groups, want 2 (absent country excluded)", len(got))
	}
	if got[0].Key != "Chile" || got[1].Key != "Mexico" {
		t.Fatalf("groups must sort by key: %+v", got)
	}
	if got[1].Count != 2 || !got[1].Amount.Equal(decimal.RequireFromString("15")) {
		t.Fatalf("mexico totals wrong: %+v", got[1])
	}
}

func TestMonthOptions(t *testing.T) {
	records := []models.DepositRecord{
		{Date: day(2025, 10, 7)},
		{Date: day(2025, 9, 5)},
		{Date: day(2025, 9, 20)},
	}
	got := MonthOptions(records)
	if len(got) != 2 {
		t.Fatalf("got %d months, want 2", len(got))
	}
	if !got[0].Equal(day(2025, 9, 1)) || !got[1].Equal(day(2025, 10, 1)) {
		t.Fatalf("unexpected month options: %v", got)
	}
}

func TestParseMonth_Valid(t *testing.T) {
	got, err := ParseMonth("092025")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(day(2025, 9, 1)) {
		t.Fatalf("got %v, want 2025-09-01", got)
	}
}

func TestParseMonth_InvalidLength(t *testing.T) {
	if _, err := ParseMonth("92025"); err == nil {
		t.Fatal("expected error for invalid length, got nil")
	}
}

func TestParseMonth_InvalidMonth(t *testing.T) {
	if _, err := ParseMonth("132025"); err == nil {
		t.Fatal("expected error for invalid month, got nil")
	}
}

func TestParseMonth_NonDigits(t *testing.T) {
	if _, err := ParseMonth("ab2025"); err == nil {
		t.Fatal("expected error for non-digit input, got nil")
	}
}

func TestFormatMonth(t *testing.T) {
	if fm := FormatMonth(day(2025, 11, 1)); fm != "11/2025" {
		t.Fatalf("got %q, want %q", fm, "11/2025")
	}
}
