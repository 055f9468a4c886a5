package models

import (
	"time"

	"github.com/shopspring/decimal"
)

/*
LOAD → raw table shape handed over by the database loader or the CSV snapshot.
*/

// RawTable is an arbitrary-width row table whose column names are still
// whatever the monthly source used. Cells are plain strings; typing only
// happens in the normalizer.
type RawTable struct {
	Columns []string
	Rows    [][]string
}

/*
CLEAN → canonical record produced by the normalizer.
*/

// DepositType tags a record as an origination (FTD) or follow-up (RTN)
// deposit. Other tags are carried through but ignored by the cohort engine.
type DepositType string

const (
	TypeFTD     DepositType = "FTD"
	TypeRTN     DepositType = "RTN"
	TypeUnknown DepositType = "UNKNOWN"
)

// DepositRecord is one canonical deposit event.
type DepositRecord struct {
	Seq          int       // original row order; deterministic tie-break key
	ID           string    // account identifier, "" when absent
	Date         time.Time // date precision, UTC
	Type         DepositType
	Amount       decimal.Decimal
	AmountParsed bool // false when Amount is the 0 parse default
	Team         string
	Agent        string
	Country      string
	Affiliate    string
	Method       string
	Source       string
}

/*
COMPUTE → filter parameters and cohort output.
*/

// Filters is the full set of dashboard filter controls. A nil pointer,
// nil slice or empty string means "no constraint".
type Filters struct {
	Start      *time.Time
	End        *time.Time
	Month      *time.Time // first day of the reporting month (FTD base)
	Teams      []string
	Agents     []string
	Countries  []string
	Affiliates []string
	ID         string
}

// CohortPair couples an origination deposit with its earliest qualifying
// follow-up. Derived on every computation, never stored.
type CohortPair struct {
	FTD DepositRecord
	STD DepositRecord
}

// DetailRow backs the visual detail table. Date is preformatted
// YYYY-MM-DD; DepositCount is a constant 1 so downstream sums work.
type DetailRow struct {
	Date         string
	ID           string
	Agent        string
	Team         string
	Country      string
	Affiliate    string
	Amount       decimal.Decimal
	DepositCount int
}

// CohortResult contains the card metrics and the detail table for one
// filter configuration.
type CohortResult struct {
	FTDCount      int
	STDCount      int
	TotalDeposits int
	TotalAmount   decimal.Decimal
	Detail        []DetailRow
	STD           []CohortPair
}

// GroupTotal is one slice of the by-country / by-affiliate chart feeds.
type GroupTotal struct {
	Key    string
	Count  int
	Amount decimal.Decimal
}
