package transactions

import "time"

// RawTransaction is one normalized <item> from the government transactions
// registry, with cancelled records already dropped (cdealType == "O").
type RawTransaction struct {
	AptName       string
	Dong          string // 법정동 (umdNm)
	Jibun         string
	AreaExclusive float64
	Floor         *int
	DealPrice     int // 10,000 KRW units, comma stripped
	DealDate      time.Time
	BuildYear     *int
}

// TransactionPage is one fetch_page result with the source-reported total.
// RawItemCount is the number of <item> elements the page actually returned
// before cancelled-deal filtering, used to drive pagination (a page full of
// only-cancelled deals must not look like a short final page).
type TransactionPage struct {
	Transactions []RawTransaction
	TotalCount   int
	RawItemCount int
}
