// Package comparison computes discount rates between KB appraisal prices
// and the most recent matching transaction, persisting one Comparison row
// per (complex, area) pair, plus a read-only per-listing projection.
package comparison

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/yourorg/apt-bargain-aggregator/internal/store"
)

const (
	lookbackDays  = 90
	areaTolerance = 3.0
)

// Summary is returned by Engine.Run.
type Summary struct {
	Updated int
	Skipped int
}

type Engine struct {
	Store *store.Store
	// Now is overridable for tests; defaults to time.Now at construction.
	Now func() time.Time
}

func NewEngine(st *store.Store) *Engine {
	return &Engine{Store: st, Now: time.Now}
}

// Run recomputes every Comparison row in a single pass, dominated by the
// cardinality of AppraisalPrice (spec §4.7: "no incremental optimization
// needed").
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	var summary Summary
	now := e.Now()
	since := now.AddDate(0, 0, -lookbackDays)

	tx, err := e.Store.BeginTx(ctx)
	if err != nil {
		return summary, fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	prices, err := store.FetchAppraisalPrices(ctx, tx)
	if err != nil {
		return summary, fmt.Errorf("fetch appraisal prices: %w", err)
	}

	for _, p := range prices {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		recent, count, ok, err := store.FetchRecentTransaction(ctx, tx, p.ComplexID, p.AreaSqm, areaTolerance, since)
		if err != nil {
			return summary, fmt.Errorf("fetch recent transaction: %w", err)
		}
		if !ok {
			summary.Skipped++
			continue
		}
		discount := discountRate(p.PriceMid, recent.DealPrice)
		if err := store.UpsertComparison(ctx, tx, store.ComparisonUpsert{
			ComplexID:       p.ComplexID,
			AreaSqm:         p.AreaSqm,
			AppraisalMid:    p.PriceMid,
			RecentDealPrice: recent.DealPrice,
			RecentDealDate:  recent.DealDate,
			DiscountRate:    discount,
			DealCount3M:     count,
		}); err != nil {
			return summary, fmt.Errorf("upsert comparison: %w", err)
		}
		summary.Updated++
	}

	if err := tx.Commit(); err != nil {
		return summary, fmt.Errorf("commit: %w", err)
	}
	committed = true
	return summary, nil
}

// discountRate computes (mid - deal) / mid * 100 rounded to 2 decimals.
func discountRate(priceMid, dealPrice int) float64 {
	if priceMid == 0 {
		return 0
	}
	raw := (float64(priceMid) - float64(dealPrice)) / float64(priceMid) * 100
	return math.Round(raw*100) / 100
}
