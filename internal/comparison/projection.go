package comparison

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/yourorg/apt-bargain-aggregator/internal/store"
)

// ListingComparison is a read-only, not-persisted comparison of one active
// listing's asking price against the same-area appraisal midpoint.
// Addresses spec §9 Open Question #2: a per-listing variant is allowed as
// additive, never feeding back into the canonical comparisons table.
type ListingComparison struct {
	ListingID    string
	ComplexID    string
	AreaSqm      float64
	AskingPrice  int
	AppraisalMid int
	DiscountRate float64
}

// PerListingProjection computes ListingComparison values on read.
type PerListingProjection struct {
	Store *store.Store
}

func NewPerListingProjection(st *store.Store) *PerListingProjection {
	return &PerListingProjection{Store: st}
}

// Compare looks up one active listing and its same-area appraisal
// midpoint, returning nil (no error) when either is missing.
func (p *PerListingProjection) Compare(ctx context.Context, listingID string) (*ListingComparison, error) {
	var (
		complexID   string
		areaSqm     float64
		askingPrice int
	)
	err := p.Store.DB.QueryRowContext(ctx, `
        SELECT complex_id, area_sqm, asking_price FROM listings
        WHERE id = $1 AND is_active = TRUE`, listingID).Scan(&complexID, &areaSqm, &askingPrice)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch listing %s: %w", listingID, err)
	}

	var mid int
	err = p.Store.DB.QueryRowContext(ctx, `
        SELECT price_mid FROM appraisal_prices
        WHERE complex_id = $1 AND area_sqm BETWEEN $2 AND $3
        ORDER BY abs(area_sqm - $4) ASC LIMIT 1`,
		complexID, areaSqm-areaTolerance, areaSqm+areaTolerance, areaSqm).Scan(&mid)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch appraisal price for listing %s: %w", listingID, err)
	}

	return &ListingComparison{
		ListingID:    listingID,
		ComplexID:    complexID,
		AreaSqm:      areaSqm,
		AskingPrice:  askingPrice,
		AppraisalMid: mid,
		DiscountRate: discountRate(mid, askingPrice),
	}, nil
}

// Bargain is one row of TopBargains.
type Bargain struct {
	ComplexID       string
	ComplexName     string
	AreaSqm         float64
	AppraisalMid    int
	RecentDealPrice int
	RecentDealDate  time.Time
	DiscountRate    float64
	DealCount3M     int
}

// TopBargains lists the highest-discount comparisons, grounded on
// original_source's price_comparison_service.get_top_bargains.
func TopBargains(ctx context.Context, st *store.Store, limit int) ([]Bargain, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := st.DB.QueryContext(ctx, `
        SELECT c.complex_id, x.name, c.area_sqm, c.appraisal_mid, c.recent_deal_price, c.recent_deal_date, c.discount_rate, c.deal_count_3m
        FROM comparisons c
        JOIN complexes x ON x.id = c.complex_id
        ORDER BY c.discount_rate DESC
        LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query top bargains: %w", err)
	}
	defer rows.Close()

	var out []Bargain
	for rows.Next() {
		var b Bargain
		if err := rows.Scan(&b.ComplexID, &b.ComplexName, &b.AreaSqm, &b.AppraisalMid, &b.RecentDealPrice, &b.RecentDealDate, &b.DiscountRate, &b.DealCount3M); err != nil {
			return nil, fmt.Errorf("scan bargain: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
