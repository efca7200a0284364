package store

import (
	"context"
	"database/sql"
	"time"
)

// ComplexUpsert is the input to UpsertComplex. ExternalListingID, when
// non-empty, is the hard dedup key; when empty, UpsertComplex always inserts
// a new row (the resolver takes that path only after its name match failed).
type ComplexUpsert struct {
	Name              string
	Province          string
	District          string
	SubDistrict       string
	AreaCode          string
	ExternalListingID string
	BuiltYear         *int
	TotalUnits        *int
	Lat               *float64
	Lon               *float64
}

// UpsertComplex inserts a new complex row or, when ExternalListingID
// matches an existing row, refreshes its mutable fields. Returns the row id.
func UpsertComplex(ctx context.Context, q Querier, in ComplexUpsert) (string, error) {
	var id string
	if in.ExternalListingID != "" {
		err := q.QueryRowContext(ctx, `
            INSERT INTO complexes (name, province, district, sub_district, area_code, external_listing_id, built_year, total_units, lat, lon)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
            ON CONFLICT (external_listing_id) WHERE external_listing_id IS NOT NULL DO UPDATE SET
                name = EXCLUDED.name,
                area_code = COALESCE(EXCLUDED.area_code, complexes.area_code),
                built_year = COALESCE(EXCLUDED.built_year, complexes.built_year),
                total_units = COALESCE(EXCLUDED.total_units, complexes.total_units),
                lat = COALESCE(EXCLUDED.lat, complexes.lat),
                lon = COALESCE(EXCLUDED.lon, complexes.lon),
                updated_at = now()
            RETURNING id`,
			in.Name, in.Province, in.District, in.SubDistrict, in.AreaCode, in.ExternalListingID,
			in.BuiltYear, in.TotalUnits, in.Lat, in.Lon,
		).Scan(&id)
		return id, err
	}
	err := q.QueryRowContext(ctx, `
        INSERT INTO complexes (name, province, district, sub_district, area_code, built_year, total_units, lat, lon)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id`,
		in.Name, in.Province, in.District, in.SubDistrict, in.AreaCode, in.BuiltYear, in.TotalUnits, in.Lat, in.Lon,
	).Scan(&id)
	return id, err
}

// UpdateComplexFields refreshes a subset of mutable complex columns by id,
// used by ResolveListing once it has found the row by external listing id
// and by the total_units backfill.
func UpdateComplexFields(ctx context.Context, q Querier, id string, areaCode string, totalUnits *int) error {
	_, err := q.ExecContext(ctx, `
        UPDATE complexes SET
            area_code = COALESCE(NULLIF($2, ''), area_code),
            total_units = COALESCE($3, total_units),
            updated_at = now()
        WHERE id = $1`, id, areaCode, totalUnits)
	return err
}

// ComplexCandidate is a (id, name) row used by the resolver's matching
// waterfall.
type ComplexCandidate struct {
	ID   string
	Name string
}

func FetchComplexCandidates(ctx context.Context, q Querier, province, district string) ([]ComplexCandidate, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name FROM complexes WHERE province = $1 AND district = $2`, province, district)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ComplexCandidate
	for rows.Next() {
		var c ComplexCandidate
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func FetchComplexByExternalListingID(ctx context.Context, q Querier, externalListingID string) (string, bool, error) {
	var id string
	err := q.QueryRowContext(ctx, `SELECT id FROM complexes WHERE external_listing_id = $1`, externalListingID).Scan(&id)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

type ComplexWithAreaCode struct {
	ID       string
	Name     string
	AreaCode string
}

// FetchComplexesWithAreaCode lists complexes that have a resolved 10-digit
// area code, the population the KB batch planner groups work over.
func FetchComplexesWithAreaCode(ctx context.Context, q Querier) ([]ComplexWithAreaCode, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name, area_code FROM complexes WHERE area_code IS NOT NULL AND area_code <> ''`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ComplexWithAreaCode
	for rows.Next() {
		var c ComplexWithAreaCode
		if err := rows.Scan(&c.ID, &c.Name, &c.AreaCode); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// FetchDistrictsForTransactions returns the distinct (province, district)
// pairs with at least one complex, served by the read API's /regions route.
func FetchDistrictsForTransactions(ctx context.Context, q Querier) ([][2]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT DISTINCT province, district FROM complexes`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out [][2]string
	for rows.Next() {
		var p, d string
		if err := rows.Scan(&p, &d); err != nil {
			return nil, err
		}
		out = append(out, [2]string{p, d})
	}
	return out, rows.Err()
}

// AppraisalPriceUpsert is the input to UpsertAppraisalPrice.
type AppraisalPriceUpsert struct {
	ComplexID string
	AreaSqm   float64
	PriceLow  *int
	PriceMid  int
	PriceHigh *int
}

func UpsertAppraisalPrice(ctx context.Context, q Querier, in AppraisalPriceUpsert) error {
	_, err := q.ExecContext(ctx, `
        INSERT INTO appraisal_prices (complex_id, area_sqm, price_low, price_mid, price_high)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (complex_id, area_sqm) DO UPDATE SET
            price_low = EXCLUDED.price_low,
            price_mid = EXCLUDED.price_mid,
            price_high = EXCLUDED.price_high,
            updated_at = now()`,
		in.ComplexID, in.AreaSqm, in.PriceLow, in.PriceMid, in.PriceHigh)
	return err
}

type AppraisalPriceRow struct {
	ComplexID string
	AreaSqm   float64
	PriceMid  int
}

// FetchAppraisalPrices lists every (complex, area) appraisal row, the
// comparison engine's outer loop.
func FetchAppraisalPrices(ctx context.Context, q Querier) ([]AppraisalPriceRow, error) {
	rows, err := q.QueryContext(ctx, `SELECT complex_id, area_sqm, price_mid FROM appraisal_prices`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AppraisalPriceRow
	for rows.Next() {
		var r AppraisalPriceRow
		if err := rows.Scan(&r.ComplexID, &r.AreaSqm, &r.PriceMid); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TransactionInsert is the input to InsertTransactionIfNew.
type TransactionInsert struct {
	ComplexID string
	AreaSqm   float64
	Floor     *int
	DealPrice int
	DealDate  time.Time
}

// InsertTransactionIfNew inserts a transaction unless a row already exists
// with the same (complex, area, floor, date, price) fingerprint, treating a
// NULL floor on both sides as equal — a duplicate, not a NULL mismatch.
func InsertTransactionIfNew(ctx context.Context, q Querier, in TransactionInsert) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `
        SELECT EXISTS(
            SELECT 1 FROM transactions
            WHERE complex_id = $1 AND area_sqm = $2 AND deal_date = $3 AND deal_price = $4
              AND floor IS NOT DISTINCT FROM $5
        )`, in.ComplexID, in.AreaSqm, in.DealDate, in.DealPrice, in.Floor).Scan(&exists)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	_, err = q.ExecContext(ctx, `
        INSERT INTO transactions (complex_id, area_sqm, floor, deal_price, deal_date)
        VALUES ($1,$2,$3,$4,$5)`,
		in.ComplexID, in.AreaSqm, in.Floor, in.DealPrice, in.DealDate)
	if err != nil {
		return false, err
	}
	return true, nil
}

type RecentTransaction struct {
	DealPrice int
	DealDate  time.Time
}

// FetchRecentTransaction returns the single most recent transaction for a
// complex within areaTolerance (spec §4.7: ±3.0 m²) of areaSqm, within the
// lookback window, and the count of transactions in that window (for the
// comparison engine's deal_count_3m).
func FetchRecentTransaction(ctx context.Context, q Querier, complexID string, areaSqm, areaTolerance float64, since time.Time) (RecentTransaction, int, bool, error) {
	var count int
	if err := q.QueryRowContext(ctx, `
        SELECT count(*) FROM transactions
        WHERE complex_id = $1 AND area_sqm BETWEEN $2 AND $3 AND deal_date >= $4`,
		complexID, areaSqm-areaTolerance, areaSqm+areaTolerance, since).Scan(&count); err != nil {
		return RecentTransaction{}, 0, false, err
	}
	if count == 0 {
		return RecentTransaction{}, 0, false, nil
	}
	var rt RecentTransaction
	err := q.QueryRowContext(ctx, `
        SELECT deal_price, deal_date FROM transactions
        WHERE complex_id = $1 AND area_sqm BETWEEN $2 AND $3 AND deal_date >= $4
        ORDER BY deal_date DESC LIMIT 1`,
		complexID, areaSqm-areaTolerance, areaSqm+areaTolerance, since).Scan(&rt.DealPrice, &rt.DealDate)
	if err != nil {
		return RecentTransaction{}, 0, false, err
	}
	return rt, count, true, nil
}

// ListingUpsert is the input to UpsertListing.
type ListingUpsert struct {
	ComplexID         string
	ExternalArticleID string
	AreaSqm           float64
	Floor             *int
	AskingPrice       int
	RegisteredAt      *time.Time
}

func UpsertListing(ctx context.Context, q Querier, in ListingUpsert) (string, error) {
	var id string
	err := q.QueryRowContext(ctx, `
        INSERT INTO listings (complex_id, external_article_id, area_sqm, floor, asking_price, registered_at, is_active)
        VALUES ($1,$2,$3,$4,$5,$6, TRUE)
        ON CONFLICT (external_article_id) DO UPDATE SET
            asking_price = EXCLUDED.asking_price,
            floor = EXCLUDED.floor,
            is_active = TRUE,
            updated_at = now()
        RETURNING id`,
		in.ComplexID, in.ExternalArticleID, in.AreaSqm, in.Floor, in.AskingPrice, in.RegisteredAt,
	).Scan(&id)
	return id, err
}

// DeactivateMissingListings marks every active listing under complexID
// inactive unless its external article id is in seenExternalIDs — the tail
// end of a full crawl pass over that complex. seenExternalIDs is passed
// straight through as a query parameter; pgx's stdlib driver encodes a Go
// []string as a native Postgres text[] for ANY() comparisons.
func DeactivateMissingListings(ctx context.Context, q Querier, complexID string, seenExternalIDs []string) error {
	if seenExternalIDs == nil {
		// A nil slice is sent as SQL NULL, and "= ANY(NULL)" is NULL for every
		// row, so nothing would match; an empty array deactivates them all.
		seenExternalIDs = []string{}
	}
	_, err := q.ExecContext(ctx, `
        UPDATE listings SET is_active = FALSE, updated_at = now()
        WHERE complex_id = $1 AND is_active = TRUE AND NOT (external_article_id = ANY($2))`,
		complexID, seenExternalIDs)
	return err
}

// ComparisonUpsert is the input to UpsertComparison.
type ComparisonUpsert struct {
	ComplexID       string
	AreaSqm         float64
	AppraisalMid    int
	RecentDealPrice int
	RecentDealDate  time.Time
	DiscountRate    float64
	DealCount3M     int
}

func UpsertComparison(ctx context.Context, q Querier, in ComparisonUpsert) error {
	_, err := q.ExecContext(ctx, `
        INSERT INTO comparisons (complex_id, area_sqm, appraisal_mid, recent_deal_price, recent_deal_date, discount_rate, deal_count_3m)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (complex_id, area_sqm) DO UPDATE SET
            appraisal_mid = EXCLUDED.appraisal_mid,
            recent_deal_price = EXCLUDED.recent_deal_price,
            recent_deal_date = EXCLUDED.recent_deal_date,
            discount_rate = EXCLUDED.discount_rate,
            deal_count_3m = EXCLUDED.deal_count_3m,
            compared_at = now()`,
		in.ComplexID, in.AreaSqm, in.AppraisalMid, in.RecentDealPrice, in.RecentDealDate, in.DiscountRate, in.DealCount3M)
	return err
}
