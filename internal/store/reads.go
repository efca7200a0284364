package store

import (
	"context"
	"database/sql"
	"time"
)

// ComplexDetail is the full complexes row as returned to the read HTTP
// surface.
type ComplexDetail struct {
	ID          string
	Name        string
	Province    string
	District    string
	SubDistrict string
	AreaCode    string
	BuiltYear   *int
	TotalUnits  *int
	Lat         *float64
	Lon         *float64
}

// FetchComplexName returns a single complex's name, used by callers (the
// backfill job) that already hold the id and need the name for
// naming.Match rather than the full row.
func FetchComplexName(ctx context.Context, q Querier, id string) (string, error) {
	var name string
	err := q.QueryRowContext(ctx, `SELECT name FROM complexes WHERE id = $1`, id).Scan(&name)
	return name, err
}

func FetchComplexByID(ctx context.Context, q Querier, id string) (ComplexDetail, bool, error) {
	var (
		c           ComplexDetail
		subDistrict sql.NullString
		areaCode    sql.NullString
	)
	err := q.QueryRowContext(ctx, `
        SELECT id, name, province, district, sub_district, area_code, built_year, total_units, lat, lon
        FROM complexes WHERE id = $1`, id).Scan(
		&c.ID, &c.Name, &c.Province, &c.District, &subDistrict, &areaCode, &c.BuiltYear, &c.TotalUnits, &c.Lat, &c.Lon,
	)
	if err == sql.ErrNoRows {
		return ComplexDetail{}, false, nil
	}
	if err != nil {
		return ComplexDetail{}, false, err
	}
	c.SubDistrict = subDistrict.String
	c.AreaCode = areaCode.String
	return c, true, nil
}

// TransactionRecord is one transactions row as returned to the read HTTP
// surface.
type TransactionRecord struct {
	AreaSqm   float64
	Floor     *int
	DealPrice int
	DealDate  time.Time
}

// FetchTransactionsForComplex lists a complex's transaction history, most
// recent first.
func FetchTransactionsForComplex(ctx context.Context, q Querier, complexID string, limit int) ([]TransactionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := q.QueryContext(ctx, `
        SELECT area_sqm, floor, deal_price, deal_date FROM transactions
        WHERE complex_id = $1
        ORDER BY deal_date DESC LIMIT $2`, complexID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TransactionRecord
	for rows.Next() {
		var t TransactionRecord
		if err := rows.Scan(&t.AreaSqm, &t.Floor, &t.DealPrice, &t.DealDate); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
