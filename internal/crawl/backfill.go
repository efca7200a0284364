package crawl

import (
	"context"
	"fmt"

	"github.com/yourorg/apt-bargain-aggregator/internal/logger"
	"github.com/yourorg/apt-bargain-aggregator/internal/naming"
	"github.com/yourorg/apt-bargain-aggregator/internal/source/appraisal"
	"github.com/yourorg/apt-bargain-aggregator/internal/store"
)

// BackfillTotalUnitsCrawl fills Complex.TotalUnits for rows where it is
// still null, reusing the KB get_complex_brief call. Grounded on
// original_source's standalone collect_total_units script: a narrow,
// read-fill-only job that never touches any other column. Like
// processKBGroup, it disambiguates a multi-complex dong with naming.Match
// rather than trusting list order.
func BackfillTotalUnitsCrawl(ctx context.Context, st *store.Store, ac *appraisal.Client, log *logger.Logger) (int, error) {
	rows, err := st.DB.QueryContext(ctx, `SELECT id, area_code FROM complexes WHERE total_units IS NULL AND area_code IS NOT NULL AND area_code <> ''`)
	if err != nil {
		return 0, fmt.Errorf("fetch complexes missing total_units: %w", err)
	}
	type target struct{ id, areaCode string }
	var targets []target
	for rows.Next() {
		var t target
		if err := rows.Scan(&t.id, &t.areaCode); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan: %w", err)
		}
		targets = append(targets, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	filled := 0
	for _, t := range targets {
		if ctx.Err() != nil {
			return filled, ctx.Err()
		}
		kbComplexes, err := ac.ListComplexesByArea(ctx, t.areaCode)
		if err != nil || len(kbComplexes) == 0 {
			continue
		}
		name, err := store.FetchComplexName(ctx, st.DB, t.id)
		if err != nil {
			log.Warnf("backfill total_units: complex %s: %v", t.id, err)
			continue
		}
		names := make([]string, len(kbComplexes))
		for i, kc := range kbComplexes {
			names[i] = kc.Name
		}
		idx, ok := naming.Match(name, names)
		if !ok {
			continue
		}
		brief, err := ac.GetComplexBrief(ctx, kbComplexes[idx].KBComplexID)
		if err != nil || brief.TotalUnits <= 0 {
			log.Warnf("backfill total_units: complex %s: %v", t.id, err)
			continue
		}
		units := brief.TotalUnits
		if err := store.UpdateComplexFields(ctx, st.DB, t.id, "", &units); err != nil {
			return filled, fmt.Errorf("update complex %s: %w", t.id, err)
		}
		filled++
	}
	return filled, nil
}
