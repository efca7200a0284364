package crawl

import (
	"context"
	"fmt"

	"github.com/yourorg/apt-bargain-aggregator/internal/admincode"
	"github.com/yourorg/apt-bargain-aggregator/internal/logger"
	"github.com/yourorg/apt-bargain-aggregator/internal/source/listings"
	"github.com/yourorg/apt-bargain-aggregator/internal/store"
)

// IncrementalListingsCrawl re-enumerates every complex (cheap calls,
// identical to a full crawl) but only re-fetches a complex's article list
// when its reported deal_count disagrees with the store's active-listing
// count. Equivalent to a full crawl in steady state; any drift is corrected
// by the next Full crawl, which the scheduler runs only while the
// complexes table is empty (spec §4.6).
func IncrementalListingsCrawl(ctx context.Context, st *store.Store, lc *listings.Client, log *logger.Logger, regions []Region) (ListingsSummary, error) {
	var summary ListingsSummary

	for _, region := range regions {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		regionSummary, err := incrementalCrawlRegion(ctx, st, lc, log, region)
		summary.ComplexesSeen += regionSummary.ComplexesSeen
		summary.ListingsUpserted += regionSummary.ListingsUpserted
		summary.Deactivated += regionSummary.Deactivated
		summary.SkippedSame += regionSummary.SkippedSame
		if err != nil {
			log.Errorf("incremental listings crawl: region %s/%s: %v", region.Province, region.District, err)
		}
	}
	return summary, nil
}

func incrementalCrawlRegion(ctx context.Context, st *store.Store, lc *listings.Client, log *logger.Logger, region Region) (ListingsSummary, error) {
	var summary ListingsSummary

	tx, err := st.BeginTx(ctx)
	if err != nil {
		return summary, fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for _, sd := range admincode.SubRegionCodes(region.Province, region.District) {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		complexes, err := lc.ListAllComplexes(ctx, sd.SubRegionCode10)
		if err != nil {
			return summary, fmt.Errorf("sub-district %s: list complexes: %w", sd.SubDistrict, err)
		}
		for _, cx := range complexes {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			if err := incrementalCrawlComplex(ctx, tx, lc, region, sd.SubDistrict, cx, &summary); err != nil {
				log.Warnf("incremental listings crawl: complex %s (%s): %v", cx.Name, cx.ExternalID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return summary, fmt.Errorf("commit: %w", err)
	}
	committed = true
	return summary, nil
}

func incrementalCrawlComplex(ctx context.Context, tx store.Querier, lc *listings.Client, region Region, subDistrict string, cx listings.ComplexSummary, summary *ListingsSummary) error {
	_, found, err := store.FetchComplexByExternalListingID(ctx, tx, cx.ExternalID)
	if err != nil {
		return fmt.Errorf("lookup complex: %w", err)
	}

	complexID, err := store.UpsertComplex(ctx, tx, store.ComplexUpsert{
		Name:              cx.Name,
		Province:          region.Province,
		District:          region.District,
		SubDistrict:       subDistrict,
		ExternalListingID: cx.ExternalID,
		TotalUnits:        cx.TotalUnits,
		BuiltYear:         parseBuiltYear(cx.UseApproveYMD),
		Lat:               &cx.Lat,
		Lon:               &cx.Lon,
	})
	if err != nil {
		return fmt.Errorf("upsert complex: %w", err)
	}
	summary.ComplexesSeen++

	// A complex observed for the first time has no prior active-listing
	// baseline to compare against; treat it like a full crawl would.
	if !found {
		n, err := crawlComplexListings(ctx, tx, lc, region, subDistrict, cx)
		summary.ListingsUpserted += n
		return err
	}
	activeCount, err := activeListingCount(ctx, tx, complexID)
	if err != nil {
		return fmt.Errorf("count active listings: %w", err)
	}

	switch {
	case cx.DealCount == 0:
		if err := store.DeactivateMissingListings(ctx, tx, complexID, nil); err != nil {
			return fmt.Errorf("deactivate all: %w", err)
		}
		summary.Deactivated += activeCount
	case cx.DealCount == activeCount:
		summary.SkippedSame++
	default:
		articles, err := lc.ListAllArticles(ctx, cx.ExternalID, "A1")
		if err != nil {
			return fmt.Errorf("list articles: %w", err)
		}
		seen := make([]string, 0, len(articles))
		for _, a := range articles {
			price := listings.ParsePriceText(a.PriceText)
			floor := listings.ParseFloor(a.FloorInfo)
			area := a.AreaExclusive
			if area == 0 {
				area = a.AreaSupply
			}
			if _, err := store.UpsertListing(ctx, tx, store.ListingUpsert{
				ComplexID:         complexID,
				ExternalArticleID: a.ExternalArticleID,
				AreaSqm:           area,
				Floor:             floor,
				AskingPrice:       price,
				RegisteredAt:      listings.ParseConfirmDate(a.ConfirmDate),
			}); err != nil {
				return fmt.Errorf("upsert listing %s: %w", a.ExternalArticleID, err)
			}
			seen = append(seen, a.ExternalArticleID)
			summary.ListingsUpserted++
		}
		if err := store.DeactivateMissingListings(ctx, tx, complexID, seen); err != nil {
			return fmt.Errorf("deactivate missing: %w", err)
		}
	}
	return nil
}

func activeListingCount(ctx context.Context, q store.Querier, complexID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT count(*) FROM listings WHERE complex_id = $1 AND is_active = TRUE`, complexID).Scan(&n)
	return n, err
}
