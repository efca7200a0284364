package crawl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yourorg/apt-bargain-aggregator/internal/admincode"
	"github.com/yourorg/apt-bargain-aggregator/internal/logger"
	"github.com/yourorg/apt-bargain-aggregator/internal/source/listings"
	"github.com/yourorg/apt-bargain-aggregator/internal/store"
)

// FullCrawlConfig carries the batch-cooldown and inter-region pause
// settings from spec §5 "Batch cooldown".
type FullCrawlConfig struct {
	InterRegionPause time.Duration // default 30s
	BatchCallLimit   int           // default 180
	BatchCooldown    time.Duration // default 600s
}

func (c FullCrawlConfig) withDefaults() FullCrawlConfig {
	if c.InterRegionPause <= 0 {
		c.InterRegionPause = 30 * time.Second
	}
	if c.BatchCallLimit <= 0 {
		c.BatchCallLimit = 180
	}
	if c.BatchCooldown <= 0 {
		c.BatchCooldown = 600 * time.Second
	}
	return c
}

// FullListingsCrawl walks every configured region, pulling every complex
// and every active listing under it. Each region commits under its own
// transaction; a fatal error rolls that region back and the crawl moves to
// the next one with the error joined into the returned error.
func FullListingsCrawl(ctx context.Context, st *store.Store, lc *listings.Client, log *logger.Logger, regions []Region, cfg FullCrawlConfig) (ListingsSummary, error) {
	cfg = cfg.withDefaults()
	var summary ListingsSummary
	var joined error

	for _, region := range regions {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		if err := cooldownIfNeeded(ctx, lc, log, cfg); err != nil {
			return summary, err
		}

		regionSummary, err := fullCrawlRegion(ctx, st, lc, log, region)
		summary.ComplexesSeen += regionSummary.ComplexesSeen
		summary.ListingsUpserted += regionSummary.ListingsUpserted
		summary.Deactivated += regionSummary.Deactivated
		if err != nil {
			log.Errorf("full listings crawl: region %s/%s: %v", region.Province, region.District, err)
			joined = errors.Join(joined, fmt.Errorf("region %s/%s: %w", region.Province, region.District, err))
			continue
		}

		if cfg.InterRegionPause > 0 {
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			case <-time.After(cfg.InterRegionPause):
			}
		}
	}
	return summary, joined
}

func cooldownIfNeeded(ctx context.Context, lc *listings.Client, log *logger.Logger, cfg FullCrawlConfig) error {
	if lc.APICallCount() < cfg.BatchCallLimit {
		return nil
	}
	log.Infof("full listings crawl: call limit %d reached, cooling down %s", cfg.BatchCallLimit, cfg.BatchCooldown)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(cfg.BatchCooldown):
	}
	lc.ResetAPICallCount()
	return nil
}

func fullCrawlRegion(ctx context.Context, st *store.Store, lc *listings.Client, log *logger.Logger, region Region) (ListingsSummary, error) {
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

	subDistricts := admincode.SubRegionCodes(region.Province, region.District)
	for _, sd := range subDistricts {
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
			n, err := crawlComplexListings(ctx, tx, lc, region, sd.SubDistrict, cx)
			if err != nil {
				log.Warnf("full listings crawl: complex %s (%s): %v", cx.Name, cx.ExternalID, err)
				continue
			}
			summary.ComplexesSeen++
			summary.ListingsUpserted += n
		}
	}

	if err := tx.Commit(); err != nil {
		return summary, fmt.Errorf("commit: %w", err)
	}
	committed = true
	return summary, nil
}

// crawlComplexListings upserts one complex and every active listing found
// under it, then deactivates any previously-active listing not observed in
// this pass.
func crawlComplexListings(ctx context.Context, tx store.Querier, lc *listings.Client, region Region, subDistrict string, cx listings.ComplexSummary) (int, error) {
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
		return 0, fmt.Errorf("upsert complex: %w", err)
	}

	articles, err := lc.ListAllArticles(ctx, cx.ExternalID, "A1")
	if err != nil {
		return 0, fmt.Errorf("list articles: %w", err)
	}

	seen := make([]string, 0, len(articles))
	n := 0
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
			return n, fmt.Errorf("upsert listing %s: %w", a.ExternalArticleID, err)
		}
		seen = append(seen, a.ExternalArticleID)
		n++
	}

	if err := store.DeactivateMissingListings(ctx, tx, complexID, seen); err != nil {
		return n, fmt.Errorf("deactivate missing: %w", err)
	}
	return n, nil
}
