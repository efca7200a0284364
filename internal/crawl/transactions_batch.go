package crawl

import (
	"context"
	"fmt"

	"github.com/yourorg/apt-bargain-aggregator/internal/admincode"
	"github.com/yourorg/apt-bargain-aggregator/internal/events"
	"github.com/yourorg/apt-bargain-aggregator/internal/logger"
	"github.com/yourorg/apt-bargain-aggregator/internal/resolver"
	"github.com/yourorg/apt-bargain-aggregator/internal/source/transactions"
	"github.com/yourorg/apt-bargain-aggregator/internal/store"
)

// TransactionsBatchCrawl fetches every transaction for each (region,
// dealYYYYMM) pair, resolves it to a complex (auto-creating one on total
// match failure, spec §4.4 "the transactions feed must not be blocked by
// missing listings data"), and inserts it if it is not a duplicate
// fingerprint. Each region commits under its own transaction.
func TransactionsBatchCrawl(ctx context.Context, st *store.Store, tc *transactions.Client, log *logger.Logger, pub events.Publisher, regions []Region, dealYYYYMMs []string) (TransactionsSummary, error) {
	var summary TransactionsSummary

	for _, region := range regions {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		districtCode5, ok := admincode.DistrictCode5(region.Province, region.District)
		if !ok {
			log.Warnf("transactions batch: no district code for %s/%s, skipping", region.Province, region.District)
			continue
		}

		regionSummary, err := transactionsBatchRegion(ctx, st, tc, pub, region, districtCode5, dealYYYYMMs)
		summary.Fetched += regionSummary.Fetched
		summary.Saved += regionSummary.Saved
		summary.Duplicates += regionSummary.Duplicates
		summary.AutoCreated += regionSummary.AutoCreated
		if err != nil {
			log.Errorf("transactions batch: region %s/%s: %v", region.Province, region.District, err)
		}
	}
	return summary, nil
}

func transactionsBatchRegion(ctx context.Context, st *store.Store, tc *transactions.Client, pub events.Publisher, region Region, districtCode5 string, dealYYYYMMs []string) (TransactionsSummary, error) {
	var summary TransactionsSummary
	var res *resolver.Resolver
	if pub != nil {
		res = resolver.NewWithPublisher(pub)
	} else {
		res = resolver.New()
	}

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

	for _, ym := range dealYYYYMMs {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		raw, err := tc.FetchAll(ctx, districtCode5, ym)
		if err != nil {
			return summary, fmt.Errorf("fetch_all %s: %w", ym, err)
		}
		summary.Fetched += len(raw)

		for _, rt := range raw {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			complexID, created, err := res.ResolveTransaction(ctx, tx, rt.AptName, region.Province, region.District, rt.Dong, rt.BuildYear)
			if err != nil {
				return summary, fmt.Errorf("resolve %q: %w", rt.AptName, err)
			}
			if created {
				summary.AutoCreated++
			}
			inserted, err := store.InsertTransactionIfNew(ctx, tx, store.TransactionInsert{
				ComplexID: complexID,
				AreaSqm:   rt.AreaExclusive,
				Floor:     rt.Floor,
				DealPrice: rt.DealPrice,
				DealDate:  rt.DealDate,
			})
			if err != nil {
				return summary, fmt.Errorf("insert transaction %q: %w", rt.AptName, err)
			}
			if inserted {
				summary.Saved++
			} else {
				summary.Duplicates++
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return summary, fmt.Errorf("commit: %w", err)
	}
	committed = true
	return summary, nil
}
