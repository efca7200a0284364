package crawl

import (
	"context"
	"fmt"
	"sync"

	"github.com/yourorg/apt-bargain-aggregator/internal/logger"
	"github.com/yourorg/apt-bargain-aggregator/internal/naming"
	"github.com/yourorg/apt-bargain-aggregator/internal/source/appraisal"
	"github.com/yourorg/apt-bargain-aggregator/internal/store"
)

// KBBatchConfig carries the group-concurrency gate from spec §4.6/§9
// ("KB batch's concurrency gate is a counting semaphore of size N").
type KBBatchConfig struct {
	Concurrency int // default 5
}

func (c KBBatchConfig) withDefaults() KBBatchConfig {
	if c.Concurrency <= 0 {
		c.Concurrency = 5
	}
	return c
}

// KBBatchCrawl groups every complex with a resolved 10-digit area code by
// that code, issues one list_complexes_by_area call per group, and matches
// every complex in the group against the returned list by name — the
// "reuse the most expensive call per group" optimization from spec §4.6.
// Up to cfg.Concurrency groups run concurrently; each complex commits its
// own store session so one group's failure cannot roll back another's.
func KBBatchCrawl(ctx context.Context, st *store.Store, ac *appraisal.Client, log *logger.Logger, cfg KBBatchConfig) (KBBatchSummary, error) {
	cfg = cfg.withDefaults()

	complexes, err := store.FetchComplexesWithAreaCode(ctx, st.DB)
	if err != nil {
		return KBBatchSummary{}, fmt.Errorf("fetch complexes: %w", err)
	}
	groups := make(map[string][]store.ComplexWithAreaCode)
	for _, c := range complexes {
		groups[c.AreaCode] = append(groups[c.AreaCode], c)
	}

	var (
		summary KBBatchSummary
		mu      sync.Mutex
		wg      sync.WaitGroup
		sem     = make(chan struct{}, cfg.Concurrency)
	)

groupLoop:
	for areaCode, group := range groups {
		if ctx.Err() != nil {
			break groupLoop
		}
		areaCode, group := areaCode, group
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break groupLoop
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			priced, errs := processKBGroup(ctx, st, ac, log, areaCode, group)
			mu.Lock()
			summary.GroupsProcessed++
			summary.ComplexesPriced += priced
			summary.Errors += errs
			mu.Unlock()
		}()
	}
	wg.Wait()

	return summary, ctx.Err()
}

func processKBGroup(ctx context.Context, st *store.Store, ac *appraisal.Client, log *logger.Logger, areaCode string, group []store.ComplexWithAreaCode) (priced, errs int) {
	kbComplexes, err := ac.ListComplexesByArea(ctx, areaCode)
	if err != nil {
		log.Errorf("kb batch: area %s: list_complexes_by_area: %v", areaCode, err)
		return 0, len(group)
	}
	names := make([]string, len(kbComplexes))
	for i, kc := range kbComplexes {
		names[i] = kc.Name
	}

	for _, c := range group {
		if ctx.Err() != nil {
			return priced, errs
		}
		idx, ok := naming.Match(c.Name, names)
		if !ok {
			continue
		}
		kbComplexID := kbComplexes[idx].KBComplexID
		if err := priceComplex(ctx, st, ac, c.ID, kbComplexID); err != nil {
			log.Warnf("kb batch: complex %s: %v", c.Name, err)
			errs++
			continue
		}
		priced++
	}
	return priced, errs
}

func priceComplex(ctx context.Context, st *store.Store, ac *appraisal.Client, complexID, kbComplexID string) error {
	prices, err := ac.GetAllPrices(ctx, kbComplexID)
	if err != nil {
		return fmt.Errorf("get_all_prices: %w", err)
	}
	if len(prices) == 0 {
		return nil
	}

	tx, err := st.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for _, p := range prices {
		if err := store.UpsertAppraisalPrice(ctx, tx, store.AppraisalPriceUpsert{
			ComplexID: complexID,
			AreaSqm:   p.AreaExclusive,
			PriceLow:  p.PriceLow,
			PriceMid:  p.PriceMid,
			PriceHigh: p.PriceHigh,
		}); err != nil {
			return fmt.Errorf("upsert appraisal price: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}
