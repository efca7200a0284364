// Package resolver ties external source records (a listings article, a raw
// government transaction) to a complexes row: upsert-by-external-id for
// listings, fuzzy name matching for transactions, with a per-call
// memoization cache so a single batch never re-runs the waterfall for the
// same name twice.
package resolver

import (
	"context"
	"fmt"

	"github.com/yourorg/apt-bargain-aggregator/internal/events"
	"github.com/yourorg/apt-bargain-aggregator/internal/naming"
	"github.com/yourorg/apt-bargain-aggregator/internal/store"
)

// ListingComplexFields carries the listing-side metadata ResolveListing may
// use to fill in a newly-created or partially-known complex row. Fields are
// optional; zero values are treated as unknown and never overwrite existing
// data.
type ListingComplexFields struct {
	Name        string
	Province    string
	District    string
	SubDistrict string
	BuiltYear   *int
	TotalUnits  *int
	Lat         *float64
	Lon         *float64
}

// Resolver holds the per-batch memoization cache. Construct one per crawl
// invocation; do not share across concurrent batches.
type Resolver struct {
	txnCache  map[string]txnResolution
	publisher events.Publisher
}

type txnResolution struct {
	complexID string
	created   bool
}

// New builds a Resolver with no event publisher; auto-creates are silent.
func New() *Resolver {
	return &Resolver{txnCache: make(map[string]txnResolution)}
}

// NewWithPublisher builds a Resolver that notifies pub whenever an
// auto-create occurs, for subscribers such as events.RunAuditLog.
func NewWithPublisher(pub events.Publisher) *Resolver {
	return &Resolver{txnCache: make(map[string]txnResolution), publisher: pub}
}

// ResolveListing upserts a complex by external listing id, returning its
// row id. The complex name is set only on first insert; later calls with
// the same external id never rename it.
func ResolveListing(ctx context.Context, q store.Querier, externalID string, fields ListingComplexFields) (string, error) {
	id, found, err := store.FetchComplexByExternalListingID(ctx, q, externalID)
	if err != nil {
		return "", fmt.Errorf("resolve listing %s: %w", externalID, err)
	}
	if found {
		if err := store.UpdateComplexFields(ctx, q, id, "", fields.TotalUnits); err != nil {
			return "", fmt.Errorf("resolve listing %s: refresh: %w", externalID, err)
		}
		return id, nil
	}
	return store.UpsertComplex(ctx, q, store.ComplexUpsert{
		Name:              fields.Name,
		Province:          fields.Province,
		District:          fields.District,
		SubDistrict:       fields.SubDistrict,
		ExternalListingID: externalID,
		BuiltYear:         fields.BuiltYear,
		TotalUnits:        fields.TotalUnits,
		Lat:               fields.Lat,
		Lon:               fields.Lon,
	})
}

// ResolveTransaction matches a raw transaction's apartment name against the
// complexes already known in (province, district) using the five-strategy
// waterfall, auto-creating a bare complex row on total match failure. The
// memoization cache is keyed on (province, district, name) so repeated
// transactions for the same complex within one batch skip the waterfall
// after the first hit.
func (r *Resolver) ResolveTransaction(ctx context.Context, q store.Querier, name, province, district, dong string, buildYear *int) (string, bool, error) {
	key := province + "\x1f" + district + "\x1f" + name
	if cached, ok := r.txnCache[key]; ok {
		return cached.complexID, false, nil
	}

	candidates, err := store.FetchComplexCandidates(ctx, q, province, district)
	if err != nil {
		return "", false, fmt.Errorf("resolve transaction %q: %w", name, err)
	}
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.Name
	}

	if idx, ok := naming.ResolveTransactionName(name, names); ok {
		id := candidates[idx].ID
		r.txnCache[key] = txnResolution{complexID: id}
		return id, false, nil
	}

	id, err := store.UpsertComplex(ctx, q, store.ComplexUpsert{
		Name:        name,
		Province:    province,
		District:    district,
		SubDistrict: dong,
		BuiltYear:   buildYear,
	})
	if err != nil {
		return "", false, fmt.Errorf("resolve transaction %q: auto-create: %w", name, err)
	}
	r.txnCache[key] = txnResolution{complexID: id, created: true}
	if r.publisher != nil {
		r.publisher.PublishComplexResolved(ctx, events.ComplexResolved{
			ComplexID: id,
			Name:      name,
			Province:  province,
			District:  district,
			Source:    "transactions",
		})
	}
	return id, true, nil
}
