// Package events is the in-process pub/sub decoupling crawl/comparison
// jobs from whoever reacts to their output. RunAuditLog is the consumer
// wired by cmd/crawler today; the interface exists so a future subscriber
// (a search index, a metrics sink) can replace or join it without touching
// any Publish* call site.
package events

import "context"

// ComparisonUpdated fires once per successful comparison rebuild pass,
// including a pass that updated no row, summarizing the pass rather than
// each individual comparison.
type ComparisonUpdated struct {
	Updated int
	Skipped int
}

// ComplexResolved fires when the transactions resolver auto-creates a
// brand-new complex row. Complexes created by the listings path publish no
// event.
type ComplexResolved struct {
	ComplexID string
	Name      string
	Province  string
	District  string
	Source    string // the feed that caused the create; the resolver sets "transactions"
}

type Publisher interface {
	PublishComparisonUpdated(ctx context.Context, evt ComparisonUpdated)
	PublishComplexResolved(ctx context.Context, evt ComplexResolved)
	SubscribeComparisonUpdated() <-chan ComparisonUpdated
	SubscribeComplexResolved() <-chan ComplexResolved
}

type inMemory struct {
	comparisons chan ComparisonUpdated
	complexes   chan ComplexResolved
}

func NewInMemory(buffer int) Publisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &inMemory{
		comparisons: make(chan ComparisonUpdated, buffer),
		complexes:   make(chan ComplexResolved, buffer),
	}
}

func (m *inMemory) PublishComparisonUpdated(_ context.Context, evt ComparisonUpdated) {
	select {
	case m.comparisons <- evt:
	default:
	}
}

func (m *inMemory) PublishComplexResolved(_ context.Context, evt ComplexResolved) {
	select {
	case m.complexes <- evt:
	default:
	}
}

func (m *inMemory) SubscribeComparisonUpdated() <-chan ComparisonUpdated { return m.comparisons }
func (m *inMemory) SubscribeComplexResolved() <-chan ComplexResolved     { return m.complexes }
