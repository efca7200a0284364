package events

import (
	"context"

	"github.com/yourorg/apt-bargain-aggregator/internal/logger"
)

// RunAuditLog drains both subscription channels until ctx is cancelled,
// logging each event. It is the consumer the publisher side exists for —
// without it, Publish* calls would just fill buffered channels nobody ever
// drains. Swappable later for a real sink (search index, metrics) without
// touching the publish call sites.
func RunAuditLog(ctx context.Context, pub Publisher, log *logger.Logger) {
	comparisons := pub.SubscribeComparisonUpdated()
	complexes := pub.SubscribeComplexResolved()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-comparisons:
			if !ok {
				comparisons = nil
				continue
			}
			log.Infof("event: comparison_updated updated=%d skipped=%d", evt.Updated, evt.Skipped)
		case evt, ok := <-complexes:
			if !ok {
				complexes = nil
				continue
			}
			log.Infof("event: complex_resolved id=%s name=%q province=%s district=%s source=%s", evt.ComplexID, evt.Name, evt.Province, evt.District, evt.Source)
		}
	}
}
