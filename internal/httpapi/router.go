// Package httpapi is the read-only query surface over the store: region
// listing, per-complex detail, per-complex transaction history, and the
// bargain leaderboard. Out of scope for active development per the spec's
// non-goals (no write APIs mutating the domain), but carried as the
// external interface the spec itself enumerates as a collaborator.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-chi/render"

	"github.com/yourorg/apt-bargain-aggregator/internal/comparison"
	"github.com/yourorg/apt-bargain-aggregator/internal/logger"
	"github.com/yourorg/apt-bargain-aggregator/internal/store"
)

type Deps struct {
	Store      *store.Store
	Projection *comparison.PerListingProjection
}

func BuildRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(httprate.LimitByIP(300, time.Minute))
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Use(logger.Middleware)

	r.Get("/health", handleHealth)
	RegisterRegions(r, d)
	RegisterComplexes(r, d)
	RegisterBargains(r, d)

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{"ok": true})
}
