package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/yourorg/apt-bargain-aggregator/internal/store"
)

type regionResponse struct {
	Province string `json:"province"`
	District string `json:"district"`
}

func RegisterRegions(r chi.Router, d Deps) {
	r.Get("/regions", func(w http.ResponseWriter, req *http.Request) {
		pairs, err := store.FetchDistrictsForTransactions(req.Context(), d.Store.DB)
		if err != nil {
			render.Status(req, http.StatusInternalServerError)
			render.JSON(w, req, map[string]string{"error": err.Error()})
			return
		}
		out := make([]regionResponse, 0, len(pairs))
		for _, p := range pairs {
			out = append(out, regionResponse{Province: p[0], District: p[1]})
		}
		render.JSON(w, req, out)
	})
}
