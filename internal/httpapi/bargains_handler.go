package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/yourorg/apt-bargain-aggregator/internal/comparison"
)

type bargainResponse struct {
	ComplexID       string    `json:"complex_id"`
	ComplexName     string    `json:"complex_name"`
	AreaSqm         float64   `json:"area_sqm"`
	AppraisalMid    int       `json:"appraisal_mid"`
	RecentDealPrice int       `json:"recent_deal_price"`
	RecentDealDate  time.Time `json:"recent_deal_date"`
	DiscountRate    float64   `json:"discount_rate"`
	DealCount3M     int       `json:"deal_count_3m"`
}

func RegisterBargains(r chi.Router, d Deps) {
	r.Get("/bargains", func(w http.ResponseWriter, req *http.Request) {
		limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
		bargains, err := comparison.TopBargains(req.Context(), d.Store, limit)
		if err != nil {
			render.Status(req, http.StatusInternalServerError)
			render.JSON(w, req, map[string]string{"error": err.Error()})
			return
		}
		out := make([]bargainResponse, 0, len(bargains))
		for _, b := range bargains {
			out = append(out, bargainResponse{
				ComplexID: b.ComplexID, ComplexName: b.ComplexName, AreaSqm: b.AreaSqm,
				AppraisalMid: b.AppraisalMid, RecentDealPrice: b.RecentDealPrice,
				RecentDealDate: b.RecentDealDate, DiscountRate: b.DiscountRate, DealCount3M: b.DealCount3M,
			})
		}
		render.JSON(w, req, out)
	})

	r.Get("/listings/{id}/comparison", func(w http.ResponseWriter, req *http.Request) {
		if d.Projection == nil {
			render.Status(req, http.StatusNotImplemented)
			render.JSON(w, req, map[string]string{"error": "projection not configured"})
			return
		}
		id := chi.URLParam(req, "id")
		cmp, err := d.Projection.Compare(req.Context(), id)
		if err != nil {
			render.Status(req, http.StatusInternalServerError)
			render.JSON(w, req, map[string]string{"error": err.Error()})
			return
		}
		if cmp == nil {
			render.Status(req, http.StatusNotFound)
			render.JSON(w, req, map[string]string{"error": "no comparable appraisal price for this listing"})
			return
		}
		render.JSON(w, req, cmp)
	})
}
