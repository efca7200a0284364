package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/yourorg/apt-bargain-aggregator/internal/store"
)

type complexResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Province    string   `json:"province"`
	District    string   `json:"district"`
	SubDistrict string   `json:"sub_district,omitempty"`
	BuiltYear   *int     `json:"built_year,omitempty"`
	TotalUnits  *int     `json:"total_units,omitempty"`
	Lat         *float64 `json:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty"`
}

type transactionResponse struct {
	AreaSqm   float64   `json:"area_sqm"`
	Floor     *int      `json:"floor,omitempty"`
	DealPrice int       `json:"deal_price"`
	DealDate  time.Time `json:"deal_date"`
}

func RegisterComplexes(r chi.Router, d Deps) {
	r.Get("/complexes/{id}", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		c, found, err := store.FetchComplexByID(req.Context(), d.Store.DB, id)
		if err != nil {
			render.Status(req, http.StatusInternalServerError)
			render.JSON(w, req, map[string]string{"error": err.Error()})
			return
		}
		if !found {
			render.Status(req, http.StatusNotFound)
			render.JSON(w, req, map[string]string{"error": "complex not found"})
			return
		}
		render.JSON(w, req, complexResponse{
			ID: c.ID, Name: c.Name, Province: c.Province, District: c.District,
			SubDistrict: c.SubDistrict, BuiltYear: c.BuiltYear, TotalUnits: c.TotalUnits,
			Lat: c.Lat, Lon: c.Lon,
		})
	})

	r.Get("/complexes/{id}/transactions", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
		txns, err := store.FetchTransactionsForComplex(req.Context(), d.Store.DB, id, limit)
		if err != nil {
			render.Status(req, http.StatusInternalServerError)
			render.JSON(w, req, map[string]string{"error": err.Error()})
			return
		}
		out := make([]transactionResponse, 0, len(txns))
		for _, t := range txns {
			out = append(out, transactionResponse{AreaSqm: t.AreaSqm, Floor: t.Floor, DealPrice: t.DealPrice, DealDate: t.DealDate})
		}
		render.JSON(w, req, out)
	})
}
