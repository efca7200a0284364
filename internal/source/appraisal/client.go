// Package appraisal wraps the KB internal JSON appraisal-price API: complex
// matching by 10-digit area code, floor-plan area types, and per-area-type
// price lookups.
package appraisal

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/yourorg/apt-bargain-aggregator/internal/httpx"
)

const baseURL = "https://api.kbland.kr"

const defaultThrottle = 1500 * time.Millisecond

const saleType = "01" // 매물종별구분: always apartment sale

type Client struct {
	fetcher *httpx.Fetcher
}

func NewClient() *Client {
	return NewClientWithThrottle(defaultThrottle)
}

func NewClientWithThrottle(throttle time.Duration) *Client {
	f := httpx.New("appraisal", throttle, decorateHeaders)
	return &Client{fetcher: f}
}

func decorateHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	req.Header.Set("Origin", "https://kbland.kr")
	req.Header.Set("Referer", "https://kbland.kr/")
}

type envelope[T any] struct {
	DataHeader struct {
		ResultCode string `json:"resultCode"`
		Message    string `json:"message"`
	} `json:"dataHeader"`
	DataBody T `json:"dataBody"`
}

const resultCodeSuccess = "10000"

func semanticCheck(resultCode string) error {
	if resultCode == resultCodeSuccess {
		return nil
	}
	if resultCode == "" {
		return httpx.ErrSemanticError
	}
	// KB's "no-data" codes are conventionally in the 2xxxx range; treat
	// anything else non-success and non-empty-marker as a hard failure.
	if resultCode[0] == '2' {
		return httpx.ErrEmpty
	}
	return httpx.ErrSemanticError
}

func (c *Client) ListComplexesByArea(ctx context.Context, areaCode10 string) ([]KBComplex, error) {
	var env envelope[struct {
		List []struct {
			HcpcNo string `json:"hcpcNo"`
			Name   string `json:"hscpNm"`
		} `json:"list"`
	}]
	q := url.Values{"법정동코드": {areaCode10}}
	err := c.fetcher.Fetch(ctx, baseURL+"/land-complex/complexListByDong", q, httpx.DecodeJSON, &env, envelopeCheck)
	if err != nil {
		if err == httpx.ErrEmpty {
			return nil, nil
		}
		return nil, err
	}
	out := make([]KBComplex, 0, len(env.DataBody.List))
	for _, e := range env.DataBody.List {
		out = append(out, KBComplex{KBComplexID: e.HcpcNo, Name: e.Name})
	}
	return out, nil
}

func (c *Client) GetComplexBrief(ctx context.Context, kbComplexID string) (ComplexBrief, error) {
	var env envelope[struct {
		TotalHsehCnt int     `json:"totHsehCnt"`
		Lat          float64 `json:"latitude"`
		Lng          float64 `json:"longitude"`
	}]
	q := url.Values{"단지기본일련번호": {kbComplexID}}
	err := c.fetcher.Fetch(ctx, baseURL+"/land-complex/complexBrief", q, httpx.DecodeJSON, &env, envelopeCheck)
	if err != nil {
		return ComplexBrief{}, err
	}
	return ComplexBrief{TotalUnits: env.DataBody.TotalHsehCnt, Lat: env.DataBody.Lat, Lng: env.DataBody.Lng}, nil
}

func (c *Client) GetAreaTypes(ctx context.Context, kbComplexID string) ([]AreaType, error) {
	var env envelope[struct {
		List []struct {
			AreaSeq       int     `json:"areaSeq"`
			AreaExclusive float64 `json:"spc"`
		} `json:"list"`
	}]
	q := url.Values{"단지기본일련번호": {kbComplexID}}
	err := c.fetcher.Fetch(ctx, baseURL+"/land-complex/areaTypeList", q, httpx.DecodeJSON, &env, envelopeCheck)
	if err != nil {
		if err == httpx.ErrEmpty {
			return nil, nil
		}
		return nil, err
	}
	out := make([]AreaType, 0, len(env.DataBody.List))
	for _, a := range env.DataBody.List {
		out = append(out, AreaType{AreaSeq: a.AreaSeq, AreaExclusive: a.AreaExclusive})
	}
	return out, nil
}

func (c *Client) GetPrice(ctx context.Context, kbComplexID string, areaSeq int) (Price, error) {
	var env envelope[struct {
		PriceLow  *int `json:"priceLow"`
		PriceMid  *int `json:"priceMid"`
		PriceHigh *int `json:"priceHigh"`
	}]
	q := url.Values{
		"단지기본일련번호": {kbComplexID},
		"면적일련번호":    {strconv.Itoa(areaSeq)},
		"매물종별구분":    {saleType},
	}
	err := c.fetcher.Fetch(ctx, baseURL+"/land-price/price", q, httpx.DecodeJSON, &env, envelopeCheck)
	if err != nil {
		if err == httpx.ErrEmpty {
			return Price{}, nil
		}
		return Price{}, err
	}
	return Price{PriceLow: env.DataBody.PriceLow, PriceMid: env.DataBody.PriceMid, PriceHigh: env.DataBody.PriceHigh}, nil
}

// GetAllPrices iterates every area type for a KB complex, deduplicates by
// area rounded to 0.1 m², requires a non-nil mid price, and returns
// normalized rows.
func (c *Client) GetAllPrices(ctx context.Context, kbComplexID string) ([]NormalizedPrice, error) {
	types, err := c.GetAreaTypes(ctx, kbComplexID)
	if err != nil {
		return nil, err
	}
	seen := make(map[float64]bool)
	out := make([]NormalizedPrice, 0, len(types))
	for _, at := range types {
		key := math.Round(at.AreaExclusive*10) / 10
		if seen[key] {
			continue
		}
		price, err := c.GetPrice(ctx, kbComplexID, at.AreaSeq)
		if err != nil {
			return out, fmt.Errorf("area seq %d: %w", at.AreaSeq, err)
		}
		if price.PriceMid == nil {
			continue
		}
		seen[key] = true
		out = append(out, NormalizedPrice{
			AreaExclusive: key,
			PriceLow:      price.PriceLow,
			PriceMid:      *price.PriceMid,
			PriceHigh:     price.PriceHigh,
		})
	}
	return out, nil
}

func envelopeCheck(body []byte) error {
	var probe envelope[any]
	if err := httpx.DecodeJSON(body, &probe); err != nil {
		return httpx.ErrSemanticError
	}
	return semanticCheck(probe.DataHeader.ResultCode)
}

func (c *Client) Stop() { c.fetcher.Stop() }
