// Package listings wraps the mobile JSON listings portal: region
// traversal, per-complex summaries, and per-complex article (listing)
// pages.
package listings

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/yourorg/apt-bargain-aggregator/internal/httpx"
)

const baseURL = "https://m.land-listings.example.kr"

const defaultThrottle = 1500 * time.Millisecond

type Client struct {
	fetcher *httpx.Fetcher
}

func NewClient() *Client {
	return NewClientWithThrottle(defaultThrottle)
}

func NewClientWithThrottle(throttle time.Duration) *Client {
	f := httpx.New("listings", throttle, decorateHeaders)
	return &Client{fetcher: f}
}

func decorateHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148")
	req.Header.Set("Accept-Language", "ko-KR")
	req.Header.Set("Referer", "https://m.land-listings.example.kr/")
}

// wire payload shapes
type subRegionEnvelope struct {
	Result struct {
		List []struct {
			Code string  `json:"code"`
			Name string  `json:"name"`
			Lat  float64 `json:"lat"`
			Lon  float64 `json:"lon"`
		} `json:"list"`
	} `json:"result"`
}

type complexEnvelope struct {
	Total     int `json:"total_count"`
	Complexes []struct {
		ExternalID    string  `json:"external_id"`
		Name          string  `json:"name"`
		DealCount     int     `json:"deal_count"`
		TotalUnits    *int    `json:"total_units"`
		UseApproveYMD string  `json:"use_approve_ymd"`
		Lat           float64 `json:"lat"`
		Lon           float64 `json:"lon"`
		Address       string  `json:"address"`
	} `json:"complexes"`
}

type articleEnvelope struct {
	Total    int `json:"total_count"`
	Articles []struct {
		ExternalArticleID string  `json:"external_article_id"`
		Name              string  `json:"name"`
		PriceText         string  `json:"price_text"`
		AreaSupply        float64 `json:"area_supply"`
		AreaExclusive     float64 `json:"area_exclusive"`
		FloorInfo         string  `json:"floor_info"`
		BuildingName      string  `json:"building_name"`
		ConfirmDate       string  `json:"confirm_date"`
		Direction         string  `json:"direction"`
	} `json:"articles"`
}

func semanticCheckJSON(body []byte) error {
	// A bare `{"ok":false}` envelope signals a hard source-side failure;
	// missing/absent status fields are treated as success.
	var probe struct {
		OK *bool `json:"ok"`
	}
	if err := httpx.DecodeJSON(body, &probe); err == nil && probe.OK != nil && !*probe.OK {
		return httpx.ErrSemanticError
	}
	return nil
}

func (c *Client) ListSubRegions(ctx context.Context, parentCode string) ([]SubRegion, error) {
	var env subRegionEnvelope
	q := url.Values{"cortarNo": {parentCode}}
	err := c.fetcher.Fetch(ctx, baseURL+"/cortars", q, httpx.DecodeJSON, &env, semanticCheckJSON)
	if err != nil {
		return nil, err
	}
	out := make([]SubRegion, 0, len(env.Result.List))
	for _, r := range env.Result.List {
		out = append(out, SubRegion{Code: r.Code, Name: r.Name, Lat: r.Lat, Lon: r.Lon})
	}
	return out, nil
}

func (c *Client) ListComplexes(ctx context.Context, subRegionCode string, page int) (ComplexPage, error) {
	var env complexEnvelope
	q := url.Values{
		"cortarNo": {subRegionCode},
		"page":     {strconv.Itoa(page)},
	}
	err := c.fetcher.Fetch(ctx, baseURL+"/complexes", q, httpx.DecodeJSON, &env, semanticCheckJSON)
	if err != nil {
		return ComplexPage{}, err
	}
	out := ComplexPage{Total: env.Total}
	for _, cx := range env.Complexes {
		out.Complexes = append(out.Complexes, ComplexSummary{
			ExternalID:    cx.ExternalID,
			Name:          cx.Name,
			DealCount:     cx.DealCount,
			TotalUnits:    cx.TotalUnits,
			UseApproveYMD: cx.UseApproveYMD,
			Lat:           cx.Lat,
			Lon:           cx.Lon,
			Address:       cx.Address,
		})
	}
	return out, nil
}

// ListAllComplexes pages list_complexes until accumulated >= reported total.
func (c *Client) ListAllComplexes(ctx context.Context, subRegionCode string) ([]ComplexSummary, error) {
	var all []ComplexSummary
	page := 1
	for {
		pg, err := c.ListComplexes(ctx, subRegionCode, page)
		if err != nil {
			return all, err
		}
		all = append(all, pg.Complexes...)
		if len(pg.Complexes) == 0 || len(all) >= pg.Total {
			break
		}
		page++
	}
	return all, nil
}

func (c *Client) ListArticles(ctx context.Context, externalComplexID string, tradeType string, page int) (ArticlePage, error) {
	var env articleEnvelope
	q := url.Values{
		"complexNo": {externalComplexID},
		"tradeType": {tradeType},
		"page":      {strconv.Itoa(page)},
	}
	err := c.fetcher.Fetch(ctx, baseURL+"/articles", q, httpx.DecodeJSON, &env, semanticCheckJSON)
	if err != nil {
		return ArticlePage{}, err
	}
	out := ArticlePage{Total: env.Total}
	for _, a := range env.Articles {
		out.Articles = append(out.Articles, Article{
			ExternalArticleID: a.ExternalArticleID,
			Name:              a.Name,
			PriceText:         a.PriceText,
			AreaSupply:        a.AreaSupply,
			AreaExclusive:     a.AreaExclusive,
			FloorInfo:         a.FloorInfo,
			BuildingName:      a.BuildingName,
			ConfirmDate:       a.ConfirmDate,
			Direction:         a.Direction,
		})
	}
	return out, nil
}

// ListAllArticles pages list_articles for one complex until accumulated >= total.
func (c *Client) ListAllArticles(ctx context.Context, externalComplexID string, tradeType string) ([]Article, error) {
	var all []Article
	page := 1
	for {
		pg, err := c.ListArticles(ctx, externalComplexID, tradeType, page)
		if err != nil {
			return all, err
		}
		all = append(all, pg.Articles...)
		if len(pg.Articles) == 0 || len(all) >= pg.Total {
			break
		}
		page++
	}
	return all, nil
}

// APICallCount exposes the underlying fetcher's request counter, used by
// the Full Listings Crawl's cooldown tracker.
func (c *Client) APICallCount() int { return c.fetcher.APICallCount() }

// ResetAPICallCount is called by the crawl planner once a cooldown completes.
func (c *Client) ResetAPICallCount() { c.fetcher.ResetAPICallCount() }

// Stop marks the underlying fetcher cancelled (cooperative shutdown).
func (c *Client) Stop() { c.fetcher.Stop() }
