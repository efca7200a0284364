// Package transactions wraps the government (data.go.kr) transactions
// registry: one XML endpoint, paged by district code and deal month.
package transactions

import (
	"context"
	"encoding/xml"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yourorg/apt-bargain-aggregator/internal/httpx"
)

const baseURL = "https://apis.data.go.kr/1613000/RTMSDataSvcAptTrade/getRTMSDataSvcAptTrade"

const defaultThrottle = 1 * time.Second

type Client struct {
	fetcher    *httpx.Fetcher
	serviceKey string
}

func NewClient(serviceKey string) *Client {
	return NewClientWithThrottle(serviceKey, defaultThrottle)
}

func NewClientWithThrottle(serviceKey string, throttle time.Duration) *Client {
	return &Client{
		fetcher:    httpx.New("transactions", throttle, nil),
		serviceKey: serviceKey,
	}
}

type xmlItem struct {
	AptNm      string `xml:"aptNm"`
	AptDong    string `xml:"aptDong"`
	UmdNm      string `xml:"umdNm"`
	Jibun      string `xml:"jibun"`
	ExcluUseAr string `xml:"excluUseAr"`
	Floor      string `xml:"floor"`
	DealAmount string `xml:"dealAmount"`
	DealYear   string `xml:"dealYear"`
	DealMonth  string `xml:"dealMonth"`
	DealDay    string `xml:"dealDay"`
	BuildYear  string `xml:"buildYear"`
	CdealType  string `xml:"cdealType"`
}

type xmlResponse struct {
	XMLName xml.Name `xml:"response"`
	Header  struct {
		ResultCode string `xml:"resultCode"`
		ResultMsg  string `xml:"resultMsg"`
	} `xml:"header"`
	Body struct {
		Items struct {
			Item []xmlItem `xml:"item"`
		} `xml:"items"`
		TotalCount int `xml:"totalCount"`
	} `xml:"body"`
}

func semanticCheck(body []byte) error {
	var probe xmlResponse
	if err := httpx.DecodeXML(body, &probe); err != nil {
		return httpx.ErrSemanticError
	}
	switch probe.Header.ResultCode {
	case "00", "000":
		return nil
	case "":
		return httpx.ErrSemanticError
	default:
		return httpx.ErrEmpty
	}
}

// FetchPage fetches one page of transactions for a district/month.
func (c *Client) FetchPage(ctx context.Context, districtCode5, dealYYYYMM string, page, rows int) (TransactionPage, error) {
	var env xmlResponse
	q := url.Values{
		"serviceKey": {c.serviceKey},
		"LAWD_CD":    {districtCode5},
		"DEAL_YMD":   {dealYYYYMM},
		"pageNo":     {strconv.Itoa(page)},
		"numOfRows":  {strconv.Itoa(rows)},
	}
	err := c.fetcher.Fetch(ctx, baseURL, q, httpx.DecodeXML, &env, semanticCheck)
	if err != nil {
		if err == httpx.ErrEmpty {
			return TransactionPage{}, nil
		}
		return TransactionPage{}, err
	}
	out := TransactionPage{TotalCount: env.Body.TotalCount, RawItemCount: len(env.Body.Items.Item)}
	for _, it := range env.Body.Items.Item {
		tx, ok := normalizeItem(it)
		if !ok {
			continue
		}
		out.Transactions = append(out.Transactions, tx)
	}
	return out, nil
}

// FetchAll pages fetch_page until accumulated (raw, pre-filter) item count
// reaches the reported totalCount.
func (c *Client) FetchAll(ctx context.Context, districtCode5, dealYYYYMM string) ([]RawTransaction, error) {
	const rows = 200
	var all []RawTransaction
	accumulatedRaw := 0
	page := 1
	for {
		pg, err := c.FetchPage(ctx, districtCode5, dealYYYYMM, page, rows)
		if err != nil {
			return all, err
		}
		all = append(all, pg.Transactions...)
		accumulatedRaw += pg.RawItemCount
		if pg.RawItemCount == 0 {
			break
		}
		if accumulatedRaw >= pg.TotalCount || pg.RawItemCount < rows {
			break
		}
		page++
	}
	return all, nil
}

func normalizeItem(it xmlItem) (RawTransaction, bool) {
	if strings.TrimSpace(it.CdealType) == "O" {
		return RawTransaction{}, false
	}
	area, err := strconv.ParseFloat(strings.TrimSpace(it.ExcluUseAr), 64)
	if err != nil {
		return RawTransaction{}, false
	}
	priceStr := strings.ReplaceAll(strings.TrimSpace(it.DealAmount), ",", "")
	price, err := strconv.Atoi(priceStr)
	if err != nil {
		return RawTransaction{}, false
	}
	year, err1 := strconv.Atoi(strings.TrimSpace(it.DealYear))
	month, err2 := strconv.Atoi(strings.TrimSpace(it.DealMonth))
	day, err3 := strconv.Atoi(strings.TrimSpace(it.DealDay))
	if err1 != nil || err2 != nil || err3 != nil {
		return RawTransaction{}, false
	}
	dealDate := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)

	var floor *int
	if f, err := strconv.Atoi(strings.TrimSpace(it.Floor)); err == nil {
		floor = &f
	}
	var buildYear *int
	if by, err := strconv.Atoi(strings.TrimSpace(it.BuildYear)); err == nil {
		buildYear = &by
	}

	return RawTransaction{
		AptName:       strings.TrimSpace(it.AptNm),
		Dong:          strings.TrimSpace(it.UmdNm),
		Jibun:         strings.TrimSpace(it.Jibun),
		AreaExclusive: area,
		Floor:         floor,
		DealPrice:     price,
		DealDate:      dealDate,
		BuildYear:     buildYear,
	}, true
}

func (c *Client) Stop() { c.fetcher.Stop() }
